// Package memstore is an in-memory reference implementation of
// store.Store, used by the engine's own tests and suitable for hosts that
// don't need cross-process durability. The coalescing and hydration logic
// the engine expects (store.RawTable bypassing any logging) is the
// distinction this package exists to exercise cleanly.
package memstore

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"dync/store"
)

// Store is a process-local, mutex-guarded collection of tables.
type Store struct {
	mu      sync.Mutex
	tables  map[string]*table
	cycleMu sync.Mutex
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{tables: make(map[string]*table)}
}

func (s *Store) get(name string) *table {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[name]
	if !ok {
		t = &table{name: name, rows: make(map[string]store.Record)}
		s.tables[name] = t
	}
	return t
}

// Table implements store.Store.
func (s *Store) Table(name string) (store.Table, error) { return s.get(name), nil }

// RawTable implements store.Store.
func (s *Store) RawTable(name string) (store.RawTable, error) { return s.get(name), nil }

// Lock/Unlock implement store.Locker, guarding a controller cycle as one
// logical critical section. This is a dedicated mutex, not s.mu: s.mu also
// guards the table map in get(), which a held cycle lock must still allow
// callers (table hydration, log.Ack) to reach — sync.Mutex isn't
// reentrant, so sharing one lock between the two would deadlock the first
// table access made from inside a cycle.
func (s *Store) Lock()   { s.cycleMu.Lock() }
func (s *Store) Unlock() { s.cycleMu.Unlock() }

type table struct {
	mu   sync.RWMutex
	name string
	rows map[string]store.Record
}

func (t *table) Raw() store.RawTable { return t }

func (t *table) Add(row store.Record) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	id, _ := row[store.LocalIDField].(string)
	if id == "" {
		id = uuid.NewString()
	}
	cp := row.Clone()
	cp[store.LocalIDField] = id
	t.rows[id] = cp
	return id, nil
}

func (t *table) Put(row store.Record) error {
	id, _ := row[store.LocalIDField].(string)
	if id == "" {
		_, err := t.Add(row)
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rows[id] = row.Clone()
	return nil
}

func (t *table) Update(localID string, delta store.Record) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	row, ok := t.rows[localID]
	if !ok {
		return store.ErrNotFound
	}
	row = row.Clone()
	for k, v := range delta {
		row[k] = v
	}
	t.rows[localID] = row
	return nil
}

func (t *table) Delete(localID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.rows[localID]; !ok {
		return store.ErrNotFound
	}
	delete(t.rows, localID)
	return nil
}

func (t *table) Get(localID string) (store.Record, bool, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	row, ok := t.rows[localID]
	if !ok {
		return nil, false, nil
	}
	return row.Clone(), true, nil
}

func (t *table) BulkAdd(rows []store.Record) ([]string, error) {
	ids := make([]string, len(rows))
	for i, r := range rows {
		id, err := t.Add(r)
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}
	return ids, nil
}

func (t *table) BulkPut(rows []store.Record) error {
	for _, r := range rows {
		if err := t.Put(r); err != nil {
			return err
		}
	}
	return nil
}

func (t *table) BulkUpdate(deltas map[string]store.Record) error {
	for id, d := range deltas {
		if err := t.Update(id, d); err != nil {
			return err
		}
	}
	return nil
}

func (t *table) BulkDelete(localIDs []string) error {
	for _, id := range localIDs {
		if err := t.Delete(id); err != nil {
			return err
		}
	}
	return nil
}

func (t *table) WhereField(field string, op store.Op, value any) store.Collection {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var matched []store.Record
	for _, row := range t.rows {
		if matches(row[field], op, value) {
			matched = append(matched, row.Clone())
		}
	}
	return &collection{table: t, rows: matched}
}

func matches(fieldVal any, op store.Op, value any) bool {
	switch op {
	case store.Equals:
		return fieldVal == value
	}
	lf, lok := toFloat(fieldVal)
	rf, rok := toFloat(value)
	if !lok || !rok {
		return false
	}
	switch op {
	case store.Above:
		return lf > rf
	case store.AboveOrEqual:
		return lf >= rf
	case store.Below:
		return lf < rf
	case store.BelowOrEqual:
		return lf <= rf
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// collection is the lazy view returned by WhereField. Modify/Delete here
// operate directly against the rows snapshot; callers needing sync-aware
// semantics go through changelog.Table.WhereField instead (store.Table's
// WhereField is expected to be wrapped the same way single-row mutations
// are).
type collection struct {
	table *table
	rows  []store.Record
}

func (c *collection) ToArray() ([]store.Record, error) { return c.rows, nil }
func (c *collection) Count() (int, error)               { return len(c.rows), nil }

func (c *collection) First() (store.Record, bool, error) {
	if len(c.rows) == 0 {
		return nil, false, nil
	}
	return c.rows[0], true, nil
}

func (c *collection) Last() (store.Record, bool, error) {
	if len(c.rows) == 0 {
		return nil, false, nil
	}
	return c.rows[len(c.rows)-1], true, nil
}

func (c *collection) Limit(n int) store.Collection {
	if n >= len(c.rows) {
		return &collection{table: c.table, rows: c.rows}
	}
	return &collection{table: c.table, rows: c.rows[:n]}
}

func (c *collection) Offset(n int) store.Collection {
	if n >= len(c.rows) {
		return &collection{table: c.table, rows: nil}
	}
	return &collection{table: c.table, rows: c.rows[n:]}
}

func (c *collection) Reverse() store.Collection {
	out := make([]store.Record, len(c.rows))
	for i, r := range c.rows {
		out[len(c.rows)-1-i] = r
	}
	return &collection{table: c.table, rows: out}
}

func (c *collection) SortBy(field string) store.Collection {
	out := make([]store.Record, len(c.rows))
	copy(out, c.rows)
	sort.SliceStable(out, func(i, j int) bool {
		a, aok := toFloat(out[i][field])
		b, bok := toFloat(out[j][field])
		if aok && bok {
			return a < b
		}
		as, _ := out[i][field].(string)
		bs, _ := out[j][field].(string)
		return as < bs
	})
	return &collection{table: c.table, rows: out}
}

func (c *collection) Filter(pred func(store.Record) bool) store.Collection {
	var out []store.Record
	for _, r := range c.rows {
		if pred(r) {
			out = append(out, r)
		}
	}
	return &collection{table: c.table, rows: out}
}

func (c *collection) Modify(fn func(store.Record) store.Record) error {
	for i, r := range c.rows {
		updated := fn(r.Clone())
		if c.table != nil {
			if err := c.table.Put(updated); err != nil {
				return err
			}
		}
		c.rows[i] = updated
	}
	return nil
}

func (c *collection) Delete() error {
	if c.table != nil {
		for _, r := range c.rows {
			id, _ := r[store.LocalIDField].(string)
			if id == "" {
				continue
			}
			if err := c.table.Delete(id); err != nil && err != store.ErrNotFound {
				return err
			}
		}
	}
	c.rows = nil
	return nil
}
