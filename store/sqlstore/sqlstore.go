// Package sqlstore is a SQLite-backed reference implementation of
// store.Store, grounded on the teacher's backend/sqliteBackend.go,
// backend/database.go and backend/sqlite/schema.go: XDG-compliant path
// resolution, WAL journal mode, and one reserved table per concern.
//
// Because store.Record is a free-form map rather than the teacher's fixed
// Task columns, each table is a two-column (local_id, data) design: data
// holds the JSON-encoded record. WhereField therefore filters in Go after
// decoding rather than pushing a predicate into SQL — acceptable for a
// reference implementation; a production back-end would add generated
// columns or a dedicated index table per queried field.
package sqlstore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"dync/store"
)

// PragmaStatements mirrors the teacher's backend/sqlite/schema.go pragmas.
func PragmaStatements() []string {
	return []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
}

// Store wraps a *sql.DB, lazily creating one table per name on first use.
type Store struct {
	db      *sql.DB
	mu      sync.Mutex
	cycleMu sync.Mutex
}

// Open resolves path (XDG default when empty, per resolvePath) and
// opens the database, applying pragmas.
func Open(path string) (*Store, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: resolve path: %w", err)
	}
	if dir := filepath.Dir(resolved); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlstore: create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", resolved)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open: %w", err)
	}
	for _, pragma := range PragmaStatements() {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlstore: pragma %q: %w", pragma, err)
		}
	}
	return &Store{db: db}, nil
}

// OpenMemory opens an in-process, non-durable SQLite database, useful for
// tests that want SQL semantics without a file on disk.
func OpenMemory() (*Store, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open memory: %w", err)
	}
	return &Store{db: db}, nil
}

func resolvePath(custom string) (string, error) {
	if custom != "" {
		return custom, nil
	}
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "dync", "store.db"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "share", "dync", "store.db"), nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error { return s.db.Close() }

var identifierRe = func() func(string) bool {
	return func(name string) bool {
		if name == "" {
			return false
		}
		for _, r := range name {
			if !(r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
				return false
			}
		}
		return true
	}
}()

func (s *Store) ensureTable(name string) (*table, error) {
	if !identifierRe(name) {
		return nil, fmt.Errorf("sqlstore: invalid table name %q", name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		local_id TEXT PRIMARY KEY,
		data TEXT NOT NULL
	)`, name)
	if _, err := s.db.Exec(ddl); err != nil {
		return nil, fmt.Errorf("sqlstore: create table %s: %w", name, err)
	}
	return &table{db: s.db, name: name}, nil
}

// Table implements store.Store.
func (s *Store) Table(name string) (store.Table, error) { return s.ensureTable(name) }

// RawTable implements store.Store.
func (s *Store) RawTable(name string) (store.RawTable, error) { return s.ensureTable(name) }

// Lock/Unlock implement store.Locker, guarding a controller cycle as one
// logical critical section. This is a dedicated mutex, not the one
// ensureTable uses: a held cycle lock must still let callers reach inside
// it (table hydration, log.Ack's RawTable lookup) without the non-reentrant
// ensureTable mutex deadlocking against itself.
func (s *Store) Lock()   { s.cycleMu.Lock() }
func (s *Store) Unlock() { s.cycleMu.Unlock() }

type table struct {
	db   *sql.DB
	name string
}

func (t *table) Raw() store.RawTable { return t }

func (t *table) Add(row store.Record) (string, error) {
	id, _ := row[store.LocalIDField].(string)
	if id == "" {
		id = uuid.NewString()
	}
	cp := row.Clone()
	cp[store.LocalIDField] = id
	return id, t.insert(id, cp)
}

func (t *table) insert(id string, row store.Record) error {
	data, err := json.Marshal(row)
	if err != nil {
		return err
	}
	_, err = t.db.Exec(
		fmt.Sprintf(`INSERT INTO %s (local_id, data) VALUES (?, ?)
			ON CONFLICT(local_id) DO UPDATE SET data=excluded.data`, t.name),
		id, string(data),
	)
	return err
}

func (t *table) Put(row store.Record) error {
	id, _ := row[store.LocalIDField].(string)
	if id == "" {
		_, err := t.Add(row)
		return err
	}
	return t.insert(id, row)
}

func (t *table) Update(localID string, delta store.Record) error {
	row, ok, err := t.Get(localID)
	if err != nil {
		return err
	}
	if !ok {
		return store.ErrNotFound
	}
	for k, v := range delta {
		row[k] = v
	}
	return t.insert(localID, row)
}

func (t *table) Delete(localID string) error {
	res, err := t.db.Exec(fmt.Sprintf(`DELETE FROM %s WHERE local_id = ?`, t.name), localID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (t *table) Get(localID string) (store.Record, bool, error) {
	var data string
	err := t.db.QueryRow(fmt.Sprintf(`SELECT data FROM %s WHERE local_id = ?`, t.name), localID).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var row store.Record
	if err := json.Unmarshal([]byte(data), &row); err != nil {
		return nil, false, err
	}
	return row, true, nil
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

func (t *table) all() ([]store.Record, error) {
	rows, err := t.db.Query(fmt.Sprintf(`SELECT data FROM %s`, t.name))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Record
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var rec store.Record
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (t *table) WhereField(field string, op store.Op, value any) store.Collection {
	records, err := t.all()
	if err != nil {
		return &collection{table: t, err: err}
	}
	var matched []store.Record
	for _, r := range records {
		if matchesField(r[field], op, value) {
			matched = append(matched, r)
		}
	}
	return &collection{table: t, rows: matched}
}

func matchesField(fieldVal any, op store.Op, value any) bool {
	switch op {
	case store.Equals:
		return fmt.Sprint(fieldVal) == fmt.Sprint(value) && (fieldVal != nil) == (value != nil)
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
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

type collection struct {
	table *table
	rows  []store.Record
	err   error
}

func (c *collection) ToArray() ([]store.Record, error) { return c.rows, c.err }

func (c *collection) Count() (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	return len(c.rows), nil
}

func (c *collection) First() (store.Record, bool, error) {
	if c.err != nil || len(c.rows) == 0 {
		return nil, false, c.err
	}
	return c.rows[0], true, nil
}

func (c *collection) Last() (store.Record, bool, error) {
	if c.err != nil || len(c.rows) == 0 {
		return nil, false, c.err
	}
	return c.rows[len(c.rows)-1], true, nil
}

func (c *collection) Limit(n int) store.Collection {
	if n >= len(c.rows) {
		return &collection{table: c.table, rows: c.rows, err: c.err}
	}
	return &collection{table: c.table, rows: c.rows[:n], err: c.err}
}

func (c *collection) Offset(n int) store.Collection {
	if n >= len(c.rows) {
		return &collection{table: c.table, err: c.err}
	}
	return &collection{table: c.table, rows: c.rows[n:], err: c.err}
}

func (c *collection) Reverse() store.Collection {
	out := make([]store.Record, len(c.rows))
	for i, r := range c.rows {
		out[len(c.rows)-1-i] = r
	}
	return &collection{table: c.table, rows: out, err: c.err}
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
		return strings.Compare(fmt.Sprint(out[i][field]), fmt.Sprint(out[j][field])) < 0
	})
	return &collection{table: c.table, rows: out, err: c.err}
}

func (c *collection) Filter(pred func(store.Record) bool) store.Collection {
	var out []store.Record
	for _, r := range c.rows {
		if pred(r) {
			out = append(out, r)
		}
	}
	return &collection{table: c.table, rows: out, err: c.err}
}

func (c *collection) Modify(fn func(store.Record) store.Record) error {
	if c.err != nil {
		return c.err
	}
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
	if c.err != nil {
		return c.err
	}
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
