package changelog

import (
	"dync/eventbus"
	"dync/store"
)

// Table is the sync-aware store.Table: every mutation both writes
// through to the underlying RawTable and enqueues a change-log entry,
// then publishes a mutation event (spec §4.1, §4.8). It is what
// store.Table's doc comment means by "back-ends... accept the wrapper":
// a store implementation need only provide RawTable; Table composes the
// logging on top.
type Table struct {
	name string
	raw  store.RawTable
	log  *Log
	bus  *eventbus.Bus
}

// NewTable builds the sync-aware wrapper for table name.
func NewTable(name string, raw store.RawTable, log *Log, bus *eventbus.Bus) *Table {
	return &Table{name: name, raw: raw, log: log, bus: bus}
}

// Raw implements store.Table.
func (t *Table) Raw() store.RawTable { return t.raw }

func (t *Table) publish(localID string, kind eventbus.Kind) {
	if t.bus != nil {
		t.bus.Publish(eventbus.MutationEvent{Table: t.name, LocalID: localID, Kind: kind})
	}
}

func (t *Table) Add(row store.Record) (string, error) {
	localID, err := t.raw.Add(row)
	if err != nil {
		return "", err
	}
	full := row.Clone()
	full[store.LocalIDField] = localID
	if _, _, err := t.log.Enqueue(Entry{Table: t.name, LocalID: localID, Kind: Add, Payload: full}); err != nil {
		return localID, err
	}
	t.publish(localID, eventbus.Added)
	return localID, nil
}

func (t *Table) Put(row store.Record) error {
	localID, _ := row[store.LocalIDField].(string)
	if localID == "" {
		_, err := t.Add(row)
		return err
	}
	remoteID, err := t.remoteIDOf(localID)
	if err != nil {
		return err
	}
	if err := t.raw.Update(localID, row); err != nil {
		return err
	}
	if _, _, err := t.log.Enqueue(Entry{Table: t.name, LocalID: localID, Kind: Update, Payload: row, ID: remoteID}); err != nil {
		return err
	}
	t.publish(localID, eventbus.Updated)
	return nil
}

func (t *Table) Update(localID string, delta store.Record) error {
	remoteID, err := t.remoteIDOf(localID)
	if err != nil {
		return err
	}
	if err := t.raw.Update(localID, delta); err != nil {
		return err
	}
	if _, _, err := t.log.Enqueue(Entry{Table: t.name, LocalID: localID, Kind: Update, Payload: delta, ID: remoteID}); err != nil {
		return err
	}
	t.publish(localID, eventbus.Updated)
	return nil
}

// remoteIDOf looks up the server id already assigned to localID, if any,
// so an Update entry enqueued with no prior pending entry still carries
// the remote id Head requires before it becomes push-eligible (spec
// §4.1). A record not yet echoed back by the remote (its own Add is
// still pending) correctly yields a nil id: Coalesce folds the Update
// onto that pending Add instead.
func (t *Table) remoteIDOf(localID string) (any, error) {
	existing, found, err := t.raw.Get(localID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return existing[store.IDField], nil
}

func (t *Table) Delete(localID string) error {
	existing, found, err := t.raw.Get(localID)
	if err != nil {
		return err
	}
	var id any
	if found {
		id = existing[store.IDField]
	}
	if err := t.raw.Delete(localID); err != nil {
		return err
	}
	entry := Entry{Table: t.name, LocalID: localID, Kind: Remove}
	if id != nil {
		entry.ID = id
	}
	if _, _, err := t.log.Enqueue(entry); err != nil {
		return err
	}
	t.publish(localID, eventbus.Removed)
	return nil
}

func (t *Table) Get(localID string) (store.Record, bool, error) { return t.raw.Get(localID) }

func (t *Table) BulkAdd(rows []store.Record) ([]string, error) {
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

func (t *Table) BulkPut(rows []store.Record) error {
	for _, r := range rows {
		if err := t.Put(r); err != nil {
			return err
		}
	}
	return nil
}

func (t *Table) BulkUpdate(deltas map[string]store.Record) error {
	for id, d := range deltas {
		if err := t.Update(id, d); err != nil {
			return err
		}
	}
	return nil
}

func (t *Table) BulkDelete(localIDs []string) error {
	for _, id := range localIDs {
		if err := t.Delete(id); err != nil {
			return err
		}
	}
	return nil
}

// WhereField returns a sync-aware collection whose Modify/Delete route
// through the same logging path as single-row mutations (spec §6.1:
// "modify/delete on a collection MUST route through the sync-aware
// path").
func (t *Table) WhereField(field string, op store.Op, value any) store.Collection {
	return &collection{table: t, inner: t.raw.WhereField(field, op, value)}
}

type collection struct {
	table *Table
	inner store.Collection
}

func (c *collection) ToArray() ([]store.Record, error) { return c.inner.ToArray() }
func (c *collection) Count() (int, error)               { return c.inner.Count() }
func (c *collection) First() (store.Record, bool, error) { return c.inner.First() }
func (c *collection) Last() (store.Record, bool, error)  { return c.inner.Last() }

func (c *collection) Limit(n int) store.Collection  { return &collection{table: c.table, inner: c.inner.Limit(n)} }
func (c *collection) Offset(n int) store.Collection { return &collection{table: c.table, inner: c.inner.Offset(n)} }
func (c *collection) Reverse() store.Collection     { return &collection{table: c.table, inner: c.inner.Reverse()} }
func (c *collection) SortBy(field string) store.Collection {
	return &collection{table: c.table, inner: c.inner.SortBy(field)}
}
func (c *collection) Filter(pred func(store.Record) bool) store.Collection {
	return &collection{table: c.table, inner: c.inner.Filter(pred)}
}

func (c *collection) Modify(fn func(store.Record) store.Record) error {
	rows, err := c.inner.ToArray()
	if err != nil {
		return err
	}
	for _, row := range rows {
		localID, _ := row[store.LocalIDField].(string)
		if localID == "" {
			continue
		}
		updated := fn(row.Clone())
		if err := c.table.Put(updated); err != nil {
			return err
		}
	}
	return nil
}

func (c *collection) Delete() error {
	rows, err := c.inner.ToArray()
	if err != nil {
		return err
	}
	for _, row := range rows {
		localID, _ := row[store.LocalIDField].(string)
		if localID == "" {
			continue
		}
		if err := c.table.Delete(localID); err != nil {
			return err
		}
	}
	return nil
}
