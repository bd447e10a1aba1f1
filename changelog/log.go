package changelog

import (
	"sync"

	"dync/store"
)

// ReservedTable is the default name of the store table the log
// materializes itself into when the back-end has no native queue,
// mirroring the teacher's reserved sync_queue table
// (backend/sqlite/schema.go).
const ReservedTable = "_dync_changelog"

// AckOutcome carries the server-assigned fields a successful push
// returns, applied to the local record via the raw surface (spec §4.1).
type AckOutcome struct {
	ID        any
	UpdatedAt *int64
}

// Log is the durable, coalescing per-table change log (spec §4.1). It
// persists itself as ordinary rows in a reserved store table, so it
// survives restarts on any back-end without requiring a native queue —
// the same approach the teacher takes with sync_queue.
type Log struct {
	mu    sync.Mutex
	store store.Store
	raw   store.RawTable
	seq   int64
}

// Open attaches a Log to store s, materializing it into tableName (pass
// changelog.ReservedTable unless a back-end reserves that name already).
func Open(s store.Store, tableName string) (*Log, error) {
	raw, err := s.RawTable(tableName)
	if err != nil {
		return nil, err
	}
	l := &Log{store: s, raw: raw}
	entries, err := l.all()
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.Seq > l.seq {
			l.seq = e.Seq
		}
	}
	return l, nil
}

func entryKey(table, localID string) string { return table + "\x1f" + localID }

// Enqueue appends entry e, applying the coalescing rules of spec §4.1
// against any pending entry already logged for (e.Table, e.LocalID). It
// returns the entry as actually stored (which may differ from e: an
// add→update coalesces into a single Add carrying the merged payload) and
// whether an entry remains logged at all (false for a dropped add→remove).
func (l *Log) Enqueue(e Entry) (stored Entry, kept bool, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := entryKey(e.Table, e.LocalID)
	existingRow, found, err := l.raw.Get(key)
	if err != nil {
		return Entry{}, false, err
	}
	if !found {
		l.seq++
		e.Seq = l.seq
		if err := l.put(key, e); err != nil {
			return Entry{}, false, err
		}
		return e, true, nil
	}

	existing := decodeEntry(existingRow)
	merged, keep, cerr := Coalesce(existing, e)
	if cerr != nil {
		return Entry{}, false, cerr
	}
	if !keep {
		if err := l.raw.Delete(key); err != nil && err != store.ErrNotFound {
			return Entry{}, false, err
		}
		return Entry{}, false, nil
	}
	if err := l.put(key, merged); err != nil {
		return Entry{}, false, err
	}
	return merged, true, nil
}

func (l *Log) put(key string, e Entry) error {
	row := encodeEntry(e)
	row[store.LocalIDField] = key
	return l.raw.Put(row)
}

// Head returns up to limit of the oldest entries eligible for push: every
// Add, plus any Update/Remove whose remote id is already known (spec
// §4.1). limit <= 0 means unlimited.
func (l *Log) Head(limit int) ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.all()
	if err != nil {
		return nil, err
	}
	var eligible []Entry
	for _, e := range entries {
		if e.Kind == Add || e.HasRemoteID() {
			eligible = append(eligible, e)
		}
	}
	sortBySeq(eligible)
	if limit > 0 && len(eligible) > limit {
		eligible = eligible[:limit]
	}
	return eligible, nil
}

// Ack removes entry from the log and, if outcome carries id/updated_at,
// writes them onto the local record through the raw surface of the
// entry's table (spec §4.1).
func (l *Log) Ack(e Entry, outcome AckOutcome) error {
	l.mu.Lock()
	key := entryKey(e.Table, e.LocalID)
	delErr := l.raw.Delete(key)
	l.mu.Unlock()
	if delErr != nil && delErr != store.ErrNotFound {
		return delErr
	}

	if outcome.ID == nil && outcome.UpdatedAt == nil {
		return nil
	}
	tbl, err := l.store.RawTable(e.Table)
	if err != nil {
		return err
	}
	delta := store.Record{}
	if outcome.ID != nil {
		delta[store.IDField] = outcome.ID
	}
	if outcome.UpdatedAt != nil {
		delta[store.UpdatedAtField] = *outcome.UpdatedAt
	}
	return tbl.Update(e.LocalID, delta)
}

// Length reports the number of entries currently logged, across all
// tables.
func (l *Log) Length() (int, error) {
	entries, err := l.all()
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// Iter returns every logged entry, oldest first.
func (l *Log) Iter() ([]Entry, error) {
	entries, err := l.all()
	if err != nil {
		return nil, err
	}
	sortBySeq(entries)
	return entries, nil
}

// Pending reports whether table/localID currently has an outstanding
// entry, and returns it. Used by the conflict resolver and the controller
// to detect "pending local update" (spec §3's invariant).
func (l *Log) Pending(table, localID string) (Entry, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	row, found, err := l.raw.Get(entryKey(table, localID))
	if err != nil || !found {
		return Entry{}, false, err
	}
	return decodeEntry(row), true, nil
}

func (l *Log) all() ([]Entry, error) {
	// seq is assigned starting at 1 and only increases, so ">= 0" is an
	// unconditional match used to retrieve every row through the ordinary
	// WhereField contract rather than adding a store-level "list all".
	rows, err := l.raw.WhereField("seq", store.AboveOrEqual, int64(0)).ToArray()
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(rows))
	for _, row := range rows {
		out = append(out, decodeEntry(row))
	}
	return out, nil
}

func sortBySeq(entries []Entry) {
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && entries[j-1].Seq > entries[j].Seq; j-- {
			entries[j-1], entries[j] = entries[j], entries[j-1]
		}
	}
}

func encodeEntry(e Entry) store.Record {
	return store.Record{
		"table":        e.Table,
		"entryLocalId": e.LocalID,
		"kind":         int(e.Kind),
		"payload":      map[string]any(e.Payload),
		"base":         map[string]any(e.Base),
		"id":           e.ID,
		"seq":          e.Seq,
		"retryCount":   e.RetryCount,
		"lastError":    e.LastError,
	}
}

func decodeEntry(row store.Record) Entry {
	e := Entry{}
	e.Table, _ = row["table"].(string)
	e.LocalID, _ = row["entryLocalId"].(string)
	e.Kind = Kind(toInt(row["kind"]))
	if p, ok := row["payload"].(map[string]any); ok {
		e.Payload = store.Record(p)
	}
	if b, ok := row["base"].(map[string]any); ok {
		e.Base = store.Record(b)
	}
	e.ID = row["id"]
	e.Seq = int64(toInt(row["seq"]))
	e.RetryCount = toInt(row["retryCount"])
	e.LastError, _ = row["lastError"].(string)
	return e
}

func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}
