// Package state persists the sync controller's durable cursors (spec
// §4.9): per-table first-load completion, last-pulled timestamps, and
// first-load cursors, as one JSON-encoded row in a reserved store table.
//
// Grounded on the teacher's sync_queue/list_sync_metadata persistence
// pattern (backend/sqlite/schema.go), generalized from the teacher's
// fixed per-list metadata columns to a single opaque JSON blob, since the
// engine's set of synced tables is not known at schema-design time.
package state

import (
	"encoding/json"
	"fmt"

	"dync/store"
)

// ReservedTable is the name of the reserved table state lives in (spec
// §6.4).
const ReservedTable = "_dync_state"

// rowID is the sole row's _localId (spec §6.4: `_localId="sync_state"`).
const rowID = "sync_state"

// State is the persisted cursor snapshot (spec §4.9).
type State struct {
	FirstLoadDone   map[string]bool   `json:"firstLoadDone"`
	LastPulled      map[string]int64  `json:"lastPulled"`
	FirstLoadCursor map[string]string `json:"firstLoadCursor"`
}

// New returns an empty State with initialized maps.
func New() *State {
	return &State{
		FirstLoadDone:   make(map[string]bool),
		LastPulled:      make(map[string]int64),
		FirstLoadCursor: make(map[string]string),
	}
}

// Store loads and persists State against a reserved store table.
type Store struct {
	raw store.RawTable
}

// Open attaches a state.Store to s's reserved table.
func Open(s store.Store) (*Store, error) {
	raw, err := s.RawTable(ReservedTable)
	if err != nil {
		return nil, fmt.Errorf("state: open reserved table: %w", err)
	}
	return &Store{raw: raw}, nil
}

// Load returns the persisted State, or a fresh empty one if nothing has
// been written yet.
func (s *Store) Load() (*State, error) {
	row, found, err := s.raw.Get(rowID)
	if err != nil {
		return nil, fmt.Errorf("state: load: %w", err)
	}
	if !found {
		return New(), nil
	}
	raw, _ := row["value"].(string)
	if raw == "" {
		return New(), nil
	}
	st := New()
	if err := json.Unmarshal([]byte(raw), st); err != nil {
		return nil, fmt.Errorf("state: decode: %w", err)
	}
	if st.FirstLoadDone == nil {
		st.FirstLoadDone = make(map[string]bool)
	}
	if st.LastPulled == nil {
		st.LastPulled = make(map[string]int64)
	}
	if st.FirstLoadCursor == nil {
		st.FirstLoadCursor = make(map[string]string)
	}
	return st, nil
}

// Save persists st, overwriting any previous snapshot. Called at the end
// of every cycle and once when a first-load run returns, not between
// first-load pages.
func (s *Store) Save(st *State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("state: encode: %w", err)
	}
	row := store.Record{store.LocalIDField: rowID, "value": string(data)}
	if err := s.raw.Put(row); err != nil {
		return fmt.Errorf("state: save: %w", err)
	}
	return nil
}

// AdvanceLastPulled sets LastPulled[table] to the larger of its current
// value and observed, enforcing the "never decreases" invariant (spec
// §3, and §9 ambiguity iii).
func (st *State) AdvanceLastPulled(table string, observed int64) {
	if observed > st.LastPulled[table] {
		st.LastPulled[table] = observed
	}
}

// AllTablesFirstLoaded reports whether every name in tables has
// FirstLoadDone set, the gate periodic sync checks (spec §4.6, §8
// property 8).
func (st *State) AllTablesFirstLoaded(tables []string) bool {
	for _, t := range tables {
		if !st.FirstLoadDone[t] {
			return false
		}
	}
	return true
}

// SkipFirstLoad marks every table in tables as first-loaded without
// running the driver, per spec §4.6: "if the host skips first-load,
// startFirstLoad must be treated as equivalent to marking all tables
// done with lastPulled unset" — LastPulled is deliberately left absent so
// the next pull uses timestamp 0 ("since epoch").
func (st *State) SkipFirstLoad(tables []string) {
	for _, t := range tables {
		st.FirstLoadDone[t] = true
	}
}
