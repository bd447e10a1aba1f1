// Package firstload implements the cursor-paged bulk ingestion driver
// spec §4.6 describes: the one-time bootstrap that must complete, per
// table, before periodic sync is allowed to begin.
//
// Grounded on the teacher's pull-phase list pagination
// (backend/sync/manager.go's pull(), which walks remote lists and
// inserts tasks in bulk before the regular sync loop runs) generalized
// to the engine's two wire modes and resumable opaque cursors.
package firstload

import (
	"context"
	"fmt"

	"dync/adapter"
	"dync/eventbus"
	"dync/record"
	"dync/state"
	"dync/store"
)

// Progress is reported to an optional callback after each page (spec
// §4.6).
type Progress struct {
	Table    string
	Received int
	Cursor   any
}

// ProgressFunc is invoked after every successful page.
type ProgressFunc func(Progress)

// Driver runs the first-load protocol for a configured set of tables
// against an Adapter. Cursors advance in memory page by page and are
// written through a state.Store once, when Run returns (on success or
// error), so a failed Run resumes from the last completed page rather
// than restarting; state is not saved between pages, so progress made
// before a crash inside Run is not persisted.
type Driver struct {
	Adapter adapter.Adapter
	Store   store.Store
	State   *state.Store
	Tables  []string
	// Bus, if set, receives an Added event for every inserted record
	// (spec §4.8: every mutation through the raw surface still
	// publishes).
	Bus *eventbus.Bus
	// BoolFields names, per table, the fields that table's remote
	// back-end stores as integer-booleans (spec §4.2), mirroring
	// config.Config.BoolFields.
	BoolFields map[string][]string
}

func (d *Driver) boolFields(table string) record.BoolFields {
	return record.NewBoolFields(d.BoolFields[table]...)
}

func (d *Driver) publish(table, localID string) {
	if d.Bus != nil {
		d.Bus.Publish(eventbus.MutationEvent{Table: table, LocalID: localID, Kind: eventbus.Added})
	}
}

// Run drives first-load for every table in d.Tables not yet marked
// FirstLoadDone, inserting pages via each table's raw surface (no
// change-log entries, per spec §4.6). progress may be nil.
func (d *Driver) Run(ctx context.Context, progress ProgressFunc) error {
	st, err := d.State.Load()
	if err != nil {
		return fmt.Errorf("firstload: load state: %w", err)
	}

	switch d.Adapter.Mode() {
	case adapter.Batch:
		err = d.runBatch(ctx, st, progress)
	default:
		err = d.runPerTable(ctx, st, progress)
	}
	// Persist whatever progress was made even on error, so the next call
	// resumes rather than restarts (spec §4.6).
	if saveErr := d.State.Save(st); saveErr != nil && err == nil {
		return fmt.Errorf("firstload: save state: %w", saveErr)
	}
	return err
}

func (d *Driver) runPerTable(ctx context.Context, st *state.State, progress ProgressFunc) error {
	loader, ok := d.Adapter.(adapter.PerTableFirstLoader)
	if !ok {
		return fmt.Errorf("firstload: adapter does not implement PerTableFirstLoader")
	}

	for _, table := range d.Tables {
		if st.FirstLoadDone[table] {
			continue
		}
		if err := d.runPerTableOne(ctx, loader, st, table, progress); err != nil {
			return err
		}
	}
	return nil
}

func (d *Driver) runPerTableOne(ctx context.Context, loader adapter.PerTableFirstLoader, st *state.State, table string, progress ProgressFunc) error {
	raw, err := d.Store.RawTable(table)
	if err != nil {
		return fmt.Errorf("firstload: raw table %s: %w", table, err)
	}

	var cursor any
	if c, ok := st.FirstLoadCursor[table]; ok && c != "" {
		cursor = c
	}

	for {
		page, err := loader.FirstLoadTable(ctx, table, cursor)
		if err != nil {
			return fmt.Errorf("firstload: %s: %w", table, err)
		}
		if len(page) == 0 {
			st.FirstLoadDone[table] = true
			delete(st.FirstLoadCursor, table)
			return nil
		}

		boolFields := d.boolFields(table)
		var maxUpdatedAt int64
		for _, remote := range page {
			local := record.FromRemote(remote, "", boolFields)
			localID, err := raw.Add(local)
			if err != nil {
				return fmt.Errorf("firstload: insert %s: %w", table, err)
			}
			d.publish(table, localID)
			if updatedAt, ok := toInt64(remote["updated_at"]); ok && updatedAt > maxUpdatedAt {
				maxUpdatedAt = updatedAt
			}
			cursor = remote["id"]
		}
		st.AdvanceLastPulled(table, maxUpdatedAt)
		if s, ok := cursor.(string); ok {
			st.FirstLoadCursor[table] = s
		} else {
			st.FirstLoadCursor[table] = fmt.Sprint(cursor)
		}

		if progress != nil {
			progress(Progress{Table: table, Received: len(page), Cursor: cursor})
		}
	}
}

func (d *Driver) runBatch(ctx context.Context, st *state.State, progress ProgressFunc) error {
	loader, ok := d.Adapter.(adapter.BatchFirstLoader)
	if !ok {
		return fmt.Errorf("firstload: adapter does not implement BatchFirstLoader")
	}

	cursors := map[string]any{}
	for _, table := range d.Tables {
		if st.FirstLoadDone[table] {
			continue
		}
		if c, ok := st.FirstLoadCursor[table]; ok && c != "" {
			cursors[table] = c
		}
	}

	for {
		pending := false
		for _, table := range d.Tables {
			if !st.FirstLoadDone[table] {
				pending = true
				break
			}
		}
		if !pending {
			return nil
		}

		data, nextCursors, hasMore, err := loader.FirstLoadBatch(ctx, cursors)
		if err != nil {
			return fmt.Errorf("firstload: batch: %w", err)
		}

		for table, page := range data {
			if st.FirstLoadDone[table] {
				continue
			}
			raw, err := d.Store.RawTable(table)
			if err != nil {
				return fmt.Errorf("firstload: raw table %s: %w", table, err)
			}
			boolFields := d.boolFields(table)
			var maxUpdatedAt int64
			for _, remote := range page {
				local := record.FromRemote(remote, "", boolFields)
				localID, err := raw.Add(local)
				if err != nil {
					return fmt.Errorf("firstload: insert %s: %w", table, err)
				}
				d.publish(table, localID)
				if updatedAt, ok := toInt64(remote["updated_at"]); ok && updatedAt > maxUpdatedAt {
					maxUpdatedAt = updatedAt
				}
			}
			st.AdvanceLastPulled(table, maxUpdatedAt)
			if progress != nil {
				progress(Progress{Table: table, Received: len(page), Cursor: nextCursors[table]})
			}
		}

		cursors = nextCursors
		for table, c := range nextCursors {
			if s, ok := c.(string); ok {
				st.FirstLoadCursor[table] = s
			}
		}

		if !hasMore {
			for _, table := range d.Tables {
				st.FirstLoadDone[table] = true
				delete(st.FirstLoadCursor, table)
			}
			return nil
		}
	}
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}
