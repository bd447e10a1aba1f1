// Package conflict implements the resolver spec §4.4 describes:
// reconciling a pulled remote record against an in-flight local update
// for the same _localId, under one of three configured strategies.
//
// Grounded on the teacher's approach to merge conflicts in
// backend/sync/manager.go (field-by-field reconciliation of local vs.
// remote task state) generalized from the teacher's fixed Task struct to
// the engine's free-form store.Record.
package conflict

import (
	"dync/changelog"
	"dync/record"
	"dync/store"
)

// Strategy selects how the resolver reconciles a pulled remote record
// against a pending local update (spec §4.4).
type Strategy int

const (
	// TryShallowMerge is the default: apply non-overlapping remote
	// fields, record a Conflict for any field present in both payloads
	// with a different value.
	TryShallowMerge Strategy = iota
	// LocalWins discards the incoming remote record outright.
	LocalWins
	// RemoteWins drops the pending log entry and applies the remote
	// record verbatim.
	RemoteWins
)

// Conflict is produced when try-shallow-merge detects field overlap
// between a pending local update and an incoming remote record (spec §3).
type Conflict struct {
	Table   string
	LocalID string
	Local   store.Record
	Remote  record.Remote
	// Fields lists the field names present in both payloads with
	// differing values — what resolveConflict(localId, preferLocal) will
	// decide between.
	Fields []string
}

// Resolver applies Strategy to incoming remote records that collide with
// a pending local update, tracking open Conflicts until the host resolves
// them.
type Resolver struct {
	strategy   Strategy
	boolFields map[string]record.BoolFields // keyed by table
	conflicts  map[string]Conflict          // keyed by table + "\x1f" + localID
}

// New builds a Resolver under strategy. boolFields names, per table, the
// fields that back-end stores as integer-booleans (spec §4.2); it may be
// nil when no table needs the coercion.
func New(strategy Strategy, boolFields map[string]record.BoolFields) *Resolver {
	return &Resolver{strategy: strategy, boolFields: boolFields, conflicts: make(map[string]Conflict)}
}

func conflictKey(table, localID string) string { return table + "\x1f" + localID }

// Outcome is what the controller must do to the local store for the
// table/localID the resolver was invoked for.
type Outcome struct {
	// Upsert, when non-nil, is the record the controller should write
	// locally (merged-but-possibly-still-divergent, or the remote record
	// verbatim under remote-wins).
	Upsert store.Record
	// DropLogEntry indicates the pending change-log entry should be
	// discarded (remote-wins only: spec §4.4).
	DropLogEntry bool
}

// Resolve reconciles remote against the local record's pending update
// entry (which always has Kind == changelog.Update, since only updates
// reach the resolver per spec §4.5 step 3). local is the record's
// current local payload.
func (r *Resolver) Resolve(table, localID string, local store.Record, remote record.Remote, pending changelog.Entry) Outcome {
	switch r.strategy {
	case LocalWins:
		return Outcome{}
	case RemoteWins:
		merged := record.FromRemote(remote, localID, r.boolFields[table])
		return Outcome{Upsert: merged, DropLogEntry: true}
	default:
		return r.shallowMerge(table, localID, local, remote, pending)
	}
}

func (r *Resolver) shallowMerge(table, localID string, local store.Record, remote record.Remote, pending changelog.Entry) Outcome {
	localDelta := pending.Payload
	merged := local.Clone()
	boolFields := r.boolFields[table]
	var overlapping []string

	for field, remoteVal := range remote {
		if field == "id" || field == "updated_at" || field == "deleted" {
			continue
		}
		normalized := remoteVal
		if boolFields[field] {
			normalized = record.NormalizeBool(remoteVal)
		}
		localVal, inDelta := localDelta[field]
		if !inDelta {
			merged[field] = normalized
			continue
		}
		if !record.FieldEqual(localVal, normalized) {
			overlapping = append(overlapping, field)
			// Leave merged at the locally pending value; the field stays
			// divergent until resolveConflict decides.
		}
	}

	if len(overlapping) > 0 {
		r.conflicts[conflictKey(table, localID)] = Conflict{
			Table:   table,
			LocalID: localID,
			Local:   local.Clone(),
			Remote:  remote,
			Fields:  overlapping,
		}
	}

	return Outcome{Upsert: merged}
}

// Conflicts returns every currently open conflict, for the host-facing
// state snapshot (spec §6.2's state.conflicts).
func (r *Resolver) Conflicts() []Conflict {
	out := make([]Conflict, 0, len(r.conflicts))
	for _, c := range r.conflicts {
		out = append(out, c)
	}
	return out
}

// ResolveConflict implements spec §4.4's resolveConflict(_localId,
// preferLocal) entry point: when preferLocal is false, the remote value
// of every overlapping field is applied and returned for the controller
// to write back; when true, the conflict is simply cleared, keeping the
// locally pending value. Returns the delta to upsert (nil under
// preferLocal) and whether a conflict was found.
func (r *Resolver) ResolveConflict(table, localID string, preferLocal bool) (store.Record, bool) {
	key := conflictKey(table, localID)
	c, ok := r.conflicts[key]
	if !ok {
		return nil, false
	}
	delete(r.conflicts, key)

	if preferLocal {
		return nil, true
	}
	boolFields := r.boolFields[table]
	delta := store.Record{}
	for _, field := range c.Fields {
		v := c.Remote[field]
		if boolFields[field] {
			v = record.NormalizeBool(v)
		}
		delta[field] = v
	}
	return delta, true
}
