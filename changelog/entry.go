// Package changelog implements the append-only per-table change log
// (spec §4.1): the durable record of outstanding local mutations, their
// coalescing rules, and the contract the sync controller drains on push.
//
// Grounded on the teacher's sqlite.SyncOperation
// (backend/sqliteBackend.go) and the sync_queue table in
// backend/sqlite/schema.go (UNIQUE(task_uid, operation) is the teacher's
// coalescing primitive — at most one outstanding operation kind per task);
// generalized here to the sum-typed LogEntry the design notes (spec §9)
// call for, since the teacher's three fixed operation strings can't
// express "update merged with update" or "add merged with update".
package changelog

import "dync/store"

// Kind discriminates the three possible outstanding operations for a
// _localId. Remove is terminal: coalescing a new entry onto a Remove is
// illegal (spec §4.1's table).
type Kind int

const (
	Add Kind = iota
	Update
	Remove
)

func (k Kind) String() string {
	switch k {
	case Add:
		return "add"
	case Update:
		return "update"
	case Remove:
		return "remove"
	default:
		return "unknown"
	}
}

// Entry is one outstanding change-log row (spec §3's Change-log entry).
//
//   - Add carries the full local Payload.
//   - Update carries Payload as the merged field deltas, plus Base, the
//     baseSnapshot retained from the oldest coalesced entry, used for
//     conflict detection on pull.
//   - Remove carries no payload; ID must be set.
type Entry struct {
	Table   string
	LocalID string
	Kind    Kind
	Payload store.Record
	Base    store.Record
	ID      any // remote id; required for Update/Remove once known
	Seq     int64

	RetryCount int
	LastError  string
}

// HasRemoteID reports whether the entry carries a known remote id, the
// gate spec §4.1 imposes before Update/Remove may be pushed.
func (e Entry) HasRemoteID() bool { return e.ID != nil }

// Coalesce merges incoming onto existing per spec §4.1's table. ok is
// false when the result is "entry dropped entirely" (add→remove); err is
// non-nil for the illegal remove→* transition. existing.Seq is always
// preserved so a coalesced entry keeps its original position in the log.
func Coalesce(existing, incoming Entry) (merged Entry, ok bool, err error) {
	switch existing.Kind {
	case Add:
		switch incoming.Kind {
		case Update:
			merged = existing
			merged.Payload = mergePayload(existing.Payload, incoming.Payload)
			return merged, true, nil
		case Remove:
			// The record was never remote; drop entirely (spec §9(i)).
			return Entry{}, false, nil
		case Add:
			merged = existing
			merged.Payload = mergePayload(existing.Payload, incoming.Payload)
			return merged, true, nil
		}
	case Update:
		switch incoming.Kind {
		case Update:
			merged = existing
			merged.Payload = mergePayload(existing.Payload, incoming.Payload)
			// Base retained from the older (existing) entry, per spec.
			return merged, true, nil
		case Remove:
			merged = incoming
			merged.Seq = existing.Seq
			merged.Base = existing.Base
			return merged, true, nil
		}
	case Remove:
		return Entry{}, false, errRemoveIsTerminal
	}
	return Entry{}, false, errIllegalTransition
}

func mergePayload(base, delta store.Record) store.Record {
	out := base.Clone()
	for k, v := range delta {
		out[k] = v
	}
	return out
}

var (
	errRemoveIsTerminal  = removeTerminalError{}
	errIllegalTransition = illegalTransitionError{}
)

type removeTerminalError struct{}

func (removeTerminalError) Error() string {
	return "changelog: remove is terminal, cannot coalesce a further operation onto it"
}

type illegalTransitionError struct{}

func (illegalTransitionError) Error() string {
	return "changelog: illegal coalescing transition"
}
