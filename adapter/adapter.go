// Package adapter normalizes the two remote wire styles spec §4.3
// describes — per-table CRUD and coalesced batch — behind one interface
// the controller drives without knowing which style is underneath.
//
// Grounded on the teacher's backend.TaskBackend abstraction
// (backend/registry.go, backend/nextcloud/backend.go): one inward
// interface, multiple concrete wire implementations selected at
// construction and never switched at runtime.
package adapter

import (
	"context"
	"fmt"

	"dync/record"
)

// Mode is fixed at construction (spec §4.3: "one of two modes ... is
// immutable").
type Mode int

const (
	CRUD Mode = iota
	Batch
)

func (m Mode) String() string {
	if m == Batch {
		return "batch"
	}
	return "crud"
}

// Action discriminates the three push operations a change-log entry can
// carry onto the wire.
type Action string

const (
	ActionAdd    Action = "add"
	ActionUpdate Action = "update"
	ActionRemove Action = "remove"
)

// PushItem is one outstanding change-log entry translated for the wire.
// Data is the full payload for Add, the merged field delta for Update,
// and unused for Remove.
type PushItem struct {
	Table   string
	Action  Action
	LocalID string
	ID      any
	Data    record.Remote
}

// PushResult answers one PushItem, same order as the request (spec
// §4.3's batch push contract; per-table CRUD results are normalized into
// the same shape).
type PushResult struct {
	LocalID   string
	Success   bool
	NotFound  bool // definite "no such remote record" on update (spec §4.7)
	ID        any
	UpdatedAt *int64
	Err       error
}

// Adapter is the controller-facing surface (spec §4.3). Push and Pull
// operate uniformly regardless of Mode; PerTableFirstLoader and
// BatchFirstLoader below are type-asserted by the first-load driver because its calling convention
// genuinely differs between modes (one table at a time vs. one call
// driving all tables).
type Adapter interface {
	Mode() Mode

	// Push sends items in order and returns one PushResult per item, same
	// order, same length.
	Push(ctx context.Context, items []PushItem) ([]PushResult, error)

	// Pull fetches records changed since the given per-table timestamp
	// (strict >, per spec §4.3), including tombstones.
	Pull(ctx context.Context, since map[string]int64) (map[string][]record.Remote, error)

	// ListExtraIntervalMs returns the minimum wall-clock gap the
	// controller must respect between pulls of table, or 0 if the
	// adapter always wants to pull (batch mode; spec §9 ambiguity ii).
	ListExtraIntervalMs(table string) int64
}

// PerTableFirstLoader is implemented by CRUD-mode adapters: one table at
// a time, terminated by an empty page (spec §4.6).
type PerTableFirstLoader interface {
	FirstLoadTable(ctx context.Context, table string, cursor any) ([]record.Remote, error)
}

// BatchFirstLoader is implemented by batch-mode adapters: one call drives
// every table, terminated by hasMore=false (spec §4.6).
type BatchFirstLoader interface {
	FirstLoadBatch(ctx context.Context, cursors map[string]any) (data map[string][]record.Remote, nextCursors map[string]any, hasMore bool, err error)
}

// ErrMissingAdapterMethod is a ProgrammerError-class failure (spec §7): a
// table was configured for sync but the underlying adapter exposes no
// implementation for it.
type ErrMissingAdapterMethod struct {
	Table string
	Op    string
}

func (e *ErrMissingAdapterMethod) Error() string {
	return fmt.Sprintf("adapter: table %q has no %s implementation", e.Table, e.Op)
}
