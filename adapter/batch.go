package adapter

import (
	"context"

	"dync/record"
)

// BatchBackend is the single coalesced wire contract spec §4.3 describes
// for batch mode: one push/pull/firstLoad endpoint group driving every
// synced table per call.
type BatchBackend interface {
	Push(ctx context.Context, items []PushItem) ([]PushResult, error)
	Pull(ctx context.Context, since map[string]int64) (map[string][]record.Remote, error)
	FirstLoad(ctx context.Context, cursors map[string]any) (data map[string][]record.Remote, nextCursors map[string]any, hasMore bool, err error)
}

type batchAdapter struct {
	backend BatchBackend
}

// NewBatch builds an Adapter in coalesced batch mode.
func NewBatch(backend BatchBackend) Adapter {
	return &batchAdapter{backend: backend}
}

func (a *batchAdapter) Mode() Mode { return Batch }

func (a *batchAdapter) Push(ctx context.Context, items []PushItem) ([]PushResult, error) {
	return a.backend.Push(ctx, items)
}

func (a *batchAdapter) Pull(ctx context.Context, since map[string]int64) (map[string][]record.Remote, error) {
	return a.backend.Pull(ctx, since)
}

// ListExtraIntervalMs is always 0 in batch mode: spec §9 ambiguity (ii)
// resolves listExtraIntervalMs as a per-table-mode-only concept, so batch
// always pulls every cycle.
func (a *batchAdapter) ListExtraIntervalMs(string) int64 { return 0 }

// FirstLoadBatch implements adapter.BatchFirstLoader.
func (a *batchAdapter) FirstLoadBatch(ctx context.Context, cursors map[string]any) (map[string][]record.Remote, map[string]any, bool, error) {
	return a.backend.FirstLoad(ctx, cursors)
}
