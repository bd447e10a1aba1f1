package adapter

import (
	"context"

	"dync/record"
)

// CRUDTable is the per-table wire contract spec §4.3 describes. Add,
// Update and Remove are required; FirstLoad and ListExtraIntervalMs are
// optional and detected via type assertion on the concrete table value
// passed to NewCRUD.
type CRUDTable interface {
	Add(ctx context.Context, local record.Remote) (id any, updatedAt int64, err error)
	// Update reports ok=false for a definite "no such remote record"
	// (spec §4.3). The CRUD adapter passes the same merged field delta as
	// both delta and full; the record's complete local payload is not
	// passed to Update.
	Update(ctx context.Context, id any, delta, full record.Remote) (ok bool, err error)
	Remove(ctx context.Context, id any) error
	List(ctx context.Context, sinceTimestamp int64) ([]record.Remote, error)
}

// CRUDFirstLoader is the optional first-load capability of a CRUDTable
// (spec §4.3: "optional firstLoad(cursor)").
type CRUDFirstLoader interface {
	FirstLoad(ctx context.Context, cursor any) ([]record.Remote, error)
}

// CRUDRateLimited is the optional listExtraIntervalMs capability (spec
// §4.3, only meaningful in per-table mode).
type CRUDRateLimited interface {
	ListExtraIntervalMs() int64
}

type crudAdapter struct {
	tables map[string]CRUDTable
}

// NewCRUD builds an Adapter in per-table CRUD mode, one CRUDTable per
// synced table name.
func NewCRUD(tables map[string]CRUDTable) Adapter {
	return &crudAdapter{tables: tables}
}

func (a *crudAdapter) Mode() Mode { return CRUD }

func (a *crudAdapter) table(name string) (CRUDTable, bool) {
	t, ok := a.tables[name]
	return t, ok
}

func (a *crudAdapter) Push(ctx context.Context, items []PushItem) ([]PushResult, error) {
	results := make([]PushResult, len(items))
	for i, item := range items {
		tbl, ok := a.table(item.Table)
		if !ok {
			results[i] = PushResult{LocalID: item.LocalID, Err: &ErrMissingAdapterMethod{Table: item.Table, Op: string(item.Action)}}
			continue
		}
		results[i] = a.pushOne(ctx, tbl, item)
	}
	return results, nil
}

func (a *crudAdapter) pushOne(ctx context.Context, tbl CRUDTable, item PushItem) PushResult {
	switch item.Action {
	case ActionAdd:
		id, updatedAt, err := tbl.Add(ctx, item.Data)
		if err != nil {
			return PushResult{LocalID: item.LocalID, Err: err}
		}
		return PushResult{LocalID: item.LocalID, Success: true, ID: id, UpdatedAt: &updatedAt}
	case ActionUpdate:
		ok, err := tbl.Update(ctx, item.ID, item.Data, item.Data)
		if err != nil {
			return PushResult{LocalID: item.LocalID, Err: err}
		}
		if !ok {
			return PushResult{LocalID: item.LocalID, NotFound: true}
		}
		return PushResult{LocalID: item.LocalID, Success: true}
	case ActionRemove:
		if err := tbl.Remove(ctx, item.ID); err != nil {
			return PushResult{LocalID: item.LocalID, Err: err}
		}
		return PushResult{LocalID: item.LocalID, Success: true}
	default:
		return PushResult{LocalID: item.LocalID, Err: &ErrMissingAdapterMethod{Table: item.Table, Op: string(item.Action)}}
	}
}

func (a *crudAdapter) Pull(ctx context.Context, since map[string]int64) (map[string][]record.Remote, error) {
	out := make(map[string][]record.Remote, len(a.tables))
	for name, tbl := range a.tables {
		records, err := tbl.List(ctx, since[name])
		if err != nil {
			return nil, err
		}
		out[name] = records
	}
	return out, nil
}

func (a *crudAdapter) ListExtraIntervalMs(table string) int64 {
	tbl, ok := a.table(table)
	if !ok {
		return 0
	}
	if rl, ok := tbl.(CRUDRateLimited); ok {
		return rl.ListExtraIntervalMs()
	}
	return 0
}

// FirstLoadTable implements adapter.PerTableFirstLoader.
func (a *crudAdapter) FirstLoadTable(ctx context.Context, table string, cursor any) ([]record.Remote, error) {
	tbl, ok := a.table(table)
	if !ok {
		return nil, &ErrMissingAdapterMethod{Table: table, Op: "firstLoad"}
	}
	loader, ok := tbl.(CRUDFirstLoader)
	if !ok {
		return nil, &ErrMissingAdapterMethod{Table: table, Op: "firstLoad"}
	}
	return loader.FirstLoad(ctx, cursor)
}
