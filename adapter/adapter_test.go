package adapter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"dync/record"
)

type fakeCRUDTable struct {
	addCalls    []record.Remote
	updateCalls []record.Remote
	removeCalls []any
	listSince   []int64

	addID        any
	addUpdatedAt int64
	updateOK     bool
	updateErr    error
	listResult   []record.Remote
	rateLimitMs  int64
}

func (f *fakeCRUDTable) Add(_ context.Context, local record.Remote) (any, int64, error) {
	f.addCalls = append(f.addCalls, local)
	return f.addID, f.addUpdatedAt, nil
}

func (f *fakeCRUDTable) Update(_ context.Context, _ any, delta, _ record.Remote) (bool, error) {
	f.updateCalls = append(f.updateCalls, delta)
	return f.updateOK, f.updateErr
}

func (f *fakeCRUDTable) Remove(_ context.Context, id any) error {
	f.removeCalls = append(f.removeCalls, id)
	return nil
}

func (f *fakeCRUDTable) List(_ context.Context, since int64) ([]record.Remote, error) {
	f.listSince = append(f.listSince, since)
	return f.listResult, nil
}

func (f *fakeCRUDTable) ListExtraIntervalMs() int64 { return f.rateLimitMs }

func TestCRUDPushAdd(t *testing.T) {
	tbl := &fakeCRUDTable{addID: "R1", addUpdatedAt: 1000}
	a := NewCRUD(map[string]CRUDTable{"tasks": tbl})

	results, err := a.Push(context.Background(), []PushItem{
		{Table: "tasks", Action: ActionAdd, LocalID: "L1", Data: record.Remote{"title": "a"}},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.True(t, results[0].Success)
	require.Equal(t, "R1", results[0].ID)
	require.Equal(t, int64(1000), *results[0].UpdatedAt)
	require.Len(t, tbl.addCalls, 1)
}

func TestCRUDPushUpdateNotFound(t *testing.T) {
	tbl := &fakeCRUDTable{updateOK: false}
	a := NewCRUD(map[string]CRUDTable{"tasks": tbl})

	results, err := a.Push(context.Background(), []PushItem{
		{Table: "tasks", Action: ActionUpdate, LocalID: "L1", ID: "R1", Data: record.Remote{"title": "b"}},
	})
	require.NoError(t, err)
	require.True(t, results[0].NotFound)
	require.False(t, results[0].Success)
}

func TestCRUDPushMissingTableIsProgrammerError(t *testing.T) {
	a := NewCRUD(map[string]CRUDTable{})

	results, err := a.Push(context.Background(), []PushItem{
		{Table: "unknown", Action: ActionAdd, LocalID: "L1"},
	})
	require.NoError(t, err)
	require.Error(t, results[0].Err)
	var missing *ErrMissingAdapterMethod
	require.ErrorAs(t, results[0].Err, &missing)
}

func TestCRUDPullPerTable(t *testing.T) {
	tasks := &fakeCRUDTable{listResult: []record.Remote{{"id": "R1"}}}
	notes := &fakeCRUDTable{listResult: []record.Remote{{"id": "R2"}}}
	a := NewCRUD(map[string]CRUDTable{"tasks": tasks, "notes": notes})

	out, err := a.Pull(context.Background(), map[string]int64{"tasks": 100, "notes": 200})
	require.NoError(t, err)
	require.Len(t, out["tasks"], 1)
	require.Len(t, out["notes"], 1)
	require.Equal(t, []int64{100}, tasks.listSince)
	require.Equal(t, []int64{200}, notes.listSince)
}

func TestCRUDListExtraIntervalMs(t *testing.T) {
	tbl := &fakeCRUDTable{rateLimitMs: 60000}
	a := NewCRUD(map[string]CRUDTable{"tasks": tbl})
	require.Equal(t, int64(60000), a.ListExtraIntervalMs("tasks"))
	require.Equal(t, int64(0), a.ListExtraIntervalMs("unknown"))
}

func TestCRUDFirstLoadTable(t *testing.T) {
	tbl := &fakeCRUDFirstLoadTable{fakeCRUDTable: fakeCRUDTable{}, pages: [][]record.Remote{
		{{"id": "1"}, {"id": "2"}},
		{},
	}}
	a := NewCRUD(map[string]CRUDTable{"tasks": tbl})
	loader, ok := a.(PerTableFirstLoader)
	require.True(t, ok)

	page1, err := loader.FirstLoadTable(context.Background(), "tasks", nil)
	require.NoError(t, err)
	require.Len(t, page1, 2)

	page2, err := loader.FirstLoadTable(context.Background(), "tasks", "2")
	require.NoError(t, err)
	require.Len(t, page2, 0)
}

type fakeCRUDFirstLoadTable struct {
	fakeCRUDTable
	pages [][]record.Remote
	call  int
}

func (f *fakeCRUDFirstLoadTable) FirstLoad(_ context.Context, _ any) ([]record.Remote, error) {
	page := f.pages[f.call]
	f.call++
	return page, nil
}

type fakeBatchBackend struct {
	pushResults []PushResult
	pullResult  map[string][]record.Remote
}

func (f *fakeBatchBackend) Push(_ context.Context, items []PushItem) ([]PushResult, error) {
	return f.pushResults, nil
}

func (f *fakeBatchBackend) Pull(_ context.Context, since map[string]int64) (map[string][]record.Remote, error) {
	return f.pullResult, nil
}

func (f *fakeBatchBackend) FirstLoad(_ context.Context, cursors map[string]any) (map[string][]record.Remote, map[string]any, bool, error) {
	return nil, nil, false, nil
}

func TestBatchAlwaysPulls(t *testing.T) {
	a := NewBatch(&fakeBatchBackend{})
	require.Equal(t, Batch, a.Mode())
	require.Equal(t, int64(0), a.ListExtraIntervalMs("tasks"), "batch mode has no per-table rate limit (spec ambiguity ii)")
}

func TestBatchFirstLoadBatchDelegates(t *testing.T) {
	backend := &fakeBatchBackend{}
	a := NewBatch(backend)
	loader, ok := a.(BatchFirstLoader)
	require.True(t, ok)
	_, _, _, err := loader.FirstLoadBatch(context.Background(), map[string]any{})
	require.NoError(t, err)
}
