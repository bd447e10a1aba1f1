package firstload

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"dync/adapter"
	"dync/record"
	"dync/state"
	"dync/store"
	"dync/store/memstore"
)

type fakePerTableAdapter struct {
	pages      [][]record.Remote
	call       int
	cursorSeen []any
}

func (f *fakePerTableAdapter) Mode() adapter.Mode { return adapter.CRUD }
func (f *fakePerTableAdapter) Push(context.Context, []adapter.PushItem) ([]adapter.PushResult, error) {
	return nil, nil
}
func (f *fakePerTableAdapter) Pull(context.Context, map[string]int64) (map[string][]record.Remote, error) {
	return nil, nil
}
func (f *fakePerTableAdapter) ListExtraIntervalMs(string) int64 { return 0 }

func (f *fakePerTableAdapter) FirstLoadTable(_ context.Context, table string, cursor any) ([]record.Remote, error) {
	f.cursorSeen = append(f.cursorSeen, cursor)
	if f.call >= len(f.pages) {
		return nil, nil
	}
	page := f.pages[f.call]
	f.call++
	return page, nil
}

// TestFirstLoadPaging pins spec §8 scenario S4: 50 records, page size 5.
func TestFirstLoadPaging(t *testing.T) {
	var pages [][]record.Remote
	for p := 0; p < 10; p++ {
		var page []record.Remote
		for i := 0; i < 5; i++ {
			id := p*5 + i + 1
			page = append(page, record.Remote{"id": fmt.Sprint(id), "updated_at": int64(1000 + id), "title": "t"})
		}
		pages = append(pages, page)
	}
	pages = append(pages, nil) // terminating empty page

	a := &fakePerTableAdapter{pages: pages}
	s := memstore.New()
	stateStore, err := state.Open(s)
	require.NoError(t, err)

	d := &Driver{Adapter: a, Store: s, State: stateStore, Tables: []string{"tasks"}}
	var receivedTotal int
	err = d.Run(context.Background(), func(p Progress) { receivedTotal += p.Received })
	require.NoError(t, err)
	require.Equal(t, 50, receivedTotal)
	require.Equal(t, 11, a.call, "10 non-empty pages plus 1 terminating empty call")

	raw, err := s.RawTable("tasks")
	require.NoError(t, err)
	all, err := raw.WhereField(store.UpdatedAtField, store.AboveOrEqual, int64(0)).Count()
	require.NoError(t, err)
	require.Equal(t, 50, all)

	st, err := stateStore.Load()
	require.NoError(t, err)
	require.True(t, st.FirstLoadDone["tasks"])
	require.GreaterOrEqual(t, st.LastPulled["tasks"], int64(1050))
}

func TestFirstLoadResumesFromCursorOnError(t *testing.T) {
	failing := &erroringAdapter{okPages: [][]record.Remote{{{"id": "1", "updated_at": int64(100)}}}}
	s := memstore.New()
	stateStore, err := state.Open(s)
	require.NoError(t, err)

	d := &Driver{Adapter: failing, Store: s, State: stateStore, Tables: []string{"tasks"}}
	err = d.Run(context.Background(), nil)
	require.Error(t, err)

	st, err := stateStore.Load()
	require.NoError(t, err)
	require.False(t, st.FirstLoadDone["tasks"])
	require.Equal(t, "1", st.FirstLoadCursor["tasks"], "cursor preserved across the failed call so the next run resumes")
}

type erroringAdapter struct {
	okPages [][]record.Remote
	call    int
}

func (f *erroringAdapter) Mode() adapter.Mode { return adapter.CRUD }
func (f *erroringAdapter) Push(context.Context, []adapter.PushItem) ([]adapter.PushResult, error) {
	return nil, nil
}
func (f *erroringAdapter) Pull(context.Context, map[string]int64) (map[string][]record.Remote, error) {
	return nil, nil
}
func (f *erroringAdapter) ListExtraIntervalMs(string) int64 { return 0 }

func (f *erroringAdapter) FirstLoadTable(_ context.Context, _ string, _ any) ([]record.Remote, error) {
	if f.call < len(f.okPages) {
		page := f.okPages[f.call]
		f.call++
		return page, nil
	}
	return nil, fmt.Errorf("simulated network failure")
}
