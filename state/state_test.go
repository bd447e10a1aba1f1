package state

import (
	"testing"

	"github.com/stretchr/testify/require"

	"dync/store/memstore"
)

func TestLoadEmptyReturnsFreshState(t *testing.T) {
	s, err := Open(memstore.New())
	require.NoError(t, err)

	st, err := s.Load()
	require.NoError(t, err)
	require.Empty(t, st.FirstLoadDone)
	require.Empty(t, st.LastPulled)
}

func TestSaveAndLoadRoundTrips(t *testing.T) {
	s, err := Open(memstore.New())
	require.NoError(t, err)

	st := New()
	st.FirstLoadDone["tasks"] = true
	st.LastPulled["tasks"] = 1700000000
	st.FirstLoadCursor["tasks"] = "cursor-42"
	require.NoError(t, s.Save(st))

	loaded, err := s.Load()
	require.NoError(t, err)
	require.True(t, loaded.FirstLoadDone["tasks"])
	require.Equal(t, int64(1700000000), loaded.LastPulled["tasks"])
	require.Equal(t, "cursor-42", loaded.FirstLoadCursor["tasks"])
}

func TestAdvanceLastPulledNeverRegresses(t *testing.T) {
	st := New()
	st.AdvanceLastPulled("tasks", 100)
	st.AdvanceLastPulled("tasks", 50)
	require.Equal(t, int64(100), st.LastPulled["tasks"], "lastPulled must never decrease (spec §3, §9 ambiguity iii)")

	st.AdvanceLastPulled("tasks", 200)
	require.Equal(t, int64(200), st.LastPulled["tasks"])
}

func TestAllTablesFirstLoaded(t *testing.T) {
	st := New()
	st.FirstLoadDone["tasks"] = true
	require.False(t, st.AllTablesFirstLoaded([]string{"tasks", "notes"}))

	st.FirstLoadDone["notes"] = true
	require.True(t, st.AllTablesFirstLoaded([]string{"tasks", "notes"}))
}

func TestSkipFirstLoadMarksDoneWithoutSettingLastPulled(t *testing.T) {
	st := New()
	st.SkipFirstLoad([]string{"tasks", "notes"})
	require.True(t, st.AllTablesFirstLoaded([]string{"tasks", "notes"}))
	_, hasLastPulled := st.LastPulled["tasks"]
	require.False(t, hasLastPulled, "lastPulled stays unset so the next pull uses epoch 0")
}
