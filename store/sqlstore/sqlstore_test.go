package sqlstore

import (
	"testing"

	"github.com/stretchr/testify/require"

	"dync/store"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAddAndGet(t *testing.T) {
	s := openTestStore(t)
	tbl, err := s.Table("tasks")
	require.NoError(t, err)

	id, err := tbl.Add(store.Record{"title": "a", "priority": 3})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	row, ok, err := tbl.Get(id)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "a", row["title"])
}

func TestUpdateMerges(t *testing.T) {
	s := openTestStore(t)
	tbl, _ := s.Table("tasks")
	id, _ := tbl.Add(store.Record{"title": "a", "completed": false})

	require.NoError(t, tbl.Update(id, store.Record{"completed": true}))
	row, _, _ := tbl.Get(id)
	require.Equal(t, true, row["completed"])
	require.Equal(t, "a", row["title"])
}

func TestDeleteUnknownIsNotFound(t *testing.T) {
	s := openTestStore(t)
	tbl, _ := s.Table("tasks")
	err := tbl.Delete("missing")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestWhereFieldRoundTrip(t *testing.T) {
	s := openTestStore(t)
	tbl, _ := s.Table("tasks")
	tbl.Add(store.Record{"title": "a", "priority": 3.0})
	tbl.Add(store.Record{"title": "b", "priority": 1.0})

	rows, err := tbl.WhereField("priority", store.Above, 2.0).ToArray()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "a", rows[0]["title"])
}

func TestPersistsAcrossTableHandles(t *testing.T) {
	s := openTestStore(t)
	tbl1, _ := s.Table("tasks")
	id, _ := tbl1.Add(store.Record{"title": "a"})

	tbl2, _ := s.RawTable("tasks")
	row, ok, err := tbl2.Get(id)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "a", row["title"])
}

func TestInvalidTableName(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Table("bad; drop table tasks")
	require.Error(t, err)
}

// TestLockDoesNotBlockTableAccess mirrors memstore's: Lock() must guard a
// caller's critical section without deadlocking that caller's own
// RawTable access reentering mid-section (ensureTable uses a separate
// mutex from Lock/Unlock for exactly this reason).
func TestLockDoesNotBlockTableAccess(t *testing.T) {
	s := openTestStore(t)
	s.Lock()
	defer s.Unlock()

	_, err := s.RawTable("tasks")
	require.NoError(t, err)
}
