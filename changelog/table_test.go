package changelog

import (
	"testing"

	"github.com/stretchr/testify/require"

	"dync/eventbus"
	"dync/store"
	"dync/store/memstore"
)

func newTestTable(t *testing.T) (*Table, *Log, store.RawTable, *eventbus.Bus) {
	t.Helper()
	s := memstore.New()
	log, err := Open(s, ReservedTable)
	require.NoError(t, err)
	raw, err := s.RawTable("tasks")
	require.NoError(t, err)
	bus := eventbus.New()
	return NewTable("tasks", raw, log, bus), log, raw, bus
}

func TestTableAddEnqueuesAddWithFullPayload(t *testing.T) {
	tbl, log, _, _ := newTestTable(t)

	localID, err := tbl.Add(store.Record{"title": "a"})
	require.NoError(t, err)

	pending, found, err := log.Pending("tasks", localID)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, Add, pending.Kind)
	require.Equal(t, "a", pending.Payload["title"])
}

func TestTableUpdateWithNoPendingEntryCarriesKnownRemoteID(t *testing.T) {
	tbl, log, raw, _ := newTestTable(t)

	localID, err := tbl.Add(store.Record{"title": "a"})
	require.NoError(t, err)

	// Simulate a prior cycle having acked the add and stamped the
	// server id, clearing the log of any pending entry.
	require.NoError(t, log.Ack(Entry{Table: "tasks", LocalID: localID}, AckOutcome{ID: "server-1"}))
	length, err := log.Length()
	require.NoError(t, err)
	require.Equal(t, 0, length)

	require.NoError(t, tbl.Update(localID, store.Record{"title": "b"}))

	// Head must consider the fresh update eligible, since Update carries
	// the id raw.Get found before raw.Update ran.
	head, err := log.Head(0)
	require.NoError(t, err)
	require.Len(t, head, 1)
	require.Equal(t, Update, head[0].Kind)
	require.Equal(t, "server-1", head[0].ID)

	row, found, err := raw.Get(localID)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "b", row["title"])
}

func TestTableUpdateWithNoRemoteIDYetCoalescesOntoPendingAdd(t *testing.T) {
	tbl, log, _, _ := newTestTable(t)

	localID, err := tbl.Add(store.Record{"title": "a"})
	require.NoError(t, err)
	require.NoError(t, tbl.Update(localID, store.Record{"title": "b"}))

	// The Add itself hasn't been pushed, so the Update coalesces onto it
	// rather than standing alone: one entry, still Add, merged payload.
	head, err := log.Head(0)
	require.NoError(t, err)
	require.Len(t, head, 1)
	require.Equal(t, Add, head[0].Kind)
	require.Equal(t, "b", head[0].Payload["title"])
}

func TestTableDeletePublishesRemoved(t *testing.T) {
	tbl, _, _, bus := newTestTable(t)

	localID, err := tbl.Add(store.Record{"title": "a"})
	require.NoError(t, err)

	var gotKind eventbus.Kind
	unsub := bus.Subscribe("tasks", func(ev eventbus.MutationEvent) {
		if ev.LocalID == localID {
			gotKind = ev.Kind
		}
	})
	defer unsub()

	require.NoError(t, tbl.Delete(localID))
	require.Equal(t, eventbus.Removed, gotKind)
}

func TestCollectionModifyRoutesThroughSyncAwarePath(t *testing.T) {
	tbl, log, _, _ := newTestTable(t)

	localID, err := tbl.Add(store.Record{"title": "a", "done": false})
	require.NoError(t, err)
	require.NoError(t, log.Ack(Entry{Table: "tasks", LocalID: localID}, AckOutcome{ID: "server-1"}))

	err = tbl.WhereField("done", store.Equals, false).Modify(func(r store.Record) store.Record {
		r["done"] = true
		return r
	})
	require.NoError(t, err)

	pending, found, err := log.Pending("tasks", localID)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, Update, pending.Kind)
	require.Equal(t, "server-1", pending.ID)
}
