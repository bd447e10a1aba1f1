package changelog

import (
	"testing"

	"github.com/stretchr/testify/require"

	"dync/store"
)

func TestCoalesceAddThenUpdate(t *testing.T) {
	existing := Entry{Kind: Add, Payload: store.Record{"title": "a", "completed": false}}
	incoming := Entry{Kind: Update, Payload: store.Record{"title": "b"}}

	merged, ok, err := Coalesce(existing, incoming)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, Add, merged.Kind)
	require.Equal(t, "b", merged.Payload["title"])
	require.Equal(t, false, merged.Payload["completed"])
}

// TestCoalesce_AddRemove_Drops pins down spec §9 ambiguity (i): add→remove
// before the add has ever reached the remote drops the entry entirely.
func TestCoalesce_AddRemove_Drops(t *testing.T) {
	existing := Entry{Kind: Add, Payload: store.Record{"title": "a"}}
	incoming := Entry{Kind: Remove}

	merged, ok, err := Coalesce(existing, incoming)
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, Entry{}, merged)
}

func TestCoalesceUpdateThenUpdate(t *testing.T) {
	existing := Entry{Kind: Update, Base: store.Record{"title": "orig"}, Payload: store.Record{"title": "a"}, Seq: 1}
	incoming := Entry{Kind: Update, Payload: store.Record{"completed": true}, Seq: 2}

	merged, ok, err := Coalesce(existing, incoming)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, Update, merged.Kind)
	require.Equal(t, "a", merged.Payload["title"])
	require.Equal(t, true, merged.Payload["completed"])
	require.Equal(t, "orig", merged.Base["title"], "base snapshot retained from the older entry")
	require.Equal(t, int64(1), merged.Seq, "coalesced entry keeps its original queue position")
}

func TestCoalesceUpdateThenRemove(t *testing.T) {
	existing := Entry{Kind: Update, Seq: 5, ID: "R1", Base: store.Record{"title": "orig"}}
	incoming := Entry{Kind: Remove, ID: "R1"}

	merged, ok, err := Coalesce(existing, incoming)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, Remove, merged.Kind)
	require.Equal(t, int64(5), merged.Seq)
}

func TestCoalesceRemoveIsTerminal(t *testing.T) {
	existing := Entry{Kind: Remove, ID: "R1"}
	incoming := Entry{Kind: Add}

	_, ok, err := Coalesce(existing, incoming)
	require.Error(t, err)
	require.False(t, ok)
}

func TestHasRemoteID(t *testing.T) {
	require.False(t, Entry{}.HasRemoteID())
	require.True(t, Entry{ID: "R1"}.HasRemoteID())
	require.True(t, Entry{ID: 7}.HasRemoteID())
}
