package record

import (
	"testing"

	"github.com/stretchr/testify/require"

	"dync/store"
)

func TestToRemoteStripsLocalID(t *testing.T) {
	local := store.Record{store.LocalIDField: "L1", "title": "a", "id": "R1"}
	remote := ToRemote(local)

	_, hasLocalID := remote[store.LocalIDField]
	require.False(t, hasLocalID)
	require.Equal(t, "a", remote["title"])
	require.Equal(t, "R1", remote["id"])
}

func TestFromRemoteStripsDeletedAndAssignsLocalID(t *testing.T) {
	remote := Remote{"id": "R1", "title": "a", "deleted": false}
	local := FromRemote(remote, "L1", nil)

	require.Equal(t, "L1", local[store.LocalIDField])
	require.Equal(t, "a", local["title"])
	_, hasDeleted := local[deletedField]
	require.False(t, hasDeleted)
}

func TestFromRemoteOnlyCoercesDeclaredBoolFields(t *testing.T) {
	remote := Remote{"id": "R1", "done": 1, "priority": 0}
	local := FromRemote(remote, "L1", NewBoolFields("done"))

	require.Equal(t, true, local["done"])
	require.Equal(t, 0, local["priority"])
}

func TestIsTombstone(t *testing.T) {
	require.True(t, IsTombstone(Remote{"deleted": true}))
	require.False(t, IsTombstone(Remote{"deleted": false}))
	require.False(t, IsTombstone(Remote{}))
}

func TestNormalizeBoolRehydratesIntegers(t *testing.T) {
	require.Equal(t, false, NormalizeBool(0))
	require.Equal(t, true, NormalizeBool(1))
	require.Equal(t, "x", NormalizeBool("x"))
}

func TestDenormalizeBoolRoundTrips(t *testing.T) {
	require.Equal(t, 1, DenormalizeBool(true))
	require.Equal(t, 0, DenormalizeBool(false))
}

func TestFieldEqualDistinguishesNullFromValues(t *testing.T) {
	require.True(t, FieldEqual(nil, nil))
	require.False(t, FieldEqual(nil, 0))
	require.True(t, FieldEqual("a", "a"))
	require.False(t, FieldEqual("a", "b"))
}

func TestFieldEqualCompositeValues(t *testing.T) {
	a := []any{"x", "y"}
	b := []any{"x", "y"}
	require.True(t, FieldEqual(a, b))

	c := map[string]any{"k": float64(1)}
	d := map[string]any{"k": 1}
	require.True(t, FieldEqual(c, d))
}
