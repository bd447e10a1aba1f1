// Package record implements the bidirectional mapping between the local
// record shape (carrying _localId, an optional remote id, and updated_at)
// and the remote wire shape (no _localId, a deleted tombstone flag)
// described in spec §4.2. It is grounded on the UID-remapping and
// boolean-coercion handling in the teacher's backend/sync/manager.go
// (pushCreate rewriting a local UID to the server-assigned one) and
// backend/sqliteBackend.go (sql.NullInt64/NullString round-tripping).
package record

import (
	"encoding/json"
	"reflect"

	"dync/store"
)

// Remote is the wire shape exchanged with the adapter: no _localId, a
// `deleted` tombstone flag, `id` and `updated_at` required.
type Remote map[string]any

const deletedField = "deleted"

// ToRemote strips _localId and any other engine-private fields before a
// record is sent over the wire (spec §4.2, outbound direction).
func ToRemote(local store.Record) Remote {
	out := make(Remote, len(local))
	for k, v := range local {
		if k == store.LocalIDField {
			continue
		}
		out[k] = v
	}
	return out
}

// BoolFields is the set of field names one table's back-end stores as 0/1
// in place of a native boolean column (spec §4.2: "for back-ends that
// cannot natively store booleans"). FromRemote only coerces an integer
// 0/1 to bool for fields named here; every other field passes a genuine
// integer value (a count, a priority, an enum code) through unchanged. A
// nil set coerces nothing.
type BoolFields map[string]bool

// NewBoolFields builds a BoolFields set from field names.
func NewBoolFields(fields ...string) BoolFields {
	out := make(BoolFields, len(fields))
	for _, f := range fields {
		out[f] = true
	}
	return out
}

// FromRemote builds the local record that should replace localID's
// row for a non-tombstone remote record (spec §4.2, inbound direction).
// localID is the _localId to assign: either the one already mapped to
// this remote id, or a newly minted one for records never seen locally.
// boolFields names this table's integer-boolean fields, if any.
func FromRemote(remote Remote, localID string, boolFields BoolFields) store.Record {
	out := make(store.Record, len(remote)+1)
	for k, v := range remote {
		if k == deletedField {
			continue
		}
		if boolFields[k] {
			v = NormalizeBool(v)
		}
		out[k] = v
	}
	out[store.LocalIDField] = localID
	return out
}

// IsTombstone reports whether a remote record instructs local deletion.
func IsTombstone(remote Remote) bool {
	v, ok := remote[deletedField]
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// NormalizeBool coerces a single 0/1 value to false/true. Callers must
// only invoke it on a field already known to be an integer-boolean (see
// BoolFields); applied to an arbitrary field it cannot tell a genuine
// integer 0 or 1 apart from an encoded boolean.
func NormalizeBool(v any) any {
	switch n := v.(type) {
	case int:
		if n == 0 || n == 1 {
			return n == 1
		}
	case int64:
		if n == 0 || n == 1 {
			return n == 1
		}
	case float64:
		if n == 0 || n == 1 {
			return n == 1
		}
	}
	return v
}

// DenormalizeBool converts a bool back to 0/1 for back-ends that cannot
// natively store booleans. Non-bool values pass through unchanged.
func DenormalizeBool(v any) any {
	if b, ok := v.(bool); ok {
		if b {
			return 1
		}
		return 0
	}
	return v
}

// FieldEqual implements the comparator the conflict resolver uses: deep
// equality on scalars, JSON-stringify-equivalence on composites, and a
// strict distinction between null and a missing key — callers must check
// presence separately, since Go map lookups already collapse "missing"
// into the zero value (nil) for `any`. FieldEqual itself only compares two
// present values.
func FieldEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if reflect.DeepEqual(a, b) {
		return true
	}
	// Composite values (slices, maps) may differ in concrete numeric type
	// (float64 vs int) after a JSON round trip; compare their canonical
	// JSON encoding instead of failing on representation differences.
	aj, aerr := json.Marshal(a)
	bj, berr := json.Marshal(b)
	if aerr != nil || berr != nil {
		return false
	}
	return string(aj) == string(bj)
}
