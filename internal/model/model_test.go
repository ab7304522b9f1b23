package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeShallow_LocalWins(t *testing.T) {
	local := Payload{"a": 1, "b": 2}
	remote := Payload{"b": 3, "c": 4}

	merged := MergeShallow(remote, local)

	assert.Equal(t, Payload{"a": 1, "b": 2, "c": 4}, merged)
	// Inputs untouched.
	assert.Equal(t, Payload{"a": 1, "b": 2}, local)
	assert.Equal(t, Payload{"b": 3, "c": 4}, remote)
}

func TestMergeShallow_NestedReplacedNotMerged(t *testing.T) {
	local := Payload{"meta": map[string]any{"x": 1}}
	remote := Payload{"meta": map[string]any{"y": 2}}

	merged := MergeShallow(remote, local)

	assert.Equal(t, map[string]any{"x": 1}, merged["meta"])
}

func TestParseItemType(t *testing.T) {
	for _, typ := range ItemTypes {
		got, err := ParseItemType(string(typ))
		require.NoError(t, err)
		assert.Equal(t, typ, got)
	}

	_, err := ParseItemType("lesson")
	assert.Error(t, err)
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyManual, p)

	p, err = ParsePolicy("merge")
	require.NoError(t, err)
	assert.Equal(t, PolicyMerge, p)
	assert.True(t, p.IsAuto())
	assert.False(t, PolicyManual.IsAuto())

	_, err = ParsePolicy("newest")
	assert.Error(t, err)
}

func TestSyncItemRecordKey(t *testing.T) {
	item := SyncItem{ID: "item-1", Payload: Payload{"id": "bm-7"}}
	assert.Equal(t, "bm-7", item.RecordKey())

	item.Payload = Payload{"id": float64(12)}
	assert.Equal(t, "12", item.RecordKey())

	item.Payload = Payload{"title": "no id"}
	assert.Equal(t, "item-1", item.RecordKey())
}

func TestSyncItemClone_IndependentPayload(t *testing.T) {
	item := SyncItem{ID: "a", Payload: Payload{"k": "v"}}
	clone := item.Clone()
	clone.Payload["k"] = "changed"

	assert.Equal(t, "v", item.Payload["k"])
}

func TestFingerprint_StableAcrossKeyOrderAndNumberShape(t *testing.T) {
	var decoded Payload
	require.NoError(t, json.Unmarshal([]byte(`{"b":2,"a":1}`), &decoded))

	f1, err := Fingerprint(decoded)
	require.NoError(t, err)
	f2, err := Fingerprint(Payload{"a": 1, "b": 2})
	require.NoError(t, err)

	assert.Equal(t, f1, f2)
	assert.Len(t, f1, 64)
	assert.True(t, PayloadsEqual(decoded, Payload{"a": 1, "b": 2}))
	assert.False(t, PayloadsEqual(decoded, Payload{"a": 1}))
}

func TestConflictID_Deterministic(t *testing.T) {
	id1, err := ConflictID("item-1", Payload{"score": 3})
	require.NoError(t, err)
	id2, err := ConflictID("item-1", Payload{"score": 3})
	require.NoError(t, err)
	id3, err := ConflictID("item-1", Payload{"score": 4})
	require.NoError(t, err)
	id4, err := ConflictID("item-2", Payload{"score": 3})
	require.NoError(t, err)

	assert.Equal(t, id1, id2)
	assert.NotEqual(t, id1, id3)
	assert.NotEqual(t, id1, id4)
}

func TestSyncResultJSON_EmptySlicesNotNull(t *testing.T) {
	data, err := json.Marshal(NewSyncResult(mustTime(t, "2026-01-02T03:04:05Z")))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"conflicts":[]`)
	assert.Contains(t, string(data), `"errors":[]`)
	assert.Contains(t, string(data), `"success":true`)
}
