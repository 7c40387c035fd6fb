package simpleasset

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIDIsUniqueAndNonZero(t *testing.T) {
	seen := make(map[ID]struct{})
	for i := 0; i < 1000; i++ {
		id := NewID()
		require.False(t, id.IsZero())
		_, dup := seen[id]
		require.False(t, dup)
		seen[id] = struct{}{}
	}
}

func TestIDEncodings(t *testing.T) {
	id := MustParseID("123e4567-e89b-12d3-a456-426614174000")

	assert.Equal(t, "123e4567-e89b-12d3-a456-426614174000", id.String())
	assert.Equal(t, "123e4567e89b12d3a456426614174000", id.Hex())
	assert.Len(t, id.Bytes(), IDSize)

	fromBytes, err := IDFromBytes(id.Bytes())
	require.NoError(t, err)
	assert.Equal(t, id, fromBytes)

	// Bytes returns a copy.
	b := id.Bytes()
	b[0] = 0xff
	assert.Equal(t, "123e4567-e89b-12d3-a456-426614174000", id.String())

	data, err := json.Marshal(map[string]ID{"id": id})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"123e4567-e89b-12d3-a456-426614174000"}`, string(data))
}

func TestIDParseErrors(t *testing.T) {
	_, err := ParseID("not-an-id")
	assert.Error(t, err)
	_, err = IDFromBytes([]byte{1, 2, 3})
	assert.Error(t, err)
	assert.Panics(t, func() { MustParseID("nope") })

	var id ID
	assert.Error(t, id.UnmarshalText([]byte("nope")))
	assert.Error(t, id.UnmarshalBinary([]byte{1}))
}

func TestSortIDs(t *testing.T) {
	a := MustParseID("00000000-0000-0000-0000-000000000001")
	b := MustParseID("00000000-0000-0000-0000-000000000002")
	c := MustParseID("10000000-0000-0000-0000-000000000000")

	ids := []ID{c, a, b}
	SortIDs(ids)
	assert.Equal(t, []ID{a, b, c}, ids)
	assert.Equal(t, -1, a.Compare(b))
	assert.Equal(t, 0, a.Compare(a))
	assert.True(t, NilID.IsZero())
}
