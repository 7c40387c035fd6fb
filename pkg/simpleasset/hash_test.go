package simpleasset

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashBytes(t *testing.T) {
	h := HashBytes(HashSHA256, []byte("abc"))
	assert.Equal(t, Hash("sha256:ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"), h)
	assert.Equal(t, HashSHA256, h.Algorithm())
	assert.True(t, h.Matches([]byte("abc")))
	assert.False(t, h.Matches([]byte("abd")))

	b := HashBytes(HashBLAKE3, []byte("abc"))
	assert.Equal(t, HashBLAKE3, b.Algorithm())
	assert.Len(t, b.Hex(), 64)
	assert.NotEqual(t, h.Hex(), b.Hex())
	assert.True(t, b.Matches([]byte("abc")))
}

func TestHashReader(t *testing.T) {
	h, n, err := HashReader(HashBLAKE3, strings.NewReader("streamed"))
	require.NoError(t, err)
	assert.Equal(t, int64(8), n)
	assert.Equal(t, HashBytes(HashBLAKE3, []byte("streamed")), h)
}

func TestParseHashAlgorithm(t *testing.T) {
	alg, err := ParseHashAlgorithm("")
	require.NoError(t, err)
	assert.Equal(t, HashSHA256, alg)

	alg, err = ParseHashAlgorithm("BLAKE3")
	require.NoError(t, err)
	assert.Equal(t, HashBLAKE3, alg)

	_, err = ParseHashAlgorithm("md5")
	assert.Error(t, err)
}

func TestParseHash(t *testing.T) {
	valid := HashBytes(HashSHA256, []byte("x"))
	got, err := ParseHash(string(valid))
	require.NoError(t, err)
	assert.Equal(t, valid, got)

	for _, bad := range []string{"", "abcdef", "md5:abcd", "sha256:", "sha256:zz"} {
		_, err := ParseHash(bad)
		assert.Error(t, err, bad)
	}
}
