package store_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-asset/pkg/simpleasset"
	"github.com/tendant/simple-asset/pkg/simpleasset/objectkey"
	"github.com/tendant/simple-asset/pkg/simpleasset/storage/compress"
	fsstorage "github.com/tendant/simple-asset/pkg/simpleasset/storage/fs"
	memorystorage "github.com/tendant/simple-asset/pkg/simpleasset/storage/memory"
	"github.com/tendant/simple-asset/pkg/simpleasset/store"
)

func setupTestStore(t *testing.T, opts ...store.Option) (*store.Store, *memorystorage.Backend) {
	t.Helper()
	blobs := memorystorage.New()
	s, err := store.New(blobs, opts...)
	require.NoError(t, err)
	return s, blobs
}

func TestPutGetRoundTrip(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		data   []byte
		format string
	}{
		{"text", []byte("ARTIFACT:123"), "text"},
		{"empty", []byte{}, "empty"},
		{"binary", bytes.Repeat([]byte{0x00, 0xff, 0x10}, 4096), "mesh"},
	}

	for _, alg := range []simpleasset.HashAlgorithm{simpleasset.HashSHA256, simpleasset.HashBLAKE3} {
		s, _ := setupTestStore(t, store.WithHashAlgorithm(alg))
		for _, tt := range tests {
			t.Run(string(alg)+"/"+tt.name, func(t *testing.T) {
				rec, err := s.Put(ctx, bytes.NewReader(tt.data), tt.format)
				require.NoError(t, err)
				assert.False(t, rec.ID.IsZero())
				assert.Equal(t, tt.format, rec.Format)
				assert.Equal(t, int64(len(tt.data)), rec.Size)
				assert.Equal(t, alg, rec.Hash.Algorithm())

				data, got, err := s.Get(ctx, rec.ID)
				require.NoError(t, err)
				assert.Equal(t, tt.data, data)
				assert.Equal(t, rec.ID, got.ID)
				assert.Equal(t, rec.Hash, got.Hash)
			})
		}
	}
}

func TestPutIdenticalContentSharesID(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()

	a, err := s.Put(ctx, strings.NewReader("same"), "text")
	require.NoError(t, err)
	b, err := s.Put(ctx, strings.NewReader("same"), "text")
	require.NoError(t, err)
	assert.Equal(t, a.ID, b.ID)

	c, err := s.Put(ctx, strings.NewReader("same"), "binary")
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, c.ID, "format is part of artifact identity")

	d, err := s.Put(ctx, strings.NewReader("different"), "text")
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, d.ID)
}

func TestConcurrentIdenticalPuts(t *testing.T) {
	s, blobs := setupTestStore(t)
	ctx := context.Background()

	const n = 16
	ids := make([]simpleasset.ID, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec, err := s.Put(ctx, strings.NewReader("contended"), "text")
			assert.NoError(t, err)
			ids[i] = rec.ID
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	keys, err := blobs.List(ctx, "artifacts/")
	require.NoError(t, err)
	assert.Len(t, keys, 2, "one artifact and one sidecar")
}

func TestCorruptionDetected(t *testing.T) {
	s, blobs := setupTestStore(t)
	ctx := context.Background()

	rec, err := s.Put(ctx, strings.NewReader("pristine bytes"), "text")
	require.NoError(t, err)

	flipped := blobs.Tamper(rec.Location, func(b []byte) []byte {
		b[0] ^= 0x01
		return b
	})
	require.True(t, flipped)

	_, _, err = s.Get(ctx, rec.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, simpleasset.ErrCorrupt))

	var storeErr *simpleasset.StoreError
	require.True(t, errors.As(err, &storeErr))
	assert.Equal(t, rec.ID, storeErr.ID)
}

func TestTruncationAndExtensionDetected(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func([]byte) []byte
	}{
		{"truncated", func(b []byte) []byte { return b[:len(b)-1] }},
		{"extended", func(b []byte) []byte { return append(b, '!') }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, blobs := setupTestStore(t)
			rec, err := s.Put(ctx, strings.NewReader("some artifact"), "text")
			require.NoError(t, err)
			require.True(t, blobs.Tamper(rec.Location, tt.mutate))

			rc, _, err := s.Open(ctx, rec.ID)
			require.NoError(t, err)
			defer rc.Close()
			_, err = io.ReadAll(rc)
			assert.ErrorIs(t, err, simpleasset.ErrCorrupt)
		})
	}
}

func TestMissingBytesIsCorrupt(t *testing.T) {
	s, blobs := setupTestStore(t)
	ctx := context.Background()

	rec, err := s.Put(ctx, strings.NewReader("data"), "text")
	require.NoError(t, err)
	require.NoError(t, blobs.Delete(ctx, rec.Location))

	_, _, err = s.Get(ctx, rec.ID)
	assert.ErrorIs(t, err, simpleasset.ErrCorrupt)
}

func TestUnknownIDNotFound(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()
	id := simpleasset.NewID()

	_, _, err := s.Get(ctx, id)
	assert.ErrorIs(t, err, simpleasset.ErrNotFound)

	_, err = s.Stat(ctx, id)
	assert.ErrorIs(t, err, simpleasset.ErrNotFound)

	assert.False(t, s.Exists(ctx, id))
}

func TestDeleteIsIdempotentAndNeverReusesIDs(t *testing.T) {
	s, blobs := setupTestStore(t)
	ctx := context.Background()

	rec, err := s.Put(ctx, strings.NewReader("ephemeral"), "text")
	require.NoError(t, err)
	require.True(t, s.Exists(ctx, rec.ID))

	require.NoError(t, s.Delete(ctx, rec.ID))
	assert.False(t, s.Exists(ctx, rec.ID))
	require.NoError(t, s.Delete(ctx, rec.ID))
	require.NoError(t, s.Delete(ctx, simpleasset.NewID()))

	keys, err := blobs.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, keys, "artifact, sidecar and index removed")

	again, err := s.Put(ctx, strings.NewReader("ephemeral"), "text")
	require.NoError(t, err)
	assert.NotEqual(t, rec.ID, again.ID)
}

func TestListOrderedByID(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()

	var want []simpleasset.ID
	for _, body := range []string{"a", "b", "c", "d"} {
		rec, err := s.Put(ctx, strings.NewReader(body), "text")
		require.NoError(t, err)
		want = append(want, rec.ID)
	}
	simpleasset.SortIDs(want)

	records, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, len(want))
	for i, rec := range records {
		assert.Equal(t, want[i], rec.ID)
	}
}

func TestStatSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	blobs, err := fsstorage.New(fsstorage.Config{BaseDir: dir, NoSync: true})
	require.NoError(t, err)
	first, err := store.New(compress.Wrap(blobs, compress.CodecZstd))
	require.NoError(t, err)

	rec, err := first.Put(ctx, strings.NewReader(strings.Repeat("persist ", 100)), "text")
	require.NoError(t, err)

	blobs, err = fsstorage.New(fsstorage.Config{BaseDir: dir, NoSync: true})
	require.NoError(t, err)
	second, err := store.New(compress.Wrap(blobs, compress.CodecZstd))
	require.NoError(t, err)

	data, got, err := second.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.Hash, got.Hash)
	assert.Equal(t, strings.Repeat("persist ", 100), string(data))

	dup, err := second.Put(ctx, strings.NewReader(strings.Repeat("persist ", 100)), "text")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, dup.ID)
}

func TestFlatKeyLayout(t *testing.T) {
	s, blobs := setupTestStore(t, store.WithKeyGenerator(objectkey.NewFlatGenerator()))
	ctx := context.Background()

	rec, err := s.Put(ctx, strings.NewReader("flat"), "text")
	require.NoError(t, err)
	assert.Equal(t, "artifacts/"+rec.ID.Hex(), rec.Location)

	_, err = blobs.GetObjectMeta(ctx, rec.Location+objectkey.MetaSuffix)
	assert.NoError(t, err)
}

func TestNewRequiresBlobStore(t *testing.T) {
	_, err := store.New(nil)
	assert.Error(t, err)
}

func TestStoredSize(t *testing.T) {
	ctx := context.Background()
	data := bytes.Repeat([]byte("tile"), 4096)

	plain, _ := setupTestStore(t)
	rec, err := plain.Put(ctx, bytes.NewReader(data), "tiles")
	require.NoError(t, err)
	size, err := plain.StoredSize(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.Size, size)

	compressed, err := store.New(compress.Wrap(memorystorage.New(), compress.CodecZstd))
	require.NoError(t, err)
	rec, err = compressed.Put(ctx, bytes.NewReader(data), "tiles")
	require.NoError(t, err)
	size, err = compressed.StoredSize(ctx, rec.ID)
	require.NoError(t, err)
	assert.Less(t, size, rec.Size, "the backend holds the compressed bytes")

	_, err = compressed.StoredSize(ctx, simpleasset.NewID())
	assert.ErrorIs(t, err, simpleasset.ErrNotFound)
}
