package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-asset/pkg/simpleasset"
	"github.com/tendant/simple-asset/pkg/simpleasset/repo/file"
	"github.com/tendant/simple-asset/pkg/simpleasset/repo/repotest"
)

func TestFileRepository(t *testing.T) {
	for _, name := range []string{"catalog.cbor", "catalog.json"} {
		t.Run(name, func(t *testing.T) {
			repotest.Run(t, func(t *testing.T) simpleasset.CatalogRepository {
				repo, err := file.Open(filepath.Join(t.TempDir(), name))
				require.NoError(t, err)
				return repo
			})
		})
	}
}

func TestFileRepositoryPersists(t *testing.T) {
	ctx := context.Background()

	for _, name := range []string{"catalog.cbor", "nested/catalog.json"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			shared := simpleasset.NewID()

			repo, err := file.Open(path)
			require.NoError(t, err)
			entry := repotest.Entry("textures/rock.png", shared)
			entry.FormatHint = "texture"
			require.NoError(t, repo.Put(ctx, entry))
			require.NoError(t, repo.Put(ctx, repotest.Entry("textures/rock-copy.png", shared)))
			require.NoError(t, repo.Put(ctx, repotest.Entry("doomed.src", simpleasset.NewID())))
			require.NoError(t, repo.Delete(ctx, "doomed.src"))

			reopened, err := file.Open(path)
			require.NoError(t, err)

			got, err := reopened.Get(ctx, "textures/rock.png")
			require.NoError(t, err)
			assert.Equal(t, shared, got.ID)
			assert.Equal(t, "texture", got.FormatHint)
			assert.Equal(t, entry.SourceHash, got.SourceHash)
			assert.Equal(t, entry.Importer, got.Importer)
			assert.True(t, entry.UpdatedAt.Equal(got.UpdatedAt))

			byID, err := reopened.GetByID(ctx, shared)
			require.NoError(t, err)
			assert.Len(t, byID, 2)

			_, err = reopened.Get(ctx, "doomed.src")
			assert.ErrorIs(t, err, simpleasset.ErrNotFound)
		})
	}
}

func TestFileRepositoryDeterministic(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	a, b := filepath.Join(dir, "a.cbor"), filepath.Join(dir, "b.cbor")
	first, second := simpleasset.NewID(), simpleasset.NewID()

	repoA, err := file.Open(a)
	require.NoError(t, err)
	require.NoError(t, repoA.Put(ctx, repotest.Entry("x.src", first)))
	require.NoError(t, repoA.Put(ctx, repotest.Entry("y.src", second)))

	repoB, err := file.Open(b)
	require.NoError(t, err)
	require.NoError(t, repoB.Put(ctx, repotest.Entry("y.src", second)))
	require.NoError(t, repoB.Put(ctx, repotest.Entry("x.src", first)))

	dataA, err := os.ReadFile(a)
	require.NoError(t, err)
	dataB, err := os.ReadFile(b)
	require.NoError(t, err)
	assert.Equal(t, dataA, dataB)
}

func TestFileRepositoryRejectsBadDocuments(t *testing.T) {
	dir := t.TempDir()

	garbage := filepath.Join(dir, "garbage.json")
	require.NoError(t, os.WriteFile(garbage, []byte("{not json"), 0644))
	_, err := file.Open(garbage)
	assert.Error(t, err)

	future := filepath.Join(dir, "future.json")
	require.NoError(t, os.WriteFile(future, []byte(`{"version": 99, "entries": []}`), 0644))
	_, err = file.Open(future)
	assert.ErrorContains(t, err, "version 99")
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := file.Open("")
	assert.Error(t, err)
}
