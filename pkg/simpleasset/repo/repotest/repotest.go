// Package repotest holds the behavior every CatalogRepository must share.
package repotest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-asset/pkg/simpleasset"
)

// Entry builds a catalog entry for tests.
func Entry(path string, id simpleasset.ID) *simpleasset.CatalogEntry {
	return &simpleasset.CatalogEntry{
		Path:       path,
		ID:         id,
		SourceHash: simpleasset.HashBytes(simpleasset.HashSHA256, []byte(path)),
		Importer:   simpleasset.ImporterIdentity{Name: "text", Version: "1.0.0"},
		UpdatedAt:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

// Run exercises repo through the CatalogRepository contract. newRepo must
// return an empty repository.
func Run(t *testing.T, newRepo func(t *testing.T) simpleasset.CatalogRepository) {
	ctx := context.Background()

	t.Run("PutGet", func(t *testing.T) {
		repo := newRepo(t)
		entry := Entry("models/ship.src", simpleasset.NewID())
		entry.FormatHint = "mesh"

		require.NoError(t, repo.Put(ctx, entry))

		got, err := repo.Get(ctx, entry.Path)
		require.NoError(t, err)
		assert.Equal(t, entry.Path, got.Path)
		assert.Equal(t, entry.FormatHint, got.FormatHint)
		assert.Equal(t, entry.ID, got.ID)
		assert.Equal(t, entry.SourceHash, got.SourceHash)
		assert.Equal(t, entry.Importer, got.Importer)
		assert.True(t, entry.UpdatedAt.Equal(got.UpdatedAt))
	})

	t.Run("GetMissing", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.Get(ctx, "nope")
		assert.ErrorIs(t, err, simpleasset.ErrNotFound)

		_, err = repo.GetByID(ctx, simpleasset.NewID())
		assert.ErrorIs(t, err, simpleasset.ErrNotFound)
	})

	t.Run("PutReplaces", func(t *testing.T) {
		repo := newRepo(t)
		first, second := simpleasset.NewID(), simpleasset.NewID()

		require.NoError(t, repo.Put(ctx, Entry("a.src", first)))
		require.NoError(t, repo.Put(ctx, Entry("a.src", second)))

		got, err := repo.Get(ctx, "a.src")
		require.NoError(t, err)
		assert.Equal(t, second, got.ID)

		_, err = repo.GetByID(ctx, first)
		assert.ErrorIs(t, err, simpleasset.ErrNotFound, "reverse index follows replacement")
	})

	t.Run("GetByIDShared", func(t *testing.T) {
		repo := newRepo(t)
		id := simpleasset.NewID()
		require.NoError(t, repo.Put(ctx, Entry("b.src", id)))
		require.NoError(t, repo.Put(ctx, Entry("a.src", id)))
		require.NoError(t, repo.Put(ctx, Entry("c.src", simpleasset.NewID())))

		entries, err := repo.GetByID(ctx, id)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "a.src", entries[0].Path)
		assert.Equal(t, "b.src", entries[1].Path)
	})

	t.Run("Delete", func(t *testing.T) {
		repo := newRepo(t)
		id := simpleasset.NewID()
		require.NoError(t, repo.Put(ctx, Entry("gone.src", id)))

		require.NoError(t, repo.Delete(ctx, "gone.src"))

		_, err := repo.Get(ctx, "gone.src")
		assert.ErrorIs(t, err, simpleasset.ErrNotFound)
		_, err = repo.GetByID(ctx, id)
		assert.ErrorIs(t, err, simpleasset.ErrNotFound)

		err = repo.Delete(ctx, "gone.src")
		assert.ErrorIs(t, err, simpleasset.ErrNotFound)
	})

	t.Run("ListSortedByPath", func(t *testing.T) {
		repo := newRepo(t)
		for _, p := range []string{"z.src", "a.src", "m/b.src"} {
			require.NoError(t, repo.Put(ctx, Entry(p, simpleasset.NewID())))
		}

		entries, err := repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, entries, 3)
		assert.Equal(t, "a.src", entries[0].Path)
		assert.Equal(t, "m/b.src", entries[1].Path)
		assert.Equal(t, "z.src", entries[2].Path)
	})

	t.Run("ReturnsCopies", func(t *testing.T) {
		repo := newRepo(t)
		entry := Entry("x.src", simpleasset.NewID())
		entry.Dependencies = []simpleasset.Dependency{{Path: "y.src", ID: simpleasset.NewID()}}
		require.NoError(t, repo.Put(ctx, entry))

		got, err := repo.Get(ctx, "x.src")
		require.NoError(t, err)
		got.FormatHint = "mutated"
		got.Dependencies[0].Path = "mutated"

		again, err := repo.Get(ctx, "x.src")
		require.NoError(t, err)
		assert.Empty(t, again.FormatHint)
		assert.Equal(t, "y.src", again.Dependencies[0].Path)
	})

	t.Run("Dependencies", func(t *testing.T) {
		repo := newRepo(t)
		deps := []simpleasset.Dependency{
			{Path: "textures/hull.src", ID: simpleasset.NewID()},
			{Path: "textures/sail.src", FormatHint: "image", ID: simpleasset.NewID()},
		}
		entry := Entry("models/ship.src", simpleasset.NewID())
		entry.Dependencies = deps
		require.NoError(t, repo.Put(ctx, entry))
		require.NoError(t, repo.Put(ctx, Entry("plain.src", simpleasset.NewID())))

		got, err := repo.Get(ctx, "models/ship.src")
		require.NoError(t, err)
		assert.Equal(t, deps, got.Dependencies)

		plain, err := repo.Get(ctx, "plain.src")
		require.NoError(t, err)
		assert.Empty(t, plain.Dependencies)

		entry.Dependencies = nil
		require.NoError(t, repo.Put(ctx, entry))
		got, err = repo.Get(ctx, "models/ship.src")
		require.NoError(t, err)
		assert.Empty(t, got.Dependencies)
	})
}
