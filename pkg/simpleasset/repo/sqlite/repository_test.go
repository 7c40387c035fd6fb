package sqlite_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-asset/pkg/simpleasset"
	"github.com/tendant/simple-asset/pkg/simpleasset/repo/repotest"
	"github.com/tendant/simple-asset/pkg/simpleasset/repo/sqlite"
)

func openTestRepo(t *testing.T, path string) *sqlite.Repository {
	t.Helper()
	repo, err := sqlite.Open(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestSQLiteRepository(t *testing.T) {
	repotest.Run(t, func(t *testing.T) simpleasset.CatalogRepository {
		return openTestRepo(t, filepath.Join(t.TempDir(), "catalog.db"))
	})
}

func TestSQLiteRepositoryPersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "catalog.db")
	id := simpleasset.NewID()

	first, err := sqlite.Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, first.Put(ctx, repotest.Entry("audio/boom.wav", id)))
	require.NoError(t, first.Close())

	second := openTestRepo(t, path)
	got, err := second.Get(ctx, "audio/boom.wav")
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
}

func TestSQLiteRepositoryAddsDependenciesColumn(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "catalog.db")

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `
	CREATE TABLE asset_catalog (
		path TEXT PRIMARY KEY,
		format_hint TEXT NOT NULL DEFAULT '',
		artifact_id TEXT NOT NULL,
		source_hash TEXT NOT NULL,
		importer_name TEXT NOT NULL,
		importer_version TEXT NOT NULL DEFAULT '',
		updated_at TEXT NOT NULL
	)`)
	require.NoError(t, err)
	id := simpleasset.NewID()
	_, err = db.ExecContext(ctx, `INSERT INTO asset_catalog VALUES (?, '', ?, ?, 'text', '1.0.0', '2026-01-02T03:04:05Z')`,
		"old.src", id.String(), string(simpleasset.HashBytes(simpleasset.HashSHA256, []byte("old"))))
	require.NoError(t, err)
	require.NoError(t, db.Close())

	repo := openTestRepo(t, path)
	got, err := repo.Get(ctx, "old.src")
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Empty(t, got.Dependencies)

	entry := repotest.Entry("new.src", simpleasset.NewID())
	entry.Dependencies = []simpleasset.Dependency{{Path: "old.src", ID: id}}
	require.NoError(t, repo.Put(ctx, entry))
	got, err = repo.Get(ctx, "new.src")
	require.NoError(t, err)
	assert.Equal(t, entry.Dependencies, got.Dependencies)
}
