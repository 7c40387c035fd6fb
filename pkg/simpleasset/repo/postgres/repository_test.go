package postgres_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-asset/pkg/simpleasset"
	"github.com/tendant/simple-asset/pkg/simpleasset/repo/postgres"
	"github.com/tendant/simple-asset/pkg/simpleasset/repo/repotest"
)

// Runs against DATABASE_URL; each subtest starts from an empty table.
func TestPostgresRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("Skipping integration test: DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := postgres.Connect(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	repo := postgres.NewWithPool(pool)
	require.NoError(t, repo.EnsureSchema(ctx))

	repotest.Run(t, func(t *testing.T) simpleasset.CatalogRepository {
		_, err := pool.Exec(ctx, `TRUNCATE asset_catalog`)
		require.NoError(t, err)
		return repo
	})
}
