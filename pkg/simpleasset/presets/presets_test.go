package presets

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-asset/pkg/simpleasset"
	"github.com/tendant/simple-asset/tests/testutil"
)

func TestNewDevelopment(t *testing.T) {
	dir := t.TempDir()
	dataDir := filepath.Join(dir, "dev-data")
	sourceRoot := filepath.Join(dir, "assets")
	require.NoError(t, os.MkdirAll(sourceRoot, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sourceRoot, "a.src"), []byte("dev"), 0o644))

	comp, cleanup, err := NewDevelopment(
		WithDevDataDir(dataDir),
		WithDevSourceRoot(sourceRoot),
		WithDevImporters(testutil.DemoImporter(nil)),
	)
	require.NoError(t, err)

	res, err := comp.Service.Import(context.Background(), simpleasset.ImportRequest{Path: "a.src"})
	require.NoError(t, err)
	assert.False(t, res.Reused)

	_, err = os.Stat(filepath.Join(dataDir, "catalog.json"))
	require.NoError(t, err, "catalog should be written as JSON")

	cleanup()
	_, err = os.Stat(dataDir)
	assert.True(t, os.IsNotExist(err), "dev-data should be removed after cleanup")
}

func TestNewTesting(t *testing.T) {
	comp := NewTesting(t,
		WithTestImporters(testutil.DemoImporter(nil)),
		WithTestSource("models/a.src", "123"),
	)
	ctx := context.Background()

	res, err := comp.Service.Import(ctx, simpleasset.ImportRequest{Path: "models/a.src"})
	require.NoError(t, err)

	resolved, err := comp.Service.Resolve(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, "ARTIFACT:123", string(resolved.Bytes))
}

func TestNewTestingIsolation(t *testing.T) {
	first := NewTesting(t, WithTestImporters(testutil.DemoImporter(nil)), WithTestSource("a.src", "1"))
	second := NewTesting(t, WithTestImporters(testutil.DemoImporter(nil)))

	_, err := first.Service.Import(context.Background(), simpleasset.ImportRequest{Path: "a.src"})
	require.NoError(t, err)

	_, err = second.Service.Import(context.Background(), simpleasset.ImportRequest{Path: "a.src"})
	assert.ErrorIs(t, err, simpleasset.ErrNotFound)
}

func TestNewProductionRejectsMemory(t *testing.T) {
	tests := []struct {
		name    string
		catalog string
		storage string
	}{
		{"memory catalog", "memory://", "file:///tmp/artifacts"},
		{"memory storage", "sqlite:///tmp/catalog.db", "memory://"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("ASSET_CATALOG_URL", tt.catalog)
			t.Setenv("ASSET_STORAGE_URL", tt.storage)
			_, err := NewProduction(context.Background())
			assert.Error(t, err)
		})
	}
}

func TestNewProduction(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ASSET_CATALOG_URL", "sqlite://"+filepath.Join(dir, "catalog.db"))
	t.Setenv("ASSET_STORAGE_URL", "file://"+filepath.Join(dir, "artifacts"))
	t.Setenv("ASSET_SOURCE_ROOT", dir)
	t.Setenv("ASSET_COMPRESSION", "lz4")

	comp, err := NewProduction(context.Background())
	require.NoError(t, err)
	defer comp.Close(context.Background())
	assert.True(t, comp.Pipeline.Frozen())
}
