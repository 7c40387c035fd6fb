package presets

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tendant/simple-asset/pkg/simpleasset"
	"github.com/tendant/simple-asset/pkg/simpleasset/config"
)

// Configuration Presets
//
// This package provides ready-made component sets for common use cases.
// Presets remove boilerplate while remaining customizable.

// NewDevelopment assembles components for local development.
//
// Features:
//   - JSON catalog at ./dev-data/catalog.json (readable by hand)
//   - Filesystem artifacts under ./dev-data/artifacts
//   - Sources read from ./assets
//   - Event logging enabled
//
// Returns the components, a cleanup function that closes them and removes
// the dev-data directory, and an error if setup fails.
//
// Example:
//
//	comp, cleanup, err := presets.NewDevelopment(presets.WithDevImporters(meshImporter))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer cleanup()
func NewDevelopment(opts ...DevelopmentOption) (*config.Components, func(), error) {
	cfg := &devConfig{
		dataDir:    "./dev-data",
		sourceRoot: "./assets",
	}
	for _, opt := range opts {
		opt(cfg)
	}

	c, err := config.Load(
		config.WithCatalogURL("file://"+filepath.Join(cfg.dataDir, "catalog.json")),
		config.WithStorageURL("file://"+filepath.Join(cfg.dataDir, "artifacts")),
		config.WithSourceRoot(cfg.sourceRoot),
		config.WithObjectKeyGenerator("flat"),
		config.WithEventLogging(true),
	)
	if err != nil {
		return nil, nil, err
	}

	comp, err := c.Build(context.Background(), config.WithImporters(cfg.importers...))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create development components: %w", err)
	}

	cleanup := func() {
		_ = comp.Close(context.Background())
		os.RemoveAll(cfg.dataDir)
	}
	return comp, cleanup, nil
}

// NewTesting assembles components for unit and integration tests.
//
// Features:
//   - In-memory catalog and artifact store (isolated per test)
//   - Sources in a per-test temporary directory, seeded with fixtures
//   - No event logging (cleaner test output)
//   - Automatic cleanup via t.Cleanup()
//
// Example:
//
//	func TestMyFeature(t *testing.T) {
//	    comp := presets.NewTesting(t,
//	        presets.WithTestImporters(myImporter),
//	        presets.WithTestSource("models/a.src", "..."),
//	    )
//	    res, err := comp.Service.Import(ctx, simpleasset.ImportRequest{Path: "models/a.src"})
//	}
func NewTesting(t testing.TB, opts ...TestingOption) *config.Components {
	t.Helper()
	cfg := &testConfig{sources: map[string]string{}}
	for _, opt := range opts {
		opt(cfg)
	}

	root := t.TempDir()
	for path, data := range cfg.sources {
		full := filepath.Join(root, filepath.FromSlash(simpleasset.NormalizePath(path)))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatalf("failed to create fixture directory: %v", err)
		}
		if err := os.WriteFile(full, []byte(data), 0o644); err != nil {
			t.Fatalf("failed to write fixture %s: %v", path, err)
		}
	}

	c, err := config.Load(config.WithSourceRoot(root), config.WithEventLogging(false))
	if err != nil {
		t.Fatalf("failed to load test config: %v", err)
	}
	comp, err := c.Build(context.Background(), config.WithImporters(cfg.importers...))
	if err != nil {
		t.Fatalf("failed to create test components: %v", err)
	}

	t.Cleanup(func() {
		_ = comp.Close(context.Background())
	})
	return comp
}

// NewProduction assembles components from ASSET_* environment variables.
//
// Required Environment Variables:
//   - ASSET_CATALOG_URL: persistent catalog (postgres://, sqlite:// or file://)
//   - ASSET_STORAGE_URL: persistent storage (s3://, minio:// or file://)
//
// Optional Environment Variables:
//   - ASSET_COMPRESSION, ASSET_HASH_ALGORITHM, ASSET_PLUGIN_PATHS, ...
//     (see config.WithEnv)
//
// Example:
//
//	comp, err := presets.NewProduction(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer comp.Close(ctx)
func NewProduction(ctx context.Context, opts ...config.BuildOption) (*config.Components, error) {
	c, err := config.Load(config.WithEnv())
	if err != nil {
		return nil, err
	}

	// Validate required configuration
	if isMemoryURL(c.CatalogURL) {
		return nil, fmt.Errorf("production preset requires a persistent ASSET_CATALOG_URL (memory not allowed in production)")
	}
	if isMemoryURL(c.StorageURL) {
		return nil, fmt.Errorf("production preset requires persistent ASSET_STORAGE_URL (s3, minio or file, not memory)")
	}

	return c.Build(ctx, opts...)
}

func isMemoryURL(raw string) bool {
	raw = strings.TrimSpace(raw)
	return raw == "" || raw == "memory" || raw == "memory://"
}

// Option types for customization

// devConfig holds development preset configuration
type devConfig struct {
	dataDir    string
	sourceRoot string
	importers  []simpleasset.Importer
}

// testConfig holds testing preset configuration
type testConfig struct {
	sources   map[string]string
	importers []simpleasset.Importer
}

// DevelopmentOption is a functional option for NewDevelopment
type DevelopmentOption func(*devConfig)

// WithDevDataDir sets the development catalog and artifact directory
func WithDevDataDir(dir string) DevelopmentOption {
	return func(cfg *devConfig) {
		cfg.dataDir = dir
	}
}

// WithDevSourceRoot sets the development source directory
func WithDevSourceRoot(dir string) DevelopmentOption {
	return func(cfg *devConfig) {
		cfg.sourceRoot = dir
	}
}

// WithDevImporters registers in-process importers
func WithDevImporters(imps ...simpleasset.Importer) DevelopmentOption {
	return func(cfg *devConfig) {
		cfg.importers = append(cfg.importers, imps...)
	}
}

// TestingOption is a functional option for NewTesting
type TestingOption func(*testConfig)

// WithTestImporters registers in-process importers
func WithTestImporters(imps ...simpleasset.Importer) TestingOption {
	return func(cfg *testConfig) {
		cfg.importers = append(cfg.importers, imps...)
	}
}

// WithTestSource seeds a source file before the components are built
func WithTestSource(path, data string) TestingOption {
	return func(cfg *testConfig) {
		cfg.sources[path] = data
	}
}
