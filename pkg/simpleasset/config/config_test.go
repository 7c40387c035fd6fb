package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "memory://", cfg.CatalogURL)
	assert.Equal(t, "memory://", cfg.StorageURL)
	assert.Equal(t, "none", cfg.Compression)
	assert.Equal(t, "sha256", cfg.HashAlgorithm)
	assert.Equal(t, "git-like", cfg.ObjectKeyGenerator)
	assert.Equal(t, ".", cfg.SourceRoot)
	assert.Equal(t, 30*time.Second, cfg.WasmTimeout)
	assert.True(t, cfg.EnableEventLogging)
}

func TestEnvOverlay(t *testing.T) {
	t.Setenv("ASSET_CATALOG_URL", "sqlite:///var/lib/assets/catalog.db")
	t.Setenv("ASSET_STORAGE_URL", "s3://assets/prod?region=eu-west-1")
	t.Setenv("ASSET_COMPRESSION", "zstd")
	t.Setenv("ASSET_HASH_ALGORITHM", "blake3")
	t.Setenv("ASSET_PLUGIN_PATHS", "plugins/mesh.so,plugins/pcm.wasm")
	t.Setenv("ASSET_LOADER_WORKERS", "6")
	t.Setenv("ASSET_WASM_TIMEOUT", "5s")
	t.Setenv("ASSET_EVENT_LOGGING", "false")

	cfg, err := Load(WithEnv())
	require.NoError(t, err)

	assert.Equal(t, "sqlite:///var/lib/assets/catalog.db", cfg.CatalogURL)
	assert.Equal(t, "s3://assets/prod?region=eu-west-1", cfg.StorageURL)
	assert.Equal(t, "zstd", cfg.Compression)
	assert.Equal(t, "blake3", cfg.HashAlgorithm)
	assert.Equal(t, []string{"plugins/mesh.so", "plugins/pcm.wasm"}, cfg.PluginPaths)
	assert.Equal(t, 6, cfg.LoaderWorkers)
	assert.Equal(t, 5*time.Second, cfg.WasmTimeout)
	assert.False(t, cfg.EnableEventLogging)

	// Unset variables keep their defaults.
	assert.Equal(t, "asset", cfg.DBSchema)
	assert.Equal(t, "git-like", cfg.ObjectKeyGenerator)
	assert.Equal(t, 64, cfg.WasmMemoryLimitMB)
}

func TestEnvOverridesOptions(t *testing.T) {
	t.Setenv("ASSET_SOURCE_ROOT", "/srv/sources")

	cfg, err := Load(WithSourceRoot("/tmp/ignored"), WithCompression("lz4"), WithEnv())
	require.NoError(t, err)
	assert.Equal(t, "/srv/sources", cfg.SourceRoot)
	assert.Equal(t, "lz4", cfg.Compression)
}

func TestEnvInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"catalog scheme", "ASSET_CATALOG_URL", "mysql://localhost/db"},
		{"storage scheme", "ASSET_STORAGE_URL", "ftp://host/dir"},
		{"compression", "ASSET_COMPRESSION", "gzip"},
		{"hash", "ASSET_HASH_ALGORITHM", "md5"},
		{"workers", "ASSET_LOADER_WORKERS", "many"},
		{"negative workers", "ASSET_LOADER_WORKERS", "-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load(WithEnv())
			assert.Error(t, err)
		})
	}
}

func TestWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "assets.yaml")
	doc := `catalog_url: file:///data/catalog.cbor
storage_url: minio://localhost:9000/assets
compression: lz4
source_root: /data/sources
wasm_timeout: 2s
importers:
  - name: upper
    version: "1"
    accepts: [txt]
    target: text
    command: tr
    args: [a-z, A-Z]
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	t.Setenv("ASSET_COMPRESSION", "zstd")

	cfg, err := Load(WithFile(path))
	require.NoError(t, err)

	assert.Equal(t, "file:///data/catalog.cbor", cfg.CatalogURL)
	assert.Equal(t, "minio://localhost:9000/assets", cfg.StorageURL)
	assert.Equal(t, "zstd", cfg.Compression, "environment wins over the file")
	assert.Equal(t, "/data/sources", cfg.SourceRoot)
	assert.Equal(t, 2*time.Second, cfg.WasmTimeout)
	require.Len(t, cfg.Importers, 1)
	assert.Equal(t, ImporterConfig{
		Name:    "upper",
		Version: "1",
		Accepts: []string{"txt"},
		Target:  "text",
		Command: "tr",
		Args:    []string{"a-z", "A-Z"},
	}, cfg.Importers[0])
}

func TestWithFileMissing(t *testing.T) {
	_, err := Load(WithFile(filepath.Join(t.TempDir(), "missing.yaml")))
	assert.Error(t, err)

	_, err = Load(WithFile(""))
	assert.Error(t, err)
}

func TestOptions(t *testing.T) {
	tests := []struct {
		name      string
		opt       Option
		wantError bool
	}{
		{"catalog json", WithCatalogURL("file:///tmp/catalog.json"), false},
		{"catalog postgres", WithCatalogURL("postgresql://localhost/assets"), false},
		{"catalog bad extension", WithCatalogURL("file:///tmp/catalog.txt"), true},
		{"storage fs", WithStorageURL("file:///tmp/blobs"), false},
		{"storage empty bucket", WithStorageURL("s3://"), true},
		{"credentials pair", WithStorageCredentials("key", "secret"), false},
		{"credentials half", WithStorageCredentials("key", ""), true},
		{"compression", WithCompression("gzip"), true},
		{"hash", WithHashAlgorithm("blake3"), false},
		{"bad hash", WithHashAlgorithm("crc32"), true},
		{"flat keys", WithObjectKeyGenerator("flat"), false},
		{"bad keys", WithObjectKeyGenerator("tenant-aware"), true},
		{"negative cache", WithRecordCacheSize(-1), true},
		{"empty source root", WithSourceRoot(""), true},
		{"empty plugin path", WithPluginPaths("a.so", ""), true},
		{"exec importer without command", WithExecImporter(ImporterConfig{Name: "x"}), true},
		{"negative workers", WithLoaderWorkers(-2), true},
		{"wasm limits", WithWasmLimits(16, time.Second), false},
		{"negative wasm limits", WithWasmLimits(-1, 0), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.opt)
			if tt.wantError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestWithDefaultsResets(t *testing.T) {
	cfg, err := Load(WithCompression("zstd"), WithPluginPaths("a.so"), WithDefaults())
	require.NoError(t, err)
	assert.Equal(t, "none", cfg.Compression)
	assert.Empty(t, cfg.PluginPaths)
}

func TestUsageListsVariables(t *testing.T) {
	usage := Usage()
	assert.Contains(t, usage, "ASSET_CATALOG_URL")
	assert.Contains(t, usage, "ASSET_STORAGE_URL")
}
