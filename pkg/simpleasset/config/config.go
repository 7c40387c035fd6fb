package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/tendant/simple-asset/pkg/simpleasset"
	"github.com/tendant/simple-asset/pkg/simpleasset/storage/compress"
)

// Option applies configuration to a Config instance.
type Option func(*Config) error

// Load constructs a Config by applying the supplied options on top of library defaults.
func Load(opts ...Option) (*Config, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() Config {
	return Config{
		CatalogURL:         "memory://",
		DBSchema:           "asset",
		StorageURL:         "memory://",
		Compression:        "none",
		HashAlgorithm:      string(simpleasset.DefaultHashAlgorithm),
		ObjectKeyGenerator: "git-like",
		RecordCacheSize:    4096,
		SourceRoot:         ".",
		WasmMemoryLimitMB:  64,
		WasmTimeout:        30 * time.Second,
		EnableEventLogging: true,
	}
}

// Config describes how the asset service is assembled. Field tags drive
// both YAML config files and environment variables.
type Config struct {
	// Catalog persistence: memory://, file:///catalog.json, file:///catalog.cbor,
	// sqlite:///catalog.db, postgres://...
	CatalogURL string `yaml:"catalog_url" env:"ASSET_CATALOG_URL" env-description:"catalog repository URL"`
	DBSchema   string `yaml:"db_schema" env:"ASSET_DB_SCHEMA" env-description:"postgres schema for the catalog"`

	// Artifact storage: memory://, file:///dir, s3://bucket/prefix, minio://host/bucket/prefix
	StorageURL       string `yaml:"storage_url" env:"ASSET_STORAGE_URL" env-description:"artifact storage URL"`
	StorageAccessKey string `yaml:"storage_access_key" env:"ASSET_STORAGE_ACCESS_KEY"`
	StorageSecretKey string `yaml:"storage_secret_key" env:"ASSET_STORAGE_SECRET_KEY"`
	Compression      string `yaml:"compression" env:"ASSET_COMPRESSION" env-description:"none, zstd or lz4"`

	HashAlgorithm      string `yaml:"hash_algorithm" env:"ASSET_HASH_ALGORITHM" env-description:"sha256 or blake3"`
	ObjectKeyGenerator string `yaml:"object_key_generator" env:"ASSET_OBJECT_KEY_GENERATOR" env-description:"git-like or flat"`
	RecordCacheSize    int    `yaml:"record_cache_size" env:"ASSET_RECORD_CACHE_SIZE"`

	SourceRoot  string           `yaml:"source_root" env:"ASSET_SOURCE_ROOT" env-description:"directory holding source files"`
	PluginPaths []string         `yaml:"plugin_paths" env:"ASSET_PLUGIN_PATHS" env-separator:"," env-description:"importer plugins (.so or .wasm)"`
	Importers   []ImporterConfig `yaml:"importers"`

	WasmMemoryLimitMB int           `yaml:"wasm_memory_limit_mb" env:"ASSET_WASM_MEMORY_LIMIT_MB"`
	WasmTimeout       time.Duration `yaml:"wasm_timeout" env:"ASSET_WASM_TIMEOUT"`

	// LoaderWorkers bounds concurrent loader resolutions; zero means GOMAXPROCS.
	LoaderWorkers int `yaml:"loader_workers" env:"ASSET_LOADER_WORKERS"`

	EnableEventLogging bool `yaml:"event_logging" env:"ASSET_EVENT_LOGGING"`
}

// ImporterConfig declares an external converter command run as an importer.
type ImporterConfig struct {
	Name    string        `yaml:"name"`
	Version string        `yaml:"version"`
	Accepts []string      `yaml:"accepts"`
	Target  string        `yaml:"target"`
	Command string        `yaml:"command"`
	Args    []string      `yaml:"args"`
	Timeout time.Duration `yaml:"timeout"`
}

// Validate performs basic sanity checks on the configuration.
func (c *Config) Validate() error {
	if _, err := parseCatalogURL(c.CatalogURL); err != nil {
		return err
	}
	if _, err := parseStorageURL(c.StorageURL); err != nil {
		return err
	}
	if _, err := compress.ParseCodec(c.Compression); err != nil {
		return err
	}
	if _, err := simpleasset.ParseHashAlgorithm(c.HashAlgorithm); err != nil {
		return err
	}
	switch c.ObjectKeyGenerator {
	case "git-like", "flat":
	default:
		return fmt.Errorf("invalid object key generator: %s (must be git-like or flat)", c.ObjectKeyGenerator)
	}
	if c.RecordCacheSize < 0 {
		return fmt.Errorf("record cache size must not be negative")
	}
	if strings.TrimSpace(c.SourceRoot) == "" {
		return fmt.Errorf("source root is required")
	}
	if c.LoaderWorkers < 0 {
		return fmt.Errorf("loader workers must not be negative")
	}
	if c.WasmMemoryLimitMB < 0 {
		return fmt.Errorf("wasm memory limit must not be negative")
	}
	if c.WasmTimeout < 0 {
		return fmt.Errorf("wasm timeout must not be negative")
	}
	for i, imp := range c.Importers {
		if imp.Name == "" || imp.Command == "" {
			return fmt.Errorf("importer %d: name and command are required", i)
		}
	}
	return nil
}
