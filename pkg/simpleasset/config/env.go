package config

import (
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"
)

// WithEnv overlays ASSET_* environment variables onto the configuration.
// Variables that are not set leave the current value in place.
//
//	ASSET_CATALOG_URL          memory:// | file:///catalog.json | sqlite:///catalog.db | postgres://...
//	ASSET_DB_SCHEMA            postgres schema (default "asset")
//	ASSET_STORAGE_URL          memory:// | file:///dir | s3://bucket/prefix?region=... | minio://host/bucket
//	ASSET_STORAGE_ACCESS_KEY   object store credentials, unless given in the URL
//	ASSET_STORAGE_SECRET_KEY
//	ASSET_COMPRESSION          none | zstd | lz4
//	ASSET_HASH_ALGORITHM       sha256 | blake3
//	ASSET_SOURCE_ROOT          source directory
//	ASSET_PLUGIN_PATHS         comma separated .so or .wasm importer plugins
//	ASSET_LOADER_WORKERS       concurrent loader resolutions
func WithEnv() Option {
	return func(c *Config) error {
		if err := cleanenv.ReadEnv(c); err != nil {
			return fmt.Errorf("failed to read environment: %w", err)
		}
		return nil
	}
}

// WithFile reads a YAML config file, then applies environment overrides on
// top of it.
func WithFile(path string) Option {
	return func(c *Config) error {
		if path == "" {
			return fmt.Errorf("config file path is required")
		}
		if err := cleanenv.ReadConfig(path, c); err != nil {
			return fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		return nil
	}
}

// Usage describes the environment variables understood by WithEnv.
func Usage() string {
	header := "Environment variables:"
	text, err := cleanenv.GetDescription(&Config{}, &header)
	if err != nil {
		return header
	}
	return text
}
