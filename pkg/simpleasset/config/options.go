package config

import (
	"fmt"
	"time"

	"github.com/tendant/simple-asset/pkg/simpleasset"
	"github.com/tendant/simple-asset/pkg/simpleasset/storage/compress"
)

// WithCatalogURL sets the catalog repository URL
func WithCatalogURL(raw string) Option {
	return func(c *Config) error {
		if _, err := parseCatalogURL(raw); err != nil {
			return err
		}
		c.CatalogURL = raw
		return nil
	}
}

// WithDatabaseSchema sets the database schema (for Postgres)
func WithDatabaseSchema(schema string) Option {
	return func(c *Config) error {
		c.DBSchema = schema
		return nil
	}
}

// WithStorageURL sets the artifact storage URL
func WithStorageURL(raw string) Option {
	return func(c *Config) error {
		if _, err := parseStorageURL(raw); err != nil {
			return err
		}
		c.StorageURL = raw
		return nil
	}
}

// WithStorageCredentials sets object store credentials used when the
// storage URL carries none
func WithStorageCredentials(accessKey, secretKey string) Option {
	return func(c *Config) error {
		if (accessKey == "") != (secretKey == "") {
			return fmt.Errorf("access key and secret key must be set together")
		}
		c.StorageAccessKey = accessKey
		c.StorageSecretKey = secretKey
		return nil
	}
}

// WithCompression sets the artifact compression codec: none, zstd or lz4
func WithCompression(codec string) Option {
	return func(c *Config) error {
		if _, err := compress.ParseCodec(codec); err != nil {
			return err
		}
		c.Compression = codec
		return nil
	}
}

// WithHashAlgorithm sets the digest used for artifact and source hashes
func WithHashAlgorithm(alg string) Option {
	return func(c *Config) error {
		if _, err := simpleasset.ParseHashAlgorithm(alg); err != nil {
			return err
		}
		c.HashAlgorithm = alg
		return nil
	}
}

// WithObjectKeyGenerator sets the object key layout
// Valid values: "git-like", "flat"
func WithObjectKeyGenerator(generator string) Option {
	return func(c *Config) error {
		if generator != "git-like" && generator != "flat" {
			return fmt.Errorf("invalid object key generator: %s (valid: git-like, flat)", generator)
		}
		c.ObjectKeyGenerator = generator
		return nil
	}
}

// WithRecordCacheSize sets the artifact record LRU size; zero keeps the store default
func WithRecordCacheSize(n int) Option {
	return func(c *Config) error {
		if n < 0 {
			return fmt.Errorf("record cache size must not be negative, got: %d", n)
		}
		c.RecordCacheSize = n
		return nil
	}
}

// WithSourceRoot sets the directory source paths are relative to
func WithSourceRoot(dir string) Option {
	return func(c *Config) error {
		if dir == "" {
			return fmt.Errorf("source root cannot be empty")
		}
		c.SourceRoot = dir
		return nil
	}
}

// WithPluginPaths appends importer plugins to load at build time
func WithPluginPaths(paths ...string) Option {
	return func(c *Config) error {
		for _, p := range paths {
			if p == "" {
				return fmt.Errorf("plugin path cannot be empty")
			}
		}
		c.PluginPaths = append(c.PluginPaths, paths...)
		return nil
	}
}

// WithExecImporter registers an external converter command as an importer
func WithExecImporter(imp ImporterConfig) Option {
	return func(c *Config) error {
		if imp.Name == "" || imp.Command == "" {
			return fmt.Errorf("importer name and command are required")
		}
		c.Importers = append(c.Importers, imp)
		return nil
	}
}

// WithLoaderWorkers bounds concurrent loader resolutions; zero means GOMAXPROCS
func WithLoaderWorkers(n int) Option {
	return func(c *Config) error {
		if n < 0 {
			return fmt.Errorf("loader workers must not be negative, got: %d", n)
		}
		c.LoaderWorkers = n
		return nil
	}
}

// WithWasmLimits sets the memory ceiling and per-call timeout for wasm importers
func WithWasmLimits(memoryLimitMB int, timeout time.Duration) Option {
	return func(c *Config) error {
		if memoryLimitMB < 0 || timeout < 0 {
			return fmt.Errorf("wasm limits must not be negative")
		}
		c.WasmMemoryLimitMB = memoryLimitMB
		c.WasmTimeout = timeout
		return nil
	}
}

// WithEventLogging enables or disables event logging
func WithEventLogging(enabled bool) Option {
	return func(c *Config) error {
		c.EnableEventLogging = enabled
		return nil
	}
}

// WithDefaults resets the configuration to library defaults
func WithDefaults() Option {
	return func(c *Config) error {
		*c = defaults()
		return nil
	}
}
