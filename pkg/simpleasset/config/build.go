package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/simple-asset/pkg/simpleasset"
	"github.com/tendant/simple-asset/pkg/simpleasset/catalog"
	"github.com/tendant/simple-asset/pkg/simpleasset/importer"
	"github.com/tendant/simple-asset/pkg/simpleasset/importer/wasm"
	"github.com/tendant/simple-asset/pkg/simpleasset/loader"
	"github.com/tendant/simple-asset/pkg/simpleasset/objectkey"
	filerepo "github.com/tendant/simple-asset/pkg/simpleasset/repo/file"
	memoryrepo "github.com/tendant/simple-asset/pkg/simpleasset/repo/memory"
	repopg "github.com/tendant/simple-asset/pkg/simpleasset/repo/postgres"
	sqliterepo "github.com/tendant/simple-asset/pkg/simpleasset/repo/sqlite"
	"github.com/tendant/simple-asset/pkg/simpleasset/sources"
	"github.com/tendant/simple-asset/pkg/simpleasset/storage/compress"
	fsstorage "github.com/tendant/simple-asset/pkg/simpleasset/storage/fs"
	memorystorage "github.com/tendant/simple-asset/pkg/simpleasset/storage/memory"
	miniostorage "github.com/tendant/simple-asset/pkg/simpleasset/storage/minio"
	s3storage "github.com/tendant/simple-asset/pkg/simpleasset/storage/s3"
	"github.com/tendant/simple-asset/pkg/simpleasset/store"
)

// Components holds everything Build assembled. Close releases the
// database handles and the wasm runtime.
type Components struct {
	Service    simpleasset.Service
	Store      *store.Store
	Catalog    *catalog.Catalog
	Pipeline   *importer.Pipeline
	Sources    *sources.FS
	Blobs      simpleasset.BlobStore
	Repository simpleasset.CatalogRepository

	closers []func(context.Context) error
}

// Close releases resources in reverse order of acquisition.
func (c *Components) Close(ctx context.Context) error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

// BuildOption adds runtime collaborators that have no config representation.
type BuildOption func(*buildOptions)

type buildOptions struct {
	importers []simpleasset.Importer
	sinks     []simpleasset.EventSink
	logger    *slog.Logger
}

// WithImporters registers in-process importers ahead of exec importers and plugins.
func WithImporters(imps ...simpleasset.Importer) BuildOption {
	return func(o *buildOptions) {
		o.importers = append(o.importers, imps...)
	}
}

// WithEventSinks adds event sinks alongside the logging sink.
func WithEventSinks(sinks ...simpleasset.EventSink) BuildOption {
	return func(o *buildOptions) {
		o.sinks = append(o.sinks, sinks...)
	}
}

// WithLogger sets the logger handed to every component.
func WithLogger(logger *slog.Logger) BuildOption {
	return func(o *buildOptions) {
		o.logger = logger
	}
}

// Build assembles the asset service. The importer registry is frozen
// before Build returns.
func (c *Config) Build(ctx context.Context, opts ...BuildOption) (_ *Components, err error) {
	bo := buildOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&bo)
	}

	comp := &Components{}
	defer func() {
		if err != nil {
			_ = comp.Close(ctx)
		}
	}()

	alg, err := simpleasset.ParseHashAlgorithm(c.HashAlgorithm)
	if err != nil {
		return nil, err
	}

	blobs, err := c.buildBlobStore()
	if err != nil {
		return nil, err
	}
	codec, err := compress.ParseCodec(c.Compression)
	if err != nil {
		return nil, err
	}
	comp.Blobs = compress.Wrap(blobs, codec)

	var keys objectkey.Generator = objectkey.NewGitLikeGenerator()
	if c.ObjectKeyGenerator == "flat" {
		keys = objectkey.NewFlatGenerator()
	}
	comp.Store, err = store.New(comp.Blobs,
		store.WithKeyGenerator(keys),
		store.WithHashAlgorithm(alg),
		store.WithRecordCacheSize(c.RecordCacheSize),
		store.WithLogger(bo.logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create content store: %w", err)
	}

	comp.Repository, err = c.buildRepository(ctx, comp)
	if err != nil {
		return nil, err
	}

	comp.Sources = sources.NewLocal(c.SourceRoot)
	comp.Catalog, err = catalog.New(comp.Repository, comp.Sources,
		catalog.WithHashAlgorithm(alg),
		catalog.WithLogger(bo.logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog: %w", err)
	}

	comp.Pipeline, err = c.buildPipeline(ctx, bo)
	if err != nil {
		return nil, err
	}
	comp.closers = append(comp.closers, comp.Pipeline.Close)

	sinks := bo.sinks
	if c.EnableEventLogging {
		sinks = append([]simpleasset.EventSink{simpleasset.NewLoggingEventSink(bo.logger)}, sinks...)
	}

	comp.Service, err = simpleasset.New(
		simpleasset.WithStore(comp.Store),
		simpleasset.WithCatalog(comp.Catalog),
		simpleasset.WithPipeline(comp.Pipeline),
		simpleasset.WithSources(comp.Sources),
		simpleasset.WithEventSink(simpleasset.NewMultiEventSink(sinks...)),
		simpleasset.WithLogger(bo.logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create service: %w", err)
	}
	return comp, nil
}

// BuildLoader creates an asset loader over resolver using the configured
// worker bound.
func (c *Config) BuildLoader(resolver simpleasset.Resolver, formats ...loader.Format) (*loader.Loader, error) {
	opts := []loader.Option{loader.WithFormats(formats...)}
	if c.LoaderWorkers > 0 {
		opts = append(opts, loader.WithWorkers(c.LoaderWorkers))
	}
	return loader.New(resolver, opts...)
}

func (c *Config) buildPipeline(ctx context.Context, bo buildOptions) (*importer.Pipeline, error) {
	p := importer.NewPipeline(
		importer.WithLogger(bo.logger),
		importer.WithWasmConfig(wasm.Config{
			MemoryLimitBytes: uint64(c.WasmMemoryLimitMB) << 20,
			Timeout:          c.WasmTimeout,
		}),
	)

	for _, imp := range bo.importers {
		if err := p.Register(imp); err != nil {
			return nil, err
		}
	}
	for _, ic := range c.Importers {
		imp, err := importer.NewExec(importer.ExecConfig{
			Name:    ic.Name,
			Version: ic.Version,
			Accepts: ic.Accepts,
			Target:  ic.Target,
			Command: ic.Command,
			Args:    ic.Args,
			Timeout: ic.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("importer %s: %w", ic.Name, err)
		}
		if err := p.Register(imp); err != nil {
			return nil, err
		}
	}
	if err := p.LoadPlugins(ctx, c.PluginPaths...); err != nil {
		bo.logger.WarnContext(ctx, "Some importer plugins were skipped", "error", err)
	}

	p.Freeze()
	return p, nil
}

// buildRepository creates the catalog repository named by CatalogURL
func (c *Config) buildRepository(ctx context.Context, comp *Components) (simpleasset.CatalogRepository, error) {
	target, err := parseCatalogURL(c.CatalogURL)
	if err != nil {
		return nil, err
	}

	switch target.kind {
	case "memory":
		return memoryrepo.New(), nil
	case "file":
		return filerepo.Open(target.path)
	case "sqlite":
		repo, err := sqliterepo.Open(ctx, target.path)
		if err != nil {
			return nil, err
		}
		comp.closers = append(comp.closers, func(context.Context) error { return repo.Close() })
		return repo, nil
	case "postgres":
		pool, err := c.connectPostgres(ctx, target.url)
		if err != nil {
			return nil, err
		}
		comp.closers = append(comp.closers, func(context.Context) error {
			pool.Close()
			return nil
		})
		repo := repopg.NewWithPool(pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unsupported catalog type: %s", target.kind)
	}
}

// connectPostgres opens a pool whose sessions use DBSchema as search_path.
func (c *Config) connectPostgres(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse CATALOG_URL: %w", err)
	}
	if schema := c.DBSchema; schema != "" {
		cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			if _, err := conn.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+pgx.Identifier{schema}.Sanitize()); err != nil {
				return err
			}
			_, err := conn.Exec(ctx, "SET search_path TO "+pgx.Identifier{schema}.Sanitize())
			return err
		}
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	return pool, nil
}

// buildBlobStore creates the storage backend named by StorageURL
func (c *Config) buildBlobStore() (simpleasset.BlobStore, error) {
	target, err := parseStorageURL(c.StorageURL)
	if err != nil {
		return nil, err
	}
	if target.accessKey == "" {
		target.accessKey, target.secretKey = c.StorageAccessKey, c.StorageSecretKey
	}

	switch target.kind {
	case "memory":
		return memorystorage.New(), nil
	case "fs":
		return fsstorage.New(fsstorage.Config{BaseDir: target.path})
	case "s3":
		return s3storage.New(s3storage.Config{
			Region:                 target.region,
			Bucket:                 target.bucket,
			Prefix:                 target.prefix,
			AccessKeyID:            target.accessKey,
			SecretAccessKey:        target.secretKey,
			Endpoint:               target.endpoint,
			UsePathStyle:           target.usePathStyle,
			EnableSSE:              target.sse != "",
			SSEAlgorithm:           target.sse,
			SSEKMSKeyID:            target.sseKMSKeyID,
			CreateBucketIfNotExist: target.createBucket,
		})
	case "minio":
		return miniostorage.New(miniostorage.Config{
			Endpoint:  target.endpoint,
			Region:    target.region,
			AccessKey: target.accessKey,
			SecretKey: target.secretKey,
			Bucket:    target.bucket,
			Prefix:    target.prefix,
			UseSSL:    target.useSSL,
		})
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", target.kind)
	}
}
