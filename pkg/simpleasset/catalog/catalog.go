// Package catalog maps virtual source paths to the artifacts imported from
// them. An entry is trusted only while the source still hashes to the value
// recorded at import time, the format hint matches and every recorded
// dependency still maps to the artifact it had then.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/tendant/simple-asset/pkg/simpleasset"
)

// Catalog implements simpleasset.Catalog.
type Catalog struct {
	repo    simpleasset.CatalogRepository
	sources simpleasset.Sources
	alg     simpleasset.HashAlgorithm
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithHashAlgorithm sets the digest for new entries. Existing entries are
// compared using the algorithm they were recorded with.
func WithHashAlgorithm(alg simpleasset.HashAlgorithm) Option {
	return func(c *Catalog) {
		c.alg = alg
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Catalog) {
		c.logger = logger
	}
}

// WithClock overrides the time source for UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(c *Catalog) {
		c.now = now
	}
}

// New creates a catalog over repo, reading sources to detect staleness.
func New(repo simpleasset.CatalogRepository, sources simpleasset.Sources, opts ...Option) (*Catalog, error) {
	if repo == nil {
		return nil, errors.New("catalog repository is required")
	}
	if sources == nil {
		return nil, errors.New("sources are required")
	}
	c := &Catalog{
		repo:    repo,
		sources: sources,
		alg:     simpleasset.DefaultHashAlgorithm,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c, nil
}

// HashSource digests source bytes the way new entries record them.
func (c *Catalog) HashSource(source []byte) simpleasset.Hash {
	return simpleasset.HashBytes(c.alg, source)
}

// Resolve returns the recorded ID while the entry is fresh.
func (c *Catalog) Resolve(ctx context.Context, path, formatHint string) (simpleasset.ID, bool, error) {
	entry, freshness, err := c.Status(ctx, path, formatHint)
	if err != nil {
		return simpleasset.NilID, false, err
	}
	if freshness != simpleasset.FreshnessFresh {
		return simpleasset.NilID, false, nil
	}
	return entry.ID, true, nil
}

// Current is Resolve for callers that treat a miss as an error: it fails
// with ErrNotFound when nothing is recorded and ErrStale when the source
// changed.
func (c *Catalog) Current(ctx context.Context, path, formatHint string) (*simpleasset.CatalogEntry, error) {
	entry, freshness, err := c.Status(ctx, path, formatHint)
	if err != nil {
		return nil, err
	}
	switch freshness {
	case simpleasset.FreshnessMissing:
		return nil, &simpleasset.CatalogError{Path: path, Op: "current", Err: simpleasset.ErrNotFound}
	case simpleasset.FreshnessStale:
		return entry, &simpleasset.CatalogError{Path: path, Op: "current", Err: simpleasset.ErrStale}
	}
	return entry, nil
}

// Status reads the current source and classifies the entry for path.
func (c *Catalog) Status(ctx context.Context, path, formatHint string) (*simpleasset.CatalogEntry, simpleasset.Freshness, error) {
	path = simpleasset.NormalizePath(path)
	source, err := c.sources.Read(ctx, path)
	if err != nil {
		return nil, "", &simpleasset.CatalogError{Path: path, Op: "read_source", Err: err}
	}
	return c.StatusOf(ctx, path, formatHint, source)
}

// StatusOf classifies the entry for path against source.
func (c *Catalog) StatusOf(ctx context.Context, path, formatHint string, source []byte) (*simpleasset.CatalogEntry, simpleasset.Freshness, error) {
	path = simpleasset.NormalizePath(path)
	entry, err := c.repo.Get(ctx, path)
	if errors.Is(err, simpleasset.ErrNotFound) {
		return nil, simpleasset.FreshnessMissing, nil
	}
	if err != nil {
		return nil, "", &simpleasset.CatalogError{Path: path, Op: "get", Err: err}
	}

	if entry.FormatHint != formatHint {
		return entry, simpleasset.FreshnessStale, nil
	}
	if !entry.SourceHash.Matches(source) {
		c.logger.DebugContext(ctx, "Catalog entry stale", "path", path, "recorded", entry.SourceHash)
		return entry, simpleasset.FreshnessStale, nil
	}
	for _, dep := range entry.Dependencies {
		current, err := c.repo.Get(ctx, dep.Path)
		if errors.Is(err, simpleasset.ErrNotFound) || (err == nil && current.ID != dep.ID) {
			c.logger.DebugContext(ctx, "Catalog entry stale", "path", path, "dependency", dep.Path)
			return entry, simpleasset.FreshnessStale, nil
		}
		if err != nil {
			return nil, "", &simpleasset.CatalogError{Path: dep.Path, Op: "get", Err: err}
		}
	}
	return entry, simpleasset.FreshnessFresh, nil
}

// Record upserts the entry for path along with the dependencies the importer
// read. Recording an identical mapping again leaves the catalog equivalent.
func (c *Catalog) Record(ctx context.Context, path, formatHint string, sourceHash simpleasset.Hash, id simpleasset.ID, importer simpleasset.ImporterIdentity, deps ...simpleasset.Dependency) (*simpleasset.CatalogEntry, error) {
	path = simpleasset.NormalizePath(path)
	if path == "" {
		return nil, &simpleasset.CatalogError{Path: path, Op: "record", Err: errors.New("empty path")}
	}
	if id.IsZero() {
		return nil, &simpleasset.CatalogError{Path: path, Op: "record", Err: errors.New("zero id")}
	}
	if _, err := simpleasset.ParseHash(string(sourceHash)); err != nil {
		return nil, &simpleasset.CatalogError{Path: path, Op: "record", Err: err}
	}

	entry := &simpleasset.CatalogEntry{
		Path:       path,
		FormatHint: formatHint,
		ID:         id,
		SourceHash: sourceHash,
		Importer:   importer,
		UpdatedAt:  c.now().UTC(),
	}
	if len(deps) > 0 {
		entry.Dependencies = slices.Clone(deps)
	}
	if err := c.repo.Put(ctx, entry); err != nil {
		return nil, &simpleasset.CatalogError{Path: path, Op: "record", Err: err}
	}
	c.logger.DebugContext(ctx, "Catalog entry recorded", "path", path, "id", id, "importer", importer.String())
	return entry, nil
}

// Invalidate removes the mapping so the next Resolve misses.
func (c *Catalog) Invalidate(ctx context.Context, path string) error {
	path = simpleasset.NormalizePath(path)
	err := c.repo.Delete(ctx, path)
	if err != nil && !errors.Is(err, simpleasset.ErrNotFound) {
		return &simpleasset.CatalogError{Path: path, Op: "invalidate", Err: err}
	}
	return nil
}

func (c *Catalog) Lookup(ctx context.Context, path string) (*simpleasset.CatalogEntry, error) {
	path = simpleasset.NormalizePath(path)
	entry, err := c.repo.Get(ctx, path)
	if err != nil {
		return nil, &simpleasset.CatalogError{Path: path, Op: "lookup", Err: err}
	}
	return entry, nil
}

func (c *Catalog) LookupByID(ctx context.Context, id simpleasset.ID) ([]*simpleasset.CatalogEntry, error) {
	entries, err := c.repo.GetByID(ctx, id)
	if err != nil {
		return nil, &simpleasset.CatalogError{Path: id.String(), Op: "lookup_id", Err: err}
	}
	return entries, nil
}

func (c *Catalog) List(ctx context.Context) ([]*simpleasset.CatalogEntry, error) {
	entries, err := c.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list catalog: %w", err)
	}
	return entries, nil
}
