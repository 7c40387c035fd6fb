package simpleasset

import (
	"context"
)

// Service defines the main interface for the simple-asset library
type Service interface {
	// Import operations
	Import(ctx context.Context, req ImportRequest) (*ImportResult, error)
	Remove(ctx context.Context, path string) error
	Prune(ctx context.Context) (int, error)

	// Resolution operations (used by the loader)
	Resolve(ctx context.Context, id ID) (*Resolved, error)
	ResolvePath(ctx context.Context, path, formatHint string) (*Resolved, error)

	// Collaborator access
	Store() ContentStore
	Catalog() Catalog
	Pipeline() Pipeline
}

// Catalog maps virtual source paths to the identifiers of the artifacts
// imported from them, detecting staleness by source content hash.
type Catalog interface {
	// Resolve returns the recorded ID only while the source still hashes to
	// the recorded value, the hint matches and no dependency changed.
	Resolve(ctx context.Context, path, formatHint string) (ID, bool, error)

	// Status classifies the entry for path against the current source.
	Status(ctx context.Context, path, formatHint string) (*CatalogEntry, Freshness, error)

	// StatusOf is Status for callers already holding the source bytes.
	StatusOf(ctx context.Context, path, formatHint string, source []byte) (*CatalogEntry, Freshness, error)

	// Record upserts the entry for path with the dependencies its importer
	// read.
	Record(ctx context.Context, path, formatHint string, sourceHash Hash, id ID, importer ImporterIdentity, deps ...Dependency) (*CatalogEntry, error)

	// Invalidate forces the next Resolve for path to miss.
	Invalidate(ctx context.Context, path string) error

	Lookup(ctx context.Context, path string) (*CatalogEntry, error)
	LookupByID(ctx context.Context, id ID) ([]*CatalogEntry, error)
	List(ctx context.Context) ([]*CatalogEntry, error)

	// HashSource digests source bytes the way entries record them.
	HashSource(source []byte) Hash
}

// Pipeline selects and runs importers.
type Pipeline interface {
	// Select returns the importer that would handle path and hint.
	Select(path, formatHint string) (Importer, error)

	// Import converts source with the selected importer.
	Import(ctx context.Context, path string, source []byte, formatHint string) ([]byte, string, Importer, error)
}

// IdentityOf returns the provenance identity of an importer.
func IdentityOf(imp Importer) ImporterIdentity {
	return ImporterIdentity{Name: imp.Name(), Version: imp.Version()}
}
