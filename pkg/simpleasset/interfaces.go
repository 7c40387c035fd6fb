package simpleasset

import (
	"context"
	"io"
	"time"
)

// BlobStore defines the interface for storage backends
type BlobStore interface {
	// Upload writes the object atomically: readers observe either the
	// previous object or the complete new one, never a partial write.
	Upload(ctx context.Context, objectKey string, reader io.Reader) error

	// Download opens the object for reading. Missing objects yield ErrNotFound.
	Download(ctx context.Context, objectKey string) (io.ReadCloser, error)

	// Delete removes the object. Backends that can tell report a missing
	// object with ErrNotFound; object stores typically succeed silently.
	Delete(ctx context.Context, objectKey string) error

	// GetObjectMeta retrieves metadata for an object
	GetObjectMeta(ctx context.Context, objectKey string) (*ObjectMeta, error)

	// List returns the keys under prefix in lexical order
	List(ctx context.Context, prefix string) ([]string, error)
}

// ObjectMeta contains metadata about an object in storage
type ObjectMeta struct {
	Key       string
	Size      int64
	UpdatedAt time.Time
	ETag      string
}

// ContentStore maps IDs to immutable artifact bytes.
type ContentStore interface {
	// Put stores the artifact and returns its record. Identical content and
	// format resolve to the already stored artifact.
	Put(ctx context.Context, reader io.Reader, format string) (ArtifactRecord, error)

	// Get returns the verified bytes. Fails with ErrNotFound or ErrCorrupt.
	Get(ctx context.Context, id ID) ([]byte, ArtifactRecord, error)

	// Open streams the artifact. The reader fails with ErrCorrupt at EOF
	// when the streamed bytes disagree with the recorded hash.
	Open(ctx context.Context, id ID) (io.ReadCloser, ArtifactRecord, error)

	// Stat returns the record without reading the artifact bytes
	Stat(ctx context.Context, id ID) (ArtifactRecord, error)

	// Exists reports whether the artifact is stored
	Exists(ctx context.Context, id ID) bool

	// Delete removes the artifact. Deleting a missing ID is a no-op.
	Delete(ctx context.Context, id ID) error

	// List returns the records of all stored artifacts ordered by ID
	List(ctx context.Context) ([]ArtifactRecord, error)

	// StoredSize returns the size the backend reports for the artifact's
	// bytes object, without reading it
	StoredSize(ctx context.Context, id ID) (int64, error)
}

// CatalogRepository defines the interface for catalog persistence
type CatalogRepository interface {
	Get(ctx context.Context, path string) (*CatalogEntry, error)
	// GetByID returns every entry resolving to id; content addressing lets
	// several sources share one artifact.
	GetByID(ctx context.Context, id ID) ([]*CatalogEntry, error)
	Put(ctx context.Context, entry *CatalogEntry) error
	Delete(ctx context.Context, path string) error
	List(ctx context.Context) ([]*CatalogEntry, error)
}

// Sources reads user-authored source files by virtual path.
type Sources interface {
	// Read returns the current source bytes. Missing sources yield ErrNotFound.
	Read(ctx context.Context, path string) ([]byte, error)
}

// Importer converts source bytes of the formats it accepts into artifacts.
type Importer interface {
	// Name identifies the importer in catalog provenance and errors
	Name() string

	// Version is recorded with every import; a change forces re-import
	Version() string

	// Accepts reports whether the importer handles a format hint or a
	// lower-cased file extension without the dot
	Accepts(formatOrExtension string) bool

	// Import converts source bytes into artifact bytes and a format tag
	Import(ctx context.Context, source []byte, sourcePath string) (artifact []byte, format string, err error)
}

// Resolved is the outcome of resolving an ID to current artifact bytes.
type Resolved struct {
	// RequestedID is the ID the caller asked for
	RequestedID ID
	// Record describes the artifact actually served; it differs from
	// RequestedID when the source was re-imported
	Record ArtifactRecord
	Bytes  []byte
	// Entry is the catalog entry that produced the artifact, if known
	Entry *CatalogEntry
}

// Resolver turns identifiers and paths into verified artifact bytes,
// importing on demand. The loader depends only on this interface.
type Resolver interface {
	Resolve(ctx context.Context, id ID) (*Resolved, error)
	ResolvePath(ctx context.Context, path, formatHint string) (*Resolved, error)
}

// EventSink defines the interface for event handling
type EventSink interface {
	// ArtifactStored is fired when a new artifact is written
	ArtifactStored(ctx context.Context, record ArtifactRecord) error

	// ArtifactDeleted is fired when an artifact is removed
	ArtifactDeleted(ctx context.Context, id ID) error

	// AssetImported is fired after a successful import; reused is true when
	// the catalog entry was already current
	AssetImported(ctx context.Context, entry *CatalogEntry, reused bool) error

	// ImportFailed is fired when an import fails
	ImportFailed(ctx context.Context, path string, err error) error
}
