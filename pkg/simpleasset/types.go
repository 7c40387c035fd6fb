package simpleasset

import (
	"path"
	"slices"
	"strings"
	"time"
)

// ArtifactRecord describes a stored artifact.
//
// The Hash is recomputed on every read and a mismatch is reported as
// ErrCorrupt; it is never silently tolerated.
type ArtifactRecord struct {
	ID        ID        `json:"id" cbor:"id"`
	Hash      Hash      `json:"hash" cbor:"hash"`
	Format    string    `json:"format" cbor:"format"`
	Size      int64     `json:"size" cbor:"size"`
	Location  string    `json:"location" cbor:"location"`
	CreatedAt time.Time `json:"created_at" cbor:"created_at"`
}

// ImporterIdentity records which importer produced an artifact.
type ImporterIdentity struct {
	Name    string `json:"name" cbor:"name"`
	Version string `json:"version" cbor:"version"`
}

func (i ImporterIdentity) String() string {
	if i.Version == "" {
		return i.Name
	}
	return i.Name + "@" + i.Version
}

// IsZero reports whether no importer is recorded.
func (i ImporterIdentity) IsZero() bool {
	return i.Name == "" && i.Version == ""
}

// CatalogEntry maps a virtual source path to the artifact currently imported
// from it.
//
// The ID is trusted only while SourceHash matches the hash of the current
// source bytes.
type CatalogEntry struct {
	Path       string           `json:"path" cbor:"path"`
	FormatHint string           `json:"format_hint,omitempty" cbor:"format_hint,omitempty"`
	ID         ID               `json:"id" cbor:"id"`
	SourceHash Hash             `json:"source_hash" cbor:"source_hash"`
	Importer   ImporterIdentity `json:"importer" cbor:"importer"`
	UpdatedAt  time.Time        `json:"updated_at" cbor:"updated_at"`
	// Dependencies lists the other sources the importer read. The entry is
	// stale once any of them maps to a different artifact.
	Dependencies []Dependency `json:"dependencies,omitempty" cbor:"dependencies,omitempty"`
}

// Clone returns a copy that shares no memory with e.
func (e *CatalogEntry) Clone() *CatalogEntry {
	c := *e
	c.Dependencies = slices.Clone(e.Dependencies)
	return &c
}

// Dependency is another source an artifact was built from, with the
// artifact that source had at the time.
type Dependency struct {
	Path       string `json:"path" cbor:"path"`
	FormatHint string `json:"format_hint,omitempty" cbor:"format_hint,omitempty"`
	ID         ID     `json:"id" cbor:"id"`
}

// Freshness classifies a catalog entry against the current source.
type Freshness string

const (
	FreshnessMissing Freshness = "missing"
	FreshnessFresh   Freshness = "fresh"
	FreshnessStale   Freshness = "stale"
)

// NormalizePath cleans a virtual source path: forward slashes, no leading
// slash, no "." or ".." segments.
func NormalizePath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = path.Clean("/" + p)
	return strings.TrimPrefix(p, "/")
}

// Extension returns the lower-cased extension of p without the leading dot,
// or "" when p has none.
func Extension(p string) string {
	ext := path.Ext(NormalizePath(p))
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
