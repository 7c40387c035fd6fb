// Package simpleasset provides a reusable asset management core: it imports
// user-authored source files through pluggable importers, stores the produced
// artifacts immutably under stable identifiers, and resolves identifiers back
// to artifact bytes for the asynchronous loader.
//
// The root package defines the shared vocabulary (ID, Hash, ArtifactRecord,
// CatalogEntry), the collaborator interfaces (BlobStore, ContentStore,
// CatalogRepository, Sources, Importer, EventSink) and the Service that
// orchestrates import and resolution. Implementations live in subpackages:
// store (content store), storage/* (blob backends), catalog and repo/*
// (path to identifier index), importer (pipeline and plugins), loader
// (single-flight cache) and config (wiring).
//
// Identity Strategy
//
// Artifacts are content addressed within the live set: putting bytes that are
// identical in content and format returns the ID already assigned to them.
// Once an artifact is deleted its ID is retired; importing the same bytes again
// mints a fresh ID so stale caches never alias new data.
package simpleasset
