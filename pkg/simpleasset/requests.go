package simpleasset

// Request/Response DTOs

// ImportRequest contains parameters for importing a source file
type ImportRequest struct {
	// Path is the virtual source path, relative to the source root
	Path string
	// FormatHint overrides extension-based importer selection
	FormatHint string
	// Force re-runs the importer even when the catalog entry is current
	Force bool
}

// ImportResult describes the artifact current for a source after Import
type ImportResult struct {
	ID     ID
	Record ArtifactRecord
	Entry  *CatalogEntry
	// Reused is true when the catalog entry was already current and no
	// importer ran
	Reused bool
}
