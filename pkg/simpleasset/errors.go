package simpleasset

import (
	"errors"
	"fmt"
	"strings"
)

// Error types
var (
	// ErrNotFound indicates an identifier or path is unknown
	ErrNotFound = errors.New("not found")

	// ErrCorrupt indicates stored bytes no longer match their recorded hash
	ErrCorrupt = errors.New("artifact corrupt")

	// ErrNoImporter indicates no registered importer accepts the source format
	ErrNoImporter = errors.New("no importer accepts source")

	// ErrConversion indicates an importer failed to convert its source
	ErrConversion = errors.New("conversion failed")

	// ErrPluginIncompatible indicates a plugin failed ABI or version validation
	ErrPluginIncompatible = errors.New("plugin incompatible")

	// ErrDecode indicates a format failed to decode fetched artifact bytes
	ErrDecode = errors.New("decode failed")

	// ErrStale indicates a catalog entry exists but its source has changed.
	// It is a signal to re-import, not a failure.
	ErrStale = errors.New("catalog entry stale")

	// ErrRegistryFrozen indicates a registration after the pipeline was frozen
	ErrRegistryFrozen = errors.New("importer registry frozen")

	// ErrUnknownFormat indicates no decoder is registered for a format tag
	ErrUnknownFormat = errors.New("unknown format")

	// ErrClosed indicates the component was closed
	ErrClosed = errors.New("closed")

	// ErrMissingDependencies indicates an importer needs other sources
	// imported before it can convert its own
	ErrMissingDependencies = errors.New("missing dependencies")

	// ErrDependencyCycle indicates an import or decode that depends on itself
	ErrDependencyCycle = errors.New("dependency cycle")
)

// StoreError represents an error related to content store operations
type StoreError struct {
	ID  ID
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store operation %s failed for artifact %s: %v", e.Op, e.ID, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// CatalogError represents an error related to catalog operations
type CatalogError struct {
	Path string
	Op   string
	Err  error
}

func (e *CatalogError) Error() string {
	return fmt.Sprintf("catalog operation %s failed for path %s: %v", e.Op, e.Path, e.Err)
}

func (e *CatalogError) Unwrap() error {
	return e.Err
}

// ConversionError carries an importer-reported failure. It always matches
// ErrConversion with errors.Is.
type ConversionError struct {
	Importer string
	Path     string
	Err      error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("importer %s failed to convert %s: %v", e.Importer, e.Path, e.Err)
}

func (e *ConversionError) Unwrap() []error {
	return []error{ErrConversion, e.Err}
}

// PluginError reports a plugin that could not be trusted. It always matches
// ErrPluginIncompatible with errors.Is.
type PluginError struct {
	Path   string
	Reason string
	Err    error
}

func (e *PluginError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("plugin %s incompatible: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("plugin %s incompatible: %s", e.Path, e.Reason)
}

func (e *PluginError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrPluginIncompatible}
	}
	return []error{ErrPluginIncompatible, e.Err}
}

// DependencyError names the sources an importer needs before it can run.
// It always matches ErrMissingDependencies with errors.Is.
type DependencyError struct {
	Path         string
	Dependencies []Dependency
}

func (e *DependencyError) Error() string {
	paths := make([]string, len(e.Dependencies))
	for i, d := range e.Dependencies {
		paths[i] = d.Path
	}
	return fmt.Sprintf("source %s requires %s", e.Path, strings.Join(paths, ", "))
}

func (e *DependencyError) Unwrap() error {
	return ErrMissingDependencies
}

// Stage names the resolution step that failed.
type Stage string

const (
	StageCatalog Stage = "catalog"
	StageStore   Stage = "store"
	StageImport  Stage = "import"
	StageDecode  Stage = "decode"
)

// LoadError is delivered identically to every waiter of a failed resolution.
type LoadError struct {
	ID     ID
	Format string
	Stage  Stage
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s as %s failed at %s stage: %v", e.ID, e.Format, e.Stage, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// StageOf returns the stage recorded in err, or "" if err is not a LoadError.
func StageOf(err error) Stage {
	var le *LoadError
	if errors.As(err, &le) {
		return le.Stage
	}
	return ""
}

// Retryable reports whether a fresh load may succeed where err failed.
// Integrity, plugin compatibility, decode, importer selection and dependency
// cycle failures are permanent until the entry is invalidated.
func Retryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrCorrupt),
		errors.Is(err, ErrPluginIncompatible),
		errors.Is(err, ErrDecode),
		errors.Is(err, ErrNoImporter),
		errors.Is(err, ErrUnknownFormat),
		errors.Is(err, ErrDependencyCycle):
		return false
	default:
		return true
	}
}
