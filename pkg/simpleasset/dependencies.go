package simpleasset

import (
	"context"
	"path"
	"slices"
	"strings"
	"sync"
)

// LookupFunc returns the artifact currently imported from a source, or false
// when the source has none yet.
type LookupFunc func(ctx context.Context, path, formatHint string) (ID, bool)

// Dependencies lets an importer read the artifacts of other sources. The
// service attaches one to the import context; importers reach it through
// DependenciesFrom. Every lookup is recorded: hits become the entry's
// dependencies, misses are imported before the importer runs again.
type Dependencies struct {
	source string
	lookup LookupFunc

	mu      sync.Mutex
	used    []Dependency
	missing []Dependency
}

// NewDependencies tracks the dependencies of the source at sourcePath.
func NewDependencies(sourcePath string, lookup LookupFunc) *Dependencies {
	return &Dependencies{source: NormalizePath(sourcePath), lookup: lookup}
}

// Resolve turns a reference found in the source into a virtual path. A
// leading slash anchors it at the root; anything else is relative to the
// directory of the importing source.
func (d *Dependencies) Resolve(ref string) string {
	ref = strings.ReplaceAll(ref, "\\", "/")
	if strings.HasPrefix(ref, "/") {
		return NormalizePath(ref)
	}
	return NormalizePath(path.Join(path.Dir(d.source), ref))
}

// Get returns the artifact of the referenced source.
func (d *Dependencies) Get(ctx context.Context, ref, formatHint string) (ID, bool) {
	dep := Dependency{Path: d.Resolve(ref), FormatHint: formatHint}

	var ok bool
	if d.lookup != nil && dep.Path != d.source {
		dep.ID, ok = d.lookup(ctx, dep.Path, formatHint)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if ok {
		d.used = addDependency(d.used, dep)
	} else {
		d.missing = addDependency(d.missing, Dependency{Path: dep.Path, FormatHint: formatHint})
	}
	return dep.ID, ok
}

// Missing returns a *DependencyError naming every reference Get could not
// satisfy, or nil.
func (d *Dependencies) Missing() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.missing) == 0 {
		return nil
	}
	return &DependencyError{Path: d.source, Dependencies: slices.Clone(d.missing)}
}

// Used returns the satisfied references ordered by path.
func (d *Dependencies) Used() []Dependency {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.used)
}

func addDependency(deps []Dependency, dep Dependency) []Dependency {
	i, found := slices.BinarySearchFunc(deps, dep, compareDependency)
	if found {
		deps[i] = dep
		return deps
	}
	return slices.Insert(deps, i, dep)
}

func compareDependency(a, b Dependency) int {
	if c := strings.Compare(a.Path, b.Path); c != 0 {
		return c
	}
	return strings.Compare(a.FormatHint, b.FormatHint)
}

type dependenciesKey struct{}

// WithDependencies attaches d to ctx for the importer it is passed to.
func WithDependencies(ctx context.Context, d *Dependencies) context.Context {
	return context.WithValue(ctx, dependenciesKey{}, d)
}

// DependenciesFrom returns the tracker attached to ctx. Outside a service
// import every lookup misses.
func DependenciesFrom(ctx context.Context) *Dependencies {
	if d, ok := ctx.Value(dependenciesKey{}).(*Dependencies); ok {
		return d
	}
	return &Dependencies{}
}
