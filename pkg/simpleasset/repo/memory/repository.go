package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/tendant/simple-asset/pkg/simpleasset"
)

// Repository implements simpleasset.CatalogRepository using in-memory storage
type Repository struct {
	mu      sync.RWMutex
	entries map[string]*simpleasset.CatalogEntry
	byID    map[simpleasset.ID]map[string]struct{} // id -> paths
}

// New creates a new in-memory repository
func New() *Repository {
	return &Repository{
		entries: make(map[string]*simpleasset.CatalogEntry),
		byID:    make(map[simpleasset.ID]map[string]struct{}),
	}
}

func (r *Repository) Get(ctx context.Context, path string) (*simpleasset.CatalogEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, exists := r.entries[path]
	if !exists {
		return nil, fmt.Errorf("catalog entry %s: %w", path, simpleasset.ErrNotFound)
	}
	// Return a copy to prevent external modifications
	return entry.Clone(), nil
}

func (r *Repository) GetByID(ctx context.Context, id simpleasset.ID) ([]*simpleasset.CatalogEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	paths := r.byID[id]
	if len(paths) == 0 {
		return nil, fmt.Errorf("catalog entry for %s: %w", id, simpleasset.ErrNotFound)
	}

	result := make([]*simpleasset.CatalogEntry, 0, len(paths))
	for path := range paths {
		result = append(result, r.entries[path].Clone())
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Path < result[j].Path
	})
	return result, nil
}

func (r *Repository) Put(ctx context.Context, entry *simpleasset.CatalogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.unindex(entry.Path)

	// Create a copy to avoid external modifications
	r.entries[entry.Path] = entry.Clone()
	paths, ok := r.byID[entry.ID]
	if !ok {
		paths = make(map[string]struct{})
		r.byID[entry.ID] = paths
	}
	paths[entry.Path] = struct{}{}
	return nil
}

func (r *Repository) Delete(ctx context.Context, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[path]; !exists {
		return fmt.Errorf("catalog entry %s: %w", path, simpleasset.ErrNotFound)
	}
	r.unindex(path)
	delete(r.entries, path)
	return nil
}

// unindex drops path from the reverse index; callers hold the write lock.
func (r *Repository) unindex(path string) {
	old, exists := r.entries[path]
	if !exists {
		return
	}
	paths := r.byID[old.ID]
	delete(paths, path)
	if len(paths) == 0 {
		delete(r.byID, old.ID)
	}
}

func (r *Repository) List(ctx context.Context) ([]*simpleasset.CatalogEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*simpleasset.CatalogEntry, 0, len(r.entries))
	for _, entry := range r.entries {
		result = append(result, entry.Clone())
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Path < result[j].Path
	})
	return result, nil
}
