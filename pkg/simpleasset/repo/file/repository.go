// Package file persists the catalog as a single document on local disk.
//
// The document is CBOR unless the path ends in ".json". Every mutation
// rewrites the whole document through a temporary file and a rename, so a
// crash leaves either the previous catalog or the new one.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/tendant/simple-asset/pkg/simpleasset"
	"github.com/tendant/simple-asset/pkg/simpleasset/repo/memory"
)

// documentVersion is written into every catalog document. Documents with a
// different version are rejected rather than misread.
const documentVersion = 1

type document struct {
	Version int                         `json:"version" cbor:"version"`
	Entries []*simpleasset.CatalogEntry `json:"entries" cbor:"entries"`
}

// Repository implements simpleasset.CatalogRepository over a document file.
type Repository struct {
	mu      sync.Mutex // serializes mutations and their writes
	path    string
	useJSON bool
	index   *memory.Repository
}

// Open loads the catalog at path, or starts an empty one if the file does
// not exist yet.
func Open(path string) (*Repository, error) {
	if path == "" {
		return nil, errors.New("catalog file path is required")
	}
	r := &Repository{
		path:    path,
		useJSON: strings.EqualFold(filepath.Ext(path), ".json"),
		index:   memory.New(),
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return r, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}

	var doc document
	if r.useJSON {
		err = json.Unmarshal(data, &doc)
	} else {
		err = decMode.Unmarshal(data, &doc)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode catalog %s: %w", path, err)
	}
	if doc.Version != documentVersion {
		return nil, fmt.Errorf("catalog %s has version %d, want %d", path, doc.Version, documentVersion)
	}

	ctx := context.Background()
	for _, entry := range doc.Entries {
		if err := r.index.Put(ctx, entry); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Path returns the document location.
func (r *Repository) Path() string {
	return r.path
}

func (r *Repository) Get(ctx context.Context, path string) (*simpleasset.CatalogEntry, error) {
	return r.index.Get(ctx, path)
}

func (r *Repository) GetByID(ctx context.Context, id simpleasset.ID) ([]*simpleasset.CatalogEntry, error) {
	return r.index.GetByID(ctx, id)
}

func (r *Repository) List(ctx context.Context) ([]*simpleasset.CatalogEntry, error) {
	return r.index.List(ctx)
}

func (r *Repository) Put(ctx context.Context, entry *simpleasset.CatalogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	previous, err := r.index.Get(ctx, entry.Path)
	if err != nil && !errors.Is(err, simpleasset.ErrNotFound) {
		return err
	}
	if err := r.index.Put(ctx, entry); err != nil {
		return err
	}
	if err := r.flush(ctx); err != nil {
		// Keep memory in step with disk.
		if previous != nil {
			_ = r.index.Put(ctx, previous)
		} else {
			_ = r.index.Delete(ctx, entry.Path)
		}
		return err
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	previous, err := r.index.Get(ctx, path)
	if err != nil {
		return err
	}
	if err := r.index.Delete(ctx, path); err != nil {
		return err
	}
	if err := r.flush(ctx); err != nil {
		_ = r.index.Put(ctx, previous)
		return err
	}
	return nil
}

func (r *Repository) flush(ctx context.Context) (err error) {
	entries, err := r.index.List(ctx)
	if err != nil {
		return err
	}
	doc := document{Version: documentVersion, Entries: entries}

	var data []byte
	if r.useJSON {
		data, err = json.MarshalIndent(doc, "", "  ")
	} else {
		data, err = encMode.Marshal(doc)
	}
	if err != nil {
		return fmt.Errorf("failed to encode catalog: %w", err)
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create catalog directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(r.path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp catalog: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("failed to write catalog: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync catalog: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close catalog: %w", err)
	}
	if err = os.Rename(tmp.Name(), r.path); err != nil {
		return fmt.Errorf("failed to replace catalog: %w", err)
	}
	return nil
}
