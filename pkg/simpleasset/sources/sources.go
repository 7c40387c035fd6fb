// Package sources reads user-authored asset sources from a go-billy
// filesystem, addressed by forward-slash virtual paths.
package sources

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/tendant/simple-asset/pkg/simpleasset"
)

// FS implements simpleasset.Sources over a billy.Filesystem.
type FS struct {
	bfs billy.Filesystem
}

// NewLocal serves sources from the directory root. Paths cannot escape it.
func NewLocal(root string) *FS {
	return &FS{bfs: osfs.New(root, osfs.WithBoundOS())}
}

// NewMemory creates an empty in-memory source tree.
func NewMemory() *FS {
	return &FS{bfs: memfs.New()}
}

// New wraps an existing filesystem.
func New(bfs billy.Filesystem) *FS {
	return &FS{bfs: bfs}
}

// Unwrap returns the underlying billy.Filesystem.
func (f *FS) Unwrap() billy.Filesystem {
	return f.bfs
}

// Read returns the current bytes of the source at name.
func (f *FS) Read(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name = simpleasset.NormalizePath(name)
	if name == "" {
		return nil, fmt.Errorf("empty source path: %w", simpleasset.ErrNotFound)
	}

	data, err := util.ReadFile(f.bfs, name)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("source %s: %w", name, simpleasset.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read source %s: %w", name, err)
	}
	return data, nil
}

// Write replaces the source at name, creating parent directories.
func (f *FS) Write(name string, data []byte) error {
	name = simpleasset.NormalizePath(name)
	if dir := path.Dir(name); dir != "." {
		if err := f.bfs.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return util.WriteFile(f.bfs, name, data, 0644)
}

// Remove deletes the source at name. Missing sources yield ErrNotFound.
func (f *FS) Remove(name string) error {
	name = simpleasset.NormalizePath(name)
	err := f.bfs.Remove(name)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("source %s: %w", name, simpleasset.ErrNotFound)
	}
	return err
}

// List returns every source path in lexical order. Hidden files and
// directories are skipped.
func (f *FS) List(ctx context.Context) ([]string, error) {
	var paths []string
	if err := f.walk(ctx, ".", &paths); err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	sort.Strings(paths)
	return paths, nil
}

func (f *FS) walk(ctx context.Context, dir string, paths *[]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	entries, err := f.bfs.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		child := path.Join(dir, entry.Name())
		if entry.IsDir() {
			if err := f.walk(ctx, child, paths); err != nil {
				return err
			}
			continue
		}
		*paths = append(*paths, simpleasset.NormalizePath(child))
	}
	return nil
}
