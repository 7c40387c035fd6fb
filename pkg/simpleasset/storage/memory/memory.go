package memory

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tendant/simple-asset/pkg/simpleasset"
)

type object struct {
	data      []byte
	updatedAt time.Time
}

// Backend is an in-memory implementation of the simpleasset.BlobStore interface
type Backend struct {
	mu      sync.RWMutex
	objects map[string]object
}

// New creates a new in-memory storage backend
func New() *Backend {
	return &Backend{
		objects: make(map[string]object),
	}
}

// GetObjectMeta retrieves metadata for an object in memory
func (b *Backend) GetObjectMeta(ctx context.Context, objectKey string) (*simpleasset.ObjectMeta, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	obj, exists := b.objects[objectKey]
	if !exists {
		return nil, fmt.Errorf("object %s: %w", objectKey, simpleasset.ErrNotFound)
	}

	sum := md5.Sum(obj.data)
	return &simpleasset.ObjectMeta{
		Key:       objectKey,
		Size:      int64(len(obj.data)),
		UpdatedAt: obj.updatedAt,
		ETag:      hex.EncodeToString(sum[:]),
	}, nil
}

// Upload buffers the reader fully before publishing the object, so a failed
// read never leaves a partial object behind.
func (b *Backend) Upload(ctx context.Context, objectKey string, reader io.Reader) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.objects[objectKey] = object{data: data, updatedAt: time.Now().UTC()}
	return nil
}

// Download returns a reader over a snapshot of the object
func (b *Backend) Download(ctx context.Context, objectKey string) (io.ReadCloser, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	obj, exists := b.objects[objectKey]
	if !exists {
		return nil, fmt.Errorf("object %s: %w", objectKey, simpleasset.ErrNotFound)
	}

	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

// Delete deletes content
func (b *Backend) Delete(ctx context.Context, objectKey string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.objects[objectKey]; !exists {
		return fmt.Errorf("object %s: %w", objectKey, simpleasset.ErrNotFound)
	}

	delete(b.objects, objectKey)
	return nil
}

// List returns the keys under prefix in lexical order
func (b *Backend) List(ctx context.Context, prefix string) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var keys []string
	for key := range b.objects {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Tamper overwrites an object in place without any atomicity, simulating
// on-disk corruption in tests.
func (b *Backend) Tamper(objectKey string, mutate func([]byte) []byte) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	obj, exists := b.objects[objectKey]
	if !exists {
		return false
	}
	data := append([]byte(nil), obj.data...)
	obj.data = mutate(data)
	b.objects[objectKey] = obj
	return true
}
