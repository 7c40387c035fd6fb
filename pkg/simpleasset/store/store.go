// Package store implements simpleasset.ContentStore on top of any
// simpleasset.BlobStore.
//
// Each artifact occupies three objects: the bytes, a JSON record sidecar and
// a hash index entry. They are written in that order and an artifact becomes
// visible only once its sidecar exists, so an interrupted Put never exposes a
// partial artifact. Identical bytes stored under the same format resolve to
// the artifact already holding them.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/tendant/simple-asset/pkg/simpleasset"
	"github.com/tendant/simple-asset/pkg/simpleasset/objectkey"
)

// DefaultRecordCacheSize bounds the number of cached artifact records.
const DefaultRecordCacheSize = 4096

// Store is a content-addressed artifact store.
type Store struct {
	blobs   simpleasset.BlobStore
	keys    objectkey.Generator
	alg     simpleasset.HashAlgorithm
	records *lru.Cache[simpleasset.ID, simpleasset.ArtifactRecord]
	locks   *keyedMutex
	logger  *slog.Logger
	now     func() time.Time

	cacheSize int
}

// Option configures a Store.
type Option func(*Store)

// WithKeyGenerator overrides the object key layout.
func WithKeyGenerator(g objectkey.Generator) Option {
	return func(s *Store) {
		s.keys = g
	}
}

// WithHashAlgorithm sets the digest used for new artifacts. Existing
// artifacts are always verified with the algorithm they were recorded with.
func WithHashAlgorithm(alg simpleasset.HashAlgorithm) Option {
	return func(s *Store) {
		s.alg = alg
	}
}

// WithRecordCacheSize bounds the record cache.
func WithRecordCacheSize(n int) Option {
	return func(s *Store) {
		s.cacheSize = n
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithClock overrides the time source for CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New creates a Store over blobs.
func New(blobs simpleasset.BlobStore, opts ...Option) (*Store, error) {
	if blobs == nil {
		return nil, errors.New("blob store is required")
	}
	s := &Store{
		blobs:     blobs,
		keys:      objectkey.NewRecommendedGenerator(),
		alg:       simpleasset.DefaultHashAlgorithm,
		locks:     newKeyedMutex(),
		now:       time.Now,
		cacheSize: DefaultRecordCacheSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.cacheSize <= 0 {
		s.cacheSize = DefaultRecordCacheSize
	}
	cache, err := lru.New[simpleasset.ID, simpleasset.ArtifactRecord](s.cacheSize)
	if err != nil {
		return nil, err
	}
	s.records = cache
	return s, nil
}

func lockKey(hash simpleasset.Hash, format string) string {
	return string(hash) + "\x00" + format
}

// Put stores the artifact and returns its record.
func (s *Store) Put(ctx context.Context, reader io.Reader, format string) (simpleasset.ArtifactRecord, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return simpleasset.ArtifactRecord{}, &simpleasset.StoreError{Op: "put", Err: err}
	}
	hash := simpleasset.HashBytes(s.alg, data)

	unlock := s.locks.Lock(lockKey(hash, format))
	defer unlock()

	if rec, ok, err := s.lookupIndex(ctx, hash, format); err != nil {
		return simpleasset.ArtifactRecord{}, err
	} else if ok {
		s.logger.DebugContext(ctx, "Artifact already stored", "id", rec.ID, "hash", hash)
		return rec, nil
	}

	id := simpleasset.NewID()
	rec := simpleasset.ArtifactRecord{
		ID:        id,
		Hash:      hash,
		Format:    format,
		Size:      int64(len(data)),
		Location:  s.keys.ArtifactKey(id),
		CreatedAt: s.now().UTC(),
	}

	if err := s.blobs.Upload(ctx, rec.Location, bytes.NewReader(data)); err != nil {
		return simpleasset.ArtifactRecord{}, &simpleasset.StoreError{ID: id, Op: "put", Err: err}
	}

	meta, err := json.Marshal(rec)
	if err != nil {
		return simpleasset.ArtifactRecord{}, &simpleasset.StoreError{ID: id, Op: "put", Err: err}
	}
	if err := s.blobs.Upload(ctx, s.keys.MetaKey(id), bytes.NewReader(meta)); err != nil {
		// Without a sidecar the bytes are unreachable; best effort cleanup.
		_ = s.blobs.Delete(ctx, rec.Location)
		return simpleasset.ArtifactRecord{}, &simpleasset.StoreError{ID: id, Op: "put", Err: err}
	}

	if err := s.blobs.Upload(ctx, s.keys.IndexKey(hash, format), strings.NewReader(id.String())); err != nil {
		// The artifact is stored and visible; only deduplication is lost.
		s.logger.WarnContext(ctx, "Failed to write hash index", "id", id, "hash", hash, "error", err)
	}

	s.records.Add(id, rec)
	s.logger.DebugContext(ctx, "Artifact stored", "id", id, "format", format, "size", rec.Size)
	return rec, nil
}

// lookupIndex returns the live artifact recorded for hash and format.
func (s *Store) lookupIndex(ctx context.Context, hash simpleasset.Hash, format string) (simpleasset.ArtifactRecord, bool, error) {
	rc, err := s.blobs.Download(ctx, s.keys.IndexKey(hash, format))
	if errors.Is(err, simpleasset.ErrNotFound) {
		return simpleasset.ArtifactRecord{}, false, nil
	}
	if err != nil {
		return simpleasset.ArtifactRecord{}, false, &simpleasset.StoreError{Op: "index", Err: err}
	}
	raw, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return simpleasset.ArtifactRecord{}, false, &simpleasset.StoreError{Op: "index", Err: err}
	}

	id, err := simpleasset.ParseID(strings.TrimSpace(string(raw)))
	if err != nil {
		s.logger.WarnContext(ctx, "Ignoring unreadable hash index entry", "hash", hash, "error", err)
		return simpleasset.ArtifactRecord{}, false, nil
	}
	rec, err := s.Stat(ctx, id)
	switch {
	case errors.Is(err, simpleasset.ErrNotFound):
		return simpleasset.ArtifactRecord{}, false, nil
	case err != nil:
		return simpleasset.ArtifactRecord{}, false, err
	case rec.Hash != hash || rec.Format != format:
		return simpleasset.ArtifactRecord{}, false, nil
	}
	return rec, true, nil
}

// Stat returns the record without reading the artifact bytes.
func (s *Store) Stat(ctx context.Context, id simpleasset.ID) (simpleasset.ArtifactRecord, error) {
	if rec, ok := s.records.Get(id); ok {
		return rec, nil
	}

	rc, err := s.blobs.Download(ctx, s.keys.MetaKey(id))
	if err != nil {
		return simpleasset.ArtifactRecord{}, &simpleasset.StoreError{ID: id, Op: "stat", Err: err}
	}
	defer rc.Close()

	var rec simpleasset.ArtifactRecord
	if err := json.NewDecoder(rc).Decode(&rec); err != nil {
		return simpleasset.ArtifactRecord{}, &simpleasset.StoreError{ID: id, Op: "stat",
			Err: fmt.Errorf("%w: unreadable record: %v", simpleasset.ErrCorrupt, err)}
	}
	if rec.ID != id {
		return simpleasset.ArtifactRecord{}, &simpleasset.StoreError{ID: id, Op: "stat",
			Err: fmt.Errorf("%w: record names %s", simpleasset.ErrCorrupt, rec.ID)}
	}
	if _, err := simpleasset.ParseHash(string(rec.Hash)); err != nil {
		return simpleasset.ArtifactRecord{}, &simpleasset.StoreError{ID: id, Op: "stat",
			Err: fmt.Errorf("%w: %v", simpleasset.ErrCorrupt, err)}
	}

	s.records.Add(id, rec)
	return rec, nil
}

// Exists reports whether the artifact is stored.
func (s *Store) Exists(ctx context.Context, id simpleasset.ID) bool {
	_, err := s.Stat(ctx, id)
	return err == nil
}

// Get returns the verified artifact bytes.
func (s *Store) Get(ctx context.Context, id simpleasset.ID) ([]byte, simpleasset.ArtifactRecord, error) {
	rc, rec, err := s.Open(ctx, id)
	if err != nil {
		return nil, simpleasset.ArtifactRecord{}, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, simpleasset.ArtifactRecord{}, err
	}
	return data, rec, nil
}

// Open streams the artifact. The returned reader reports ErrCorrupt instead
// of io.EOF when the streamed bytes disagree with the record.
func (s *Store) Open(ctx context.Context, id simpleasset.ID) (io.ReadCloser, simpleasset.ArtifactRecord, error) {
	rec, err := s.Stat(ctx, id)
	if err != nil {
		return nil, simpleasset.ArtifactRecord{}, err
	}

	rc, err := s.blobs.Download(ctx, rec.Location)
	if errors.Is(err, simpleasset.ErrNotFound) {
		// Record without bytes: the store was damaged underneath us.
		return nil, simpleasset.ArtifactRecord{}, &simpleasset.StoreError{ID: id, Op: "open",
			Err: fmt.Errorf("%w: artifact bytes missing", simpleasset.ErrCorrupt)}
	}
	if err != nil {
		return nil, simpleasset.ArtifactRecord{}, &simpleasset.StoreError{ID: id, Op: "open", Err: err}
	}
	return newVerifyingReader(rc, rec), rec, nil
}

// Delete removes the artifact. Deleting a missing ID is a no-op; the ID is
// never reused.
func (s *Store) Delete(ctx context.Context, id simpleasset.ID) error {
	rec, err := s.Stat(ctx, id)
	if errors.Is(err, simpleasset.ErrNotFound) {
		s.records.Remove(id)
		return nil
	}
	if err != nil && !errors.Is(err, simpleasset.ErrCorrupt) {
		return err
	}

	if err == nil {
		unlock := s.locks.Lock(lockKey(rec.Hash, rec.Format))
		defer unlock()
		if indexed, ok, _ := s.lookupIndex(ctx, rec.Hash, rec.Format); ok && indexed.ID == id {
			if err := s.deleteObject(ctx, s.keys.IndexKey(rec.Hash, rec.Format)); err != nil {
				return &simpleasset.StoreError{ID: id, Op: "delete", Err: err}
			}
		}
	}

	s.records.Remove(id)
	// Removing the sidecar first makes the artifact invisible.
	if err := s.deleteObject(ctx, s.keys.MetaKey(id)); err != nil {
		return &simpleasset.StoreError{ID: id, Op: "delete", Err: err}
	}
	if err := s.deleteObject(ctx, s.keys.ArtifactKey(id)); err != nil {
		return &simpleasset.StoreError{ID: id, Op: "delete", Err: err}
	}
	s.logger.DebugContext(ctx, "Artifact deleted", "id", id)
	return nil
}

func (s *Store) deleteObject(ctx context.Context, key string) error {
	if err := s.blobs.Delete(ctx, key); err != nil && !errors.Is(err, simpleasset.ErrNotFound) {
		return err
	}
	return nil
}

// StoredSize returns the backend size of the artifact bytes. Behind a
// compressing backend it is the compressed size.
func (s *Store) StoredSize(ctx context.Context, id simpleasset.ID) (int64, error) {
	rec, err := s.Stat(ctx, id)
	if err != nil {
		return 0, err
	}
	meta, err := s.blobs.GetObjectMeta(ctx, rec.Location)
	if err != nil {
		return 0, &simpleasset.StoreError{ID: id, Op: "stored_size", Err: err}
	}
	return meta.Size, nil
}

// List returns the records of all stored artifacts ordered by ID.
func (s *Store) List(ctx context.Context) ([]simpleasset.ArtifactRecord, error) {
	keys, err := s.blobs.List(ctx, s.keys.ArtifactPrefix())
	if err != nil {
		return nil, &simpleasset.StoreError{Op: "list", Err: err}
	}

	var ids []simpleasset.ID
	for _, key := range keys {
		if id, ok := objectkey.IDFromMetaKey(key); ok {
			ids = append(ids, id)
		}
	}
	simpleasset.SortIDs(ids)

	records := make([]simpleasset.ArtifactRecord, 0, len(ids))
	for _, id := range ids {
		rec, err := s.Stat(ctx, id)
		if errors.Is(err, simpleasset.ErrNotFound) {
			// Deleted concurrently.
			continue
		}
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}
