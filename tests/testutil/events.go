package testutil

import (
	"context"
	"sync"

	"github.com/tendant/simple-asset/pkg/simpleasset"
)

// RecordingEventSink remembers the events it receives.
type RecordingEventSink struct {
	mu       sync.Mutex
	Stored   []simpleasset.ID
	Deleted  []simpleasset.ID
	Imported []string
	Reused   []string
	Failed   []string
}

func (r *RecordingEventSink) ArtifactStored(ctx context.Context, record simpleasset.ArtifactRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Stored = append(r.Stored, record.ID)
	return nil
}

func (r *RecordingEventSink) ArtifactDeleted(ctx context.Context, id simpleasset.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Deleted = append(r.Deleted, id)
	return nil
}

func (r *RecordingEventSink) AssetImported(ctx context.Context, entry *simpleasset.CatalogEntry, reused bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if reused {
		r.Reused = append(r.Reused, entry.Path)
	} else {
		r.Imported = append(r.Imported, entry.Path)
	}
	return nil
}

func (r *RecordingEventSink) ImportFailed(ctx context.Context, path string, err error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Failed = append(r.Failed, path)
	return nil
}

// Snapshot returns copies of the recorded imported and failed paths.
func (r *RecordingEventSink) Snapshot() (imported, reused, failed []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.Imported...), append([]string(nil), r.Reused...), append([]string(nil), r.Failed...)
}
