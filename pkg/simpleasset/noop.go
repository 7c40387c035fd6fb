package simpleasset

import (
	"context"
	"log/slog"
)

// NoopEventSink is a no-operation implementation of EventSink
// Useful for production when you don't need event handling or for testing
type NoopEventSink struct{}

// NewNoopEventSink creates a new no-operation event sink
func NewNoopEventSink() EventSink {
	return &NoopEventSink{}
}

// ArtifactStored does nothing and returns nil
func (n *NoopEventSink) ArtifactStored(ctx context.Context, record ArtifactRecord) error {
	return nil
}

// ArtifactDeleted does nothing and returns nil
func (n *NoopEventSink) ArtifactDeleted(ctx context.Context, id ID) error {
	return nil
}

// AssetImported does nothing and returns nil
func (n *NoopEventSink) AssetImported(ctx context.Context, entry *CatalogEntry, reused bool) error {
	return nil
}

// ImportFailed does nothing and returns nil
func (n *NoopEventSink) ImportFailed(ctx context.Context, path string, err error) error {
	return nil
}

// LoggingEventSink is an event sink that logs events but takes no other action
// Useful for development and debugging
type LoggingEventSink struct {
	logger *slog.Logger
}

// NewLoggingEventSink creates a new logging event sink. A nil logger uses
// slog.Default().
func NewLoggingEventSink(logger *slog.Logger) EventSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingEventSink{logger: logger}
}

// ArtifactStored logs the artifact write
func (l *LoggingEventSink) ArtifactStored(ctx context.Context, record ArtifactRecord) error {
	l.logger.InfoContext(ctx, "Artifact stored", "id", record.ID, "format", record.Format, "size", record.Size, "hash", record.Hash)
	return nil
}

// ArtifactDeleted logs the artifact removal
func (l *LoggingEventSink) ArtifactDeleted(ctx context.Context, id ID) error {
	l.logger.InfoContext(ctx, "Artifact deleted", "id", id)
	return nil
}

// AssetImported logs the import
func (l *LoggingEventSink) AssetImported(ctx context.Context, entry *CatalogEntry, reused bool) error {
	l.logger.InfoContext(ctx, "Asset imported", "path", entry.Path, "id", entry.ID, "importer", entry.Importer.String(), "reused", reused)
	return nil
}

// ImportFailed logs the failure
func (l *LoggingEventSink) ImportFailed(ctx context.Context, path string, err error) error {
	l.logger.ErrorContext(ctx, "Asset import failed", "path", path, "error", err)
	return nil
}
