package simpleasset

import (
	"context"
	"errors"
)

// MultiEventSink fans every event out to each sink in order. All sinks are
// called; their errors are joined.
type MultiEventSink []EventSink

// NewMultiEventSink drops nil sinks and returns a single sink when only one
// remains.
func NewMultiEventSink(sinks ...EventSink) EventSink {
	out := make(MultiEventSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	switch len(out) {
	case 0:
		return NewNoopEventSink()
	case 1:
		return out[0]
	}
	return out
}

func (m MultiEventSink) each(fn func(EventSink) error) error {
	var errs []error
	for _, s := range m {
		if err := fn(s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m MultiEventSink) ArtifactStored(ctx context.Context, record ArtifactRecord) error {
	return m.each(func(s EventSink) error { return s.ArtifactStored(ctx, record) })
}

func (m MultiEventSink) ArtifactDeleted(ctx context.Context, id ID) error {
	return m.each(func(s EventSink) error { return s.ArtifactDeleted(ctx, id) })
}

func (m MultiEventSink) AssetImported(ctx context.Context, entry *CatalogEntry, reused bool) error {
	return m.each(func(s EventSink) error { return s.AssetImported(ctx, entry, reused) })
}

func (m MultiEventSink) ImportFailed(ctx context.Context, path string, err error) error {
	return m.each(func(s EventSink) error { return s.ImportFailed(ctx, path, err) })
}
