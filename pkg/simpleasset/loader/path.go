package loader

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tendant/simple-asset/pkg/simpleasset"
)

type pathKey struct {
	path   string
	hint   string
	format string
}

// pathEntry remembers the artifact a path resolved to. The resolved bytes
// are handed once to the ID resolution that follows and then dropped.
type pathEntry struct {
	state state
	done  chan struct{}
	err   error

	id       simpleasset.ID
	resolved *simpleasset.Resolved
}

type pathTable struct {
	mu      sync.Mutex
	entries map[pathKey]*pathEntry
}

// take returns the resolved artifact at most once.
func (t *pathTable) take(pe *pathEntry) *simpleasset.Resolved {
	t.mu.Lock()
	defer t.mu.Unlock()
	r := pe.resolved
	pe.resolved = nil
	return r
}

func (t *pathTable) dropID(id simpleasset.ID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for pk, pe := range t.entries {
		if pe.state == stateReady && pe.id == id {
			delete(t.entries, pk)
		}
	}
}

func (t *pathTable) dropPath(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for pk := range t.entries {
		if pk.path == path {
			delete(t.entries, pk)
		}
	}
}

func (t *pathTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// resolvePath maps a path key to an artifact ID with at most one resolution
// in flight per key. Like ID keys, the resolution outlives callers that
// stop waiting.
func (l *Loader) resolvePath(ctx context.Context, pk pathKey) (*pathEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t := &l.paths
	t.mu.Lock()
	pe := t.entries[pk]
	if pe != nil {
		switch pe.state {
		case stateReady:
			t.mu.Unlock()
			return pe, nil
		case stateFailed:
			if !simpleasset.Retryable(pe.err) {
				err := pe.err
				t.mu.Unlock()
				return nil, err
			}
			delete(t.entries, pk)
			pe = nil
		}
	}
	if pe == nil {
		if !l.track() {
			t.mu.Unlock()
			return nil, simpleasset.ErrClosed
		}
		pe = &pathEntry{state: statePending, done: make(chan struct{})}
		t.entries[pk] = pe
		go l.runPath(ctx, pk, pe)
	}
	done := pe.done
	t.mu.Unlock()

	select {
	case <-done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if pe.state == stateFailed {
		return nil, pe.err
	}
	return pe, nil
}

func (l *Loader) runPath(callerCtx context.Context, pk pathKey, pe *pathEntry) {
	defer l.wg.Done()

	ctx, span := l.tracer.Start(l.ctx, "loader.resolvePath",
		trace.WithLinks(trace.LinkFromContext(callerCtx)),
		trace.WithAttributes(
			attribute.String("asset.path", pk.path),
			attribute.String("asset.format", pk.format),
		))

	resolved, err := l.fetchPath(ctx, pk)
	if err != nil {
		err = loadError(key{format: pk.format}, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		l.logger.WarnContext(ctx, "Asset path resolution failed", "path", pk.path, "format", pk.format,
			"stage", simpleasset.StageOf(err), "error", err)
	} else {
		span.SetAttributes(attribute.String("asset.id", resolved.Record.ID.String()))
	}
	span.End()

	l.paths.mu.Lock()
	if err != nil {
		pe.state = stateFailed
		pe.err = err
	} else {
		pe.state = stateReady
		pe.id = resolved.Record.ID
		pe.resolved = resolved
	}
	close(pe.done)
	l.paths.mu.Unlock()
}

func (l *Loader) fetchPath(ctx context.Context, pk pathKey) (*simpleasset.Resolved, error) {
	if err := l.workers.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("%w: %w", simpleasset.ErrClosed, err)
	}
	defer l.workers.Release(1)
	return l.resolver.ResolvePath(ctx, pk.path, pk.hint)
}
