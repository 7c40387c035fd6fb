// Package loader turns identifiers into decoded in-memory assets.
//
// Each (ID, format) key moves through pending, ready and failed states. At
// most one resolution per key is in flight; every concurrent caller waits on
// it and observes the same outcome. Resolutions are owned by the key, not by
// a caller: a caller that gives up returns ctx.Err() while the resolution
// runs to completion and populates the cache.
//
// Failed keys are cached. A later Load retries a failure only when
// simpleasset.Retryable reports it may succeed; integrity and decode failures
// stay cached until Invalidate.
//
// Path loads are keyed the same way by (path, hint, format). A ready path
// key answers without touching the source until Invalidate or
// InvalidatePath drops it.
package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"github.com/tendant/simple-asset/pkg/simpleasset"
)

const tracerName = "github.com/tendant/simple-asset/loader"

type resolveFunc func(ctx context.Context) (*simpleasset.Resolved, error)

// Loader caches decoded assets by identifier and format.
type Loader struct {
	resolver simpleasset.Resolver
	table    *table
	paths    pathTable
	formats  formatRegistry
	workers  *semaphore.Weighted

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	// closeMu orders wg.Add against Close
	closeMu sync.RWMutex
	closed  atomic.Bool

	resolutions atomic.Int64

	logger *slog.Logger
	tracer trace.Tracer
}

type options struct {
	workers int
	shards  int
	formats []Format
	logger  *slog.Logger
	tracer  trace.Tracer
}

// Option configures a Loader.
type Option func(*options)

// WithWorkers bounds concurrent resolutions. Defaults to GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithShards sets the number of state table shards, rounded up to a power
// of two. Defaults to 8 per GOMAXPROCS.
func WithShards(n int) Option {
	return func(o *options) {
		o.shards = n
	}
}

// WithFormats registers formats at construction.
func WithFormats(formats ...Format) Option {
	return func(o *options) {
		o.formats = append(o.formats, formats...)
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithTracer overrides the OpenTelemetry tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) {
		o.tracer = tracer
	}
}

// New creates a loader resolving through resolver.
func New(resolver simpleasset.Resolver, opts ...Option) (*Loader, error) {
	if resolver == nil {
		return nil, errors.New("resolver is required")
	}

	o := options{
		workers: runtime.GOMAXPROCS(0),
		shards:  shardsPerCPU * runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.workers < 1 {
		o.workers = 1
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.tracer == nil {
		o.tracer = otel.Tracer(tracerName)
	}

	ctx, cancel := context.WithCancel(context.Background())
	l := &Loader{
		resolver: resolver,
		table:    newTable(o.shards),
		paths:    pathTable{entries: make(map[pathKey]*pathEntry)},
		workers:  semaphore.NewWeighted(int64(o.workers)),
		ctx:      ctx,
		cancel:   cancel,
		logger:   o.logger,
		tracer:   o.tracer,
	}
	for _, f := range o.formats {
		if err := l.formats.register(f); err != nil {
			cancel()
			return nil, err
		}
	}
	return l, nil
}

// RegisterFormat adds a decoder. Registering a format name twice fails.
func (l *Loader) RegisterFormat(f Format) error {
	return l.formats.register(f)
}

// Load returns a handle to the asset for id decoded as format.
func (l *Loader) Load(ctx context.Context, id simpleasset.ID, format string) (*Handle[any], error) {
	return Load[any](ctx, l, id, format)
}

// Load is the typed form of Loader.Load. A decoded value that is not an A
// fails with ErrDecode.
func Load[A any](ctx context.Context, l *Loader, id simpleasset.ID, format string) (*Handle[A], error) {
	e, a, err := l.acquire(ctx, id, format, func(ctx context.Context) (*simpleasset.Resolved, error) {
		return l.resolver.Resolve(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return typed[A](l, e, a)
}

// LoadPath imports the source at path when needed and returns a handle to
// the current artifact decoded as format.
func (l *Loader) LoadPath(ctx context.Context, path, formatHint, format string) (*Handle[any], error) {
	return LoadPath[any](ctx, l, path, formatHint, format)
}

// LoadPath is the typed form of Loader.LoadPath.
func LoadPath[A any](ctx context.Context, l *Loader, path, formatHint, format string) (*Handle[A], error) {
	if l.closed.Load() {
		return nil, simpleasset.ErrClosed
	}
	if _, ok := l.formats.get(format); !ok {
		return nil, &simpleasset.LoadError{Format: format, Stage: simpleasset.StageDecode, Err: simpleasset.ErrUnknownFormat}
	}

	pe, err := l.resolvePath(ctx, pathKey{path: simpleasset.NormalizePath(path), hint: formatHint, format: format})
	if err != nil {
		return nil, err
	}

	id := pe.id
	e, a, err := l.acquire(ctx, id, format, func(ctx context.Context) (*simpleasset.Resolved, error) {
		if resolved := l.paths.take(pe); resolved != nil {
			return resolved, nil
		}
		return l.resolver.Resolve(ctx, id)
	})
	l.paths.take(pe)
	if err != nil {
		return nil, err
	}
	return typed[A](l, e, a)
}

// TryGetCached returns a handle when the asset is ready in the cache. It
// never starts a resolution or waits.
func (l *Loader) TryGetCached(id simpleasset.ID, format string) (*Handle[any], bool) {
	if l.closed.Load() {
		return nil, false
	}
	k := key{id: id, format: format}
	sh := l.table.shardFor(id)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	e, ok := sh.entries[k]
	if !ok || e.state != stateReady {
		return nil, false
	}
	a := e.acquire()
	if a == nil {
		delete(sh.entries, k)
		return nil, false
	}
	return &Handle[any]{loader: l, entry: e, asset: a, value: a.value}, true
}

// Invalidate forgets every format cached for id, along with the paths that
// resolved to it. Outstanding handles stay valid and an in-flight resolution
// still completes for its waiters.
func (l *Loader) Invalidate(id simpleasset.ID) {
	sh := l.table.shardFor(id)
	sh.mu.Lock()
	for k := range sh.entries {
		if k.id == id {
			delete(sh.entries, k)
		}
	}
	sh.mu.Unlock()

	l.paths.dropID(id)
}

// InvalidatePath forgets which artifact path resolved to, so the next
// LoadPath reads the source again.
func (l *Loader) InvalidatePath(path string) {
	l.paths.dropPath(simpleasset.NormalizePath(path))
}

// Stats is a snapshot of loader counters.
type Stats struct {
	// Entries counts keys in the table, in any state
	Entries int
	// Paths counts path keys, in any state
	Paths int
	// Resolutions counts resolutions started since New
	Resolutions int64
}

func (l *Loader) Stats() Stats {
	s := Stats{Resolutions: l.resolutions.Load(), Paths: l.paths.len()}
	for i := range l.table.shards {
		sh := &l.table.shards[i]
		sh.mu.Lock()
		s.Entries += len(sh.entries)
		sh.mu.Unlock()
	}
	return s
}

// Close cancels in-flight resolutions and waits for them to settle. Later
// loads fail with ErrClosed.
func (l *Loader) Close() error {
	l.closeMu.Lock()
	if l.closed.Load() {
		l.closeMu.Unlock()
		return nil
	}
	l.closed.Store(true)
	l.closeMu.Unlock()

	l.cancel()
	l.wg.Wait()
	return nil
}

// track registers a resolution goroutine, or reports false once the loader
// is closed.
func (l *Loader) track() bool {
	l.closeMu.RLock()
	defer l.closeMu.RUnlock()
	if l.closed.Load() {
		return false
	}
	l.wg.Add(1)
	return true
}

func (l *Loader) acquire(ctx context.Context, id simpleasset.ID, formatName string, resolve resolveFunc) (*entry, *asset, error) {
	if l.closed.Load() {
		return nil, nil, simpleasset.ErrClosed
	}
	k := key{id: id, format: formatName}
	if id.IsZero() {
		return nil, nil, &simpleasset.LoadError{ID: id, Format: formatName, Stage: simpleasset.StageCatalog, Err: simpleasset.ErrNotFound}
	}
	format, ok := l.formats.get(formatName)
	if !ok {
		return nil, nil, &simpleasset.LoadError{ID: id, Format: formatName, Stage: simpleasset.StageDecode, Err: simpleasset.ErrUnknownFormat}
	}
	if decoding(ctx, k) {
		// Waiting here would wait on ourselves.
		return nil, nil, &simpleasset.LoadError{ID: id, Format: formatName, Stage: simpleasset.StageDecode, Err: simpleasset.ErrDependencyCycle}
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	sh := l.table.shardFor(id)
	for {
		sh.mu.Lock()
		e := sh.entries[k]
		if e != nil {
			switch e.state {
			case stateReady:
				if a := e.acquire(); a != nil {
					sh.mu.Unlock()
					return e, a, nil
				}
				// Collected since the last handle was released.
				delete(sh.entries, k)
				e = nil
			case stateFailed:
				if !simpleasset.Retryable(e.err) {
					err := e.err
					sh.mu.Unlock()
					return nil, nil, err
				}
				delete(sh.entries, k)
				e = nil
			}
		}
		if e == nil {
			if !l.track() {
				sh.mu.Unlock()
				return nil, nil, simpleasset.ErrClosed
			}
			e = &entry{key: k, state: statePending, done: make(chan struct{})}
			sh.entries[k] = e
			go l.resolve(ctx, sh, e, format, resolve)
		}
		e.waiters++
		done := e.done
		sh.mu.Unlock()

		select {
		case <-done:
		case <-ctx.Done():
			sh.mu.Lock()
			e.detach()
			sh.mu.Unlock()
			return nil, nil, ctx.Err()
		}

		sh.mu.Lock()
		switch e.state {
		case stateFailed:
			err := e.err
			e.detach()
			sh.mu.Unlock()
			return nil, nil, err
		case stateReady:
			if a := e.acquire(); a != nil {
				e.detach()
				sh.mu.Unlock()
				return e, a, nil
			}
		}
		e.detach()
		sh.mu.Unlock()
	}
}

// resolve runs in its own goroutine under the loader's context so that no
// single caller can cancel it.
func (l *Loader) resolve(callerCtx context.Context, sh *shard, e *entry, format Format, resolve resolveFunc) {
	defer l.wg.Done()

	ctx, span := l.tracer.Start(l.ctx, "loader.resolve",
		trace.WithLinks(trace.LinkFromContext(callerCtx)),
		trace.WithAttributes(
			attribute.String("asset.id", e.key.id.String()),
			attribute.String("asset.format", e.key.format),
		))

	a, err := l.run(ctx, decodingChain(callerCtx), e.key, format, resolve)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		l.logger.WarnContext(ctx, "Asset load failed", "id", e.key.id, "format", e.key.format,
			"stage", simpleasset.StageOf(err), "error", err)
	} else {
		l.logger.DebugContext(ctx, "Asset loaded", "id", e.key.id, "format", e.key.format, "artifact", a.record.ID)
	}
	span.End()

	sh.mu.Lock()
	if err != nil {
		e.state = stateFailed
		e.err = err
	} else {
		e.state = stateReady
		e.weak = weakOf(a)
		if e.waiters > 0 {
			// Held until the waiters have taken their handles.
			e.strong = a
		}
	}
	close(e.done)
	sh.mu.Unlock()
}

func (l *Loader) run(ctx context.Context, chain []key, k key, format Format, resolve resolveFunc) (*asset, error) {
	resolved, err := l.fetch(ctx, resolve)
	if err != nil {
		return nil, loadError(k, err)
	}
	if resolved.Record.Format != format.Name() {
		return nil, &simpleasset.LoadError{ID: k.id, Format: k.format, Stage: simpleasset.StageDecode,
			Err: fmt.Errorf("%w: artifact %s has format %q", simpleasset.ErrDecode, resolved.Record.ID, resolved.Record.Format)}
	}

	value, err := decode(withDecoding(ctx, chain, k), l, format, resolved)
	if err != nil {
		return nil, &simpleasset.LoadError{ID: k.id, Format: k.format, Stage: simpleasset.StageDecode, Err: err}
	}
	return &asset{value: value, record: resolved.Record}, nil
}

// fetch holds a worker only while artifact bytes are resolved. Decoding runs
// outside the bound since a decoder may wait on nested loads.
func (l *Loader) fetch(ctx context.Context, resolve resolveFunc) (*simpleasset.Resolved, error) {
	if err := l.workers.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("%w: %w", simpleasset.ErrClosed, err)
	}
	defer l.workers.Release(1)

	l.resolutions.Add(1)
	return resolve(ctx)
}

func decode(ctx context.Context, l *Loader, format Format, resolved *simpleasset.Resolved) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			value = nil
			err = fmt.Errorf("%w: decoder panicked: %v", simpleasset.ErrDecode, r)
		}
	}()
	value, err = format.Decode(ctx, resolved.Bytes, resolved.Record, l)
	if err != nil && !errors.Is(err, simpleasset.ErrDecode) {
		err = fmt.Errorf("%w: %w", simpleasset.ErrDecode, err)
	}
	return value, err
}

// loadError stamps the key onto err, keeping the stage a resolver reported.
// Errors without a stage are attributed to the store.
func loadError(k key, err error) error {
	var le *simpleasset.LoadError
	if errors.As(err, &le) {
		id := k.id
		if id.IsZero() {
			id = le.ID
		}
		return &simpleasset.LoadError{ID: id, Format: k.format, Stage: le.Stage, Err: le.Err}
	}
	return &simpleasset.LoadError{ID: k.id, Format: k.format, Stage: simpleasset.StageStore, Err: err}
}

func typed[A any](l *Loader, e *entry, a *asset) (*Handle[A], error) {
	var value A
	if a.value != nil {
		v, ok := a.value.(A)
		if !ok {
			l.unpin(e)
			return nil, &simpleasset.LoadError{ID: e.key.id, Format: e.key.format, Stage: simpleasset.StageDecode,
				Err: fmt.Errorf("%w: asset is %T", simpleasset.ErrDecode, a.value)}
		}
		value = v
	}
	return &Handle[A]{loader: l, entry: e, asset: a, value: value}, nil
}

func (l *Loader) pin(e *entry, a *asset) {
	sh := l.table.shardFor(e.key.id)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	e.strong = a
	e.refs++
}

func (l *Loader) unpin(e *entry) {
	sh := l.table.shardFor(e.key.id)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if e.refs > 0 {
		e.refs--
	}
	if e.refs == 0 && e.waiters == 0 {
		e.strong = nil
	}
}
