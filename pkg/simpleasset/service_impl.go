package simpleasset

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

const tracerName = "github.com/tendant/simple-asset"

// maxImportAttempts bounds how often one import reruns its importer after
// importing the dependencies it reported missing.
const maxImportAttempts = 16

// service implements the Service interface
type service struct {
	store     ContentStore
	catalog   Catalog
	pipeline  Pipeline
	sources   Sources
	eventSink EventSink
	logger    *slog.Logger
	tracer    trace.Tracer

	imports singleflight.Group
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithStore sets the content store for the service
func WithStore(store ContentStore) Option {
	return func(s *service) {
		s.store = store
	}
}

// WithCatalog sets the catalog for the service
func WithCatalog(catalog Catalog) Option {
	return func(s *service) {
		s.catalog = catalog
	}
}

// WithPipeline sets the import pipeline for the service
func WithPipeline(pipeline Pipeline) Option {
	return func(s *service) {
		s.pipeline = pipeline
	}
}

// WithSources sets the source reader used to fetch source bytes for import
func WithSources(sources Sources) Option {
	return func(s *service) {
		s.sources = sources
	}
}

// WithEventSink sets the event sink for the service
func WithEventSink(sink EventSink) Option {
	return func(s *service) {
		s.eventSink = sink
	}
}

// WithLogger sets the structured logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		s.logger = logger
	}
}

// WithTracer overrides the OpenTelemetry tracer
func WithTracer(tracer trace.Tracer) Option {
	return func(s *service) {
		s.tracer = tracer
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{}

	for _, option := range options {
		option(s)
	}

	if s.store == nil {
		return nil, fmt.Errorf("content store is required")
	}
	if s.catalog == nil {
		return nil, fmt.Errorf("catalog is required")
	}
	if s.pipeline == nil {
		return nil, fmt.Errorf("pipeline is required")
	}
	if s.sources == nil {
		return nil, fmt.Errorf("sources are required")
	}
	if s.eventSink == nil {
		s.eventSink = NewNoopEventSink()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer(tracerName)
	}

	return s, nil
}

func (s *service) Store() ContentStore { return s.store }
func (s *service) Catalog() Catalog    { return s.catalog }
func (s *service) Pipeline() Pipeline  { return s.pipeline }

// Import operations

func (s *service) Import(ctx context.Context, req ImportRequest) (*ImportResult, error) {
	path := NormalizePath(req.Path)
	if path == "" {
		return nil, &CatalogError{Path: req.Path, Op: "import", Err: errors.New("empty source path")}
	}

	// Concurrent imports of the same source share one conversion. It runs
	// detached from the caller that started it; each caller stops waiting
	// when its own context ends.
	key := fmt.Sprintf("%s\x00%s\x00%t", path, req.FormatHint, req.Force)
	shared := context.WithoutCancel(ctx)
	ch := s.imports.DoChan(key, func() (interface{}, error) {
		return s.doImport(shared, path, req.FormatHint, req.Force)
	})

	select {
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		res := *r.Val.(*ImportResult)
		return &res, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type importStackKey struct{}

func (s *service) doImport(ctx context.Context, path, hint string, force bool) (result *ImportResult, err error) {
	stack, _ := ctx.Value(importStackKey{}).([]string)
	if slices.Contains(stack, path) {
		return nil, fmt.Errorf("%w: %s", ErrDependencyCycle, strings.Join(append(slices.Clone(stack), path), " -> "))
	}
	ctx = context.WithValue(ctx, importStackKey{}, append(slices.Clone(stack), path))

	ctx, span := s.tracer.Start(ctx, "simpleasset.Import", trace.WithAttributes(
		attribute.String("asset.path", path),
		attribute.String("asset.format_hint", hint),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			if sinkErr := s.eventSink.ImportFailed(ctx, path, err); sinkErr != nil {
				s.logger.WarnContext(ctx, "Event sink failed", "event", "import_failed", "error", sinkErr)
			}
		}
		span.End()
	}()

	source, err := s.sources.Read(ctx, path)
	if err != nil {
		return nil, &CatalogError{Path: path, Op: "read_source", Err: err}
	}

	selected, err := s.pipeline.Select(path, hint)
	if err != nil {
		return nil, err
	}

	if err := s.refreshDependencies(ctx, path); err != nil {
		return nil, err
	}

	entry, freshness, err := s.catalog.StatusOf(ctx, path, hint, source)
	if err != nil {
		return nil, err
	}

	if !force && freshness == FreshnessFresh && entry.Importer == IdentityOf(selected) {
		record, statErr := s.store.Stat(ctx, entry.ID)
		if statErr == nil {
			s.logger.DebugContext(ctx, "Catalog entry current", "path", path, "id", entry.ID)
			s.fireImported(ctx, entry, true)
			return &ImportResult{ID: entry.ID, Record: record, Entry: entry, Reused: true}, nil
		}
		if !errors.Is(statErr, ErrNotFound) {
			return nil, statErr
		}
		s.logger.WarnContext(ctx, "Catalog entry points at missing artifact, reimporting", "path", path, "id", entry.ID)
	}

	artifact, format, used, deps, err := s.convert(ctx, path, source, hint)
	if err != nil {
		// The prior entry is left untouched so its artifact stays servable.
		return nil, err
	}

	record, err := s.store.Put(ctx, bytes.NewReader(artifact), format)
	if err != nil {
		return nil, err
	}
	if err := s.eventSink.ArtifactStored(ctx, record); err != nil {
		s.logger.WarnContext(ctx, "Event sink failed", "event", "artifact_stored", "error", err)
	}

	entry, err = s.catalog.Record(ctx, path, hint, s.catalog.HashSource(source), record.ID, IdentityOf(used), deps...)
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.String("asset.id", record.ID.String()))
	s.logger.InfoContext(ctx, "Imported asset", "path", path, "id", record.ID, "format", record.Format, "importer", used.Name())
	s.fireImported(ctx, entry, false)

	return &ImportResult{ID: record.ID, Record: record, Entry: entry}, nil
}

// convert runs the importer, importing the sources it reports missing and
// running it again until it no longer asks for more.
func (s *service) convert(ctx context.Context, path string, source []byte, hint string) ([]byte, string, Importer, []Dependency, error) {
	for attempt := 1; ; attempt++ {
		deps := NewDependencies(path, s.lookupDependency)
		artifact, format, used, err := s.pipeline.Import(WithDependencies(ctx, deps), path, source, hint)
		if err == nil {
			return artifact, format, used, deps.Used(), nil
		}

		var missing *DependencyError
		if !errors.As(err, &missing) || attempt == maxImportAttempts {
			return nil, "", nil, nil, err
		}
		for _, dep := range missing.Dependencies {
			s.logger.DebugContext(ctx, "Importing dependency", "path", path, "dependency", dep.Path, "attempt", attempt)
			if _, err := s.doImport(ctx, dep.Path, dep.FormatHint, false); err != nil {
				return nil, "", nil, nil, fmt.Errorf("dependency %s of %s: %w", dep.Path, path, err)
			}
		}
	}
}

// refreshDependencies re-imports the recorded dependencies of path so the
// catalog can tell whether any of them changed.
func (s *service) refreshDependencies(ctx context.Context, path string) error {
	entry, err := s.catalog.Lookup(ctx, path)
	if err != nil {
		return nil
	}
	for _, dep := range entry.Dependencies {
		_, err := s.doImport(ctx, dep.Path, dep.FormatHint, false)
		if errors.Is(err, ErrDependencyCycle) {
			return err
		}
		if err != nil {
			// The dependency keeps its last good artifact.
			s.logger.WarnContext(ctx, "Dependency refresh failed", "path", path, "dependency", dep.Path, "error", err)
		}
	}
	return nil
}

func (s *service) lookupDependency(ctx context.Context, path, hint string) (ID, bool) {
	id, ok, err := s.catalog.Resolve(ctx, path, hint)
	if err != nil {
		return NilID, false
	}
	return id, ok
}

func (s *service) fireImported(ctx context.Context, entry *CatalogEntry, reused bool) {
	if err := s.eventSink.AssetImported(ctx, entry, reused); err != nil {
		// Log error but don't fail the operation
		s.logger.WarnContext(ctx, "Event sink failed", "event", "asset_imported", "error", err)
	}
}

func (s *service) Remove(ctx context.Context, path string) error {
	path = NormalizePath(path)
	entry, err := s.catalog.Lookup(ctx, path)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if err := s.catalog.Invalidate(ctx, path); err != nil {
		return err
	}

	others, err := s.catalog.LookupByID(ctx, entry.ID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	if len(others) > 0 {
		// Another source still resolves to the shared artifact.
		return nil
	}
	return s.deleteArtifact(ctx, entry.ID)
}

// Prune deletes stored artifacts that no catalog entry references and
// returns how many were removed.
func (s *service) Prune(ctx context.Context) (int, error) {
	entries, err := s.catalog.List(ctx)
	if err != nil {
		return 0, err
	}
	live := make(map[ID]struct{}, len(entries))
	for _, e := range entries {
		live[e.ID] = struct{}{}
	}

	records, err := s.store.List(ctx)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, rec := range records {
		if _, ok := live[rec.ID]; ok {
			continue
		}
		if err := s.deleteArtifact(ctx, rec.ID); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

func (s *service) deleteArtifact(ctx context.Context, id ID) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.eventSink.ArtifactDeleted(ctx, id); err != nil {
		s.logger.WarnContext(ctx, "Event sink failed", "event", "artifact_deleted", "error", err)
	}
	return nil
}

// Resolution operations

func (s *service) Resolve(ctx context.Context, id ID) (resolved *Resolved, err error) {
	ctx, span := s.tracer.Start(ctx, "simpleasset.Resolve", trace.WithAttributes(
		attribute.String("asset.id", id.String()),
	))
	defer endSpan(span, &err)

	entries, err := s.catalog.LookupByID(ctx, id)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, &LoadError{ID: id, Stage: StageCatalog, Err: err}
	}

	if len(entries) > 0 {
		return s.resolveEntry(ctx, id, entries[0])
	}

	data, record, err := s.store.Get(ctx, id)
	switch {
	case errors.Is(err, ErrNotFound):
		return nil, &LoadError{ID: id, Stage: StageCatalog, Err: err}
	case err != nil:
		return nil, &LoadError{ID: id, Stage: StageStore, Err: err}
	}
	return &Resolved{RequestedID: id, Record: record, Bytes: data}, nil
}

// resolveEntry serves the artifact for a catalogued source, re-importing
// when the source changed or the artifact went missing.
func (s *service) resolveEntry(ctx context.Context, id ID, entry *CatalogEntry) (*Resolved, error) {
	current := entry
	res, importErr := s.Import(ctx, ImportRequest{Path: entry.Path, FormatHint: entry.FormatHint})
	switch {
	case importErr == nil:
		current = res.Entry
	case errors.Is(importErr, ErrNotFound):
		// The source is gone; the recorded artifact is the last known good.
		s.logger.WarnContext(ctx, "Source missing, serving recorded artifact", "path", entry.Path, "id", entry.ID)
	default:
		if !s.store.Exists(ctx, entry.ID) {
			return nil, &LoadError{ID: id, Stage: StageImport, Err: importErr}
		}
		s.logger.WarnContext(ctx, "Reimport failed, serving last known good artifact",
			"path", entry.Path, "id", entry.ID, "error", importErr)
	}

	data, record, err := s.store.Get(ctx, current.ID)
	switch {
	case errors.Is(err, ErrNotFound):
		return nil, &LoadError{ID: id, Stage: StageCatalog, Err: err}
	case err != nil:
		return nil, &LoadError{ID: id, Stage: StageStore, Err: err}
	}
	return &Resolved{RequestedID: id, Record: record, Bytes: data, Entry: current}, nil
}

func (s *service) ResolvePath(ctx context.Context, path, formatHint string) (resolved *Resolved, err error) {
	ctx, span := s.tracer.Start(ctx, "simpleasset.ResolvePath", trace.WithAttributes(
		attribute.String("asset.path", path),
	))
	defer endSpan(span, &err)

	res, err := s.Import(ctx, ImportRequest{Path: path, FormatHint: formatHint})
	if err != nil {
		entry, lookupErr := s.catalog.Lookup(ctx, NormalizePath(path))
		if lookupErr != nil {
			return nil, &LoadError{Stage: importStage(err), Err: err}
		}
		return s.resolveEntry(ctx, entry.ID, entry)
	}

	data, record, err := s.store.Get(ctx, res.ID)
	if err != nil {
		return nil, &LoadError{ID: res.ID, Stage: StageStore, Err: err}
	}
	return &Resolved{RequestedID: res.ID, Record: record, Bytes: data, Entry: res.Entry}, nil
}

// importStage attributes an import failure to the step that produced it:
// an unreadable source is a catalog-resolution failure.
func importStage(err error) Stage {
	var ce *CatalogError
	if errors.As(err, &ce) {
		return StageCatalog
	}
	var se *StoreError
	if errors.As(err, &se) {
		return StageStore
	}
	return StageImport
}

func endSpan(span trace.Span, err *error) {
	if *err != nil {
		span.RecordError(*err)
		span.SetStatus(codes.Error, (*err).Error())
	}
	span.End()
}
