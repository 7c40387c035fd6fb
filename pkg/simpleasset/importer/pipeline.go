// Package importer holds the ordered importer registry that turns source
// files into artifacts.
//
// Selection is deterministic: the first registered importer accepting the
// format hint or the source extension wins, and a failed conversion is
// reported as is. No other importer is tried.
package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tendant/simple-asset/pkg/simpleasset"
	"github.com/tendant/simple-asset/pkg/simpleasset/importer/plugin"
	"github.com/tendant/simple-asset/pkg/simpleasset/importer/wasm"
)

const tracerName = "github.com/tendant/simple-asset/importer"

type registration struct {
	importer simpleasset.Importer
	// accepts overrides the importer's own predicate when non-empty
	accepts []string
}

func (r registration) matches(format string) bool {
	if format == "" {
		return false
	}
	if len(r.accepts) > 0 {
		return containsFormat(r.accepts, format)
	}
	return r.importer.Accepts(normalizeFormat(format))
}

// Pipeline implements simpleasset.Pipeline.
type Pipeline struct {
	mu     sync.RWMutex
	regs   []registration
	frozen bool

	wasmConfig wasm.Config
	wasmOnce   sync.Once
	wasmHost   *wasm.Host
	wasmErr    error

	logger *slog.Logger
	tracer trace.Tracer
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithTracer overrides the OpenTelemetry tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(p *Pipeline) {
		p.tracer = tracer
	}
}

// WithWasmConfig sets the limits applied to WebAssembly importers.
func WithWasmConfig(cfg wasm.Config) Option {
	return func(p *Pipeline) {
		p.wasmConfig = cfg
	}
}

// NewPipeline creates an empty, unfrozen pipeline.
func NewPipeline(opts ...Option) *Pipeline {
	p := &Pipeline{}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.tracer == nil {
		p.tracer = otel.Tracer(tracerName)
	}
	return p
}

// Register appends imp to the registry. When accepted is given it replaces
// the importer's own Accepts predicate.
func (p *Pipeline) Register(imp simpleasset.Importer, accepted ...string) error {
	if imp == nil {
		return errors.New("importer is nil")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.frozen {
		return fmt.Errorf("register %s: %w", imp.Name(), simpleasset.ErrRegistryFrozen)
	}
	p.regs = append(p.regs, registration{importer: imp, accepts: normalizeFormats(accepted)})
	p.logger.Debug("Importer registered", "importer", imp.Name(), "version", imp.Version(), "accepts", accepted)
	return nil
}

// RegisterPlugin loads the importers exported by a plugin file: a
// WebAssembly module when path ends in ".wasm", otherwise a Go plugin.
func (p *Pipeline) RegisterPlugin(ctx context.Context, path string) error {
	if p.Frozen() {
		return fmt.Errorf("register plugin %s: %w", path, simpleasset.ErrRegistryFrozen)
	}

	var importers []simpleasset.Importer
	if strings.EqualFold(filepath.Ext(path), ".wasm") {
		host, err := p.wasm(ctx)
		if err != nil {
			return err
		}
		imp, err := host.Load(ctx, path)
		if err != nil {
			return err
		}
		importers = []simpleasset.Importer{imp}
	} else {
		loaded, err := plugin.Open(path)
		if err != nil {
			return err
		}
		importers = loaded
	}

	for _, imp := range importers {
		if err := p.Register(imp); err != nil {
			return err
		}
	}
	p.logger.InfoContext(ctx, "Plugin loaded", "path", path, "importers", len(importers))
	return nil
}

// LoadPlugins registers every plugin in paths. An incompatible plugin is
// skipped and reported; the remaining plugins still load.
func (p *Pipeline) LoadPlugins(ctx context.Context, paths ...string) error {
	var errs []error
	for _, path := range paths {
		if err := p.RegisterPlugin(ctx, path); err != nil {
			p.logger.ErrorContext(ctx, "Failed to load plugin", "path", path, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p *Pipeline) wasm(ctx context.Context) (*wasm.Host, error) {
	p.wasmOnce.Do(func() {
		p.wasmHost, p.wasmErr = wasm.NewHost(ctx, p.wasmConfig)
	})
	return p.wasmHost, p.wasmErr
}

// Freeze makes the registry immutable. Later registrations fail with
// ErrRegistryFrozen.
func (p *Pipeline) Freeze() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.frozen = true
}

// Frozen reports whether Freeze has been called.
func (p *Pipeline) Frozen() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.frozen
}

// Importers returns the registered importers in registration order.
func (p *Pipeline) Importers() []simpleasset.Importer {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]simpleasset.Importer, len(p.regs))
	for i, r := range p.regs {
		out[i] = r.importer
	}
	return out
}

// Select returns the first registered importer accepting the hint or the
// extension of path.
func (p *Pipeline) Select(path, formatHint string) (simpleasset.Importer, error) {
	ext := simpleasset.Extension(path)

	p.mu.RLock()
	defer p.mu.RUnlock()

	for _, r := range p.regs {
		if r.matches(formatHint) || r.matches(ext) {
			return r.importer, nil
		}
	}
	return nil, fmt.Errorf("%s (hint %q, extension %q): %w", path, formatHint, ext, simpleasset.ErrNoImporter)
}

// Import converts source with the selected importer.
func (p *Pipeline) Import(ctx context.Context, path string, source []byte, formatHint string) (artifact []byte, format string, used simpleasset.Importer, err error) {
	used, err = p.Select(path, formatHint)
	if err != nil {
		return nil, "", nil, err
	}

	ctx, span := p.tracer.Start(ctx, "importer.Import", trace.WithAttributes(
		attribute.String("asset.path", path),
		attribute.String("importer.name", used.Name()),
		attribute.String("importer.version", used.Version()),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	artifact, format, err = invoke(ctx, used, source, path)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return nil, "", used, err
		}
		var convErr *simpleasset.ConversionError
		var plugErr *simpleasset.PluginError
		if errors.As(err, &convErr) || errors.As(err, &plugErr) {
			return nil, "", used, err
		}
		return nil, "", used, &simpleasset.ConversionError{Importer: used.Name(), Path: path, Err: err}
	}
	if format == "" {
		return nil, "", used, &simpleasset.ConversionError{Importer: used.Name(), Path: path, Err: errors.New("importer returned no format tag")}
	}

	span.SetAttributes(attribute.String("asset.format", format), attribute.Int("asset.size", len(artifact)))
	return artifact, format, used, nil
}

// invoke isolates a panicking importer from the caller.
func invoke(ctx context.Context, imp simpleasset.Importer, source []byte, path string) (artifact []byte, format string, err error) {
	defer func() {
		if r := recover(); r != nil {
			artifact, format = nil, ""
			err = &simpleasset.ConversionError{Importer: imp.Name(), Path: path, Err: fmt.Errorf("importer panicked: %v", r)}
		}
	}()
	return imp.Import(ctx, source, path)
}

// Close releases plugin runtimes.
func (p *Pipeline) Close(ctx context.Context) error {
	if p.wasmHost != nil {
		return p.wasmHost.Close(ctx)
	}
	return nil
}
