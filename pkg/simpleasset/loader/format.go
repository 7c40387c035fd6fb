package loader

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/tendant/simple-asset/pkg/simpleasset"
)

// Format decodes artifact bytes of one format tag into an in-memory asset.
type Format interface {
	// Name is the artifact format tag this format decodes
	Name() string

	// Decode builds the asset. A decoder for a composite asset loads its
	// parts through l with ctx; loading an asset that is already being
	// decoded further up the chain fails with ErrDependencyCycle.
	Decode(ctx context.Context, data []byte, record simpleasset.ArtifactRecord, l *Loader) (any, error)
}

// DecodeFunc decodes artifact bytes.
type DecodeFunc[A any] func(ctx context.Context, data []byte) (A, error)

type funcFormat[A any] struct {
	name   string
	decode DecodeFunc[A]
}

// NewFormat adapts a typed decode function into a Format.
func NewFormat[A any](name string, decode DecodeFunc[A]) Format {
	return &funcFormat[A]{name: name, decode: decode}
}

func (f *funcFormat[A]) Name() string { return f.name }

func (f *funcFormat[A]) Decode(ctx context.Context, data []byte, _ simpleasset.ArtifactRecord, _ *Loader) (any, error) {
	return f.decode(ctx, data)
}

// NestedDecodeFunc decodes artifact bytes that reference other assets.
// Handles it keeps in the returned value stay pinned until released.
type NestedDecodeFunc[A any] func(ctx context.Context, data []byte, l *Loader) (A, error)

type nestedFormat[A any] struct {
	name   string
	decode NestedDecodeFunc[A]
}

// NewNestedFormat adapts a typed decode function that loads the assets an
// artifact refers to.
func NewNestedFormat[A any](name string, decode NestedDecodeFunc[A]) Format {
	return &nestedFormat[A]{name: name, decode: decode}
}

func (f *nestedFormat[A]) Name() string { return f.name }

func (f *nestedFormat[A]) Decode(ctx context.Context, data []byte, _ simpleasset.ArtifactRecord, l *Loader) (any, error) {
	return f.decode(ctx, data, l)
}

// BytesFormat returns a format whose decoded asset is the artifact bytes.
func BytesFormat(name string) Format {
	return NewFormat(name, func(_ context.Context, data []byte) ([]byte, error) {
		return data, nil
	})
}

type formatRegistry struct {
	mu      sync.RWMutex
	formats map[string]Format
}

func (r *formatRegistry) register(f Format) error {
	if f == nil || f.Name() == "" {
		return fmt.Errorf("format must have a name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.formats == nil {
		r.formats = make(map[string]Format)
	}
	if _, exists := r.formats[f.Name()]; exists {
		return fmt.Errorf("format %q already registered", f.Name())
	}
	r.formats[f.Name()] = f
	return nil
}

func (r *formatRegistry) get(name string) (Format, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.formats[name]
	return f, ok
}

type decodingKey struct{}

// decodingChain returns the keys whose decoders led to ctx.
func decodingChain(ctx context.Context) []key {
	chain, _ := ctx.Value(decodingKey{}).([]key)
	return chain
}

func withDecoding(ctx context.Context, chain []key, k key) context.Context {
	next := make([]key, len(chain), len(chain)+1)
	copy(next, chain)
	return context.WithValue(ctx, decodingKey{}, append(next, k))
}

func decoding(ctx context.Context, k key) bool {
	return slices.Contains(decodingChain(ctx), k)
}
