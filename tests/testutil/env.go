// Package testutil assembles in-memory asset environments for tests.
package testutil

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-asset/pkg/simpleasset"
	"github.com/tendant/simple-asset/pkg/simpleasset/catalog"
	"github.com/tendant/simple-asset/pkg/simpleasset/importer"
	memoryrepo "github.com/tendant/simple-asset/pkg/simpleasset/repo/memory"
	"github.com/tendant/simple-asset/pkg/simpleasset/sources"
	memorystorage "github.com/tendant/simple-asset/pkg/simpleasset/storage/memory"
	"github.com/tendant/simple-asset/pkg/simpleasset/store"
)

// DemoFormat is the format tag produced by DemoImporter.
const DemoFormat = "demo"

// Env is a fully wired service over memory backends.
type Env struct {
	Service  simpleasset.Service
	Sources  *sources.FS
	Blobs    *memorystorage.Backend
	Store    *store.Store
	Repo     *memoryrepo.Repository
	Catalog  *catalog.Catalog
	Pipeline *importer.Pipeline
	Events   *RecordingEventSink
}

// NewEnv wires a service and registers importers in order, then freezes
// the pipeline.
func NewEnv(t testing.TB, importers ...simpleasset.Importer) *Env {
	t.Helper()

	env := &Env{
		Sources:  sources.NewMemory(),
		Blobs:    memorystorage.New(),
		Repo:     memoryrepo.New(),
		Pipeline: importer.NewPipeline(),
		Events:   &RecordingEventSink{},
	}

	var err error
	env.Store, err = store.New(env.Blobs)
	require.NoError(t, err)
	env.Catalog, err = catalog.New(env.Repo, env.Sources)
	require.NoError(t, err)

	for _, imp := range importers {
		require.NoError(t, env.Pipeline.Register(imp))
	}
	env.Pipeline.Freeze()

	env.Service, err = simpleasset.New(
		simpleasset.WithStore(env.Store),
		simpleasset.WithCatalog(env.Catalog),
		simpleasset.WithPipeline(env.Pipeline),
		simpleasset.WithSources(env.Sources),
		simpleasset.WithEventSink(env.Events),
	)
	require.NoError(t, err)
	return env
}

// WriteSource stores source bytes at path.
func (e *Env) WriteSource(t testing.TB, path, data string) {
	t.Helper()
	require.NoError(t, e.Sources.Write(path, []byte(data)))
}

// Import imports path and fails the test on error.
func (e *Env) Import(t testing.TB, path string) *simpleasset.ImportResult {
	t.Helper()
	res, err := e.Service.Import(context.Background(), simpleasset.ImportRequest{Path: path})
	require.NoError(t, err)
	return res
}

// DemoImporter accepts ".src" and produces "ARTIFACT:" followed by the
// source bytes. calls, when non-nil, counts conversions.
func DemoImporter(calls *atomic.Int32) *importer.FuncImporter {
	return importer.NewFunc("demo", "1.0.0", []string{"src"}, func(_ context.Context, source []byte, _ string) ([]byte, string, error) {
		if calls != nil {
			calls.Add(1)
		}
		return []byte("ARTIFACT:" + string(source)), DemoFormat, nil
	})
}

// UpperImporter accepts ".txt" and upper-cases the source.
func UpperImporter() *importer.FuncImporter {
	return importer.NewFunc("upper", "1.0.0", []string{"txt"}, func(_ context.Context, source []byte, _ string) ([]byte, string, error) {
		return []byte(strings.ToUpper(string(source))), "text", nil
	})
}
