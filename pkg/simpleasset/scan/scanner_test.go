package scan_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-asset/pkg/simpleasset/scan"
	"github.com/tendant/simple-asset/tests/testutil"
)

func newEnv(t *testing.T, calls *atomic.Int32) *testutil.Env {
	t.Helper()
	env := testutil.NewEnv(t, testutil.DemoImporter(calls), testutil.UpperImporter())
	env.WriteSource(t, "models/a.src", "1")
	env.WriteSource(t, "models/b.src", "2")
	env.WriteSource(t, "docs/readme.txt", "hi")
	env.WriteSource(t, "docs/logo.bin", "\x00\x01")
	return env
}

func TestScanImportsEverySource(t *testing.T) {
	env := newEnv(t, nil)
	ctx := context.Background()

	result, err := scan.New(env.Sources, nil).Scan(ctx, scan.ScanOptions{
		Processor:   scan.ImportProcessor(env.Service, false),
		Concurrency: 4,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(4), result.TotalFound)
	assert.Equal(t, int64(3), result.TotalProcessed)
	assert.Equal(t, int64(1), result.TotalSkipped)
	assert.Zero(t, result.TotalFailed)

	entries, err := env.Catalog.List(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestScanFilters(t *testing.T) {
	var calls atomic.Int32
	env := newEnv(t, &calls)

	result, err := scan.New(env.Sources, nil).Scan(context.Background(), scan.ScanOptions{
		PathPrefix: "models",
		Extensions: []string{".src"},
		Processor:  scan.ImportProcessor(env.Service, false),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.TotalFound)
	assert.Equal(t, int32(2), calls.Load())
}

func TestScanDryRun(t *testing.T) {
	env := newEnv(t, nil)
	ctx := context.Background()

	var progress []int64
	result, err := scan.New(env.Sources, nil).Scan(ctx, scan.ScanOptions{
		DryRun:     true,
		OnProgress: func(done, total int64) { progress = append(progress, done) },
	})
	require.NoError(t, err)
	assert.Equal(t, int64(4), result.TotalProcessed)
	assert.Equal(t, []int64{1, 2, 3, 4}, progress)

	entries, err := env.Catalog.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestScanRecordsFailures(t *testing.T) {
	env := newEnv(t, nil)

	result, err := scan.New(env.Sources, nil).ForEach(context.Background(), func(_ context.Context, path string) error {
		if path == "docs/readme.txt" || path == "models/a.src" {
			return errors.New("boom")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.TotalFailed)
	assert.Equal(t, int64(2), result.TotalProcessed)
	assert.Equal(t, []string{"docs/readme.txt", "models/a.src"}, result.FailedPaths)
}

func TestScanRequiresProcessor(t *testing.T) {
	env := newEnv(t, nil)
	_, err := scan.New(env.Sources, nil).Scan(context.Background(), scan.ScanOptions{})
	assert.Error(t, err)
}

func TestScanCancelled(t *testing.T) {
	env := newEnv(t, nil)
	ctx, cancel := context.WithCancel(context.Background())

	result, err := scan.New(env.Sources, nil).ForEach(ctx, func(context.Context, string) error {
		cancel()
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, result.TotalProcessed, int64(4))
}
