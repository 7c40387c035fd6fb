package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/tendant/simple-asset/pkg/simpleasset"
)

// Lister enumerates source paths.
type Lister interface {
	List(ctx context.Context) ([]string, error)
}

// Scanner walks the source tree and hands each path to a processor.
type Scanner struct {
	lister Lister
	logger *slog.Logger
}

// New creates a new Scanner instance. A nil logger uses slog.Default.
func New(lister Lister, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{lister: lister, logger: logger}
}

// ScanOptions configures the scan operation.
type ScanOptions struct {
	// PathPrefix restricts the scan to paths under a directory
	PathPrefix string

	// Extensions restricts the scan to these source extensions
	Extensions []string

	// Processor defines the processing logic (required unless DryRun is true)
	Processor Processor

	// Concurrency bounds parallel Process calls (default: 1)
	Concurrency int

	// DryRun if true, doesn't process paths, just reports what would be processed
	DryRun bool

	// OnProgress is called after each path is handled (optional)
	OnProgress func(done, total int64)
}

// ScanResult contains statistics about the scan operation.
type ScanResult struct {
	// TotalFound is the number of paths matching the filters
	TotalFound int64

	// TotalProcessed is the number of paths successfully processed
	TotalProcessed int64

	// TotalFailed is the number of paths that failed processing
	TotalFailed int64

	// TotalSkipped is the number of paths no importer accepts
	TotalSkipped int64

	// FailedPaths lists the failed paths in lexical order
	FailedPaths []string
}

// Scan lists sources matching the filters and processes each one. A failed
// path is recorded and the scan continues; only cancellation stops it.
func (s *Scanner) Scan(ctx context.Context, opts ScanOptions) (*ScanResult, error) {
	result := &ScanResult{}

	if !opts.DryRun && opts.Processor == nil {
		return result, fmt.Errorf("processor is required when DryRun is false")
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}

	all, err := s.lister.List(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to list sources: %w", err)
	}
	var paths []string
	for _, p := range all {
		if matches(p, opts) {
			paths = append(paths, p)
		}
	}
	result.TotalFound = int64(len(paths))

	var mu sync.Mutex
	record := func(path string, err error) {
		mu.Lock()
		defer mu.Unlock()
		switch {
		case err == nil:
			result.TotalProcessed++
		case errors.Is(err, simpleasset.ErrNoImporter):
			result.TotalSkipped++
		default:
			result.TotalFailed++
			result.FailedPaths = append(result.FailedPaths, path)
			s.logger.ErrorContext(ctx, "Failed to process source", "path", path, "error", err)
		}
		if opts.OnProgress != nil {
			opts.OnProgress(result.TotalProcessed+result.TotalSkipped+result.TotalFailed, result.TotalFound)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for _, p := range paths {
		if gctx.Err() != nil {
			break
		}
		if opts.DryRun {
			s.logger.InfoContext(ctx, "Would process source", "path", p)
			record(p, nil)
			continue
		}
		g.Go(func() error {
			err := opts.Processor.Process(gctx, p)
			if gctx.Err() != nil {
				return gctx.Err()
			}
			record(p, err)
			return nil
		})
	}
	err = g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	sort.Strings(result.FailedPaths)
	return result, err
}

// ForEach processes every source path with fn.
func (s *Scanner) ForEach(ctx context.Context, fn func(context.Context, string) error) (*ScanResult, error) {
	return s.Scan(ctx, ScanOptions{Processor: ProcessorFunc(fn)})
}

func matches(path string, opts ScanOptions) bool {
	if opts.PathPrefix != "" {
		prefix := simpleasset.NormalizePath(opts.PathPrefix)
		if prefix != "" && path != prefix && !strings.HasPrefix(path, prefix+"/") {
			return false
		}
	}
	if len(opts.Extensions) == 0 {
		return true
	}
	ext := simpleasset.Extension(path)
	for _, x := range opts.Extensions {
		if strings.EqualFold(strings.TrimPrefix(x, "."), ext) {
			return true
		}
	}
	return false
}
