package scan

import (
	"context"

	"github.com/tendant/simple-asset/pkg/simpleasset"
)

// Processor handles one source path found during a scan.
// Return an error to mark the path as failed; the scan continues.
// Errors matching simpleasset.ErrNoImporter count as skipped.
type Processor interface {
	Process(ctx context.Context, path string) error
}

// ProcessorFunc adapts a function to the Processor interface.
type ProcessorFunc func(ctx context.Context, path string) error

func (f ProcessorFunc) Process(ctx context.Context, path string) error {
	return f(ctx, path)
}

// ImportProcessor imports every scanned path through svc.
func ImportProcessor(svc simpleasset.Service, force bool) Processor {
	return ProcessorFunc(func(ctx context.Context, path string) error {
		_, err := svc.Import(ctx, simpleasset.ImportRequest{Path: path, Force: force})
		return err
	})
}
