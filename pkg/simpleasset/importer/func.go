package importer

import (
	"context"
	"strings"
)

// ConvertFunc converts source bytes into artifact bytes and a format tag.
type ConvertFunc func(ctx context.Context, source []byte, sourcePath string) ([]byte, string, error)

// FuncImporter adapts a function into an in-process simpleasset.Importer.
type FuncImporter struct {
	name    string
	version string
	accepts []string
	convert ConvertFunc
}

// NewFunc creates an importer accepting the given formats or extensions.
func NewFunc(name, version string, accepts []string, convert ConvertFunc) *FuncImporter {
	return &FuncImporter{
		name:    name,
		version: version,
		accepts: normalizeFormats(accepts),
		convert: convert,
	}
}

func (f *FuncImporter) Name() string    { return f.name }
func (f *FuncImporter) Version() string { return f.version }

func (f *FuncImporter) Accepts(formatOrExtension string) bool {
	return containsFormat(f.accepts, formatOrExtension)
}

func (f *FuncImporter) Import(ctx context.Context, source []byte, sourcePath string) ([]byte, string, error) {
	return f.convert(ctx, source, sourcePath)
}

// normalizeFormats lower-cases formats and strips a leading dot so ".PNG"
// and "png" register the same way.
func normalizeFormats(formats []string) []string {
	out := make([]string, 0, len(formats))
	for _, f := range formats {
		f = normalizeFormat(f)
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

func normalizeFormat(f string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(f), "."))
}

func containsFormat(formats []string, f string) bool {
	f = normalizeFormat(f)
	if f == "" {
		return false
	}
	for _, candidate := range formats {
		if candidate == f {
			return true
		}
	}
	return false
}
