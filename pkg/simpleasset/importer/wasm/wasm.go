// Package wasm runs importers compiled to WebAssembly (WASI commands) in a
// wazero sandbox with no filesystem, network or environment access.
//
// Every module ships with a manifest next to it, "<name>.yaml":
//
//	name: upper
//	version: 1.0.0
//	abi: 1.0.0
//	accepts: [txt]
//	target: text
//
// The module reads the source on stdin, receives argv [name, path] and
// writes the artifact to stdout.
package wasm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"
	"gopkg.in/yaml.v3"

	"github.com/tendant/simple-asset/pkg/simpleasset"
)

// MarkerExport must be exported by every importer module.
const MarkerExport = "asset_importer_abi_v1"

const pageSize = 64 * 1024

// Config bounds the resources of a single conversion.
type Config struct {
	// MemoryLimitBytes caps linear memory; zero keeps the wazero default
	MemoryLimitBytes uint64
	// Timeout bounds a single conversion; zero means no limit
	Timeout time.Duration
}

// Manifest describes a WebAssembly importer.
type Manifest struct {
	Name    string   `yaml:"name"`
	Version string   `yaml:"version"`
	ABI     string   `yaml:"abi"`
	Accepts []string `yaml:"accepts"`
	Target  string   `yaml:"target"`
}

// Validate checks required fields and ABI compatibility.
func (m *Manifest) Validate() error {
	if m.Name == "" {
		return errors.New("manifest name is required")
	}
	if m.Version == "" {
		return errors.New("manifest version is required")
	}
	if m.Target == "" {
		return errors.New("manifest target format is required")
	}
	if len(m.Accepts) == 0 {
		return errors.New("manifest accepts no formats")
	}
	return simpleasset.CheckABI(m.ABI)
}

// ParseManifest decodes and validates a manifest document.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	for i, f := range m.Accepts {
		m.Accepts[i] = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(f), "."))
	}
	return &m, nil
}

// ManifestPath returns the manifest location for a module path.
func ManifestPath(modulePath string) string {
	return strings.TrimSuffix(modulePath, filepath.Ext(modulePath)) + ".yaml"
}

// Host owns the wazero runtime shared by all loaded modules.
type Host struct {
	runtime wazero.Runtime
	config  Config
}

// NewHost creates a runtime with WASI preview1 available.
func NewHost(ctx context.Context, cfg Config) (*Host, error) {
	runtimeCfg := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	if cfg.MemoryLimitBytes > 0 {
		pages := uint32(cfg.MemoryLimitBytes / pageSize)
		if pages == 0 {
			pages = 1
		}
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(pages)
	}

	r := wazero.NewRuntimeWithConfig(ctx, runtimeCfg)
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, r); err != nil {
		_ = r.Close(ctx)
		return nil, fmt.Errorf("instantiate wasi: %w", err)
	}
	return &Host{runtime: r, config: cfg}, nil
}

// Load reads the module at path and its manifest.
func (h *Host) Load(ctx context.Context, path string) (*Importer, error) {
	manifestData, err := os.ReadFile(ManifestPath(path))
	if err != nil {
		return nil, &simpleasset.PluginError{Path: path, Reason: "cannot read manifest", Err: err}
	}
	code, err := os.ReadFile(path)
	if err != nil {
		return nil, &simpleasset.PluginError{Path: path, Reason: "cannot read module", Err: err}
	}
	return h.Compile(ctx, path, code, manifestData)
}

// Compile validates the manifest and module bytes. path is used for errors.
func (h *Host) Compile(ctx context.Context, path string, code, manifestData []byte) (*Importer, error) {
	manifest, err := ParseManifest(manifestData)
	if err != nil {
		return nil, &simpleasset.PluginError{Path: path, Reason: "invalid manifest", Err: err}
	}

	compiled, err := h.runtime.CompileModule(ctx, code)
	if err != nil {
		return nil, &simpleasset.PluginError{Path: path, Reason: "cannot compile module", Err: err}
	}
	if _, ok := compiled.ExportedFunctions()[MarkerExport]; !ok {
		_ = compiled.Close(ctx)
		return nil, &simpleasset.PluginError{Path: path, Reason: "module does not export " + MarkerExport}
	}

	return &Importer{host: h, module: compiled, manifest: *manifest}, nil
}

// Close releases the runtime and every module compiled by it.
func (h *Host) Close(ctx context.Context) error {
	return h.runtime.Close(ctx)
}

// Importer runs one compiled module per conversion.
type Importer struct {
	host     *Host
	module   wazero.CompiledModule
	manifest Manifest
}

func (i *Importer) Name() string    { return i.manifest.Name }
func (i *Importer) Version() string { return i.manifest.Version }

// Manifest returns the module's manifest.
func (i *Importer) Manifest() Manifest { return i.manifest }

func (i *Importer) Accepts(formatOrExtension string) bool {
	f := strings.ToLower(strings.TrimPrefix(formatOrExtension, "."))
	for _, a := range i.manifest.Accepts {
		if a == f {
			return true
		}
	}
	return false
}

func (i *Importer) Import(ctx context.Context, source []byte, sourcePath string) ([]byte, string, error) {
	if i.host.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.host.config.Timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	modCfg := wazero.NewModuleConfig().
		WithName("").
		WithArgs(i.manifest.Name, sourcePath).
		WithStdin(bytes.NewReader(source)).
		WithStdout(&stdout).
		WithStderr(&stderr)

	mod, err := i.host.runtime.InstantiateModule(ctx, i.module, modCfg)
	if mod != nil {
		defer func() { _ = mod.Close(ctx) }()
	}
	if err != nil {
		var exitErr *sys.ExitError
		switch {
		case ctx.Err() != nil:
			return nil, "", fmt.Errorf("wasm importer %s: %w", i.manifest.Name, ctx.Err())
		case errors.As(err, &exitErr) && exitErr.ExitCode() == 0:
		case errors.As(err, &exitErr):
			return nil, "", i.fail(sourcePath, fmt.Errorf("exit code %d: %s", exitErr.ExitCode(), strings.TrimSpace(stderr.String())))
		default:
			return nil, "", i.fail(sourcePath, err)
		}
	}
	if stderr.Len() > 0 {
		return nil, "", i.fail(sourcePath, fmt.Errorf("stderr output: %s", strings.TrimSpace(stderr.String())))
	}
	return stdout.Bytes(), i.manifest.Target, nil
}

func (i *Importer) fail(path string, err error) error {
	return &simpleasset.ConversionError{Importer: i.manifest.Name, Path: path, Err: err}
}
