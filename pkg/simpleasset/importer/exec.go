package importer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ExecImporter runs an external converter. The source is written to the
// command's stdin, the artifact is read from its stdout, and the source path
// is passed as the final argument.
type ExecImporter struct {
	name    string
	version string
	accepts []string
	target  string
	command string
	args    []string
	timeout time.Duration
}

// ExecConfig describes an external converter command.
type ExecConfig struct {
	Name    string
	Version string
	Accepts []string
	// Target is the format tag of the produced artifacts
	Target  string
	Command string
	Args    []string
	// Timeout bounds a single conversion; zero means no limit
	Timeout time.Duration
}

// NewExec validates cfg and creates the importer.
func NewExec(cfg ExecConfig) (*ExecImporter, error) {
	if cfg.Name == "" {
		return nil, errors.New("exec importer name is required")
	}
	if cfg.Command == "" {
		return nil, errors.New("exec importer command is required")
	}
	if cfg.Target == "" {
		return nil, errors.New("exec importer target format is required")
	}
	return &ExecImporter{
		name:    cfg.Name,
		version: cfg.Version,
		accepts: normalizeFormats(cfg.Accepts),
		target:  cfg.Target,
		command: cfg.Command,
		args:    append([]string(nil), cfg.Args...),
		timeout: cfg.Timeout,
	}, nil
}

func (e *ExecImporter) Name() string    { return e.name }
func (e *ExecImporter) Version() string { return e.version }

func (e *ExecImporter) Accepts(formatOrExtension string) bool {
	return containsFormat(e.accepts, formatOrExtension)
}

func (e *ExecImporter) Import(ctx context.Context, source []byte, sourcePath string) ([]byte, string, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	args := append(append([]string(nil), e.args...), sourcePath)
	cmd := exec.CommandContext(ctx, e.command, args...)
	cmd.Stdin = bytes.NewReader(source)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, "", fmt.Errorf("%s: %w", e.command, ctx.Err())
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, "", fmt.Errorf("%s: %w: %s", e.command, err, msg)
		}
		return nil, "", fmt.Errorf("%s: %w", e.command, err)
	}
	return stdout.Bytes(), e.target, nil
}
