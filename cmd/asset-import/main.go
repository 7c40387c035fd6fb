package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/tendant/simple-asset/pkg/simpleasset"
	"github.com/tendant/simple-asset/pkg/simpleasset/config"
	"github.com/tendant/simple-asset/pkg/simpleasset/scan"
)

const usage = `Simple Asset Import CLI

Imports source files into the artifact store and keeps the catalog current.

USAGE:
  asset-import <command> [options] [args]

COMMANDS:
  import [paths...]   Import the given sources, or every source when none are given
  resolve <id>        Write the artifact for an ID to stdout (or --out)
  remove <path>       Forget a source and delete its artifact when unshared
  prune               Delete artifacts no catalog entry references

OPTIONS:
  --config=<file>       YAML configuration file
  --force               Re-run importers even for current entries (import)
  --hint=<format>       Format hint overriding the extension (import)
  --prefix=<path>       Only scan sources under path (import)
  --ext=<a,b>           Only scan these extensions (import)
  --concurrency=<n>     Parallel imports while scanning (default: 4)
  --dry-run             List what would be imported (import)
  --out=<file>          Output file (resolve)
  --json                Output results as JSON
`

type cliOptions struct {
	configFile  string
	force       bool
	hint        string
	prefix      string
	extensions  []string
	concurrency int
	dryRun      bool
	out         string
	useJSON     bool
	args        []string
}

func main() {
	// Load .env file if it exists (silently ignore if not found)
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Print(usage + "\n")
		os.Exit(1)
	}
	command := os.Args[1]
	if command == "help" || command == "--help" || command == "-h" {
		fmt.Print(usage + "\n")
		fmt.Println(config.Usage())
		os.Exit(0)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	opts := parseOptions(os.Args[2:])

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, command, opts, logger); err != nil {
		slog.Error("Command failed", "command", command, "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, command string, opts cliOptions, logger *slog.Logger) error {
	cfgOpts := []config.Option{config.WithEnv()}
	if opts.configFile != "" {
		cfgOpts = []config.Option{config.WithFile(opts.configFile)}
	}
	cfg, err := config.Load(cfgOpts...)
	if err != nil {
		return fmt.Errorf("failed to read configuration: %w", err)
	}

	comp, err := cfg.Build(ctx, config.WithLogger(logger))
	if err != nil {
		return err
	}
	defer comp.Close(context.Background())

	switch command {
	case "import":
		if len(opts.args) > 0 {
			return importPaths(ctx, comp.Service, opts)
		}
		return importAll(ctx, comp, opts, logger)
	case "resolve":
		return resolve(ctx, comp.Service, opts)
	case "remove":
		if len(opts.args) != 1 {
			return fmt.Errorf("remove takes exactly one path")
		}
		return comp.Service.Remove(ctx, opts.args[0])
	case "prune":
		n, err := comp.Service.Prune(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Pruned %d artifacts\n", n)
		return nil
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		fmt.Print(usage + "\n")
		os.Exit(1)
	}
	return nil
}

func importPaths(ctx context.Context, svc simpleasset.Service, opts cliOptions) error {
	var results []*simpleasset.ImportResult
	for _, path := range opts.args {
		res, err := svc.Import(ctx, simpleasset.ImportRequest{Path: path, FormatHint: opts.hint, Force: opts.force})
		if err != nil {
			return fmt.Errorf("import %s: %w", path, err)
		}
		results = append(results, res)
		if !opts.useJSON {
			state := "imported"
			if res.Reused {
				state = "current"
			}
			fmt.Printf("%s\t%s\t%s\t%s\n", res.Entry.Path, res.ID, res.Record.Format, state)
		}
	}
	if opts.useJSON {
		return printJSON(results)
	}
	return nil
}

func importAll(ctx context.Context, comp *config.Components, opts cliOptions, logger *slog.Logger) error {
	scanner := scan.New(comp.Sources, logger)
	result, err := scanner.Scan(ctx, scan.ScanOptions{
		PathPrefix:  opts.prefix,
		Extensions:  opts.extensions,
		Processor:   scan.ImportProcessor(comp.Service, opts.force),
		Concurrency: opts.concurrency,
		DryRun:      opts.dryRun,
	})
	if err != nil {
		return err
	}

	if opts.useJSON {
		return printJSON(result)
	}
	fmt.Printf("Found %d, imported %d, skipped %d, failed %d\n",
		result.TotalFound, result.TotalProcessed, result.TotalSkipped, result.TotalFailed)
	for _, p := range result.FailedPaths {
		fmt.Printf("  failed: %s\n", p)
	}
	if result.TotalFailed > 0 {
		return fmt.Errorf("%d sources failed to import", result.TotalFailed)
	}
	return nil
}

func resolve(ctx context.Context, svc simpleasset.Service, opts cliOptions) error {
	if len(opts.args) != 1 {
		return fmt.Errorf("resolve takes exactly one id")
	}
	id, err := simpleasset.ParseID(opts.args[0])
	if err != nil {
		return err
	}
	resolved, err := svc.Resolve(ctx, id)
	if err != nil {
		return err
	}
	if opts.useJSON {
		return printJSON(resolved.Record)
	}
	if opts.out == "" {
		_, err = os.Stdout.Write(resolved.Bytes)
		return err
	}
	return os.WriteFile(opts.out, resolved.Bytes, 0o644)
}

func parseOptions(args []string) cliOptions {
	opts := cliOptions{concurrency: 4}
	for _, arg := range args {
		if !strings.HasPrefix(arg, "--") {
			opts.args = append(opts.args, arg)
			continue
		}
		key, value, ok := strings.Cut(arg[2:], "=")
		if !ok {
			value = "true"
		}
		switch key {
		case "config":
			opts.configFile = value
		case "force":
			opts.force = true
		case "hint":
			opts.hint = value
		case "prefix":
			opts.prefix = value
		case "ext":
			opts.extensions = strings.Split(value, ",")
		case "concurrency":
			if n, err := strconv.Atoi(value); err == nil {
				opts.concurrency = n
			}
		case "dry-run":
			opts.dryRun = true
		case "out":
			opts.out = value
		case "json":
			opts.useJSON = true
		}
	}
	return opts
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
