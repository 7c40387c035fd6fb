package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/tendant/simple-asset/pkg/simpleasset"
	"github.com/tendant/simple-asset/pkg/simpleasset/admin"
	"github.com/tendant/simple-asset/pkg/simpleasset/config"
)

const usage = `Simple Asset Admin CLI

Reports on the asset catalog and artifact store.

USAGE:
  asset-admin <command> [options]

COMMANDS:
  list      List catalog entries with optional filtering
  count     Count catalog entries with optional filtering
  stats     Get aggregated statistics

  Configuration is read from ASSET_* environment variables (see below),
  from a .env file in the current directory, and from --config=<file.yaml>.

EXAMPLES:
  # List all entries with their freshness
  asset-admin list --freshness-all

  # List stale entries under models/
  asset-admin list --prefix=models --freshness=stale

  # Count entries imported by one importer
  asset-admin count --importer=mesh

  # Statistics as JSON
  asset-admin stats --json

OPTIONS (for list/count/stats):
  --config=<file>              YAML configuration file
  --prefix=<path>              Filter by source path prefix
  --ext=<a,b>                  Filter by source extension
  --importer=<name>            Filter by importer name
  --hint=<format>              Filter by recorded format hint
  --freshness=<state>          Filter by fresh, stale or source_missing
  --freshness-all              Classify every listed entry (list only)
  --sort=<path|updated_at>     Sort field (list only, default: path)
  --desc                       Sort descending (list only)
  --limit=<n>                  Maximum results (list only, default: 100)
  --offset=<n>                 Pagination offset (list only, default: 0)
  --json                       Output as JSON
`

type cliOptions struct {
	configFile    string
	filters       admin.EntryFilters
	withFreshness bool
	useJSON       bool
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

	opts := parseOptions(os.Args[2:])
	ctx := context.Background()

	cfgOpts := []config.Option{config.WithEnv()}
	if opts.configFile != "" {
		cfgOpts = []config.Option{config.WithFile(opts.configFile)}
	}
	cfg, err := config.Load(cfgOpts...)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	comp, err := cfg.Build(ctx)
	if err != nil {
		log.Fatalf("Failed to create asset service: %v", err)
	}
	defer comp.Close(ctx)

	adminSvc := admin.New(comp.Service)

	switch command {
	case "list":
		handleList(ctx, adminSvc, opts)
	case "count":
		handleCount(ctx, adminSvc, opts)
	case "stats":
		handleStats(ctx, adminSvc, opts)
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		fmt.Print(usage + "\n")
		os.Exit(1)
	}
}

func parseOptions(args []string) cliOptions {
	opts := cliOptions{}
	sortBy, sortOrder := "path", "asc"
	limit, offset := 100, 0

	for _, arg := range args {
		key, value := parseFlag(arg)

		switch key {
		case "config":
			opts.configFile = value
		case "json":
			opts.useJSON = true
		case "prefix":
			opts.filters.PathPrefix = &value
		case "ext":
			opts.filters.Extensions = strings.Split(value, ",")
		case "importer":
			opts.filters.Importer = &value
		case "hint":
			opts.filters.FormatHint = &value
		case "freshness":
			f := simpleasset.Freshness(value)
			opts.filters.Freshness = &f
		case "freshness-all":
			opts.withFreshness = true
		case "sort":
			sortBy = value
		case "desc":
			sortOrder = "desc"
		case "limit":
			if n, err := strconv.Atoi(value); err == nil {
				limit = n
			}
		case "offset":
			if n, err := strconv.Atoi(value); err == nil {
				offset = n
			}
		}
	}

	opts.filters.SortBy = &sortBy
	opts.filters.SortOrder = &sortOrder
	opts.filters.Limit = &limit
	opts.filters.Offset = &offset
	return opts
}

func parseFlag(arg string) (string, string) {
	if !strings.HasPrefix(arg, "--") {
		return "", ""
	}
	key, value, ok := strings.Cut(arg[2:], "=")
	if !ok {
		return key, "true"
	}
	return key, value
}

func printJSON(v any) {
	data, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(data))
}

func handleList(ctx context.Context, adminSvc admin.AdminService, opts cliOptions) {
	resp, err := adminSvc.ListEntries(ctx, admin.ListEntriesRequest{
		Filters:          opts.filters,
		IncludeFreshness: opts.withFreshness,
	})
	if err != nil {
		log.Fatalf("Failed to list entries: %v", err)
	}

	if opts.useJSON {
		printJSON(resp)
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "PATH\tID\tIMPORTER\tFRESHNESS\tUPDATED\n")
	for _, st := range resp.Entries {
		freshness := string(st.Freshness)
		if freshness == "" {
			freshness = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			truncate(st.Entry.Path, 48),
			st.Entry.ID.String()[:8]+"...",
			st.Entry.Importer,
			freshness,
			st.Entry.UpdatedAt.Format("2006-01-02 15:04:05"),
		)
	}
	w.Flush()

	fmt.Printf("\nTotal: %d", len(resp.Entries))
	if resp.HasMore {
		fmt.Printf(" (has more, use --offset=%d to continue)", resp.Offset+resp.Limit)
	}
	fmt.Println()
}

func handleCount(ctx context.Context, adminSvc admin.AdminService, opts cliOptions) {
	resp, err := adminSvc.CountEntries(ctx, admin.CountRequest{Filters: opts.filters})
	if err != nil {
		log.Fatalf("Failed to count entries: %v", err)
	}

	if opts.useJSON {
		printJSON(resp)
		return
	}
	fmt.Printf("Total count: %d\n", resp.Count)
}

func handleStats(ctx context.Context, adminSvc admin.AdminService, opts cliOptions) {
	resp, err := adminSvc.GetStatistics(ctx, admin.StatisticsRequest{
		Filters: opts.filters,
		Options: admin.DefaultStatisticsOptions(),
	})
	if err != nil {
		log.Fatalf("Failed to get statistics: %v", err)
	}

	if opts.useJSON {
		printJSON(resp)
		return
	}

	stats := resp.Statistics

	fmt.Println("=== Asset Statistics ===")
	fmt.Printf("\nCatalog entries:  %d\n", stats.TotalEntries)
	fmt.Printf("Artifacts:        %d (%d bytes)\n", stats.TotalArtifacts, stats.TotalBytes)
	fmt.Printf("Orphan artifacts: %d\n", stats.OrphanArtifacts)

	printBreakdown("By Format", stats.ByFormat)
	printBreakdown("By Importer", stats.ByImporter)
	if len(stats.ByFreshness) > 0 {
		byFreshness := make(map[string]int64, len(stats.ByFreshness))
		for k, v := range stats.ByFreshness {
			byFreshness[string(k)] = v
		}
		printBreakdown("By Freshness", byFreshness)
	}

	if stats.OldestEntry != nil && stats.NewestEntry != nil {
		fmt.Println("\nTime Range:")
		fmt.Printf("  Oldest: %s\n", stats.OldestEntry.Format(time.RFC3339))
		fmt.Printf("  Newest: %s\n", stats.NewestEntry.Format(time.RFC3339))
	}

	fmt.Printf("\nComputed at: %s\n", resp.ComputedAt.Format(time.RFC3339))
}

func printBreakdown(title string, counts map[string]int64) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Printf("\n%s:\n", title)
	for _, k := range keys {
		fmt.Printf("  %-30s: %d\n", truncate(k, 30), counts[k])
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
