package admin

import (
	"time"

	"github.com/tendant/simple-asset/pkg/simpleasset"
)

// SourceMissing classifies an entry whose source file can no longer be read.
const SourceMissing simpleasset.Freshness = "source_missing"

// AssetStatistics provides aggregated statistics about the catalog and store
type AssetStatistics struct {
	TotalEntries    int64                           `json:"total_entries"`
	TotalArtifacts  int64                           `json:"total_artifacts"`
	TotalBytes      int64                           `json:"total_bytes"`
	StoredBytes     int64                           `json:"stored_bytes,omitempty"`
	OrphanArtifacts int64                           `json:"orphan_artifacts"`
	ByFormat        map[string]int64                `json:"by_format,omitempty"`
	ByImporter      map[string]int64                `json:"by_importer,omitempty"`
	ByFreshness     map[simpleasset.Freshness]int64 `json:"by_freshness,omitempty"`
	OldestEntry     *time.Time                      `json:"oldest_entry,omitempty"`
	NewestEntry     *time.Time                      `json:"newest_entry,omitempty"`
}

// EntryFilters defines filtering options for admin operations
type EntryFilters struct {
	// Path filters
	PathPrefix *string  `json:"path_prefix,omitempty"`
	Extensions []string `json:"extensions,omitempty"`

	// Provenance filters
	Importer   *string `json:"importer,omitempty"`
	FormatHint *string `json:"format_hint,omitempty"`

	// Freshness re-reads each candidate source
	Freshness *simpleasset.Freshness `json:"freshness,omitempty"`

	// Time range filters
	UpdatedAfter  *time.Time `json:"updated_after,omitempty"`
	UpdatedBefore *time.Time `json:"updated_before,omitempty"`

	// Pagination
	Limit  *int `json:"limit,omitempty"`
	Offset *int `json:"offset,omitempty"`

	// Sorting
	SortBy    *string `json:"sort_by,omitempty"`    // path, updated_at
	SortOrder *string `json:"sort_order,omitempty"` // asc, desc
}

// StatisticsOptions defines what statistics to compute
type StatisticsOptions struct {
	IncludeFormatBreakdown    bool `json:"include_format_breakdown"`
	IncludeImporterBreakdown  bool `json:"include_importer_breakdown"`
	IncludeFreshnessBreakdown bool `json:"include_freshness_breakdown"`
	IncludeTimeRange          bool `json:"include_time_range"`
	// IncludeStoredSize asks the backend for the size of every artifact
	IncludeStoredSize bool `json:"include_stored_size"`
}

// DefaultStatisticsOptions returns statistics options with all breakdowns enabled
func DefaultStatisticsOptions() StatisticsOptions {
	return StatisticsOptions{
		IncludeFormatBreakdown:    true,
		IncludeImporterBreakdown:  true,
		IncludeFreshnessBreakdown: true,
		IncludeTimeRange:          true,
		IncludeStoredSize:         true,
	}
}
