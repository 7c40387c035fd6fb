package admin

import (
	"time"

	"github.com/tendant/simple-asset/pkg/simpleasset"
)

// ListEntriesRequest contains parameters for admin catalog listing
type ListEntriesRequest struct {
	Filters EntryFilters `json:"filters"`
	// IncludeFreshness classifies every returned entry against its source
	IncludeFreshness bool `json:"include_freshness"`
}

// EntryStatus is a catalog entry with its optional freshness
type EntryStatus struct {
	Entry     *simpleasset.CatalogEntry `json:"entry"`
	Freshness simpleasset.Freshness     `json:"freshness,omitempty"`
}

// ListEntriesResponse contains the paginated list of entries
type ListEntriesResponse struct {
	Entries []*EntryStatus `json:"entries"`
	Limit   int            `json:"limit"`
	Offset  int            `json:"offset"`
	HasMore bool           `json:"has_more"`
}

// CountRequest contains parameters for counting entries
type CountRequest struct {
	Filters EntryFilters `json:"filters"`
}

// CountResponse contains the count result
type CountResponse struct {
	Count int64 `json:"count"`
}

// StatisticsRequest contains parameters for retrieving statistics
type StatisticsRequest struct {
	Filters EntryFilters      `json:"filters"`
	Options StatisticsOptions `json:"options"`
}

// StatisticsResponse contains the statistics result
type StatisticsResponse struct {
	Statistics AssetStatistics `json:"statistics"`
	ComputedAt time.Time       `json:"computed_at"`
}

// FilterOption provides functional options for building filters
type FilterOption func(*EntryFilters)

// NewFilters applies opts to empty filters
func NewFilters(opts ...FilterOption) EntryFilters {
	var f EntryFilters
	for _, opt := range opts {
		opt(&f)
	}
	return f
}

// WithPathPrefix filters by virtual path prefix
func WithPathPrefix(prefix string) FilterOption {
	return func(f *EntryFilters) {
		f.PathPrefix = &prefix
	}
}

// WithExtensions filters by source extension
func WithExtensions(exts ...string) FilterOption {
	return func(f *EntryFilters) {
		f.Extensions = exts
	}
}

// WithImporter filters by importer name
func WithImporter(name string) FilterOption {
	return func(f *EntryFilters) {
		f.Importer = &name
	}
}

// WithFormatHint filters by recorded format hint
func WithFormatHint(hint string) FilterOption {
	return func(f *EntryFilters) {
		f.FormatHint = &hint
	}
}

// WithFreshness filters by freshness against the current source
func WithFreshness(freshness simpleasset.Freshness) FilterOption {
	return func(f *EntryFilters) {
		f.Freshness = &freshness
	}
}

// WithUpdatedAfter filters entries recorded after t
func WithUpdatedAfter(t time.Time) FilterOption {
	return func(f *EntryFilters) {
		f.UpdatedAfter = &t
	}
}

// WithUpdatedBefore filters entries recorded before t
func WithUpdatedBefore(t time.Time) FilterOption {
	return func(f *EntryFilters) {
		f.UpdatedBefore = &t
	}
}

// WithPagination sets limit and offset
func WithPagination(limit, offset int) FilterOption {
	return func(f *EntryFilters) {
		f.Limit = &limit
		f.Offset = &offset
	}
}

// WithSort sets the sort field and order
func WithSort(sortBy, sortOrder string) FilterOption {
	return func(f *EntryFilters) {
		f.SortBy = &sortBy
		f.SortOrder = &sortOrder
	}
}
