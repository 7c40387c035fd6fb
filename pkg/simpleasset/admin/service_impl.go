package admin

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/tendant/simple-asset/pkg/simpleasset"
)

const defaultLimit = 100

// adminService implements the AdminService interface
type adminService struct {
	catalog simpleasset.Catalog
	store   simpleasset.ContentStore
}

// Ensure adminService implements AdminService
var _ AdminService = (*adminService)(nil)

// ListEntries returns a paginated list of entries with optional filtering
func (s *adminService) ListEntries(ctx context.Context, req ListEntriesRequest) (*ListEntriesResponse, error) {
	matched, err := s.filter(ctx, req.Filters, req.IncludeFreshness)
	if err != nil {
		return nil, err
	}
	sortEntries(matched, req.Filters)

	limit := defaultLimit
	if req.Filters.Limit != nil && *req.Filters.Limit > 0 {
		limit = *req.Filters.Limit
	}
	offset := 0
	if req.Filters.Offset != nil && *req.Filters.Offset > 0 {
		offset = *req.Filters.Offset
	}

	resp := &ListEntriesResponse{Limit: limit, Offset: offset, Entries: []*EntryStatus{}}
	if offset < len(matched) {
		end := min(offset+limit, len(matched))
		resp.Entries = matched[offset:end]
		resp.HasMore = end < len(matched)
	}
	return resp, nil
}

// CountEntries returns the count of entries matching the given filters
func (s *adminService) CountEntries(ctx context.Context, req CountRequest) (*CountResponse, error) {
	matched, err := s.filter(ctx, req.Filters, false)
	if err != nil {
		return nil, err
	}
	return &CountResponse{Count: int64(len(matched))}, nil
}

// GetStatistics returns aggregated statistics about entries and artifacts
func (s *adminService) GetStatistics(ctx context.Context, req StatisticsRequest) (*StatisticsResponse, error) {
	matched, err := s.filter(ctx, req.Filters, req.Options.IncludeFreshnessBreakdown)
	if err != nil {
		return nil, err
	}
	records, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}

	stats := AssetStatistics{
		TotalEntries:   int64(len(matched)),
		TotalArtifacts: int64(len(records)),
	}
	if req.Options.IncludeFormatBreakdown {
		stats.ByFormat = make(map[string]int64)
	}
	if req.Options.IncludeImporterBreakdown {
		stats.ByImporter = make(map[string]int64)
	}
	if req.Options.IncludeFreshnessBreakdown {
		stats.ByFreshness = make(map[simpleasset.Freshness]int64)
	}

	all, err := s.catalog.List(ctx)
	if err != nil {
		return nil, err
	}
	referenced := make(map[simpleasset.ID]struct{}, len(all))
	for _, e := range all {
		referenced[e.ID] = struct{}{}
	}

	for _, rec := range records {
		stats.TotalBytes += rec.Size
		if stats.ByFormat != nil {
			stats.ByFormat[rec.Format]++
		}
		if _, ok := referenced[rec.ID]; !ok {
			stats.OrphanArtifacts++
		}
		if req.Options.IncludeStoredSize {
			size, err := s.store.StoredSize(ctx, rec.ID)
			if errors.Is(err, simpleasset.ErrNotFound) {
				// Deleted since List.
				continue
			}
			if err != nil {
				return nil, err
			}
			stats.StoredBytes += size
		}
	}

	for _, st := range matched {
		if stats.ByImporter != nil {
			stats.ByImporter[st.Entry.Importer.Name]++
		}
		if stats.ByFreshness != nil {
			stats.ByFreshness[st.Freshness]++
		}
		if req.Options.IncludeTimeRange {
			t := st.Entry.UpdatedAt
			if stats.OldestEntry == nil || t.Before(*stats.OldestEntry) {
				stats.OldestEntry = &t
			}
			if stats.NewestEntry == nil || t.After(*stats.NewestEntry) {
				stats.NewestEntry = &t
			}
		}
	}

	return &StatisticsResponse{Statistics: stats, ComputedAt: time.Now()}, nil
}

func (s *adminService) filter(ctx context.Context, f EntryFilters, withFreshness bool) ([]*EntryStatus, error) {
	entries, err := s.catalog.List(ctx)
	if err != nil {
		return nil, err
	}

	var out []*EntryStatus
	for _, e := range entries {
		if !matchesStatic(e, f) {
			continue
		}
		st := &EntryStatus{Entry: e}
		if withFreshness || f.Freshness != nil {
			if st.Freshness, err = s.freshness(ctx, e); err != nil {
				return nil, err
			}
			if f.Freshness != nil && st.Freshness != *f.Freshness {
				continue
			}
		}
		out = append(out, st)
	}
	return out, nil
}

func (s *adminService) freshness(ctx context.Context, e *simpleasset.CatalogEntry) (simpleasset.Freshness, error) {
	_, freshness, err := s.catalog.Status(ctx, e.Path, e.FormatHint)
	if errors.Is(err, simpleasset.ErrNotFound) {
		return SourceMissing, nil
	}
	return freshness, err
}

func matchesStatic(e *simpleasset.CatalogEntry, f EntryFilters) bool {
	if f.PathPrefix != nil && !strings.HasPrefix(e.Path, simpleasset.NormalizePath(*f.PathPrefix)) {
		return false
	}
	if len(f.Extensions) > 0 && !containsFold(f.Extensions, simpleasset.Extension(e.Path)) {
		return false
	}
	if f.Importer != nil && e.Importer.Name != *f.Importer {
		return false
	}
	if f.FormatHint != nil && e.FormatHint != *f.FormatHint {
		return false
	}
	if f.UpdatedAfter != nil && !e.UpdatedAt.After(*f.UpdatedAfter) {
		return false
	}
	if f.UpdatedBefore != nil && !e.UpdatedAt.Before(*f.UpdatedBefore) {
		return false
	}
	return true
}

func containsFold(exts []string, ext string) bool {
	for _, x := range exts {
		if strings.EqualFold(strings.TrimPrefix(x, "."), ext) {
			return true
		}
	}
	return false
}

func sortEntries(entries []*EntryStatus, f EntryFilters) {
	byUpdated := f.SortBy != nil && *f.SortBy == "updated_at"
	desc := f.SortOrder != nil && strings.EqualFold(*f.SortOrder, "desc")

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i].Entry, entries[j].Entry
		if desc {
			a, b = b, a
		}
		if byUpdated && !a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.UpdatedAt.Before(b.UpdatedAt)
		}
		return a.Path < b.Path
	})
}
