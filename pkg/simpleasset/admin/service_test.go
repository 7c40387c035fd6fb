package admin_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-asset/pkg/simpleasset"
	"github.com/tendant/simple-asset/pkg/simpleasset/admin"
	"github.com/tendant/simple-asset/tests/testutil"
)

// newFixture imports three sources, then makes one stale, removes the
// source of another and stores an unreferenced artifact.
func newFixture(t *testing.T) admin.AdminService {
	t.Helper()
	env := testutil.NewEnv(t, testutil.DemoImporter(nil), testutil.UpperImporter())
	env.WriteSource(t, "a.src", "1")
	env.WriteSource(t, "b.src", "2")
	env.WriteSource(t, "notes/c.txt", "hi")
	env.Import(t, "a.src")
	env.Import(t, "b.src")
	env.Import(t, "notes/c.txt")

	env.WriteSource(t, "b.src", "changed")
	require.NoError(t, env.Sources.Remove("notes/c.txt"))
	_, err := env.Store.Put(context.Background(), strings.NewReader("orphan"), "raw")
	require.NoError(t, err)

	return admin.New(env.Service)
}

func paths(entries []*admin.EntryStatus) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Entry.Path
	}
	return out
}

func TestListEntriesWithFreshness(t *testing.T) {
	svc := newFixture(t)

	resp, err := svc.ListEntries(context.Background(), admin.ListEntriesRequest{IncludeFreshness: true})
	require.NoError(t, err)
	require.Equal(t, []string{"a.src", "b.src", "notes/c.txt"}, paths(resp.Entries))
	assert.Equal(t, simpleasset.FreshnessFresh, resp.Entries[0].Freshness)
	assert.Equal(t, simpleasset.FreshnessStale, resp.Entries[1].Freshness)
	assert.Equal(t, admin.SourceMissing, resp.Entries[2].Freshness)
	assert.False(t, resp.HasMore)
}

func TestListEntriesPagination(t *testing.T) {
	svc := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		limit, offset int
		want          []string
		hasMore       bool
	}{
		{2, 0, []string{"a.src", "b.src"}, true},
		{2, 2, []string{"notes/c.txt"}, false},
		{2, 10, []string{}, false},
	}
	for _, tt := range tests {
		resp, err := svc.ListEntries(ctx, admin.ListEntriesRequest{
			Filters: admin.NewFilters(admin.WithPagination(tt.limit, tt.offset)),
		})
		require.NoError(t, err)
		assert.Equal(t, tt.want, paths(resp.Entries))
		assert.Equal(t, tt.hasMore, resp.HasMore)
	}
}

func TestListEntriesSortDescending(t *testing.T) {
	svc := newFixture(t)

	resp, err := svc.ListEntries(context.Background(), admin.ListEntriesRequest{
		Filters: admin.NewFilters(admin.WithSort("path", "desc")),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"notes/c.txt", "b.src", "a.src"}, paths(resp.Entries))
}

func TestCountEntriesFilters(t *testing.T) {
	svc := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		opts []admin.FilterOption
		want int64
	}{
		{"all", nil, 3},
		{"extension", []admin.FilterOption{admin.WithExtensions(".SRC")}, 2},
		{"prefix", []admin.FilterOption{admin.WithPathPrefix("/notes/")}, 1},
		{"importer", []admin.FilterOption{admin.WithImporter("upper")}, 1},
		{"stale", []admin.FilterOption{admin.WithFreshness(simpleasset.FreshnessStale)}, 1},
		{"missing source", []admin.FilterOption{admin.WithFreshness(admin.SourceMissing)}, 1},
		{"hint", []admin.FilterOption{admin.WithFormatHint("mesh")}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := svc.CountEntries(ctx, admin.CountRequest{Filters: admin.NewFilters(tt.opts...)})
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.Count)
		})
	}
}

func TestGetStatistics(t *testing.T) {
	svc := newFixture(t)

	resp, err := svc.GetStatistics(context.Background(), admin.StatisticsRequest{
		Options: admin.DefaultStatisticsOptions(),
	})
	require.NoError(t, err)

	stats := resp.Statistics
	assert.Equal(t, int64(3), stats.TotalEntries)
	assert.Equal(t, int64(4), stats.TotalArtifacts)
	assert.Equal(t, int64(1), stats.OrphanArtifacts)
	assert.Equal(t, int64(len("ARTIFACT:1")+len("ARTIFACT:2")+len("HI")+len("orphan")), stats.TotalBytes)
	assert.Equal(t, stats.TotalBytes, stats.StoredBytes, "memory backend stores artifacts as is")
	assert.Equal(t, map[string]int64{"demo": 2, "text": 1, "raw": 1}, stats.ByFormat)
	assert.Equal(t, map[string]int64{"demo": 2, "upper": 1}, stats.ByImporter)
	assert.Equal(t, map[simpleasset.Freshness]int64{
		simpleasset.FreshnessFresh: 1,
		simpleasset.FreshnessStale: 1,
		admin.SourceMissing:        1,
	}, stats.ByFreshness)
	require.NotNil(t, stats.OldestEntry)
	require.NotNil(t, stats.NewestEntry)
	assert.False(t, stats.NewestEntry.Before(*stats.OldestEntry))
}

func TestGetStatisticsWithoutBreakdowns(t *testing.T) {
	svc := newFixture(t)

	resp, err := svc.GetStatistics(context.Background(), admin.StatisticsRequest{})
	require.NoError(t, err)
	assert.Nil(t, resp.Statistics.ByFormat)
	assert.Nil(t, resp.Statistics.ByFreshness)
	assert.Nil(t, resp.Statistics.OldestEntry)
	assert.Zero(t, resp.Statistics.StoredBytes)
	assert.Equal(t, int64(3), resp.Statistics.TotalEntries)
}
