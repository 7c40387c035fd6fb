package admin

import (
	"context"

	"github.com/tendant/simple-asset/pkg/simpleasset"
)

// AdminService reports on the catalog and artifact store for operational
// and monitoring use.
type AdminService interface {
	// ListEntries returns a paginated list of catalog entries with optional filtering.
	ListEntries(ctx context.Context, req ListEntriesRequest) (*ListEntriesResponse, error)

	// CountEntries returns the count of entries matching the given filters.
	CountEntries(ctx context.Context, req CountRequest) (*CountResponse, error)

	// GetStatistics returns aggregated statistics about entries and artifacts.
	GetStatistics(ctx context.Context, req StatisticsRequest) (*StatisticsResponse, error)
}

// New creates a new AdminService over the service's catalog and store.
func New(svc simpleasset.Service) AdminService {
	return &adminService{
		catalog: svc.Catalog(),
		store:   svc.Store(),
	}
}
