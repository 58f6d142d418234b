package interfaces

import (
	"context"

	"github.com/folioapp/folio/internal/models"
)

// MarketDataClient is the read-only market-data surface the server proxies.
// All three calls are idempotent reads; implementations retry transient
// failures with backoff and surface apperrors.ErrUpstreamUnavailable when
// the endpoint stays down or times out.
type MarketDataClient interface {
	Snapshot(ctx context.Context, symbol string) (*models.Snapshot, error)
	Compare(ctx context.Context, symbols []string) ([]models.ComparisonSeries, error)
	Analytics(ctx context.Context, symbols []string) (*models.Analytics, error)
}
