// Package portfolio provides portfolio management services
package portfolio

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/folioapp/folio/internal/apperrors"
	"github.com/folioapp/folio/internal/common"
	"github.com/folioapp/folio/internal/interfaces"
	"github.com/folioapp/folio/internal/ledger"
	"github.com/folioapp/folio/internal/models"
)

// maxConflictRetries bounds how many times an action is re-applied against a
// fresh read after losing a version race.
const maxConflictRetries = 3

// Service implements interfaces.PortfolioService
type Service struct {
	storage interfaces.StorageManager
	market  interfaces.MarketDataClient
	logger  *common.Logger
}

// NewService creates a new portfolio service
func NewService(storage interfaces.StorageManager, market interfaces.MarketDataClient, logger *common.Logger) *Service {
	return &Service{
		storage: storage,
		market:  market,
		logger:  logger,
	}
}

// ApplyAction runs one read-apply-save cycle for a trade, retrying from a
// fresh read when a concurrent writer bumps the version first. Ledger
// rejections (insufficient funds or shares, validation) are final and are
// never retried.
func (s *Service) ApplyAction(ctx context.Context, id, ticker string, shares, price float64) (*models.Portfolio, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))

	var lastErr error
	for attempt := 1; attempt <= maxConflictRetries; attempt++ {
		current, err := s.storage.PortfolioStore().Get(ctx, id)
		if err != nil {
			return nil, err
		}

		updated, err := ledger.Apply(current, ticker, shares, price, time.Now())
		if err != nil {
			return nil, err
		}

		if err := s.storage.PortfolioStore().Save(ctx, updated, current.Version); err != nil {
			if apperrors.IsRetryable(err) {
				s.logger.Debug().
					Str("portfolio", id).
					Int("attempt", attempt).
					Msg("Version conflict applying action, retrying")
				lastErr = err
				continue
			}
			return nil, err
		}

		// A committed trade invalidates the cached chart.
		if err := s.storage.FileStore().DeleteFile(ctx, "chart", id); err != nil {
			s.logger.Warn().Err(err).Str("portfolio", id).Msg("Failed to invalidate chart cache")
		}

		s.logger.Info().
			Str("portfolio", id).
			Str("ticker", ticker).
			Float64("shares", shares).
			Float64("price", price).
			Float64("cash", updated.Cash).
			Msg("Action applied")
		return updated, nil
	}

	return nil, fmt.Errorf("action on portfolio %s not applied after %d attempts: %w", id, maxConflictRetries, lastErr)
}

// CreatePortfolio creates a portfolio with a generated id and a starting
// cash balance.
func (s *Service) CreatePortfolio(ctx context.Context, userID, title, description string, tags []int, initialCash float64) (*models.Portfolio, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", apperrors.ErrValidation)
	}
	if strings.TrimSpace(title) == "" {
		return nil, fmt.Errorf("%w: title is required", apperrors.ErrValidation)
	}
	if initialCash < 0 {
		return nil, fmt.Errorf("%w: initial cash must be non-negative", apperrors.ErrValidation)
	}

	p := models.NewPortfolio(uuid.NewString(), userID, strings.TrimSpace(title), description, tags, initialCash)
	if err := s.storage.PortfolioStore().Create(ctx, p); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("portfolio", p.ID).
		Str("user", userID).
		Float64("initial_cash", initialCash).
		Msg("Portfolio created")
	return p, nil
}

func (s *Service) GetPortfolio(ctx context.Context, id string) (*models.Portfolio, error) {
	return s.storage.PortfolioStore().Get(ctx, id)
}

func (s *Service) ListPortfolios(ctx context.Context, userID string) ([]*models.Portfolio, error) {
	return s.storage.PortfolioStore().ListByUser(ctx, userID)
}

// DeletePortfolio removes the portfolio document and its cached chart.
// Deleting a portfolio that does not exist returns ErrNotFound.
func (s *Service) DeletePortfolio(ctx context.Context, id string) error {
	if _, err := s.storage.PortfolioStore().Get(ctx, id); err != nil {
		return err
	}
	if err := s.storage.PortfolioStore().Delete(ctx, id); err != nil {
		return err
	}
	if err := s.storage.FileStore().DeleteFile(ctx, "chart", id); err != nil {
		s.logger.Warn().Err(err).Str("portfolio", id).Msg("Failed to delete cached chart")
	}
	s.logger.Info().Str("portfolio", id).Msg("Portfolio deleted")
	return nil
}

// IncrementFavourites adjusts the favourites counter by delta, clamping the
// result at zero. The write goes through the versioned save like any other
// portfolio mutation.
func (s *Service) IncrementFavourites(ctx context.Context, id string, delta int) (*models.Portfolio, error) {
	var lastErr error
	for attempt := 1; attempt <= maxConflictRetries; attempt++ {
		current, err := s.storage.PortfolioStore().Get(ctx, id)
		if err != nil {
			return nil, err
		}

		updated := current.Clone()
		updated.Favourites += delta
		if updated.Favourites < 0 {
			updated.Favourites = 0
		}
		updated.UpdatedAt = time.Now()

		if err := s.storage.PortfolioStore().Save(ctx, updated, current.Version); err != nil {
			if apperrors.IsRetryable(err) {
				lastErr = err
				continue
			}
			return nil, err
		}
		return updated, nil
	}
	return nil, fmt.Errorf("favourites update on portfolio %s not applied after %d attempts: %w", id, maxConflictRetries, lastErr)
}

// RenderChart returns the portfolio history chart as PNG, serving a cached
// render when the portfolio has not changed since.
func (s *Service) RenderChart(ctx context.Context, id string) ([]byte, error) {
	p, err := s.storage.PortfolioStore().Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if data, _, err := s.storage.FileStore().GetFile(ctx, "chart", id); err == nil {
		return data, nil
	}

	points, err := s.historyPoints(ctx, p)
	if err != nil {
		return nil, err
	}

	png, err := RenderHistoryChart(p.Title, points)
	if err != nil {
		return nil, fmt.Errorf("failed to render chart for portfolio %s: %w", id, err)
	}

	if err := s.storage.FileStore().SaveFile(ctx, "chart", id, png, "image/png"); err != nil {
		s.logger.Warn().Err(err).Str("portfolio", id).Msg("Failed to cache chart")
	}
	return png, nil
}

// historyPoints reconstructs the portfolio's daily value history from its
// action log and the upstream comparison series for the held tickers.
func (s *Service) historyPoints(ctx context.Context, p *models.Portfolio) ([]HistoryPoint, error) {
	tickers := make([]string, 0, len(p.Actions))
	for t := range p.Actions {
		tickers = append(tickers, t)
	}
	for t := range p.Shares {
		if _, seen := p.Actions[t]; !seen && p.Shares[t] != 0 {
			tickers = append(tickers, t)
		}
	}

	var series []models.ComparisonSeries
	if len(tickers) > 0 {
		var err error
		series, err = s.market.Compare(ctx, tickers)
		if err != nil {
			return nil, err
		}
	}

	return buildHistory(p, series), nil
}

// Compile-time check
var _ interfaces.PortfolioService = (*Service)(nil)
