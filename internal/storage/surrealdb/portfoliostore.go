package surrealdb

import (
	"context"
	"fmt"

	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/folioapp/folio/internal/apperrors"
	"github.com/folioapp/folio/internal/common"
	"github.com/folioapp/folio/internal/interfaces"
	"github.com/folioapp/folio/internal/models"
)

// PortfolioStore implements interfaces.PortfolioStore using SurrealDB.
//
// Writes through Save are conditioned on the document version so concurrent
// read-modify-write cycles cannot silently overwrite each other; the loser
// gets apperrors.ErrConflict and retries from a fresh read.
type PortfolioStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

func NewPortfolioStore(db *surrealdb.DB, logger *common.Logger) *PortfolioStore {
	return &PortfolioStore{
		db:     db,
		logger: logger,
	}
}

func (s *PortfolioStore) Get(ctx context.Context, id string) (*models.Portfolio, error) {
	record, err := surrealdb.Select[models.Portfolio](ctx, s.db, surrealmodels.NewRecordID("portfolio", id))
	if err != nil {
		if isNotFoundError(err) {
			return nil, fmt.Errorf("portfolio %s: %w", id, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to select portfolio: %w", err)
	}
	if record == nil {
		return nil, fmt.Errorf("portfolio %s: %w", id, apperrors.ErrNotFound)
	}
	return record, nil
}

func (s *PortfolioStore) Create(ctx context.Context, p *models.Portfolio) error {
	existing, err := surrealdb.Select[models.Portfolio](ctx, s.db, surrealmodels.NewRecordID("portfolio", p.ID))
	if err != nil && !isNotFoundError(err) {
		return fmt.Errorf("failed to check portfolio: %w", err)
	}
	if existing != nil {
		return fmt.Errorf("portfolio %s already exists: %w", p.ID, apperrors.ErrConflict)
	}

	sql := "UPSERT $rid CONTENT $portfolio"
	vars := map[string]any{
		"rid":       surrealmodels.NewRecordID("portfolio", p.ID),
		"portfolio": p,
	}

	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		_, err := surrealdb.Query[[]models.Portfolio](ctx, s.db, sql, vars)
		if err == nil {
			return nil
		}
		lastErr = err
	}
	return fmt.Errorf("failed to create portfolio after retries: %w", lastErr)
}

// Save persists p only if the stored version still equals expectedVersion.
// The written document carries expectedVersion+1. An empty update result
// means another writer got there first.
func (s *PortfolioStore) Save(ctx context.Context, p *models.Portfolio, expectedVersion int) error {
	doc := p.Clone()
	doc.Version = expectedVersion + 1

	sql := "UPDATE $rid CONTENT $portfolio WHERE version = $expected RETURN AFTER"
	vars := map[string]any{
		"rid":       surrealmodels.NewRecordID("portfolio", p.ID),
		"portfolio": doc,
		"expected":  expectedVersion,
	}

	results, err := surrealdb.Query[[]models.Portfolio](ctx, s.db, sql, vars)
	if err != nil {
		return fmt.Errorf("failed to save portfolio: %w", err)
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return fmt.Errorf("portfolio %s version %d: %w", p.ID, expectedVersion, apperrors.ErrConflict)
	}

	p.Version = doc.Version
	return nil
}

func (s *PortfolioStore) Delete(ctx context.Context, id string) error {
	_, err := surrealdb.Delete[models.Portfolio](ctx, s.db, surrealmodels.NewRecordID("portfolio", id))
	if err != nil && !isNotFoundError(err) {
		return fmt.Errorf("failed to delete portfolio: %w", err)
	}
	return nil
}

func (s *PortfolioStore) ListByUser(ctx context.Context, userID string) ([]*models.Portfolio, error) {
	sql := "SELECT * FROM portfolio WHERE user_id = $user_id ORDER BY created_at DESC"
	vars := map[string]any{"user_id": userID}

	results, err := surrealdb.Query[[]models.Portfolio](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to list portfolios: %w", err)
	}

	if results != nil && len(*results) > 0 {
		var mapped []*models.Portfolio
		for i := range (*results)[0].Result {
			mapped = append(mapped, &(*results)[0].Result[i])
		}
		return mapped, nil
	}
	return nil, nil
}

// Compile-time check
var _ interfaces.PortfolioStore = (*PortfolioStore)(nil)
