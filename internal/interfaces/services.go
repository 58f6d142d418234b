package interfaces

import (
	"context"

	"github.com/folioapp/folio/internal/models"
)

// PortfolioService applies ledger updates and manages portfolio lifecycle.
type PortfolioService interface {
	// ApplyAction applies one buy (shares > 0) or sell (shares < 0) of
	// |shares| units at price per unit. The update is rejected in full with
	// ErrInsufficientFunds or ErrInsufficientShares when a balance would go
	// negative, and retried internally on version conflicts.
	ApplyAction(ctx context.Context, id, ticker string, shares, price float64) (*models.Portfolio, error)

	CreatePortfolio(ctx context.Context, userID, title, description string, tags []int, initialCash float64) (*models.Portfolio, error)
	GetPortfolio(ctx context.Context, id string) (*models.Portfolio, error)
	ListPortfolios(ctx context.Context, userID string) ([]*models.Portfolio, error)
	DeletePortfolio(ctx context.Context, id string) error
	IncrementFavourites(ctx context.Context, id string, delta int) (*models.Portfolio, error)

	// RenderChart renders (and caches) the portfolio history chart as PNG.
	RenderChart(ctx context.Context, id string) ([]byte, error)
}

// AccountService manages registration, credential checks, and username
// allocation.
type AccountService interface {
	// Register creates a user with a generated unique username.
	Register(ctx context.Context, firstName, lastName, email, password string) (*models.User, error)

	// FindOrCreateOAuthUser resolves an externally authenticated identity to
	// a local account, creating one (with a generated username) on first
	// sign-in and linking by email thereafter.
	FindOrCreateOAuthUser(ctx context.Context, email, firstName, lastName, provider string) (*models.User, error)

	// Authenticate verifies an email-or-username plus password pair.
	Authenticate(ctx context.Context, login, password string) (*models.User, error)

	// UpdateProfile applies partial updates to a user's profile; nil fields
	// are left unchanged.
	UpdateProfile(ctx context.Context, username string, firstName, lastName, email, password *string) (*models.User, error)

	// GenerateUsername allocates an unused handle from a first/last name.
	GenerateUsername(ctx context.Context, firstName, lastName string) (string, error)
}
