// Package interfaces defines service and storage contracts for Folio
package interfaces

import (
	"context"

	"github.com/folioapp/folio/internal/models"
)

// StorageManager coordinates all storage backends.
type StorageManager interface {
	UserStore() UserStore
	PortfolioStore() PortfolioStore
	FileStore() FileStore

	// Lifecycle
	Close() error
}

// UserStore manages user accounts. Lookups return apperrors.ErrNotFound
// when no matching document exists.
type UserStore interface {
	GetUser(ctx context.Context, username string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	SaveUser(ctx context.Context, user *models.User) error
	DeleteUser(ctx context.Context, username string) error
	UsernameExists(ctx context.Context, username string) (bool, error)
	ListUsernames(ctx context.Context) ([]string, error)
}

// PortfolioStore manages portfolio documents.
//
// Save is the optimistic-concurrency write: it persists the document only if
// the stored version still equals expectedVersion, bumping the version on
// success; a mismatch returns apperrors.ErrConflict. Create fails with
// ErrConflict if the id already exists. Delete is a hard delete.
type PortfolioStore interface {
	Get(ctx context.Context, id string) (*models.Portfolio, error)
	Create(ctx context.Context, p *models.Portfolio) error
	Save(ctx context.Context, p *models.Portfolio, expectedVersion int) error
	Delete(ctx context.Context, id string) error
	ListByUser(ctx context.Context, userID string) ([]*models.Portfolio, error)
}

// FileStore provides binary file storage in the database (rendered charts).
type FileStore interface {
	SaveFile(ctx context.Context, category, key string, data []byte, contentType string) error
	GetFile(ctx context.Context, category, key string) ([]byte, string, error) // data, contentType, error
	DeleteFile(ctx context.Context, category, key string) error
	HasFile(ctx context.Context, category, key string) (bool, error)
}
