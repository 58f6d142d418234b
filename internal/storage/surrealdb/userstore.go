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

// UserStore implements interfaces.UserStore using SurrealDB. Users are
// keyed by username.
type UserStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

func NewUserStore(db *surrealdb.DB, logger *common.Logger) *UserStore {
	return &UserStore{
		db:     db,
		logger: logger,
	}
}

func (s *UserStore) GetUser(ctx context.Context, username string) (*models.User, error) {
	record, err := surrealdb.Select[models.User](ctx, s.db, surrealmodels.NewRecordID("user", username))
	if err != nil {
		if isNotFoundError(err) {
			return nil, fmt.Errorf("user %s: %w", username, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to select user: %w", err)
	}
	if record == nil {
		return nil, fmt.Errorf("user %s: %w", username, apperrors.ErrNotFound)
	}
	return record, nil
}

func (s *UserStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	sql := "SELECT * FROM user WHERE email = $email LIMIT 1"
	vars := map[string]any{"email": email}

	results, err := surrealdb.Query[[]models.User](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to query user by email: %w", err)
	}

	if results != nil && len(*results) > 0 && len((*results)[0].Result) > 0 {
		return &(*results)[0].Result[0], nil
	}
	return nil, fmt.Errorf("user with email %s: %w", email, apperrors.ErrNotFound)
}

func (s *UserStore) SaveUser(ctx context.Context, user *models.User) error {
	sql := "UPSERT $rid CONTENT $user"
	vars := map[string]any{
		"rid":  surrealmodels.NewRecordID("user", user.Username),
		"user": user,
	}

	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		_, err := surrealdb.Query[[]models.User](ctx, s.db, sql, vars)
		if err == nil {
			return nil
		}
		lastErr = err
	}
	return fmt.Errorf("failed to save user after retries: %w", lastErr)
}

func (s *UserStore) DeleteUser(ctx context.Context, username string) error {
	_, err := surrealdb.Delete[models.User](ctx, s.db, surrealmodels.NewRecordID("user", username))
	if err != nil && !isNotFoundError(err) {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}

func (s *UserStore) UsernameExists(ctx context.Context, username string) (bool, error) {
	record, err := surrealdb.Select[models.User](ctx, s.db, surrealmodels.NewRecordID("user", username))
	if err != nil {
		if isNotFoundError(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check username: %w", err)
	}
	return record != nil, nil
}

func (s *UserStore) ListUsernames(ctx context.Context) ([]string, error) {
	sql := "SELECT username FROM user"

	type usernameRow struct {
		Username string `json:"username"`
	}

	results, err := surrealdb.Query[[]usernameRow](ctx, s.db, sql, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list usernames: %w", err)
	}

	var names []string
	if results != nil && len(*results) > 0 {
		for _, row := range (*results)[0].Result {
			names = append(names, row.Username)
		}
	}
	return names, nil
}

// Compile-time check
var _ interfaces.UserStore = (*UserStore)(nil)
