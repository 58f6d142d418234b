// Package account manages user registration, credential checks, and
// username allocation.
package account

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/folioapp/folio/internal/apperrors"
	"github.com/folioapp/folio/internal/common"
	"github.com/folioapp/folio/internal/interfaces"
	"github.com/folioapp/folio/internal/models"
)

const minPasswordLength = 8

// ErrInvalidCredentials is returned by Authenticate for a bad login or
// password. It deliberately does not distinguish the two.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Service implements interfaces.AccountService
type Service struct {
	storage interfaces.StorageManager
	config  *common.AuthConfig
	logger  *common.Logger
}

// NewService creates a new account service
func NewService(storage interfaces.StorageManager, config *common.AuthConfig, logger *common.Logger) *Service {
	return &Service{
		storage: storage,
		config:  config,
		logger:  logger,
	}
}

// Register creates a password-backed account with a generated username.
func (s *Service) Register(ctx context.Context, firstName, lastName, email, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: a valid email is required", apperrors.ErrValidation)
	}
	if len(password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", apperrors.ErrValidation, minPasswordLength)
	}

	if _, err := s.storage.UserStore().GetUserByEmail(ctx, email); err == nil {
		return nil, fmt.Errorf("email %s already registered: %w", email, apperrors.ErrConflict)
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	username, err := s.GenerateUsername(ctx, firstName, lastName)
	if err != nil {
		return nil, err
	}

	hash, err := hashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	user := &models.User{
		Username:     username,
		Email:        email,
		FirstName:    strings.TrimSpace(firstName),
		LastName:     strings.TrimSpace(lastName),
		PasswordHash: hash,
		Provider:     "email",
		Role:         "user",
		CreatedAt:    now,
		ModifiedAt:   now,
	}
	if err := s.storage.UserStore().SaveUser(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info().Str("username", username).Str("email", email).Msg("User registered")
	return user, nil
}

// FindOrCreateOAuthUser resolves an externally authenticated identity to a
// local account. Lookup is by email; a first sign-in creates the account
// with a generated username and no password.
func (s *Service) FindOrCreateOAuthUser(ctx context.Context, email, firstName, lastName, provider string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, fmt.Errorf("%w: provider returned no email", apperrors.ErrValidation)
	}

	existing, err := s.storage.UserStore().GetUserByEmail(ctx, email)
	if err == nil {
		changed := false
		if firstName != "" && existing.FirstName != firstName {
			existing.FirstName = firstName
			changed = true
		}
		if lastName != "" && existing.LastName != lastName {
			existing.LastName = lastName
			changed = true
		}
		if changed {
			existing.ModifiedAt = time.Now()
			if err := s.storage.UserStore().SaveUser(ctx, existing); err != nil {
				s.logger.Warn().Err(err).Str("username", existing.Username).Msg("Failed to update user profile")
			}
		}
		return existing, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	username, err := s.GenerateUsername(ctx, firstName, lastName)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	user := &models.User{
		Username:   username,
		Email:      email,
		FirstName:  firstName,
		LastName:   lastName,
		Provider:   provider,
		Role:       "user",
		CreatedAt:  now,
		ModifiedAt: now,
	}
	if err := s.storage.UserStore().SaveUser(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info().Str("username", username).Str("provider", provider).Msg("OAuth user created")
	return user, nil
}

// Authenticate verifies a username-or-email plus password pair.
func (s *Service) Authenticate(ctx context.Context, login, password string) (*models.User, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	var user *models.User
	var err error
	if strings.Contains(login, "@") {
		user, err = s.storage.UserStore().GetUserByEmail(ctx, strings.ToLower(login))
	} else {
		user, err = s.storage.UserStore().GetUser(ctx, login)
	}
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if user.PasswordHash == "" {
		// OAuth-only account
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), truncateForBcrypt(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// UpdateProfile applies partial updates to a user's profile. Nil fields are
// left unchanged; a changed email must not belong to another account.
func (s *Service) UpdateProfile(ctx context.Context, username string, firstName, lastName, email, password *string) (*models.User, error) {
	user, err := s.storage.UserStore().GetUser(ctx, username)
	if err != nil {
		return nil, err
	}

	if firstName != nil {
		user.FirstName = strings.TrimSpace(*firstName)
	}
	if lastName != nil {
		user.LastName = strings.TrimSpace(*lastName)
	}

	if email != nil {
		newEmail := strings.ToLower(strings.TrimSpace(*email))
		if newEmail == "" || !strings.Contains(newEmail, "@") {
			return nil, fmt.Errorf("%w: a valid email is required", apperrors.ErrValidation)
		}
		if newEmail != user.Email {
			if existing, err := s.storage.UserStore().GetUserByEmail(ctx, newEmail); err == nil && existing.Username != username {
				return nil, fmt.Errorf("email %s already registered: %w", newEmail, apperrors.ErrConflict)
			} else if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
				return nil, err
			}
			user.Email = newEmail
		}
	}

	if password != nil {
		if len(*password) < minPasswordLength {
			return nil, fmt.Errorf("%w: password must be at least %d characters", apperrors.ErrValidation, minPasswordLength)
		}
		hash, err := hashPassword(*password)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		user.PasswordHash = hash
	}

	user.ModifiedAt = time.Now()
	if err := s.storage.UserStore().SaveUser(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info().Str("username", username).Msg("User profile updated")
	return user, nil
}

// hashPassword hashes a password with bcrypt at the default cost.
func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword(truncateForBcrypt(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// truncateForBcrypt caps input at bcrypt's 72-byte limit, which newer bcrypt
// versions reject instead of silently truncating.
func truncateForBcrypt(password string) []byte {
	b := []byte(password)
	if len(b) > 72 {
		b = b[:72]
	}
	return b
}

// Compile-time check
var _ interfaces.AccountService = (*Service)(nil)
