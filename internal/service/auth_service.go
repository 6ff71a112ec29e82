package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/annotatron-api/internal/models"
	appErrors "github.com/noah-isme/annotatron-api/pkg/errors"
)

type authUserRepository interface {
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	FindByID(ctx context.Context, id uint64) (*models.User, error)
	UpdatePasswordAndRevokeTokens(ctx context.Context, id uint64, passwordHash string, resetNeeded bool, changedAt time.Time) error
}

// AuthService provides session and credential use cases.
type AuthService struct {
	repo      authUserRepository
	tokens    *TokenService
	hasher    *PasswordHasher
	validator *validator.Validate
	logger    *zap.Logger
	metrics   *MetricsService
	now       func() time.Time
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(repo authUserRepository, tokens *TokenService, hasher *PasswordHasher, validate *validator.Validate, logger *zap.Logger, metrics *MetricsService) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if hasher == nil {
		hasher = NewPasswordHasher(0)
	}
	return &AuthService{
		repo:      repo,
		tokens:    tokens,
		hasher:    hasher,
		validator: validate,
		logger:    logger,
		metrics:   metrics,
		now:       time.Now,
	}
}

// Login verifies credentials and returns the user's current session token, issuing one when
// none is live. Unknown users, deactivated users and wrong passwords fail identically.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid login payload")
	}

	user, err := s.repo.FindByUsername(ctx, req.Username)
	if err != nil {
		if !isNotFound(err) {
			return nil, storageError(err, "failed to fetch user")
		}
		s.hasher.Burn(req.Password)
		return nil, s.authFailed("login")
	}

	if !s.hasher.Verify(req.Password, user.PasswordHash) {
		return nil, s.authFailed("login")
	}

	token, err := s.tokens.GetOrCreate(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	return &models.LoginResult{User: user, Token: token}, nil
}

// Logout revokes the presented token.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	return s.tokens.Revoke(ctx, token)
}

// ChangePassword replaces the target's password and revokes all of their sessions. Users changing
// their own password must prove the old one; administrators resetting someone else's password do
// not, and the target is then flagged to choose a new password.
func (s *AuthService) ChangePassword(ctx context.Context, actor *models.User, targetID uint64, req models.ChangePasswordRequest) error {
	if actor == nil {
		return appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}
	requireOld := actor.ID == targetID
	if !requireOld && !actor.IsAdministrator() {
		return appErrors.Clone(appErrors.ErrForbidden, "cannot change another user's password")
	}
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Validation(err, "invalid password payload")
	}

	target := actor
	if !requireOld {
		var err error
		target, err = s.repo.FindByID(ctx, targetID)
		if err != nil {
			if isNotFound(err) {
				return appErrors.Clone(appErrors.ErrNotFound, "user not found")
			}
			return storageError(err, "failed to fetch user")
		}
	}

	if requireOld && !s.hasher.Verify(req.OldPassword, target.PasswordHash) {
		return s.authFailed("password_change")
	}

	hash, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		return err
	}

	if err := s.repo.UpdatePasswordAndRevokeTokens(ctx, target.ID, hash, !requireOld, s.now().UTC()); err != nil {
		if isNotFound(err) {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return storageError(err, "failed to update password")
	}

	s.logger.Info("password changed", zap.Uint64("user_id", target.ID), zap.Uint64("actor_id", actor.ID), zap.Bool("reset_needed", !requireOld))
	return nil
}

func (s *AuthService) authFailed(operation string) error {
	s.metrics.AuthFailure(operation)
	return appErrors.Clone(appErrors.ErrAuthenticationFailed, "invalid username or password")
}
