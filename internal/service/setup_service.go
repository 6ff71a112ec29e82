package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/annotatron-api/internal/models"
	"github.com/noah-isme/annotatron-api/internal/repository"
	appErrors "github.com/noah-isme/annotatron-api/pkg/errors"
)

// setupStateKey holds the configured flag. Configuration is permanent so the entry never expires.
const setupStateKey = "annotatron:setup:configured"

type setupUserRepository interface {
	CountActiveAdministrators(ctx context.Context) (int, error)
	CreateInitialAdministrator(ctx context.Context, user *models.User, token *models.Token) error
}

type setupCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// SetupService drives the one-way bootstrap from NeedsSetup to Configured.
type SetupService struct {
	repo      setupUserRepository
	tokens    *TokenService
	hasher    *PasswordHasher
	cache     setupCache
	validator *validator.Validate
	logger    *zap.Logger
	metrics   *MetricsService
}

// NewSetupService constructs a SetupService. cache may be nil.
func NewSetupService(repo setupUserRepository, tokens *TokenService, hasher *PasswordHasher, cache setupCache, validate *validator.Validate, logger *zap.Logger, metrics *MetricsService) *SetupService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if hasher == nil {
		hasher = NewPasswordHasher(0)
	}
	return &SetupService{
		repo:      repo,
		tokens:    tokens,
		hasher:    hasher,
		cache:     cache,
		validator: validate,
		logger:    logger,
		metrics:   metrics,
	}
}

// RequiresSetup reports whether no active administrator exists yet.
func (s *SetupService) RequiresSetup(ctx context.Context) (bool, error) {
	if s.cachedConfigured(ctx) {
		return false, nil
	}

	count, err := s.repo.CountActiveAdministrators(ctx)
	if err != nil {
		return false, storageError(err, "failed to read setup state")
	}
	if count == 0 {
		return true, nil
	}

	s.rememberConfigured(ctx)
	return false, nil
}

// CreateInitialUser creates the first administrator and its session token in one transaction.
// Once any active administrator exists it fails with ALREADY_CONFIGURED.
func (s *SetupService) CreateInitialUser(ctx context.Context, req models.CreateUserRequest) (*models.LoginResult, error) {
	// a configured system rejects every request before the payload is looked at; the
	// transaction below still settles concurrent bootstraps
	required, err := s.RequiresSetup(ctx)
	if err != nil {
		return nil, err
	}
	if !required {
		return nil, alreadyConfigured()
	}

	template, err := buildUser(s.validator, s.hasher, req)
	if err != nil {
		return nil, err
	}

	var user *models.User
	token, err := s.tokens.IssueUsing(ctx, 0, func(ctx context.Context, token *models.Token) error {
		candidate := *template
		if err := s.repo.CreateInitialAdministrator(ctx, &candidate, token); err != nil {
			return err
		}
		user = &candidate
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrAdministratorExists):
			s.rememberConfigured(ctx)
			return nil, alreadyConfigured()
		case errors.Is(err, repository.ErrDuplicate):
			return nil, appErrors.Clone(appErrors.ErrConflict, "username already exists")
		case errors.Is(err, errTokenAttemptsExhausted):
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to issue token")
		default:
			return nil, storageError(err, "failed to create initial user")
		}
	}

	s.rememberConfigured(ctx)
	s.logger.Info("initial administrator created", zap.Uint64("user_id", user.ID), zap.String("username", user.Username))
	return &models.LoginResult{User: user, Token: token}, nil
}

func alreadyConfigured() error {
	return appErrors.Clone(appErrors.ErrAlreadyConfigured, "initial setup has already been completed")
}

func (s *SetupService) cachedConfigured(ctx context.Context) bool {
	if s.cache == nil {
		return false
	}
	var configured bool
	if err := s.cache.Get(ctx, setupStateKey, &configured); err != nil {
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("setup state cache read failed", zap.Error(err))
		}
		s.metrics.RecordCacheOperation(false)
		return false
	}
	s.metrics.RecordCacheOperation(configured)
	return configured
}

func (s *SetupService) rememberConfigured(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, setupStateKey, true, 0); err != nil {
		s.logger.Warn("setup state cache write failed", zap.Error(err))
	}
}
