package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/annotatron-api/internal/models"
	"github.com/noah-isme/annotatron-api/internal/repository"
	appErrors "github.com/noah-isme/annotatron-api/pkg/errors"
)

const tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// bytes at or above this bound are discarded so every alphabet symbol is equally likely
const tokenByteBound = 256 - 256%len(tokenAlphabet)

var errTokenAttemptsExhausted = errors.New("token issuance attempts exhausted")

type tokenRepository interface {
	Create(ctx context.Context, token *models.Token) error
	FindLatestByUser(ctx context.Context, userID uint64) (*models.Token, error)
	ResolveUser(ctx context.Context, token string) (*models.User, error)
	DeleteByUser(ctx context.Context, userID uint64) error
	DeleteByValue(ctx context.Context, token string) error
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// TokenConfig tunes token issuance.
type TokenConfig struct {
	TTL         time.Duration
	Length      int
	MaxAttempts int
}

// TokenService issues and resolves opaque bearer tokens.
type TokenService struct {
	repo    tokenRepository
	logger  *zap.Logger
	metrics *MetricsService
	cfg     TokenConfig
	now     func() time.Time
	random  func(n int) (string, error)
}

// NewTokenService constructs a token service, filling zero config values with defaults.
func NewTokenService(repo tokenRepository, logger *zap.Logger, metrics *MetricsService, cfg TokenConfig) *TokenService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 7 * 24 * time.Hour
	}
	if cfg.Length <= 0 {
		cfg.Length = 32
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 10
	}
	return &TokenService{
		repo:    repo,
		logger:  logger,
		metrics: metrics,
		cfg:     cfg,
		now:     time.Now,
		random:  randomToken,
	}
}

// Issue creates a fresh token for userID.
func (s *TokenService) Issue(ctx context.Context, userID uint64) (*models.Token, error) {
	token, err := s.IssueUsing(ctx, userID, s.repo.Create)
	if err != nil {
		if errors.Is(err, errTokenAttemptsExhausted) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to issue token")
		}
		return nil, storageError(err, "failed to issue token")
	}
	return token, nil
}

// IssueUsing runs the candidate loop with a caller supplied persistence step, which must
// return repository.ErrTokenCollision when the value is taken. Errors are returned unmapped.
func (s *TokenService) IssueUsing(ctx context.Context, userID uint64, persist func(ctx context.Context, token *models.Token) error) (*models.Token, error) {
	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		value, err := s.random(s.cfg.Length)
		if err != nil {
			return nil, fmt.Errorf("generate token: %w", err)
		}

		token := &models.Token{
			UserID:    userID,
			Token:     value,
			ExpiresAt: s.now().UTC().Add(s.cfg.TTL),
		}
		err = persist(ctx, token)
		if err == nil {
			s.metrics.TokenIssued()
			return token, nil
		}
		if !errors.Is(err, repository.ErrTokenCollision) {
			return nil, err
		}

		s.metrics.TokenCollision()
		s.logger.Warn("token collision, regenerating", zap.Uint64("user_id", userID), zap.Int("attempt", attempt))
	}
	return nil, errTokenAttemptsExhausted
}

// GetOrCreate returns the user's newest live token, issuing one when none exists.
func (s *TokenService) GetOrCreate(ctx context.Context, userID uint64) (*models.Token, error) {
	token, err := s.repo.FindLatestByUser(ctx, userID)
	if err == nil {
		return token, nil
	}
	if !isNotFound(err) {
		return nil, storageError(err, "failed to load token")
	}
	return s.Issue(ctx, userID)
}

// Resolve maps a token value to its active user. Unknown, expired or orphaned tokens yield
// nil without an error.
func (s *TokenService) Resolve(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, nil
	}
	user, err := s.repo.ResolveUser(ctx, token)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, storageError(err, "failed to resolve token")
	}
	return user, nil
}

// RevokeAll deletes every token owned by userID.
func (s *TokenService) RevokeAll(ctx context.Context, userID uint64) error {
	if err := s.repo.DeleteByUser(ctx, userID); err != nil {
		return storageError(err, "failed to revoke tokens")
	}
	return nil
}

// Revoke deletes a single token.
func (s *TokenService) Revoke(ctx context.Context, token string) error {
	if err := s.repo.DeleteByValue(ctx, token); err != nil {
		return storageError(err, "failed to revoke token")
	}
	return nil
}

// PurgeExpired removes expired tokens and returns how many were removed.
func (s *TokenService) PurgeExpired(ctx context.Context) (int64, error) {
	purged, err := s.repo.PurgeExpired(ctx, s.now().UTC())
	if err != nil {
		return 0, storageError(err, "failed to purge tokens")
	}
	s.metrics.TokensPurged(purged)
	return purged, nil
}

func randomToken(n int) (string, error) {
	out := make([]byte, 0, n)
	buf := make([]byte, n+n/4)
	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if int(b) >= tokenByteBound {
				continue
			}
			out = append(out, tokenAlphabet[int(b)%len(tokenAlphabet)])
			if len(out) == n {
				break
			}
		}
	}
	return string(out), nil
}
