package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/annotatron-api/internal/models"
)

// TokenRepository persists bearer session tokens. Expired rows are purged lazily by the
// write and resolve paths.
type TokenRepository struct {
	db *sqlx.DB
}

// NewTokenRepository constructs a token repository.
func NewTokenRepository(db *sqlx.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// Create persists token if its value is not held by any live token. It returns
// ErrTokenCollision otherwise so the caller can retry with a fresh value.
func (r *TokenRepository) Create(ctx context.Context, token *models.Token) error {
	return withTx(ctx, r.db, "issue token", func(tx *sqlx.Tx) error {
		return insertToken(ctx, tx, token, time.Now().UTC())
	})
}

// FindLatestByUser returns the newest live token of a user.
func (r *TokenRepository) FindLatestByUser(ctx context.Context, userID uint64) (*models.Token, error) {
	const query = `SELECT id, user_id, token, expires_at, created_at FROM user_tokens
WHERE user_id = $1 AND expires_at > $2 ORDER BY created_at DESC LIMIT 1`
	var token models.Token
	if err := r.db.GetContext(ctx, &token, query, userID, time.Now().UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find latest token: %w", err)
	}
	return &token, nil
}

// ResolveUser returns the active user owning a live token.
func (r *TokenRepository) ResolveUser(ctx context.Context, token string) (*models.User, error) {
	now := time.Now().UTC()
	if _, err := r.PurgeExpired(ctx, now); err != nil {
		return nil, err
	}

	const query = `SELECT u.id, u.username, u.email, u.password_hash, u.role, u.password_reset_needed,
u.password_last_changed, u.created_at, u.deactivated_at
FROM user_tokens t JOIN users u ON u.id = t.user_id
WHERE t.token = $1 AND t.expires_at > $2 AND u.deactivated_at IS NULL LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, token, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("resolve token: %w", err)
	}
	return &user, nil
}

// DeleteByUser drops every token owned by userID.
func (r *TokenRepository) DeleteByUser(ctx context.Context, userID uint64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM user_tokens WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("delete user tokens: %w", err)
	}
	return nil
}

// DeleteByValue drops a single token.
func (r *TokenRepository) DeleteByValue(ctx context.Context, token string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM user_tokens WHERE token = $1`, token); err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	return nil
}

// PurgeExpired removes tokens that expired at or before now and reports how many were removed.
func (r *TokenRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM user_tokens WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("purge expired tokens: %w", err)
	}
	purged, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge expired tokens: %w", err)
	}
	return purged, nil
}

func insertToken(ctx context.Context, tx *sqlx.Tx, token *models.Token, now time.Time) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM user_tokens WHERE expires_at <= $1`, now); err != nil {
		return fmt.Errorf("purge expired tokens: %w", err)
	}

	var taken bool
	const exists = `SELECT EXISTS (SELECT 1 FROM user_tokens WHERE token = $1 AND expires_at > $2)`
	if err := tx.GetContext(ctx, &taken, exists, token.Token, now); err != nil {
		return fmt.Errorf("check token uniqueness: %w", err)
	}
	if taken {
		return ErrTokenCollision
	}

	const insert = `INSERT INTO user_tokens (user_id, token, expires_at) VALUES ($1, $2, $3)
ON CONFLICT (token) DO NOTHING RETURNING id, created_at`
	err := tx.QueryRowxContext(ctx, insert, token.UserID, token.Token, token.ExpiresAt).Scan(&token.ID, &token.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrTokenCollision
		}
		return fmt.Errorf("insert token: %w", err)
	}
	return nil
}
