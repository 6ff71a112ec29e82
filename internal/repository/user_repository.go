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

const userColumns = `id, username, email, password_hash, role, password_reset_needed, password_last_changed, created_at, deactivated_at`

// UserRepository provides database access for user management. Deactivated users are
// invisible to every lookup.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByUsername returns an active user by username.
func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1 AND deactivated_at IS NULL LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, username); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find user by username: %w", err)
	}
	return &user, nil
}

// FindByID returns an active user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id uint64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 AND deactivated_at IS NULL LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return &user, nil
}

// List returns active users ordered by username with the total count.
func (r *UserRepository) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	baseQuery := `FROM users WHERE deactivated_at IS NULL`
	var args []interface{}
	if filter.Role != nil {
		baseQuery += " AND role = $1"
		args = append(args, *filter.Role)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY username ASC LIMIT %d OFFSET %d", userColumns, baseQuery, pageSize, offset)
	var users []models.User
	if err := r.db.SelectContext(ctx, &users, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+baseQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	return users, total, nil
}

// CountActiveAdministrators returns the number of administrators that have not been deactivated.
func (r *UserRepository) CountActiveAdministrators(ctx context.Context) (int, error) {
	return countActiveAdministrators(ctx, r.db)
}

// Create inserts a new user, filling in the generated id and creation time.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	return insertUser(ctx, r.db, user)
}

// CreateInitialAdministrator inserts the first administrator together with its session token.
// The administrator set is locked for the duration so concurrent setups cannot both succeed.
func (r *UserRepository) CreateInitialAdministrator(ctx context.Context, user *models.User, token *models.Token) error {
	return withTx(ctx, r.db, "initial administrator", func(tx *sqlx.Tx) error {
		if err := lockAdministrators(ctx, tx); err != nil {
			return err
		}
		count, err := countActiveAdministrators(ctx, tx)
		if err != nil {
			return err
		}
		if count > 0 {
			return ErrAdministratorExists
		}

		user.Role = models.RoleAdministrator
		if err := insertUser(ctx, tx, user); err != nil {
			return err
		}

		token.UserID = user.ID
		return insertToken(ctx, tx, token, time.Now().UTC())
	})
}

// UpdatePasswordAndRevokeTokens stores a new hash and drops every session of the user atomically.
func (r *UserRepository) UpdatePasswordAndRevokeTokens(ctx context.Context, id uint64, passwordHash string, resetNeeded bool, changedAt time.Time) error {
	return withTx(ctx, r.db, "password change", func(tx *sqlx.Tx) error {
		const update = `UPDATE users SET password_hash = $2, password_reset_needed = $3, password_last_changed = $4 WHERE id = $1 AND deactivated_at IS NULL`
		res, err := tx.ExecContext(ctx, update, id, passwordHash, resetNeeded, changedAt)
		if err != nil {
			return fmt.Errorf("update password: %w", err)
		}
		if err := requireAffected(res); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM user_tokens WHERE user_id = $1`, id); err != nil {
			return fmt.Errorf("revoke user tokens: %w", err)
		}
		return nil
	})
}

// Deactivate soft deletes a user and revokes their sessions. The last active administrator
// cannot be deactivated.
func (r *UserRepository) Deactivate(ctx context.Context, id uint64, at time.Time) error {
	return withTx(ctx, r.db, "deactivate user", func(tx *sqlx.Tx) error {
		if err := lockAdministrators(ctx, tx); err != nil {
			return err
		}
		role, err := lockUserRole(ctx, tx, id)
		if err != nil {
			return err
		}
		if role == models.RoleAdministrator {
			if err := ensureOtherAdministrator(ctx, tx); err != nil {
				return err
			}
		}

		if _, err := tx.ExecContext(ctx, `UPDATE users SET deactivated_at = $2 WHERE id = $1`, id, at); err != nil {
			return fmt.Errorf("deactivate user: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM user_tokens WHERE user_id = $1`, id); err != nil {
			return fmt.Errorf("revoke user tokens: %w", err)
		}
		return nil
	})
}

// SetRole changes a user's role, refusing to demote the last active administrator.
func (r *UserRepository) SetRole(ctx context.Context, id uint64, role models.UserRole) error {
	return withTx(ctx, r.db, "set role", func(tx *sqlx.Tx) error {
		if err := lockAdministrators(ctx, tx); err != nil {
			return err
		}
		current, err := lockUserRole(ctx, tx, id)
		if err != nil {
			return err
		}
		if current == role {
			return nil
		}
		if current == models.RoleAdministrator {
			if err := ensureOtherAdministrator(ctx, tx); err != nil {
				return err
			}
		}

		if _, err := tx.ExecContext(ctx, `UPDATE users SET role = $2 WHERE id = $1`, id, role); err != nil {
			return fmt.Errorf("set user role: %w", err)
		}
		return nil
	})
}

func insertUser(ctx context.Context, q sqlx.QueryerContext, user *models.User) error {
	const query = `INSERT INTO users (username, email, password_hash, role, password_reset_needed, password_last_changed)
VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, created_at`
	row := q.QueryRowxContext(ctx, query, user.Username, user.Email, user.PasswordHash, user.Role, user.PasswordResetNeeded, user.PasswordLastChanged)
	if err := row.Scan(&user.ID, &user.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func lockUserRole(ctx context.Context, tx *sqlx.Tx, id uint64) (models.UserRole, error) {
	var role models.UserRole
	err := tx.GetContext(ctx, &role, `SELECT role FROM users WHERE id = $1 AND deactivated_at IS NULL FOR UPDATE`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", err
		}
		return "", fmt.Errorf("lock user: %w", err)
	}
	return role, nil
}

func ensureOtherAdministrator(ctx context.Context, tx *sqlx.Tx) error {
	count, err := countActiveAdministrators(ctx, tx)
	if err != nil {
		return err
	}
	if count <= 1 {
		return ErrLastAdministrator
	}
	return nil
}

func requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
