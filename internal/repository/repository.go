package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Sentinel errors returned by repositories for constraint style failures.
var (
	ErrDuplicate           = errors.New("duplicate record")
	ErrAdministratorExists = errors.New("an active administrator already exists")
	ErrLastAdministrator   = errors.New("operation would remove the last active administrator")
	ErrTokenCollision      = errors.New("token value already in use")
)

// administratorLockKey serialises every change to the set of active administrators.
const administratorLockKey int64 = 0x616e6e6f

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func withTx(ctx context.Context, db *sqlx.DB, name string, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin %s tx: %w", name, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit %s tx: %w", name, err)
	}
	return nil
}

func lockAdministrators(ctx context.Context, tx *sqlx.Tx) error {
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, administratorLockKey); err != nil {
		return fmt.Errorf("lock administrators: %w", err)
	}
	return nil
}

func countActiveAdministrators(ctx context.Context, q sqlx.QueryerContext) (int, error) {
	const query = `SELECT COUNT(*) FROM users WHERE role = 'Administrator' AND deactivated_at IS NULL`
	var count int
	if err := sqlx.GetContext(ctx, q, &count, query); err != nil {
		return 0, fmt.Errorf("count active administrators: %w", err)
	}
	return count, nil
}
