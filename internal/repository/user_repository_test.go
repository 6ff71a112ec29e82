package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/annotatron-api/internal/models"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

var userRowColumns = []string{"id", "username", "email", "password_hash", "role", "password_reset_needed", "password_last_changed", "created_at", "deactivated_at"}

func expectAdministratorLock(mock sqlmock.Sqlmock) {
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock($1)")).
		WithArgs(administratorLockKey).
		WillReturnResult(sqlmock.NewResult(0, 0))
}

func expectAdministratorCount(mock sqlmock.Sqlmock, count int) {
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM users WHERE role = 'Administrator'").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(count))
}

func TestUserRepositoryFindByUsername(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(userRowColumns).
		AddRow(1, "admin", "admin@example.org", "hash", "Administrator", false, nil, now, nil)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + userColumns + " FROM users WHERE username = $1 AND deactivated_at IS NULL LIMIT 1")).
		WithArgs("admin").
		WillReturnRows(rows)

	user, err := repo.FindByUsername(context.Background(), "admin")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), user.ID)
	assert.Equal(t, models.RoleAdministrator, user.Role)
	assert.Nil(t, user.DeactivatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery("FROM users WHERE id = \\$1 AND deactivated_at IS NULL").
		WithArgs(uint64(9)).
		WillReturnRows(sqlmock.NewRows(userRowColumns))

	_, err := repo.FindByID(context.Background(), 9)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryListActive(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	mock.ExpectQuery("SELECT .* FROM users WHERE deactivated_at IS NULL ORDER BY username ASC LIMIT 20 OFFSET 0").
		WillReturnRows(sqlmock.NewRows(userRowColumns).
			AddRow(1, "admin", "", "hash", "Administrator", false, nil, now, nil).
			AddRow(2, "ann", "", "hash", "Annotator", true, nil, now, nil))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM users WHERE deactivated_at IS NULL").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	users, total, err := repo.List(context.Background(), models.UserFilter{})
	require.NoError(t, err)
	assert.Len(t, users, 2)
	assert.Equal(t, 2, total)
	assert.True(t, users[1].PasswordResetNeeded)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryCreateDuplicate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery("INSERT INTO users").
		WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Create(context.Background(), &models.User{Username: "ann", PasswordHash: "hash", Role: models.RoleAnnotator})
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryCreateInitialAdministrator(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	mock.ExpectBegin()
	expectAdministratorLock(mock)
	expectAdministratorCount(mock, 0)
	mock.ExpectQuery("INSERT INTO users").
		WithArgs("admin", "", "hash", "Administrator", false, nil).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(1, now))
	mock.ExpectExec("DELETE FROM user_tokens WHERE expires_at <= \\$1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("tok", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery("INSERT INTO user_tokens").
		WithArgs(uint64(1), "tok", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(10, now))
	mock.ExpectCommit()

	user := &models.User{Username: "admin", PasswordHash: "hash", Role: models.RoleAnnotator}
	token := &models.Token{Token: "tok", ExpiresAt: now.Add(time.Hour)}
	require.NoError(t, repo.CreateInitialAdministrator(context.Background(), user, token))

	assert.Equal(t, models.RoleAdministrator, user.Role)
	assert.Equal(t, uint64(1), user.ID)
	assert.Equal(t, uint64(1), token.UserID)
	assert.Equal(t, uint64(10), token.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryCreateInitialAdministratorAlreadyConfigured(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectBegin()
	expectAdministratorLock(mock)
	expectAdministratorCount(mock, 1)
	mock.ExpectRollback()

	err := repo.CreateInitialAdministrator(context.Background(), &models.User{Username: "second"}, &models.Token{Token: "tok"})
	assert.ErrorIs(t, err, ErrAdministratorExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryUpdatePasswordAndRevokeTokens(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE users SET password_hash").
		WithArgs(uint64(7), "newhash", true, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM user_tokens WHERE user_id = \\$1").
		WithArgs(uint64(7)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	require.NoError(t, repo.UpdatePasswordAndRevokeTokens(context.Background(), 7, "newhash", true, time.Now()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryUpdatePasswordUnknownUser(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE users SET password_hash").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.UpdatePasswordAndRevokeTokens(context.Background(), 7, "newhash", false, time.Now())
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryDeactivateLastAdministrator(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectBegin()
	expectAdministratorLock(mock)
	mock.ExpectQuery("SELECT role FROM users WHERE id = \\$1 AND deactivated_at IS NULL FOR UPDATE").
		WithArgs(uint64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"role"}).AddRow("Administrator"))
	expectAdministratorCount(mock, 1)
	mock.ExpectRollback()

	err := repo.Deactivate(context.Background(), 1, time.Now())
	assert.ErrorIs(t, err, ErrLastAdministrator)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryDeactivateRevokesTokens(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectBegin()
	expectAdministratorLock(mock)
	mock.ExpectQuery("SELECT role FROM users").
		WithArgs(uint64(4)).
		WillReturnRows(sqlmock.NewRows([]string{"role"}).AddRow("Annotator"))
	mock.ExpectExec("UPDATE users SET deactivated_at").
		WithArgs(uint64(4), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM user_tokens WHERE user_id").
		WithArgs(uint64(4)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Deactivate(context.Background(), 4, time.Now()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositorySetRole(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectBegin()
	expectAdministratorLock(mock)
	mock.ExpectQuery("SELECT role FROM users").
		WithArgs(uint64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"role"}).AddRow("Staff"))
	mock.ExpectExec("UPDATE users SET role").
		WithArgs(uint64(3), "Annotator").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.SetRole(context.Background(), 3, models.RoleAnnotator))
	assert.NoError(t, mock.ExpectationsWereMet())
}
