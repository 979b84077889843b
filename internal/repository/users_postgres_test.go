package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/isdelr/user-api/internal/database"
	"github.com/isdelr/user-api/internal/models"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testID = "a61ea8ad-498e-4811-82af-55505f83489a"

func newPostgresRepoWithMock(t *testing.T) (*SQLUserRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return NewUserRepository(db, database.Postgres), mock
}

func userRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "email", "password_hash", "created_at", "updated_at"})
}

func TestPostgres_GetByID(t *testing.T) {
	repo, mock := newPostgresRepoWithMock(t)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, email, password_hash, created_at, updated_at FROM users WHERE id = $1")).
		WithArgs(testID).
		WillReturnRows(userRows().AddRow(testID, "a@b.com", "hash", now, now))

	u, err := repo.GetByID(context.Background(), testID)
	require.NoError(t, err)
	assert.Equal(t, testID, u.ID)
	assert.Equal(t, "hash", u.PasswordHash)
}

func TestPostgres_GetByEmail_NotFound(t *testing.T) {
	repo, mock := newPostgresRepoWithMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email = $1")).
		WithArgs("x@y.com").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByEmail(context.Background(), "x@y.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgres_List_DBError(t *testing.T) {
	repo, mock := newPostgresRepoWithMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users ORDER BY created_at, id")).
		WillReturnError(errors.New("db down"))

	_, err := repo.List(context.Background())
	require.Error(t, err)
	assert.Regexp(t, `db error: .*db down`, err.Error())
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestPostgres_Create_UniqueViolation(t *testing.T) {
	repo, mock := newPostgresRepoWithMock(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users (id, email, password_hash, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)")).
		WithArgs(sqlmock.AnyArg(), "a@b.com", "hash", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})

	_, err := repo.Create(context.Background(), "a@b.com", "hash")
	assert.ErrorIs(t, err, ErrConflict)
}

func TestPostgres_Update_OnlyEmail(t *testing.T) {
	repo, mock := newPostgresRepoWithMock(t)
	now := time.Now().UTC()
	email := "new@b.com"

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET email = $1, updated_at = $2 WHERE id = $3")).
		WithArgs(email, sqlmock.AnyArg(), testID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = $1")).
		WithArgs(testID).
		WillReturnRows(userRows().AddRow(testID, email, "unchanged-hash", now, now))
	mock.ExpectCommit()

	u, err := repo.Update(context.Background(), testID, models.UserUpdate{Email: &email})
	require.NoError(t, err)
	assert.Equal(t, email, u.Email)
	assert.Equal(t, "unchanged-hash", u.PasswordHash)
}

func TestPostgres_Update_NotFoundRollsBack(t *testing.T) {
	repo, mock := newPostgresRepoWithMock(t)
	hash := "h"

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET password_hash = $1, updated_at = $2 WHERE id = $3")).
		WithArgs(hash, sqlmock.AnyArg(), testID).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := repo.Update(context.Background(), testID, models.UserUpdate{PasswordHash: &hash})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgres_Delete(t *testing.T) {
	repo, mock := newPostgresRepoWithMock(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = $1")).
		WithArgs(testID).
		WillReturnRows(userRows().AddRow(testID, "a@b.com", "h", now, now))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM users WHERE id = $1")).
		WithArgs(testID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	u, err := repo.Delete(context.Background(), testID)
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", u.Email)
}

func TestPostgres_Delete_ZeroRows(t *testing.T) {
	repo, mock := newPostgresRepoWithMock(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = $1")).
		WithArgs(testID).
		WillReturnRows(userRows().AddRow(testID, "a@b.com", "h", now, now))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM users WHERE id = $1")).
		WithArgs(testID).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := repo.Delete(context.Background(), testID)
	assert.ErrorIs(t, err, ErrNotFound)
}
