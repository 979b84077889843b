// Package repository holds the user store: single-record operations keyed by
// id or email against the relational database.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/isdelr/user-api/internal/database"
	"github.com/isdelr/user-api/internal/models"
	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	// ErrNotFound is returned when no row matches the lookup.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a write violates a unique constraint.
	ErrConflict = errors.New("unique constraint violation")
)

const pgUniqueViolation = "23505"

// UserRepository is the persistence collaborator of the user service.
type UserRepository interface {
	List(ctx context.Context) ([]models.User, error)
	GetByID(ctx context.Context, id string) (models.User, error)
	GetByEmail(ctx context.Context, email string) (models.User, error)
	Create(ctx context.Context, email, passwordHash string) (models.User, error)
	Update(ctx context.Context, id string, upd models.UserUpdate) (models.User, error)
	Delete(ctx context.Context, id string) (models.User, error)
}

// SQLUserRepository implements UserRepository on database/sql.
type SQLUserRepository struct {
	db      *sql.DB
	dialect database.Dialect
}

// NewUserRepository creates a repository speaking the given dialect.
func NewUserRepository(db *sql.DB, dialect database.Dialect) *SQLUserRepository {
	return &SQLUserRepository{db: db, dialect: dialect}
}

const userColumns = "id, email, password_hash, created_at, updated_at"

func scanUser(row interface{ Scan(...any) error }) (models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// List returns every user ordered by creation time.
func (r *SQLUserRepository) List(ctx context.Context) ([]models.User, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+userColumns+" FROM users ORDER BY created_at, id")
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return users, nil
}

// GetByID retrieves a single user by id, including the password hash.
func (r *SQLUserRepository) GetByID(ctx context.Context, id string) (models.User, error) {
	return r.getBy(ctx, r.db, "id", id)
}

// GetByEmail retrieves a single user by email, including the password hash.
func (r *SQLUserRepository) GetByEmail(ctx context.Context, email string) (models.User, error) {
	return r.getBy(ctx, r.db, "email", email)
}

func (r *SQLUserRepository) getBy(ctx context.Context, q database.DBTX, column, value string) (models.User, error) {
	query := r.dialect.Rebind("SELECT " + userColumns + " FROM users WHERE " + column + " = ?")
	u, err := scanUser(q.QueryRowContext(ctx, query, value))
	if err != nil {
		return models.User{}, classify(err)
	}
	return u, nil
}

// Create inserts a new user with a freshly generated id. A duplicate email
// is reported as ErrConflict by the unique constraint.
func (r *SQLUserRepository) Create(ctx context.Context, email, passwordHash string) (models.User, error) {
	now := timestamp()
	user := models.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	query := r.dialect.Rebind("INSERT INTO users (" + userColumns + ") VALUES (?, ?, ?, ?, ?)")
	_, err := r.db.ExecContext(ctx, query, user.ID, user.Email, user.PasswordHash, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		return models.User{}, classify(err)
	}
	return user, nil
}

// Update applies the non-nil fields of upd and returns the stored record.
func (r *SQLUserRepository) Update(ctx context.Context, id string, upd models.UserUpdate) (models.User, error) {
	var (
		sets []string
		args []any
	)
	if upd.Email != nil {
		sets = append(sets, "email = ?")
		args = append(args, *upd.Email)
	}
	if upd.PasswordHash != nil {
		sets = append(sets, "password_hash = ?")
		args = append(args, *upd.PasswordHash)
	}
	if len(sets) == 0 {
		return models.User{}, errors.New("no fields to update")
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, timestamp(), id)

	query := r.dialect.Rebind("UPDATE users SET " + strings.Join(sets, ", ") + " WHERE id = ?")

	var user models.User
	err := database.WithTx(ctx, r.db, func(ctx context.Context, tx database.DBTX) error {
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return classify(err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("db error: %w", err)
		} else if n == 0 {
			return ErrNotFound
		}

		user, err = r.getBy(ctx, tx, "id", id)
		return err
	})
	if err != nil {
		return models.User{}, err
	}
	return user, nil
}

// Delete removes the user and returns the row as it was before deletion.
// Zero affected rows is reported as ErrNotFound.
func (r *SQLUserRepository) Delete(ctx context.Context, id string) (models.User, error) {
	var snapshot models.User
	err := database.WithTx(ctx, r.db, func(ctx context.Context, tx database.DBTX) error {
		var err error
		snapshot, err = r.getBy(ctx, tx, "id", id)
		if err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, r.dialect.Rebind("DELETE FROM users WHERE id = ?"), id)
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("db error: %w", err)
		} else if n == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return models.User{}, err
	}
	return snapshot, nil
}

// classify maps driver errors onto the repository sentinels.
func classify(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return fmt.Errorf("%w: %s", ErrConflict, pgErr.ConstraintName)
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return fmt.Errorf("%w: %v", ErrConflict, liteErr)
		case sqlite3.SQLITE_CONSTRAINT:
			if strings.Contains(liteErr.Error(), "UNIQUE constraint failed") {
				return fmt.Errorf("%w: %v", ErrConflict, liteErr)
			}
		}
	}

	return fmt.Errorf("db error: %w", err)
}

// Postgres keeps microseconds; truncating up front keeps returned structs
// equal to what a later read produces.
func timestamp() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
