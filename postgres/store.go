// Package postgres implements the identity.CredentialStore contract on
// PostgreSQL via database/sql with the pgx stdlib driver.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/cartstack/identity"
	"github.com/cartstack/identity/postgres/migrations"
)

const uniqueViolation = "23505"

// DBTX is the subset of *sql.DB the store uses. Tests substitute a mock.
type DBTX interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Store persists credentials in the user_credentials table.
type Store struct {
	db DBTX
}

// NewStore binds a Store to an open connection pool.
func NewStore(db DBTX) *Store {
	return &Store{db: db}
}

// gooseUpContext is a seam for testing RunMigrations.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations applies the embedded schema migrations.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	if err := gooseUpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

func (s *Store) Create(ctx context.Context, email, passwordHash string, role identity.Role) (*identity.Credential, error) {
	query :=
		`INSERT INTO user_credentials (email, password_hash, role)
		 VALUES ($1, $2, $3)
		 RETURNING id, email, password_hash, role, created_at, updated_at
		 `

	cred := &identity.Credential{}
	err := s.db.QueryRowContext(ctx, query, email, passwordHash, string(role)).
		Scan(&cred.ID, &cred.Email, &cred.PasswordHash, &cred.Role, &cred.CreatedAt, &cred.UpdatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, identity.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return cred, nil
}

func (s *Store) GetByEmail(ctx context.Context, email string) (*identity.Credential, error) {
	query :=
		`SELECT id, email, password_hash, role, created_at, updated_at
		 FROM user_credentials
		 WHERE email = $1
		 `

	return s.getOne(ctx, query, email)
}

func (s *Store) GetByID(ctx context.Context, id int64) (*identity.Credential, error) {
	query :=
		`SELECT id, email, password_hash, role, created_at, updated_at
		 FROM user_credentials
		 WHERE id = $1
		 `

	return s.getOne(ctx, query, id)
}

func (s *Store) getOne(ctx context.Context, query string, arg any) (*identity.Credential, error) {
	cred := &identity.Credential{}
	err := s.db.QueryRowContext(ctx, query, arg).
		Scan(&cred.ID, &cred.Email, &cred.PasswordHash, &cred.Role, &cred.CreatedAt, &cred.UpdatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, identity.ErrUserNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return cred, nil
}

func (s *Store) UpdatePasswordHash(ctx context.Context, id int64, newHash string) error {
	query :=
		`UPDATE user_credentials
		 SET password_hash = $2, updated_at = now()
		 WHERE id = $1
		 `

	res, err := s.db.ExecContext(ctx, query, id, newHash)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if affected == 0 {
		return identity.ErrUserNotFound
	}

	return nil
}

var _ identity.CredentialStore = (*Store)(nil)
