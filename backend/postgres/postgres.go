// Package postgres implements backend.Store on PostgreSQL through the pgx
// database/sql driver.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"remindo/backend"
	"remindo/backend/sqlstore"
)

//go:embed migrations/*.sql
var migrations embed.FS

// PostgreSQL error codes
const (
	checkViolationCode   = "23514"
	notNullViolationCode = "23502"
	stringTooLongCode    = "22001"
)

// Backend implements backend.Store using PostgreSQL
type Backend struct {
	*sqlstore.Store
}

// Dialect returns the PostgreSQL flavour of the shared SQL store.
func Dialect() sqlstore.Dialect {
	sub, err := fs.Sub(migrations, "migrations")
	if err != nil {
		panic(err)
	}
	return sqlstore.Dialect{
		Name:       "postgres",
		Goose:      goose.DialectPostgres,
		Migrations: sub,
		Numbered:   true,
		EncodeTime: func(t time.Time) any { return t.UTC() },
		MapError:   MapError,
	}
}

// New connects to dsn, verifies the connection and migrates the schema.
func New(ctx context.Context, dsn string) (*Backend, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: %w", MapError(err))
	}

	store, err := sqlstore.Open(ctx, db, Dialect())
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Backend{Store: store}, nil
}

// BuildDSN merges separately configured credentials into a connection URL.
// Credentials already present in rawURL win over username and password.
func BuildDSN(rawURL, username, password string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid database url: %w", err)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return "", fmt.Errorf("invalid database url: unsupported scheme %q", u.Scheme)
	}
	if u.User != nil && u.User.Username() != "" {
		return u.String(), nil
	}
	switch {
	case username != "" && password != "":
		u.User = url.UserPassword(username, password)
	case username != "":
		u.User = url.User(username)
	}
	return u.String(), nil
}

// MapError maps a driver error onto the backend error categories while
// preserving the original for logging.
func MapError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case checkViolationCode, stringTooLongCode:
			return fmt.Errorf("%w (%s): %v", backend.ErrConstraint, pgErr.ConstraintName, err)
		case notNullViolationCode:
			return fmt.Errorf("%w (%s): %v", backend.ErrConstraint, pgErr.ColumnName, err)
		}
		return err
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) || pgconn.Timeout(err) {
		return fmt.Errorf("%w: %v", backend.ErrUnreachable, err)
	}
	return err
}

// Verify interface compliance at compile time
var _ backend.Store = (*Backend)(nil)
