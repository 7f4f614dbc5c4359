package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"remindo/backend"
	"remindo/backend/sqlstore"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Backend implements backend.Store using SQLite
type Backend struct {
	*sqlstore.Store
	path string
}

// Dialect returns the SQLite flavour of the shared SQL store.
func Dialect() sqlstore.Dialect {
	sub, err := fs.Sub(migrations, "migrations")
	if err != nil {
		panic(err)
	}
	return sqlstore.Dialect{
		Name:       "sqlite",
		Goose:      goose.DialectSQLite3,
		Migrations: sub,
		EncodeTime: sqlstore.EncodeTextTime,
	}
}

// New opens (creating if needed) the database at path and migrates it.
// ":memory:" opens a private in-memory database.
func New(ctx context.Context, path string) (*Backend, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, err
	}
	// SQLite allows one writer; a single connection also keeps :memory: stable.
	db.SetMaxOpenConns(1)

	store, err := sqlstore.Open(ctx, db, Dialect())
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Backend{Store: store, path: path}, nil
}

// Path returns the database file path.
func (b *Backend) Path() string {
	return b.path
}

func dsn(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
}

// Verify interface compliance at compile time
var _ backend.Store = (*Backend)(nil)
