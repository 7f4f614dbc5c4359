package postgres

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"remindo/backend"
	"remindo/internal/testutil/storetest"
)

// testDSNEnv names the environment variable that enables integration tests.
const testDSNEnv = "REMINDO_TEST_POSTGRES_URL"

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"nil", nil, nil},
		{"check violation", &pgconn.PgError{Code: checkViolationCode, ConstraintName: "tasks_priority_check"}, backend.ErrConstraint},
		{"not null", &pgconn.PgError{Code: notNullViolationCode, ColumnName: "title"}, backend.ErrConstraint},
		{"too long", &pgconn.PgError{Code: stringTooLongCode}, backend.ErrConstraint},
		{"other pg error", &pgconn.PgError{Code: "42P01"}, nil},
		{"plain error", errors.New("boom"), nil},
		{"no rows", sql.ErrNoRows, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if tt.err == nil {
				if got != nil {
					t.Fatalf("MapError(nil) = %v", got)
				}
				return
			}
			if tt.want != nil && !errors.Is(got, tt.want) {
				t.Errorf("MapError() = %v, want wrapping %v", got, tt.want)
			}
			if tt.want == nil && (errors.Is(got, backend.ErrConstraint) || errors.Is(got, backend.ErrUnreachable)) {
				t.Errorf("MapError() categorized an uncategorized error: %v", got)
			}
		})
	}
}

func TestBuildDSN(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		user     string
		password string
		want     string
		wantErr  bool
	}{
		{"adds credentials", "postgres://db:5432/todo", "app", "s3cret", "postgres://app:s3cret@db:5432/todo", false},
		{"user only", "postgresql://db/todo", "app", "", "postgresql://app@db/todo", false},
		{"url credentials win", "postgres://owner:pw@db/todo", "app", "x", "postgres://owner:pw@db/todo", false},
		{"escapes password", "postgres://db/todo", "app", "p@ss", "postgres://app:p%40ss@db/todo", false},
		{"wrong scheme", "mysql://db/todo", "", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BuildDSN(tt.url, tt.user, tt.password)
			if (err != nil) != tt.wantErr {
				t.Fatalf("BuildDSN() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("BuildDSN() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewUnreachable(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New(ctx, "postgres://nobody@127.0.0.1:1/none?connect_timeout=1"); err == nil {
		t.Fatal("expected error connecting to a closed port")
	}
}

// TestStoreContract runs the shared suite against a live database.
func TestStoreContract(t *testing.T) {
	dsn := os.Getenv(testDSNEnv)
	if dsn == "" {
		t.Skipf("%s not set", testDSNEnv)
	}

	storetest.Run(t, func(t *testing.T) backend.Store {
		ctx := context.Background()
		b, err := New(ctx, dsn)
		if err != nil {
			t.Fatalf("New error: %v", err)
		}
		if _, err := b.DB().ExecContext(ctx, "TRUNCATE tasks RESTART IDENTITY"); err != nil {
			t.Fatalf("truncate: %v", err)
		}
		return b
	})
}
