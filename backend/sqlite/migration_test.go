package sqlite

import (
	"testing"
)

// TestMigrationVersionTracking verifies goose records every applied migration
func TestMigrationVersionTracking(t *testing.T) {
	b, ctx := mustNewBackend(t)

	var version int64
	err := b.DB().QueryRowContext(ctx,
		"SELECT MAX(version_id) FROM goose_db_version WHERE is_applied = 1",
	).Scan(&version)
	if err != nil {
		t.Fatalf("query error: %v", err)
	}
	if version != 2 {
		t.Errorf("schema version = %d, want 2", version)
	}
}

// TestMigrationAddsUpdatedAt verifies the second migration ran
func TestMigrationAddsUpdatedAt(t *testing.T) {
	b, ctx := mustNewBackend(t)

	var count int
	err := b.DB().QueryRowContext(ctx,
		"SELECT COUNT(*) FROM pragma_table_info('tasks') WHERE name = 'updated_at'",
	).Scan(&count)
	if err != nil {
		t.Fatalf("query error: %v", err)
	}
	if count != 1 {
		t.Error("tasks.updated_at column missing")
	}
}

// TestMigrationIdempotent verifies reopening an up-to-date database is a no-op
func TestMigrationIdempotent(t *testing.T) {
	b, ctx := mustNewBackend(t)
	path := b.Path()
	_ = b.Close()

	for i := 0; i < 2; i++ {
		again, err := New(ctx, path)
		if err != nil {
			t.Fatalf("reopen %d error: %v", i, err)
		}
		_ = again.Close()
	}
}

// TestPriorityConstraint verifies the schema rejects unknown priorities
func TestPriorityConstraint(t *testing.T) {
	b, ctx := mustNewBackend(t)

	_, err := b.DB().ExecContext(ctx,
		"INSERT INTO tasks (title, priority, created_at) VALUES ('x', 'URGENT', '2026-01-01T00:00:00.000000000Z')")
	if err == nil {
		t.Error("expected CHECK constraint failure for unknown priority")
	}
}
