// Package sqlstore implements backend.Store on database/sql. Dialect
// specifics (placeholders, timestamp encoding, migrations) are supplied by
// the sqlite and postgres packages.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/pressly/goose/v3"

	"remindo/backend"
)

// Dialect describes how a particular database speaks SQL.
type Dialect struct {
	// Name is used in log and error messages.
	Name string
	// Goose selects the migration dialect.
	Goose goose.Dialect
	// Migrations holds the goose .sql files at its root.
	Migrations fs.FS
	// Numbered placeholders ($1, $2...) instead of "?".
	Numbered bool
	// EncodeTime converts a timestamp into a driver argument.
	EncodeTime func(time.Time) any
	// MapError translates driver errors. Optional.
	MapError func(error) error
}

// Store implements backend.Store
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// Open migrates the schema and returns a ready store. The store takes
// ownership of db and closes it on Close.
func Open(ctx context.Context, db *sql.DB, d Dialect) (*Store, error) {
	if d.EncodeTime == nil {
		d.EncodeTime = func(t time.Time) any { return t.UTC() }
	}
	s := &Store{db: db, dialect: d}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// migrate applies every pending goose migration.
func (s *Store) migrate(ctx context.Context) error {
	provider, err := goose.NewProvider(s.dialect.Goose, s.db, s.dialect.Migrations)
	if err != nil {
		return fmt.Errorf("%s: failed to prepare migrations: %w", s.dialect.Name, err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("%s: failed to apply migrations: %w", s.dialect.Name, err)
	}
	return nil
}

// DB exposes the underlying handle for diagnostics and tests.
func (s *Store) DB() *sql.DB {
	return s.db
}

const taskColumns = "id, title, description, priority, completed, created_at, due_date, updated_at"

// rebind rewrites "?" placeholders for dialects that number them.
func (s *Store) rebind(query string) string {
	if !s.dialect.Numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if s.dialect.MapError != nil {
		err = s.dialect.MapError(err)
	}
	return fmt.Errorf("%s %s: %w", s.dialect.Name, op, err)
}

// timeToArg converts an optional timestamp into a nullable argument.
func (s *Store) timeToArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return s.dialect.EncodeTime(*t)
}

// Insert implements backend.Store.
func (s *Store) Insert(ctx context.Context, task *backend.Task) (int64, error) {
	now := time.Now()
	created := task.CreatedAt
	if created.IsZero() {
		created = now
	}

	var id int64
	err := s.db.QueryRowContext(ctx, s.rebind(
		`INSERT INTO tasks (title, description, priority, completed, created_at, due_date, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`),
		task.Title, task.Description, string(task.Priority), task.Completed,
		s.dialect.EncodeTime(created), s.timeToArg(task.DueDate), s.dialect.EncodeTime(now),
	).Scan(&id)
	if err != nil {
		return 0, s.wrap("insert", err)
	}
	return id, nil
}

// Update implements backend.Store. created_at is never written.
func (s *Store) Update(ctx context.Context, task *backend.Task) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE tasks SET title = ?, description = ?, priority = ?, completed = ?, due_date = ?, updated_at = ?
		 WHERE id = ?`),
		task.Title, task.Description, string(task.Priority), task.Completed,
		s.timeToArg(task.DueDate), s.dialect.EncodeTime(time.Now()), task.ID,
	)
	if err != nil {
		return false, s.wrap("update", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, s.wrap("update", err)
	}
	return n > 0, nil
}

// DeleteByID implements backend.Store.
func (s *Store) DeleteByID(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.rebind("DELETE FROM tasks WHERE id = ?"), id)
	if err != nil {
		return false, s.wrap("delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, s.wrap("delete", err)
	}
	return n > 0, nil
}

// FindByID implements backend.Store.
func (s *Store) FindByID(ctx context.Context, id int64) (*backend.Task, error) {
	row := s.db.QueryRowContext(ctx, s.rebind("SELECT "+taskColumns+" FROM tasks WHERE id = ?"), id)
	t, err := scanTaskFrom(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, s.wrap("find", err)
	}
	return t, nil
}

// FindAll implements backend.Store.
func (s *Store) FindAll(ctx context.Context) ([]backend.Task, error) {
	return s.queryTasks(ctx, "find all", "ORDER BY created_at DESC, id DESC")
}

// FindByCompleted implements backend.Store.
func (s *Store) FindByCompleted(ctx context.Context, completed bool) ([]backend.Task, error) {
	return s.queryTasks(ctx, "find by completed", "WHERE completed = ? ORDER BY created_at DESC, id DESC", completed)
}

// FindByPriority implements backend.Store.
func (s *Store) FindByPriority(ctx context.Context, priority backend.Priority) ([]backend.Task, error) {
	return s.queryTasks(ctx, "find by priority", "WHERE priority = ? ORDER BY created_at DESC, id DESC", string(priority))
}

// FindOverdue implements backend.Store.
func (s *Store) FindOverdue(ctx context.Context, now time.Time) ([]backend.Task, error) {
	return s.queryTasks(ctx, "find overdue",
		"WHERE due_date IS NOT NULL AND due_date < ? AND completed = ? ORDER BY due_date ASC, id ASC",
		s.dialect.EncodeTime(now), false)
}

// FindDueBetween implements backend.Store.
func (s *Store) FindDueBetween(ctx context.Context, start, end time.Time) ([]backend.Task, error) {
	return s.queryTasks(ctx, "find due between",
		"WHERE due_date IS NOT NULL AND due_date >= ? AND due_date <= ? ORDER BY due_date ASC, id ASC",
		s.dialect.EncodeTime(start), s.dialect.EncodeTime(end))
}

// Search implements backend.Store.
func (s *Store) Search(ctx context.Context, text string) ([]backend.Task, error) {
	pattern := "%" + escapeLike(strings.ToLower(strings.TrimSpace(text))) + "%"
	return s.queryTasks(ctx, "search",
		`WHERE LOWER(title) LIKE ? ESCAPE '\' OR LOWER(description) LIKE ? ESCAPE '\' ORDER BY created_at DESC, id DESC`,
		pattern, pattern)
}

// Count implements backend.Store.
func (s *Store) Count(ctx context.Context) (int64, error) {
	return s.count(ctx, "count", "")
}

// CountByCompleted implements backend.Store.
func (s *Store) CountByCompleted(ctx context.Context, completed bool) (int64, error) {
	return s.count(ctx, "count by completed", "WHERE completed = ?", completed)
}

// CountOverdue implements backend.Store.
func (s *Store) CountOverdue(ctx context.Context, now time.Time) (int64, error) {
	return s.count(ctx, "count overdue",
		"WHERE due_date IS NOT NULL AND due_date < ? AND completed = ?", s.dialect.EncodeTime(now), false)
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) queryTasks(ctx context.Context, op, clause string, args ...any) ([]backend.Task, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind("SELECT "+taskColumns+" FROM tasks "+clause), args...)
	if err != nil {
		return nil, s.wrap(op, err)
	}
	defer func() { _ = rows.Close() }()

	tasks := []backend.Task{}
	for rows.Next() {
		t, err := scanTaskFrom(rows)
		if err != nil {
			return nil, s.wrap(op, err)
		}
		tasks = append(tasks, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, s.wrap(op, err)
	}
	return tasks, nil
}

func (s *Store) count(ctx context.Context, op, clause string, args ...any) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, s.rebind("SELECT COUNT(*) FROM tasks "+clause), args...).Scan(&n)
	if err != nil {
		return 0, s.wrap(op, err)
	}
	return n, nil
}

// scanner is an interface satisfied by both *sql.Rows and *sql.Row
type scanner interface {
	Scan(dest ...any) error
}

// scanTaskFrom scans a task from any scanner (Rows or Row)
func scanTaskFrom(sc scanner) (*backend.Task, error) {
	var t backend.Task
	var priority string
	var created, due, updated any

	if err := sc.Scan(&t.ID, &t.Title, &t.Description, &priority, &t.Completed, &created, &due, &updated); err != nil {
		return nil, err
	}
	t.Priority = backend.Priority(priority)

	var err error
	if t.CreatedAt, err = decodeTime(created); err != nil {
		return nil, fmt.Errorf("created_at: %w", err)
	}
	if t.UpdatedAt, err = decodeTime(updated); err != nil {
		return nil, fmt.Errorf("updated_at: %w", err)
	}
	if due != nil {
		d, err := decodeTime(due)
		if err != nil {
			return nil, fmt.Errorf("due_date: %w", err)
		}
		t.DueDate = &d
	}
	return &t, nil
}

// TextTimeLayout is a fixed-width UTC layout whose lexical order matches
// chronological order, for databases that store timestamps as text.
const TextTimeLayout = "2006-01-02T15:04:05.000000000Z"

// EncodeTextTime formats t with TextTimeLayout.
func EncodeTextTime(t time.Time) any {
	return t.UTC().Format(TextTimeLayout)
}

// decodeTime accepts whatever the driver hands back for a timestamp column.
func decodeTime(v any) (time.Time, error) {
	switch x := v.(type) {
	case nil:
		return time.Time{}, nil
	case time.Time:
		return x, nil
	case string:
		return parseTextTime(x)
	case []byte:
		return parseTextTime(string(x))
	default:
		return time.Time{}, fmt.Errorf("unsupported timestamp type %T", v)
	}
}

func parseTextTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(TextTimeLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

// escapeLike escapes LIKE wildcards using backslash.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// Verify interface compliance at compile time
var _ backend.Store = (*Store)(nil)
