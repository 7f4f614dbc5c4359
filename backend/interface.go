package backend

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Store error categories. Drivers wrap their native errors with these so
// logs can tell a broken schema from a broken connection.
var (
	ErrConstraint  = errors.New("constraint violation")
	ErrUnreachable = errors.New("store unreachable")
)

// Store defines the persistence contract consumed by the task service.
// Every call may fail; callers treat any error as "store unavailable".
type Store interface {
	// Insert persists a new task and returns its assigned id.
	Insert(ctx context.Context, task *Task) (int64, error)
	// Update saves all mutable fields. Returns false if no row matched.
	Update(ctx context.Context, task *Task) (bool, error)
	// DeleteByID removes a task. Returns false if no row matched.
	DeleteByID(ctx context.Context, id int64) (bool, error)
	// FindByID returns nil, nil when the task does not exist.
	FindByID(ctx context.Context, id int64) (*Task, error)
	// FindAll returns every task ordered by creation time, newest first.
	FindAll(ctx context.Context) ([]Task, error)

	FindByCompleted(ctx context.Context, completed bool) ([]Task, error)
	FindByPriority(ctx context.Context, priority Priority) ([]Task, error)
	FindOverdue(ctx context.Context, now time.Time) ([]Task, error)
	FindDueBetween(ctx context.Context, start, end time.Time) ([]Task, error)
	Search(ctx context.Context, text string) ([]Task, error)

	Count(ctx context.Context) (int64, error)
	CountByCompleted(ctx context.Context, completed bool) (int64, error)
	CountOverdue(ctx context.Context, now time.Time) (int64, error)

	// Connection management
	Close() error
}

// FindTaskByID searches a slice of tasks for the given id.
// Returns nil if no match is found.
func FindTaskByID(tasks []Task, id int64) *Task {
	for i := range tasks {
		if tasks[i].ID == id {
			return &tasks[i]
		}
	}
	return nil
}

// MatchesText reports whether the title or description contains text,
// ignoring case. This mirrors the LIKE search of the SQL stores.
func MatchesText(t *Task, text string) bool {
	needle := strings.ToLower(strings.TrimSpace(text))
	if needle == "" {
		return true
	}
	return strings.Contains(strings.ToLower(t.Title), needle) ||
		strings.Contains(strings.ToLower(t.Description), needle)
}

// DueWithin reports whether the task has a due date in [start, end].
func DueWithin(t *Task, start, end time.Time) bool {
	if t.DueDate == nil {
		return false
	}
	return !t.DueDate.Before(start) && !t.DueDate.After(end)
}
