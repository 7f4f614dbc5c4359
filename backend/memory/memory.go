// Package memory provides an in-process implementation of backend.Store.
// It backs the "memory" driver and offers fault injection so callers can
// exercise degraded-mode behavior.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"remindo/backend"
)

// ErrUnavailable is returned by every call once a failure has been injected
// with Fail.
var ErrUnavailable = errors.New("memory store unavailable")

// Store implements backend.Store on a map guarded by a mutex.
type Store struct {
	mu     sync.Mutex
	tasks  map[int64]backend.Task
	nextID int64
	failOn map[string]error
	calls  map[string]int
	closed bool
}

// New creates an empty store.
func New() *Store {
	return &Store{
		tasks:  make(map[int64]backend.Task),
		nextID: 1,
		failOn: make(map[string]error),
		calls:  make(map[string]int),
	}
}

// Fail makes the named operation return err. An empty op fails every call.
// Passing a nil err uses ErrUnavailable.
func (s *Store) Fail(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		err = ErrUnavailable
	}
	s.failOn[op] = err
}

// Recover clears every injected failure.
func (s *Store) Recover() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failOn = make(map[string]error)
}

// Calls returns how many times op was invoked, including failed calls.
func (s *Store) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// TotalCalls returns the number of calls across all operations.
func (s *Store) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

// enter records the call and returns the injected failure, if any.
// Must be called with s.mu held.
func (s *Store) enter(op string) error {
	s.calls[op]++
	if s.closed {
		return errors.New("memory store closed")
	}
	if err, ok := s.failOn[op]; ok {
		return err
	}
	if err, ok := s.failOn[""]; ok {
		return err
	}
	return nil
}

// Insert implements backend.Store.
func (s *Store) Insert(_ context.Context, task *backend.Task) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("Insert"); err != nil {
		return 0, err
	}

	id := s.nextID
	s.nextID++
	t := task.Clone()
	t.ID = id
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	t.UpdatedAt = time.Now()
	s.tasks[id] = t
	return id, nil
}

// Update implements backend.Store.
func (s *Store) Update(_ context.Context, task *backend.Task) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("Update"); err != nil {
		return false, err
	}

	existing, ok := s.tasks[task.ID]
	if !ok {
		return false, nil
	}
	t := task.Clone()
	t.CreatedAt = existing.CreatedAt
	t.UpdatedAt = time.Now()
	s.tasks[task.ID] = t
	return true, nil
}

// DeleteByID implements backend.Store.
func (s *Store) DeleteByID(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("DeleteByID"); err != nil {
		return false, err
	}
	if _, ok := s.tasks[id]; !ok {
		return false, nil
	}
	delete(s.tasks, id)
	return true, nil
}

// FindByID implements backend.Store.
func (s *Store) FindByID(_ context.Context, id int64) (*backend.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("FindByID"); err != nil {
		return nil, err
	}
	t, ok := s.tasks[id]
	if !ok {
		return nil, nil
	}
	c := t.Clone()
	return &c, nil
}

// FindAll implements backend.Store.
func (s *Store) FindAll(_ context.Context) ([]backend.Task, error) {
	return s.query("FindAll", func(*backend.Task) bool { return true }, byCreatedDesc)
}

// FindByCompleted implements backend.Store.
func (s *Store) FindByCompleted(_ context.Context, completed bool) ([]backend.Task, error) {
	return s.query("FindByCompleted", func(t *backend.Task) bool { return t.Completed == completed }, byCreatedDesc)
}

// FindByPriority implements backend.Store.
func (s *Store) FindByPriority(_ context.Context, priority backend.Priority) ([]backend.Task, error) {
	return s.query("FindByPriority", func(t *backend.Task) bool { return t.Priority == priority }, byCreatedDesc)
}

// FindOverdue implements backend.Store.
func (s *Store) FindOverdue(_ context.Context, now time.Time) ([]backend.Task, error) {
	return s.query("FindOverdue", func(t *backend.Task) bool { return t.IsOverdue(now) }, byDueAsc)
}

// FindDueBetween implements backend.Store.
func (s *Store) FindDueBetween(_ context.Context, start, end time.Time) ([]backend.Task, error) {
	return s.query("FindDueBetween", func(t *backend.Task) bool { return backend.DueWithin(t, start, end) }, byDueAsc)
}

// Search implements backend.Store.
func (s *Store) Search(_ context.Context, text string) ([]backend.Task, error) {
	return s.query("Search", func(t *backend.Task) bool { return backend.MatchesText(t, text) }, byCreatedDesc)
}

// Count implements backend.Store.
func (s *Store) Count(ctx context.Context) (int64, error) {
	return s.count("Count", func(*backend.Task) bool { return true })
}

// CountByCompleted implements backend.Store.
func (s *Store) CountByCompleted(_ context.Context, completed bool) (int64, error) {
	return s.count("CountByCompleted", func(t *backend.Task) bool { return t.Completed == completed })
}

// CountOverdue implements backend.Store.
func (s *Store) CountOverdue(_ context.Context, now time.Time) (int64, error) {
	return s.count("CountOverdue", func(t *backend.Task) bool { return t.IsOverdue(now) })
}

// Close implements backend.Store.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Store) query(op string, keep func(*backend.Task) bool, less func(a, b *backend.Task) bool) ([]backend.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(op); err != nil {
		return nil, err
	}

	out := []backend.Task{}
	for _, t := range s.tasks {
		if keep(&t) {
			out = append(out, t.Clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return less(&out[i], &out[j]) })
	return out, nil
}

func (s *Store) count(op string, keep func(*backend.Task) bool) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(op); err != nil {
		return 0, err
	}
	var n int64
	for _, t := range s.tasks {
		if keep(&t) {
			n++
		}
	}
	return n, nil
}

func byCreatedDesc(a, b *backend.Task) bool {
	if a.CreatedAt.Equal(b.CreatedAt) {
		return a.ID > b.ID
	}
	return a.CreatedAt.After(b.CreatedAt)
}

func byDueAsc(a, b *backend.Task) bool {
	if a.DueDate.Equal(*b.DueDate) {
		return a.ID < b.ID
	}
	return a.DueDate.Before(*b.DueDate)
}

// Verify interface compliance at compile time
var _ backend.Store = (*Store)(nil)
