// Package service implements the task service: the single owner of the task
// cache, which keeps it in sync with a store that may fail at any call and
// drives the reminder scheduler from task mutations.
//
// Storage failures never reach callers. The first failure latches the store
// unhealthy and every later operation runs against the cache only. The only
// error returned by mutations is *backend.ValidationError.
package service

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"remindo/backend"
	"remindo/internal/cache"
	"remindo/internal/health"
	"remindo/internal/notification"
	"remindo/internal/utils"
)

// Placeholder task shown when the store cannot be loaded and nothing is cached.
const (
	PlaceholderTitle       = "Welcome to Todo App (In-Memory Mode)"
	PlaceholderDescription = "Database connection failed. Your data will not be persisted."
)

var errNoStore = errors.New("no store configured")

// storeError records which operation tripped the store.
type storeError struct {
	op  string
	err error
}

func (e *storeError) Error() string { return e.op + ": " + e.err.Error() }
func (e *storeError) Unwrap() error { return e.err }

// Reminders is the part of the reminder scheduler the service drives.
// Schedule, Cancel and Forget must not block. Forget is called for deleted
// tasks and drops everything kept about them.
type Reminders interface {
	Schedule(task backend.Task)
	Cancel(id int64)
	Forget(id int64)
	Stop()
}

type nopReminders struct{}

func (nopReminders) Schedule(backend.Task) {}
func (nopReminders) Cancel(int64)          {}
func (nopReminders) Forget(int64)          {}
func (nopReminders) Stop()                 {}

// Stats summarizes the task set.
type Stats struct {
	Total          int64 `json:"total"`
	Completed      int64 `json:"completed"`
	Pending        int64 `json:"pending"`
	Overdue        int64 `json:"overdue"`
	StoreAvailable bool  `json:"store_available"`

	// Set once the store has failed.
	OfflineSince *time.Time `json:"offline_since,omitempty"`
	StoreError   string     `json:"store_error,omitempty"`
}

// Service is the task service.
type Service struct {
	// mu serializes mutations with their store call, cache update and
	// reminder reconciliation.
	mu sync.Mutex

	store     backend.Store
	cache     *cache.TaskCache
	health    *health.Flag
	reminders Reminders
	notifier  notification.NotificationManager
	logger    *utils.Logger
	now       func() time.Time
	seeded    bool
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l *utils.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithNotifier sets the manager that receives the one-time store offline alert.
// Shutdown closes it.
func WithNotifier(m notification.NotificationManager) Option {
	return func(s *Service) { s.notifier = m }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New creates a service over store. A nil store starts the service in
// memory-only mode. A nil reminders disables reminders. Call Refresh to load
// the cache.
func New(store backend.Store, reminders Reminders, opts ...Option) *Service {
	s := &Service{
		store:     store,
		cache:     cache.New(),
		reminders: reminders,
		logger:    utils.GetLogger(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.health = health.New(s.now)
	if s.reminders == nil {
		s.reminders = nopReminders{}
	}
	if s.store == nil {
		s.health.RecordFailure(errNoStore)
	}
	s.health.OnTrip(s.alertOffline)
	return s
}

// StoreAvailable reports whether store calls are still attempted.
func (s *Service) StoreAvailable() bool {
	return s.health.Healthy()
}

// storeFailed latches the store unhealthy and logs the failed operation.
func (s *Service) storeFailed(op string, err error) {
	s.logger.Error("store %s failed, continuing in memory: %v", op, err)
	s.health.RecordFailure(&storeError{op: op, err: err})
}

// alertOffline sends the one-time store offline notification.
func (s *Service) alertOffline(err error) {
	if s.notifier == nil {
		return
	}
	var se *storeError
	if errors.As(err, &se) {
		s.notifier.SendAsync(notification.StoreOffline(se.op, se.err))
		return
	}
	s.notifier.SendAsync(notification.StoreOffline("store", err))
}

// Create validates task, persists it and adds it to the cache. When the store
// fails the task gets a local id (highest cached id + 1) and is kept in memory.
// The returned copy carries the id; task itself is not modified.
func (s *Service) Create(ctx context.Context, task *backend.Task) (backend.Task, error) {
	if err := task.Validate(); err != nil {
		return backend.Task{}, err
	}
	t := task.Clone()
	t.ID = 0
	if t.CreatedAt.IsZero() {
		t.CreatedAt = s.now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.health.Healthy() {
		id, err := s.store.Insert(ctx, &t)
		if err != nil {
			s.storeFailed("insert", err)
		} else {
			t.ID = id
		}
	}
	if t.ID == 0 {
		t.ID = s.cache.MaxID() + 1
		s.logger.Debug("task %q kept in memory with local id %d", t.Title, t.ID)
	}

	s.cache.Append(t)
	s.reminders.Schedule(t)
	return t.Clone(), nil
}

// Update saves task and replaces the cached copy with the same id. CreatedAt
// always comes from the cached record. An id that is not cached is a no-op
// and returns the zero Task.
func (s *Service) Update(ctx context.Context, task *backend.Task) (backend.Task, error) {
	if err := task.Validate(); err != nil {
		return backend.Task{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cached, ok := s.cache.Get(task.ID)
	if !ok {
		s.logger.Warn("update ignored: task %d not found", task.ID)
		return backend.Task{}, nil
	}
	return s.updateLocked(ctx, cached, task), nil
}

// updateLocked saves task over cached. Must be called with s.mu held.
func (s *Service) updateLocked(ctx context.Context, cached backend.Task, task *backend.Task) backend.Task {
	t := task.Clone()
	t.CreatedAt = cached.CreatedAt
	t.UpdatedAt = s.now()

	if s.health.Healthy() {
		found, err := s.store.Update(ctx, &t)
		switch {
		case err != nil:
			s.storeFailed("update", err)
		case !found:
			s.logger.Warn("task %d missing from store, updated in memory only", t.ID)
		}
	}

	s.cache.ReplaceFirst(t)
	s.reconcile(t)
	return t.Clone()
}

// reconcile brings the reminder in line with t. Must be called with s.mu held.
func (s *Service) reconcile(t backend.Task) {
	if t.Reminds() {
		s.reminders.Schedule(t)
		return
	}
	s.reminders.Cancel(t.ID)
}

// Delete removes task. See DeleteByID.
func (s *Service) Delete(ctx context.Context, task *backend.Task) bool {
	if task == nil {
		return false
	}
	return s.DeleteByID(ctx, task.ID)
}

// DeleteByID removes the task from the store and, whatever the outcome, from
// the cache, and cancels its reminder. It returns false when the id was
// unknown, which is logged and otherwise ignored.
func (s *Service) DeleteByID(ctx context.Context, id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := false
	if s.health.Healthy() {
		found, err := s.store.DeleteByID(ctx, id)
		if err != nil {
			s.storeFailed("delete", err)
		}
		stored = found
	}

	cached := s.cache.Remove(id)
	s.reminders.Forget(id)

	if !stored && !cached {
		s.logger.Warn("delete ignored: task %d not found", id)
		return false
	}
	return true
}

// CompleteTask marks the task complete. It returns false if the id is unknown.
func (s *Service) CompleteTask(ctx context.Context, id int64) bool {
	return s.modify(ctx, id, func(t *backend.Task) { t.Completed = true })
}

// ReopenTask marks the task open again, re-arming its reminder.
func (s *Service) ReopenTask(ctx context.Context, id int64) bool {
	return s.modify(ctx, id, func(t *backend.Task) { t.Completed = false })
}

// SnoozeTask pushes the due date forward by d, or sets it to now+d when the
// task has no due date. The reminder is re-armed for the new due time.
func (s *Service) SnoozeTask(ctx context.Context, id int64, d time.Duration) bool {
	return s.modify(ctx, id, func(t *backend.Task) {
		base := s.now()
		if t.DueDate != nil {
			base = *t.DueDate
		}
		due := base.Add(d)
		t.DueDate = &due
	})
}

// modify applies fn to the current cached task and saves it, all under s.mu,
// so a concurrent Update is never overwritten with a stale copy.
func (s *Service) modify(ctx context.Context, id int64, fn func(*backend.Task)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	cached, ok := s.cache.Get(id)
	if !ok {
		s.logger.Warn("task %d not found", id)
		return false
	}
	t := cached.Clone()
	fn(&t)
	if err := t.Validate(); err != nil {
		s.logger.Warn("task %d: %v", id, err)
		return false
	}
	s.updateLocked(ctx, cached, &t)
	return true
}

// Lookup returns the cached task. It never touches the store.
func (s *Service) Lookup(id int64) (backend.Task, bool) {
	return s.cache.Get(id)
}

// DueCandidates returns every cached task eligible for a reminder.
func (s *Service) DueCandidates() []backend.Task {
	return s.cache.Filter(func(t *backend.Task) bool { return t.Reminds() })
}

// Refresh reloads the cache from the store and re-arms reminders. Reminders
// of tasks that disappeared are cancelled. When the store is unavailable and
// the cache is empty, a placeholder task is added once per process.
func (s *Service) Refresh(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.health.Healthy() {
		tasks, err := s.store.FindAll(ctx)
		if err == nil {
			keep := make(map[int64]bool, len(tasks))
			for _, t := range tasks {
				keep[t.ID] = true
			}
			for _, old := range s.cache.Snapshot() {
				if !keep[old.ID] {
					s.reminders.Forget(old.ID)
				}
			}
			s.cache.Replace(tasks)
			for _, t := range tasks {
				s.reconcile(t)
			}
			s.logger.Debug("loaded %d tasks from store", len(tasks))
			return
		}
		s.storeFailed("load", err)
	}

	if s.seeded || s.cache.Len() > 0 {
		return
	}
	s.seeded = true
	s.cache.Append(backend.Task{
		ID:          s.cache.MaxID() + 1,
		Title:       PlaceholderTitle,
		Description: PlaceholderDescription,
		Priority:    backend.PriorityHigh,
		CreatedAt:   s.now(),
	})
}

// Shutdown stops the reminder scheduler and closes the notifier. The store is
// owned by the caller.
func (s *Service) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.reminders.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	if s.notifier != nil {
		return s.notifier.Close()
	}
	return nil
}

// AllTasks returns a live read-only view of the cache.
func (s *Service) AllTasks() cache.View {
	return s.cache.View()
}

// FindByID returns the task with the given id.
func (s *Service) FindByID(ctx context.Context, id int64) (backend.Task, bool) {
	if s.health.Healthy() {
		t, err := s.store.FindByID(ctx, id)
		if err == nil {
			if t == nil {
				return backend.Task{}, false
			}
			return t.Clone(), true
		}
		s.storeFailed("find by id", err)
	}
	return s.cache.Get(id)
}

// Completed returns the completed tasks.
func (s *Service) Completed(ctx context.Context) []backend.Task {
	return s.query(ctx, "find completed",
		func(ctx context.Context) ([]backend.Task, error) { return s.store.FindByCompleted(ctx, true) },
		func(t *backend.Task) bool { return t.Completed }, nil)
}

// Pending returns the open tasks.
func (s *Service) Pending(ctx context.Context) []backend.Task {
	return s.query(ctx, "find pending",
		func(ctx context.Context) ([]backend.Task, error) { return s.store.FindByCompleted(ctx, false) },
		func(t *backend.Task) bool { return !t.Completed }, nil)
}

// Overdue returns open tasks past their due date, earliest first.
func (s *Service) Overdue(ctx context.Context) []backend.Task {
	now := s.now()
	return s.query(ctx, "find overdue",
		func(ctx context.Context) ([]backend.Task, error) { return s.store.FindOverdue(ctx, now) },
		func(t *backend.Task) bool { return t.IsOverdue(now) }, byDue)
}

// ByPriority returns the tasks with priority p.
func (s *Service) ByPriority(ctx context.Context, p backend.Priority) []backend.Task {
	return s.query(ctx, "find by priority",
		func(ctx context.Context) ([]backend.Task, error) { return s.store.FindByPriority(ctx, p) },
		func(t *backend.Task) bool { return t.Priority == p }, nil)
}

// Search returns tasks whose title or description contains text, ignoring
// case, newest first. Blank text returns every task.
//
// Case folding differs by source: the SQLite store folds ASCII letters only,
// while PostgreSQL and the in-memory fallback fold Unicode. A non-ASCII
// search can therefore match more tasks once the store is offline.
func (s *Service) Search(ctx context.Context, text string) []backend.Task {
	if strings.TrimSpace(text) == "" {
		return s.cache.Snapshot()
	}
	return s.query(ctx, "search",
		func(ctx context.Context) ([]backend.Task, error) { return s.store.Search(ctx, text) },
		func(t *backend.Task) bool { return backend.MatchesText(t, text) }, byNewest)
}

// DueBetween returns tasks due in [start, end], earliest first.
func (s *Service) DueBetween(ctx context.Context, start, end time.Time) []backend.Task {
	return s.query(ctx, "find due between",
		func(ctx context.Context) ([]backend.Task, error) { return s.store.FindDueBetween(ctx, start, end) },
		func(t *backend.Task) bool { return backend.DueWithin(t, start, end) }, byDue)
}

// TotalCount returns the number of cached tasks.
func (s *Service) TotalCount() int64 {
	return int64(s.cache.Len())
}

// CompletedCount returns the number of completed tasks.
func (s *Service) CompletedCount(ctx context.Context) int64 {
	return s.count(ctx, "count completed",
		func(ctx context.Context) (int64, error) { return s.store.CountByCompleted(ctx, true) },
		func(t *backend.Task) bool { return t.Completed })
}

// PendingCount returns the number of open tasks.
func (s *Service) PendingCount(ctx context.Context) int64 {
	return s.count(ctx, "count pending",
		func(ctx context.Context) (int64, error) { return s.store.CountByCompleted(ctx, false) },
		func(t *backend.Task) bool { return !t.Completed })
}

// OverdueCount returns the number of overdue tasks.
func (s *Service) OverdueCount(ctx context.Context) int64 {
	now := s.now()
	return s.count(ctx, "count overdue",
		func(ctx context.Context) (int64, error) { return s.store.CountOverdue(ctx, now) },
		func(t *backend.Task) bool { return t.IsOverdue(now) })
}

// Stats returns every count at once.
func (s *Service) Stats(ctx context.Context) Stats {
	st := Stats{
		Total:          s.TotalCount(),
		Completed:      s.CompletedCount(ctx),
		Pending:        s.PendingCount(ctx),
		Overdue:        s.OverdueCount(ctx),
		StoreAvailable: s.StoreAvailable(),
	}
	if !st.StoreAvailable {
		since := s.health.Since()
		st.OfflineSince = &since
		if err := s.health.LastError(); err != nil {
			st.StoreError = err.Error()
		}
	}
	return st
}

// query runs fromStore while the store is healthy and falls back to filtering
// the cache. order, when set, sorts the fallback result.
func (s *Service) query(
	ctx context.Context,
	op string,
	fromStore func(context.Context) ([]backend.Task, error),
	keep func(*backend.Task) bool,
	order func(a, b backend.Task) int,
) []backend.Task {
	if s.health.Healthy() {
		tasks, err := fromStore(ctx)
		if err == nil {
			return tasks
		}
		s.storeFailed(op, err)
	}
	tasks := s.cache.Filter(keep)
	if order != nil {
		slices.SortStableFunc(tasks, order)
	}
	return tasks
}

func (s *Service) count(
	ctx context.Context,
	op string,
	fromStore func(context.Context) (int64, error),
	keep func(*backend.Task) bool,
) int64 {
	if s.health.Healthy() {
		n, err := fromStore(ctx)
		if err == nil {
			return n
		}
		s.storeFailed(op, err)
	}
	return int64(s.cache.Count(keep))
}

func byDue(a, b backend.Task) int {
	return cmp.Or(a.DueDate.Compare(*b.DueDate), cmp.Compare(a.ID, b.ID))
}

// byNewest matches the stores' created_at DESC, id DESC order.
func byNewest(a, b backend.Task) int {
	return cmp.Or(b.CreatedAt.Compare(a.CreatedAt), cmp.Compare(b.ID, a.ID))
}
