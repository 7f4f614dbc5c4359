// Package reminder fires one notification shortly before each open task's
// due time and routes the user's response back to the task owner.
//
// A single loop drives a min-heap of pending reminders with one timer. A
// periodic sweep over the task set catches anything the heap missed, such as
// tasks created inside the lead window. A per-task "notified at due time"
// record keeps delivery to exactly once per due time.
package reminder

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"remindo/backend"
	"remindo/internal/utils"
)

// State is the reminder lifecycle of one task.
type State int

const (
	Unscheduled State = iota
	Scheduled
	Fired
	Completed
	Snoozed
	Cancelled
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case Unscheduled:
		return "unscheduled"
	case Scheduled:
		return "scheduled"
	case Fired:
		return "fired"
	case Completed:
		return "completed"
	case Snoozed:
		return "snoozed"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Source is the task owner the scheduler reads from and reports back to.
// Lookup and DueCandidates must not block on the owner's mutation lock.
type Source interface {
	Lookup(id int64) (backend.Task, bool)
	DueCandidates() []backend.Task
	CompleteTask(ctx context.Context, id int64) bool
	SnoozeTask(ctx context.Context, id int64, d time.Duration) bool
}

// ErrAlreadyStarted is returned by Start on a running scheduler.
var ErrAlreadyStarted = errors.New("reminder scheduler already started")

// job is a fired reminder waiting for a worker.
type job struct {
	taskID  int64
	due     time.Time
	token   string
	firedAt time.Time
}

type delivery struct {
	token  string
	cancel context.CancelFunc
}

// Scheduler implements the reminder lifecycle.
type Scheduler struct {
	cfg    Config
	sink   Sink
	logger *utils.Logger
	now    func() time.Time

	mu       sync.Mutex
	pending  map[int64]*entry
	queue    queue
	notified map[int64]time.Time
	inflight map[int64]delivery
	states   map[int64]State
	source   Source
	cancel   context.CancelFunc
	group    *errgroup.Group

	wake chan struct{}
	jobs chan job
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger.
func WithLogger(l *utils.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// New creates a stopped scheduler delivering to sink.
func New(cfg Config, sink Sink, opts ...Option) *Scheduler {
	cfg = cfg.withDefaults()
	s := &Scheduler{
		cfg:      cfg,
		sink:     sink,
		logger:   utils.GetLogger(),
		now:      time.Now,
		pending:  make(map[int64]*entry),
		notified: make(map[int64]time.Time),
		inflight: make(map[int64]delivery),
		states:   make(map[int64]State),
		wake:     make(chan struct{}, 1),
		jobs:     make(chan job, cfg.QueueSize),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.sink == nil {
		s.sink = SinkFunc(func(context.Context, Reminder) (Response, error) { return Dismiss, nil })
	}
	return s
}

// Config returns the effective settings.
func (s *Scheduler) Config() Config {
	return s.cfg
}

// Schedule arms a reminder for task at DueDate minus LeadTime, replacing any
// pending one. Tasks without a due date and completed tasks are ignored.
// When the fire time has already passed nothing is armed; the sweep still
// covers tasks due within the lead window.
func (s *Scheduler) Schedule(task backend.Task) {
	if !task.Reminds() {
		return
	}
	due := *task.DueDate
	fireAt := due.Add(-s.cfg.LeadTime)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.removePendingLocked(task.ID)
	if !fireAt.After(s.now()) {
		return
	}

	e := &entry{taskID: task.ID, fireAt: fireAt, due: due, token: uuid.NewString()}
	s.pending[task.ID] = e
	s.queue.push(e)
	s.states[task.ID] = Scheduled
	s.logger.Debug("reminder: task %d scheduled for %s", task.ID, fireAt.Format(time.RFC3339))
	s.nudge()
}

// Cancel drops the pending reminder for id, aborts an in-flight delivery and
// forgets that the task was notified.
func (s *Scheduler) Cancel(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelLocked(id)
	if st, ok := s.states[id]; ok && st != Completed {
		s.states[id] = Cancelled
	}
}

// Forget cancels the reminder of a deleted task and drops its state, so
// State reports Unscheduled afterwards.
func (s *Scheduler) Forget(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelLocked(id)
	delete(s.states, id)
}

// cancelLocked must be called with s.mu held.
func (s *Scheduler) cancelLocked(id int64) {
	s.removePendingLocked(id)
	delete(s.notified, id)
	if d, ok := s.inflight[id]; ok {
		d.cancel()
		delete(s.inflight, id)
	}
	s.nudge()
}

// State returns the lifecycle state of the task's reminder.
func (s *Scheduler) State(id int64) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[id]
}

// PendingCount returns the number of armed reminders.
func (s *Scheduler) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Next returns the earliest armed reminder.
func (s *Scheduler) Next() (taskID int64, fireAt time.Time, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e := s.queue.peek(); e != nil {
		return e.taskID, e.fireAt, true
	}
	return 0, time.Time{}, false
}

// Start runs the scheduling loop and the delivery workers until ctx is done
// or Stop is called.
func (s *Scheduler) Start(ctx context.Context, source Source) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.group != nil {
		return ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	s.source = source
	s.cancel = cancel
	s.group = g

	g.Go(func() error { return s.loop(gctx) })
	for i := 0; i < s.cfg.Workers; i++ {
		g.Go(func() error { return s.worker(gctx) })
	}
	s.logger.Debug("reminder: scheduler started (lead %s, sweep %s, %d workers)",
		s.cfg.LeadTime, s.cfg.SweepInterval, s.cfg.Workers)
	return nil
}

// Stop cancels the loop and in-flight deliveries and waits for them to exit.
// Armed reminders are kept, so the scheduler can be started again.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, g := s.cancel, s.group
	s.cancel, s.group = nil, nil
	s.mu.Unlock()

	if g == nil {
		return
	}
	cancel()
	_ = g.Wait()
	s.logger.Debug("reminder: scheduler stopped")
}

// nudge wakes the loop to recompute its timer. Must be called with s.mu held.
func (s *Scheduler) nudge() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// removePendingLocked drops the armed entry for id. Must be called with s.mu held.
func (s *Scheduler) removePendingLocked(id int64) {
	if e, ok := s.pending[id]; ok {
		s.queue.remove(e)
		delete(s.pending, id)
	}
}

func (s *Scheduler) loop(ctx context.Context) error {
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	sweep := time.NewTicker(s.cfg.SweepInterval)
	defer sweep.Stop()

	s.sweep(ctx)

	for {
		s.mu.Lock()
		next := s.queue.peek()
		if next != nil {
			timer.Reset(max(0, next.fireAt.Sub(s.now())))
		} else {
			timer.Stop()
		}
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil
		case <-s.wake:
		case <-timer.C:
			s.fireDue(ctx)
		case <-sweep.C:
			s.sweep(ctx)
		}
	}
}

// fireDue pops every entry whose fire time has passed.
func (s *Scheduler) fireDue(ctx context.Context) {
	now := s.now()
	var fired []job

	s.mu.Lock()
	for {
		e := s.queue.peek()
		if e == nil || e.fireAt.After(now) {
			break
		}
		s.queue.pop()
		delete(s.pending, e.taskID)
		if j, ok := s.markFiredLocked(e.taskID, e.due, e.token, now); ok {
			fired = append(fired, j)
		}
	}
	s.mu.Unlock()

	s.enqueue(ctx, fired)
}

// sweep fires reminders for tasks due in (now, now+LeadTime+SweepInterval)
// that were never notified and have no armed entry.
func (s *Scheduler) sweep(ctx context.Context) {
	s.mu.Lock()
	source := s.source
	s.mu.Unlock()
	if source == nil {
		return
	}

	now := s.now()
	horizon := now.Add(s.cfg.LeadTime + s.cfg.SweepInterval)
	var fired []job

	for _, task := range source.DueCandidates() {
		if !task.Reminds() {
			continue
		}
		due := *task.DueDate
		if !due.After(now) || !due.Before(horizon) {
			continue
		}

		s.mu.Lock()
		if e, ok := s.pending[task.ID]; ok && e.due.Equal(due) {
			s.mu.Unlock()
			continue
		}
		if fireAt := due.Add(-s.cfg.LeadTime); fireAt.After(now) {
			s.removePendingLocked(task.ID)
			e := &entry{taskID: task.ID, fireAt: fireAt, due: due, token: uuid.NewString()}
			s.pending[task.ID] = e
			s.queue.push(e)
			s.states[task.ID] = Scheduled
			s.mu.Unlock()
			continue
		}
		s.removePendingLocked(task.ID)
		if j, ok := s.markFiredLocked(task.ID, due, uuid.NewString(), now); ok {
			fired = append(fired, j)
			s.logger.Debug("reminder: sweep caught task %d due %s", task.ID, due.Format(time.RFC3339))
		}
		s.mu.Unlock()
	}

	s.enqueue(ctx, fired)
}

// markFiredLocked records the notification for (id, due) and returns the job,
// or false if that due time was already notified. Must be called with s.mu held.
func (s *Scheduler) markFiredLocked(id int64, due time.Time, token string, now time.Time) (job, bool) {
	if prev, ok := s.notified[id]; ok && prev.Equal(due) {
		return job{}, false
	}
	s.notified[id] = due
	s.states[id] = Fired
	return job{taskID: id, due: due, token: token, firedAt: now}, true
}

func (s *Scheduler) enqueue(ctx context.Context, jobs []job) {
	for _, j := range jobs {
		select {
		case s.jobs <- j:
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) worker(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case j := <-s.jobs:
			s.deliver(ctx, j)
		}
	}
}

// deliver re-reads the task, hands it to the sink and applies the response.
func (s *Scheduler) deliver(ctx context.Context, j job) {
	s.mu.Lock()
	source := s.source
	s.mu.Unlock()
	if source == nil {
		return
	}

	task, ok := source.Lookup(j.taskID)
	if !ok || !task.Reminds() {
		s.logger.Debug("reminder: task %d gone or completed before delivery", j.taskID)
		return
	}
	if !task.DueDate.Equal(j.due) {
		s.logger.Debug("reminder: task %d due date changed before delivery", j.taskID)
		return
	}

	dctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	if prev, ok := s.notified[j.taskID]; !ok || !prev.Equal(j.due) {
		// Cancelled between firing and delivery.
		s.mu.Unlock()
		return
	}
	s.inflight[j.taskID] = delivery{token: j.token, cancel: cancel}
	s.mu.Unlock()

	r := Reminder{
		ID:          j.token,
		TaskID:      task.ID,
		Title:       task.Title,
		Description: task.Description,
		DueDate:     *task.DueDate,
		LeadTime:    s.cfg.LeadTime,
		FiredAt:     j.firedAt,
	}
	resp, err := s.sink.Deliver(dctx, r)

	s.mu.Lock()
	if d, ok := s.inflight[j.taskID]; ok && d.token == j.token {
		delete(s.inflight, j.taskID)
	}
	s.mu.Unlock()

	if dctx.Err() != nil {
		s.logger.Debug("reminder: delivery for task %d cancelled", j.taskID)
		return
	}
	if err != nil {
		s.logger.Warn("reminder: delivery for task %d failed: %v", j.taskID, err)
		return
	}

	switch resp.Action {
	case ActionComplete:
		s.setState(j.taskID, Completed)
		if !source.CompleteTask(ctx, j.taskID) {
			s.logger.Warn("reminder: task %d could not be completed", j.taskID)
		}
	case ActionSnooze:
		d := resp.Snooze
		if d <= 0 {
			d = s.cfg.SnoozeDuration
		}
		s.setState(j.taskID, Snoozed)
		if !source.SnoozeTask(ctx, j.taskID, d) {
			s.logger.Warn("reminder: task %d could not be snoozed", j.taskID)
		}
	default:
		s.logger.Debug("reminder: task %d dismissed", j.taskID)
	}
}

// setState records st unless a newer transition already happened.
func (s *Scheduler) setState(id int64, st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.states[id] == Fired {
		s.states[id] = st
	}
}
