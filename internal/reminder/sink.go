package reminder

import (
	"context"
	"errors"
	"time"

	"remindo/internal/notification"
)

// Action is the user's answer to a reminder.
type Action int

const (
	// ActionDismiss acknowledges the reminder and changes nothing.
	ActionDismiss Action = iota
	// ActionComplete marks the task complete.
	ActionComplete
	// ActionSnooze pushes the due date forward.
	ActionSnooze
)

// String returns the string representation of the action.
func (a Action) String() string {
	switch a {
	case ActionDismiss:
		return "dismiss"
	case ActionComplete:
		return "complete"
	case ActionSnooze:
		return "snooze"
	default:
		return "unknown"
	}
}

// Response carries the action and, for snoozes, an optional duration.
type Response struct {
	Action Action
	Snooze time.Duration
}

// Dismiss is the response for sinks that cannot ask the user anything.
var Dismiss = Response{Action: ActionDismiss}

// Reminder is the payload handed to a Sink. Title and DueDate reflect the
// task at delivery time.
type Reminder struct {
	ID          string
	TaskID      int64
	Title       string
	Description string
	DueDate     time.Time
	LeadTime    time.Duration
	FiredAt     time.Time
}

// Sink presents a reminder and waits for the user's response. The context is
// cancelled if the task is deleted or the scheduler stops; interactive sinks
// should close their prompt and return ctx.Err().
type Sink interface {
	Deliver(ctx context.Context, r Reminder) (Response, error)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, r Reminder) (Response, error)

// Deliver implements Sink.
func (f SinkFunc) Deliver(ctx context.Context, r Reminder) (Response, error) {
	return f(ctx, r)
}

// NotifierSink sends reminders through a notification manager.
type NotifierSink struct {
	Manager notification.NotificationManager
}

// Deliver implements Sink.
func (s NotifierSink) Deliver(_ context.Context, r Reminder) (Response, error) {
	if s.Manager == nil {
		return Dismiss, nil
	}
	n := notification.Reminder(r.TaskID, r.Title, r.DueDate, r.LeadTime)
	n.Metadata["reminder_id"] = r.ID
	return Dismiss, s.Manager.Send(n)
}

// FanoutSink delivers to every sink concurrently. The first non-dismiss
// response wins and cancels the remaining deliveries.
type FanoutSink []Sink

// Deliver implements Sink.
func (f FanoutSink) Deliver(ctx context.Context, r Reminder) (Response, error) {
	if len(f) == 0 {
		return Dismiss, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		resp Response
		err  error
	}
	results := make(chan result, len(f))
	for _, sink := range f {
		go func(s Sink) {
			resp, err := s.Deliver(ctx, r)
			results <- result{resp, err}
		}(sink)
	}

	winner := Dismiss
	decided := false
	var errs []error
	for range f {
		res := <-results
		if res.err != nil {
			if !decided {
				errs = append(errs, res.err)
			}
			continue
		}
		if !decided && res.resp.Action != ActionDismiss {
			winner = res.resp
			decided = true
			cancel()
		}
	}

	if decided {
		return winner, nil
	}
	return Dismiss, errors.Join(errs...)
}
