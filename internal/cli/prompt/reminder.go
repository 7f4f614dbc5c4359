package prompt

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/huh"

	"remindo/backend"
	"remindo/internal/notification"
	"remindo/internal/reminder"
)

// ReminderPrompt asks on the terminal what to do about a reminder. Prompts
// are shown one at a time; a delivery waiting for its turn gives up when its
// context ends.
type ReminderPrompt struct {
	Input  io.Reader
	Output io.Writer

	turn chan struct{}
}

// NewReminderPrompt returns a prompt reading from in and writing to out.
func NewReminderPrompt(in io.Reader, out io.Writer) *ReminderPrompt {
	return &ReminderPrompt{Input: in, Output: out, turn: make(chan struct{}, 1)}
}

// Deliver implements reminder.Sink.
func (p *ReminderPrompt) Deliver(ctx context.Context, r reminder.Reminder) (reminder.Response, error) {
	select {
	case p.turn <- struct{}{}:
	case <-ctx.Done():
		return reminder.Dismiss, ctx.Err()
	}
	defer func() { <-p.turn }()

	action := reminder.ActionDismiss
	title := fmt.Sprintf("Reminder: %s (due %s, in %s)",
		r.Title, r.DueDate.Local().Format(backend.DisplayLayout), notification.HumanDuration(r.LeadTime))

	form := huh.NewForm(huh.NewGroup(
		huh.NewSelect[reminder.Action]().
			Title(title).
			Description(r.Description).
			Options(
				huh.NewOption("Complete", reminder.ActionComplete),
				huh.NewOption("Snooze", reminder.ActionSnooze),
				huh.NewOption("Dismiss", reminder.ActionDismiss),
			).
			Value(&action),
	))
	if p.Input != nil {
		form = form.WithInput(p.Input)
	}
	if p.Output != nil {
		form = form.WithOutput(p.Output)
	}

	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return reminder.Dismiss, nil
		}
		return reminder.Dismiss, err
	}
	return reminder.Response{Action: action}, nil
}
