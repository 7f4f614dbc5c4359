package tui

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"remindo/internal/reminder"
)

// Sender delivers messages to a running program. *tea.Program satisfies it.
type Sender interface {
	Send(msg tea.Msg)
}

// DialogSink shows reminders as a modal dialog in the TUI and waits for the
// user's answer. Until a program is attached, reminders are dismissed.
type DialogSink struct {
	mu      sync.Mutex
	program Sender
}

// NewDialogSink returns a sink with no program attached.
func NewDialogSink() *DialogSink {
	return &DialogSink{}
}

// Attach routes reminders to p. Passing nil detaches.
func (s *DialogSink) Attach(p Sender) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.program = p
}

// Deliver implements reminder.Sink. When ctx ends first the dialog is closed
// and ctx.Err() is returned.
func (s *DialogSink) Deliver(ctx context.Context, r reminder.Reminder) (reminder.Response, error) {
	s.mu.Lock()
	p := s.program
	s.mu.Unlock()
	if p == nil {
		return reminder.Dismiss, nil
	}

	reply := make(chan reminder.Response, 1)
	p.Send(reminderMsg{reminder: r, reply: reply})

	select {
	case resp := <-reply:
		return resp, nil
	case <-ctx.Done():
		p.Send(reminderClosedMsg{id: r.ID})
		return reminder.Dismiss, ctx.Err()
	}
}
