package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"remindo/backend"
	"remindo/internal/cli/prompt"
	"remindo/internal/notification"
	"remindo/internal/reminder"
	"remindo/internal/tui"
	"remindo/internal/utils"
)

func newTUICmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Open the full screen task manager",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sink := tui.NewDialogSink()
			return e.withApp(cmd, func(ctx context.Context, a *app) error {
				if err := a.watchDatabase(ctx); err != nil {
					a.logger.Warn("watch disabled: %v", err)
				}

				model := tui.New(a.svc, tui.WithContext(ctx), tui.WithClock(e.now))
				p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
				sink.Attach(p)
				defer sink.Attach(nil)

				if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
					return fmt.Errorf("tui: %w", err)
				}
				return nil
			}, withReminders(sink), withFileLogOnly())
		},
	}
}

// syncWriter serializes writes from reminder workers and the command itself.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// printSink writes each reminder as a line of text.
func printSink(w io.Writer) reminder.Sink {
	return reminder.SinkFunc(func(_ context.Context, r reminder.Reminder) (reminder.Response, error) {
		_, err := fmt.Fprintf(w, "Reminder: #%d %s is due %s (in %s)\n",
			r.TaskID, r.Title, r.DueDate.Format(backend.DisplayLayout), notification.HumanDuration(r.LeadTime))
		return reminder.Dismiss, err
	})
}

func newWatchCmd(e *env) *cobra.Command {
	var duration time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run the reminder scheduler in the foreground",
		Long: "Run the reminder scheduler until interrupted. On a terminal each reminder " +
			"asks whether to complete, snooze or dismiss the task.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := &syncWriter{w: e.stdout}
			var sink reminder.Sink = printSink(out)
			if e.interactive() {
				sink = prompt.NewReminderPrompt(e.stdin(), e.stdout)
			}

			return e.withApp(cmd, func(ctx context.Context, a *app) error {
				if a.sched == nil {
					return utils.WrapWithSuggestion(errors.New("reminders are disabled"),
						"Set reminder.enabled: true in "+e.conf.Path())
				}
				if err := a.watchDatabase(ctx); err != nil {
					a.logger.Warn("watch disabled: %v", err)
				}
				stop := a.shutdown.ListenForSignals()
				defer stop()

				_, _ = fmt.Fprintf(out, "Watching %d task(s) for reminders. Press Ctrl+C to stop.\n", a.svc.PendingCount(ctx))

				var deadline <-chan time.Time
				if duration > 0 {
					timer := time.NewTimer(duration)
					defer timer.Stop()
					deadline = timer.C
				}
				select {
				case <-a.shutdown.ShutdownRequested():
				case <-deadline:
				case <-ctx.Done():
				}

				_, _ = fmt.Fprintln(out, "Stopped watching")
				if e.cfg.NoPrompt && !e.json {
					_, _ = fmt.Fprintln(out, ResultInfoOnly)
				}
				return nil
			}, withReminders(sink))
		},
	}
	cmd.Flags().DurationVar(&duration, "for", 0, "Stop after this long (default: run until interrupted)")
	return cmd
}
