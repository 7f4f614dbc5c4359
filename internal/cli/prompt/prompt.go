// Package prompt handles interactive prompts with no-prompt mode support.
// It provides task selection, line-based and huh-based add forms, and a
// terminal reminder prompt.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"remindo/backend"
	"remindo/internal/utils"
)

// Sentinel errors for prompt operations.
var (
	ErrSelectionCancelled = errors.New("selection cancelled")
	ErrNoPromptMode       = errors.New("interactive prompts disabled (--no-prompt / -y)")
	ErrNoTasks            = errors.New("no tasks available")
	ErrNoMatches          = errors.New("no tasks match the filter")
)

// TaskSelector lets the user pick a task by filtering and choosing a number.
type TaskSelector struct {
	Tasks    []backend.Task
	Prompt   string
	Reader   io.Reader
	Writer   io.Writer
	NoPrompt bool
}

// Run executes the task selection prompt.
// If NoPrompt is true, returns ErrNoPromptMode.
// If there is exactly one task, auto-selects it.
func (s *TaskSelector) Run() (*backend.Task, error) {
	if s.NoPrompt {
		return nil, ErrNoPromptMode
	}
	if len(s.Tasks) == 0 {
		return nil, ErrNoTasks
	}
	if len(s.Tasks) == 1 {
		return &s.Tasks[0], nil
	}

	writer := s.Writer
	if writer == nil {
		writer = io.Discard
	}
	scanner := bufio.NewScanner(s.Reader)

	_, _ = fmt.Fprintf(writer, "%s\nFilter (or press Enter to show all): ", s.Prompt)
	if !scanner.Scan() {
		return nil, ErrSelectionCancelled
	}
	filter := strings.TrimSpace(scanner.Text())

	var filtered []backend.Task
	for i := range s.Tasks {
		if backend.MatchesText(&s.Tasks[i], filter) {
			filtered = append(filtered, s.Tasks[i])
		}
	}
	if len(filtered) == 0 {
		return nil, ErrNoMatches
	}
	if len(filtered) == 1 {
		_, _ = fmt.Fprintf(writer, "Auto-selected: %s\n", filtered[0].Title)
		return &filtered[0], nil
	}

	for i, t := range filtered {
		_, _ = fmt.Fprintf(writer, "  %d) %s\n", i+1, FormatTaskLine(t))
	}

	_, _ = fmt.Fprintf(writer, "Select (0 to cancel): ")
	if !scanner.Scan() {
		return nil, ErrSelectionCancelled
	}

	input := strings.TrimSpace(scanner.Text())
	num, err := strconv.Atoi(input)
	if err != nil {
		return nil, fmt.Errorf("invalid selection: %s", input)
	}
	if num == 0 {
		return nil, ErrSelectionCancelled
	}
	if num < 1 || num > len(filtered) {
		return nil, fmt.Errorf("selection out of range: %d", num)
	}
	return &filtered[num-1], nil
}

// FormatTaskLine renders a task on one line with its id, priority, status
// and due date.
func FormatTaskLine(t backend.Task) string {
	meta := []string{t.Priority.Label()}
	if t.Completed {
		meta = append(meta, "done")
	}
	if t.DueDate != nil {
		meta = append(meta, "due: "+t.FormattedDueDate())
	}
	return fmt.Sprintf("#%d %s [%s]", t.ID, t.Title, strings.Join(meta, ", "))
}

// FilterTasksByAction returns the tasks an action can apply to: "done" shows
// open tasks, "undo" shows completed ones, everything else shows all.
func FilterTasksByAction(tasks []backend.Task, action string) []backend.Task {
	var keep func(backend.Task) bool
	switch action {
	case "done":
		keep = func(t backend.Task) bool { return !t.Completed }
	case "undo":
		keep = func(t backend.Task) bool { return t.Completed }
	default:
		out := make([]backend.Task, len(tasks))
		copy(out, tasks)
		return out
	}

	var out []backend.Task
	for _, t := range tasks {
		if keep(t) {
			out = append(out, t)
		}
	}
	return out
}

// AddFields holds the field values collected during interactive add mode.
type AddFields struct {
	Title       string
	Description string
	Priority    backend.Priority
	DueDate     *time.Time
}

// Task builds a transient task from the collected fields.
func (f *AddFields) Task() *backend.Task {
	return backend.NewTask(f.Title, f.Description, f.Priority, f.DueDate)
}

// InteractiveAdder prompts for each field line by line. It is used when
// stdin is not a terminal.
type InteractiveAdder struct {
	Reader   io.Reader
	Writer   io.Writer
	NoPrompt bool
	Now      func() time.Time
}

// Run prompts for title (required), description, priority and due date.
func (a *InteractiveAdder) Run() (*AddFields, error) {
	if a.NoPrompt {
		return nil, ErrNoPromptMode
	}

	writer := a.Writer
	if writer == nil {
		writer = io.Discard
	}
	now := a.Now
	if now == nil {
		now = time.Now
	}

	scanner := bufio.NewScanner(a.Reader)
	fields := &AddFields{Priority: backend.PriorityMedium}

	for {
		_, _ = fmt.Fprint(writer, "Title (required): ")
		if !scanner.Scan() {
			return nil, errors.New("no input for title")
		}
		fields.Title = strings.TrimSpace(scanner.Text())
		err := ValidateTitle(fields.Title)
		if err == nil {
			break
		}
		_, _ = fmt.Fprintln(writer, err)
	}

	_, _ = fmt.Fprint(writer, "Description (optional): ")
	if scanner.Scan() {
		fields.Description = strings.TrimSpace(scanner.Text())
	}

	for {
		_, _ = fmt.Fprint(writer, "Priority (low/medium/high, default medium): ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			break
		}
		p, err := utils.ValidatePriority(input)
		if err != nil {
			_, _ = fmt.Fprintln(writer, "Invalid priority: use low, medium or high")
			continue
		}
		fields.Priority = p
		break
	}

	for {
		_, _ = fmt.Fprint(writer, "Due (2026-01-31 17:00, tomorrow 9am, +2h, optional): ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			break
		}
		due, err := utils.ParseDateFlagAt(input, now())
		if err != nil {
			_, _ = fmt.Fprintf(writer, "Invalid date: %s\n", input)
			continue
		}
		fields.DueDate = due
		break
	}

	return fields, nil
}

// ValidateTitle applies the task title constraints to user input.
func ValidateTitle(s string) error {
	switch {
	case strings.TrimSpace(s) == "":
		return errors.New("title cannot be empty")
	case len(s) > backend.MaxTitleLength:
		return fmt.Errorf("title must be at most %d characters", backend.MaxTitleLength)
	}
	return nil
}
