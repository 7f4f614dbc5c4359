package prompt

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/charmbracelet/huh"

	"remindo/backend"
	"remindo/internal/utils"
)

// AddForm collects task fields with a huh form on a terminal.
type AddForm struct {
	Input  io.Reader
	Output io.Writer
	Now    func() time.Time
}

func (f *AddForm) now() time.Time {
	if f.Now != nil {
		return f.Now()
	}
	return time.Now()
}

// Run shows the form. ErrSelectionCancelled is returned if the user aborts.
func (f *AddForm) Run(ctx context.Context) (*AddFields, error) {
	fields := &AddFields{Priority: backend.PriorityMedium}
	var due string

	priorities := make([]huh.Option[backend.Priority], 0, 3)
	for _, p := range backend.Priorities() {
		priorities = append(priorities, huh.NewOption(p.Label(), p))
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Title").
				CharLimit(backend.MaxTitleLength).
				Validate(ValidateTitle).
				Value(&fields.Title),
			huh.NewText().
				Title("Description").
				CharLimit(backend.MaxDescriptionLength).
				Value(&fields.Description),
			huh.NewSelect[backend.Priority]().
				Title("Priority").
				Options(priorities...).
				Value(&fields.Priority),
			huh.NewInput().
				Title("Due").
				Placeholder("tomorrow 9am, +2h, 2026-01-31 17:00").
				Validate(func(s string) error {
					_, err := utils.ParseDateFlagAt(s, f.now())
					return err
				}).
				Value(&due),
		),
	)
	if f.Input != nil {
		form = form.WithInput(f.Input)
	}
	if f.Output != nil {
		form = form.WithOutput(f.Output)
	}

	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return nil, ErrSelectionCancelled
		}
		return nil, err
	}

	parsed, err := utils.ParseDateFlagAt(due, f.now())
	if err != nil {
		return nil, err
	}
	fields.DueDate = parsed
	return fields, nil
}
