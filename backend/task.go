// Package backend defines the task entity and the storage contract shared by
// every store implementation.
package backend

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Field limits enforced before any persistence attempt.
const (
	MaxTitleLength       = 255
	MaxDescriptionLength = 500
)

// DisplayLayout is the human readable timestamp format used by all surfaces.
const DisplayLayout = "Jan 02, 2006 15:04"

// Priority is the urgency of a task.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

// Priorities returns all priorities from lowest to highest.
func Priorities() []Priority {
	return []Priority{PriorityLow, PriorityMedium, PriorityHigh}
}

// Label returns the display name of the priority.
func (p Priority) Label() string {
	switch p {
	case PriorityLow:
		return "Low"
	case PriorityMedium:
		return "Medium"
	case PriorityHigh:
		return "High"
	default:
		return "Unknown"
	}
}

// Color returns the hex color associated with the priority.
func (p Priority) Color() string {
	switch p {
	case PriorityLow:
		return "#4CAF50"
	case PriorityMedium:
		return "#FF9800"
	case PriorityHigh:
		return "#F44336"
	default:
		return "#9E9E9E"
	}
}

// String implements fmt.Stringer.
func (p Priority) String() string {
	return p.Label()
}

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// ParsePriority parses a priority name or label, case-insensitive.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low", "l":
		return PriorityLow, nil
	case "medium", "med", "m":
		return PriorityMedium, nil
	case "high", "h":
		return PriorityHigh, nil
	}
	return "", fmt.Errorf("unknown priority: %q", s)
}

// Task represents a todo item
type Task struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title" validate:"notblank,max=255"`
	Description string     `json:"description" validate:"max=500"`
	Priority    Priority   `json:"priority" validate:"required,oneof=LOW MEDIUM HIGH"`
	Completed   bool       `json:"completed"`
	CreatedAt   time.Time  `json:"created_at"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at,omitzero"`
}

// NewTask creates a transient task (id 0) stamped with the current time.
func NewTask(title, description string, priority Priority, dueDate *time.Time) *Task {
	return &Task{
		Title:       title,
		Description: description,
		Priority:    priority,
		CreatedAt:   time.Now(),
		DueDate:     copyTime(dueDate),
	}
}

// IsOverdue reports whether the task is past due and still open at now.
func (t *Task) IsOverdue(now time.Time) bool {
	return t.DueDate != nil && t.DueDate.Before(now) && !t.Completed
}

// Reminds reports whether the task is eligible for a reminder: open and due.
func (t *Task) Reminds() bool {
	return t.DueDate != nil && !t.Completed
}

// Clone returns a deep copy of the task.
func (t Task) Clone() Task {
	t.DueDate = copyTime(t.DueDate)
	return t
}

// FormattedDueDate returns the due date for display.
func (t *Task) FormattedDueDate() string {
	if t.DueDate == nil {
		return "No due date"
	}
	return t.DueDate.Local().Format(DisplayLayout)
}

// FormattedCreatedAt returns the creation time for display.
func (t *Task) FormattedCreatedAt() string {
	return t.CreatedAt.Local().Format(DisplayLayout)
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

// ErrValidation is the sentinel wrapped by every ValidationError.
var ErrValidation = errors.New("invalid task")

// FieldError describes one failed constraint.
type FieldError struct {
	Field string
	Rule  string
	Param string
}

// Message renders the constraint failure for humans.
func (f FieldError) Message() string {
	switch f.Rule {
	case "notblank", "required":
		return fmt.Sprintf("%s is required", f.Field)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", f.Field, f.Param)
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", f.Field, f.Param)
	default:
		return fmt.Sprintf("%s failed %s", f.Field, f.Rule)
	}
}

// ValidationError is returned when a task violates its structural constraints.
// It is the only error the task service surfaces to callers.
type ValidationError struct {
	Fields []FieldError
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Message())
	}
	return fmt.Sprintf("%s: %s", ErrValidation.Error(), strings.Join(msgs, "; "))
}

// Unwrap lets errors.Is match ErrValidation.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

// Validate checks the task's structural constraints.
func (t *Task) Validate() error {
	if t == nil {
		return &ValidationError{Fields: []FieldError{{Field: "task", Rule: "required"}}}
	}
	err := validate.Struct(t)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	out := &ValidationError{}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{Field: fe.Field(), Rule: fe.Tag(), Param: fe.Param()})
	}
	return out
}
