package utils

import (
	"errors"
	"fmt"
	"strings"
)

var errInvalidRange = errors.New("start of range is after its end")

// ErrorWithSuggestion wraps an error with a user-friendly suggestion.
type ErrorWithSuggestion struct {
	Err        error
	Suggestion string
}

// Error implements the error interface.
func (e *ErrorWithSuggestion) Error() string {
	return fmt.Sprintf("%s\n\nSuggestion: %s", e.Err.Error(), e.Suggestion)
}

// GetSuggestion returns the suggestion text.
func (e *ErrorWithSuggestion) GetSuggestion() string {
	return e.Suggestion
}

// Unwrap returns the underlying error for error chain support.
func (e *ErrorWithSuggestion) Unwrap() error {
	return e.Err
}

// WrapWithSuggestion wraps an existing error with a suggestion.
func WrapWithSuggestion(err error, suggestion string) error {
	return &ErrorWithSuggestion{
		Err:        err,
		Suggestion: suggestion,
	}
}

// ErrTaskNotFound returns an error for when a task is not found.
func ErrTaskNotFound(id int64) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("task not found: %d", id),
		Suggestion: "Use 'remindo list' to see all tasks and their ids",
	}
}

// ErrInvalidTaskID returns an error for an argument that is not a task id.
func ErrInvalidTaskID(arg string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("invalid task id: %s", arg),
		Suggestion: "Task ids are positive integers shown by 'remindo list'",
	}
}

// ErrStoreOffline returns an error describing why the store could not be opened.
func ErrStoreOffline(driver, reason string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("%s store is offline: %s", driver, reason),
		Suggestion: getSmartSuggestion(reason),
	}
}

// getSmartSuggestion returns a context-aware suggestion based on the error reason.
func getSmartSuggestion(reason string) string {
	lowerReason := strings.ToLower(reason)

	if strings.Contains(lowerReason, "no such host") || strings.Contains(lowerReason, "dns") {
		return "Check the database host name and your network connection"
	}

	if strings.Contains(lowerReason, "connection refused") {
		return "Check if the database server is running and accessible"
	}

	if strings.Contains(lowerReason, "timeout") {
		return "The database may be slow or unreachable. Try again later"
	}

	if strings.Contains(lowerReason, "password authentication failed") {
		return "Update the stored password with 'remindo credentials set <user>'"
	}

	return "Changes are kept in memory until the next restart with a working store"
}

// ErrInvalidPriority returns an error for an invalid priority value.
func ErrInvalidPriority(priority string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("invalid priority: %s", priority),
		Suggestion: "Priority must be one of: low, medium, high",
	}
}

// ErrInvalidDate returns an error for an invalid date string.
func ErrInvalidDate(dateStr string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("invalid date: %s", dateStr),
		Suggestion: "Use YYYY-MM-DD, YYYY-MM-DD HH:MM, +2h, or phrases like 'tomorrow at 9am'",
	}
}

// ErrInvalidField returns an error for a task that failed validation.
func ErrInvalidField(err error) error {
	return &ErrorWithSuggestion{
		Err:        err,
		Suggestion: "Titles are required (max 255 characters); descriptions are limited to 500 characters",
	}
}

// ErrCredentialsNotFound returns an error when credentials are missing.
func ErrCredentialsNotFound(user string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("credentials not found for database user %s", user),
		Suggestion: fmt.Sprintf("Run 'remindo credentials set %s' or set DB_PASSWORD", user),
	}
}
