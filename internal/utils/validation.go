package utils

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"

	"remindo/backend"
)

// ValidatePriority parses a priority flag value.
func ValidatePriority(priority string) (backend.Priority, error) {
	p, err := backend.ParsePriority(priority)
	if err != nil {
		return "", ErrInvalidPriority(priority)
	}
	return p, nil
}

// relativePattern matches relative formats like +7d, -3d, +2w, +1m, +2h, +30min
var relativePattern = regexp.MustCompile(`^([+-])(\d+)(min|[hdwm])$`)

// absoluteLayouts are tried in order, in the local timezone.
var absoluteLayouts = []string{
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

var naturalParser = newNaturalParser()

func newNaturalParser() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}

// parseRelativeDate parses "today", "tomorrow", "yesterday" and signed offsets.
// Day-based results are midnight local time; hour and minute offsets are
// relative to now. Returns nil, nil if the string is not in this format.
func parseRelativeDate(dateStr string, now time.Time) (*time.Time, error) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local)

	lower := strings.ToLower(dateStr)

	switch lower {
	case "today":
		return &today, nil
	case "tomorrow":
		t := today.AddDate(0, 0, 1)
		return &t, nil
	case "yesterday":
		t := today.AddDate(0, 0, -1)
		return &t, nil
	}

	matches := relativePattern.FindStringSubmatch(lower)
	if matches == nil {
		return nil, nil
	}

	num, err := strconv.Atoi(matches[2])
	if err != nil {
		return nil, ErrInvalidDate(dateStr)
	}
	if matches[1] == "-" {
		num = -num
	}

	var result time.Time
	switch matches[3] {
	case "min":
		result = now.Add(time.Duration(num) * time.Minute).Truncate(time.Minute)
	case "h":
		result = now.Add(time.Duration(num) * time.Hour).Truncate(time.Minute)
	case "d":
		result = today.AddDate(0, 0, num)
	case "w":
		result = today.AddDate(0, 0, num*7)
	case "m":
		result = today.AddDate(0, num, 0)
	}

	return &result, nil
}

// ParseDateFlag parses a due date flag relative to the current time.
func ParseDateFlag(dateStr string) (*time.Time, error) {
	return ParseDateFlagAt(dateStr, time.Now())
}

// ParseDateFlagAt parses a date string supporting, in order:
//   - absolute: YYYY-MM-DD, YYYY-MM-DD HH:MM, YYYY-MM-DDTHH:MM[:SS]
//   - relative: today, tomorrow, yesterday, +Nd, -Nd, +Nw, +Nm, +Nh, +Nmin
//   - natural language: "in 10 minutes", "tomorrow at 9am", "next friday"
//
// Returns nil, nil for an empty string (clear date).
func ParseDateFlagAt(dateStr string, now time.Time) (*time.Time, error) {
	dateStr = strings.TrimSpace(dateStr)
	if dateStr == "" {
		return nil, nil
	}

	for _, layout := range absoluteLayouts {
		if parsed, err := time.ParseInLocation(layout, dateStr, time.Local); err == nil {
			return &parsed, nil
		}
	}

	t, err := parseRelativeDate(dateStr, now)
	if err != nil {
		return nil, err
	}
	if t != nil {
		return t, nil
	}

	r, err := naturalParser.Parse(dateStr, now)
	if err != nil || r == nil {
		return nil, ErrInvalidDate(dateStr)
	}
	parsed := r.Time.Truncate(time.Minute)
	return &parsed, nil
}

// ValidateDateRange validates that start is not after end. Nil bounds are open.
func ValidateDateRange(start, end *time.Time) error {
	if start == nil || end == nil {
		return nil
	}
	if start.After(*end) {
		return WrapWithSuggestion(
			errInvalidRange,
			"Make sure --due-from is before --due-to",
		)
	}
	return nil
}
