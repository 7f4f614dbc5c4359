package reminder

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Defaults used when a Config field is zero.
const (
	DefaultLeadTime       = 5 * time.Minute
	DefaultSweepInterval  = time.Minute
	DefaultSnoozeDuration = 10 * time.Minute
	DefaultWorkers        = 2
	DefaultQueueSize      = 64
)

// Config holds the scheduler settings
type Config struct {
	// LeadTime is how long before the due time a reminder fires.
	LeadTime time.Duration `yaml:"lead_time" json:"lead_time"`
	// SweepInterval is the period of the backstop scan.
	SweepInterval time.Duration `yaml:"sweep_interval" json:"sweep_interval"`
	// SnoozeDuration is used when a snooze response carries no duration.
	SnoozeDuration time.Duration `yaml:"snooze" json:"snooze"`
	// Workers is the number of concurrent deliveries.
	Workers int `yaml:"workers" json:"workers"`
	// QueueSize bounds fired reminders waiting for a worker.
	QueueSize int `yaml:"queue_size" json:"queue_size"`
}

// DefaultConfig returns the stock scheduler settings.
func DefaultConfig() Config {
	return Config{
		LeadTime:       DefaultLeadTime,
		SweepInterval:  DefaultSweepInterval,
		SnoozeDuration: DefaultSnoozeDuration,
		Workers:        DefaultWorkers,
		QueueSize:      DefaultQueueSize,
	}
}

// withDefaults fills zero fields.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.LeadTime <= 0 {
		c.LeadTime = d.LeadTime
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = d.SweepInterval
	}
	if c.SnoozeDuration <= 0 {
		c.SnoozeDuration = d.SnoozeDuration
	}
	if c.Workers <= 0 {
		c.Workers = d.Workers
	}
	if c.QueueSize <= 0 {
		c.QueueSize = d.QueueSize
	}
	return c
}

var intervalPattern = regexp.MustCompile(`^(\d+)\s*(s|sec|secs|second|seconds|m|min|mins|minute|minutes|h|hour|hours|d|day|days|w|week|weeks)$`)

// ParseDuration accepts Go durations ("90s", "1h30m") and the word forms
// "15 minutes", "1 hour", "2d", "1 week".
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if d, err := time.ParseDuration(s); err == nil {
		if d <= 0 {
			return 0, fmt.Errorf("duration must be positive: %s", s)
		}
		return d, nil
	}

	matches := intervalPattern.FindStringSubmatch(s)
	if matches == nil {
		return 0, fmt.Errorf("invalid duration format: %s", s)
	}

	num, _ := strconv.Atoi(matches[1])
	if num <= 0 {
		return 0, fmt.Errorf("duration must be positive: %s", s)
	}

	var unit time.Duration
	switch matches[2] {
	case "s", "sec", "secs", "second", "seconds":
		unit = time.Second
	case "m", "min", "mins", "minute", "minutes":
		unit = time.Minute
	case "h", "hour", "hours":
		unit = time.Hour
	case "d", "day", "days":
		unit = 24 * time.Hour
	case "w", "week", "weeks":
		unit = 7 * 24 * time.Hour
	}
	return time.Duration(num) * unit, nil
}
