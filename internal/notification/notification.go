// Package notification delivers reminder and store alerts to the desktop and
// to a rotating log file.
package notification

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NotificationType identifies the type of notification
type NotificationType string

const (
	NotifyReminder     NotificationType = "reminder"
	NotifyStoreOffline NotificationType = "store_offline"
	NotifyTest         NotificationType = "test"
)

// Notification represents a notification to be sent
type Notification struct {
	ID        string
	Type      NotificationType
	Title     string
	Message   string
	Timestamp time.Time
	Metadata  map[string]string
}

// NotificationManager is the interface for managing notifications
type NotificationManager interface {
	Send(n Notification) error
	SendAsync(n Notification)
	Close() error
	ChannelCount() int
}

// NotificationChannel is the interface for a notification channel
type NotificationChannel interface {
	Send(n Notification) error
	Close() error
}

// Config holds the notification configuration
type Config struct {
	Enabled         bool
	OSNotification  OSNotificationConfig
	LogNotification LogNotificationConfig
}

// OSNotificationConfig holds OS notification configuration
type OSNotificationConfig struct {
	Enabled        bool
	OnReminder     bool
	OnStoreOffline bool
}

// LogNotificationConfig holds log notification configuration
type LogNotificationConfig struct {
	Enabled    bool
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// New builds a notification with a fresh correlation id and the current time.
func New(t NotificationType, title, message string) Notification {
	return Notification{
		ID:        uuid.NewString(),
		Type:      t,
		Title:     title,
		Message:   message,
		Timestamp: time.Now(),
		Metadata:  map[string]string{},
	}
}

// Reminder builds the "task due soon" notification.
func Reminder(taskID int64, title string, due time.Time, lead time.Duration) Notification {
	n := New(NotifyReminder, "Task Reminder",
		fmt.Sprintf("'%s' is due in %s!\nDue: %s", title, HumanDuration(lead), due.Local().Format("Jan 02, 2006 15:04")))
	n.Metadata["task_id"] = fmt.Sprintf("%d", taskID)
	n.Metadata["due"] = due.UTC().Format(time.RFC3339)
	return n
}

// StoreOffline builds the one-time alert raised when the store becomes unavailable.
func StoreOffline(op string, cause error) Notification {
	msg := "Database connection failed. Changes will be kept in memory only."
	n := New(NotifyStoreOffline, "Working Offline", msg)
	n.Metadata["operation"] = op
	if cause != nil {
		n.Metadata["error"] = cause.Error()
	}
	return n
}

// Test builds the notification sent by "notify test".
func Test() Notification {
	return New(NotifyTest, "remindo", "Test notification")
}

// HumanDuration renders d as "5 minutes", "1 hour", "90 seconds".
func HumanDuration(d time.Duration) string {
	plural := func(n int64, unit string) string {
		if n == 1 {
			return fmt.Sprintf("1 %s", unit)
		}
		return fmt.Sprintf("%d %ss", n, unit)
	}
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		return plural(int64(d/time.Hour), "hour")
	case d >= time.Minute && d%time.Minute == 0:
		return plural(int64(d/time.Minute), "minute")
	default:
		return plural(int64(d.Round(time.Second)/time.Second), "second")
	}
}

// CommandExecutor is the interface for executing system commands
type CommandExecutor interface {
	Execute(cmd string, args ...string) error
}

// MockCommandExecutor is a mock implementation of CommandExecutor for testing
type MockCommandExecutor struct {
	ExecuteFunc func(cmd string, args ...string) error
}

// Execute implements CommandExecutor
func (m *MockCommandExecutor) Execute(cmd string, args ...string) error {
	if m.ExecuteFunc != nil {
		return m.ExecuteFunc(cmd, args...)
	}
	return nil
}

// Option is a functional option for configuring notification channels
type Option func(interface{})

// WithCommandExecutor sets a custom command executor
func WithCommandExecutor(executor CommandExecutor) Option {
	return func(c interface{}) {
		if ch, ok := c.(*osNotificationChannel); ok {
			ch.executor = executor
		}
		if mgr, ok := c.(*manager); ok {
			mgr.commandExecutor = executor
		}
	}
}

// WithPlatform sets the platform for OS notifications
func WithPlatform(platform string) Option {
	return func(c interface{}) {
		if ch, ok := c.(*osNotificationChannel); ok {
			ch.platform = platform
		}
		if mgr, ok := c.(*manager); ok {
			mgr.platform = platform
		}
	}
}

// WithSendCallback sets a callback to be called when a notification is sent
func WithSendCallback(callback func(Notification)) Option {
	return func(c interface{}) {
		if ch, ok := c.(*osNotificationChannel); ok {
			ch.sendCallback = callback
		}
		if mgr, ok := c.(*manager); ok {
			mgr.sendCallback = callback
		}
	}
}

// WithChannel adds an extra channel to a manager.
func WithChannel(ch NotificationChannel) Option {
	return func(c interface{}) {
		if mgr, ok := c.(*manager); ok {
			mgr.channels = append(mgr.channels, ch)
		}
	}
}
