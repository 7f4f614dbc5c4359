package notification_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"remindo/internal/notification"
)

// =============================================================================
// Unit Tests - Builders
// =============================================================================

// TestReminderMessage verifies the reminder text and metadata
func TestReminderMessage(t *testing.T) {
	due := time.Date(2026, 5, 1, 9, 30, 0, 0, time.Local)
	n := notification.Reminder(42, "Pay rent", due, 5*time.Minute)

	if n.Type != notification.NotifyReminder {
		t.Errorf("Type = %q", n.Type)
	}
	if !strings.HasPrefix(n.Message, "'Pay rent' is due in 5 minutes!") {
		t.Errorf("Message = %q", n.Message)
	}
	if !strings.Contains(n.Message, "Due: May 01, 2026 09:30") {
		t.Errorf("Message missing due line: %q", n.Message)
	}
	if n.Metadata["task_id"] != "42" {
		t.Errorf("task_id = %q", n.Metadata["task_id"])
	}
	if n.ID == "" {
		t.Error("expected correlation id")
	}
}

// TestStoreOfflineMetadata verifies the offline alert carries the cause
func TestStoreOfflineMetadata(t *testing.T) {
	n := notification.StoreOffline("insert", errors.New("connection refused"))
	if n.Type != notification.NotifyStoreOffline {
		t.Errorf("Type = %q", n.Type)
	}
	if n.Metadata["operation"] != "insert" || n.Metadata["error"] != "connection refused" {
		t.Errorf("Metadata = %v", n.Metadata)
	}
}

// TestHumanDuration verifies lead time rendering
func TestHumanDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{5 * time.Minute, "5 minutes"},
		{time.Minute, "1 minute"},
		{time.Hour, "1 hour"},
		{2 * time.Hour, "2 hours"},
		{90 * time.Second, "90 seconds"},
		{time.Second, "1 second"},
	}
	for _, tt := range tests {
		if got := notification.HumanDuration(tt.in); got != tt.want {
			t.Errorf("HumanDuration(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// =============================================================================
// Unit Tests - OS Notification (with mock command executor)
// =============================================================================

// TestOSNotificationLinux tests that OS notification is sent via notify-send on Linux
func TestOSNotificationLinux(t *testing.T) {
	var executedCmd string
	var executedArgs []string

	mock := &notification.MockCommandExecutor{
		ExecuteFunc: func(cmd string, args ...string) error {
			executedCmd = cmd
			executedArgs = args
			return nil
		},
	}

	channel := notification.NewOSNotificationChannel(
		&notification.OSNotificationConfig{Enabled: true, OnReminder: true, OnStoreOffline: true},
		notification.WithCommandExecutor(mock),
		notification.WithPlatform("linux"),
	)

	n := notification.Reminder(1, "Stand-up", time.Now().Add(5*time.Minute), 5*time.Minute)
	if err := channel.Send(n); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if executedCmd != "notify-send" {
		t.Errorf("expected notify-send command, got %q", executedCmd)
	}
	argsStr := strings.Join(executedArgs, " ")
	if !strings.Contains(argsStr, "Task Reminder") {
		t.Errorf("expected args to contain title, got %v", executedArgs)
	}
	if !strings.Contains(argsStr, "'Stand-up' is due") {
		t.Errorf("expected args to contain message, got %v", executedArgs)
	}
	if !strings.Contains(argsStr, "--urgency=critical") {
		t.Errorf("expected reminders to be critical, got %v", executedArgs)
	}
}

// TestOSNotificationDarwin tests that OS notification is sent via osascript on macOS
func TestOSNotificationDarwin(t *testing.T) {
	var executedCmd string
	var executedArgs []string

	mock := &notification.MockCommandExecutor{
		ExecuteFunc: func(cmd string, args ...string) error {
			executedCmd = cmd
			executedArgs = args
			return nil
		},
	}

	channel := notification.NewOSNotificationChannel(
		&notification.OSNotificationConfig{Enabled: true, OnReminder: true, OnStoreOffline: true},
		notification.WithCommandExecutor(mock),
		notification.WithPlatform("darwin"),
	)

	if err := channel.Send(notification.New(notification.NotifyStoreOffline, `Say "hi"`, "offline")); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if executedCmd != "osascript" {
		t.Errorf("expected osascript command, got %q", executedCmd)
	}
	argsStr := strings.Join(executedArgs, " ")
	if !strings.Contains(argsStr, "display notification") {
		t.Errorf("expected args to contain 'display notification', got %v", executedArgs)
	}
	if !strings.Contains(argsStr, `Say \"hi\"`) {
		t.Errorf("expected escaped quotes, got %v", executedArgs)
	}
}

// TestOSNotificationWindowsEscaping verifies PowerShell metacharacters are escaped
func TestOSNotificationWindowsEscaping(t *testing.T) {
	var script string
	mock := &notification.MockCommandExecutor{
		ExecuteFunc: func(cmd string, args ...string) error {
			script = args[len(args)-1]
			return nil
		},
	}

	channel := notification.NewOSNotificationChannel(
		&notification.OSNotificationConfig{Enabled: true},
		notification.WithCommandExecutor(mock),
		notification.WithPlatform("windows"),
	)
	_ = channel.Send(notification.New(notification.NotifyTest, "$(evil)", "x"))

	if !strings.Contains(script, "`$(evil)") {
		t.Errorf("expected escaped dollar sign in script:\n%s", script)
	}
}

// TestOSNotificationUnsupportedPlatform verifies an error for unknown platforms
func TestOSNotificationUnsupportedPlatform(t *testing.T) {
	channel := notification.NewOSNotificationChannel(
		&notification.OSNotificationConfig{Enabled: true},
		notification.WithCommandExecutor(&notification.MockCommandExecutor{}),
		notification.WithPlatform("plan9"),
	)
	if err := channel.Send(notification.Test()); err == nil {
		t.Error("expected error for unsupported platform")
	}
}

// TestNotificationTypeFiltering tests that notification types are filtered based on config
func TestNotificationTypeFiltering(t *testing.T) {
	var sent []notification.Notification

	channel := notification.NewOSNotificationChannel(
		&notification.OSNotificationConfig{Enabled: true, OnReminder: true, OnStoreOffline: false},
		notification.WithCommandExecutor(&notification.MockCommandExecutor{}),
		notification.WithPlatform("linux"),
		notification.WithSendCallback(func(n notification.Notification) {
			sent = append(sent, n)
		}),
	)

	_ = channel.Send(notification.StoreOffline("update", nil))
	_ = channel.Send(notification.Reminder(1, "x", time.Now(), time.Minute))

	if len(sent) != 1 {
		t.Fatalf("expected 1 notification sent, got %d", len(sent))
	}
	if sent[0].Type != notification.NotifyReminder {
		t.Errorf("expected reminder to be sent, got %s", sent[0].Type)
	}
}

// =============================================================================
// Unit Tests - Log Notification
// =============================================================================

// TestLogNotification tests that notifications are written to log file with correct format
func TestLogNotification(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "logs", "notifications.log")

	channel := notification.NewLogNotificationChannel(&notification.LogNotificationConfig{
		Enabled:    true,
		Path:       logPath,
		MaxSizeMB:  10,
		MaxBackups: 3,
		MaxAgeDays: 30,
	})

	n := notification.Notification{
		Type:      notification.NotifyReminder,
		Title:     "Task Reminder",
		Message:   "'Pay rent' is due in 5 minutes!\nDue: May 01, 2026 09:30",
		Timestamp: time.Date(2026, 1, 16, 10, 30, 0, 0, time.UTC),
	}
	if err := channel.Send(n); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := channel.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	entries, err := notification.ReadLog(logPath)
	if err != nil {
		t.Fatalf("ReadLog: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one log line, got %d: %v", len(entries), entries)
	}
	line := entries[0]
	if !strings.HasPrefix(line, "2026-01-16T10:30:00Z [REMINDER] ") {
		t.Errorf("unexpected prefix: %q", line)
	}
	if !strings.Contains(line, "Pay rent") || !strings.Contains(line, " | Due:") {
		t.Errorf("unexpected line: %q", line)
	}
}

// TestLogClear verifies ClearLog truncates and ReadLog tolerates a missing file
func TestLogClear(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "notifications.log")

	entries, err := notification.ReadLog(logPath)
	if err != nil || entries != nil {
		t.Fatalf("ReadLog(missing) = %v, %v", entries, err)
	}

	if err := os.WriteFile(logPath, []byte("a\nb\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := notification.ClearLog(logPath); err != nil {
		t.Fatalf("ClearLog: %v", err)
	}
	entries, _ = notification.ReadLog(logPath)
	if len(entries) != 0 {
		t.Errorf("expected empty log, got %v", entries)
	}
}

// =============================================================================
// Unit Tests - Manager
// =============================================================================

// TestNotificationConfig tests that configuration enables/disables notification channels
func TestNotificationConfig(t *testing.T) {
	tests := []struct {
		name             string
		osEnabled        bool
		logEnabled       bool
		expectedChannels int
	}{
		{"both enabled", true, true, 2},
		{"only os enabled", true, false, 1},
		{"only log enabled", false, true, 1},
		{"both disabled", false, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &notification.Config{
				Enabled:        true,
				OSNotification: notification.OSNotificationConfig{Enabled: tt.osEnabled, OnReminder: true},
				LogNotification: notification.LogNotificationConfig{
					Enabled:   tt.logEnabled,
					Path:      filepath.Join(t.TempDir(), "notifications.log"),
					MaxSizeMB: 10,
				},
			}

			manager, err := notification.NewManager(cfg, notification.WithCommandExecutor(&notification.MockCommandExecutor{}))
			if err != nil {
				t.Fatalf("failed to create manager: %v", err)
			}
			defer func() { _ = manager.Close() }()

			if got := manager.ChannelCount(); got != tt.expectedChannels {
				t.Errorf("expected %d channels, got %d", tt.expectedChannels, got)
			}
		})
	}
}

// TestNotificationDisabled tests that when notification.enabled is false, no notifications are sent
func TestNotificationDisabled(t *testing.T) {
	calls := 0
	manager, err := notification.NewManager(&notification.Config{Enabled: false},
		notification.WithSendCallback(func(notification.Notification) { calls++ }))
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}
	defer func() { _ = manager.Close() }()

	if err := manager.Send(notification.Test()); err != nil {
		t.Errorf("expected no error for disabled notifications, got %v", err)
	}
	if calls != 0 {
		t.Errorf("disabled manager dispatched %d notifications", calls)
	}
}

// TestSendAsyncFlushedOnClose verifies Close waits for in-flight async sends
func TestSendAsyncFlushedOnClose(t *testing.T) {
	var mu sync.Mutex
	var cmds []string
	mock := &notification.MockCommandExecutor{
		ExecuteFunc: func(cmd string, args ...string) error {
			time.Sleep(20 * time.Millisecond)
			mu.Lock()
			cmds = append(cmds, cmd)
			mu.Unlock()
			return nil
		},
	}

	manager, err := notification.NewManager(&notification.Config{
		Enabled:        true,
		OSNotification: notification.OSNotificationConfig{Enabled: true, OnReminder: true},
	}, notification.WithCommandExecutor(mock), notification.WithPlatform("linux"))
	if err != nil {
		t.Fatal(err)
	}

	manager.SendAsync(notification.Test())
	manager.SendAsync(notification.Test())
	if err := manager.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(cmds) != 2 {
		t.Errorf("expected 2 sends before Close returned, got %d", len(cmds))
	}
}

// TestSendReturnsChannelError verifies channel failures surface from Send
func TestSendReturnsChannelError(t *testing.T) {
	boom := errors.New("no notify-send")
	manager, _ := notification.NewManager(&notification.Config{
		Enabled:        true,
		OSNotification: notification.OSNotificationConfig{Enabled: true},
	},
		notification.WithCommandExecutor(&notification.MockCommandExecutor{
			ExecuteFunc: func(string, ...string) error { return boom },
		}),
		notification.WithPlatform("linux"),
	)
	defer func() { _ = manager.Close() }()

	if err := manager.Send(notification.Test()); !errors.Is(err, boom) {
		t.Errorf("Send() = %v, want %v", err, boom)
	}
}
