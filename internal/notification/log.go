package notification

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// logNotificationChannel writes notifications to a size-rotated log file
type logNotificationChannel struct {
	config *LogNotificationConfig
	out    *lumberjack.Logger
	mu     sync.Mutex
}

// NewLogNotificationChannel creates a new log notification channel
func NewLogNotificationChannel(cfg *LogNotificationConfig) NotificationChannel {
	return &logNotificationChannel{
		config: cfg,
		out: &lumberjack.Logger{
			Filename:   cfg.Path,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
		},
	}
}

// Send writes a notification to the log file
func (c *logNotificationChannel) Send(n Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Format: 2026-01-16T10:30:00Z [REMINDER] Message
	typeStr := strings.ToUpper(string(n.Type))
	msg := strings.ReplaceAll(n.Message, "\n", " | ")
	line := fmt.Sprintf("%s [%s] %s\n", n.Timestamp.UTC().Format("2006-01-02T15:04:05Z"), typeStr, msg)

	if _, err := c.out.Write([]byte(line)); err != nil {
		return fmt.Errorf("failed to write notification: %w", err)
	}
	return nil
}

// Close closes the log file
func (c *logNotificationChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.out.Close()
}

// ReadLog reads and returns all entries from the log file
func ReadLog(path string) ([]string, error) {
	file, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()

	var entries []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		entries = append(entries, scanner.Text())
	}

	return entries, scanner.Err()
}

// ClearLog clears the log file
func ClearLog(path string) error {
	return os.WriteFile(path, []byte{}, 0644)
}
