package utils

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// defaultBackgroundLoggingEnabled is the default value when no config is available.
// The runtime config option logging.file overrides this default.
const defaultBackgroundLoggingEnabled = true

// Logger provides leveled logging with verbose mode support.
type Logger struct {
	verbose bool
	out     io.Writer
	mu      sync.RWMutex
}

var (
	loggerInstance *Logger
	once           sync.Once
)

// GetLogger returns the singleton logger instance.
func GetLogger() *Logger {
	once.Do(func() {
		loggerInstance = &Logger{
			verbose: false,
		}
	})
	return loggerInstance
}

// NewLogger creates a standalone logger writing to out.
func NewLogger(out io.Writer, verbose bool) *Logger {
	return &Logger{out: out, verbose: verbose}
}

// SetVerboseMode sets the verbose mode globally.
func SetVerboseMode(verbose bool) {
	logger := GetLogger()
	logger.SetVerbose(verbose)
}

// SetVerbose sets the verbose mode for this logger instance.
func (l *Logger) SetVerbose(verbose bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.verbose = verbose
}

// IsVerbose returns whether verbose mode is enabled.
func (l *Logger) IsVerbose() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.verbose
}

// SetOutput redirects log output. A nil writer restores stderr.
func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.out = w
}

func (l *Logger) writer() io.Writer {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.out == nil {
		return os.Stderr
	}
	return l.out
}

// formatMessage formats a message with optional printf-style arguments.
func formatMessage(msgOrFormat string, args ...interface{}) string {
	if len(args) > 0 {
		return fmt.Sprintf(msgOrFormat, args...)
	}
	return msgOrFormat
}

// Debug logs a debug message (only shown when verbose=true).
// Can be used with a simple message or printf-style format string with args.
func (l *Logger) Debug(msgOrFormat string, args ...interface{}) {
	if !l.IsVerbose() {
		return
	}
	fmt.Fprintf(l.writer(), "%s [DEBUG] %s\n", time.Now().Format("15:04:05"), formatMessage(msgOrFormat, args...))
}

// Info logs an info message (always shown).
func (l *Logger) Info(msgOrFormat string, args ...interface{}) {
	fmt.Fprintf(l.writer(), "[INFO] %s\n", formatMessage(msgOrFormat, args...))
}

// Warn logs a warning message (always shown).
func (l *Logger) Warn(msgOrFormat string, args ...interface{}) {
	fmt.Fprintf(l.writer(), "[WARN] %s\n", formatMessage(msgOrFormat, args...))
}

// Error logs an error message (always shown).
func (l *Logger) Error(msgOrFormat string, args ...interface{}) {
	fmt.Fprintf(l.writer(), "[ERROR] %s\n", formatMessage(msgOrFormat, args...))
}

// Debugf is a convenience function that logs a debug message using the global logger.
func Debugf(format string, args ...interface{}) {
	GetLogger().Debug(format, args...)
}

// Infof is a convenience function that logs an info message using the global logger.
func Infof(format string, args ...interface{}) {
	GetLogger().Info(format, args...)
}

// Warnf is a convenience function that logs a warning message using the global logger.
func Warnf(format string, args ...interface{}) {
	GetLogger().Warn(format, args...)
}

// Errorf is a convenience function that logs an error message using the global logger.
func Errorf(format string, args ...interface{}) {
	GetLogger().Error(format, args...)
}

// BackgroundLogger writes long-running process logs to a size-rotated file.
type BackgroundLogger struct {
	logger   *log.Logger
	out      *lumberjack.Logger
	enabled  bool
	filePath string
}

// DefaultBackgroundLogPath returns the log path used when none is configured.
func DefaultBackgroundLogPath() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "remindo", "remindo.log")
	}
	return filepath.Join(os.TempDir(), "remindo.log")
}

// NewBackgroundLogger creates a background logger at the default path.
func NewBackgroundLogger() (*BackgroundLogger, error) {
	return NewBackgroundLoggerWithEnabled(defaultBackgroundLoggingEnabled)
}

// NewBackgroundLoggerWithEnabled creates a background logger with explicit enabled control.
func NewBackgroundLoggerWithEnabled(enabled bool) (*BackgroundLogger, error) {
	if !enabled {
		return &BackgroundLogger{
			logger:  log.New(io.Discard, "", log.LstdFlags),
			enabled: false,
		}, nil
	}
	return NewBackgroundLoggerWithPath(DefaultBackgroundLogPath())
}

// NewBackgroundLoggerWithPath creates a background logger with a custom path.
// Files rotate at 10 MB and three backups are kept.
func NewBackgroundLoggerWithPath(path string) (*BackgroundLogger, error) {
	bl := &BackgroundLogger{
		filePath: path,
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		// Gracefully degrade to io.Discard
		bl.logger = log.New(io.Discard, "", log.LstdFlags)
		bl.enabled = false
		return bl, err
	}

	bl.out = &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     28,
	}
	bl.logger = log.New(bl.out, "", log.LstdFlags)
	bl.enabled = true
	return bl, nil
}

// Writer returns the destination for mirroring a Logger into the file.
func (bl *BackgroundLogger) Writer() io.Writer {
	if bl.out == nil {
		return io.Discard
	}
	return bl.out
}

// Printf logs a formatted message.
func (bl *BackgroundLogger) Printf(format string, args ...interface{}) {
	if bl.logger != nil {
		bl.logger.Printf(format, args...)
	}
}

// Println logs a message with a newline.
func (bl *BackgroundLogger) Println(args ...interface{}) {
	if bl.logger != nil {
		bl.logger.Println(args...)
	}
}

// Close closes the log file.
func (bl *BackgroundLogger) Close() {
	if bl.out != nil {
		_ = bl.out.Close()
		bl.out = nil
	}
	// After close, switch to io.Discard for graceful degradation
	bl.logger = log.New(io.Discard, "", log.LstdFlags)
	bl.enabled = false
}

// GetLogPath returns the log file path.
func (bl *BackgroundLogger) GetLogPath() string {
	return bl.filePath
}

// IsEnabled returns whether background logging is enabled.
func (bl *BackgroundLogger) IsEnabled() bool {
	return bl.enabled
}
