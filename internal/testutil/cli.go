// Package testutil provides shared test utilities for CLI testing across packages.
package testutil

import (
	"bytes"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"remindo/cmd/remindo/cmd"
	"remindo/internal/credentials"

	_ "modernc.org/sqlite"
)

// testConfig keeps every file inside the test's temp dir and turns off
// desktop notifications and the file watcher.
const testConfig = `store:
  driver: sqlite
  sqlite:
    path: %s
reminder:
  enabled: true
  lead_time: 5m
  sweep_interval: 1m
  snooze: 10m
  workers: 1
notification:
  os:
    enabled: false
  log:
    enabled: true
    path: %s
logging:
  verbose: false
  file: false
watch:
  enabled: false
`

// CLITest provides a test helper for running CLI commands in isolation.
type CLITest struct {
	t          *testing.T
	cfg        *cmd.Config
	tmpDir     string
	configPath string
	dbPath     string
	logPath    string
	keyring    *credentials.MockKeyring
	env        map[string]string
}

// NewCLITest creates a CLI test helper backed by a fresh SQLite database in a
// temp dir. XDG directories are redirected so nothing touches the real home.
func NewCLITest(t *testing.T) *CLITest {
	t.Helper()

	tmpDir := t.TempDir()
	for _, v := range []string{"XDG_CONFIG_HOME", "XDG_DATA_HOME", "XDG_CACHE_HOME"} {
		t.Setenv(v, filepath.Join(tmpDir, strings.ToLower(strings.TrimPrefix(v, "XDG_"))))
	}

	c := &CLITest{
		t:          t,
		tmpDir:     tmpDir,
		configPath: filepath.Join(tmpDir, "config.yaml"),
		dbPath:     filepath.Join(tmpDir, "test.db"),
		logPath:    filepath.Join(tmpDir, "notifications.log"),
		keyring:    credentials.NewMockKeyring(),
		env:        map[string]string{},
	}
	c.SetFullConfig(fmt.Sprintf(testConfig, c.dbPath, c.logPath))

	c.cfg = &cmd.Config{
		NoPrompt:   true,
		ConfigPath: c.configPath,
		Keyring:    c.keyring,
		Env:        func(key string) string { return c.env[key] },
	}
	return c
}

// Config returns the test configuration.
func (c *CLITest) Config() *cmd.Config {
	return c.cfg
}

// TmpDir returns the temporary directory for the test.
func (c *CLITest) TmpDir() string {
	return c.tmpDir
}

// ConfigPath returns the path to the config file.
func (c *CLITest) ConfigPath() string {
	return c.configPath
}

// DBPath returns the path to the SQLite database.
func (c *CLITest) DBPath() string {
	return c.dbPath
}

// Keyring returns the in-memory keyring used by credential commands.
func (c *CLITest) Keyring() *credentials.MockKeyring {
	return c.keyring
}

// SetEnv sets a variable seen by the credential lookup.
func (c *CLITest) SetEnv(key, value string) {
	c.env[key] = value
}

// SetFullConfig replaces the entire config file with the given YAML content.
func (c *CLITest) SetFullConfig(yamlContent string) {
	c.t.Helper()
	if err := os.WriteFile(c.configPath, []byte(yamlContent), 0644); err != nil {
		c.t.Fatalf("failed to write config file: %v", err)
	}
}

// ReplaceConfig substitutes old with new in the config file.
func (c *CLITest) ReplaceConfig(old, new string) {
	c.t.Helper()
	data, err := os.ReadFile(c.configPath)
	if err != nil {
		c.t.Fatalf("failed to read config file: %v", err)
	}
	if !strings.Contains(string(data), old) {
		c.t.Fatalf("config does not contain %q", old)
	}
	c.SetFullConfig(strings.Replace(string(data), old, new, 1))
}

// SetClock fixes the time seen by commands.
func (c *CLITest) SetClock(now time.Time) {
	c.cfg.Now = func() time.Time { return now }
}

// SetStdin feeds input to prompts. Interactive prompts are enabled.
func (c *CLITest) SetStdin(input string) {
	c.cfg.Stdin = strings.NewReader(input)
	c.cfg.NoPrompt = false
}

// NotificationLog returns the contents of the notification log.
func (c *CLITest) NotificationLog() string {
	data, err := os.ReadFile(c.logPath)
	if err != nil {
		return ""
	}
	return string(data)
}

// OpenDB opens the test database directly, bypassing the CLI.
func (c *CLITest) OpenDB() *sql.DB {
	c.t.Helper()
	db, err := sql.Open("sqlite", c.dbPath)
	if err != nil {
		c.t.Fatalf("failed to open database: %v", err)
	}
	c.t.Cleanup(func() { _ = db.Close() })
	return db
}

// Execute runs a CLI command with the given arguments and returns stdout, stderr, and exit code.
func (c *CLITest) Execute(args ...string) (stdout, stderr string, exitCode int) {
	c.t.Helper()

	var stdoutBuf, stderrBuf bytes.Buffer
	exitCode = cmd.Execute(args, &stdoutBuf, &stderrBuf, c.cfg)
	return stdoutBuf.String(), stderrBuf.String(), exitCode
}

// MustExecute runs a CLI command and fails the test if exit code is non-zero.
func (c *CLITest) MustExecute(args ...string) string {
	c.t.Helper()

	stdout, stderr, exitCode := c.Execute(args...)
	if exitCode != 0 {
		c.t.Fatalf("expected exit code 0, got %d: stdout=%s stderr=%s", exitCode, stdout, stderr)
	}
	return stdout
}

// ExecuteAndFail runs a CLI command and fails the test if exit code is zero.
func (c *CLITest) ExecuteAndFail(args ...string) (stdout, stderr string) {
	c.t.Helper()

	stdout, stderr, exitCode := c.Execute(args...)
	if exitCode == 0 {
		c.t.Fatalf("expected non-zero exit code, got 0: stdout=%s", stdout)
	}
	return stdout, stderr
}

// AssertContains fails the test if output doesn't contain expected string.
func AssertContains(t *testing.T, output, expected string) {
	t.Helper()
	if !strings.Contains(output, expected) {
		t.Errorf("expected output to contain %q, got:\n%s", expected, output)
	}
}

// AssertNotContains fails the test if output contains unexpected string.
func AssertNotContains(t *testing.T, output, unexpected string) {
	t.Helper()
	if strings.Contains(output, unexpected) {
		t.Errorf("expected output NOT to contain %q, got:\n%s", unexpected, output)
	}
}

// AssertExitCode fails the test if exit code doesn't match expected.
func AssertExitCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("expected exit code %d, got %d", want, got)
	}
}

// AssertResultCode verifies that the output ends with the expected result code.
func AssertResultCode(t *testing.T, output, expectedCode string) {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(output), "\n")
	lastLine := strings.TrimSpace(lines[len(lines)-1])
	if lastLine != expectedCode {
		t.Errorf("expected result code %q, got %q\nFull output:\n%s", expectedCode, lastLine, output)
	}
}

// Result code constants for convenience.
const (
	ResultActionCompleted = cmd.ResultActionCompleted
	ResultInfoOnly        = cmd.ResultInfoOnly
	ResultError           = cmd.ResultError
)
