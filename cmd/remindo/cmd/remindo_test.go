package cmd_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"remindo/cmd/remindo/cmd"
	"remindo/internal/testutil"
)

var testNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.Local)

func newCLI(t *testing.T) *testutil.CLITest {
	t.Helper()
	c := testutil.NewCLITest(t)
	c.SetClock(testNow)
	return c
}

// --- Help and Version ---

func TestHelpFlag(t *testing.T) {
	var stdout, stderr bytes.Buffer

	exitCode := cmd.Execute([]string{"--help"}, &stdout, &stderr, nil)

	testutil.AssertExitCode(t, exitCode, 0)
	testutil.AssertContains(t, stdout.String(), "remindo")
	testutil.AssertContains(t, stdout.String(), "Usage:")
}

func TestVersionFlag(t *testing.T) {
	var stdout, stderr bytes.Buffer

	exitCode := cmd.Execute([]string{"--version"}, &stdout, &stderr, nil)

	testutil.AssertExitCode(t, exitCode, 0)
	testutil.AssertContains(t, stdout.String(), "remindo version")
}

func TestUnknownCommand(t *testing.T) {
	c := newCLI(t)
	_, stderr := c.ExecuteAndFail("frobnicate")
	testutil.AssertContains(t, stderr, "unknown command")
}

// --- Tasks ---

func TestAddAndList(t *testing.T) {
	c := newCLI(t)

	out := c.MustExecute("add", "Buy", "milk", "-p", "high", "--due", "2026-03-02 10:00", "-d", "2 litres")
	testutil.AssertContains(t, out, "Added task #1: Buy milk")
	testutil.AssertContains(t, out, "Due: Mar 02, 2026 10:00")
	testutil.AssertResultCode(t, out, testutil.ResultActionCompleted)

	out = c.MustExecute("list")
	testutil.AssertContains(t, out, "#1")
	testutil.AssertContains(t, out, "High")
	testutil.AssertContains(t, out, "Buy milk")
	testutil.AssertContains(t, out, "1 task(s)")
	testutil.AssertResultCode(t, out, testutil.ResultInfoOnly)
}

func TestAddPersistsToDatabase(t *testing.T) {
	c := newCLI(t)
	c.MustExecute("add", "Water plants")

	var title, priority string
	err := c.OpenDB().QueryRow("SELECT title, priority FROM tasks WHERE id = 1").Scan(&title, &priority)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if title != "Water plants" || priority != "MEDIUM" {
		t.Errorf("got %q %q, want Water plants MEDIUM", title, priority)
	}
}

func TestAddValidation(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"blank title", []string{"add", "   "}, "task title required"},
		{"long title", []string{"add", strings.Repeat("x", 256)}, "title"},
		{"bad priority", []string{"add", "Task", "-p", "urgent"}, "priority"},
		{"bad due date", []string{"add", "Task", "--due", "someday maybe"}, "date"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newCLI(t)
			stdout, stderr := c.ExecuteAndFail(tt.args...)
			testutil.AssertContains(t, strings.ToLower(stderr), tt.want)
			testutil.AssertResultCode(t, stdout, testutil.ResultError)
		})
	}
}

func TestAddInteractive(t *testing.T) {
	c := newCLI(t)
	c.SetStdin("Call the bank\nabout the card\nhigh\ntomorrow\n")

	out := c.MustExecute("add")
	testutil.AssertContains(t, out, "Added task #1: Call the bank")

	c.Config().NoPrompt = true
	out = c.MustExecute("list", "--json")
	testutil.AssertContains(t, out, `"priority":"HIGH"`)
	testutil.AssertContains(t, out, `"description":"about the card"`)
}

func TestListFilters(t *testing.T) {
	c := newCLI(t)
	c.MustExecute("add", "Past due", "--due", "2026-02-27 12:00", "-p", "high")
	c.MustExecute("add", "Next week", "--due", "2026-03-08", "-p", "low")
	c.MustExecute("add", "No date", "-d", "groceries list")
	c.MustExecute("add", "Finished")
	c.MustExecute("done", "4")

	tests := []struct {
		name    string
		args    []string
		want    []string
		notWant []string
	}{
		{"all", nil, []string{"Past due", "Next week", "No date", "Finished"}, nil},
		{"completed", []string{"--completed"}, []string{"Finished"}, []string{"Past due", "No date"}},
		{"pending", []string{"--pending"}, []string{"Past due", "Next week", "No date"}, []string{"Finished"}},
		{"overdue", []string{"--overdue"}, []string{"Past due", "(overdue)"}, []string{"Next week", "No date"}},
		{"priority", []string{"-p", "low"}, []string{"Next week"}, []string{"Past due", "No date"}},
		{"search description", []string{"-s", "GROCERIES"}, []string{"No date"}, []string{"Past due"}},
		{"due range", []string{"--due-from", "2026-03-01", "--due-to", "2026-03-31"}, []string{"Next week"}, []string{"Past due", "No date"}},
		{"due from open end", []string{"--due-from", "2026-02-01"}, []string{"Past due", "Next week"}, []string{"No date"}},
		{"combined", []string{"--pending", "-p", "high"}, []string{"Past due"}, []string{"Next week", "Finished"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := c.MustExecute(append([]string{"list"}, tt.args...)...)
			for _, w := range tt.want {
				testutil.AssertContains(t, out, w)
			}
			for _, nw := range tt.notWant {
				testutil.AssertNotContains(t, out, nw)
			}
		})
	}
}

func TestListInvalidRange(t *testing.T) {
	c := newCLI(t)
	_, stderr := c.ExecuteAndFail("list", "--due-from", "2026-03-10", "--due-to", "2026-03-01")
	testutil.AssertContains(t, stderr, "Suggestion:")
}

func TestListEmpty(t *testing.T) {
	c := newCLI(t)
	out := c.MustExecute("list")
	testutil.AssertContains(t, out, "No tasks")
}

func TestListJSON(t *testing.T) {
	c := newCLI(t)
	c.MustExecute("add", "Late", "--due", "2026-02-28 08:00")

	out := c.MustExecute("list", "--json")

	var resp struct {
		Tasks []struct {
			ID      int64  `json:"id"`
			Title   string `json:"title"`
			Overdue bool   `json:"overdue"`
		} `json:"tasks"`
		Count          int    `json:"count"`
		StoreAvailable bool   `json:"store_available"`
		Result         string `json:"result"`
	}
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if resp.Count != 1 || resp.Tasks[0].Title != "Late" || !resp.Tasks[0].Overdue {
		t.Errorf("unexpected response: %+v", resp)
	}
	if !resp.StoreAvailable || resp.Result != testutil.ResultInfoOnly {
		t.Errorf("unexpected status: %+v", resp)
	}
}

func TestEdit(t *testing.T) {
	c := newCLI(t)
	c.MustExecute("add", "Draft", "--due", "2026-03-05")

	out := c.MustExecute("edit", "1", "--title", "Final", "-p", "low", "-d", "v2")
	testutil.AssertContains(t, out, "Updated task #1: Final")

	out = c.MustExecute("edit", "#1", "--clear-due")
	testutil.AssertNotContains(t, out, "Due:")

	out = c.MustExecute("list", "--json")
	testutil.AssertContains(t, out, `"title":"Final"`)
	testutil.AssertContains(t, out, `"priority":"LOW"`)
	testutil.AssertNotContains(t, out, "due_date")
}

func TestEditErrors(t *testing.T) {
	c := newCLI(t)
	c.MustExecute("add", "Draft")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"nothing to change", []string{"edit", "1"}, "nothing to change"},
		{"missing task", []string{"edit", "42", "--title", "x"}, "task not found: 42"},
		{"bad id", []string{"edit", "abc", "--title", "x"}, "abc"},
		{"blank title", []string{"edit", "1", "--title", " "}, "title is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, stderr := c.ExecuteAndFail(tt.args...)
			testutil.AssertContains(t, stderr, tt.want)
		})
	}
}

func TestDoneAndUndo(t *testing.T) {
	c := newCLI(t)
	c.MustExecute("add", "Laundry")

	out := c.MustExecute("done", "1")
	testutil.AssertContains(t, out, "Completed task #1: Laundry")
	testutil.AssertContains(t, c.MustExecute("list", "--completed"), "Laundry")

	out = c.MustExecute("undo", "1")
	testutil.AssertContains(t, out, "Reopened task #1: Laundry")
	testutil.AssertContains(t, c.MustExecute("list", "--pending"), "Laundry")

	_, stderr := c.ExecuteAndFail("done", "7")
	testutil.AssertContains(t, stderr, "task not found: 7")
}

func TestDoneRequiresIDWithoutPrompts(t *testing.T) {
	c := newCLI(t)
	c.MustExecute("add", "A")
	_, stderr := c.ExecuteAndFail("done")
	testutil.AssertContains(t, stderr, "task id required")
}

func TestDoneSelectsInteractively(t *testing.T) {
	c := newCLI(t)
	c.MustExecute("add", "Alpha")
	c.MustExecute("add", "Beta")

	c.SetStdin("bet\n")
	out := c.MustExecute("done")
	testutil.AssertContains(t, out, "Completed task #2: Beta")
}

func TestRm(t *testing.T) {
	t.Run("no prompt", func(t *testing.T) {
		c := newCLI(t)
		c.MustExecute("add", "Temp")
		out := c.MustExecute("rm", "1")
		testutil.AssertContains(t, out, "Deleted task #1: Temp")
		testutil.AssertContains(t, c.MustExecute("list"), "No tasks")
	})

	t.Run("confirm yes", func(t *testing.T) {
		c := newCLI(t)
		c.MustExecute("add", "Temp")
		c.SetStdin("y\n")
		out := c.MustExecute("rm", "1")
		testutil.AssertContains(t, out, "Deleted task #1")
	})

	t.Run("confirm no", func(t *testing.T) {
		c := newCLI(t)
		c.MustExecute("add", "Keep me")
		c.SetStdin("n\n")
		out := c.MustExecute("rm", "1")
		testutil.AssertContains(t, out, "Cancelled")
		c.Config().NoPrompt = true
		testutil.AssertContains(t, c.MustExecute("list"), "Keep me")
	})

	t.Run("missing", func(t *testing.T) {
		c := newCLI(t)
		_, stderr := c.ExecuteAndFail("rm", "-f", "3")
		testutil.AssertContains(t, stderr, "task not found: 3")
	})
}

func TestStats(t *testing.T) {
	c := newCLI(t)
	c.MustExecute("add", "Old", "--due", "2026-02-01")
	c.MustExecute("add", "New", "--due", "2026-04-01")
	c.MustExecute("add", "Done")
	c.MustExecute("done", "3")

	out := c.MustExecute("stats")
	testutil.AssertContains(t, out, "Total:      3")
	testutil.AssertContains(t, out, "Completed:  1")
	testutil.AssertContains(t, out, "Pending:    2")
	testutil.AssertContains(t, out, "Overdue:    1")
	testutil.AssertContains(t, out, "Store:      available")

	out = c.MustExecute("stats", "--json")
	testutil.AssertContains(t, out, `"total":3`)
	testutil.AssertContains(t, out, `"store_available":true`)
}

func TestJSONError(t *testing.T) {
	c := newCLI(t)
	stdout, _ := c.ExecuteAndFail("done", "9", "--json")

	var resp struct {
		Error  string `json:"error"`
		Result string `json:"result"`
	}
	if err := json.Unmarshal([]byte(stdout), &resp); err != nil {
		t.Fatalf("invalid JSON %q: %v", stdout, err)
	}
	if resp.Result != testutil.ResultError || !strings.Contains(resp.Error, "not found") {
		t.Errorf("unexpected response: %+v", resp)
	}
}

// --- Degraded mode ---

func TestUnavailableStoreFallsBackToMemory(t *testing.T) {
	c := newCLI(t)
	blocker := filepath.Join(c.TmpDir(), "blocker")
	if err := os.WriteFile(blocker, nil, 0644); err != nil {
		t.Fatal(err)
	}
	c.ReplaceConfig(c.DBPath(), filepath.Join(blocker, "tasks.db"))

	stdout, stderr, code := c.Execute("add", "Offline task")
	testutil.AssertExitCode(t, code, 0)
	testutil.AssertContains(t, stderr, "memory-only mode")
	testutil.AssertContains(t, stdout, "Added task #1: Offline task")
	testutil.AssertContains(t, stdout, "(kept in memory only)")

	out := c.MustExecute("stats")
	testutil.AssertContains(t, out, "Total:      0")
	testutil.AssertContains(t, out, "unavailable (memory-only)")
	testutil.AssertContains(t, out, "Offline:    since ")
	testutil.AssertContains(t, out, "Error:      ")
}

func TestPostgresWithoutCredentialsFallsBackToMemory(t *testing.T) {
	c := newCLI(t)
	c.ReplaceConfig("driver: sqlite", "driver: postgres")
	c.ReplaceConfig("reminder:", "  postgres:\n    url: postgres://127.0.0.1:1/remindo\n    user: alice\nreminder:")

	_, stderr, code := c.Execute("list")
	testutil.AssertExitCode(t, code, 0)
	testutil.AssertContains(t, stderr, "alice")
	testutil.AssertContains(t, stderr, "memory-only mode")
}

// --- Config, credentials and notifications ---

func TestConfigShowAndPath(t *testing.T) {
	c := newCLI(t)

	out := c.MustExecute("config", "path")
	testutil.AssertContains(t, out, c.ConfigPath())

	out = c.MustExecute("config", "show")
	testutil.AssertContains(t, out, "driver: sqlite")
	testutil.AssertContains(t, out, "lead_time: 5m")

	out = c.MustExecute("config", "show", "--json")
	var tree map[string]any
	if err := json.Unmarshal([]byte(out), &tree); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if _, ok := tree["store"]; !ok {
		t.Errorf("missing store section: %v", tree)
	}
}

func TestInvalidConfig(t *testing.T) {
	c := newCLI(t)
	c.ReplaceConfig("driver: sqlite", "driver: mongo")
	_, stderr := c.ExecuteAndFail("list")
	testutil.AssertContains(t, stderr, "Suggestion:")
}

func TestCredentials(t *testing.T) {
	c := newCLI(t)

	out := c.MustExecute("credentials", "get", "alice")
	testutil.AssertContains(t, out, "No credentials found for alice")

	c.SetStdin("s3cret\n")
	out = c.MustExecute("credentials", "set", "alice")
	testutil.AssertContains(t, out, "Credentials stored in system keyring")

	c.Config().NoPrompt = true
	out = c.MustExecute("credentials", "get", "alice")
	testutil.AssertContains(t, out, "Status: Available")
	testutil.AssertNotContains(t, out, "s3cret")

	out = c.MustExecute("credentials", "delete", "alice")
	testutil.AssertContains(t, out, "Credentials removed")
}

func TestCredentialsRequireUser(t *testing.T) {
	c := newCLI(t)
	_, stderr := c.ExecuteAndFail("credentials", "get")
	testutil.AssertContains(t, stderr, "username required")
}

func TestNotifyTest(t *testing.T) {
	c := newCLI(t)

	out := c.MustExecute("notify", "test")
	testutil.AssertContains(t, out, "Test notification sent to 1 channel(s)")
	testutil.AssertContains(t, c.NotificationLog(), "[TEST] Test notification")
}

// --- Reminders ---

func TestWatchDeliversDueReminders(t *testing.T) {
	c := testutil.NewCLITest(t)
	c.MustExecute("add", "Call mom", "--due", "+2min")
	c.MustExecute("add", "Far away", "--due", "+3d")

	out := c.MustExecute("watch", "--for", "1s")
	testutil.AssertContains(t, out, "Watching 2 task(s)")
	testutil.AssertContains(t, out, "Reminder: #1 Call mom")
	testutil.AssertNotContains(t, out, "Far away")
	testutil.AssertContains(t, out, "Stopped watching")
	testutil.AssertResultCode(t, out, testutil.ResultInfoOnly)

	log := c.NotificationLog()
	testutil.AssertContains(t, log, "[REMINDER] 'Call mom' is due in")
}

func TestWatchRequiresReminders(t *testing.T) {
	c := newCLI(t)
	c.ReplaceConfig("enabled: true\n  lead_time", "enabled: false\n  lead_time")
	_, stderr := c.ExecuteAndFail("watch", "--for", "10ms")
	testutil.AssertContains(t, stderr, "reminders are disabled")
}
