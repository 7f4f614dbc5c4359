// Package cmd implements the remindo command line.
package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"remindo/internal/config"
	"remindo/internal/credentials"
	"remindo/internal/notification"
	"remindo/internal/utils"
)

// Version is set at build time
var Version = "dev"

// Result codes for CLI output (used in no-prompt mode)
const (
	ResultActionCompleted = "ACTION_COMPLETED"
	ResultInfoOnly        = "INFO_ONLY"
	ResultError           = "ERROR"
)

// Config holds command-line overrides. Zero values defer to the config file.
type Config struct {
	NoPrompt     bool
	Verbose      bool
	OutputFormat string
	ConfigPath   string

	// Test seams.
	Stdin    io.Reader
	Keyring  credentials.Keyring
	Env      func(string) string
	Notifier notification.NotificationManager
	Now      func() time.Time
}

// env is the state shared by every command of one invocation.
type env struct {
	cfg    *Config
	conf   *config.Config
	stdout io.Writer
	stderr io.Writer
	json   bool
}

func (e *env) now() time.Time {
	if e.cfg.Now != nil {
		return e.cfg.Now()
	}
	return time.Now()
}

func (e *env) stdin() io.Reader {
	if e.cfg.Stdin != nil {
		return e.cfg.Stdin
	}
	return os.Stdin
}

// interactive reports whether prompts may be shown on a real terminal.
func (e *env) interactive() bool {
	if e.cfg.NoPrompt {
		return false
	}
	f, ok := e.stdin().(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (e *env) credentials() *credentials.Manager {
	var opts []credentials.ManagerOption
	if e.cfg.Keyring != nil {
		opts = append(opts, credentials.WithKeyring(e.cfg.Keyring))
	}
	if e.cfg.Env != nil {
		opts = append(opts, credentials.WithEnv(e.cfg.Env))
	}
	return credentials.NewManager(opts...)
}

// Execute runs the CLI with the given arguments and IO writers
func Execute(args []string, stdout, stderr io.Writer, cfg *Config) int {
	rootCmd := NewRemindo(stdout, stderr, cfg)

	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	if err := rootCmd.Execute(); err != nil {
		if containsJSONFlag(args) || (cfg != nil && cfg.OutputFormat == "json") {
			outputErrorJSON(err, stdout)
		} else {
			_, _ = fmt.Fprintln(stderr, "Error:", err)
			if cfg != nil && cfg.NoPrompt {
				_, _ = fmt.Fprintln(stdout, ResultError)
			}
		}
		return 1
	}
	return 0
}

// containsJSONFlag checks if args contain --json flag
func containsJSONFlag(args []string) bool {
	for _, arg := range args {
		if arg == "--json" {
			return true
		}
	}
	return false
}

// NewRemindo creates the root command with injectable IO
func NewRemindo(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	if cfg == nil {
		cfg = &Config{}
	}
	e := &env{cfg: cfg, stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:     "remindo",
		Short:   "A todo list that reminds you before things are due",
		Long:    "remindo keeps tasks in SQLite or PostgreSQL and reminds you shortly before they are due. If the database is unavailable it keeps working in memory.",
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return e.load(cmd)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().BoolP("no-prompt", "y", false, "Disable interactive prompts")
	root.PersistentFlags().BoolP("verbose", "V", false, "Enable verbose/debug output")
	root.PersistentFlags().Bool("json", false, "Output in JSON format")
	root.PersistentFlags().String("config", "", "Config file (default $XDG_CONFIG_HOME/remindo/config.yaml)")

	root.AddCommand(
		newAddCmd(e),
		newListCmd(e),
		newEditCmd(e),
		newDoneCmd(e, "done", "Mark a task complete"),
		newDoneCmd(e, "undo", "Reopen a completed task"),
		newRmCmd(e),
		newStatsCmd(e),
		newTUICmd(e),
		newWatchCmd(e),
		newConfigCmd(e),
		newCredentialsCmd(e),
		newNotifyCmd(e),
	)
	return root
}

// load reads the config file and applies flag overrides.
func (e *env) load(cmd *cobra.Command) error {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		e.cfg.ConfigPath = path
	}
	conf, err := config.Load(e.cfg.ConfigPath)
	if err != nil {
		return err
	}
	if err := conf.Validate(); err != nil {
		return utils.WrapWithSuggestion(err, "Fix the value in "+conf.Path()+" or run 'remindo config show'")
	}
	e.conf = conf

	if noPrompt, _ := cmd.Flags().GetBool("no-prompt"); noPrompt || conf.NoPrompt {
		e.cfg.NoPrompt = true
	}
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose || conf.Logging.Verbose {
		e.cfg.Verbose = true
	}
	jsonFlag, _ := cmd.Flags().GetBool("json")
	format := e.cfg.OutputFormat
	if format == "" {
		format = conf.OutputFormat
	}
	e.json = jsonFlag || format == "json"
	return nil
}

// resultCode prints the machine-readable result line in no-prompt text mode.
func (e *env) resultCode(code string) {
	if e.cfg.NoPrompt && !e.json {
		_, _ = fmt.Fprintln(e.stdout, code)
	}
}

func (e *env) writeJSON(v any) error {
	out, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(e.stdout, string(out))
	return nil
}

type errorResponse struct {
	Error  string `json:"error"`
	Code   int    `json:"code"`
	Result string `json:"result"`
}

// outputErrorJSON outputs error in JSON format
func outputErrorJSON(err error, stdout io.Writer) {
	response := errorResponse{
		Error:  err.Error(),
		Code:   1,
		Result: ResultError,
	}
	var sugg *utils.ErrorWithSuggestion
	if errors.As(err, &sugg) {
		response.Error = sugg.Err.Error()
	}

	jsonBytes, _ := json.Marshal(response)
	_, _ = fmt.Fprintln(stdout, string(jsonBytes))
}
