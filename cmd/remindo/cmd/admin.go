package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"remindo/internal/credentials"
	"remindo/internal/notification"
	"remindo/internal/utils"
)

func newConfigCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := e.conf.YAML()
			if err != nil {
				return err
			}
			if e.json {
				var tree map[string]any
				if err := yaml.Unmarshal([]byte(out), &tree); err != nil {
					return err
				}
				return e.writeJSON(tree)
			}
			_, _ = fmt.Fprint(e.stdout, out)
			e.resultCode(ResultInfoOnly)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the config file location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if e.json {
				return e.writeJSON(map[string]string{"path": e.conf.Path(), "result": ResultInfoOnly})
			}
			_, _ = fmt.Fprintln(e.stdout, e.conf.Path())
			e.resultCode(ResultInfoOnly)
			return nil
		},
	})
	return cmd
}

func newCredentialsCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credentials",
		Short: "Manage the PostgreSQL password in the system keyring",
	}

	handler := func() *credentials.CLIHandler {
		return credentials.NewCLIHandler(e.credentials(), e.stdin(), e.stdout, e.stderr)
	}
	user := func(args []string) (string, error) {
		if len(args) > 0 {
			return args[0], nil
		}
		if u := e.conf.Store.Postgres.User; u != "" {
			return u, nil
		}
		return "", utils.WrapWithSuggestion(errors.New("username required"),
			"Pass the user, or set store.postgres.user in "+e.conf.Path())
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "set [user]",
			Short: "Store a password in the keyring",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				u, err := user(args)
				if err != nil {
					return err
				}
				if err := handler().Set(cmd.Context(), u); err != nil {
					return err
				}
				e.resultCode(ResultActionCompleted)
				return nil
			},
		},
		&cobra.Command{
			Use:   "get [user]",
			Short: "Show where the password for a user is found",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				u, err := user(args)
				if err != nil {
					return err
				}
				if err := handler().Get(cmd.Context(), u, e.json); err != nil {
					return err
				}
				e.resultCode(ResultInfoOnly)
				return nil
			},
		},
		&cobra.Command{
			Use:   "delete [user]",
			Short: "Remove a password from the keyring",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				u, err := user(args)
				if err != nil {
					return err
				}
				if err := handler().Delete(cmd.Context(), u); err != nil {
					return err
				}
				e.resultCode(ResultActionCompleted)
				return nil
			},
		},
	)
	return cmd
}

func newNotifyCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Notification utilities",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "test",
		Short: "Send a test notification through every enabled channel",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			n := e.cfg.Notifier
			if n == nil {
				settings := e.conf.NotificationSettings()
				m, err := notification.NewManager(&settings)
				if err != nil {
					return err
				}
				defer func() { _ = m.Close() }()
				n = m
			}

			if n.ChannelCount() == 0 {
				return utils.WrapWithSuggestion(errors.New("no notification channels enabled"),
					"Enable notification.os or notification.log in "+e.conf.Path())
			}
			if err := n.Send(notification.Test()); err != nil {
				return fmt.Errorf("test notification failed: %w", err)
			}

			if e.json {
				return e.writeJSON(map[string]any{"channels": n.ChannelCount(), "result": ResultActionCompleted})
			}
			_, _ = fmt.Fprintf(e.stdout, "Test notification sent to %d channel(s)\n", n.ChannelCount())
			e.resultCode(ResultActionCompleted)
			return nil
		},
	})
	return cmd
}
