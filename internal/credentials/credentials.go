// Package credentials stores the database password in the OS keyring, with a
// fallback to environment variables.
package credentials

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Source indicates where credentials were retrieved from
type Source string

const (
	SourceKeyring     Source = "keyring"
	SourceEnvironment Source = "environment"
	SourceNone        Source = "none"
)

// ServiceName is the keyring service under which passwords are stored.
const ServiceName = "remindo-postgres"

// Environment variables consulted when the keyring has no entry.
var (
	passwordEnv = []string{"REMINDO_STORE_POSTGRES_PASSWORD", "DB_PASSWORD"}
	usernameEnv = []string{"REMINDO_STORE_POSTGRES_USER", "DB_USERNAME"}
)

// CredentialInfo contains credential information returned by Get()
type CredentialInfo struct {
	Source   Source // Where credentials came from
	Username string // Database user
	Password string // Password (masked in display)
	Found    bool   // Whether credentials were found
}

// JSON serializes the credential info to JSON (password excluded for security)
func (c *CredentialInfo) JSON() ([]byte, error) {
	output := struct {
		Username string `json:"username"`
		Source   string `json:"source"`
		Found    bool   `json:"found"`
	}{
		Username: c.Username,
		Source:   string(c.Source),
		Found:    c.Found,
	}
	return json.Marshal(output)
}

// Keyring is the interface for keyring operations
type Keyring interface {
	Set(service, account, password string) error
	Get(service, account string) (string, error)
	Delete(service, account string) error
}

// Manager handles credential operations
type Manager struct {
	keyring Keyring
	getenv  func(string) string
}

// ManagerOption is a functional option for Manager
type ManagerOption func(*Manager)

// WithKeyring sets a custom keyring implementation
func WithKeyring(k Keyring) ManagerOption {
	return func(m *Manager) {
		m.keyring = k
	}
}

// WithEnv overrides the environment lookup.
func WithEnv(getenv func(string) string) ManagerOption {
	return func(m *Manager) {
		m.getenv = getenv
	}
}

// NewManager creates a new credential manager
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		keyring: &systemKeyring{},
		getenv:  os.Getenv,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Set stores the password for user in the keyring
func (m *Manager) Set(ctx context.Context, username, password string) error {
	if strings.TrimSpace(username) == "" {
		return errors.New("username is required")
	}
	if password == "" {
		return errors.New("password must not be empty")
	}
	return m.keyring.Set(ServiceName, username, password)
}

// Get retrieves credentials from available sources (keyring first, then env vars)
func (m *Manager) Get(ctx context.Context, username string) (*CredentialInfo, error) {
	password, err := m.keyring.Get(ServiceName, username)
	if err == nil && password != "" {
		return &CredentialInfo{
			Source:   SourceKeyring,
			Username: username,
			Password: password,
			Found:    true,
		}, nil
	}
	if err != nil && !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrKeyringNotAvailable) {
		return nil, fmt.Errorf("failed to read keyring: %w", err)
	}

	if envPassword := m.envPassword(username); envPassword != "" {
		return &CredentialInfo{
			Source:   SourceEnvironment,
			Username: username,
			Password: envPassword,
			Found:    true,
		}, nil
	}

	return &CredentialInfo{
		Source:   SourceNone,
		Username: username,
		Found:    false,
	}, nil
}

// envPassword returns the first password variable set, unless a username
// variable names a different user.
func (m *Manager) envPassword(username string) string {
	if envUser := m.firstEnv(usernameEnv); envUser != "" && envUser != username {
		return ""
	}
	return m.firstEnv(passwordEnv)
}

func (m *Manager) firstEnv(keys []string) string {
	for _, key := range keys {
		if v := m.getenv(key); v != "" {
			return v
		}
	}
	return ""
}

// Delete removes credentials from the keyring
func (m *Manager) Delete(ctx context.Context, username string) error {
	err := m.keyring.Delete(ServiceName, username)
	// Idempotent: return nil if not found
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

// PromptPassword prompts the user for a password. Input is hidden when reader
// is a terminal; otherwise one line is read.
func PromptPassword(reader io.Reader, writer io.Writer, username string) (string, error) {
	_, _ = fmt.Fprintf(writer, "Enter database password for %s: ", username)

	if f, ok := reader.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		pw, err := term.ReadPassword(int(f.Fd()))
		_, _ = fmt.Fprintln(writer)
		if err != nil {
			return "", err
		}
		return string(pw), nil
	}

	// For non-TTY input (testing), just read a line
	scanner := bufio.NewScanner(reader)
	if scanner.Scan() {
		return strings.TrimSpace(scanner.Text()), nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", fmt.Errorf("no input received")
}
