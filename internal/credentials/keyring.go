package credentials

import (
	"errors"
	"fmt"
	"sync"

	"github.com/zalando/go-keyring"
)

var (
	// ErrNotFound is returned when no password is stored for an account.
	ErrNotFound = errors.New("credentials not found")
	// ErrKeyringNotAvailable is returned when the OS offers no keyring service.
	ErrKeyringNotAvailable = errors.New("system keyring not available")
)

// MockKeyring is a test implementation of the Keyring interface
type MockKeyring struct {
	mu    sync.RWMutex
	store map[string]map[string]string // service -> account -> password
}

// NewMockKeyring creates a new mock keyring for testing
func NewMockKeyring() *MockKeyring {
	return &MockKeyring{
		store: make(map[string]map[string]string),
	}
}

// Set stores a password in the mock keyring
func (m *MockKeyring) Set(service, account, password string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.store[service] == nil {
		m.store[service] = make(map[string]string)
	}
	m.store[service][account] = password
	return nil
}

// Get retrieves a password from the mock keyring
func (m *MockKeyring) Get(service, account string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if accounts, ok := m.store[service]; ok {
		if password, ok := accounts[account]; ok {
			return password, nil
		}
	}
	return "", fmt.Errorf("%s/%s: %w", service, account, ErrNotFound)
}

// Delete removes a password from the mock keyring
func (m *MockKeyring) Delete(service, account string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if accounts, ok := m.store[service]; ok {
		if _, ok := accounts[account]; ok {
			delete(accounts, account)
			return nil
		}
	}
	return fmt.Errorf("%s/%s: %w", service, account, ErrNotFound)
}

// systemKeyring stores passwords in the OS keyring (Secret Service,
// macOS Keychain or Windows Credential Manager).
type systemKeyring struct{}

// Set stores a password in the system keyring
func (s *systemKeyring) Set(service, account, password string) error {
	return mapKeyringError(keyring.Set(service, account, password))
}

// Get retrieves a password from the system keyring
func (s *systemKeyring) Get(service, account string) (string, error) {
	pw, err := keyring.Get(service, account)
	return pw, mapKeyringError(err)
}

// Delete removes a password from the system keyring
func (s *systemKeyring) Delete(service, account string) error {
	return mapKeyringError(keyring.Delete(service, account))
}

func mapKeyringError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, keyring.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, keyring.ErrUnsupportedPlatform):
		return ErrKeyringNotAvailable
	default:
		return fmt.Errorf("%w: %v", ErrKeyringNotAvailable, err)
	}
}
