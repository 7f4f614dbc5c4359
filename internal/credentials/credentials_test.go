package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func newTestManager(env map[string]string) (*Manager, *MockKeyring) {
	kr := NewMockKeyring()
	return NewManager(WithKeyring(kr), WithEnv(envMap(env))), kr
}

// TestCredentialsSetKeyring tests that credentials can be stored in the keyring
func TestCredentialsSetKeyring(t *testing.T) {
	manager, kr := newTestManager(nil)

	if err := manager.Set(context.Background(), "app", "testpassword123"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	stored, err := kr.Get(ServiceName, "app")
	if err != nil {
		t.Fatalf("Keyring Get failed: %v", err)
	}
	if stored != "testpassword123" {
		t.Errorf("Expected password 'testpassword123', got '%s'", stored)
	}
}

func TestCredentialsSetRejectsEmpty(t *testing.T) {
	manager, _ := newTestManager(nil)
	if err := manager.Set(context.Background(), "", "pw"); err == nil {
		t.Error("expected error for empty username")
	}
	if err := manager.Set(context.Background(), "app", ""); err == nil {
		t.Error("expected error for empty password")
	}
}

func TestCredentialsGetPriority(t *testing.T) {
	tests := []struct {
		name       string
		keyring    string
		env        map[string]string
		wantFound  bool
		wantSource Source
		wantPass   string
	}{
		{
			name:       "keyring wins over environment",
			keyring:    "from-keyring",
			env:        map[string]string{"DB_PASSWORD": "from-env"},
			wantFound:  true,
			wantSource: SourceKeyring,
			wantPass:   "from-keyring",
		},
		{
			name:       "prefixed variable",
			env:        map[string]string{"REMINDO_STORE_POSTGRES_PASSWORD": "prefixed", "DB_PASSWORD": "legacy"},
			wantFound:  true,
			wantSource: SourceEnvironment,
			wantPass:   "prefixed",
		},
		{
			name:       "legacy variable",
			env:        map[string]string{"DB_PASSWORD": "legacy"},
			wantFound:  true,
			wantSource: SourceEnvironment,
			wantPass:   "legacy",
		},
		{
			name:       "environment for another user",
			env:        map[string]string{"DB_PASSWORD": "legacy", "DB_USERNAME": "someone_else"},
			wantSource: SourceNone,
		},
		{
			name:       "environment for this user",
			env:        map[string]string{"DB_PASSWORD": "legacy", "DB_USERNAME": "app"},
			wantFound:  true,
			wantSource: SourceEnvironment,
			wantPass:   "legacy",
		},
		{
			name:       "nothing configured",
			wantSource: SourceNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			manager, kr := newTestManager(tt.env)
			if tt.keyring != "" {
				_ = kr.Set(ServiceName, "app", tt.keyring)
			}

			info, err := manager.Get(context.Background(), "app")
			if err != nil {
				t.Fatalf("Get failed: %v", err)
			}
			if info.Found != tt.wantFound || info.Source != tt.wantSource || info.Password != tt.wantPass {
				t.Errorf("Get() = %+v, want found=%v source=%s password=%q", info, tt.wantFound, tt.wantSource, tt.wantPass)
			}
		})
	}
}

type brokenKeyring struct{ err error }

func (b brokenKeyring) Set(string, string, string) error   { return b.err }
func (b brokenKeyring) Get(string, string) (string, error) { return "", b.err }
func (b brokenKeyring) Delete(string, string) error        { return b.err }

func TestCredentialsGetFallsBackWhenKeyringUnavailable(t *testing.T) {
	manager := NewManager(
		WithKeyring(brokenKeyring{err: ErrKeyringNotAvailable}),
		WithEnv(envMap(map[string]string{"DB_PASSWORD": "env"})),
	)
	info, err := manager.Get(context.Background(), "app")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if info.Source != SourceEnvironment {
		t.Errorf("expected environment source, got %s", info.Source)
	}
}

func TestCredentialsGetSurfacesKeyringFailure(t *testing.T) {
	boom := errors.New("dbus exploded")
	manager := NewManager(WithKeyring(brokenKeyring{err: boom}), WithEnv(envMap(nil)))
	if _, err := manager.Get(context.Background(), "app"); !errors.Is(err, boom) {
		t.Errorf("expected wrapped keyring error, got %v", err)
	}
}

func TestCredentialsDeleteIdempotent(t *testing.T) {
	manager, kr := newTestManager(nil)
	_ = kr.Set(ServiceName, "app", "pw")

	if err := manager.Delete(context.Background(), "app"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := kr.Get(ServiceName, "app"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected credentials to be removed, got %v", err)
	}
	if err := manager.Delete(context.Background(), "app"); err != nil {
		t.Errorf("second Delete should be a no-op, got %v", err)
	}
}

func TestCredentialInfoJSONExcludesPassword(t *testing.T) {
	info := &CredentialInfo{Source: SourceKeyring, Username: "app", Password: "hunter2", Found: true}
	data, err := info.JSON()
	if err != nil {
		t.Fatalf("JSON failed: %v", err)
	}
	if strings.Contains(string(data), "hunter2") {
		t.Error("JSON output must not contain the password")
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if decoded["source"] != "keyring" || decoded["found"] != true {
		t.Errorf("unexpected JSON: %s", data)
	}
}

func TestPromptPasswordReadsLine(t *testing.T) {
	var out strings.Builder
	pw, err := PromptPassword(strings.NewReader("  s3cret \nignored\n"), &out, "app")
	if err != nil {
		t.Fatalf("PromptPassword failed: %v", err)
	}
	if pw != "s3cret" {
		t.Errorf("expected 's3cret', got %q", pw)
	}
	if !strings.Contains(out.String(), "password for app") {
		t.Errorf("unexpected prompt: %q", out.String())
	}

	if _, err := PromptPassword(strings.NewReader(""), &out, "app"); err == nil {
		t.Error("expected error on empty input")
	}
}
