package credentials

import (
	"errors"
	"testing"

	"github.com/zalando/go-keyring"
)

// TestSystemKeyringUsesOSKeyring runs the real keyring code against the
// go-keyring in-memory provider.
func TestSystemKeyringUsesOSKeyring(t *testing.T) {
	keyring.MockInit()
	kr := &systemKeyring{}

	if _, err := kr.Get(ServiceName, "app"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound before Set, got %v", err)
	}
	if err := kr.Set(ServiceName, "app", "pw"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	got, err := kr.Get(ServiceName, "app")
	if err != nil || got != "pw" {
		t.Fatalf("Get = %q, %v", got, err)
	}
	if err := kr.Delete(ServiceName, "app"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := kr.Delete(ServiceName, "app"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestSystemKeyringMapsProviderFailure(t *testing.T) {
	keyring.MockInitWithError(errors.New("no secret service"))
	t.Cleanup(keyring.MockInit)

	err := (&systemKeyring{}).Set(ServiceName, "app", "pw")
	if !errors.Is(err, ErrKeyringNotAvailable) {
		t.Errorf("expected ErrKeyringNotAvailable, got %v", err)
	}
}

func TestMapKeyringError(t *testing.T) {
	tests := []struct {
		in   error
		want error
	}{
		{nil, nil},
		{keyring.ErrNotFound, ErrNotFound},
		{keyring.ErrUnsupportedPlatform, ErrKeyringNotAvailable},
		{errors.New("other"), ErrKeyringNotAvailable},
	}
	for _, tt := range tests {
		got := mapKeyringError(tt.in)
		if tt.want == nil {
			if got != nil {
				t.Errorf("mapKeyringError(nil) = %v", got)
			}
			continue
		}
		if !errors.Is(got, tt.want) {
			t.Errorf("mapKeyringError(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
