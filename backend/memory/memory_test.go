package memory

import (
	"context"
	"errors"
	"testing"

	"remindo/backend"
	"remindo/internal/testutil/storetest"
)

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) backend.Store { return New() })
}

func TestFailInjectsErrors(t *testing.T) {
	ctx := context.Background()
	s := New()

	s.Fail("Insert", nil)
	if _, err := s.Insert(ctx, backend.NewTask("x", "", backend.PriorityLow, nil)); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Insert err = %v, want ErrUnavailable", err)
	}
	if _, err := s.FindAll(ctx); err != nil {
		t.Fatalf("FindAll should not fail: %v", err)
	}

	boom := errors.New("boom")
	s.Fail("", boom)
	if _, err := s.Count(ctx); !errors.Is(err, boom) {
		t.Fatalf("Count err = %v, want boom", err)
	}

	s.Recover()
	if _, err := s.Insert(ctx, backend.NewTask("x", "", backend.PriorityLow, nil)); err != nil {
		t.Fatalf("Insert after Recover: %v", err)
	}
	if got := s.Calls("Insert"); got != 2 {
		t.Errorf("Calls(Insert) = %d, want 2", got)
	}
	if got := s.TotalCalls(); got != 4 {
		t.Errorf("TotalCalls() = %d, want 4", got)
	}
}

func TestReturnedTasksAreCopies(t *testing.T) {
	ctx := context.Background()
	s := New()
	id, _ := s.Insert(ctx, backend.NewTask("orig", "", backend.PriorityLow, nil))

	got, _ := s.FindByID(ctx, id)
	got.Title = "mutated"

	again, _ := s.FindByID(ctx, id)
	if again.Title != "orig" {
		t.Errorf("store state leaked through returned pointer: %q", again.Title)
	}
}

func TestClosedStoreFails(t *testing.T) {
	s := New()
	_ = s.Close()
	if _, err := s.FindAll(context.Background()); err == nil {
		t.Error("expected error after Close")
	}
}
