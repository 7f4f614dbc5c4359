// Package storetest holds the behavioral suite every backend.Store
// implementation must pass.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"remindo/backend"
)

// Factory returns a fresh, empty store. The suite closes it.
type Factory func(t *testing.T) backend.Store

// Run exercises the full Store contract against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, s backend.Store)
	}{
		{"InsertAssignsIncreasingIDs", testInsertAssignsIDs},
		{"FindByIDMissing", testFindByIDMissing},
		{"UpdateRoundTrip", testUpdateRoundTrip},
		{"UpdateMissing", testUpdateMissing},
		{"DeleteByID", testDeleteByID},
		{"FindByCompleted", testFindByCompleted},
		{"FindByPriority", testFindByPriority},
		{"OverdueAndCounts", testOverdueAndCounts},
		{"FindDueBetweenInclusive", testFindDueBetween},
		{"SearchCaseInsensitive", testSearch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { _ = s.Close() })
			tt.fn(t, s)
		})
	}
}

func mustInsert(t *testing.T, s backend.Store, task *backend.Task) int64 {
	t.Helper()
	id, err := s.Insert(context.Background(), task)
	require.NoError(t, err)
	require.Positive(t, id)
	return id
}

func ptr(t time.Time) *time.Time { return &t }

func testInsertAssignsIDs(t *testing.T, s backend.Store) {
	ctx := context.Background()
	due := time.Now().Add(time.Hour).Truncate(time.Second)
	first := mustInsert(t, s, backend.NewTask("first", "desc", backend.PriorityHigh, &due))
	second := mustInsert(t, s, backend.NewTask("second", "", backend.PriorityLow, nil))
	assert.Greater(t, second, first)

	got, err := s.FindByID(ctx, first)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "first", got.Title)
	assert.Equal(t, "desc", got.Description)
	assert.Equal(t, backend.PriorityHigh, got.Priority)
	assert.False(t, got.Completed)
	require.NotNil(t, got.DueDate)
	assert.True(t, got.DueDate.Equal(due), "due date %v != %v", got.DueDate, due)
	assert.False(t, got.CreatedAt.IsZero())

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func testFindByIDMissing(t *testing.T, s backend.Store) {
	got, err := s.FindByID(context.Background(), 4242)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func testUpdateRoundTrip(t *testing.T, s backend.Store) {
	ctx := context.Background()
	id := mustInsert(t, s, backend.NewTask("draft", "", backend.PriorityLow, nil))
	orig, err := s.FindByID(ctx, id)
	require.NoError(t, err)

	changed := orig.Clone()
	changed.Title = "final"
	changed.Completed = true
	changed.DueDate = ptr(time.Now().Add(-time.Hour).Truncate(time.Second))
	changed.CreatedAt = time.Now().Add(48 * time.Hour)

	ok, err := s.Update(ctx, &changed)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := s.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "final", got.Title)
	assert.True(t, got.Completed)
	assert.True(t, got.CreatedAt.Equal(orig.CreatedAt), "created_at must not change on update")

	changed.DueDate = nil
	_, err = s.Update(ctx, &changed)
	require.NoError(t, err)
	got, err = s.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, got.DueDate)
}

func testUpdateMissing(t *testing.T, s backend.Store) {
	ok, err := s.Update(context.Background(), &backend.Task{ID: 999, Title: "ghost", Priority: backend.PriorityLow})
	require.NoError(t, err)
	assert.False(t, ok)
}

func testDeleteByID(t *testing.T, s backend.Store) {
	ctx := context.Background()
	id := mustInsert(t, s, backend.NewTask("doomed", "", backend.PriorityMedium, nil))

	ok, err := s.DeleteByID(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.DeleteByID(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := s.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func testFindByCompleted(t *testing.T, s backend.Store) {
	ctx := context.Background()
	open := backend.NewTask("open", "", backend.PriorityLow, nil)
	done := backend.NewTask("done", "", backend.PriorityLow, nil)
	done.Completed = true
	mustInsert(t, s, open)
	mustInsert(t, s, done)

	got, err := s.FindByCompleted(ctx, true)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "done", got[0].Title)

	n, err := s.CountByCompleted(ctx, false)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func testFindByPriority(t *testing.T, s backend.Store) {
	ctx := context.Background()
	mustInsert(t, s, backend.NewTask("a", "", backend.PriorityHigh, nil))
	mustInsert(t, s, backend.NewTask("b", "", backend.PriorityLow, nil))
	mustInsert(t, s, backend.NewTask("c", "", backend.PriorityHigh, nil))

	got, err := s.FindByPriority(ctx, backend.PriorityHigh)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	for _, task := range got {
		assert.Equal(t, backend.PriorityHigh, task.Priority)
	}
}

func testOverdueAndCounts(t *testing.T, s backend.Store) {
	ctx := context.Background()
	now := time.Now()
	mustInsert(t, s, backend.NewTask("late", "", backend.PriorityHigh, ptr(now.Add(-2*time.Hour))))
	mustInsert(t, s, backend.NewTask("later", "", backend.PriorityHigh, ptr(now.Add(-time.Hour))))
	lateDone := backend.NewTask("late but done", "", backend.PriorityHigh, ptr(now.Add(-time.Hour)))
	lateDone.Completed = true
	mustInsert(t, s, lateDone)
	mustInsert(t, s, backend.NewTask("future", "", backend.PriorityLow, ptr(now.Add(time.Hour))))
	mustInsert(t, s, backend.NewTask("undated", "", backend.PriorityLow, nil))

	got, err := s.FindOverdue(ctx, now)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "late", got[0].Title)
	assert.Equal(t, "later", got[1].Title)

	n, err := s.CountOverdue(ctx, now)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func testFindDueBetween(t *testing.T, s backend.Store) {
	ctx := context.Background()
	start := time.Now().Truncate(time.Second)
	end := start.Add(time.Hour)
	mustInsert(t, s, backend.NewTask("at start", "", backend.PriorityLow, ptr(start)))
	mustInsert(t, s, backend.NewTask("at end", "", backend.PriorityLow, ptr(end)))
	mustInsert(t, s, backend.NewTask("after", "", backend.PriorityLow, ptr(end.Add(time.Second))))
	mustInsert(t, s, backend.NewTask("none", "", backend.PriorityLow, nil))

	got, err := s.FindDueBetween(ctx, start, end)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "at start", got[0].Title)
	assert.Equal(t, "at end", got[1].Title)
}

func testSearch(t *testing.T, s backend.Store) {
	ctx := context.Background()
	mustInsert(t, s, backend.NewTask("Write REPORT", "", backend.PriorityLow, nil))
	mustInsert(t, s, backend.NewTask("Groceries", "milk and report card", backend.PriorityLow, nil))
	mustInsert(t, s, backend.NewTask("100% done", "", backend.PriorityLow, nil))

	got, err := s.Search(ctx, "report")
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = s.Search(ctx, "%")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "100% done", got[0].Title)
}
