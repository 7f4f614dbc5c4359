// Package cache provides the in-memory task mirror served to readers.
package cache

import (
	"iter"
	"slices"
	"sync"

	"remindo/backend"
)

// TaskCache is an ordered in-memory copy of the task set. Order is display
// order: reloads keep the store's order, appends go to the end, updates
// replace in place. Safe for concurrent use.
type TaskCache struct {
	mu      sync.RWMutex
	tasks   []backend.Task
	version uint64
}

// New creates an empty cache.
func New() *TaskCache {
	return &TaskCache{}
}

// Replace discards the contents and loads tasks in the given order.
func (c *TaskCache) Replace(tasks []backend.Task) {
	cp := make([]backend.Task, len(tasks))
	for i := range tasks {
		cp[i] = tasks[i].Clone()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tasks = cp
	c.version++
}

// Append adds a task at the end.
func (c *TaskCache) Append(t backend.Task) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tasks = append(c.tasks, t.Clone())
	c.version++
}

// ReplaceFirst overwrites the first entry whose id matches t.ID.
// Returns false if no entry matched.
func (c *TaskCache) ReplaceFirst(t backend.Task) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.tasks {
		if c.tasks[i].ID == t.ID {
			c.tasks[i] = t.Clone()
			c.version++
			return true
		}
	}
	return false
}

// Remove deletes every entry with the given id. Returns false if none existed.
func (c *TaskCache) Remove(id int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.tasks)
	c.tasks = slices.DeleteFunc(c.tasks, func(t backend.Task) bool { return t.ID == id })
	if len(c.tasks) == n {
		return false
	}
	c.version++
	return true
}

// Get returns a copy of the first entry with the given id.
func (c *TaskCache) Get(id int64) (backend.Task, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if t := backend.FindTaskByID(c.tasks, id); t != nil {
		return t.Clone(), true
	}
	return backend.Task{}, false
}

// Snapshot returns a copy of every entry in display order.
func (c *TaskCache) Snapshot() []backend.Task {
	return c.Filter(nil)
}

// Filter returns copies of the entries for which keep returns true.
// A nil keep selects everything.
func (c *TaskCache) Filter(keep func(*backend.Task) bool) []backend.Task {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]backend.Task, 0, len(c.tasks))
	for i := range c.tasks {
		if keep == nil || keep(&c.tasks[i]) {
			out = append(out, c.tasks[i].Clone())
		}
	}
	return out
}

// Count returns the number of entries for which keep returns true.
func (c *TaskCache) Count(keep func(*backend.Task) bool) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for i := range c.tasks {
		if keep(&c.tasks[i]) {
			n++
		}
	}
	return n
}

// Len returns the number of entries.
func (c *TaskCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.tasks)
}

// MaxID returns the largest id held, or 0 when empty.
func (c *TaskCache) MaxID() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var maxID int64
	for i := range c.tasks {
		if c.tasks[i].ID > maxID {
			maxID = c.tasks[i].ID
		}
	}
	return maxID
}

// Version increments on every mutation.
func (c *TaskCache) Version() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

// View returns a live read-only handle on the cache.
func (c *TaskCache) View() View {
	return View{c: c}
}

// View is a read-only window onto a TaskCache. It reflects later mutations;
// every accessor returns copies.
type View struct {
	c *TaskCache
}

// Len returns the current number of tasks.
func (v View) Len() int {
	if v.c == nil {
		return 0
	}
	return v.c.Len()
}

// At returns a copy of the task at index i, or false when out of range.
func (v View) At(i int) (backend.Task, bool) {
	if v.c == nil {
		return backend.Task{}, false
	}
	v.c.mu.RLock()
	defer v.c.mu.RUnlock()
	if i < 0 || i >= len(v.c.tasks) {
		return backend.Task{}, false
	}
	return v.c.tasks[i].Clone(), true
}

// Tasks returns a point-in-time copy.
func (v View) Tasks() []backend.Task {
	if v.c == nil {
		return nil
	}
	return v.c.Snapshot()
}

// All iterates a point-in-time copy in display order.
func (v View) All() iter.Seq2[int, backend.Task] {
	tasks := v.Tasks()
	return func(yield func(int, backend.Task) bool) {
		for i, t := range tasks {
			if !yield(i, t) {
				return
			}
		}
	}
}

// Version reports the cache's mutation counter.
func (v View) Version() uint64 {
	if v.c == nil {
		return 0
	}
	return v.c.Version()
}
