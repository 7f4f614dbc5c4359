// Package health tracks whether the persistent store is usable.
//
// The flag starts healthy and latches unhealthy on the first store failure.
// There is no automatic recovery; a restart with a working store clears it.
package health

import (
	"sync"
	"time"
)

// Flag is a one-way healthy to unhealthy latch. Safe for concurrent use.
type Flag struct {
	mu        sync.Mutex
	unhealthy bool
	since     time.Time
	lastErr   error
	onTrip    []func(error)
	now       func() time.Time
}

// New creates a healthy flag. now stamps the transition; nil means time.Now.
func New(now func() time.Time) *Flag {
	if now == nil {
		now = time.Now
	}
	return &Flag{now: now}
}

// Healthy reports whether store calls should be attempted.
func (f *Flag) Healthy() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.unhealthy
}

// OnTrip registers fn to run once, outside the lock, when the flag first
// turns unhealthy.
func (f *Flag) OnTrip(fn func(error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onTrip = append(f.onTrip, fn)
}

// RecordFailure latches the flag unhealthy. It returns true only for the
// call that caused the transition.
func (f *Flag) RecordFailure(err error) bool {
	f.mu.Lock()
	f.lastErr = err
	if f.unhealthy {
		f.mu.Unlock()
		return false
	}
	f.unhealthy = true
	f.since = f.now()
	hooks := append([]func(error){}, f.onTrip...)
	f.mu.Unlock()

	for _, fn := range hooks {
		fn(err)
	}
	return true
}

// Since returns when the flag turned unhealthy, or the zero time.
func (f *Flag) Since() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.since
}

// LastError returns the most recent recorded failure.
func (f *Flag) LastError() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastErr
}
