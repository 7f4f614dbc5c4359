// Package shutdown coordinates graceful termination: signal handling, ordered
// cleanup of the reminder scheduler, watcher and store, and a shared context
// that long-running commands observe.
package shutdown

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"remindo/internal/utils"
)

// CleanupFunc performs cleanup on shutdown. ctx is cancelled when the
// shutdown deadline passes.
type CleanupFunc func(ctx context.Context) error

type cleanupEntry struct {
	name string
	fn   CleanupFunc
}

// Manager handles graceful shutdown coordination.
type Manager struct {
	mu         sync.Mutex
	cleanups   []cleanupEntry
	shutdown   bool
	shutdownCh chan struct{}
	doneCh     chan struct{}
	ctx        context.Context
	cancel     context.CancelFunc
	once       sync.Once
	waitOnce   sync.Once
	logger     *utils.Logger
}

// NewManager creates a new shutdown manager.
func NewManager() *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		shutdownCh: make(chan struct{}),
		doneCh:     make(chan struct{}),
		ctx:        ctx,
		cancel:     cancel,
		logger:     utils.GetLogger(),
	}
}

// SetLogger replaces the logger used to report cleanup failures.
func (m *Manager) SetLogger(l *utils.Logger) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logger = l
}

// RegisterCleanup registers a cleanup function to be called during shutdown.
// Cleanup functions are called in LIFO order (last registered, first called).
func (m *Manager) RegisterCleanup(name string, fn CleanupFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleanups = append(m.cleanups, cleanupEntry{name: name, fn: fn})
}

// Shutdown initiates a graceful shutdown.
// Safe to call multiple times; only the first call has effect.
func (m *Manager) Shutdown() {
	m.once.Do(func() {
		m.mu.Lock()
		m.shutdown = true
		m.mu.Unlock()

		m.cancel()
		close(m.shutdownCh)
	})
}

// ListenForSignals calls Shutdown when one of sigs arrives (SIGINT and
// SIGTERM if none are given). The returned stop function releases the
// signal handler.
func (m *Manager) ListenForSignals(sigs ...os.Signal) (stop func()) {
	if len(sigs) == 0 {
		sigs = []os.Signal{os.Interrupt, syscall.SIGTERM}
	}
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, sigs...)

	quit := make(chan struct{})
	var stopOnce sync.Once
	go func() {
		select {
		case sig := <-ch:
			m.logger.Debug("shutdown: received %s", sig)
			m.Shutdown()
		case <-quit:
		case <-m.shutdownCh:
		}
	}()

	return func() {
		stopOnce.Do(func() {
			signal.Stop(ch)
			close(quit)
		})
	}
}

// ShutdownRequested is closed once Shutdown has been called.
func (m *Manager) ShutdownRequested() <-chan struct{} {
	return m.shutdownCh
}

// Done is closed once Wait has finished running every cleanup.
func (m *Manager) Done() <-chan struct{} {
	return m.doneCh
}

// runCleanups executes all cleanup functions in LIFO order. A failing
// cleanup does not stop the remaining ones.
func (m *Manager) runCleanups(ctx context.Context) error {
	m.mu.Lock()
	cleanups := make([]cleanupEntry, len(m.cleanups))
	copy(cleanups, m.cleanups)
	logger := m.logger
	m.mu.Unlock()

	var errs []error
	for i := len(cleanups) - 1; i >= 0; i-- {
		if err := cleanups[i].fn(ctx); err != nil {
			logger.Warn("shutdown: %s cleanup failed: %v", cleanups[i].name, err)
			errs = append(errs, fmt.Errorf("%s: %w", cleanups[i].name, err))
		}
	}
	return errors.Join(errs...)
}

// Wait runs the registered cleanups and returns once they finish or ctx
// expires. Cleanup errors are joined into the result. Only the first call
// runs cleanups; later calls wait for that run.
func (m *Manager) Wait(ctx context.Context) error {
	var errCh chan error
	m.waitOnce.Do(func() {
		errCh = make(chan error, 1)
		go func() {
			err := m.runCleanups(ctx)
			close(m.doneCh)
			errCh <- err
		}()
	})

	if errCh == nil {
		select {
		case <-m.doneCh:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsShutdown returns true if shutdown has been initiated.
func (m *Manager) IsShutdown() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.shutdown
}

// Context returns a context that is cancelled when shutdown is initiated.
func (m *Manager) Context() context.Context {
	return m.ctx
}
