// Package watcher reloads tasks when another process changes the database.
// Changes are debounced so a burst of writes produces a single reload.
package watcher

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"remindo/internal/utils"
)

// DefaultDebounceDuration is the default debounce window for batching rapid changes.
const DefaultDebounceDuration = 500 * time.Millisecond

// Config holds file watcher configuration.
type Config struct {
	Paths            []string          // Paths to watch (files or directories)
	Match            func(string) bool // Filters event paths; nil accepts all
	DebounceDuration time.Duration     // Debounce window to batch rapid changes
	OnChange         func()            // Called once per debounced burst
	Logger           *utils.Logger
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig(onChange func()) *Config {
	return &Config{
		DebounceDuration: DefaultDebounceDuration,
		OnChange:         onChange,
	}
}

// ForDatabase watches the directory holding an SQLite database and reacts to
// the database file and its -wal and -journal companions.
func ForDatabase(dbPath string, onChange func()) *Config {
	cfg := DefaultConfig(onChange)
	base := filepath.Base(dbPath)
	cfg.Paths = []string{filepath.Dir(dbPath)}
	cfg.Match = func(name string) bool {
		n := filepath.Base(name)
		return n == base || n == base+"-wal" || n == base+"-journal"
	}
	return cfg
}

// Watcher monitors file system changes and calls OnChange.
type Watcher struct {
	cfg     *Config
	fsw     *fsnotify.Watcher
	stopCh  chan struct{}
	done    chan struct{}
	started bool
	stopped bool
	mu      sync.Mutex
}

// New creates a new Watcher instance.
func New(cfg *Config) (*Watcher, error) {
	if cfg.DebounceDuration <= 0 {
		cfg.DebounceDuration = DefaultDebounceDuration
	}
	if cfg.Logger == nil {
		cfg.Logger = utils.GetLogger()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Watcher{
		cfg:    cfg,
		fsw:    fsw,
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}, nil
}

// Start begins watching the configured paths. Paths that do not exist yet are
// skipped.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return fmt.Errorf("watcher has been stopped and cannot be restarted")
	}
	if w.started {
		return fmt.Errorf("watcher already started")
	}

	watched := 0
	for _, path := range w.cfg.Paths {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			w.cfg.Logger.Debug("watcher: skipping missing path %s", path)
			continue
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("failed to watch path %q: %w", path, err)
		}
		watched++
	}

	w.started = true
	go w.eventLoop()
	w.cfg.Logger.Debug("watcher: watching %d path(s)", watched)
	return nil
}

// Stop stops the watcher and waits for the event loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	started := w.started
	close(w.stopCh)
	_ = w.fsw.Close()
	w.mu.Unlock()

	if started {
		<-w.done
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
		return false
	}
	if w.cfg.Match != nil && !w.cfg.Match(event.Name) {
		return false
	}
	// Editors and SQLite both create short-lived temp files.
	return !strings.HasSuffix(event.Name, "~")
}

// eventLoop debounces events and calls OnChange after each quiet window.
func (w *Watcher) eventLoop() {
	defer close(w.done)

	debounce := time.NewTimer(time.Hour)
	debounce.Stop()
	defer debounce.Stop()

	for {
		select {
		case <-w.stopCh:
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			debounce.Reset(w.cfg.DebounceDuration)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.cfg.Logger.Warn("watcher: %v", err)

		case <-debounce.C:
			if w.cfg.OnChange != nil {
				w.cfg.OnChange()
			}
		}
	}
}
