package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"remindo/backend"
	"remindo/backend/memory"
	"remindo/backend/postgres"
	"remindo/backend/sqlite"
	"remindo/internal/config"
	"remindo/internal/notification"
	"remindo/internal/reminder"
	"remindo/internal/service"
	"remindo/internal/shutdown"
	"remindo/internal/utils"
	"remindo/internal/watcher"
)

// shutdownTimeout bounds cleanup after a command finishes.
const shutdownTimeout = 5 * time.Second

// app wires the store, notifier, service and optional scheduler for one
// command.
type app struct {
	env      *env
	logger   *utils.Logger
	bg       *utils.BackgroundLogger
	store    backend.Store
	notifier notification.NotificationManager
	sched    *reminder.Scheduler
	svc      *service.Service
	watch    *watcher.Watcher
	shutdown *shutdown.Manager

	remind   bool
	sinks    []reminder.Sink
	fileOnly bool
}

type appOption func(*app)

// withReminders runs the reminder scheduler, delivering to the notifier and
// to sinks.
func withReminders(sinks ...reminder.Sink) appOption {
	return func(a *app) {
		a.remind = true
		a.sinks = sinks
	}
}

// withFileLogOnly keeps log lines off stderr while a full screen UI owns the
// terminal.
func withFileLogOnly() appOption {
	return func(a *app) { a.fileOnly = true }
}

// openApp builds the service. A store that cannot be opened is reported on
// stderr and the service starts in memory-only mode.
func (e *env) openApp(ctx context.Context, opts ...appOption) (*app, error) {
	a := &app{env: e, shutdown: shutdown.NewManager()}
	for _, opt := range opts {
		opt(a)
	}

	var console io.Writer = e.stderr
	if a.fileOnly {
		console = io.Discard
	}
	logOut := console
	if e.conf.Logging.File {
		bg, err := utils.NewBackgroundLoggerWithPath(filepath.Join(config.GetCacheDir(), "remindo.log"))
		if err == nil {
			a.bg = bg
			logOut = io.MultiWriter(console, bg.Writer())
		}
	}
	a.logger = utils.NewLogger(logOut, e.cfg.Verbose)
	a.shutdown.SetLogger(a.logger)

	a.notifier = e.cfg.Notifier
	if a.notifier == nil {
		settings := e.conf.NotificationSettings()
		n, err := notification.NewManager(&settings)
		if err != nil {
			return nil, err
		}
		a.notifier = n
	}

	store, err := e.openStore(ctx)
	if err != nil {
		a.logger.Warn("%v", err)
		_, _ = fmt.Fprintln(e.stderr, "Warning: running in memory-only mode; changes will not be saved.")
	} else {
		a.store = store
	}
	a.shutdown.RegisterCleanup("store", func(context.Context) error {
		if a.store == nil {
			return nil
		}
		return a.store.Close()
	})

	var reminders service.Reminders
	if a.remind && e.conf.Reminder.Enabled {
		cfg, err := e.conf.SchedulerConfig()
		if err != nil {
			_ = a.close()
			return nil, err
		}
		sink := append(reminder.FanoutSink{reminder.NotifierSink{Manager: a.notifier}}, a.sinks...)
		schedOpts := []reminder.Option{reminder.WithLogger(a.logger)}
		if e.cfg.Now != nil {
			schedOpts = append(schedOpts, reminder.WithClock(e.cfg.Now))
		}
		a.sched = reminder.New(cfg, sink, schedOpts...)
		reminders = a.sched
	}

	svcOpts := []service.Option{
		service.WithLogger(a.logger),
		service.WithNotifier(a.notifier),
	}
	if e.cfg.Now != nil {
		svcOpts = append(svcOpts, service.WithClock(e.cfg.Now))
	}
	a.svc = service.New(a.store, reminders, svcOpts...)
	// Stops the scheduler and flushes notifications.
	a.shutdown.RegisterCleanup("service", a.svc.Shutdown)

	a.svc.Refresh(ctx)

	if a.sched != nil {
		if err := a.sched.Start(ctx, a.svc); err != nil {
			_ = a.close()
			return nil, err
		}
	}
	return a, nil
}

// openStore connects the configured backend.
func (e *env) openStore(ctx context.Context) (backend.Store, error) {
	st := e.conf.Store
	switch st.Driver {
	case "memory":
		return memory.New(), nil

	case "sqlite":
		b, err := sqlite.New(ctx, st.SQLite.Path)
		if err != nil {
			return nil, utils.ErrStoreOffline("sqlite", err.Error())
		}
		return b, nil

	case "postgres":
		password := st.Postgres.Password
		if password == "" && st.Postgres.User != "" {
			info, err := e.credentials().Get(ctx, st.Postgres.User)
			if err != nil {
				return nil, utils.ErrStoreOffline("postgres", err.Error())
			}
			if !info.Found {
				return nil, utils.ErrCredentialsNotFound(st.Postgres.User)
			}
			password = info.Password
		}
		dsn, err := postgres.BuildDSN(st.Postgres.URL, st.Postgres.User, password)
		if err != nil {
			return nil, utils.ErrStoreOffline("postgres", err.Error())
		}
		b, err := postgres.New(ctx, dsn)
		if err != nil {
			return nil, utils.ErrStoreOffline("postgres", err.Error())
		}
		return b, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", st.Driver)
}

// watchDatabase reloads tasks when another process writes the SQLite file.
func (a *app) watchDatabase(ctx context.Context) error {
	if !a.env.conf.Watch.Enabled || a.store == nil || a.env.conf.Store.Driver != "sqlite" {
		return nil
	}
	cfg := watcher.ForDatabase(a.env.conf.Store.SQLite.Path, func() {
		a.logger.Debug("database changed on disk, reloading")
		a.svc.Refresh(ctx)
	})
	cfg.Logger = a.logger
	w, err := watcher.New(cfg)
	if err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		return err
	}
	a.watch = w
	a.shutdown.RegisterCleanup("watcher", func(context.Context) error {
		w.Stop()
		return nil
	})
	return nil
}

// close runs the registered cleanups in reverse order.
func (a *app) close() error {
	a.shutdown.Shutdown()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := a.shutdown.Wait(ctx)
	if a.bg != nil {
		a.bg.Close()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("shutdown timed out after %s", shutdownTimeout)
	}
	return err
}
