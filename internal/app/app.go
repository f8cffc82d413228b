// Package app wires configuration, storage and services into a running
// server and owns their lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/joho/godotenv"

	"tanchat/pkg/config"
	"tanchat/pkg/dispatch"
	"tanchat/pkg/generate"
	"tanchat/pkg/logger"
	"tanchat/pkg/provider"
	"tanchat/pkg/repair"
	"tanchat/pkg/schedule"
	"tanchat/pkg/store"
)

// App encapsulates the server components and lifecycle.
type App struct {
	cfg     *config.Config
	addr    string
	sources string
	version string

	sched      *schedule.Scheduler
	sweeper    *repair.Sweeper
	dispatcher *dispatch.Dispatcher
	srv        *http.Server
}

// New initializes resources that do not require a running context: the
// store, the provider client and the service graph. Call Run to start the
// HTTP server and workers.
func New(cfg *config.Config, addr, sources, version string) (*App, error) {
	_ = godotenv.Load(".env")

	if err := store.Open(cfg.Storage.DBPath); err != nil {
		return nil, fmt.Errorf("failed to open pebble at %s: %w", cfg.Storage.DBPath, err)
	}

	gen := provider.New(cfg)
	orch := generate.New(cfg, gen)
	sched := schedule.New(cfg.Schedule.Queue, cfg.Schedule.Workers, func(ctx context.Context, t *schedule.Task) error {
		switch t.Name {
		case generate.TaskName:
			return orch.HandleTask(ctx, t.Payload)
		default:
			return fmt.Errorf("unknown task name: %s", t.Name)
		}
	})
	sweeper := repair.New(cfg, sched)
	dispatcher := dispatch.New(cfg, sched, sweeper)

	return &App{
		cfg:        cfg,
		addr:       addr,
		sources:    sources,
		version:    version,
		sched:      sched,
		sweeper:    sweeper,
		dispatcher: dispatcher,
	}, nil
}

// Run starts the workers, the repair cron and the HTTP server, and blocks
// until ctx is canceled or a fatal server error occurs.
func (a *App) Run(ctx context.Context) error {
	a.sched.Start(ctx)

	cronCancel, err := a.sweeper.StartCron(ctx)
	if err != nil {
		return err
	}
	defer cronCancel()

	a.printBanner()

	a.srv = &http.Server{Addr: a.addr, Handler: a.buildMux()}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http_listening", "addr", a.addr)
		errCh <- a.srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		return a.shutdown()
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (a *App) shutdown() error {
	logger.Info("shutting_down")
	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if a.srv != nil {
		_ = a.srv.Shutdown(shutCtx)
	}
	a.sched.Wait()
	if err := store.Close(); err != nil {
		logger.Error("store_close_failed", "error", err)
		return err
	}
	return nil
}
