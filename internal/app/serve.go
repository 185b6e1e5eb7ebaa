package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"momentum-scanner/internal/scan"
	"momentum-scanner/internal/scheduler"
	"momentum-scanner/internal/server"
	"momentum-scanner/internal/service"
)

// Serve runs the HTTP service, the scan executor and the optional scheduler
// until SIGINT or SIGTERM.
func (a *App) Serve(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; scan history disabled")
	}
	if closeStore != nil {
		defer closeStore()
	}

	p, err := a.newPipeline(store)
	if err != nil {
		return err
	}

	executor := scan.NewExecutor(a.Logger)
	svc := service.New(p.state, executor, p.runner, p.reports, a.Logger)
	httpServer := server.New(server.Options{
		Addr:            a.Config.Server.Addr,
		ReadTimeout:     a.Config.Server.ReadTimeout,
		WriteTimeout:    a.Config.Server.WriteTimeout,
		ShutdownTimeout: a.Config.Server.ShutdownTimeout,
		Release:         a.Config.App.Environment == "production",
	}, svc, a.Logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		executor.Run(gctx)
		return nil
	})
	g.Go(func() error {
		return httpServer.Run(gctx)
	})
	if a.Config.Scheduler.Enabled {
		sched := scheduler.New(scheduler.Options{
			Interval:     a.Config.Scheduler.Interval,
			AlignToStart: a.Config.Scheduler.AlignToBucket,
			StartupDelay: a.Config.Scheduler.StartupDelay,
			RunOnStart:   a.Config.Scheduler.RunOnStart,
		}, a.Logger)
		g.Go(func() error {
			err := sched.Run(gctx, scheduledScan(svc))
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	a.Logger.Info().
		Str("addr", a.Config.Server.Addr).
		Int("universe", len(a.Config.Scan.Universe)).
		Bool("scheduler", a.Config.Scheduler.Enabled).
		Msg("starting momentum scanner")

	if err := g.Wait(); err != nil {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("momentum scanner stopped")
	return nil
}

type scanStarter interface {
	StartScan(ctx context.Context) error
}

// scheduledScan adapts StartScan to a scheduler tick. A running scan turns the
// tick into a skip; ticks are never queued.
func scheduledScan(svc scanStarter) scheduler.TickFunc {
	return func(ctx context.Context, bucket time.Time) error {
		err := svc.StartScan(ctx)
		if errors.Is(err, service.ErrScanInProgress) {
			return fmt.Errorf("%w: %w", scheduler.ErrSkipped, err)
		}
		return err
	}
}
