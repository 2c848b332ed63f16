// Package watch runs the pipeline on a cron schedule in-process.
package watch

import (
	"context"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/urfave/cli/v2"

	"carwatch/internal/run"
	"carwatch/models"
)

// WatchAction blocks and triggers a pipeline run at every cron tick.
// A tick is skipped while a previous run is still in flight: concurrent
// runs against the same stores are not supported.
func WatchAction(c *cli.Context) error {
	logger := run.NewLogger(c.Bool("quiet"))

	cfg, err := models.LoadConfig(c.String("config"))
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}

	loc, err := time.LoadLocation(cfg.Schedule.Timezone)
	if err != nil {
		return cli.Exit("invalid schedule timezone: "+err.Error(), 2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var inFlight atomic.Bool
	scheduler := cron.New(cron.WithLocation(loc))
	_, err = scheduler.AddFunc(cfg.Schedule.Cron, func() {
		if !inFlight.CompareAndSwap(false, true) {
			logger.Warn("previous run still in flight, skipping tick")
			return
		}
		defer inFlight.Store(false)

		// Stores are rebuilt per tick so every run sees fresh state.
		p, closeFn, err := run.Build(cfg, logger, false)
		if err != nil {
			logger.Error("failed to build pipeline", "error", err)
			return
		}
		defer closeFn()

		stats, err := p.Run(ctx)
		if err != nil {
			logger.Error("scheduled run failed", "error", err)
			return
		}
		logger.Info("scheduled run finished",
			"batches", stats.Batches, "stored", stats.Stored, "hits", stats.Hits)
	})
	if err != nil {
		return cli.Exit("invalid cron spec: "+err.Error(), 2)
	}

	logger.Info("scheduler started", "cron", cfg.Schedule.Cron, "timezone", cfg.Schedule.Timezone)
	scheduler.Start()

	<-ctx.Done()
	logger.Info("shutting down scheduler")
	stopCtx := scheduler.Stop()
	<-stopCtx.Done()
	return nil
}
