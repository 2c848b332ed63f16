// Package run builds and executes one pipeline run from the CLI.
package run

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"carwatch/models"
	"carwatch/pkg/db"
	"carwatch/pkg/dispatch"
	"carwatch/pkg/extract"
	"carwatch/pkg/fetcher"
	"carwatch/pkg/matcher"
	"carwatch/pkg/pipeline"
	"carwatch/pkg/querystore"
	"carwatch/pkg/recordstore"
	"carwatch/pkg/scorer"
	"carwatch/pkg/seenset"
)

// NewLogger builds the shared JSON logger for CLI actions.
func NewLogger(quiet bool) *slog.Logger {
	level := slog.LevelInfo
	if quiet {
		level = slog.LevelError
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// Build assembles a pipeline from the config. The returned close
// function releases the history database.
func Build(cfg *models.Config, logger *slog.Logger, dryRun bool) (*pipeline.Pipeline, func(), error) {
	seenSet, err := seenset.Load(cfg.Storage.SeenFile)
	if err != nil {
		return nil, nil, err
	}

	queryList, err := querystore.Load(cfg.Storage.QueriesFile)
	if err != nil {
		return nil, nil, err
	}
	if len(queryList) == 0 {
		logger.Warn("no saved queries: listings will be stored but nothing can match",
			"queries_file", cfg.Storage.QueriesFile)
	}

	store, err := recordstore.Open(cfg.Storage.DataDir, recordstore.DefaultCapacity, logger)
	if err != nil {
		return nil, nil, err
	}

	// History is an audit trail only; a broken ledger must not block
	// the run.
	var history *db.DB
	history, err = db.Open(cfg.Storage.HistoryDB)
	if err != nil {
		logger.Warn("history database unavailable, continuing without it", "error", err)
		history = nil
	}
	closeFn := func() {
		if history != nil {
			_ = history.Close()
		}
	}

	provider := fetcher.NewHTTPProvider(fetcher.Options{
		DelayMin: time.Duration(cfg.Scraper.DelayMinMS) * time.Millisecond,
		DelayMax: time.Duration(cfg.Scraper.DelayMaxMS) * time.Millisecond,
		Logger:   logger,
	})
	extractor := extract.New(provider, logger)

	sc := scorer.NewHTTPScorer(cfg.Matcher.ScorerURL,
		time.Duration(cfg.Matcher.TimeoutSec)*time.Second)
	m := matcher.New(sc, seenSet, queryList, cfg.Matcher.Threshold, logger)

	var dispatcher dispatch.Dispatcher
	if dryRun || cfg.SMTP.Host == "" {
		dispatcher = &dispatch.LogDispatcher{Logger: logger}
	} else {
		dispatcher = dispatch.NewEmail(cfg.SMTP)
	}

	p := pipeline.New(provider, extractor, store, m, dispatcher, seenSet,
		history, cfg.Scraper, logger)
	return p, closeFn, nil
}

// RunAction is the `run` command: one full pipeline pass.
func RunAction(c *cli.Context) error {
	logger := NewLogger(c.Bool("quiet"))

	cfg, err := models.LoadConfig(c.String("config"))
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}

	p, closeFn, err := Build(cfg, logger, c.Bool("dry-run"))
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	defer closeFn()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stats, err := p.Run(ctx)
	if err != nil {
		logger.Error("run failed", "error", err)
		return cli.Exit("", 1)
	}

	fmt.Printf("Run finished: %d batches, %d extracted, %d stored, %d hits (%d dropped, %d undelivered)\n",
		stats.Batches, stats.Extracted, stats.Stored, stats.Hits,
		stats.Dropped, stats.DispatchFailures)
	return nil
}
