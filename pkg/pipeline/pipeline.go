// Package pipeline wires discovery, extraction, storage, matching and
// dispatch into one single-threaded batch run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"carwatch/models"
	"carwatch/pkg/db"
	"carwatch/pkg/dispatch"
	"carwatch/pkg/extract"
	"carwatch/pkg/fetcher"
	"carwatch/pkg/matcher"
	"carwatch/pkg/paginate"
	"carwatch/pkg/recordstore"
	"carwatch/pkg/seenset"
)

// Stats are the counters of one run.
type Stats struct {
	Batches          int
	Discovered       int
	Extracted        int
	Dropped          int
	Stored           int
	Hits             int
	DispatchFailures int
}

// Pipeline owns the batch lifecycle of one run. Persistence happens
// only at batch boundaries, so interrupting a run loses at most the
// in-flight batch.
type Pipeline struct {
	provider   fetcher.Provider
	extractor  *extract.Extractor
	store      *recordstore.Store
	matcher    *matcher.Matcher
	dispatcher dispatch.Dispatcher
	seen       *seenset.Set
	history    *db.DB
	scraper    models.ScraperConfig
	logger     *slog.Logger
}

// New assembles a pipeline. history may be nil; the ledger is
// best-effort and never fails a run.
func New(provider fetcher.Provider, extractor *extract.Extractor, store *recordstore.Store,
	m *matcher.Matcher, dispatcher dispatch.Dispatcher, seen *seenset.Set,
	history *db.DB, scraper models.ScraperConfig, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		provider:   provider,
		extractor:  extractor,
		store:      store,
		matcher:    m,
		dispatcher: dispatcher,
		seen:       seen,
		history:    history,
		scraper:    scraper,
		logger:     logger.With("component", "pipeline"),
	}
}

// Run drives Discover -> Extract -> Store -> Match -> Dispatch per
// batch until the page walk is exhausted. A fatal error (dead fetch
// session, storage write failure) aborts the run; everything already
// persisted stays intact and the next run resumes past it.
func (p *Pipeline) Run(ctx context.Context) (Stats, error) {
	var stats Stats

	runID := p.startHistory()
	discovery := paginate.NewDiscovery(p.provider, p.scraper.BaseURL,
		p.scraper.MaxPages, p.scraper.BatchSize, p.seen.Snapshot(), p.logger)

	p.logger.Info("starting scrape & match run",
		"base_url", p.scraper.BaseURL, "max_pages", p.scraper.MaxPages,
		"batch_size", p.scraper.BatchSize)

	for {
		if err := ctx.Err(); err != nil {
			p.finishHistory(runID, "fatal", stats)
			return stats, err
		}

		batch, err := discovery.Next()
		if err != nil {
			p.finishHistory(runID, "fatal", stats)
			return stats, fmt.Errorf("discovery failed: %w", err)
		}
		if batch == nil {
			break
		}

		stats.Batches++
		stats.Discovered += len(batch)
		p.logger.Info("processing batch", "batch", stats.Batches, "links", len(batch))

		records, err := p.extractBatch(runID, batch, &stats)
		if err != nil {
			p.finishHistory(runID, "fatal", stats)
			return stats, err
		}
		if len(records) == 0 {
			continue
		}

		added, err := p.store.AppendBatch(records)
		if err != nil {
			p.finishHistory(runID, "fatal", stats)
			return stats, fmt.Errorf("storage failed: %w", err)
		}
		stats.Stored += added

		hits, err := p.matcher.Match(ctx, records)
		if err != nil {
			p.finishHistory(runID, "fatal", stats)
			return stats, fmt.Errorf("matching failed: %w", err)
		}
		stats.Hits += len(hits)

		p.dispatchHits(runID, hits, &stats)
	}

	p.logger.Info("run finished", "batches", stats.Batches,
		"extracted", stats.Extracted, "stored", stats.Stored, "hits", stats.Hits)
	p.finishHistory(runID, "done", stats)
	return stats, nil
}

// extractBatch extracts every identity in the batch, dropping single
// failed items. Only a dead fetch session aborts the run.
func (p *Pipeline) extractBatch(runID int64, batch []string, stats *Stats) ([]models.Record, error) {
	records := make([]models.Record, 0, len(batch))
	for _, itemURL := range batch {
		rec, err := p.extractor.Extract(itemURL)
		if err != nil {
			if errors.Is(err, fetcher.ErrSession) {
				return nil, fmt.Errorf("extraction failed: %w", err)
			}
			stats.Dropped++
			p.logger.Warn("dropping item from batch", "url", itemURL, "error", err)
			p.recordEvent(runID, itemURL, "extract", "extraction_error", false)
			continue
		}
		stats.Extracted++
		records = append(records, rec)
	}
	return records, nil
}

// dispatchHits sends the batch's digest. Failures are logged only: the
// identities are already recorded as seen, so the alert is computed but
// not delivered (at-most-once alert record).
func (p *Pipeline) dispatchHits(runID int64, hits []models.Hit, stats *Stats) {
	if len(hits) == 0 {
		return
	}
	for _, hit := range hits {
		p.recordEvent(runID, hit.URL, "match", "", true)
	}
	if err := p.dispatcher.Send(hits); err != nil {
		stats.DispatchFailures += len(hits)
		p.logger.Error("dispatch failed, alerts not delivered",
			"hits", len(hits), "error", err)
		for _, hit := range hits {
			p.recordEvent(runID, hit.URL, "dispatch", "dispatch_error", false)
		}
		return
	}
	p.logger.Info("dispatched alert digest", "hits", len(hits))
}

func (p *Pipeline) startHistory() int64 {
	if p.history == nil {
		return 0
	}
	runID, err := p.history.StartRun()
	if err != nil {
		p.logger.Warn("failed to record run start", "error", err)
		return 0
	}
	return runID
}

func (p *Pipeline) finishHistory(runID int64, status string, stats Stats) {
	if p.history == nil || runID == 0 {
		return
	}
	totals := db.RunTotals{
		Batches:          stats.Batches,
		Discovered:       stats.Discovered,
		Extracted:        stats.Extracted,
		Dropped:          stats.Dropped,
		Stored:           stats.Stored,
		Hits:             stats.Hits,
		DispatchFailures: stats.DispatchFailures,
	}
	if err := p.history.FinishRun(runID, status, totals); err != nil {
		p.logger.Warn("failed to record run finish", "error", err)
	}
}

func (p *Pipeline) recordEvent(runID int64, url, phase, errorType string, success bool) {
	if p.history == nil || runID == 0 {
		return
	}
	if err := p.history.RecordItemEvent(runID, url, phase, errorType, success); err != nil {
		p.logger.Warn("failed to record item event", "error", err)
	}
}
