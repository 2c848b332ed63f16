// Package matcher scores batches of records against the saved queries
// and owns the already-alerted set.
package matcher

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"carwatch/models"
	"carwatch/pkg/scorer"
	"carwatch/pkg/seenset"
)

// brand attribute keys checked for the query brand facet
var brandKeys = []string{"brand", "make", "manufacturer"}

// Matcher evaluates records against the ordered query list with
// first-match-wins semantics: a record matching several queries is
// reported only for the earliest one, bounding alerts to one per item.
type Matcher struct {
	scorer    scorer.Scorer
	seen      *seenset.Set
	queries   []models.Query
	threshold float64
	logger    *slog.Logger
}

// New creates a Matcher over the given query list and threshold.
func New(sc scorer.Scorer, seen *seenset.Set, queries []models.Query, threshold float64, logger *slog.Logger) *Matcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Matcher{
		scorer:    sc,
		seen:      seen,
		queries:   queries,
		threshold: threshold,
		logger:    logger.With("component", "matcher"),
	}
}

// Match scores each record in batch order. Already-alerted identities
// are never re-scored. After the batch, the seen set is flushed in one
// durable write if any hit occurred; a flush failure is returned along
// with the hits so the caller can abort before the next batch.
func (m *Matcher) Match(ctx context.Context, batch []models.Record) ([]models.Hit, error) {
	var hits []models.Hit

	for _, rec := range batch {
		if m.seen.Contains(rec.URL) {
			continue
		}

		for _, q := range m.queries {
			if !m.queryApplies(q, rec) {
				continue
			}

			score, err := m.scorer.Score(ctx, q.Text, rec)
			if err != nil {
				if ctx.Err() != nil {
					return hits, ctx.Err()
				}
				m.logger.Warn("scorer call failed, skipping pair",
					"url", rec.URL, "query", q.Text, "error", err)
				continue
			}

			if score >= m.threshold {
				hits = append(hits, models.Hit{URL: rec.URL, QueryText: q.Text})
				m.seen.Add(rec.URL)
				break
			}
		}
	}

	if len(hits) > 0 {
		if err := m.seen.Flush(); err != nil {
			return hits, fmt.Errorf("failed to persist seen set: %w", err)
		}
		m.logger.Info("batch matched", "hits", len(hits), "seen_total", m.seen.Len())
	}
	return hits, nil
}

// queryApplies checks the brand facet: a query with a brand only
// applies to records whose brand attribute contains it.
func (m *Matcher) queryApplies(q models.Query, rec models.Record) bool {
	if q.Brand == "" {
		return true
	}
	for _, field := range rec.Info {
		for _, key := range brandKeys {
			if strings.EqualFold(field.Key, key) {
				return strings.Contains(strings.ToLower(field.Value), strings.ToLower(q.Brand))
			}
		}
	}
	return false
}
