// Package paginate walks a catalog's page sequence and yields bounded
// batches of unseen item URLs.
package paginate

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"carwatch/pkg/fetcher"
)

// CanonicalItemURL reports whether link is an item-detail link and, if
// so, returns its canonical form. Catalog pages link items as
// ".../item/<id>...#content"; the canonical identity swaps the fragment
// for the detail path.
func CanonicalItemURL(link string) (string, bool) {
	if !strings.Contains(link, "/item/") || !strings.HasSuffix(link, "#content") {
		return "", false
	}
	return strings.TrimSuffix(link, "#content") + "/details", true
}

// FilterItemLinks keeps only item-detail links, canonicalized and
// deduplicated, preserving first-seen order.
func FilterItemLinks(links []fetcher.Link) []string {
	seen := make(map[string]struct{})
	var items []string
	for _, link := range links {
		canonical, ok := CanonicalItemURL(link.URL)
		if !ok {
			continue
		}
		if _, dup := seen[canonical]; dup {
			continue
		}
		seen[canonical] = struct{}{}
		items = append(items, canonical)
	}
	return items
}

// Discovery is a lazy, single-pass batch iterator over a catalog's
// pages. Consuming it advances the page walk; abandoning it leaves
// later pages unvisited.
type Discovery struct {
	provider  fetcher.Provider
	baseURL   string
	maxPages  int
	batchSize int
	excluding map[string]struct{}
	visited   map[string]struct{}
	buffer    []string
	page      int
	logger    *slog.Logger
}

// NewDiscovery creates a Discovery starting at page 1. excluding holds
// identities that already produced an alert; skipping them here is an
// optimization, the record store's dedup-on-write is the correctness
// guarantee.
func NewDiscovery(provider fetcher.Provider, baseURL string, maxPages, batchSize int, excluding map[string]struct{}, logger *slog.Logger) *Discovery {
	if excluding == nil {
		excluding = make(map[string]struct{})
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Discovery{
		provider:  provider,
		baseURL:   baseURL,
		maxPages:  maxPages,
		batchSize: batchSize,
		excluding: excluding,
		visited:   make(map[string]struct{}),
		page:      1,
		logger:    logger.With("component", "paginate"),
	}
}

// Next returns the next batch of unseen item URLs. The final batch may
// be smaller than the batch size; an exhausted walk returns (nil, nil).
// A single page failure is logged and treated as an empty page; a dead
// fetch session is fatal.
func (d *Discovery) Next() ([]string, error) {
	for len(d.buffer) < d.batchSize && d.page <= d.maxPages {
		pageURL := fmt.Sprintf("%s&currentPage=%d&pageType=next", d.baseURL, d.page)
		d.logger.Info("scraping page", "page", d.page, "url", pageURL)
		d.page++

		links, err := d.provider.ListPageLinks(pageURL)
		if err != nil {
			if errors.Is(err, fetcher.ErrSession) {
				return nil, err
			}
			d.logger.Warn("page fetch failed, skipping", "url", pageURL, "error", err)
			continue
		}

		for _, item := range FilterItemLinks(links) {
			if _, dup := d.visited[item]; dup {
				continue
			}
			d.visited[item] = struct{}{}
			if _, seen := d.excluding[item]; seen {
				continue
			}
			d.buffer = append(d.buffer, item)
		}
	}

	if len(d.buffer) == 0 {
		return nil, nil
	}

	n := d.batchSize
	if len(d.buffer) < n {
		n = len(d.buffer)
	}
	batch := d.buffer[:n:n]
	d.buffer = d.buffer[n:]
	return batch, nil
}
