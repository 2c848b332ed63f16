// Package fetcher provides the page-fetch capability the pipeline
// depends on: listing page links and extracting the structured sections
// of an item page. The HTTP implementation can be swapped for an
// in-memory fake in tests.
package fetcher

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// ErrSession marks an unrecoverable provider failure (the underlying
// fetch session is broken). Callers treat it as fatal for the run.
var ErrSession = errors.New("fetch session failed")

// consecutive transport-level failures before the session is declared dead
const sessionFailureLimit = 3

// FetchError is a transient page-level fetch failure.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Link is one anchor found on a catalog page.
type Link struct {
	URL  string
	Text string
}

// Sections holds the raw parsed sections of one item page, before
// normalization into a Record.
type Sections struct {
	InfoRows   [][2]string
	ExtraItems []string
	FreeText   string
}

// Provider is the capability interface the paginator and extractor use.
type Provider interface {
	ListPageLinks(pageURL string) ([]Link, error)
	FetchItemSections(url string) (Sections, error)
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// HTTPProvider fetches pages over plain HTTP with a desktop user agent
// and a bounded random delay between item fetches.
type HTTPProvider struct {
	client   *http.Client
	delayMin time.Duration
	delayMax time.Duration
	logger   *slog.Logger

	// consecutive transport failures; at sessionFailureLimit the
	// provider reports ErrSession instead of a page-level FetchError
	transportFails int
}

// Options configures an HTTPProvider. Zero delays disable pacing.
type Options struct {
	DelayMin time.Duration
	DelayMax time.Duration
	Timeout  time.Duration
	Logger   *slog.Logger
}

// NewHTTPProvider creates a provider with the given pacing options.
func NewHTTPProvider(opts Options) *HTTPProvider {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPProvider{
		client:   &http.Client{Timeout: timeout},
		delayMin: opts.DelayMin,
		delayMax: opts.DelayMax,
		logger:   logger.With("component", "fetcher"),
	}
}

// ListPageLinks returns every anchor on the page, hrefs resolved
// against the page URL.
func (p *HTTPProvider) ListPageLinks(pageURL string) ([]Link, error) {
	doc, err := p.get(pageURL)
	if err != nil {
		return nil, err
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, &FetchError{URL: pageURL, Err: err}
	}

	var links []Link
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		links = append(links, Link{
			URL:  base.ResolveReference(ref).String(),
			Text: strings.TrimSpace(s.Text()),
		})
	})
	p.logger.Debug("listed page links", "url", pageURL, "count", len(links))
	return links, nil
}

// FetchItemSections fetches one item page and parses its sections,
// pausing first to pace requests.
func (p *HTTPProvider) FetchItemSections(itemURL string) (Sections, error) {
	p.pause()
	doc, err := p.get(itemURL)
	if err != nil {
		return Sections{}, err
	}
	return ParseSections(doc)
}

// get fetches and parses a page, tracking consecutive transport
// failures so a dead session surfaces as ErrSession.
func (p *HTTPProvider) get(rawURL string) (*goquery.Document, error) {
	req, err := http.NewRequest(http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}
	req.Header.Set("User-Agent", defaultUserAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		p.transportFails++
		if p.transportFails >= sessionFailureLimit {
			return nil, fmt.Errorf("%w: %d consecutive transport errors, last: %v",
				ErrSession, p.transportFails, err)
		}
		return nil, &FetchError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()
	p.transportFails = 0

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{URL: rawURL, Err: fmt.Errorf("status code %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: fmt.Errorf("failed to parse HTML: %w", err)}
	}
	return doc, nil
}

// pause sleeps a random duration within the configured delay range.
// Pacing is etiquette only; correctness never depends on it.
func (p *HTTPProvider) pause() {
	if p.delayMax <= 0 {
		return
	}
	span := p.delayMax - p.delayMin
	d := p.delayMin
	if span > 0 {
		d += time.Duration(rand.Int63n(int64(span)))
	}
	time.Sleep(d)
}
