package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"carwatch/models"
	"carwatch/pkg/extract"
	"carwatch/pkg/fetcher"
	"carwatch/pkg/matcher"
	"carwatch/pkg/recordstore"
	"carwatch/pkg/seenset"
)

const testBase = "https://catalog.example/search?q=car"

func testPageURL(n int) string {
	return fmt.Sprintf("%s&currentPage=%d&pageType=next", testBase, n)
}

func itemIdentity(n int) string {
	return fmt.Sprintf("https://catalog.example/item/%d/details", n)
}

// catalogFake is an in-memory catalog: 25 items spread over 3 pages,
// every third item a diesel.
type catalogFake struct {
	broken map[string]error // item URL -> extraction failure
}

func isDiesel(n int) bool { return n%3 == 0 }

func (c *catalogFake) ListPageLinks(pageURL string) ([]fetcher.Link, error) {
	var from, to int
	switch pageURL {
	case testPageURL(1):
		from, to = 0, 10
	case testPageURL(2):
		from, to = 10, 20
	case testPageURL(3):
		from, to = 20, 25
	default:
		return nil, &fetcher.FetchError{URL: pageURL, Err: errors.New("status code 404")}
	}

	var links []fetcher.Link
	for i := from; i < to; i++ {
		links = append(links, fetcher.Link{
			URL:  fmt.Sprintf("https://catalog.example/item/%d#content", i),
			Text: fmt.Sprintf("Car %d", i),
		})
	}
	return links, nil
}

func (c *catalogFake) FetchItemSections(url string) (fetcher.Sections, error) {
	if err, ok := c.broken[url]; ok {
		return fetcher.Sections{}, err
	}

	var n int
	if _, err := fmt.Sscanf(url, "https://catalog.example/item/%d/details", &n); err != nil {
		return fetcher.Sections{}, &fetcher.FetchError{URL: url, Err: err}
	}

	fuel := "petrol"
	if isDiesel(n) {
		fuel = "diesel"
	}
	return fetcher.Sections{
		InfoRows: [][2]string{
			{"Fuel type:", fuel},
			{"Mileage:", fmt.Sprintf("%d km", n*1000)},
		},
	}, nil
}

// fuelScorer scores 0.9 for diesel records and 0.1 otherwise.
type fuelScorer struct{}

func (fuelScorer) Score(_ context.Context, _ string, rec models.Record) (float64, error) {
	if v, _ := rec.Info.Get("Fuel type"); v == "diesel" {
		return 0.9, nil
	}
	return 0.1, nil
}

// captureDispatcher records every digest it is asked to send.
type captureDispatcher struct {
	sent []models.Hit
	err  error
}

func (d *captureDispatcher) Send(hits []models.Hit) error {
	if d.err != nil {
		return d.err
	}
	d.sent = append(d.sent, hits...)
	return nil
}

type testEnv struct {
	dir        string
	provider   *catalogFake
	dispatcher *captureDispatcher
	seen       *seenset.Set
	store      *recordstore.Store
}

func newTestPipeline(t *testing.T, env *testEnv) *Pipeline {
	t.Helper()
	if env.dir == "" {
		env.dir = t.TempDir()
	}
	if env.provider == nil {
		env.provider = &catalogFake{}
	}
	if env.dispatcher == nil {
		env.dispatcher = &captureDispatcher{}
	}

	var err error
	env.seen, err = seenset.Load(filepath.Join(env.dir, "sent.json"))
	if err != nil {
		t.Fatalf("failed to load seen set: %v", err)
	}
	env.store, err = recordstore.Open(env.dir, 0, nil)
	if err != nil {
		t.Fatalf("failed to open record store: %v", err)
	}

	queries := []models.Query{{Text: "diesel kombi"}}
	m := matcher.New(fuelScorer{}, env.seen, queries, 0.5, nil)
	extractor := extract.New(env.provider, nil)
	scraper := models.ScraperConfig{BaseURL: testBase, MaxPages: 3, BatchSize: 10}

	return New(env.provider, extractor, env.store, m, env.dispatcher, env.seen,
		nil, scraper, nil)
}

func TestRun_EndToEnd(t *testing.T) {
	env := &testEnv{}
	p := newTestPipeline(t, env)

	stats, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	dieselCount := 0
	for i := 0; i < 25; i++ {
		if isDiesel(i) {
			dieselCount++
		}
	}

	if stats.Batches != 3 {
		t.Errorf("Batches = %d, want 3", stats.Batches)
	}
	if stats.Extracted != 25 {
		t.Errorf("Extracted = %d, want 25", stats.Extracted)
	}
	if stats.Stored != 25 {
		t.Errorf("Stored = %d, want 25", stats.Stored)
	}
	if stats.Hits != dieselCount {
		t.Errorf("Hits = %d, want %d", stats.Hits, dieselCount)
	}

	// All 25 records fit one shard.
	if env.store.ActiveShard() != 1 {
		t.Errorf("ActiveShard() = %d, want 1", env.store.ActiveShard())
	}
	if env.store.ActiveCount() != 25 {
		t.Errorf("ActiveCount() = %d, want 25", env.store.ActiveCount())
	}

	// Seen set is exactly the diesel identities.
	if env.seen.Len() != dieselCount {
		t.Errorf("seen set holds %d identities, want %d", env.seen.Len(), dieselCount)
	}
	for i := 0; i < 25; i++ {
		if env.seen.Contains(itemIdentity(i)) != isDiesel(i) {
			t.Errorf("seen(%d) = %v, want %v", i, !isDiesel(i), isDiesel(i))
		}
	}

	// Every hit was delivered for the single query.
	if len(env.dispatcher.sent) != dieselCount {
		t.Errorf("dispatched %d hits, want %d", len(env.dispatcher.sent), dieselCount)
	}
	for _, hit := range env.dispatcher.sent {
		if hit.QueryText != "diesel kombi" {
			t.Errorf("hit query = %q, want %q", hit.QueryText, "diesel kombi")
		}
	}
}

func TestRun_SecondRunIsQuiet(t *testing.T) {
	env := &testEnv{}
	p := newTestPipeline(t, env)
	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}

	// Rebuild against the same durable state, as a fresh process would.
	env2 := &testEnv{dir: env.dir}
	p2 := newTestPipeline(t, env2)
	stats, err := p2.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}

	if stats.Hits != 0 {
		t.Errorf("second run Hits = %d, want 0 (no re-alerting)", stats.Hits)
	}
	if stats.Stored != 0 {
		t.Errorf("second run Stored = %d, want 0 (dedup on write)", stats.Stored)
	}
	if env2.store.ActiveCount() != 25 {
		t.Errorf("record count after second run = %d, want 25", env2.store.ActiveCount())
	}
	if len(env2.dispatcher.sent) != 0 {
		t.Errorf("second run dispatched %d hits, want 0", len(env2.dispatcher.sent))
	}
}

func TestRun_ExtractionFailureDropsItemOnly(t *testing.T) {
	env := &testEnv{provider: &catalogFake{broken: map[string]error{
		itemIdentity(4): fetcher.ErrMissingSections,
	}}}
	p := newTestPipeline(t, env)

	stats, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if stats.Dropped != 1 {
		t.Errorf("Dropped = %d, want 1", stats.Dropped)
	}
	if stats.Extracted != 24 {
		t.Errorf("Extracted = %d, want 24", stats.Extracted)
	}
	if env.store.ActiveCount() != 24 {
		t.Errorf("stored records = %d, want 24", env.store.ActiveCount())
	}
}

func TestRun_SessionFailureIsFatal(t *testing.T) {
	env := &testEnv{provider: &catalogFake{broken: map[string]error{
		itemIdentity(4): fmt.Errorf("%w: browser gone", fetcher.ErrSession),
	}}}
	p := newTestPipeline(t, env)

	if _, err := p.Run(context.Background()); !errors.Is(err, fetcher.ErrSession) {
		t.Errorf("Run() error = %v, want ErrSession", err)
	}
}

func TestRun_DispatchFailureDoesNotAbortOrUnsee(t *testing.T) {
	env := &testEnv{dispatcher: &captureDispatcher{err: errors.New("smtp down")}}
	p := newTestPipeline(t, env)

	stats, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v (dispatch failures must not abort)", err)
	}

	if stats.Hits == 0 {
		t.Fatal("expected hits despite dispatch failure")
	}
	if stats.DispatchFailures != stats.Hits {
		t.Errorf("DispatchFailures = %d, want %d", stats.DispatchFailures, stats.Hits)
	}
	// Computed-but-undelivered alerts stay recorded: no re-alert later.
	if !env.seen.Contains(itemIdentity(0)) {
		t.Error("undelivered hit missing from seen set")
	}
}

func TestRun_CancelledContextStopsAtBatchBoundary(t *testing.T) {
	env := &testEnv{}
	p := newTestPipeline(t, env)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := p.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
	if env.store.ActiveCount() != 0 {
		t.Errorf("cancelled run stored %d records, want 0", env.store.ActiveCount())
	}
}
