package services

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/AI-Template-SDK/senso-insights/internal/models"
	"github.com/AI-Template-SDK/senso-insights/internal/testutil"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

type contentFixture struct {
	store   *testutil.MemoryStore
	server  *testutil.MockScrapeServer
	queue   *ContentQueue
	tracker BatchTrackingService
}

func newContentFixture(t *testing.T) *contentFixture {
	t.Helper()
	server := testutil.NewMockScrapeServer()
	t.Cleanup(server.Close)

	cfg := testutil.TestConfig()
	cfg.Firecrawl.BaseURL = server.Server.URL
	cfg.Firecrawl.APIKey = "test-key"
	store := testutil.NewMemoryStore()
	repos := newTestRepos(store)
	metrics := NewMetrics(prometheus.NewRegistry())
	tracker := NewBatchTrackingService(repos, testutil.NopLogger())
	scraper := NewContentScraper(cfg, metrics, testutil.NopLogger())

	return &contentFixture{
		store:   store,
		server:  server,
		queue:   NewContentQueue(cfg, repos, scraper, tracker, metrics, testutil.NopLogger()),
		tracker: tracker,
	}
}

func TestContentQueueMixedPass(t *testing.T) {
	ctx := context.Background()
	f := newContentFixture(t)

	ok := seedOriginal(f.store, "https://acme.com/guide")
	pdf := seedOriginal(f.store, "https://acme.com/whitepaper.pdf")
	missing := seedOriginal(f.store, "https://globex.com/gone")
	f.server.Pages["https://acme.com/guide"] = "# Guide\n\nAcme is the best choice for teams."

	summary, err := f.queue.Process(ctx)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if summary.Succeeded != 1 || summary.Failed != 1 || summary.Skipped != 1 {
		t.Errorf("Expected 1 succeeded, 1 failed, 1 skipped, got %+v", summary)
	}

	c, _ := f.store.Citation(ok)
	if c.MarkdownContent == nil || !strings.Contains(*c.MarkdownContent, "Acme is the best") {
		t.Errorf("Expected scraped markdown, got %v", c.MarkdownContent)
	}
	if c.ScrapedAt == nil || c.ScrapeError != nil {
		t.Errorf("Expected scrape timestamp and no error, got %v %v", c.ScrapedAt, c.ScrapeError)
	}

	skipped, _ := f.store.Citation(pdf)
	if skipped.ScrapeError == nil || *skipped.ScrapeError != nonHTMLSkipReason {
		t.Errorf("Expected non-HTML skip reason, got %v", skipped.ScrapeError)
	}
	if skipped.ScrapeAttempts != 3 {
		t.Errorf("Expected skip to exhaust attempts, got %d", skipped.ScrapeAttempts)
	}
	for _, called := range f.server.Calls {
		if called == "https://acme.com/whitepaper.pdf" {
			t.Error("Expected non-HTML document not to be scraped")
		}
	}

	gone, _ := f.store.Citation(missing)
	if gone.ScrapeError == nil || gone.ScrapedAt == nil || gone.MarkdownContent != nil {
		t.Errorf("Expected recorded failure with timestamp, got %+v", gone)
	}

	batch, err := f.tracker.Get(ctx, summary.BatchID)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if batch.Type != models.BatchContentEnrichment || batch.Status != models.BatchCompleted {
		t.Errorf("Expected completed content batch, got %s %s", batch.Type, batch.Status)
	}
}

func TestContentQueueScrapeFailures(t *testing.T) {
	tests := []struct {
		name         string
		setup        func(s *testutil.MockScrapeServer, url string)
		wantCalls    int
		wantAttempts int
		wantInSet    bool
	}{
		{
			name:         "unsuccessful payload is permanent",
			setup:        func(s *testutil.MockScrapeServer, url string) {},
			wantCalls:    1,
			wantAttempts: 3,
			wantInSet:    false,
		},
		{
			name:         "malformed body is retried",
			setup:        func(s *testutil.MockScrapeServer, url string) { s.Malformed[url] = true },
			wantCalls:    2,
			wantAttempts: 1,
			wantInSet:    true,
		},
		{
			name:         "server error is retried",
			setup:        func(s *testutil.MockScrapeServer, url string) { s.Statuses[url] = http.StatusServiceUnavailable },
			wantCalls:    2,
			wantAttempts: 1,
			wantInSet:    true,
		},
		{
			name:         "forbidden is permanent",
			setup:        func(s *testutil.MockScrapeServer, url string) { s.Statuses[url] = http.StatusForbidden },
			wantCalls:    1,
			wantAttempts: 3,
			wantInSet:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newContentFixture(t)
			url := "https://initech.com/page"
			id := seedOriginal(f.store, url)
			tt.setup(f.server, url)

			summary, err := f.queue.Process(context.Background())
			if err != nil {
				t.Fatalf("Expected scrape failures to stay per-item, got %v", err)
			}
			if summary.Failed != 1 {
				t.Errorf("Expected 1 failed item, got %d", summary.Failed)
			}
			if f.server.CallCount() != tt.wantCalls {
				t.Errorf("Expected %d scrape calls, got %d", tt.wantCalls, f.server.CallCount())
			}
			c, _ := f.store.Citation(id)
			if c.ScrapeAttempts != tt.wantAttempts {
				t.Errorf("Expected %d attempts, got %d", tt.wantAttempts, c.ScrapeAttempts)
			}
			if inSet := len(f.queue.FailedIDs()) == 1; inSet != tt.wantInSet {
				t.Errorf("Expected in failed set=%v, got %v", tt.wantInSet, inSet)
			}
		})
	}
}

func TestContentQueueRetryClearsError(t *testing.T) {
	ctx := context.Background()
	f := newContentFixture(t)
	url := "https://acme.com/flaky"
	id := seedOriginal(f.store, url)
	f.server.Malformed[url] = true

	if _, err := f.queue.Process(ctx); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	delete(f.server.Malformed, url)
	f.server.Pages[url] = "Recovered page body"

	summary, err := f.queue.Process(ctx)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if summary.Succeeded != 1 {
		t.Errorf("Expected retry to succeed, got %+v", summary)
	}
	c, _ := f.store.Citation(id)
	if c.ScrapeError != nil {
		t.Errorf("Expected scrape error cleared, got %q", *c.ScrapeError)
	}
	if stats := f.queue.Stats(); stats.Retried != 1 || stats.FailedPending != 0 {
		t.Errorf("Unexpected stats %+v", stats)
	}
}

func TestContentQueueFillsReuses(t *testing.T) {
	f := newContentFixture(t)
	original := seedOriginal(f.store, "https://acme.com/guide")
	reuseID := uuid.New()
	f.store.AddCitation(&models.Citation{ID: reuseID, URL: "https://acme.com/guide", OriginCitationID: &original, CreatedAt: time.Now()})
	f.server.Pages["https://acme.com/guide"] = "Guide body"

	if _, err := f.queue.Process(context.Background()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if f.server.CallCount() != 1 {
		t.Errorf("Expected a single scrape for the original, got %d", f.server.CallCount())
	}
	reuse, _ := f.store.Citation(reuseID)
	if reuse.MarkdownContent == nil || *reuse.MarkdownContent != "Guide body" {
		t.Errorf("Expected reuse to receive the original's markdown, got %v", reuse.MarkdownContent)
	}
}

func TestContentQueueEmptyPass(t *testing.T) {
	f := newContentFixture(t)
	summary, err := f.queue.Process(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if summary.BatchID != uuid.Nil {
		t.Errorf("Expected no batch for an empty pass, got %s", summary.BatchID)
	}
}
