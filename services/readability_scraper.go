// services/readability_scraper.go
package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/AI-Template-SDK/senso-insights/internal/config"
	readability "github.com/go-shiori/go-readability"
	"github.com/rs/zerolog"
)

const (
	maxPageBytes      = 5 << 20
	minReadableLength = 100
)

// readabilityScraper fetches pages directly and keeps the readable article text.
// Used when no Firecrawl key is configured.
type readabilityScraper struct {
	client  *http.Client
	caller  *resilientCaller
	metrics *Metrics
}

func NewReadabilityScraper(cfg *config.Config, metrics *Metrics, logger zerolog.Logger) ContentScraper {
	return &readabilityScraper{
		client: &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		caller:  newResilientCaller("direct-fetch", cfg.Queues, logger),
		metrics: metrics,
	}
}

func (s *readabilityScraper) Scrape(ctx context.Context, pageURL string) (*ScrapedPage, error) {
	parsedURL, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL %s: %w", pageURL, err)
	}

	var body []byte
	err = s.caller.Do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
		if err != nil {
			return &permanentError{err: fmt.Errorf("failed to create page request: %w", err)}
		}
		req.Header.Set("User-Agent", "senso-insights/1.0 (citation analysis)")
		req.Header.Set("Accept", "text/html,application/xhtml+xml")

		resp, err := s.client.Do(req)
		if err != nil {
			return fmt.Errorf("page request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			return newStatusError("direct-fetch", resp)
		}
		if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "html") {
			return &permanentError{err: fmt.Errorf("unsupported content type %q", ct)}
		}
		body, err = io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
		if err != nil {
			return fmt.Errorf("failed to read page body: %w", err)
		}
		return nil
	})
	s.metrics.externalCall("direct-fetch", err)
	if err != nil {
		return nil, err
	}

	article, err := readability.FromReader(bytes.NewReader(body), parsedURL)
	if err != nil {
		return nil, fmt.Errorf("failed to extract readable content: %w", err)
	}
	text := strings.TrimSpace(article.TextContent)
	if len(text) < minReadableLength {
		return nil, ErrEmptyContent
	}
	return &ScrapedPage{URL: pageURL, Markdown: text}, nil
}

// NewContentScraper prefers Firecrawl and falls back to direct fetching without a key
func NewContentScraper(cfg *config.Config, metrics *Metrics, logger zerolog.Logger) ContentScraper {
	if cfg.Firecrawl.APIKey != "" {
		return NewFirecrawlService(cfg, metrics, logger)
	}
	logger.Info().Msg("FIRECRAWL_API_KEY not set, content queue uses direct readability fetch")
	return NewReadabilityScraper(cfg, metrics, logger)
}
