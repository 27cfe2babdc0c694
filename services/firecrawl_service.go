// services/firecrawl_service.go
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/AI-Template-SDK/senso-insights/internal/config"
	"github.com/rs/zerolog"
)

// ErrEmptyContent means the page was fetched but produced no usable markdown
var ErrEmptyContent = errors.New("scrape returned no content")

// FirecrawlScrapeResult defines the structure of a scrape response
type FirecrawlScrapeResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Data    struct {
		Content  string `json:"content"`  // older field for markdown
		Markdown string `json:"markdown"` // newer field for markdown
		Metadata struct {
			Title      string `json:"title"`
			SourceURL  string `json:"sourceURL"`
			StatusCode int    `json:"statusCode"`
		} `json:"metadata"`
	} `json:"data"`
}

type firecrawlService struct {
	client  *http.Client
	baseURL string
	apiKey  string
	caller  *resilientCaller
	metrics *Metrics
}

// NewFirecrawlService creates the Firecrawl-backed content scraper
func NewFirecrawlService(cfg *config.Config, metrics *Metrics, logger zerolog.Logger) ContentScraper {
	return &firecrawlService{
		client:  &http.Client{},
		baseURL: strings.TrimRight(cfg.Firecrawl.BaseURL, "/"),
		apiKey:  cfg.Firecrawl.APIKey,
		caller:  newResilientCaller("firecrawl", cfg.Queues, logger),
		metrics: metrics,
	}
}

// Scrape calls the Firecrawl /v1/scrape endpoint for a single URL.
// Non-200 answers, unsuccessful payloads and malformed bodies all come back as errors.
func (s *firecrawlService) Scrape(ctx context.Context, urlToScrape string) (*ScrapedPage, error) {
	requestBody, err := json.Marshal(map[string]interface{}{
		"url":             urlToScrape,
		"formats":         []string{"markdown"},
		"onlyMainContent": true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal firecrawl request: %w", err)
	}

	var result FirecrawlScrapeResult
	err = s.caller.Do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/scrape", bytes.NewReader(requestBody))
		if err != nil {
			return &permanentError{err: fmt.Errorf("failed to create firecrawl request: %w", err)}
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+s.apiKey)

		resp, err := s.client.Do(req)
		if err != nil {
			return fmt.Errorf("firecrawl request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return newStatusError("firecrawl", resp)
		}
		result = FirecrawlScrapeResult{}
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return fmt.Errorf("failed to decode firecrawl response: %w", err)
		}
		if !result.Success {
			return &permanentError{err: fmt.Errorf("firecrawl scrape unsuccessful: %s", result.Error)}
		}
		return nil
	})
	s.metrics.externalCall("firecrawl", err)
	if err != nil {
		return nil, err
	}

	// The API sometimes returns markdown in 'content', sometimes in 'markdown'
	markdown := result.Data.Markdown
	if markdown == "" {
		markdown = result.Data.Content
	}
	if strings.TrimSpace(markdown) == "" {
		return nil, ErrEmptyContent
	}
	return &ScrapedPage{URL: urlToScrape, Title: result.Data.Metadata.Title, Markdown: markdown}, nil
}
