// services/authority_client.go
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/AI-Template-SDK/senso-insights/internal/config"
	"github.com/AI-Template-SDK/senso-insights/internal/models"
	"github.com/rs/zerolog"
)

type authorityRequest struct {
	Scope   string   `json:"scope"`
	Targets []string `json:"targets"`
}

type authorityResult struct {
	Target                 string `json:"target"`
	DomainAuthority        int    `json:"domain_authority"`
	PageAuthority          int    `json:"page_authority"`
	SpamScore              int    `json:"spam_score"`
	ExternalLinks          int    `json:"external_links"`
	ExternalLinkingDomains int    `json:"external_linking_domains"`
	Error                  string `json:"error"`
}

type authorityResponse struct {
	Results []authorityResult `json:"results"`
}

type authorityClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	caller     *resilientCaller
	metrics    *Metrics
}

func NewAuthorityClient(cfg *config.Config, metrics *Metrics, logger zerolog.Logger) AuthorityClient {
	return &authorityClient{
		httpClient: &http.Client{},
		baseURL:    cfg.Authority.BaseURL,
		apiKey:     cfg.Authority.APIKey,
		caller:     newResilientCaller("authority-metrics", cfg.Queues, logger),
		metrics:    metrics,
	}
}

// FetchMetrics requests metrics for urls in one bulk call. Per-URL errors come back as outcomes;
// only a failure of the whole request is returned as an error.
func (c *authorityClient) FetchMetrics(ctx context.Context, urls []string) (map[string]AuthorityOutcome, error) {
	requestBody, err := json.Marshal(authorityRequest{Scope: "url", Targets: urls})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal authority request: %w", err)
	}

	var parsed authorityResponse
	err = c.caller.Do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/url-metrics", bytes.NewReader(requestBody))
		if err != nil {
			return &permanentError{err: fmt.Errorf("failed to create authority request: %w", err)}
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("authority request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return newStatusError("authority-metrics", resp)
		}
		parsed = authorityResponse{}
		if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
			return fmt.Errorf("failed to decode authority response: %w", err)
		}
		return nil
	})
	c.metrics.externalCall("authority-metrics", err)
	if err != nil {
		return nil, err
	}

	outcomes := make(map[string]AuthorityOutcome, len(parsed.Results))
	for _, r := range parsed.Results {
		key := NormalizeURLKey(r.Target)
		if r.Error != "" {
			outcomes[key] = AuthorityOutcome{Error: r.Error}
			continue
		}
		outcomes[key] = AuthorityOutcome{Metrics: &models.AuthorityMetrics{
			DomainAuthority:        r.DomainAuthority,
			PageAuthority:          r.PageAuthority,
			SpamScore:              r.SpamScore,
			ExternalLinks:          r.ExternalLinks,
			ExternalLinkingDomains: r.ExternalLinkingDomains,
		}}
	}
	return outcomes, nil
}
