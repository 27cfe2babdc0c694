// services/content_analysis_service.go
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/AI-Template-SDK/senso-insights/internal/config"
	"github.com/AI-Template-SDK/senso-insights/internal/models"
	"github.com/AI-Template-SDK/senso-insights/internal/repositories/interfaces"
	"github.com/rs/zerolog"
)

const contentAnalysisStage = "content_analysis"

// ContentAnalysisService scores scraped citation pages. A page is re-scored whenever it was
// scraped after its last analysis.
type ContentAnalysisService struct {
	citations interfaces.CitationRepository
	indexer   CitationIndexer
	limit     int
	metrics   *Metrics
	now       func() time.Time
	logger    zerolog.Logger
}

// NewContentAnalysisService wires the step. indexer may be nil when no search backend is configured.
func NewContentAnalysisService(cfg *config.Config, repos *Repositories, indexer CitationIndexer, metrics *Metrics, logger zerolog.Logger) *ContentAnalysisService {
	return &ContentAnalysisService{
		citations: repos.Citations,
		indexer:   indexer,
		limit:     cfg.Queues.ContentAnalysisLimit,
		metrics:   metrics,
		now:       time.Now,
		logger:    logger.With().Str("component", "content_analysis").Logger(),
	}
}

// Process analyses every citation whose markdown is newer than its analysis
func (s *ContentAnalysisService) Process(ctx context.Context) (*models.BatchSummary, error) {
	started := s.metrics.passStarted(contentAnalysisStage)
	summary, err := s.run(ctx)
	s.metrics.passFinished(contentAnalysisStage, started, err)
	return summary, err
}

func (s *ContentAnalysisService) run(ctx context.Context) (*models.BatchSummary, error) {
	candidates, err := s.citations.ListNeedingContentAnalysis(ctx, s.limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list citations needing content analysis: %w", err)
	}

	summary := &models.BatchSummary{}
	for _, cand := range candidates {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		id := cand.CitationID
		analysis := AnalyzeContent(cand.Markdown, ContentKeywords(cand.QueryText, cand.CompanyName))
		if err := analysis.Validate(); err != nil {
			s.logger.Warn().Err(err).Str("citation_id", id.String()).Msg("discarding invalid content analysis")
			summary.Add(models.ItemResult{CitationID: &id, Status: models.ItemFailed, Reason: err.Error()})
			s.metrics.observeItem(contentAnalysisStage, models.ItemFailed)
			continue
		}

		analyzedAt := s.now().UTC()
		if err := s.citations.UpdateContentAnalysis(ctx, id, analysis, analyzedAt); err != nil {
			return summary, fmt.Errorf("failed to store content analysis for citation %s: %w", id, err)
		}
		summary.Add(models.ItemResult{CitationID: &id, Status: models.ItemSuccess})
		s.metrics.observeItem(contentAnalysisStage, models.ItemSuccess)

		if s.indexer != nil {
			doc := CitationDocument{
				CitationID:  id,
				URL:         cand.URL,
				CompanyName: cand.CompanyName,
				Markdown:    cand.Markdown,
				Analysis:    analysis,
				AnalyzedAt:  analyzedAt,
			}
			if err := s.indexer.IndexCitation(ctx, doc); err != nil {
				s.logger.Warn().Err(err).Str("citation_id", id.String()).Msg("failed to index analysed citation")
			}
		}
	}

	if len(candidates) > 0 {
		s.logger.Info().Int("analyzed", summary.Succeeded).Int("failed", summary.Failed).Msg("content analysis pass completed")
	}
	return summary, nil
}
