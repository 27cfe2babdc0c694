// services/citation_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AI-Template-SDK/senso-insights/internal/config"
	"github.com/AI-Template-SDK/senso-insights/internal/models"
	"github.com/AI-Template-SDK/senso-insights/internal/repositories/interfaces"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type citationService struct {
	citations   interfaces.CitationRepository
	reuseWindow time.Duration
	now         func() time.Time
	logger      zerolog.Logger
}

func NewCitationService(cfg *config.Config, repos *Repositories, logger zerolog.Logger) CitationService {
	return &citationService{
		citations:   repos.Citations,
		reuseWindow: cfg.Analysis.CitationReuseWindow,
		now:         time.Now,
		logger:      logger.With().Str("component", "citations").Logger(),
	}
}

// BuildCitations turns the response's URLs into citation rows. A URL with an original citation
// inside the reuse window becomes a reuse that copies the original's enrichment.
func (s *citationService) BuildCitations(ctx context.Context, analysis *models.ResponseAnalysis, rc *models.ResponseContext) ([]*models.Citation, error) {
	urls := ExtractCitationURLs(rc.Citations, rc.ResponseText)
	if len(urls) == 0 {
		return nil, nil
	}

	now := s.now().UTC()
	since := now.Add(-s.reuseWindow)
	competitors := append(append([]string{}, analysis.MentionedCompanies...), rc.CompetitorNames...)

	citations := make([]*models.Citation, 0, len(urls))
	for i, u := range urls {
		c := &models.Citation{
			ID:                 uuid.New(),
			ResponseAnalysisID: analysis.ID,
			CompanyID:          analysis.CompanyID,
			URL:                u,
			CitationOrder:      i + 1,
			SourceType:         ClassifySource(u, rc.CompanyName, rc.CompanyWebsites, competitors),
			Persona:            analysis.Persona,
			BuyerJourney:       analysis.BuyerJourney,
			Region:             analysis.Geography,
			RankList:           analysis.RankList,
			MentionedCompanies: append([]string{}, analysis.MentionedCompanies...),
			IsOriginal:         true,
			CreatedAt:          now,
			UpdatedAt:          now,
		}

		original, err := s.citations.FindReusableOriginal(ctx, u, since)
		switch {
		case err == nil:
			originID := original.ID
			c.IsOriginal = false
			c.OriginCitationID = &originID
			c.CitationEnrichment = copyEnrichment(original.CitationEnrichment)
		case errors.Is(err, interfaces.ErrNotFound):
		default:
			return nil, fmt.Errorf("failed to look up reusable citation for %s: %w", u, err)
		}
		citations = append(citations, c)
	}
	return citations, nil
}

// ProcessAnalysis builds and stores the citations of one analysis. The insert also stamps the
// analysis as processed, so a failure here leaves it visible to recovery.
func (s *citationService) ProcessAnalysis(ctx context.Context, analysis *models.ResponseAnalysis, rc *models.ResponseContext) models.ItemResult {
	analysisID := analysis.ID
	result := models.ItemResult{ResponseID: analysis.ResponseID, AnalysisID: &analysisID}

	citations, err := s.BuildCitations(ctx, analysis, rc)
	if err != nil {
		result.Status = models.ItemFailed
		result.Reason = err.Error()
		return result
	}
	if err := s.citations.InsertForAnalysis(ctx, analysis.ID, citations, s.now().UTC()); err != nil {
		result.Status = models.ItemFailed
		result.Reason = fmt.Sprintf("failed to insert citations: %v", err)
		return result
	}

	reused := 0
	for _, c := range citations {
		if !c.IsOriginal {
			reused++
		}
	}
	s.logger.Debug().
		Int64("response_id", analysis.ResponseID).
		Int("citations", len(citations)).
		Int("reused", reused).
		Msg("citations stored")

	result.Status = models.ItemSuccess
	return result
}

// copyEnrichment detaches the copied fields from the original's pointers
func copyEnrichment(src models.CitationEnrichment) models.CitationEnrichment {
	dst := models.CitationEnrichment{
		DomainAuthority:        copyPtr(src.DomainAuthority),
		PageAuthority:          copyPtr(src.PageAuthority),
		SpamScore:              copyPtr(src.SpamScore),
		ExternalLinks:          copyPtr(src.ExternalLinks),
		ExternalLinkingDomains: copyPtr(src.ExternalLinkingDomains),
		AuthorityEnrichedAt:    copyPtr(src.AuthorityEnrichedAt),
		MarkdownContent:        copyPtr(src.MarkdownContent),
		ScrapedAt:              copyPtr(src.ScrapedAt),
		ContentAnalysis:        copyPtr(src.ContentAnalysis),
		ContentAnalyzedAt:      copyPtr(src.ContentAnalyzedAt),
	}
	return dst
}

func copyPtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
