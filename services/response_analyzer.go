// services/response_analyzer.go
package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/AI-Template-SDK/senso-insights/internal/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type responseAnalyzer struct {
	ranking   *RankingExtractor
	sentiment *SentimentScorer
	now       func() time.Time
	logger    zerolog.Logger
}

func NewResponseAnalyzer(ranking *RankingExtractor, sentiment *SentimentScorer, logger zerolog.Logger) ResponseAnalyzer {
	return &responseAnalyzer{
		ranking:   ranking,
		sentiment: sentiment,
		now:       time.Now,
		logger:    logger.With().Str("component", "response_analyzer").Logger(),
	}
}

// Analyze builds the analysis record of one response. It returns ErrMissingContext when the
// response has no usable company or query, which callers record as a skipped item.
func (a *responseAnalyzer) Analyze(ctx context.Context, rc *models.ResponseContext, batchID *uuid.UUID) (*models.ResponseAnalysis, error) {
	if rc == nil {
		return nil, ErrMissingContext
	}
	subject := strings.TrimSpace(rc.CompanyName)
	if subject == "" || strings.TrimSpace(rc.QueryText) == "" {
		return nil, fmt.Errorf("response %d: %w", rc.ID, ErrMissingContext)
	}

	analysis := &models.ResponseAnalysis{
		ID:                 uuid.New(),
		ResponseID:         rc.ID,
		CompanyID:          rc.CompanyID,
		BatchID:            batchID,
		Engine:             rc.Engine,
		MentionedCompanies: []string{},
		Geography:          rc.Geography,
		Vertical:           rc.Vertical,
		Persona:            rc.Persona,
		BuyerJourney:       rc.BuyerJourney,
		CreatedAt:          a.now().UTC(),
	}

	text := rc.ResponseText
	competitors := uniqueNames(rc.CompetitorNames)

	if result := a.ranking.Rank(ctx, text, subject, competitors); result != nil {
		method := string(result.Method)
		confidence := result.Confidence
		analysis.RankList = result.RankList
		analysis.MentionedCompanies = result.MentionedCompanies
		analysis.RankingPosition = result.RankingPosition
		analysis.RankingMethod = &method
		analysis.RankingConfidence = &confidence
		analysis.CompanyMentioned = result.RankingPosition != nil
	} else {
		analysis.CompanyMentioned = strings.Contains(strings.ToLower(text), strings.ToLower(subject))
	}

	analysis.SentimentScore = a.sentiment.Score(text, subject)
	analysis.Recommended = IsRecommended(text, subject)

	classifyAgainst := append(append([]string{}, analysis.MentionedCompanies...), competitors...)
	for _, u := range ExtractCitationURLs(rc.Citations, text) {
		if ClassifySource(u, subject, rc.CompanyWebsites, classifyAgainst) == models.SourceOwned {
			analysis.Cited = true
			break
		}
	}

	if IsFeatureQuery(rc.QueryType, rc.QueryText) {
		verdict := AnalyzeSolution(text, subject)
		analysis.SolutionAnalysis = &verdict
	}

	a.logger.Debug().
		Int64("response_id", rc.ID).
		Str("rank_list", analysis.RankList).
		Bool("mentioned", analysis.CompanyMentioned).
		Bool("recommended", analysis.Recommended).
		Bool("cited", analysis.Cited).
		Msg("response analyzed")
	return analysis, nil
}
