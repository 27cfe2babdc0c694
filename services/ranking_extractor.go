// services/ranking_extractor.go
package services

import (
	"context"

	"github.com/AI-Template-SDK/senso-insights/internal/config"
	"github.com/AI-Template-SDK/senso-insights/internal/models"
	"github.com/rs/zerolog"
)

// RankingExtractor runs the ranking cascade: the first strategy that returns a result wins
type RankingExtractor struct {
	strategies []RankingStrategy
	logger     zerolog.Logger
}

// NewRankingExtractor wires the default cascade, highest confidence first.
// A nil assistant leaves the llm-assisted step in place but always skipping.
func NewRankingExtractor(weights config.RankingWeights, assistant LanguageAssistant, logger zerolog.Logger) *RankingExtractor {
	return NewRankingExtractorWithStrategies(logger,
		NewLLMAssistedStrategy(assistant, weights.LLMAssisted, logger),
		NewExplicitListStrategy(weights.ExplicitList),
		NewComparativeStrategy(weights.SecondaryComparative),
		NewPositionalStrategy(weights.PositionalFallback),
	)
}

func NewRankingExtractorWithStrategies(logger zerolog.Logger, strategies ...RankingStrategy) *RankingExtractor {
	return &RankingExtractor{strategies: strategies, logger: logger}
}

// Rank returns nil when no strategy produced a ranking
func (e *RankingExtractor) Rank(ctx context.Context, text, subject string, competitors []string) *models.RankingResult {
	in := RankingInput{Text: text, Subject: subject, Competitors: competitors}
	for _, strategy := range e.strategies {
		result, err := strategy.TryExtractRanking(ctx, in)
		if err != nil {
			e.logger.Warn().Err(err).Str("strategy", string(strategy.Name())).Msg("ranking strategy failed, trying next")
			continue
		}
		if result == nil || len(result.MentionedCompanies) == 0 {
			continue
		}
		return result
	}
	return nil
}

// newRankingResult renders names and derives the subject position from the rendered list,
// so ranking_position always agrees with mentioned_companies
func newRankingResult(names []string, subject string, confidence float64, method models.RankingMethod) *models.RankingResult {
	rankList := RenderRankList(names)
	mentioned := ParseRankList(rankList)
	return &models.RankingResult{
		RankList:           rankList,
		RankingPosition:    RankingPosition(mentioned, subject),
		MentionedCompanies: mentioned,
		Confidence:         confidence,
		Method:             method,
	}
}
