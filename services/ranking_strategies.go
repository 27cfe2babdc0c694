// services/ranking_strategies.go
package services

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/AI-Template-SDK/senso-insights/internal/models"
	"github.com/rs/zerolog"
)

// NoRankingSentinel is what the assistant answers when the text has no ranking
const NoRankingSentinel = "NO_RANKING"

var (
	headingRe      = regexp.MustCompile(`^\s*(?:#{1,6}\s+(.+?)|\*\*(.+?)\*\*:?)\s*$`)
	boldListItemRe = regexp.MustCompile(`^\s*(\d+)\s*[.)]\s+\*\*(.+?)\*\*`)
	comparisonRe   = regexp.MustCompile(`(?i)\b(compared (?:to|with)|versus|vs\.?|better than|worse than|superior to|inferior to|outperform(?:s|ed)?|ahead of|stronger than|weaker than|in comparison|unlike|edges? out|alternative to)\b`)
	paragraphSplit = regexp.MustCompile(`\n\s*\n`)
)

func buildRankingResult(names []string, subject string, confidence float64, method models.RankingMethod) *models.RankingResult {
	names = uniqueNames(names)
	if len(names) == 0 {
		return nil
	}
	return newRankingResult(names, subject, confidence, method)
}

// llmAssistedStrategy asks the language assistant to match the closed company list
type llmAssistedStrategy struct {
	assistant  LanguageAssistant
	confidence float64
	logger     zerolog.Logger
}

func NewLLMAssistedStrategy(assistant LanguageAssistant, confidence float64, logger zerolog.Logger) RankingStrategy {
	return &llmAssistedStrategy{assistant: assistant, confidence: confidence, logger: logger}
}

func (s *llmAssistedStrategy) Name() models.RankingMethod { return models.RankingLLMAssisted }

const rankingSystemPrompt = `You identify which companies from a fixed list are mentioned in a text and in what order they are ranked.

Rules:
1. Only use names from the provided list. Map spelling variants, abbreviations and product names to the canonical list name.
2. Only include a company when you are at least 90% confident the text refers to it.
3. Order companies by their rank in the text. If the text has no explicit ranking, order them by first appearance.
4. Answer with a numbered list, one company per line, like "1. Name".
5. If none of the listed companies are mentioned, answer exactly ` + NoRankingSentinel + `.`

func (s *llmAssistedStrategy) TryExtractRanking(ctx context.Context, in RankingInput) (*models.RankingResult, error) {
	if s.assistant == nil || len(in.Competitors) == 0 {
		return nil, nil
	}

	set := newCompanySet(in.Subject, in.Competitors)
	var list strings.Builder
	for _, name := range set.Names() {
		fmt.Fprintf(&list, "- %s\n", name)
	}
	prompt := fmt.Sprintf("COMPANY LIST:\n%s\nTEXT:\n```\n%s\n```", list.String(), in.Text)

	reply, err := s.assistant.Complete(ctx, AssistantRequest{System: rankingSystemPrompt, Prompt: prompt})
	if err != nil {
		return nil, fmt.Errorf("language assistant call failed: %w", err)
	}
	s.logger.Debug().
		Str("model", reply.Model).
		Int("input_tokens", reply.InputTokens).
		Int("output_tokens", reply.OutputTokens).
		Float64("cost", reply.Cost).
		Msg("ranking assistant call")

	text := strings.TrimSpace(reply.Text)
	if text == "" || strings.Contains(strings.ToUpper(text), NoRankingSentinel) {
		return nil, nil
	}

	var names []string
	for _, candidate := range ParseRankList(text) {
		if canonical, ok := set.Resolve(candidate); ok {
			names = append(names, canonical)
		}
	}
	return buildRankingResult(names, in.Subject, s.confidence, models.RankingLLMAssisted), nil
}

// explicitListStrategy reads a numbered list of bolded names, preferring "Ranking" sections
type explicitListStrategy struct {
	confidence float64
}

func NewExplicitListStrategy(confidence float64) RankingStrategy {
	return &explicitListStrategy{confidence: confidence}
}

func (s *explicitListStrategy) Name() models.RankingMethod { return models.RankingExplicitList }

func (s *explicitListStrategy) TryExtractRanking(ctx context.Context, in RankingInput) (*models.RankingResult, error) {
	set := newCompanySet(in.Subject, in.Competitors)

	type item struct {
		rank int
		name string
	}
	var items []item
	for _, line := range rankingSectionLines(in.Text) {
		m := boldListItemRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		canonical, ok := set.Resolve(strings.TrimRight(m[2], ":-– "))
		if !ok {
			continue
		}
		rank, _ := strconv.Atoi(m[1])
		items = append(items, item{rank: rank, name: canonical})
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].rank < items[j].rank })

	names := make([]string, len(items))
	for i, it := range items {
		names[i] = it.name
	}
	return buildRankingResult(names, in.Subject, s.confidence, models.RankingExplicitList), nil
}

// rankingSectionLines returns the lines under headings starting with "ranking",
// or every line when the text has no such section
func rankingSectionLines(text string) []string {
	lines := strings.Split(text, "\n")
	var section []string
	inRanking := false
	found := false
	for _, line := range lines {
		if m := headingRe.FindStringSubmatch(line); m != nil && !boldListItemRe.MatchString(line) {
			heading := m[1]
			if heading == "" {
				heading = m[2]
			}
			heading = strings.ToLower(strings.TrimLeft(heading, " #*_:-0123456789."))
			inRanking = strings.HasPrefix(heading, "ranking")
			found = found || inRanking
			continue
		}
		if inRanking {
			section = append(section, line)
		}
	}
	if !found {
		return lines
	}
	return section
}

// comparativeStrategy orders companies found in paragraphs with comparison language
type comparativeStrategy struct {
	confidence float64
}

func NewComparativeStrategy(confidence float64) RankingStrategy {
	return &comparativeStrategy{confidence: confidence}
}

func (s *comparativeStrategy) Name() models.RankingMethod { return models.RankingSecondaryComparative }

func (s *comparativeStrategy) TryExtractRanking(ctx context.Context, in RankingInput) (*models.RankingResult, error) {
	set := newCompanySet(in.Subject, in.Competitors)

	var names []string
	for _, paragraph := range paragraphSplit.Split(in.Text, -1) {
		if !comparisonRe.MatchString(paragraph) {
			continue
		}
		names = append(names, set.OrderOfAppearance(paragraph)...)
	}
	names = uniqueNames(names)
	if len(names) < 2 {
		return nil, nil
	}
	return buildRankingResult(names, in.Subject, s.confidence, models.RankingSecondaryComparative), nil
}

// positionalStrategy orders every recognized company by first appearance in the whole text
type positionalStrategy struct {
	confidence float64
}

func NewPositionalStrategy(confidence float64) RankingStrategy {
	return &positionalStrategy{confidence: confidence}
}

func (s *positionalStrategy) Name() models.RankingMethod { return models.RankingPositionalFallback }

func (s *positionalStrategy) TryExtractRanking(ctx context.Context, in RankingInput) (*models.RankingResult, error) {
	names := newCompanySet(in.Subject, in.Competitors).OrderOfAppearance(in.Text)
	if len(names) < 2 {
		return nil, nil
	}
	return buildRankingResult(names, in.Subject, s.confidence, models.RankingPositionalFallback), nil
}
