package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/AI-Template-SDK/senso-insights/internal/config"
	"github.com/AI-Template-SDK/senso-insights/internal/models"
	"github.com/AI-Template-SDK/senso-insights/internal/testutil"
)

// mockAssistant is a LanguageAssistant driven by CompleteFunc
type mockAssistant struct {
	CompleteFunc func(ctx context.Context, req AssistantRequest) (*AssistantReply, error)
	calls        int
}

func (m *mockAssistant) Complete(ctx context.Context, req AssistantRequest) (*AssistantReply, error) {
	m.calls++
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, req)
	}
	return &AssistantReply{Text: NoRankingSentinel}, nil
}

func replyWith(text string) func(context.Context, AssistantRequest) (*AssistantReply, error) {
	return func(ctx context.Context, req AssistantRequest) (*AssistantReply, error) {
		return &AssistantReply{Text: text, Provider: "openai", Model: "gpt-4.1"}, nil
	}
}

func newTestExtractor(assistant LanguageAssistant) *RankingExtractor {
	return NewRankingExtractor(config.DefaultRankingWeights(), assistant, testutil.NopLogger())
}

func TestRankExplicitList(t *testing.T) {
	extractor := newTestExtractor(nil)

	result := extractor.Rank(context.Background(), "1. **Acme** — leads the market\n2. **Globex**", "Acme", []string{"Globex"})
	if result == nil {
		t.Fatal("Expected a ranking, got nil")
	}
	if result.RankList != "1. Acme\n2. Globex" {
		t.Errorf("Expected rank list %q, got %q", "1. Acme\n2. Globex", result.RankList)
	}
	if result.RankingPosition == nil || *result.RankingPosition != 1 {
		t.Errorf("Expected ranking position 1, got %v", result.RankingPosition)
	}
	if result.Confidence != 0.9 {
		t.Errorf("Expected confidence 0.9, got %v", result.Confidence)
	}
	if result.Method != models.RankingExplicitList {
		t.Errorf("Expected method %s, got %s", models.RankingExplicitList, result.Method)
	}
}

func TestRankNoSubjectMention(t *testing.T) {
	extractor := newTestExtractor(nil)

	result := extractor.Rank(context.Background(), "Globex is the top alternative", "Acme", []string{"Globex"})
	if result != nil {
		t.Fatalf("Expected no ranking, got %+v", result)
	}
}

func TestRankCascadeOrder(t *testing.T) {
	tests := []struct {
		name           string
		text           string
		assistantReply string
		wantMethod     models.RankingMethod
		wantList       string
		wantPosition   int
	}{
		{
			name:           "assistant answer wins",
			text:           "Globex and Acme Corp both ship SSO.",
			assistantReply: "1. Globex\n2. ACME inc",
			wantMethod:     models.RankingLLMAssisted,
			wantList:       "1. Globex\n2. Acme",
			wantPosition:   2,
		},
		{
			name:           "sentinel falls through to explicit list",
			text:           "## Ranking\n1. **Globex**\n2. **Acme**\n\n## Notes\n1. **Initech**",
			assistantReply: NoRankingSentinel,
			wantMethod:     models.RankingExplicitList,
			wantList:       "1. Globex\n2. Acme",
			wantPosition:   2,
		},
		{
			name:           "comparison paragraph",
			text:           "Intro about tools.\n\nAcme is better than Globex for small teams.\n\nInitech exists too.",
			assistantReply: NoRankingSentinel,
			wantMethod:     models.RankingSecondaryComparative,
			wantList:       "1. Acme\n2. Globex",
			wantPosition:   1,
		},
		{
			name:           "positional fallback",
			text:           "Initech is popular. Acme has good docs.",
			assistantReply: NoRankingSentinel,
			wantMethod:     models.RankingPositionalFallback,
			wantList:       "1. Initech\n2. Acme",
			wantPosition:   2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assistant := &mockAssistant{CompleteFunc: replyWith(tt.assistantReply)}
			extractor := newTestExtractor(assistant)

			result := extractor.Rank(context.Background(), tt.text, "Acme", []string{"Globex", "Initech"})
			if result == nil {
				t.Fatal("Expected a ranking, got nil")
			}
			if result.Method != tt.wantMethod {
				t.Errorf("Expected method %s, got %s", tt.wantMethod, result.Method)
			}
			if result.RankList != tt.wantList {
				t.Errorf("Expected rank list %q, got %q", tt.wantList, result.RankList)
			}
			if result.RankingPosition == nil || *result.RankingPosition != tt.wantPosition {
				t.Errorf("Expected position %d, got %v", tt.wantPosition, result.RankingPosition)
			}
			if assistant.calls != 1 {
				t.Errorf("Expected 1 assistant call, got %d", assistant.calls)
			}
		})
	}
}

func TestLLMAssistedStrategy(t *testing.T) {
	t.Run("skips without competitors", func(t *testing.T) {
		assistant := &mockAssistant{CompleteFunc: replyWith("1. Acme")}
		strategy := NewLLMAssistedStrategy(assistant, 1.0, testutil.NopLogger())

		result, err := strategy.TryExtractRanking(context.Background(), RankingInput{Text: "Acme", Subject: "Acme"})
		if err != nil || result != nil {
			t.Errorf("Expected nil result and error, got %+v, %v", result, err)
		}
		if assistant.calls != 0 {
			t.Errorf("Expected no assistant calls, got %d", assistant.calls)
		}
	})

	t.Run("drops names outside the list", func(t *testing.T) {
		assistant := &mockAssistant{CompleteFunc: replyWith("1. Hooli\n2. Globex\n3. Acme")}
		strategy := NewLLMAssistedStrategy(assistant, 1.0, testutil.NopLogger())

		result, err := strategy.TryExtractRanking(context.Background(), RankingInput{Text: "...", Subject: "Acme", Competitors: []string{"Globex"}})
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if result == nil || result.RankList != "1. Globex\n2. Acme" {
			t.Fatalf("Expected Globex then Acme, got %+v", result)
		}
		if result.Confidence != 1.0 {
			t.Errorf("Expected confidence 1.0, got %v", result.Confidence)
		}
	})

	t.Run("prompt carries the closed list", func(t *testing.T) {
		var prompt string
		assistant := &mockAssistant{CompleteFunc: func(ctx context.Context, req AssistantRequest) (*AssistantReply, error) {
			prompt = req.Prompt
			return &AssistantReply{Text: NoRankingSentinel}, nil
		}}
		strategy := NewLLMAssistedStrategy(assistant, 1.0, testutil.NopLogger())

		_, _ = strategy.TryExtractRanking(context.Background(), RankingInput{Text: "body", Subject: "Acme", Competitors: []string{"Globex", "acme inc"}})
		if !strings.Contains(prompt, "- Acme\n- Globex\n") {
			t.Errorf("Expected deduplicated company list in prompt, got %q", prompt)
		}
		if strings.Count(prompt, "- ") != 2 {
			t.Errorf("Expected exactly two list entries, got %q", prompt)
		}
	})
}

func TestRankAssistantErrorContinuesCascade(t *testing.T) {
	assistant := &mockAssistant{CompleteFunc: func(ctx context.Context, req AssistantRequest) (*AssistantReply, error) {
		return nil, errors.New("rate limited")
	}}
	extractor := newTestExtractor(assistant)

	result := extractor.Rank(context.Background(), "Acme leads. Globex follows.", "Acme", []string{"Globex"})
	if result == nil {
		t.Fatal("Expected fallback ranking, got nil")
	}
	if result.Method != models.RankingPositionalFallback {
		t.Errorf("Expected positional fallback, got %s", result.Method)
	}
	if result.Confidence != 0.5 {
		t.Errorf("Expected confidence 0.5, got %v", result.Confidence)
	}
}

func TestRankingPositionMatchesMentionedCompanies(t *testing.T) {
	texts := []string{
		"1. **Globex Ltd** great\n2. **Acme, Inc.** fine\n3. **Initech**",
		"Initech versus Acme: Acme wins.\n\nGlobex is also here.",
		"Globex, then Initech. No subject here.",
		"Acme only, with Globex in passing.",
		"## Rankings\n1. **ACME**\n2. **globex**",
	}
	extractor := newTestExtractor(nil)

	for _, text := range texts {
		result := extractor.Rank(context.Background(), text, "Acme Inc", []string{"Globex", "Initech"})
		if result == nil {
			continue
		}
		want := -1
		for i, name := range result.MentionedCompanies {
			if NormalizeCompanyName(name) == NormalizeCompanyName("Acme Inc") {
				want = i + 1
				break
			}
		}
		switch {
		case want == -1 && result.RankingPosition != nil:
			t.Errorf("%q: expected nil position, got %d", text, *result.RankingPosition)
		case want != -1 && (result.RankingPosition == nil || *result.RankingPosition != want):
			t.Errorf("%q: expected position %d, got %v", text, want, result.RankingPosition)
		}
		if got := RenderRankList(result.MentionedCompanies); got != result.RankList {
			t.Errorf("%q: mentioned companies %v disagree with rank list %q", text, result.MentionedCompanies, result.RankList)
		}
	}
}

func TestNormalizeCompanyName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Acme, Inc.", "acme"},
		{"ACME inc", "acme"},
		{"  Globex   Corporation ", "globex"},
		{"Initech LLC", "initech"},
		{"Co", "co"},
		{"Procter & Gamble Co", "procter gamble"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := NormalizeCompanyName(tt.in); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestParseRankList(t *testing.T) {
	got := ParseRankList("Here you go:\n1. **Acme**\n2) Globex\n\nthanks")
	if len(got) != 2 || got[0] != "Acme" || got[1] != "Globex" {
		t.Errorf("Expected [Acme Globex], got %v", got)
	}
}
