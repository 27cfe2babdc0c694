package services

import (
	"context"
	"errors"
	"testing"

	"github.com/AI-Template-SDK/senso-insights/internal/models"
	"github.com/AI-Template-SDK/senso-insights/internal/testutil"
	"github.com/google/uuid"
)

func newTestAnalyzer() ResponseAnalyzer {
	return NewResponseAnalyzer(newTestExtractor(nil), NewSentimentScorer(), testutil.NopLogger())
}

func responseContext(id int64, text string, competitors ...string) *models.ResponseContext {
	companyID := uuid.New()
	return &models.ResponseContext{
		Response:        models.Response{ID: id, Engine: "perplexity", ResponseText: text},
		QueryText:       "what is the best crm for startups",
		CompanyID:       &companyID,
		CompanyName:     "Acme",
		CompetitorNames: competitors,
		Geography:       "US",
		Persona:         "founder",
	}
}

func TestAnalyzeExplicitRanking(t *testing.T) {
	rc := responseContext(1, "1. **Acme** — leads the market\n2. **Globex**", "Globex")
	batchID := uuid.New()

	analysis, err := newTestAnalyzer().Analyze(context.Background(), rc, &batchID)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if analysis.RankList != "1. Acme\n2. Globex" {
		t.Errorf("Expected rank list %q, got %q", "1. Acme\n2. Globex", analysis.RankList)
	}
	if analysis.RankingPosition == nil || *analysis.RankingPosition != 1 {
		t.Errorf("Expected position 1, got %v", analysis.RankingPosition)
	}
	if analysis.RankingMethod == nil || *analysis.RankingMethod != string(models.RankingExplicitList) {
		t.Errorf("Expected explicit-list method, got %v", analysis.RankingMethod)
	}
	if analysis.RankingConfidence == nil || *analysis.RankingConfidence != 0.9 {
		t.Errorf("Expected confidence 0.9, got %v", analysis.RankingConfidence)
	}
	if !analysis.CompanyMentioned {
		t.Error("Expected company_mentioned")
	}
	if len(analysis.MentionedCompanies) != 2 || analysis.MentionedCompanies[0] != "Acme" {
		t.Errorf("Expected mentioned companies [Acme Globex], got %v", analysis.MentionedCompanies)
	}
	if analysis.BatchID == nil || *analysis.BatchID != batchID {
		t.Error("Expected batch id on analysis")
	}
	if analysis.Geography != "US" || analysis.Persona != "founder" || analysis.Engine != "perplexity" {
		t.Error("Expected context fields copied onto analysis")
	}
	if analysis.SolutionAnalysis != nil {
		t.Error("Expected no solution analysis for a non-feature query")
	}
}

func TestAnalyzeSubjectNotMentioned(t *testing.T) {
	rc := responseContext(2, "Globex is the top alternative", "Globex")

	analysis, err := newTestAnalyzer().Analyze(context.Background(), rc, nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if analysis.RankingPosition != nil {
		t.Errorf("Expected nil position, got %d", *analysis.RankingPosition)
	}
	if analysis.CompanyMentioned {
		t.Error("Expected company_mentioned=false")
	}
	if analysis.SentimentScore != nil {
		t.Errorf("Expected nil sentiment, got %v", *analysis.SentimentScore)
	}
	if analysis.Recommended {
		t.Error("Expected recommended=false")
	}
}

func TestAnalyzeFlags(t *testing.T) {
	tests := []struct {
		name            string
		text            string
		citations       []string
		wantRecommended bool
		wantCited       bool
		wantMentioned   bool
	}{
		{
			name:            "recommended near mention",
			text:            "For most startups we recommend Acme because of its pricing.",
			wantRecommended: true,
			wantMentioned:   true,
		},
		{
			name:          "recommendation far from mention",
			text:          "Acme exists. Lorem ipsum dolor sit amet, consectetur adipiscing elit, sed do eiusmod tempor incididunt ut labore et dolore magna aliqua. Ut enim ad minim veniam. We recommend reading reviews.",
			wantMentioned: true,
		},
		{
			name:          "owned citation",
			text:          "Acme has a guide.",
			citations:     []string{"https://help.acme.com/guide"},
			wantCited:     true,
			wantMentioned: true,
		},
		{
			name:          "earned citation only",
			text:          "Acme has a guide.",
			citations:     []string{"https://techcrunch.com/acme"},
			wantMentioned: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rc := responseContext(3, tt.text, "Globex")
			rc.Citations = tt.citations

			analysis, err := newTestAnalyzer().Analyze(context.Background(), rc, nil)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if analysis.Recommended != tt.wantRecommended {
				t.Errorf("Expected recommended=%v, got %v", tt.wantRecommended, analysis.Recommended)
			}
			if analysis.Cited != tt.wantCited {
				t.Errorf("Expected cited=%v, got %v", tt.wantCited, analysis.Cited)
			}
			if analysis.CompanyMentioned != tt.wantMentioned {
				t.Errorf("Expected company_mentioned=%v, got %v", tt.wantMentioned, analysis.CompanyMentioned)
			}
		})
	}
}

func TestAnalyzeFeatureQuery(t *testing.T) {
	tests := []struct {
		name string
		text string
		want models.SolutionAnalysis
	}{
		{"affirmed", "Yes, Acme supports SAML single sign-on out of the box.", models.SolutionYes},
		{"negated", "Acme does not support SAML at this time.", models.SolutionNo},
		{"uncertain", "It is unclear whether Acme offers SAML; their docs do not say.", models.SolutionNotAvailable},
		{"ambiguous", "Acme is a CRM used by startups.", models.SolutionNo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rc := responseContext(4, tt.text)
			rc.QueryText = "Does Acme support SAML SSO?"

			analysis, err := newTestAnalyzer().Analyze(context.Background(), rc, nil)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if analysis.SolutionAnalysis == nil {
				t.Fatal("Expected a solution analysis")
			}
			if *analysis.SolutionAnalysis != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, *analysis.SolutionAnalysis)
			}
		})
	}
}

func TestIsFeatureQuery(t *testing.T) {
	tests := []struct {
		queryType string
		queryText string
		want      bool
	}{
		{"feature", "anything", true},
		{"", "Does Acme integrate with Slack?", true},
		{"", "Can Globex handle 10k users?", true},
		{"", "What is the best CRM?", false},
		{"comparison", "Acme vs Globex", false},
	}

	for _, tt := range tests {
		t.Run(tt.queryText, func(t *testing.T) {
			if got := IsFeatureQuery(tt.queryType, tt.queryText); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestAnalyzeMissingContext(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(rc *models.ResponseContext)
	}{
		{"no company", func(rc *models.ResponseContext) { rc.CompanyName = "  " }},
		{"no query", func(rc *models.ResponseContext) { rc.QueryText = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rc := responseContext(5, "Acme")
			tt.mutate(rc)

			_, err := newTestAnalyzer().Analyze(context.Background(), rc, nil)
			if !errors.Is(err, ErrMissingContext) {
				t.Errorf("Expected ErrMissingContext, got %v", err)
			}
		})
	}

	if _, err := newTestAnalyzer().Analyze(context.Background(), nil, nil); !errors.Is(err, ErrMissingContext) {
		t.Errorf("Expected ErrMissingContext for nil context, got %v", err)
	}
}

func TestAnalyzeAccentedCompanyNames(t *testing.T) {
	rc := responseContext(7, "Nestlé is an excellent and trusted brand, the best choice for families. Danone is also popular. Nestlé outperforms Danone.", "Danone")
	rc.CompanyName = "Nestlé"

	analysis, err := newTestAnalyzer().Analyze(context.Background(), rc, nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if analysis.SentimentScore == nil || *analysis.SentimentScore <= 0 {
		t.Errorf("Expected a positive sentiment score, got %v", analysis.SentimentScore)
	}
	if analysis.RankList != "1. Nestlé\n2. Danone" {
		t.Errorf("Expected rank list %q, got %q", "1. Nestlé\n2. Danone", analysis.RankList)
	}
	if analysis.RankingPosition == nil || *analysis.RankingPosition != 1 {
		t.Errorf("Expected position 1, got %v", analysis.RankingPosition)
	}
	if !analysis.CompanyMentioned || !analysis.Recommended {
		t.Errorf("Expected Nestlé mentioned and recommended, got mentioned=%v recommended=%v", analysis.CompanyMentioned, analysis.Recommended)
	}
}
