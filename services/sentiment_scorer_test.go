package services

import (
	"strings"
	"testing"
)

func TestSentimentScore(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		wantNil bool
		wantMin float64
		wantMax float64
	}{
		{
			name:    "never mentioned",
			text:    "Globex is excellent and reliable.",
			wantNil: true,
		},
		{
			name:    "positive mention",
			text:    "Acme is an excellent, reliable platform trusted by many teams.",
			wantMin: 0.5,
			wantMax: 1,
		},
		{
			name:    "negative mention",
			text:    "Acme is expensive and its support is poor.",
			wantMin: -1,
			wantMax: -0.5,
		},
		{
			name:    "neutral mention",
			text:    "Acme was founded in 2010 and is based in Ohio.",
			wantMin: 0,
			wantMax: 0,
		},
		{
			name:    "heavy praise is clamped",
			text:    "Acme is excellent, outstanding, exceptional, impressive, superb, robust, scalable, reliable and powerful.",
			wantMin: 1,
			wantMax: 1,
		},
		{
			name:    "heavy criticism is clamped",
			text:    "Acme is terrible, awful, buggy, insecure, outdated and unusable. Avoid it.",
			wantMin: -1,
			wantMax: -1,
		},
	}

	scorer := NewSentimentScorer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := scorer.Score(tt.text, "Acme")
			if tt.wantNil {
				if got != nil {
					t.Errorf("Expected nil score, got %v", *got)
				}
				return
			}
			if got == nil {
				t.Fatal("Expected a score, got nil")
			}
			if *got < tt.wantMin || *got > tt.wantMax {
				t.Errorf("Expected score in [%v, %v], got %v", tt.wantMin, tt.wantMax, *got)
			}
		})
	}
}

func TestSentimentRankAdjustment(t *testing.T) {
	scorer := NewSentimentScorer()

	first := scorer.Score("1. Acme\n2. Globex", "Acme")
	fourth := scorer.Score("1. Globex\n2. Initech\n3. Hooli\n4. Acme", "Acme")
	if first == nil || fourth == nil {
		t.Fatal("Expected scores for both lists")
	}
	if *first != 0.3 {
		t.Errorf("Expected first place adjustment 0.3, got %v", *first)
	}
	if *fourth != -0.2 {
		t.Errorf("Expected fourth place adjustment -0.2, got %v", *fourth)
	}
}

func TestSentimentConclusionWeighsMore(t *testing.T) {
	scorer := NewSentimentScorer()
	filler := strings.Repeat("Background on the market without any opinion. ", 20)

	early := scorer.Score("Acme is reliable. "+filler, "Acme")
	late := scorer.Score(filler+"\n## Conclusion\nAcme is reliable.", "Acme")
	if early == nil || late == nil {
		t.Fatal("Expected scores")
	}
	if *late <= *early {
		t.Errorf("Expected concluding mention to score higher: early %v, late %v", *early, *late)
	}
}

func TestSentimentAlwaysBounded(t *testing.T) {
	scorer := NewSentimentScorer()
	inputs := []string{
		"Acme",
		"acme ACME Acme. best-in-class? worst! Acme",
		strings.Repeat("Acme is the best and better than Globex. ", 50),
		strings.Repeat("Acme is slow, limited, lacking and clunky. ", 50),
		"Überlegen: Acme — ausgezeichnet ✓ " + strings.Repeat("é", 300) + " Acme",
	}
	for i, in := range inputs {
		got := scorer.Score(in, "Acme")
		if got == nil {
			t.Errorf("Expected a score for input %d", i)
			continue
		}
		if *got < -1 || *got > 1 {
			t.Errorf("Score out of bounds: %v", *got)
		}
	}
}

func TestCompanyMatcherUnicodeBoundaries(t *testing.T) {
	tests := []struct {
		name    string
		company string
		text    string
		want    int
	}{
		{name: "trailing accent", company: "Nestlé", text: "Nestlé is excellent. NESTLÉ ships worldwide.", want: 2},
		{name: "leading accent", company: "Émile", text: "Émile is excellent.", want: 1},
		{name: "glued to a letter", company: "Nestlé", text: "Nestléa and xNestlé are other brands.", want: 0},
		{name: "ascii name", company: "Acme", text: "Acme, AcmeCorp and acme.", want: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := newCompanyMatcher(tt.company, true).AllIndexes(tt.text)
			if len(got) != tt.want {
				t.Errorf("Expected %d mentions, got %d (%v)", tt.want, len(got), got)
			}
		})
	}

	if score := NewSentimentScorer().Score("Émile is excellent.", "Émile"); score == nil {
		t.Error("Expected a score for a mentioned accented name, got nil")
	}
}
