package services

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/AI-Template-SDK/senso-insights/internal/testutil"
)

func TestNewCitationIndexServiceWithoutBackends(t *testing.T) {
	if idx := NewCitationIndexService(testutil.TestConfig(), nil, nil, testutil.NopLogger()); idx != nil {
		t.Errorf("Expected nil indexer without backends, got %T", idx)
	}
}

func TestChunkMarkdown(t *testing.T) {
	tests := []struct {
		name     string
		markdown string
		want     []string
	}{
		{"empty", "  \n", nil},
		{"no headings", "Just a paragraph.", []string{"Just a paragraph."}},
		{
			name:     "lead text and headings",
			markdown: "Intro line\n# One\nfirst\n## Two\nsecond\n#### Deep\nstill two",
			want:     []string{"Intro line", "# One\nfirst", "## Two\nsecond\n#### Deep\nstill two"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := chunkMarkdown(tt.markdown)
			if len(got) != len(tt.want) {
				t.Fatalf("Expected %d chunks, got %d: %q", len(tt.want), len(got), got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Chunk %d: expected %q, got %q", i, tt.want[i], got[i])
				}
			}
		})
	}
}

func TestChunkMarkdownSplitsLongSections(t *testing.T) {
	long := strings.Repeat("é", maxChunkChars)
	chunks := chunkMarkdown(long)
	if len(chunks) < 2 {
		t.Fatalf("Expected a long section to be split, got %d chunks", len(chunks))
	}
	var total int
	for i, c := range chunks {
		if len(c) > maxChunkChars {
			t.Errorf("Chunk %d exceeds limit: %d bytes", i, len(c))
		}
		if !utf8.ValidString(c) {
			t.Errorf("Chunk %d splits a rune", i)
		}
		total += len(c)
	}
	if total != len(long) {
		t.Errorf("Expected %d bytes across chunks, got %d", len(long), total)
	}
}
