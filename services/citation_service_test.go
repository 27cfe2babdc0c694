package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/AI-Template-SDK/senso-insights/internal/models"
	"github.com/AI-Template-SDK/senso-insights/internal/repositories/interfaces"
	"github.com/AI-Template-SDK/senso-insights/internal/testutil"
	"github.com/google/uuid"
)

func TestCleanCitationURL(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"https://blog.acme.com/post].", "https://blog.acme.com/post"},
		{"<https://acme.com/a>", "https://acme.com/a"},
		{"(https://acme.com/a).", "https://acme.com/a"},
		{"https://en.wikipedia.org/wiki/Acme_(company)", "https://en.wikipedia.org/wiki/Acme_(company)"},
		{"https://acme.com/docs**,", "https://acme.com/docs"},
		{"  https://acme.com/x\"; ", "https://acme.com/x"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			if got := CleanCitationURL(tt.raw); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestCanonicalizeURL(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{"markdown artifacts", "https://blog.acme.com/post].", "https://blog.acme.com/post", false},
		{"www and trailing slash", "https://WWW.Acme.com/pricing/", "https://acme.com/pricing", false},
		{"utm parameters and fragment", "https://acme.com/p?utm_source=chatgpt&id=7#top", "https://acme.com/p?id=7", false},
		{"keeps port", "http://acme.com:8080/x", "http://acme.com:8080/x", false},
		{"ftp scheme", "ftp://acme.com/file", "", true},
		{"ip host", "http://10.0.0.1/admin", "", true},
		{"no registrable domain", "https://localhost/x", "", true},
		{"garbage", "not a url", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CanonicalizeURL(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Errorf("Expected error for %q, got %q", tt.raw, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestNormalizeURLKey(t *testing.T) {
	a := NormalizeURLKey("HTTPS://www.Acme.com/Pricing/")
	b := NormalizeURLKey("http://acme.com/pricing")
	if a != b {
		t.Errorf("Expected equal keys, got %q and %q", a, b)
	}
}

func TestClassifySource(t *testing.T) {
	websites := []string{"https://www.acme.io"}
	competitors := []string{"Globex", "Initech Corp"}

	tests := []struct {
		url  string
		want models.SourceType
	}{
		{"https://blog.acme.com/post", models.SourceOwned},
		{"https://docs.acme.io/start", models.SourceOwned},
		{"https://globex.com/compare", models.SourceCompetitor},
		{"https://initech.co.uk/blog", models.SourceCompetitor},
		{"https://www.reddit.com/r/saas/comments/1", models.SourceUGC},
		{"https://www.g2.com/products/acme", models.SourceUGC},
		{"https://techcrunch.com/2025/acme-raises", models.SourceEarned},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			if got := ClassifySource(tt.url, "Acme Inc", websites, competitors); got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestExtractCitationURLs(t *testing.T) {
	citations := []string{
		"https://acme.com/a/",
		"not-a-url",
		"https://cdn.acme.com/logo.png",
	}
	text := "See https://www.acme.com/a and https://globex.com/b). Also https://globex.com/b again."

	got := ExtractCitationURLs(citations, text)
	want := []string{"https://acme.com/a", "https://globex.com/b"}
	if len(got) != len(want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Expected %q at %d, got %q", want[i], i, got[i])
		}
	}
}

func newCitationFixture(t *testing.T) (*testutil.MemoryStore, CitationService, *models.ResponseAnalysis, *models.ResponseContext) {
	t.Helper()
	store := testutil.NewMemoryStore()
	repos := &Repositories{
		Responses: store.Responses(),
		Analyses:  store.AnalysisRepo(),
		Citations: store.CitationRepo(),
		Batches:   store.BatchRepo(),
	}
	companyID := uuid.New()
	rc := &models.ResponseContext{
		Response: models.Response{
			ID:           1,
			Engine:       "chatgpt",
			ResponseText: "Acme is covered by https://techcrunch.com/acme and https://blog.acme.com/post].",
			Citations:    []string{"https://www.g2.com/products/acme/"},
		},
		QueryText:       "best crm for startups",
		CompanyID:       &companyID,
		CompanyName:     "Acme",
		CompetitorNames: []string{"Globex"},
		Persona:         "founder",
		BuyerJourney:    "consideration",
		Geography:       "US",
	}
	store.AddResponse(rc)

	analysis := &models.ResponseAnalysis{
		ID:                 uuid.New(),
		ResponseID:         1,
		CompanyID:          &companyID,
		RankList:           "1. Acme\n2. Globex",
		MentionedCompanies: []string{"Acme", "Globex"},
		Persona:            "founder",
		BuyerJourney:       "consideration",
		Geography:          "US",
	}
	if err := store.AnalysisRepo().ReplaceForResponses(context.Background(), []int64{1}, []*models.ResponseAnalysis{analysis}); err != nil {
		t.Fatalf("Failed to seed analysis: %v", err)
	}
	return store, NewCitationService(testutil.TestConfig(), repos, testutil.NopLogger()), analysis, rc
}

func TestBuildCitationsReuse(t *testing.T) {
	store, svc, analysis, rc := newCitationFixture(t)

	da, md := 71, "# G2 reviews"
	enrichedAt := time.Now().Add(-48 * time.Hour)
	original := &models.Citation{
		ID:                 uuid.New(),
		ResponseAnalysisID: uuid.New(),
		URL:                "https://g2.com/products/acme",
		IsOriginal:         true,
		CreatedAt:          time.Now().Add(-10 * 24 * time.Hour),
		CitationEnrichment: models.CitationEnrichment{
			DomainAuthority:     &da,
			AuthorityEnrichedAt: &enrichedAt,
			MarkdownContent:     &md,
		},
	}
	store.AddCitation(original)
	store.AddCitation(&models.Citation{
		ID:         uuid.New(),
		URL:        "https://techcrunch.com/acme",
		IsOriginal: true,
		CreatedAt:  time.Now().Add(-200 * 24 * time.Hour),
	})

	citations, err := svc.BuildCitations(context.Background(), analysis, rc)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(citations) != 3 {
		t.Fatalf("Expected 3 citations, got %d", len(citations))
	}

	reused := citations[0]
	if reused.IsOriginal {
		t.Error("Expected g2 citation to be a reuse")
	}
	if reused.OriginCitationID == nil || *reused.OriginCitationID != original.ID {
		t.Errorf("Expected origin %s, got %v", original.ID, reused.OriginCitationID)
	}
	if reused.DomainAuthority == nil || *reused.DomainAuthority != 71 {
		t.Errorf("Expected copied domain authority 71, got %v", reused.DomainAuthority)
	}
	if reused.MarkdownContent == nil || *reused.MarkdownContent != md {
		t.Errorf("Expected copied markdown, got %v", reused.MarkdownContent)
	}
	if reused.SourceType != models.SourceUGC {
		t.Errorf("Expected UGC, got %s", reused.SourceType)
	}

	stale := citations[1]
	if !stale.IsOriginal || stale.OriginCitationID != nil {
		t.Error("Expected citation outside the reuse window to be original")
	}
	if stale.DomainAuthority != nil {
		t.Error("Expected original citation without enrichment")
	}

	owned := citations[2]
	if owned.URL != "https://blog.acme.com/post" || owned.SourceType != models.SourceOwned {
		t.Errorf("Expected owned blog citation, got %s %s", owned.URL, owned.SourceType)
	}
	for i, c := range citations {
		if c.CitationOrder != i+1 {
			t.Errorf("Expected citation order %d, got %d", i+1, c.CitationOrder)
		}
		if c.Persona != "founder" || c.Region != "US" || c.RankList != analysis.RankList {
			t.Errorf("Expected inherited context on citation %d", i)
		}
	}
}

func TestProcessAnalysis(t *testing.T) {
	t.Run("stores citations and marks analysis processed", func(t *testing.T) {
		store, svc, analysis, rc := newCitationFixture(t)

		result := svc.ProcessAnalysis(context.Background(), analysis, rc)
		if result.Status != models.ItemSuccess {
			t.Fatalf("Expected success, got %s: %s", result.Status, result.Reason)
		}
		if got := len(store.Citations()); got != 3 {
			t.Errorf("Expected 3 stored citations, got %d", got)
		}
		stored, err := store.AnalysisRepo().GetByResponseID(context.Background(), 1)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if stored.CitationsProcessedAt == nil {
			t.Error("Expected citations_processed_at to be set")
		}
	})

	t.Run("insert failure leaves analysis pending", func(t *testing.T) {
		store, svc, analysis, rc := newCitationFixture(t)
		store.InsertCitationsErr = func(uuid.UUID) error { return errors.New("connection reset") }

		result := svc.ProcessAnalysis(context.Background(), analysis, rc)
		if result.Status != models.ItemFailed {
			t.Fatalf("Expected failure, got %s", result.Status)
		}
		if result.AnalysisID == nil || *result.AnalysisID != analysis.ID {
			t.Error("Expected failure attributed to the analysis")
		}
		pending, _ := store.AnalysisRepo().ListPendingCitations(context.Background(), interfaces.PendingCitationFilter{})
		if len(pending) != 1 {
			t.Errorf("Expected 1 pending analysis, got %d", len(pending))
		}
		if len(store.Citations()) != 0 {
			t.Error("Expected no partial citation writes")
		}
	})
}
