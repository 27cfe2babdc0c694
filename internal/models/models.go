// internal/models/models.go
package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Response is one answer-engine reply to a generated question. Read-only to the pipeline.
type Response struct {
	ID            int64          `json:"id" db:"id"`
	QueryID       uuid.UUID      `json:"query_id" db:"query_id"`
	Engine        string         `json:"engine" db:"engine"`
	ResponseText  string         `json:"response_text" db:"response_text"`
	Citations     pq.StringArray `json:"citations" db:"citations"`
	SearchQueries pq.StringArray `json:"search_queries" db:"search_queries"`
	CreatedAt     time.Time      `json:"created_at" db:"created_at"`
}

// ResponseContext is a Response joined with everything needed to analyse it
type ResponseContext struct {
	Response
	QueryText       string         `json:"query_text" db:"query_text"`
	QueryType       string         `json:"query_type" db:"query_type"`
	BuyerJourney    string         `json:"buyer_journey_phase" db:"buyer_journey_phase"`
	Persona         string         `json:"persona" db:"persona"`
	ICP             string         `json:"icp" db:"icp"`
	Geography       string         `json:"geography" db:"geography"`
	Vertical        string         `json:"vertical" db:"vertical"`
	CompanyID       *uuid.UUID     `json:"company_id" db:"company_id"`
	CompanyName     string         `json:"company_name" db:"company_name"`
	CompanyWebsites pq.StringArray `json:"company_websites" db:"company_websites"`
	CompetitorNames pq.StringArray `json:"competitors" db:"competitors"`
}

// SolutionAnalysis is the feature-presence judgment for feature-capability queries
type SolutionAnalysis string

const (
	SolutionYes          SolutionAnalysis = "YES"
	SolutionNo           SolutionAnalysis = "NO"
	SolutionNotAvailable SolutionAnalysis = "N/A"
)

// ResponseAnalysis is the structured extraction for one Response. At most one row per response.
type ResponseAnalysis struct {
	ID                   uuid.UUID         `json:"id" db:"id"`
	ResponseID           int64             `json:"response_id" db:"response_id"`
	CompanyID            *uuid.UUID        `json:"company_id" db:"company_id"`
	BatchID              *uuid.UUID        `json:"batch_id" db:"batch_id"`
	Engine               string            `json:"engine" db:"engine"`
	SentimentScore       *float64          `json:"sentiment_score" db:"sentiment_score"`
	RankingPosition      *int              `json:"ranking_position" db:"ranking_position"`
	RankingMethod        *string           `json:"ranking_method" db:"ranking_method"`
	RankingConfidence    *float64          `json:"ranking_confidence" db:"ranking_confidence"`
	Recommended          bool              `json:"recommended" db:"recommended"`
	Cited                bool              `json:"cited" db:"cited"`
	CompanyMentioned     bool              `json:"company_mentioned" db:"company_mentioned"`
	RankList             string            `json:"rank_list" db:"rank_list"`
	MentionedCompanies   pq.StringArray    `json:"mentioned_companies" db:"mentioned_companies"`
	Geography            string            `json:"geography" db:"geography"`
	Vertical             string            `json:"vertical" db:"vertical"`
	Persona              string            `json:"persona" db:"persona"`
	BuyerJourney         string            `json:"buyer_journey_phase" db:"buyer_journey_phase"`
	SolutionAnalysis     *SolutionAnalysis `json:"solution_analysis" db:"solution_analysis"`
	CitationsProcessedAt *time.Time        `json:"citations_processed_at" db:"citations_processed_at"`
	CreatedAt            time.Time         `json:"created_at" db:"created_at"`
}

// SourceType classifies a citation by who controls the cited page
type SourceType string

const (
	SourceOwned      SourceType = "OWNED"
	SourceEarned     SourceType = "EARNED"
	SourceCompetitor SourceType = "COMPETITOR"
	SourceUGC        SourceType = "UGC"
)

// Citation is one distinct URL surfaced by a response's analysis
type Citation struct {
	ID                 uuid.UUID      `json:"id" db:"id"`
	ResponseAnalysisID uuid.UUID      `json:"response_analysis_id" db:"response_analysis_id"`
	CompanyID          *uuid.UUID     `json:"company_id" db:"company_id"`
	URL                string         `json:"url" db:"url"`
	CitationOrder      int            `json:"citation_order" db:"citation_order"`
	SourceType         SourceType     `json:"source_type" db:"source_type"`
	Persona            string         `json:"persona" db:"persona"`
	BuyerJourney       string         `json:"buyer_journey_phase" db:"buyer_journey_phase"`
	Region             string         `json:"region" db:"region"`
	RankList           string         `json:"rank_list" db:"rank_list"`
	MentionedCompanies pq.StringArray `json:"mentioned_companies" db:"mentioned_companies"`
	IsOriginal         bool           `json:"is_original" db:"is_original"`
	OriginCitationID   *uuid.UUID     `json:"origin_citation_id" db:"origin_citation_id"`

	CitationEnrichment

	AuthorityAttempts int       `json:"authority_attempts" db:"authority_attempts"`
	AuthorityError    *string   `json:"authority_error" db:"authority_error"`
	ScrapeAttempts    int       `json:"scrape_attempts" db:"scrape_attempts"`
	ScrapeError       *string   `json:"scrape_error" db:"scrape_error"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}

// CitationEnrichment holds the fields a reused citation copies from its original
type CitationEnrichment struct {
	DomainAuthority        *int             `json:"domain_authority" db:"domain_authority"`
	PageAuthority          *int             `json:"page_authority" db:"page_authority"`
	SpamScore              *int             `json:"spam_score" db:"spam_score"`
	ExternalLinks          *int             `json:"external_links" db:"external_links"`
	ExternalLinkingDomains *int             `json:"external_linking_domains" db:"external_linking_domains"`
	AuthorityEnrichedAt    *time.Time       `json:"authority_enriched_at" db:"authority_enriched_at"`
	MarkdownContent        *string          `json:"markdown_content" db:"markdown_content"`
	ScrapedAt              *time.Time       `json:"scraped_at" db:"scraped_at"`
	ContentAnalysis        *ContentAnalysis `json:"content_analysis" db:"content_analysis"`
	ContentAnalyzedAt      *time.Time       `json:"content_analyzed_at" db:"content_analyzed_at"`
}

// AuthorityMetrics are the bulk-API values written by the authority queue
type AuthorityMetrics struct {
	DomainAuthority        int `json:"domain_authority"`
	PageAuthority          int `json:"page_authority"`
	SpamScore              int `json:"spam_score"`
	ExternalLinks          int `json:"external_links"`
	ExternalLinkingDomains int `json:"external_linking_domains"`
}

// BatchType is the closed set of tracked units of work
type BatchType string

const (
	BatchQuestionGeneration  BatchType = "question-generation"
	BatchResponseGeneration  BatchType = "response-generation"
	BatchResponseAnalysis    BatchType = "response-analysis"
	BatchAuthorityEnrichment BatchType = "authority-enrichment"
	BatchContentEnrichment   BatchType = "content-enrichment"
)

func (t BatchType) Valid() bool {
	switch t {
	case BatchQuestionGeneration, BatchResponseGeneration, BatchResponseAnalysis,
		BatchAuthorityEnrichment, BatchContentEnrichment:
		return true
	}
	return false
}

type BatchStatus string

const (
	BatchPending    BatchStatus = "pending"
	BatchInProgress BatchStatus = "in_progress"
	BatchCompleted  BatchStatus = "completed"
	BatchFailed     BatchStatus = "failed"
)

// Terminal reports whether no further transition is possible
func (s BatchStatus) Terminal() bool {
	return s == BatchCompleted || s == BatchFailed
}

// Batch is a unit-of-work ledger entry
type Batch struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	Type         BatchType       `json:"batch_type" db:"batch_type"`
	CompanyID    *uuid.UUID      `json:"company_id" db:"company_id"`
	Status       BatchStatus     `json:"status" db:"status"`
	Metadata     json.RawMessage `json:"metadata" db:"metadata"`
	ErrorMessage *string         `json:"error_message" db:"error_message"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at" db:"updated_at"`
	StartedAt    *time.Time      `json:"started_at" db:"started_at"`
	CompletedAt  *time.Time      `json:"completed_at" db:"completed_at"`
}

// RankingMethod names the strategy that produced a RankingResult
type RankingMethod string

const (
	RankingLLMAssisted          RankingMethod = "llm-assisted"
	RankingExplicitList         RankingMethod = "explicit-list"
	RankingSecondaryComparative RankingMethod = "secondary-comparative"
	RankingPositionalFallback   RankingMethod = "positional-fallback"
)

// RankingResult is produced by the ranking cascade. Not persisted directly.
type RankingResult struct {
	RankList           string        `json:"rank_list"`
	RankingPosition    *int          `json:"ranking_position"`
	MentionedCompanies []string      `json:"mentioned_companies"`
	Confidence         float64       `json:"confidence"`
	Method             RankingMethod `json:"method"`
}

// ItemStatus is the outcome of one unit inside a batch
type ItemStatus string

const (
	ItemSuccess ItemStatus = "success"
	ItemFailed  ItemStatus = "failed"
	ItemSkipped ItemStatus = "skipped"
)

// ItemResult attributes a batch outcome to a specific id
type ItemResult struct {
	ResponseID int64      `json:"response_id,omitempty"`
	AnalysisID *uuid.UUID `json:"analysis_id,omitempty"`
	CitationID *uuid.UUID `json:"citation_id,omitempty"`
	Status     ItemStatus `json:"status"`
	Reason     string     `json:"reason,omitempty"`
}

// BatchSummary aggregates item results for a batch
type BatchSummary struct {
	BatchID   uuid.UUID    `json:"batch_id"`
	Pages     int          `json:"pages"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	Skipped   int          `json:"skipped"`
	Recovered int          `json:"recovered"`
	Items     []ItemResult `json:"items,omitempty"`
}

// Add records one item result and updates the counters
func (s *BatchSummary) Add(r ItemResult) {
	switch r.Status {
	case ItemSuccess:
		s.Succeeded++
	case ItemFailed:
		s.Failed++
	case ItemSkipped:
		s.Skipped++
	}
	if r.Status != ItemSuccess {
		s.Items = append(s.Items, r)
	}
}

// Merge folds another summary into s
func (s *BatchSummary) Merge(other BatchSummary) {
	s.Pages += other.Pages
	s.Succeeded += other.Succeeded
	s.Failed += other.Failed
	s.Skipped += other.Skipped
	s.Recovered += other.Recovered
	s.Items = append(s.Items, other.Items...)
}
