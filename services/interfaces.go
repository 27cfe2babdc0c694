// services/interfaces.go
package services

import (
	"context"
	"errors"
	"time"

	"github.com/AI-Template-SDK/senso-insights/internal/models"
	"github.com/AI-Template-SDK/senso-insights/internal/repositories/interfaces"
	"github.com/google/uuid"
	"github.com/invopop/jsonschema"
)

var (
	// ErrQueueBusy is returned when a queue pass is already running on the same instance
	ErrQueueBusy = errors.New("queue is already processing")
	// ErrInvalidTransition is returned for a batch status change that would move backwards
	ErrInvalidTransition = errors.New("invalid batch status transition")
	ErrBatchNotFound     = errors.New("batch not found")
	// ErrMissingContext marks a response whose company or query context is unusable
	ErrMissingContext = errors.New("response is missing company or query context")
)

// Repositories groups the datastore dependencies shared by the services
type Repositories struct {
	Responses interfaces.ResponseRepository
	Analyses  interfaces.AnalysisRepository
	Citations interfaces.CitationRepository
	Batches   interfaces.BatchRepository
}

// CostService prices language-assistant calls
type CostService interface {
	CalculateCost(provider string, model string, inputTokens int, outputTokens int) float64
}

// AssistantRequest is one constrained language-assistant call
type AssistantRequest struct {
	System string
	Prompt string
}

// AssistantReply is the raw text answer plus usage accounting
type AssistantReply struct {
	Text         string
	Provider     string
	Model        string
	InputTokens  int
	OutputTokens int
	Cost         float64
}

// LanguageAssistant is the external model used by the llm-assisted ranking strategy
type LanguageAssistant interface {
	Complete(ctx context.Context, req AssistantRequest) (*AssistantReply, error)
}

// RankingInput is what every ranking strategy sees
type RankingInput struct {
	Text        string
	Subject     string
	Competitors []string
}

// RankingStrategy is one step of the ranking cascade. A nil result with a nil error means
// the strategy found nothing; an error is logged and the cascade moves on.
type RankingStrategy interface {
	Name() models.RankingMethod
	TryExtractRanking(ctx context.Context, in RankingInput) (*models.RankingResult, error)
}

// ResponseAnalyzer turns one response into its analysis record
type ResponseAnalyzer interface {
	Analyze(ctx context.Context, rc *models.ResponseContext, batchID *uuid.UUID) (*models.ResponseAnalysis, error)
}

// CitationService builds and persists the citation rows of one analysis
type CitationService interface {
	BuildCitations(ctx context.Context, analysis *models.ResponseAnalysis, rc *models.ResponseContext) ([]*models.Citation, error)
	ProcessAnalysis(ctx context.Context, analysis *models.ResponseAnalysis, rc *models.ResponseContext) models.ItemResult
}

// AuthorityOutcome is the bulk API result for one requested URL
type AuthorityOutcome struct {
	Metrics *models.AuthorityMetrics
	Error   string
}

// AuthorityClient calls the bulk URL-metrics API. Results are keyed by NormalizeURLKey.
type AuthorityClient interface {
	FetchMetrics(ctx context.Context, urls []string) (map[string]AuthorityOutcome, error)
}

// ScrapedPage is the markdown of one fetched page
type ScrapedPage struct {
	URL      string
	Title    string
	Markdown string
}

// ContentScraper fetches one URL as markdown
type ContentScraper interface {
	Scrape(ctx context.Context, url string) (*ScrapedPage, error)
}

// CitationIndexer pushes analysed citation content into the search indexes
type CitationIndexer interface {
	IndexCitation(ctx context.Context, doc CitationDocument) error
}

// CitationDocument is the indexed form of an analysed citation page
type CitationDocument struct {
	CitationID  uuid.UUID
	URL         string
	CompanyName string
	Markdown    string
	Analysis    models.ContentAnalysis
	AnalyzedAt  time.Time
}

// BatchTrackingService is the ledger every stage uses to start and end units of work
type BatchTrackingService interface {
	Create(ctx context.Context, batchType models.BatchType, companyID *uuid.UUID, metadata map[string]interface{}) (*models.Batch, error)
	Start(ctx context.Context, id uuid.UUID) error
	UpdateProgress(ctx context.Context, id uuid.UUID, progress map[string]interface{}) error
	Complete(ctx context.Context, id uuid.UUID, metadata map[string]interface{}) error
	Fail(ctx context.Context, id uuid.UUID, cause error) error
	Get(ctx context.Context, id uuid.UUID) (*models.Batch, error)
}

// FailureReporter is notified about batch-fatal errors
type FailureReporter interface {
	ReportBatchFailure(batch *models.Batch, reason string, err error)
}

// GenerateSchema builds the strict JSON schema used for structured model output
func GenerateSchema[T any]() interface{} {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}

	var zero T
	schema := reflector.Reflect(zero)

	// Convert to the format expected by OpenAI
	result := map[string]interface{}{
		"type":                 "object",
		"properties":           schema.Properties,
		"required":             schema.Required,
		"additionalProperties": false,
	}

	return result
}
