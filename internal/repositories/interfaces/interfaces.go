// internal/repositories/interfaces/interfaces.go
package interfaces

import (
	"context"
	"errors"
	"time"

	"github.com/AI-Template-SDK/senso-insights/internal/models"
	"github.com/google/uuid"
)

var ErrNotFound = errors.New("record not found")

// ResponseRepository reads answer-engine responses joined with their query context
type ResponseRepository interface {
	// ListContexts returns up to limit responses with id in (afterID, endID], ordered by id
	ListContexts(ctx context.Context, afterID, endID int64, limit int) ([]*models.ResponseContext, error)
	GetContext(ctx context.Context, responseID int64) (*models.ResponseContext, error)
}

// PendingCitationFilter narrows the recovery scan. Nil fields match everything.
// PendingCitationFilter selects analyses lacking citation rows, ordered by response id.
// AfterResponseID is the keyset cursor; Limit caps one page.
type PendingCitationFilter struct {
	BatchID         *uuid.UUID
	CompanyID       *uuid.UUID
	AfterResponseID int64
	Limit           int
}

type AnalysisRepository interface {
	// ReplaceForResponses deletes every analysis (and its citations) for responseIDs and
	// inserts analyses in the same transaction. Originals with surviving reuses are promoted first.
	ReplaceForResponses(ctx context.Context, responseIDs []int64, analyses []*models.ResponseAnalysis) error
	GetByResponseID(ctx context.Context, responseID int64) (*models.ResponseAnalysis, error)
	ListPendingCitations(ctx context.Context, filter PendingCitationFilter) ([]*models.ResponseAnalysis, error)
}

// ContentAnalysisCandidate is an original citation with scraped markdown and the keywords context
type ContentAnalysisCandidate struct {
	CitationID  uuid.UUID `db:"id"`
	URL         string    `db:"url"`
	Markdown    string    `db:"markdown_content"`
	ScrapedAt   time.Time `db:"scraped_at"`
	QueryText   string    `db:"query_text"`
	CompanyName string    `db:"company_name"`
}

// EnrichmentBacklog counts original citations still waiting on each queue
type EnrichmentBacklog struct {
	AuthorityPending int `db:"authority_pending" json:"authority_pending"`
	ContentPending   int `db:"content_pending" json:"content_pending"`
	AnalysisPending  int `db:"analysis_pending" json:"analysis_pending"`
}

type CitationRepository interface {
	// FindReusableOriginal returns the newest original citation for url created at or after since,
	// or ErrNotFound.
	FindReusableOriginal(ctx context.Context, url string, since time.Time) (*models.Citation, error)
	// InsertForAnalysis writes citations and stamps citations_processed_at in one transaction
	InsertForAnalysis(ctx context.Context, analysisID uuid.UUID, citations []*models.Citation, processedAt time.Time) error
	ListByAnalysis(ctx context.Context, analysisID uuid.UUID) ([]*models.Citation, error)

	ListNeedingAuthority(ctx context.Context, limit, maxAttempts int) ([]*models.Citation, error)
	UpdateAuthority(ctx context.Context, id uuid.UUID, metrics models.AuthorityMetrics, at time.Time) error
	RecordAuthorityFailure(ctx context.Context, id uuid.UUID, reason string, permanent bool, maxAttempts int) error

	ListNeedingContent(ctx context.Context, limit, maxAttempts int) ([]*models.Citation, error)
	UpdateContent(ctx context.Context, id uuid.UUID, markdown string, at time.Time) error
	RecordScrapeFailure(ctx context.Context, id uuid.UUID, reason string, at time.Time, permanent bool, maxAttempts int) error

	ListNeedingContentAnalysis(ctx context.Context, limit int) ([]*ContentAnalysisCandidate, error)
	UpdateContentAnalysis(ctx context.Context, id uuid.UUID, analysis models.ContentAnalysis, at time.Time) error

	Backlog(ctx context.Context, maxAttempts int) (*EnrichmentBacklog, error)
}

type BatchRepository interface {
	Create(ctx context.Context, batch *models.Batch) error
	Get(ctx context.Context, id uuid.UUID) (*models.Batch, error)
	UpdateStatus(ctx context.Context, batch *models.Batch) error
	UpdateMetadata(ctx context.Context, id uuid.UUID, metadata []byte) error
	ListByCompany(ctx context.Context, companyID uuid.UUID, limit int) ([]*models.Batch, error)
}
