// internal/repositories/postgresql/citation_repo.go
package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/AI-Template-SDK/senso-insights/internal/database"
	"github.com/AI-Template-SDK/senso-insights/internal/models"
	"github.com/AI-Template-SDK/senso-insights/internal/repositories/interfaces"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const citationColumns = `id, response_analysis_id, company_id, url, citation_order, source_type, persona,
buyer_journey_phase, region, rank_list, mentioned_companies, is_original, origin_citation_id,
domain_authority, page_authority, spam_score, external_links, external_linking_domains, authority_enriched_at,
authority_attempts, authority_error, markdown_content, scraped_at, scrape_attempts, scrape_error,
content_analysis, content_analyzed_at, created_at, updated_at`

const insertCitation = `
INSERT INTO citations (` + citationColumns + `)
VALUES (:id, :response_analysis_id, :company_id, :url, :citation_order, :source_type, :persona,
:buyer_journey_phase, :region, :rank_list, :mentioned_companies, :is_original, :origin_citation_id,
:domain_authority, :page_authority, :spam_score, :external_links, :external_linking_domains, :authority_enriched_at,
:authority_attempts, :authority_error, :markdown_content, :scraped_at, :scrape_attempts, :scrape_error,
:content_analysis, :content_analyzed_at, :created_at, :updated_at)
ON CONFLICT (response_analysis_id, url) DO NOTHING`

type citationRepo struct {
	db *database.Client
}

func NewCitationRepo(db *database.Client) interfaces.CitationRepository {
	return &citationRepo{db: db}
}

func (r *citationRepo) FindReusableOriginal(ctx context.Context, url string, since time.Time) (*models.Citation, error) {
	var c models.Citation
	err := r.db.GetContext(ctx, &c, `
SELECT `+citationColumns+` FROM citations
WHERE url = $1 AND is_original AND created_at >= $2
ORDER BY created_at DESC
LIMIT 1`, url, since)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, interfaces.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up original citation: %w", err)
	}
	return &c, nil
}

func (r *citationRepo) InsertForAnalysis(ctx context.Context, analysisID uuid.UUID, citations []*models.Citation, processedAt time.Time) error {
	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		for _, c := range citations {
			if _, err := tx.NamedExecContext(ctx, insertCitation, c); err != nil {
				return fmt.Errorf("failed to insert citation %s: %w", c.URL, err)
			}
		}
		res, err := tx.ExecContext(ctx, `UPDATE response_analysis SET citations_processed_at = $2 WHERE id = $1`, analysisID, processedAt)
		if err != nil {
			return fmt.Errorf("failed to mark citations processed: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return interfaces.ErrNotFound
		}
		return nil
	})
}

func (r *citationRepo) ListByAnalysis(ctx context.Context, analysisID uuid.UUID) ([]*models.Citation, error) {
	var rows []*models.Citation
	err := r.db.SelectContext(ctx, &rows, `
SELECT `+citationColumns+` FROM citations WHERE response_analysis_id = $1 ORDER BY citation_order`, analysisID)
	if err != nil {
		return nil, fmt.Errorf("failed to list citations for analysis %s: %w", analysisID, err)
	}
	return rows, nil
}

func (r *citationRepo) ListNeedingAuthority(ctx context.Context, limit, maxAttempts int) ([]*models.Citation, error) {
	var rows []*models.Citation
	err := r.db.SelectContext(ctx, &rows, `
SELECT `+citationColumns+` FROM citations
WHERE is_original AND authority_enriched_at IS NULL AND authority_attempts < $2
ORDER BY created_at
LIMIT $1`, limit, maxAttempts)
	if err != nil {
		return nil, fmt.Errorf("failed to list citations needing authority: %w", err)
	}
	return rows, nil
}

// UpdateAuthority writes the metrics on the original and fills reuses that have none yet
func (r *citationRepo) UpdateAuthority(ctx context.Context, id uuid.UUID, m models.AuthorityMetrics, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE citations SET
    domain_authority = $2, page_authority = $3, spam_score = $4,
    external_links = $5, external_linking_domains = $6,
    authority_enriched_at = $7, authority_error = NULL, updated_at = now()
WHERE id = $1 OR (origin_citation_id = $1 AND authority_enriched_at IS NULL)`,
		id, m.DomainAuthority, m.PageAuthority, m.SpamScore, m.ExternalLinks, m.ExternalLinkingDomains, at)
	if err != nil {
		return fmt.Errorf("failed to update authority for citation %s: %w", id, err)
	}
	return nil
}

func (r *citationRepo) RecordAuthorityFailure(ctx context.Context, id uuid.UUID, reason string, permanent bool, maxAttempts int) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE citations SET
    authority_attempts = CASE WHEN $3::boolean THEN GREATEST(authority_attempts + 1, $4::int) ELSE authority_attempts + 1 END,
    authority_error = $2, updated_at = now()
WHERE id = $1`, id, reason, permanent, maxAttempts)
	if err != nil {
		return fmt.Errorf("failed to record authority failure for citation %s: %w", id, err)
	}
	return nil
}

func (r *citationRepo) ListNeedingContent(ctx context.Context, limit, maxAttempts int) ([]*models.Citation, error) {
	var rows []*models.Citation
	err := r.db.SelectContext(ctx, &rows, `
SELECT `+citationColumns+` FROM citations
WHERE is_original AND markdown_content IS NULL AND scrape_attempts < $2
ORDER BY created_at
LIMIT $1`, limit, maxAttempts)
	if err != nil {
		return nil, fmt.Errorf("failed to list citations needing content: %w", err)
	}
	return rows, nil
}

// UpdateContent stores markdown on the original and fills reuses that have none yet
func (r *citationRepo) UpdateContent(ctx context.Context, id uuid.UUID, markdown string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE citations SET
    markdown_content = $2, scraped_at = $3, scrape_error = NULL, updated_at = now()
WHERE id = $1 OR (origin_citation_id = $1 AND markdown_content IS NULL)`, id, markdown, at)
	if err != nil {
		return fmt.Errorf("failed to update content for citation %s: %w", id, err)
	}
	return nil
}

func (r *citationRepo) RecordScrapeFailure(ctx context.Context, id uuid.UUID, reason string, at time.Time, permanent bool, maxAttempts int) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE citations SET
    scrape_attempts = CASE WHEN $4::boolean THEN GREATEST(scrape_attempts + 1, $5::int) ELSE scrape_attempts + 1 END,
    scrape_error = $2, scraped_at = $3, updated_at = now()
WHERE id = $1`, id, reason, at, permanent, maxAttempts)
	if err != nil {
		return fmt.Errorf("failed to record scrape failure for citation %s: %w", id, err)
	}
	return nil
}

func (r *citationRepo) ListNeedingContentAnalysis(ctx context.Context, limit int) ([]*interfaces.ContentAnalysisCandidate, error) {
	var rows []*interfaces.ContentAnalysisCandidate
	err := r.db.SelectContext(ctx, &rows, `
SELECT c.id, c.url, c.markdown_content, c.scraped_at,
       COALESCE(q.query_text, '') AS query_text,
       COALESCE(co.name, '') AS company_name
FROM citations c
JOIN response_analysis ra ON ra.id = c.response_analysis_id
JOIN responses r ON r.id = ra.response_id
JOIN queries q ON q.id = r.query_id
LEFT JOIN companies co ON co.id = q.company_id
WHERE c.is_original
  AND c.markdown_content IS NOT NULL
  AND c.scraped_at IS NOT NULL
  AND (c.content_analyzed_at IS NULL OR c.content_analyzed_at < c.scraped_at)
ORDER BY c.scraped_at
LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list citations needing content analysis: %w", err)
	}
	return rows, nil
}

// UpdateContentAnalysis writes the analysis on the original. Reuses only receive it once;
// later re-analysis of the original does not overwrite their copy.
func (r *citationRepo) UpdateContentAnalysis(ctx context.Context, id uuid.UUID, analysis models.ContentAnalysis, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE citations SET
    content_analysis = $2, content_analyzed_at = $3, updated_at = now()
WHERE id = $1 OR (origin_citation_id = $1 AND content_analysis IS NULL)`, id, analysis, at)
	if err != nil {
		return fmt.Errorf("failed to update content analysis for citation %s: %w", id, err)
	}
	return nil
}

func (r *citationRepo) Backlog(ctx context.Context, maxAttempts int) (*interfaces.EnrichmentBacklog, error) {
	var b interfaces.EnrichmentBacklog
	err := r.db.GetContext(ctx, &b, `
SELECT
    COUNT(*) FILTER (WHERE authority_enriched_at IS NULL AND authority_attempts < $1) AS authority_pending,
    COUNT(*) FILTER (WHERE markdown_content IS NULL AND scrape_attempts < $1) AS content_pending,
    COUNT(*) FILTER (WHERE markdown_content IS NOT NULL AND (content_analyzed_at IS NULL OR content_analyzed_at < scraped_at)) AS analysis_pending
FROM citations
WHERE is_original`, maxAttempts)
	if err != nil {
		return nil, fmt.Errorf("failed to count enrichment backlog: %w", err)
	}
	return &b, nil
}
