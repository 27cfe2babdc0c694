// internal/repositories/postgresql/analysis_repo.go
package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/AI-Template-SDK/senso-insights/internal/database"
	"github.com/AI-Template-SDK/senso-insights/internal/models"
	"github.com/AI-Template-SDK/senso-insights/internal/repositories/interfaces"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const analysisColumns = `id, response_id, company_id, batch_id, engine, sentiment_score, ranking_position,
ranking_method, ranking_confidence, recommended, cited, company_mentioned, rank_list, mentioned_companies,
geography, vertical, persona, buyer_journey_phase, solution_analysis, citations_processed_at, created_at`

const insertAnalysis = `
INSERT INTO response_analysis (` + analysisColumns + `)
VALUES (:id, :response_id, :company_id, :batch_id, :engine, :sentiment_score, :ranking_position,
:ranking_method, :ranking_confidence, :recommended, :cited, :company_mentioned, :rank_list, :mentioned_companies,
:geography, :vertical, :persona, :buyer_journey_phase, :solution_analysis, :citations_processed_at, :created_at)`

type analysisRepo struct {
	db *database.Client
}

func NewAnalysisRepo(db *database.Client) interfaces.AnalysisRepository {
	return &analysisRepo{db: db}
}

func (r *analysisRepo) ReplaceForResponses(ctx context.Context, responseIDs []int64, analyses []*models.ResponseAnalysis) error {
	if len(responseIDs) == 0 && len(analyses) == 0 {
		return nil
	}
	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := promoteSurvivingReuses(ctx, tx, responseIDs); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM response_analysis WHERE response_id = ANY($1)`, pq.Array(responseIDs)); err != nil {
			return fmt.Errorf("failed to delete prior analyses: %w", err)
		}
		for _, a := range analyses {
			if _, err := tx.NamedExecContext(ctx, insertAnalysis, a); err != nil {
				return fmt.Errorf("failed to insert analysis for response %d: %w", a.ResponseID, err)
			}
		}
		return nil
	})
}

// promoteSurvivingReuses keeps the origin invariant intact when originals are about to be
// deleted: the oldest reuse outside the deleted set becomes the new original and the other
// reuses are repointed at it.
func promoteSurvivingReuses(ctx context.Context, tx *sqlx.Tx, responseIDs []int64) error {
	var originals []uuid.UUID
	err := tx.SelectContext(ctx, &originals, `
SELECT c.id FROM citations c
JOIN response_analysis ra ON ra.id = c.response_analysis_id
WHERE ra.response_id = ANY($1) AND c.is_original`, pq.Array(responseIDs))
	if err != nil {
		return fmt.Errorf("failed to find originals to promote: %w", err)
	}

	for _, originalID := range originals {
		var successor uuid.UUID
		err := tx.GetContext(ctx, &successor, `
SELECT c.id FROM citations c
JOIN response_analysis ra ON ra.id = c.response_analysis_id
WHERE c.origin_citation_id = $1 AND NOT (ra.response_id = ANY($2))
ORDER BY c.created_at, c.id
LIMIT 1`, originalID, pq.Array(responseIDs))
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to find successor for citation %s: %w", originalID, err)
		}

		if _, err := tx.ExecContext(ctx, `
UPDATE citations SET is_original = true, origin_citation_id = NULL, updated_at = now()
WHERE id = $1`, successor); err != nil {
			return fmt.Errorf("failed to promote citation %s: %w", successor, err)
		}
		if _, err := tx.ExecContext(ctx, `
UPDATE citations SET origin_citation_id = $1, updated_at = now()
WHERE origin_citation_id = $2 AND id <> $1`, successor, originalID); err != nil {
			return fmt.Errorf("failed to repoint reuses of citation %s: %w", originalID, err)
		}
	}
	return nil
}

func (r *analysisRepo) GetByResponseID(ctx context.Context, responseID int64) (*models.ResponseAnalysis, error) {
	var a models.ResponseAnalysis
	err := r.db.GetContext(ctx, &a, `SELECT `+analysisColumns+` FROM response_analysis WHERE response_id = $1`, responseID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, interfaces.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get analysis for response %d: %w", responseID, err)
	}
	return &a, nil
}

func (r *analysisRepo) ListPendingCitations(ctx context.Context, filter interfaces.PendingCitationFilter) ([]*models.ResponseAnalysis, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 1000
	}

	var rows []*models.ResponseAnalysis
	err := r.db.SelectContext(ctx, &rows, `
SELECT `+analysisColumns+` FROM response_analysis
WHERE citations_processed_at IS NULL
  AND ($1::uuid IS NULL OR batch_id = $1)
  AND ($2::uuid IS NULL OR company_id = $2)
  AND response_id > $3
ORDER BY response_id
LIMIT $4`, filter.BatchID, filter.CompanyID, filter.AfterResponseID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list analyses pending citations: %w", err)
	}
	return rows, nil
}
