// internal/repositories/postgresql/response_repo.go
package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/AI-Template-SDK/senso-insights/internal/database"
	"github.com/AI-Template-SDK/senso-insights/internal/models"
	"github.com/AI-Template-SDK/senso-insights/internal/repositories/interfaces"
)

const responseContextSelect = `
SELECT r.id, r.query_id, r.engine, r.response_text, r.citations, r.search_queries, r.created_at,
       q.query_text, q.query_type, q.buyer_journey_phase,
       COALESCE(p.name, '') AS persona,
       COALESCE(p.icp, '') AS icp,
       COALESCE(p.geography, '') AS geography,
       COALESCE(c.vertical, '') AS vertical,
       c.id AS company_id,
       COALESCE(c.name, '') AS company_name,
       COALESCE(c.websites, '{}') AS company_websites,
       COALESCE(c.competitors, '{}') AS competitors
FROM responses r
JOIN queries q ON q.id = r.query_id
LEFT JOIN personas p ON p.id = q.persona_id
LEFT JOIN companies c ON c.id = q.company_id`

type responseRepo struct {
	db *database.Client
}

func NewResponseRepo(db *database.Client) interfaces.ResponseRepository {
	return &responseRepo{db: db}
}

func (r *responseRepo) ListContexts(ctx context.Context, afterID, endID int64, limit int) ([]*models.ResponseContext, error) {
	var rows []*models.ResponseContext
	query := responseContextSelect + `
WHERE r.id > $1 AND r.id <= $2
ORDER BY r.id
LIMIT $3`
	if err := r.db.SelectContext(ctx, &rows, query, afterID, endID, limit); err != nil {
		return nil, fmt.Errorf("failed to list responses after %d: %w", afterID, err)
	}
	return rows, nil
}

func (r *responseRepo) GetContext(ctx context.Context, responseID int64) (*models.ResponseContext, error) {
	var row models.ResponseContext
	err := r.db.GetContext(ctx, &row, responseContextSelect+` WHERE r.id = $1`, responseID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, interfaces.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get response %d: %w", responseID, err)
	}
	return &row, nil
}
