// internal/repositories/postgresql/batch_repo.go
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
)

const batchColumns = `id, batch_type, company_id, status, metadata, error_message,
created_at, updated_at, started_at, completed_at`

type batchRepo struct {
	db *database.Client
}

func NewBatchRepo(db *database.Client) interfaces.BatchRepository {
	return &batchRepo{db: db}
}

func (r *batchRepo) Create(ctx context.Context, b *models.Batch) error {
	metadata := b.Metadata
	if len(metadata) == 0 {
		metadata = []byte("{}")
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO batch_metadata (`+batchColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		b.ID, b.Type, b.CompanyID, b.Status, []byte(metadata), b.ErrorMessage,
		b.CreatedAt, b.UpdatedAt, b.StartedAt, b.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to create batch: %w", err)
	}
	return nil
}

func (r *batchRepo) Get(ctx context.Context, id uuid.UUID) (*models.Batch, error) {
	var b models.Batch
	err := r.db.GetContext(ctx, &b, `SELECT `+batchColumns+` FROM batch_metadata WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, interfaces.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get batch %s: %w", id, err)
	}
	return &b, nil
}

func (r *batchRepo) UpdateStatus(ctx context.Context, b *models.Batch) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE batch_metadata SET
    status = $2, error_message = $3, updated_at = $4, started_at = $5, completed_at = $6
WHERE id = $1`, b.ID, b.Status, b.ErrorMessage, b.UpdatedAt, b.StartedAt, b.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to update batch %s: %w", b.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return interfaces.ErrNotFound
	}
	return nil
}

func (r *batchRepo) UpdateMetadata(ctx context.Context, id uuid.UUID, metadata []byte) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE batch_metadata SET metadata = metadata || $2::jsonb, updated_at = now() WHERE id = $1`, id, metadata)
	if err != nil {
		return fmt.Errorf("failed to update metadata for batch %s: %w", id, err)
	}
	return nil
}

func (r *batchRepo) ListByCompany(ctx context.Context, companyID uuid.UUID, limit int) ([]*models.Batch, error) {
	var rows []*models.Batch
	err := r.db.SelectContext(ctx, &rows, `
SELECT `+batchColumns+` FROM batch_metadata
WHERE company_id = $1
ORDER BY created_at DESC
LIMIT $2`, companyID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list batches for company %s: %w", companyID, err)
	}
	return rows, nil
}
