// services/recovery_service.go
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/AI-Template-SDK/senso-insights/internal/models"
	"github.com/AI-Template-SDK/senso-insights/internal/repositories/interfaces"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	recoveryStage           = "recovery"
	defaultRecoveryPageSize = 500
)

// RecoveryService replays citation processing for analyses whose citations were never stored
type RecoveryService struct {
	analyses  interfaces.AnalysisRepository
	responses interfaces.ResponseRepository
	citations CitationService
	pageSize  int
	metrics   *Metrics
	logger    zerolog.Logger
}

func NewRecoveryService(repos *Repositories, citations CitationService, metrics *Metrics, logger zerolog.Logger) *RecoveryService {
	return &RecoveryService{
		analyses:  repos.Analyses,
		responses: repos.Responses,
		citations: citations,
		pageSize:  defaultRecoveryPageSize,
		metrics:   metrics,
		logger:    logger.With().Str("component", "recovery").Logger(),
	}
}

func (r *RecoveryService) RecoverBatch(ctx context.Context, batchID uuid.UUID) (*models.BatchSummary, error) {
	return r.Recover(ctx, interfaces.PendingCitationFilter{BatchID: &batchID})
}

func (r *RecoveryService) RecoverCompany(ctx context.Context, companyID uuid.UUID) (*models.BatchSummary, error) {
	return r.Recover(ctx, interfaces.PendingCitationFilter{CompanyID: &companyID})
}

// RecoverAll replays up to limit pending analyses across all batches; limit <= 0 means all of them
func (r *RecoveryService) RecoverAll(ctx context.Context, limit int) (*models.BatchSummary, error) {
	return r.Recover(ctx, interfaces.PendingCitationFilter{Limit: limit})
}

// Recover processes exactly the analyses matching filter that still lack citation rows, paging
// through them by response id. filter.Limit caps the whole pass (0 for no cap).
// Only datastore read errors abort the pass; per-analysis failures stay pending for the next one.
func (r *RecoveryService) Recover(ctx context.Context, filter interfaces.PendingCitationFilter) (*models.BatchSummary, error) {
	started := r.metrics.passStarted(recoveryStage)
	summary, err := r.recover(ctx, filter)
	r.metrics.passFinished(recoveryStage, started, err)
	return summary, err
}

func (r *RecoveryService) recover(ctx context.Context, filter interfaces.PendingCitationFilter) (*models.BatchSummary, error) {
	summary := &models.BatchSummary{}
	remaining := filter.Limit
	page := filter
	seen := 0
	for {
		page.Limit = r.pageSize
		if remaining > 0 && remaining < page.Limit {
			page.Limit = remaining
		}
		pending, err := r.analyses.ListPendingCitations(ctx, page)
		if err != nil {
			return summary, fmt.Errorf("failed to list analyses pending citations: %w", err)
		}
		if err := r.replay(ctx, pending, summary); err != nil {
			return summary, err
		}
		if len(pending) > 0 {
			seen += len(pending)
			summary.Pages++
		}
		if len(pending) == 0 || len(pending) < page.Limit {
			break
		}
		page.AfterResponseID = pending[len(pending)-1].ResponseID
		if remaining > 0 {
			remaining -= len(pending)
			if remaining == 0 {
				break
			}
		}
	}

	if seen > 0 {
		r.logger.Info().
			Int("pending", seen).
			Int("pages", summary.Pages).
			Int("recovered", summary.Recovered).
			Int("failed", summary.Failed).
			Msg("citation recovery completed")
	}
	return summary, nil
}

func (r *RecoveryService) replay(ctx context.Context, pending []*models.ResponseAnalysis, summary *models.BatchSummary) error {
	for _, analysis := range pending {
		if err := ctx.Err(); err != nil {
			return err
		}
		analysisID := analysis.ID

		rc, err := r.responses.GetContext(ctx, analysis.ResponseID)
		if errors.Is(err, interfaces.ErrNotFound) {
			summary.Add(models.ItemResult{
				ResponseID: analysis.ResponseID,
				AnalysisID: &analysisID,
				Status:     models.ItemSkipped,
				Reason:     "response no longer exists",
			})
			r.metrics.observeItem(recoveryStage, models.ItemSkipped)
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to load response %d: %w", analysis.ResponseID, err)
		}

		result := r.citations.ProcessAnalysis(ctx, analysis, rc)
		summary.Add(result)
		r.metrics.observeItem(recoveryStage, result.Status)
		if result.Status == models.ItemSuccess {
			summary.Recovered++
		} else {
			r.logger.Warn().Int64("response_id", analysis.ResponseID).Str("reason", result.Reason).Msg("citation recovery failed")
		}
	}
	return nil
}
