// services/batch_orchestrator.go
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/AI-Template-SDK/senso-insights/internal/config"
	"github.com/AI-Template-SDK/senso-insights/internal/models"
	"github.com/AI-Template-SDK/senso-insights/internal/repositories/interfaces"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const analysisStage = "analysis"

// AnalysisRequest selects the response id range [StartID, EndID] to analyse
type AnalysisRequest struct {
	StartID   int64      `json:"start_id"`
	EndID     int64      `json:"end_id"`
	CompanyID *uuid.UUID `json:"company_id,omitempty"`
}

// BatchOrchestrator runs the response analyzer over an id range one page at a time
type BatchOrchestrator struct {
	responses   interfaces.ResponseRepository
	analyses    interfaces.AnalysisRepository
	analyzer    ResponseAnalyzer
	citations   CitationService
	recovery    *RecoveryService
	tracker     BatchTrackingService
	reporter    FailureReporter
	pageSize    int
	concurrency int
	metrics     *Metrics
	logger      zerolog.Logger
}

// NewBatchOrchestrator wires the orchestrator. reporter may be nil.
func NewBatchOrchestrator(
	cfg *config.Config,
	repos *Repositories,
	analyzer ResponseAnalyzer,
	citations CitationService,
	recovery *RecoveryService,
	tracker BatchTrackingService,
	reporter FailureReporter,
	metrics *Metrics,
	logger zerolog.Logger,
) *BatchOrchestrator {
	pageSize := cfg.Analysis.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	concurrency := cfg.Analysis.Concurrency
	if concurrency <= 0 {
		concurrency = 5
	}
	return &BatchOrchestrator{
		responses:   repos.Responses,
		analyses:    repos.Analyses,
		analyzer:    analyzer,
		citations:   citations,
		recovery:    recovery,
		tracker:     tracker,
		reporter:    reporter,
		pageSize:    pageSize,
		concurrency: concurrency,
		metrics:     metrics,
		logger:      logger.With().Str("component", "batch_orchestrator").Logger(),
	}
}

// Run analyses every response in the range, persists each page, stores citations and
// finally replays citation processing for whatever failed inside the batch.
func (o *BatchOrchestrator) Run(ctx context.Context, req AnalysisRequest) (*models.BatchSummary, error) {
	if req.StartID > req.EndID {
		return nil, fmt.Errorf("invalid response range %d-%d", req.StartID, req.EndID)
	}

	started := o.metrics.passStarted(analysisStage)

	summary, err := o.run(ctx, req)
	o.metrics.passFinished(analysisStage, started, err)
	return summary, err
}

func (o *BatchOrchestrator) run(ctx context.Context, req AnalysisRequest) (*models.BatchSummary, error) {
	batch, err := o.tracker.Create(ctx, models.BatchResponseAnalysis, req.CompanyID, map[string]interface{}{
		"start_id":  req.StartID,
		"end_id":    req.EndID,
		"page_size": o.pageSize,
	})
	if err != nil {
		return nil, err
	}
	if err := o.tracker.Start(ctx, batch.ID); err != nil {
		return nil, err
	}

	log := o.logger.With().Str("batch_id", batch.ID.String()).Logger()
	log.Info().Int64("start_id", req.StartID).Int64("end_id", req.EndID).Msg("response analysis batch started")

	summary := &models.BatchSummary{BatchID: batch.ID}
	afterID := req.StartID - 1
	for {
		page, err := o.responses.ListContexts(ctx, afterID, req.EndID, o.pageSize)
		if err != nil {
			return summary, o.fail(ctx, batch, "failed to fetch responses", fmt.Errorf("failed to fetch responses after %d: %w", afterID, err))
		}
		if len(page) == 0 {
			break
		}

		if err := o.processPage(ctx, batch.ID, page, summary); err != nil {
			return summary, o.fail(ctx, batch, "failed to persist analysis page", err)
		}
		summary.Pages++
		afterID = page[len(page)-1].ID

		progress := progressMetadata(summary)
		progress["last_response_id"] = afterID
		if err := o.tracker.UpdateProgress(ctx, batch.ID, progress); err != nil {
			log.Warn().Err(err).Msg("failed to record analysis progress")
		}
		if len(page) < o.pageSize {
			break
		}
	}

	if o.recovery != nil {
		recovered, err := o.recovery.RecoverBatch(ctx, batch.ID)
		if err != nil {
			log.Warn().Err(err).Msg("in-batch citation recovery failed")
		} else {
			summary.Recovered = recovered.Recovered
		}
	}

	if err := o.tracker.Complete(ctx, batch.ID, progressMetadata(summary)); err != nil {
		return summary, err
	}
	log.Info().
		Int("pages", summary.Pages).
		Int("succeeded", summary.Succeeded).
		Int("failed", summary.Failed).
		Int("skipped", summary.Skipped).
		Int("recovered", summary.Recovered).
		Msg("response analysis batch completed")
	return summary, nil
}

type pageItem struct {
	rc       *models.ResponseContext
	analysis *models.ResponseAnalysis
	result   models.ItemResult
}

// processPage analyses a page concurrently, replaces its analyses in one transaction and then
// stores citations per analysis. The returned error is batch-fatal.
func (o *BatchOrchestrator) processPage(ctx context.Context, batchID uuid.UUID, page []*models.ResponseContext, summary *models.BatchSummary) error {
	items := make([]pageItem, len(page))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)
	for i, rc := range page {
		items[i].rc = rc
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			analysis, err := o.analyzer.Analyze(gctx, rc, &batchID)
			switch {
			case errors.Is(err, ErrMissingContext):
				items[i].result = models.ItemResult{ResponseID: rc.ID, Status: models.ItemSkipped, Reason: err.Error()}
			case err != nil:
				items[i].result = models.ItemResult{ResponseID: rc.ID, Status: models.ItemFailed, Reason: err.Error()}
			default:
				items[i].analysis = analysis
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("page analysis interrupted: %w", err)
	}

	var ids []int64
	var analyses []*models.ResponseAnalysis
	for _, item := range items {
		if item.analysis == nil {
			o.logger.Warn().Int64("response_id", item.rc.ID).Str("reason", item.result.Reason).Msg("response not analysed")
			summary.Add(item.result)
			o.metrics.observeItem(analysisStage, item.result.Status)
			continue
		}
		ids = append(ids, item.rc.ID)
		analyses = append(analyses, item.analysis)
	}
	if len(analyses) == 0 {
		return nil
	}

	if err := o.analyses.ReplaceForResponses(ctx, ids, analyses); err != nil {
		return fmt.Errorf("failed to replace analyses for responses %d-%d: %w", ids[0], ids[len(ids)-1], err)
	}

	for _, item := range items {
		if item.analysis == nil {
			continue
		}
		result := o.citations.ProcessAnalysis(ctx, item.analysis, item.rc)
		if result.Status != models.ItemSuccess {
			o.logger.Warn().Int64("response_id", item.rc.ID).Str("reason", result.Reason).Msg("citation processing failed, left for recovery")
		}
		summary.Add(result)
		o.metrics.observeItem(analysisStage, result.Status)
	}
	return nil
}

func (o *BatchOrchestrator) fail(ctx context.Context, batch *models.Batch, reason string, cause error) error {
	o.logger.Error().Err(cause).Str("batch_id", batch.ID.String()).Msg(reason)
	if o.reporter != nil {
		o.reporter.ReportBatchFailure(batch, reason, cause)
	}
	return failTrackedBatch(ctx, o.tracker, o.logger, batch.ID, cause)
}
