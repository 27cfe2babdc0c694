// services/authority_queue.go
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/AI-Template-SDK/senso-insights/internal/config"
	"github.com/AI-Template-SDK/senso-insights/internal/models"
	"github.com/AI-Template-SDK/senso-insights/internal/repositories/interfaces"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const authorityStage = "authority"

// AuthorityQueue attaches domain-authority metrics to original citations in bulk sub-batches
type AuthorityQueue struct {
	citations interfaces.CitationRepository
	client    AuthorityClient
	tracker   BatchTrackingService
	limiter   *rate.Limiter
	cfg       config.QueueConfig
	metrics   *Metrics
	state     *queueState
	now       func() time.Time
	logger    zerolog.Logger
}

func NewAuthorityQueue(cfg *config.Config, repos *Repositories, client AuthorityClient, tracker BatchTrackingService, metrics *Metrics, logger zerolog.Logger) *AuthorityQueue {
	return &AuthorityQueue{
		citations: repos.Citations,
		client:    client,
		tracker:   tracker,
		limiter:   newSubBatchLimiter(cfg.Queues.SubBatchDelay),
		cfg:       cfg.Queues,
		metrics:   metrics,
		state:     newQueueState(authorityStage),
		now:       time.Now,
		logger:    logger.With().Str("component", "authority_queue").Logger(),
	}
}

// newSubBatchLimiter lets the first sub-batch through and spaces the rest by delay
func newSubBatchLimiter(delay time.Duration) *rate.Limiter {
	if delay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(delay), 1)
}

// Stats returns a snapshot of the queue counters
func (q *AuthorityQueue) Stats() QueueStats {
	return q.state.snapshot()
}

// FailedIDs lists citations that failed on an earlier pass and are still retryable
func (q *AuthorityQueue) FailedIDs() []uuid.UUID {
	return q.state.failedIDs()
}

// Process runs one pass over citations still missing authority metrics.
// It returns ErrQueueBusy when a pass is already running on this queue.
func (q *AuthorityQueue) Process(ctx context.Context) (*models.BatchSummary, error) {
	if !q.state.begin() {
		return nil, ErrQueueBusy
	}
	defer q.state.end()

	started := q.metrics.passStarted(authorityStage)
	summary, err := q.run(ctx)
	q.metrics.passFinished(authorityStage, started, err)
	q.metrics.FailedPending.WithLabelValues(authorityStage).Set(float64(q.state.failedCount()))
	return summary, err
}

func (q *AuthorityQueue) run(ctx context.Context) (*models.BatchSummary, error) {
	pending, err := q.citations.ListNeedingAuthority(ctx, q.cfg.FetchLimit, q.cfg.MaxAttempts)
	if err != nil {
		return nil, fmt.Errorf("failed to list citations needing authority metrics: %w", err)
	}
	if len(pending) == 0 {
		q.logger.Debug().Msg("no citations need authority metrics")
		return &models.BatchSummary{}, nil
	}

	batch, err := q.tracker.Create(ctx, models.BatchAuthorityEnrichment, nil, map[string]interface{}{
		"queue":     authorityStage,
		"citations": len(pending),
	})
	if err != nil {
		return nil, err
	}
	if err := q.tracker.Start(ctx, batch.ID); err != nil {
		return nil, err
	}
	q.state.setBatch(batch.ID)

	summary := &models.BatchSummary{BatchID: batch.ID}
	size := q.cfg.AuthorityBatchSize
	if size <= 0 {
		size = 50
	}
	for start := 0; start < len(pending); start += size {
		end := start + size
		if end > len(pending) {
			end = len(pending)
		}
		if err := q.limiter.Wait(ctx); err != nil {
			return summary, failTrackedBatch(ctx, q.tracker, q.logger, batch.ID, fmt.Errorf("authority pass interrupted: %w", err))
		}
		if err := q.processChunk(ctx, pending[start:end], summary); err != nil {
			return summary, failTrackedBatch(ctx, q.tracker, q.logger, batch.ID, err)
		}
		summary.Pages++
		if err := q.tracker.UpdateProgress(ctx, batch.ID, progressMetadata(summary)); err != nil {
			q.logger.Warn().Err(err).Str("batch_id", batch.ID.String()).Msg("failed to record authority progress")
		}
	}

	if err := q.tracker.Complete(ctx, batch.ID, progressMetadata(summary)); err != nil {
		return summary, err
	}
	q.logger.Info().
		Str("batch_id", batch.ID.String()).
		Int("succeeded", summary.Succeeded).
		Int("failed", summary.Failed).
		Msg("authority pass completed")
	return summary, nil
}

// processChunk sends one bulk request. Only datastore errors are returned; API failures become
// per-citation failures.
func (q *AuthorityQueue) processChunk(ctx context.Context, chunk []*models.Citation, summary *models.BatchSummary) error {
	urls := make([]string, len(chunk))
	for i, c := range chunk {
		urls[i] = c.URL
	}
	q.state.setCurrent(fmt.Sprintf("%d urls from %s", len(chunk), chunk[0].URL))

	outcomes, err := q.client.FetchMetrics(ctx, urls)
	if err != nil {
		q.logger.Warn().Err(err).Int("urls", len(urls)).Msg("authority request failed")
		for _, c := range chunk {
			if err := q.recordFailure(ctx, c, err.Error(), IsPermanent(err), summary); err != nil {
				return err
			}
		}
		return nil
	}

	now := q.now().UTC()
	for _, c := range chunk {
		outcome, ok := outcomes[NormalizeURLKey(c.URL)]
		switch {
		case !ok:
			err = q.recordFailure(ctx, c, "no metrics returned for url", false, summary)
		case outcome.Error != "" || outcome.Metrics == nil:
			err = q.recordFailure(ctx, c, "authority api error: "+outcome.Error, false, summary)
		default:
			if err = q.citations.UpdateAuthority(ctx, c.ID, *outcome.Metrics, now); err == nil {
				id := c.ID
				q.state.succeeded(c.ID)
				summary.Add(models.ItemResult{CitationID: &id, Status: models.ItemSuccess})
				q.metrics.observeItem(authorityStage, models.ItemSuccess)
			}
		}
		if err != nil {
			return fmt.Errorf("failed to store authority result for citation %s: %w", c.ID, err)
		}
	}
	return nil
}

func (q *AuthorityQueue) recordFailure(ctx context.Context, c *models.Citation, reason string, permanent bool, summary *models.BatchSummary) error {
	if err := q.citations.RecordAuthorityFailure(ctx, c.ID, reason, permanent, q.cfg.MaxAttempts); err != nil {
		return err
	}
	terminal := permanent || c.AuthorityAttempts+1 >= q.cfg.MaxAttempts
	q.state.failedItem(c.ID, terminal)

	id := c.ID
	summary.Add(models.ItemResult{CitationID: &id, Status: models.ItemFailed, Reason: reason})
	q.metrics.observeItem(authorityStage, models.ItemFailed)
	return nil
}

// failTrackedBatch marks the batch failed and hands back cause for the caller to return
func failTrackedBatch(ctx context.Context, tracker BatchTrackingService, logger zerolog.Logger, batchID uuid.UUID, cause error) error {
	if err := tracker.Fail(ctx, batchID, cause); err != nil {
		logger.Error().Err(err).Str("batch_id", batchID.String()).Msg("failed to mark batch failed")
	}
	return cause
}

// progressMetadata is the batch metadata patch written after every sub-batch or page
func progressMetadata(summary *models.BatchSummary) map[string]interface{} {
	return map[string]interface{}{
		"pages":     summary.Pages,
		"succeeded": summary.Succeeded,
		"failed":    summary.Failed,
		"skipped":   summary.Skipped,
		"recovered": summary.Recovered,
	}
}
