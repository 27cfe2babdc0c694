// services/content_queue.go
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

const (
	contentStage      = "content"
	nonHTMLSkipReason = "skipped: non-HTML document"
)

// ContentQueue scrapes page markdown for original citations, a few at a time
type ContentQueue struct {
	citations interfaces.CitationRepository
	scraper   ContentScraper
	tracker   BatchTrackingService
	limiter   *rate.Limiter
	cfg       config.QueueConfig
	metrics   *Metrics
	state     *queueState
	now       func() time.Time
	logger    zerolog.Logger
}

func NewContentQueue(cfg *config.Config, repos *Repositories, scraper ContentScraper, tracker BatchTrackingService, metrics *Metrics, logger zerolog.Logger) *ContentQueue {
	return &ContentQueue{
		citations: repos.Citations,
		scraper:   scraper,
		tracker:   tracker,
		limiter:   newSubBatchLimiter(cfg.Queues.SubBatchDelay),
		cfg:       cfg.Queues,
		metrics:   metrics,
		state:     newQueueState(contentStage),
		now:       time.Now,
		logger:    logger.With().Str("component", "content_queue").Logger(),
	}
}

func (q *ContentQueue) Stats() QueueStats {
	return q.state.snapshot()
}

func (q *ContentQueue) FailedIDs() []uuid.UUID {
	return q.state.failedIDs()
}

// Process runs one scrape pass. Overlapping calls on the same instance get ErrQueueBusy.
func (q *ContentQueue) Process(ctx context.Context) (*models.BatchSummary, error) {
	if !q.state.begin() {
		return nil, ErrQueueBusy
	}
	defer q.state.end()

	started := q.metrics.passStarted(contentStage)
	summary, err := q.run(ctx)
	q.metrics.passFinished(contentStage, started, err)
	q.metrics.FailedPending.WithLabelValues(contentStage).Set(float64(q.state.failedCount()))
	return summary, err
}

func (q *ContentQueue) run(ctx context.Context) (*models.BatchSummary, error) {
	pending, err := q.citations.ListNeedingContent(ctx, q.cfg.FetchLimit, q.cfg.MaxAttempts)
	if err != nil {
		return nil, fmt.Errorf("failed to list citations needing content: %w", err)
	}
	if len(pending) == 0 {
		q.logger.Debug().Msg("no citations need content")
		return &models.BatchSummary{}, nil
	}

	batch, err := q.tracker.Create(ctx, models.BatchContentEnrichment, nil, map[string]interface{}{
		"queue":     contentStage,
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
	size := q.cfg.ContentBatchSize
	if size <= 0 {
		size = 5
	}
	for start := 0; start < len(pending); start += size {
		end := start + size
		if end > len(pending) {
			end = len(pending)
		}
		if err := q.limiter.Wait(ctx); err != nil {
			return summary, failTrackedBatch(ctx, q.tracker, q.logger, batch.ID, fmt.Errorf("content pass interrupted: %w", err))
		}
		for _, c := range pending[start:end] {
			if err := q.scrapeOne(ctx, c, summary); err != nil {
				return summary, failTrackedBatch(ctx, q.tracker, q.logger, batch.ID, err)
			}
		}
		summary.Pages++
		if err := q.tracker.UpdateProgress(ctx, batch.ID, progressMetadata(summary)); err != nil {
			q.logger.Warn().Err(err).Str("batch_id", batch.ID.String()).Msg("failed to record content progress")
		}
	}

	if err := q.tracker.Complete(ctx, batch.ID, progressMetadata(summary)); err != nil {
		return summary, err
	}
	q.logger.Info().
		Str("batch_id", batch.ID.String()).
		Int("succeeded", summary.Succeeded).
		Int("failed", summary.Failed).
		Int("skipped", summary.Skipped).
		Msg("content pass completed")
	return summary, nil
}

// scrapeOne handles a single citation. Scrape failures are recorded on the row; only
// datastore errors are returned.
func (q *ContentQueue) scrapeOne(ctx context.Context, c *models.Citation, summary *models.BatchSummary) error {
	id := c.ID
	q.state.setCurrent(c.URL)
	now := q.now().UTC()

	if IsNonHTMLDocument(c.URL) {
		if err := q.citations.RecordScrapeFailure(ctx, c.ID, nonHTMLSkipReason, now, true, q.cfg.MaxAttempts); err != nil {
			return fmt.Errorf("failed to record skip for citation %s: %w", c.ID, err)
		}
		summary.Add(models.ItemResult{CitationID: &id, Status: models.ItemSkipped, Reason: nonHTMLSkipReason})
		q.metrics.observeItem(contentStage, models.ItemSkipped)
		return nil
	}

	page, err := q.scraper.Scrape(ctx, c.URL)
	if err != nil {
		q.logger.Warn().Err(err).Str("url", c.URL).Msg("scrape failed")
		permanent := IsPermanent(err)
		if err := q.citations.RecordScrapeFailure(ctx, c.ID, err.Error(), now, permanent, q.cfg.MaxAttempts); err != nil {
			return fmt.Errorf("failed to record scrape failure for citation %s: %w", c.ID, err)
		}
		q.state.failedItem(c.ID, permanent || c.ScrapeAttempts+1 >= q.cfg.MaxAttempts)
		summary.Add(models.ItemResult{CitationID: &id, Status: models.ItemFailed, Reason: err.Error()})
		q.metrics.observeItem(contentStage, models.ItemFailed)
		return nil
	}

	if err := q.citations.UpdateContent(ctx, c.ID, page.Markdown, now); err != nil {
		return fmt.Errorf("failed to store content for citation %s: %w", c.ID, err)
	}
	q.state.succeeded(c.ID)
	summary.Add(models.ItemResult{CitationID: &id, Status: models.ItemSuccess})
	q.metrics.observeItem(contentStage, models.ItemSuccess)
	return nil
}
