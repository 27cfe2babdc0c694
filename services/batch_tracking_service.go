// services/batch_tracking_service.go
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/AI-Template-SDK/senso-insights/internal/models"
	"github.com/AI-Template-SDK/senso-insights/internal/repositories/interfaces"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var statusRank = map[models.BatchStatus]int{
	models.BatchPending:    0,
	models.BatchInProgress: 1,
	models.BatchCompleted:  2,
}

// canTransition allows forward moves only, plus failing any non-terminal batch
func canTransition(from, to models.BatchStatus) bool {
	if from.Terminal() {
		return false
	}
	if to == models.BatchFailed {
		return true
	}
	fromRank, okFrom := statusRank[from]
	toRank, okTo := statusRank[to]
	return okFrom && okTo && toRank > fromRank
}

type batchTrackingService struct {
	batches interfaces.BatchRepository
	now     func() time.Time
	logger  zerolog.Logger

	mu    sync.Mutex
	known map[uuid.UUID]*models.Batch
}

func NewBatchTrackingService(repos *Repositories, logger zerolog.Logger) BatchTrackingService {
	return &batchTrackingService{
		batches: repos.Batches,
		now:     time.Now,
		logger:  logger.With().Str("component", "batch_tracking").Logger(),
		known:   make(map[uuid.UUID]*models.Batch),
	}
}

func (s *batchTrackingService) Create(ctx context.Context, batchType models.BatchType, companyID *uuid.UUID, metadata map[string]interface{}) (*models.Batch, error) {
	if !batchType.Valid() {
		return nil, fmt.Errorf("unknown batch type %q", batchType)
	}
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal batch metadata: %w", err)
	}

	now := s.now().UTC()
	batch := &models.Batch{
		ID:        uuid.New(),
		Type:      batchType,
		CompanyID: companyID,
		Status:    models.BatchPending,
		Metadata:  raw,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.batches.Create(ctx, batch); err != nil {
		return nil, fmt.Errorf("failed to create %s batch: %w", batchType, err)
	}

	s.mu.Lock()
	cp := *batch
	s.known[batch.ID] = &cp
	s.mu.Unlock()

	s.logger.Info().Str("batch_id", batch.ID.String()).Str("type", string(batchType)).Msg("batch created")
	return batch, nil
}

func (s *batchTrackingService) Start(ctx context.Context, id uuid.UUID) error {
	return s.transition(ctx, id, models.BatchInProgress, nil)
}

func (s *batchTrackingService) UpdateProgress(ctx context.Context, id uuid.UUID, progress map[string]interface{}) error {
	raw, err := json.Marshal(progress)
	if err != nil {
		return fmt.Errorf("failed to marshal batch progress: %w", err)
	}
	if err := s.batches.UpdateMetadata(ctx, id, raw); err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return ErrBatchNotFound
		}
		return fmt.Errorf("failed to update progress for batch %s: %w", id, err)
	}
	return nil
}

func (s *batchTrackingService) Complete(ctx context.Context, id uuid.UUID, metadata map[string]interface{}) error {
	if len(metadata) > 0 {
		if err := s.UpdateProgress(ctx, id, metadata); err != nil {
			return err
		}
	}
	return s.transition(ctx, id, models.BatchCompleted, nil)
}

func (s *batchTrackingService) Fail(ctx context.Context, id uuid.UUID, cause error) error {
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	return s.transition(ctx, id, models.BatchFailed, &msg)
}

func (s *batchTrackingService) Get(ctx context.Context, id uuid.UUID) (*models.Batch, error) {
	batch, err := s.batches.Get(ctx, id)
	if errors.Is(err, interfaces.ErrNotFound) {
		return nil, ErrBatchNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get batch %s: %w", id, err)
	}
	if !batch.Status.Terminal() {
		s.mu.Lock()
		cp := *batch
		s.known[id] = &cp
		s.mu.Unlock()
	}
	return batch, nil
}

func (s *batchTrackingService) transition(ctx context.Context, id uuid.UUID, to models.BatchStatus, errorMessage *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.known[id]
	if !ok {
		batch, err := s.batches.Get(ctx, id)
		if errors.Is(err, interfaces.ErrNotFound) {
			return ErrBatchNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get batch %s: %w", id, err)
		}
		current = batch
	}
	if !canTransition(current.Status, to) {
		return fmt.Errorf("%w: batch %s %s -> %s", ErrInvalidTransition, id, current.Status, to)
	}

	now := s.now().UTC()
	next := *current
	next.Status = to
	next.UpdatedAt = now
	switch to {
	case models.BatchInProgress:
		next.StartedAt = &now
	case models.BatchCompleted, models.BatchFailed:
		next.CompletedAt = &now
		next.ErrorMessage = errorMessage
	}
	if err := s.batches.UpdateStatus(ctx, &next); err != nil {
		return fmt.Errorf("failed to move batch %s to %s: %w", id, to, err)
	}
	// Terminal batches never move again; the repository answers any later lookup
	if to.Terminal() {
		delete(s.known, id)
	} else {
		s.known[id] = &next
	}

	event := s.logger.Info()
	if to == models.BatchFailed {
		event = s.logger.Error()
		if errorMessage != nil {
			event = event.Str("error", *errorMessage)
		}
	}
	event.Str("batch_id", id.String()).Str("from", string(current.Status)).Str("to", string(to)).Msg("batch status changed")
	return nil
}
