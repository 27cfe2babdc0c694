package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/AI-Template-SDK/senso-insights/internal/models"
	"github.com/AI-Template-SDK/senso-insights/internal/testutil"
	"github.com/google/uuid"
)

func newTestRepos(store *testutil.MemoryStore) *Repositories {
	return &Repositories{
		Responses: store.Responses(),
		Analyses:  store.AnalysisRepo(),
		Citations: store.CitationRepo(),
		Batches:   store.BatchRepo(),
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from models.BatchStatus
		to   models.BatchStatus
		want bool
	}{
		{models.BatchPending, models.BatchInProgress, true},
		{models.BatchInProgress, models.BatchCompleted, true},
		{models.BatchPending, models.BatchFailed, true},
		{models.BatchInProgress, models.BatchFailed, true},
		{models.BatchInProgress, models.BatchPending, false},
		{models.BatchInProgress, models.BatchInProgress, false},
		{models.BatchCompleted, models.BatchInProgress, false},
		{models.BatchCompleted, models.BatchFailed, false},
		{models.BatchFailed, models.BatchInProgress, false},
		{models.BatchFailed, models.BatchFailed, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := canTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestBatchLifecycle(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewMemoryStore()
	tracker := NewBatchTrackingService(newTestRepos(store), testutil.NopLogger())
	companyID := uuid.New()

	batch, err := tracker.Create(ctx, models.BatchResponseAnalysis, &companyID, map[string]interface{}{"start_id": 1})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if batch.Status != models.BatchPending {
		t.Errorf("Expected pending, got %s", batch.Status)
	}

	if err := tracker.Start(ctx, batch.ID); err != nil {
		t.Fatalf("Unexpected error starting batch: %v", err)
	}
	if err := tracker.UpdateProgress(ctx, batch.ID, map[string]interface{}{"pages": 2}); err != nil {
		t.Fatalf("Unexpected error updating progress: %v", err)
	}
	if err := tracker.Complete(ctx, batch.ID, map[string]interface{}{"succeeded": 4}); err != nil {
		t.Fatalf("Unexpected error completing batch: %v", err)
	}

	got, err := tracker.Get(ctx, batch.ID)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got.Status != models.BatchCompleted {
		t.Errorf("Expected completed, got %s", got.Status)
	}
	if got.StartedAt == nil || got.CompletedAt == nil {
		t.Error("Expected started_at and completed_at to be set")
	}
	var metadata map[string]interface{}
	if err := json.Unmarshal(got.Metadata, &metadata); err != nil {
		t.Fatalf("Failed to decode metadata: %v", err)
	}
	for _, key := range []string{"start_id", "pages", "succeeded"} {
		if _, ok := metadata[key]; !ok {
			t.Errorf("Expected metadata key %q, got %v", key, metadata)
		}
	}

	if err := tracker.Fail(ctx, batch.ID, errors.New("late failure")); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Expected ErrInvalidTransition failing a completed batch, got %v", err)
	}
	if err := tracker.Start(ctx, batch.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Expected ErrInvalidTransition restarting a completed batch, got %v", err)
	}
}

func TestBatchFailRecordsError(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewMemoryStore()
	tracker := NewBatchTrackingService(newTestRepos(store), testutil.NopLogger())

	batch, err := tracker.Create(ctx, models.BatchAuthorityEnrichment, nil, nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if err := tracker.Fail(ctx, batch.ID, errors.New("insert failed: deadlock")); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	got, _ := tracker.Get(ctx, batch.ID)
	if got.Status != models.BatchFailed {
		t.Errorf("Expected failed, got %s", got.Status)
	}
	if got.ErrorMessage == nil || *got.ErrorMessage != "insert failed: deadlock" {
		t.Errorf("Expected error message recorded, got %v", got.ErrorMessage)
	}
}

func TestBatchTrackingErrors(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewMemoryStore()
	tracker := NewBatchTrackingService(newTestRepos(store), testutil.NopLogger())

	if _, err := tracker.Create(ctx, models.BatchType("reindex"), nil, nil); err == nil {
		t.Error("Expected error for unknown batch type")
	}
	if err := tracker.Start(ctx, uuid.New()); !errors.Is(err, ErrBatchNotFound) {
		t.Errorf("Expected ErrBatchNotFound, got %v", err)
	}
	if _, err := tracker.Get(ctx, uuid.New()); !errors.Is(err, ErrBatchNotFound) {
		t.Errorf("Expected ErrBatchNotFound, got %v", err)
	}

	batch, _ := tracker.Create(ctx, models.BatchContentEnrichment, nil, nil)
	store.BatchUpdateErr = func(*models.Batch) error { return errors.New("db down") }
	if err := tracker.Start(ctx, batch.ID); err == nil {
		t.Fatal("Expected datastore error")
	}
	store.BatchUpdateErr = nil

	got, _ := tracker.Get(ctx, batch.ID)
	if got.Status != models.BatchPending {
		t.Errorf("Expected batch to stay pending after a failed write, got %s", got.Status)
	}
	if err := tracker.Start(ctx, batch.ID); err != nil {
		t.Errorf("Expected start to succeed once the datastore recovers, got %v", err)
	}
}

func TestBatchTrackingForgetsFinishedBatches(t *testing.T) {
	ctx := context.Background()
	tracker := NewBatchTrackingService(newTestRepos(testutil.NewMemoryStore()), testutil.NopLogger()).(*batchTrackingService)

	var running uuid.UUID
	for i := 0; i < 5; i++ {
		batch, err := tracker.Create(ctx, models.BatchAuthorityEnrichment, nil, nil)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if err := tracker.Start(ctx, batch.ID); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		switch i {
		case 4:
			running = batch.ID
		case 3:
			if err := tracker.Fail(ctx, batch.ID, errors.New("breaker open")); err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
		default:
			if err := tracker.Complete(ctx, batch.ID, nil); err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if _, err := tracker.Get(ctx, batch.ID); err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
		}
	}

	if len(tracker.known) != 1 {
		t.Errorf("Expected only the running batch to stay cached, got %d entries", len(tracker.known))
	}
	if _, ok := tracker.known[running]; !ok {
		t.Error("Expected the running batch to stay cached")
	}
}
