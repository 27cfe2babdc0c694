// services/queue_state.go
package services

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// QueueStats is the observable snapshot of one enrichment queue
type QueueStats struct {
	Queue         string     `json:"queue"`
	Processed     int        `json:"processed"`
	Failed        int        `json:"failed"`
	Retried       int        `json:"retried"`
	FailedPending int        `json:"failed_pending"`
	InProgress    bool       `json:"in_progress"`
	CurrentItem   string     `json:"current_item,omitempty"`
	LastRunAt     *time.Time `json:"last_run_at,omitempty"`
	LastBatchID   *uuid.UUID `json:"last_batch_id,omitempty"`
}

// queueState is owned by a single queue instance. The processing flag rejects overlapping
// passes; the failed set remembers ids that failed on an earlier pass of this instance.
type queueState struct {
	mu         sync.Mutex
	processing bool
	failed     map[uuid.UUID]int
	stats      QueueStats
}

func newQueueState(name string) *queueState {
	return &queueState{
		failed: make(map[uuid.UUID]int),
		stats:  QueueStats{Queue: name},
	}
}

// begin claims the queue; false means another pass is running
func (s *queueState) begin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.processing {
		return false
	}
	s.processing = true
	s.stats.InProgress = true
	now := time.Now().UTC()
	s.stats.LastRunAt = &now
	return true
}

func (s *queueState) setBatch(batchID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.LastBatchID = &batchID
}

func (s *queueState) end() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processing = false
	s.stats.InProgress = false
	s.stats.CurrentItem = ""
}

func (s *queueState) setCurrent(item string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.CurrentItem = item
}

// succeeded counts a success and clears the id from the failed set
func (s *queueState) succeeded(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.Processed++
	if _, ok := s.failed[id]; ok {
		s.stats.Retried++
		delete(s.failed, id)
	}
}

// failedItem counts a failure; terminal ids leave the failed set since no pass will pick them up
func (s *queueState) failedItem(id uuid.UUID, terminal bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.Failed++
	if _, ok := s.failed[id]; ok {
		s.stats.Retried++
	}
	if terminal {
		delete(s.failed, id)
		return
	}
	s.failed[id]++
}

func (s *queueState) snapshot() QueueStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.stats
	out.FailedPending = len(s.failed)
	return out
}

func (s *queueState) failedIDs() []uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]uuid.UUID, 0, len(s.failed))
	for id := range s.failed {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}

func (s *queueState) failedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.failed)
}
