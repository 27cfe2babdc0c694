package testutil

import (
	"io"
	"time"

	"github.com/AI-Template-SDK/senso-insights/internal/config"
	"github.com/rs/zerolog"
)

// MockCostService is a mock implementation of CostService for testing
type MockCostService struct {
	CalculateCostFunc func(provider, model string, inputTokens, outputTokens int) float64
}

func (m *MockCostService) CalculateCost(provider, model string, inputTokens, outputTokens int) float64 {
	if m.CalculateCostFunc != nil {
		return m.CalculateCostFunc(provider, model, inputTokens, outputTokens)
	}
	return 0.0015 // Default mock cost
}

// NewMockCostService creates a new mock cost service
func NewMockCostService() *MockCostService {
	return &MockCostService{}
}

// NopLogger discards everything
func NopLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

// TestConfig returns a config with fast queue timings for tests
func TestConfig() *config.Config {
	return &config.Config{
		Environment: "test",
		LogLevel:    "error",
		Queues: config.QueueConfig{
			AuthorityBatchSize:   50,
			ContentBatchSize:     5,
			FetchLimit:           500,
			SubBatchDelay:        time.Millisecond,
			MaxRetries:           1,
			MaxAttempts:          3,
			RequestTimeout:       2 * time.Second,
			BackoffInitial:       time.Millisecond,
			BackoffMaxElapsed:    50 * time.Millisecond,
			ContentAnalysisLimit: 100,
		},
		Analysis: config.AnalysisConfig{
			PageSize:            2,
			Concurrency:         2,
			CitationReuseWindow: 120 * 24 * time.Hour,
			AssistantProvider:   "none",
		},
	}
}
