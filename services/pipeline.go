// services/pipeline.go
package services

import (
	"context"
	"fmt"

	"github.com/AI-Template-SDK/senso-insights/internal/config"
	"github.com/AI-Template-SDK/senso-insights/internal/database"
	"github.com/AI-Template-SDK/senso-insights/internal/repositories/interfaces"
	"github.com/AI-Template-SDK/senso-insights/internal/repositories/postgresql"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// NewRepositoryManager builds the postgres-backed repositories
func NewRepositoryManager(db *database.Client) *Repositories {
	return &Repositories{
		Responses: postgresql.NewResponseRepo(db),
		Analyses:  postgresql.NewAnalysisRepo(db),
		Citations: postgresql.NewCitationRepo(db),
		Batches:   postgresql.NewBatchRepo(db),
	}
}

// PipelineDeps are the optional collaborators of the pipeline
type PipelineDeps struct {
	Assistant  LanguageAssistant
	Indexer    CitationIndexer
	Reporter   FailureReporter
	Registerer prometheus.Registerer
}

// Pipeline holds every stage, sharing one batch tracker and one metrics set
type Pipeline struct {
	Repos           *Repositories
	Tracker         BatchTrackingService
	Orchestrator    *BatchOrchestrator
	Recovery        *RecoveryService
	Authority       *AuthorityQueue
	Content         *ContentQueue
	ContentAnalysis *ContentAnalysisService
	Metrics         *Metrics
	maxAttempts     int
}

// PipelineStatus is what the stats endpoint and CLI report
type PipelineStatus struct {
	Queues  []QueueStats                  `json:"queues"`
	Backlog *interfaces.EnrichmentBacklog `json:"backlog,omitempty"`
}

func NewPipeline(cfg *config.Config, repos *Repositories, deps PipelineDeps, logger zerolog.Logger) (*Pipeline, error) {
	weights := config.DefaultRankingWeights()
	if cfg.Analysis.RankingWeightsFile != "" {
		loaded, err := config.LoadRankingWeights(cfg.Analysis.RankingWeightsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load ranking weights: %w", err)
		}
		weights = loaded
	}

	registerer := deps.Registerer
	if registerer == nil {
		registerer = prometheus.NewRegistry()
	}
	metrics := NewMetrics(registerer)

	tracker := NewBatchTrackingService(repos, logger)
	analyzer := NewResponseAnalyzer(NewRankingExtractor(weights, deps.Assistant, logger), NewSentimentScorer(), logger)
	citations := NewCitationService(cfg, repos, logger)
	recovery := NewRecoveryService(repos, citations, metrics, logger)

	return &Pipeline{
		Repos:           repos,
		Tracker:         tracker,
		Orchestrator:    NewBatchOrchestrator(cfg, repos, analyzer, citations, recovery, tracker, deps.Reporter, metrics, logger),
		Recovery:        recovery,
		Authority:       NewAuthorityQueue(cfg, repos, NewAuthorityClient(cfg, metrics, logger), tracker, metrics, logger),
		Content:         NewContentQueue(cfg, repos, NewContentScraper(cfg, metrics, logger), tracker, metrics, logger),
		ContentAnalysis: NewContentAnalysisService(cfg, repos, deps.Indexer, metrics, logger),
		Metrics:         metrics,
		maxAttempts:     cfg.Queues.MaxAttempts,
	}, nil
}

// QueueStats returns the snapshots of both enrichment queues
func (p *Pipeline) QueueStats() []QueueStats {
	return []QueueStats{p.Authority.Stats(), p.Content.Stats()}
}

// Status combines the in-process queue snapshots with the stored backlog
func (p *Pipeline) Status(ctx context.Context) (*PipelineStatus, error) {
	backlog, err := p.Repos.Citations.Backlog(ctx, p.maxAttempts)
	if err != nil {
		return nil, fmt.Errorf("failed to count enrichment backlog: %w", err)
	}
	return &PipelineStatus{Queues: p.QueueStats(), Backlog: backlog}, nil
}
