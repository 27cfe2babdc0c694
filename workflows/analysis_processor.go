// workflows/analysis_processor.go
package workflows

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/inngest/inngestgo"
	"github.com/inngest/inngestgo/step"
	"github.com/rs/zerolog"

	"github.com/AI-Template-SDK/senso-insights/internal/models"
	"github.com/AI-Template-SDK/senso-insights/services"
)

// Event types
type AnalyzeResponsesEvent struct {
	StartID     int64  `json:"start_id"`
	EndID       int64  `json:"end_id"`
	CompanyID   string `json:"company_id,omitempty"`
	TriggeredBy string `json:"triggered_by,omitempty"`
}

type RecoverCitationsEvent struct {
	BatchID   string `json:"batch_id,omitempty"`
	CompanyID string `json:"company_id,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

type AnalysisProcessor struct {
	orchestrator *services.BatchOrchestrator
	recovery     *services.RecoveryService
	client       inngestgo.Client
	logger       zerolog.Logger
}

func NewAnalysisProcessor(pipeline *services.Pipeline, logger zerolog.Logger) *AnalysisProcessor {
	return &AnalysisProcessor{
		orchestrator: pipeline.Orchestrator,
		recovery:     pipeline.Recovery,
		logger:       logger.With().Str("component", "analysis_processor").Logger(),
	}
}

func (p *AnalysisProcessor) SetClient(client inngestgo.Client) {
	p.client = client
}

func (p *AnalysisProcessor) AnalyzeResponses() inngestgo.ServableFunction {
	fn, err := inngestgo.CreateFunction(
		p.client,
		inngestgo.FunctionOpts{
			ID:      "analyze-responses",
			Name:    "Analyze Responses - Ranking, Sentiment and Citations",
			Retries: inngestgo.IntPtr(1),
		},
		inngestgo.EventTrigger("responses.analysis.requested", nil),
		func(ctx context.Context, input inngestgo.Input[AnalyzeResponsesEvent]) (any, error) {
			data := input.Event.Data
			p.logger.Info().Int64("start_id", data.StartID).Int64("end_id", data.EndID).Msg("analysis requested")

			companyID, err := parseOptionalUUID(data.CompanyID)
			if err != nil {
				return nil, inngestgo.NoRetryError(fmt.Errorf("invalid company ID: %w", err))
			}

			summary, err := step.Run(ctx, "analyze-range", func(ctx context.Context) (*models.BatchSummary, error) {
				return p.orchestrator.Run(ctx, services.AnalysisRequest{
					StartID:   data.StartID,
					EndID:     data.EndID,
					CompanyID: companyID,
				})
			})
			if err != nil {
				return nil, fmt.Errorf("step 'analyze-range' failed: %w", err)
			}
			return summaryResult(summary), nil
		},
	)
	if err != nil {
		panic(fmt.Errorf("failed to create AnalyzeResponses function: %w", err))
	}
	return fn
}

func (p *AnalysisProcessor) RecoverCitations() inngestgo.ServableFunction {
	fn, err := inngestgo.CreateFunction(
		p.client,
		inngestgo.FunctionOpts{
			ID:      "recover-citations",
			Name:    "Recover Citations - Replay Unprocessed Analyses",
			Retries: inngestgo.IntPtr(3),
		},
		inngestgo.EventTrigger("citations.recovery.requested", nil),
		func(ctx context.Context, input inngestgo.Input[RecoverCitationsEvent]) (any, error) {
			data := input.Event.Data
			batchID, err := parseOptionalUUID(data.BatchID)
			if err != nil {
				return nil, inngestgo.NoRetryError(fmt.Errorf("invalid batch ID: %w", err))
			}
			companyID, err := parseOptionalUUID(data.CompanyID)
			if err != nil {
				return nil, inngestgo.NoRetryError(fmt.Errorf("invalid company ID: %w", err))
			}

			summary, err := step.Run(ctx, "recover-citations", func(ctx context.Context) (*models.BatchSummary, error) {
				switch {
				case batchID != nil:
					return p.recovery.RecoverBatch(ctx, *batchID)
				case companyID != nil:
					return p.recovery.RecoverCompany(ctx, *companyID)
				default:
					return p.recovery.RecoverAll(ctx, data.Limit)
				}
			})
			if err != nil {
				return nil, fmt.Errorf("step 'recover-citations' failed: %w", err)
			}
			return summaryResult(summary), nil
		},
	)
	if err != nil {
		panic(fmt.Errorf("failed to create RecoverCitations function: %w", err))
	}
	return fn
}

func (p *AnalysisProcessor) DailyCitationRecovery() inngestgo.ServableFunction {
	fn, err := inngestgo.CreateFunction(
		p.client,
		inngestgo.FunctionOpts{
			ID:   "recover-citations-daily",
			Name: "Daily Citation Recovery Sweep",
		},
		inngestgo.CronTrigger("0 3 * * *"), // Every day at 3 AM UTC
		func(ctx context.Context, input inngestgo.Input[any]) (any, error) {
			summary, err := step.Run(ctx, "recover-all", func(ctx context.Context) (*models.BatchSummary, error) {
				return p.recovery.RecoverAll(ctx, 0)
			})
			if err != nil {
				return nil, fmt.Errorf("step 'recover-all' failed: %w", err)
			}
			return summaryResult(summary), nil
		},
	)
	if err != nil {
		panic(fmt.Errorf("failed to create DailyCitationRecovery function: %w", err))
	}
	return fn
}

func parseOptionalUUID(raw string) (*uuid.UUID, error) {
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// summaryResult keeps the function output small; item details stay in the logs and batch metadata
func summaryResult(summary *models.BatchSummary) map[string]interface{} {
	if summary == nil {
		return map[string]interface{}{"status": "completed"}
	}
	return map[string]interface{}{
		"status":    "completed",
		"batch_id":  summary.BatchID.String(),
		"pages":     summary.Pages,
		"succeeded": summary.Succeeded,
		"failed":    summary.Failed,
		"skipped":   summary.Skipped,
		"recovered": summary.Recovered,
	}
}
