// workflows/enrichment_processor.go
package workflows

import (
	"context"
	"errors"
	"fmt"

	"github.com/inngest/inngestgo"
	"github.com/inngest/inngestgo/step"
	"github.com/rs/zerolog"

	"github.com/AI-Template-SDK/senso-insights/internal/models"
	"github.com/AI-Template-SDK/senso-insights/services"
)

const (
	queueAuthority = "authority"
	queueContent   = "content"
)

type EnrichmentRequestedEvent struct {
	Queue       string `json:"queue,omitempty"` // "authority", "content" or empty for both
	TriggeredBy string `json:"triggered_by,omitempty"`
}

type EnrichmentProcessor struct {
	authority       *services.AuthorityQueue
	content         *services.ContentQueue
	contentAnalysis *services.ContentAnalysisService
	client          inngestgo.Client
	logger          zerolog.Logger
}

func NewEnrichmentProcessor(pipeline *services.Pipeline, logger zerolog.Logger) *EnrichmentProcessor {
	return &EnrichmentProcessor{
		authority:       pipeline.Authority,
		content:         pipeline.Content,
		contentAnalysis: pipeline.ContentAnalysis,
		logger:          logger.With().Str("component", "enrichment_processor").Logger(),
	}
}

func (p *EnrichmentProcessor) SetClient(client inngestgo.Client) {
	p.client = client
}

func (p *EnrichmentProcessor) EnrichAuthority() inngestgo.ServableFunction {
	fn, err := inngestgo.CreateFunction(
		p.client,
		inngestgo.FunctionOpts{
			ID:   "enrich-authority",
			Name: "Enrich Citation Domain Authority",
		},
		inngestgo.CronTrigger("*/30 * * * *"),
		func(ctx context.Context, input inngestgo.Input[any]) (any, error) {
			return p.runQueue(ctx, queueAuthority)
		},
	)
	if err != nil {
		panic(fmt.Errorf("failed to create EnrichAuthority function: %w", err))
	}
	return fn
}

func (p *EnrichmentProcessor) EnrichContent() inngestgo.ServableFunction {
	fn, err := inngestgo.CreateFunction(
		p.client,
		inngestgo.FunctionOpts{
			ID:   "enrich-content",
			Name: "Enrich Citation Page Content",
		},
		inngestgo.CronTrigger("15,45 * * * *"),
		func(ctx context.Context, input inngestgo.Input[any]) (any, error) {
			return p.runQueue(ctx, queueContent)
		},
	)
	if err != nil {
		panic(fmt.Errorf("failed to create EnrichContent function: %w", err))
	}
	return fn
}

// EnrichOnRequest drains one or both queues on demand
func (p *EnrichmentProcessor) EnrichOnRequest() inngestgo.ServableFunction {
	fn, err := inngestgo.CreateFunction(
		p.client,
		inngestgo.FunctionOpts{
			ID:      "enrich-citations-requested",
			Name:    "Enrich Citations On Request",
			Retries: inngestgo.IntPtr(2),
		},
		inngestgo.EventTrigger("citations.enrichment.requested", nil),
		func(ctx context.Context, input inngestgo.Input[EnrichmentRequestedEvent]) (any, error) {
			queue := input.Event.Data.Queue
			p.logger.Info().Str("queue", queue).Str("triggered_by", input.Event.Data.TriggeredBy).Msg("enrichment requested")

			switch queue {
			case queueAuthority, queueContent:
				return p.runQueue(ctx, queue)
			case "":
				authority, err := p.runQueue(ctx, queueAuthority)
				if err != nil {
					return nil, err
				}
				content, err := p.runQueue(ctx, queueContent)
				if err != nil {
					return nil, err
				}
				return map[string]interface{}{
					queueAuthority: authority,
					queueContent:   content,
				}, nil
			default:
				return nil, inngestgo.NoRetryError(fmt.Errorf("unknown enrichment queue %q", queue))
			}
		},
	)
	if err != nil {
		panic(fmt.Errorf("failed to create EnrichOnRequest function: %w", err))
	}
	return fn
}

func (p *EnrichmentProcessor) AnalyzeCitationContent() inngestgo.ServableFunction {
	fn, err := inngestgo.CreateFunction(
		p.client,
		inngestgo.FunctionOpts{
			ID:      "analyze-citation-content",
			Name:    "Analyze Scraped Citation Content",
			Retries: inngestgo.IntPtr(2),
		},
		inngestgo.CronTrigger("*/20 * * * *"),
		func(ctx context.Context, input inngestgo.Input[any]) (any, error) {
			summary, err := step.Run(ctx, "analyze-content", func(ctx context.Context) (*models.BatchSummary, error) {
				return p.contentAnalysis.Process(ctx)
			})
			if err != nil {
				return nil, fmt.Errorf("step 'analyze-content' failed: %w", err)
			}
			return map[string]interface{}{
				"status":    "completed",
				"succeeded": summary.Succeeded,
				"failed":    summary.Failed,
			}, nil
		},
	)
	if err != nil {
		panic(fmt.Errorf("failed to create AnalyzeCitationContent function: %w", err))
	}
	return fn
}

// runQueue runs one pass of the named queue; an overlapping pass is reported, not retried
func (p *EnrichmentProcessor) runQueue(ctx context.Context, queue string) (map[string]interface{}, error) {
	stepName := "process-" + queue + "-queue"
	summary, err := step.Run(ctx, stepName, func(ctx context.Context) (*models.BatchSummary, error) {
		var (
			summary *models.BatchSummary
			err     error
		)
		if queue == queueAuthority {
			summary, err = p.authority.Process(ctx)
		} else {
			summary, err = p.content.Process(ctx)
		}
		if errors.Is(err, services.ErrQueueBusy) {
			p.logger.Info().Str("queue", queue).Msg("queue pass already running, skipping")
			return nil, nil
		}
		return summary, err
	})
	if err != nil {
		return nil, fmt.Errorf("step '%s' failed: %w", stepName, err)
	}
	if summary == nil {
		return map[string]interface{}{"status": "busy", "queue": queue}, nil
	}
	result := summaryResult(summary)
	result["queue"] = queue
	return result, nil
}
