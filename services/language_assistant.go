// services/language_assistant.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/AI-Template-SDK/senso-insights/internal/config"
	"github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/azure"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog"
)

// AssistantAnswer is the structured output shape requested from OpenAI
type AssistantAnswer struct {
	Answer string `json:"answer" jsonschema_description:"Numbered list of matched company names, or NO_RANKING"`
}

type openAIAssistant struct {
	client      *openai.Client
	model       string
	costService CostService
}

// NewOpenAIAssistant uses Azure OpenAI when its endpoint, key and deployment are all set
func NewOpenAIAssistant(cfg *config.Config, costService CostService, logger zerolog.Logger) LanguageAssistant {
	var client openai.Client
	model := cfg.Analysis.AssistantModel

	if cfg.AzureOpenAIEndpoint != "" && cfg.AzureOpenAIKey != "" && cfg.AzureOpenAIDeploymentName != "" {
		client = openai.NewClient(
			azure.WithEndpoint(cfg.AzureOpenAIEndpoint, "2024-12-01-preview"),
			azure.WithAPIKey(cfg.AzureOpenAIKey),
		)
		model = cfg.AzureOpenAIDeploymentName
		logger.Info().Str("endpoint", cfg.AzureOpenAIEndpoint).Str("deployment", model).Msg("ranking assistant using Azure OpenAI")
	} else {
		client = openai.NewClient(option.WithAPIKey(cfg.OpenAIAPIKey))
		logger.Info().Str("model", model).Msg("ranking assistant using OpenAI")
	}

	return &openAIAssistant{client: &client, model: model, costService: costService}
}

func (a *openAIAssistant) Complete(ctx context.Context, req AssistantRequest) (*AssistantReply, error) {
	schemaParam := openai.ResponseFormatJSONSchemaJSONSchemaParam{
		Name:        "company_ranking",
		Description: openai.String("Companies from the supplied list in ranked order"),
		Schema:      GenerateSchema[AssistantAnswer](),
		Strict:      openai.Bool(true),
	}

	resp, err := a.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.System),
			openai.UserMessage(req.Prompt),
		},
		Model: openai.ChatModel(a.model),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{JSONSchema: schemaParam},
		},
		Temperature: openai.Float(0),
	})
	if err != nil {
		return nil, fmt.Errorf("openai completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response choices returned from OpenAI")
	}

	var answer AssistantAnswer
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &answer); err != nil {
		return nil, fmt.Errorf("failed to parse assistant answer: %w", err)
	}

	inputTokens := int(resp.Usage.PromptTokens)
	outputTokens := int(resp.Usage.CompletionTokens)
	return &AssistantReply{
		Text:         answer.Answer,
		Provider:     "openai",
		Model:        a.model,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		Cost:         a.costService.CalculateCost("openai", a.model, inputTokens, outputTokens),
	}, nil
}

type anthropicAssistant struct {
	client      *anthropic.Client
	model       string
	costService CostService
}

func NewAnthropicAssistant(cfg *config.Config, costService CostService) LanguageAssistant {
	client := anthropic.NewClient(anthropicoption.WithAPIKey(cfg.AnthropicAPIKey))
	return &anthropicAssistant{client: &client, model: cfg.Analysis.AssistantModel, costService: costService}
}

func (a *anthropicAssistant) Complete(ctx context.Context, req AssistantRequest) (*AssistantReply, error) {
	resp, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: 1000,
		System:    []anthropic.TextBlockParam{{Text: req.System}},
		Messages: []anthropic.MessageParam{{
			Content: []anthropic.ContentBlockParamUnion{{
				OfText: &anthropic.TextBlockParam{Text: req.Prompt},
			}},
			Role: anthropic.MessageParamRoleUser,
		}},
		Temperature: anthropic.Float(0),
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic completion failed: %w", err)
	}

	var parts []string
	for _, block := range resp.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			parts = append(parts, variant.Text)
		}
	}

	inputTokens := int(resp.Usage.InputTokens)
	outputTokens := int(resp.Usage.OutputTokens)
	return &AssistantReply{
		Text:         strings.Join(parts, ""),
		Provider:     "anthropic",
		Model:        a.model,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		Cost:         a.costService.CalculateCost("anthropic", a.model, inputTokens, outputTokens),
	}, nil
}

// NewLanguageAssistant picks the provider named in config. It returns nil when the provider is
// "none" or its key is missing, which makes the llm-assisted ranking step skip.
func NewLanguageAssistant(cfg *config.Config, costService CostService, logger zerolog.Logger) LanguageAssistant {
	switch cfg.Analysis.AssistantProvider {
	case "anthropic":
		if cfg.AnthropicAPIKey == "" {
			logger.Warn().Msg("ANTHROPIC_API_KEY not set, llm-assisted ranking disabled")
			return nil
		}
		return NewAnthropicAssistant(cfg, costService)
	case "openai":
		if cfg.OpenAIAPIKey == "" && cfg.AzureOpenAIKey == "" {
			logger.Warn().Msg("OpenAI key not set, llm-assisted ranking disabled")
			return nil
		}
		return NewOpenAIAssistant(cfg, costService, logger)
	default:
		return nil
	}
}
