// services/cost_service.go
package services

import "strings"

type costService struct{}

func NewCostService() CostService {
	return &costService{}
}

// Cost per 1M tokens
var costPerToken = map[string]struct{ input, output float64 }{
	"gpt-4.1":                   {input: 2.00, output: 8.00},
	"gpt-4.1-mini":              {input: 0.40, output: 1.60},
	"gpt-4.1-nano":              {input: 0.10, output: 0.40},
	"gpt-4o-mini":               {input: 0.15, output: 0.60},
	"claude-sonnet-4-20250514":  {input: 3.00, output: 15.00},
	"claude-3-5-haiku-20241022": {input: 0.80, output: 4.00},
}

// Fallback per provider when the model (or an Azure deployment name) is not in the table
var defaultModelForProvider = map[string]string{
	"openai":    "gpt-4.1",
	"anthropic": "claude-sonnet-4-20250514",
}

func (s *costService) CalculateCost(provider string, model string, inputTokens int, outputTokens int) float64 {
	modelCosts, exists := costPerToken[model]
	if !exists {
		modelCosts = costPerToken[defaultModelForProvider[s.getProviderKey(provider, model)]]
	}

	inputCost := (float64(inputTokens) / 1_000_000.0) * modelCosts.input
	outputCost := (float64(outputTokens) / 1_000_000.0) * modelCosts.output
	return inputCost + outputCost
}

func (s *costService) getProviderKey(provider, model string) string {
	key := strings.ToLower(provider + " " + model)
	if strings.Contains(key, "anthropic") || strings.Contains(key, "claude") {
		return "anthropic"
	}
	return "openai" // default
}
