package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RankingWeights are the confidence scores assigned to each ranking strategy.
// The defaults are hand-tuned; a YAML file can override any of them.
type RankingWeights struct {
	LLMAssisted          float64 `yaml:"llm_assisted"`
	ExplicitList         float64 `yaml:"explicit_list"`
	SecondaryComparative float64 `yaml:"secondary_comparative"`
	PositionalFallback   float64 `yaml:"positional_fallback"`
}

func DefaultRankingWeights() RankingWeights {
	return RankingWeights{
		LLMAssisted:          1.0,
		ExplicitList:         0.9,
		SecondaryComparative: 0.7,
		PositionalFallback:   0.5,
	}
}

// LoadRankingWeights reads overrides from path. An empty path returns the defaults.
// Keys missing from the file keep their default value.
func LoadRankingWeights(path string) (RankingWeights, error) {
	weights := DefaultRankingWeights()
	if path == "" {
		return weights, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return weights, fmt.Errorf("failed to read ranking weights file: %w", err)
	}
	if err := yaml.Unmarshal(data, &weights); err != nil {
		return DefaultRankingWeights(), fmt.Errorf("failed to parse ranking weights file: %w", err)
	}
	if err := weights.Validate(); err != nil {
		return DefaultRankingWeights(), err
	}
	return weights, nil
}

func (w RankingWeights) Validate() error {
	for name, v := range map[string]float64{
		"llm_assisted":          w.LLMAssisted,
		"explicit_list":         w.ExplicitList,
		"secondary_comparative": w.SecondaryComparative,
		"positional_fallback":   w.PositionalFallback,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("ranking weight %s must be within [0,1], got %v", name, v)
		}
	}
	return nil
}
