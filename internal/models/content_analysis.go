package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
)

// ContentAnalysisVersion is bumped whenever a metric definition changes
const ContentAnalysisVersion = 1

// ContentAnalysis holds the content-quality metrics of one scraped citation page.
// Density and ratio metrics are in [0,1]; Readability is a Flesch reading-ease score.
type ContentAnalysis struct {
	Version              int     `json:"version"`
	KeywordUsage         float64 `json:"keyword_usage"`
	StatisticsDensity    float64 `json:"statistics_density"`
	QuotationDensity     float64 `json:"quotation_density"`
	CitationDensity      float64 `json:"citation_density"`
	TechnicalTermDensity float64 `json:"technical_term_density"`
	Fluency              float64 `json:"fluency"`
	AuthoritySignal      float64 `json:"authority_signal"`
	Readability          float64 `json:"readability"`
	UniqueWordRatio      float64 `json:"unique_word_ratio"`
	TotalWords           int     `json:"total_words"`
	AvgSentenceLength    float64 `json:"avg_sentence_length"`
	KeywordDensity       float64 `json:"keyword_density"`
}

// Validate rejects analyses with out-of-range or non-finite values
func (c *ContentAnalysis) Validate() error {
	ratios := map[string]float64{
		"keyword_usage":          c.KeywordUsage,
		"statistics_density":     c.StatisticsDensity,
		"quotation_density":      c.QuotationDensity,
		"citation_density":       c.CitationDensity,
		"technical_term_density": c.TechnicalTermDensity,
		"fluency":                c.Fluency,
		"authority_signal":       c.AuthoritySignal,
		"unique_word_ratio":      c.UniqueWordRatio,
		"keyword_density":        c.KeywordDensity,
	}
	for name, v := range ratios {
		if math.IsNaN(v) || v < 0 || v > 1 {
			return fmt.Errorf("content analysis %s out of range: %v", name, v)
		}
	}
	if math.IsNaN(c.Readability) || math.IsInf(c.Readability, 0) {
		return fmt.Errorf("content analysis readability is not finite")
	}
	if c.TotalWords < 0 || c.AvgSentenceLength < 0 {
		return fmt.Errorf("content analysis counts must be non-negative")
	}
	return nil
}

// Value stores the analysis as a JSONB document
func (c ContentAnalysis) Value() (driver.Value, error) {
	return json.Marshal(c)
}

// Scan decodes and validates a JSONB document. Unknown keys are rejected.
func (c *ContentAnalysis) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported content analysis type %T", src)
	}

	var decoded ContentAnalysis
	if err := strictUnmarshal(data, &decoded); err != nil {
		return fmt.Errorf("failed to decode content analysis: %w", err)
	}
	if err := decoded.Validate(); err != nil {
		return err
	}
	*c = decoded
	return nil
}
