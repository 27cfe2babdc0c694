package models

import (
	"testing"

	"github.com/google/uuid"
)

func TestContentAnalysisScan(t *testing.T) {
	tests := []struct {
		name    string
		src     interface{}
		wantErr bool
	}{
		{
			name: "valid document",
			src:  []byte(`{"version":1,"keyword_usage":0.5,"readability":62.1,"total_words":120,"avg_sentence_length":14.2}`),
		},
		{
			name:    "unknown field rejected",
			src:     []byte(`{"version":1,"mystery":3}`),
			wantErr: true,
		},
		{
			name:    "density out of range",
			src:     `{"version":1,"citation_density":1.7}`,
			wantErr: true,
		},
		{
			name:    "malformed json",
			src:     []byte(`{"version":`),
			wantErr: true,
		},
		{
			name:    "unsupported type",
			src:     42,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ca ContentAnalysis
			err := ca.Scan(tt.src)
			if (err != nil) != tt.wantErr {
				t.Errorf("Scan() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestContentAnalysisValueRoundTrip(t *testing.T) {
	in := ContentAnalysis{Version: ContentAnalysisVersion, Fluency: 0.8, Readability: 55, TotalWords: 300}
	v, err := in.Value()
	if err != nil {
		t.Fatalf("Value() error = %v", err)
	}
	var out ContentAnalysis
	if err := out.Scan(v); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if out != in {
		t.Errorf("round trip = %+v, want %+v", out, in)
	}
}

func TestBatchSummaryAdd(t *testing.T) {
	id := uuid.New()
	var s BatchSummary
	s.Add(ItemResult{ResponseID: 1, Status: ItemSuccess})
	s.Add(ItemResult{ResponseID: 2, Status: ItemSkipped, Reason: "missing company"})
	s.Add(ItemResult{AnalysisID: &id, Status: ItemFailed, Reason: "insert failed"})

	if s.Succeeded != 1 || s.Skipped != 1 || s.Failed != 1 {
		t.Errorf("counters = %d/%d/%d, want 1/1/1", s.Succeeded, s.Skipped, s.Failed)
	}
	if len(s.Items) != 2 {
		t.Errorf("Items = %d, want only the 2 non-success results", len(s.Items))
	}

	var total BatchSummary
	total.Merge(s)
	total.Merge(BatchSummary{Pages: 1, Recovered: 2})
	if total.Pages != 1 || total.Recovered != 2 || total.Failed != 1 {
		t.Errorf("Merge() = %+v", total)
	}
}

func TestBatchTypeValid(t *testing.T) {
	if !BatchContentEnrichment.Valid() {
		t.Error("content-enrichment should be valid")
	}
	if BatchType("reindex").Valid() {
		t.Error("unknown batch type should be invalid")
	}
}
