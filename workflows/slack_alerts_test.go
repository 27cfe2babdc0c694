package workflows

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/AI-Template-SDK/senso-insights/internal/models"
	"github.com/AI-Template-SDK/senso-insights/internal/testutil"
	"github.com/google/uuid"
)

func TestSlackReporterPostsBatchFailure(t *testing.T) {
	var got SlackPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Expected JSON content type, got %q", r.Header.Get("Content-Type"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("Failed to decode payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	reporter := NewSlackReporter(server.URL, testutil.NopLogger())
	batch := &models.Batch{ID: uuid.New(), Type: models.BatchResponseAnalysis}
	reporter.ReportBatchFailure(batch, "failed to persist analysis page", errors.New("deadlock detected"))

	for _, want := range []string{"Insights Pipeline Error", batch.ID.String(), "company_id=all", "deadlock detected"} {
		if !strings.Contains(got.Text, want) {
			t.Errorf("Expected message to contain %q, got %q", want, got.Text)
		}
	}
}

func TestSlackReporterErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	tests := []struct {
		name    string
		url     string
		wantErr string
	}{
		{name: "missing webhook", url: "", wantErr: "SLACK_WEBHOOK_URL is not set"},
		{name: "webhook rejects", url: server.URL, wantErr: "status 500"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewSlackReporter(tt.url, testutil.NopLogger()).ReportErrorToSlack(errors.New("boom"))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestSummaryResult(t *testing.T) {
	summary := &models.BatchSummary{BatchID: uuid.New(), Pages: 2, Succeeded: 5, Failed: 1, Recovered: 1}
	result := summaryResult(summary)
	if result["batch_id"] != summary.BatchID.String() || result["succeeded"] != 5 || result["recovered"] != 1 {
		t.Errorf("Unexpected result: %v", result)
	}
	if summaryResult(nil)["status"] != "completed" {
		t.Error("Expected a nil summary to report completed")
	}
}

func TestParseOptionalUUID(t *testing.T) {
	if id, err := parseOptionalUUID(""); err != nil || id != nil {
		t.Errorf("Expected nil id for empty input, got %v %v", id, err)
	}
	if _, err := parseOptionalUUID("not-a-uuid"); err == nil {
		t.Error("Expected an error for a malformed id")
	}
	want := uuid.New()
	id, err := parseOptionalUUID(want.String())
	if err != nil || id == nil || *id != want {
		t.Errorf("Expected %s, got %v %v", want, id, err)
	}
}
