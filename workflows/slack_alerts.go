package workflows

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/AI-Template-SDK/senso-insights/internal/models"
	"github.com/rs/zerolog"
)

type SlackPayload struct {
	Text string `json:"text"`
}

// SlackReporter posts batch-fatal failures to the insights alerts channel
type SlackReporter struct {
	webhookURL string
	client     *http.Client
	logger     zerolog.Logger
}

func NewSlackReporter(webhookURL string, logger zerolog.Logger) *SlackReporter {
	return &SlackReporter{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 5 * time.Second},
		logger:     logger.With().Str("component", "slack_alerts").Logger(),
	}
}

// ReportBatchFailure never fails the caller; delivery problems are only logged
func (r *SlackReporter) ReportBatchFailure(batch *models.Batch, reason string, err error) {
	if err == nil || batch == nil {
		return
	}
	if reason == "" {
		reason = "unknown"
	}

	company := "all"
	if batch.CompanyID != nil {
		company = batch.CompanyID.String()
	}
	reportErr := fmt.Errorf(
		"batch failed: type=%s batch_id=%s company_id=%s reason=%s error=%v",
		batch.Type,
		batch.ID,
		company,
		reason,
		err,
	)
	if sendErr := r.ReportErrorToSlack(reportErr); sendErr != nil {
		r.logger.Warn().Err(sendErr).Str("batch_id", batch.ID.String()).Msg("failed to report batch failure to slack")
	}
}

// ReportErrorToSlack posts an error message to the configured webhook
func (r *SlackReporter) ReportErrorToSlack(err error) error {
	if err == nil {
		return nil
	}
	if r.webhookURL == "" {
		return errors.New("SLACK_WEBHOOK_URL is not set")
	}

	message := fmt.Sprintf(
		":rotating_light: *Insights Pipeline Error*\n"+
			"*Time:* %s\n"+
			"*Error:* ```%s```",
		time.Now().UTC().Format(time.RFC3339),
		err.Error(),
	)

	body, err := json.Marshal(SlackPayload{Text: message})
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, r.webhookURL, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("slack webhook returned status %d", resp.StatusCode)
	}
	return nil
}
