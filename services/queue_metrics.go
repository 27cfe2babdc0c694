// services/queue_metrics.go
package services

import (
	"time"

	"github.com/AI-Template-SDK/senso-insights/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is the prometheus view of the pipeline. Queue stats snapshots stay the primary API;
// these series exist for dashboards and alerting.
type Metrics struct {
	Items         *prometheus.CounterVec
	Passes        *prometheus.CounterVec
	PassDuration  *prometheus.HistogramVec
	InProgress    *prometheus.GaugeVec
	FailedPending *prometheus.GaugeVec
	ExternalCalls *prometheus.CounterVec
}

// NewMetrics registers the pipeline series on reg. Tests pass a fresh prometheus.NewRegistry().
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Items: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "insights_items_total",
				Help: "Items handled per stage and outcome",
			},
			[]string{"stage", "status"},
		),
		Passes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "insights_passes_total",
				Help: "Completed stage passes by outcome",
			},
			[]string{"stage", "outcome"},
		),
		PassDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "insights_pass_duration_seconds",
				Help:    "Duration of one stage pass",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
			},
			[]string{"stage"},
		),
		InProgress: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "insights_stage_in_progress",
				Help: "1 while a stage pass is running",
			},
			[]string{"stage"},
		),
		FailedPending: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "insights_queue_failed_pending",
				Help: "Citation ids waiting in a queue's failed set",
			},
			[]string{"stage"},
		),
		ExternalCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "insights_external_calls_total",
				Help: "Calls to external enrichment services by outcome",
			},
			[]string{"service", "outcome"},
		),
	}
}

func (m *Metrics) observeItem(stage string, status models.ItemStatus) {
	m.Items.WithLabelValues(stage, string(status)).Inc()
}

func (m *Metrics) passStarted(stage string) time.Time {
	m.InProgress.WithLabelValues(stage).Set(1)
	return time.Now()
}

func (m *Metrics) passFinished(stage string, started time.Time, err error) {
	outcome := "completed"
	if err != nil {
		outcome = "failed"
	}
	m.InProgress.WithLabelValues(stage).Set(0)
	m.Passes.WithLabelValues(stage, outcome).Inc()
	m.PassDuration.WithLabelValues(stage).Observe(time.Since(started).Seconds())
}

func (m *Metrics) externalCall(service string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.ExternalCalls.WithLabelValues(service, outcome).Inc()
}
