package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the import service.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	recordsProcessed *prometheus.CounterVec
	jobsTotal        *prometheus.CounterVec
	jobDuration      *prometheus.HistogramVec
	storageRetries   prometheus.Counter
	publishFailures  prometheus.Counter
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		recordsProcessed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "importd_records_total",
				Help: "Transaction records processed, by outcome.",
			},
			[]string{"outcome"},
		),
		jobsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "importd_jobs_total",
				Help: "Import jobs reaching a terminal state, by status.",
			},
			[]string{"status"},
		),
		jobDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "importd_job_duration_seconds",
				Help:    "End-to-end duration of import jobs.",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
			},
			[]string{"status"},
		),
		storageRetries: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "importd_storage_retries_total",
				Help: "Per-record storage operations that needed a retry.",
			},
		),
		publishFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "importd_publish_failures_total",
				Help: "Progress events that could not be published.",
			},
		),
	}
}

// IncrRecord increments the record counter for one outcome.
func (m *Metrics) IncrRecord(outcome string) {
	m.recordsProcessed.WithLabelValues(outcome).Inc()
}

// AddRetries adds to the storage retry counter.
func (m *Metrics) AddRetries(n int) {
	if n > 0 {
		m.storageRetries.Add(float64(n))
	}
}

// ObserveJob records a terminal job with its duration.
func (m *Metrics) ObserveJob(status string, d time.Duration) {
	m.jobsTotal.WithLabelValues(status).Inc()
	m.jobDuration.WithLabelValues(status).Observe(d.Seconds())
}

// IncrPublishFailure increments the publish failure counter.
func (m *Metrics) IncrPublishFailure() {
	m.publishFailures.Inc()
}

// ImportSnapshot is a point-in-time summary of import activity, served by
// GET /v1/import/metrics.
type ImportSnapshot struct {
	RecordsCreated  float64 `json:"records_created"`
	RecordsUpdated  float64 `json:"records_updated"`
	RecordsSkipped  float64 `json:"records_skipped"`
	RecordsFailed   float64 `json:"records_failed"`
	JobsDone        float64 `json:"jobs_done"`
	JobsErrored     float64 `json:"jobs_errored"`
	StorageRetries  float64 `json:"storage_retries"`
	PublishFailures float64 `json:"publish_failures"`
}

// Snapshot gathers current counter values. Prometheus counters expose
// cumulative values since process start.
func (m *Metrics) Snapshot() *ImportSnapshot {
	return &ImportSnapshot{
		RecordsCreated:  counterValue(m.recordsProcessed, "created"),
		RecordsUpdated:  counterValue(m.recordsProcessed, "updated"),
		RecordsSkipped:  counterValue(m.recordsProcessed, "skipped"),
		RecordsFailed:   counterValue(m.recordsProcessed, "failed"),
		JobsDone:        counterValue(m.jobsTotal, "done"),
		JobsErrored:     counterValue(m.jobsTotal, "error"),
		StorageRetries:  plainCounterValue(m.storageRetries),
		PublishFailures: plainCounterValue(m.publishFailures),
	}
}

func counterValue(vec *prometheus.CounterVec, label string) float64 {
	c, err := vec.GetMetricWithLabelValues(label)
	if err != nil {
		return 0
	}
	var metric dto.Metric
	if err := c.Write(&metric); err != nil {
		return 0
	}
	return metric.GetCounter().GetValue()
}

func plainCounterValue(c prometheus.Counter) float64 {
	var metric dto.Metric
	if err := c.Write(&metric); err != nil {
		return 0
	}
	return metric.GetCounter().GetValue()
}
