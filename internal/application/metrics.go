package application

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ericfisherdev/basicci/internal/domain/model"
)

// Metrics holds the Prometheus collectors for runs and stages. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	runsTotal      *prometheus.CounterVec
	runDuration    prometheus.Histogram
	stagesTotal    *prometheus.CounterVec
	stageDuration  *prometheus.HistogramVec
	runsInFlight   prometheus.Gauge
	notifyFailures prometheus.Counter
}

// NewMetrics registers the collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		runsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "basicci",
			Subsystem: "runs",
			Name:      "total",
			Help:      "Number of completed runs by status",
		}, []string{"status"}),
		runDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "basicci",
			Subsystem: "runs",
			Name:      "duration_seconds",
			Help:      "Wall time of completed runs",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
		stagesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "basicci",
			Subsystem: "stages",
			Name:      "total",
			Help:      "Number of executed stages by outcome",
		}, []string{"outcome"}),
		stageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "basicci",
			Subsystem: "stages",
			Name:      "duration_seconds",
			Help:      "Wall time of executed stages",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 14),
		}, []string{"outcome"}),
		runsInFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "basicci",
			Subsystem: "runs",
			Name:      "in_flight",
			Help:      "Number of runs currently executing",
		}),
		notifyFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: "basicci",
			Subsystem: "notify",
			Name:      "failures_total",
			Help:      "Number of commit status notifications that failed",
		}),
	}
}

func (m *Metrics) runStarted() {
	if m == nil {
		return
	}
	m.runsInFlight.Inc()
}

func (m *Metrics) runFinished(status model.RunStatus, d time.Duration) {
	if m == nil {
		return
	}
	m.runsInFlight.Dec()
	m.runsTotal.WithLabelValues(string(status)).Inc()
	m.runDuration.Observe(d.Seconds())
}

func (m *Metrics) stageFinished(success bool, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "failed"
	if success {
		outcome = "passed"
	}
	m.stagesTotal.WithLabelValues(outcome).Inc()
	m.stageDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

func (m *Metrics) notifyFailed() {
	if m == nil {
		return
	}
	m.notifyFailures.Inc()
}
