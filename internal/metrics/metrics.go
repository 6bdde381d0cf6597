// Package metrics provides Prometheus metrics for the turn pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the service. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	TurnsTotal         *prometheus.CounterVec
	TurnDuration       *prometheus.HistogramVec
	SlowTurnsTotal     prometheus.Counter
	StageFailuresTotal *prometheus.CounterVec
	GenerationAttempts *prometheus.CounterVec
	EmotionLabelsTotal *prometheus.CounterVec
	HistoryOpsTotal    *prometheus.CounterVec
	HistoryOpDuration  *prometheus.HistogramVec
	TempFilesInFlight  prometheus.Gauge
}

// New creates and registers all metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	m := &Metrics{}

	m.TurnsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "elile_turns_total",
			Help: "Total number of turns handled, by outcome",
		},
		[]string{"outcome"},
	)

	m.TurnDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "elile_turn_duration_seconds",
			Help:    "Wall-clock duration of a turn from staging to synthesis",
			Buckets: []float64{0.5, 1, 2, 5, 10, 15, 20, 30, 60},
		},
		[]string{"outcome"},
	)

	m.SlowTurnsTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "elile_turn_slow_total",
			Help: "Turns that exceeded the latency budget",
		},
	)

	m.StageFailuresTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "elile_stage_failures_total",
			Help: "Failures per pipeline stage, including absorbed ones",
		},
		[]string{"stage"},
	)

	m.GenerationAttempts = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "elile_generation_attempts_total",
			Help: "Generation attempts by engine and outcome",
		},
		[]string{"engine", "outcome"},
	)

	m.EmotionLabelsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "elile_emotion_labels_total",
			Help: "Detected emotion labels",
		},
		[]string{"label"},
	)

	m.HistoryOpsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "elile_history_operations_total",
			Help: "History store operations",
		},
		[]string{"operation", "status"},
	)

	m.HistoryOpDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "elile_history_operation_duration_seconds",
			Help:    "Duration of history store operations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	m.TempFilesInFlight = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "elile_turn_temp_files_in_flight",
			Help: "Staged audio files not yet removed",
		},
	)

	return m
}

// RecordTurn records the outcome and duration of a turn.
func (m *Metrics) RecordTurn(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.TurnsTotal.WithLabelValues(outcome).Inc()
	m.TurnDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// RecordSlowTurn counts a turn over the latency budget.
func (m *Metrics) RecordSlowTurn() {
	if m == nil {
		return
	}
	m.SlowTurnsTotal.Inc()
}

// RecordStageFailure counts a failed stage.
func (m *Metrics) RecordStageFailure(stage string) {
	if m == nil {
		return
	}
	m.StageFailuresTotal.WithLabelValues(stage).Inc()
}

// RecordGeneration counts one engine attempt.
func (m *Metrics) RecordGeneration(engine string, ok bool) {
	if m == nil {
		return
	}
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	m.GenerationAttempts.WithLabelValues(engine, outcome).Inc()
}

// RecordEmotion counts a detected label.
func (m *Metrics) RecordEmotion(label string) {
	if m == nil {
		return
	}
	m.EmotionLabelsTotal.WithLabelValues(label).Inc()
}

// RecordHistoryOp records a store operation.
func (m *Metrics) RecordHistoryOp(operation string, d time.Duration, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.HistoryOpsTotal.WithLabelValues(operation, status).Inc()
	m.HistoryOpDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// TempFileStaged tracks staged audio files.
func (m *Metrics) TempFileStaged() {
	if m == nil {
		return
	}
	m.TempFilesInFlight.Inc()
}

// TempFileRemoved tracks removal of a staged file.
func (m *Metrics) TempFileRemoved() {
	if m == nil {
		return
	}
	m.TempFilesInFlight.Dec()
}
