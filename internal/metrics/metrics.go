// Package metrics exposes prometheus counters for learner activity.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/yachay/pkg/models"
)

const namespace = "yachay"

// Metrics holds the service counters. It implements mastery.Observer.
type Metrics struct {
	Outcomes      *prometheus.CounterVec
	Degradations  *prometheus.CounterVec
	Abandonments  *prometheus.CounterVec
	WordsMastered *prometheus.CounterVec
	Detections    *prometheus.CounterVec
	SessionsEnded *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New registers the counters with reg. Passing nil uses the default registry.
func New(reg prometheus.Registerer) *Metrics {
	var gatherer prometheus.Gatherer = prometheus.DefaultGatherer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	} else if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}
	f := promauto.With(reg)

	return &Metrics{
		Outcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mastery",
			Name:      "outcomes_total",
			Help:      "Exercise outcomes by mode and correctness",
		}, []string{"mode", "correct"}),
		Degradations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mastery",
			Name:      "degradations_total",
			Help:      "Star losses by mode and reason",
		}, []string{"mode", "reason"}),
		Abandonments: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mastery",
			Name:      "abandonments_total",
			Help:      "Penalized abandonments by mode and whether a star was lost",
		}, []string{"mode", "degraded"}),
		WordsMastered: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mastery",
			Name:      "words_mastered_total",
			Help:      "Words reaching five stars for the first time",
		}, []string{"mode"}),
		Detections: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "detection",
			Name:      "requests_total",
			Help:      "Image detections by result",
		}, []string{"result"}),
		SessionsEnded: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "ended_total",
			Help:      "Exercise sessions by mode and final status",
		}, []string{"mode", "status"}),
		gatherer: gatherer,
	}
}

// Handler serves the registry in the prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) OutcomeRecorded(mode models.Mode, correct bool) {
	m.Outcomes.WithLabelValues(mode.String(), strconv.FormatBool(correct)).Inc()
}

func (m *Metrics) Degraded(mode models.Mode, reason string) {
	m.Degradations.WithLabelValues(mode.String(), reason).Inc()
}

func (m *Metrics) Abandoned(mode models.Mode, degraded bool) {
	m.Abandonments.WithLabelValues(mode.String(), strconv.FormatBool(degraded)).Inc()
}

func (m *Metrics) Mastered(mode models.Mode) {
	m.WordsMastered.WithLabelValues(mode.String()).Inc()
}

// DetectionFinished counts one detection request. result is one of
// "added", "seen", "untranslated" or "error".
func (m *Metrics) DetectionFinished(result string) {
	m.Detections.WithLabelValues(result).Inc()
}

// SessionEnded counts a session reaching a final status
func (m *Metrics) SessionEnded(mode models.Mode, status models.SessionStatus) {
	m.SessionsEnded.WithLabelValues(mode.String(), string(status)).Inc()
}
