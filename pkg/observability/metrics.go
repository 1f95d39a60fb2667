package observability

import (
	"context"

	"github.com/aretw0/dialogtree/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the collectors fed by engine lifecycle hooks.
type Metrics struct {
	NodeVisits       *prometheus.CounterVec
	GenerateDuration *prometheus.HistogramVec
	GenerateErrors   *prometheus.CounterVec
	InvalidChoices   *prometheus.CounterVec
}

// NewMetrics registers the collectors on reg.
// A nil reg falls back to prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		NodeVisits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dialogtree_node_visits_total",
				Help: "Total number of node visits.",
			},
			[]string{"node_id", "kind"},
		),
		GenerateDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dialogtree_generation_duration_seconds",
				Help:    "Duration of text generation calls.",
				Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"purpose"},
		),
		GenerateErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dialogtree_generation_errors_total",
				Help: "Total number of failed text generation calls.",
			},
			[]string{"purpose"},
		),
		InvalidChoices: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dialogtree_invalid_choices_total",
				Help: "Total number of answers that matched no option.",
			},
			[]string{"node_id"},
		),
	}
}

// Hooks returns lifecycle hooks recording into m.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeEnter: func(_ context.Context, e *domain.NodeEvent) {
			m.NodeVisits.WithLabelValues(e.NodeID, e.NodeKind).Inc()
		},
		OnGenerate: func(_ context.Context, e *domain.GenerateEvent) {
			m.GenerateDuration.WithLabelValues(e.Purpose).Observe(e.Duration.Seconds())
			if e.Err != nil {
				m.GenerateErrors.WithLabelValues(e.Purpose).Inc()
			}
		},
		OnInvalidChoice: func(_ context.Context, e *domain.ChoiceEvent) {
			m.InvalidChoices.WithLabelValues(e.NodeID).Inc()
		},
	}
}
