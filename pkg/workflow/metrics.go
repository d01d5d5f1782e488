package workflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Turn outcomes recorded by the turns counter.
const (
	OutcomeGenerated = "generated"
	OutcomeFallback  = "fallback"
	OutcomeError     = "error"
	OutcomeCanceled  = "canceled"
)

// Metrics holds the engine's prometheus collectors.
type Metrics struct {
	Turns            *prometheus.CounterVec
	NodeDuration     *prometheus.HistogramVec
	CapabilityErrors *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Turns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ragchat",
			Subsystem: "workflow",
			Name:      "turns_total",
			Help:      "Workflow turns by routing policy and outcome.",
		}, []string{"policy", "outcome"}),
		NodeDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ragchat",
			Subsystem: "workflow",
			Name:      "node_duration_seconds",
			Help:      "Time spent executing each workflow node.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"node"}),
		CapabilityErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ragchat",
			Subsystem: "workflow",
			Name:      "capability_errors_total",
			Help:      "Failed capability port calls by source.",
		}, []string{"source"}),
	}
}
