// Package metrics exposes prometheus counters for LeadSim internals.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Classifier outcome label values.
const (
	OutcomeAI           = "ai"
	OutcomeFallback     = "fallback"
	OutcomeRules        = "rules"
	OutcomeShortCircuit = "short_circuit"
)

var (
	// ClassifierRequests counts free-text classifications by outcome path.
	ClassifierRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadsim_classifier_requests_total",
			Help: "Free-text classification requests by outcome path.",
		},
		[]string{"outcome"},
	)

	// Transitions counts applied state transitions by workflow.
	Transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadsim_transitions_total",
			Help: "Applied conversation state transitions by workflow.",
		},
		[]string{"workflow"},
	)

	// SessionResets counts full session resets (explicit or via workflow change).
	SessionResets = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "leadsim_session_resets_total",
			Help: "Full session resets.",
		},
	)
)

func init() {
	prometheus.MustRegister(ClassifierRequests, Transitions, SessionResets)
}
