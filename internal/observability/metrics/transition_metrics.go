package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// TransitionMetrics counts registration state transitions.
type TransitionMetrics struct {
	transitions *prometheus.CounterVec
}

// NewTransitionMetrics registers the transition counter on the default registerer.
func NewTransitionMetrics(cfg Config) (*TransitionMetrics, error) {
	return newTransitionMetrics(prometheus.DefaultRegisterer, cfg)
}

func newTransitionMetrics(registerer prometheus.Registerer, cfg Config) (*TransitionMetrics, error) {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "flowmarket_registration_transition_total",
		Help:        "Registration state transitions by source and target status.",
		ConstLabels: constLabels(cfg),
	}, []string{"from", "to", "path"})

	transitions, err := registerCollector(registerer, transitions)
	if err != nil {
		return nil, err
	}
	return &TransitionMetrics{transitions: transitions}, nil
}

// RecordTransition increments the counter for one accepted transition.
func (m *TransitionMetrics) RecordTransition(from, to, path string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(
		strings.TrimSpace(from),
		strings.TrimSpace(to),
		strings.TrimSpace(path),
	).Inc()
}
