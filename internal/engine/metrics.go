package engine

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/cascadehq/cascade/internal/model"
)

// Metric label values for action outcomes.
const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"
)

var (
	executionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cascade_executions_total",
			Help: "Total number of workflow executions reaching a terminal status.",
		},
		[]string{"status"},
	)

	actionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cascade_actions_total",
			Help: "Total number of dispatched workflow actions.",
		},
		[]string{"type", "outcome"},
	)

	actionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cascade_action_duration_seconds",
			Help:    "Workflow action execution time in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"type"},
	)

	executionRounds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cascade_execution_rounds",
			Help:    "Number of scheduling rounds per execution.",
			Buckets: []float64{1, 2, 3, 5, 8, 13, 21},
		},
	)
)

func init() {
	prometheus.MustRegister(executionsTotal)
	prometheus.MustRegister(actionsTotal)
	prometheus.MustRegister(actionDuration)
	prometheus.MustRegister(executionRounds)

	// Pre-initialize counter label combinations so they appear in /metrics
	// with value 0 from startup, rather than only after first observation.
	for _, status := range []string{model.StatusCompleted, model.StatusFailed, model.StatusCancelled} {
		executionsTotal.WithLabelValues(status)
	}
	for _, at := range model.ActionTypes() {
		actionsTotal.WithLabelValues(at, outcomeSuccess)
		actionsTotal.WithLabelValues(at, outcomeFailure)
	}
}
