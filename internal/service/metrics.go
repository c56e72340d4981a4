package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeSuccess  = "success"
	outcomeRejected = "rejected"
	outcomeError    = "error"
)

var authOutcomes = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "vidtube_auth_operations_total",
		Help: "Account and session operations by outcome.",
	},
	[]string{"operation", "outcome"},
)

// observe records the outcome of op. AppErrors below 500 count as rejections.
func observe(op string, err error) {
	authOutcomes.WithLabelValues(op, outcomeOf(err)).Inc()
}
