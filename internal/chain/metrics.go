package chain

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	readsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "carbon",
		Subsystem: "gateway",
		Name:      "reads_total",
		Help:      "Contract read calls by contract, method and outcome.",
	}, []string{"contract", "method", "outcome"})

	writesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "carbon",
		Subsystem: "gateway",
		Name:      "transactions_total",
		Help:      "Submitted transactions by contract, method and outcome.",
	}, []string{"contract", "method", "outcome"})

	revertsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "carbon",
		Subsystem: "gateway",
		Name:      "preflight_reverts_total",
		Help:      "Writes stopped by a reverting pre-flight call.",
	}, []string{"contract", "method"})
)
