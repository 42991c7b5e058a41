package workflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "carbon_workflow_runs_total",
		Help: "Workflow runs by outcome.",
	}, []string{"workflow", "outcome"})

	stepFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "carbon_workflow_step_failures_total",
		Help: "Failed workflow steps by label.",
	}, []string{"workflow", "label"})
)
