package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	tasksExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "foreman_tasks_executed_total",
		Help: "Tasks processed by the workflow engine, by final status.",
	}, []string{"status"})

	validationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "foreman_validation_failures_total",
		Help: "Artifacts rejected by the quality gate.",
	})

	workflowsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "foreman_workflows_completed_total",
		Help: "Workflows whose tasks all completed.",
	})
)
