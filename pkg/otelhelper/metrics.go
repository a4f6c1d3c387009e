package otelhelper

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the instruments recorded by the dispatcher and the orchestrator.
type Metrics struct {
	Suppressed  metric.Int64Counter
	Executions  metric.Int64Counter
	Actions     metric.Int64Counter
	DeadLetters metric.Int64Counter
	RunDuration metric.Float64Histogram
}

// NewMetrics creates the instruments on the global meter provider. Without a configured
// provider the instruments are no-ops.
func NewMetrics(serviceName string) (*Metrics, error) {
	meter := otel.Meter(serviceName)

	suppressed, err := meter.Int64Counter("recruitflow.workflow.suppressed",
		metric.WithDescription("Matched workflow runs suppressed by gating"))
	if err != nil {
		return nil, err
	}

	executions, err := meter.Int64Counter("recruitflow.workflow.executions",
		metric.WithDescription("Closed workflow executions by status"))
	if err != nil {
		return nil, err
	}

	actions, err := meter.Int64Counter("recruitflow.action.results",
		metric.WithDescription("Action results by type and status"))
	if err != nil {
		return nil, err
	}

	deadLetters, err := meter.Int64Counter("recruitflow.workflow.dead_letters",
		metric.WithDescription("Supervised runs that could not be carried out"))
	if err != nil {
		return nil, err
	}

	runDuration, err := meter.Float64Histogram("recruitflow.workflow.duration",
		metric.WithDescription("Workflow run duration"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		Suppressed:  suppressed,
		Executions:  executions,
		Actions:     actions,
		DeadLetters: deadLetters,
		RunDuration: runDuration,
	}, nil
}
