package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records slotflow metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordNodeExecution records a node execution with its duration and error status.
	RecordNodeExecution(ctx context.Context, nodeID string, duration time.Duration, err error)

	// RecordStep records a conversation step completion.
	RecordStep(ctx context.Context, success bool, duration time.Duration)

	// RecordMerge records a merge engine decision for a field.
	RecordMerge(ctx context.Context, path string, outcome string)

	// RecordTierAttempt records one extraction tier attempt.
	RecordTierAttempt(ctx context.Context, tier string, hit bool)

	// RecordExternalCall records an external call with its attempt count.
	RecordExternalCall(ctx context.Context, name string, attempts int, err error)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	nodeExecutions metric.Int64Counter
	nodeLatency    metric.Float64Histogram
	nodeErrors     metric.Int64Counter
	steps          metric.Int64Counter
	stepLatency    metric.Float64Histogram
	merges         metric.Int64Counter
	tierAttempts   metric.Int64Counter
	externalCalls  metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics returns the default OTel metrics instance.
// Lazily initializes the metrics on first call.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

// newOtelMetrics creates a new OTel metrics instance.
func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("slotflow")

	nodeExecutions, err := meter.Int64Counter("slotflow.node.executions",
		metric.WithDescription("Number of node executions"),
	)
	if err != nil {
		return nil, err
	}

	nodeLatency, err := meter.Float64Histogram("slotflow.node.latency_ms",
		metric.WithDescription("Node execution latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	nodeErrors, err := meter.Int64Counter("slotflow.node.errors",
		metric.WithDescription("Number of node execution errors"),
	)
	if err != nil {
		return nil, err
	}

	steps, err := meter.Int64Counter("slotflow.steps",
		metric.WithDescription("Number of conversation steps"),
	)
	if err != nil {
		return nil, err
	}

	stepLatency, err := meter.Float64Histogram("slotflow.step.latency_ms",
		metric.WithDescription("Conversation step latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	merges, err := meter.Int64Counter("slotflow.merge.decisions",
		metric.WithDescription("Merge engine decisions by outcome"),
	)
	if err != nil {
		return nil, err
	}

	tierAttempts, err := meter.Int64Counter("slotflow.extract.tier_attempts",
		metric.WithDescription("Extraction tier attempts by hit/miss"),
	)
	if err != nil {
		return nil, err
	}

	externalCalls, err := meter.Int64Counter("slotflow.external.calls",
		metric.WithDescription("External calls by outcome"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		nodeExecutions: nodeExecutions,
		nodeLatency:    nodeLatency,
		nodeErrors:     nodeErrors,
		steps:          steps,
		stepLatency:    stepLatency,
		merges:         merges,
		tierAttempts:   tierAttempts,
		externalCalls:  externalCalls,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the
// provider before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordNodeExecution records a node execution.
func (m *otelMetrics) RecordNodeExecution(ctx context.Context, nodeID string, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("node_id", nodeID),
	}

	m.nodeExecutions.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.nodeLatency.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))

	if err != nil {
		m.nodeErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// RecordStep records a conversation step.
func (m *otelMetrics) RecordStep(ctx context.Context, success bool, duration time.Duration) {
	attrs := []attribute.KeyValue{
		attribute.Bool("success", success),
	}
	m.steps.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.stepLatency.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
}

// RecordMerge records a merge decision.
func (m *otelMetrics) RecordMerge(ctx context.Context, path string, outcome string) {
	m.merges.Add(ctx, 1, metric.WithAttributes(
		attribute.String("field", path),
		attribute.String("outcome", outcome),
	))
}

// RecordTierAttempt records an extraction tier attempt.
func (m *otelMetrics) RecordTierAttempt(ctx context.Context, tier string, hit bool) {
	m.tierAttempts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tier", tier),
		attribute.Bool("hit", hit),
	))
}

// RecordExternalCall records an external call outcome.
func (m *otelMetrics) RecordExternalCall(ctx context.Context, name string, attempts int, err error) {
	m.externalCalls.Add(ctx, 1, metric.WithAttributes(
		attribute.String("call", name),
		attribute.Int("attempts", attempts),
		attribute.Bool("success", err == nil),
	))
}
