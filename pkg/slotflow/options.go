package slotflow

import "github.com/rsharan/slotflow/pkg/slotflow/observability"

// stepConfig holds configuration for one graph step.
type stepConfig struct {
	maxNodes       int
	metrics        observability.MetricsRecorder
	spans          observability.SpanManager
	tracingEnabled bool
}

// defaultStepConfig returns the default execution configuration.
func defaultStepConfig() stepConfig {
	return stepConfig{
		maxNodes: 50,
		metrics:  observability.NoopMetrics{},
		spans:    observability.NoopSpanManager{},
	}
}

// StepOption configures execution behavior for StepFrom.
type StepOption func(*stepConfig)

// WithMaxNodes sets the maximum number of node executions per step.
// Default: 50.
//
// A conversation step normally touches a handful of nodes before it
// awaits the next utterance; the limit catches graphs where two nodes
// route to each other without awaiting.
func WithMaxNodes(n int) StepOption {
	return func(c *stepConfig) {
		if n > 0 {
			c.maxNodes = n
		}
	}
}

// WithMetrics sets the metrics recorder for step and node metrics.
// Default: no-op.
func WithMetrics(m observability.MetricsRecorder) StepOption {
	return func(c *stepConfig) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithTracing enables OpenTelemetry spans for the step and each node.
// Default: disabled.
func WithTracing(spans observability.SpanManager) StepOption {
	return func(c *stepConfig) {
		if spans != nil {
			c.spans = spans
			c.tracingEnabled = true
		}
	}
}
