package slotflow

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rsharan/slotflow/pkg/slotflow/observability"
)

// recordingMetrics captures recorder calls for assertions.
type recordingMetrics struct {
	mu    sync.Mutex
	nodes []string
	steps int
}

var _ observability.MetricsRecorder = (*recordingMetrics)(nil)

func (r *recordingMetrics) RecordNodeExecution(_ context.Context, nodeID string, _ time.Duration, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nodes = append(r.nodes, nodeID)
}

func (r *recordingMetrics) RecordStep(_ context.Context, _ bool, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps++
}

func (r *recordingMetrics) RecordMerge(_ context.Context, _ string, _ string)      {}
func (r *recordingMetrics) RecordTierAttempt(_ context.Context, _ string, _ bool)  {}
func (r *recordingMetrics) RecordExternalCall(_ context.Context, _ string, _ int, _ error) {}

func TestWithMaxNodes_IgnoresNonPositive(t *testing.T) {
	cfg := defaultStepConfig()
	WithMaxNodes(0)(&cfg)
	assert.Equal(t, 50, cfg.maxNodes)
	WithMaxNodes(-3)(&cfg)
	assert.Equal(t, 50, cfg.maxNodes)
	WithMaxNodes(7)(&cfg)
	assert.Equal(t, 7, cfg.maxNodes)
}

func TestWithMetrics_RecordsStepAndNodes(t *testing.T) {
	compiled, err := linearGraph().Compile()
	require.NoError(t, err)

	rec := &recordingMetrics{}
	_, _, err = compiled.StepFrom(testCtx(), "", Counter{}, WithMetrics(rec))
	require.NoError(t, err)

	assert.Equal(t, 1, rec.steps)
	assert.Equal(t, []string{"inc1", "inc2", "inc3"}, rec.nodes)
}

func TestWithMetrics_NilKeepsNoop(t *testing.T) {
	cfg := defaultStepConfig()
	WithMetrics(nil)(&cfg)
	assert.NotNil(t, cfg.metrics)
}

func TestWithTracing_EnablesSpans(t *testing.T) {
	cfg := defaultStepConfig()
	assert.False(t, cfg.tracingEnabled)

	WithTracing(observability.NoopSpanManager{})(&cfg)
	assert.True(t, cfg.tracingEnabled)

	// the whole step still runs with spans on
	compiled, err := linearGraph().Compile()
	require.NoError(t, err)

	result, next, err := compiled.StepFrom(testCtx(), "", Counter{},
		WithTracing(observability.NoopSpanManager{}))
	require.NoError(t, err)
	assert.Equal(t, Completed, next)
	assert.Equal(t, 3, result.Value)
}
