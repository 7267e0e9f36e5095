package slotflow

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/rsharan/slotflow/pkg/slotflow/observability"
)

// StepFrom executes the graph starting at the given cursor node and
// drives it until routing awaits the next utterance or reaches a
// terminal state. It returns the updated state and the new cursor.
//
// Execution flow:
//  1. Start at the cursor node (or the entry point when cursor is "")
//  2. Check for cancellation
//  3. Execute the current node
//  4. Determine the next node (via simple or conditional edge)
//  5. If the next node is Await, stop; the cursor stays on the current
//     node so the next inbound utterance re-enters it
//  6. If the next node is a terminal, stop; the conversation is retired
//  7. Otherwise repeat from 2
//
// On error, the returned state is the state at the point of failure and
// the returned cursor is the cursor the step started from; callers must
// not persist either.
func (cg *CompiledGraph[S]) StepFrom(ctx Context, cursor string, state S, opts ...StepOption) (result S, next string, stepErr error) {
	if ctx == nil {
		return state, cursor, ErrNilContext
	}

	cfg := defaultStepConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if cursor == "" {
		cursor = cg.entryPoint
	}
	if Terminal(cursor) {
		return state, cursor, nil
	}
	if !cg.HasNode(cursor) {
		return state, cursor, fmt.Errorf("%w: %s", ErrCursorNotFound, cursor)
	}

	startTime := time.Now()
	observability.LogStepStart(ctx.Logger(), ctx.StepID(), cursor)

	var execCtx context.Context = ctx
	var stepSpan trace.Span
	if cfg.tracingEnabled {
		execCtx, stepSpan = cfg.spans.StartStepSpan(ctx, ctx.ConversationKey(), ctx.StepID())
		defer func() {
			cfg.spans.EndSpanWithError(stepSpan, stepErr)
		}()
	}

	var nodeCount int
	result, next, nodeCount, stepErr = cg.stepLoop(execCtx, ctx, state, cursor, &cfg)

	duration := time.Since(startTime)
	cfg.metrics.RecordStep(ctx, stepErr == nil, duration)

	if stepErr != nil {
		observability.LogStepError(ctx.Logger(), ctx.StepID(), stepErr, float64(duration.Milliseconds()))
		return result, cursor, stepErr
	}
	observability.LogStepComplete(ctx.Logger(), ctx.StepID(), next, float64(duration.Milliseconds()), nodeCount)
	return result, next, nil
}

// stepLoop runs nodes until an await or terminal target.
// tracingCtx carries span context; sfCtx is the slotflow Context.
func (cg *CompiledGraph[S]) stepLoop(tracingCtx context.Context, sfCtx Context, state S, start string, cfg *stepConfig) (S, string, int, error) {
	current := start
	nodeCount := 0

	for {
		if nodeCount >= cfg.maxNodes {
			return state, current, nodeCount, &StepLimitError{
				Max:        cfg.maxNodes,
				LastNodeID: current,
			}
		}

		// Check for cancellation before executing the node. A node is
		// never left half-applied: either it completes and its merges
		// stand, or the whole step errors and nothing is persisted.
		select {
		case <-sfCtx.Done():
			return state, current, nodeCount, &CancellationError{
				NodeID: current,
				Cause:  sfCtx.Err(),
			}
		default:
		}

		observability.LogNodeStart(sfCtx.Logger(), current)

		nodeTracingCtx := tracingCtx
		var nodeSpan trace.Span
		if cfg.tracingEnabled {
			nodeTracingCtx, nodeSpan = cfg.spans.StartNodeSpan(tracingCtx, current)
		}

		nodeStart := time.Now()

		var nodeErr error
		state, nodeErr = cg.executeNode(sfCtx, current, state)

		nodeDuration := time.Since(nodeStart)
		cfg.metrics.RecordNodeExecution(nodeTracingCtx, current, nodeDuration, nodeErr)

		if cfg.tracingEnabled {
			cfg.spans.EndSpanWithError(nodeSpan, nodeErr)
		}

		if nodeErr != nil {
			observability.LogNodeError(sfCtx.Logger(), current, nodeErr)
			return state, current, nodeCount, nodeErr
		}
		observability.LogNodeComplete(sfCtx.Logger(), current, float64(nodeDuration.Milliseconds()))
		nodeCount++

		next, err := cg.nextNode(sfCtx, state, current)
		if err != nil {
			return state, current, nodeCount, err
		}

		if next == Await {
			// Await the next utterance; the cursor stays here so the
			// same node re-runs when the user answers.
			return state, current, nodeCount, nil
		}
		if Terminal(next) {
			return state, next, nodeCount, nil
		}

		current = next
	}
}

// executeNode executes a single node with panic recovery.
// Returns the new state and any error (including wrapped panics).
func (cg *CompiledGraph[S]) executeNode(ctx Context, nodeID string, state S) (result S, err error) {
	fn, exists := cg.getNode(nodeID)
	if !exists {
		// Shouldn't happen if compilation was successful.
		return state, &NodeError{
			NodeID: nodeID,
			Op:     "lookup",
			Err:    fmt.Errorf("node not found: %s", nodeID),
		}
	}

	nodeCtx := ctx
	if ec, ok := ctx.(*executionContext); ok {
		nodeCtx = ec.withNodeID(nodeID)
	}

	defer func() {
		if r := recover(); r != nil {
			result = state
			err = &PanicError{
				NodeID: nodeID,
				Value:  r,
				Stack:  string(debug.Stack()),
			}
		}
	}()

	result, err = fn(nodeCtx, state)
	if err != nil {
		return result, &NodeError{
			NodeID: nodeID,
			Op:     "execute",
			Err:    err,
		}
	}

	return result, nil
}

// nextNode determines the next node to execute.
// Checks conditional edges first, then simple edges.
//
// A router returning "" and a node with no outgoing edges both resolve
// to Await: progression is driven by data presence, and a dead end
// simply means the conversation needs more input.
func (cg *CompiledGraph[S]) nextNode(ctx Context, state S, current string) (string, error) {
	if router, exists := cg.getRouter(current); exists {
		routerCtx := ctx
		if ec, ok := ctx.(*executionContext); ok {
			routerCtx = ec.withNodeID(current)
		}

		next := router(routerCtx, state)

		if next == "" {
			return Await, nil
		}

		if next != Await && !Terminal(next) {
			if _, exists := cg.getNode(next); !exists {
				return "", &RouterError{
					FromNode: current,
					Returned: next,
					Err:      ErrRouterTargetNotFound,
				}
			}
		}

		return next, nil
	}

	edges := cg.getEdges(current)
	if len(edges) == 0 {
		return Await, nil
	}

	// For simple edges, take the first one.
	return edges[0], nil
}
