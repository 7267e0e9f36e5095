// Package slotflow provides a graph-based conversational slot-filling
// engine: composable extraction, validation, merge, and external-call
// nodes sequenced by a workflow graph executor.
package slotflow

import (
	"errors"
	"fmt"
)

// Sentinel errors for graph building and compilation.
var (
	// ErrNoEntryPoint indicates SetEntry() was not called before Compile().
	ErrNoEntryPoint = errors.New("entry point not set")

	// ErrEntryNotFound indicates the entry point references a non-existent node.
	ErrEntryNotFound = errors.New("entry point node not found")

	// ErrNodeNotFound indicates an edge references a non-existent node.
	ErrNodeNotFound = errors.New("node not found")

	// ErrNoPathToTerminal indicates no path exists from the entry to a terminal state.
	ErrNoPathToTerminal = errors.New("no path to a terminal state from entry")
)

// Sentinel errors for execution.
var (
	// ErrStepLimit indicates a single step executed more nodes than allowed.
	ErrStepLimit = errors.New("exceeded node limit for one step")

	// ErrNilContext indicates Step was called with a nil context.
	ErrNilContext = errors.New("context cannot be nil")

	// ErrRouterTargetNotFound indicates a router function returned an unknown node ID.
	ErrRouterTargetNotFound = errors.New("router returned unknown node")

	// ErrCursorNotFound indicates a record's cursor references a node
	// that no longer exists in the graph.
	ErrCursorNotFound = errors.New("cursor references unknown node")
)

// NodeError wraps an error with node context.
type NodeError struct {
	// NodeID is the identifier of the node that failed.
	NodeID string
	// Op is the operation that failed (e.g., "execute").
	Op string
	// Err is the underlying error from the node.
	Err error
}

// Error implements the error interface.
func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s: %s: %v", e.NodeID, e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *NodeError) Unwrap() error {
	return e.Err
}

// PanicError captures panic information from node execution.
// It includes the stack trace for debugging.
type PanicError struct {
	// NodeID is the identifier of the node that panicked.
	NodeID string
	// Value is the value passed to panic().
	Value any
	// Stack is the full stack trace at the point of panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("node %s panicked: %v", e.NodeID, e.Value)
}

// CancellationError captures where execution was cancelled.
// The state at the point of cancellation is never persisted.
type CancellationError struct {
	// NodeID is the node that was about to execute.
	NodeID string
	// Cause is the underlying cancellation cause.
	Cause error
}

// Error implements the error interface.
func (e *CancellationError) Error() string {
	return fmt.Sprintf("cancelled before node %s: %v", e.NodeID, e.Cause)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *CancellationError) Unwrap() error {
	return e.Cause
}

// RouterError wraps errors from conditional edge routing.
type RouterError struct {
	// FromNode is the node with the conditional edge.
	FromNode string
	// Returned is the value the router returned.
	Returned string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *RouterError) Error() string {
	return fmt.Sprintf("router from %s returned %q: %v", e.FromNode, e.Returned, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *RouterError) Unwrap() error {
	return e.Err
}

// StepLimitError provides context when the per-step node limit is hit,
// which almost always means two nodes route to each other without an
// Await in between.
type StepLimitError struct {
	// Max is the configured per-step node limit.
	Max int
	// LastNodeID is the node that would have executed next.
	LastNodeID string
}

// Error implements the error interface.
func (e *StepLimitError) Error() string {
	return fmt.Sprintf("exceeded node limit for one step (%d) at node %s", e.Max, e.LastNodeID)
}

// Unwrap returns ErrStepLimit for errors.Is support.
func (e *StepLimitError) Unwrap() error {
	return ErrStepLimit
}
