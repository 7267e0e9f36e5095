package slotflow

// Reserved node identifiers.
//
// Await is an edge target, not a node: routing to it stops the current
// step and leaves the cursor at the node that just ran, so the next
// inbound utterance re-enters the same node. Completed and Cancelled
// are the terminal states; reaching either retires the conversation.
const (
	Await     = "__await__"
	Completed = "completed"
	Cancelled = "cancelled"
)

// Terminal reports whether id is one of the terminal node identifiers.
func Terminal(id string) bool {
	return id == Completed || id == Cancelled
}

// NodeFunc is the signature for all node functions.
// Nodes receive the execution context and current state,
// and return the updated state (or the same state) and any error.
//
// Expected failures (extraction misses, validation rejections, external
// retries exhausted) are recorded on the state, not returned as errors.
// A non-nil error aborts the whole step and skips persistence.
type NodeFunc[S any] func(ctx Context, state S) (S, error)

// RouterFunc determines the next node based on state.
// It is used for conditional edges where the next node depends on
// runtime state.
//
// The router should return a node ID, a terminal identifier, or Await.
// Returning an empty string is treated the same as Await: the step
// stops and the current node re-runs on the next input. Returning an
// unknown node ID is a programming error and fails the step.
type RouterFunc[S any] func(ctx Context, state S) string
