package slotflow

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// Context provides execution context to nodes.
// It extends context.Context with slotflow-specific metadata.
//
// Context is immutable after creation. The executor creates derived
// contexts for each node with updated NodeID and enriched logger.
// Strategies and backends are bound to nodes at graph construction
// time, not looked up through the context.
type Context interface {
	context.Context

	// Logger returns the configured logger, enriched with conversation
	// and node context. Never returns nil - defaults to slog.Default()
	// if not configured.
	Logger() *slog.Logger

	// ConversationKey returns the stable conversation identifier for
	// this step, or "" when stepping outside a session.
	ConversationKey() string

	// StepID returns the unique identifier for this step execution.
	// Auto-generated if not configured.
	StepID() string

	// NodeID returns the current node being executed.
	// Empty string before execution starts.
	NodeID() string
}

// executionContext is the internal implementation of Context.
type executionContext struct {
	context.Context

	logger *slog.Logger
	key    string
	stepID string
	nodeID string
}

// Logger returns the configured logger.
func (c *executionContext) Logger() *slog.Logger {
	return c.logger
}

// ConversationKey returns the conversation identifier.
func (c *executionContext) ConversationKey() string {
	return c.key
}

// StepID returns the step identifier.
func (c *executionContext) StepID() string {
	return c.stepID
}

// NodeID returns the current node identifier.
func (c *executionContext) NodeID() string {
	return c.nodeID
}

// ContextOption configures a Context.
type ContextOption func(*executionContext)

// WithLogger sets the logger for the context.
// The logger is enriched with conversation_key, step_id, and node_id
// during execution.
func WithLogger(logger *slog.Logger) ContextOption {
	return func(c *executionContext) {
		c.logger = logger
	}
}

// WithConversationKey sets the conversation identifier for the context.
func WithConversationKey(key string) ContextOption {
	return func(c *executionContext) {
		c.key = key
	}
}

// WithStepID sets the step identifier for the context.
// If not set, a UUID is auto-generated.
func WithStepID(id string) ContextOption {
	return func(c *executionContext) {
		c.stepID = id
	}
}

// NewContext creates an execution context from a standard context.
//
// Example:
//
//	ctx := slotflow.NewContext(context.Background(),
//	    slotflow.WithLogger(myLogger),
//	    slotflow.WithConversationKey("wa:+919876543210"))
func NewContext(ctx context.Context, opts ...ContextOption) Context {
	ec := &executionContext{
		Context: ctx,
		logger:  slog.Default(),
		stepID:  uuid.New().String(),
	}

	for _, opt := range opts {
		opt(ec)
	}

	return ec
}

// withNodeID returns a new context with the given node ID set.
// Used internally by the executor to enrich the context per-node.
func (c *executionContext) withNodeID(nodeID string) *executionContext {
	return &executionContext{
		Context: c.Context,
		logger:  c.logger.With("conversation_key", c.key, "step_id", c.stepID, "node_id", nodeID),
		key:     c.key,
		stepID:  c.stepID,
		nodeID:  nodeID,
	}
}
