// Package observability provides structured logging, metrics, and
// distributed tracing for slotflow.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger adds slotflow context to a logger.
// Returns a new logger with conversation_key, step_id, and node_id fields.
func EnrichLogger(logger *slog.Logger, key, stepID, nodeID string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("conversation_key", key),
		slog.String("step_id", stepID),
		slog.String("node_id", nodeID),
	)
}

// LogStepStart logs the start of a graph step.
func LogStepStart(logger *slog.Logger, stepID, cursor string) {
	if logger == nil {
		return
	}
	logger.Info("step starting",
		slog.String("step_id", stepID),
		slog.String("cursor", cursor),
	)
}

// LogStepComplete logs successful step completion.
func LogStepComplete(logger *slog.Logger, stepID, cursor string, durationMs float64, nodeCount int) {
	if logger == nil {
		return
	}
	logger.Info("step completed",
		slog.String("step_id", stepID),
		slog.String("cursor", cursor),
		slog.Float64("duration_ms", durationMs),
		slog.Int("nodes_executed", nodeCount),
	)
}

// LogStepError logs step failure.
func LogStepError(logger *slog.Logger, stepID string, err error, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Error("step failed",
		slog.String("step_id", stepID),
		slog.String("error", err.Error()),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogNodeStart logs node execution start.
func LogNodeStart(logger *slog.Logger, nodeID string) {
	if logger == nil {
		return
	}
	logger.Debug("node starting",
		slog.String("node_id", nodeID),
	)
}

// LogNodeComplete logs successful node completion.
func LogNodeComplete(logger *slog.Logger, nodeID string, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("node completed",
		slog.String("node_id", nodeID),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogNodeError logs node execution error.
func LogNodeError(logger *slog.Logger, nodeID string, err error) {
	if logger == nil {
		return
	}
	logger.Error("node failed",
		slog.String("node_id", nodeID),
		slog.String("error", err.Error()),
	)
}

// LogMergeApplied logs a field write through the merge engine.
func LogMergeApplied(logger *slog.Logger, path string, confidence float64, source string) {
	if logger == nil {
		return
	}
	logger.Debug("merge applied",
		slog.String("field", path),
		slog.Float64("confidence", confidence),
		slog.String("source", source),
	)
}

// LogMergeRejected logs a candidate the merge engine refused.
// Merge rejections are silent at the user level; this is the only
// place they surface.
func LogMergeRejected(logger *slog.Logger, path, reason string, confidence float64) {
	if logger == nil {
		return
	}
	logger.Debug("merge rejected",
		slog.String("field", path),
		slog.String("reason", reason),
		slog.Float64("confidence", confidence),
	)
}

// LogTierMiss logs an extraction tier that produced no value.
func LogTierMiss(logger *slog.Logger, path, tier string, err error) {
	if logger == nil {
		return
	}
	attrs := []any{
		slog.String("field", path),
		slog.String("tier", tier),
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	logger.Debug("extraction tier missed", attrs...)
}

// LogExternalRetry logs an external call attempt that will be retried.
func LogExternalRetry(logger *slog.Logger, name string, attempt int, err error) {
	if logger == nil {
		return
	}
	logger.Warn("external call retrying",
		slog.String("call", name),
		slog.Int("attempt", attempt),
		slog.String("error", err.Error()),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in
// milliseconds.
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Milliseconds())
	}
}
