// Package extract defines the extraction strategy contract and the
// deterministic, model-backed, and retroactive implementations that
// pull structured field values out of conversational text.
package extract

import (
	"context"
	"time"

	"github.com/rsharan/slotflow/pkg/slotflow/state"
)

// Result is the outcome of a single extraction attempt. A zero Result
// means the strategy found nothing; absence of a match is not an error.
type Result struct {
	Value      any
	Confidence float64
}

// Empty reports whether the attempt produced no usable value.
func (r Result) Empty() bool {
	return state.IsEmptyValue(r.Value)
}

// Strategy extracts a single field value from the current utterance,
// optionally informed by recent history. Implementations return a zero
// Result when nothing matches and reserve errors for operational
// failures (transport, timeout), never for "no match".
type Strategy interface {
	Extract(ctx context.Context, history []state.Turn, utterance string) (Result, error)
}

// Func adapts a plain function to the Strategy interface.
type Func func(ctx context.Context, history []state.Turn, utterance string) (Result, error)

// Extract implements Strategy.
func (f Func) Extract(ctx context.Context, history []state.Turn, utterance string) (Result, error) {
	return f(ctx, history, utterance)
}

// Tier binds a strategy into an ordered fallback chain for one field.
// Tiers are attempted in declaration order; the first non-empty result
// wins. Ceiling caps the confidence a tier may claim so that lower
// tiers cannot out-rank higher ones, and Timeout bounds each attempt.
type Tier struct {
	Name     string
	Strategy Strategy
	Source   state.Source
	Ceiling  float64
	Timeout  time.Duration
}

// Attempt runs the tier's strategy with its timeout applied and the
// ceiling enforced on whatever confidence the strategy reports.
func (t Tier) Attempt(ctx context.Context, history []state.Turn, utterance string) (Result, error) {
	if t.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}
	res, err := t.Strategy.Extract(ctx, history, utterance)
	if err != nil {
		return Result{}, err
	}
	if res.Confidence > t.Ceiling && t.Ceiling > 0 {
		res.Confidence = t.Ceiling
	}
	return res, nil
}
