// Package merge implements the confidence merge engine: the single
// authorized write path into a record's field map.
//
// Centralizing writes here is what keeps low-confidence noise from
// overwriting a previously good extraction. Nodes and scanners propose
// candidates; only the engine decides whether they land.
package merge

import (
	"fmt"
	"log/slog"

	"github.com/rsharan/slotflow/pkg/slotflow/observability"
	"github.com/rsharan/slotflow/pkg/slotflow/state"
)

// Candidate is a proposed value for a field.
type Candidate struct {
	Value      any
	Confidence float64
	Source     state.Source
}

// Outcome describes what the engine did with a candidate.
type Outcome string

// Merge outcomes.
const (
	OutcomeApplied            Outcome = "applied"
	OutcomeRejectedEmpty      Outcome = "rejected_empty"
	OutcomeRejectedDenylist   Outcome = "rejected_denylist"
	OutcomeRejectedConfidence Outcome = "rejected_confidence"
)

// Engine applies candidates to records under the merge invariants:
// empty candidates are no-ops, denylisted values are never written,
// and an existing cell is replaced only by strictly higher confidence
// or an explicit user correction.
//
// Engine is safe for concurrent use across records; per-record
// serialization is the caller's responsibility.
type Engine struct {
	denylists  map[string]*Denylist // category -> list
	categories map[string]string    // field path -> category
	required   []string
	minConf    float64 // confidence floor for a field to count toward completeness
	fuzz       float64 // Jaro-Winkler threshold for denylist matching, 0 = exact only
	logger     *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithDenylist registers a denylist for a field category.
func WithDenylist(category string, list *Denylist) Option {
	return func(e *Engine) {
		e.denylists[category] = list
	}
}

// WithFieldCategory maps a field path onto a denylist category.
// Paths without a category skip denylist checks.
func WithFieldCategory(path, category string) Option {
	return func(e *Engine) {
		e.categories[path] = category
	}
}

// WithRequired declares the required-field set completeness is
// computed from.
func WithRequired(paths ...string) Option {
	return func(e *Engine) {
		e.required = append([]string(nil), paths...)
	}
}

// WithMinConfidence sets the confidence floor for completeness.
// Default 0: any non-empty value counts.
func WithMinConfidence(c float64) Option {
	return func(e *Engine) {
		e.minConf = c
	}
}

// WithFuzzyThreshold enables fuzzy denylist matching at the given
// Jaro-Winkler similarity (0.9-0.95 works well for chat spellings).
func WithFuzzyThreshold(t float64) Option {
	return func(e *Engine) {
		e.fuzz = t
	}
}

// WithLogger sets the logger for merge decisions.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// NewEngine creates a merge engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		denylists:  make(map[string]*Denylist),
		categories: make(map[string]string),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Required returns the declared required-field set.
func (e *Engine) Required() []string {
	return append([]string(nil), e.required...)
}

// Merge applies a candidate to the field at path.
//
// Decision order:
//  1. Empty candidate value: no-op.
//  2. Denylist hit for the path's category: reject and log, no-op.
//  3. Confidence not strictly greater than the stored cell's (missing
//     cell counts as 0) and source is not user-correction: reject.
//  4. Otherwise write, stamping the current turn count and source.
//
// Completeness is recomputed after every outcome that touched fields.
func (e *Engine) Merge(rec *state.Record, path string, cand Candidate) Outcome {
	if state.IsEmptyValue(cand.Value) {
		return OutcomeRejectedEmpty
	}

	if s, ok := cand.Value.(string); ok {
		if entry, hit := e.denied(path, s); hit {
			observability.LogMergeRejected(e.logger, path,
				fmt.Sprintf("denylist:%s", entry), cand.Confidence)
			return OutcomeRejectedDenylist
		}
	}

	existing := rec.Fields[path] // zero cell when missing, confidence 0
	if cand.Source != state.SourceCorrection && cand.Confidence <= existing.Confidence {
		observability.LogMergeRejected(e.logger, path, "lower_confidence", cand.Confidence)
		return OutcomeRejectedConfidence
	}

	rec.Fields[path] = state.FieldCell{
		Value:      cand.Value,
		Confidence: cand.Confidence,
		Source:     cand.Source,
		Turn:       rec.TurnCount,
	}
	e.Recompute(rec)
	observability.LogMergeApplied(e.logger, path, cand.Confidence, string(cand.Source))
	return OutcomeApplied
}

// Clear removes the cells at the given paths, so extraction can retry
// them. Validation nodes use this; nothing else should.
func (e *Engine) Clear(rec *state.Record, paths ...string) {
	for _, p := range paths {
		delete(rec.Fields, p)
	}
	e.Recompute(rec)
}

// Recompute refreshes the record's derived completeness from its
// fields and the engine's required set.
func (e *Engine) Recompute(rec *state.Record) {
	rec.Completeness = state.Completeness(rec.Fields, e.required, e.minConf)
}

// Denied reports whether a string value would be rejected by the
// denylist configured for path's category. The retroactive scanner
// uses this to pre-screen window matches before proposing them.
func (e *Engine) Denied(path, value string) bool {
	_, hit := e.denied(path, value)
	return hit
}

func (e *Engine) denied(path, value string) (string, bool) {
	category, ok := e.categories[path]
	if !ok {
		return "", false
	}
	list, ok := e.denylists[category]
	if !ok {
		return "", false
	}
	return list.Matches(value, e.fuzz)
}
