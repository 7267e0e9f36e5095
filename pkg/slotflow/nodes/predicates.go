package nodes

import (
	"strings"

	"github.com/rsharan/slotflow/pkg/slotflow"
	"github.com/rsharan/slotflow/pkg/slotflow/state"
)

// Predicate is a pure, read-only test over a record. Routing decisions
// are made exclusively through predicates so they stay deterministic
// and replayable.
type Predicate func(rec *state.Record) bool

// HasField is true when the field is non-empty, at any confidence.
func HasField(path string) Predicate {
	return func(rec *state.Record) bool {
		return rec.Has(path)
	}
}

// HasConfident is true when the field is non-empty at or above the
// given confidence.
func HasConfident(path string, min float64) Predicate {
	return func(rec *state.Record) bool {
		cell, ok := rec.Field(path)
		return ok && !cell.Empty() && cell.Confidence >= min
	}
}

// CompletenessAtLeast gates on the derived required-field coverage.
func CompletenessAtLeast(threshold float64) Predicate {
	return func(rec *state.Record) bool {
		return rec.Completeness >= threshold
	}
}

// FieldEquals compares the field's string form, case-folded.
func FieldEquals(path, want string) Predicate {
	return func(rec *state.Record) bool {
		return strings.EqualFold(rec.StringValue(path), want)
	}
}

// SaidYes is true when the yes/no field holds an affirmation.
func SaidYes(path string) Predicate {
	return FieldEquals(path, "yes")
}

// SaidNo is true when the yes/no field holds a denial.
func SaidNo(path string) Predicate {
	return FieldEquals(path, "no")
}

// Tagged is true when the record carries the error tag.
func Tagged(tag string) Predicate {
	return func(rec *state.Record) bool {
		return rec.HasError(tag)
	}
}

// Responded is true when a node earlier in this step already set the
// response text, e.g. a correction prompt from a validation node.
// Gates use it to pause for the user's answer instead of routing on.
func Responded(rec *state.Record) bool {
	return rec.Response != ""
}

// Not inverts a predicate.
func Not(p Predicate) Predicate {
	return func(rec *state.Record) bool {
		return !p(rec)
	}
}

// And is true when every predicate is.
func And(ps ...Predicate) Predicate {
	return func(rec *state.Record) bool {
		for _, p := range ps {
			if !p(rec) {
				return false
			}
		}
		return true
	}
}

// Or is true when any predicate is.
func Or(ps ...Predicate) Predicate {
	return func(rec *state.Record) bool {
		for _, p := range ps {
			if p(rec) {
				return true
			}
		}
		return false
	}
}

// RouteIf routes to then when the predicate holds, otherwise to
// otherwise. Pass slotflow.Await (or "") as otherwise to pause for
// more input.
func RouteIf(p Predicate, then, otherwise string) Router {
	return func(_ slotflow.Context, rec *state.Record) string {
		if p(rec) {
			return then
		}
		return otherwise
	}
}

// Case pairs a predicate with a destination for RouteFirst.
type Case struct {
	When Predicate
	To   string
}

// RouteFirst routes to the first matching case, or to fallback when
// none match. An empty fallback pauses the conversation.
func RouteFirst(fallback string, cases ...Case) Router {
	return func(_ slotflow.Context, rec *state.Record) string {
		for _, c := range cases {
			if c.When(rec) {
				return c.To
			}
		}
		return fallback
	}
}
