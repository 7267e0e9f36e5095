// Package nodes provides the node constructors a conversation graph is
// assembled from: tiered field extraction, bundle validation, external
// calls, retroactive recovery, and response emission. Every node
// operates on *state.Record and is synchronous; only extraction tiers
// and external backends may block, and both are bounded by timeouts.
package nodes

import (
	"fmt"
	"strings"

	"github.com/rsharan/slotflow/pkg/slotflow"
	"github.com/rsharan/slotflow/pkg/slotflow/extcall"
	"github.com/rsharan/slotflow/pkg/slotflow/extract"
	"github.com/rsharan/slotflow/pkg/slotflow/merge"
	"github.com/rsharan/slotflow/pkg/slotflow/observability"
	"github.com/rsharan/slotflow/pkg/slotflow/state"
	"github.com/rsharan/slotflow/pkg/slotflow/validate"
)

// Node is a graph node over conversation records.
type Node = slotflow.NodeFunc[*state.Record]

// Router picks the next node id for conditional edges.
type Router = slotflow.RouterFunc[*state.Record]

// ExtractField attempts the tiers in order against the current
// utterance and merges the first hit. A tier that errors or finds
// nothing falls through to the next; if every tier misses and the
// field is still empty, the node records an error tag and re-asks with
// the given prompt.
func ExtractField(engine *merge.Engine, path, prompt string, tiers ...extract.Tier) Node {
	return func(ctx slotflow.Context, rec *state.Record) (*state.Record, error) {
		if strings.TrimSpace(rec.Utterance) == "" {
			if !rec.Has(path) {
				rec.Response = prompt
			}
			return rec, nil
		}
		for _, tier := range tiers {
			res, err := tier.Attempt(ctx, rec.History, rec.Utterance)
			if err != nil {
				observability.LogTierMiss(ctx.Logger(), path, tier.Name, err)
				continue
			}
			if res.Empty() {
				observability.LogTierMiss(ctx.Logger(), path, tier.Name, nil)
				continue
			}
			out := engine.Merge(rec, path, merge.Candidate{
				Value:      res.Value,
				Confidence: res.Confidence,
				Source:     tier.Source,
			})
			if out == merge.OutcomeApplied {
				return rec, nil
			}
			if out == merge.OutcomeRejectedConfidence {
				// the field already holds something better; done
				return rec, nil
			}
			// denylisted hit: keep trying lower tiers, one of them
			// may read past the courtesy words
		}
		if !rec.Has(path) {
			rec.AddError("extract:" + path)
			// a correction prompt set earlier in the step outranks
			// the generic re-ask
			if rec.Response == "" {
				rec.Response = prompt
			}
		}
		return rec, nil
	}
}

// Correct overwrites a field from the current utterance using the
// given tiers, marking the result as a user correction so it replaces
// whatever is already stored.
func Correct(engine *merge.Engine, path, prompt string, tiers ...extract.Tier) Node {
	return func(ctx slotflow.Context, rec *state.Record) (*state.Record, error) {
		for _, tier := range tiers {
			res, err := tier.Attempt(ctx, rec.History, rec.Utterance)
			if err != nil || res.Empty() {
				observability.LogTierMiss(ctx.Logger(), path, tier.Name, err)
				continue
			}
			out := engine.Merge(rec, path, merge.Candidate{
				Value:      res.Value,
				Confidence: res.Confidence,
				Source:     state.SourceCorrection,
			})
			if out == merge.OutcomeApplied {
				return rec, nil
			}
		}
		rec.Response = prompt
		return rec, nil
	}
}

// RetroScan replays the recent window over the given specs, filling
// fields earlier turns mentioned but extraction missed.
func RetroScan(scanner *extract.Scanner, specs ...extract.FieldSpec) Node {
	return func(ctx slotflow.Context, rec *state.Record) (*state.Record, error) {
		scanner.Scan(ctx, rec, specs...)
		return rec, nil
	}
}

// ValidateBundle runs the validator over the record's fields under the
// given prefixes. When clearInvalid is set, failing fields are emptied
// so extraction asks for them again; otherwise they are only tagged.
// Either way the first issue's reason becomes the response prompt.
func ValidateBundle(engine *merge.Engine, v validate.Validator, clearInvalid bool, prefixes ...string) Node {
	return func(ctx slotflow.Context, rec *state.Record) (*state.Record, error) {
		res := v.Validate(rec.Fieldset(prefixes...))
		if res.OK() {
			return rec, nil
		}
		for _, issue := range res.Issues {
			rec.AddError("validate:" + issue.Path)
			ctx.Logger().Warn("validation issue",
				"field", issue.Path,
				"reason", issue.Reason)
		}
		if clearInvalid {
			engine.Clear(rec, res.Paths()...)
		}
		rec.Response = fmt.Sprintf("Sorry, that doesn't look right: %s. Could you give it again?", res.Issues[0].Reason)
		return rec, nil
	}
}

// CallExternal invokes the caller with the record's fields under the
// given prefixes and merges the returned map at full confidence. On
// failure the record is tagged and the fallback response emitted;
// fatal callers abort the step instead.
func CallExternal(engine *merge.Engine, caller *extcall.Caller, fatal bool, fallback string, prefixes ...string) Node {
	return func(ctx slotflow.Context, rec *state.Record) (*state.Record, error) {
		out, err := caller.Call(ctx, rec.Fieldset(prefixes...))
		if err != nil {
			rec.AddError("external:" + caller.Name())
			if fatal {
				return rec, err
			}
			rec.Response = fallback
			return rec, nil
		}
		for path, value := range out {
			engine.Merge(rec, path, merge.Candidate{
				Value:      value,
				Confidence: 1.0,
				Source:     state.SourceExternal,
			})
		}
		return rec, nil
	}
}

// Say emits a static response.
func Say(text string) Node {
	return func(_ slotflow.Context, rec *state.Record) (*state.Record, error) {
		rec.Response = text
		return rec, nil
	}
}

// Respond emits a response rendered from the record, for prompts that
// interpolate collected fields.
func Respond(render func(rec *state.Record) string) Node {
	return func(_ slotflow.Context, rec *state.Record) (*state.Record, error) {
		rec.Response = render(rec)
		return rec, nil
	}
}

// Confirm emits a rendered summary and raises the confirmation flag so
// the channel can offer an explicit yes/no affordance.
func Confirm(render func(rec *state.Record) string) Node {
	return func(_ slotflow.Context, rec *state.Record) (*state.Record, error) {
		rec.Response = render(rec)
		rec.ShouldConfirm = true
		return rec, nil
	}
}

// Tag appends an error tag without changing anything else. Useful on
// cancellation paths to record why a conversation ended.
func Tag(tag string) Node {
	return func(_ slotflow.Context, rec *state.Record) (*state.Record, error) {
		rec.AddError(tag)
		return rec, nil
	}
}
