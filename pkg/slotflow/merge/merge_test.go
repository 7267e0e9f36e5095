package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rsharan/slotflow/pkg/slotflow/state"
)

const nameField = "customer.first_name"

func newTestEngine(opts ...Option) *Engine {
	base := []Option{
		WithDenylist("person_name", NewDenylist("hello", "shukriya", "mahindra", "scorpio")),
		WithFieldCategory(nameField, "person_name"),
		WithRequired(nameField, "customer.phone"),
	}
	return NewEngine(append(base, opts...)...)
}

func TestMerge_EmptyCandidateIsNoOp(t *testing.T) {
	eng := newTestEngine()
	rec := state.New("c1", "entry")

	for _, v := range []any{nil, "", "   "} {
		outcome := eng.Merge(rec, nameField, Candidate{Value: v, Confidence: 0.9, Source: state.SourcePrimary})
		assert.Equal(t, OutcomeRejectedEmpty, outcome)
	}
	assert.Empty(t, rec.Fields)
}

func TestMerge_WritesIntoEmptyField(t *testing.T) {
	eng := newTestEngine()
	rec := state.New("c1", "entry")
	rec.AppendTurn(state.SpeakerUser, "I'm Sneha Reddy")

	outcome := eng.Merge(rec, nameField, Candidate{Value: "Sneha", Confidence: 0.9, Source: state.SourcePrimary})

	require.Equal(t, OutcomeApplied, outcome)
	cell := rec.Fields[nameField]
	assert.Equal(t, "Sneha", cell.Value)
	assert.Equal(t, 0.9, cell.Confidence)
	assert.Equal(t, state.SourcePrimary, cell.Source)
	assert.Equal(t, 1, cell.Turn)
	assert.InDelta(t, 0.5, rec.Completeness, 1e-9)
}

// Scenario: "I'm Sneha Reddy" at 0.9, then "Shukriya" misextracted as a
// name at 0.6. The earlier, better extraction must survive.
func TestMerge_LowerConfidenceNeverOverwrites(t *testing.T) {
	eng := newTestEngine()
	rec := state.New("c1", "entry")

	require.Equal(t, OutcomeApplied,
		eng.Merge(rec, nameField, Candidate{Value: "Sneha", Confidence: 0.9, Source: state.SourcePrimary}))

	outcome := eng.Merge(rec, nameField, Candidate{Value: "Anil", Confidence: 0.6, Source: state.SourcePrimary})

	assert.Equal(t, OutcomeRejectedConfidence, outcome)
	assert.Equal(t, "Sneha", rec.Fields[nameField].Value)
	assert.Equal(t, 0.9, rec.Fields[nameField].Confidence)
}

func TestMerge_EqualConfidenceRejected(t *testing.T) {
	eng := newTestEngine()
	rec := state.New("c1", "entry")

	eng.Merge(rec, nameField, Candidate{Value: "Sneha", Confidence: 0.8, Source: state.SourcePrimary})
	outcome := eng.Merge(rec, nameField, Candidate{Value: "Anil", Confidence: 0.8, Source: state.SourcePrimary})

	assert.Equal(t, OutcomeRejectedConfidence, outcome)
	assert.Equal(t, "Sneha", rec.Fields[nameField].Value)
}

func TestMerge_UserCorrectionAlwaysWins(t *testing.T) {
	eng := newTestEngine()
	rec := state.New("c1", "entry")

	eng.Merge(rec, nameField, Candidate{Value: "Sneha", Confidence: 0.95, Source: state.SourcePrimary})
	outcome := eng.Merge(rec, nameField, Candidate{Value: "Snehal", Confidence: 0.5, Source: state.SourceCorrection})

	require.Equal(t, OutcomeApplied, outcome)
	assert.Equal(t, "Snehal", rec.Fields[nameField].Value)
	assert.Equal(t, state.SourceCorrection, rec.Fields[nameField].Source)
}

// Scenario: "Mahindra Scorpio" while collecting a name. The brand token
// must never land in the person-name field, regardless of confidence.
func TestMerge_DenylistRejectsRegardlessOfConfidence(t *testing.T) {
	eng := newTestEngine()
	rec := state.New("c1", "entry")

	for _, v := range []string{"Mahindra", "mahindra scorpio", "Shukriya", "Hello"} {
		outcome := eng.Merge(rec, nameField, Candidate{Value: v, Confidence: 1.0, Source: state.SourcePrimary})
		assert.Equal(t, OutcomeRejectedDenylist, outcome, "value %q", v)
	}
	assert.Empty(t, rec.Fields)
}

func TestMerge_DenylistFuzzyMatch(t *testing.T) {
	eng := newTestEngine(WithFuzzyThreshold(0.93))
	rec := state.New("c1", "entry")

	// Transliterated chat spelling of a denylisted courtesy token.
	outcome := eng.Merge(rec, nameField, Candidate{Value: "Shukria", Confidence: 0.9, Source: state.SourcePrimary})

	assert.Equal(t, OutcomeRejectedDenylist, outcome)
}

func TestMerge_DenylistOnlyAppliesToCategorizedPaths(t *testing.T) {
	eng := newTestEngine()
	rec := state.New("c1", "entry")

	// "Mahindra" is a perfectly good value for a vehicle field.
	outcome := eng.Merge(rec, "vehicle.make", Candidate{Value: "Mahindra", Confidence: 0.8, Source: state.SourcePrimary})

	assert.Equal(t, OutcomeApplied, outcome)
	assert.Equal(t, "Mahindra", rec.Fields["vehicle.make"].Value)
}

// Confidence monotonicity: for any candidate sequence without
// corrections, stored confidence never decreases.
func TestMerge_ConfidenceMonotonic(t *testing.T) {
	eng := newTestEngine()
	rec := state.New("c1", "entry")

	sequence := []float64{0.4, 0.2, 0.7, 0.7, 0.5, 0.9, 0.1}
	prev := 0.0
	for _, conf := range sequence {
		eng.Merge(rec, nameField, Candidate{Value: "Sneha", Confidence: conf, Source: state.SourceFallback})
		got := rec.Fields[nameField].Confidence
		assert.GreaterOrEqual(t, got, prev)
		prev = got
	}
	assert.Equal(t, 0.9, prev)
}

// Once a field is at or above the trusted threshold, no lower-confidence
// non-correction candidate can alter it, however many turns pass.
func TestMerge_TrustedFieldSurvivesNoise(t *testing.T) {
	eng := newTestEngine()
	rec := state.New("c1", "entry")

	eng.Merge(rec, nameField, Candidate{Value: "Sneha", Confidence: 0.85, Source: state.SourcePrimary})

	for i := 0; i < 20; i++ {
		rec.AppendTurn(state.SpeakerUser, "noise")
		eng.Merge(rec, nameField, Candidate{Value: "Wrong", Confidence: 0.84, Source: state.SourceRetroactive})
	}

	assert.Equal(t, "Sneha", rec.Fields[nameField].Value)
}

func TestClear_RemovesAndRecomputes(t *testing.T) {
	eng := newTestEngine()
	rec := state.New("c1", "entry")

	eng.Merge(rec, nameField, Candidate{Value: "Sneha", Confidence: 0.9, Source: state.SourcePrimary})
	eng.Merge(rec, "customer.phone", Candidate{Value: "9876543210", Confidence: 0.7, Source: state.SourceFallback})
	require.InDelta(t, 1.0, rec.Completeness, 1e-9)

	eng.Clear(rec, "customer.phone")

	_, ok := rec.Fields["customer.phone"]
	assert.False(t, ok)
	assert.InDelta(t, 0.5, rec.Completeness, 1e-9)
}

func TestMerge_CompletenessUsesMinConfidence(t *testing.T) {
	eng := newTestEngine(WithMinConfidence(0.75))
	rec := state.New("c1", "entry")

	eng.Merge(rec, nameField, Candidate{Value: "Sneha", Confidence: 0.9, Source: state.SourcePrimary})
	eng.Merge(rec, "customer.phone", Candidate{Value: "9876543210", Confidence: 0.6, Source: state.SourceFallback})

	// Phone is present but below the confidence floor.
	assert.InDelta(t, 0.5, rec.Completeness, 1e-9)
}
