package state

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendTurn_CountsAcrossTrims(t *testing.T) {
	r := New("c1", "entry")

	for i := 0; i < 10; i++ {
		r.AppendTurn(SpeakerUser, "hello")
		r.TrimHistory(4)
	}

	assert.Equal(t, 10, r.TurnCount)
	assert.Len(t, r.History, 4)
}

func TestTrimHistory_KeepsMostRecent(t *testing.T) {
	r := New("c1", "entry")
	r.AppendTurn(SpeakerUser, "one")
	r.AppendTurn(SpeakerBot, "two")
	r.AppendTurn(SpeakerUser, "three")

	r.TrimHistory(2)

	require.Len(t, r.History, 2)
	assert.Equal(t, "two", r.History[0].Text)
	assert.Equal(t, "three", r.History[1].Text)
}

func TestTrimHistory_Disabled(t *testing.T) {
	r := New("c1", "entry")
	r.AppendTurn(SpeakerUser, "one")
	r.TrimHistory(0)
	assert.Len(t, r.History, 1)
}

func TestHas_EmptyValues(t *testing.T) {
	r := New("c1", "entry")
	r.Fields["customer.first_name"] = FieldCell{Value: "  ", Confidence: 0.9}
	r.Fields["customer.phone"] = FieldCell{Value: "9876543210", Confidence: 0.7}

	assert.False(t, r.Has("customer.first_name"))
	assert.True(t, r.Has("customer.phone"))
	assert.False(t, r.Has("vehicle.make"))
}

func TestBundle_CollectsByPrefix(t *testing.T) {
	r := New("c1", "entry")
	r.Fields["customer.first_name"] = FieldCell{Value: "Sneha", Confidence: 0.9}
	r.Fields["customer.phone"] = FieldCell{Value: "9876543210", Confidence: 0.7}
	r.Fields["vehicle.make"] = FieldCell{Value: "Mahindra", Confidence: 0.8}

	bundle := r.Bundle("customer")

	assert.Equal(t, map[string]any{
		"first_name": "Sneha",
		"phone":      "9876543210",
	}, bundle)
}

func TestRecentUserText_OrderAndFilter(t *testing.T) {
	r := New("c1", "entry")
	r.AppendTurn(SpeakerUser, "hi")
	r.AppendTurn(SpeakerBot, "hello, what is your name?")
	r.AppendTurn(SpeakerUser, "Aman here")
	r.AppendTurn(SpeakerBot, "thanks")
	r.AppendTurn(SpeakerUser, "book for tomorrow")

	texts := r.RecentUserText(2)

	assert.Equal(t, []string{"Aman here", "book for tomorrow"}, texts)
}

func TestCompleteness(t *testing.T) {
	fields := map[string]FieldCell{
		"customer.first_name": {Value: "Sneha", Confidence: 0.9},
		"customer.phone":      {Value: "9876543210", Confidence: 0.3},
	}
	required := []string{"customer.first_name", "customer.phone", "vehicle.make", "appointment.date"}

	assert.InDelta(t, 0.5, Completeness(fields, required, 0), 1e-9)
	assert.InDelta(t, 0.25, Completeness(fields, required, 0.5), 1e-9)
	assert.Zero(t, Completeness(fields, nil, 0))
}

func TestSnapshot_Detached(t *testing.T) {
	r := New("c1", "entry")
	r.Fields["customer.first_name"] = FieldCell{Value: "Sneha", Confidence: 0.9}
	r.AddError("extract:customer.phone")

	snap := r.Snapshot()
	snap.Fields["customer.first_name"] = FieldCell{Value: "corrupted"}
	snap.Errors[0] = "changed"

	assert.Equal(t, "Sneha", r.Fields["customer.first_name"].Value)
	assert.Equal(t, "extract:customer.phone", r.Errors[0])
}

func TestRecord_JSONRoundTrip(t *testing.T) {
	r := New("c1", "greet")
	r.AppendTurn(SpeakerUser, "I'm Sneha")
	r.Fields["customer.first_name"] = FieldCell{Value: "Sneha", Confidence: 0.9, Source: SourcePrimary, Turn: 1}
	r.Completeness = 0.25

	data, err := json.Marshal(r)
	require.NoError(t, err)

	var back Record
	require.NoError(t, json.Unmarshal(data, &back))

	assert.Equal(t, r.Key, back.Key)
	assert.Equal(t, r.TurnCount, back.TurnCount)
	assert.Equal(t, "Sneha", back.Fields["customer.first_name"].Value)
	assert.Equal(t, SourcePrimary, back.Fields["customer.first_name"].Source)
}
