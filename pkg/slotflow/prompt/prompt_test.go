package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rsharan/slotflow/pkg/slotflow/state"
)

func promptRecord() *state.Record {
	rec := state.New("wa:+919876543210", "confirm")
	rec.Fields["customer.name"] = state.FieldCell{Value: "Asha Pillai", Confidence: 0.9}
	rec.Fields["appointment.date"] = state.FieldCell{Value: "2026-09-05", Confidence: 0.8}
	rec.Completeness = 0.75
	return rec
}

func TestRenderFields(t *testing.T) {
	r := NewRenderer()
	out, err := r.Render("Booking for ${customer.name} on ${appointment.date}.", promptRecord())
	require.NoError(t, err)
	assert.Equal(t, "Booking for Asha Pillai on 2026-09-05.", out)
}

func TestRenderDerivedVariables(t *testing.T) {
	r := NewRenderer()
	out, err := r.Render("[${_key}] ${_completeness} done", promptRecord())
	require.NoError(t, err)
	assert.Equal(t, "[wa:+919876543210] 75% done", out)
}

func TestRenderMissingActions(t *testing.T) {
	rec := promptRecord()

	out, err := NewRenderer().Render("Hi ${customer.nickname}", rec)
	require.NoError(t, err)
	assert.Equal(t, "Hi ${customer.nickname}", out)

	out, err = NewRenderer(WithMissingAction(MissingEmpty)).Render("Hi ${customer.nickname}!", rec)
	require.NoError(t, err)
	assert.Equal(t, "Hi !", out)

	_, err = NewRenderer(WithMissingAction(MissingError)).Render("Hi ${customer.nickname}", rec)
	var undefined *UndefinedFieldError
	require.ErrorAs(t, err, &undefined)
	assert.Equal(t, []string{"customer.nickname"}, undefined.Paths)
}

func TestFuncDegradesToTemplate(t *testing.T) {
	r := NewRenderer(WithMissingAction(MissingError))
	render := r.Func("Hello ${customer.name}")

	assert.Equal(t, "Hello Asha Pillai", render(promptRecord()))
	assert.Equal(t, "Hello ${customer.name}", render(state.New("k", "n")))
}
