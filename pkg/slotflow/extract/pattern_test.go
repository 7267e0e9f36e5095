package extract

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rsharan/slotflow/pkg/slotflow/state"
)

func TestPhone(t *testing.T) {
	s := Phone()

	tests := []struct {
		name      string
		utterance string
		want      string
	}{
		{"bare ten digits", "9876543210", "9876543210"},
		{"with country code", "call me on +91 98765 43210", "9876543210"},
		{"with leading zero", "number hai 09876543210", "9876543210"},
		{"hyphenated", "98765-43210", "9876543210"},
		{"inside sentence", "mera number 8123456789 hai", "8123456789"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := s.Extract(context.Background(), nil, tt.utterance)
			require.NoError(t, err)
			require.False(t, res.Empty())
			assert.Equal(t, tt.want, res.Value)
			assert.Greater(t, res.Confidence, 0.0)
		})
	}
}

func TestPhoneNoMatch(t *testing.T) {
	s := Phone()
	for _, utt := range []string{
		"my name is Priya",
		"1234567890",  // starts with 1, not a mobile
		"987654321",   // nine digits
		"hello there",
	} {
		res, err := s.Extract(context.Background(), nil, utt)
		require.NoError(t, err)
		assert.True(t, res.Empty(), "expected no match for %q", utt)
	}
}

func TestPlate(t *testing.T) {
	s := Plate()

	res, err := s.Extract(context.Background(), nil, "gaadi ka number MH 12 AB 1234 hai")
	require.NoError(t, err)
	assert.Equal(t, "MH12AB1234", res.Value)

	res, err = s.Extract(context.Background(), nil, "ka-05-mj-6789")
	require.NoError(t, err)
	assert.Equal(t, "KA05MJ6789", res.Value)

	res, err = s.Extract(context.Background(), nil, "no plate here")
	require.NoError(t, err)
	assert.True(t, res.Empty())
}

func TestLexicon(t *testing.T) {
	s := Lexicon(map[string]string{
		"maruti":        "Maruti Suzuki",
		"maruti suzuki": "Maruti Suzuki",
		"mahindra":      "Mahindra",
		"tata":          "Tata",
	})

	res, err := s.Extract(context.Background(), nil, "I drive a maruti suzuki swift")
	require.NoError(t, err)
	assert.Equal(t, "Maruti Suzuki", res.Value)

	res, err = s.Extract(context.Background(), nil, "it's a Mahindra.")
	require.NoError(t, err)
	assert.Equal(t, "Mahindra", res.Value)

	res, err = s.Extract(context.Background(), nil, "a honda actually")
	require.NoError(t, err)
	assert.True(t, res.Empty())
}

func TestName(t *testing.T) {
	s := Name()

	tests := []struct {
		utterance string
		want      string
	}{
		{"my name is rohan sharma", "Rohan Sharma"},
		{"Hi, I'm Priya", "Priya"},
		{"this is Amit Verma speaking", "Amit Verma"},
		{"mera naam Sneha hai", "Sneha"},
	}
	for _, tt := range tests {
		res, err := s.Extract(context.Background(), nil, tt.utterance)
		require.NoError(t, err)
		require.False(t, res.Empty(), "expected match for %q", tt.utterance)
		assert.Equal(t, tt.want, res.Value)
	}

	res, err := s.Extract(context.Background(), nil, "book a service please")
	require.NoError(t, err)
	assert.True(t, res.Empty())
}

func TestDate(t *testing.T) {
	// Tuesday
	now := func() time.Time {
		return time.Date(2026, time.September, 1, 10, 0, 0, 0, time.UTC)
	}
	s := Date(now)

	tests := []struct {
		utterance string
		want      string
	}{
		{"book it for tomorrow", "2026-09-02"},
		{"kal chalega", "2026-09-02"},
		{"parso please", "2026-09-03"},
		{"today if possible", "2026-09-01"},
		{"on friday", "2026-09-04"},
		{"next tuesday works", "2026-09-08"}, // same weekday rolls a week
		{"15/09 is fine", "2026-09-15"},
		{"03/01/2027", "2027-01-03"},
		{"5-3", "2027-03-05"}, // already past this year, rolls forward
	}
	for _, tt := range tests {
		t.Run(tt.utterance, func(t *testing.T) {
			res, err := s.Extract(context.Background(), nil, tt.utterance)
			require.NoError(t, err)
			require.False(t, res.Empty())
			assert.Equal(t, tt.want, res.Value)
		})
	}

	res, err := s.Extract(context.Background(), nil, "whenever you like")
	require.NoError(t, err)
	assert.True(t, res.Empty())
}

func TestYesNo(t *testing.T) {
	s := YesNo()

	for _, utt := range []string{"yes", "haan bilkul", "ok, confirm it", "ji"} {
		res, err := s.Extract(context.Background(), nil, utt)
		require.NoError(t, err)
		assert.Equal(t, "yes", res.Value, "utterance %q", utt)
	}
	for _, utt := range []string{"no", "nahi yaar", "cancel it"} {
		res, err := s.Extract(context.Background(), nil, utt)
		require.NoError(t, err)
		assert.Equal(t, "no", res.Value, "utterance %q", utt)
	}

	// denial wins when both appear
	res, err := s.Extract(context.Background(), nil, "yes... actually no")
	require.NoError(t, err)
	assert.Equal(t, "no", res.Value)

	res, err = s.Extract(context.Background(), nil, "maybe later")
	require.NoError(t, err)
	assert.True(t, res.Empty())
}

func TestTierCeiling(t *testing.T) {
	overconfident := Func(func(context.Context, []state.Turn, string) (Result, error) {
		return Result{Value: "x", Confidence: 0.99}, nil
	})
	tier := Tier{Name: "test", Strategy: overconfident, Ceiling: 0.6}

	res, err := tier.Attempt(context.Background(), nil, "anything")
	require.NoError(t, err)
	assert.Equal(t, 0.6, res.Confidence)
}
