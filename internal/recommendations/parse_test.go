package recommendations

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cropguard/internal/shared/upstream"
)

func TestParseJSONObject(t *testing.T) {
	text := "Here is my advice:\n```json\n" + `{
  "treatment_recommendation": "Apply copper fungicide every 7 days.",
  "prevention_tips": ["Mulch soil", " ", "Water at the base"],
  "recovery_timeline": "3 weeks",
  "warning_signs": ["Yellow halos"]
}` + "\n```\nGood luck!"

	got, err := Parse(text)
	require.NoError(t, err)
	assert.Equal(t, SourceJSON, got.Source)
	assert.Equal(t, "Apply copper fungicide every 7 days.", got.Treatment)
	assert.Equal(t, []string{"Mulch soil", "Water at the base"}, got.PreventionTips)
	assert.Equal(t, "3 weeks", got.RecoveryTimeline)
	assert.Equal(t, []string{"Yellow halos"}, got.WarningSigns)
}

func TestParseJSONDefaultsOptionalFields(t *testing.T) {
	got, err := Parse(`{"treatment_recommendation":"Prune lower leaves","prevention_tips":"Rotate crops"}`)
	require.NoError(t, err)
	assert.Equal(t, SourceJSON, got.Source)
	assert.Equal(t, []string{"Rotate crops"}, got.PreventionTips)
	assert.Equal(t, DefaultRecoveryTimeline, got.RecoveryTimeline)
	assert.NotNil(t, got.WarningSigns)
	assert.Empty(t, got.WarningSigns)
}

func TestParseJSONMissingRequiredFallsThroughToLineScan(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{name: "no tips", text: "Treatment: remove leaves\n{\"treatment_recommendation\":\"x\",\"prevention_tips\":[]}"},
		{name: "no treatment", text: "Treatment: remove leaves\n{\"prevention_tips\":[\"a\"]}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.text)
			require.NoError(t, err)
			assert.Equal(t, SourceText, got.Source)
			assert.Equal(t, "Treatment: remove leaves", got.Treatment)
		})
	}
}

func TestParseMalformedJSONIsParseError(t *testing.T) {
	_, err := Parse(`{"treatment_recommendation": "spray", "prevention_tips": [}`)
	var pe *upstream.ParseError
	require.True(t, errors.As(err, &pe), "got %v", err)
	assert.Equal(t, "json", pe.Stage)
}

func TestParseLineScan(t *testing.T) {
	text := "\n\n  I would RECOMMEND removing infected foliage.  \nAlso treatment with neem oil.\n"
	got, err := Parse(text)
	require.NoError(t, err)
	assert.Equal(t, SourceText, got.Source)
	assert.Equal(t, "I would RECOMMEND removing infected foliage.", got.Treatment)
	assert.Equal(t, textPreventionTips, got.PreventionTips)
	assert.Equal(t, DefaultRecoveryTimeline, got.RecoveryTimeline)
	assert.Equal(t, textWarningSigns, got.WarningSigns)
}

func TestParseUnrecognisedProse(t *testing.T) {
	_, err := Parse("Plants are lovely. Keep them watered.")
	assert.ErrorIs(t, err, ErrUnrecognised)
}

func TestFallbackCopiesDefaults(t *testing.T) {
	a := Fallback(true)
	a.PreventionTips[0] = "mutated"
	b := Fallback(true)
	assert.Equal(t, "Regular plant inspection and monitoring", b.PreventionTips[0])
	assert.Equal(t, DetectedFallbackTreatment, b.Treatment)
	assert.Equal(t, HealthyFallbackTreatment, Fallback(false).Treatment)
	assert.Len(t, b.PreventionTips, 6)
	assert.Len(t, b.WarningSigns, 4)
}
