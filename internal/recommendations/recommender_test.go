package recommendations

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cropguard/internal/classifier"
	"cropguard/internal/llm"
	"cropguard/internal/shared/upstream"
)

type fakeLLM struct {
	reply string
	err   error
	calls []llm.CompletionRequest
}

func (f *fakeLLM) Complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	f.calls = append(f.calls, req)
	return f.reply, f.err
}

func detected(label string, confidence float64) classifier.DetectionResult {
	return classifier.FromPredictions([]classifier.Prediction{{Class: label, Confidence: confidence}})
}

func TestBuildPromptDiseased(t *testing.T) {
	prompt := BuildPrompt(detected("Tomato_Early_Blight", 92))
	assert.True(t, strings.HasPrefix(prompt, "Plant disease detected: Tomato_Early_Blight with 92.0% confidence. Severity: high."), prompt)
	assert.Contains(t, prompt, "Keep advice practical and actionable for home gardeners.")
}

func TestBuildPromptHealthy(t *testing.T) {
	prompt := BuildPrompt(classifier.NoDetection())
	assert.True(t, strings.HasPrefix(prompt, "A plant appears healthy with no diseases detected."), prompt)
	assert.NotContains(t, prompt, "Plant disease detected")
}

func TestRecommendUsesHealthyTemplateWithoutDetection(t *testing.T) {
	fake := &fakeLLM{reply: `{"treatment_recommendation":"Keep watering evenly","prevention_tips":["Mulch"]}`}
	got := NewRecommender(fake).Recommend(context.Background(), classifier.NoDetection())

	require.Len(t, fake.calls, 1)
	assert.Equal(t, SystemPrompt, fake.calls[0].System)
	assert.Equal(t, healthyPrompt, fake.calls[0].Prompt)
	assert.Equal(t, SourceJSON, got.Source)
	assert.Equal(t, "Keep watering evenly", got.Treatment)
}

func TestRecommendProseWithoutTreatmentReturnsFallbackVerbatim(t *testing.T) {
	fake := &fakeLLM{reply: "Sorry, I cannot help with that image today."}
	got := NewRecommender(fake).Recommend(context.Background(), detected("Potato_Late_Blight", 70))

	assert.Equal(t, Fallback(true), got)
	assert.Equal(t, "Consult with local agricultural extension service for specific treatment advice. Remove affected plant parts and improve air circulation.", got.Treatment)
}

func TestRecommendNeverFails(t *testing.T) {
	tests := []struct {
		name string
		llm  llm.Client
		d    classifier.DetectionResult
	}{
		{name: "network error", llm: &fakeLLM{err: upstream.NetworkError("groq", errors.New("dial tcp: refused"))}, d: detected("Corn_Rust", 55)},
		{name: "http status", llm: &fakeLLM{err: upstream.StatusError("groq", 500, []byte("boom"))}, d: classifier.NoDetection()},
		{name: "malformed json", llm: &fakeLLM{reply: `{"treatment_recommendation": [`}, d: detected("Apple_Scab", 85)},
		{name: "empty reply", llm: &fakeLLM{reply: ""}, d: detected("Grape_Black_Rot", 30)},
		{name: "placeholder", llm: nil, d: classifier.NoDetection()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewRecommender(tt.llm).Recommend(context.Background(), tt.d)
			assert.NotEmpty(t, got.Treatment)
			assert.NotEmpty(t, got.PreventionTips)
			assert.NotEmpty(t, got.RecoveryTimeline)
			assert.Equal(t, SourceFallback, got.Source)
			assert.Equal(t, Fallback(tt.d.Detected), got)
		})
	}
}

func TestRecommendLineScan(t *testing.T) {
	fake := &fakeLLM{reply: "Overview of the issue.\nTreatment: apply sulfur spray weekly."}
	got := NewRecommender(fake).Recommend(context.Background(), detected("Grape_Powdery_Mildew", 65))
	assert.Equal(t, SourceText, got.Source)
	assert.Equal(t, "Treatment: apply sulfur spray weekly.", got.Treatment)
}
