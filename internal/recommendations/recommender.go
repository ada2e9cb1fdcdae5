// Package recommendations turns a detection into treatment advice using a
// chat-completion model, degrading to canned advice when the model fails.
package recommendations

import (
	"context"
	"errors"
	"time"

	"cropguard/internal/classifier"
	"cropguard/internal/llm"
	"cropguard/internal/shared/metrics"
	"cropguard/internal/shared/telemetry"
	"cropguard/internal/shared/upstream"
)

// Recommender produces advice for detections. The zero value is not usable;
// construct with NewRecommender.
type Recommender struct {
	client llm.Client
}

// NewRecommender wraps an LLM client. A nil client always yields the fallback.
func NewRecommender(client llm.Client) *Recommender {
	if client == nil {
		client = llm.PlaceholderClient{}
	}
	return &Recommender{client: client}
}

// Recommend never fails: transport and parse errors are logged and replaced by Fallback.
func (r *Recommender) Recommend(ctx context.Context, d classifier.DetectionResult) Result {
	start := time.Now()
	text, err := r.client.Complete(ctx, llm.CompletionRequest{
		System: SystemPrompt,
		Prompt: BuildPrompt(d),
	})
	if err != nil {
		fields := map[string]any{"error": err, "detected": d.Detected}
		var se *upstream.ServiceError
		if errors.As(err, &se) {
			fields["kind"] = string(se.Kind)
			fields["status"] = se.StatusCode
			metrics.IncUpstreamError(se.Service, string(se.Kind))
		}
		telemetry.Warn("recommendation.request_failed", fields)
		return r.fallback(d, start)
	}

	res, err := Parse(text)
	if err != nil {
		telemetry.Warn("recommendation.parse_failed", map[string]any{
			"error":    err,
			"detected": d.Detected,
			"chars":    len(text),
		})
		return r.fallback(d, start)
	}

	metrics.IncRecommendation(string(res.Source))
	telemetry.Info("recommendation.parsed", map[string]any{
		"source":      string(res.Source),
		"tips":        len(res.PreventionTips),
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return res
}

func (r *Recommender) fallback(d classifier.DetectionResult, start time.Time) Result {
	metrics.IncRecommendation(string(SourceFallback))
	telemetry.Info("recommendation.fallback", map[string]any{
		"detected":    d.Detected,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return Fallback(d.Detected)
}
