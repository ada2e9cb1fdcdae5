package analyses

import (
	"context"
	"time"

	"cropguard/internal/classifier"
	"cropguard/internal/recommendations"
	"cropguard/internal/shared/config"
	"cropguard/internal/shared/telemetry"
)

// Recommender produces advice for a detection and never fails.
type Recommender interface {
	Recommend(ctx context.Context, d classifier.DetectionResult) recommendations.Result
}

// Orchestrator runs classification then recommendation for one image.
// It holds no per-request state and is safe for concurrent use.
type Orchestrator struct {
	creds       config.Credentials
	classifier  classifier.Client
	recommender Recommender
	crops       []string
	now         func() time.Time
}

// NewOrchestrator wires the two upstream clients. Empty crops uses config.DefaultCrops.
func NewOrchestrator(creds config.Credentials, c classifier.Client, r Recommender, crops []string) *Orchestrator {
	if len(crops) == 0 {
		crops = config.DefaultCrops()
	}
	return &Orchestrator{
		creds:       creds,
		classifier:  c,
		recommender: r,
		crops:       append([]string(nil), crops...),
		now:         time.Now,
	}
}

// Analyze classifies the image, asks for advice and merges both into a report.
// Missing credentials fail before any network call. If ctx ends mid-flight the
// partial result is discarded and ctx.Err() is returned.
func (o *Orchestrator) Analyze(ctx context.Context, image []byte, imageRef string) (AnalysisReport, error) {
	if missing := o.creds.Missing(); len(missing) > 0 {
		telemetry.Warn("analysis.missing_credentials", map[string]any{"missing": missing})
		return AnalysisReport{}, &AnalysisError{Cause: CauseMissingCredentials, Missing: missing}
	}

	detection, err := o.classifier.Classify(ctx, image)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return AnalysisReport{}, ctxErr
		}
		return AnalysisReport{}, &AnalysisError{Cause: CauseClassificationFailed, Err: err}
	}

	advice := o.recommender.Recommend(ctx, detection)
	if err := ctx.Err(); err != nil {
		return AnalysisReport{}, err
	}

	return AnalysisReport{
		DetectionResult:       detection,
		Result:                advice,
		PestName:              detection.LabelOr(NoDiseaseName),
		CropType:              CropType(detection.Label, o.crops),
		ImageReference:        imageRef,
		SourceTag:             SourceTag,
		ProducedAt:            o.now().UTC(),
		ImmediateActionNeeded: detection.Severity == classifier.SeverityHigh,
	}, nil
}
