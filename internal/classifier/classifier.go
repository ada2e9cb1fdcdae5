// Package classifier defines the disease-detection result produced from an image
// classification service and the rules that normalise raw predictions into it.
package classifier

import (
	"context"
	"strings"
)

// Severity is the infestation band derived from detection confidence.
type Severity string

const (
	SeverityNone      Severity = "none"
	SeverityLow       Severity = "low"
	SeverityModerate  Severity = "moderate"
	SeverityHigh      Severity = "high"
	SeverityUncertain Severity = "uncertain"
)

// Confidence bands, in percent. A confidence must be strictly above a bound to
// reach its band.
const (
	HighSeverityAbove     = 80.0
	ModerateSeverityAbove = 60.0
	LowSeverityAbove      = 40.0
)

// Prediction is one raw class/confidence pair returned by the service.
// Confidence is a percentage in 0..100.
type Prediction struct {
	Class      string  `json:"class"`
	Confidence float64 `json:"confidence"`
}

// DetectionResult is the normalised outcome of one classification call.
// A result with Detected=false always has a nil Label, zero confidence and
// SeverityNone.
type DetectionResult struct {
	Detected        bool         `json:"detected"`
	Label           *string      `json:"label"`
	ConfidenceScore float64      `json:"confidenceScore"`
	Severity        Severity     `json:"severity"`
	Predictions     []Prediction `json:"predictions,omitempty"`
}

// Client classifies a crop image.
type Client interface {
	Classify(ctx context.Context, image []byte) (DetectionResult, error)
}

// NoDetection is the result for a response without predictions.
func NoDetection() DetectionResult {
	return DetectionResult{
		Detected:        false,
		Label:           nil,
		ConfidenceScore: 0,
		Severity:        SeverityNone,
	}
}

// SeverityFor maps a percentage confidence onto a severity band.
func SeverityFor(confidence float64) Severity {
	switch {
	case confidence > HighSeverityAbove:
		return SeverityHigh
	case confidence > ModerateSeverityAbove:
		return SeverityModerate
	case confidence > LowSeverityAbove:
		return SeverityLow
	default:
		return SeverityUncertain
	}
}

// FromPredictions selects the highest-confidence prediction. Ties keep the
// first maximum in response order.
func FromPredictions(predictions []Prediction) DetectionResult {
	if len(predictions) == 0 {
		return NoDetection()
	}
	top := predictions[0]
	for _, p := range predictions[1:] {
		if p.Confidence > top.Confidence {
			top = p
		}
	}
	label := strings.TrimSpace(top.Class)
	return DetectionResult{
		Detected:        true,
		Label:           &label,
		ConfidenceScore: clamp01(top.Confidence / 100),
		Severity:        SeverityFor(top.Confidence),
		Predictions:     append([]Prediction(nil), predictions...),
	}
}

// LabelOr returns the detected label or def when nothing was detected.
func (d DetectionResult) LabelOr(def string) string {
	if d.Label == nil || *d.Label == "" {
		return def
	}
	return *d.Label
}

// ConfidencePercent returns the confidence score as a percentage.
func (d DetectionResult) ConfidencePercent() float64 {
	return d.ConfidenceScore * 100
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
