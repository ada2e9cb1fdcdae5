package recommendations

const (
	// DetectedFallbackTreatment is returned when a disease was found but no advice could be parsed.
	DetectedFallbackTreatment = "Consult with local agricultural extension service for specific treatment advice. Remove affected plant parts and improve air circulation."
	// HealthyFallbackTreatment is returned for healthy plants when no advice could be parsed.
	HealthyFallbackTreatment = "Continue regular plant monitoring and maintain good garden hygiene. Ensure proper watering and nutrition."
)

var (
	fallbackPreventionTips = []string{
		"Regular plant inspection and monitoring",
		"Proper plant spacing for air circulation",
		"Avoid overhead watering when possible",
		"Remove diseased plant material promptly",
		"Practice crop rotation annually",
		"Use disease-resistant plant varieties",
	}
	fallbackWarningSigns = []string{
		"Spreading symptoms",
		"New discoloration",
		"Wilting leaves",
		"Stunted growth",
	}
)

// Fallback is the deterministic payload used when the model is unreachable or unparseable.
func Fallback(detected bool) Result {
	treatment := HealthyFallbackTreatment
	if detected {
		treatment = DetectedFallbackTreatment
	}
	return Result{
		Treatment:        treatment,
		PreventionTips:   append([]string(nil), fallbackPreventionTips...),
		RecoveryTimeline: DefaultRecoveryTimeline,
		WarningSigns:     append([]string(nil), fallbackWarningSigns...),
		Source:           SourceFallback,
	}
}
