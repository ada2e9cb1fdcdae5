package recommendations

import (
	"fmt"

	"cropguard/internal/classifier"
)

// SystemPrompt is sent as the system role on every completion request.
const SystemPrompt = "You are an agricultural expert specializing in plant disease management. Always respond with valid JSON format."

const healthyPrompt = `A plant appears healthy with no diseases detected. Provide 3 general plant care tips and 3 prevention strategies to keep plants healthy.

Format your response as JSON:
{
  "treatment_recommendation": "general care advice",
  "prevention_tips": ["tip1", "tip2", "tip3"],
  "recovery_timeline": "ongoing maintenance",
  "warning_signs": ["sign1", "sign2", "sign3"]
}`

const diseasedPrompt = `Plant disease detected: %s with %.1f%% confidence. Severity: %s.

Please provide:
1. Immediate treatment recommendation
2. 4-5 specific prevention tips
3. Timeline for expected recovery
4. Warning signs to watch for

Format response as JSON:
{
  "treatment_recommendation": "detailed treatment steps",
  "prevention_tips": ["tip1", "tip2", "tip3", "tip4", "tip5"],
  "recovery_timeline": "expected timeline",
  "warning_signs": ["sign1", "sign2", "sign3"]
}

Keep advice practical and actionable for home gardeners.`

// BuildPrompt renders the user prompt for a detection. Healthy plants get the
// general-care template.
func BuildPrompt(d classifier.DetectionResult) string {
	if !d.Detected {
		return healthyPrompt
	}
	return fmt.Sprintf(diseasedPrompt, d.LabelOr("Unknown disease"), d.ConfidencePercent(), d.Severity)
}
