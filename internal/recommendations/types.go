package recommendations

// Source records which parser produced a Result.
type Source string

const (
	SourceJSON     Source = "json"
	SourceText     Source = "text"
	SourceFallback Source = "fallback"
)

// Result is the normalised treatment advice for one detection.
// It is always populated: Treatment and PreventionTips are never empty.
type Result struct {
	Treatment        string   `json:"treatment"`
	PreventionTips   []string `json:"preventionTips"`
	RecoveryTimeline string   `json:"recoveryTimeline"`
	WarningSigns     []string `json:"warningSigns"`
	Source           Source   `json:"source"`
}

// DefaultRecoveryTimeline is used whenever the model omits a timeline.
const DefaultRecoveryTimeline = "2-4 weeks with proper treatment"
