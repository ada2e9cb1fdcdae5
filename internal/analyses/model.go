package analyses

import (
	"time"

	"cropguard/internal/classifier"
	"cropguard/internal/recommendations"
)

// SourceTag identifies the upstream services behind every report.
const SourceTag = "roboflow + groq"

// NoDiseaseName is the display name used when nothing was detected.
const NoDiseaseName = "No disease detected"

// AnalysisReport is the merged result of one classification and recommendation pass.
type AnalysisReport struct {
	classifier.DetectionResult
	recommendations.Result

	PestName              string    `json:"pestName"`
	CropType              string    `json:"cropType"`
	ImageReference        string    `json:"imageReference"`
	SourceTag             string    `json:"sourceTag"`
	ProducedAt            time.Time `json:"producedAt"`
	ImmediateActionNeeded bool      `json:"immediateActionNeeded"`
}

// Tracking statuses for a stored analysis.
const (
	StatusDetected = "detected"
	StatusTreating = "treating"
	StatusResolved = "resolved"
)

// ValidStatus reports whether status is a known tracking status.
func ValidStatus(status string) bool {
	switch status {
	case StatusDetected, StatusTreating, StatusResolved:
		return true
	default:
		return false
	}
}

// Analysis is a stored report plus the user's tracking state.
type Analysis struct {
	ID        string         `json:"id"`
	UserID    string         `json:"userId"`
	FileName  string         `json:"fileName,omitempty"`
	ImageKey  string         `json:"imageKey,omitempty"`
	Status    string         `json:"status"`
	Location  string         `json:"location,omitempty"`
	Notes     string         `json:"notes,omitempty"`
	Report    AnalysisReport `json:"report"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// Threat levels summarise a user's unresolved detections.
const (
	ThreatLow      = "low"
	ThreatModerate = "moderate"
	ThreatHigh     = "high"
)

// Stats are the dashboard counters for one user. ThreatLevel and ThreatScore
// consider only analyses still in StatusDetected.
type Stats struct {
	Total           int            `json:"total"`
	ByStatus        map[string]int `json:"byStatus"`
	BySeverity      map[string]int `json:"bySeverity"`
	ImmediateAction int            `json:"immediateAction"`
	ThreatLevel     string         `json:"threatLevel"`
	ThreatScore     int            `json:"threatScore"`

	activeHigh int
}

func newStats() Stats {
	return Stats{
		ByStatus: map[string]int{
			StatusDetected: 0,
			StatusTreating: 0,
			StatusResolved: 0,
		},
		BySeverity:  map[string]int{},
		ThreatLevel: ThreatLow,
	}
}

func (s *Stats) add(status, severity string, immediate bool, n int) {
	s.Total += n
	s.ByStatus[status] += n
	s.BySeverity[severity] += n
	if immediate {
		s.ImmediateAction += n
	}
	if status == StatusDetected && severity == string(classifier.SeverityHigh) {
		s.activeHigh += n
	}
	s.ThreatLevel, s.ThreatScore = threat(s.ByStatus[StatusDetected], s.activeHigh)
}

// threat scores 20 per active high-severity detection plus 5 per active
// detection, capped at 100. More than two active highs is a high threat.
func threat(active, activeHigh int) (string, int) {
	score := activeHigh*20 + active*5
	if score > 100 {
		score = 100
	}
	switch {
	case activeHigh > 2:
		return ThreatHigh, score
	case active > 0:
		return ThreatModerate, score
	default:
		return ThreatLow, score
	}
}
