package recommendations

import (
	"encoding/json"
	"errors"
	"strings"

	"cropguard/internal/shared/upstream"
)

// ErrUnrecognised is returned when no parser could extract advice from the text.
var ErrUnrecognised = errors.New("no recognisable advice in completion")

var (
	textPreventionTips = []string{
		"Monitor plants regularly",
		"Ensure proper drainage",
		"Practice crop rotation",
		"Remove diseased material promptly",
	}
	textWarningSigns = []string{
		"Spreading symptoms",
		"Worsening discoloration",
		"Wilting leaves",
	}
)

// parser tries to extract a Result from completion text. ok=false passes the
// text on to the next parser; a non-nil error stops the chain.
type parser struct {
	source Source
	parse  func(text string) (Result, bool, error)
}

var parsers = []parser{
	{source: SourceJSON, parse: parseJSONObject},
	{source: SourceText, parse: scanTreatmentLine},
}

// Parse runs the parser chain over completion text and returns the first success.
// A malformed JSON object yields a *upstream.ParseError; text nothing recognises
// yields ErrUnrecognised.
func Parse(text string) (Result, error) {
	for _, p := range parsers {
		res, ok, err := p.parse(text)
		if err != nil {
			return Result{}, err
		}
		if ok {
			res.Source = p.source
			return res, nil
		}
	}
	return Result{}, ErrUnrecognised
}

// stringList accepts either a JSON array of strings or a single string.
type stringList []string

func (l *stringList) UnmarshalJSON(data []byte) error {
	var many []string
	if err := json.Unmarshal(data, &many); err == nil {
		*l = many
		return nil
	}
	var one string
	if err := json.Unmarshal(data, &one); err != nil {
		return err
	}
	if strings.TrimSpace(one) == "" {
		*l = nil
		return nil
	}
	*l = stringList{one}
	return nil
}

type completionPayload struct {
	TreatmentRecommendation string     `json:"treatment_recommendation"`
	PreventionTips          stringList `json:"prevention_tips"`
	RecoveryTimeline        string     `json:"recovery_timeline"`
	WarningSigns            stringList `json:"warning_signs"`
}

// parseJSONObject decodes the span from the first '{' to the last '}'.
func parseJSONObject(text string) (Result, bool, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return Result{}, false, nil
	}

	var payload completionPayload
	if err := json.Unmarshal([]byte(text[start:end+1]), &payload); err != nil {
		return Result{}, false, &upstream.ParseError{Stage: "json", Cause: err}
	}

	treatment := strings.TrimSpace(payload.TreatmentRecommendation)
	tips := compact(payload.PreventionTips)
	if treatment == "" || len(tips) == 0 {
		return Result{}, false, nil
	}

	timeline := strings.TrimSpace(payload.RecoveryTimeline)
	if timeline == "" {
		timeline = DefaultRecoveryTimeline
	}
	warnings := compact(payload.WarningSigns)
	if warnings == nil {
		warnings = []string{}
	}
	return Result{
		Treatment:        treatment,
		PreventionTips:   tips,
		RecoveryTimeline: timeline,
		WarningSigns:     warnings,
	}, true, nil
}

// scanTreatmentLine picks the first line mentioning treatment or a recommendation.
func scanTreatmentLine(text string) (Result, bool, error) {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)
		if strings.Contains(lower, "treatment") || strings.Contains(lower, "recommend") {
			return Result{
				Treatment:        line,
				PreventionTips:   append([]string(nil), textPreventionTips...),
				RecoveryTimeline: DefaultRecoveryTimeline,
				WarningSigns:     append([]string(nil), textWarningSigns...),
			}, true, nil
		}
	}
	return Result{}, false, nil
}

func compact(items []string) []string {
	var out []string
	for _, item := range items {
		if s := strings.TrimSpace(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}
