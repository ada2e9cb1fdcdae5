package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Tunables are the fixed literals of the analysis pipeline. They default to the
// values the upstream integrations were built against and can be overridden by a
// YAML file named in CONFIG_FILE.
type Tunables struct {
	ClassifierEndpoint   string   `yaml:"classifier_endpoint"`
	ClassifierConfidence int      `yaml:"classifier_confidence"`
	ClassifierOverlap    int      `yaml:"classifier_overlap"`
	LLMBaseURL           string   `yaml:"llm_base_url"`
	LLMModel             string   `yaml:"llm_model"`
	LLMMaxTokens         int      `yaml:"llm_max_tokens"`
	LLMTemperature       float64  `yaml:"llm_temperature"`
	Crops                []string `yaml:"crops"`
}

// DefaultTunables returns the built-in pipeline constants.
func DefaultTunables() Tunables {
	return Tunables{
		ClassifierEndpoint:   DefaultClassifierEndpoint,
		ClassifierConfidence: 50,
		ClassifierOverlap:    50,
		LLMBaseURL:           DefaultLLMBaseURL,
		LLMModel:             DefaultLLMModel,
		LLMMaxTokens:         500,
		LLMTemperature:       0.7,
		Crops:                DefaultCrops(),
	}
}

// DefaultCrops lists the crop names recognised in classifier labels, in match order.
func DefaultCrops() []string {
	return []string{"tomato", "potato", "corn", "apple", "grape", "pepper", "strawberry", "bean", "cucumber", "lettuce"}
}

// LoadTunables reads a YAML file and overlays its non-zero values onto base.
func LoadTunables(path string, base Tunables) (Tunables, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("read tunables %s: %w", path, err)
	}
	var file Tunables
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return base, fmt.Errorf("parse tunables %s: %w", path, err)
	}
	// Zero is a valid temperature, so presence is tracked separately.
	var explicit struct {
		LLMTemperature *float64 `yaml:"llm_temperature"`
	}
	if err := yaml.Unmarshal(raw, &explicit); err != nil {
		return base, fmt.Errorf("parse tunables %s: %w", path, err)
	}
	out := base
	if strings.TrimSpace(file.ClassifierEndpoint) != "" {
		out.ClassifierEndpoint = strings.TrimSpace(file.ClassifierEndpoint)
	}
	if file.ClassifierConfidence > 0 {
		out.ClassifierConfidence = file.ClassifierConfidence
	}
	if file.ClassifierOverlap > 0 {
		out.ClassifierOverlap = file.ClassifierOverlap
	}
	if strings.TrimSpace(file.LLMBaseURL) != "" {
		out.LLMBaseURL = strings.TrimSpace(file.LLMBaseURL)
	}
	if strings.TrimSpace(file.LLMModel) != "" {
		out.LLMModel = strings.TrimSpace(file.LLMModel)
	}
	if file.LLMMaxTokens > 0 {
		out.LLMMaxTokens = file.LLMMaxTokens
	}
	if explicit.LLMTemperature != nil {
		out.LLMTemperature = *explicit.LLMTemperature
	}
	if len(file.Crops) > 0 {
		crops := make([]string, 0, len(file.Crops))
		for _, c := range file.Crops {
			if c = strings.ToLower(strings.TrimSpace(c)); c != "" {
				crops = append(crops, c)
			}
		}
		if len(crops) > 0 {
			out.Crops = crops
		}
	}
	return out, out.Validate()
}

// Validate rejects tunables outside the ranges the upstream APIs accept.
func (t Tunables) Validate() error {
	if t.ClassifierConfidence < 0 || t.ClassifierConfidence > 100 {
		return fmt.Errorf("classifier_confidence must be within 0..100 (got %d)", t.ClassifierConfidence)
	}
	if t.ClassifierOverlap < 0 || t.ClassifierOverlap > 100 {
		return fmt.Errorf("classifier_overlap must be within 0..100 (got %d)", t.ClassifierOverlap)
	}
	if t.LLMMaxTokens <= 0 {
		return fmt.Errorf("llm_max_tokens must be > 0 (got %d)", t.LLMMaxTokens)
	}
	if t.LLMTemperature < 0 || t.LLMTemperature > 2 {
		return fmt.Errorf("llm_temperature must be within 0..2 (got %v)", t.LLMTemperature)
	}
	if strings.TrimSpace(t.ClassifierEndpoint) == "" || strings.TrimSpace(t.LLMBaseURL) == "" {
		return fmt.Errorf("classifier_endpoint and llm_base_url are required")
	}
	return nil
}
