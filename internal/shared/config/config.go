package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"cropguard/internal/shared/telemetry"
)

const (
	DefaultClassifierEndpoint = "https://detect.roboflow.com/plantvillage-dataset/1"
	DefaultLLMBaseURL         = "https://api.groq.com/openai/v1"
	DefaultLLMModel           = "llama3-8b-8192"
	DefaultUpstreamTimeout    = 20 * time.Second
	DefaultMaxImageBytes      = 10 << 20
)

// Credentials carries the two upstream API keys.
type Credentials struct {
	ClassifierAPIKey  string
	RecommenderAPIKey string
}

// Missing lists the environment variable names of absent credentials.
func (c Credentials) Missing() []string {
	var out []string
	if strings.TrimSpace(c.ClassifierAPIKey) == "" {
		out = append(out, "ROBOFLOW_API_KEY")
	}
	if strings.TrimSpace(c.RecommenderAPIKey) == "" {
		out = append(out, "GROQ_API_KEY")
	}
	return out
}

// Config holds application configuration.
type Config struct {
	Port            string
	CORSAllowOrigin []string
	TrustedProxies  []string
	ObjectStoreType string
	LocalStoreDir   string
	AWSRegion       string
	S3Bucket        string
	S3Prefix        string
	SSEKMSKeyID     string
	DatabaseURL     string
	Env             string
	LogLevel        string
	MaxImageBytes   int64
	UpstreamTimeout time.Duration
	RateLimitRPS    float64
	RateLimitBurst  int

	Credentials Credentials
	Tunables    Tunables
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", ".env.local", "cmd/.env")

	cfg := Config{
		Port:            getEnv("PORT", "8080"),
		CORSAllowOrigin: splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173")),
		TrustedProxies:  splitAndTrim(getEnv("TRUSTED_PROXIES", "")),
		ObjectStoreType: normalizeStoreType(getEnv("OBJECT_STORE", "local")),
		LocalStoreDir:   getEnv("LOCAL_STORE_DIR", "./data"),
		AWSRegion:       getEnv("AWS_REGION", ""),
		S3Bucket:        getEnv("S3_BUCKET", ""),
		S3Prefix:        getEnv("S3_PREFIX", "images/"),
		SSEKMSKeyID:     getEnv("SSE_KMS_KEY_ID", ""),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		Env:             normalizeEnv(getEnv("ENV", "dev")),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		MaxImageBytes:   getEnvInt64("MAX_IMAGE_BYTES", DefaultMaxImageBytes),
		UpstreamTimeout: getEnvDuration("UPSTREAM_TIMEOUT", DefaultUpstreamTimeout),
		RateLimitRPS:    getEnvFloat("RATE_LIMIT_RPS", 0.5),
		RateLimitBurst:  int(getEnvInt64("RATE_LIMIT_BURST", 5)),
		Credentials: Credentials{
			ClassifierAPIKey:  firstEnv("ROBOFLOW_API_KEY", "VITE_ROBOFLOW_API_KEY"),
			RecommenderAPIKey: firstEnv("GROQ_API_KEY", "VITE_GROQ_API_KEY"),
		},
		Tunables: DefaultTunables(),
	}
	cfg.Tunables.ClassifierEndpoint = getEnv("ROBOFLOW_ENDPOINT", cfg.Tunables.ClassifierEndpoint)
	cfg.Tunables.LLMBaseURL = getEnv("LLM_BASE_URL", cfg.Tunables.LLMBaseURL)
	cfg.Tunables.LLMModel = getEnv("LLM_MODEL", cfg.Tunables.LLMModel)

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		tunables, err := LoadTunables(path, cfg.Tunables)
		if err != nil {
			telemetry.Warn("config.tunables_failed", map[string]any{"path": path, "error": err})
		} else {
			cfg.Tunables = tunables
		}
	}

	return cfg
}

// Validate checks values that would otherwise fail late at runtime.
func (c Config) Validate() error {
	p, err := strconv.Atoi(strings.TrimPrefix(strings.TrimSpace(c.Port), ":"))
	if err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("invalid PORT: %q", c.Port)
	}
	if c.MaxImageBytes <= 0 {
		return fmt.Errorf("MAX_IMAGE_BYTES must be > 0 (got %d)", c.MaxImageBytes)
	}
	if c.UpstreamTimeout <= 0 {
		return fmt.Errorf("UPSTREAM_TIMEOUT must be > 0 (got %s)", c.UpstreamTimeout)
	}
	if c.ObjectStoreType == "s3" && strings.TrimSpace(c.S3Bucket) == "" {
		return fmt.Errorf("OBJECT_STORE=s3 requires S3_BUCKET")
	}
	if c.Env == "production" && strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required in production")
	}
	return c.Tunables.Validate()
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func firstEnv(keys ...string) string {
	for _, key := range keys {
		if val := strings.TrimSpace(os.Getenv(key)); val != "" {
			return val
		}
	}
	return ""
}

func getEnvInt64(key string, def int64) int64 {
	if raw := strings.TrimSpace(os.Getenv(key)); raw != "" {
		if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return v
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if raw := strings.TrimSpace(os.Getenv(key)); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			return v
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if raw := strings.TrimSpace(os.Getenv(key)); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			return d
		}
	}
	return def
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	default:
		return "local"
	}
}

// IsDevLike reports whether env allows in-memory fallbacks.
func IsDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
