package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"cropguard/internal/llm"
	"cropguard/internal/shared/telemetry"
	"cropguard/internal/shared/upstream"
)

const (
	serviceName = "groq"

	DefaultBaseURL     = "https://api.groq.com/openai/v1"
	DefaultModel       = "llama3-8b-8192"
	DefaultMaxTokens   = 500
	DefaultTemperature = 0.7

	maxResponseBytes = 4 << 20
)

// Options configures a Client. Zero values, and a nil Temperature, fall back to
// the defaults above.
type Options struct {
	BaseURL     string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature *float64
	Timeout     time.Duration
	HTTPClient  *http.Client
}

// Client implements llm.Client against any OpenAI-compatible chat completions API.
type Client struct {
	apiURL      string
	apiKey      string
	model       string
	maxTokens   int
	temperature float64
	httpClient  *http.Client
}

// NewClient constructs a new chat completions client.
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, fmt.Errorf("GROQ_API_KEY is required")
	}
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = DefaultModel
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	temperature := DefaultTemperature
	if opts.Temperature != nil {
		temperature = *opts.Temperature
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 20 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		apiURL:      base + "/chat/completions",
		apiKey:      strings.TrimSpace(opts.APIKey),
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
		httpClient:  httpClient,
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature *float64      `json:"temperature,omitempty"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage *chatUsage `json:"usage,omitempty"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Complete sends the system and user messages and returns the first choice's content.
// Failures are returned as *upstream.ServiceError without retrying.
func (c *Client) Complete(ctx context.Context, in llm.CompletionRequest) (string, error) {
	temperature := c.temperature
	messages := make([]chatMessage, 0, 2)
	if strings.TrimSpace(in.System) != "" {
		messages = append(messages, chatMessage{Role: "system", Content: in.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: in.Prompt})

	payload, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   c.maxTokens,
		Temperature: &temperature,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(payload))
	if err != nil {
		return "", upstream.NetworkError(serviceName, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		telemetry.Error("llm.request_failed", map[string]any{
			"model":       c.model,
			"error":       err,
			"duration_ms": time.Since(start).Milliseconds(),
		})
		return "", upstream.NetworkError(serviceName, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", upstream.NetworkError(serviceName, err)
	}

	var parsed chatResponse
	decodeErr := json.Unmarshal(body, &parsed)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if decodeErr == nil && parsed.Error != nil {
			se := upstream.StatusError(serviceName, resp.StatusCode, nil)
			se.Message = fmt.Sprintf("%s (%s)", parsed.Error.Message, parsed.Error.Type)
			return "", se
		}
		return "", upstream.StatusError(serviceName, resp.StatusCode, body)
	}
	if decodeErr != nil {
		return "", upstream.InvalidResponse(serviceName, decodeErr)
	}
	if parsed.Error != nil {
		return "", upstream.InvalidResponse(serviceName, fmt.Errorf("%s (%s)", parsed.Error.Message, parsed.Error.Type))
	}
	if len(parsed.Choices) == 0 {
		return "", upstream.InvalidResponse(serviceName, fmt.Errorf("response missing choices"))
	}

	content := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if content == "" {
		return "", upstream.InvalidResponse(serviceName, fmt.Errorf("response empty content"))
	}
	logUsage(c.model, parsed.Usage, time.Since(start))
	return content, nil
}

func logUsage(model string, usage *chatUsage, elapsed time.Duration) {
	fields := map[string]any{
		"model":       model,
		"duration_ms": elapsed.Milliseconds(),
	}
	if usage != nil {
		fields["prompt_tokens"] = usage.PromptTokens
		fields["completion_tokens"] = usage.CompletionTokens
		fields["total_tokens"] = usage.TotalTokens
	}
	telemetry.Info("llm.response", fields)
}

var _ llm.Client = (*Client)(nil)
