package roboflow

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"cropguard/internal/classifier"
	"cropguard/internal/shared/telemetry"
	"cropguard/internal/shared/upstream"
)

const (
	serviceName = "roboflow"

	// DefaultConfidence and DefaultOverlap are the percentage thresholds sent
	// with every detection request.
	DefaultConfidence = 50
	DefaultOverlap    = 50

	maxResponseBytes = 4 << 20
)

// Options configures a Client.
type Options struct {
	Endpoint   string
	APIKey     string
	Confidence int
	Overlap    int
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client implements classifier.Client against a Roboflow hosted detection model.
type Client struct {
	endpoint   string
	apiKey     string
	confidence int
	overlap    int
	httpClient *http.Client
}

// New constructs a Roboflow client.
func New(opts Options) (*Client, error) {
	endpoint := strings.TrimSpace(opts.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("roboflow endpoint is required")
	}
	if _, err := url.Parse(endpoint); err != nil {
		return nil, fmt.Errorf("roboflow endpoint: %w", err)
	}
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, fmt.Errorf("ROBOFLOW_API_KEY is required")
	}
	confidence := opts.Confidence
	if confidence <= 0 {
		confidence = DefaultConfidence
	}
	overlap := opts.Overlap
	if overlap <= 0 {
		overlap = DefaultOverlap
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
		endpoint:   endpoint,
		apiKey:     strings.TrimSpace(opts.APIKey),
		confidence: confidence,
		overlap:    overlap,
		httpClient: httpClient,
	}, nil
}

type detectResponse struct {
	Predictions []classifier.Prediction `json:"predictions"`
}

// Classify posts the base64-encoded image and normalises the predictions.
func (c *Client) Classify(ctx context.Context, image []byte) (classifier.DetectionResult, error) {
	if len(image) == 0 {
		return classifier.DetectionResult{}, upstream.InvalidResponse(serviceName, errors.New("empty image"))
	}

	reqURL, err := c.requestURL()
	if err != nil {
		return classifier.DetectionResult{}, upstream.NetworkError(serviceName, err)
	}
	body := base64.StdEncoding.EncodeToString(image)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, strings.NewReader(body))
	if err != nil {
		return classifier.DetectionResult{}, upstream.NetworkError(serviceName, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		err = c.redactURL(err)
		telemetry.Error("classifier.request_failed", map[string]any{
			"service":     serviceName,
			"error":       err,
			"duration_ms": time.Since(start).Milliseconds(),
		})
		return classifier.DetectionResult{}, upstream.NetworkError(serviceName, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return classifier.DetectionResult{}, upstream.NetworkError(serviceName, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		telemetry.Error("classifier.bad_status", map[string]any{
			"service": serviceName,
			"status":  resp.StatusCode,
		})
		return classifier.DetectionResult{}, upstream.StatusError(serviceName, resp.StatusCode, payload)
	}

	var parsed detectResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return classifier.DetectionResult{}, upstream.InvalidResponse(serviceName, err)
	}

	result := classifier.FromPredictions(parsed.Predictions)
	telemetry.Info("classifier.response", map[string]any{
		"service":     serviceName,
		"predictions": len(parsed.Predictions),
		"detected":    result.Detected,
		"label":       result.LabelOr(""),
		"severity":    string(result.Severity),
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return result, nil
}

func (c *Client) requestURL() (string, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("api_key", c.apiKey)
	q.Set("confidence", strconv.Itoa(c.confidence))
	q.Set("overlap", strconv.Itoa(c.overlap))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// redactURL strips the API key from transport errors, which embed the request URL.
func (c *Client) redactURL(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		urlErr.URL = strings.ReplaceAll(urlErr.URL, c.apiKey, "REDACTED")
		return err
	}
	return errors.New(strings.ReplaceAll(err.Error(), c.apiKey, "REDACTED"))
}

var _ classifier.Client = (*Client)(nil)
