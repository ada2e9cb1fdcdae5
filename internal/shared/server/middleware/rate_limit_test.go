package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func limitedRouter(limiter *RateLimiter, rules map[string]RateLimitRule) *gin.Engine {
	r := gin.New()
	_ = r.SetTrustedProxies(nil)
	r.Use(Identity())
	r.Use(RateLimit(RateLimitConfig{
		DefaultGroup: "READ",
		GroupFor: func(c *gin.Context) string {
			if c.Request.Method == http.MethodPost && c.FullPath() == "/api/v1/analyses" {
				return "ANALYZE"
			}
			return "READ"
		},
		Limiter: limiter,
		Rules:   rules,
	}))
	r.GET("/api/v1/analyses/:id", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	r.POST("/api/v1/analyses", func(c *gin.Context) {
		c.JSON(http.StatusCreated, gin.H{"ok": true})
	})
	return r
}

func doRequest(r http.Handler, method, path, ip, userID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = ip + ":40000"
	if userID != "" {
		req.Header.Set("X-User-Id", userID)
	}
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestRateLimitOnlyLimitsConfiguredGroups(t *testing.T) {
	gin.SetMode(gin.TestMode)
	now := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(func() time.Time { return now })
	r := limitedRouter(limiter, map[string]RateLimitRule{
		"ANALYZE": {Rate: 0.5, Burst: 2},
	})

	for i := 0; i < 5; i++ {
		if resp := doRequest(r, http.MethodGet, "/api/v1/analyses/a1", "198.51.100.1", "u1"); resp.Code != http.StatusOK {
			t.Fatalf("read request %d expected 200, got %d", i+1, resp.Code)
		}
	}
	for i := 0; i < 2; i++ {
		if resp := doRequest(r, http.MethodPost, "/api/v1/analyses", "198.51.100.1", "u1"); resp.Code != http.StatusCreated {
			t.Fatalf("analyze request %d expected 201, got %d", i+1, resp.Code)
		}
	}
	if resp := doRequest(r, http.MethodPost, "/api/v1/analyses", "198.51.100.1", "u1"); resp.Code != http.StatusTooManyRequests {
		t.Fatalf("analyze request 3 expected 429, got %d", resp.Code)
	}
	if resp := doRequest(r, http.MethodPost, "/api/v1/analyses", "198.51.100.2", "u1"); resp.Code != http.StatusCreated {
		t.Fatalf("other address expected 201, got %d", resp.Code)
	}
}

func TestRateLimitIgnoresRotatingIdentityHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)
	now := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(func() time.Time { return now })
	r := limitedRouter(limiter, map[string]RateLimitRule{
		"ANALYZE": {Rate: 0.5, Burst: 1},
	})

	limited := 0
	for i := 0; i < 10; i++ {
		resp := doRequest(r, http.MethodPost, "/api/v1/analyses", "203.0.113.7", fmt.Sprintf("u%d", i))
		if resp.Code == http.StatusTooManyRequests {
			limited++
		}
	}
	if limited != 9 {
		t.Fatalf("expected 9 rejected requests across rotating identities, got %d", limited)
	}
}

func TestRateLimit429IncludesRetryAfter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	now := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(func() time.Time { return now })
	r := limitedRouter(limiter, map[string]RateLimitRule{
		"ANALYZE": {Rate: 0.5, Burst: 1},
	})

	if resp := doRequest(r, http.MethodPost, "/api/v1/analyses", "198.51.100.1", "u1"); resp.Code != http.StatusCreated {
		t.Fatalf("expected first request 201, got %d", resp.Code)
	}
	resp := doRequest(r, http.MethodPost, "/api/v1/analyses", "198.51.100.1", "u1")
	if resp.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", resp.Code)
	}
	if got := resp.Header().Get("Retry-After"); got != "2" {
		t.Fatalf("expected Retry-After 2, got %q", got)
	}

	var payload struct {
		Error struct {
			Code    string         `json:"code"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Error.Code != "rate_limited" {
		t.Fatalf("expected code=rate_limited, got %q", payload.Error.Code)
	}
	if _, ok := payload.Error.Details["retryAfterMs"]; !ok {
		t.Fatalf("expected retryAfterMs in details")
	}
}

func TestRateLimiterRefillsOverTime(t *testing.T) {
	now := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(func() time.Time { return now })
	rule := RateLimitRule{Rate: 1, Burst: 1}

	if ok, _ := limiter.Allow("k", rule); !ok {
		t.Fatalf("expected first token")
	}
	if ok, wait := limiter.Allow("k", rule); ok || wait <= 0 {
		t.Fatalf("expected rejection with wait, got ok=%v wait=%s", ok, wait)
	}
	now = now.Add(time.Second)
	if ok, _ := limiter.Allow("k", rule); !ok {
		t.Fatalf("expected token after refill")
	}
}

func TestRateLimiterZeroRuleAllows(t *testing.T) {
	limiter := NewRateLimiter(nil)
	for i := 0; i < 10; i++ {
		if ok, _ := limiter.Allow("k", RateLimitRule{}); !ok {
			t.Fatalf("zero rule must not limit")
		}
	}
}
