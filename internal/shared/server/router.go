package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cropguard/internal/analyses"
	"cropguard/internal/services/health"
	"cropguard/internal/shared/config"
	"cropguard/internal/shared/metrics"
	"cropguard/internal/shared/server/middleware"
	"cropguard/internal/shared/server/respond"
	"cropguard/internal/shared/telemetry"
)

const analyzeGroup = "ANALYZE"

// RouterDeps carries the handlers the router mounts.
type RouterDeps struct {
	Config          config.Config
	AnalysisHandler *analyses.Handler
	Health          *health.Service
	Limiter         *middleware.RateLimiter
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	cfg := deps.Config
	// ClientIP keys the rate limiter, so forwarding headers count only from
	// listed proxies.
	if err := r.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		telemetry.Warn("router.trusted_proxies_invalid", map[string]any{"error": err})
		_ = r.SetTrustedProxies(nil)
	}

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(cfg.CORSAllowOrigin),
		middleware.Identity(),
		middleware.RateLimit(middleware.RateLimitConfig{
			Limiter: deps.Limiter,
			GroupFor: func(c *gin.Context) string {
				if c.Request.Method == http.MethodPost && c.FullPath() == "/api/v1/analyses" {
					return analyzeGroup
				}
				return ""
			},
			Rules: map[string]middleware.RateLimitRule{
				analyzeGroup: {Rate: cfg.RateLimitRPS, Burst: cfg.RateLimitBurst},
			},
		}),
	)

	metrics.Register()
	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		if deps.Health == nil {
			respond.OK(c, gin.H{"ok": true})
			return
		}
		status := deps.Health.Status(c.Request.Context())
		code := http.StatusOK
		if !status.OK {
			code = http.StatusServiceUnavailable
		}
		respond.JSON(c, code, status)
	})
	if deps.AnalysisHandler != nil {
		deps.AnalysisHandler.RegisterRoutes(api)
	}

	return r
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
