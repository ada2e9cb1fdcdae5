package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersIncrement(t *testing.T) {
	Register()

	before := testutil.ToFloat64(recommendationsTotal.WithLabelValues("fallback"))
	IncRecommendation("fallback")
	IncRecommendation("fallback")
	assert.Equal(t, before+2, testutil.ToFloat64(recommendationsTotal.WithLabelValues("fallback")))

	beforeFailed := testutil.ToFloat64(analysisFailedTotal.WithLabelValues("classification_failed"))
	IncAnalysisFailed("classification_failed")
	assert.Equal(t, beforeFailed+1, testutil.ToFloat64(analysisFailedTotal.WithLabelValues("classification_failed")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)
	IncAnalysisStarted()
	IncAnalysisCompleted("high")
	IncUpstreamError("roboflow", "network")
	ObserveAnalysisDuration(1500 * time.Millisecond)

	r := gin.New()
	r.GET("/metrics", Handler())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	for _, name := range []string{
		"cropguard_analysis_started_total",
		`cropguard_analysis_completed_total{severity="high"}`,
		`cropguard_upstream_errors_total{kind="network",service="roboflow"}`,
		"cropguard_analysis_duration_seconds_bucket",
		"go_goroutines",
	} {
		assert.True(t, strings.Contains(body, name), "missing %s", name)
	}
}

func TestRegisterIsIdempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		Register()
		Register()
	})
	_, err := Gatherer().Gather()
	assert.NoError(t, err)
}
