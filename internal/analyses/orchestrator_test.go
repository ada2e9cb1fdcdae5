package analyses

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"cropguard/internal/classifier"
	"cropguard/internal/classifier/roboflow"
	"cropguard/internal/llm/openai"
	"cropguard/internal/recommendations"
	"cropguard/internal/shared/config"
	"cropguard/internal/shared/upstream"
)

var bothKeys = config.Credentials{ClassifierAPIKey: "rf", RecommenderAPIKey: "gq"}

type fakeClassifier struct {
	calls  atomic.Int32
	result classifier.DetectionResult
	err    error
}

func (f *fakeClassifier) Classify(ctx context.Context, image []byte) (classifier.DetectionResult, error) {
	f.calls.Add(1)
	return f.result, f.err
}

type fakeRecommender struct {
	calls atomic.Int32
	got   classifier.DetectionResult
	mu    sync.Mutex
}

func (f *fakeRecommender) Recommend(ctx context.Context, d classifier.DetectionResult) recommendations.Result {
	f.calls.Add(1)
	f.mu.Lock()
	f.got = d
	f.mu.Unlock()
	return recommendations.Fallback(d.Detected)
}

func TestAnalyzeTomatoEarlyBlight(t *testing.T) {
	cls := &fakeClassifier{result: classifier.FromPredictions([]classifier.Prediction{{Class: "Tomato_Early_Blight", Confidence: 92}})}
	rec := &fakeRecommender{}
	o := NewOrchestrator(bothKeys, cls, rec, nil)
	fixed := time.Date(2026, 5, 1, 12, 0, 0, 0, time.FixedZone("X", 3600))
	o.now = func() time.Time { return fixed }

	report, err := o.Analyze(context.Background(), []byte("img"), "leaf.jpg")
	require.NoError(t, err)
	assert.Equal(t, classifier.SeverityHigh, report.Severity)
	assert.Equal(t, "Tomato", report.CropType)
	assert.True(t, report.ImmediateActionNeeded)
	assert.Equal(t, "Tomato_Early_Blight", report.PestName)
	assert.Equal(t, SourceTag, report.SourceTag)
	assert.Equal(t, "leaf.jpg", report.ImageReference)
	assert.Equal(t, fixed.UTC(), report.ProducedAt)
	assert.Equal(t, time.UTC, report.ProducedAt.Location())
	assert.Equal(t, recommendations.DetectedFallbackTreatment, report.Treatment)
}

func TestAnalyzeNoDetection(t *testing.T) {
	cls := &fakeClassifier{result: classifier.NoDetection()}
	rec := &fakeRecommender{}
	report, err := NewOrchestrator(bothKeys, cls, rec, nil).Analyze(context.Background(), []byte("img"), "")
	require.NoError(t, err)
	assert.False(t, report.Detected)
	assert.Nil(t, report.Label)
	assert.Equal(t, classifier.SeverityNone, report.Severity)
	assert.Equal(t, "Unknown", report.CropType)
	assert.Equal(t, NoDiseaseName, report.PestName)
	assert.False(t, report.ImmediateActionNeeded)
	assert.False(t, rec.got.Detected)
}

func TestAnalyzeMissingCredentialsMakesNoCalls(t *testing.T) {
	tests := []struct {
		name    string
		creds   config.Credentials
		missing []string
	}{
		{name: "none", creds: config.Credentials{}, missing: []string{"ROBOFLOW_API_KEY", "GROQ_API_KEY"}},
		{name: "classifier", creds: config.Credentials{RecommenderAPIKey: "gq"}, missing: []string{"ROBOFLOW_API_KEY"}},
		{name: "recommender", creds: config.Credentials{ClassifierAPIKey: "rf"}, missing: []string{"GROQ_API_KEY"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cls := &fakeClassifier{}
			rec := &fakeRecommender{}
			_, err := NewOrchestrator(tt.creds, cls, rec, nil).Analyze(context.Background(), []byte("img"), "")

			var ae *AnalysisError
			require.True(t, errors.As(err, &ae), "got %v", err)
			assert.Equal(t, CauseMissingCredentials, ae.Cause)
			assert.Equal(t, tt.missing, ae.Missing)
			assert.Equal(t, int32(0), cls.calls.Load())
			assert.Equal(t, int32(0), rec.calls.Load())
		})
	}
}

func TestAnalyzeClassificationFailure(t *testing.T) {
	cause := upstream.StatusError("roboflow", 500, []byte("down"))
	cls := &fakeClassifier{err: cause}
	rec := &fakeRecommender{}
	_, err := NewOrchestrator(bothKeys, cls, rec, nil).Analyze(context.Background(), []byte("img"), "")

	assert.True(t, IsCause(err, CauseClassificationFailed))
	assert.True(t, upstream.IsKind(err, upstream.KindHTTPStatus))
	assert.Equal(t, int32(0), rec.calls.Load())
}

func TestAnalyzeImmediateActionIffHigh(t *testing.T) {
	for c := 0.0; c <= 100; c += 5 {
		cls := &fakeClassifier{result: classifier.FromPredictions([]classifier.Prediction{{Class: "Apple_Scab", Confidence: c}})}
		report, err := NewOrchestrator(bothKeys, cls, &fakeRecommender{}, nil).Analyze(context.Background(), []byte("img"), "")
		require.NoError(t, err)
		assert.Equal(t, report.Severity == classifier.SeverityHigh, report.ImmediateActionNeeded, "confidence %v", c)
	}
}

func TestAnalyzeCancelledContextDiscardsResult(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cls := &fakeClassifier{result: classifier.NoDetection()}
	rec := &cancellingRecommender{cancel: cancel}
	_, err := NewOrchestrator(bothKeys, cls, rec, nil).Analyze(ctx, []byte("img"), "")
	assert.ErrorIs(t, err, context.Canceled)
}

type cancellingRecommender struct {
	cancel context.CancelFunc
}

func (c *cancellingRecommender) Recommend(ctx context.Context, d classifier.DetectionResult) recommendations.Result {
	c.cancel()
	return recommendations.Fallback(d.Detected)
}

func TestAnalyzeEndToEndOverHTTP(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	defer http.DefaultTransport.(*http.Transport).CloseIdleConnections()

	rf := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"predictions":[{"class":"Potato_Late_Blight","confidence":71.5}]}`))
	}))
	defer rf.Close()
	groq := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"I cannot tell much from this photo."}}]}`))
	}))
	defer groq.Close()

	cls, err := roboflow.New(roboflow.Options{Endpoint: rf.URL, APIKey: "rf"})
	require.NoError(t, err)
	gq, err := openai.NewClient(openai.Options{BaseURL: groq.URL, APIKey: "gq"})
	require.NoError(t, err)

	o := NewOrchestrator(bothKeys, cls, recommendations.NewRecommender(gq), nil)

	var wg sync.WaitGroup
	reports := make([]AnalysisReport, 8)
	errs := make([]error, 8)
	for i := range reports {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			reports[i], errs[i] = o.Analyze(context.Background(), []byte("img"), "")
		}(i)
	}
	wg.Wait()

	for i := range reports {
		require.NoError(t, errs[i])
		assert.Equal(t, classifier.SeverityModerate, reports[i].Severity)
		assert.Equal(t, "Potato", reports[i].CropType)
		assert.Equal(t, recommendations.SourceFallback, reports[i].Source)
		assert.Equal(t, recommendations.DetectedFallbackTreatment, reports[i].Treatment)
	}
}
