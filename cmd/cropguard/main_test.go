package main

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"cropguard/internal/analyses"
	"cropguard/internal/classifier"
	"cropguard/internal/shared/config"
	"cropguard/internal/shared/telemetry"
)

type stubAnalyzer struct {
	calls atomic.Int32
}

// Analyze sleeps longer for earlier files so completion order differs from input order.
func (s *stubAnalyzer) Analyze(ctx context.Context, img []byte, ref string) (analyses.AnalysisReport, error) {
	s.calls.Add(1)
	delay := map[string]time.Duration{"a.png": 30 * time.Millisecond, "b.png": 10 * time.Millisecond}[ref]
	time.Sleep(delay)
	label := "Tomato_" + ref
	return analyses.AnalysisReport{
		DetectionResult: classifier.DetectionResult{Detected: true, Label: &label, ConfidenceScore: 0.9, Severity: classifier.SeverityHigh},
		PestName:        label,
		CropType:        "Tomato",
		ImageReference:  ref,
	}, nil
}

func writePNG(t *testing.T, dir, name string) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 3, 3))))
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, buf.Bytes(), 0o644))
	return p
}

func keyedConfig() config.Config {
	return config.Config{
		MaxImageBytes: 1 << 20,
		Tunables:      config.DefaultTunables(),
		Credentials:   config.Credentials{ClassifierAPIKey: "rf", RecommenderAPIKey: "gq"},
	}
}

func TestAnalyzeKeepsInputOrder(t *testing.T) {
	dir := t.TempDir()
	paths := []string{writePNG(t, dir, "a.png"), writePNG(t, dir, "b.png"), writePNG(t, dir, "c.png")}
	stub := &stubAnalyzer{}

	var out bytes.Buffer
	root := newRootCmd(&out, keyedConfig, func(config.Config) (imageAnalyzer, error) { return stub, nil })
	root.SetArgs(append([]string{"analyze", "--json", "--concurrency", "3"}, paths...))
	require.NoError(t, root.Execute())

	var results []fileResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &results))
	require.Len(t, results, 3)
	for i, r := range results {
		assert.Equal(t, paths[i], r.Path)
		require.NotNil(t, r.Report)
		assert.Equal(t, filepath.Base(paths[i]), r.Report.ImageReference)
	}
	assert.Equal(t, int32(3), stub.calls.Load())
}

func TestAnalyzeReportsPerFileErrors(t *testing.T) {
	dir := t.TempDir()
	good := writePNG(t, dir, "c.png")
	bad := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(bad, []byte("just some notes"), 0o644))
	stub := &stubAnalyzer{}

	var out bytes.Buffer
	root := newRootCmd(&out, keyedConfig, func(config.Config) (imageAnalyzer, error) { return stub, nil })
	root.SetArgs([]string{"analyze", bad, good})
	err := root.Execute()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 analyses failed")
	assert.Contains(t, out.String(), "notes.txt: error:")
	assert.Contains(t, out.String(), "severity=high confidence=90.0% IMMEDIATE ACTION")
	assert.Equal(t, int32(1), stub.calls.Load())
}

func TestAnalyzeFailsFastWithoutCredentials(t *testing.T) {
	built := false
	var out bytes.Buffer
	root := newRootCmd(&out, func() config.Config { return config.Config{} }, func(config.Config) (imageAnalyzer, error) {
		built = true
		return &stubAnalyzer{}, nil
	})
	root.SetArgs([]string{"analyze", "leaf.png"})
	err := root.Execute()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "ROBOFLOW_API_KEY, GROQ_API_KEY")
	assert.False(t, built)
}

func TestCheckConfig(t *testing.T) {
	var out bytes.Buffer
	cfg := keyedConfig()
	cfg.Port = "8080"
	cfg.UpstreamTimeout = time.Second
	root := newRootCmd(&out, func() config.Config { return cfg }, buildAnalyzer)
	root.SetArgs([]string{"check-config"})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "ok")

	out.Reset()
	cfg.Credentials = config.Credentials{}
	root = newRootCmd(&out, func() config.Config { return cfg }, buildAnalyzer)
	root.SetArgs([]string{"check-config"})
	require.Error(t, root.Execute())
	assert.Contains(t, out.String(), "missing credentials: ROBOFLOW_API_KEY, GROQ_API_KEY")
}

func TestConfigLogLevelAppliesWithoutFlag(t *testing.T) {
	t.Cleanup(func() { telemetry.SetLevel("info") })
	telemetry.SetLevel("info")

	cfg := keyedConfig()
	cfg.Port = "8080"
	cfg.UpstreamTimeout = time.Second
	cfg.LogLevel = "debug"

	var out bytes.Buffer
	root := newRootCmd(&out, func() config.Config { return cfg }, buildAnalyzer)
	root.SetArgs([]string{"check-config"})
	_ = root.Execute()
	assert.True(t, telemetry.Logger().Core().Enabled(zapcore.DebugLevel), "LOG_LEVEL from config should reach the logger")

	root = newRootCmd(&out, func() config.Config { return cfg }, buildAnalyzer)
	root.SetArgs([]string{"check-config", "--log-level", "error"})
	_ = root.Execute()
	assert.False(t, telemetry.Logger().Core().Enabled(zapcore.WarnLevel), "--log-level overrides the config value")
}
