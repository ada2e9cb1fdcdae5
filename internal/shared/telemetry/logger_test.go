package telemetry

import (
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestInfoWritesFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	prev := Logger()
	Use(zap.New(core))
	t.Cleanup(func() { Use(prev) })

	Info("analysis.completed", map[string]any{
		"analysis_id": "a-1",
		"severity":    "high",
		"err":         errors.New("boom"),
	})

	entries := logs.FilterMessage("analysis.completed").All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	ctx := entries[0].ContextMap()
	if ctx["analysis_id"] != "a-1" {
		t.Fatalf("analysis_id = %v", ctx["analysis_id"])
	}
	if ctx["err"] != "boom" {
		t.Fatalf("err = %v, want boom", ctx["err"])
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{in: "debug", want: zapcore.DebugLevel},
		{in: " WARN ", want: zapcore.WarnLevel},
		{in: "error", want: zapcore.ErrorLevel},
		{in: "", want: zapcore.InfoLevel},
		{in: "verbose", want: zapcore.InfoLevel},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Fatalf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestUseNilInstallsNop(t *testing.T) {
	prev := Logger()
	t.Cleanup(func() { Use(prev) })

	Use(nil)
	if Logger() == nil {
		t.Fatalf("expected non-nil logger")
	}
	Error("ignored", nil)
}
