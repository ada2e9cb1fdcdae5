package upstream

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestServiceErrorMessageAndUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("classify: %w", NetworkError("roboflow", cause))

	if !errors.Is(err, cause) {
		t.Fatalf("expected errors.Is to reach cause")
	}
	if !IsKind(err, KindNetwork) {
		t.Fatalf("expected network kind")
	}
	if IsKind(err, KindHTTPStatus) {
		t.Fatalf("did not expect http_status kind")
	}
	if got := err.Error(); got != "classify: roboflow network: connection refused" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestStatusErrorTruncatesBody(t *testing.T) {
	err := StatusError("groq", 503, []byte(strings.Repeat("x", 400)))
	if err.StatusCode != 503 {
		t.Fatalf("status = %d", err.StatusCode)
	}
	if len(err.Message) != 256+len("...") {
		t.Fatalf("message length = %d", len(err.Message))
	}
	if !strings.HasPrefix(err.Error(), "groq http_status status=503: ") {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestTimeout(t *testing.T) {
	if !NetworkError("roboflow", fmt.Errorf("do: %w", context.DeadlineExceeded)).Timeout() {
		t.Fatalf("expected deadline to be a timeout")
	}
	if NetworkError("roboflow", errors.New("reset")).Timeout() {
		t.Fatalf("did not expect plain error to be a timeout")
	}
	if InvalidResponse("roboflow", context.DeadlineExceeded).Timeout() {
		t.Fatalf("invalid responses are never timeouts")
	}
}

func TestParseError(t *testing.T) {
	err := &ParseError{Stage: "json", Cause: errors.New("unexpected EOF")}
	if err.Error() != "parse json: unexpected EOF" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	var pe *ParseError
	if !errors.As(fmt.Errorf("wrap: %w", err), &pe) || pe.Stage != "json" {
		t.Fatalf("expected errors.As to find ParseError")
	}
}
