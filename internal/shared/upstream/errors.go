// Package upstream holds the error taxonomy shared by the remote service clients.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Kind categorises a failed remote call.
type Kind string

const (
	KindNetwork         Kind = "network"
	KindHTTPStatus      Kind = "http_status"
	KindInvalidResponse Kind = "invalid_response"
)

// ServiceError reports a remote call that could not be completed.
type ServiceError struct {
	Service    string
	Kind       Kind
	StatusCode int
	Message    string
	Cause      error
}

func (e *ServiceError) Error() string {
	var b strings.Builder
	b.WriteString(e.Service)
	b.WriteString(" ")
	b.WriteString(string(e.Kind))
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " status=%d", e.StatusCode)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *ServiceError) Unwrap() error {
	return e.Cause
}

// Timeout reports whether the failure was a deadline or client timeout.
func (e *ServiceError) Timeout() bool {
	if e == nil || e.Kind != KindNetwork || e.Cause == nil {
		return false
	}
	if errors.Is(e.Cause, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(e.Cause, &netErr) && netErr.Timeout()
}

// NetworkError wraps a transport failure.
func NetworkError(service string, cause error) *ServiceError {
	return &ServiceError{Service: service, Kind: KindNetwork, Cause: cause}
}

// StatusError reports a non-2xx response. body is truncated for the message.
func StatusError(service string, status int, body []byte) *ServiceError {
	return &ServiceError{Service: service, Kind: KindHTTPStatus, StatusCode: status, Message: truncate(strings.TrimSpace(string(body)), 256)}
}

// InvalidResponse reports a body that could not be decoded.
func InvalidResponse(service string, cause error) *ServiceError {
	return &ServiceError{Service: service, Kind: KindInvalidResponse, Cause: cause}
}

// IsKind reports whether err is a ServiceError of the given kind.
func IsKind(err error, kind Kind) bool {
	var svcErr *ServiceError
	return errors.As(err, &svcErr) && svcErr.Kind == kind
}

// ParseError reports generated text that could not be turned into a structured value.
type ParseError struct {
	Stage string
	Cause error
}

func (e *ParseError) Error() string {
	if e.Cause == nil {
		return "parse " + e.Stage
	}
	return "parse " + e.Stage + ": " + e.Cause.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
