package analyses

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrMissingUser   = errors.New("userID is required")
	ErrInvalidStatus = errors.New("invalid status")
	ErrStorage       = errors.New("storage failure")
)

// Cause classifies why an analysis could not run.
type Cause string

const (
	CauseMissingCredentials   Cause = "missing_credentials"
	CauseClassificationFailed Cause = "classification_failed"
)

// AnalysisError is returned by the orchestrator when classification cannot run.
// Recommendation failures never produce one.
type AnalysisError struct {
	Cause   Cause
	Missing []string
	Err     error
}

func (e *AnalysisError) Error() string {
	switch e.Cause {
	case CauseMissingCredentials:
		return "analysis: missing credentials: " + strings.Join(e.Missing, ", ")
	case CauseClassificationFailed:
		return fmt.Sprintf("analysis: classification failed: %v", e.Err)
	default:
		return fmt.Sprintf("analysis: %s: %v", e.Cause, e.Err)
	}
}

func (e *AnalysisError) Unwrap() error {
	return e.Err
}

// IsCause reports whether err is an AnalysisError with the given cause.
func IsCause(err error, cause Cause) bool {
	var ae *AnalysisError
	return errors.As(err, &ae) && ae.Cause == cause
}

const (
	ErrorCodeValidation           = "validation_error"
	ErrorCodeConfiguration        = "configuration_error"
	ErrorCodeClassificationFailed = "classification_failed"
	ErrorCodeNotFound             = "not_found"
	ErrorCodeStorage              = "storage_error"
	ErrorCodeTimeout              = "timeout"
	ErrorCodeInternal             = "internal_error"
)
