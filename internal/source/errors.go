package source

import (
	"errors"
	"fmt"
)

var (
	ErrNotConfigured      = errors.New("source_not_configured")
	ErrSourceUnavailable  = errors.New("source_unavailable")
	ErrSourceRejected     = errors.New("source_rejected")
	ErrUnsupportedPayload = errors.New("source_unsupported_payload")
)

// UnavailableError is returned once every attempt failed with a retryable
// error. Cause is the last failure.
type UnavailableError struct {
	Attempts int
	Cause    error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("source unavailable after %d attempt(s): %v", e.Attempts, e.Cause)
}

func (e *UnavailableError) Unwrap() []error {
	return []error{ErrSourceUnavailable, e.Cause}
}

func (e *UnavailableError) MetricReason() string { return "source_unavailable" }

// RejectedError reports a 4xx answer. These are never retried.
type RejectedError struct {
	StatusCode int
	Body       string
}

func (e *RejectedError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("source rejected request: status %d", e.StatusCode)
	}
	return fmt.Sprintf("source rejected request: status %d: %s", e.StatusCode, e.Body)
}

func (e *RejectedError) Is(target error) bool { return target == ErrSourceRejected }

func (e *RejectedError) MetricReason() string { return "source_rejected" }

// serverError is a 5xx answer; retryable.
type serverError struct {
	StatusCode int
}

func (e *serverError) Error() string {
	return fmt.Sprintf("source server error: status %d", e.StatusCode)
}
