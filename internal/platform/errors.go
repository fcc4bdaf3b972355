package platform

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/yourusername/research-lab/internal/models"
)

var (
	// ErrUnavailable indicates the platform is unreachable
	ErrUnavailable = errors.New("training platform unavailable")

	// ErrJobFailed indicates the remote job finished unsuccessfully
	ErrJobFailed = errors.New("platform job failed")

	// ErrJobNotFound indicates the platform does not know the job id
	ErrJobNotFound = errors.New("platform job not found")

	// ErrInvalidResponse indicates a malformed platform response
	ErrInvalidResponse = errors.New("invalid response from training platform")
)

// Error carries a structured cause alongside the underlying failure.
type Error struct {
	Op    string
	Cause models.ErrorCause
	Err   error
}

func (e *Error) Error() string {
	if e.Cause == models.ErrorCauseUnknown {
		return fmt.Sprintf("platform %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("platform %s (%s): %v", e.Op, e.Cause, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps err with an operation and cause.
func NewError(op string, cause models.ErrorCause, err error) *Error {
	return &Error{Op: op, Cause: cause, Err: err}
}

// CauseOf extracts the structured cause from anywhere in err's chain.
func CauseOf(err error) models.ErrorCause {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Cause
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return models.ErrorCauseTimeout
	}
	return models.ErrorCauseUnknown
}

// classifyTransport maps a transport-level failure to a cause.
func classifyTransport(err error) models.ErrorCause {
	if errors.Is(err, context.DeadlineExceeded) {
		return models.ErrorCauseTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return models.ErrorCauseTimeout
	}
	return models.ErrorCauseNetwork
}

// classifyStatus maps an HTTP status code to a cause.
func classifyStatus(code int) models.ErrorCause {
	switch {
	case code == http.StatusBadRequest, code == http.StatusUnprocessableEntity:
		return models.ErrorCauseParameter
	case code == http.StatusRequestTimeout, code == http.StatusGatewayTimeout:
		return models.ErrorCauseTimeout
	case code >= 500:
		return models.ErrorCauseRemote
	default:
		return models.ErrorCauseUnknown
	}
}
