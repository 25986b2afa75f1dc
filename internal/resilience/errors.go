package resilience

import (
	"errors"
	"net"
	"strings"
	"syscall"
)

// TransientError marks an error as safe to retry (rate limits, 5xx,
// network timeouts).
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string {
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps an error as transient with an optional HTTP
// status code.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// IsTransient reports whether the error chain contains a TransientError
// or matches common transient network failures.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	// Wrapped errors from HTTP clients lose their type, so fall back to
	// message heuristics.
	msg := strings.ToLower(err.Error())
	for _, p := range []string{
		"connection reset by peer",
		"broken pipe",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
	} {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// IsTransientHTTPStatus reports whether the status code indicates a
// server-side condition that is safe to retry.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
