package client

import (
	"errors"
	"fmt"
	"time"
)

// Code classifies a pipeline failure. Codes are stable machine-readable
// strings; callers branch on them, presentation layers map them to text.
type Code string

const (
	// CodeTimeout means the per-call deadline elapsed before a response.
	CodeTimeout Code = "timeout"

	// CodeNetworkError covers transport-level failures other than
	// deadline and cancellation: DNS, connection refused, TLS, broken
	// response bodies.
	CodeNetworkError Code = "network_error"

	// CodeCanceled means the caller's context was canceled before a
	// response arrived.
	CodeCanceled Code = "canceled"

	// CodeUnauthorized means the platform rejected the credential and the
	// one refresh-and-retry the pipeline allows did not help, or the call
	// was unauthenticated to begin with.
	CodeUnauthorized Code = "unauthorized"

	// CodeRefreshFailed means the token refresh itself failed. The session
	// is cleared when this is returned; the caller must re-authenticate.
	CodeRefreshFailed Code = "refresh_failed"

	// CodeRateLimited means the platform returned 429. RetryAfter carries
	// the server's backoff hint when it sent one.
	CodeRateLimited Code = "rate_limited"

	// CodeServerError covers every other non-2xx response.
	CodeServerError Code = "server_error"
)

// Failure is the only error type the pipeline returns. Every failure path,
// transport or HTTP, converges to this shape; raw transport errors never
// escape (they remain reachable through Unwrap for diagnostics).
type Failure struct {
	// Code classifies the failure.
	Code Code

	// Message is human-readable detail, preferring the platform's own
	// error message when one was returned.
	Message string

	// Operation is the logical operation label of the request that failed.
	Operation string

	// Status is the HTTP status, or 0 for transport-level failures.
	Status int

	// ServerCode is the platform's machine error code when the response
	// carried one, e.g. "RATE_LIMIT_EXCEEDED" or "INVALID_CREDENTIALS".
	ServerCode string

	// RequestID is the X-Request-ID of the attempt that produced the
	// failure, for correlation with server logs.
	RequestID string

	// RetryAfter is the server's backoff hint on rate limiting, zero when
	// none was given.
	RetryAfter time.Duration

	// Details carries structured detail from the platform's error payload.
	Details map[string]any

	cause error
}

// Error implements the error interface.
func (f *Failure) Error() string {
	msg := f.Message
	if msg == "" && f.cause != nil {
		msg = f.cause.Error()
	}
	switch {
	case msg == "" && f.Status != 0:
		return fmt.Sprintf("lvcop: %s (status %d)", f.Code, f.Status)
	case msg == "":
		return fmt.Sprintf("lvcop: %s", f.Code)
	case f.Status != 0:
		return fmt.Sprintf("lvcop: %s: %s (status %d)", f.Code, msg, f.Status)
	default:
		return fmt.Sprintf("lvcop: %s: %s", f.Code, msg)
	}
}

// Unwrap exposes the underlying cause, if any.
func (f *Failure) Unwrap() error { return f.cause }

// clone copies the failure so the pipeline can decorate a shared outcome
// (one refresh failure fans out to many waiters) without racing.
func (f *Failure) clone() *Failure {
	cp := *f
	return &cp
}

// AsFailure extracts the *Failure from an error chain.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// CodeOf returns the failure code of err, or the empty Code when err is not
// a pipeline failure.
func CodeOf(err error) Code {
	if f, ok := AsFailure(err); ok {
		return f.Code
	}
	return ""
}

// IsTimeout reports whether err is a per-call deadline failure.
func IsTimeout(err error) bool { return CodeOf(err) == CodeTimeout }

// IsCanceled reports whether err is a caller-cancellation failure.
func IsCanceled(err error) bool { return CodeOf(err) == CodeCanceled }

// IsUnauthorized reports whether err is a terminal credential rejection.
func IsUnauthorized(err error) bool { return CodeOf(err) == CodeUnauthorized }

// IsRefreshFailed reports whether err means the session was torn down after
// a failed token refresh.
func IsRefreshFailed(err error) bool { return CodeOf(err) == CodeRefreshFailed }

// IsRateLimited reports whether err is a 429 rejection.
func IsRateLimited(err error) bool { return CodeOf(err) == CodeRateLimited }

// IsRetryable reports whether a later retry of the same call could plausibly
// succeed: timeouts, network errors, rate limiting and 5xx responses. The
// pipeline itself never retries on these; the hint is for callers with their
// own backoff loops.
func IsRetryable(err error) bool {
	f, ok := AsFailure(err)
	if !ok {
		return false
	}
	switch f.Code {
	case CodeTimeout, CodeNetworkError, CodeRateLimited:
		return true
	case CodeServerError:
		return f.Status >= 500
	default:
		return false
	}
}
