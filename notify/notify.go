// Package notify delivers request failures to the surfaces that present or
// record them. The client pipeline publishes every normalized failure here
// before the caller sees it, so observers such as status bars, toasts, and
// logs stay informed even when the caller swallows the error.
//
// All sinks implement client.Notifier. Publishing is fire-and-forget: no
// sink may block the pipeline, and the mapping from failure code to
// presentation is a pure lookup, never a control-flow decision.
package notify

import (
	"github.com/aequitas-ai/lvcop-go/client"
)

// Severity grades how prominently a failure should be surfaced.
type Severity string

const (
	// SeverityInfo marks failures that are routine, such as cancellations.
	SeverityInfo Severity = "info"
	// SeverityWarning marks transient failures worth a nudge.
	SeverityWarning Severity = "warning"
	// SeverityError marks failures that need user attention.
	SeverityError Severity = "error"
)

// SeverityOf maps a failure code to its presentation severity.
// Cancellations are routine, transient transport and throttling failures
// are warnings, everything else is an error.
func SeverityOf(code client.Code) Severity {
	switch code {
	case client.CodeCanceled:
		return SeverityInfo
	case client.CodeTimeout, client.CodeNetworkError, client.CodeRateLimited:
		return SeverityWarning
	default:
		return SeverityError
	}
}

// TitleOf maps a failure code to a short human-readable headline.
// Surfaces pair it with the failure's own message for detail.
func TitleOf(code client.Code) string {
	switch code {
	case client.CodeTimeout:
		return "Request timed out"
	case client.CodeNetworkError:
		return "Connection problem"
	case client.CodeCanceled:
		return "Request canceled"
	case client.CodeUnauthorized:
		return "Sign-in required"
	case client.CodeRefreshFailed:
		return "Session expired"
	case client.CodeRateLimited:
		return "Too many requests"
	case client.CodeServerError:
		return "Service error"
	default:
		return "Request failed"
	}
}

// Fanout publishes each failure to every notifier in order. Nil entries
// are skipped.
type Fanout []client.Notifier

// Publish implements client.Notifier.
func (f Fanout) Publish(failure client.Failure) {
	for _, n := range f {
		if n != nil {
			n.Publish(failure)
		}
	}
}
