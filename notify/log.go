package notify

import (
	"github.com/aequitas-ai/lvcop-go/client"
	"github.com/aequitas-ai/lvcop-go/pkg/logger"
)

// LogSink writes failures to a structured logger at a level derived from
// the failure code.
type LogSink struct {
	log *logger.Logger
}

// NewLogSink creates a sink over log. A nil log falls back to the default
// logger.
func NewLogSink(log *logger.Logger) *LogSink {
	if log == nil {
		log = logger.NewDefault("lvcop")
	}
	return &LogSink{log: log}
}

// Publish implements client.Notifier.
func (s *LogSink) Publish(failure client.Failure) {
	entry := s.log.WithField("code", string(failure.Code))
	if failure.Operation != "" {
		entry = entry.WithField("operation", failure.Operation)
	}
	if failure.RequestID != "" {
		entry = entry.WithField("request_id", failure.RequestID)
	}
	if failure.Status != 0 {
		entry = entry.WithField("status", failure.Status)
	}
	if failure.RetryAfter > 0 {
		entry = entry.WithField("retry_after", failure.RetryAfter.String())
	}

	switch SeverityOf(failure.Code) {
	case SeverityInfo:
		entry.Debug(failure.Message)
	case SeverityWarning:
		entry.Warn(failure.Message)
	default:
		entry.Error(failure.Message)
	}
}
