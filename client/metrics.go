package client

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the pipeline's Prometheus collectors. A nil *Metrics is
// valid and records nothing, so instrumentation stays optional.
type Metrics struct {
	requests  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	refreshes *prometheus.CounterVec
}

// NewMetrics creates the pipeline collectors and registers them with reg.
// Pass prometheus.DefaultRegisterer to expose them through the default
// handler, or a private registry in tests.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "lvcop",
				Subsystem: "client",
				Name:      "requests_total",
				Help:      "Total number of pipeline calls by operation and outcome code.",
			},
			[]string{"operation", "code"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "lvcop",
				Subsystem: "client",
				Name:      "request_duration_seconds",
				Help:      "End-to-end duration of pipeline calls, refresh and retry included.",
				Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
			},
			[]string{"operation"},
		),
		refreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "lvcop",
				Subsystem: "client",
				Name:      "token_refreshes_total",
				Help:      "Token refresh attempts by outcome.",
			},
			[]string{"outcome"},
		),
	}

	if reg != nil {
		for _, col := range []prometheus.Collector{m.requests, m.duration, m.refreshes} {
			if err := reg.Register(col); err != nil {
				return nil, fmt.Errorf("lvcop: register collector: %w", err)
			}
		}
	}
	return m, nil
}

func (m *Metrics) observeRequest(operation, code string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(operation, code).Inc()
	m.duration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

func (m *Metrics) observeRefresh(outcome string) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(outcome).Inc()
}
