// Package metrics instruments outbound dispatches with Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	// OutcomeOK labels successful dispatches.
	OutcomeOK = "ok"
	// OutcomeError labels dispatches that produced an error-text result.
	OutcomeError = "error"
)

var (
	callsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "toolbridge",
		Subsystem: "dispatch",
		Name:      "calls_total",
		Help:      "Dispatched API calls by tool and outcome.",
	}, []string{"tool", "outcome"})

	callDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "toolbridge",
		Subsystem: "dispatch",
		Name:      "call_duration_seconds",
		Help:      "Wall-clock duration of dispatched API calls.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"tool"})
)

// ObserveCall records one finished dispatch.
func ObserveCall(tool, outcome string, d time.Duration) {
	callsTotal.WithLabelValues(tool, outcome).Inc()
	callDuration.WithLabelValues(tool).Observe(d.Seconds())
}

// Handler serves the default Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
