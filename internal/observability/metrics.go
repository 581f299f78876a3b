package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registerOnce sync.Once

	framesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dmxctl",
			Subsystem: "engine",
			Name:      "frames_sent_total",
			Help:      "Complete DMX frames written to the transport.",
		},
		[]string{"session"},
	)
	frameDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dmxctl",
			Subsystem: "engine",
			Name:      "frame_duration_seconds",
			Help:      "Break-to-last-slot duration of one frame.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"session"},
	)
	transportErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dmxctl",
			Subsystem: "engine",
			Name:      "transport_errors_total",
			Help:      "Transport failures by frame phase.",
		},
		[]string{"session", "phase"},
	)
	deadlineMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dmxctl",
			Subsystem: "engine",
			Name:      "deadline_misses_total",
			Help:      "Frame cycles that overran the configured period.",
		},
		[]string{"session"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(framesSent, frameDuration, transportErrors, deadlineMisses)
	})
}

// MetricsHandler returns the scrape endpoint for the engine metrics,
// registering them first so an idle session still exposes its series.
func MetricsHandler() http.Handler {
	RegisterMetrics()
	return promhttp.Handler()
}

func RecordFrame(session string, duration time.Duration) {
	RegisterMetrics()
	framesSent.WithLabelValues(session).Inc()
	frameDuration.WithLabelValues(session).Observe(duration.Seconds())
}

func RecordTransportError(session, phase string) {
	RegisterMetrics()
	transportErrors.WithLabelValues(session, phase).Inc()
}

func RecordDeadlineMiss(session string) {
	RegisterMetrics()
	deadlineMisses.WithLabelValues(session).Inc()
}
