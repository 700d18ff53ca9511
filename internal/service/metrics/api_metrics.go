package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	APILatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "levelscope",
			Subsystem: "api",
			Name:      "latency_seconds",
			Help:      "Latency of API endpoints",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 14),
		},
		[]string{"endpoint"},
	)

	APIErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "levelscope",
			Subsystem: "api",
			Name:      "errors_total",
			Help:      "Errors by API endpoint",
		},
		[]string{"endpoint"},
	)

	ActiveStreams = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "levelscope",
			Subsystem: "api",
			Name:      "active_streams",
			Help:      "Open websocket trade streams",
		},
	)
)

// Register adds the API collectors to the default registry once.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(APILatency, APIErrors, ActiveStreams)
	})
}

// Observe records one endpoint call; statuses of 400 and above count as errors.
func Observe(endpoint string, start time.Time, status int) {
	APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if status >= 400 {
		APIErrors.WithLabelValues(endpoint).Inc()
	}
}
