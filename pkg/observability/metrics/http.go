package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Request series are labelled by route pattern ("/item/:id"), never the raw path.
var (
	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Latency of public API requests by route and status.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Public API requests by route and status.",
	}, []string{"method", "path", "status"})

	requestsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "http_requests_in_flight",
		Help: "Public API requests currently being served.",
	})

	rateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_rate_limited_total",
		Help: "Requests answered 429 by the rate limiter.",
	}, []string{"method", "path"})
)

// ObserveRequest records one finished request.
func ObserveRequest(method, route string, status int, elapsed time.Duration) {
	code := strconv.Itoa(status)
	requestDuration.WithLabelValues(method, route, code).Observe(elapsed.Seconds())
	requestsTotal.WithLabelValues(method, route, code).Inc()
}

// TrackInFlight counts a request as in flight until the returned func is called.
func TrackInFlight() (done func()) {
	requestsInFlight.Inc()
	return requestsInFlight.Dec
}

func RecordRateLimited(method, route string) {
	rateLimited.WithLabelValues(method, route).Inc()
}
