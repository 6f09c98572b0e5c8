package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidhub_http_requests_total",
			Help: "HTTP requests handled, by route pattern and status code",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vidhub_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	HTTPInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vidhub_http_requests_in_flight",
			Help: "HTTP requests currently being served",
		},
	)

	// Auth
	AuthEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidhub_auth_events_total",
			Help: "Token lifecycle events",
		},
		[]string{"event", "outcome"}, // issue, rotate, reuse, verify, revoke
	)

	RateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidhub_rate_limited_total",
			Help: "Requests rejected by the per-IP rate limiter",
		},
		[]string{"route"},
	)

	// Media
	MediaUploads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidhub_media_uploads_total",
			Help: "Media uploads to the object store",
		},
		[]string{"kind", "outcome"},
	)

	MediaUploadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vidhub_media_upload_duration_seconds",
			Help:    "Time spent probing and uploading a media file",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	MediaBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "vidhub_media_breaker_state",
			Help: "Object store circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)
)

// RecordHTTPRequest records a finished request.
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordAuthEvent records a token lifecycle event.
func RecordAuthEvent(event string, err error) {
	AuthEvents.WithLabelValues(event, outcome(err)).Inc()
}

// RecordMediaUpload records an upload attempt for a detected media kind
// (video, image, other).
func RecordMediaUpload(kind string, duration time.Duration, err error) {
	MediaUploads.WithLabelValues(kind, outcome(err)).Inc()
	MediaUploadDuration.Observe(duration.Seconds())
}

func outcome(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
