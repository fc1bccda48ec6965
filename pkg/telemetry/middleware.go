package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"thoughtpost/pkg/logger"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "thoughtpost_http_requests_total",
		Help: "HTTP requests by method and status code.",
	}, []string{"method", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "thoughtpost_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})
)

// Middleware records request counts and latency for every HTTP request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		srw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(srw, r)
		httpRequests.WithLabelValues(r.Method, strconv.Itoa(srw.status)).Inc()
		httpDuration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
		logger.Debug("http_request", "method", r.Method, "path", r.URL.Path,
			"status", srw.status, "duration", time.Since(start).String(),
			"headers", logger.SafeHeaders(r))
	})
}

// statusRecorder captures the response status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
