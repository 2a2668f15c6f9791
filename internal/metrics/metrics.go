package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imageeditor_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"route", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "imageeditor_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	redactDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "imageeditor_redact_duration_seconds",
			Help:    "Time spent running the editing pipeline, including encoding.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
	)

	pixelsProcessedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "imageeditor_pixels_processed_total",
			Help: "Total number of source pixels run through the pipeline.",
		},
	)

	redactStepsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imageeditor_redact_steps_total",
			Help: "Number of times each pipeline step ran.",
		},
		[]string{"step"},
	)

	redactErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imageeditor_redact_errors_total",
			Help: "Failed redactions by reason.",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpDurationSeconds,
		redactDurationSeconds,
		pixelsProcessedTotal,
		redactStepsTotal,
		redactErrorsTotal,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// routeLabel keeps label cardinality bounded: unmatched paths collapse to
// "other" instead of echoing whatever a client sent.
func routeLabel(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return "other"
}

// Middleware records request count and duration for each request.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		route := routeLabel(c)
		httpRequestsTotal.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		httpDurationSeconds.WithLabelValues(route, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}

// ObserveRedaction records one successful pipeline run.
func ObserveRedaction(d time.Duration, pixels int, steps []string) {
	redactDurationSeconds.Observe(d.Seconds())
	pixelsProcessedTotal.Add(float64(pixels))
	for _, s := range steps {
		redactStepsTotal.WithLabelValues(s).Inc()
	}
}

func RedactionFailed(reason string) {
	redactErrorsTotal.WithLabelValues(reason).Inc()
}
