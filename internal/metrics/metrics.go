// Package metrics exposes Prometheus collectors for the HTTP surface, the
// classification pipeline, the catalog and batch streams.
package metrics

import (
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ssa_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ssa_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	rateLimitedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ssa_http_rate_limited_total",
			Help: "Requests rejected by the per-client rate limiter.",
		},
	)

	classificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ssa_classifications_total",
			Help: "Successful classifications by predicted class and orbital region.",
		},
		[]string{"class", "region"},
	)

	classificationErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ssa_classification_errors_total",
			Help: "Failed classifications by error kind and detail.",
		},
		[]string{"kind", "detail"},
	)

	pipelineDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ssa_pipeline_duration_seconds",
			Help:    "Wall-clock time of one successful classification pipeline run.",
			Buckets: []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05},
		},
	)

	catalogEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ssa_catalog_entries",
			Help: "Number of entries in the currently served catalog.",
		},
	)

	catalogFetchedTimestamp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ssa_catalog_fetched_timestamp_seconds",
			Help: "Unix time at which the served catalog was downloaded.",
		},
	)

	catalogRefreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ssa_catalog_refresh_total",
			Help: "Catalog refresh attempts by served source and result.",
		},
		[]string{"source", "result"},
	)

	streamConnectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ssa_stream_connections_total",
			Help: "Batch stream connection events.",
		},
		[]string{"event"},
	)

	streamsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ssa_streams_active",
			Help: "Currently open batch streams.",
		},
	)

	streamMessagesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ssa_stream_messages_total",
			Help: "SSE messages sent.",
		},
	)

	streamBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ssa_stream_bytes_total",
			Help: "SSE bytes sent.",
		},
	)

	streamErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ssa_stream_errors_total",
			Help: "Batch stream errors by reason.",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpDurationSeconds,
		rateLimitedTotal,
		classificationsTotal,
		classificationErrorsTotal,
		pipelineDurationSeconds,
		catalogEntries,
		catalogFetchedTimestamp,
		catalogRefreshTotal,
		streamConnectionsTotal,
		streamsActive,
		streamMessagesTotal,
		streamBytesTotal,
		streamErrorsTotal,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush lets SSE handlers stream through the wrapper.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)
		route := normalizeRoute(r.URL.Path)

		httpRequestsTotal.WithLabelValues(route, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(route, r.Method).Observe(duration)
	})
}

var knownRoutes = map[string]bool{
	"/":                       true,
	"/healthz":                true,
	"/readyz":                 true,
	"/health":                 true,
	"/metrics":                true,
	"/predict":                true,
	"/api/v1/classify":        true,
	"/api/v1/classify/batch":  true,
	"/api/v1/classify/stream": true,
	"/api/v1/satellites":      true,
	"/satellites":             true,
}

var (
	satelliteRoute         = regexp.MustCompile(`^/api/v1/satellites/[0-9]+$`)
	satelliteClassifyRoute = regexp.MustCompile(`^/api/v1/satellites/[0-9]+/classify$`)
)

// normalizeRoute maps a request path to a bounded set of labels so that
// NORAD IDs and bot probes do not explode label cardinality.
func normalizeRoute(path string) string {
	switch {
	case knownRoutes[path]:
		return path
	case satelliteRoute.MatchString(path):
		return "/api/v1/satellites/{norad_id}"
	case satelliteClassifyRoute.MatchString(path):
		return "/api/v1/satellites/{norad_id}/classify"
	default:
		return "other"
	}
}

// IncRateLimited counts a request rejected by the rate limiter.
func IncRateLimited() { rateLimitedTotal.Inc() }

// IncStreamConnections counts a stream "connect" or "disconnect".
func IncStreamConnections(event string) { streamConnectionsTotal.WithLabelValues(event).Inc() }

// IncStreamsActive and DecStreamsActive track open streams.
func IncStreamsActive() { streamsActive.Inc() }
func DecStreamsActive() { streamsActive.Dec() }

// IncStreamMessages counts one SSE message.
func IncStreamMessages() { streamMessagesTotal.Inc() }

// AddStreamBytes counts bytes written to streams.
func AddStreamBytes(n int64) { streamBytesTotal.Add(float64(n)) }

// IncStreamErrors counts a stream error by reason.
func IncStreamErrors(reason string) { streamErrorsTotal.WithLabelValues(reason).Inc() }

// Recorder feeds pipeline and catalog outcomes into the collectors above.
// The zero value is ready to use.
type Recorder struct{}

// ObserveClassification records one successful classification.
func (Recorder) ObserveClassification(class, region string, d time.Duration) {
	classificationsTotal.WithLabelValues(class, region).Inc()
	pipelineDurationSeconds.Observe(d.Seconds())
}

// ObserveError records one failed classification.
func (Recorder) ObserveError(kind, detail string) {
	classificationErrorsTotal.WithLabelValues(kind, detail).Inc()
}

// ObserveCatalogRefresh records a catalog refresh. A fallback to a snapshot
// counts as a failure of the live source but still updates the gauges.
func (Recorder) ObserveCatalogRefresh(source string, size int, fetchedAt time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	catalogRefreshTotal.WithLabelValues(source, result).Inc()
	if size > 0 {
		catalogEntries.Set(float64(size))
		catalogFetchedTimestamp.Set(float64(fetchedAt.Unix()))
	}
}
