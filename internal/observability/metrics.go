package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestsActive  prometheus.Gauge

	// Lookup run metrics
	LookupRunsTotal   *prometheus.CounterVec
	LookupRunDuration *prometheus.HistogramVec
	LookupRunsActive  prometheus.Gauge

	// Directory crawl metrics
	CrawlPagesTotal *prometheus.CounterVec
	CrawlEntries    prometheus.Histogram
	CrawlDuration   prometheus.Histogram

	// Insurance probe metrics
	ProbesTotal   *prometheus.CounterVec
	ProbeDuration *prometheus.HistogramVec

	// Collaborating source metrics
	SourceRequestsTotal   *prometheus.CounterVec
	SourceRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates a new metrics instance with all Prometheus metrics registered
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "providerlens"
	}

	m := &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_active",
				Help:      "Number of active HTTP requests",
			},
		),

		LookupRunsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "lookup_runs_total",
				Help:      "Total number of provider lookup runs",
			},
			[]string{"status"},
		),
		LookupRunDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "lookup_run_duration_seconds",
				Help:      "Provider lookup run duration in seconds",
				Buckets:   []float64{5, 10, 30, 60, 120, 300, 600},
			},
			[]string{"status"},
		),
		LookupRunsActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "lookup_runs_active",
				Help:      "Number of lookup runs in flight",
			},
		),

		CrawlPagesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "crawl_pages_total",
				Help:      "Total number of directory listing pages fetched",
			},
			[]string{"status"},
		),
		CrawlEntries: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "crawl_unique_entries",
				Help:      "Unique candidate entries per directory crawl",
				Buckets:   []float64{0, 10, 25, 50, 100, 200, 400},
			},
		),
		CrawlDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "crawl_duration_seconds",
				Help:      "Directory crawl duration in seconds",
				Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
			},
		),

		ProbesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "insurance_probes_total",
				Help:      "Total number of insurance verification probes",
			},
			[]string{"plan", "verdict"},
		),
		ProbeDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "insurance_probe_duration_seconds",
				Help:      "Insurance probe duration in seconds",
				Buckets:   []float64{1, 2, 5, 10, 20, 30, 60, 120},
			},
			[]string{"plan"},
		),

		SourceRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "source_requests_total",
				Help:      "Total number of requests to collaborating sources",
			},
			[]string{"source", "status"},
		),
		SourceRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "source_request_duration_seconds",
				Help:      "Collaborating source request duration in seconds",
				Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"source"},
		),
	}

	return m
}

// Handler returns the Prometheus HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records HTTP request metrics
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordLookupRun records one completed lookup run
func (m *Metrics) RecordLookupRun(status string, duration time.Duration) {
	m.LookupRunsTotal.WithLabelValues(status).Inc()
	m.LookupRunDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordCrawl records one completed directory crawl
func (m *Metrics) RecordCrawl(pagesSucceeded, pagesFailed, uniqueEntries int, duration time.Duration) {
	m.CrawlPagesTotal.WithLabelValues("ok").Add(float64(pagesSucceeded))
	m.CrawlPagesTotal.WithLabelValues("failed").Add(float64(pagesFailed))
	m.CrawlEntries.Observe(float64(uniqueEntries))
	m.CrawlDuration.Observe(duration.Seconds())
}

// RecordProbe records one insurance verification probe
func (m *Metrics) RecordProbe(plan, verdict string, duration time.Duration) {
	m.ProbesTotal.WithLabelValues(plan, verdict).Inc()
	m.ProbeDuration.WithLabelValues(plan).Observe(duration.Seconds())
}

// RecordSourceRequest records one collaborating source request
func (m *Metrics) RecordSourceRequest(source, status string, duration time.Duration) {
	m.SourceRequestsTotal.WithLabelValues(source, status).Inc()
	m.SourceRequestDuration.WithLabelValues(source).Observe(duration.Seconds())
}

// HTTPMiddleware returns middleware for recording HTTP metrics
func (m *Metrics) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.HTTPRequestsActive.Inc()
		defer m.HTTPRequestsActive.Dec()

		start := time.Now()

		// Wrap response writer to capture status code
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start)
		m.RecordHTTPRequest(r.Method, r.URL.Path, wrapped.statusCode, duration)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Global metrics instance
var globalMetrics *Metrics

// InitMetrics initializes the global metrics instance
func InitMetrics(namespace string) *Metrics {
	globalMetrics = NewMetrics(namespace)
	return globalMetrics
}

// GetMetrics returns the global metrics instance
func GetMetrics() *Metrics {
	if globalMetrics == nil {
		globalMetrics = NewMetrics("providerlens")
	}
	return globalMetrics
}
