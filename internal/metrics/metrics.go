// Package metrics exposes Prometheus collectors for scrape runs.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Download statuses used as label values.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

var (
	pagesTotal                 *prometheus.CounterVec
	tasksSubmittedTotal        prometheus.Counter
	skippedTotal               *prometheus.CounterVec
	downloadsTotal             *prometheus.CounterVec
	downloadBytesTotal         *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		pagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitemirror_pages_total",
				Help: "Total number of pages advanced through the pipeline, labeled by step.",
			},
			[]string{"step"},
		)

		tasksSubmittedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "sitemirror_tasks_submitted_total",
				Help: "Total number of crawl tasks submitted by link extraction.",
			},
		)

		skippedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitemirror_skipped_total",
				Help: "Total number of candidates skipped because their path already exists.",
			},
			[]string{"kind"},
		)

		downloadsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitemirror_downloads_total",
				Help: "Total number of download attempts, labeled by site and status.",
			},
			[]string{"site", "status"},
		)

		downloadBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitemirror_download_bytes_total",
				Help: "Total number of resource bytes written, labeled by site.",
			},
			[]string{"site"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitemirror_http_requests_total",
				Help: "Total number of requests served by the metrics endpoint, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sitemirror_http_request_duration_seconds",
				Help:    "Histogram of metrics endpoint latencies, labeled by method and route.",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"method", "route"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePage counts a page advanced through the given step.
func ObservePage(step string) {
	Init()
	pagesTotal.WithLabelValues(step).Inc()
}

// ObserveSubmitted counts crawl tasks produced by link extraction.
func ObserveSubmitted(n int) {
	Init()
	if n > 0 {
		tasksSubmittedTotal.Add(float64(n))
	}
}

// ObserveSkip counts a candidate skipped because it already exists.
// kind is "directory" or "file".
func ObserveSkip(kind string) {
	Init()
	skippedTotal.WithLabelValues(kind).Inc()
}

// ObserveDownload records a download attempt for the resource at rawURL.
func ObserveDownload(rawURL string, status string, bytesWritten int64) {
	Init()
	site := SanitizeSite(rawURL)
	downloadsTotal.WithLabelValues(site, status).Inc()
	if bytesWritten > 0 {
		downloadBytesTotal.WithLabelValues(site).Add(float64(bytesWritten))
	}
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
