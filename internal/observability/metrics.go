package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the aggregator. Metrics are
// organized by subsystem: searches, merging, upstream source requests, PDF
// downloads and the HTTP façade.
//
// Metrics implements papersources.SearchRecorder, papersources.RequestObserver
// and pdf.DownloadObserver.
type Metrics struct {
	// SearchesStarted counts searches initiated, labeled by paper source.
	SearchesStarted *prometheus.CounterVec

	// SearchesCompleted counts successful searches, labeled by paper source.
	SearchesCompleted *prometheus.CounterVec

	// SearchesFailed counts failed searches, labeled by paper source and error kind.
	SearchesFailed *prometheus.CounterVec

	// SearchDuration observes search duration in seconds, labeled by paper source.
	SearchDuration *prometheus.HistogramVec

	// PapersPerSearch observes the distribution of papers returned per search, labeled by source.
	PapersPerSearch *prometheus.HistogramVec

	// PapersMerged counts records kept by the merge step of an "all" search.
	PapersMerged prometheus.Counter

	// PapersDuplicate counts records dropped as duplicates during merging.
	PapersDuplicate prometheus.Counter

	// SourceRequestsTotal counts HTTP requests to paper source APIs, labeled by source and status code.
	SourceRequestsTotal *prometheus.CounterVec

	// SourceRequestsFailed counts source requests that failed before a response arrived.
	SourceRequestsFailed *prometheus.CounterVec

	// SourceRateLimited counts 429 responses from paper source APIs, labeled by source.
	SourceRateLimited *prometheus.CounterVec

	// PDFDownloads counts PDF fetches, labeled by outcome.
	PDFDownloads *prometheus.CounterVec

	// PDFDownloadBytes observes the size of saved PDFs.
	PDFDownloadBytes prometheus.Histogram

	// HTTPRequests counts façade requests, labeled by method, route and status.
	HTTPRequests *prometheus.CounterVec

	// HTTPRequestDuration observes façade latency, labeled by method and route.
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates a Metrics instance registered with the default
// Prometheus registry. The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer, namespace)
}

// NewMetricsWith creates a Metrics instance registered with reg.
func NewMetricsWith(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		// Searches
		SearchesStarted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_started_total",
			Help:      "Total number of source searches started",
		}, []string{"source"}),
		SearchesCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_completed_total",
			Help:      "Total number of source searches completed successfully",
		}, []string{"source"}),
		SearchesFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_failed_total",
			Help:      "Total number of source searches that failed",
		}, []string{"source", "kind"}),
		SearchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Duration of source searches in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"source"}),
		PapersPerSearch: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "papers_per_search",
			Help:      "Number of papers returned per source search",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250},
		}, []string{"source"}),

		// Merging
		PapersMerged: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_merged_total",
			Help:      "Total number of papers kept after merging multi-source results",
		}),
		PapersDuplicate: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_duplicate_total",
			Help:      "Total number of duplicate papers dropped while merging",
		}),

		// Sources
		SourceRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_requests_total",
			Help:      "Total number of requests to paper source APIs",
		}, []string{"source", "status"}),
		SourceRequestsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_requests_failed_total",
			Help:      "Total number of paper source requests that failed in transport",
		}, []string{"source"}),
		SourceRateLimited: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_rate_limited_total",
			Help:      "Total number of rate limited responses from paper source APIs",
		}, []string{"source"}),

		// PDFs
		PDFDownloads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pdf_downloads_total",
			Help:      "Total number of PDF downloads by outcome",
		}, []string{"status"}),
		PDFDownloadBytes: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pdf_download_bytes",
			Help:      "Size of downloaded PDFs in bytes",
			Buckets:   prometheus.ExponentialBuckets(64*1024, 4, 7),
		}),

		// HTTP
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests served",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// RecordSearchStarted records the start of a source search.
func (m *Metrics) RecordSearchStarted(source string) {
	m.SearchesStarted.WithLabelValues(source).Inc()
}

// RecordSearchCompleted records a successful source search.
func (m *Metrics) RecordSearchCompleted(source string, papers int, duration time.Duration) {
	m.SearchesCompleted.WithLabelValues(source).Inc()
	m.SearchDuration.WithLabelValues(source).Observe(duration.Seconds())
	m.PapersPerSearch.WithLabelValues(source).Observe(float64(papers))
}

// RecordSearchFailed records a failed source search.
func (m *Metrics) RecordSearchFailed(source, kind string, duration time.Duration) {
	m.SearchesFailed.WithLabelValues(source, kind).Inc()
	m.SearchDuration.WithLabelValues(source).Observe(duration.Seconds())
}

// RecordMerge records the result of merging an "all" search.
func (m *Metrics) RecordMerge(kept, dropped int) {
	m.PapersMerged.Add(float64(kept))
	if dropped > 0 {
		m.PapersDuplicate.Add(float64(dropped))
	}
}

// RecordSourceRequest records a response from a paper source API.
func (m *Metrics) RecordSourceRequest(source string, statusCode int) {
	m.SourceRequestsTotal.WithLabelValues(source, strconv.Itoa(statusCode)).Inc()
}

// RecordSourceRequestFailed records a source request that got no response.
func (m *Metrics) RecordSourceRequestFailed(source string) {
	m.SourceRequestsFailed.WithLabelValues(source).Inc()
}

// RecordSourceRateLimited records a 429 from a paper source API.
func (m *Metrics) RecordSourceRateLimited(source string) {
	m.SourceRateLimited.WithLabelValues(source).Inc()
}

// RecordPDFDownload records a PDF fetch outcome.
func (m *Metrics) RecordPDFDownload(status string, bytes int64) {
	m.PDFDownloads.WithLabelValues(status).Inc()
	if bytes > 0 {
		m.PDFDownloadBytes.Observe(float64(bytes))
	}
}

// RecordHTTPRequest records a served façade request.
func (m *Metrics) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
