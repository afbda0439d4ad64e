package monitoring

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics. Each instance owns its registry,
// so several servers (or tests) can coexist in one process.
//
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestSize     *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// File operation metrics
	FileOperations    *prometheus.CounterVec
	FileOperationTime *prometheus.HistogramVec
	UploadedBytes     prometheus.Counter

	// Thumbnail metrics
	Thumbnails        *prometheus.CounterVec
	ThumbnailDuration prometheus.Histogram

	// Archive metrics
	ArchiveEntries *prometheus.CounterVec

	startTime time.Time

	// Snapshot for JSON API - track current values
	snapshot MetricsSnapshot

	mu sync.RWMutex
}

// MetricsSnapshot holds current metric values for the health endpoint
type MetricsSnapshot struct {
	TotalRequests  int64   `json:"total_requests"`
	TotalErrors    int64   `json:"total_errors"`
	FileOperations int64   `json:"file_operations"`
	FailedOps      int64   `json:"failed_operations"`
	ThumbnailHits  int64   `json:"thumbnail_hits"`
	ThumbnailMiss  int64   `json:"thumbnail_misses"`
	UptimeSeconds  float64 `json:"uptime_seconds"`
}

// Thumbnail outcomes
const (
	ThumbnailHit     = "hit"
	ThumbnailMiss    = "miss"
	ThumbnailSkipped = "skipped"
	ThumbnailFailed  = "failed"
)

// NewMetrics creates a new metrics collector with its own registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		// HTTP metrics
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "filemanager_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "filemanager_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		RequestSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "filemanager_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000, 100000000},
			},
			[]string{"method", "path"},
		),
		ResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "filemanager_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000, 100000000},
			},
			[]string{"method", "path"},
		),

		// File operation metrics
		FileOperations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "filemanager_operations_total",
				Help: "Total number of file operations by outcome",
			},
			[]string{"operation", "status"},
		),
		FileOperationTime: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "filemanager_operation_duration_seconds",
				Help:    "File operation duration in seconds",
				Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"operation"},
		),
		UploadedBytes: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "filemanager_uploaded_bytes_total",
				Help: "Total bytes accepted by uploads and saves",
			},
		),

		// Thumbnail metrics
		Thumbnails: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "filemanager_thumbnails_total",
				Help: "Thumbnail lookups by outcome",
			},
			[]string{"result"},
		),
		ThumbnailDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "filemanager_thumbnail_generation_seconds",
				Help:    "Thumbnail generation time in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
		),

		// Archive metrics
		ArchiveEntries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "filemanager_archive_entries_total",
				Help: "Archive entries processed by direction and outcome",
			},
			[]string{"direction", "result"},
		),
	}

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "filemanager_uptime_seconds",
			Help: "Server uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// Handler serves this instance's registry in the Prometheus format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, reqSize, respSize int64) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.RequestSize.WithLabelValues(method, path).Observe(float64(reqSize))
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))

	// Update snapshot
	m.mu.Lock()
	m.snapshot.TotalRequests++
	if status != "" && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordFileOperation records the outcome of an engine operation.
// status is "ok" or an error kind.
func (m *Metrics) RecordFileOperation(operation, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.FileOperations.WithLabelValues(operation, status).Inc()
	m.FileOperationTime.WithLabelValues(operation).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.FileOperations++
	if status != StatusOK {
		m.snapshot.FailedOps++
	}
	m.mu.Unlock()
}

// AddUploadedBytes counts bytes written on behalf of clients
func (m *Metrics) AddUploadedBytes(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.UploadedBytes.Add(float64(n))
}

// RecordThumbnail records a cache lookup outcome
func (m *Metrics) RecordThumbnail(result string) {
	if m == nil {
		return
	}
	m.Thumbnails.WithLabelValues(result).Inc()

	m.mu.Lock()
	switch result {
	case ThumbnailHit:
		m.snapshot.ThumbnailHits++
	case ThumbnailMiss:
		m.snapshot.ThumbnailMiss++
	}
	m.mu.Unlock()
}

// ObserveThumbnailGeneration records how long a resize took
func (m *Metrics) ObserveThumbnailGeneration(duration time.Duration) {
	if m == nil {
		return
	}
	m.ThumbnailDuration.Observe(duration.Seconds())
}

// RecordArchiveEntry counts a zipped or extracted entry
func (m *Metrics) RecordArchiveEntry(direction, result string) {
	if m == nil {
		return
	}
	m.ArchiveEntries.WithLabelValues(direction, result).Inc()
}

// Snapshot returns a copy of the current counters
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := m.snapshot
	snap.UptimeSeconds = time.Since(m.startTime).Seconds()
	return snap
}
