// Package metrics provides Prometheus metrics for the LanHub server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lanhub_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lanhub_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// File transfer metrics
	bytesUploaded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lanhub_bytes_uploaded_total",
			Help: "Total bytes received through the upload endpoint",
		},
	)

	bytesDownloaded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lanhub_bytes_downloaded_total",
			Help: "Total bytes served through the download endpoint",
		},
	)

	uploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lanhub_uploads_total",
			Help: "Total number of file uploads",
		},
		[]string{"status"},
	)

	downloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lanhub_downloads_total",
			Help: "Total number of file downloads",
		},
		[]string{"status"},
	)

	sharedFiles = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lanhub_shared_files",
			Help: "Number of files in the shared directory",
		},
	)

	// Chat metrics
	chatMessagesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lanhub_chat_messages_total",
			Help: "Total chat messages posted",
		},
	)

	sessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lanhub_sessions_active",
			Help: "Currently connected chat sessions",
		},
	)

	// Discovery metrics
	scanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lanhub_scan_duration_seconds",
			Help:    "Duration of subnet discovery sweeps",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
		},
	)

	scanPeersFound = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lanhub_scan_peers_found",
			Help: "Peers found by the most recent discovery sweep",
		},
	)
)

// RecordRequest records an HTTP request.
func RecordRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordUpload records one upload attempt and its size.
func RecordUpload(status string, bytes int64) {
	uploadsTotal.WithLabelValues(status).Inc()
	if bytes > 0 {
		bytesUploaded.Add(float64(bytes))
	}
}

// RecordDownload records one download attempt and its size.
func RecordDownload(status string, bytes int64) {
	downloadsTotal.WithLabelValues(status).Inc()
	if bytes > 0 {
		bytesDownloaded.Add(float64(bytes))
	}
}

// SetSharedFiles updates the shared file count gauge.
func SetSharedFiles(n int) {
	sharedFiles.Set(float64(n))
}

// RecordChatMessage counts one posted chat message.
func RecordChatMessage() {
	chatMessagesTotal.Inc()
}

// SetSessionsActive updates the active session gauge.
func SetSessionsActive(n int) {
	sessionsActive.Set(float64(n))
}

// RecordScan records a completed discovery sweep.
func RecordScan(duration time.Duration, peers int) {
	scanDuration.Observe(duration.Seconds())
	scanPeersFound.Set(float64(peers))
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
