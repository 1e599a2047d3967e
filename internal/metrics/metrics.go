package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the pickup workflow.
type Metrics struct {
	uploads          prometheus.Counter
	confirmations    *prometheus.CounterVec
	detections       *prometheus.CounterVec
	detectionErrors  prometheus.Counter
	detectionLatency prometheus.Histogram
	imageCacheHits   prometheus.Counter
	imageCacheMisses prometheus.Counter
}

// NewMetrics creates and registers all workflow metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		uploads: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "pickup_uploads_total",
				Help: "Total number of analyzed image uploads",
			},
		),
		confirmations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pickup_confirmations_total",
				Help: "Total number of pickup confirmation attempts by outcome",
			},
			[]string{"outcome"},
		),
		detections: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pickup_detections_total",
				Help: "Total number of detected waste items by category",
			},
			[]string{"category"},
		),
		detectionErrors: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "pickup_detection_errors_total",
				Help: "Total number of failed detection runs",
			},
		),
		detectionLatency: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "pickup_detection_latency_ms",
				Help:    "Latency of detection runs in milliseconds",
				Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
			},
		),
		imageCacheHits: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "pickup_image_cache_hits_total",
				Help: "Total number of durable image cache hits",
			},
		),
		imageCacheMisses: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "pickup_image_cache_misses_total",
				Help: "Total number of durable image cache misses",
			},
		),
	}
}

// IncrementUploads increments the analyzed upload counter.
func (m *Metrics) IncrementUploads() {
	m.uploads.Inc()
}

// IncrementConfirmations increments the confirmation counter for an outcome.
func (m *Metrics) IncrementConfirmations(outcome string) {
	m.confirmations.WithLabelValues(outcome).Inc()
}

// IncrementDetections increments the per-category detection counter.
func (m *Metrics) IncrementDetections(category string) {
	m.detections.WithLabelValues(category).Inc()
}

// IncrementDetectionErrors increments the failed detection counter.
func (m *Metrics) IncrementDetectionErrors() {
	m.detectionErrors.Inc()
}

// ObserveDetectionLatency records one detection run duration in milliseconds.
func (m *Metrics) ObserveDetectionLatency(ms float64) {
	m.detectionLatency.Observe(ms)
}

// IncrementImageCacheHits increments the image cache hit counter.
func (m *Metrics) IncrementImageCacheHits() {
	m.imageCacheHits.Inc()
}

// IncrementImageCacheMisses increments the image cache miss counter.
func (m *Metrics) IncrementImageCacheMisses() {
	m.imageCacheMisses.Inc()
}
