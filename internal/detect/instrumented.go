package detect

import (
	"context"
	"time"

	"pickup-service/internal/metrics"
)

// Instrumented wraps a Detector with Prometheus metrics.
type Instrumented struct {
	inner Detector
	m     *metrics.Metrics
}

// NewInstrumented creates a metrics-recording wrapper around a Detector.
func NewInstrumented(inner Detector, m *metrics.Metrics) *Instrumented {
	return &Instrumented{inner: inner, m: m}
}

// Detect delegates to the wrapped Detector, recording latency, per-category
// detection counts and failures.
func (d *Instrumented) Detect(ctx context.Context, imageBytes []byte) (*Result, error) {
	start := time.Now()
	result, err := d.inner.Detect(ctx, imageBytes)
	d.m.ObserveDetectionLatency(float64(time.Since(start).Microseconds()) / 1000.0)
	if err != nil {
		d.m.IncrementDetectionErrors()
		return nil, err
	}
	for _, det := range result.Detections {
		d.m.IncrementDetections(string(det.Category))
	}
	return result, nil
}
