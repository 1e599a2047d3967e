package detect

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Limited caps the number of detections running at once. Decode and model
// inference dominate request latency and are CPU- or accelerator-bound, so a
// burst of uploads must not oversubscribe the model.
type Limited struct {
	inner Detector
	sem   *semaphore.Weighted
}

// NewLimited wraps a Detector with a concurrency cap of n.
func NewLimited(inner Detector, n int64) *Limited {
	return &Limited{
		inner: inner,
		sem:   semaphore.NewWeighted(n),
	}
}

// Detect blocks until a slot is free or ctx is done, then delegates.
func (l *Limited) Detect(ctx context.Context, imageBytes []byte) (*Result, error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer l.sem.Release(1)
	return l.inner.Detect(ctx, imageBytes)
}
