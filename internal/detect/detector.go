package detect

import (
	"context"
	"errors"

	"pickup-service/internal/models"
)

// ErrDecode is returned when uploaded bytes cannot be decoded as an image.
var ErrDecode = errors.New("image decode failed")

// Result is the outcome of running detection over one uploaded photo.
type Result struct {
	// Annotated is the input image re-encoded with a bounding box and a
	// "label (category)" caption drawn over every detection.
	Annotated []byte
	// Detections is ordered as emitted by the model.
	Detections []models.Detection
}

// Detector runs waste object detection over raw image bytes. Implementations
// must be deterministic for identical input bytes and model version; the
// gocv-backed implementation lives in the yolo subpackage and tests inject
// stubs.
type Detector interface {
	Detect(ctx context.Context, imageBytes []byte) (*Result, error)
}
