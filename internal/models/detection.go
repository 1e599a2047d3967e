package models

import "pickup-service/internal/classify"

// Detection is a single object found in an uploaded photo. It is returned to
// the client for review and never persisted; only the count of detections at
// confirmation time feeds the points ledger.
type Detection struct {
	Label      string            `json:"label"`
	Category   classify.Category `json:"category"`
	Confidence float64           `json:"confidence"`
	BBox       [4]int            `json:"bbox"`
}
