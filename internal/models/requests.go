package models

import "time"

// AnalyzeResult is the response to an analyzed upload awaiting confirmation.
type AnalyzeResult struct {
	Message         string      `json:"message"`
	TempFilename    string      `json:"temp_filename"`
	Detections      []Detection `json:"detections"`
	PreviewImageURL string      `json:"preview_image_url"`
}

// ConfirmRequest carries the staged filename and pickup location supplied by
// the client when confirming a reviewed upload.
type ConfirmRequest struct {
	TempFilename string
	UserID       int
	Latitude     float64
	Longitude    float64
	Address      *string
}

// ConfirmResult reports the ledger entry created by a confirmation.
type ConfirmResult struct {
	Message  string `json:"message"`
	PickupID uint   `json:"pickup_id"`
	Points   int    `json:"points"`
}

// RegisterRequest carries a direct pickup registration without detection.
type RegisterRequest struct {
	UserID    int
	Latitude  float64
	Longitude float64
	Address   *string
	Time      *time.Time
}

// UserPointsResult aggregates a user's ledger.
type UserPointsResult struct {
	UserID  int          `json:"user_id"`
	Points  int          `json:"points"`
	Pickups []PickupSpot `json:"pickups"`
}
