package services

import (
	"context"
	"log"
	"time"

	"pickup-service/internal/detect"
	"pickup-service/internal/models"
	"pickup-service/internal/repository"
	"pickup-service/internal/storage"
)

// PickupService drives the upload -> detect -> stage -> confirm -> persist
// workflow. Each request runs independently; the staging directory and the
// ledger table are the only shared state and neither is guarded by
// application-level locks. None of the failure modes are retried here;
// retries, if any, are the caller's responsibility.
type PickupService struct {
	Repo     repository.PickupRepository
	Staging  *storage.StagingStore
	Detector detect.Detector
}

// NewPickupService creates a PickupService with the given collaborators.
func NewPickupService(repo repository.PickupRepository, staging *storage.StagingStore, detector detect.Detector) *PickupService {
	return &PickupService{
		Repo:     repo,
		Staging:  staging,
		Detector: detector,
	}
}

// AnalyzeImage runs detection over an upload and stages it for confirmation.
// Nothing is staged when the bytes cannot be decoded. The annotated preview
// only ever reaches ephemeral storage; durable storage is written at
// confirmation time.
func (s *PickupService) AnalyzeImage(ctx context.Context, data []byte, originalName string) (*models.AnalyzeResult, error) {
	result, err := s.Detector.Detect(ctx, data)
	if err != nil {
		return nil, err
	}

	filename, err := s.Staging.Stage(data, originalName)
	if err != nil {
		return nil, err
	}
	if err := s.Staging.PutPreview(filename, result.Annotated); err != nil {
		return nil, err
	}

	log.Printf("Staged upload %s with %d detections", filename, len(result.Detections))
	return &models.AnalyzeResult{
		Message:         "Detection successful. Awaiting confirmation.",
		TempFilename:    filename,
		Detections:      result.Detections,
		PreviewImageURL: "/temp_image/" + filename,
	}, nil
}

// Confirm promotes a staged artifact to durable storage and appends a ledger
// entry worth one point per detected item. Detection is re-run against the
// original bytes rather than trusting the preview: a stale or replayed
// preview must not decide the point count, at the cost of a second inference.
// The file move happens before the row insert so the ledger never references
// a file that does not exist; the inverse orphan-file risk is accepted.
func (s *PickupService) Confirm(ctx context.Context, req models.ConfirmRequest) (*models.ConfirmResult, error) {
	raw, err := s.Staging.ReadStaged(req.TempFilename)
	if err != nil {
		return nil, err
	}

	// Single-use: of any concurrent confirmations for this filename, exactly
	// one gets past this point.
	photoRef, err := s.Staging.Promote(ctx, req.TempFilename)
	if err != nil {
		return nil, err
	}

	result, err := s.Detector.Detect(ctx, raw)
	if err != nil {
		return nil, err
	}
	points := len(result.Detections)

	spot := &models.PickupSpot{
		UserID:     req.UserID,
		Latitude:   req.Latitude,
		Longitude:  req.Longitude,
		CreatedAt:  time.Now(),
		PhotoURL:   photoRef,
		Address:    req.Address,
		IsDisposed: false,
		Points:     points,
	}
	if err := s.Repo.Create(spot); err != nil {
		return nil, err
	}

	log.Printf("Confirmed pickup %d for user %d: %d points (%s)", spot.ID, req.UserID, points, photoRef)
	return &models.ConfirmResult{
		Message:  "Pickup confirmed and saved",
		PickupID: spot.ID,
		Points:   points,
	}, nil
}

// RegisterPickup stores a photo durably and appends a zero-point ledger entry
// without running detection. Used by clients that report a pickup spot
// directly instead of going through review.
func (s *PickupService) RegisterPickup(ctx context.Context, data []byte, originalName string, req models.RegisterRequest) (uint, error) {
	filename, err := s.Staging.Stage(data, originalName)
	if err != nil {
		return 0, err
	}
	photoRef, err := s.Staging.Promote(ctx, filename)
	if err != nil {
		return 0, err
	}

	createdAt := time.Now()
	if req.Time != nil {
		createdAt = *req.Time
	}

	spot := &models.PickupSpot{
		UserID:     req.UserID,
		Latitude:   req.Latitude,
		Longitude:  req.Longitude,
		CreatedAt:  createdAt,
		PhotoURL:   photoRef,
		Address:    req.Address,
		IsDisposed: false,
		Points:     0,
	}
	if err := s.Repo.Create(spot); err != nil {
		return 0, err
	}

	log.Printf("Registered pickup %d for user %d (%s)", spot.ID, req.UserID, photoRef)
	return spot.ID, nil
}

// UserPoints returns a user's summed points and pickup history.
func (s *PickupService) UserPoints(userID int) (*models.UserPointsResult, error) {
	total, spots, err := s.Repo.TotalsForUser(userID)
	if err != nil {
		return nil, err
	}
	return &models.UserPointsResult{
		UserID:  userID,
		Points:  total,
		Pickups: spots,
	}, nil
}

// NearbyPickups returns pickup spots within radiusMeters of a point.
func (s *PickupService) NearbyPickups(lat, lng, radiusMeters float64) ([]models.PickupSpot, error) {
	return s.Repo.ListWithinRadius(lat, lng, radiusMeters)
}
