package repository

import (
	"errors"

	pkgerrors "github.com/pkg/errors"
	"gorm.io/gorm"

	"pickup-service/internal/models"
	"pickup-service/internal/utils"
)

// ErrPersistence is returned when a ledger write fails.
var ErrPersistence = errors.New("ledger write failed")

// PickupRepository defines ledger operations over pickup spots.
type PickupRepository interface {
	Create(spot *models.PickupSpot) error
	TotalsForUser(userID int) (int, []models.PickupSpot, error)
	ListWithinRadius(lat, lng, radiusMeters float64) ([]models.PickupSpot, error)
}

// PickupRepositoryImpl provides methods to interact with the pickup_spots
// table in the database.
type PickupRepositoryImpl struct {
	db *gorm.DB
}

// NewPickupRepository creates a new PickupRepositoryImpl instance with the provided GORM database connection.
func NewPickupRepository(db *gorm.DB) *PickupRepositoryImpl {
	return &PickupRepositoryImpl{db: db}
}

// Create inserts one pickup spot and fills in its generated id. Inserts are
// append-only; duplicate confirmations for the same conceptual pickup are
// permitted and become separate rows.
func (r *PickupRepositoryImpl) Create(spot *models.PickupSpot) error {
	if err := r.db.Create(spot).Error; err != nil {
		return pkgerrors.Wrap(ErrPersistence, err.Error())
	}
	return nil
}

// TotalsForUser returns the summed points and all pickup spots for a user,
// ordered by creation time. A user with no entries gets (0, empty), never an
// error.
func (r *PickupRepositoryImpl) TotalsForUser(userID int) (int, []models.PickupSpot, error) {
	spots := make([]models.PickupSpot, 0)
	err := r.db.Where("user_id = ?", userID).Order("created_at").Find(&spots).Error
	if err != nil {
		return 0, nil, err
	}
	total := 0
	for _, spot := range spots {
		total += spot.Points
	}
	return total, spots, nil
}

// ListWithinRadius returns pickup spots within radiusMeters of the given
// point, bounding-box prefiltered in SQL then narrowed with Haversine.
func (r *PickupRepositoryImpl) ListWithinRadius(lat, lng, radiusMeters float64) ([]models.PickupSpot, error) {
	minLat, maxLat, minLng, maxLng := utils.CalculateBoundingBox(lat, lng, radiusMeters)

	var candidates []models.PickupSpot
	err := r.db.Where("latitude BETWEEN ? AND ?", minLat, maxLat).
		Where("longitude BETWEEN ? AND ?", minLng, maxLng).
		Find(&candidates).Error
	if err != nil {
		return nil, err
	}

	spots := make([]models.PickupSpot, 0, len(candidates))
	for _, spot := range candidates {
		distance := utils.HaversineDistance(lat, lng, spot.Latitude, spot.Longitude)
		if distance <= radiusMeters {
			spots = append(spots, spot)
		}
	}
	return spots, nil
}
