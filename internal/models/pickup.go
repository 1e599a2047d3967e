package models

import "time"

// PickupSpot is one confirmed waste pickup stored in the ledger. Rows are
// insert-only from the confirmation workflow; points are computed once at
// confirmation time and never recomputed.
type PickupSpot struct {
	ID         uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID     int       `json:"user_id" gorm:"not null;index"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	CreatedAt  time.Time `json:"created_at"`
	PhotoURL   string    `json:"photo_url" gorm:"column:photo_url"`
	Address    *string   `json:"address,omitempty"`
	IsDisposed bool      `json:"is_disposed" gorm:"default:false"`
	Points     int       `json:"points"`
}

// TableName keeps the table name used by the mobile clients.
func (PickupSpot) TableName() string {
	return "pickup_spots"
}
