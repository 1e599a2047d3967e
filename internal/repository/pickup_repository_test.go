package repository

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"pickup-service/internal/models"
)

func newTestRepo(t *testing.T) *PickupRepositoryImpl {
	t.Helper()
	// A named shared-cache DB keeps the whole connection pool on one
	// in-memory database, scoped to this test.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.PickupSpot{}))
	t.Cleanup(func() {
		sqlDB, err := db.DB()
		if err == nil {
			_ = sqlDB.Close()
		}
	})
	return NewPickupRepository(db)
}

func spotForUser(userID, points int, createdAt time.Time) *models.PickupSpot {
	return &models.PickupSpot{
		UserID:    userID,
		Latitude:  52.52,
		Longitude: 13.405,
		CreatedAt: createdAt,
		PhotoURL:  fmt.Sprintf("u%d_%d.jpg", userID, points),
		Points:    points,
	}
}

func TestCreateAssignsID(t *testing.T) {
	repo := newTestRepo(t)

	spot := spotForUser(1, 2, time.Now())
	require.NoError(t, repo.Create(spot))
	assert.NotZero(t, spot.ID)

	other := spotForUser(1, 3, time.Now())
	require.NoError(t, repo.Create(other))
	assert.NotEqual(t, spot.ID, other.ID)
}

func TestTotalsForUserEmpty(t *testing.T) {
	repo := newTestRepo(t)

	total, spots, err := repo.TotalsForUser(42)
	require.NoError(t, err)
	assert.Equal(t, 0, total)
	assert.NotNil(t, spots)
	assert.Empty(t, spots)
}

func TestTotalsForUserSumsAndOrders(t *testing.T) {
	repo := newTestRepo(t)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Create(spotForUser(1, 3, base.Add(time.Hour))))
	require.NoError(t, repo.Create(spotForUser(1, 2, base)))
	require.NoError(t, repo.Create(spotForUser(2, 9, base))) // other user

	total, spots, err := repo.TotalsForUser(1)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, spots, 2)
	assert.True(t, spots[0].CreatedAt.Before(spots[1].CreatedAt))
	assert.Equal(t, 2, spots[0].Points)
	assert.Equal(t, 3, spots[1].Points)
}

func TestListWithinRadius(t *testing.T) {
	repo := newTestRepo(t)
	now := time.Now()

	near := spotForUser(1, 1, now)
	near.Latitude, near.Longitude = 52.5201, 13.4051
	require.NoError(t, repo.Create(near))

	far := spotForUser(1, 1, now)
	far.Latitude, far.Longitude = 48.8566, 2.3522 // Paris
	require.NoError(t, repo.Create(far))

	spots, err := repo.ListWithinRadius(52.52, 13.405, 500)
	require.NoError(t, err)
	require.Len(t, spots, 1)
	assert.Equal(t, near.ID, spots[0].ID)
}

func TestCreateWrapsPersistenceError(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{})
	require.NoError(t, err)
	repo := NewPickupRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "pickup_spots"`).WillReturnError(fmt.Errorf("connection reset"))
	mock.ExpectRollback()

	err = repo.Create(spotForUser(1, 2, time.Now()))
	assert.ErrorIs(t, err, ErrPersistence)
	assert.NoError(t, mock.ExpectationsWereMet())
}
