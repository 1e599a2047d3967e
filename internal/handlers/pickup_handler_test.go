package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"pickup-service/internal/classify"
	"pickup-service/internal/detect"
	"pickup-service/internal/metrics"
	"pickup-service/internal/models"
	"pickup-service/internal/repository"
	"pickup-service/internal/services"
	"pickup-service/internal/storage"
)

// Registered once for the whole test binary; promauto metrics may not be
// registered twice.
var handlerTestMetrics = metrics.NewMetrics()

type stubDetector struct {
	detections []models.Detection
}

func (d *stubDetector) Detect(_ context.Context, imageBytes []byte) (*detect.Result, error) {
	if len(imageBytes) == 0 || bytes.HasPrefix(imageBytes, []byte("garbage")) {
		return nil, detect.ErrDecode
	}
	return &detect.Result{
		Annotated:  append([]byte("annotated:"), imageBytes...),
		Detections: d.detections,
	}, nil
}

type memDurable struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (s *memDurable) Put(_ context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = append([]byte(nil), data...)
	return nil
}

func (s *memDurable) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return data, nil
}

func (s *memDurable) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
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

	durable := &memDurable{objects: make(map[string][]byte)}
	staging, err := storage.NewStagingStore(t.TempDir(), durable)
	require.NoError(t, err)

	detector := &stubDetector{detections: []models.Detection{
		{Label: "plastic_bottle", Category: classify.Recyclable, Confidence: 0.91, BBox: [4]int{10, 10, 50, 80}},
		{Label: "battery", Category: classify.Hazardous, Confidence: 0.77, BBox: [4]int{60, 20, 90, 40}},
	}}

	svc := services.NewPickupService(repository.NewPickupRepository(db), staging, detector)
	imageCache := services.NewImageCache(durable, handlerTestMetrics, time.Minute)

	app := fiber.New()
	h := NewPickupHandler(svc, imageCache, handlerTestMetrics)
	p := NewPointsHandler(svc)
	app.Post("/analyze-image", h.AnalyzeImage)
	app.Post("/confirm", h.Confirm)
	app.Post("/upload", h.Upload)
	app.Get("/temp_image/:filename", h.TempImage)
	app.Get("/image/:filename", h.Image)
	app.Get("/user_points/:user_id", p.UserPoints)
	app.Get("/pickups/nearby", p.NearbyPickups)
	return app
}

func multipartBody(t *testing.T, fileContent []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if fileContent != nil {
		part, err := writer.CreateFormFile("file", "trash.jpg")
		require.NoError(t, err)
		_, err = part.Write(fileContent)
		require.NoError(t, err)
	}
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func decodeJSON(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, out))
}

func analyze(t *testing.T, app *fiber.App, content []byte) models.AnalyzeResult {
	t.Helper()
	body, contentType := multipartBody(t, content, nil)
	req := httptest.NewRequest(http.MethodPost, "/analyze-image", body)
	req.Header.Set("Content-Type", contentType)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result models.AnalyzeResult
	decodeJSON(t, resp, &result)
	return result
}

func confirm(t *testing.T, app *fiber.App, tempFilename string, userID int) *http.Response {
	t.Helper()
	form := url.Values{}
	form.Set("temp_filename", tempFilename)
	form.Set("user_id", fmt.Sprint(userID))
	form.Set("lat", "0")
	form.Set("lng", "0")
	req := httptest.NewRequest(http.MethodPost, "/confirm", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func TestAnalyzeConfirmAndPointsFlow(t *testing.T) {
	app := newTestApp(t)

	analyzed := analyze(t, app, []byte("jpeg bytes"))
	require.Len(t, analyzed.Detections, 2)
	assert.Equal(t, classify.Recyclable, analyzed.Detections[0].Category)
	assert.Equal(t, classify.Hazardous, analyzed.Detections[1].Category)
	assert.Equal(t, "/temp_image/"+analyzed.TempFilename, analyzed.PreviewImageURL)

	// Preview is retrievable while staged.
	req := httptest.NewRequest(http.MethodGet, analyzed.PreviewImageURL, nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = confirm(t, app, analyzed.TempFilename, 1)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var confirmed models.ConfirmResult
	decodeJSON(t, resp, &confirmed)
	assert.Equal(t, 2, confirmed.Points)
	assert.NotZero(t, confirmed.PickupID)

	// Durable image is now served, the staged preview is gone.
	req = httptest.NewRequest(http.MethodGet, "/image/"+analyzed.TempFilename, nil)
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	req = httptest.NewRequest(http.MethodGet, analyzed.PreviewImageURL, nil)
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/user_points/1", nil)
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var points models.UserPointsResult
	decodeJSON(t, resp, &points)
	assert.Equal(t, 1, points.UserID)
	assert.Equal(t, 2, points.Points)
	require.Len(t, points.Pickups, 1)
}

func TestAnalyzeUnreadableImage(t *testing.T) {
	app := newTestApp(t)

	body, contentType := multipartBody(t, []byte("garbage not an image"), nil)
	req := httptest.NewRequest(http.MethodPost, "/analyze-image", body)
	req.Header.Set("Content-Type", contentType)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestConfirmUnknownToken(t *testing.T) {
	app := newTestApp(t)

	resp := confirm(t, app, "deadbeef_never.jpg", 1)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestConfirmReplayedToken(t *testing.T) {
	app := newTestApp(t)

	analyzed := analyze(t, app, []byte("jpeg bytes"))
	resp := confirm(t, app, analyzed.TempFilename, 1)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = confirm(t, app, analyzed.TempFilename, 1)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUserPointsEmptyLedger(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/user_points/42", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var points models.UserPointsResult
	decodeJSON(t, resp, &points)
	assert.Equal(t, 0, points.Points)
	assert.NotNil(t, points.Pickups)
	assert.Empty(t, points.Pickups)
}

func TestUploadRegistersZeroPointPickup(t *testing.T) {
	app := newTestApp(t)

	body, contentType := multipartBody(t, []byte("jpeg bytes"), map[string]string{
		"user_id": "5",
		"lat":     "52.52",
		"lng":     "13.405",
		"address": "Alexanderplatz",
	})
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/user_points/5", nil)
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	var points models.UserPointsResult
	decodeJSON(t, resp, &points)
	assert.Equal(t, 0, points.Points)
	require.Len(t, points.Pickups, 1)
	if assert.NotNil(t, points.Pickups[0].Address) {
		assert.Equal(t, "Alexanderplatz", *points.Pickups[0].Address)
	}
}

func TestNearbyPickups(t *testing.T) {
	app := newTestApp(t)

	analyzed := analyze(t, app, []byte("jpeg bytes"))
	form := url.Values{}
	form.Set("temp_filename", analyzed.TempFilename)
	form.Set("user_id", "1")
	form.Set("lat", "52.52")
	form.Set("lng", "13.405")
	req := httptest.NewRequest(http.MethodPost, "/confirm", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/pickups/nearby?lat=52.52&lng=13.405&radius=500", nil)
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var spots []models.PickupSpot
	decodeJSON(t, resp, &spots)
	require.Len(t, spots, 1)

	req = httptest.NewRequest(http.MethodGet, "/pickups/nearby?lat=48.85&lng=2.35&radius=500", nil)
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeJSON(t, resp, &spots)
	assert.Empty(t, spots)
}
