package handlers

import (
	"errors"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"pickup-service/internal/detect"
	"pickup-service/internal/metrics"
	"pickup-service/internal/models"
	"pickup-service/internal/services"
	"pickup-service/internal/storage"
)

const StagedImageNotFoundError = "Temporary image not found"
const ImageNotFoundError = "Image not found"

// PickupHandler defines handlers for the waste pickup workflow.
type PickupHandler struct {
	Service    *services.PickupService
	ImageCache *services.ImageCache
	Metrics    *metrics.Metrics
}

// NewPickupHandler creates a new PickupHandler with the given collaborators.
func NewPickupHandler(service *services.PickupService, imageCache *services.ImageCache, m *metrics.Metrics) *PickupHandler {
	return &PickupHandler{Service: service, ImageCache: imageCache, Metrics: m}
}

// AnalyzeImage handles POST /analyze-image to detect waste items in a photo
// and stage it for confirmation.
// @Summary Analyze a waste photo
// @Description Runs object detection over an uploaded photo and stages it pending confirmation
// @Tags pickups
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Photo of waste"
// @Success 200 {object} models.AnalyzeResult "Detections and staging token"
// @Failure 400 {object} map[string]interface{} "Unreadable image"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /analyze-image [post]
func (h *PickupHandler) AnalyzeImage(c *fiber.Ctx) error {
	log.Printf("Analyzing image - Method: %s, Path: %s, IP: %s", c.Method(), c.Path(), c.IP())

	fileHeader, err := c.FormFile("file")
	if err != nil {
		log.Printf("Failed to read file: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": true, "message": "failed to read file: " + err.Error(),
		})
	}
	data, origName, err := readUpload(fileHeader)
	if err != nil {
		log.Printf("Failed to read upload %s: %v", fileHeader.Filename, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": true, "message": err.Error(),
		})
	}
	log.Printf("Processing upload: %s (%d bytes)", origName, len(data))

	result, err := h.Service.AnalyzeImage(c.Context(), data, origName)
	if err != nil {
		if errors.Is(err, detect.ErrDecode) {
			log.Printf("Unreadable image %s: %v", origName, err)
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": true, "message": "could not decode image",
			})
		}
		log.Printf("Analyze failed for %s: %v", origName, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": true, "message": err.Error(),
		})
	}

	h.Metrics.IncrementUploads()
	log.Printf("Successfully analyzed %s: %d detections, staged as %s",
		origName, len(result.Detections), result.TempFilename)
	return c.JSON(result)
}

// Confirm handles POST /confirm to promote a staged photo and append a
// ledger entry.
// @Summary Confirm a reviewed pickup
// @Description Promotes a staged photo to durable storage and records the pickup with its point value
// @Tags pickups
// @Accept multipart/form-data
// @Produce json
// @Param temp_filename formData string true "Staging token from analyze-image"
// @Param user_id formData int true "User ID"
// @Param lat formData number true "Latitude"
// @Param lng formData number true "Longitude"
// @Param address formData string false "Street address"
// @Success 200 {object} models.ConfirmResult "Created ledger entry"
// @Failure 404 {object} map[string]interface{} "Unknown or already confirmed staging token"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /confirm [post]
func (h *PickupHandler) Confirm(c *fiber.Ctx) error {
	tempFilename := c.FormValue("temp_filename")
	log.Printf("Confirming pickup - Filename: %s, Method: %s, Path: %s, IP: %s",
		tempFilename, c.Method(), c.Path(), c.IP())

	userID, err := strconv.Atoi(c.FormValue("user_id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": true, "message": "invalid user_id",
		})
	}
	lat, err := strconv.ParseFloat(c.FormValue("lat"), 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": true, "message": "invalid lat",
		})
	}
	lng, err := strconv.ParseFloat(c.FormValue("lng"), 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": true, "message": "invalid lng",
		})
	}
	var address *string
	if addr := c.FormValue("address"); addr != "" {
		address = &addr
	}

	result, err := h.Service.Confirm(c.Context(), models.ConfirmRequest{
		TempFilename: tempFilename,
		UserID:       userID,
		Latitude:     lat,
		Longitude:    lng,
		Address:      address,
	})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			h.Metrics.IncrementConfirmations("not_found")
			log.Printf("Staged artifact not found: %s", tempFilename)
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": true, "message": StagedImageNotFoundError,
			})
		}
		h.Metrics.IncrementConfirmations("error")
		log.Printf("Confirmation failed for %s: %v", tempFilename, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": true, "message": err.Error(),
		})
	}

	h.Metrics.IncrementConfirmations("confirmed")
	log.Printf("Successfully confirmed pickup: ID=%d, Points=%d", result.PickupID, result.Points)
	return c.JSON(result)
}

// Upload handles POST /upload to register a pickup directly, without
// detection or review. The entry is worth zero points.
// @Summary Register a pickup without detection
// @Description Stores the photo durably and records a zero-point pickup entry
// @Tags pickups
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Photo of waste"
// @Param user_id formData int true "User ID"
// @Param lat formData number true "Latitude"
// @Param lng formData number true "Longitude"
// @Param address formData string false "Street address"
// @Param time formData string false "Pickup time (RFC 3339)"
// @Success 200 {object} map[string]interface{} "Created pickup id"
// @Failure 400 {object} map[string]interface{} "Bad request"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /upload [post]
func (h *PickupHandler) Upload(c *fiber.Ctx) error {
	log.Printf("Registering pickup - Method: %s, Path: %s, IP: %s", c.Method(), c.Path(), c.IP())

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": true, "message": "failed to read file: " + err.Error(),
		})
	}
	userID, err := strconv.Atoi(c.FormValue("user_id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": true, "message": "invalid user_id",
		})
	}
	lat, err := strconv.ParseFloat(c.FormValue("lat"), 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": true, "message": "invalid lat",
		})
	}
	lng, err := strconv.ParseFloat(c.FormValue("lng"), 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": true, "message": "invalid lng",
		})
	}
	var address *string
	if addr := c.FormValue("address"); addr != "" {
		address = &addr
	}
	var pickupTime *time.Time
	if ts := c.FormValue("time"); ts != "" {
		parsed, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": true, "message": "invalid time",
			})
		}
		pickupTime = &parsed
	}

	data, origName, err := readUpload(fileHeader)
	if err != nil {
		log.Printf("Failed to read upload %s: %v", fileHeader.Filename, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": true, "message": err.Error(),
		})
	}

	pickupID, err := h.Service.RegisterPickup(c.Context(), data, origName, models.RegisterRequest{
		UserID:    userID,
		Latitude:  lat,
		Longitude: lng,
		Address:   address,
		Time:      pickupTime,
	})
	if err != nil {
		log.Printf("Pickup registration failed for user %d: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": true, "message": err.Error(),
		})
	}

	log.Printf("Successfully registered pickup: ID=%d, User=%d", pickupID, userID)
	return c.JSON(fiber.Map{
		"message":   "Upload successful",
		"pickup_id": pickupID,
	})
}

// TempImage handles GET /temp_image/:filename to serve a staged preview.
// @Summary Fetch a staged preview image
// @Description Returns the annotated preview for a staged upload
// @Tags images
// @Produce image/jpeg
// @Param filename path string true "Staging token"
// @Success 200 {file} binary "Annotated preview"
// @Failure 404 {object} map[string]interface{} "Image not found"
// @Router /temp_image/{filename} [get]
func (h *PickupHandler) TempImage(c *fiber.Ctx) error {
	filename := c.Params("filename")
	data, err := h.Service.Staging.ReadPreview(filename)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": true, "message": ImageNotFoundError,
			})
		}
		log.Printf("Error reading staged preview %s: %v", filename, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": true, "message": err.Error(),
		})
	}
	c.Set(fiber.HeaderContentType, http.DetectContentType(data))
	return c.Status(fiber.StatusOK).Send(data)
}

// Image handles GET /image/:filename to serve a confirmed pickup photo.
// @Summary Fetch a confirmed pickup photo
// @Description Returns the durable annotated image for a confirmed pickup
// @Tags images
// @Produce image/jpeg
// @Param filename path string true "Photo reference"
// @Success 200 {file} binary "Annotated image"
// @Failure 404 {object} map[string]interface{} "Image not found"
// @Router /image/{filename} [get]
func (h *PickupHandler) Image(c *fiber.Ctx) error {
	filename := c.Params("filename")
	data, err := h.ImageCache.Get(c.Context(), filename)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": true, "message": ImageNotFoundError,
			})
		}
		log.Printf("Error reading durable image %s: %v", filename, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": true, "message": err.Error(),
		})
	}
	c.Set(fiber.HeaderContentType, http.DetectContentType(data))
	return c.Status(fiber.StatusOK).Send(data)
}

// readUpload drains a multipart file into memory.
func readUpload(fileHeader *multipart.FileHeader) ([]byte, string, error) {
	src, err := fileHeader.Open()
	if err != nil {
		return nil, "", err
	}
	defer src.Close()
	data, err := io.ReadAll(src)
	if err != nil {
		return nil, "", err
	}
	return data, fileHeader.Filename, nil
}
