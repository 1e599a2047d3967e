package handlers

import (
	"log"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"pickup-service/internal/services"
)

// PointsHandler defines handlers for the per-user points ledger.
type PointsHandler struct {
	Service *services.PickupService
}

// NewPointsHandler creates a new PointsHandler with the given PickupService.
func NewPointsHandler(service *services.PickupService) *PointsHandler {
	return &PointsHandler{Service: service}
}

// UserPoints handles GET /user_points/:user_id to report a user's total
// points and pickup history.
// @Summary Get a user's points
// @Description Returns the summed points and all recorded pickups for a user
// @Tags points
// @Produce json
// @Param user_id path int true "User ID"
// @Success 200 {object} models.UserPointsResult "Ledger totals"
// @Failure 400 {object} map[string]interface{} "Invalid user id"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /user_points/{user_id} [get]
func (h *PointsHandler) UserPoints(c *fiber.Ctx) error {
	userID, err := strconv.Atoi(c.Params("user_id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": true, "message": "invalid user id",
		})
	}

	result, err := h.Service.UserPoints(userID)
	if err != nil {
		log.Printf("Error fetching points for user %d: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": true, "message": err.Error(),
		})
	}
	log.Printf("User %d: %d points over %d pickups", userID, result.Points, len(result.Pickups))
	return c.JSON(result)
}

// NearbyPickups handles GET /pickups/nearby to list pickup spots around a
// point.
// @Summary List nearby pickup spots
// @Description Returns pickup spots within a radius in meters of the given point
// @Tags points
// @Produce json
// @Param lat query number true "Latitude"
// @Param lng query number true "Longitude"
// @Param radius query number false "Radius in meters (default 500)"
// @Success 200 {array} models.PickupSpot "Pickup spots"
// @Failure 400 {object} map[string]interface{} "Invalid coordinates"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /pickups/nearby [get]
func (h *PointsHandler) NearbyPickups(c *fiber.Ctx) error {
	lat, err := strconv.ParseFloat(c.Query("lat"), 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": true, "message": "invalid lat",
		})
	}
	lng, err := strconv.ParseFloat(c.Query("lng"), 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": true, "message": "invalid lng",
		})
	}
	radius := 500.0
	if r := c.Query("radius"); r != "" {
		val, err := strconv.ParseFloat(r, 64)
		if err != nil || val <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": true, "message": "invalid radius",
			})
		}
		radius = val
	}

	spots, err := h.Service.NearbyPickups(lat, lng, radius)
	if err != nil {
		log.Printf("Error listing nearby pickups: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": true, "message": err.Error(),
		})
	}
	return c.JSON(spots)
}
