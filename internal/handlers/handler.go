package handlers

import (
	"errors"

	"github.com/arnold/achievements-api/internal/collection"
	"github.com/arnold/achievements-api/internal/config"
	"github.com/arnold/achievements-api/internal/models"
	"github.com/arnold/achievements-api/internal/services"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Handler serves the participant, admin and live endpoints.
type Handler struct {
	Board    *collection.Board
	Hub      *Hub
	Uploader services.Uploader
	Push     *services.PushService
	DB       *gorm.DB
	Config   *config.Config
	Log      *zap.Logger
}

// day resolves the :day route parameter to its synchronizer.
func (h *Handler) day(c *fiber.Ctx) (models.Day, *collection.Synchronizer, error) {
	day, ok := models.ParseDay(c.Params("day"))
	if !ok {
		return "", nil, c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Unknown day",
		})
	}
	list, ok := h.Board.Day(day)
	if !ok {
		return "", nil, c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Unknown day",
		})
	}
	return day, list, nil
}

// writeError answers a failed collection operation.
func (h *Handler) writeError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, collection.ErrIncomplete),
		errors.Is(err, collection.ErrMissingProof),
		errors.Is(err, collection.ErrIndexOutOfRange),
		errors.Is(err, collection.ErrNothingSelected):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	case errors.Is(err, collection.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Achievement not found",
		})
	case errors.Is(err, collection.ErrUnknownDay):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Unknown day",
		})
	case errors.Is(err, collection.ErrNotSelected):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Achievements are not loaded yet",
		})
	case errors.Is(err, services.ErrUploadUnavailable):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Image upload is not available right now",
		})
	}
	h.Log.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
	return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
		"error": "Failed to save changes",
	})
}
