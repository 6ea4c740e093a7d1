package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/arnold/achievements-api/internal/metrics"
	"github.com/arnold/achievements-api/internal/services"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// GetAchievements returns the day's list in display order.
func (h *Handler) GetAchievements(c *fiber.Ctx) error {
	_, list, err := h.day(c)
	if list == nil {
		return err
	}
	return c.JSON(list.Items())
}

// UploadProof stores the proof image and marks the achievement completed.
func (h *Handler) UploadProof(c *fiber.Ctx) error {
	day, list, err := h.day(c)
	if list == nil {
		return err
	}

	id := c.Params("id")
	if _, ok := list.Find(id); !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Achievement not found",
		})
	}

	file, err := c.FormFile("image")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "No image file provided",
		})
	}

	name, contentType, err := services.ProofObjectName(string(day), file.Filename, file.Size)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	src, err := file.Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Failed to read image",
		})
	}
	defer src.Close()

	ctx, cancel := context.WithTimeout(c.UserContext(), 30*time.Second)
	defer cancel()

	proofURL, err := h.Uploader.Upload(ctx, name, contentType, src)
	if err != nil {
		metrics.ProofUploads.WithLabelValues("error").Inc()
		if !errors.Is(err, services.ErrUploadUnavailable) {
			h.Log.Warn("proof upload failed", zap.String("day", string(day)), zap.String("id", id), zap.Error(err))
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"error": "Failed to upload image",
			})
		}
		return h.writeError(c, err)
	}
	metrics.ProofUploads.WithLabelValues("ok").Inc()

	if err := list.MarkComplete(ctx, id, proofURL); err != nil {
		return h.writeError(c, err)
	}

	if item, ok := list.Find(id); ok {
		item.Completed = true
		item.Proof = &proofURL
		go h.Push.NotifyCompleted(context.Background(), day, item)
	}

	return c.JSON(fiber.Map{
		"id":    id,
		"proof": proofURL,
		"sound": h.Config.SuccessSoundURL,
	})
}
