package handlers

import (
	"github.com/arnold/achievements-api/internal/middleware"
	"github.com/arnold/achievements-api/internal/models"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

func (h *Handler) CreateAchievement(c *fiber.Ctx) error {
	day, list, err := h.day(c)
	if list == nil {
		return err
	}

	var req models.AchievementInput
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	id, err := list.Create(c.UserContext(), req)
	if err != nil {
		return h.writeError(c, err)
	}

	h.Log.Info("achievement created",
		zap.String("day", string(day)),
		zap.String("id", id),
		zap.Stringer("admin", middleware.GetAdminID(c)))

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id": id,
	})
}

func (h *Handler) UpdateAchievement(c *fiber.Ctx) error {
	_, list, err := h.day(c)
	if list == nil {
		return err
	}

	var req models.AchievementInput
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	id := c.Params("id")
	if err := list.Update(c.UserContext(), id, req); err != nil {
		return h.writeError(c, err)
	}

	return c.JSON(fiber.Map{
		"id": id,
	})
}

func (h *Handler) DeleteAchievement(c *fiber.Ctx) error {
	_, list, err := h.day(c)
	if list == nil {
		return err
	}

	if err := list.Delete(c.UserContext(), c.Params("id")); err != nil {
		return h.writeError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// ResetAchievement clears a participant's completion and proof.
func (h *Handler) ResetAchievement(c *fiber.Ctx) error {
	_, list, err := h.day(c)
	if list == nil {
		return err
	}

	if err := list.Reset(c.UserContext(), c.Params("id")); err != nil {
		return h.writeError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// ReorderAchievements moves one item. A drop outside the list ("to": null)
// changes nothing.
func (h *Handler) ReorderAchievements(c *fiber.Ctx) error {
	_, list, err := h.day(c)
	if list == nil {
		return err
	}

	var req models.ReorderRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.From == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "from is required",
		})
	}
	if req.To == nil {
		return c.SendStatus(fiber.StatusNoContent)
	}

	if err := list.Reorder(c.UserContext(), *req.From, *req.To); err != nil {
		return h.writeError(c, err)
	}

	return c.JSON(list.Items())
}
