package handlers

import (
	"github.com/arnold/achievements-api/internal/database"
	"github.com/arnold/achievements-api/internal/middleware"
	"github.com/arnold/achievements-api/internal/models"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

func (h *Handler) Login(c *fiber.Ctx) error {
	var req models.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Username == "" || req.Password == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Username and password are required",
		})
	}

	admin, ok := database.Authenticate(h.DB, req.Username, req.Password)
	if !ok {
		h.Log.Info("admin login rejected", zap.String("username", req.Username), zap.String("ip", c.IP()))
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid credentials",
		})
	}

	token, err := middleware.GenerateToken(h.Config.JWTSecret, admin.ID, admin.Username)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to generate token",
		})
	}

	return c.JSON(models.AuthResponse{
		Token: token,
		Admin: *admin,
	})
}
