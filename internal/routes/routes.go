package routes

import (
	"time"

	"github.com/arnold/achievements-api/internal/handlers"
	"github.com/arnold/achievements-api/internal/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/websocket/v2"
)

func Setup(app *fiber.App, h *handlers.Handler) {
	api := app.Group("/api")

	days := api.Group("/days/:day")
	days.Get("/achievements", h.GetAchievements)
	days.Post("/achievements/:id/proof", limiter.New(limiter.Config{
		Max:        10,
		Expiration: time.Minute,
	}), h.UploadProof)

	admin := api.Group("/admin")
	admin.Post("/login", limiter.New(limiter.Config{
		Max:        5,
		Expiration: time.Minute,
	}), h.Login)

	protected := admin.Group("/days/:day", middleware.Protected(h.Config.JWTSecret))
	protected.Post("/achievements", h.CreateAchievement)
	protected.Put("/achievements/:id", h.UpdateAchievement)
	protected.Delete("/achievements/:id", h.DeleteAchievement)
	protected.Post("/achievements/:id/reset", h.ResetAchievement)
	protected.Post("/reorder", h.ReorderAchievements)

	// WebSocket for live day snapshots
	app.Use("/ws", handlers.WebSocketUpgrade())
	app.Get("/ws/days/:day", websocket.New(h.HandleWebSocket))
}
