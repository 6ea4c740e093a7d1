package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arnold/achievements-api/internal/bootstrap"
	"github.com/arnold/achievements-api/internal/collection"
	"github.com/arnold/achievements-api/internal/config"
	"github.com/arnold/achievements-api/internal/database"
	"github.com/arnold/achievements-api/internal/handlers"
	applogger "github.com/arnold/achievements-api/internal/logger"
	"github.com/arnold/achievements-api/internal/middleware"
	"github.com/arnold/achievements-api/internal/routes"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	envErr := godotenv.Load()

	cfg := config.Load()
	log := applogger.New(cfg.AppEnv)
	defer log.Sync()

	if envErr != nil {
		log.Info(".env file not found, using system environment variables")
	}
	if cfg.IsProduction() && len(cfg.JWTSecret) < 32 {
		log.Fatal("JWT_SECRET must be at least 32 characters long in production")
	}

	ctx := context.Background()
	app, err := bootstrap.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal("startup failed", zap.Error(err))
	}
	defer app.Close()

	if created, err := database.EnsureAdmin(app.DB, cfg.AdminUsername, cfg.AdminPassword); err != nil {
		log.Fatal("admin bootstrap failed", zap.Error(err))
	} else if created {
		log.Info("admin account created", zap.String("username", cfg.AdminUsername))
	}

	hub := handlers.NewHub(log.Named("ws"), cfg.WSWriteTimeout)
	board := collection.NewBoard(app.Store, log.Named("collection"), hub.Broadcast)
	openCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	err = board.Open(openCtx)
	cancel()
	if err != nil {
		log.Fatal("loading achievements failed", zap.Error(err))
	}
	defer board.Close()

	server := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler(cfg),
		BodyLimit:    8 * 1024 * 1024,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})

	server.Use(recover.New())
	server.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${method} ${path} (${latency})\n",
	}))
	server.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))
	server.Use(middleware.Metrics())

	server.Static("/uploads", cfg.UploadDir)

	server.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":    "healthy",
			"timestamp": time.Now().Unix(),
			"store":     cfg.StoreBackend,
		})
	})
	server.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	routes.Setup(server, &handlers.Handler{
		Board:    board,
		Hub:      hub,
		Uploader: app.Uploader,
		Push:     app.Push,
		DB:       app.DB,
		Config:   cfg,
		Log:      log.Named("http"),
	})

	go func() {
		log.Info("HTTP server starting",
			zap.String("port", cfg.Port),
			zap.String("env", cfg.AppEnv),
			zap.String("store", cfg.StoreBackend),
			zap.String("uploads", cfg.UploadBackend))
		if err := server.Listen(":" + cfg.Port); err != nil {
			log.Error("server stopped", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	if err := server.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Error("forced shutdown", zap.Error(err))
	}
}

func customErrorHandler(cfg *config.Config) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		message := "Internal Server Error"

		var e *fiber.Error
		if errors.As(err, &e) {
			code = e.Code
			message = e.Message
		}

		// Don't expose internal errors in production
		if cfg.IsProduction() && code == fiber.StatusInternalServerError {
			message = "An error occurred. Please try again later."
		}

		return c.Status(code).JSON(fiber.Map{
			"error": message,
		})
	}
}
