package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/aliialzein/PsyConnect/internal/config"
	"github.com/aliialzein/PsyConnect/internal/database"
	"github.com/aliialzein/PsyConnect/internal/observability"
	"github.com/aliialzein/PsyConnect/internal/routes"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		observability.InitLogger("psyconnect", "production")
		observability.GetLogger().Fatal().Err(err).Msg("failed to load config")
	}

	observability.InitLogger("psyconnect", cfg.AppEnv)
	log := *observability.GetLogger()

	if cfg.DBUrl == "" {
		log.Fatal().Msg("DB_URL is required")
	}
	pool, err := database.Connect(context.Background(), cfg.DBUrl)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	log.Info().Msg("connected to PostgreSQL")

	app := fiber.New()

	app.Use(cors.New())
	app.Use(fiberlogger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
		})
	})

	reminderService := routes.RegisterRoutes(app, cfg, pool, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		if err := reminderService.Run(ctx); err != nil && err != context.Canceled {
			log.Error().Err(err).Msg("reminder loop exited")
		}
	}()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Info().Msg("shutting down")
		cancel()
		_ = app.Shutdown()
	}()

	log.Info().Str("port", cfg.Port).Msg("server starting")
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("server failed to start")
	}
}
