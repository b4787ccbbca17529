package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	httpapi "github.com/jcarrillo7/weather-station-api/internal/api/http"
	"github.com/jcarrillo7/weather-station-api/internal/config"
	"github.com/jcarrillo7/weather-station-api/internal/logging"
	"github.com/jcarrillo7/weather-station-api/internal/scheduler"
	"github.com/jcarrillo7/weather-station-api/internal/store"
	"github.com/jcarrillo7/weather-station-api/internal/weather"
	"github.com/jcarrillo7/weather-station-api/internal/weather/providers"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: no .env file found or error loading it: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	appLog := logging.New(cfg.AppEnv, cfg.LogLevel)
	slog.SetDefault(appLog)

	// Document store connection.
	connectCtx, cancelConnect := context.WithTimeout(context.Background(), 10*time.Second)
	mongoClient, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.MongoURL))
	if err != nil {
		log.Fatalf("failed to connect to mongo: %v", err)
	}
	if err := mongoClient.Ping(connectCtx, nil); err != nil {
		log.Fatalf("failed to ping mongo: %v", err)
	}
	cancelConnect()

	obsStore := store.NewMongoStore(mongoClient.Database(cfg.DBName))

	// Shared HTTP client for outbound upstream calls; per-call deadlines
	// live in the adapters.
	httpClient := &http.Client{Timeout: 30 * time.Second}

	station := providers.NewWeatherUndergroundClient(httpClient, cfg.WUAPIKey, cfg.WUStationID)
	aemet := providers.NewAemetClient(httpClient, cfg.AemetAPIKey, cfg.AemetMunicipio, cfg.AemetArea, cfg.AlertLocale)

	service := weather.NewService(obsStore, station, appLog)

	// Background poller writing into the same store as request handlers.
	poller := scheduler.New(cfg.PollInterval, service, appLog)
	if err := poller.Start(); err != nil {
		log.Fatalf("failed to start poller: %v", err)
	}
	defer poller.Stop()

	app := fiber.New(fiber.Config{
		AppName:               "weather-station-api",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.CORSOrigins, ","),
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "weather-station-api",
		})
	})

	httpapi.RegisterRoutes(app, service, aemet, httpapi.StationInfo{
		StationID:     cfg.WUStationID,
		APIConfigured: cfg.WUAPIKey != "" && cfg.WUStationID != "",
		Database:      cfg.DBName,
	})

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()
	appLog.Info("listening", "port", cfg.Port, "station", cfg.WUStationID)

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
	if err := mongoClient.Disconnect(shutdownCtx); err != nil {
		log.Printf("error disconnecting mongo: %v", err)
	}
}
