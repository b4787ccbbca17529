package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
)

// AppConfig holds everything the process reads from the environment.
type AppConfig struct {
	// Weather Underground personal weather station.
	WUAPIKey    string
	WUStationID string

	// AEMET OpenData.
	AemetAPIKey    string
	AemetMunicipio string
	AemetArea      string
	AlertLocale    string

	// Document store.
	MongoURL string
	DBName   string

	// PollInterval controls the background fetch cadence.
	PollInterval time.Duration

	Port        string
	CORSOrigins []string
	AppEnv      string
	LogLevel    slog.Level
}

// Load reads configuration from the environment with sensible defaults.
// Only the Mongo connection string is mandatory.
func Load() (*AppConfig, error) {
	cfg := &AppConfig{}

	cfg.WUAPIKey = os.Getenv("WEATHER_UNDERGROUND_API_KEY")
	cfg.WUStationID = os.Getenv("WEATHER_UNDERGROUND_STATION_ID")

	cfg.AemetAPIKey = os.Getenv("AEMET_API_KEY")
	cfg.AemetMunicipio = getenvDefault("AEMET_MUNICIPIO", "23091") // Villacarrillo
	cfg.AemetArea = getenvDefault("AEMET_AREA", "61")              // Andalucía
	cfg.AlertLocale = getenvDefault("ALERT_LOCALE", "Jaén")

	cfg.MongoURL = os.Getenv("MONGO_URL")
	if cfg.MongoURL == "" {
		return nil, fmt.Errorf("MONGO_URL is required")
	}
	cfg.DBName = getenvDefault("DB_NAME", "weather")

	intervalStr := getenvDefault("POLL_INTERVAL", "300s")
	interval, err := time.ParseDuration(intervalStr)
	if err != nil {
		return nil, fmt.Errorf("invalid POLL_INTERVAL: %w", err)
	}
	cfg.PollInterval = interval

	cfg.Port = getenvDefault("PORT", "8080")
	cfg.CORSOrigins = strings.Split(getenvDefault("CORS_ORIGINS", "*"), ",")
	cfg.AppEnv = getenvDefault("APP_ENV", "dev")

	level, err := parseLogLevel(getenvDefault("LOG_LEVEL", "info"))
	if err != nil {
		return nil, err
	}
	cfg.LogLevel = level

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}
