package httpapi

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/jcarrillo7/weather-station-api/internal/export"
	"github.com/jcarrillo7/weather-station-api/internal/weather"
)

var validate = validator.New()

const maxRangeDays = 31

// ForecastSource is what the AEMET endpoints need from the agency client.
type ForecastSource interface {
	Forecast(ctx context.Context) (weather.ForecastBulletin, error)
	Alerts(ctx context.Context) ([]weather.Alert, error)
}

// StationInfo is the configuration echo served by /api/station/info.
type StationInfo struct {
	StationID     string `json:"station_id"`
	APIConfigured bool   `json:"api_configured"`
	Database      string `json:"database"`
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service *weather.Service, forecasts ForecastSource, info StationInfo) {
	api := app.Group("/api")

	api.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message":    "Weather Station API",
			"station_id": info.StationID,
		})
	})

	api.Get("/weather/current", func(c *fiber.Ctx) error {
		obs, source, err := service.Current(c.Context())
		if err != nil {
			return fiber.NewError(fiber.StatusServiceUnavailable, "unable to fetch weather data")
		}
		return c.JSON(fiber.Map{
			"status": "success",
			"data":   obs,
			"source": source,
		})
	})

	api.Get("/weather/history", func(c *fiber.Ctx) error {
		var q dateRangeQuery
		if err := q.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if q.end.Sub(q.start) > maxRangeDays*24*time.Hour {
			return fiber.NewError(fiber.StatusBadRequest, "date range cannot exceed 31 days")
		}

		observations, err := service.History(c.Context(), q.start, q.end)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch weather history")
		}

		return c.JSON(fiber.Map{
			"status":     "success",
			"count":      len(observations),
			"start_date": q.StartDate,
			"end_date":   q.EndDate,
			"data":       nonNil(observations),
		})
	})

	api.Get("/weather/last24h", func(c *fiber.Ctx) error {
		observations, err := service.Last24h(c.Context())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch trailing window")
		}
		return c.JSON(fiber.Map{
			"status": "success",
			"count":  len(observations),
			"data":   nonNil(observations),
		})
	})

	api.Get("/weather/statistics", func(c *fiber.Ctx) error {
		var q dateRangeQuery
		if err := q.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		stats, err := service.Statistics(c.Context(), q.start, q.end)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to compute statistics")
		}
		if stats == nil {
			return c.JSON(fiber.Map{
				"status":     "success",
				"statistics": nil,
				"message":    "no data found for the specified period",
			})
		}

		return c.JSON(fiber.Map{
			"status":     "success",
			"start_date": q.StartDate,
			"end_date":   q.EndDate,
			"statistics": stats,
		})
	})

	api.Get("/weather/export/excel", func(c *fiber.Ctx) error {
		var q dateRangeQuery
		if err := q.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		observations, err := service.StoredRange(c.Context(), q.start, q.end.AddDate(0, 0, 1))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch weather data")
		}
		if len(observations) == 0 {
			return fiber.NewError(fiber.StatusNotFound, "no data found for the specified period")
		}

		workbook, err := export.Workbook(observations, info.StationID, q.StartDate, q.EndDate)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to generate export")
		}

		c.Set(fiber.HeaderContentType, export.ContentType)
		c.Set(fiber.HeaderContentDisposition, "attachment; filename="+export.Filename(q.StartDate, q.EndDate))
		return c.Send(workbook)
	})

	api.Get("/station/info", func(c *fiber.Ctx) error {
		return c.JSON(info)
	})

	api.Get("/aemet/forecast", func(c *fiber.Ctx) error {
		bulletin, err := forecasts.Forecast(c.Context())
		if err != nil {
			// The dashboard renders a degraded card rather than an error page.
			return c.JSON(fiber.Map{
				"status":   "error",
				"message":  "no se pudo obtener el pronóstico de AEMET",
				"forecast": nil,
			})
		}
		return c.JSON(fiber.Map{
			"status":    "success",
			"municipio": bulletin.Municipio,
			"provincia": bulletin.Provincia,
			"elaborado": bulletin.Elaborado,
			"forecast":  bulletin.Days,
		})
	})

	api.Get("/aemet/alerts", func(c *fiber.Ctx) error {
		alerts, err := forecasts.Alerts(c.Context())
		if err != nil {
			return c.JSON(fiber.Map{
				"status":  "error",
				"alerts":  []weather.Alert{},
				"message": "error al obtener alertas de AEMET",
			})
		}

		if alerts == nil {
			alerts = []weather.Alert{}
		}
		var message interface{}
		if len(alerts) == 0 {
			message = "no hay alertas activas"
		}
		return c.JSON(fiber.Map{
			"status":  "success",
			"alerts":  alerts,
			"message": message,
		})
	})
}

// dateRangeQuery binds and validates the start_date/end_date pair shared
// by the history, statistics, and export endpoints.
type dateRangeQuery struct {
	StartDate string `validate:"required,len=8,numeric"`
	EndDate   string `validate:"required,len=8,numeric"`

	start time.Time
	end   time.Time
}

func (q *dateRangeQuery) bind(c *fiber.Ctx) error {
	q.StartDate = c.Query("start_date")
	q.EndDate = c.Query("end_date")

	if err := validate.Struct(q); err != nil {
		return errors.New("invalid date format; use YYYYMMDD")
	}

	start, err := time.Parse("20060102", q.StartDate)
	if err != nil {
		return errors.New("invalid date format; use YYYYMMDD")
	}
	end, err := time.Parse("20060102", q.EndDate)
	if err != nil {
		return errors.New("invalid date format; use YYYYMMDD")
	}

	if end.Before(start) {
		return errors.New("end date must be after start date")
	}

	q.start = start.UTC()
	q.end = end.UTC()
	return nil
}

func nonNil(observations []weather.Observation) []weather.Observation {
	if observations == nil {
		return []weather.Observation{}
	}
	return observations
}
