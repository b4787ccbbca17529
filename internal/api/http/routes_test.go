package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/xuri/excelize/v2"

	"github.com/jcarrillo7/weather-station-api/internal/export"
	"github.com/jcarrillo7/weather-station-api/internal/store"
	"github.com/jcarrillo7/weather-station-api/internal/weather"
)

// stubStation never has data; handlers under test either never reach it
// or are expected to degrade.
type stubStation struct{}

func (stubStation) Current(context.Context) (weather.Observation, error) {
	return weather.Observation{}, errors.New("station offline")
}

func (stubStation) History(context.Context, time.Time) ([]weather.Observation, error) {
	return nil, errors.New("station offline")
}

type stubForecasts struct{}

func (stubForecasts) Forecast(context.Context) (weather.ForecastBulletin, error) {
	return weather.ForecastBulletin{}, errors.New("aemet unreachable")
}

func (stubForecasts) Alerts(context.Context) ([]weather.Alert, error) {
	return []weather.Alert{}, nil
}

func newTestApp(t *testing.T) (*fiber.App, *store.MemoryStore) {
	t.Helper()

	memStore := store.NewMemoryStore()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := weather.NewService(memStore, stubStation{}, log)

	app := fiber.New()
	RegisterRoutes(app, svc, stubForecasts{}, StationInfo{
		StationID:     "ITEST1",
		APIConfigured: true,
		Database:      "weather_test",
	})
	return app, memStore
}

func seedObservation(t *testing.T, s *store.MemoryStore, ts string) weather.Observation {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		t.Fatalf("bad test timestamp %q: %v", ts, err)
	}
	obs := weather.NewObservation("ITEST1", parsed)
	temp := 20.0
	obs.TempC = &temp
	if err := s.Insert(context.Background(), obs); err != nil {
		t.Fatal(err)
	}
	return obs
}

func TestRootEndpoint(t *testing.T) {
	app, _ := newTestApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["station_id"] != "ITEST1" {
		t.Fatalf("expected station_id echo, got %v", body["station_id"])
	}
}

// TestHistoryDateValidation covers the three 400 cases: malformed dates,
// inverted range, oversized range.
func TestHistoryDateValidation(t *testing.T) {
	app, _ := newTestApp(t)

	cases := []struct {
		name  string
		query string
	}{
		{"missing params", ""},
		{"malformed date", "?start_date=2024-01-01&end_date=20240102"},
		{"non-numeric date", "?start_date=abcdefgh&end_date=20240102"},
		{"inverted range", "?start_date=20240105&end_date=20240101"},
		{"oversized range", "?start_date=20240101&end_date=20240301"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/weather/history"+tc.query, nil)
			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", resp.StatusCode)
			}
		})
	}
}

// TestHistoryBoundaryRange verifies a 31-day span passes validation even
// when the upstream has nothing to serve.
func TestHistoryBoundaryRange(t *testing.T) {
	app, _ := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/api/weather/history?start_date=20240101&end_date=20240201", nil)
	resp, err := app.Test(req, 5000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for 31-day span, got %d", resp.StatusCode)
	}

	var body struct {
		Count int                   `json:"count"`
		Data  []weather.Observation `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Count != 0 || body.Data == nil {
		t.Fatalf("expected empty non-null data, got %+v", body)
	}
}

func TestCurrentUnavailableWithEmptyCache(t *testing.T) {
	app, _ := newTestApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/weather/current", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
}

func TestCurrentServedFromCache(t *testing.T) {
	app, memStore := newTestApp(t)
	seedObservation(t, memStore, "2024-01-01T10:00:00Z")

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/weather/current", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["source"] != "cache" {
		t.Fatalf("expected cache source, got %v", body["source"])
	}
}

// TestStatisticsEmptyRange verifies an empty range yields a null
// statistics payload, not an error and not zeroed fields.
func TestStatisticsEmptyRange(t *testing.T) {
	app, _ := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/api/weather/statistics?start_date=20240101&end_date=20240102", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	raw, ok := body["statistics"]
	if !ok {
		t.Fatal("expected statistics key in response")
	}
	if string(raw) != "null" {
		t.Fatalf("expected null statistics, got %s", raw)
	}
}

func TestStatisticsPopulatedRange(t *testing.T) {
	app, memStore := newTestApp(t)
	seedObservation(t, memStore, "2024-01-01T10:00:00Z")
	seedObservation(t, memStore, "2024-01-01T11:00:00Z")

	req := httptest.NewRequest(http.MethodGet, "/api/weather/statistics?start_date=20240101&end_date=20240101", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body struct {
		Statistics *weather.Statistics `json:"statistics"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Statistics == nil {
		t.Fatal("expected statistics payload")
	}
	if body.Statistics.ObservationCount != 2 {
		t.Fatalf("expected count 2, got %d", body.Statistics.ObservationCount)
	}
}

func TestExportEmptyRangeReturns404(t *testing.T) {
	app, _ := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/api/weather/export/excel?start_date=20240101&end_date=20240102", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

// TestExportPopulatedRange verifies the export is a spreadsheet document
// whose data row count matches the observation count.
func TestExportPopulatedRange(t *testing.T) {
	app, memStore := newTestApp(t)
	seedObservation(t, memStore, "2024-01-01T08:00:00Z")
	seedObservation(t, memStore, "2024-01-01T12:00:00Z")
	seedObservation(t, memStore, "2024-01-02T09:00:00Z")

	req := httptest.NewRequest(http.MethodGet, "/api/weather/export/excel?start_date=20240101&end_date=20240102", nil)
	resp, err := app.Test(req, 5000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get(fiber.HeaderContentType); ct != export.ContentType {
		t.Fatalf("expected spreadsheet content type, got %q", ct)
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	wb, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("response is not a valid workbook: %v", err)
	}
	defer wb.Close()

	rows, err := wb.GetRows(export.DataSheet)
	if err != nil {
		t.Fatalf("read data sheet: %v", err)
	}
	// header plus one row per observation
	if len(rows) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(rows))
	}
}

func TestForecastDegradesOnUpstreamFailure(t *testing.T) {
	app, _ := newTestApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/aemet/forecast", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected degraded 200, got %d", resp.StatusCode)
	}

	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "error" {
		t.Fatalf("expected error status, got %v", body["status"])
	}
	if body["forecast"] != nil {
		t.Fatalf("expected null forecast, got %v", body["forecast"])
	}
}

func TestAlertsEmptyResult(t *testing.T) {
	app, _ := newTestApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/aemet/alerts", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body struct {
		Status string          `json:"status"`
		Alerts []weather.Alert `json:"alerts"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Status != "success" || len(body.Alerts) != 0 {
		t.Fatalf("expected empty success result, got %+v", body)
	}
}

func TestStationInfoEcho(t *testing.T) {
	app, _ := newTestApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/station/info", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var info StationInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if info.StationID != "ITEST1" || !info.APIConfigured || info.Database != "weather_test" {
		t.Fatalf("unexpected station info: %+v", info)
	}
}
