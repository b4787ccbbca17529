package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"github.com/jcarrillo7/weather-station-api/internal/weather"
)

const (
	currentTimeout = 15 * time.Second
	historyTimeout = 30 * time.Second
)

// WeatherUndergroundClient implements weather.StationClient against the
// Weather Underground PWS API.
type WeatherUndergroundClient struct {
	client    *http.Client
	apiKey    string
	stationID string
	baseURL   string
	circuit   *gobreaker.CircuitBreaker
}

func NewWeatherUndergroundClient(client *http.Client, apiKey, stationID string) *WeatherUndergroundClient {
	return &WeatherUndergroundClient{
		client:    client,
		apiKey:    apiKey,
		stationID: stationID,
		baseURL:   "https://api.weather.com/v2/pws",
		circuit:   newBreaker("wunderground"),
	}
}

// Current returns the station's latest reading.
func (c *WeatherUndergroundClient) Current(ctx context.Context) (weather.Observation, error) {
	ctx, cancel := context.WithTimeout(ctx, currentTimeout)
	defer cancel()

	payload, err := c.fetch(ctx, "/observations/current", nil)
	if err != nil {
		return weather.Observation{}, err
	}
	if len(payload.Observations) == 0 {
		return weather.Observation{}, fmt.Errorf("station %s returned no observations", c.stationID)
	}
	return c.parseObservation(payload.Observations[0]), nil
}

// History returns every reading the station recorded on the calendar day
// containing day (UTC).
func (c *WeatherUndergroundClient) History(ctx context.Context, day time.Time) ([]weather.Observation, error) {
	ctx, cancel := context.WithTimeout(ctx, historyTimeout)
	defer cancel()

	extra := url.Values{}
	extra.Set("date", day.UTC().Format("20060102"))

	payload, err := c.fetch(ctx, "/observations/all/1day", extra)
	if err != nil {
		return nil, err
	}

	observations := make([]weather.Observation, 0, len(payload.Observations))
	for _, raw := range payload.Observations {
		observations = append(observations, c.parseObservation(raw))
	}
	return observations, nil
}

func (c *WeatherUndergroundClient) fetch(ctx context.Context, path string, extra url.Values) (*wuPayload, error) {
	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("stationId", c.stationID)
		values.Set("format", "json")
		values.Set("units", "m")
		values.Set("apiKey", c.apiKey)
		for k, vs := range extra {
			for _, v := range vs {
				values.Add(k, v)
			}
		}

		u := fmt.Sprintf("%s%s?%s", c.baseURL, path, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequest(ctx, c.client, c.circuit, buildRequest)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload wuPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// parseObservation normalizes one upstream record. Every channel is
// optional and a missing or malformed timestamp falls back to the current
// instant; there is no failure mode here.
func (c *WeatherUndergroundClient) parseObservation(raw wuObservation) weather.Observation {
	obs := weather.NewObservation(c.stationID, parseObsTime(raw.ObsTimeUtc, raw.ObsTimeLocal))

	obs.TempC = raw.Metric.Temp
	obs.TempF = raw.Imperial.Temp
	obs.Humidity = raw.Humidity
	obs.DewpointC = raw.Metric.Dewpt
	obs.DewpointF = raw.Imperial.Dewpt
	obs.HeatIndexC = raw.Metric.HeatIndex
	obs.HeatIndexF = raw.Imperial.HeatIndex
	obs.WindChillC = raw.Metric.WindChill
	obs.WindChillF = raw.Imperial.WindChill
	obs.WindSpeedKph = raw.Metric.WindSpeed
	obs.WindSpeedMph = raw.Imperial.WindSpeed
	obs.WindGustKph = raw.Metric.WindGust
	obs.WindGustMph = raw.Imperial.WindGust
	obs.WindDir = raw.WindDir
	obs.PressureMb = raw.Metric.Pressure
	obs.PressureIn = raw.Imperial.Pressure
	obs.PrecipRateMm = raw.Metric.PrecipRate
	obs.PrecipRateIn = raw.Imperial.PrecipRate
	obs.PrecipTotalMm = raw.Metric.PrecipTotal
	obs.PrecipTotalIn = raw.Imperial.PrecipTotal
	obs.UV = raw.UV
	obs.SolarRadiation = raw.SolarRadiation

	return obs
}

func parseObsTime(utc, local string) time.Time {
	for _, s := range []string{utc, local} {
		if s == "" {
			continue
		}
		if ts, err := time.Parse(time.RFC3339, s); err == nil {
			return ts.UTC()
		}
		// obsTimeLocal comes without zone or T separator.
		if ts, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
			return ts.UTC()
		}
	}
	return time.Now().UTC()
}

// wuPayload mirrors the subset of the PWS response we consume. With
// units=m the imperial block is usually absent; both are read so nothing
// is lost when upstream includes it anyway.
type wuPayload struct {
	Observations []wuObservation `json:"observations"`
}

type wuObservation struct {
	ObsTimeUtc     string   `json:"obsTimeUtc"`
	ObsTimeLocal   string   `json:"obsTimeLocal"`
	Humidity       *float64 `json:"humidity"`
	WindDir        *int     `json:"winddir"`
	UV             *float64 `json:"uv"`
	SolarRadiation *float64 `json:"solarRadiation"`
	Metric         wuUnits  `json:"metric"`
	Imperial       wuUnits  `json:"imperial"`
}

type wuUnits struct {
	Temp        *float64 `json:"temp"`
	Dewpt       *float64 `json:"dewpt"`
	HeatIndex   *float64 `json:"heatIndex"`
	WindChill   *float64 `json:"windChill"`
	WindSpeed   *float64 `json:"windSpeed"`
	WindGust    *float64 `json:"windGust"`
	Pressure    *float64 `json:"pressure"`
	PrecipRate  *float64 `json:"precipRate"`
	PrecipTotal *float64 `json:"precipTotal"`
}
