package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/jcarrillo7/weather-station-api/internal/common"
	"github.com/jcarrillo7/weather-station-api/internal/weather"
)

const (
	aemetTimeout = 15 * time.Second
	forecastDays = 5
	maxAlerts    = 5
)

// errNoAemetData marks an AEMET metadata response that carries no payload
// pointer. For alerts that is the normal "nothing active" answer.
var errNoAemetData = errors.New("aemet: no data available")

// AemetClient fetches forecasts and CAP alerts from the AEMET OpenData
// API. Every payload sits behind a two-step fetch: the first request
// returns metadata with a pointer URL, the second retrieves the data.
type AemetClient struct {
	client    *http.Client
	apiKey    string
	baseURL   string
	municipio string
	area      string
	locale    string
	circuit   *gobreaker.CircuitBreaker
}

// NewAemetClient creates a client for a fixed municipality (daily
// forecast), alert area, and locale substring used to narrow alerts.
func NewAemetClient(client *http.Client, apiKey, municipio, area, locale string) *AemetClient {
	return &AemetClient{
		client:    client,
		apiKey:    apiKey,
		baseURL:   "https://opendata.aemet.es/opendata/api",
		municipio: municipio,
		area:      area,
		locale:    locale,
		circuit:   newBreaker("aemet"),
	}
}

// Forecast returns the next few days of the municipal forecast.
func (c *AemetClient) Forecast(ctx context.Context) (weather.ForecastBulletin, error) {
	body, err := c.fetchPayload(ctx, "/prediccion/especifica/municipio/diaria/"+c.municipio)
	if err != nil {
		return weather.ForecastBulletin{}, err
	}

	var payload []aemetPrediction
	if err := json.Unmarshal(body, &payload); err != nil {
		return weather.ForecastBulletin{}, fmt.Errorf("decode forecast payload: %w", err)
	}
	if len(payload) == 0 {
		return weather.ForecastBulletin{}, errNoAemetData
	}

	prediction := payload[0]
	bulletin := weather.ForecastBulletin{
		Municipio: prediction.Nombre,
		Provincia: prediction.Provincia,
		Elaborado: prediction.Elaborado,
	}

	days := prediction.Prediccion.Dia
	if len(days) > forecastDays {
		days = days[:forecastDays]
	}
	for _, dia := range days {
		bulletin.Days = append(bulletin.Days, parseForecastDay(dia))
	}
	return bulletin, nil
}

// Alerts returns active CAP alerts for the configured area. An upstream
// 404, an estado of 404, or a missing payload pointer all mean "no active
// alerts" and yield an empty non-error result.
func (c *AemetClient) Alerts(ctx context.Context) ([]weather.Alert, error) {
	ctx, cancel := context.WithTimeout(ctx, aemetTimeout)
	defer cancel()

	meta, err := c.fetchMeta(ctx, "/avisos_cap/ultimoelaborado/area/"+c.area)
	if err != nil {
		if errors.Is(err, errNoAemetData) {
			return []weather.Alert{}, nil
		}
		return nil, err
	}

	body, err := c.get(ctx, meta.Datos)
	if err != nil {
		return nil, err
	}

	alerts := decodeAlerts(body)
	alerts = filterByLocale(alerts, c.locale)
	if len(alerts) > maxAlerts {
		alerts = alerts[:maxAlerts]
	}
	return alerts, nil
}

// fetchPayload runs the two-step fetch for endpoints where missing data is
// an error (forecasts).
func (c *AemetClient) fetchPayload(ctx context.Context, path string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, aemetTimeout)
	defer cancel()

	meta, err := c.fetchMeta(ctx, path)
	if err != nil {
		return nil, err
	}
	return c.get(ctx, meta.Datos)
}

func (c *AemetClient) fetchMeta(ctx context.Context, path string) (*aemetMeta, error) {
	buildRequest := func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("api_key", c.apiKey)
		req.Header.Set("Accept", "application/json")
		return req, nil
	}

	resp, err := doRequest(ctx, c.client, c.circuit, buildRequest)
	if err != nil {
		if hasStatus(err, http.StatusNotFound) {
			return nil, errNoAemetData
		}
		return nil, err
	}
	defer resp.Body.Close()

	var meta aemetMeta
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return nil, fmt.Errorf("decode aemet metadata: %w", err)
	}
	if meta.Estado == http.StatusNotFound || meta.Datos == "" {
		return nil, errNoAemetData
	}
	if meta.Estado != http.StatusOK {
		return nil, fmt.Errorf("aemet metadata estado %d: %s", meta.Estado, meta.Descripcion)
	}
	return &meta, nil
}

// get retrieves the payload URL from step one. The payload host is not the
// API host, so the request carries no api_key header.
func (c *AemetClient) get(ctx context.Context, rawURL string) ([]byte, error) {
	buildRequest := func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, rawURL, nil)
	}

	resp, err := doRequest(ctx, c.client, c.circuit, buildRequest)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}

func parseForecastDay(dia aemetDay) weather.ForecastDay {
	day := weather.ForecastDay{
		Fecha:      dia.Fecha,
		TempMax:    dia.Temperatura.Maxima.intPtr(),
		TempMin:    dia.Temperatura.Minima.intPtr(),
		HumedadMax: dia.HumedadRelativa.Maxima.intPtr(),
		HumedadMin: dia.HumedadRelativa.Minima.intPtr(),
	}

	// Prefer the all-day sky entry; AEMET uses 12-24, 00-24, or an empty
	// periodo for it depending on lead time.
	for _, ec := range dia.EstadoCielo {
		if ec.Periodo == "12-24" || ec.Periodo == "00-24" || ec.Periodo == "" {
			day.Cielo = ec.Descripcion
			break
		}
	}
	if day.Cielo == "" && len(dia.EstadoCielo) > 0 {
		day.Cielo = dia.EstadoCielo[0].Descripcion
	}

	for _, pp := range dia.ProbPrecipitacion {
		if v := pp.probability(); v > day.ProbPrecipitacion {
			day.ProbPrecipitacion = v
		}
	}

	for _, v := range dia.Viento {
		speed := v.Velocidad.intPtr()
		if speed == nil || *speed == 0 {
			continue
		}
		day.VientoVelocidad = speed
		if v.Direccion != "" {
			dir := v.Direccion
			day.VientoDireccion = &dir
		}
		break
	}

	return day
}

// decodeAlerts tries the payload as JSON first and falls back to naive
// CAP-XML tag extraction, mirroring the mixed formats AEMET serves.
func decodeAlerts(body []byte) []weather.Alert {
	var list []weather.Alert
	if err := json.Unmarshal(body, &list); err == nil {
		return list
	}
	var single weather.Alert
	if err := json.Unmarshal(body, &single); err == nil && single != (weather.Alert{}) {
		return []weather.Alert{single}
	}
	return extractCapAlerts(string(body))
}

var (
	eventRe       = regexp.MustCompile(`(?s)<event>(.*?)</event>`)
	headlineRe    = regexp.MustCompile(`(?s)<headline>(.*?)</headline>`)
	descriptionRe = regexp.MustCompile(`(?s)<description>(.*?)</description>`)
	severityRe    = regexp.MustCompile(`(?s)<severity>(.*?)</severity>`)
)

func extractCapAlerts(payload string) []weather.Alert {
	events := captures(eventRe, payload)
	headlines := captures(headlineRe, payload)
	descriptions := captures(descriptionRe, payload)
	severities := captures(severityRe, payload)

	alerts := make([]weather.Alert, 0, len(events))
	for i := range events {
		alert := weather.Alert{
			Event:    events[i],
			Severity: "Unknown",
		}
		if i < len(headlines) {
			alert.Headline = headlines[i]
		}
		if i < len(descriptions) {
			alert.Description = descriptions[i]
		}
		if i < len(severities) {
			alert.Severity = severities[i]
		}
		alerts = append(alerts, alert)
	}
	return alerts
}

func captures(re *regexp.Regexp, s string) []string {
	matches := re.FindAllStringSubmatch(s, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, strings.TrimSpace(m[1]))
	}
	return out
}

// filterByLocale narrows alerts to those mentioning the locale in their
// headline or description. When nothing matches (regional bulletins often
// name only provinces elsewhere), the unfiltered set is kept.
func filterByLocale(alerts []weather.Alert, locale string) []weather.Alert {
	if locale == "" {
		return alerts
	}
	var matched []weather.Alert
	for _, a := range alerts {
		if common.HasAny(a.Headline, locale) || common.HasAny(a.Description, locale) {
			matched = append(matched, a)
		}
	}
	if len(matched) == 0 {
		return alerts
	}
	return matched
}

// aemetMeta is the step-one response envelope.
type aemetMeta struct {
	Estado      int    `json:"estado"`
	Datos       string `json:"datos"`
	Descripcion string `json:"descripcion"`
	Metadatos   string `json:"metadatos"`
}

type aemetPrediction struct {
	Nombre     string `json:"nombre"`
	Provincia  string `json:"provincia"`
	Elaborado  string `json:"elaborado"`
	Prediccion struct {
		Dia []aemetDay `json:"dia"`
	} `json:"prediccion"`
}

type aemetDay struct {
	Fecha             string             `json:"fecha"`
	Temperatura       aemetExtremes      `json:"temperatura"`
	HumedadRelativa   aemetExtremes      `json:"humedadRelativa"`
	EstadoCielo       []aemetPeriodValue `json:"estadoCielo"`
	ProbPrecipitacion []aemetProb        `json:"probPrecipitacion"`
	Viento            []aemetWind        `json:"viento"`
}

type aemetExtremes struct {
	Maxima flexInt `json:"maxima"`
	Minima flexInt `json:"minima"`
}

type aemetPeriodValue struct {
	Periodo     string `json:"periodo"`
	Descripcion string `json:"descripcion"`
}

type aemetProb struct {
	Periodo string  `json:"periodo"`
	Value   flexInt `json:"value"`
	Valor   flexInt `json:"valor"`
}

func (p aemetProb) probability() int {
	if v := p.Value.intPtr(); v != nil {
		return *v
	}
	if v := p.Valor.intPtr(); v != nil {
		return *v
	}
	return 0
}

type aemetWind struct {
	Direccion string  `json:"direccion"`
	Velocidad flexInt `json:"velocidad"`
}

// flexInt tolerates the shapes AEMET serves for numeric fields: numbers,
// quoted numbers, empty strings, and null. Unparseable input reads as
// absent rather than failing the whole payload.
type flexInt struct {
	value int
	set   bool
}

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	f.value = n
	f.set = true
	return nil
}

func (f flexInt) intPtr() *int {
	if !f.set {
		return nil
	}
	v := f.value
	return &v
}
