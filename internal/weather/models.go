package weather

import (
	"time"

	"github.com/google/uuid"
)

// Observation is one normalized reading from the station.
// Every measurement channel is optional; upstream regularly omits
// sensors that are offline or not installed.
type Observation struct {
	ID        string    `json:"id" bson:"id"`
	StationID string    `json:"station_id" bson:"station_id"`
	Timestamp time.Time `json:"timestamp" bson:"-"` // always UTC; persisted as an ISO-8601 string

	TempC          *float64 `json:"temp_c" bson:"temp_c,omitempty"`
	TempF          *float64 `json:"temp_f" bson:"temp_f,omitempty"`
	Humidity       *float64 `json:"humidity" bson:"humidity,omitempty"`
	DewpointC      *float64 `json:"dewpoint_c" bson:"dewpoint_c,omitempty"`
	DewpointF      *float64 `json:"dewpoint_f" bson:"dewpoint_f,omitempty"`
	HeatIndexC     *float64 `json:"heat_index_c" bson:"heat_index_c,omitempty"`
	HeatIndexF     *float64 `json:"heat_index_f" bson:"heat_index_f,omitempty"`
	WindChillC     *float64 `json:"wind_chill_c" bson:"wind_chill_c,omitempty"`
	WindChillF     *float64 `json:"wind_chill_f" bson:"wind_chill_f,omitempty"`
	WindSpeedKph   *float64 `json:"wind_speed_kph" bson:"wind_speed_kph,omitempty"`
	WindSpeedMph   *float64 `json:"wind_speed_mph" bson:"wind_speed_mph,omitempty"`
	WindGustKph    *float64 `json:"wind_gust_kph" bson:"wind_gust_kph,omitempty"`
	WindGustMph    *float64 `json:"wind_gust_mph" bson:"wind_gust_mph,omitempty"`
	WindDir        *int     `json:"wind_dir" bson:"wind_dir,omitempty"`
	PressureMb     *float64 `json:"pressure_mb" bson:"pressure_mb,omitempty"`
	PressureIn     *float64 `json:"pressure_in" bson:"pressure_in,omitempty"`
	PrecipRateMm   *float64 `json:"precip_rate_mm" bson:"precip_rate_mm,omitempty"`
	PrecipRateIn   *float64 `json:"precip_rate_in" bson:"precip_rate_in,omitempty"`
	PrecipTotalMm  *float64 `json:"precip_total_mm" bson:"precip_total_mm,omitempty"`
	PrecipTotalIn  *float64 `json:"precip_total_in" bson:"precip_total_in,omitempty"`
	UV             *float64 `json:"uv" bson:"uv,omitempty"`
	SolarRadiation *float64 `json:"solar_radiation" bson:"solar_radiation,omitempty"`
}

// NewObservation returns an Observation with a fresh id, ready for the
// adapter to fill in whatever channels the upstream record carries.
func NewObservation(stationID string, ts time.Time) Observation {
	return Observation{
		ID:        uuid.NewString(),
		StationID: stationID,
		Timestamp: ts.UTC(),
	}
}

// Statistics is the aggregate view over a range of observations.
// All float fields are rounded to one decimal place.
type Statistics struct {
	TempMaxC         *float64 `json:"temp_max_c"`
	TempMinC         *float64 `json:"temp_min_c"`
	TempAvgC         *float64 `json:"temp_avg_c"`
	HumidityAvg      *float64 `json:"humidity_avg"`
	HumidityMax      *float64 `json:"humidity_max"`
	HumidityMin      *float64 `json:"humidity_min"`
	WindAvgKph       *float64 `json:"wind_avg_kph"`
	WindMaxKph       *float64 `json:"wind_max_kph"`
	WindGustMaxKph   *float64 `json:"wind_gust_max_kph"`
	PressureAvgMb    *float64 `json:"pressure_avg_mb"`
	PressureMaxMb    *float64 `json:"pressure_max_mb"`
	PressureMinMb    *float64 `json:"pressure_min_mb"`
	PrecipTotalMm    *float64 `json:"precip_total_mm"`
	UVMax            *float64 `json:"uv_max"`
	SolarMax         *float64 `json:"solar_max"`
	ObservationCount int      `json:"observation_count"`
}

// ForecastDay is one day of the AEMET municipal forecast. Field names stay
// in the agency's vocabulary because the dashboard renders them verbatim.
type ForecastDay struct {
	Fecha             string  `json:"fecha"`
	TempMax           *int    `json:"temp_max"`
	TempMin           *int    `json:"temp_min"`
	Cielo             string  `json:"cielo"`
	ProbPrecipitacion int     `json:"prob_precipitacion"`
	VientoVelocidad   *int    `json:"viento_velocidad"`
	VientoDireccion   *string `json:"viento_direccion"`
	HumedadMax        *int    `json:"humedad_max"`
	HumedadMin        *int    `json:"humedad_min"`
}

// ForecastBulletin wraps the forecast days with the issuing metadata AEMET
// attaches to the prediction.
type ForecastBulletin struct {
	Municipio string        `json:"municipio"`
	Provincia string        `json:"provincia"`
	Elaborado string        `json:"elaborado"`
	Days      []ForecastDay `json:"days"`
}

// Alert is one CAP weather warning.
type Alert struct {
	Event       string `json:"event"`
	Headline    string `json:"headline"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
}
