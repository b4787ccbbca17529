package export

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/jcarrillo7/weather-station-api/internal/weather"
)

// Sheet names and labels stay in Spanish: the exported workbook is a
// user-facing artifact of a Spanish-language dashboard.
const (
	DataSheet    = "Datos Meteorológicos"
	SummarySheet = "Resumen"

	// ContentType is the MIME type for .xlsx workbooks.
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var dataHeaders = []string{
	"Fecha/Hora", "Temp (°C)", "Temp (°F)", "Humedad (%)",
	"Punto Rocío (°C)", "Viento (km/h)", "Ráfaga (km/h)",
	"Dirección Viento", "Presión (mb)", "Lluvia (mm)",
	"UV", "Radiación Solar",
}

// Filename returns the attachment name for an export covering the given
// YYYYMMDD bounds.
func Filename(startDate, endDate string) string {
	return fmt.Sprintf("weather_data_%s_%s.xlsx", startDate, endDate)
}

// Workbook renders the observations into a two-sheet XLSX document: raw
// data plus a summary derived from the same range. The caller guarantees
// observations is non-empty.
func Workbook(observations []weather.Observation, stationID, startDate, endDate string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", DataSheet); err != nil {
		return nil, err
	}
	if err := writeDataSheet(f, observations); err != nil {
		return nil, err
	}
	if err := writeSummarySheet(f, observations, stationID, startDate, endDate); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("serialize workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeDataSheet(f *excelize.File, observations []weather.Observation) error {
	headerStyle, err := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"3B82F6"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Alignment: &excelize.Alignment{Horizontal: "center"},
		Border: []excelize.Border{
			{Type: "left", Style: 1, Color: "000000"},
			{Type: "right", Style: 1, Color: "000000"},
			{Type: "top", Style: 1, Color: "000000"},
			{Type: "bottom", Style: 1, Color: "000000"},
		},
	})
	if err != nil {
		return err
	}

	for col, header := range dataHeaders {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(DataSheet, cell, header); err != nil {
			return err
		}
	}

	lastHeader, _ := excelize.CoordinatesToCellName(len(dataHeaders), 1)
	if err := f.SetCellStyle(DataSheet, "A1", lastHeader, headerStyle); err != nil {
		return err
	}

	for i, obs := range observations {
		row := i + 2
		values := []interface{}{
			obs.Timestamp.UTC().Format(time.RFC3339),
			cellValue(obs.TempC),
			cellValue(obs.TempF),
			cellValue(obs.Humidity),
			cellValue(obs.DewpointC),
			cellValue(obs.WindSpeedKph),
			cellValue(obs.WindGustKph),
			intCellValue(obs.WindDir),
			cellValue(obs.PressureMb),
			cellValue(obs.PrecipTotalMm),
			cellValue(obs.UV),
			cellValue(obs.SolarRadiation),
		}
		for col, v := range values {
			if v == nil {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(DataSheet, cell, v); err != nil {
				return err
			}
		}
	}

	lastCol, _ := excelize.ColumnNumberToName(len(dataHeaders))
	return f.SetColWidth(DataSheet, "A", lastCol, 15)
}

func writeSummarySheet(f *excelize.File, observations []weather.Observation, stationID, startDate, endDate string) error {
	if _, err := f.NewSheet(SummarySheet); err != nil {
		return err
	}

	stats := weather.Aggregate(observations)

	rows := []struct {
		label string
		value interface{}
	}{
		{"RESUMEN METEOROLÓGICO", ""},
		{"Período", fmt.Sprintf("%s - %s", startDate, endDate)},
		{"Estación", stationID},
		{"Total Observaciones", len(observations)},
		{"", ""},
		{"TEMPERATURA", ""},
		{"Máxima (°C)", summaryValue(stats.TempMaxC)},
		{"Mínima (°C)", summaryValue(stats.TempMinC)},
		{"Media (°C)", summaryValue(stats.TempAvgC)},
		{"", ""},
		{"HUMEDAD", ""},
		{"Media (%)", summaryValue(stats.HumidityAvg)},
		{"", ""},
		{"VIENTO", ""},
		{"Velocidad Media (km/h)", summaryValue(stats.WindAvgKph)},
		{"Ráfaga Máxima (km/h)", summaryValue(stats.WindGustMaxKph)},
		{"", ""},
		{"PRECIPITACIÓN", ""},
		{"Total (mm)", precipValue(stats.PrecipTotalMm)},
	}

	sectionStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 12},
	})
	if err != nil {
		return err
	}

	for i, r := range rows {
		row := i + 1
		labelCell := fmt.Sprintf("A%d", row)
		valueCell := fmt.Sprintf("B%d", row)

		if err := f.SetCellValue(SummarySheet, labelCell, r.label); err != nil {
			return err
		}
		if err := f.SetCellValue(SummarySheet, valueCell, r.value); err != nil {
			return err
		}
		if r.label != "" && r.value == "" {
			if err := f.SetCellStyle(SummarySheet, labelCell, labelCell, sectionStyle); err != nil {
				return err
			}
		}
	}

	if err := f.SetColWidth(SummarySheet, "A", "A", 25); err != nil {
		return err
	}
	return f.SetColWidth(SummarySheet, "B", "B", 20)
}

func cellValue(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func intCellValue(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func summaryValue(v *float64) interface{} {
	if v == nil {
		return "N/A"
	}
	return *v
}

// The rain gauge reports a cumulative counter, so an absent channel means
// zero accumulation, not missing data.
func precipValue(v *float64) interface{} {
	if v == nil {
		return 0
	}
	return *v
}
