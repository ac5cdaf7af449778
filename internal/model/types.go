package model

import "time"

type Severity string

const (
	SeverityLow     Severity = "low"
	SeverityMedium  Severity = "medium"
	SeverityHigh    Severity = "high"
	SeverityExtreme Severity = "extreme"
)

var severityRank = map[Severity]int{
	SeverityLow:     0,
	SeverityMedium:  1,
	SeverityHigh:    2,
	SeverityExtreme: 3,
}

func (s Severity) Rank() int {
	return severityRank[s]
}

type AlertType string

const (
	TypeHighTemp         AlertType = "high_temp"
	TypeLowTemp          AlertType = "low_temp"
	TypeHighWind         AlertType = "high_wind"
	TypeStorm            AlertType = "storm"
	TypeHeavyRain        AlertType = "heavy_rain"
	TypeRainNow          AlertType = "rain_now"
	TypeHighTempForecast AlertType = "high_temp_forecast"
	TypeLowTempForecast  AlertType = "low_temp_forecast"
	TypeHighWindForecast AlertType = "high_wind_forecast"
	TypeRainForecast     AlertType = "rain_forecast"
)

// Observation is a single current-conditions reading for one location.
type Observation struct {
	TempC       float64   `json:"temp_c"`
	WindSpeedMS float64   `json:"wind_speed_ms"`
	HumidityPct float64   `json:"humidity_pct"`
	Rain1hMM    *float64  `json:"rain_1h_mm,omitempty"`
	Condition   string    `json:"condition"`
	Description string    `json:"description,omitempty"`
	Conditions  []string  `json:"conditions,omitempty"`
	City        string    `json:"city"`
	Country     string    `json:"country"`
	Time        time.Time `json:"time"`
}

type ForecastPoint struct {
	TempC       float64   `json:"temp_c"`
	WindSpeedMS float64   `json:"wind_speed_ms"`
	HumidityPct float64   `json:"humidity_pct"`
	Rain3hMM    *float64  `json:"rain_3h_mm,omitempty"`
	Conditions  []string  `json:"conditions,omitempty"`
	Time        time.Time `json:"time"`
}

// Snapshot bundles one fetch of current plus forecast data for a location.
// The forecast list is chronological; an empty list is valid.
type Snapshot struct {
	Current  *Observation    `json:"current"`
	Forecast []ForecastPoint `json:"forecast,omitempty"`
}

func (o Observation) Location() string {
	if o.Country == "" {
		return o.City
	}
	return o.City + ", " + o.Country
}
