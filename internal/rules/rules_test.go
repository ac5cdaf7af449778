package rules

import (
	"testing"
	"time"

	"skywatch/internal/model"
)

var obsTime = time.Date(2025, 7, 14, 15, 12, 0, 0, time.UTC)

func snapshot(temp, wind float64, condition string) model.Snapshot {
	return model.Snapshot{Current: &model.Observation{
		TempC:       temp,
		WindSpeedMS: wind,
		Condition:   condition,
		Conditions:  []string{condition},
		City:        "Madrid",
		Country:     "ES",
		Time:        obsTime,
	}}
}

func TestHighTempExtreme(t *testing.T) {
	out := Default().Evaluate("user_1", snapshot(36, 0, "Clear"))
	if len(out) != 1 {
		t.Fatalf("expected exactly one alert, got %d", len(out))
	}
	a := out[0]
	if a.Type != model.TypeHighTemp {
		t.Fatalf("expected high_temp, got %s", a.Type)
	}
	if a.Severity != model.SeverityExtreme {
		t.Fatalf("expected extreme severity, got %s", a.Severity)
	}
	data, ok := a.Data.(model.TempData)
	if !ok {
		t.Fatalf("expected TempData payload, got %T", a.Data)
	}
	if data.Temperature != 36 || data.Threshold != 30 {
		t.Fatalf("unexpected payload: %+v", data)
	}
	if !a.Timestamp.Equal(obsTime) {
		t.Fatalf("timestamp should be the observation instant")
	}
}

func TestHighWindNotExtreme(t *testing.T) {
	out := Default().Evaluate("user_1", snapshot(20, 15, "Clear"))
	if len(out) != 1 {
		t.Fatalf("expected exactly one alert, got %d", len(out))
	}
	if out[0].Type != model.TypeHighWind {
		t.Fatalf("expected high_wind, got %s", out[0].Type)
	}
	if out[0].Severity != model.SeverityHigh {
		t.Fatalf("15 m/s should be high, not %s", out[0].Severity)
	}
}

func TestLowTempExtreme(t *testing.T) {
	out := Default().Evaluate("user_1", snapshot(-25, 0, "Snow"))
	if len(out) != 1 {
		t.Fatalf("expected exactly one alert, got %d", len(out))
	}
	if out[0].Type != model.TypeLowTemp || out[0].Severity != model.SeverityExtreme {
		t.Fatalf("unexpected alert: %s/%s", out[0].Type, out[0].Severity)
	}
}

func TestStorm(t *testing.T) {
	out := Default().Evaluate("user_1", snapshot(20, 0, "Thunderstorm"))
	if len(out) != 1 {
		t.Fatalf("expected exactly one alert, got %d", len(out))
	}
	if out[0].Type != model.TypeStorm || out[0].Severity != model.SeverityHigh {
		t.Fatalf("unexpected alert: %s/%s", out[0].Type, out[0].Severity)
	}
}

func TestHeavyRainAndRainNowCoexist(t *testing.T) {
	snap := snapshot(20, 0, "Rain")
	rain := 12.0
	snap.Current.Rain1hMM = &rain
	out := Default().Evaluate("user_1", snap)
	if len(out) != 2 {
		t.Fatalf("expected heavy_rain plus rain_now, got %d alerts", len(out))
	}
	if out[0].Type != model.TypeHeavyRain || out[0].Severity != model.SeverityMedium {
		t.Fatalf("unexpected first alert: %s/%s", out[0].Type, out[0].Severity)
	}
	if out[1].Type != model.TypeRainNow || out[1].Severity != model.SeverityLow {
		t.Fatalf("unexpected second alert: %s/%s", out[1].Type, out[1].Severity)
	}
	if out[0].ID == out[1].ID {
		t.Fatalf("alerts must carry distinct ids")
	}
}

func TestMissingRainFieldDoesNotFire(t *testing.T) {
	out := Default().Evaluate("user_1", snapshot(20, 0, "Rain"))
	for _, a := range out {
		if a.Type == model.TypeHeavyRain {
			t.Fatalf("heavy_rain must not fire without a rainfall reading")
		}
	}
	if len(out) != 1 || out[0].Type != model.TypeRainNow {
		t.Fatalf("expected only rain_now, got %+v", out)
	}
}

func TestEmptyForecastYieldsNoForecastAlerts(t *testing.T) {
	snap := snapshot(36, 0, "Clear")
	snap.Forecast = []model.ForecastPoint{}
	out := Default().Evaluate("user_1", snap)
	for _, a := range out {
		if a.Type == model.TypeHighTempForecast || a.Type == model.TypeRainForecast {
			t.Fatalf("unexpected forecast alert %s", a.Type)
		}
	}
}

func TestForecastAlertsChronological(t *testing.T) {
	snap := snapshot(36, 0, "Clear")
	t1 := obsTime.Add(3 * time.Hour)
	t2 := obsTime.Add(6 * time.Hour)
	snap.Forecast = []model.ForecastPoint{
		{TempC: 32, Time: t1},
		{TempC: 20, WindSpeedMS: 16, Conditions: []string{"Rain"}, Time: t2},
	}
	out := Default().Evaluate("user_1", snap)
	if len(out) != 4 {
		t.Fatalf("expected 4 alerts, got %d", len(out))
	}
	if out[0].Type != model.TypeHighTemp {
		t.Fatalf("current alerts must come first, got %s", out[0].Type)
	}
	if out[1].Type != model.TypeHighTempForecast || !out[1].Timestamp.Equal(t1) {
		t.Fatalf("unexpected second alert: %s at %s", out[1].Type, out[1].Timestamp)
	}
	if out[2].Type != model.TypeHighWindForecast || out[3].Type != model.TypeRainForecast {
		t.Fatalf("unexpected tail alerts: %s, %s", out[2].Type, out[3].Type)
	}
	if !out[3].Timestamp.Equal(t2) {
		t.Fatalf("forecast alert must carry the forecast instant")
	}
}

func TestDeterministicIDs(t *testing.T) {
	snap := snapshot(36, 15, "Clear")
	first := Default().Evaluate("user_1", snap)
	second := Default().Evaluate("user_1", snap)
	if len(first) != len(second) {
		t.Fatalf("evaluations disagree: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Fatalf("ids must be stable across evaluations: %s vs %s", first[i].ID, second[i].ID)
		}
	}

	// Same condition observed later within the same hour converges to the
	// same id.
	shifted := snapshot(36, 15, "Clear")
	shifted.Current.Time = obsTime.Add(20 * time.Minute)
	third := Default().Evaluate("user_1", shifted)
	if third[0].ID != first[0].ID {
		t.Fatalf("same hour bucket must yield the same id")
	}

	// A different user never collides.
	other := Default().Evaluate("user_2", snap)
	if other[0].ID == first[0].ID {
		t.Fatalf("ids must be scoped per user")
	}
}

func TestMildConditionsNoAlerts(t *testing.T) {
	out := Default().Evaluate("user_1", snapshot(18, 3, "Clouds"))
	if len(out) != 0 {
		t.Fatalf("expected no alerts, got %d", len(out))
	}
}
