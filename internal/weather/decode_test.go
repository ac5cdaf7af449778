package weather

import (
	"errors"
	"testing"
	"time"

	"skywatch/internal/model"
)

const sampleBody = `{
	"current": {
		"name": "Madrid",
		"sys": {"country": "ES"},
		"dt": 1752505200,
		"main": {"temp": 36.2, "humidity": 28},
		"wind": {"speed": 4.1},
		"rain": {"1h": 0.4},
		"weather": [{"main": "Rain", "description": "light rain"}]
	},
	"forecast": {
		"city": {"name": "Madrid", "country": "ES"},
		"list": [
			{"dt": 1752516000, "main": {"temp": 33.0}, "wind": {"speed": 2.0}, "weather": [{"main": "Clear"}]},
			{"dt": "not-a-number"},
			{"dt_txt": "2025-07-15 12:00:00", "main": {"temp": 21.0}, "wind": {"speed": 15.5}, "weather": [{"main": "Rain"}]}
		]
	}
}`

func TestDecodeSnapshot(t *testing.T) {
	snap, err := DecodeSnapshot([]byte(sampleBody))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cur := snap.Current
	if cur == nil {
		t.Fatalf("current observation missing")
	}
	if cur.City != "Madrid" || cur.Country != "ES" {
		t.Fatalf("unexpected location: %s, %s", cur.City, cur.Country)
	}
	if cur.TempC != 36.2 || cur.WindSpeedMS != 4.1 {
		t.Fatalf("unexpected readings: %+v", cur)
	}
	if cur.Rain1hMM == nil || *cur.Rain1hMM != 0.4 {
		t.Fatalf("rain reading not mapped: %+v", cur.Rain1hMM)
	}
	if cur.Condition != "Rain" || cur.Description != "light rain" {
		t.Fatalf("condition not mapped: %q %q", cur.Condition, cur.Description)
	}
	if !cur.Time.Equal(time.Unix(1752505200, 0)) {
		t.Fatalf("observation instant must come from dt, got %s", cur.Time)
	}
}

func TestDecodeSkipsMalformedForecastPoints(t *testing.T) {
	snap, err := DecodeSnapshot([]byte(sampleBody))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snap.Forecast) != 2 {
		t.Fatalf("malformed point must be skipped, not fatal; got %d points", len(snap.Forecast))
	}
	if snap.Forecast[0].TempC != 33.0 {
		t.Fatalf("first forecast point mangled: %+v", snap.Forecast[0])
	}
	want := time.Date(2025, 7, 15, 12, 0, 0, 0, time.UTC)
	if !snap.Forecast[1].Time.Equal(want) {
		t.Fatalf("dt_txt fallback not parsed, got %s", snap.Forecast[1].Time)
	}
}

func TestDecodeMissingCurrent(t *testing.T) {
	for _, body := range []string{``, `{}`, `{"current": null}`, `not json`} {
		if _, err := DecodeSnapshot([]byte(body)); !errors.Is(err, model.ErrValidation) {
			t.Fatalf("body %q: expected validation error, got %v", body, err)
		}
	}
}

func TestDecodeNoRainField(t *testing.T) {
	snap, err := DecodeSnapshot([]byte(`{"current": {"name": "Oslo", "main": {"temp": 5}, "weather": [{"main": "Clouds"}]}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.Current.Rain1hMM != nil {
		t.Fatalf("absent rain block must map to nil")
	}
	if snap.Current.Time.IsZero() {
		t.Fatalf("missing dt must fall back to receipt time")
	}
}
