package weather

import (
	"encoding/json"
	"time"

	"skywatch/internal/model"
)

// Wire shapes follow the OpenWeather current-weather and 5-day forecast
// responses, which is also the shape clients submit in alerts/check bodies.

type conditionPayload struct {
	Main        string `json:"main"`
	Description string `json:"description"`
}

type currentPayload struct {
	Name string `json:"name"`
	Sys  struct {
		Country string `json:"country"`
	} `json:"sys"`
	Dt   int64 `json:"dt"`
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity float64 `json:"humidity"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Rain    map[string]float64 `json:"rain"`
	Weather []conditionPayload `json:"weather"`
}

type forecastPayload struct {
	List []json.RawMessage `json:"list"`
	City struct {
		Name    string `json:"name"`
		Country string `json:"country"`
	} `json:"city"`
}

type forecastEntry struct {
	Dt    int64  `json:"dt"`
	DtTxt string `json:"dt_txt"`
	Main  struct {
		Temp     float64 `json:"temp"`
		Humidity float64 `json:"humidity"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Rain    map[string]float64 `json:"rain"`
	Weather []conditionPayload `json:"weather"`
}

func (p currentPayload) toObservation() model.Observation {
	obs := model.Observation{
		TempC:       p.Main.Temp,
		WindSpeedMS: p.Wind.Speed,
		HumidityPct: p.Main.Humidity,
		City:        p.Name,
		Country:     p.Sys.Country,
	}
	if p.Dt > 0 {
		obs.Time = time.Unix(p.Dt, 0).UTC()
	} else {
		obs.Time = time.Now().UTC()
	}
	if v, ok := p.Rain["1h"]; ok {
		rain := v
		obs.Rain1hMM = &rain
	}
	if len(p.Weather) > 0 {
		obs.Condition = p.Weather[0].Main
		obs.Description = p.Weather[0].Description
		for _, w := range p.Weather {
			obs.Conditions = append(obs.Conditions, w.Main)
		}
	}
	return obs
}

func (e forecastEntry) toPoint() (model.ForecastPoint, bool) {
	fp := model.ForecastPoint{
		TempC:       e.Main.Temp,
		WindSpeedMS: e.Wind.Speed,
		HumidityPct: e.Main.Humidity,
	}
	switch {
	case e.Dt > 0:
		fp.Time = time.Unix(e.Dt, 0).UTC()
	case e.DtTxt != "":
		ts, err := time.Parse("2006-01-02 15:04:05", e.DtTxt)
		if err != nil {
			return model.ForecastPoint{}, false
		}
		fp.Time = ts.UTC()
	default:
		return model.ForecastPoint{}, false
	}
	if v, ok := e.Rain["3h"]; ok {
		rain := v
		fp.Rain3hMM = &rain
	}
	for _, w := range e.Weather {
		fp.Conditions = append(fp.Conditions, w.Main)
	}
	return fp, true
}

// decodeForecastList parses forecast entries one by one so a single
// malformed point is skipped instead of aborting the rest of the snapshot.
func decodeForecastList(list []json.RawMessage) []model.ForecastPoint {
	out := make([]model.ForecastPoint, 0, len(list))
	for _, raw := range list {
		var entry forecastEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			continue
		}
		fp, ok := entry.toPoint()
		if !ok {
			continue
		}
		out = append(out, fp)
	}
	return out
}

// DecodeSnapshot turns an OpenWeather-shaped weatherData document
// ({current, forecast}) into a Snapshot. A missing or unparseable current
// block yields ErrValidation; forecast problems degrade to fewer points.
func DecodeSnapshot(raw []byte) (model.Snapshot, error) {
	if len(raw) == 0 {
		return model.Snapshot{}, model.ErrValidation
	}
	var doc struct {
		Current  json.RawMessage `json:"current"`
		Forecast json.RawMessage `json:"forecast"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return model.Snapshot{}, model.ErrValidation
	}
	if len(doc.Current) == 0 || string(doc.Current) == "null" {
		return model.Snapshot{}, model.ErrValidation
	}
	var cur currentPayload
	if err := json.Unmarshal(doc.Current, &cur); err != nil {
		return model.Snapshot{}, model.ErrValidation
	}
	obs := cur.toObservation()
	snap := model.Snapshot{Current: &obs}
	if len(doc.Forecast) > 0 && string(doc.Forecast) != "null" {
		var fc forecastPayload
		if err := json.Unmarshal(doc.Forecast, &fc); err == nil {
			snap.Forecast = decodeForecastList(fc.List)
		}
	}
	return snap, nil
}
