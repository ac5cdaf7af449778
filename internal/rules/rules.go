package rules

import (
	"fmt"
	"strings"

	"skywatch/internal/config"
	"skywatch/internal/model"
)

// RuleSet maps a weather snapshot to candidate alerts. Evaluation is pure:
// no clock, no I/O, no shared state, so the same snapshot always yields the
// same alerts (ids included) wherever it is evaluated.
type RuleSet struct {
	th config.RulesConfig
}

func New(th config.RulesConfig) *RuleSet {
	return &RuleSet{th: th}
}

func Default() *RuleSet {
	return New(config.DefaultConfig().Rules)
}

// Evaluate returns current-conditions alerts first, then forecast alerts in
// chronological order of the underlying points. Missing optional fields mean
// the rule does not fire; they are never an error.
func (r *RuleSet) Evaluate(userID string, snap model.Snapshot) []model.Alert {
	if snap.Current == nil {
		return nil
	}
	out := r.evaluateCurrent(userID, *snap.Current)
	loc := snap.Current.Location()
	for _, fp := range snap.Forecast {
		out = append(out, r.evaluateForecast(userID, loc, fp)...)
	}
	return out
}

func (r *RuleSet) evaluateCurrent(userID string, cur model.Observation) []model.Alert {
	loc := cur.Location()
	bucket := model.HourBucket(cur.Time)
	out := make([]model.Alert, 0, 2)

	if cur.TempC > r.th.HighTempC {
		sev := model.SeverityHigh
		if cur.TempC > r.th.ExtremeHighTempC {
			sev = model.SeverityExtreme
		}
		out = append(out, model.Alert{
			ID:        model.AlertID(userID, model.TypeHighTemp, loc, bucket),
			UserID:    userID,
			Type:      model.TypeHighTemp,
			Severity:  sev,
			Message:   fmt.Sprintf("High temperature warning: %.1f°C in %s", cur.TempC, cur.City),
			Location:  loc,
			Timestamp: cur.Time,
			Data:      model.TempData{Temperature: cur.TempC, Threshold: r.th.HighTempC},
		})
	}

	if cur.TempC < r.th.LowTempC {
		sev := model.SeverityHigh
		if cur.TempC < r.th.ExtremeLowTempC {
			sev = model.SeverityExtreme
		}
		out = append(out, model.Alert{
			ID:        model.AlertID(userID, model.TypeLowTemp, loc, bucket),
			UserID:    userID,
			Type:      model.TypeLowTemp,
			Severity:  sev,
			Message:   fmt.Sprintf("Low temperature warning: %.1f°C in %s", cur.TempC, cur.City),
			Location:  loc,
			Timestamp: cur.Time,
			Data:      model.TempData{Temperature: cur.TempC, Threshold: r.th.LowTempC},
		})
	}

	if cur.WindSpeedMS > r.th.HighWindMS {
		sev := model.SeverityHigh
		if cur.WindSpeedMS > r.th.ExtremeWindMS {
			sev = model.SeverityExtreme
		}
		kmh := cur.WindSpeedMS * 3.6
		out = append(out, model.Alert{
			ID:        model.AlertID(userID, model.TypeHighWind, loc, bucket),
			UserID:    userID,
			Type:      model.TypeHighWind,
			Severity:  sev,
			Message:   fmt.Sprintf("High wind warning: %.1f km/h in %s", kmh, cur.City),
			Location:  loc,
			Timestamp: cur.Time,
			Data:      model.WindData{WindSpeedKmh: kmh, Threshold: r.th.HighWindMS * 3.6},
		})
	}

	if cur.Condition == "Thunderstorm" {
		out = append(out, model.Alert{
			ID:        model.AlertID(userID, model.TypeStorm, loc, bucket),
			UserID:    userID,
			Type:      model.TypeStorm,
			Severity:  model.SeverityHigh,
			Message:   fmt.Sprintf("Thunderstorm warning in %s", cur.City),
			Location:  loc,
			Timestamp: cur.Time,
			Data:      model.ConditionData{Condition: cur.Condition, Description: cur.Description},
		})
	}

	if cur.Condition == "Rain" && cur.Rain1hMM != nil && *cur.Rain1hMM > r.th.HeavyRainMM {
		out = append(out, model.Alert{
			ID:        model.AlertID(userID, model.TypeHeavyRain, loc, bucket),
			UserID:    userID,
			Type:      model.TypeHeavyRain,
			Severity:  model.SeverityMedium,
			Message:   fmt.Sprintf("Heavy rain warning: %.1fmm/h in %s", *cur.Rain1hMM, cur.City),
			Location:  loc,
			Timestamp: cur.Time,
			Data:      model.RainData{RainfallMM: *cur.Rain1hMM, Threshold: r.th.HeavyRainMM},
		})
	}

	if mentionsRain(cur.Condition) || anyMentions(cur.Conditions, "rain") {
		out = append(out, model.Alert{
			ID:        model.AlertID(userID, model.TypeRainNow, loc, bucket),
			UserID:    userID,
			Type:      model.TypeRainNow,
			Severity:  model.SeverityLow,
			Message:   fmt.Sprintf("Rain currently detected in %s", loc),
			Location:  loc,
			Timestamp: cur.Time,
			Data:      model.ConditionData{Condition: cur.Condition, Description: cur.Description},
		})
	}

	return out
}

func (r *RuleSet) evaluateForecast(userID, loc string, fp model.ForecastPoint) []model.Alert {
	ts := fp.Time.UTC()
	when := ts.Format("2006-01-02 15:04")
	var out []model.Alert

	if fp.TempC > r.th.HighTempC {
		sev := model.SeverityHigh
		if fp.TempC > r.th.ExtremeHighTempC {
			sev = model.SeverityExtreme
		}
		out = append(out, model.Alert{
			ID:        model.AlertID(userID, model.TypeHighTempForecast, loc, ts),
			UserID:    userID,
			Type:      model.TypeHighTempForecast,
			Severity:  sev,
			Message:   fmt.Sprintf("Forecast: temperature of %.1f°C expected in %s at %s", fp.TempC, loc, when),
			Location:  loc,
			Timestamp: fp.Time,
			Data:      model.TempData{Temperature: fp.TempC, Threshold: r.th.HighTempC},
		})
	}

	if fp.TempC < r.th.LowTempC {
		sev := model.SeverityHigh
		if fp.TempC < r.th.ExtremeLowTempC {
			sev = model.SeverityExtreme
		}
		out = append(out, model.Alert{
			ID:        model.AlertID(userID, model.TypeLowTempForecast, loc, ts),
			UserID:    userID,
			Type:      model.TypeLowTempForecast,
			Severity:  sev,
			Message:   fmt.Sprintf("Forecast: temperature dropping to %.1f°C in %s at %s", fp.TempC, loc, when),
			Location:  loc,
			Timestamp: fp.Time,
			Data:      model.TempData{Temperature: fp.TempC, Threshold: r.th.LowTempC},
		})
	}

	if fp.WindSpeedMS > r.th.HighWindMS {
		sev := model.SeverityHigh
		if fp.WindSpeedMS > r.th.ExtremeWindMS {
			sev = model.SeverityExtreme
		}
		kmh := fp.WindSpeedMS * 3.6
		out = append(out, model.Alert{
			ID:        model.AlertID(userID, model.TypeHighWindForecast, loc, ts),
			UserID:    userID,
			Type:      model.TypeHighWindForecast,
			Severity:  sev,
			Message:   fmt.Sprintf("Forecast: winds up to %.1f km/h expected in %s at %s", kmh, loc, when),
			Location:  loc,
			Timestamp: fp.Time,
			Data:      model.WindData{WindSpeedKmh: kmh, Threshold: r.th.HighWindMS * 3.6},
		})
	}

	if anyMentions(fp.Conditions, "rain") || anyMentions(fp.Conditions, "storm") {
		out = append(out, model.Alert{
			ID:        model.AlertID(userID, model.TypeRainForecast, loc, ts),
			UserID:    userID,
			Type:      model.TypeRainForecast,
			Severity:  model.SeverityLow,
			Message:   fmt.Sprintf("Forecast: rain expected in %s at %s", loc, when),
			Location:  loc,
			Timestamp: fp.Time,
			Data:      model.ConditionData{Condition: firstCondition(fp.Conditions)},
		})
	}

	return out
}

func mentionsRain(condition string) bool {
	return strings.Contains(strings.ToLower(condition), "rain")
}

func anyMentions(conditions []string, substr string) bool {
	for _, c := range conditions {
		if strings.Contains(strings.ToLower(c), substr) {
			return true
		}
	}
	return false
}

func firstCondition(conditions []string) string {
	if len(conditions) == 0 {
		return ""
	}
	return conditions[0]
}
