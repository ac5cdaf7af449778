package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"
)

// AlertData is the per-rule payload attached to an alert. The concrete
// shape is determined by the alert type.
type AlertData interface {
	alertData()
}

type TempData struct {
	Temperature float64 `json:"temperature"`
	Threshold   float64 `json:"threshold"`
}

// WindData carries km/h values, matching what the alert message shows.
type WindData struct {
	WindSpeedKmh float64 `json:"windSpeed"`
	Threshold    float64 `json:"threshold"`
}

type RainData struct {
	RainfallMM float64 `json:"rainfall"`
	Threshold  float64 `json:"threshold"`
}

type ConditionData struct {
	Condition   string `json:"weatherCondition"`
	Description string `json:"description,omitempty"`
}

func (TempData) alertData()      {}
func (WindData) alertData()      {}
func (RainData) alertData()      {}
func (ConditionData) alertData() {}

// Alert is the canonical unit of the domain. ID is deterministic for a
// given (user, type, location, time bucket), so independent evaluations of
// the same condition collapse to one record at the merge boundary.
// Timestamp is the instant the condition applies to, never creation time.
type Alert struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Type      AlertType `json:"type"`
	Severity  Severity  `json:"severity"`
	Message   string    `json:"message"`
	Location  string    `json:"location"`
	Timestamp time.Time `json:"timestamp"`
	Dismissed bool      `json:"dismissed"`
	Data      AlertData `json:"data,omitempty"`
}

func (a *Alert) UnmarshalJSON(b []byte) error {
	type alias Alert
	aux := struct {
		*alias
		Data json.RawMessage `json:"data,omitempty"`
	}{alias: (*alias)(a)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	a.Data = decodeAlertData(a.Type, aux.Data)
	return nil
}

func decodeAlertData(t AlertType, raw json.RawMessage) AlertData {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	switch t {
	case TypeHighTemp, TypeLowTemp, TypeHighTempForecast, TypeLowTempForecast:
		var v TempData
		if json.Unmarshal(raw, &v) == nil {
			return v
		}
	case TypeHighWind, TypeHighWindForecast:
		var v WindData
		if json.Unmarshal(raw, &v) == nil {
			return v
		}
	case TypeHeavyRain:
		var v RainData
		if json.Unmarshal(raw, &v) == nil {
			return v
		}
	case TypeStorm, TypeRainNow, TypeRainForecast:
		var v ConditionData
		if json.Unmarshal(raw, &v) == nil {
			return v
		}
	}
	// Unknown type or malformed payload: drop the data, keep the alert.
	return nil
}

// AlertID derives the deduplication key from the subject of the alert.
// Current-conditions alerts bucket to the hour; forecast alerts use the
// exact forecast instant, so re-evaluations converge on the same id.
func AlertID(userID string, t AlertType, location string, bucket time.Time) string {
	parts := []string{
		userID,
		string(t),
		location,
		bucket.UTC().Format(time.RFC3339),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return "alert_" + hex.EncodeToString(sum[:8])
}

// HourBucket rounds an observation instant down to its hour.
func HourBucket(ts time.Time) time.Time {
	return ts.UTC().Truncate(time.Hour)
}
