package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"skywatch/internal/config"
	"skywatch/internal/model"
)

func testAlert(id string) model.Alert {
	return model.Alert{
		ID:       id,
		UserID:   "user_1",
		Type:     model.TypeHighTemp,
		Severity: model.SeverityHigh,
		Message:  "High temperature warning: 36.0°C in Madrid",
		Location: "Madrid, ES",
	}
}

func TestWebhookDeliversOncePerID(t *testing.T) {
	var mu sync.Mutex
	tags := make(map[string]int)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var payload struct {
			Tag string `json:"tag"`
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Errorf("bad payload: %v", err)
		}
		mu.Lock()
		tags[payload.Tag]++
		mu.Unlock()
	}))
	defer srv.Close()

	d := NewWebhook(config.NotifyConfig{
		Enabled:    true,
		WebhookURL: srv.URL,
		Timeout:    2 * time.Second,
		DedupeTTL:  time.Hour,
	}, nil)

	d.Notify(context.Background(), []model.Alert{testAlert("a1")})
	d.Notify(context.Background(), []model.Alert{testAlert("a1"), testAlert("a2")})

	mu.Lock()
	defer mu.Unlock()
	if tags["a1"] != 1 {
		t.Fatalf("a1 delivered %d times, want 1", tags["a1"])
	}
	if tags["a2"] != 1 {
		t.Fatalf("a2 delivered %d times, want 1", tags["a2"])
	}
}

func TestDisabledDispatcherIsNop(t *testing.T) {
	d := New(config.NotifyConfig{Enabled: false}, nil)
	if d.Enabled() {
		t.Fatalf("dispatcher without a channel must report disabled")
	}
	// Must be safe to call anyway.
	d.Notify(context.Background(), []model.Alert{testAlert("a1")})
}

func TestDeliveryFailureIsSilent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	d := NewWebhook(config.NotifyConfig{
		Enabled:    true,
		WebhookURL: srv.URL,
		Timeout:    2 * time.Second,
		DedupeTTL:  time.Hour,
	}, nil)
	d.Notify(context.Background(), []model.Alert{testAlert("a1")})
}
