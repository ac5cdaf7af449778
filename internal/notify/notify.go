package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"skywatch/internal/config"
	"skywatch/internal/model"
)

// Dispatcher surfaces newly created alerts to the user-facing side channel.
// Delivery is best effort and at most once per alert id. Callers check
// Enabled before dispatching; a dispatcher without a configured channel is
// a silent no-op, never an error.
type Dispatcher interface {
	Enabled() bool
	Notify(ctx context.Context, alerts []model.Alert)
}

func New(cfg config.NotifyConfig, logger *slog.Logger) Dispatcher {
	if !cfg.Enabled || cfg.WebhookURL == "" {
		return NopDispatcher{}
	}
	return NewWebhook(cfg, logger)
}

type NopDispatcher struct{}

func (NopDispatcher) Enabled() bool                         { return false }
func (NopDispatcher) Notify(context.Context, []model.Alert) {}

// seenCache remembers which alert ids were already delivered.
type seenCache struct {
	mu    sync.Mutex
	items map[string]time.Time
}

func newSeenCache() *seenCache {
	return &seenCache{items: make(map[string]time.Time)}
}

func (c *seenCache) seen(id string, now time.Time, ttl time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ts, ok := c.items[id]; ok {
		if now.Sub(ts) <= ttl {
			return true
		}
	}
	c.items[id] = now
	if len(c.items) > 10000 {
		c.compact(now, ttl)
	}
	return false
}

func (c *seenCache) compact(now time.Time, ttl time.Duration) {
	for k, ts := range c.items {
		if now.Sub(ts) > ttl {
			delete(c.items, k)
		}
	}
}

// WebhookDispatcher posts one JSON notification per alert. The tag field
// carries the alert id so receivers that dedupe by tag will not double-fire.
type WebhookDispatcher struct {
	url    string
	client *http.Client
	logger *slog.Logger
	ttl    time.Duration
	cache  *seenCache
}

type webhookPayload struct {
	Title    string         `json:"title"`
	Body     string         `json:"body"`
	Tag      string         `json:"tag"`
	Severity model.Severity `json:"severity"`
	Location string         `json:"location"`
}

func NewWebhook(cfg config.NotifyConfig, logger *slog.Logger) *WebhookDispatcher {
	return &WebhookDispatcher{
		url:    cfg.WebhookURL,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
		ttl:    cfg.DedupeTTL,
		cache:  newSeenCache(),
	}
}

func (d *WebhookDispatcher) Enabled() bool {
	return d != nil && d.url != ""
}

func (d *WebhookDispatcher) Notify(ctx context.Context, alerts []model.Alert) {
	if !d.Enabled() {
		return
	}
	now := time.Now().UTC()
	for _, a := range alerts {
		if a.ID == "" || d.cache.seen(a.ID, now, d.ttl) {
			continue
		}
		d.deliver(ctx, a)
	}
}

func (d *WebhookDispatcher) deliver(ctx context.Context, a model.Alert) {
	payload := webhookPayload{
		Title:    "Weather Alert",
		Body:     a.Message,
		Tag:      a.ID,
		Severity: a.Severity,
		Location: a.Location,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := d.client.Do(req)
	if err != nil {
		if d.logger != nil {
			d.logger.Warn("notification delivery failed", "alert_id", a.ID, "err", err)
		}
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		if d.logger != nil {
			d.logger.Warn("notification rejected", "alert_id", a.ID, "status", resp.StatusCode)
		}
	}
}
