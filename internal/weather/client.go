package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"skywatch/internal/config"
	"skywatch/internal/model"
)

// Client fetches current and forecast data from OpenWeather. Requests run
// through a retry loop and a circuit breaker; upstream failures surface as
// ErrProviderUnavailable, unknown locations as ErrLocationNotFound.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	retries int
	logger  *slog.Logger
}

func NewClient(cfg config.WeatherConfig, logger *slog.Logger) *Client {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openweather",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})
	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: cfg.Timeout},
		breaker: cb,
		retries: cfg.MaxRetries,
		logger:  logger,
	}
}

func (c *Client) Current(ctx context.Context, city string) (*model.Observation, error) {
	body, err := c.get(ctx, "/data/2.5/weather", url.Values{"q": {city}})
	if err != nil {
		return nil, err
	}
	var payload currentPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: decoding current weather: %v", model.ErrProviderUnavailable, err)
	}
	obs := payload.toObservation()
	return &obs, nil
}

func (c *Client) Forecast(ctx context.Context, city string) ([]model.ForecastPoint, error) {
	body, err := c.get(ctx, "/data/2.5/forecast", url.Values{"q": {city}})
	if err != nil {
		return nil, err
	}
	var payload forecastPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: decoding forecast: %v", model.ErrProviderUnavailable, err)
	}
	return decodeForecastList(payload.List), nil
}

func (c *Client) ByCoordinates(ctx context.Context, lat, lon float64) (*model.Snapshot, error) {
	coords := url.Values{
		"lat": {fmt.Sprintf("%f", lat)},
		"lon": {fmt.Sprintf("%f", lon)},
	}
	curBody, err := c.get(ctx, "/data/2.5/weather", coords)
	if err != nil {
		return nil, err
	}
	fcBody, err := c.get(ctx, "/data/2.5/forecast", coords)
	if err != nil {
		return nil, err
	}
	var cur currentPayload
	if err := json.Unmarshal(curBody, &cur); err != nil {
		return nil, fmt.Errorf("%w: decoding current weather: %v", model.ErrProviderUnavailable, err)
	}
	var fc forecastPayload
	if err := json.Unmarshal(fcBody, &fc); err != nil {
		return nil, fmt.Errorf("%w: decoding forecast: %v", model.ErrProviderUnavailable, err)
	}
	obs := cur.toObservation()
	return &model.Snapshot{Current: &obs, Forecast: decodeForecastList(fc.List)}, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("%w: api key not configured", model.ErrProviderUnavailable)
	}
	values := url.Values{}
	for k, vs := range params {
		values[k] = vs
	}
	values.Set("appid", c.apiKey)
	values.Set("units", "metric")
	endpoint := fmt.Sprintf("%s%s?%s", c.baseURL, path, values.Encode())

	result, err := c.breaker.Execute(func() (any, error) {
		return c.doWithRetry(ctx, endpoint)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, fmt.Errorf("%w: circuit open", model.ErrProviderUnavailable)
		}
		return nil, err
	}
	return result.([]byte), nil
}

func (c *Client) doWithRetry(ctx context.Context, endpoint string) ([]byte, error) {
	backoff := 500 * time.Millisecond
	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			backoff *= 2
		}
		body, retryable, err := c.do(ctx, endpoint)
		if err == nil {
			return body, nil
		}
		if !retryable {
			return nil, err
		}
		lastErr = err
		if c.logger != nil {
			c.logger.Warn("weather request failed", "attempt", attempt+1, "err", err)
		}
	}
	return nil, lastErr
}

func (c *Client) do(ctx context.Context, endpoint string) (body []byte, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, false, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("%w: %v", model.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusOK:
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, true, fmt.Errorf("%w: %v", model.ErrProviderUnavailable, err)
		}
		return data, false, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, false, model.ErrLocationNotFound
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("%w: status %d", model.ErrProviderUnavailable, resp.StatusCode)
	default:
		return nil, false, fmt.Errorf("%w: status %d", model.ErrProviderUnavailable, resp.StatusCode)
	}
}
