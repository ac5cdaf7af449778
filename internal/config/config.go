package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LogLevel string        `json:"log_level" yaml:"log_level"`
	API      APIConfig     `json:"api" yaml:"api"`
	Auth     AuthConfig    `json:"auth" yaml:"auth"`
	Weather  WeatherConfig `json:"weather" yaml:"weather"`
	Rules    RulesConfig   `json:"rules" yaml:"rules"`
	Alerts   AlertsConfig  `json:"alerts" yaml:"alerts"`
	Notify   NotifyConfig  `json:"notify" yaml:"notify"`
	Peer     PeerConfig    `json:"peer" yaml:"peer"`
	Storage  StorageConfig `json:"storage" yaml:"storage"`
	Stats    StatsConfig   `json:"stats" yaml:"stats"`
}

type APIConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
}

// AuthConfig selects the token verifier. Mode "static" maps bearer tokens
// to user ids from config; mode "remote" delegates to an external auth
// service that answers "verify token, return user id".
type AuthConfig struct {
	Mode      string            `json:"mode" yaml:"mode"`
	VerifyURL string            `json:"verify_url" yaml:"verify_url"`
	Timeout   time.Duration     `json:"timeout" yaml:"timeout"`
	Tokens    map[string]string `json:"tokens" yaml:"tokens"`
}

type WeatherConfig struct {
	Enabled    bool          `json:"enabled" yaml:"enabled"`
	APIKey     string        `json:"api_key" yaml:"api_key"`
	BaseURL    string        `json:"base_url" yaml:"base_url"`
	Timeout    time.Duration `json:"timeout" yaml:"timeout"`
	MaxRetries int           `json:"max_retries" yaml:"max_retries"`
}

// RulesConfig holds the alert thresholds. Temperatures are °C, wind speeds
// m/s, rainfall mm over the last hour.
type RulesConfig struct {
	HighTempC        float64 `json:"high_temp_c" yaml:"high_temp_c"`
	ExtremeHighTempC float64 `json:"extreme_high_temp_c" yaml:"extreme_high_temp_c"`
	LowTempC         float64 `json:"low_temp_c" yaml:"low_temp_c"`
	ExtremeLowTempC  float64 `json:"extreme_low_temp_c" yaml:"extreme_low_temp_c"`
	HighWindMS       float64 `json:"high_wind_ms" yaml:"high_wind_ms"`
	ExtremeWindMS    float64 `json:"extreme_wind_ms" yaml:"extreme_wind_ms"`
	HeavyRainMM      float64 `json:"heavy_rain_mm" yaml:"heavy_rain_mm"`
}

type AlertsConfig struct {
	RetentionWindow time.Duration `json:"retention_window" yaml:"retention_window"`
	StoreLimit      int           `json:"store_limit" yaml:"store_limit"`
}

type NotifyConfig struct {
	Enabled    bool          `json:"enabled" yaml:"enabled"`
	WebhookURL string        `json:"webhook_url" yaml:"webhook_url"`
	Timeout    time.Duration `json:"timeout" yaml:"timeout"`
	DedupeTTL  time.Duration `json:"dedupe_ttl" yaml:"dedupe_ttl"`
}

type PeerConfig struct {
	Kafka KafkaConfig `json:"kafka" yaml:"kafka"`
}

type KafkaConfig struct {
	Enabled bool     `json:"enabled" yaml:"enabled"`
	Brokers []string `json:"brokers" yaml:"brokers"`
	Topic   string   `json:"topic" yaml:"topic"`
	GroupID string   `json:"group_id" yaml:"group_id"`
}

type StorageConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Driver  string `json:"driver" yaml:"driver"`
	DSN     string `json:"dsn" yaml:"dsn"`
}

type StatsConfig struct {
	StoreLimit int `json:"store_limit" yaml:"store_limit"`
}

func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		API:      APIConfig{Enabled: true, Addr: ":8080"},
		Auth: AuthConfig{
			Mode:    "static",
			Timeout: 5 * time.Second,
		},
		Weather: WeatherConfig{
			Enabled:    false,
			BaseURL:    "https://api.openweathermap.org",
			Timeout:    10 * time.Second,
			MaxRetries: 3,
		},
		Rules: RulesConfig{
			HighTempC:        30,
			ExtremeHighTempC: 35,
			LowTempC:         -10,
			ExtremeLowTempC:  -20,
			HighWindMS:       13.9,
			ExtremeWindMS:    20,
			HeavyRainMM:      10,
		},
		Alerts: AlertsConfig{
			RetentionWindow: 24 * time.Hour,
			StoreLimit:      1000,
		},
		Notify: NotifyConfig{
			Enabled:   false,
			Timeout:   5 * time.Second,
			DedupeTTL: 24 * time.Hour,
		},
		Peer:    PeerConfig{Kafka: KafkaConfig{Enabled: false}},
		Storage: StorageConfig{Enabled: false, Driver: "sqlite", DSN: "file:skywatch.db?_pragma=busy_timeout(5000)"},
		Stats:   StatsConfig{StoreLimit: 5000},
	}
}

func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()

	trimmed := strings.TrimSpace(string(content))
	if len(trimmed) == 0 {
		return nil, errors.New("config file is empty")
	}
	var decodeErr error
	if looksLikeJSON(trimmed) {
		decodeErr = json.Unmarshal([]byte(trimmed), cfg)
	} else {
		decodeErr = yaml.Unmarshal([]byte(trimmed), cfg)
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	applyDefaults(cfg)
	applyEnv(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	if path == "" || cfg == nil {
		return errors.New("config path or config is empty")
	}
	var data []byte
	var err error
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".json" {
		data, err = json.MarshalIndent(cfg, "", "  ")
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func looksLikeJSON(s string) bool {
	for _, ch := range s {
		if ch == '{' || ch == '[' {
			return true
		}
		if ch > ' ' {
			return false
		}
	}
	return false
}

func applyDefaults(cfg *Config) {
	if cfg.Alerts.RetentionWindow <= 0 {
		cfg.Alerts.RetentionWindow = 24 * time.Hour
	}
	if cfg.Alerts.StoreLimit <= 0 {
		cfg.Alerts.StoreLimit = 1000
	}
	if cfg.Stats.StoreLimit <= 0 {
		cfg.Stats.StoreLimit = 5000
	}
	if cfg.Auth.Mode == "" {
		cfg.Auth.Mode = "static"
	}
	if cfg.Auth.Timeout <= 0 {
		cfg.Auth.Timeout = 5 * time.Second
	}
	if cfg.Weather.BaseURL == "" {
		cfg.Weather.BaseURL = "https://api.openweathermap.org"
	}
	if cfg.Weather.Timeout <= 0 {
		cfg.Weather.Timeout = 10 * time.Second
	}
	if cfg.Weather.MaxRetries < 0 {
		cfg.Weather.MaxRetries = 0
	}
	if cfg.Notify.Timeout <= 0 {
		cfg.Notify.Timeout = 5 * time.Second
	}
	if cfg.Notify.DedupeTTL <= 0 {
		cfg.Notify.DedupeTTL = 24 * time.Hour
	}
	if cfg.Rules.HighTempC == 0 {
		cfg.Rules.HighTempC = 30
	}
	if cfg.Rules.ExtremeHighTempC == 0 {
		cfg.Rules.ExtremeHighTempC = 35
	}
	if cfg.Rules.LowTempC == 0 {
		cfg.Rules.LowTempC = -10
	}
	if cfg.Rules.ExtremeLowTempC == 0 {
		cfg.Rules.ExtremeLowTempC = -20
	}
	if cfg.Rules.HighWindMS == 0 {
		cfg.Rules.HighWindMS = 13.9
	}
	if cfg.Rules.ExtremeWindMS == 0 {
		cfg.Rules.ExtremeWindMS = 20
	}
	if cfg.Rules.HeavyRainMM == 0 {
		cfg.Rules.HeavyRainMM = 10
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("OPENWEATHER_API_KEY"); v != "" {
		cfg.Weather.APIKey = v
	}
	if v := os.Getenv("SKYWATCH_WEBHOOK_URL"); v != "" {
		cfg.Notify.WebhookURL = v
	}
}

func Validate(cfg *Config) error {
	if cfg.API.Enabled && cfg.API.Addr == "" {
		return errors.New("api.addr required when api.enabled is true")
	}
	switch cfg.Auth.Mode {
	case "static":
	case "remote":
		if cfg.Auth.VerifyURL == "" {
			return errors.New("auth.verify_url required when auth.mode is remote")
		}
	default:
		return fmt.Errorf("unsupported auth.mode: %s", cfg.Auth.Mode)
	}
	if cfg.Weather.Enabled && cfg.Weather.APIKey == "" {
		return errors.New("weather.api_key required when weather.enabled is true")
	}
	if cfg.Peer.Kafka.Enabled {
		if len(cfg.Peer.Kafka.Brokers) == 0 || cfg.Peer.Kafka.Topic == "" || cfg.Peer.Kafka.GroupID == "" {
			return errors.New("peer.kafka requires brokers, topic, group_id")
		}
	}
	if cfg.Notify.Enabled && cfg.Notify.WebhookURL == "" {
		return errors.New("notify.webhook_url required when notify.enabled is true")
	}
	if cfg.Rules.ExtremeHighTempC < cfg.Rules.HighTempC {
		return errors.New("rules.extreme_high_temp_c must be >= rules.high_temp_c")
	}
	if cfg.Rules.ExtremeLowTempC > cfg.Rules.LowTempC {
		return errors.New("rules.extreme_low_temp_c must be <= rules.low_temp_c")
	}
	if cfg.Rules.ExtremeWindMS < cfg.Rules.HighWindMS {
		return errors.New("rules.extreme_wind_ms must be >= rules.high_wind_ms")
	}
	return nil
}

type Manager struct {
	path    string
	cfg     atomic.Value
	modTime time.Time
}

func NewManager(path string) (*Manager, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	m := &Manager{path: path}
	m.cfg.Store(cfg)
	if info, err := os.Stat(path); err == nil {
		m.modTime = info.ModTime()
	}
	return m, nil
}

// NewStaticManager wraps an in-memory config with no backing file, for
// tests and default bootstrap.
func NewStaticManager(cfg *Config) *Manager {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	m := &Manager{}
	m.cfg.Store(cfg)
	return m
}

func (m *Manager) Get() *Config {
	if v := m.cfg.Load(); v != nil {
		return v.(*Config)
	}
	return DefaultConfig()
}

func (m *Manager) Path() string {
	return m.path
}

func (m *Manager) Reload() (*Config, error) {
	if m.path == "" {
		return m.Get(), nil
	}
	cfg, err := Load(m.path)
	if err != nil {
		return nil, err
	}
	m.cfg.Store(cfg)
	if info, err := os.Stat(m.path); err == nil {
		m.modTime = info.ModTime()
	}
	return cfg, nil
}

func (m *Manager) Update(cfg *Config) error {
	if cfg == nil {
		return errors.New("nil config")
	}
	if m.path != "" {
		if err := Save(m.path, cfg); err != nil {
			return err
		}
		if info, err := os.Stat(m.path); err == nil {
			m.modTime = info.ModTime()
		}
	}
	m.cfg.Store(cfg)
	return nil
}

func (m *Manager) NeedsReload() (bool, error) {
	if m.path == "" {
		return false, nil
	}
	info, err := os.Stat(m.path)
	if err != nil {
		return false, err
	}
	return info.ModTime().After(m.modTime), nil
}

func (m *Manager) Watch(interval time.Duration, onReload func(*Config), onError func(error), stop <-chan struct{}) {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			needs, err := m.NeedsReload()
			if err != nil {
				if onError != nil {
					onError(err)
				}
				continue
			}
			if !needs {
				continue
			}
			cfg, err := m.Reload()
			if err != nil {
				if onError != nil {
					onError(err)
				}
				continue
			}
			if onReload != nil {
				onReload(cfg)
			}
		case <-stop:
			return
		}
	}
}

func ResolvePath(path string) string {
	if path == "" {
		return path
	}
	if filepath.IsAbs(path) {
		return path
	}
	cwd, err := os.Getwd()
	if err != nil {
		return path
	}
	return filepath.Join(cwd, path)
}
