package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"skywatch/internal/auth"
	"skywatch/internal/config"
	"skywatch/internal/engine"
	"skywatch/internal/model"
	"skywatch/internal/stats"
	"skywatch/internal/weather"
)

type Server struct {
	cfg      *config.Manager
	svc      *engine.Service
	weather  *weather.Client
	verifier auth.Verifier
	stats    *stats.Store
	logger   *slog.Logger
	version  string
}

type statusResponse struct {
	Status     string        `json:"status"`
	Time       string        `json:"time"`
	Version    string        `json:"version"`
	ConfigPath string        `json:"config_path,omitempty"`
	API        apiStatus     `json:"api"`
	Weather    weatherStatus `json:"weather"`
	Peer       peerStatus    `json:"peer"`
	Storage    storageStatus `json:"storage"`
	Alerts     alertsStatus  `json:"alerts"`
}

type apiStatus struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr"`
}

type weatherStatus struct {
	Enabled bool `json:"enabled"`
}

type peerStatus struct {
	Kafka bool `json:"kafka"`
}

type storageStatus struct {
	Enabled bool   `json:"enabled"`
	Driver  string `json:"driver,omitempty"`
}

type alertsStatus struct {
	RetentionWindow string `json:"retention_window"`
}

func Start(ctx context.Context, cfg *config.Manager, svc *engine.Service, wclient *weather.Client, verifier auth.Verifier, statsStore *stats.Store, logger *slog.Logger, version string) *http.Server {
	if cfg == nil {
		return nil
	}
	current := cfg.Get().API
	if !current.Enabled {
		if logger != nil {
			logger.Info("api disabled")
		}
		return nil
	}
	if logger != nil {
		logger.Info("api enabled", "addr", current.Addr)
	}
	server := NewServer(cfg, svc, wclient, verifier, statsStore, logger, version)
	httpServer := &http.Server{Addr: current.Addr, Handler: RequestLog(logger)(server.Handler())}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(ctxShutdown)
	}()
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if logger != nil {
				logger.Error("api server error", "err", err)
			}
		}
	}()
	return httpServer
}

// Handler builds the routing table without binding a listener, for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/alerts", s.handleAlerts)
	mux.HandleFunc("/alerts/check", s.handleAlertsCheck)
	mux.HandleFunc("/alerts/", s.handleAlertDismiss)
	mux.HandleFunc("/weather/current/", s.handleWeatherCurrent)
	mux.HandleFunc("/weather/forecast/", s.handleWeatherForecast)
	mux.HandleFunc("/weather/coordinates/", s.handleWeatherCoordinates)
	mux.HandleFunc("/stats", s.handleStats)
	mux.HandleFunc("/stats/", s.handleStats)
	return mux
}

// NewServer wires a server without starting it. Used by tests and Start.
func NewServer(cfg *config.Manager, svc *engine.Service, wclient *weather.Client, verifier auth.Verifier, statsStore *stats.Store, logger *slog.Logger, version string) *Server {
	return &Server{
		cfg:      cfg,
		svc:      svc,
		weather:  wclient,
		verifier: verifier,
		stats:    statsStore,
		logger:   logger,
		version:  version,
	}
}

func (s *Server) authenticate(r *http.Request) (string, error) {
	if s.verifier == nil {
		return "", model.ErrUnauthorized
	}
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return "", model.ErrUnauthorized
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return "", model.ErrUnauthorized
	}
	return s.verifier.Verify(r.Context(), token)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	cfg := s.cfg.Get()
	resp := statusResponse{
		Status:     "ok",
		Time:       time.Now().UTC().Format(time.RFC3339Nano),
		Version:    s.version,
		ConfigPath: s.cfg.Path(),
		API:        apiStatus{Enabled: cfg.API.Enabled, Addr: cfg.API.Addr},
		Weather:    weatherStatus{Enabled: cfg.Weather.Enabled},
		Peer:       peerStatus{Kafka: cfg.Peer.Kafka.Enabled},
		Storage:    storageStatus{Enabled: cfg.Storage.Enabled, Driver: cfg.Storage.Driver},
		Alerts:     alertsStatus{RetentionWindow: cfg.Alerts.RetentionWindow.String()},
	}
	writeJSON(w, http.StatusOK, resp)
}

type checkRequest struct {
	WeatherData  json.RawMessage `json:"weatherData"`
	ClientAlerts []model.Alert   `json:"clientAlerts,omitempty"`
}

type checkResponse struct {
	Alerts      []model.Alert `json:"alerts"`
	TotalAlerts int           `json:"totalAlerts"`
}

func (s *Server) handleAlertsCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	userID, err := s.authenticate(r)
	if err != nil {
		writeError(w, err)
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 2<<20))
	if err != nil {
		writeError(w, model.ErrValidation)
		return
	}
	var req checkRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, model.ErrValidation)
		return
	}
	snap, err := weather.DecodeSnapshot(req.WeatherData)
	if err != nil {
		writeError(w, err)
		return
	}
	added, err := s.svc.Evaluate(r.Context(), userID, snap, req.ClientAlerts)
	if err != nil {
		writeError(w, err)
		return
	}
	if added == nil {
		added = []model.Alert{}
	}
	writeJSON(w, http.StatusOK, checkResponse{
		Alerts:      added,
		TotalAlerts: s.svc.Count(userID),
	})
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	userID, err := s.authenticate(r)
	if err != nil {
		writeError(w, err)
		return
	}
	switch r.Method {
	case http.MethodGet:
		list := s.svc.ListActive(userID)
		writeJSON(w, http.StatusOK, map[string]any{
			"alerts": list,
			"count":  len(list),
		})
	case http.MethodDelete:
		s.svc.Clear(r.Context(), userID)
		writeJSON(w, http.StatusOK, map[string]any{
			"status":  "ok",
			"message": "all alerts cleared",
		})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleAlertDismiss(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/alerts/")
	alertID, ok := strings.CutSuffix(rest, "/dismiss")
	if !ok || alertID == "" || strings.Contains(alertID, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	userID, err := s.authenticate(r)
	if err != nil {
		writeError(w, err)
		return
	}
	s.svc.Dismiss(r.Context(), userID, alertID)
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"message": "alert dismissed",
	})
}

func (s *Server) handleWeatherCurrent(w http.ResponseWriter, r *http.Request) {
	city, ok := s.weatherQuery(w, r, "/weather/current/")
	if !ok {
		return
	}
	obs, err := s.weather.Current(r.Context(), city)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":      obs,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleWeatherForecast(w http.ResponseWriter, r *http.Request) {
	city, ok := s.weatherQuery(w, r, "/weather/forecast/")
	if !ok {
		return
	}
	points, err := s.weather.Forecast(r.Context(), city)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":      points,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleWeatherCoordinates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.weather == nil {
		writeError(w, model.ErrProviderUnavailable)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/weather/coordinates/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	lat, errLat := strconv.ParseFloat(parts[0], 64)
	lon, errLon := strconv.ParseFloat(parts[1], 64)
	if errLat != nil || errLon != nil {
		writeError(w, model.ErrValidation)
		return
	}
	snap, err := s.weather.ByCoordinates(r.Context(), lat, lon)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":      snap,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) weatherQuery(w http.ResponseWriter, r *http.Request, prefix string) (string, bool) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return "", false
	}
	if s.weather == nil {
		writeError(w, model.ErrProviderUnavailable)
		return "", false
	}
	city := strings.TrimPrefix(r.URL.Path, prefix)
	if city == "" || strings.Contains(city, "/") {
		w.WriteHeader(http.StatusNotFound)
		return "", false
	}
	return city, true
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.stats == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/stats")
	path = strings.TrimPrefix(path, "/")
	if path != "" {
		st, ok := s.stats.Get(path)
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"user_id": path,
			"stats":   st,
		})
		return
	}
	all := s.stats.All()
	writeJSON(w, http.StatusOK, map[string]any{
		"stats": all,
		"count": len(all),
	})
}

func writeError(w http.ResponseWriter, err error) {
	var status int
	var message string
	switch {
	case errors.Is(err, model.ErrValidation):
		status, message = http.StatusBadRequest, "Weather data required"
	case errors.Is(err, model.ErrUnauthorized):
		status, message = http.StatusUnauthorized, "Unauthorized"
	case errors.Is(err, model.ErrLocationNotFound):
		status, message = http.StatusNotFound, "City not found"
	case errors.Is(err, model.ErrProviderUnavailable):
		status, message = http.StatusBadGateway, "Weather service unavailable"
	default:
		status, message = http.StatusInternalServerError, "Internal server error"
	}
	writeJSON(w, status, map[string]any{"message": message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
