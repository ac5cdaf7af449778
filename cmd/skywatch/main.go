package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"skywatch/internal/alerts"
	"skywatch/internal/api"
	"skywatch/internal/auth"
	"skywatch/internal/config"
	"skywatch/internal/engine"
	"skywatch/internal/logging"
	"skywatch/internal/notify"
	"skywatch/internal/peer"
	"skywatch/internal/stats"
	"skywatch/internal/storage"
	"skywatch/internal/weather"
)

const version = "0.3.0"

func main() {
	configPath := flag.String("config", "skywatch.yaml", "path to config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("skywatch " + version)
		return
	}

	_ = godotenv.Load()

	path := config.ResolvePath(*configPath)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := config.Save(path, config.DefaultConfig()); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write default config: %v\n", err)
			os.Exit(1)
		}
	}
	mgr, err := config.NewManager(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	cfg := mgr.Get()
	logger := logging.NewLogger(cfg.LogLevel)
	logger.Info("starting skywatch", "version", version, "config", path)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	alertStore := alerts.NewStore(cfg.Alerts.StoreLimit, cfg.Alerts.RetentionWindow)
	statsStore := stats.NewStore(cfg.Stats.StoreLimit)

	archive, err := storage.NewStore(cfg.Storage)
	if err != nil {
		logger.Error("storage init failed", "err", err)
		os.Exit(1)
	}
	if archive != nil {
		if err := archive.Init(ctx); err != nil {
			logger.Error("storage schema init failed", "err", err)
			os.Exit(1)
		}
		defer archive.Close()
		logger.Info("alert archive enabled", "driver", cfg.Storage.Driver)
	}

	verifier, err := auth.New(cfg.Auth)
	if err != nil {
		logger.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	var wclient *weather.Client
	if cfg.Weather.Enabled {
		wclient = weather.NewClient(cfg.Weather, logger)
		logger.Info("weather provider enabled")
	}

	dispatcher := notify.New(cfg.Notify, logger)
	if dispatcher.Enabled() {
		logger.Info("notification webhook enabled")
	}

	svc := engine.NewService(cfg, logger, alertStore, archive, statsStore, dispatcher)

	peer.StartKafka(ctx, mgr, svc, logger)
	api.Start(ctx, mgr, svc, wclient, verifier, statsStore, logger, version)

	go mgr.Watch(3*time.Second,
		func(next *config.Config) {
			svc.UpdateConfig(next)
			logger.Info("config reloaded")
		},
		func(err error) {
			logger.Warn("config reload failed", "err", err)
		},
		ctx.Done())

	<-ctx.Done()
	logger.Info("shutting down")
}
