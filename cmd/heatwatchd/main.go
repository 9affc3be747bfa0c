package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"

	"heatwatch-backend/config"
	"heatwatch-backend/internal/alert"
	"heatwatch-backend/internal/api"
	"heatwatch-backend/internal/credential"
	"heatwatch-backend/internal/db"
	"heatwatch-backend/internal/observ"
	"heatwatch-backend/internal/provision"
	"heatwatch-backend/internal/registry"
	"heatwatch-backend/internal/series"
	"heatwatch-backend/internal/service"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}

	logger, err := observ.NewLogger(cfg.Log.Env, cfg.Log.Level)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()
	logger.Info("configuration loaded", zap.String("path", configPath))

	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	logger.Info("database initialized", zap.String("driver", cfg.Database.Driver))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	webpushOptions := &webpush.Options{
		VAPIDPublicKey:  cfg.Push.PublicKey,
		VAPIDPrivateKey: cfg.Push.PrivateKey,
		Subscriber:      cfg.Push.Subject,
		TTL:             cfg.Push.TTL,
	}

	creds := credential.NewStore(gormDB)
	reg := registry.NewRegistry(gormDB, creds, cfg.Registry.UniqueDeviceNames, logger)
	prov := provision.NewProvisioner(gormDB)
	seriesStore := series.NewStore(gormDB)

	var alerter service.Alerter
	if cfg.Push.PublicKey != "" && cfg.Push.PrivateKey != "" {
		pool := alert.NewWorkerPool(cfg.WorkerPool.Size, gormDB, webpushOptions, logger)
		pool.Start(ctx)
		alerter = pool
		logger.Info("alert worker pool started", zap.Int("size", cfg.WorkerPool.Size))
	} else {
		logger.Warn("VAPID keys not configured, alerting disabled")
	}

	svc := service.New(creds, reg, prov, seriesStore, alerter, logger)

	router := api.NewRouter(&cfg.Server, svc, reg, gormDB, webpushOptions, logger)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("HTTP server starting", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("shutdown signal received, stopping services")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("HTTP server shutdown failed", zap.Error(err))
	}
	logger.Info("server gracefully stopped")
}
