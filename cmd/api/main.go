package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"bancolink/internal/shared/config"
	"bancolink/internal/shared/logging"
	"bancolink/internal/shared/telemetry"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.JSON)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.UsesDevSecret() {
		logger.Warn("SECRET_KEY not set, using the development default")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry := func(context.Context) error { return nil }
	if cfg.Telemetry.Enabled {
		shutdownTelemetry, err = telemetry.Init(ctx, telemetry.Config{
			ServiceName:    cfg.Telemetry.ServiceName,
			ServiceVersion: version,
			OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
			MetricsPort:    cfg.Telemetry.MetricsPort,
		}, logger.Named("telemetry"))
		if err != nil {
			return err
		}
	}

	deps, err := NewDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.Close()

	handler := SetupRoutes(deps, cfg, logger)
	srv, redirectSrv, errCh := StartServers(NewServerConfigFromConfig(handler, cfg), logger)

	select {
	case <-ctx.Done():
	case err = <-errCh:
		logger.Error("Server failed", zap.Error(err))
	}

	GracefulShutdown(srv, redirectSrv, shutdownTimeout, logger)

	flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if tErr := shutdownTelemetry(flushCtx); tErr != nil {
		logger.Error("Error shutting down telemetry", zap.Error(tErr))
	}

	return err
}
