package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"bancolink/internal/shared/config"
	"bancolink/internal/shared/middleware"
)

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Handler      http.Handler
	Addr         string
	Port         string
	TLSEnabled   bool
	CertPath     string
	KeyPath      string
	RedirectHTTP bool
	AllowedHosts []string
}

// StartServers creates and starts the main server and optional redirect server.
// Listen failures are delivered on the returned channel.
func StartServers(scfg ServerConfig, logger *zap.Logger) (*http.Server, *http.Server, <-chan error) {
	errCh := make(chan error, 2)

	srv := newServer(scfg.Addr, scfg.Handler)

	var redirectSrv *http.Server

	// Start HTTP redirect server if TLS redirect is enabled
	if scfg.TLSEnabled && scfg.RedirectHTTP {
		redirectSrv = newServer(":80", middleware.RedirectToHTTPS(scfg.AllowedHosts, scfg.Port))
		go func() {
			logger.Info("HTTP redirect server starting", zap.String("addr", redirectSrv.Addr))
			if err := redirectSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("HTTP redirect server error", zap.Error(err))
			}
		}()
	}

	go func() {
		var err error
		if scfg.TLSEnabled {
			logger.Info("HTTPS server starting", zap.String("addr", scfg.Addr))
			err = srv.ListenAndServeTLS(scfg.CertPath, scfg.KeyPath)
		} else {
			logger.Info("HTTP server starting", zap.String("addr", scfg.Addr))
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	return srv, redirectSrv, errCh
}

// GracefulShutdown performs graceful shutdown of all servers.
func GracefulShutdown(srv, redirectSrv *http.Server, timeout time.Duration, logger *zap.Logger) {
	logger.Info("Server shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if redirectSrv != nil {
		if err := redirectSrv.Shutdown(ctx); err != nil {
			logger.Error("Error shutting down HTTP redirect server", zap.Error(err))
		}
	}

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Error shutting down main server", zap.Error(err))
	}

	logger.Info("Server stopped")
}

func newServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 45 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// NewServerConfigFromConfig creates ServerConfig from application config.
func NewServerConfigFromConfig(handler http.Handler, cfg *config.Config) ServerConfig {
	return ServerConfig{
		Handler:      handler,
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Port:         cfg.Server.Port,
		TLSEnabled:   cfg.TLS.Enabled,
		CertPath:     cfg.TLS.CertPath,
		KeyPath:      cfg.TLS.KeyPath,
		RedirectHTTP: cfg.TLS.RedirectHTTP,
		AllowedHosts: cfg.Server.AllowedHosts,
	}
}
