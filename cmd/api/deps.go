package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"bancolink/internal/domain/banklink"
	"bancolink/internal/infrastructure/crypto"
	"bancolink/internal/infrastructure/fintoc"
	"bancolink/internal/infrastructure/postgres"
	"bancolink/internal/infrastructure/session"
	httphandlers "bancolink/internal/interfaces/http"
	"bancolink/internal/interfaces/scheduler"
	"bancolink/internal/shared/auth"
	"bancolink/internal/shared/config"
	"bancolink/internal/web"
)

const (
	sessionKeyPurpose      = "session"
	janitorShutdownTimeout = 5 * time.Second
)

// Dependencies holds all initialized application components.
type Dependencies struct {
	// DB is nil unless sessions are stored in Postgres.
	DB *postgres.DB
	// Janitor purges expired Postgres sessions; nil for the memory store.
	Janitor *scheduler.Janitor

	Sessions *session.Manager

	// Handlers
	AuthHandler *httphandlers.AuthHandler
	PageHandler *httphandlers.PageHandler
	BankHandler *httphandlers.BankHandler
}

// NewDependencies initializes all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{}

	store, err := deps.sessionStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	jwt := auth.NewJWT(cfg.Session.SecretKey)
	deps.Sessions = session.NewManager(store, jwt, session.Options{
		CookieName: cfg.Session.CookieName,
		TTL:        cfg.Session.TTL,
		Secure:     cfg.TLS.Enabled,
	}, logger.Named("session"))

	fintocClient := fintoc.NewClient(fintoc.Config{
		APIKey:    cfg.Fintoc.APIKey,
		PublicKey: cfg.Fintoc.PublicKey,
		BaseURL:   cfg.Fintoc.BaseURL,
		Timeout:   cfg.Fintoc.Timeout,
	}, logger.Named("fintoc"))

	bankService := banklink.NewService(fintocClient, cfg.Fintoc.Country, logger.Named("banklink"))

	googleOAuth := auth.NewGoogleOAuthProvider(
		cfg.OAuth.Google.ClientID,
		cfg.OAuth.Google.ClientSecret,
		cfg.OAuth.Google.RedirectURL,
	)
	if !googleOAuth.Configured() {
		logger.Warn("Google OAuth not configured, login is disabled")
	}

	renderer, err := web.NewRenderer()
	if err != nil {
		deps.Close()
		return nil, err
	}

	httpLogger := logger.Named("http")
	deps.AuthHandler = httphandlers.NewAuthHandler(googleOAuth, deps.Sessions, httpLogger)
	deps.PageHandler = httphandlers.NewPageHandler(renderer, bankService, deps.Sessions, httpLogger)
	deps.BankHandler = httphandlers.NewBankHandler(bankService, deps.Sessions, httpLogger)

	return deps, nil
}

func (d *Dependencies) sessionStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (session.Store, error) {
	if cfg.Session.Store != "postgres" {
		logger.Info("Using in-memory session store")
		return session.NewMemoryStore(cfg.Session.TTL, cfg.Session.CleanupInterval), nil
	}

	db, err := postgres.Open(ctx, cfg.Database.ConnectionString(), postgres.PoolOptions{})
	if err != nil {
		return nil, err
	}
	d.DB = db
	logger.Info("Connected to database", zap.String("host", cfg.Database.Host), zap.String("name", cfg.Database.DBName))

	key, err := crypto.DeriveKey(cfg.Session.SecretKey, sessionKeyPurpose)
	if err != nil {
		d.Close()
		return nil, err
	}
	encryptor, err := crypto.NewEncryptor(key)
	if err != nil {
		d.Close()
		return nil, err
	}

	store := session.NewPostgresStore(db, encryptor)
	purged, err := store.Migrate(ctx)
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("failed to migrate session store: %w", err)
	}
	logger.Info("Using Postgres session store", zap.Int64("expired_purged", purged))

	d.Janitor = scheduler.NewJanitor(store, cfg.Session.CleanupInterval, logger.Named("janitor"))
	d.Janitor.Start()
	return store, nil
}

// Close stops the janitor and releases the database pool, if any.
func (d *Dependencies) Close() error {
	if d.Janitor != nil {
		d.Janitor.Shutdown(janitorShutdownTimeout)
	}
	if d.DB == nil {
		return nil
	}
	return d.DB.Close()
}
