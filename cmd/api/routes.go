package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	httphandlers "bancolink/internal/interfaces/http"
	"bancolink/internal/shared/config"
	"bancolink/internal/shared/middleware"
	"bancolink/internal/web"
)

// SetupRoutes configures all HTTP routes and returns the final handler with middleware.
func SetupRoutes(deps *Dependencies, cfg *config.Config, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logging(logger.Named("http")))
	r.Use(chimw.Recoverer)

	if cfg.Telemetry.Enabled {
		r.Use(middleware.Telemetry(cfg.Telemetry.ServiceName))
		r.Use(middleware.Metrics)
	}

	r.Use(middleware.AllowedHosts(cfg.Server.AllowedHosts))
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(cfg.Server.AllowedHosts))

	// Apply security middleware when TLS is enabled
	if cfg.TLS.Enabled {
		r.Use(middleware.HSTS)
		r.Use(middleware.SecureCookies)
		logger.Info("TLS security middleware enabled (HSTS + SecureCookies)")
	}

	r.Get("/health", httphandlers.HandleHealth)
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServerFS(web.Static())))

	r.NotFound(deps.Sessions.Middleware(http.HandlerFunc(deps.PageHandler.HandleNotFound)).ServeHTTP)

	r.Group(func(r chi.Router) {
		r.Use(deps.Sessions.Middleware)

		r.Get("/", deps.PageHandler.HandleHome)
		r.Get("/about", deps.PageHandler.HandleAbout)

		r.Get("/login", deps.AuthHandler.HandleLogin)
		r.Get("/callback", deps.AuthHandler.HandleCallback)
		r.Post("/logout", deps.AuthHandler.HandleLogout)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireLogin(httphandlers.LoggedIn, "/"))

			r.Get("/dashboard", deps.PageHandler.HandleDashboard)
			r.Get("/connect", deps.PageHandler.HandleConnect)

			r.Route("/api/fintoc", func(r chi.Router) {
				r.Post("/exchange-token", deps.BankHandler.HandleExchangeToken)
				r.Post("/link-callback", deps.BankHandler.HandleLinkCallback)
				r.Get("/accounts", deps.BankHandler.HandleAccounts)
				r.Get("/accounts/{accountID}/movements", deps.BankHandler.HandleMovements)
				r.Post("/refresh", deps.BankHandler.HandleRefresh)
				r.Post("/disconnect", deps.BankHandler.HandleDisconnect)
			})
		})
	})

	return r
}
