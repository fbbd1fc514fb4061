package middleware

import (
	"net/http"
	"net/url"

	"github.com/go-chi/cors"
)

// CORS allows cross-origin calls from allowedHosts with credentials. With no
// allowed hosts any origin may call, without credentials.
func CORS(allowedHosts []string) func(http.Handler) http.Handler {
	opts := cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Requested-With"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}

	if len(allowedHosts) == 0 {
		opts.AllowedOrigins = []string{"*"}
	} else {
		opts.AllowCredentials = true
		opts.AllowOriginFunc = func(_ *http.Request, origin string) bool {
			return isOriginAllowed(origin, allowedHosts)
		}
	}

	return cors.Handler(opts)
}

func isOriginAllowed(origin string, allowedHosts []string) bool {
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	return IsHostAllowed(u.Host, allowedHosts)
}
