package middleware

import (
	"net/http"
	"strings"

	"bancolink/internal/shared/httpjson"
)

const apiPrefix = "/api/"

// RequireLogin lets the request through only when loggedIn reports true.
// API requests get a 401 JSON body; page requests are redirected to redirectTo.
func RequireLogin(loggedIn func(r *http.Request) bool, redirectTo string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if loggedIn(r) {
				next.ServeHTTP(w, r)
				return
			}

			if strings.HasPrefix(r.URL.Path, apiPrefix) {
				httpjson.Error(w, http.StatusUnauthorized, "User not logged in")
				return
			}
			http.Redirect(w, r, redirectTo, http.StatusFound)
		})
	}
}
