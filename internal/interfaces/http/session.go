package http

import (
	"net/http"

	"go.uber.org/zap"

	"bancolink/internal/infrastructure/session"
)

// currentSession returns the session loaded by the session middleware, or
// loads one when the handler is mounted without it.
func currentSession(sessions *session.Manager, r *http.Request) *session.Session {
	if s := session.FromContext(r.Context()); s != nil {
		return s
	}
	return sessions.Load(r)
}

// saveSession persists s and reports whether the handler may continue.
func saveSession(sessions *session.Manager, logger *zap.Logger, w http.ResponseWriter, r *http.Request, s *session.Session) bool {
	if err := sessions.Save(w, r, s); err != nil {
		logger.Error("Failed to save session", zap.Error(err))
		http.Error(w, "Failed to save session", http.StatusInternalServerError)
		return false
	}
	return true
}

// LoggedIn reports whether the request carries a logged-in session.
func LoggedIn(r *http.Request) bool {
	s := session.FromContext(r.Context())
	return s != nil && s.LoggedIn()
}
