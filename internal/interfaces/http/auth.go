package http

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"bancolink/internal/domain/banklink"
	"bancolink/internal/infrastructure/session"
	"bancolink/internal/shared/auth"
)

type AuthHandler struct {
	oauthProvider auth.OAuthProvider
	sessions      *session.Manager
	logger        *zap.Logger
}

func NewAuthHandler(oauthProvider auth.OAuthProvider, sessions *session.Manager, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		oauthProvider: oauthProvider,
		sessions:      sessions,
		logger:        logger,
	}
}

func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// HandleLogin stores a fresh OAuth state in the session and redirects to Google.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	s := currentSession(h.sessions, r)

	if !h.oauthProvider.Configured() {
		h.logger.Warn("Login attempted without Google OAuth configured")
		s.AddFlash(banklink.FlashError, "Google login is not configured.")
		if saveSession(h.sessions, h.logger, w, r, s) {
			http.Redirect(w, r, "/", http.StatusFound)
		}
		return
	}

	state, err := generateState()
	if err != nil {
		h.logger.Error("Error generating OAuth state", zap.Error(err))
		http.Error(w, "Failed to generate state", http.StatusInternalServerError)
		return
	}

	s.OAuthState = state
	if !saveSession(h.sessions, h.logger, w, r, s) {
		return
	}
	http.Redirect(w, r, h.oauthProvider.GetAuthURL(state), http.StatusFound)
}

// HandleCallback completes the Google login. The session id is renewed once
// the identity is known.
func (h *AuthHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	s := currentSession(h.sessions, r)
	query := r.URL.Query()

	if oauthError := query.Get("error"); oauthError != "" {
		http.Error(w, fmt.Sprintf("OAuth error: %s", oauthError), http.StatusBadRequest)
		return
	}

	expected := s.OAuthState
	if expected == "" || query.Get("state") != expected {
		h.logger.Warn("OAuth state mismatch", zap.Bool("had_state", expected != ""))
		http.Error(w, "Invalid OAuth state", http.StatusBadRequest)
		return
	}

	code := query.Get("code")
	if code == "" {
		http.Error(w, "Code is required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()

	token, err := h.oauthProvider.ExchangeCode(ctx, code)
	if err != nil {
		h.logger.Error("Failed to exchange OAuth code", zap.Error(err))
		http.Error(w, "Failed to exchange code", http.StatusBadRequest)
		return
	}

	userInfo, err := h.oauthProvider.GetUserInfo(ctx, token)
	if err != nil {
		h.logger.Error("Failed to get user info", zap.Error(err))
		http.Error(w, "Failed to get user info", http.StatusBadRequest)
		return
	}
	if userInfo.ID == "" {
		http.Error(w, "Google account has no id", http.StatusBadRequest)
		return
	}
	if !userInfo.VerifiedEmail {
		h.logger.Warn("Login rejected for unverified email", zap.String("subject_id", userInfo.ID))
		http.Error(w, "Email address is not verified", http.StatusForbidden)
		return
	}

	if err := h.sessions.Renew(ctx, s); err != nil {
		h.logger.Error("Failed to renew session", zap.Error(err))
		http.Error(w, "Failed to start session", http.StatusInternalServerError)
		return
	}

	name := userInfo.Name
	if name == "" {
		name = userInfo.Email
	}
	s.OAuthState = ""
	s.Identity = &session.Identity{
		SubjectID:   userInfo.ID,
		Email:       userInfo.Email,
		DisplayName: name,
		AvatarURL:   userInfo.AvatarURL,
	}
	s.AddFlash(banklink.FlashSuccess, fmt.Sprintf("Logged in as %s.", name))

	if !saveSession(h.sessions, h.logger, w, r, s) {
		return
	}

	h.logger.Info("User logged in", zap.String("subject_id", userInfo.ID))
	http.Redirect(w, r, "/dashboard", http.StatusFound)
}

// HandleLogout drops the whole session, bank link included.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	s := currentSession(h.sessions, r)

	if err := h.sessions.Destroy(w, r, s); err != nil {
		h.logger.Warn("Failed to delete session", zap.Error(err))
	}

	s.AddFlash(banklink.FlashInfo, "You have been logged out.")
	if saveSession(h.sessions, h.logger, w, r, s) {
		http.Redirect(w, r, "/", http.StatusFound)
	}
}
