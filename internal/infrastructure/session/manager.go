package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultCookieName = "bancolink_session"
	DefaultTTL        = 24 * time.Hour
)

// TokenCodec signs session ids into cookie values and back.
type TokenCodec interface {
	Generate(sessionID string, ttl time.Duration) (string, error)
	SessionID(token string) (string, error)
}

type Options struct {
	CookieName string
	TTL        time.Duration
	// Secure forces the Secure cookie flag even on plain HTTP requests.
	Secure bool
}

// Manager loads and saves server-side sessions referenced by a signed cookie.
type Manager struct {
	store      Store
	tokens     TokenCodec
	cookieName string
	ttl        time.Duration
	secure     bool
	logger     *zap.Logger
}

func NewManager(store Store, tokens TokenCodec, opts Options, logger *zap.Logger) *Manager {
	if opts.CookieName == "" {
		opts.CookieName = DefaultCookieName
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		store:      store,
		tokens:     tokens,
		cookieName: opts.CookieName,
		ttl:        opts.TTL,
		secure:     opts.Secure,
		logger:     logger,
	}
}

// Load returns the session referenced by the request cookie, or a fresh
// unsaved session when the cookie is absent, invalid or points nowhere.
func (m *Manager) Load(r *http.Request) *Session {
	cookie, err := r.Cookie(m.cookieName)
	if err != nil || cookie.Value == "" {
		return m.newSession()
	}

	id, err := m.tokens.SessionID(cookie.Value)
	if err != nil {
		m.logger.Debug("Discarding invalid session cookie", zap.Error(err))
		return m.newSession()
	}

	data, err := m.store.Get(r.Context(), id)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			m.logger.Warn("Failed to load session", zap.Error(err))
		}
		return m.newSession()
	}

	return &Session{ID: id, Data: *data}
}

// Middleware loads the session once per request and stores it in the context.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := m.Load(r)
		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), s)))
	})
}

// Save persists s and (re)issues its cookie. It must run before the
// response header is written.
func (m *Manager) Save(w http.ResponseWriter, r *http.Request, s *Session) error {
	if err := m.store.Put(r.Context(), s.ID, &s.Data, m.ttl); err != nil {
		return err
	}

	token, err := m.tokens.Generate(s.ID, m.ttl)
	if err != nil {
		return fmt.Errorf("failed to sign session cookie: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.isSecure(r),
		SameSite: http.SameSiteLaxMode,
	})
	s.isNew = false
	return nil
}

// Renew moves s to a new id, dropping the old record. Used after login.
func (m *Manager) Renew(ctx context.Context, s *Session) error {
	if !s.isNew {
		if err := m.store.Delete(ctx, s.ID); err != nil {
			return err
		}
	}
	s.ID = uuid.NewString()
	s.isNew = true
	return nil
}

// Destroy deletes the stored session, expires the cookie and resets s.
func (m *Manager) Destroy(w http.ResponseWriter, r *http.Request, s *Session) error {
	var err error
	if !s.isNew {
		err = m.store.Delete(r.Context(), s.ID)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   m.isSecure(r),
		SameSite: http.SameSiteLaxMode,
	})

	*s = *m.newSession()
	return err
}

func (m *Manager) newSession() *Session {
	return &Session{ID: uuid.NewString(), isNew: true}
}

func (m *Manager) isSecure(r *http.Request) bool {
	return m.secure || r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https"
}
