package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"bancolink/internal/domain/banklink"
	"bancolink/internal/infrastructure/fintoc"
	"bancolink/internal/infrastructure/session"
	"bancolink/internal/shared/auth"
	"bancolink/internal/shared/middleware"
	"bancolink/internal/web"
)

const testSecret = "test-secret-key-0123456789"

// MockFintocClient implements fintoc.ClientInterface for testing
type MockFintocClient struct {
	NotConfigured bool

	CreateLinkIntentFunc     func(ctx context.Context, country, userID string) (*fintoc.LinkIntent, error)
	ExchangeTokenForLinkFunc func(ctx context.Context, exchangeToken string) (*fintoc.Link, error)
	GetLinkAccountsFunc      func(ctx context.Context, linkToken string) ([]fintoc.Account, error)
	GetAccountMovementsFunc  func(ctx context.Context, accountID string, opts fintoc.MovementsOptions) ([]fintoc.Movement, error)
	VerifyLinkFunc           func(ctx context.Context, linkToken string) (*fintoc.Link, bool, error)
}

func (m *MockFintocClient) Configured() bool { return !m.NotConfigured }

func (m *MockFintocClient) PublicKey() string { return "pk_test_widget" }

func (m *MockFintocClient) CreateLinkIntent(ctx context.Context, country, userID string) (*fintoc.LinkIntent, error) {
	if m.CreateLinkIntentFunc != nil {
		return m.CreateLinkIntentFunc(ctx, country, userID)
	}
	return &fintoc.LinkIntent{ID: "li_1", WidgetToken: "wt_1"}, nil
}

func (m *MockFintocClient) ExchangeTokenForLink(ctx context.Context, exchangeToken string) (*fintoc.Link, error) {
	if m.ExchangeTokenForLinkFunc != nil {
		return m.ExchangeTokenForLinkFunc(ctx, exchangeToken)
	}
	return &fintoc.Link{ID: "link_1", LinkToken: "link_1_token_secret"}, nil
}

func (m *MockFintocClient) GetLinkAccounts(ctx context.Context, linkToken string) ([]fintoc.Account, error) {
	if m.GetLinkAccountsFunc != nil {
		return m.GetLinkAccountsFunc(ctx, linkToken)
	}
	return []fintoc.Account{}, nil
}

func (m *MockFintocClient) GetAccountMovements(ctx context.Context, accountID string, opts fintoc.MovementsOptions) ([]fintoc.Movement, error) {
	if m.GetAccountMovementsFunc != nil {
		return m.GetAccountMovementsFunc(ctx, accountID, opts)
	}
	return []fintoc.Movement{}, nil
}

// GetLinkSummary folds GetLinkAccounts the way the real client does.
func (m *MockFintocClient) GetLinkSummary(ctx context.Context, linkToken string) (*fintoc.Summary, error) {
	accounts, err := m.GetLinkAccounts(ctx, linkToken)
	if err != nil {
		return nil, err
	}
	return fintoc.Summarize(linkToken, accounts), nil
}

func (m *MockFintocClient) VerifyLink(ctx context.Context, linkToken string) (*fintoc.Link, bool, error) {
	if m.VerifyLinkFunc != nil {
		return m.VerifyLinkFunc(ctx, linkToken)
	}
	return &fintoc.Link{ID: linkToken, LinkToken: linkToken}, true, nil
}

// MockOAuthProvider implements auth.OAuthProvider for testing
type MockOAuthProvider struct {
	NotConfigured bool

	ExchangeCodeFunc func(ctx context.Context, code string) (*oauth2.Token, error)
	GetUserInfoFunc  func(ctx context.Context, token *oauth2.Token) (*auth.OAuthUserInfo, error)
}

func (m *MockOAuthProvider) Configured() bool { return !m.NotConfigured }

func (m *MockOAuthProvider) GetAuthURL(state string) string {
	return "https://accounts.example.com/o/oauth2/auth?state=" + url.QueryEscape(state)
}

func (m *MockOAuthProvider) ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error) {
	if m.ExchangeCodeFunc != nil {
		return m.ExchangeCodeFunc(ctx, code)
	}
	return &oauth2.Token{AccessToken: "google-access-token"}, nil
}

func (m *MockOAuthProvider) GetUserInfo(ctx context.Context, token *oauth2.Token) (*auth.OAuthUserInfo, error) {
	if m.GetUserInfoFunc != nil {
		return m.GetUserInfoFunc(ctx, token)
	}
	return &auth.OAuthUserInfo{ID: "g-1", Email: "ana@example.com", VerifiedEmail: true, Name: "Ana Rojas"}, nil
}

type testApp struct {
	server *httptest.Server
	client *http.Client
	store  *session.MemoryStore
	jwt    *auth.JWT
}

func newTestApp(t *testing.T, fc *MockFintocClient, op *MockOAuthProvider) *testApp {
	t.Helper()
	if fc == nil {
		fc = &MockFintocClient{}
	}
	if op == nil {
		op = &MockOAuthProvider{}
	}

	logger := zap.NewNop()
	store := session.NewMemoryStore(time.Hour, time.Minute)
	jwt := auth.NewJWT(testSecret)
	sessions := session.NewManager(store, jwt, session.Options{}, logger)
	bank := banklink.NewService(fc, "cl", logger)
	renderer, err := web.NewRenderer()
	require.NoError(t, err)

	pages := NewPageHandler(renderer, bank, sessions, logger)
	authHandler := NewAuthHandler(op, sessions, logger)
	bankHandler := NewBankHandler(bank, sessions, logger)

	r := chi.NewRouter()
	r.NotFound(sessions.Middleware(http.HandlerFunc(pages.HandleNotFound)).ServeHTTP)
	r.Group(func(r chi.Router) {
		r.Use(sessions.Middleware)
		r.Get("/", pages.HandleHome)
		r.Get("/about", pages.HandleAbout)
		r.Get("/login", authHandler.HandleLogin)
		r.Get("/callback", authHandler.HandleCallback)
		r.Post("/logout", authHandler.HandleLogout)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireLogin(LoggedIn, "/"))
			r.Get("/dashboard", pages.HandleDashboard)
			r.Get("/connect", pages.HandleConnect)
			r.Route("/api/fintoc", func(r chi.Router) {
				r.Post("/exchange-token", bankHandler.HandleExchangeToken)
				r.Post("/link-callback", bankHandler.HandleLinkCallback)
				r.Get("/accounts", bankHandler.HandleAccounts)
				r.Get("/accounts/{accountID}/movements", bankHandler.HandleMovements)
				r.Post("/refresh", bankHandler.HandleRefresh)
				r.Post("/disconnect", bankHandler.HandleDisconnect)
			})
		})
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &testApp{
		server: srv,
		client: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		store: store,
		jwt:   jwt,
	}
}

type testResponse struct {
	Status   int
	Location string
	Body     string
}

func (a *testApp) do(t *testing.T, method, path, body string) testResponse {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, a.server.URL+path, reader)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return testResponse{Status: resp.StatusCode, Location: resp.Header.Get("Location"), Body: string(raw)}
}

func (a *testApp) get(t *testing.T, path string) testResponse {
	return a.do(t, http.MethodGet, path, "")
}

func (a *testApp) post(t *testing.T, path, body string) testResponse {
	return a.do(t, http.MethodPost, path, body)
}

// login walks the OAuth redirect dance with the mock provider.
func (a *testApp) login(t *testing.T) {
	t.Helper()
	resp := a.get(t, "/login")
	require.Equal(t, http.StatusFound, resp.Status)

	state := stateFrom(t, resp.Location)
	resp = a.get(t, "/callback?code=good&state="+url.QueryEscape(state))
	require.Equal(t, http.StatusFound, resp.Status)
	require.Equal(t, "/dashboard", resp.Location)
}

// sessionID decodes the current session cookie.
func (a *testApp) sessionID(t *testing.T) string {
	t.Helper()
	u, err := url.Parse(a.server.URL)
	require.NoError(t, err)
	for _, c := range a.client.Jar.Cookies(u) {
		if c.Name == session.DefaultCookieName {
			id, err := a.jwt.SessionID(c.Value)
			require.NoError(t, err)
			return id
		}
	}
	t.Fatal("no session cookie")
	return ""
}

func stateFrom(t *testing.T, location string) string {
	t.Helper()
	u, err := url.Parse(location)
	require.NoError(t, err)
	state := u.Query().Get("state")
	require.NotEmpty(t, state)
	return state
}

func decodeJSON[T any](t *testing.T, body string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(body), &v))
	return v
}
