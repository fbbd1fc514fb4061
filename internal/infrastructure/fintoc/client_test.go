package fintoc

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// fakeFintoc is an httptest server that records every request it receives.
type fakeFintoc struct {
	*httptest.Server

	mu       sync.Mutex
	requests []*recordedRequest
	handler  http.HandlerFunc
}

type recordedRequest struct {
	Method string
	Path   string
	Query  map[string][]string
	Header http.Header
	Body   []byte
}

func newFakeFintoc(t *testing.T, handler http.HandlerFunc) *fakeFintoc {
	t.Helper()
	f := &fakeFintoc{handler: handler}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.requests = append(f.requests, &recordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.Query(),
			Header: r.Header.Clone(),
			Body:   body,
		})
		f.mu.Unlock()
		f.handler(w, r)
	}))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeFintoc) Requests() []*recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*recordedRequest(nil), f.requests...)
}

func (f *fakeFintoc) CountPath(path string) int {
	n := 0
	for _, r := range f.Requests() {
		if r.Path == path {
			n++
		}
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	io.WriteString(w, body)
}

func newTestClient(f *fakeFintoc, logger *zap.Logger) *Client {
	return NewClient(Config{
		APIKey:    "sk_test_secret",
		PublicKey: "pk_test_public",
		BaseURL:   f.URL + "/v1",
		Timeout:   2 * time.Second,
	}, logger)
}

func TestNewClient_Unconfigured(t *testing.T) {
	client := NewClient(Config{}, nil)

	assert.False(t, client.Configured())
	assert.Equal(t, defaultBaseURL, client.baseURL)
	assert.Equal(t, defaultTimeout, client.httpClient.Timeout)
}

func TestUnconfiguredClient_NeverCallsNetwork(t *testing.T) {
	fake := newFakeFintoc(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `[]`)
	})
	client := NewClient(Config{BaseURL: fake.URL}, nil)
	ctx := context.Background()

	intent, err := client.CreateLinkIntent(ctx, "cl", "")
	assert.Nil(t, intent)
	assert.True(t, IsNotConfigured(err))
	assert.Equal(t, KindConfiguration, KindOf(err))

	link, err := client.ExchangeTokenForLink(ctx, "exchange")
	assert.Nil(t, link)
	assert.True(t, IsNotConfigured(err))

	accounts, err := client.GetLinkAccounts(ctx, "link_token")
	assert.NotNil(t, accounts)
	assert.Empty(t, accounts)
	assert.True(t, IsNotConfigured(err))

	movements, err := client.GetAccountMovements(ctx, "acc_1", MovementsOptions{})
	assert.NotNil(t, movements)
	assert.Empty(t, movements)
	assert.True(t, IsNotConfigured(err))

	summary, err := client.GetLinkSummary(ctx, "link_token")
	assert.True(t, IsNotConfigured(err))
	assert.Equal(t, 0, summary.AccountsCount)

	info, found, err := client.VerifyLink(ctx, "link_token")
	assert.Nil(t, info)
	assert.False(t, found)
	assert.True(t, IsNotConfigured(err))

	assert.Empty(t, fake.Requests())
}

func TestCreateLinkIntent(t *testing.T) {
	fake := newFakeFintoc(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusCreated, `{"id":"li_1","widget_token":"wt_abc"}`)
	})
	client := newTestClient(fake, nil)

	intent, err := client.CreateLinkIntent(context.Background(), "cl", "")
	require.NoError(t, err)
	assert.Equal(t, &LinkIntent{ID: "li_1", WidgetToken: "wt_abc"}, intent)

	reqs := fake.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodPost, reqs[0].Method)
	assert.Equal(t, "/v1/link_intents", reqs[0].Path)
	assert.Equal(t, "Bearer sk_test_secret", reqs[0].Header.Get("Authorization"))
	assert.Equal(t, "application/json", reqs[0].Header.Get("Content-Type"))
	assert.JSONEq(t, `{"country":"cl","product":"movements","holder_type":"individual"}`, string(reqs[0].Body))
}

func TestCreateLinkIntent_WithUserAndDefaultCountry(t *testing.T) {
	fake := newFakeFintoc(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusCreated, `{"id":"li_2","widget_token":"wt_def","country":"cl"}`)
	})
	client := newTestClient(fake, nil)

	intent, err := client.CreateLinkIntent(context.Background(), "", "user-42")
	require.NoError(t, err)
	assert.Equal(t, "wt_def", intent.WidgetToken)

	reqs := fake.Requests()
	require.Len(t, reqs, 1)
	assert.JSONEq(t,
		`{"country":"cl","product":"movements","holder_type":"individual","user":{"id":"user-42"}}`,
		string(reqs[0].Body))
}

func TestCreateLinkIntent_InvalidCountry(t *testing.T) {
	fake := newFakeFintoc(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	client := newTestClient(fake, nil)

	_, err := client.CreateLinkIntent(context.Background(), "chile", "")
	assert.Equal(t, KindInvalidInput, KindOf(err))
	assert.Empty(t, fake.Requests())
}

func TestCreateLinkIntent_Failures(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantKind   Kind
		wantStatus int
	}{
		{"Missing widget token on 201", http.StatusCreated, `{"id":"li_1"}`, KindDataShape, 0},
		{"Empty widget token on 201", http.StatusCreated, `{"id":"li_1","widget_token":""}`, KindDataShape, 0},
		{"200 is not success", http.StatusOK, `{"id":"li_1","widget_token":"wt"}`, KindProvider, http.StatusOK},
		{"Bad request", http.StatusBadRequest, `{"error":{"message":"invalid country"}}`, KindProvider, http.StatusBadRequest},
		{"Server error", http.StatusInternalServerError, `oops`, KindProvider, http.StatusInternalServerError},
		{"Invalid JSON", http.StatusCreated, `not json`, KindDataShape, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFakeFintoc(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, tt.body)
			})
			client := newTestClient(fake, nil)

			intent, err := client.CreateLinkIntent(context.Background(), "cl", "")
			assert.Nil(t, intent)
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, KindOf(err))
			assert.Equal(t, tt.wantStatus, StatusOf(err))
			assert.Len(t, fake.Requests(), 1, "no retry")
		})
	}
}

func TestCreateLinkIntent_ProviderErrorCarriesBody(t *testing.T) {
	fake := newFakeFintoc(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnprocessableEntity, `{"error":"bad holder"}`)
	})
	client := newTestClient(fake, nil)

	_, err := client.CreateLinkIntent(context.Background(), "cl", "")

	var fe *Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, http.StatusUnprocessableEntity, fe.StatusCode)
	assert.Equal(t, `{"error":"bad holder"}`, fe.Body)
	assert.Contains(t, fe.Error(), "422")
}

func TestTransportFailure(t *testing.T) {
	fake := newFakeFintoc(t, func(w http.ResponseWriter, r *http.Request) {})
	baseURL := fake.URL
	fake.Close()

	client := NewClient(Config{APIKey: "sk", BaseURL: baseURL, Timeout: time.Second}, nil)
	ctx := context.Background()

	_, err := client.CreateLinkIntent(ctx, "cl", "")
	assert.Equal(t, KindTransport, KindOf(err))

	accounts, err := client.GetLinkAccounts(ctx, "tok")
	assert.Equal(t, KindTransport, KindOf(err))
	assert.Empty(t, accounts)

	movements, err := client.GetAccountMovements(ctx, "acc", MovementsOptions{})
	assert.Equal(t, KindTransport, KindOf(err))
	assert.Empty(t, movements)
}

func TestTimeout(t *testing.T) {
	release := make(chan struct{})
	fake := newFakeFintoc(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	client := NewClient(Config{APIKey: "sk", BaseURL: fake.URL, Timeout: 50 * time.Millisecond}, nil)

	_, err := client.ExchangeTokenForLink(context.Background(), "exchange")
	assert.Equal(t, KindTransport, KindOf(err))
}

func TestExchangeTokenForLink(t *testing.T) {
	tests := []struct {
		name         string
		body         string
		wantToken    string
		wantDegraded bool
	}{
		{
			name:      "Link token present",
			body:      `{"id":"link_1","link_token":"link_1_token_real","status":"active"}`,
			wantToken: "link_1_token_real",
		},
		{
			name:      "Synthesized from access token",
			body:      `{"id":"link_1","access_token":"acc_tok"}`,
			wantToken: "link_1_token_acc_tok",
		},
		{
			name:         "Bare id fallback",
			body:         `{"id":"link_1"}`,
			wantToken:    "link_1",
			wantDegraded: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFakeFintoc(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, tt.body)
			})
			client := newTestClient(fake, nil)

			link, err := client.ExchangeTokenForLink(context.Background(), "ex_123")
			require.NoError(t, err)
			assert.Equal(t, "link_1", link.ID)
			assert.Equal(t, tt.wantToken, link.LinkToken)
			assert.Equal(t, tt.wantDegraded, link.Degraded)
			assert.JSONEq(t, tt.body, string(link.Raw))

			reqs := fake.Requests()
			require.Len(t, reqs, 1)
			assert.Equal(t, http.MethodGet, reqs[0].Method)
			assert.Equal(t, "/v1/links/exchange", reqs[0].Path)
			assert.Equal(t, []string{"ex_123"}, reqs[0].Query["exchange_token"])
		})
	}
}

func TestExchangeTokenForLink_DegradedIsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	fake := newFakeFintoc(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"id":"link_9"}`)
	})
	client := newTestClient(fake, zap.New(core))

	_, err := client.ExchangeTokenForLink(context.Background(), "ex")
	require.NoError(t, err)

	warnings := logs.FilterLevelExact(zapcore.WarnLevel).All()
	require.Len(t, warnings, 1)
	assert.Equal(t, "link_9", warnings[0].ContextMap()["link_id"])
}

func TestExchangeTokenForLink_Failures(t *testing.T) {
	t.Run("Empty token", func(t *testing.T) {
		fake := newFakeFintoc(t, func(w http.ResponseWriter, r *http.Request) {})
		client := newTestClient(fake, nil)

		_, err := client.ExchangeTokenForLink(context.Background(), "")
		assert.Equal(t, KindInvalidInput, KindOf(err))
		assert.Empty(t, fake.Requests())
	})

	t.Run("No id and no token", func(t *testing.T) {
		fake := newFakeFintoc(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, `{"status":"active"}`)
		})
		client := newTestClient(fake, nil)

		_, err := client.ExchangeTokenForLink(context.Background(), "ex")
		assert.Equal(t, KindDataShape, KindOf(err))
	})

	t.Run("Provider rejects", func(t *testing.T) {
		fake := newFakeFintoc(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusBadRequest, `{"error":"expired"}`)
		})
		client := newTestClient(fake, nil)

		_, err := client.ExchangeTokenForLink(context.Background(), "ex")
		assert.Equal(t, KindProvider, KindOf(err))
		assert.Equal(t, http.StatusBadRequest, StatusOf(err))
	})
}

func TestGetLinkAccounts_Primary(t *testing.T) {
	fake := newFakeFintoc(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `[{"id":"acc_1","balance":{"current":1000,"currency":"CLP"}}]`)
	})
	client := newTestClient(fake, nil)

	accounts, err := client.GetLinkAccounts(context.Background(), "tok_1")
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "acc_1", accounts[0].ID)
	assert.True(t, accounts[0].Balance.Current.Equal(decimal.NewFromInt(1000)))

	assert.Equal(t, 1, fake.CountPath("/v1/links/tok_1/accounts"))
	assert.Equal(t, 0, fake.CountPath("/v1/accounts"))
}

func TestGetLinkAccounts_FallbackOn404(t *testing.T) {
	fake := newFakeFintoc(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/links/tok_1/accounts" {
			writeJSON(w, http.StatusNotFound, `{"error":"not found"}`)
			return
		}
		writeJSON(w, http.StatusOK, `[{"id":"acc_1"},{"id":"acc_2"}]`)
	})
	client := newTestClient(fake, nil)

	accounts, err := client.GetLinkAccounts(context.Background(), "tok_1")
	require.NoError(t, err)
	assert.Len(t, accounts, 2)

	assert.Equal(t, 1, fake.CountPath("/v1/links/tok_1/accounts"))
	assert.Equal(t, 1, fake.CountPath("/v1/accounts"), "exactly one fallback call")

	reqs := fake.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, []string{"tok_1"}, reqs[1].Query["link_token"])
}

func TestGetLinkAccounts_FallbackAlso404(t *testing.T) {
	fake := newFakeFintoc(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, `{}`)
	})
	client := newTestClient(fake, nil)

	accounts, err := client.GetLinkAccounts(context.Background(), "tok_1")
	assert.Empty(t, accounts)
	assert.True(t, IsNotFound(err))
	assert.Len(t, fake.Requests(), 2, "no second fallback")
}

func TestGetLinkAccounts_NoFallbackOnOtherErrors(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusInternalServerError} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			fake := newFakeFintoc(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, status, `{}`)
			})
			client := newTestClient(fake, nil)

			accounts, err := client.GetLinkAccounts(context.Background(), "tok_1")
			assert.NotNil(t, accounts)
			assert.Empty(t, accounts)
			assert.Equal(t, status, StatusOf(err))
			assert.Equal(t, 0, fake.CountPath("/v1/accounts"))
			assert.Len(t, fake.Requests(), 1)
		})
	}
}

func TestGetLinkAccounts_ZeroAccounts(t *testing.T) {
	for _, body := range []string{`[]`, `null`, `{"accounts":[]}`, `{"id":"link_1"}`} {
		t.Run(body, func(t *testing.T) {
			fake := newFakeFintoc(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, body)
			})
			client := newTestClient(fake, nil)

			accounts, err := client.GetLinkAccounts(context.Background(), "tok_1")
			require.NoError(t, err)
			assert.NotNil(t, accounts)
			assert.Empty(t, accounts)
		})
	}
}

func TestGetLinkAccounts_Envelope(t *testing.T) {
	fake := newFakeFintoc(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"id":"link_1","accounts":[{"id":"acc_1"}]}`)
	})
	client := newTestClient(fake, nil)

	accounts, err := client.GetLinkAccounts(context.Background(), "tok_1")
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "acc_1", accounts[0].ID)
}

func TestGetAccountMovements_ClampsLimit(t *testing.T) {
	tests := []struct {
		limit int
		want  string
	}{
		{0, "50"},
		{-3, "50"},
		{1, "1"},
		{50, "50"},
		{200, "200"},
		{201, "200"},
		{500, "200"},
	}

	for _, tt := range tests {
		fake := newFakeFintoc(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, `[]`)
		})
		client := newTestClient(fake, nil)

		_, err := client.GetAccountMovements(context.Background(), "acc_1", MovementsOptions{Limit: tt.limit})
		require.NoError(t, err)

		reqs := fake.Requests()
		require.Len(t, reqs, 1)
		assert.Equal(t, []string{tt.want}, reqs[0].Query["limit"], "limit %d", tt.limit)
	}
}

func TestGetAccountMovements_Scenario(t *testing.T) {
	fake := newFakeFintoc(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, `{"error":"invalid_api_key"}`)
	})
	client := newTestClient(fake, nil)

	movements, err := client.GetAccountMovements(context.Background(), "acc_1", MovementsOptions{
		Limit: 500,
		Since: "2024-01-01",
	})

	assert.NotNil(t, movements)
	assert.Empty(t, movements)
	assert.True(t, IsUnauthorized(err))

	reqs := fake.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "/v1/accounts/acc_1/movements", reqs[0].Path)
	assert.Equal(t, []string{"200"}, reqs[0].Query["limit"])
	assert.Equal(t, []string{"2024-01-01"}, reqs[0].Query["since"])
	_, hasUntil := reqs[0].Query["until"]
	assert.False(t, hasUntil)
}

func TestGetAccountMovements_DatesPassThrough(t *testing.T) {
	fake := newFakeFintoc(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `[{"id":"mov_1","amount":-1500,"currency":"CLP","description":"Cafe","post_date":"2024-01-02T00:00:00Z"}]`)
	})
	client := newTestClient(fake, nil)

	movements, err := client.GetAccountMovements(context.Background(), "acc_1", MovementsOptions{
		Since: "not-a-date",
		Until: "2024-13-45",
	})
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.Equal(t, "Cafe", movements[0].Description)
	assert.True(t, movements[0].Amount.Equal(decimal.NewFromInt(-1500)))

	reqs := fake.Requests()
	assert.Equal(t, []string{"not-a-date"}, reqs[0].Query["since"])
	assert.Equal(t, []string{"2024-13-45"}, reqs[0].Query["until"])
}

func TestGetAccountMovements_StatusDiagnostics(t *testing.T) {
	tests := []struct {
		status   int
		message  string
		level    zapcore.Level
		classify func(error) bool
	}{
		{http.StatusNotFound, "Account not found while getting movements", zapcore.WarnLevel, IsNotFound},
		{http.StatusUnauthorized, "Invalid Fintoc credentials while getting movements", zapcore.ErrorLevel, IsUnauthorized},
		{http.StatusForbidden, "Access forbidden while getting movements", zapcore.ErrorLevel, IsForbidden},
		{http.StatusBadGateway, "Error getting movements", zapcore.ErrorLevel, func(err error) bool {
			return KindOf(err) == KindProvider && StatusOf(err) == http.StatusBadGateway
		}},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			core, logs := observer.New(zapcore.DebugLevel)
			fake := newFakeFintoc(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, `{}`)
			})
			client := newTestClient(fake, zap.New(core))

			movements, err := client.GetAccountMovements(context.Background(), "acc_1", MovementsOptions{})
			assert.Empty(t, movements)
			assert.True(t, tt.classify(err))

			entries := logs.FilterMessage(tt.message).All()
			require.Len(t, entries, 1)
			assert.Equal(t, tt.level, entries[0].Level)
		})
	}
}

func TestGetLinkSummary(t *testing.T) {
	fake := newFakeFintoc(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `[
			{"id":"acc_1","balance":{"current":1000,"currency":"CLP"}},
			{"id":"acc_2","balance":{"current":500,"currency":"CLP"}}
		]`)
	})
	client := newTestClient(fake, nil)

	summary, err := client.GetLinkSummary(context.Background(), "tok_1")
	require.NoError(t, err)

	assert.True(t, summary.TotalBalance.Equal(decimal.NewFromInt(1500)))
	assert.Equal(t, "CLP", summary.Currency)
	assert.Equal(t, 2, summary.AccountsCount)
	assert.Equal(t, "tok_1", summary.LinkToken)
	assert.False(t, summary.MixedCurrencies)
}

func TestGetLinkSummary_Error(t *testing.T) {
	fake := newFakeFintoc(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, `{}`)
	})
	client := newTestClient(fake, nil)

	summary, err := client.GetLinkSummary(context.Background(), "tok_1")
	assert.Error(t, err)
	require.NotNil(t, summary)
	assert.True(t, summary.TotalBalance.IsZero())
	assert.Equal(t, "CLP", summary.Currency)
	assert.Equal(t, 0, summary.AccountsCount)
}

func TestVerifyLink(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantFound bool
		wantErr   bool
	}{
		{"Found", http.StatusOK, `{"id":"link_1","status":"active"}`, true, false},
		{"Not found", http.StatusNotFound, `{}`, false, false},
		{"Unauthorized", http.StatusUnauthorized, `{}`, false, true},
		{"Server error", http.StatusInternalServerError, `{}`, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFakeFintoc(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, tt.body)
			})
			client := newTestClient(fake, nil)

			link, found, err := client.VerifyLink(context.Background(), "link_1")
			assert.Equal(t, tt.wantFound, found)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Equal(t, tt.status, StatusOf(err))
			} else {
				assert.NoError(t, err)
			}
			if tt.wantFound {
				require.NotNil(t, link)
				assert.Equal(t, "link_1", link.ID)
				assert.Equal(t, "link_1", link.LinkToken)
			} else {
				assert.Nil(t, link)
			}
			assert.Equal(t, 1, fake.CountPath("/v1/links/link_1"))
		})
	}
}

func TestLinkJSONHidesRaw(t *testing.T) {
	link := Link{ID: "link_1", LinkToken: "tok", Raw: json.RawMessage(`{"secret":true}`), Degraded: true}

	data, err := json.Marshal(link)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret")
	assert.NotContains(t, string(data), "Degraded")
}
