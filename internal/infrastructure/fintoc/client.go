package fintoc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"bancolink/internal/shared/logging"
)

const (
	defaultBaseURL = "https://api.fintoc.com/v1"
	defaultTimeout = 30 * time.Second
	maxBodyBytes   = 4 << 20

	linkIntentsPath   = "/link_intents"
	linkExchangePath  = "/links/exchange"
	linkPath          = "/links/%s"
	linkAccountsPath  = "/links/%s/accounts"
	accountsPath      = "/accounts"
	accountMovesPath  = "/accounts/%s/movements"
	opCreateIntent    = "create_link_intent"
	opExchangeToken   = "exchange_token_for_link"
	opLinkAccounts    = "get_link_accounts"
	opAccountMoves    = "get_account_movements"
	opVerifyLink      = "verify_link"
	statusClassFailed = "transport_error"
)

var (
	fintocMeter       = otel.Meter("bancolink/fintoc")
	fintocRequests, _ = fintocMeter.Int64Counter("fintoc.requests",
		metric.WithDescription("Requests sent to the Fintoc API by operation and status"),
	)
)

// Config holds the credentials and endpoint of the Fintoc API.
type Config struct {
	APIKey    string
	PublicKey string
	BaseURL   string
	Timeout   time.Duration
}

// Client is a stateless wrapper around the Fintoc REST API. Every call is a
// single blocking round trip bounded by the configured timeout; nothing is retried.
type Client struct {
	httpClient *http.Client
	apiKey     string
	publicKey  string
	baseURL    string
	logger     *zap.Logger
}

// Ensure Client implements ClientInterface
var _ ClientInterface = (*Client)(nil)

// NewClient creates a Fintoc client. A missing API key yields an unconfigured
// client whose operations fail fast with ErrNotConfigured.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		apiKey:    cfg.APIKey,
		publicKey: cfg.PublicKey,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		logger:    logger,
	}
	if !c.Configured() {
		logger.Warn("Fintoc API key not found. Set FINTOC_API_KEY environment variable.")
	}
	return c
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// PublicKey returns the key handed to the client-side widget.
func (c *Client) PublicKey() string {
	return c.publicKey
}

func (c *Client) notConfigured(op string) error {
	c.logger.Error("Fintoc API key not configured", zap.String("op", op))
	return newError(KindConfiguration, op, ErrNotConfigured)
}

// CreateLinkIntent starts a bank connection and returns the widget token
// the client-side widget needs. An empty country defaults to "cl".
func (c *Client) CreateLinkIntent(ctx context.Context, country, userID string) (*LinkIntent, error) {
	if !c.Configured() {
		return nil, c.notConfigured(opCreateIntent)
	}

	country = strings.ToLower(strings.TrimSpace(country))
	if country == "" {
		country = DefaultCountry
	}
	if !isCountryCode(country) {
		return nil, newError(KindInvalidInput, opCreateIntent, fmt.Errorf("invalid country code %q", country))
	}

	payload := linkIntentRequest{
		Country:    country,
		Product:    ProductMovements,
		HolderType: HolderIndividual,
	}
	if userID != "" {
		payload.User = &linkIntentUser{ID: userID}
	}

	c.logger.Info("Creating link intent",
		zap.String("country", payload.Country),
		zap.String("product", payload.Product),
		zap.String("holder_type", payload.HolderType),
		zap.Bool("with_user", payload.User != nil),
	)

	status, body, err := c.do(ctx, opCreateIntent, http.MethodPost, linkIntentsPath, nil, payload)
	if err != nil {
		c.logger.Error("Error creating link intent", zap.Error(err))
		return nil, err
	}
	if status != http.StatusCreated {
		c.logger.Error("API error creating link intent", zap.Int("status", status), zap.String("body", truncate(body)))
		return nil, providerError(opCreateIntent, status, body)
	}

	var intent LinkIntent
	if err := json.Unmarshal(body, &intent); err != nil {
		return nil, newError(KindDataShape, opCreateIntent, fmt.Errorf("failed to unmarshal response: %w", err))
	}
	if intent.WidgetToken == "" {
		c.logger.Error("Link intent response has no widget_token", zap.String("link_intent_id", intent.ID))
		return nil, newError(KindDataShape, opCreateIntent, errors.New("response is missing widget_token"))
	}

	c.logger.Info("Link intent created", zap.String("link_intent_id", intent.ID))
	return &intent, nil
}

// ExchangeTokenForLink trades the single-use widget exchange token for a
// permanent Link. When the provider omits link_token it is synthesized as
// "{id}_token_{access_token}", or falls back to the bare id (Degraded).
func (c *Client) ExchangeTokenForLink(ctx context.Context, exchangeToken string) (*Link, error) {
	if !c.Configured() {
		return nil, c.notConfigured(opExchangeToken)
	}
	if exchangeToken == "" {
		return nil, newError(KindInvalidInput, opExchangeToken, errors.New("exchange token is empty"))
	}

	c.logger.Info("Exchanging token", zap.String("exchange_token", logging.Mask(exchangeToken)))

	query := url.Values{"exchange_token": {exchangeToken}}
	status, body, err := c.do(ctx, opExchangeToken, http.MethodGet, linkExchangePath, query, nil)
	if err != nil {
		c.logger.Error("Error exchanging token", zap.Error(err))
		return nil, err
	}
	if status != http.StatusOK {
		c.logger.Error("Exchange error", zap.Int("status", status), zap.String("body", truncate(body)))
		return nil, providerError(opExchangeToken, status, body)
	}

	var link Link
	if err := json.Unmarshal(body, &link); err != nil {
		return nil, newError(KindDataShape, opExchangeToken, fmt.Errorf("failed to unmarshal response: %w", err))
	}
	link.Raw = json.RawMessage(body)

	if link.LinkToken == "" {
		switch {
		case link.ID == "":
			return nil, newError(KindDataShape, opExchangeToken, errors.New("response has neither link_token nor id"))
		case link.AccessToken != "":
			link.LinkToken = link.ID + "_token_" + link.AccessToken
		default:
			link.LinkToken = link.ID
			link.Degraded = true
			c.logger.Warn("Exchange response has no link_token or access_token; using link id as token",
				zap.String("link_id", link.ID))
		}
	}

	c.logger.Info("Exchange successful", zap.String("link_id", link.ID))
	return &link, nil
}

// GetLinkAccounts lists the accounts of a link. The path-scoped endpoint is
// tried first; only a 404 there falls back to the query-scoped endpoint.
func (c *Client) GetLinkAccounts(ctx context.Context, linkToken string) ([]Account, error) {
	if !c.Configured() {
		return []Account{}, c.notConfigured(opLinkAccounts)
	}
	if linkToken == "" {
		return []Account{}, newError(KindInvalidInput, opLinkAccounts, errors.New("link token is empty"))
	}

	path := fmt.Sprintf(linkAccountsPath, url.PathEscape(linkToken))
	status, body, err := c.do(ctx, opLinkAccounts, http.MethodGet, path, nil, nil)
	if err != nil {
		c.logger.Error("Error getting accounts", zap.Error(err))
		return []Account{}, err
	}

	if status == http.StatusNotFound {
		c.logger.Info("Path-scoped accounts endpoint returned 404, trying query-scoped endpoint",
			zap.String("link_token", logging.Mask(linkToken)))
		query := url.Values{"link_token": {linkToken}}
		status, body, err = c.do(ctx, opLinkAccounts, http.MethodGet, accountsPath, query, nil)
		if err != nil {
			c.logger.Error("Error getting accounts", zap.Error(err))
			return []Account{}, err
		}
	}

	if status != http.StatusOK {
		c.logger.Error("Error getting accounts", zap.Int("status", status), zap.String("body", truncate(body)))
		return []Account{}, providerError(opLinkAccounts, status, body)
	}

	accounts, err := decodeAccounts(body)
	if err != nil {
		return []Account{}, newError(KindDataShape, opLinkAccounts, err)
	}

	c.logger.Info("Found accounts for link",
		zap.Int("count", len(accounts)),
		zap.String("link_token", logging.Mask(linkToken)))
	return accounts, nil
}

// GetAccountMovements lists movements of an account. The limit is clamped to
// MaxMovementsLimit; 404, 401 and 403 are logged distinctly and returned as
// provider errors alongside an empty slice.
func (c *Client) GetAccountMovements(ctx context.Context, accountID string, opts MovementsOptions) ([]Movement, error) {
	if !c.Configured() {
		return []Movement{}, c.notConfigured(opAccountMoves)
	}
	if accountID == "" {
		return []Movement{}, newError(KindInvalidInput, opAccountMoves, errors.New("account id is empty"))
	}

	query := url.Values{"limit": {strconv.Itoa(EffectiveLimit(opts.Limit))}}
	if opts.Since != "" {
		query.Set("since", opts.Since)
	}
	if opts.Until != "" {
		query.Set("until", opts.Until)
	}

	path := fmt.Sprintf(accountMovesPath, url.PathEscape(accountID))
	status, body, err := c.do(ctx, opAccountMoves, http.MethodGet, path, query, nil)
	if err != nil {
		c.logger.Error("Error getting movements", zap.String("account_id", accountID), zap.Error(err))
		return []Movement{}, err
	}

	switch status {
	case http.StatusOK:
	case http.StatusNotFound:
		c.logger.Warn("Account not found while getting movements", zap.String("account_id", accountID))
		return []Movement{}, providerError(opAccountMoves, status, body)
	case http.StatusUnauthorized:
		c.logger.Error("Invalid Fintoc credentials while getting movements", zap.String("account_id", accountID))
		return []Movement{}, providerError(opAccountMoves, status, body)
	case http.StatusForbidden:
		c.logger.Error("Access forbidden while getting movements", zap.String("account_id", accountID))
		return []Movement{}, providerError(opAccountMoves, status, body)
	default:
		c.logger.Error("Error getting movements",
			zap.String("account_id", accountID),
			zap.Int("status", status),
			zap.String("body", truncate(body)))
		return []Movement{}, providerError(opAccountMoves, status, body)
	}

	var movements []Movement
	if err := json.Unmarshal(body, &movements); err != nil {
		return []Movement{}, newError(KindDataShape, opAccountMoves, fmt.Errorf("failed to unmarshal response: %w", err))
	}
	if movements == nil {
		movements = []Movement{}
	}

	c.logger.Info("Found movements for account", zap.Int("count", len(movements)), zap.String("account_id", accountID))
	return movements, nil
}

// GetLinkSummary totals the balances of a link's accounts. On failure the
// zero summary is returned together with the error.
func (c *Client) GetLinkSummary(ctx context.Context, linkToken string) (*Summary, error) {
	accounts, err := c.GetLinkAccounts(ctx, linkToken)
	if err != nil {
		return Summarize(linkToken, nil), err
	}

	summary := Summarize(linkToken, accounts)
	if summary.MixedCurrencies {
		c.logger.Warn("Link accounts have mixed currencies; total balance is not meaningful",
			zap.String("link_token", logging.Mask(linkToken)),
			zap.String("reported_currency", summary.Currency))
	}
	return summary, nil
}

// VerifyLink fetches a link by token. A 404 is a negative result, not an
// error: it returns (nil, false, nil).
func (c *Client) VerifyLink(ctx context.Context, linkToken string) (*Link, bool, error) {
	if !c.Configured() {
		return nil, false, c.notConfigured(opVerifyLink)
	}
	if linkToken == "" {
		return nil, false, newError(KindInvalidInput, opVerifyLink, errors.New("link token is empty"))
	}

	path := fmt.Sprintf(linkPath, url.PathEscape(linkToken))
	status, body, err := c.do(ctx, opVerifyLink, http.MethodGet, path, nil, nil)
	if err != nil {
		c.logger.Error("Error verifying link", zap.Error(err))
		return nil, false, err
	}

	switch status {
	case http.StatusOK:
		var link Link
		if err := json.Unmarshal(body, &link); err != nil {
			return nil, false, newError(KindDataShape, opVerifyLink, fmt.Errorf("failed to unmarshal response: %w", err))
		}
		link.Raw = json.RawMessage(body)
		if link.LinkToken == "" {
			link.LinkToken = linkToken
		}
		return &link, true, nil
	case http.StatusNotFound:
		c.logger.Info("Link not found", zap.String("link_token", logging.Mask(linkToken)))
		return nil, false, nil
	case http.StatusUnauthorized:
		c.logger.Error("Invalid Fintoc credentials while verifying link")
		return nil, false, providerError(opVerifyLink, status, body)
	default:
		c.logger.Error("Error verifying link", zap.Int("status", status), zap.String("body", truncate(body)))
		return nil, false, providerError(opVerifyLink, status, body)
	}
}

// do sends one authenticated request and returns the status and body.
// Only transport failures are returned as errors.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, payload any) (int, []byte, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, newError(KindInvalidInput, op, fmt.Errorf("failed to marshal request: %w", err))
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return 0, nil, newError(KindTransport, op, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.record(ctx, op, statusClassFailed)
		return 0, nil, newError(KindTransport, op, fmt.Errorf("failed to execute request: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		c.record(ctx, op, statusClassFailed)
		return resp.StatusCode, nil, newError(KindTransport, op, fmt.Errorf("failed to read response body: %w", err))
	}

	c.record(ctx, op, strconv.Itoa(resp.StatusCode))
	return resp.StatusCode, body, nil
}

func (c *Client) record(ctx context.Context, op, status string) {
	fintocRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("fintoc.operation", op),
		attribute.String("fintoc.status", status),
	))
}

// decodeAccounts accepts either a bare JSON array or an object wrapping the
// array under "accounts" or "data".
func decodeAccounts(body []byte) ([]Account, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []Account{}, nil
	}

	if trimmed[0] == '[' {
		var accounts []Account
		if err := json.Unmarshal(trimmed, &accounts); err != nil {
			return nil, fmt.Errorf("failed to unmarshal accounts: %w", err)
		}
		if accounts == nil {
			accounts = []Account{}
		}
		return accounts, nil
	}

	var envelope struct {
		Accounts []Account `json:"accounts"`
		Data     []Account `json:"data"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, fmt.Errorf("failed to unmarshal accounts: %w", err)
	}
	switch {
	case envelope.Accounts != nil:
		return envelope.Accounts, nil
	case envelope.Data != nil:
		return envelope.Data, nil
	default:
		return []Account{}, nil
	}
}

func isCountryCode(s string) bool {
	if len(s) != 2 {
		return false
	}
	for _, r := range s {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}
