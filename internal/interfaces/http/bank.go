package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"bancolink/internal/domain/banklink"
	"bancolink/internal/infrastructure/fintoc"
	"bancolink/internal/infrastructure/session"
	"bancolink/internal/shared/httpjson"
)

// BankHandler serves the JSON API used by the widget and dashboard.
type BankHandler struct {
	bank     *banklink.Service
	sessions *session.Manager
	logger   *zap.Logger
}

func NewBankHandler(bank *banklink.Service, sessions *session.Manager, logger *zap.Logger) *BankHandler {
	return &BankHandler{
		bank:     bank,
		sessions: sessions,
		logger:   logger,
	}
}

type ExchangeTokenRequest struct {
	ExchangeToken string `json:"exchange_token"`
}

type ExchangeTokenResponse struct {
	Success bool   `json:"success"`
	LinkID  string `json:"link_id,omitempty"`
	Error   string `json:"error,omitempty"`
}

type LinkCallbackRequest struct {
	LinkID  string `json:"link_id" validate:"required,max=200"`
	Country string `json:"country" validate:"omitempty,country"`
}

type LinkCallbackResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	LinkID  string `json:"link_id,omitempty"`
}

type AccountsResponse struct {
	Status   string           `json:"status"`
	Accounts []fintoc.Account `json:"accounts"`
	Count    int              `json:"count"`
}

type MovementsResponse struct {
	Status    string            `json:"status"`
	Movements []fintoc.Movement `json:"movements"`
	Count     int               `json:"count"`
	AccountID string            `json:"account_id"`
}

type movementsQuery struct {
	Limit int    `json:"limit" validate:"gte=0"`
	Since string `json:"since" validate:"omitempty,datetime=2006-01-02"`
	Until string `json:"until" validate:"omitempty,datetime=2006-01-02"`
}

// HandleExchangeToken finishes a widget session from its exchange token.
func (h *BankHandler) HandleExchangeToken(w http.ResponseWriter, r *http.Request) {
	s := currentSession(h.sessions, r)

	var req ExchangeTokenRequest
	if err := httpjson.Decode(r, &req, httpjson.DefaultMaxBodyBytes); err != nil && !errors.Is(err, httpjson.ErrEmptyBody) {
		httpjson.Write(w, http.StatusBadRequest, ExchangeTokenResponse{Error: "Invalid request body"})
		return
	}

	link, err := h.bank.CompleteExchange(r.Context(), &s.Data, req.ExchangeToken)
	if !saveSession(h.sessions, h.logger, w, r, s) {
		return
	}
	if err != nil {
		httpjson.Write(w, statusFor(err), ExchangeTokenResponse{Error: banklink.UserMessage(err)})
		return
	}

	httpjson.Write(w, http.StatusOK, ExchangeTokenResponse{Success: true, LinkID: link.ID})
}

// HandleLinkCallback accepts a link id reported by the widget.
func (h *BankHandler) HandleLinkCallback(w http.ResponseWriter, r *http.Request) {
	s := currentSession(h.sessions, r)

	var req LinkCallbackRequest
	if err := httpjson.Decode(r, &req, httpjson.DefaultMaxBodyBytes); err != nil {
		httpjson.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	link, err := h.bank.AcceptLinkID(r.Context(), &s.Data, req.LinkID, req.Country)
	if err != nil {
		httpjson.Error(w, statusFor(err), banklink.UserMessage(err))
		return
	}
	if !saveSession(h.sessions, h.logger, w, r, s) {
		return
	}

	httpjson.Write(w, http.StatusOK, LinkCallbackResponse{
		Status:  "success",
		Message: "Bank account linked successfully",
		LinkID:  link.ID,
	})
}

func (h *BankHandler) HandleAccounts(w http.ResponseWriter, r *http.Request) {
	s := currentSession(h.sessions, r)

	accounts, err := h.bank.Accounts(r.Context(), &s.Data)
	if err != nil {
		h.logError("accounts", err)
		httpjson.Error(w, statusFor(err), banklink.UserMessage(err))
		return
	}

	httpjson.Write(w, http.StatusOK, AccountsResponse{
		Status:   "success",
		Accounts: accounts,
		Count:    len(accounts),
	})
}

func (h *BankHandler) HandleMovements(w http.ResponseWriter, r *http.Request) {
	s := currentSession(h.sessions, r)
	accountID := chi.URLParam(r, "accountID")

	query := r.URL.Query()
	q := movementsQuery{Since: query.Get("since"), Until: query.Get("until")}
	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			httpjson.Error(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		q.Limit = limit
	}
	if err := httpjson.Validate(&q); err != nil {
		httpjson.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	opts := fintoc.MovementsOptions{Limit: q.Limit, Since: q.Since, Until: q.Until}
	movements, err := h.bank.Movements(r.Context(), &s.Data, accountID, opts)
	if err != nil {
		h.logError("movements", err)
		httpjson.Error(w, statusFor(err), banklink.UserMessage(err))
		return
	}

	httpjson.Write(w, http.StatusOK, MovementsResponse{
		Status:    "success",
		Movements: movements,
		Count:     len(movements),
		AccountID: accountID,
	})
}

func (h *BankHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	s := currentSession(h.sessions, r)

	summary, err := h.bank.Refresh(r.Context(), &s.Data)
	if !saveSession(h.sessions, h.logger, w, r, s) {
		return
	}
	if err != nil {
		h.logError("refresh", err)
		httpjson.Error(w, statusFor(err), banklink.UserMessage(err))
		return
	}

	httpjson.Success(w, fmt.Sprintf("Data refreshed successfully: %d account(s)", summary.AccountsCount))
}

func (h *BankHandler) HandleDisconnect(w http.ResponseWriter, r *http.Request) {
	s := currentSession(h.sessions, r)

	h.bank.Disconnect(&s.Data)
	if !saveSession(h.sessions, h.logger, w, r, s) {
		return
	}

	httpjson.Success(w, "Bank account disconnected")
}

func (h *BankHandler) logError(op string, err error) {
	if banklink.IsClientError(err) {
		return
	}
	h.logger.Error("Bank API request failed", zap.String("op", op), zap.Error(err))
}

// statusFor maps workflow errors to HTTP statuses. Provider and transport
// failures are reported as 502.
func statusFor(err error) int {
	switch {
	case errors.Is(err, banklink.ErrNotConfigured):
		return http.StatusInternalServerError
	case errors.Is(err, banklink.ErrLinkNotFound), errors.Is(err, banklink.ErrAccountNotFound):
		return http.StatusNotFound
	case banklink.IsClientError(err):
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}
