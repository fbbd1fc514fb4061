package http

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"bancolink/internal/domain/banklink"
	"bancolink/internal/infrastructure/session"
	"bancolink/internal/shared/httpjson"
	"bancolink/internal/web"
)

// PageData is the root value of every page template.
type PageData struct {
	Title     string
	Identity  *session.Identity
	Flashes   []session.Flash
	Dashboard *banklink.DashboardView
	Connect   *banklink.ConnectInfo
}

type PageHandler struct {
	renderer *web.Renderer
	bank     *banklink.Service
	sessions *session.Manager
	logger   *zap.Logger
}

func NewPageHandler(renderer *web.Renderer, bank *banklink.Service, sessions *session.Manager, logger *zap.Logger) *PageHandler {
	return &PageHandler{
		renderer: renderer,
		bank:     bank,
		sessions: sessions,
		logger:   logger,
	}
}

// HandleHealth returns a simple health check response.
func HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func (h *PageHandler) HandleHome(w http.ResponseWriter, r *http.Request) {
	s := currentSession(h.sessions, r)
	h.render(w, r, s, http.StatusOK, web.PageIndex, PageData{Title: "Home"})
}

func (h *PageHandler) HandleAbout(w http.ResponseWriter, r *http.Request) {
	s := currentSession(h.sessions, r)
	h.render(w, r, s, http.StatusOK, web.PageAbout, PageData{Title: "About"})
}

// HandleDashboard shows identity, link state and a live summary.
func (h *PageHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	s := currentSession(h.sessions, r)
	view := h.bank.Dashboard(r.Context(), &s.Data)
	h.render(w, r, s, http.StatusOK, web.PageDashboard, PageData{Title: "Dashboard", Dashboard: view})
}

type connectQuery struct {
	Country string `json:"country" validate:"omitempty,country"`
}

// HandleConnect creates a link intent and serves the widget bootstrap page.
// Failures go back to the dashboard with a warning.
func (h *PageHandler) HandleConnect(w http.ResponseWriter, r *http.Request) {
	s := currentSession(h.sessions, r)

	q := connectQuery{Country: strings.ToLower(r.URL.Query().Get("country"))}
	if err := httpjson.Validate(&q); err != nil {
		s.AddFlash(banklink.FlashWarning, err.Error())
		h.redirect(w, r, s, "/dashboard")
		return
	}

	info, err := h.bank.StartConnect(r.Context(), &s.Data, q.Country)
	if err != nil {
		h.redirect(w, r, s, "/dashboard")
		return
	}

	h.render(w, r, s, http.StatusOK, web.PageConnect, PageData{Title: "Connect bank", Connect: info})
}

// HandleNotFound answers JSON under /api/ and the 404 page elsewhere.
func (h *PageHandler) HandleNotFound(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		httpjson.Error(w, http.StatusNotFound, "Not found")
		return
	}
	s := currentSession(h.sessions, r)
	h.render(w, r, s, http.StatusNotFound, web.PageNotFound, PageData{Title: "Page Not Found"})
}

// render drains the session's flashes into data and saves the session when
// anything in it may have changed.
func (h *PageHandler) render(w http.ResponseWriter, r *http.Request, s *session.Session, status int, page string, data PageData) {
	data.Identity = s.Identity
	data.Flashes = s.PopFlashes()

	if !s.IsNew() || s.LoggedIn() || len(data.Flashes) > 0 || data.Connect != nil {
		if !saveSession(h.sessions, h.logger, w, r, s) {
			return
		}
	}

	if err := h.renderer.Render(w, status, page, data); err != nil {
		h.logger.Error("Failed to render page", zap.String("page", page), zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (h *PageHandler) redirect(w http.ResponseWriter, r *http.Request, s *session.Session, to string) {
	if saveSession(h.sessions, h.logger, w, r, s) {
		http.Redirect(w, r, to, http.StatusFound)
	}
}
