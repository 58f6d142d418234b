package server

import (
	"net/http"

	"github.com/folioapp/folio/internal/common"
	"github.com/folioapp/folio/internal/models"
)

// handlePortfolioRoot handles /api/portfolios — list (GET) and create (POST).
func (s *Server) handlePortfolioRoot(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handlePortfolioList(w, r)
	case http.MethodPost:
		s.handlePortfolioCreate(w, r)
	default:
		RequireMethod(w, r, http.MethodGet, http.MethodPost)
	}
}

// handlePortfolioList returns the authenticated user's portfolios.
func (s *Server) handlePortfolioList(w http.ResponseWriter, r *http.Request) {
	session := requireSession(w, r)
	if session == nil {
		return
	}

	portfolios, err := s.app.PortfolioService.ListPortfolios(r.Context(), session.Username)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	if portfolios == nil {
		portfolios = []*models.Portfolio{}
	}
	WriteJSON(w, http.StatusOK, portfolios)
}

// handlePortfolioCreate creates a portfolio for the authenticated user.
func (s *Server) handlePortfolioCreate(w http.ResponseWriter, r *http.Request) {
	session := requireSession(w, r)
	if session == nil {
		return
	}

	var req struct {
		Title       string  `json:"title"`
		Description string  `json:"description"`
		Tags        []int   `json:"tags"`
		InitialCash float64 `json:"initial_cash"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}

	p, err := s.app.PortfolioService.CreatePortfolio(r.Context(), session.Username, req.Title, req.Description, req.Tags, req.InitialCash)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, p)
}

// handlePortfolioByID handles /api/portfolios/{id} — get (GET) and delete (DELETE).
func (s *Server) handlePortfolioByID(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		p := s.ownedPortfolio(w, r, id)
		if p == nil {
			return
		}
		WriteJSON(w, http.StatusOK, p)
	case http.MethodDelete:
		if s.ownedPortfolio(w, r, id) == nil {
			return
		}
		if err := s.app.PortfolioService.DeletePortfolio(r.Context(), id); err != nil {
			WriteAppError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		RequireMethod(w, r, http.MethodGet, http.MethodDelete)
	}
}

// handlePortfolioAction handles POST /api/portfolios/{id}/actions — apply a
// buy or sell.
func (s *Server) handlePortfolioAction(w http.ResponseWriter, r *http.Request, id string) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	if s.ownedPortfolio(w, r, id) == nil {
		return
	}

	var req struct {
		Ticker string  `json:"ticker"`
		Shares float64 `json:"shares"` // positive = buy, negative = sell
		Price  float64 `json:"price"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}

	p, err := s.app.PortfolioService.ApplyAction(r.Context(), id, req.Ticker, req.Shares, req.Price)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, p)
}

// handlePortfolioFavourite handles POST /api/portfolios/{id}/favourite —
// adjust the favourites counter. Any signed-in user may favourite any
// portfolio.
func (s *Server) handlePortfolioFavourite(w http.ResponseWriter, r *http.Request, id string) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	if requireSession(w, r) == nil {
		return
	}

	var req struct {
		Delta int `json:"delta"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}
	if req.Delta == 0 {
		req.Delta = 1
	}

	p, err := s.app.PortfolioService.IncrementFavourites(r.Context(), id, req.Delta)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, p)
}

// handlePortfolioChart handles GET /api/portfolios/{id}/chart — the
// portfolio history chart as PNG.
func (s *Server) handlePortfolioChart(w http.ResponseWriter, r *http.Request, id string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	if s.ownedPortfolio(w, r, id) == nil {
		return
	}

	png, err := s.app.PortfolioService.RenderChart(r.Context(), id)
	if err != nil {
		WriteAppError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

// ownedPortfolio loads the portfolio and enforces that the session user owns
// it (admins are exempt). Writes the error response and returns nil on any
// failure.
func (s *Server) ownedPortfolio(w http.ResponseWriter, r *http.Request, id string) *models.Portfolio {
	session := requireSession(w, r)
	if session == nil {
		return nil
	}

	p, err := s.app.PortfolioService.GetPortfolio(r.Context(), id)
	if err != nil {
		WriteAppError(w, err)
		return nil
	}

	if p.UserID != session.Username && !common.IsAdmin(r.Context()) {
		WriteError(w, http.StatusForbidden, "portfolio belongs to another user")
		return nil
	}
	return p
}
