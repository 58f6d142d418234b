package server

import (
	"net/http"
	"strings"
)

// handleMarketSnapshot handles GET /api/market/snapshot/{symbol}.
func (s *Server) handleMarketSnapshot(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	symbol := strings.TrimPrefix(r.URL.Path, "/api/market/snapshot/")
	if symbol == "" || strings.Contains(symbol, "/") {
		WriteError(w, http.StatusBadRequest, "symbol is required in path")
		return
	}

	snap, err := s.app.MarketClient.Snapshot(r.Context(), symbol)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, snap)
}

// handleMarketCompare handles GET /api/market/compare?symbols=AAPL,BHP.
func (s *Server) handleMarketCompare(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	symbols := splitSymbolsParam(r.URL.Query().Get("symbols"))
	series, err := s.app.MarketClient.Compare(r.Context(), symbols)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, series)
}

// handleMarketAnalytics handles GET /api/market/analytics?symbols=AAPL,BHP.
func (s *Server) handleMarketAnalytics(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	symbols := splitSymbolsParam(r.URL.Query().Get("symbols"))
	analytics, err := s.app.MarketClient.Analytics(r.Context(), symbols)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, analytics)
}

func splitSymbolsParam(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
