package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/folioapp/folio/internal/common"
)

// registerRoutes sets up all REST API routes on the mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	// System
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/version", s.handleVersion)
	mux.HandleFunc("/api/config", s.handleConfig)
	mux.HandleFunc("/api/shutdown", s.handleShutdown)

	// Auth
	mux.HandleFunc("/api/auth/register", s.handleAuthRegister)
	mux.HandleFunc("/api/auth/login", s.handleAuthLogin)
	mux.HandleFunc("/api/auth/oauth", s.handleAuthOAuth)
	mux.HandleFunc("/api/auth/validate", s.handleAuthValidate)

	// Users
	mux.HandleFunc("/api/users/me", s.handleUserMe)
	mux.HandleFunc("/api/users/check/", s.handleUsernameCheck)
	mux.HandleFunc("/api/users/", s.routeUsers)

	// Portfolios
	mux.HandleFunc("/api/portfolios/", s.routePortfolios)
	mux.HandleFunc("/api/portfolios", s.handlePortfolioRoot)

	// Market data
	mux.HandleFunc("/api/market/snapshot/", s.handleMarketSnapshot)
	mux.HandleFunc("/api/market/compare", s.handleMarketCompare)
	mux.HandleFunc("/api/market/analytics", s.handleMarketAnalytics)
}

// routePortfolios dispatches /api/portfolios/{id}/* to the appropriate handler.
func (s *Server) routePortfolios(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/portfolios/")
	if path == "" {
		s.handlePortfolioRoot(w, r)
		return
	}

	parts := strings.SplitN(path, "/", 2)
	id := parts[0]
	subpath := ""
	if len(parts) > 1 {
		subpath = parts[1]
	}

	switch subpath {
	case "":
		s.handlePortfolioByID(w, r, id)
	case "actions":
		s.handlePortfolioAction(w, r, id)
	case "favourite":
		s.handlePortfolioFavourite(w, r, id)
	case "chart":
		s.handlePortfolioChart(w, r, id)
	default:
		WriteError(w, http.StatusNotFound, "Not found")
	}
}

// --- System handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"version": common.GetVersion(),
		"build":   common.GetBuild(),
		"commit":  common.GetGitCommit(),
	})
}

// handleConfig handles GET /api/config — the effective runtime configuration
// with secrets masked.
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	cfg := s.app.Config
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"environment": cfg.Environment,
		"server": map[string]interface{}{
			"host": cfg.Server.Host,
			"port": cfg.Server.Port,
		},
		"storage": map[string]interface{}{
			"address":   cfg.Storage.Address,
			"namespace": cfg.Storage.Namespace,
			"database":  cfg.Storage.Database,
		},
		"marketdata": map[string]interface{}{
			"base_url":    cfg.Clients.MarketData.BaseURL,
			"api_key_set": cfg.Clients.MarketData.APIKey != "",
			"api_key":     maskSecret(cfg.Clients.MarketData.APIKey),
			"rate_limit":  cfg.Clients.MarketData.RateLimit,
		},
		"auth": map[string]interface{}{
			"token_expiry":        cfg.Auth.TokenExpiry,
			"google_configured":   cfg.Auth.Google.ClientID != "",
			"facebook_configured": cfg.Auth.Facebook.ClientID != "",
		},
		"logging": map[string]interface{}{
			"level":  cfg.Logging.Level,
			"format": cfg.Logging.Format,
		},
	})
}

// maskSecret returns "****" + last 4 chars, or "" if empty.
func maskSecret(v string) string {
	if v == "" {
		return ""
	}
	if len(v) <= 4 {
		return "****"
	}
	return "****" + v[len(v)-4:]
}

// handleShutdown handles POST /api/shutdown (dev mode only).
func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	if s.app.Config.IsProduction() {
		WriteError(w, http.StatusForbidden, "Shutdown endpoint disabled in production")
		return
	}

	s.logger.Info().Msg("Shutdown requested via HTTP endpoint")

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Shutting down gracefully...\n"))

	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}

	if s.shutdownChan != nil {
		go func() {
			time.Sleep(100 * time.Millisecond)
			s.shutdownChan <- struct{}{}
		}()
	}
}
