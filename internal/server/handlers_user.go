package server

import (
	"net/http"
	"strings"

	"github.com/folioapp/folio/internal/common"
)

// handleUserMe handles GET /api/users/me — the authenticated user's profile.
func (s *Server) handleUserMe(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	session := requireSession(w, r)
	if session == nil {
		return
	}

	user, err := s.app.Storage.UserStore().GetUser(r.Context(), session.Username)
	if err != nil {
		WriteAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, userResponse(user))
}

// handleUsernameCheck handles GET /api/users/check/{username} — report
// whether a handle is taken.
func (s *Server) handleUsernameCheck(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	username := strings.TrimPrefix(r.URL.Path, "/api/users/check/")
	if username == "" || strings.Contains(username, "/") {
		WriteError(w, http.StatusBadRequest, "username is required in path")
		return
	}

	exists, err := s.app.Storage.UserStore().UsernameExists(r.Context(), username)
	if err != nil {
		WriteAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"username":  username,
		"available": !exists,
	})
}

// routeUsers dispatches GET/PUT/DELETE for /api/users/{username}. Users may
// only act on their own account; admins on any.
func (s *Server) routeUsers(w http.ResponseWriter, r *http.Request) {
	username := strings.TrimPrefix(r.URL.Path, "/api/users/")
	if username == "" || strings.Contains(username, "/") {
		WriteError(w, http.StatusBadRequest, "username is required in path")
		return
	}

	session := requireSession(w, r)
	if session == nil {
		return
	}
	if session.Username != username && !common.IsAdmin(r.Context()) {
		WriteError(w, http.StatusForbidden, "account belongs to another user")
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.handleUserGet(w, r, username)
	case http.MethodPut:
		s.handleUserUpdate(w, r, username)
	case http.MethodDelete:
		s.handleUserDelete(w, r, username)
	default:
		RequireMethod(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

// handleUserGet handles GET /api/users/{username}.
func (s *Server) handleUserGet(w http.ResponseWriter, r *http.Request, username string) {
	user, err := s.app.Storage.UserStore().GetUser(r.Context(), username)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, userResponse(user))
}

// handleUserUpdate handles PUT /api/users/{username} — partial profile update.
func (s *Server) handleUserUpdate(w http.ResponseWriter, r *http.Request, username string) {
	var req struct {
		FirstName *string `json:"first_name"`
		LastName  *string `json:"last_name"`
		Email     *string `json:"email"`
		Password  *string `json:"password"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}

	user, err := s.app.AccountService.UpdateProfile(r.Context(), username, req.FirstName, req.LastName, req.Email, req.Password)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, userResponse(user))
}

// handleUserDelete handles DELETE /api/users/{username}. The user's
// portfolios are deleted with the account.
func (s *Server) handleUserDelete(w http.ResponseWriter, r *http.Request, username string) {
	ctx := r.Context()

	if _, err := s.app.Storage.UserStore().GetUser(ctx, username); err != nil {
		WriteAppError(w, err)
		return
	}

	portfolios, err := s.app.PortfolioService.ListPortfolios(ctx, username)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	for _, p := range portfolios {
		if err := s.app.PortfolioService.DeletePortfolio(ctx, p.ID); err != nil {
			s.logger.Warn().Err(err).Str("portfolio_id", p.ID).Msg("Failed to delete portfolio during account removal")
		}
	}

	if err := s.app.Storage.UserStore().DeleteUser(ctx, username); err != nil {
		WriteAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
