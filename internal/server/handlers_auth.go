package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/folioapp/folio/internal/common"
	"github.com/folioapp/folio/internal/models"
)

// --- JWT helpers ---

// signJWT creates a signed HMAC-SHA256 JWT for the given user and provider.
func signJWT(user *models.User, provider string, config *common.AuthConfig) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":      user.Username,
		"email":    user.Email,
		"name":     strings.TrimSpace(user.FirstName + " " + user.LastName),
		"provider": provider,
		"iss":      "folio-server",
		"iat":      now.Unix(),
		"exp":      now.Add(config.GetTokenExpiry()).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(config.JWTSecret))
}

// validateJWT parses and validates a JWT token string using the given secret.
func validateJWT(tokenString string, secret []byte) (*jwt.Token, jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, nil, err
	}
	return token, claims, nil
}

// userResponse builds the user payload returned by auth endpoints.
func userResponse(user *models.User) map[string]interface{} {
	return map[string]interface{}{
		"username":   user.Username,
		"email":      user.Email,
		"first_name": user.FirstName,
		"last_name":  user.LastName,
		"provider":   user.Provider,
		"role":       user.Role,
	}
}

// writeTokenResponse signs a JWT for user and writes the standard auth payload.
func (s *Server) writeTokenResponse(w http.ResponseWriter, user *models.User, provider string) {
	token, err := signJWT(user, provider, &s.app.Config.Auth)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to sign JWT")
		WriteError(w, http.StatusInternalServerError, "failed to sign token")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"data": map[string]interface{}{
			"token": token,
			"user":  userResponse(user),
		},
	})
}

// --- Password auth ---

// handleAuthRegister handles POST /api/auth/register.
func (s *Server) handleAuthRegister(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req struct {
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Email     string `json:"email"`
		Password  string `json:"password"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}

	user, err := s.app.AccountService.Register(r.Context(), req.FirstName, req.LastName, req.Email, req.Password)
	if err != nil {
		WriteAppError(w, err)
		return
	}

	s.writeTokenResponse(w, user, "email")
}

// handleAuthLogin handles POST /api/auth/login.
func (s *Server) handleAuthLogin(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req struct {
		Login    string `json:"login"` // username or email
		Password string `json:"password"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}

	user, err := s.app.AccountService.Authenticate(r.Context(), req.Login, req.Password)
	if err != nil {
		WriteAppError(w, err)
		return
	}

	s.writeTokenResponse(w, user, "email")
}

// --- OAuth ---

// handleAuthOAuth handles POST /api/auth/oauth — exchange provider code for JWT.
func (s *Server) handleAuthOAuth(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req struct {
		Provider string `json:"provider"`
		Code     string `json:"code"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}

	switch req.Provider {
	case "dev":
		if s.app.Config.IsProduction() {
			WriteError(w, http.StatusForbidden, "dev provider is not available in production")
			return
		}
		user, err := s.app.AccountService.FindOrCreateOAuthUser(r.Context(), "dev@folio.local", "Dev", "User", "dev")
		if err != nil {
			WriteAppError(w, err)
			return
		}
		s.writeTokenResponse(w, user, "dev")

	case "google":
		s.handleGoogleCodeExchange(w, r, req.Code)

	case "facebook":
		s.handleFacebookCodeExchange(w, r, req.Code)

	default:
		WriteError(w, http.StatusBadRequest, fmt.Sprintf("unsupported provider: %s", req.Provider))
	}
}

// handleGoogleCodeExchange exchanges a Google auth code for user info and returns a JWT.
func (s *Server) handleGoogleCodeExchange(w http.ResponseWriter, r *http.Request, code string) {
	cfg := s.app.Config.Auth.Google
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		WriteError(w, http.StatusInternalServerError, "Google OAuth not configured")
		return
	}

	tokenResp, err := http.PostForm("https://oauth2.googleapis.com/token", url.Values{
		"code":          {code},
		"client_id":     {cfg.ClientID},
		"client_secret": {cfg.ClientSecret},
		"redirect_uri":  {s.oauthRedirectURI(r, "google")},
		"grant_type":    {"authorization_code"},
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("Google token exchange failed")
		WriteError(w, http.StatusBadGateway, "failed to exchange code with Google")
		return
	}
	defer tokenResp.Body.Close()

	var tokenData struct {
		AccessToken string `json:"access_token"`
		Error       string `json:"error"`
	}
	if err := json.NewDecoder(tokenResp.Body).Decode(&tokenData); err != nil || tokenData.AccessToken == "" {
		errMsg := "failed to get access token from Google"
		if tokenData.Error != "" {
			errMsg = "Google error: " + tokenData.Error
		}
		WriteError(w, http.StatusBadGateway, errMsg)
		return
	}

	infoReq, _ := http.NewRequestWithContext(r.Context(), http.MethodGet, "https://www.googleapis.com/oauth2/v2/userinfo", nil)
	infoReq.Header.Set("Authorization", "Bearer "+tokenData.AccessToken)
	infoResp, err := http.DefaultClient.Do(infoReq)
	if err != nil {
		s.logger.Error().Err(err).Msg("Google userinfo request failed")
		WriteError(w, http.StatusBadGateway, "failed to get user info from Google")
		return
	}
	defer infoResp.Body.Close()

	var userInfo struct {
		Email      string `json:"email"`
		GivenName  string `json:"given_name"`
		FamilyName string `json:"family_name"`
	}
	if err := json.NewDecoder(infoResp.Body).Decode(&userInfo); err != nil {
		WriteError(w, http.StatusBadGateway, "failed to parse Google user info")
		return
	}

	user, err := s.app.AccountService.FindOrCreateOAuthUser(r.Context(), userInfo.Email, userInfo.GivenName, userInfo.FamilyName, "google")
	if err != nil {
		WriteAppError(w, err)
		return
	}

	s.writeTokenResponse(w, user, "google")
}

// handleFacebookCodeExchange exchanges a Facebook auth code for user info and returns a JWT.
func (s *Server) handleFacebookCodeExchange(w http.ResponseWriter, r *http.Request, code string) {
	cfg := s.app.Config.Auth.Facebook
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		WriteError(w, http.StatusInternalServerError, "Facebook OAuth not configured")
		return
	}

	exchangeURL := fmt.Sprintf(
		"https://graph.facebook.com/v18.0/oauth/access_token?client_id=%s&client_secret=%s&redirect_uri=%s&code=%s",
		url.QueryEscape(cfg.ClientID),
		url.QueryEscape(cfg.ClientSecret),
		url.QueryEscape(s.oauthRedirectURI(r, "facebook")),
		url.QueryEscape(code),
	)
	tokenReq, _ := http.NewRequestWithContext(r.Context(), http.MethodGet, exchangeURL, nil)
	tokenResp, err := http.DefaultClient.Do(tokenReq)
	if err != nil {
		s.logger.Error().Err(err).Msg("Facebook token exchange failed")
		WriteError(w, http.StatusBadGateway, "failed to exchange code with Facebook")
		return
	}
	defer tokenResp.Body.Close()

	var tokenData struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(tokenResp.Body).Decode(&tokenData); err != nil || tokenData.AccessToken == "" {
		WriteError(w, http.StatusBadGateway, "failed to get access token from Facebook")
		return
	}

	infoURL := "https://graph.facebook.com/me?fields=email,first_name,last_name&access_token=" + url.QueryEscape(tokenData.AccessToken)
	infoReq, _ := http.NewRequestWithContext(r.Context(), http.MethodGet, infoURL, nil)
	infoResp, err := http.DefaultClient.Do(infoReq)
	if err != nil {
		s.logger.Error().Err(err).Msg("Facebook profile request failed")
		WriteError(w, http.StatusBadGateway, "failed to get user info from Facebook")
		return
	}
	defer infoResp.Body.Close()

	var userInfo struct {
		Email     string `json:"email"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	}
	if err := json.NewDecoder(infoResp.Body).Decode(&userInfo); err != nil {
		WriteError(w, http.StatusBadGateway, "failed to parse Facebook user info")
		return
	}

	user, err := s.app.AccountService.FindOrCreateOAuthUser(r.Context(), userInfo.Email, userInfo.FirstName, userInfo.LastName, "facebook")
	if err != nil {
		WriteAppError(w, err)
		return
	}

	s.writeTokenResponse(w, user, "facebook")
}

// oauthRedirectURI builds the server-side redirect URI for OAuth callbacks.
func (s *Server) oauthRedirectURI(r *http.Request, provider string) string {
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/api/auth/callback/%s", scheme, r.Host, provider)
}

// --- Token validation ---

// handleAuthValidate handles POST /api/auth/validate — validate a JWT token.
func (s *Server) handleAuthValidate(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	authHeader := r.Header.Get("Authorization")
	if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
		WriteError(w, http.StatusUnauthorized, "missing or invalid Authorization header")
		return
	}
	tokenString := strings.TrimPrefix(authHeader, "Bearer ")

	_, claims, err := validateJWT(tokenString, []byte(s.app.Config.Auth.JWTSecret))
	if err != nil {
		WriteError(w, http.StatusUnauthorized, "invalid or expired token")
		return
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		WriteError(w, http.StatusUnauthorized, "invalid token claims")
		return
	}

	user, err := s.app.Storage.UserStore().GetUser(r.Context(), sub)
	if err != nil {
		WriteError(w, http.StatusUnauthorized, "invalid or expired token")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"data": map[string]interface{}{
			"user": userResponse(user),
		},
	})
}
