package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/folioapp/folio/internal/app"
	"github.com/folioapp/folio/internal/apperrors"
	"github.com/folioapp/folio/internal/common"
	"github.com/folioapp/folio/internal/interfaces"
	"github.com/folioapp/folio/internal/models"
	"github.com/folioapp/folio/internal/services/account"
	"github.com/folioapp/folio/internal/services/portfolio"
)

// --- in-memory storage backing the end-to-end handler tests ---

type memUserStore struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func (m *memUserStore) GetUser(_ context.Context, username string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[username]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", username, apperrors.ErrNotFound)
	}
	return u, nil
}

func (m *memUserStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, fmt.Errorf("user with email %s: %w", email, apperrors.ErrNotFound)
}

func (m *memUserStore) SaveUser(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.Username] = user
	return nil
}

func (m *memUserStore) DeleteUser(_ context.Context, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, username)
	return nil
}

func (m *memUserStore) UsernameExists(_ context.Context, username string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.users[username]
	return ok, nil
}

func (m *memUserStore) ListUsernames(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var names []string
	for name := range m.users {
		names = append(names, name)
	}
	return names, nil
}

type memPortfolioStore struct {
	mu         sync.Mutex
	portfolios map[string]*models.Portfolio
}

func (m *memPortfolioStore) Get(_ context.Context, id string) (*models.Portfolio, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.portfolios[id]
	if !ok {
		return nil, fmt.Errorf("portfolio %s: %w", id, apperrors.ErrNotFound)
	}
	return p.Clone(), nil
}

func (m *memPortfolioStore) Create(_ context.Context, p *models.Portfolio) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.portfolios[p.ID]; ok {
		return fmt.Errorf("portfolio %s already exists: %w", p.ID, apperrors.ErrConflict)
	}
	m.portfolios[p.ID] = p.Clone()
	return nil
}

func (m *memPortfolioStore) Save(_ context.Context, p *models.Portfolio, expectedVersion int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.portfolios[p.ID]
	if !ok {
		return fmt.Errorf("portfolio %s: %w", p.ID, apperrors.ErrNotFound)
	}
	if existing.Version != expectedVersion {
		return fmt.Errorf("portfolio %s version %d: %w", p.ID, expectedVersion, apperrors.ErrConflict)
	}
	stored := p.Clone()
	stored.Version = expectedVersion + 1
	m.portfolios[p.ID] = stored
	p.Version = stored.Version
	return nil
}

func (m *memPortfolioStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.portfolios, id)
	return nil
}

func (m *memPortfolioStore) ListByUser(_ context.Context, userID string) ([]*models.Portfolio, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*models.Portfolio
	for _, p := range m.portfolios {
		if p.UserID == userID {
			result = append(result, p.Clone())
		}
	}
	return result, nil
}

type memFileStore struct {
	mu    sync.Mutex
	files map[string][]byte
}

func (m *memFileStore) SaveFile(_ context.Context, category, key string, data []byte, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[category+"/"+key] = data
	return nil
}

func (m *memFileStore) GetFile(_ context.Context, category, key string) ([]byte, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[category+"/"+key]
	if !ok {
		return nil, "", fmt.Errorf("file %s/%s: %w", category, key, apperrors.ErrNotFound)
	}
	return data, "image/png", nil
}

func (m *memFileStore) DeleteFile(_ context.Context, category, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, category+"/"+key)
	return nil
}

func (m *memFileStore) HasFile(_ context.Context, category, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[category+"/"+key]
	return ok, nil
}

type memStorageManager struct {
	users      *memUserStore
	portfolios *memPortfolioStore
	files      *memFileStore
}

func newMemStorageManager() *memStorageManager {
	return &memStorageManager{
		users:      &memUserStore{users: make(map[string]*models.User)},
		portfolios: &memPortfolioStore{portfolios: make(map[string]*models.Portfolio)},
		files:      &memFileStore{files: make(map[string][]byte)},
	}
}

func (m *memStorageManager) UserStore() interfaces.UserStore           { return m.users }
func (m *memStorageManager) PortfolioStore() interfaces.PortfolioStore { return m.portfolios }
func (m *memStorageManager) FileStore() interfaces.FileStore           { return m.files }
func (m *memStorageManager) Close() error                              { return nil }

type mockMarketClient struct {
	snapshots map[string]*models.Snapshot
	series    []models.ComparisonSeries
	fail      error
}

func (m *mockMarketClient) Snapshot(_ context.Context, symbol string) (*models.Snapshot, error) {
	if m.fail != nil {
		return nil, m.fail
	}
	s, ok := m.snapshots[symbol]
	if !ok {
		return nil, fmt.Errorf("snapshot %s: %w", symbol, apperrors.ErrNotFound)
	}
	return s, nil
}

func (m *mockMarketClient) Compare(_ context.Context, _ []string) ([]models.ComparisonSeries, error) {
	if m.fail != nil {
		return nil, m.fail
	}
	return m.series, nil
}

func (m *mockMarketClient) Analytics(_ context.Context, _ []string) (*models.Analytics, error) {
	if m.fail != nil {
		return nil, m.fail
	}
	return &models.Analytics{}, nil
}

// --- test harness ---

type testEnv struct {
	server  *Server
	storage *memStorageManager
	market  *mockMarketClient
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := common.NewDefaultConfig()
	cfg.Auth.JWTSecret = "test-secret"

	logger := common.NewSilentLogger()
	storage := newMemStorageManager()
	market := &mockMarketClient{snapshots: make(map[string]*models.Snapshot)}

	a := &app.App{
		Config:           cfg,
		Logger:           logger,
		Storage:          storage,
		MarketClient:     market,
		PortfolioService: portfolio.NewService(storage, market, logger),
		AccountService:   account.NewService(storage, &cfg.Auth, logger),
	}

	return &testEnv{
		server:  NewServer(a),
		storage: storage,
		market:  market,
	}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

// register creates a user via the API and returns the bearer token.
func (e *testEnv) register(t *testing.T, firstName, lastName, email string) string {
	t.Helper()

	rec := e.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"first_name": firstName,
		"last_name":  lastName,
		"email":      email,
		"password":   "s3cret-pass",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	decodeBody(t, rec, &resp)
	require.NotEmpty(t, resp.Data.Token)
	return resp.Data.Token
}

func (e *testEnv) createPortfolio(t *testing.T, token string, initialCash float64) *models.Portfolio {
	t.Helper()

	rec := e.do(t, http.MethodPost, "/api/portfolios", token, map[string]interface{}{
		"title":        "Growth",
		"initial_cash": initialCash,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var p models.Portfolio
	decodeBody(t, rec, &p)
	return &p
}

// --- tests ---

func TestHealthEndpoint(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(t, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}

func TestRegisterLoginValidate(t *testing.T) {
	e := newTestEnv(t)
	token := e.register(t, "John", "Doe", "jd@example.com")

	// Validate the registration token
	rec := e.do(t, http.MethodPost, "/api/auth/validate", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "jdoe")

	// Login with the same credentials
	rec = e.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"login":    "jd@example.com",
		"password": "s3cret-pass",
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	// Wrong password
	rec = e.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"login":    "jd@example.com",
		"password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegisterDuplicateEmailConflict(t *testing.T) {
	e := newTestEnv(t)
	e.register(t, "John", "Doe", "jd@example.com")

	rec := e.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"first_name": "Jane",
		"last_name":  "Doe",
		"email":      "jd@example.com",
		"password":   "other-pass-1",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestInvalidBearerTokenRejected(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(t, http.MethodGet, "/api/portfolios", "garbage-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPortfolioLifecycle(t *testing.T) {
	e := newTestEnv(t)
	token := e.register(t, "John", "Doe", "jd@example.com")

	// Unauthenticated create is rejected
	rec := e.do(t, http.MethodPost, "/api/portfolios", "", map[string]interface{}{
		"title": "Growth", "initial_cash": 1000,
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	p := e.createPortfolio(t, token, 1000)
	assert.Equal(t, "jdoe", p.UserID)
	assert.Equal(t, 1000.0, p.Cash)

	// List
	rec = e.do(t, http.MethodGet, "/api/portfolios", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listed []*models.Portfolio
	decodeBody(t, rec, &listed)
	require.Len(t, listed, 1)

	// Get
	rec = e.do(t, http.MethodGet, "/api/portfolios/"+p.ID, token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Delete
	rec = e.do(t, http.MethodDelete, "/api/portfolios/"+p.ID, token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodGet, "/api/portfolios/"+p.ID, token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPortfolioActionFlow(t *testing.T) {
	e := newTestEnv(t)
	token := e.register(t, "John", "Doe", "jd@example.com")
	p := e.createPortfolio(t, token, 1000)

	// Buy
	rec := e.do(t, http.MethodPost, "/api/portfolios/"+p.ID+"/actions", token, map[string]interface{}{
		"ticker": "AAPL", "shares": 5, "price": 100,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var updated models.Portfolio
	decodeBody(t, rec, &updated)
	assert.Equal(t, 500.0, updated.Cash)
	assert.Equal(t, 5.0, updated.Shares["AAPL"])

	// Overspend is rejected as unprocessable
	rec = e.do(t, http.MethodPost, "/api/portfolios/"+p.ID+"/actions", token, map[string]interface{}{
		"ticker": "AAPL", "shares": 100, "price": 100,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	// Oversell likewise
	rec = e.do(t, http.MethodPost, "/api/portfolios/"+p.ID+"/actions", token, map[string]interface{}{
		"ticker": "AAPL", "shares": -10, "price": 100,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	// Bad input is a validation error
	rec = e.do(t, http.MethodPost, "/api/portfolios/"+p.ID+"/actions", token, map[string]interface{}{
		"ticker": "", "shares": 1, "price": 100,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPortfolioOwnershipEnforced(t *testing.T) {
	e := newTestEnv(t)
	ownerToken := e.register(t, "John", "Doe", "jd@example.com")
	otherToken := e.register(t, "Jane", "Smith", "js@example.com")
	p := e.createPortfolio(t, ownerToken, 1000)

	rec := e.do(t, http.MethodPost, "/api/portfolios/"+p.ID+"/actions", otherToken, map[string]interface{}{
		"ticker": "AAPL", "shares": 1, "price": 100,
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = e.do(t, http.MethodDelete, "/api/portfolios/"+p.ID, otherToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestPortfolioFavourite(t *testing.T) {
	e := newTestEnv(t)
	ownerToken := e.register(t, "John", "Doe", "jd@example.com")
	otherToken := e.register(t, "Jane", "Smith", "js@example.com")
	p := e.createPortfolio(t, ownerToken, 1000)

	// Another user can favourite a portfolio they don't own
	rec := e.do(t, http.MethodPost, "/api/portfolios/"+p.ID+"/favourite", otherToken, map[string]interface{}{
		"delta": 1,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var updated models.Portfolio
	decodeBody(t, rec, &updated)
	assert.Equal(t, 1, updated.Favourites)
}

func TestPortfolioChart(t *testing.T) {
	e := newTestEnv(t)
	token := e.register(t, "John", "Doe", "jd@example.com")
	p := e.createPortfolio(t, token, 1000)

	e.market.series = []models.ComparisonSeries{}

	rec := e.do(t, http.MethodGet, "/api/portfolios/"+p.ID+"/chart", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Body.Bytes())
}

func TestUsernameCheck(t *testing.T) {
	e := newTestEnv(t)
	e.register(t, "John", "Doe", "jd@example.com")

	rec := e.do(t, http.MethodGet, "/api/users/check/jdoe", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"available":false`)

	rec = e.do(t, http.MethodGet, "/api/users/check/free", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"available":true`)
}

func TestUserMe(t *testing.T) {
	e := newTestEnv(t)
	token := e.register(t, "John", "Doe", "jd@example.com")

	rec := e.do(t, http.MethodGet, "/api/users/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "jd@example.com")

	rec = e.do(t, http.MethodGet, "/api/users/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUserProfileUpdate(t *testing.T) {
	e := newTestEnv(t)
	token := e.register(t, "John", "Doe", "jd@example.com")

	rec := e.do(t, http.MethodPut, "/api/users/jdoe", token, map[string]string{
		"first_name": "Jonathan",
		"password":   "new-pass-123",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "Jonathan")

	// Old password no longer works, new one does
	rec = e.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"login": "jdoe", "password": "s3cret-pass",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"login": "jdoe", "password": "new-pass-123",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUserCrossAccountForbidden(t *testing.T) {
	e := newTestEnv(t)
	e.register(t, "John", "Doe", "jd@example.com")
	otherToken := e.register(t, "Jane", "Smith", "js@example.com")

	rec := e.do(t, http.MethodGet, "/api/users/jdoe", otherToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = e.do(t, http.MethodPut, "/api/users/jdoe", otherToken, map[string]string{
		"first_name": "Hacked",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = e.do(t, http.MethodDelete, "/api/users/jdoe", otherToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestUserDeleteRemovesPortfolios(t *testing.T) {
	e := newTestEnv(t)
	token := e.register(t, "John", "Doe", "jd@example.com")
	p := e.createPortfolio(t, token, 1000)

	rec := e.do(t, http.MethodDelete, "/api/users/jdoe", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	_, err := e.storage.portfolios.Get(context.Background(), p.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	rec = e.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"login": "jdoe", "password": "s3cret-pass",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestConfigEndpointMasksSecrets(t *testing.T) {
	e := newTestEnv(t)
	e.server.app.Config.Clients.MarketData.APIKey = "super-secret-key-9876"

	rec := e.do(t, http.MethodGet, "/api/config", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "****9876")
	assert.NotContains(t, rec.Body.String(), "super-secret-key-9876")
	assert.NotContains(t, rec.Body.String(), "test-secret")
}

func TestMarketSnapshotProxy(t *testing.T) {
	e := newTestEnv(t)
	e.market.snapshots["AAPL"] = &models.Snapshot{Symbol: "AAPL", Price: 187.44}

	rec := e.do(t, http.MethodGet, "/api/market/snapshot/AAPL", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "187.44")

	rec = e.do(t, http.MethodGet, "/api/market/snapshot/NOPE", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMarketUpstreamUnavailableMapsTo502(t *testing.T) {
	e := newTestEnv(t)
	e.market.fail = fmt.Errorf("%w: endpoint down", apperrors.ErrUpstreamUnavailable)

	rec := e.do(t, http.MethodGet, "/api/market/compare?symbols=AAPL", "", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}
