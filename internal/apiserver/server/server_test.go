package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pocketfiler/internal/apiserver/auth"
	"pocketfiler/internal/config"
	"pocketfiler/internal/shared/eventbus"
	"pocketfiler/internal/shared/payment"
	"pocketfiler/internal/shared/storage"
	"pocketfiler/internal/testutil"
)

type fixture struct {
	store  storage.Store
	mail   *testutil.Mailer
	router http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := &config.Config{
		APIServer: config.APIServerConfig{MaxUploadBytes: 1 << 20, CORSOrigin: "https://app.example.com"},
		Auth:      config.AuthConfig{BcryptCost: 4},
		App:       config.AppConfig{InviteBaseURL: "https://app.example.com/invitations"},
		RateLimit: config.RateLimitConfig{LoginPerMinute: 10, SignupPerMinute: 10},
	}
	issuer, err := auth.NewJWTIssuer(auth.Config{JWTSecret: "test-secret", AccessTokenTTL: time.Hour})
	require.NoError(t, err)

	f := &fixture{store: testutil.NewStore(t), mail: &testutil.Mailer{}}
	h := NewHandler(cfg, Deps{
		Store:    f.store,
		Events:   eventbus.NewMemoryEventBus(),
		Mail:     f.mail,
		Files:    &testutil.FileStore{},
		Payments: payment.NewSandbox(),
		Tokens:   issuer,
	})
	f.router = h.Router()
	return f
}

func (f *fixture) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

// login 注册、验证并登录，返回访问令牌
func (f *fixture) login(t *testing.T, email string) string {
	t.Helper()
	w := f.do(t, "POST", "/accounts", "", map[string]string{
		"fullName": "Ann Lee", "email": email, "password": "s3cret-pass",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	account, err := f.store.GetAccountByEmail(context.Background(), email)
	require.NoError(t, err)
	w = f.do(t, "POST", "/accounts/verify", "", map[string]string{"email": email, "code": account.VerificationCode})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = f.do(t, "POST", "/accounts/login", "", map[string]string{"email": email, "password": "s3cret-pass"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Token string `json:"token"`
	}
	testutil.Decode(t, w, &resp)
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, "GET", "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestHealthStoreDown(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Close())

	w := f.do(t, "GET", "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestCORS(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, "OPTIONS", "/projects", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "Authorization")
}

func TestRequestID(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, "GET", "/health", "", nil)
	assert.Len(t, w.Header().Get(HeaderRequestID), 36)

	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set(HeaderRequestID, "req-123")
	w = httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	assert.Equal(t, "req-123", w.Header().Get(HeaderRequestID))
}

func TestUnauthenticated(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, "GET", "/projects", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Missing authorization header.", testutil.Message(t, w))

	w = f.do(t, "GET", "/projects", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSignupDuplicate(t *testing.T) {
	f := newFixture(t)
	body := map[string]string{"fullName": "Ann", "email": "ann@example.com", "password": "s3cret-pass"}

	require.Equal(t, http.StatusCreated, f.do(t, "POST", "/accounts", "", body).Code)
	w := f.do(t, "POST", "/accounts", "", body)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "User already exists.", testutil.Message(t, w))
}

func TestProjectFlow(t *testing.T) {
	f := newFixture(t)
	token := f.login(t, "ann@example.com")

	for _, title := range []string{"Alpha", "Beta", "Gamma"} {
		w := f.do(t, "POST", "/projects", token, map[string]string{"title": title, "description": "d"})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	w := f.do(t, "GET", "/projects?page=2&limit=2", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var page struct {
		Items []json.RawMessage `json:"items"`
		Total int               `json:"total"`
		Page  int               `json:"page"`
		Pages int               `json:"pages"`
	}
	testutil.Decode(t, w, &page)
	assert.Len(t, page.Items, 1)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 2, page.Pages)

	// 其他租户看不到
	other := f.login(t, "bob@example.com")
	w = f.do(t, "GET", "/projects/1", other, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, "GET", "/dashboard/summary", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), `"projects":3`), w.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	f.do(t, "GET", "/health", "", nil)

	w := f.do(t, "GET", "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `pocketfiler_http_requests_total{method="GET",path="/health",status="200"} 1`)
}

func TestAuditAdminOnly(t *testing.T) {
	f := newFixture(t)
	token := f.login(t, "ann@example.com")

	w := f.do(t, "GET", "/audit/dispute/1", token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
