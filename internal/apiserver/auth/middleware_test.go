package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsPublicRoute(t *testing.T) {
	tests := []struct {
		name     string
		method   string
		path     string
		expected bool
	}{
		// 公开路由
		{"signup", "POST", "/accounts", true},
		{"login", "POST", "/accounts/login", true},
		{"verify", "POST", "/accounts/verify", true},
		{"resend code", "POST", "/accounts/verify/resend", true},
		{"refresh", "POST", "/accounts/refresh", true},
		{"request reset", "POST", "/accounts/password-reset", true},
		{"reset with token", "POST", "/accounts/password-reset/abc", true},
		{"accept invitation", "POST", "/invitations/tok/accept", true},
		{"health", "GET", "/health", true},
		{"metrics", "GET", "/metrics", true},
		{"local file", "GET", "/files/contracts/1/a.pdf", true},

		// 需要 JWT
		{"profile", "GET", "/accounts/me", false},
		{"list accounts", "GET", "/accounts", false},
		{"invite", "POST", "/associates/invite", false},
		{"projects", "GET", "/projects", false},
		{"audit", "GET", "/audit/dispute/1", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := isPublicRoute(tt.method, tt.path)
			if got != tt.expected {
				t.Errorf("isPublicRoute(%q, %q) = %v, want %v", tt.method, tt.path, got, tt.expected)
			}
		})
	}
}

func TestMiddleware(t *testing.T) {
	issuer := testIssuer(t)
	access, _, err := issuer.IssueAccess(testAccount())
	if err != nil {
		t.Fatal(err)
	}
	refresh, err := issuer.IssueRefresh(testAccount())
	if err != nil {
		t.Fatal(err)
	}

	var seen *AuthUser
	h := Middleware(issuer)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetAuthUser(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name   string
		path   string
		header string
		status int
	}{
		{"public without token", "/health", "", http.StatusOK},
		{"missing header", "/projects", "", http.StatusUnauthorized},
		{"malformed header", "/projects", "Token " + access, http.StatusUnauthorized},
		{"garbage token", "/projects", "Bearer nope", http.StatusUnauthorized},
		{"refresh token rejected", "/projects", "Bearer " + refresh, http.StatusUnauthorized},
		{"access token", "/projects", "Bearer " + access, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			r := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, r)
			assert.Equal(t, tt.status, w.Code)
			if tt.status != http.StatusOK {
				assert.Contains(t, w.Body.String(), `"message"`)
			}
		})
	}

	// 最后一个用例注入了用户
	if assert.NotNil(t, seen) {
		assert.Equal(t, int64(7), seen.ID)
	}
}

func TestAdminOnly(t *testing.T) {
	h := AdminOnly(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	tests := []struct {
		name   string
		user   *AuthUser
		status int
	}{
		{"anonymous", nil, http.StatusForbidden},
		{"user", &AuthUser{ID: 1, Role: "user"}, http.StatusForbidden},
		{"admin", &AuthUser{ID: 2, Role: "admin"}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/audit/dispute/1", nil)
			if tt.user != nil {
				r = r.WithContext(WithAuthUser(r.Context(), tt.user))
			}
			w := httptest.NewRecorder()
			h(w, r)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}
