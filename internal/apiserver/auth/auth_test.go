package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pocketfiler/internal/shared/model"
)

func testIssuer(t *testing.T) *JWTIssuer {
	t.Helper()
	issuer, err := NewJWTIssuer(Config{JWTSecret: "test-secret"})
	require.NoError(t, err)
	return issuer
}

func testAccount() *model.Account {
	return &model.Account{ID: 7, Email: "ann@example.com", Roles: []model.Role{model.RoleUser}}
}

func TestJWTIssuerRoundTrip(t *testing.T) {
	issuer := testIssuer(t)

	token, ttl, err := issuer.IssueAccess(testAccount())
	require.NoError(t, err)
	assert.Equal(t, 15*time.Minute, ttl)

	user, err := issuer.Parse(token, TokenTypeAccess)
	require.NoError(t, err)
	assert.Equal(t, &AuthUser{ID: 7, Email: "ann@example.com", Role: model.RoleUser}, user)

	_, err = issuer.Parse(token, TokenTypeRefresh)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTIssuerRejects(t *testing.T) {
	issuer := testIssuer(t)
	token, _, err := issuer.IssueAccess(testAccount())
	require.NoError(t, err)

	other, err := NewJWTIssuer(Config{JWTSecret: "another-secret"})
	require.NoError(t, err)
	_, err = other.Parse(token, TokenTypeAccess)
	assert.ErrorIs(t, err, ErrInvalidToken, "wrong secret")

	issuer.now = func() time.Time { return time.Now().Add(time.Hour) }
	_, err = issuer.Parse(token, TokenTypeAccess)
	assert.ErrorIs(t, err, ErrInvalidToken, "expired")

	_, err = NewJWTIssuer(Config{})
	assert.Error(t, err)
}

func TestAdminRoleClaim(t *testing.T) {
	issuer := testIssuer(t)
	admin := &model.Account{ID: 1, Email: "root@example.com", Roles: []model.Role{model.RoleUser, model.RoleAdmin}}

	token, _, err := issuer.IssueAccess(admin)
	require.NoError(t, err)
	user, err := issuer.Parse(token, TokenTypeAccess)
	require.NoError(t, err)

	assert.True(t, user.IsAdmin())
	assert.Equal(t, int64(0), user.TenantID())
	assert.True(t, user.CanAccess(99))
}

func TestTenantAccess(t *testing.T) {
	user := &AuthUser{ID: 3, Role: model.RoleUser}
	assert.Equal(t, int64(3), user.TenantID())
	assert.True(t, user.CanAccess(3))
	assert.False(t, user.CanAccess(4))

	var anon *AuthUser
	assert.False(t, anon.CanAccess(3))
}

func TestPasswordHasher(t *testing.T) {
	h := NewPasswordHasher(4)
	hash, err := h.Hash("secret123")
	require.NoError(t, err)
	assert.NotEqual(t, "secret123", hash)
	assert.True(t, h.Check("secret123", hash))
	assert.False(t, h.Check("wrong", hash))

	// 越界 cost 回退默认值
	assert.Equal(t, 10, NewPasswordHasher(99).cost)
}

func TestMemoryLimiter(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLimiter()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		ok, err := l.Allow(ctx, "login:1.2.3.4", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, _ := l.Allow(ctx, "login:1.2.3.4", 3, time.Minute)
	assert.False(t, ok)

	ok, _ = l.Allow(ctx, "login:5.6.7.8", 3, time.Minute)
	assert.True(t, ok, "keys are independent")

	now = now.Add(time.Minute)
	ok, _ = l.Allow(ctx, "login:1.2.3.4", 3, time.Minute)
	assert.True(t, ok, "window resets")
}

func TestInvalidTokenWrapping(t *testing.T) {
	_, err := testIssuer(t).Parse("a.b.c", TokenTypeAccess)
	assert.True(t, errors.Is(err, ErrInvalidToken))
}

func TestRateLimitMiddleware(t *testing.T) {
	h := RateLimit(NewMemoryLimiter(), nil, "login", 2)(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		r := httptest.NewRequest(http.MethodPost, "/accounts/login", nil)
		r.RemoteAddr = "10.0.0.1:5000"
		w := httptest.NewRecorder()
		h(w, r)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRateLimitIgnoresForwardedHeaderFromUntrustedPeer(t *testing.T) {
	h := RateLimit(NewMemoryLimiter(), nil, "login", 2)(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	limited := 0
	for i := 0; i < 20; i++ {
		r := httptest.NewRequest(http.MethodPost, "/accounts/login", nil)
		r.RemoteAddr = "198.51.100.7:4000"
		r.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i))
		w := httptest.NewRecorder()
		h(w, r)
		if w.Code == http.StatusTooManyRequests {
			limited++
		}
	}
	assert.Equal(t, 18, limited)
}

func TestClientIP(t *testing.T) {
	ips, err := NewIPResolver([]string{"10.0.0.0/8", "192.168.1.1"})
	require.NoError(t, err)

	tests := []struct {
		name   string
		remote string
		xff    string
		realIP string
		want   string
	}{
		{"direct", "10.0.0.1:5000", "", "", "10.0.0.1"},
		{"trusted proxy", "10.0.0.1:5000", "203.0.113.9", "", "203.0.113.9"},
		{"untrusted peer spoofs header", "198.51.100.7:4000", "203.0.113.9", "203.0.113.10", "198.51.100.7"},
		{"skips trusted hops", "192.168.1.1:80", "1.1.1.1, 203.0.113.9, 10.0.0.2", "", "203.0.113.9"},
		{"all hops trusted", "10.0.0.1:80", "10.0.0.3, 10.0.0.2", "", "10.0.0.3"},
		{"real ip from trusted proxy", "10.0.0.1:80", "", "203.0.113.5", "203.0.113.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.realIP != "" {
				r.Header.Set("X-Real-IP", tt.realIP)
			}
			assert.Equal(t, tt.want, ips.ClientIP(r))
		})
	}

	// 未配置可信代理时只看 RemoteAddr
	var none *IPResolver
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.1:5000"
	r.Header.Set("X-Forwarded-For", "203.0.113.9")
	assert.Equal(t, "10.0.0.1", none.ClientIP(r))

	_, err = NewIPResolver([]string{"not-an-ip"})
	assert.Error(t, err)
}

func TestRandomValues(t *testing.T) {
	a, err := RandomToken(32)
	require.NoError(t, err)
	b, err := RandomToken(32)
	require.NoError(t, err)
	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)

	for i := 0; i < 20; i++ {
		code, err := VerificationCode()
		require.NoError(t, err)
		assert.Regexp(t, `^\d{4}$`, code)
	}
}
