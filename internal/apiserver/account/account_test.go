package account

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pocketfiler/internal/apiserver/auth"
	"pocketfiler/internal/apiserver/metrics"
	"pocketfiler/internal/shared/apperr"
	"pocketfiler/internal/shared/model"
	"pocketfiler/internal/shared/storage"
	"pocketfiler/internal/testutil"
)

type fixture struct {
	store   storage.Store
	mail    *testutil.Mailer
	tokens  *auth.JWTIssuer
	svc     *Service
	handler http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := testutil.NewStore(t)
	mail := &testutil.Mailer{}
	tokens, err := auth.NewJWTIssuer(auth.Config{JWTSecret: "test-secret"})
	require.NoError(t, err)

	svc := NewService(store, mail, auth.NewPasswordHasher(4), tokens, metrics.NewMetrics("test", nil), Config{
		ResetBaseURL: "https://app.test/reset",
	})
	mux := http.NewServeMux()
	NewHandler(svc, Limits{}).RegisterRoutes(mux)
	return &fixture{store: store, mail: mail, tokens: tokens, svc: svc, handler: mux}
}

func (f *fixture) signup(t *testing.T, email string) int64 {
	t.Helper()
	w := testutil.Do(t, f.handler, http.MethodPost, "/accounts", map[string]string{
		"fullName": "Ann Lee",
		"email":    email,
		"password": "s3cret-pass",
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp signupResponse
	testutil.Decode(t, w, &resp)
	return resp.ID
}

func (f *fixture) verify(t *testing.T, email string) {
	t.Helper()
	account, err := f.store.GetAccountByEmail(context.Background(), email)
	require.NoError(t, err)
	w := testutil.Do(t, f.handler, http.MethodPost, "/accounts/verify", map[string]string{
		"email": email,
		"code":  account.VerificationCode,
	}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestSignup(t *testing.T) {
	f := newFixture(t)

	w := testutil.Do(t, f.handler, http.MethodPost, "/accounts", map[string]string{
		"fullName": "Ann Lee",
		"email":    "Ann@Example.com",
		"password": "s3cret-pass",
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp signupResponse
	testutil.Decode(t, w, &resp)
	assert.Equal(t, int64(1), resp.ID)
	assert.Equal(t, "ann@example.com", resp.Email)
	assert.False(t, resp.Verified)
	assert.True(t, resp.MailSent)
	assert.NotContains(t, w.Body.String(), "password")

	account, err := f.store.GetAccountByEmail(context.Background(), "ann@example.com")
	require.NoError(t, err)
	assert.Len(t, account.VerificationCode, 4)
	assert.Equal(t, []model.Role{model.RoleUser}, account.Roles)

	msg := f.mail.Last(t)
	assert.Equal(t, "ann@example.com", msg.To)
	assert.Contains(t, msg.Text, account.VerificationCode)
}

func TestSignupRejects(t *testing.T) {
	f := newFixture(t)
	f.signup(t, "ann@example.com")

	tests := []struct {
		name   string
		body   interface{}
		status int
		msg    string
	}{
		{"duplicate", map[string]string{"fullName": "A", "email": "ANN@example.com", "password": "s3cret-pass"}, http.StatusConflict, MsgUserExists},
		{"bad email", map[string]string{"fullName": "A", "email": "bad", "password": "s3cret-pass"}, http.StatusBadRequest, "Invalid email format."},
		{"missing fields", map[string]string{"email": "b@example.com"}, http.StatusBadRequest, "Missing required fields."},
		{"short password", map[string]string{"fullName": "A", "email": "b@example.com", "password": "short"}, http.StatusBadRequest, "Password must be at least 8 characters."},
		{"empty body", nil, http.StatusBadRequest, "Missing required fields."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := testutil.Do(t, f.handler, http.MethodPost, "/accounts", tt.body, nil)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.msg, testutil.Message(t, w))
		})
	}
}

func TestSignupOrganization(t *testing.T) {
	f := newFixture(t)

	w := testutil.Do(t, f.handler, http.MethodPost, "/accounts", map[string]string{
		"username":         "acme-admin",
		"organizationName": "Acme Ltd",
		"email":            "ops@acme.example.com",
		"password":         "s3cret-pass",
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp signupResponse
	testutil.Decode(t, w, &resp)
	assert.Equal(t, "acme-admin", resp.Username)
	assert.Equal(t, "Acme Ltd", resp.OrganizationName)

	account, err := f.store.GetAccountByEmail(context.Background(), "ops@acme.example.com")
	require.NoError(t, err)
	assert.True(t, account.IsOrganization())
	assert.Equal(t, "Acme Ltd", account.FullName)
	assert.Equal(t, "acme-admin", account.Username)

	// 组织账号缺少 username
	w = testutil.Do(t, f.handler, http.MethodPost, "/accounts", map[string]string{
		"organizationName": "Other Ltd",
		"email":            "other@acme.example.com",
		"password":         "s3cret-pass",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Missing required fields.", testutil.Message(t, w))

	// 同邮箱再注册组织账号
	w = testutil.Do(t, f.handler, http.MethodPost, "/accounts", map[string]string{
		"username":         "dup",
		"organizationName": "Dup Ltd",
		"email":            "OPS@acme.example.com",
		"password":         "s3cret-pass",
	}, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestSignupMailFailureKeepsAccount(t *testing.T) {
	f := newFixture(t)
	f.mail.Err = errors.New("smtp down")

	w := testutil.Do(t, f.handler, http.MethodPost, "/accounts", map[string]string{
		"fullName": "Ann Lee",
		"email":    "ann@example.com",
		"password": "s3cret-pass",
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	var resp signupResponse
	testutil.Decode(t, w, &resp)
	assert.False(t, resp.MailSent)

	_, err := f.store.GetAccountByEmail(context.Background(), "ann@example.com")
	assert.NoError(t, err)
}

func TestVerify(t *testing.T) {
	f := newFixture(t)
	f.signup(t, "ann@example.com")

	w := testutil.Do(t, f.handler, http.MethodPost, "/accounts/verify", map[string]string{
		"email": "ann@example.com",
		"code":  "xxxx",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, MsgInvalidCode, testutil.Message(t, w))

	f.verify(t, "ann@example.com")
	account, err := f.store.GetAccountByEmail(context.Background(), "ann@example.com")
	require.NoError(t, err)
	assert.True(t, account.IsEmailVerified)
	assert.Empty(t, account.VerificationCode)

	// 已验证的账号重复验证直接成功
	w = testutil.Do(t, f.handler, http.MethodPost, "/accounts/verify", map[string]string{
		"email": "ann@example.com",
		"code":  "0000",
	}, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestVerifyExpired(t *testing.T) {
	f := newFixture(t)
	f.signup(t, "ann@example.com")
	account, err := f.store.GetAccountByEmail(context.Background(), "ann@example.com")
	require.NoError(t, err)

	f.svc.now = func() time.Time { return time.Now().Add(16 * time.Minute) }
	_, err = f.svc.Verify(context.Background(), "ann@example.com", account.VerificationCode)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Equal(t, MsgCodeExpired, apperr.MessageOf(err))
}

func TestVerifyLocksAfterFailedAttempts(t *testing.T) {
	f := newFixture(t)
	f.signup(t, "ann@example.com")
	account, err := f.store.GetAccountByEmail(context.Background(), "ann@example.com")
	require.NoError(t, err)
	code := account.VerificationCode
	wrong := "0000"
	if code == wrong {
		wrong = "1111"
	}

	verify := func(c string) *httptest.ResponseRecorder {
		return testutil.Do(t, f.handler, http.MethodPost, "/accounts/verify", map[string]string{
			"email": "ann@example.com",
			"code":  c,
		}, nil)
	}

	for i := 1; i < MaxVerificationAttempts; i++ {
		w := verify(wrong)
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, MsgInvalidCode, testutil.Message(t, w))
	}
	w := verify(wrong)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, MsgTooManyAttempts, testutil.Message(t, w))

	// 验证码已作废，正确的旧验证码也不再可用
	w = verify(code)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	account, err = f.store.GetAccountByEmail(context.Background(), "ann@example.com")
	require.NoError(t, err)
	assert.False(t, account.IsEmailVerified)
	assert.Empty(t, account.VerificationCode)

	// 重发后计数清零
	w = testutil.Do(t, f.handler, http.MethodPost, "/accounts/verify/resend", map[string]string{"email": "ann@example.com"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	account, err = f.store.GetAccountByEmail(context.Background(), "ann@example.com")
	require.NoError(t, err)
	assert.Zero(t, account.VerificationAttempts)
	w = verify(account.VerificationCode)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestVerifyRateLimited(t *testing.T) {
	f := newFixture(t)
	f.signup(t, "ann@example.com")
	mux := http.NewServeMux()
	NewHandler(f.svc, Limits{Limiter: auth.NewMemoryLimiter(), VerifyPerMinute: 2}).RegisterRoutes(mux)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		// 每次换一个来源地址，按邮箱的计数仍然生效
		r := httptest.NewRequest(http.MethodPost, "/accounts/verify",
			strings.NewReader(`{"email":"ann@example.com","code":"9999x"}`))
		r.Header.Set("Content-Type", "application/json")
		r.RemoteAddr = fmt.Sprintf("198.51.100.%d:4000", i+1)
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, r)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusBadRequest, http.StatusBadRequest, http.StatusTooManyRequests}, codes)
}

func TestResendVerification(t *testing.T) {
	f := newFixture(t)
	f.signup(t, "ann@example.com")

	w := testutil.Do(t, f.handler, http.MethodPost, "/accounts/verify/resend", map[string]string{"email": "ann@example.com"}, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, f.mail.Messages(), 2)

	w = testutil.Do(t, f.handler, http.MethodPost, "/accounts/verify/resend", map[string]string{"email": "nobody@example.com"}, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, f.mail.Messages(), 2)
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	f.signup(t, "ann@example.com")

	login := func(password string) *httptest.ResponseRecorder {
		return testutil.Do(t, f.handler, http.MethodPost, "/accounts/login", map[string]string{
			"email":    "ann@example.com",
			"password": password,
		}, nil)
	}

	w := login("s3cret-pass")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, MsgEmailNotVerified, testutil.Message(t, w))

	f.verify(t, "ann@example.com")

	w = login("wrong-pass")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, MsgInvalidCredentials, testutil.Message(t, w))

	w = testutil.Do(t, f.handler, http.MethodPost, "/accounts/login", map[string]string{
		"email":    "ANN@example.com",
		"password": "s3cret-pass",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res LoginResult
	testutil.Decode(t, w, &res)
	assert.Equal(t, int64(900), res.ExpiresIn)
	assert.NotContains(t, w.Body.String(), "passwordHash")

	user, err := f.tokens.Parse(res.Token, auth.TokenTypeAccess)
	require.NoError(t, err)
	assert.Equal(t, res.Account.ID, user.ID)

	w = testutil.Do(t, f.handler, http.MethodPost, "/accounts/refresh", map[string]string{"refreshToken": res.RefreshToken}, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = testutil.Do(t, f.handler, http.MethodPost, "/accounts/refresh", map[string]string{"refreshToken": res.Token}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLoginUnknownEmail(t *testing.T) {
	f := newFixture(t)
	w := testutil.Do(t, f.handler, http.MethodPost, "/accounts/login", map[string]string{
		"email":    "nobody@example.com",
		"password": "whatever1",
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, MsgInvalidCredentials, testutil.Message(t, w))
}

func TestLoginRateLimited(t *testing.T) {
	f := newFixture(t)
	mux := http.NewServeMux()
	NewHandler(f.svc, Limits{Limiter: auth.NewMemoryLimiter(), LoginPerMinute: 2}).RegisterRoutes(mux)

	body := map[string]string{"email": "nobody@example.com", "password": "whatever1"}
	for i := 0; i < 2; i++ {
		w := testutil.Do(t, mux, http.MethodPost, "/accounts/login", body, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	}
	w := testutil.Do(t, mux, http.MethodPost, "/accounts/login", body, nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestPasswordReset(t *testing.T) {
	f := newFixture(t)
	f.signup(t, "ann@example.com")
	f.verify(t, "ann@example.com")

	// 未注册邮箱同样返回 200
	w := testutil.Do(t, f.handler, http.MethodPost, "/accounts/password-reset", map[string]string{"email": "nobody@example.com"}, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = testutil.Do(t, f.handler, http.MethodPost, "/accounts/password-reset", map[string]string{"email": "ann@example.com"}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	account, err := f.store.GetAccountByEmail(context.Background(), "ann@example.com")
	require.NoError(t, err)
	require.NotEmpty(t, account.ResetToken)
	assert.Contains(t, f.mail.Last(t).Text, "https://app.test/reset/"+account.ResetToken)

	w = testutil.Do(t, f.handler, http.MethodPost, "/accounts/password-reset/"+account.ResetToken, map[string]string{"password": "new-pass-123"}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// 令牌只能使用一次
	w = testutil.Do(t, f.handler, http.MethodPost, "/accounts/password-reset/"+account.ResetToken, map[string]string{"password": "new-pass-456"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, MsgInvalidResetToken, testutil.Message(t, w))

	_, err = f.svc.Login(context.Background(), "ann@example.com", "new-pass-123")
	assert.NoError(t, err)
}

func TestProfile(t *testing.T) {
	f := newFixture(t)
	id := f.signup(t, "ann@example.com")
	user := &auth.AuthUser{ID: id, Email: "ann@example.com", Role: model.RoleUser}

	w := testutil.Do(t, f.handler, http.MethodGet, "/accounts/me", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = testutil.Do(t, f.handler, http.MethodPatch, "/accounts/me", map[string]string{"contactNumber": " 555-0100 "}, user)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = testutil.Do(t, f.handler, http.MethodGet, "/accounts/me", nil, user)
	require.Equal(t, http.StatusOK, w.Code)
	var account model.Account
	testutil.Decode(t, w, &account)
	assert.Equal(t, "Ann Lee", account.FullName)
	assert.Equal(t, "555-0100", account.ContactNumber)

	w = testutil.Do(t, f.handler, http.MethodPatch, "/accounts/me", map[string]string{"fullName": "  "}, user)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEnsureAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.EnsureAdmin(ctx, "", ""))
	require.NoError(t, f.svc.EnsureAdmin(ctx, "Root@Example.com", "admin-pass"))
	require.NoError(t, f.svc.EnsureAdmin(ctx, "root@example.com", "admin-pass"))

	admin, err := f.store.GetAccountByEmail(ctx, "root@example.com")
	require.NoError(t, err)
	assert.True(t, admin.HasRole(model.RoleAdmin))
	assert.True(t, admin.IsEmailVerified)

	// 已有普通账号升级为管理员
	f.signup(t, "ann@example.com")
	require.NoError(t, f.svc.EnsureAdmin(ctx, "ann@example.com", "ignored-pass"))
	ann, err := f.store.GetAccountByEmail(ctx, "ann@example.com")
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, ann.PrimaryRole())
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "ann@example.com", NormalizeEmail("  Ann@Example.COM "))
	assert.False(t, strings.ContainsAny(NormalizeEmail(" a@b.c "), " "))
}
