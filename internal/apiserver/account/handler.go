package account

import (
	"net/http"
	"time"

	"pocketfiler/internal/apiserver/auth"
	"pocketfiler/internal/apiserver/httpapi"
	"pocketfiler/internal/shared/apperr"
	"pocketfiler/pkg/logging"
)

var log = logging.Default("account-http")

// Handler 账号 HTTP 处理器
type Handler struct {
	svc    *Service
	limits Limits
}

// Limits 账号接口的限流参数，每分钟次数 <= 0 表示不限流
type Limits struct {
	Limiter         auth.Limiter
	IPs             *auth.IPResolver
	LoginPerMinute  int
	SignupPerMinute int
	VerifyPerMinute int
}

// NewHandler Limiter 为 nil 时不限流
func NewHandler(svc *Service, limits Limits) *Handler {
	return &Handler{svc: svc, limits: limits}
}

// RegisterRoutes 注册账号路由
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /accounts", h.limit("signup", h.limits.SignupPerMinute, h.Signup))
	mux.HandleFunc("POST /accounts/verify", h.limit("verify", h.limits.VerifyPerMinute, h.Verify))
	mux.HandleFunc("POST /accounts/verify/resend", h.limit("signup", h.limits.SignupPerMinute, h.Resend))
	mux.HandleFunc("POST /accounts/login", h.limit("login", h.limits.LoginPerMinute, h.Login))
	mux.HandleFunc("POST /accounts/refresh", h.Refresh)
	mux.HandleFunc("POST /accounts/password-reset", h.limit("signup", h.limits.SignupPerMinute, h.RequestReset))
	mux.HandleFunc("POST /accounts/password-reset/{token}", h.Reset)
	mux.HandleFunc("GET /accounts/me", h.Me)
	mux.HandleFunc("PATCH /accounts/me", h.UpdateMe)
}

func (h *Handler) limit(name string, n int, next http.HandlerFunc) http.HandlerFunc {
	if h.limits.Limiter == nil || n <= 0 {
		return next
	}
	return auth.RateLimit(h.limits.Limiter, h.limits.IPs, name, n)(next)
}

// allowEmail 按邮箱计数，防止换 IP 猜测同一账号的验证码
func (h *Handler) allowEmail(r *http.Request, name, email string, n int) error {
	if h.limits.Limiter == nil || n <= 0 {
		return nil
	}
	ok, err := h.limits.Limiter.Allow(r.Context(), name+":email:"+NormalizeEmail(email), n, time.Minute)
	if err != nil {
		log.WithContext(r.Context()).WithError(err).Warn("rate limiter unavailable")
		return nil
	}
	if !ok {
		return apperr.RateLimited("Too many requests. Please try again later.")
	}
	return nil
}

// ============================================================================
// 请求/响应结构
// ============================================================================

// signupRequest 个人账号需要 fullName；组织账号需要 organizationName 和 username
type signupRequest struct {
	FullName         string `json:"fullName" validate:"required_without=OrganizationName"`
	Username         string `json:"username" validate:"required_with=OrganizationName"`
	OrganizationName string `json:"organizationName"`
	Email            string `json:"email" validate:"required,emailfmt"`
	Password         string `json:"password" validate:"required,min=8"`
	ContactNumber    string `json:"contactNumber"`
}

type signupResponse struct {
	ID               int64  `json:"id"`
	Email            string `json:"email"`
	Username         string `json:"username,omitempty"`
	OrganizationName string `json:"organizationName,omitempty"`
	Verified         bool   `json:"verified"`
	MailSent         bool   `json:"mailSent"`
	Message          string `json:"message"`
}

type verifyRequest struct {
	Email string `json:"email" validate:"required,emailfmt"`
	Code  string `json:"code" validate:"required"`
}

type emailRequest struct {
	Email string `json:"email" validate:"required,emailfmt"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,emailfmt"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type resetRequest struct {
	Password string `json:"password" validate:"required,min=8"`
}

type profileRequest struct {
	FullName      *string `json:"fullName"`
	ContactNumber *string `json:"contactNumber"`
}

// ============================================================================
// 处理函数
// ============================================================================

// Signup 注册
//
// 路由: POST /accounts
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := httpapi.Decode(r, &req); err != nil {
		httpapi.WriteError(w, r, err)
		return
	}

	res, err := h.svc.Signup(r.Context(), SignupInput{
		FullName:         req.FullName,
		Username:         req.Username,
		OrganizationName: req.OrganizationName,
		Email:            req.Email,
		Password:         req.Password,
		ContactNumber:    req.ContactNumber,
	})
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}

	msg := "Registration successful. Please check your email for the verification code."
	if !res.MailSent {
		msg = "Registration successful, but the verification email could not be sent. Please request a new code."
	}
	httpapi.WriteJSON(w, http.StatusCreated, signupResponse{
		ID:               res.Account.ID,
		Email:            res.Account.Email,
		Username:         res.Account.Username,
		OrganizationName: res.Account.OrganizationName,
		Verified:         false,
		MailSent:         res.MailSent,
		Message:          msg,
	})
}

// Verify 校验邮箱验证码
//
// 路由: POST /accounts/verify
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := httpapi.Decode(r, &req); err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	if err := h.allowEmail(r, "verify", req.Email, h.limits.VerifyPerMinute); err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	account, err := h.svc.Verify(r.Context(), req.Email, req.Code)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"message":  "Email verified successfully.",
		"id":       account.ID,
		"email":    account.Email,
		"verified": true,
	})
}

// Resend 重新发送验证码
//
// 路由: POST /accounts/verify/resend
func (h *Handler) Resend(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := httpapi.Decode(r, &req); err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	if _, err := h.svc.ResendVerification(r.Context(), req.Email); err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteMessage(w, http.StatusOK, "If the account exists and is not verified, a new code has been sent.")
}

// Login 登录
//
// 路由: POST /accounts/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpapi.Decode(r, &req); err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	res, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, res)
}

// Refresh 刷新访问令牌
//
// 路由: POST /accounts/refresh
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := httpapi.Decode(r, &req); err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	token, expiresIn, err := h.svc.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"token":     token,
		"expiresIn": expiresIn,
	})
}

// RequestReset 申请重置密码
//
// 路由: POST /accounts/password-reset
func (h *Handler) RequestReset(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := httpapi.Decode(r, &req); err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	if err := h.svc.RequestPasswordReset(r.Context(), req.Email); err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteMessage(w, http.StatusOK, "If the email is registered, a password reset link has been sent.")
}

// Reset 用令牌设置新密码
//
// 路由: POST /accounts/password-reset/{token}
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := httpapi.Decode(r, &req); err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	if err := h.svc.ResetPassword(r.Context(), r.PathValue("token"), req.Password); err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteMessage(w, http.StatusOK, "Password has been reset successfully.")
}

// Me 当前账号资料
//
// 路由: GET /accounts/me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := auth.RequireUser(r)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	account, err := h.svc.Profile(r.Context(), user.ID)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, account)
}

// UpdateMe 修改当前账号资料
//
// 路由: PATCH /accounts/me
func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	user, err := auth.RequireUser(r)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	var req profileRequest
	if err := httpapi.Decode(r, &req); err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	account, err := h.svc.UpdateProfile(r.Context(), user.ID, ProfileUpdate{
		FullName:      req.FullName,
		ContactNumber: req.ContactNumber,
	})
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, account)
}
