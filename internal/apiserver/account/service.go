// Package account 账号：注册、邮箱验证、登录、重置密码、个人资料
package account

import (
	"context"
	"errors"
	"strings"
	"time"

	"pocketfiler/internal/apiserver/auth"
	"pocketfiler/internal/apiserver/metrics"
	"pocketfiler/internal/shared/apperr"
	"pocketfiler/internal/shared/mailer"
	"pocketfiler/internal/shared/model"
	"pocketfiler/internal/shared/storage"
	"pocketfiler/pkg/logging"
)

// 对外固定的提示信息
const (
	MsgUserExists          = "User already exists."
	MsgInvalidCode         = "Invalid verification code or email."
	MsgCodeExpired         = "Verification code has expired."
	MsgTooManyAttempts     = "Too many failed attempts. Please request a new verification code."
	MsgInvalidCredentials  = "Invalid email or password."
	MsgEmailNotVerified    = "Email not verified."
	MsgInvalidRefreshToken = "Invalid refresh token."
	MsgInvalidResetToken   = "Invalid or expired reset token."
)

// MaxVerificationAttempts 同一验证码允许的失败次数，达到后验证码作废
const MaxVerificationAttempts = 5

// Config 账号相关参数
type Config struct {
	VerificationTTL time.Duration
	ResetTTL        time.Duration
	ResetBaseURL    string
}

// Service 账号业务逻辑
type Service struct {
	store   storage.AccountStore
	mail    mailer.Sender
	hasher  *auth.PasswordHasher
	tokens  auth.TokenIssuer
	metrics *metrics.Metrics
	cfg     Config
	log     *logging.Logger
	now     func() time.Time
}

// NewService 创建账号服务
func NewService(store storage.AccountStore, mail mailer.Sender, hasher *auth.PasswordHasher, tokens auth.TokenIssuer, m *metrics.Metrics, cfg Config) *Service {
	if cfg.VerificationTTL <= 0 {
		cfg.VerificationTTL = 15 * time.Minute
	}
	if cfg.ResetTTL <= 0 {
		cfg.ResetTTL = time.Hour
	}
	return &Service{
		store:   store,
		mail:    mail,
		hasher:  hasher,
		tokens:  tokens,
		metrics: m,
		cfg:     cfg,
		log:     logging.Default("account"),
		now:     time.Now,
	}
}

// NormalizeEmail 邮箱统一小写去空白
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SignupInput 注册参数
//
// OrganizationName 非空时为组织账号，FullName 缺省取组织名。
type SignupInput struct {
	FullName         string
	Username         string
	OrganizationName string
	Email            string
	Password         string
	ContactNumber    string
}

// SignupResult 注册结果，MailSent 为 false 表示验证码邮件发送失败
type SignupResult struct {
	Account  *model.Account
	MailSent bool
}

// Signup 注册账号并发送验证码
//
// 先落库再发邮件；邮件失败不回滚，由调用方通过 MailSent 提示重发。
func (s *Service) Signup(ctx context.Context, in SignupInput) (*SignupResult, error) {
	email := NormalizeEmail(in.Email)

	_, err := s.store.GetAccountByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, apperr.Conflict(MsgUserExists)
	case !errors.Is(err, storage.ErrNotFound):
		return nil, apperr.FromStorage(err, "Account")
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	code, err := auth.VerificationCode()
	if err != nil {
		return nil, apperr.Internal(err)
	}

	fullName := strings.TrimSpace(in.FullName)
	orgName := strings.TrimSpace(in.OrganizationName)
	if fullName == "" {
		fullName = orgName
	}

	now := s.now().UTC()
	expires := now.Add(s.cfg.VerificationTTL)
	account := &model.Account{
		FullName:            fullName,
		Username:            strings.TrimSpace(in.Username),
		OrganizationName:    orgName,
		Email:               email,
		ContactNumber:       strings.TrimSpace(in.ContactNumber),
		PasswordHash:        hash,
		Roles:               []model.Role{model.RoleUser},
		VerificationCode:    code,
		VerificationExpires: &expires,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := s.store.CreateAccount(ctx, account); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, apperr.Conflict(MsgUserExists)
		}
		return nil, apperr.FromStorage(err, "Account")
	}
	s.metrics.IDAllocated(storage.CollectionAccounts)
	s.log.WithContext(ctx).Info("account created", "account_id", account.ID, "organization", account.IsOrganization())

	sent := s.send(ctx, "verification", mailer.VerificationCode(account.Email, account.FullName, code))
	return &SignupResult{Account: account, MailSent: sent}, nil
}

// Verify 校验邮箱验证码，已验证的账号直接返回成功
//
// 连续失败 MaxVerificationAttempts 次后验证码作废，必须重新发送。
func (s *Service) Verify(ctx context.Context, email, code string) (*model.Account, error) {
	account, err := s.store.GetAccountByEmail(ctx, NormalizeEmail(email))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.Validation(MsgInvalidCode)
	}
	if err != nil {
		return nil, apperr.FromStorage(err, "Account")
	}
	if account.IsEmailVerified {
		return account, nil
	}
	if account.VerificationCode == "" && account.VerificationAttempts >= MaxVerificationAttempts {
		return nil, apperr.RateLimited(MsgTooManyAttempts)
	}

	now := s.now().UTC()
	matched, expired := account.VerificationValid(strings.TrimSpace(code), now)
	if !matched {
		return nil, s.failVerification(ctx, account, now)
	}
	if expired {
		return nil, apperr.Validation(MsgCodeExpired)
	}

	account.IsEmailVerified = true
	account.VerificationCode = ""
	account.VerificationExpires = nil
	account.VerificationAttempts = 0
	account.UpdatedAt = now
	if err := s.store.UpdateAccount(ctx, account); err != nil {
		return nil, apperr.FromStorage(err, "Account")
	}
	return account, nil
}

// failVerification 记录一次失败，达到上限时清除验证码
func (s *Service) failVerification(ctx context.Context, account *model.Account, now time.Time) error {
	account.VerificationAttempts++
	locked := account.VerificationAttempts >= MaxVerificationAttempts
	if locked {
		account.VerificationCode = ""
		account.VerificationExpires = nil
	}
	account.UpdatedAt = now
	if err := s.store.UpdateAccount(ctx, account); err != nil {
		return apperr.FromStorage(err, "Account")
	}
	if locked {
		s.log.WithContext(ctx).Warn("verification code revoked after failed attempts", "account_id", account.ID)
		return apperr.RateLimited(MsgTooManyAttempts)
	}
	return apperr.Validation(MsgInvalidCode)
}

// ResendVerification 重新生成验证码；账号不存在或已验证时静默成功
func (s *Service) ResendVerification(ctx context.Context, email string) (mailSent bool, err error) {
	account, err := s.store.GetAccountByEmail(ctx, NormalizeEmail(email))
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, apperr.FromStorage(err, "Account")
	}
	if account.IsEmailVerified {
		return false, nil
	}

	code, err := auth.VerificationCode()
	if err != nil {
		return false, apperr.Internal(err)
	}
	now := s.now().UTC()
	expires := now.Add(s.cfg.VerificationTTL)
	account.VerificationCode = code
	account.VerificationExpires = &expires
	account.VerificationAttempts = 0
	account.UpdatedAt = now
	if err := s.store.UpdateAccount(ctx, account); err != nil {
		return false, apperr.FromStorage(err, "Account")
	}
	return s.send(ctx, "verification", mailer.VerificationCode(account.Email, account.FullName, code)), nil
}

// LoginResult 登录结果
type LoginResult struct {
	Token        string         `json:"token"`
	RefreshToken string         `json:"refreshToken"`
	ExpiresIn    int64          `json:"expiresIn"`
	Account      *model.Account `json:"account"`
}

// Login 校验密码并签发令牌
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	account, err := s.store.GetAccountByEmail(ctx, NormalizeEmail(email))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.Unauthorized(MsgInvalidCredentials)
	}
	if err != nil {
		return nil, apperr.FromStorage(err, "Account")
	}
	if !s.hasher.Check(password, account.PasswordHash) {
		return nil, apperr.Unauthorized(MsgInvalidCredentials)
	}
	if !account.IsEmailVerified {
		return nil, apperr.Forbidden(MsgEmailNotVerified)
	}

	token, ttl, err := s.tokens.IssueAccess(account)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	refresh, err := s.tokens.IssueRefresh(account)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	s.log.WithContext(ctx).Info("account logged in", "account_id", account.ID)
	return &LoginResult{
		Token:        token,
		RefreshToken: refresh,
		ExpiresIn:    int64(ttl.Seconds()),
		Account:      account,
	}, nil
}

// Refresh 用刷新令牌换取新的访问令牌
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, int64, error) {
	user, err := s.tokens.Parse(refreshToken, auth.TokenTypeRefresh)
	if err != nil {
		return "", 0, apperr.Wrap(apperr.KindUnauthorized, err, MsgInvalidRefreshToken)
	}
	// 确保账号仍然存在
	account, err := s.store.GetAccount(ctx, user.ID)
	if errors.Is(err, storage.ErrNotFound) {
		return "", 0, apperr.Unauthorized(MsgInvalidRefreshToken)
	}
	if err != nil {
		return "", 0, apperr.FromStorage(err, "Account")
	}
	token, ttl, err := s.tokens.IssueAccess(account)
	if err != nil {
		return "", 0, apperr.Internal(err)
	}
	return token, int64(ttl.Seconds()), nil
}

// RequestPasswordReset 生成重置令牌并发邮件
//
// 不论邮箱是否存在都返回成功，避免枚举账号。
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	account, err := s.store.GetAccountByEmail(ctx, NormalizeEmail(email))
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return apperr.FromStorage(err, "Account")
	}

	token, err := auth.RandomToken(32)
	if err != nil {
		return apperr.Internal(err)
	}
	now := s.now().UTC()
	expires := now.Add(s.cfg.ResetTTL)
	account.ResetToken = token
	account.ResetExpires = &expires
	account.UpdatedAt = now
	if err := s.store.UpdateAccount(ctx, account); err != nil {
		return apperr.FromStorage(err, "Account")
	}

	link := strings.TrimRight(s.cfg.ResetBaseURL, "/") + "/" + token
	s.send(ctx, "password_reset", mailer.PasswordReset(account.Email, link))
	return nil
}

// ResetPassword 使用重置令牌设置新密码，令牌只能使用一次
func (s *Service) ResetPassword(ctx context.Context, token, password string) error {
	account, err := s.store.GetAccountByResetToken(ctx, strings.TrimSpace(token))
	if errors.Is(err, storage.ErrNotFound) {
		return apperr.Validation(MsgInvalidResetToken)
	}
	if err != nil {
		return apperr.FromStorage(err, "Account")
	}
	now := s.now().UTC()
	if account.ResetExpires == nil || now.After(*account.ResetExpires) {
		return apperr.Validation(MsgInvalidResetToken)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return apperr.Internal(err)
	}
	account.PasswordHash = hash
	account.ResetToken = ""
	account.ResetExpires = nil
	account.UpdatedAt = now
	if err := s.store.UpdateAccount(ctx, account); err != nil {
		return apperr.FromStorage(err, "Account")
	}
	s.log.WithContext(ctx).Info("password reset", "account_id", account.ID)
	return nil
}

// Profile 当前账号
func (s *Service) Profile(ctx context.Context, id int64) (*model.Account, error) {
	account, err := s.store.GetAccount(ctx, id)
	if err != nil {
		return nil, apperr.FromStorage(err, "Account")
	}
	return account, nil
}

// ProfileUpdate 可修改的资料字段，nil 表示不修改
type ProfileUpdate struct {
	FullName      *string
	ContactNumber *string
}

// UpdateProfile 修改姓名和联系电话
func (s *Service) UpdateProfile(ctx context.Context, id int64, upd ProfileUpdate) (*model.Account, error) {
	account, err := s.store.GetAccount(ctx, id)
	if err != nil {
		return nil, apperr.FromStorage(err, "Account")
	}
	if upd.FullName != nil {
		name := strings.TrimSpace(*upd.FullName)
		if name == "" {
			return nil, apperr.Validation("Full name cannot be empty.")
		}
		account.FullName = name
	}
	if upd.ContactNumber != nil {
		account.ContactNumber = strings.TrimSpace(*upd.ContactNumber)
	}
	account.UpdatedAt = s.now().UTC()
	if err := s.store.UpdateAccount(ctx, account); err != nil {
		return nil, apperr.FromStorage(err, "Account")
	}
	return account, nil
}

// EnsureAdmin 启动时确保管理员账号存在
//
// 未配置邮箱或密码时跳过；账号已存在但不是管理员时补充 admin 角色。
func (s *Service) EnsureAdmin(ctx context.Context, email, password string) error {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil
	}

	existing, err := s.store.GetAccountByEmail(ctx, email)
	if err == nil {
		if existing.HasRole(model.RoleAdmin) {
			s.log.Info("admin account already exists", "account_id", existing.ID)
			return nil
		}
		existing.Roles = append(existing.Roles, model.RoleAdmin)
		existing.UpdatedAt = s.now().UTC()
		s.log.Info("upgrading account to admin", "account_id", existing.ID)
		return s.store.UpdateAccount(ctx, existing)
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return err
	}
	now := s.now().UTC()
	admin := &model.Account{
		FullName:        "Admin",
		Email:           email,
		PasswordHash:    hash,
		Roles:           []model.Role{model.RoleUser, model.RoleAdmin},
		IsEmailVerified: true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.store.CreateAccount(ctx, admin); err != nil {
		return err
	}
	s.metrics.IDAllocated(storage.CollectionAccounts)
	s.log.Info("created admin account", "account_id", admin.ID)
	return nil
}

// send 发送邮件，失败只记录日志
func (s *Service) send(ctx context.Context, kind string, msg mailer.Message) bool {
	err := s.mail.Send(ctx, msg)
	s.metrics.MailSent(kind, err)
	if err != nil {
		s.log.WithContext(ctx).WithError(err).Warn("send mail failed", "kind", kind)
		return false
	}
	return true
}
