// Package auth 用户认证：JWT 令牌签发、密码哈希、HTTP 中间件、登录限流
package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"pocketfiler/internal/shared/model"
)

// contextKey context 键类型
type contextKey string

const ctxKeyAuthUser contextKey = "auth_user"

// 令牌类型
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// ErrInvalidToken 令牌无效、过期或类型不符
var ErrInvalidToken = errors.New("invalid or expired token")

// AuthUser 从 JWT 解析出的用户信息
type AuthUser struct {
	ID    int64
	Email string
	Role  model.Role
}

// IsAdmin 管理员不受租户限制
func (u *AuthUser) IsAdmin() bool {
	return u != nil && u.Role == model.RoleAdmin
}

// TenantID 查询时使用的租户 ID，管理员返回 0 表示不限租户
func (u *AuthUser) TenantID() int64 {
	if u.IsAdmin() {
		return 0
	}
	return u.ID
}

// CanAccess 是否可以访问属于 ownerID 的资源
func (u *AuthUser) CanAccess(ownerID int64) bool {
	return u.IsAdmin() || (u != nil && u.ID == ownerID)
}

// Config 认证配置
type Config struct {
	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	BcryptCost      int
}

// DefaultConfig 返回默认认证配置
func DefaultConfig() Config {
	return Config{
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 7 * 24 * time.Hour,
		BcryptCost:      12,
	}
}

// ============================================================================
// 密码哈希
// ============================================================================

// PasswordHasher bcrypt 密码哈希
type PasswordHasher struct {
	cost int
}

// NewPasswordHasher cost 不在 bcrypt 允许范围内时使用默认值
func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &PasswordHasher{cost: cost}
}

// Hash 使用 bcrypt 哈希密码
func (h *PasswordHasher) Hash(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	return string(bytes), err
}

// Check 验证密码
func (h *PasswordHasher) Check(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ============================================================================
// JWT Token
// ============================================================================

// Claims JWT 声明
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	Type  string `json:"type,omitempty"` // "access" | "refresh"
}

// TokenIssuer 令牌签发与校验
type TokenIssuer interface {
	IssueAccess(account *model.Account) (token string, expiresIn time.Duration, err error)
	IssueRefresh(account *model.Account) (string, error)
	// Parse 校验签名、有效期和令牌类型
	Parse(token, tokenType string) (*AuthUser, error)
}

// JWTIssuer HS256 令牌签发
type JWTIssuer struct {
	cfg Config
	now func() time.Time
}

// NewJWTIssuer 创建令牌签发器
func NewJWTIssuer(cfg Config) (*JWTIssuer, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("jwt secret is required")
	}
	def := DefaultConfig()
	if cfg.AccessTokenTTL <= 0 {
		cfg.AccessTokenTTL = def.AccessTokenTTL
	}
	if cfg.RefreshTokenTTL <= 0 {
		cfg.RefreshTokenTTL = def.RefreshTokenTTL
	}
	return &JWTIssuer{cfg: cfg, now: time.Now}, nil
}

func (j *JWTIssuer) sign(account *model.Account, tokenType string, ttl time.Duration) (string, error) {
	now := j.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(account.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Type: tokenType,
	}
	if tokenType == TokenTypeAccess {
		claims.Email = account.Email
		claims.Role = string(account.PrimaryRole())
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(j.cfg.JWTSecret))
}

// IssueAccess 生成访问令牌
func (j *JWTIssuer) IssueAccess(account *model.Account) (string, time.Duration, error) {
	token, err := j.sign(account, TokenTypeAccess, j.cfg.AccessTokenTTL)
	return token, j.cfg.AccessTokenTTL, err
}

// IssueRefresh 生成刷新令牌
func (j *JWTIssuer) IssueRefresh(account *model.Account) (string, error) {
	return j.sign(account, TokenTypeRefresh, j.cfg.RefreshTokenTTL)
}

// Parse 解析并验证 JWT
func (j *JWTIssuer) Parse(tokenString, tokenType string) (*AuthUser, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(j.cfg.JWTSecret), nil
	}, jwt.WithTimeFunc(j.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Type != tokenType {
		return nil, fmt.Errorf("%w: unexpected token type %q", ErrInvalidToken, claims.Type)
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id < 1 {
		return nil, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}
	return &AuthUser{ID: id, Email: claims.Email, Role: model.Role(claims.Role)}, nil
}

var _ TokenIssuer = (*JWTIssuer)(nil)

// ============================================================================
// Context 辅助函数
// ============================================================================

// WithAuthUser 将认证用户信息注入 context
func WithAuthUser(ctx context.Context, user *AuthUser) context.Context {
	return context.WithValue(ctx, ctxKeyAuthUser, user)
}

// GetAuthUser 从 context 获取认证用户
func GetAuthUser(ctx context.Context) *AuthUser {
	user, _ := ctx.Value(ctxKeyAuthUser).(*AuthUser)
	return user
}
