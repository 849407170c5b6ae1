package auth

import (
	"net/http"
	"strings"

	"pocketfiler/internal/apiserver/httpapi"
	"pocketfiler/internal/shared/apperr"
	"pocketfiler/pkg/logging"
)

var log = logging.Default("auth")

// 免认证路由白名单（前缀匹配）
var publicPrefixes = []string{
	"/accounts/verify",
	"/accounts/login",
	"/accounts/refresh",
	"/accounts/password-reset",
	"/invitations/",
	"/files/",
	"/health",
	"/metrics",
}

// 免认证路由精确匹配
var publicExact = map[string]bool{
	"POST /accounts": true,
}

func isPublicRoute(method, path string) bool {
	if publicExact[method+" "+path] {
		return true
	}
	for _, prefix := range publicPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// Middleware 创建 JWT 认证中间件
//
// 公开路由直接放行；其余路由要求 Bearer 访问令牌，解析出的用户注入 context。
func Middleware(issuer TokenIssuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions || isPublicRoute(r.Method, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			// 提取 Bearer Token
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				httpapi.WriteError(w, r, apperr.Unauthorized("Missing authorization header."))
				return
			}
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				httpapi.WriteError(w, r, apperr.Unauthorized("Invalid authorization header."))
				return
			}

			user, err := issuer.Parse(strings.TrimSpace(parts[1]), TokenTypeAccess)
			if err != nil {
				log.WithContext(r.Context()).Debug("token rejected", "error", err)
				httpapi.WriteError(w, r, apperr.Unauthorized("Invalid or expired token."))
				return
			}

			ctx := WithAuthUser(r.Context(), user)
			ctx = logging.WithAccountID(ctx, user.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AdminOnly 管理员专属路由中间件
func AdminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !GetAuthUser(r.Context()).IsAdmin() {
			httpapi.WriteError(w, r, apperr.Forbidden("Admin access required."))
			return
		}
		next(w, r)
	}
}

// RequireUser 返回当前认证用户，未认证时返回 401 错误
func RequireUser(r *http.Request) (*AuthUser, error) {
	user := GetAuthUser(r.Context())
	if user == nil {
		return nil, apperr.Unauthorized("Not authenticated.")
	}
	return user, nil
}
