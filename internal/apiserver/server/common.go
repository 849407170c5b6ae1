// Package server 组装 HTTP API
//
// 本包负责把各领域包的处理器挂到同一个路由上：
//   - common.go: Handler 定义、依赖组装、健康检查
//   - handler.go: 路由表与中间件链
//   - middleware.go: 请求 ID、访问日志、CORS
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"pocketfiler/internal/apiserver/account"
	"pocketfiler/internal/apiserver/associate"
	"pocketfiler/internal/apiserver/audit"
	"pocketfiler/internal/apiserver/auth"
	"pocketfiler/internal/apiserver/contract"
	"pocketfiler/internal/apiserver/dispute"
	"pocketfiler/internal/apiserver/httpapi"
	"pocketfiler/internal/apiserver/metrics"
	"pocketfiler/internal/apiserver/project"
	"pocketfiler/internal/apiserver/smartcontract"
	"pocketfiler/internal/apiserver/subscription"
	"pocketfiler/internal/config"
	"pocketfiler/internal/shared/eventbus"
	"pocketfiler/internal/shared/mailer"
	objstore "pocketfiler/internal/shared/minio"
	"pocketfiler/internal/shared/payment"
	"pocketfiler/internal/shared/storage"
	"pocketfiler/pkg/logging"
)

var log = logging.Default("server")

// Deps 外部协作方
//
// Redis 为 nil 时限流退化为进程内实现。
type Deps struct {
	Store    storage.Store
	Redis    *redis.Client
	Events   eventbus.EventBus
	Mail     mailer.Sender
	Files    objstore.FileStore
	Payments payment.Gateway
	Tokens   auth.TokenIssuer
	Hasher   *auth.PasswordHasher
	Metrics  *metrics.Metrics
}

// Handler API 处理器
//
// 持有各领域服务，Router 把它们的路由注册到同一个 ServeMux。
type Handler struct {
	cfg     *config.Config
	store   storage.Store
	files   objstore.FileStore
	tokens  auth.TokenIssuer
	limiter auth.Limiter
	ips     *auth.IPResolver
	metrics *metrics.Metrics
	events  eventbus.Reader

	accounts      *account.Service
	associates    *associate.Service
	contracts     *contract.Service
	disputes      *dispute.Service
	projects      *project.Service
	smart         *smartcontract.Service
	subscriptions *subscription.Service
}

// NewHandler 创建 Handler 并组装所有领域服务
func NewHandler(cfg *config.Config, deps Deps) *Handler {
	hasher := deps.Hasher
	if hasher == nil {
		hasher = auth.NewPasswordHasher(cfg.Auth.BcryptCost)
	}

	if deps.Metrics == nil {
		deps.Metrics = metrics.NewMetrics("pocketfiler", nil)
	}

	var limiter auth.Limiter
	if deps.Redis != nil {
		limiter = auth.NewRedisLimiter(deps.Redis)
	} else {
		limiter = auth.NewMemoryLimiter()
	}

	// 地址已由 config.Validate 校验，这里出错只可能是手工构造的配置
	ips, err := auth.NewIPResolver(cfg.RateLimit.TrustedProxies)
	if err != nil {
		log.WithError(err).Warn("ignoring trusted proxies")
		ips = nil
	}

	events := deps.Events
	if events == nil {
		events = eventbus.NewMemoryEventBus()
	}
	recorder := audit.NewRecorder(events, deps.Metrics, logging.Default("audit"))

	return &Handler{
		cfg:     cfg,
		store:   deps.Store,
		files:   deps.Files,
		tokens:  deps.Tokens,
		limiter: limiter,
		ips:     ips,
		metrics: deps.Metrics,
		events:  events,

		accounts: account.NewService(deps.Store, deps.Mail, hasher, deps.Tokens, deps.Metrics, account.Config{
			VerificationTTL: cfg.App.VerificationTTL,
			ResetTTL:        cfg.App.ResetTTL,
			ResetBaseURL:    cfg.App.ResetBaseURL,
		}),
		associates:    associate.NewService(deps.Store, deps.Mail, recorder, deps.Metrics, cfg.App.InviteBaseURL),
		contracts:     contract.NewService(deps.Store, deps.Files, deps.Mail, deps.Metrics),
		disputes:      dispute.NewService(deps.Store, deps.Files, recorder, deps.Metrics),
		projects:      project.NewService(deps.Store, deps.Files, deps.Metrics),
		smart:         smartcontract.NewService(deps.Store, deps.Metrics),
		subscriptions: subscription.NewService(deps.Store, deps.Payments, recorder, deps.Metrics),
	}
}

// Accounts 账号服务，启动时用于创建初始管理员
func (h *Handler) Accounts() *account.Service {
	return h.accounts
}

// NewExpirer 创建订阅过期扫描器
func (h *Handler) NewExpirer() *subscription.Expirer {
	return subscription.NewExpirer(h.subscriptions, h.cfg.Subscription.ExpireInterval, h.cfg.Subscription.ExpireBatch)
}

// Health 健康检查接口
//
// 路由: GET /health
//
// 存储不可达时返回 503，便于负载均衡器摘除实例。
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		log.WithContext(ctx).WithError(err).Warn("health check failed")
		httpapi.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
