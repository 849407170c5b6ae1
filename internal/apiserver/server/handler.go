package server

import (
	"net/http"

	"pocketfiler/internal/apiserver/account"
	"pocketfiler/internal/apiserver/associate"
	"pocketfiler/internal/apiserver/audit"
	"pocketfiler/internal/apiserver/auth"
	"pocketfiler/internal/apiserver/contract"
	"pocketfiler/internal/apiserver/dashboard"
	"pocketfiler/internal/apiserver/dispute"
	"pocketfiler/internal/apiserver/project"
	"pocketfiler/internal/apiserver/smartcontract"
	"pocketfiler/internal/apiserver/subscription"
	objstore "pocketfiler/internal/shared/minio"
)

// Router 返回配置好的 HTTP 路由
//
// 路由规则：
//
// 基础:
//   - GET  /health   - 健康检查（含存储连通性）
//   - GET  /metrics  - Prometheus 指标
//   - GET  /files/*  - 本地文件存储的静态文件（仅未配置 MinIO 时）
//
// 账号 (Account):
//   - POST /accounts, /accounts/verify, /accounts/login, /accounts/refresh ...
//   - GET|PATCH /accounts/me
//
// 合作者 (Associate):
//   - POST /associates/invite, POST /associates, GET /associates ...
//   - POST /invitations/{token}/accept|reject
//
// 合同/争议/项目/订阅:
//   - /contracts, /smart-contracts, /disputes, /projects, /subscriptions
//
// 其它:
//   - GET /dashboard/summary
//   - GET /audit/{entity}/{id} - 生命周期事件（管理员）
//   - GET /ws/audit/{entity}/{id} - 生命周期事件实时推送（管理员，WebSocket）
func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.Health)
	mux.Handle("GET /metrics", h.metrics.Handler())
	if files := objstore.Handler(h.files); files != nil {
		mux.Handle("GET "+objstore.DefaultURLPrefix, files)
	}

	maxUpload := h.cfg.APIServer.MaxUploadBytes

	account.NewHandler(h.accounts, account.Limits{
		Limiter:         h.limiter,
		IPs:             h.ips,
		LoginPerMinute:  h.cfg.RateLimit.LoginPerMinute,
		SignupPerMinute: h.cfg.RateLimit.SignupPerMinute,
		VerifyPerMinute: h.cfg.RateLimit.VerifyPerMinute,
	}).RegisterRoutes(mux)
	associate.NewHandler(h.associates).RegisterRoutes(mux)
	contract.NewHandler(h.contracts, maxUpload).RegisterRoutes(mux)
	dispute.NewHandler(h.disputes, maxUpload).RegisterRoutes(mux)
	project.NewHandler(h.projects, maxUpload).RegisterRoutes(mux)
	smartcontract.NewHandler(h.smart).RegisterRoutes(mux)
	subscription.NewHandler(h.subscriptions).RegisterRoutes(mux)
	dashboard.NewHandler(h.store).RegisterRoutes(mux)
	auditHandler := audit.NewHandler(h.events)
	auditHandler.RegisterRoutes(mux)

	// 指标中间件紧贴 mux，才能读到匹配后的路由模式
	var handler http.Handler = h.metrics.MetricsMiddleware(mux)
	handler = auth.Middleware(h.tokens)(handler)
	handler = accessLog(h.ips, handler)
	handler = requestID(handler)

	// WebSocket 绕过 metrics 等中间件（避免 http.Hijacker 问题）
	topMux := http.NewServeMux()
	auditHandler.RegisterWatch(topMux, auth.Middleware(h.tokens))
	topMux.Handle("/", cors(h.cfg.APIServer.CORSOrigin)(handler))
	return topMux
}
