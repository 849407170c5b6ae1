package audit

import (
	"net/http"
	"strconv"
	"time"

	"pocketfiler/internal/apiserver/auth"
	"pocketfiler/internal/apiserver/httpapi"
	"pocketfiler/internal/shared/apperr"
	"pocketfiler/internal/shared/eventbus"
)

// 可查询的实体类型
var entities = map[string]bool{
	"associate":    true,
	"dispute":      true,
	"subscription": true,
}

const (
	defaultEventLimit = 50
	maxEventLimit     = 500
)

// Handler 审计查询处理器
type Handler struct {
	events       eventbus.Reader
	pollInterval time.Duration
}

func NewHandler(events eventbus.Reader) *Handler {
	return &Handler{events: events, pollInterval: defaultPollInterval}
}

// RegisterRoutes 注册审计路由（仅管理员）
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /audit/{entity}/{id}", auth.AdminOnly(h.List))
}

// List 实体最近的生命周期事件，新事件在前
//
// 路由: GET /audit/{entity}/{id}?limit=
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	entity, id, err := target(r)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}

	limit := int64(defaultEventLimit)
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 1 {
			httpapi.WriteError(w, r, apperr.Validation("Invalid limit."))
			return
		}
		limit = min(n, maxEventLimit)
	}

	events, err := h.events.Recent(r.Context(), entity, id, limit)
	if err != nil {
		httpapi.WriteError(w, r, apperr.Unavailable(err))
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"entity": entity,
		"id":     id,
		"events": events,
	})
}

// target 解析路径中的实体类型和 ID
func target(r *http.Request) (string, int64, error) {
	entity := r.PathValue("entity")
	if !entities[entity] {
		return "", 0, apperr.Validation("Unknown entity %q.", entity)
	}
	id, err := httpapi.PathID(r, "id")
	if err != nil {
		return "", 0, err
	}
	return entity, id, nil
}
