// Package dashboard 租户概览
package dashboard

import (
	"net/http"

	"pocketfiler/internal/apiserver/auth"
	"pocketfiler/internal/apiserver/httpapi"
	"pocketfiler/internal/shared/apperr"
	"pocketfiler/internal/shared/storage"
)

type Handler struct {
	store storage.SummaryStore
}

func NewHandler(store storage.SummaryStore) *Handler {
	return &Handler{store: store}
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /dashboard/summary", h.Summary)
}

// Summary 项目、合同、未结争议和协作者数量；管理员统计全部租户
//
// 路由: GET /dashboard/summary
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	user, err := auth.RequireUser(r)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	summary, err := h.store.Summary(r.Context(), user.TenantID())
	if err != nil {
		httpapi.WriteError(w, r, apperr.FromStorage(err, "Summary"))
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, summary)
}
