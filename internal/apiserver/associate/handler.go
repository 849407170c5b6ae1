package associate

import (
	"net/http"

	"pocketfiler/internal/apiserver/auth"
	"pocketfiler/internal/apiserver/httpapi"
	"pocketfiler/internal/shared/apperr"
	"pocketfiler/internal/shared/model"
)

// Handler 协作者 HTTP 处理器
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes 注册协作者路由
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /associates/invite", h.Invite)
	mux.HandleFunc("POST /associates", h.Add)
	mux.HandleFunc("GET /associates", h.List)
	mux.HandleFunc("GET /associates/{id}", h.Get)
	mux.HandleFunc("POST /associates/{id}/accept", h.respond(model.AssociateStatusAccepted))
	mux.HandleFunc("POST /associates/{id}/reject", h.respond(model.AssociateStatusRejected))
	mux.HandleFunc("DELETE /associates/{id}", h.Delete)

	// 被邀请人通过链接访问，无需登录
	mux.HandleFunc("POST /invitations/{token}/accept", h.respondByToken(model.AssociateStatusAccepted))
	mux.HandleFunc("POST /invitations/{token}/reject", h.respondByToken(model.AssociateStatusRejected))
}

type addRequest struct {
	Name  string `json:"name"`
	Email string `json:"email" validate:"required,emailfmt"`
	Role  string `json:"role"`
}

type inviteRequest struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,emailfmt"`
	Role  string `json:"role"`
}

type inviteResponse struct {
	*model.Associate
	MailSent bool `json:"mailSent"`
}

// Invite 邀请协作者
//
// 路由: POST /associates/invite
func (h *Handler) Invite(w http.ResponseWriter, r *http.Request) {
	user, err := auth.RequireUser(r)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	var req inviteRequest
	if err := httpapi.Decode(r, &req); err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	res, err := h.svc.Invite(r.Context(), user, AddInput{Name: req.Name, Email: req.Email, Role: req.Role})
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusCreated, inviteResponse{Associate: res.Associate, MailSent: res.MailSent})
}

// Add 手动添加协作者
//
// 路由: POST /associates
func (h *Handler) Add(w http.ResponseWriter, r *http.Request) {
	user, err := auth.RequireUser(r)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	var req addRequest
	if err := httpapi.Decode(r, &req); err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	associate, err := h.svc.Add(r.Context(), user, AddInput{Name: req.Name, Email: req.Email, Role: req.Role})
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusCreated, associate)
}

// List 协作者列表
//
// 路由: GET /associates?status=&page=&limit=
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	user, err := auth.RequireUser(r)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	p, err := httpapi.ParsePagination(r)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}

	status := model.AssociateStatus(r.URL.Query().Get("status"))
	switch status {
	case "", model.AssociateStatusPending, model.AssociateStatusAccepted, model.AssociateStatusRejected:
	default:
		httpapi.WriteError(w, r, apperr.Validation("Invalid status."))
		return
	}

	items, total, err := h.svc.List(r.Context(), user, status, p.Limit, p.Offset())
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, model.NewPage(items, total, p.Page, p.Limit))
}

// Get 协作者详情
//
// 路由: GET /associates/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := auth.RequireUser(r)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	id, err := httpapi.PathID(r, "id")
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	associate, err := h.svc.Get(r.Context(), user, id)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, associate)
}

// respond POST /associates/{id}/accept|reject
func (h *Handler) respond(to model.AssociateStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := auth.RequireUser(r)
		if err != nil {
			httpapi.WriteError(w, r, err)
			return
		}
		id, err := httpapi.PathID(r, "id")
		if err != nil {
			httpapi.WriteError(w, r, err)
			return
		}
		associate, err := h.svc.Respond(r.Context(), user, id, to)
		if err != nil {
			httpapi.WriteError(w, r, err)
			return
		}
		httpapi.WriteJSON(w, http.StatusOK, associate)
	}
}

// respondByToken POST /invitations/{token}/accept|reject
func (h *Handler) respondByToken(to model.AssociateStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		associate, err := h.svc.RespondByToken(r.Context(), r.PathValue("token"), to)
		if err != nil {
			httpapi.WriteError(w, r, err)
			return
		}
		httpapi.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"id":     associate.ID,
			"email":  associate.Email,
			"status": associate.Status,
		})
	}
}

// Delete 删除协作者
//
// 路由: DELETE /associates/{id}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	user, err := auth.RequireUser(r)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	id, err := httpapi.PathID(r, "id")
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	if err := h.svc.Delete(r.Context(), user, id); err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.NoContent(w)
}
