package subscription

import (
	"net/http"

	"pocketfiler/internal/apiserver/auth"
	"pocketfiler/internal/apiserver/httpapi"
	"pocketfiler/internal/shared/model"
)

// Handler 订阅 HTTP 处理器
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /subscriptions", h.Create)
	mux.HandleFunc("GET /subscriptions/active", h.Active)
	mux.HandleFunc("GET /subscriptions/{id}", h.Get)
	mux.HandleFunc("POST /subscriptions/{id}/pay", h.Pay)
	mux.HandleFunc("POST /subscriptions/{id}/cancel", h.Cancel)
}

type createRequest struct {
	UserID       int64  `json:"userId" validate:"min=0"`
	PlanType     string `json:"planType" validate:"required,oneof=Free Pro Ultimate"`
	BillingCycle string `json:"billingCycle" validate:"required,oneof=Monthly Yearly"`
	AutoRenew    *bool  `json:"autoRenew"`
}

type payRequest struct {
	PaymentMethod string `json:"paymentMethod" validate:"required"`
}

// Create 路由: POST /subscriptions
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	user, err := auth.RequireUser(r)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	var req createRequest
	if err := httpapi.Decode(r, &req); err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	autoRenew := true
	if req.AutoRenew != nil {
		autoRenew = *req.AutoRenew
	}
	sub, err := h.svc.Create(r.Context(), user, CreateInput{
		UserID:       req.UserID,
		PlanType:     model.PlanType(req.PlanType),
		BillingCycle: model.BillingCycle(req.BillingCycle),
		AutoRenew:    autoRenew,
	})
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusCreated, sub)
}

// Active 路由: GET /subscriptions/active?userId=
func (h *Handler) Active(w http.ResponseWriter, r *http.Request) {
	user, err := auth.RequireUser(r)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	userID, err := httpapi.QueryID(r, "userId")
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	sub, err := h.svc.Active(r.Context(), user, userID)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, sub)
}

// Get 路由: GET /subscriptions/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	user, id, ok := target(w, r)
	if !ok {
		return
	}
	sub, err := h.svc.Get(r.Context(), user, id)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, sub)
}

// Pay 路由: POST /subscriptions/{id}/pay
func (h *Handler) Pay(w http.ResponseWriter, r *http.Request) {
	user, id, ok := target(w, r)
	if !ok {
		return
	}
	var req payRequest
	if err := httpapi.Decode(r, &req); err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	sub, err := h.svc.Pay(r.Context(), user, id, req.PaymentMethod)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, sub)
}

// Cancel 路由: POST /subscriptions/{id}/cancel
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	user, id, ok := target(w, r)
	if !ok {
		return
	}
	sub, err := h.svc.Cancel(r.Context(), user, id)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, sub)
}

func target(w http.ResponseWriter, r *http.Request) (*auth.AuthUser, int64, bool) {
	user, err := auth.RequireUser(r)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return nil, 0, false
	}
	id, err := httpapi.PathID(r, "id")
	if err != nil {
		httpapi.WriteError(w, r, err)
		return nil, 0, false
	}
	return user, id, true
}
