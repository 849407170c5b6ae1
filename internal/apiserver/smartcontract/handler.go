package smartcontract

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"pocketfiler/internal/apiserver/auth"
	"pocketfiler/internal/apiserver/httpapi"
	"pocketfiler/internal/shared/model"
)

// Handler 智能合同 HTTP 处理器
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /smart-contracts", h.Create)
	mux.HandleFunc("GET /smart-contracts", h.List)
	mux.HandleFunc("GET /smart-contracts/{id}", h.Get)
}

// totalAmount 和 budget 接受数字或数字字符串
type createRequest struct {
	Title        string              `json:"title"`
	TotalAmount  decimal.Decimal     `json:"totalAmount"`
	Description  string              `json:"description"`
	StartDate    *time.Time          `json:"startDate"`
	EndDate      *time.Time          `json:"endDate"`
	Budget       decimal.NullDecimal `json:"budget"`
	Organization string              `json:"organization"`
	Priority     string              `json:"priority"`
	Type         string              `json:"type"`
	AvatarURL    string              `json:"avatarUrl"`
	Tags         []string            `json:"tags"`
	Milestones   []model.Milestone   `json:"milestones"`
}

type createResponse struct {
	SmartContractID int64                `json:"smartContractId"`
	Message         string               `json:"message"`
	Contract        *model.SmartContract `json:"contract"`
}

// Create 路由: POST /smart-contracts
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
	c, err := h.svc.Create(r.Context(), user, CreateInput{
		Title:        req.Title,
		TotalAmount:  req.TotalAmount,
		Description:  req.Description,
		StartDate:    req.StartDate,
		EndDate:      req.EndDate,
		Budget:       req.Budget,
		Organization: req.Organization,
		Priority:     req.Priority,
		Type:         req.Type,
		AvatarURL:    req.AvatarURL,
		Tags:         req.Tags,
		Milestones:   req.Milestones,
	})
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusCreated, createResponse{
		SmartContractID: c.ID,
		Message:         MsgCreated,
		Contract:        c,
	})
}

// List 路由: GET /smart-contracts?page=&limit=
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
	items, total, err := h.svc.List(r.Context(), user, p.Limit, p.Offset())
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, model.NewPage(items, total, p.Page, p.Limit))
}

// Get 路由: GET /smart-contracts/{id}
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
	c, err := h.svc.Get(r.Context(), user, id)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, c)
}
