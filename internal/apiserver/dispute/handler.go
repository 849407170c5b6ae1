package dispute

import (
	"net/http"

	"pocketfiler/internal/apiserver/auth"
	"pocketfiler/internal/apiserver/httpapi"
	"pocketfiler/internal/shared/apperr"
	"pocketfiler/internal/shared/model"
)

// Handler 争议 HTTP 处理器
type Handler struct {
	svc            *Service
	maxUploadBytes int64
}

func NewHandler(svc *Service, maxUploadBytes int64) *Handler {
	return &Handler{svc: svc, maxUploadBytes: maxUploadBytes}
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /disputes", h.Create)
	mux.HandleFunc("GET /disputes", h.List)
	mux.HandleFunc("GET /disputes/{id}", h.Get)
	mux.HandleFunc("POST /disputes/{id}/messages", h.AddMessage)
	mux.HandleFunc("POST /disputes/{id}/documents", h.UploadDocuments)
	mux.HandleFunc("POST /disputes/{id}/withdraw", h.transition(model.DisputeStatusWithdrawn))
	mux.HandleFunc("POST /disputes/{id}/close", h.transition(model.DisputeStatusClosed))
}

type createRequest struct {
	ProjectID      int64  `json:"projectId" validate:"required,min=1"`
	UserID         int64  `json:"userId" validate:"required,min=1"`
	InitialMessage string `json:"initialMessage" validate:"required"`
	Title          string `json:"title"`
	AssociateID    int64  `json:"associateId" validate:"min=0"`
	ContractID     int64  `json:"contractId" validate:"min=0"`
}

type messageRequest struct {
	SenderID int64  `json:"senderId" validate:"required,min=1"`
	Message  string `json:"message" validate:"required"`
}

// Create 路由: POST /disputes
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
	dispute, err := h.svc.Create(r.Context(), user, CreateInput{
		ProjectID:      req.ProjectID,
		UserID:         req.UserID,
		InitialMessage: req.InitialMessage,
		Title:          req.Title,
		AssociateID:    req.AssociateID,
		ContractID:     req.ContractID,
	})
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusCreated, dispute)
}

// List 路由: GET /disputes?status=&userId=&page=&limit=
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
	userID, err := httpapi.QueryID(r, "userId")
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	status := model.DisputeStatus(r.URL.Query().Get("status"))
	switch status {
	case "", model.DisputeStatusOpen, model.DisputeStatusClosed, model.DisputeStatusWithdrawn:
	default:
		httpapi.WriteError(w, r, apperr.Validation("Invalid status."))
		return
	}

	items, total, err := h.svc.List(r.Context(), user, ListFilter{
		UserID: userID,
		Status: status,
		Limit:  p.Limit,
		Offset: p.Offset(),
	})
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, model.NewPage(items, total, p.Page, p.Limit))
}

// Get 路由: GET /disputes/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	user, id, ok := target(w, r)
	if !ok {
		return
	}
	dispute, err := h.svc.Get(r.Context(), user, id)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, dispute)
}

// AddMessage 路由: POST /disputes/{id}/messages
func (h *Handler) AddMessage(w http.ResponseWriter, r *http.Request) {
	user, id, ok := target(w, r)
	if !ok {
		return
	}
	var req messageRequest
	if err := httpapi.Decode(r, &req); err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	dispute, err := h.svc.AddMessage(r.Context(), user, id, req.SenderID, req.Message)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, dispute)
}

// UploadDocuments 路由: POST /disputes/{id}/documents
//
// multipart 字段: files[]、description、uploadedByRole（associate|client，默认 client）
func (h *Handler) UploadDocuments(w http.ResponseWriter, r *http.Request) {
	user, id, ok := target(w, r)
	if !ok {
		return
	}
	if err := httpapi.ParseMultipart(w, r, h.maxUploadBytes); err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	files := httpapi.FormFiles(r, "files")
	if len(files) == 0 {
		httpapi.WriteError(w, r, apperr.Validation("No files uploaded."))
		return
	}

	role := model.UploaderRole(r.FormValue("uploadedByRole"))
	switch role {
	case "":
		role = model.UploaderClient
	case model.UploaderAssociate, model.UploaderClient:
	default:
		httpapi.WriteError(w, r, apperr.Validation("Invalid uploadedByRole."))
		return
	}

	dispute, err := h.svc.UploadDocuments(r.Context(), user, id, UploadInput{
		Files:          files,
		Description:    r.FormValue("description"),
		UploadedByRole: role,
	})
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, dispute)
}

// transition POST /disputes/{id}/withdraw|close
func (h *Handler) transition(to model.DisputeStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, id, ok := target(w, r)
		if !ok {
			return
		}
		dispute, err := h.svc.Transition(r.Context(), user, id, to)
		if err != nil {
			httpapi.WriteError(w, r, err)
			return
		}
		httpapi.WriteJSON(w, http.StatusOK, dispute)
	}
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
