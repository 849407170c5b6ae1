package contract

import (
	"context"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path"

	"pocketfiler/internal/apiserver/auth"
	"pocketfiler/internal/apiserver/httpapi"
	"pocketfiler/internal/shared/apperr"
	"pocketfiler/internal/shared/model"
	"pocketfiler/pkg/logging"
)

var log = logging.Default("contract-http")

// Handler 合同 HTTP 处理器
type Handler struct {
	svc            *Service
	maxUploadBytes int64
}

func NewHandler(svc *Service, maxUploadBytes int64) *Handler {
	return &Handler{svc: svc, maxUploadBytes: maxUploadBytes}
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /contracts", h.Create)
	mux.HandleFunc("GET /contracts", h.List)
	mux.HandleFunc("GET /contracts/{id}", h.Get)
	mux.HandleFunc("POST /contracts/{id}/file", h.UploadFile)
	mux.HandleFunc("POST /contracts/{id}/signature", h.UploadSignature)
	mux.HandleFunc("GET /contracts/{id}/preview", h.Preview)
	mux.HandleFunc("GET /contracts/{id}/file", h.Download)
	mux.HandleFunc("POST /contracts/{id}/share", h.Share)
}

type createRequest struct {
	Name string `json:"name" validate:"required"`
	Type string `json:"type" validate:"required"`
}

type shareRequest struct {
	Associates []struct {
		Name  string `json:"name"`
		Email string `json:"email" validate:"required,emailfmt"`
	} `json:"associates" validate:"required,min=1,dive"`
}

// Create 路由: POST /contracts
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
	contract, err := h.svc.Create(r.Context(), user, req.Name, req.Type)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusCreated, contract)
}

// List 路由: GET /contracts?page=&limit=
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

// Get 路由: GET /contracts/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	user, id, ok := h.target(w, r)
	if !ok {
		return
	}
	contract, err := h.svc.Get(r.Context(), user, id)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, contract)
}

// UploadFile 路由: POST /contracts/{id}/file，表单字段 contractFile
func (h *Handler) UploadFile(w http.ResponseWriter, r *http.Request) {
	h.upload(w, r, "contractFile", h.svc.UploadFile)
}

// UploadSignature 路由: POST /contracts/{id}/signature，表单字段 signature
func (h *Handler) UploadSignature(w http.ResponseWriter, r *http.Request) {
	h.upload(w, r, "signature", h.svc.UploadSignature)
}

type uploadFunc func(ctx context.Context, user *auth.AuthUser, id int64, fh *multipart.FileHeader) (*model.Contract, error)

func (h *Handler) upload(w http.ResponseWriter, r *http.Request, field string, fn uploadFunc) {
	user, id, ok := h.target(w, r)
	if !ok {
		return
	}
	if err := httpapi.ParseMultipart(w, r, h.maxUploadBytes); err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	fh := httpapi.FormFile(r, field)
	if fh == nil {
		httpapi.WriteError(w, r, apperr.Validation("No file uploaded."))
		return
	}
	contract, err := fn(r.Context(), user, id, fh)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, contract)
}

// Preview 路由: GET /contracts/{id}/preview
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	user, id, ok := h.target(w, r)
	if !ok {
		return
	}
	contract, err := h.svc.Preview(r.Context(), user, id)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"id":           contract.ID,
		"name":         contract.Name,
		"fileRef":      contract.FileRef,
		"signatureRef": contract.SignatureRef,
	})
}

// Download 路由: GET /contracts/{id}/file，以附件形式返回合同文件
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	user, id, ok := h.target(w, r)
	if !ok {
		return
	}
	file, err := h.svc.Download(r.Context(), user, id)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	defer file.Body.Close()

	w.Header().Set("Content-Type", contentType(file.Name))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": file.Name}))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, file.Body); err != nil {
		log.WithContext(r.Context()).WithError(err).Warn("stream contract file failed", "contract_id", id)
	}
}

func contentType(name string) string {
	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// Share 路由: POST /contracts/{id}/share
func (h *Handler) Share(w http.ResponseWriter, r *http.Request) {
	user, id, ok := h.target(w, r)
	if !ok {
		return
	}
	var req shareRequest
	if err := httpapi.Decode(r, &req); err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	recipients := make([]Recipient, 0, len(req.Associates))
	for _, a := range req.Associates {
		recipients = append(recipients, Recipient{Name: a.Name, Email: a.Email})
	}
	res, err := h.svc.Share(r.Context(), user, id, recipients)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"contract": res.Contract,
		"added":    len(res.Added),
		"notified": res.Notified,
	})
}

// target 认证用户与路径中的合同 ID
func (h *Handler) target(w http.ResponseWriter, r *http.Request) (*auth.AuthUser, int64, bool) {
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
