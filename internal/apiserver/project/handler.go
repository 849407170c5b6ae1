package project

import (
	"net/http"
	"strconv"
	"time"

	"pocketfiler/internal/apiserver/auth"
	"pocketfiler/internal/apiserver/httpapi"
	"pocketfiler/internal/shared/apperr"
	"pocketfiler/internal/shared/model"
)

// Handler 项目 HTTP 处理器
type Handler struct {
	svc            *Service
	maxUploadBytes int64
}

func NewHandler(svc *Service, maxUploadBytes int64) *Handler {
	return &Handler{svc: svc, maxUploadBytes: maxUploadBytes}
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /projects", h.Create)
	mux.HandleFunc("GET /projects", h.List)
	mux.HandleFunc("GET /projects/{id}", h.Get)
	mux.HandleFunc("POST /projects/{id}/documents", h.UploadDocuments)
	mux.HandleFunc("POST /projects/{id}/activities", h.AddActivity)
	mux.HandleFunc("POST /projects/{id}/clients", h.AddClient)
	mux.HandleFunc("DELETE /projects/{id}/clients/{email}", h.RemoveClient)
	mux.HandleFunc("POST /projects/{id}/messages", h.SendMessage)
	mux.HandleFunc("GET /projects/{id}/messages", h.Messages)
}

type createRequest struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
	Date        string `json:"date"`
	Budget      *int64 `json:"budget" validate:"omitempty,min=0"`
}

type activityRequest struct {
	Description string `json:"description" validate:"required"`
}

type clientRequest struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,emailfmt"`
}

type messageRequest struct {
	Message     string `json:"message" validate:"required"`
	MessageType string `json:"messageType"`
}

// parseDate 接受 RFC3339 或 YYYY-MM-DD
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, apperr.Validation("Invalid date.")
	}
	return t, nil
}

// Create 路由: POST /projects
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
	date, err := parseDate(req.Date)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	project, err := h.svc.Create(r.Context(), user, CreateInput{
		Title:       req.Title,
		Description: req.Description,
		Date:        date,
		Budget:      req.Budget,
	})
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusCreated, project)
}

// List 路由: GET /projects?page=&limit=&search=&year=
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

	q := r.URL.Query()
	var year int
	if v := q.Get("year"); v != "" {
		year, err = strconv.Atoi(v)
		if err != nil || year < 1 || year > 9999 {
			httpapi.WriteError(w, r, apperr.Validation("Invalid year."))
			return
		}
	}

	items, total, err := h.svc.List(r.Context(), user, ListFilter{
		Search: q.Get("search"),
		Year:   year,
		Limit:  p.Limit,
		Offset: p.Offset(),
	})
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, model.NewPage(items, total, p.Page, p.Limit))
}

// Get 路由: GET /projects/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	user, id, ok := target(w, r)
	if !ok {
		return
	}
	project, err := h.svc.Get(r.Context(), user, id)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, project)
}

// UploadDocuments 路由: POST /projects/{id}/documents，multipart 字段 files[]
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
	project, err := h.svc.UploadDocuments(r.Context(), user, id, files)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, project)
}

// AddActivity 路由: POST /projects/{id}/activities
func (h *Handler) AddActivity(w http.ResponseWriter, r *http.Request) {
	user, id, ok := target(w, r)
	if !ok {
		return
	}
	var req activityRequest
	if err := httpapi.Decode(r, &req); err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	project, err := h.svc.AddActivity(r.Context(), user, id, req.Description)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, project)
}

// AddClient 路由: POST /projects/{id}/clients
func (h *Handler) AddClient(w http.ResponseWriter, r *http.Request) {
	user, id, ok := target(w, r)
	if !ok {
		return
	}
	var req clientRequest
	if err := httpapi.Decode(r, &req); err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	project, err := h.svc.AddClient(r.Context(), user, id, req.Name, req.Email)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, project)
}

// RemoveClient 路由: DELETE /projects/{id}/clients/{email}
func (h *Handler) RemoveClient(w http.ResponseWriter, r *http.Request) {
	user, id, ok := target(w, r)
	if !ok {
		return
	}
	project, err := h.svc.RemoveClient(r.Context(), user, id, r.PathValue("email"))
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, project)
}

// SendMessage 路由: POST /projects/{id}/messages
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	user, id, ok := target(w, r)
	if !ok {
		return
	}
	var req messageRequest
	if err := httpapi.Decode(r, &req); err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	project, err := h.svc.SendMessage(r.Context(), user, id, req.Message, req.MessageType)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusCreated, project.Messages[len(project.Messages)-1])
}

// Messages 路由: GET /projects/{id}/messages
func (h *Handler) Messages(w http.ResponseWriter, r *http.Request) {
	user, id, ok := target(w, r)
	if !ok {
		return
	}
	messages, err := h.svc.Messages(r.Context(), user, id)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, map[string]interface{}{"messages": messages})
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
