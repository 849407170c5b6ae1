package project

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pocketfiler/internal/shared/model"
	"pocketfiler/internal/testutil"
)

func newHandler(t *testing.T) (http.Handler, *testutil.FileStore) {
	t.Helper()
	files := &testutil.FileStore{}
	mux := http.NewServeMux()
	NewHandler(NewService(testutil.NewStore(t), files, nil), 1<<20).RegisterRoutes(mux)
	return mux, files
}

func create(t *testing.T, h http.Handler, userID int64, title, date string) *model.Project {
	t.Helper()
	body := map[string]interface{}{"title": title}
	if date != "" {
		body["date"] = date
	}
	w := testutil.Do(t, h, http.MethodPost, "/projects", body, testutil.User(userID))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var p model.Project
	testutil.Decode(t, w, &p)
	return &p
}

func list(t *testing.T, h http.Handler, query string) model.Page[model.Project] {
	t.Helper()
	w := testutil.Do(t, h, http.MethodGet, "/projects"+query, nil, testutil.User(1))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var page model.Page[model.Project]
	testutil.Decode(t, w, &page)
	return page
}

func TestCreateDefaults(t *testing.T) {
	h, _ := newHandler(t)
	p := create(t, h, 1, "Alpha", "")
	assert.Equal(t, int64(1), p.ID)
	assert.Equal(t, model.ProjectStatusInProgress, p.Status)
	assert.Equal(t, int64(10000), p.Budget)
	assert.Equal(t, "USD", p.Currency)
	assert.False(t, p.Date.IsZero())
	require.Len(t, p.Activities, 1)

	w := testutil.Do(t, h, http.MethodPost, "/projects", map[string]interface{}{"title": "B", "date": "last week"}, testutil.User(1))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid date.", testutil.Message(t, w))

	w = testutil.Do(t, h, http.MethodPost, "/projects", map[string]interface{}{"title": "B", "budget": 250}, testutil.User(1))
	require.Equal(t, http.StatusCreated, w.Code)
	testutil.Decode(t, w, p)
	assert.Equal(t, int64(250), p.Budget)
}

func TestListSearch(t *testing.T) {
	h, _ := newHandler(t)
	create(t, h, 1, "Project Alpha", "2024-03-01")
	create(t, h, 1, "alphabet soup", "2024-05-01")
	create(t, h, 1, "Beta", "2024-04-01")
	create(t, h, 1, "50% off", "2023-01-01")
	create(t, h, 2, "Alpha elsewhere", "2024-01-01")

	page := list(t, h, "?search=Alpha")
	assert.Equal(t, 2, page.Total)
	require.Len(t, page.Items, 2)
	// 按日期倒序
	assert.Equal(t, "alphabet soup", page.Items[0].Title)
	assert.Equal(t, "Project Alpha", page.Items[1].Title)

	page = list(t, h, "?search=%25")
	assert.Equal(t, 1, page.Total)

	page = list(t, h, "?year=2023")
	assert.Equal(t, 1, page.Total)

	page = list(t, h, "?year=2024&search=a")
	assert.Equal(t, 3, page.Total)

	w := testutil.Do(t, h, http.MethodGet, "/projects?year=abc", nil, testutil.User(1))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListPagination(t *testing.T) {
	const limit = 3
	tests := []struct {
		total int
		pages int
	}{
		{0, 0},
		{1, 1},
		{limit, 1},
		{limit + 1, 2},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("total=%d", tt.total), func(t *testing.T) {
			h, _ := newHandler(t)
			for i := 0; i < tt.total; i++ {
				create(t, h, 1, fmt.Sprintf("P%d", i), "")
			}
			page := list(t, h, fmt.Sprintf("?limit=%d", limit))
			assert.Equal(t, tt.total, page.Total)
			assert.Equal(t, tt.pages, page.Pages)
			assert.Equal(t, 1, page.Page)
			assert.Len(t, page.Items, min(tt.total, limit))
		})
	}
}

func TestClients(t *testing.T) {
	h, _ := newHandler(t)
	create(t, h, 1, "Alpha", "")
	user := testutil.User(1)

	w := testutil.Do(t, h, http.MethodPost, "/projects/1/clients", map[string]string{"name": "Cy", "email": "cy@x.com"}, user)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = testutil.Do(t, h, http.MethodPost, "/projects/1/clients", map[string]string{"name": "Cy", "email": "CY@x.com"}, user)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = testutil.Do(t, h, http.MethodDelete, "/projects/1/clients/nobody@x.com", nil, user)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = testutil.Do(t, h, http.MethodDelete, "/projects/1/clients/cy@x.com", nil, user)
	require.Equal(t, http.StatusOK, w.Code)
	var p model.Project
	testutil.Decode(t, w, &p)
	assert.Empty(t, p.Clients)

	w = testutil.Do(t, h, http.MethodPost, "/projects/1/clients", map[string]string{"name": "Dee", "email": "dee@x.com"}, testutil.User(2))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestActivitiesAndMessages(t *testing.T) {
	h, _ := newHandler(t)
	create(t, h, 1, "Alpha", "")
	user := testutil.User(1)

	w := testutil.Do(t, h, http.MethodPost, "/projects/1/activities", map[string]string{"description": "Kickoff"}, user)
	require.Equal(t, http.StatusOK, w.Code)
	var p model.Project
	testutil.Decode(t, w, &p)
	assert.Len(t, p.Activities, 2)

	w = testutil.Do(t, h, http.MethodPost, "/projects/1/messages", map[string]string{"message": "hi"}, user)
	require.Equal(t, http.StatusCreated, w.Code)
	var msg model.ProjectMessage
	testutil.Decode(t, w, &msg)
	assert.Equal(t, model.MessageTypeText, msg.MessageType)
	assert.Equal(t, int64(1), msg.SenderID)

	testutil.Do(t, h, http.MethodPost, "/projects/1/messages", map[string]string{"message": "file.pdf", "messageType": "file"}, user)

	w = testutil.Do(t, h, http.MethodGet, "/projects/1/messages", nil, user)
	require.Equal(t, http.StatusOK, w.Code)
	var res struct {
		Messages []model.ProjectMessage `json:"messages"`
	}
	testutil.Decode(t, w, &res)
	require.Len(t, res.Messages, 2)
	assert.Equal(t, "file", res.Messages[1].MessageType)
}

func TestDocuments(t *testing.T) {
	h, files := newHandler(t)
	create(t, h, 1, "Alpha", "")

	req := testutil.Multipart(t, "/projects/1/documents", nil, []testutil.File{
		{Field: "files", Filename: "plan.pdf", Content: "plan"},
		{Field: "files", Filename: "budget.xlsx", Content: "numbers"},
	}, testutil.User(1))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var p model.Project
	testutil.Decode(t, w, &p)
	require.Len(t, p.Documents, 2)
	assert.Equal(t, "plan.pdf", p.Documents[0].Name)
	assert.Equal(t, int64(4), p.Documents[0].Size)
	assert.Equal(t, 2, files.Count())

	req = testutil.Multipart(t, "/projects/1/documents", nil, nil, testutil.User(1))
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
