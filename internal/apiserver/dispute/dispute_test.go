package dispute

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pocketfiler/internal/apiserver/audit"
	"pocketfiler/internal/shared/eventbus"
	"pocketfiler/internal/shared/model"
	"pocketfiler/internal/shared/storage"
	"pocketfiler/internal/testutil"
	"pocketfiler/pkg/logging"
)

type fixture struct {
	store   storage.Store
	files   *testutil.FileStore
	events  *eventbus.MemoryEventBus
	handler http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := testutil.NewStore(t)
	files := &testutil.FileStore{}
	events := eventbus.NewMemoryEventBus()
	svc := NewService(store, files, audit.NewRecorder(events, nil, logging.Discard()), nil)
	mux := http.NewServeMux()
	NewHandler(svc, 1<<20).RegisterRoutes(mux)

	now := time.Now().UTC()
	require.NoError(t, store.CreateProject(context.Background(), &model.Project{
		OwnerID: 1, Title: "Alpha", Date: now, Status: model.ProjectStatusInProgress,
		CreatedAt: now, UpdatedAt: now,
	}))
	return &fixture{store: store, files: files, events: events, handler: mux}
}

func (f *fixture) open(t *testing.T) *model.Dispute {
	t.Helper()
	w := testutil.Do(t, f.handler, http.MethodPost, "/disputes", map[string]interface{}{
		"projectId":      1,
		"userId":         1,
		"initialMessage": "Invoice is wrong",
		"title":          "Billing",
	}, testutil.User(1))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var d model.Dispute
	testutil.Decode(t, w, &d)
	return &d
}

func TestCreate(t *testing.T) {
	f := newFixture(t)
	d := f.open(t)
	assert.Equal(t, int64(1), d.ID)
	assert.Equal(t, model.DisputeStatusOpen, d.Status)
	assert.Equal(t, "Invoice is wrong", d.InitialMessage)
	assert.Empty(t, d.Messages)

	tests := []struct {
		name   string
		body   map[string]interface{}
		user   int64
		status int
	}{
		{"missing message", map[string]interface{}{"projectId": 1, "userId": 1}, 1, http.StatusBadRequest},
		{"unknown project", map[string]interface{}{"projectId": 9, "userId": 1, "initialMessage": "x"}, 1, http.StatusBadRequest},
		{"other tenant", map[string]interface{}{"projectId": 1, "userId": 2, "initialMessage": "x"}, 2, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := testutil.Do(t, f.handler, http.MethodPost, "/disputes", tt.body, testutil.User(tt.user))
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
}

func TestMessages(t *testing.T) {
	f := newFixture(t)
	f.open(t)

	w := testutil.Do(t, f.handler, http.MethodPost, "/disputes/1/messages",
		map[string]interface{}{"senderId": 1, "message": "first"}, testutil.User(1))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = testutil.Do(t, f.handler, http.MethodPost, "/disputes/1/messages",
		map[string]interface{}{"senderId": 2, "message": "second"}, testutil.User(1))
	require.Equal(t, http.StatusOK, w.Code)

	var d model.Dispute
	testutil.Decode(t, w, &d)
	require.Len(t, d.Messages, 2)
	assert.Equal(t, "first", d.Messages[0].Message)
	assert.Equal(t, int64(2), d.Messages[1].SenderID)

	w = testutil.Do(t, f.handler, http.MethodPost, "/disputes/7/messages",
		map[string]interface{}{"senderId": 1, "message": "x"}, testutil.User(1))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWithdrawnRefusesMessages(t *testing.T) {
	f := newFixture(t)
	f.open(t)
	testutil.Do(t, f.handler, http.MethodPost, "/disputes/1/messages",
		map[string]interface{}{"senderId": 1, "message": "before"}, testutil.User(1))

	w := testutil.Do(t, f.handler, http.MethodPost, "/disputes/1/withdraw", nil, testutil.User(1))
	require.Equal(t, http.StatusOK, w.Code)

	w = testutil.Do(t, f.handler, http.MethodPost, "/disputes/1/messages",
		map[string]interface{}{"senderId": 1, "message": "after"}, testutil.User(1))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "Dispute is withdrawn and no longer accepts changes.", testutil.Message(t, w))

	d, err := f.store.GetDispute(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, d.Messages, 1)
	assert.Equal(t, "before", d.Messages[0].Message)

	w = testutil.Do(t, f.handler, http.MethodPost, "/disputes/1/close", nil, testutil.User(1))
	assert.Equal(t, http.StatusConflict, w.Code)

	events, err := f.events.Recent(context.Background(), "dispute", 1, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Withdrawn", events[0].To)
}

func TestDocuments(t *testing.T) {
	f := newFixture(t)
	f.open(t)

	req := testutil.Multipart(t, "/disputes/1/documents",
		map[string]string{"description": "evidence", "uploadedByRole": "associate"},
		[]testutil.File{
			{Field: "files[]", Filename: "scan.pdf", Content: "%PDF"},
			{Field: "files[]", Filename: "photo.JPG", Content: "jpeg"},
		}, testutil.User(1))
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var d model.Dispute
	testutil.Decode(t, w, &d)
	require.Len(t, d.Documents, 2)
	assert.Equal(t, model.DocumentTypePDF, d.Documents[0].Type)
	assert.Equal(t, model.DocumentTypeImage, d.Documents[1].Type)
	assert.Equal(t, model.UploaderAssociate, d.Documents[0].UploadedByRole)
	assert.Equal(t, "evidence", d.Documents[0].Description)
	assert.Equal(t, 2, f.files.Count())

	req = testutil.Multipart(t, "/disputes/1/documents", map[string]string{"uploadedByRole": "judge"},
		[]testutil.File{{Field: "files", Filename: "a.txt", Content: "a"}}, testutil.User(1))
	w = httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	testutil.Do(t, f.handler, http.MethodPost, "/disputes/1/close", nil, testutil.User(1))
	req = testutil.Multipart(t, "/disputes/1/documents", nil,
		[]testutil.File{{Field: "files", Filename: "late.txt", Content: "a"}}, testutil.User(1))
	w = httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, 2, f.files.Count())
}

// withdrawOnAppend 在追加附件前撤回争议，模拟上传期间的并发撤回
type withdrawOnAppend struct {
	storage.Store
}

func (s withdrawOnAppend) AppendDisputeDocuments(ctx context.Context, id int64, docs []model.DisputeDocument) (*model.Dispute, error) {
	if _, err := s.Store.TransitionDispute(ctx, id, model.DisputeStatusOpen, model.DisputeStatusWithdrawn, time.Now().UTC()); err != nil {
		return nil, err
	}
	return s.Store.AppendDisputeDocuments(ctx, id, docs)
}

func TestDocumentsRemovedWhenWithdrawnConcurrently(t *testing.T) {
	f := newFixture(t)
	f.open(t)

	svc := NewService(withdrawOnAppend{f.store}, f.files, audit.NewRecorder(f.events, nil, logging.Discard()), nil)
	mux := http.NewServeMux()
	NewHandler(svc, 1<<20).RegisterRoutes(mux)

	req := testutil.Multipart(t, "/disputes/1/documents", nil,
		[]testutil.File{
			{Field: "files", Filename: "a.pdf", Content: "a"},
			{Field: "files", Filename: "b.pdf", Content: "b"},
		}, testutil.User(1))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	assert.Equal(t, http.StatusConflict, w.Code, w.Body.String())
	assert.Zero(t, f.files.Count(), "uploads for a withdrawn dispute are removed")

	d, err := f.store.GetDispute(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, d.Documents)
}

func TestListByStatus(t *testing.T) {
	f := newFixture(t)
	f.open(t)
	f.open(t)
	testutil.Do(t, f.handler, http.MethodPost, "/disputes/2/close", nil, testutil.User(1))

	var page model.Page[model.Dispute]
	w := testutil.Do(t, f.handler, http.MethodGet, "/disputes?status=Open", nil, testutil.User(1))
	require.Equal(t, http.StatusOK, w.Code)
	testutil.Decode(t, w, &page)
	assert.Equal(t, 1, page.Total)

	w = testutil.Do(t, f.handler, http.MethodGet, "/disputes", nil, testutil.User(2))
	testutil.Decode(t, w, &page)
	assert.Equal(t, 0, page.Total)
	assert.Equal(t, 0, page.Pages)

	w = testutil.Do(t, f.handler, http.MethodGet, "/disputes?status=Pending", nil, testutil.User(1))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = testutil.Do(t, f.handler, http.MethodGet, "/disputes/1", nil, testutil.User(2))
	assert.Equal(t, http.StatusForbidden, w.Code)
}
