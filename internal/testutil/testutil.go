// Package testutil 处理器测试的公共工具：内存存储、假协作方、请求辅助函数
package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"pocketfiler/internal/apiserver/auth"
	"pocketfiler/internal/shared/infra"
	"pocketfiler/internal/shared/mailer"
	objstore "pocketfiler/internal/shared/minio"
	"pocketfiler/internal/shared/storage"
)

// NewStore 返回 SQLite 内存数据库上的存储，测试结束时关闭
func NewStore(t *testing.T) storage.Store {
	t.Helper()
	store, err := infra.OpenStore(context.Background(), "sqlite", ":memory:", "")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// ============================================================================
// 假协作方
// ============================================================================

// Mailer 记录发送的邮件，Err 非空时发送失败
type Mailer struct {
	mu   sync.Mutex
	Sent []mailer.Message
	Err  error
}

func (m *Mailer) Send(ctx context.Context, msg mailer.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Sent = append(m.Sent, msg)
	return nil
}

// Messages 返回已发送邮件的副本
func (m *Mailer) Messages() []mailer.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mailer.Message(nil), m.Sent...)
}

// Last 最后一封邮件
func (m *Mailer) Last(t *testing.T) mailer.Message {
	t.Helper()
	msgs := m.Messages()
	require.NotEmpty(t, msgs, "no mail sent")
	return msgs[len(msgs)-1]
}

// FileStore 把上传内容保存在内存中
type FileStore struct {
	mu      sync.Mutex
	Objects map[string][]byte
	Err     error
}

func (f *FileStore) Put(ctx context.Context, obj objstore.Object) (*objstore.Stored, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	data, err := io.ReadAll(obj.Body)
	if err != nil {
		return nil, err
	}
	key := objstore.ObjectKey(obj.Prefix, obj.Filename)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Objects == nil {
		f.Objects = make(map[string][]byte)
	}
	f.Objects[key] = data
	return &objstore.Stored{Key: key, URL: "https://files.test/" + key}, nil
}

func (f *FileStore) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.Objects[key]
	if !ok {
		return nil, objstore.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *FileStore) Remove(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.Objects, key)
	return nil
}

// Count 已保存的文件数
func (f *FileStore) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Objects)
}

var (
	_ mailer.Sender      = (*Mailer)(nil)
	_ objstore.FileStore = (*FileStore)(nil)
)

// ============================================================================
// 请求辅助函数
// ============================================================================

// User 普通用户
func User(id int64) *auth.AuthUser {
	return &auth.AuthUser{ID: id, Email: "user" + strconv.FormatInt(id, 10) + "@example.com", Role: "user"}
}

// Admin 管理员
func Admin(id int64) *auth.AuthUser {
	return &auth.AuthUser{ID: id, Email: "admin@example.com", Role: "admin"}
}

// Request 构造请求，body 非 nil 时编码为 JSON；user 非 nil 时注入认证信息
func Request(t *testing.T, method, path string, body interface{}, user *auth.AuthUser) *http.Request {
	t.Helper()
	var r io.Reader
	if body != nil {
		if s, ok := body.(string); ok {
			r = bytes.NewBufferString(s)
		} else {
			data, err := json.Marshal(body)
			require.NoError(t, err)
			r = bytes.NewReader(data)
		}
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != nil {
		req = req.WithContext(auth.WithAuthUser(req.Context(), user))
	}
	return req
}

// Do 执行请求并返回响应
func Do(t *testing.T, h http.Handler, method, path string, body interface{}, user *auth.AuthUser) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, Request(t, method, path, body, user))
	return w
}

// File multipart 表单中的一个文件
type File struct {
	Field    string
	Filename string
	Content  string
}

// Multipart 构造 multipart 请求
func Multipart(t *testing.T, path string, fields map[string]string, files []File, user *auth.AuthUser) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for _, f := range files {
		fw, err := mw.CreateFormFile(f.Field, f.Filename)
		require.NoError(t, err)
		_, err = fw.Write([]byte(f.Content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if user != nil {
		req = req.WithContext(auth.WithAuthUser(req.Context(), user))
	}
	return req
}

// Decode 解析 JSON 响应体
func Decode(t *testing.T, w *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), dst), w.Body.String())
}

// Message 错误响应中的 message
func Message(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Message string `json:"message"`
	}
	Decode(t, w, &body)
	return body.Message
}
