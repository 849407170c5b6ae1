// Package project 项目：列表检索、文档、活动、客户与消息
package project

import (
	"context"
	"fmt"
	"mime/multipart"
	"strings"
	"time"

	"pocketfiler/internal/apiserver/auth"
	"pocketfiler/internal/apiserver/metrics"
	"pocketfiler/internal/shared/apperr"
	objstore "pocketfiler/internal/shared/minio"
	"pocketfiler/internal/shared/model"
	"pocketfiler/internal/shared/storage"
	"pocketfiler/pkg/logging"
)

const MsgForbidden = "You do not have access to this project."

// Service 项目业务逻辑
type Service struct {
	store   storage.ProjectStore
	files   objstore.FileStore
	metrics *metrics.Metrics
	log     *logging.Logger
	now     func() time.Time
}

func NewService(store storage.ProjectStore, files objstore.FileStore, m *metrics.Metrics) *Service {
	return &Service{
		store:   store,
		files:   files,
		metrics: m,
		log:     logging.Default("project"),
		now:     time.Now,
	}
}

// CreateInput 创建项目参数，Date 为零值时取当前时间，Budget 为 nil 时取默认预算
type CreateInput struct {
	Title       string
	Description string
	Date        time.Time
	Budget      *int64
}

func (s *Service) Create(ctx context.Context, user *auth.AuthUser, in CreateInput) (*model.Project, error) {
	now := s.now().UTC()
	date := in.Date
	if date.IsZero() {
		date = now
	}
	budget := int64(model.DefaultProjectBudget)
	if in.Budget != nil {
		budget = *in.Budget
	}

	project := &model.Project{
		OwnerID:     user.ID,
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Date:        date.UTC(),
		Status:      model.ProjectStatusInProgress,
		Budget:      budget,
		Currency:    model.DefaultProjectCurrency,
		Activities: []model.ProjectActivity{{
			Description: "Project created",
			CreatedBy:   user.ID,
			CreatedAt:   now,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateProject(ctx, project); err != nil {
		return nil, apperr.FromStorage(err, "Project")
	}
	s.metrics.IDAllocated(storage.CollectionProjects)
	s.log.WithContext(ctx).Info("project created", "project_id", project.ID)
	return project, nil
}

// ListFilter 列表条件，Year 为 0 表示不限年份
type ListFilter struct {
	Search string
	Year   int
	Limit  int
	Offset int
}

// List 按日期倒序，标题做大小写不敏感的子串匹配
func (s *Service) List(ctx context.Context, user *auth.AuthUser, f ListFilter) ([]*model.Project, int, error) {
	filter := storage.ProjectFilter{
		OwnerID: user.TenantID(),
		Search:  strings.TrimSpace(f.Search),
		Limit:   f.Limit,
		Offset:  f.Offset,
	}
	if f.Year != 0 {
		filter.Since = time.Date(f.Year, time.January, 1, 0, 0, 0, 0, time.UTC)
		filter.Until = filter.Since.AddDate(1, 0, 0)
	}
	items, total, err := s.store.ListProjects(ctx, filter)
	if err != nil {
		return nil, 0, apperr.FromStorage(err, "Project")
	}
	return items, total, nil
}

func (s *Service) Get(ctx context.Context, user *auth.AuthUser, id int64) (*model.Project, error) {
	project, err := s.store.GetProject(ctx, id)
	if err != nil {
		return nil, apperr.FromStorage(err, "Project")
	}
	if !user.CanAccess(project.OwnerID) {
		return nil, apperr.Forbidden(MsgForbidden)
	}
	return project, nil
}

// UploadDocuments 上传项目文档
func (s *Service) UploadDocuments(ctx context.Context, user *auth.AuthUser, id int64, files []*multipart.FileHeader) (*model.Project, error) {
	if _, err := s.Get(ctx, user, id); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	docs := make([]model.ProjectDocument, 0, len(files))
	for _, fh := range files {
		stored, err := objstore.PutFile(ctx, s.files, fmt.Sprintf("projects/%d", id), fh)
		if err != nil {
			return nil, apperr.Unavailable(err)
		}
		docs = append(docs, model.ProjectDocument{
			Name:       fh.Filename,
			URL:        stored.URL,
			Size:       fh.Size,
			UploadedBy: user.ID,
			UploadedAt: now,
		})
	}
	project, err := s.store.AppendProjectDocuments(ctx, id, docs)
	if err != nil {
		return nil, apperr.FromStorage(err, "Project")
	}
	return project, nil
}

// AddActivity 记录一条项目活动
func (s *Service) AddActivity(ctx context.Context, user *auth.AuthUser, id int64, description string) (*model.Project, error) {
	if _, err := s.Get(ctx, user, id); err != nil {
		return nil, err
	}
	project, err := s.store.AppendProjectActivity(ctx, id, model.ProjectActivity{
		Description: strings.TrimSpace(description),
		CreatedBy:   user.ID,
		CreatedAt:   s.now().UTC(),
	})
	if err != nil {
		return nil, apperr.FromStorage(err, "Project")
	}
	return project, nil
}

// AddClient 添加客户，同邮箱已存在返回 409
func (s *Service) AddClient(ctx context.Context, user *auth.AuthUser, id int64, name, email string) (*model.Project, error) {
	if _, err := s.Get(ctx, user, id); err != nil {
		return nil, err
	}
	project, err := s.store.AddProjectClient(ctx, id, model.ProjectClient{
		Name:    strings.TrimSpace(name),
		Email:   strings.ToLower(strings.TrimSpace(email)),
		AddedAt: s.now().UTC(),
	})
	if err != nil {
		return nil, apperr.FromStorage(err, "Client")
	}
	return project, nil
}

// RemoveClient 移除客户，不存在返回 404
func (s *Service) RemoveClient(ctx context.Context, user *auth.AuthUser, id int64, email string) (*model.Project, error) {
	if _, err := s.Get(ctx, user, id); err != nil {
		return nil, err
	}
	project, err := s.store.RemoveProjectClient(ctx, id, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, apperr.FromStorage(err, "Client")
	}
	return project, nil
}

// SendMessage 发送项目消息，发送者为当前用户
func (s *Service) SendMessage(ctx context.Context, user *auth.AuthUser, id int64, text, messageType string) (*model.Project, error) {
	if _, err := s.Get(ctx, user, id); err != nil {
		return nil, err
	}
	if messageType == "" {
		messageType = model.MessageTypeText
	}
	project, err := s.store.AppendProjectMessage(ctx, id, model.ProjectMessage{
		SenderID:    user.ID,
		Message:     strings.TrimSpace(text),
		MessageType: messageType,
		SentAt:      s.now().UTC(),
	})
	if err != nil {
		return nil, apperr.FromStorage(err, "Project")
	}
	return project, nil
}

// Messages 项目消息，按发送顺序
func (s *Service) Messages(ctx context.Context, user *auth.AuthUser, id int64) ([]model.ProjectMessage, error) {
	project, err := s.Get(ctx, user, id)
	if err != nil {
		return nil, err
	}
	if project.Messages == nil {
		return []model.ProjectMessage{}, nil
	}
	return project.Messages, nil
}
