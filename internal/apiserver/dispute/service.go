// Package dispute 争议：消息、附件与关闭/撤回
package dispute

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"strings"
	"time"

	"pocketfiler/internal/apiserver/audit"
	"pocketfiler/internal/apiserver/auth"
	"pocketfiler/internal/apiserver/metrics"
	"pocketfiler/internal/shared/apperr"
	objstore "pocketfiler/internal/shared/minio"
	"pocketfiler/internal/shared/model"
	"pocketfiler/internal/shared/storage"
	"pocketfiler/pkg/logging"
)

const MsgForbidden = "You do not have access to this dispute."

// Store 争议服务依赖的存储，创建时需要校验所属项目
type Store interface {
	storage.DisputeStore
	GetProject(ctx context.Context, id int64) (*model.Project, error)
}

// Service 争议业务逻辑
type Service struct {
	store    Store
	files    objstore.FileStore
	recorder *audit.Recorder
	metrics  *metrics.Metrics
	log      *logging.Logger
	now      func() time.Time
}

func NewService(store Store, files objstore.FileStore, recorder *audit.Recorder, m *metrics.Metrics) *Service {
	return &Service{
		store:    store,
		files:    files,
		recorder: recorder,
		metrics:  m,
		log:      logging.Default("dispute"),
		now:      time.Now,
	}
}

// CreateInput 创建争议参数
type CreateInput struct {
	ProjectID      int64
	UserID         int64
	InitialMessage string
	Title          string
	AssociateID    int64
	ContractID     int64
}

// Create 在调用方可访问的项目下创建 Open 争议
func (s *Service) Create(ctx context.Context, user *auth.AuthUser, in CreateInput) (*model.Dispute, error) {
	project, err := s.store.GetProject(ctx, in.ProjectID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.Validation("Project %d does not exist.", in.ProjectID)
	}
	if err != nil {
		return nil, apperr.FromStorage(err, "Project")
	}
	if !user.CanAccess(project.OwnerID) {
		return nil, apperr.Forbidden("You do not have access to this project.")
	}

	now := s.now().UTC()
	dispute := &model.Dispute{
		OwnerID:        project.OwnerID,
		ProjectID:      in.ProjectID,
		UserID:         in.UserID,
		AssociateID:    in.AssociateID,
		ContractID:     in.ContractID,
		Title:          strings.TrimSpace(in.Title),
		InitialMessage: strings.TrimSpace(in.InitialMessage),
		Status:         model.DisputeStatusOpen,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.CreateDispute(ctx, dispute); err != nil {
		return nil, apperr.FromStorage(err, "Dispute")
	}
	s.metrics.IDAllocated(storage.CollectionDisputes)
	s.log.WithContext(ctx).Info("dispute opened", "dispute_id", dispute.ID, "project_id", dispute.ProjectID)
	return dispute, nil
}

// ListFilter 列表条件
type ListFilter struct {
	UserID int64
	Status model.DisputeStatus
	Limit  int
	Offset int
}

func (s *Service) List(ctx context.Context, user *auth.AuthUser, f ListFilter) ([]*model.Dispute, int, error) {
	items, total, err := s.store.ListDisputes(ctx, storage.DisputeFilter{
		OwnerID: user.TenantID(),
		UserID:  f.UserID,
		Status:  f.Status,
		Limit:   f.Limit,
		Offset:  f.Offset,
	})
	if err != nil {
		return nil, 0, apperr.FromStorage(err, "Dispute")
	}
	return items, total, nil
}

func (s *Service) Get(ctx context.Context, user *auth.AuthUser, id int64) (*model.Dispute, error) {
	dispute, err := s.store.GetDispute(ctx, id)
	if err != nil {
		return nil, apperr.FromStorage(err, "Dispute")
	}
	if !user.CanAccess(dispute.OwnerID) {
		return nil, apperr.Forbidden(MsgForbidden)
	}
	return dispute, nil
}

func closedError(d *model.Dispute) error {
	return apperr.Conflict("Dispute is %s and no longer accepts changes.", strings.ToLower(string(d.Status)))
}

// AddMessage 追加消息，终态争议返回 409 且消息列表不变
func (s *Service) AddMessage(ctx context.Context, user *auth.AuthUser, id, senderID int64, text string) (*model.Dispute, error) {
	dispute, err := s.Get(ctx, user, id)
	if err != nil {
		return nil, err
	}
	if dispute.Status.IsTerminal() {
		return nil, closedError(dispute)
	}
	updated, err := s.store.AppendDisputeMessage(ctx, id, model.DisputeMessage{
		SenderID:  senderID,
		Message:   strings.TrimSpace(text),
		Timestamp: s.now().UTC(),
	})
	if err != nil {
		return nil, apperr.FromStorage(err, "Dispute")
	}
	return updated, nil
}

// UploadInput 附件上传参数
type UploadInput struct {
	Files          []*multipart.FileHeader
	Description    string
	UploadedByRole model.UploaderRole
}

// UploadDocuments 上传附件，终态争议不接受新附件
func (s *Service) UploadDocuments(ctx context.Context, user *auth.AuthUser, id int64, in UploadInput) (*model.Dispute, error) {
	dispute, err := s.Get(ctx, user, id)
	if err != nil {
		return nil, err
	}
	if dispute.Status.IsTerminal() {
		return nil, closedError(dispute)
	}

	now := s.now().UTC()
	docs := make([]model.DisputeDocument, 0, len(in.Files))
	keys := make([]string, 0, len(in.Files))
	for _, fh := range in.Files {
		stored, err := objstore.PutFile(ctx, s.files, fmt.Sprintf("disputes/%d", id), fh)
		if err != nil {
			s.discard(ctx, id, keys)
			return nil, apperr.Unavailable(err)
		}
		keys = append(keys, stored.Key)
		docs = append(docs, model.DisputeDocument{
			URL:            stored.URL,
			Filename:       fh.Filename,
			Description:    strings.TrimSpace(in.Description),
			Type:           model.DocumentTypeOf(fh.Filename),
			Size:           fh.Size,
			UploadedBy:     user.ID,
			UploadedByRole: in.UploadedByRole,
			UploadedAt:     now,
		})
	}

	updated, err := s.store.AppendDisputeDocuments(ctx, id, docs)
	if err != nil {
		// 并发关闭或撤回时追加失败，已上传的文件不再被引用
		s.discard(ctx, id, keys)
		return nil, apperr.FromStorage(err, "Dispute")
	}
	s.log.WithContext(ctx).Info("dispute documents uploaded", "dispute_id", id, "count", len(docs))
	return updated, nil
}

// discard 删除未能关联到争议的已上传文件，删除失败只记录日志
func (s *Service) discard(ctx context.Context, id int64, keys []string) {
	ctx = context.WithoutCancel(ctx)
	for _, key := range keys {
		if err := s.files.Remove(ctx, key); err != nil {
			s.log.WithContext(ctx).WithError(err).Warn("orphaned dispute upload", "dispute_id", id, "key", key)
		}
	}
}

// Transition 关闭或撤回争议
func (s *Service) Transition(ctx context.Context, user *auth.AuthUser, id int64, to model.DisputeStatus) (*model.Dispute, error) {
	dispute, err := s.Get(ctx, user, id)
	if err != nil {
		return nil, err
	}
	from := dispute.Status
	if err := from.CheckTransition(to); err != nil {
		return nil, apperr.FromStorage(err, "Dispute")
	}
	updated, err := s.store.TransitionDispute(ctx, id, from, to, s.now().UTC())
	if err != nil {
		return nil, apperr.FromStorage(err, "Dispute")
	}
	s.recorder.Record(ctx, audit.Transition{
		Entity:   "dispute",
		EntityID: id,
		From:     string(from),
		To:       string(to),
		ActorID:  user.ID,
	})
	return updated, nil
}
