// Package associate 协作者邀请与状态流转
package associate

import (
	"context"
	"errors"
	"strings"
	"time"

	"pocketfiler/internal/apiserver/audit"
	"pocketfiler/internal/apiserver/auth"
	"pocketfiler/internal/apiserver/metrics"
	"pocketfiler/internal/shared/apperr"
	"pocketfiler/internal/shared/mailer"
	"pocketfiler/internal/shared/model"
	"pocketfiler/internal/shared/storage"
	"pocketfiler/pkg/logging"
)

const (
	MsgUserExists         = "User already exists."
	MsgForbidden          = "You do not have access to this associate."
	MsgInvitationNotFound = "Invitation not found."
)

// Service 协作者业务逻辑
type Service struct {
	store         storage.AssociateStore
	mail          mailer.Sender
	recorder      *audit.Recorder
	metrics       *metrics.Metrics
	inviteBaseURL string
	log           *logging.Logger
	now           func() time.Time
}

// NewService 创建协作者服务
func NewService(store storage.AssociateStore, mail mailer.Sender, recorder *audit.Recorder, m *metrics.Metrics, inviteBaseURL string) *Service {
	return &Service{
		store:         store,
		mail:          mail,
		recorder:      recorder,
		metrics:       m,
		inviteBaseURL: strings.TrimRight(inviteBaseURL, "/"),
		log:           logging.Default("associate"),
		now:           time.Now,
	}
}

// AddInput 邀请/添加参数
type AddInput struct {
	Name  string
	Email string
	Role  string
}

// InviteResult 邀请结果
type InviteResult struct {
	Associate *model.Associate
	MailSent  bool
}

// Invite 创建 pending 协作者并邮件发送邀请链接
func (s *Service) Invite(ctx context.Context, user *auth.AuthUser, in AddInput) (*InviteResult, error) {
	token, err := auth.RandomToken(24)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	associate := s.newAssociate(user, in)
	associate.InvitationToken = token
	associate.InvitationLink = s.inviteBaseURL + "/" + token

	if err := s.create(ctx, associate); err != nil {
		return nil, err
	}

	msg := mailer.Invitation(associate.Email, associate.Name, user.Email, associate.InvitationLink)
	err = s.mail.Send(ctx, msg)
	s.metrics.MailSent("invitation", err)
	if err != nil {
		s.log.WithContext(ctx).WithError(err).Warn("send invitation failed", "associate_id", associate.ID)
	}
	return &InviteResult{Associate: associate, MailSent: err == nil}, nil
}

// Add 手动添加协作者，不发邮件
func (s *Service) Add(ctx context.Context, user *auth.AuthUser, in AddInput) (*model.Associate, error) {
	associate := s.newAssociate(user, in)
	if err := s.create(ctx, associate); err != nil {
		return nil, err
	}
	return associate, nil
}

func (s *Service) newAssociate(user *auth.AuthUser, in AddInput) *model.Associate {
	role := strings.TrimSpace(in.Role)
	if role == "" {
		role = model.DefaultAssociateRole
	}
	now := s.now().UTC()
	return &model.Associate{
		OwnerID:   user.ID,
		Name:      strings.TrimSpace(in.Name),
		Email:     strings.ToLower(strings.TrimSpace(in.Email)),
		Role:      role,
		Status:    model.AssociateStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *Service) create(ctx context.Context, associate *model.Associate) error {
	if err := s.store.CreateAssociate(ctx, associate); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return apperr.Conflict(MsgUserExists)
		}
		return apperr.FromStorage(err, "Associate")
	}
	s.metrics.IDAllocated(storage.CollectionAssociates)
	s.log.WithContext(ctx).Info("associate created", "associate_id", associate.ID, "owner_id", associate.OwnerID)
	return nil
}

// List 当前租户的协作者
func (s *Service) List(ctx context.Context, user *auth.AuthUser, status model.AssociateStatus, limit, offset int) ([]*model.Associate, int, error) {
	items, total, err := s.store.ListAssociates(ctx, storage.AssociateFilter{
		OwnerID: user.TenantID(),
		Status:  status,
		Limit:   limit,
		Offset:  offset,
	})
	if err != nil {
		return nil, 0, apperr.FromStorage(err, "Associate")
	}
	return items, total, nil
}

// Get 按序列号查询，跨租户访问返回 403
func (s *Service) Get(ctx context.Context, user *auth.AuthUser, id int64) (*model.Associate, error) {
	associate, err := s.store.GetAssociate(ctx, id)
	if err != nil {
		return nil, apperr.FromStorage(err, "Associate")
	}
	if !user.CanAccess(associate.OwnerID) {
		return nil, apperr.Forbidden(MsgForbidden)
	}
	return associate, nil
}

// Respond 由邀请方接受或拒绝
func (s *Service) Respond(ctx context.Context, user *auth.AuthUser, id int64, to model.AssociateStatus) (*model.Associate, error) {
	associate, err := s.Get(ctx, user, id)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, associate, to, user.ID)
}

// RespondByToken 被邀请人通过邀请链接接受或拒绝
func (s *Service) RespondByToken(ctx context.Context, token string, to model.AssociateStatus) (*model.Associate, error) {
	associate, err := s.store.GetAssociateByToken(ctx, token)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.NotFound(MsgInvitationNotFound)
	}
	if err != nil {
		return nil, apperr.FromStorage(err, "Associate")
	}
	return s.transition(ctx, associate, to, 0)
}

// transition 先按状态机校验，再做带条件的更新；并发下只有一个请求成功
func (s *Service) transition(ctx context.Context, associate *model.Associate, to model.AssociateStatus, actorID int64) (*model.Associate, error) {
	from := associate.Status
	if err := from.CheckTransition(to); err != nil {
		return nil, apperr.FromStorage(err, "Associate")
	}
	updated, err := s.store.TransitionAssociate(ctx, associate.ID, from, to, s.now().UTC())
	if err != nil {
		return nil, apperr.FromStorage(err, "Associate")
	}
	s.recorder.Record(ctx, audit.Transition{
		Entity:   "associate",
		EntityID: updated.ID,
		From:     string(from),
		To:       string(to),
		ActorID:  actorID,
	})
	return updated, nil
}

// Delete 删除协作者
func (s *Service) Delete(ctx context.Context, user *auth.AuthUser, id int64) error {
	if _, err := s.Get(ctx, user, id); err != nil {
		return err
	}
	if err := s.store.DeleteAssociate(ctx, id); err != nil {
		return apperr.FromStorage(err, "Associate")
	}
	s.log.WithContext(ctx).Info("associate deleted", "associate_id", id)
	return nil
}
