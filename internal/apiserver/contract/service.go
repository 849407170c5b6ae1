// Package contract 合同：创建、上传文件与签名、分享
package contract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"strings"
	"time"

	"pocketfiler/internal/apiserver/auth"
	"pocketfiler/internal/apiserver/metrics"
	"pocketfiler/internal/shared/apperr"
	"pocketfiler/internal/shared/mailer"
	objstore "pocketfiler/internal/shared/minio"
	"pocketfiler/internal/shared/model"
	"pocketfiler/internal/shared/storage"
	"pocketfiler/pkg/logging"
)

const (
	MsgForbidden = "You do not have access to this contract."
	MsgNoFile    = "No file uploaded for this contract."
)

// Service 合同业务逻辑
type Service struct {
	store   storage.ContractStore
	files   objstore.FileStore
	mail    mailer.Sender
	metrics *metrics.Metrics
	log     *logging.Logger
	now     func() time.Time
}

func NewService(store storage.ContractStore, files objstore.FileStore, mail mailer.Sender, m *metrics.Metrics) *Service {
	return &Service{
		store:   store,
		files:   files,
		mail:    mail,
		metrics: m,
		log:     logging.Default("contract"),
		now:     time.Now,
	}
}

// Create 新建草稿合同
func (s *Service) Create(ctx context.Context, user *auth.AuthUser, name, contractType string) (*model.Contract, error) {
	now := s.now().UTC()
	contract := &model.Contract{
		OwnerID:    user.ID,
		Name:       strings.TrimSpace(name),
		Type:       strings.TrimSpace(contractType),
		Status:     model.ContractStatusDraft,
		Associates: []model.ContractShare{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.CreateContract(ctx, contract); err != nil {
		return nil, apperr.FromStorage(err, "Contract")
	}
	s.metrics.IDAllocated(storage.CollectionContracts)
	s.log.WithContext(ctx).Info("contract created", "contract_id", contract.ID)
	return contract, nil
}

func (s *Service) List(ctx context.Context, user *auth.AuthUser, limit, offset int) ([]*model.Contract, int, error) {
	items, total, err := s.store.ListContracts(ctx, storage.ContractFilter{
		OwnerID: user.TenantID(),
		Limit:   limit,
		Offset:  offset,
	})
	if err != nil {
		return nil, 0, apperr.FromStorage(err, "Contract")
	}
	return items, total, nil
}

func (s *Service) Get(ctx context.Context, user *auth.AuthUser, id int64) (*model.Contract, error) {
	contract, err := s.store.GetContract(ctx, id)
	if err != nil {
		return nil, apperr.FromStorage(err, "Contract")
	}
	if !user.CanAccess(contract.OwnerID) {
		return nil, apperr.Forbidden(MsgForbidden)
	}
	return contract, nil
}

// UploadFile 上传合同文件，替换之前的文件引用
func (s *Service) UploadFile(ctx context.Context, user *auth.AuthUser, id int64, fh *multipart.FileHeader) (*model.Contract, error) {
	if _, err := s.Get(ctx, user, id); err != nil {
		return nil, err
	}
	stored, err := s.put(ctx, id, "file", fh)
	if err != nil {
		return nil, err
	}
	contract, err := s.store.SetContractFile(ctx, id, stored.Key, stored.URL)
	if err != nil {
		return nil, apperr.FromStorage(err, "Contract")
	}
	return contract, nil
}

// UploadSignature 上传签名图片
func (s *Service) UploadSignature(ctx context.Context, user *auth.AuthUser, id int64, fh *multipart.FileHeader) (*model.Contract, error) {
	if _, err := s.Get(ctx, user, id); err != nil {
		return nil, err
	}
	stored, err := s.put(ctx, id, "signature", fh)
	if err != nil {
		return nil, err
	}
	contract, err := s.store.SetContractSignature(ctx, id, stored.URL)
	if err != nil {
		return nil, apperr.FromStorage(err, "Contract")
	}
	return contract, nil
}

func (s *Service) put(ctx context.Context, id int64, kind string, fh *multipart.FileHeader) (*objstore.Stored, error) {
	stored, err := objstore.PutFile(ctx, s.files, fmt.Sprintf("contracts/%d/%s", id, kind), fh)
	if err != nil {
		return nil, apperr.Unavailable(err)
	}
	s.log.WithContext(ctx).Info("contract upload stored", "contract_id", id, "kind", kind, "key", stored.Key)
	return stored, nil
}

// Preview 合同文件与签名引用，未上传文件时返回 404
func (s *Service) Preview(ctx context.Context, user *auth.AuthUser, id int64) (*model.Contract, error) {
	contract, err := s.Get(ctx, user, id)
	if err != nil {
		return nil, err
	}
	if contract.FileRef == "" {
		return nil, apperr.NotFound(MsgNoFile)
	}
	return contract, nil
}

// ContractFile 合同文件内容，调用方负责关闭 Body
type ContractFile struct {
	Name string
	Body io.ReadCloser
}

// Download 读取合同文件；未上传或对象已不存在时返回 404
func (s *Service) Download(ctx context.Context, user *auth.AuthUser, id int64) (*ContractFile, error) {
	contract, err := s.Get(ctx, user, id)
	if err != nil {
		return nil, err
	}
	if contract.FileKey == "" {
		return nil, apperr.NotFound(MsgNoFile)
	}
	body, err := s.files.Download(ctx, contract.FileKey)
	if errors.Is(err, objstore.ErrObjectNotFound) {
		s.log.WithContext(ctx).Warn("contract file missing from storage", "contract_id", id, "key", contract.FileKey)
		return nil, apperr.NotFound(MsgNoFile)
	}
	if err != nil {
		return nil, apperr.Unavailable(err)
	}
	return &ContractFile{Name: objstore.BaseName(contract.FileKey), Body: body}, nil
}

// Recipient 分享对象
type Recipient struct {
	Name  string
	Email string
}

// ShareResult 分享结果
type ShareResult struct {
	Contract *model.Contract
	Added    []model.ContractShare
	Notified int
}

// Share 按邮箱去重分享合同，并通知新增的对象
func (s *Service) Share(ctx context.Context, user *auth.AuthUser, id int64, recipients []Recipient) (*ShareResult, error) {
	if _, err := s.Get(ctx, user, id); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	shares := make([]model.ContractShare, 0, len(recipients))
	for _, r := range recipients {
		shares = append(shares, model.ContractShare{
			Name:     strings.TrimSpace(r.Name),
			Email:    strings.ToLower(strings.TrimSpace(r.Email)),
			SharedBy: user.Email,
			SharedAt: now,
		})
	}
	contract, added, err := s.store.ShareContract(ctx, id, shares)
	if err != nil {
		return nil, apperr.FromStorage(err, "Contract")
	}

	res := &ShareResult{Contract: contract, Added: added}
	for _, share := range added {
		err := s.mail.Send(ctx, mailer.ContractShared(share.Email, share.Name, contract.Name, user.Email))
		s.metrics.MailSent("contract_shared", err)
		if err != nil {
			s.log.WithContext(ctx).WithError(err).Warn("send share notification failed", "contract_id", id)
			continue
		}
		res.Notified++
	}
	return res, nil
}
