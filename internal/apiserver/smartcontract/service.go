// Package smartcontract 带预算和里程碑的智能合同
package smartcontract

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"pocketfiler/internal/apiserver/auth"
	"pocketfiler/internal/apiserver/metrics"
	"pocketfiler/internal/shared/apperr"
	"pocketfiler/internal/shared/model"
	"pocketfiler/internal/shared/storage"
	"pocketfiler/pkg/logging"
)

const (
	MsgCreated          = "Smart contract created successfully."
	MsgRequired         = "Title and total amount are required."
	MsgInvalidAmount    = "Total amount must be positive."
	MsgInvalidBudget    = "Budget must not be negative."
	MsgInvalidDateRange = "End date must be after start date."
	MsgInvalidMilestone = "Milestone title is required and amount must not be negative."
	MsgForbidden        = "You do not have access to this smart contract."
)

// CreateInput 创建参数，零值字段使用默认值
type CreateInput struct {
	Title        string
	TotalAmount  decimal.Decimal
	Description  string
	StartDate    *time.Time
	EndDate      *time.Time
	Budget       decimal.NullDecimal
	Organization string
	Priority     string
	Type         string
	AvatarURL    string
	Tags         []string
	Milestones   []model.Milestone
}

// Service 智能合同业务逻辑
type Service struct {
	store   storage.SmartContractStore
	metrics *metrics.Metrics
	log     *logging.Logger
	now     func() time.Time
}

func NewService(store storage.SmartContractStore, m *metrics.Metrics) *Service {
	return &Service{
		store:   store,
		metrics: m,
		log:     logging.Default("smartcontract"),
		now:     time.Now,
	}
}

// Create 校验并保存，预算明细以总额初始化
func (s *Service) Create(ctx context.Context, user *auth.AuthUser, in CreateInput) (*model.SmartContract, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" || in.TotalAmount.IsZero() {
		return nil, apperr.Validation(MsgRequired)
	}
	if in.TotalAmount.IsNegative() {
		return nil, apperr.Validation(MsgInvalidAmount)
	}
	if in.Budget.Valid && in.Budget.Decimal.IsNegative() {
		return nil, apperr.Validation(MsgInvalidBudget)
	}
	for _, m := range in.Milestones {
		if strings.TrimSpace(m.Title) == "" || m.Amount < 0 {
			return nil, apperr.Validation(MsgInvalidMilestone)
		}
	}

	now := s.now().UTC()
	c := model.NewSmartContract(user.ID, title, in.TotalAmount, now)
	if in.Description != "" {
		c.Description = in.Description
	}
	if in.StartDate != nil {
		c.StartDate = in.StartDate.UTC()
		c.EndDate = c.StartDate.AddDate(1, 0, 0)
	}
	if in.EndDate != nil {
		c.EndDate = in.EndDate.UTC()
	}
	if !c.EndDate.After(c.StartDate) {
		return nil, apperr.Validation(MsgInvalidDateRange)
	}
	if in.Budget.Valid && !in.Budget.Decimal.IsZero() {
		c.Budget = in.Budget.Decimal.Round(2).InexactFloat64()
	}
	c.Organization = orDefault(in.Organization, c.Organization)
	c.Priority = orDefault(in.Priority, c.Priority)
	c.Type = orDefault(in.Type, c.Type)
	c.AvatarURL = in.AvatarURL
	if in.Tags != nil {
		c.Tags = in.Tags
	}
	if in.Milestones != nil {
		c.Milestones = in.Milestones
	}

	if err := s.store.CreateSmartContract(ctx, c); err != nil {
		return nil, apperr.FromStorage(err, "Smart contract")
	}
	s.metrics.IDAllocated(storage.CollectionSmartContracts)
	s.log.WithContext(ctx).Info("smart contract created",
		"smart_contract_id", c.ID, "total", c.Total().StringFixed(2), "currency", c.Currency)
	return c, nil
}

func (s *Service) List(ctx context.Context, user *auth.AuthUser, limit, offset int) ([]*model.SmartContract, int, error) {
	items, total, err := s.store.ListSmartContracts(ctx, storage.SmartContractFilter{
		OwnerID: user.TenantID(),
		Limit:   limit,
		Offset:  offset,
	})
	if err != nil {
		return nil, 0, apperr.FromStorage(err, "Smart contract")
	}
	return items, total, nil
}

func (s *Service) Get(ctx context.Context, user *auth.AuthUser, id int64) (*model.SmartContract, error) {
	c, err := s.store.GetSmartContract(ctx, id)
	if err != nil {
		return nil, apperr.FromStorage(err, "Smart contract")
	}
	if !user.CanAccess(c.OwnerID) {
		return nil, apperr.Forbidden(MsgForbidden)
	}
	return c, nil
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return def
}
