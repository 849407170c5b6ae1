// Package payment 支付网关抽象
//
// 实际收款由外部网关完成，这里只定义调用约定和一个本地 sandbox 实现。
package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrDeclined 网关拒绝扣款
var ErrDeclined = errors.New("payment declined")

// DeclinedToken sandbox 中总是被拒绝的支付方式
const DeclinedToken = "tok_chargeDeclined"

// ChargeRequest 扣款请求
type ChargeRequest struct {
	Amount         decimal.Decimal
	Currency       string
	PaymentMethod  string
	Description    string
	IdempotencyKey string
}

// ChargeResult 扣款结果
type ChargeResult struct {
	Reference string
	Amount    decimal.Decimal
	Currency  string
	ChargedAt time.Time
}

// Gateway 支付网关接口
type Gateway interface {
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
}

// Sandbox 不连接外部网关的测试实现
//
// PaymentMethod 为 DeclinedToken 时返回 ErrDeclined，其它非空值一律成功。
type Sandbox struct {
	charges atomic.Int64
	now     func() time.Time
}

func NewSandbox() *Sandbox {
	return &Sandbox{now: time.Now}
}

func (s *Sandbox) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.PaymentMethod) == "" {
		return nil, fmt.Errorf("%w: payment method is required", ErrDeclined)
	}
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("invalid charge amount %s", req.Amount)
	}
	if req.PaymentMethod == DeclinedToken {
		return nil, fmt.Errorf("%w: card was declined", ErrDeclined)
	}

	s.charges.Add(1)
	return &ChargeResult{
		Reference: "ch_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		Amount:    req.Amount,
		Currency:  req.Currency,
		ChargedAt: s.now(),
	}, nil
}

// Charges 成功扣款次数
func (s *Sandbox) Charges() int64 {
	return s.charges.Load()
}

// New 按配置选择网关
func New(provider string) (Gateway, error) {
	switch provider {
	case "", "sandbox":
		return NewSandbox(), nil
	default:
		return nil, fmt.Errorf("unsupported payment provider %q", provider)
	}
}

var _ Gateway = (*Sandbox)(nil)
