// Package subscription 订阅：套餐、支付与取消，后台扫描过期订阅
package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pocketfiler/internal/apiserver/audit"
	"pocketfiler/internal/apiserver/auth"
	"pocketfiler/internal/apiserver/metrics"
	"pocketfiler/internal/shared/apperr"
	"pocketfiler/internal/shared/model"
	"pocketfiler/internal/shared/payment"
	"pocketfiler/internal/shared/storage"
	"pocketfiler/pkg/logging"
)

const (
	MsgActiveExists  = "User already has an active subscription"
	MsgNoActive      = "No active subscription found"
	MsgFreePlan      = "No payment required for Free plan"
	MsgDeclined      = "Payment was declined."
	MsgPaymentFailed = "Payment could not be processed."
	MsgForbidden     = "You do not have access to this subscription."
)

// Service 订阅业务逻辑
type Service struct {
	store    storage.SubscriptionStore
	gateway  payment.Gateway
	recorder *audit.Recorder
	metrics  *metrics.Metrics
	log      *logging.Logger
	now      func() time.Time
}

func NewService(store storage.SubscriptionStore, gateway payment.Gateway, recorder *audit.Recorder, m *metrics.Metrics) *Service {
	return &Service{
		store:    store,
		gateway:  gateway,
		recorder: recorder,
		metrics:  m,
		log:      logging.Default("subscription"),
		now:      time.Now,
	}
}

// CreateInput 创建订阅参数，UserID 为 0 时为调用方自己
type CreateInput struct {
	UserID       int64
	PlanType     model.PlanType
	BillingCycle model.BillingCycle
	AutoRenew    bool
}

// Create 创建 Active/Unpaid 订阅，每个用户最多一个 Active 订阅
func (s *Service) Create(ctx context.Context, user *auth.AuthUser, in CreateInput) (*model.Subscription, error) {
	userID := in.UserID
	if userID == 0 {
		userID = user.ID
	}
	if !user.CanAccess(userID) {
		return nil, apperr.Forbidden(MsgForbidden)
	}

	sub, ok := model.NewSubscription(userID, in.PlanType, in.BillingCycle, in.AutoRenew, s.now().UTC())
	if !ok {
		return nil, apperr.Validation("Invalid plan type or billing cycle.")
	}
	if err := s.store.CreateSubscription(ctx, sub); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, apperr.Wrap(apperr.KindConflict, err, MsgActiveExists)
		}
		return nil, apperr.FromStorage(err, "Subscription")
	}
	s.metrics.IDAllocated(storage.CollectionSubscriptions)
	s.log.WithContext(ctx).Info("subscription created",
		"subscription_id", sub.ID, "user_id", sub.UserID, "plan", sub.PlanType, "cycle", sub.BillingCycle)
	return sub, nil
}

// Active 用户当前的 Active 订阅
func (s *Service) Active(ctx context.Context, user *auth.AuthUser, userID int64) (*model.Subscription, error) {
	if userID == 0 {
		userID = user.ID
	}
	if !user.CanAccess(userID) {
		return nil, apperr.Forbidden(MsgForbidden)
	}
	sub, err := s.store.GetActiveSubscription(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.NotFound(MsgNoActive)
	}
	if err != nil {
		return nil, apperr.FromStorage(err, "Subscription")
	}
	return sub, nil
}

func (s *Service) Get(ctx context.Context, user *auth.AuthUser, id int64) (*model.Subscription, error) {
	sub, err := s.store.GetSubscription(ctx, id)
	if err != nil {
		return nil, apperr.FromStorage(err, "Subscription")
	}
	if !user.CanAccess(sub.UserID) {
		return nil, apperr.Forbidden(MsgForbidden)
	}
	return sub, nil
}

// Pay 扣款并标记为已支付
//
// 扣款失败返回 402，订阅保持 Unpaid。
func (s *Service) Pay(ctx context.Context, user *auth.AuthUser, id int64, paymentMethod string) (*model.Subscription, error) {
	sub, err := s.Get(ctx, user, id)
	if err != nil {
		return nil, err
	}
	if sub.PlanType == model.PlanFree {
		return nil, apperr.Validation(MsgFreePlan)
	}
	if err := sub.CheckPayment(model.PaymentStatusPaid); err != nil {
		return nil, apperr.FromStorage(err, "Subscription")
	}

	result, err := s.gateway.Charge(ctx, payment.ChargeRequest{
		Amount:         sub.Amount(),
		Currency:       sub.PaymentCurrency,
		PaymentMethod:  paymentMethod,
		Description:    fmt.Sprintf("%s %s subscription", sub.PlanType, sub.BillingCycle),
		IdempotencyKey: fmt.Sprintf("subscription-%d", sub.ID),
	})
	if err != nil {
		if errors.Is(err, payment.ErrDeclined) {
			s.metrics.PaymentCharge("declined")
			return nil, apperr.Wrap(apperr.KindPaymentRequired, err, MsgDeclined)
		}
		s.metrics.PaymentCharge("failed")
		return nil, apperr.Wrap(apperr.KindPaymentRequired, err, MsgPaymentFailed)
	}
	s.metrics.PaymentCharge("succeeded")

	updated, err := s.store.MarkSubscriptionPaid(ctx, id, result.Reference, result.ChargedAt.UTC())
	if err != nil {
		// 已扣款但状态更新失败，记录 reference 便于人工对账
		s.log.WithContext(ctx).WithError(err).Error("mark subscription paid failed",
			"subscription_id", id, "reference", result.Reference)
		return nil, apperr.FromStorage(err, "Subscription")
	}
	s.recorder.Record(ctx, audit.Transition{
		Entity:   "subscription",
		EntityID: id,
		From:     string(model.PaymentStatusUnpaid),
		To:       string(model.PaymentStatusPaid),
		ActorID:  user.ID,
		Data:     map[string]string{"reference": result.Reference},
	})
	return updated, nil
}

// Cancel 取消 Active 订阅
func (s *Service) Cancel(ctx context.Context, user *auth.AuthUser, id int64) (*model.Subscription, error) {
	sub, err := s.Get(ctx, user, id)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, sub, model.SubscriptionStatusCancelled, user.ID)
}

func (s *Service) transition(ctx context.Context, sub *model.Subscription, to model.SubscriptionStatus, actorID int64) (*model.Subscription, error) {
	from := sub.Status
	if err := from.CheckTransition(to); err != nil {
		return nil, apperr.FromStorage(err, "Subscription")
	}
	updated, err := s.store.TransitionSubscription(ctx, sub.ID, from, to, s.now().UTC())
	if err != nil {
		return nil, apperr.FromStorage(err, "Subscription")
	}
	s.recorder.Record(ctx, audit.Transition{
		Entity:   "subscription",
		EntityID: sub.ID,
		From:     string(from),
		To:       string(to),
		ActorID:  actorID,
	})
	return updated, nil
}

// ExpireDue 将 endDate 已过的 Active 订阅置为 Expired，返回处理数量
//
// 与用户取消并发时，条件更新失败的订阅直接跳过。
func (s *Service) ExpireDue(ctx context.Context, batch int) (int, error) {
	due, err := s.store.ListExpiredSubscriptions(ctx, s.now().UTC(), batch)
	if err != nil {
		return 0, err
	}
	expired := 0
	for _, sub := range due {
		if _, err := s.transition(ctx, sub, model.SubscriptionStatusExpired, 0); err != nil {
			if apperr.KindOf(err) == apperr.KindConflict {
				continue
			}
			return expired, err
		}
		expired++
	}
	s.metrics.SubscriptionsExpired(expired)
	return expired, nil
}
