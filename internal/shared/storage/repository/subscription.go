package repository

import (
	"context"
	"time"

	"pocketfiler/internal/shared/model"
	"pocketfiler/internal/shared/storage"
)

var subscriptions = table[model.Subscription]{
	name:    storage.CollectionSubscriptions,
	columns: []string{"user_id", "status", "end_date", "created_at"},
	values: func(sub *model.Subscription) []interface{} {
		return []interface{}{sub.UserID, string(sub.Status), millis(sub.EndDate), millis(sub.CreatedAt)}
	},
	setID: func(sub *model.Subscription, id int64) { sub.ID = id },
}

// CreateSubscription 依赖部分唯一索引保证每个用户最多一个 Active 订阅
func (s *Store) CreateSubscription(ctx context.Context, sub *model.Subscription) error {
	return insert(ctx, s, subscriptions, sub)
}

func (s *Store) GetSubscription(ctx context.Context, id int64) (*model.Subscription, error) {
	return getByID(ctx, s, subscriptions, id)
}

func (s *Store) GetActiveSubscription(ctx context.Context, userID int64) (*model.Subscription, error) {
	var w where
	w.add("user_id = $%d", userID)
	w.add("status = $%d", string(model.SubscriptionStatusActive))
	return getOne(ctx, s, subscriptions, w)
}

func (s *Store) MarkSubscriptionPaid(ctx context.Context, id int64, reference string, at time.Time) (*model.Subscription, error) {
	return mutate(ctx, s, subscriptions, id, func(sub *model.Subscription) error {
		if sub.Status != model.SubscriptionStatusActive || sub.PaymentStatus != model.PaymentStatusUnpaid {
			return storage.ErrConflict
		}
		sub.PaymentStatus = model.PaymentStatusPaid
		sub.PaymentReference = reference
		sub.PaidAt = &at
		sub.UpdatedAt = at
		return nil
	})
}

func (s *Store) TransitionSubscription(ctx context.Context, id int64, from, to model.SubscriptionStatus, at time.Time) (*model.Subscription, error) {
	return mutate(ctx, s, subscriptions, id, func(sub *model.Subscription) error {
		if sub.Status != from {
			return storage.ErrConflict
		}
		sub.Status = to
		sub.UpdatedAt = at
		if to == model.SubscriptionStatusCancelled {
			sub.CancelledAt = &at
		}
		return nil
	})
}

func (s *Store) ListExpiredSubscriptions(ctx context.Context, now time.Time, limit int) ([]*model.Subscription, error) {
	var w where
	w.add("status = $%d", string(model.SubscriptionStatusActive))
	w.add("end_date <= $%d", millis(now))
	return listDocs(ctx, s, subscriptions, w, "end_date ASC, id ASC", limit, 0)
}
