package mongostore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"pocketfiler/internal/shared/model"
	"pocketfiler/internal/shared/storage"
)

// ============================================================================
// SubscriptionStore
// ============================================================================

// CreateSubscription 依赖 user_id 的部分唯一索引保证每个用户最多一个 Active 订阅
func (s *Store) CreateSubscription(ctx context.Context, sub *model.Subscription) error {
	return create(ctx, s, ColSubscriptions, sub, func(id int64) { sub.ID = id })
}

func (s *Store) GetSubscription(ctx context.Context, id int64) (*model.Subscription, error) {
	return findOne[model.Subscription](ctx, s.col(ColSubscriptions), byID(id))
}

func (s *Store) GetActiveSubscription(ctx context.Context, userID int64) (*model.Subscription, error) {
	return findOne[model.Subscription](ctx, s.col(ColSubscriptions), bson.D{
		{Key: "user_id", Value: userID},
		{Key: "status", Value: model.SubscriptionStatusActive},
	})
}

func (s *Store) MarkSubscriptionPaid(ctx context.Context, id int64, reference string, at time.Time) (*model.Subscription, error) {
	return guardedUpdate[model.Subscription](ctx, s.col(ColSubscriptions), id,
		bson.D{
			{Key: "status", Value: model.SubscriptionStatusActive},
			{Key: "payment_status", Value: model.PaymentStatusUnpaid},
		},
		bson.D{set(bson.D{
			{Key: "payment_status", Value: model.PaymentStatusPaid},
			{Key: "payment_reference", Value: reference},
			{Key: "paid_at", Value: at},
			{Key: "updated_at", Value: at},
		})},
	)
}

func (s *Store) TransitionSubscription(ctx context.Context, id int64, from, to model.SubscriptionStatus, at time.Time) (*model.Subscription, error) {
	fields := bson.D{
		{Key: "status", Value: to},
		{Key: "updated_at", Value: at},
	}
	if to == model.SubscriptionStatusCancelled {
		fields = append(fields, bson.E{Key: "cancelled_at", Value: at})
	}
	return guardedUpdate[model.Subscription](ctx, s.col(ColSubscriptions), id,
		bson.D{{Key: "status", Value: from}},
		bson.D{set(fields)},
	)
}

func (s *Store) ListExpiredSubscriptions(ctx context.Context, now time.Time, limit int) ([]*model.Subscription, error) {
	filter := bson.D{
		{Key: "status", Value: model.SubscriptionStatusActive},
		{Key: "end_date", Value: bson.D{{Key: "$lte", Value: now}}},
	}
	opts := options.Find().SetSort(bson.D{{Key: "end_date", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return findMany[model.Subscription](ctx, s.col(ColSubscriptions), filter, opts)
}

// ============================================================================
// SummaryStore
// ============================================================================

func (s *Store) Summary(ctx context.Context, ownerID int64) (*model.DashboardSummary, error) {
	scope := func(extra ...bson.E) bson.D {
		filter := bson.D{}
		if ownerID != 0 {
			filter = append(filter, bson.E{Key: "owner_id", Value: ownerID})
		}
		return append(filter, extra...)
	}
	count := func(col string, filter bson.D) (int, error) {
		n, err := s.col(col).CountDocuments(ctx, filter)
		return int(n), wrapError(err)
	}

	var sum model.DashboardSummary
	var err error
	if sum.Projects, err = count(ColProjects, scope()); err != nil {
		return nil, err
	}
	if sum.Contracts, err = count(ColContracts, scope()); err != nil {
		return nil, err
	}
	if sum.OpenDisputes, err = count(ColDisputes, scope(bson.E{Key: "status", Value: model.DisputeStatusOpen})); err != nil {
		return nil, err
	}

	cursor, err := s.col(ColAssociates).Aggregate(ctx, bson.A{
		bson.D{{Key: "$match", Value: scope()}},
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$status"},
			{Key: "n", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	})
	if err != nil {
		return nil, wrapError(err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var row struct {
			Status model.AssociateStatus `bson:"_id"`
			N      int                   `bson:"n"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, err
		}
		switch row.Status {
		case model.AssociateStatusPending:
			sum.Associates.Pending = row.N
		case model.AssociateStatusAccepted:
			sum.Associates.Accepted = row.N
		case model.AssociateStatusRejected:
			sum.Associates.Rejected = row.N
		}
	}
	return &sum, cursor.Err()
}

var _ storage.SummaryStore = (*Store)(nil)
