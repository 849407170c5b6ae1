package mongostore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"pocketfiler/internal/shared/model"
	"pocketfiler/internal/shared/storage"
)

// ============================================================================
// DisputeStore
// ============================================================================

func (s *Store) CreateDispute(ctx context.Context, dispute *model.Dispute) error {
	if dispute.Messages == nil {
		dispute.Messages = []model.DisputeMessage{}
	}
	if dispute.Documents == nil {
		dispute.Documents = []model.DisputeDocument{}
	}
	return create(ctx, s, ColDisputes, dispute, func(id int64) { dispute.ID = id })
}

func (s *Store) GetDispute(ctx context.Context, id int64) (*model.Dispute, error) {
	return findOne[model.Dispute](ctx, s.col(ColDisputes), byID(id))
}

func (s *Store) ListDisputes(ctx context.Context, f storage.DisputeFilter) ([]*model.Dispute, int, error) {
	filter := bson.D{}
	if f.OwnerID != 0 {
		filter = append(filter, bson.E{Key: "owner_id", Value: f.OwnerID})
	}
	if f.UserID != 0 {
		filter = append(filter, bson.E{Key: "user_id", Value: f.UserID})
	}
	if f.Status != "" {
		filter = append(filter, bson.E{Key: "status", Value: f.Status})
	}
	sort := bson.D{{Key: "created_at", Value: -1}, {Key: "id", Value: -1}}
	return findPage[model.Dispute](ctx, s.col(ColDisputes), filter, sort, f.Limit, f.Offset)
}

// openOnly 消息和附件只能追加到 Open 状态的争议
var openOnly = bson.D{{Key: "status", Value: model.DisputeStatusOpen}}

func (s *Store) AppendDisputeMessage(ctx context.Context, id int64, msg model.DisputeMessage) (*model.Dispute, error) {
	return guardedUpdate[model.Dispute](ctx, s.col(ColDisputes), id, openOnly, bson.D{
		{Key: "$push", Value: bson.D{{Key: "messages", Value: msg}}},
		set(bson.D{{Key: "updated_at", Value: msg.Timestamp}}),
	})
}

func (s *Store) AppendDisputeDocuments(ctx context.Context, id int64, docs []model.DisputeDocument) (*model.Dispute, error) {
	return guardedUpdate[model.Dispute](ctx, s.col(ColDisputes), id, openOnly, bson.D{
		{Key: "$push", Value: bson.D{{Key: "documents", Value: bson.D{{Key: "$each", Value: docs}}}}},
		set(bson.D{{Key: "updated_at", Value: time.Now().UTC()}}),
	})
}

func (s *Store) TransitionDispute(ctx context.Context, id int64, from, to model.DisputeStatus, at time.Time) (*model.Dispute, error) {
	return guardedUpdate[model.Dispute](ctx, s.col(ColDisputes), id,
		bson.D{{Key: "status", Value: from}},
		bson.D{set(bson.D{
			{Key: "status", Value: to},
			{Key: "closed_at", Value: at},
			{Key: "updated_at", Value: at},
		})},
	)
}
