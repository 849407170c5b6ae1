package mongostore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"pocketfiler/internal/shared/model"
	"pocketfiler/internal/shared/storage"
)

// ============================================================================
// AssociateStore
// ============================================================================

func (s *Store) CreateAssociate(ctx context.Context, associate *model.Associate) error {
	return create(ctx, s, ColAssociates, associate, func(id int64) { associate.ID = id })
}

func (s *Store) GetAssociate(ctx context.Context, id int64) (*model.Associate, error) {
	return findOne[model.Associate](ctx, s.col(ColAssociates), byID(id))
}

func (s *Store) GetAssociateByToken(ctx context.Context, token string) (*model.Associate, error) {
	if token == "" {
		return nil, storage.ErrNotFound
	}
	return findOne[model.Associate](ctx, s.col(ColAssociates), bson.D{{Key: "invitation_token", Value: token}})
}

func (s *Store) ListAssociates(ctx context.Context, f storage.AssociateFilter) ([]*model.Associate, int, error) {
	filter := bson.D{}
	if f.OwnerID != 0 {
		filter = append(filter, bson.E{Key: "owner_id", Value: f.OwnerID})
	}
	if f.Status != "" {
		filter = append(filter, bson.E{Key: "status", Value: f.Status})
	}
	sort := bson.D{{Key: "created_at", Value: -1}, {Key: "id", Value: -1}}
	return findPage[model.Associate](ctx, s.col(ColAssociates), filter, sort, f.Limit, f.Offset)
}

func (s *Store) TransitionAssociate(ctx context.Context, id int64, from, to model.AssociateStatus, at time.Time) (*model.Associate, error) {
	return guardedUpdate[model.Associate](ctx, s.col(ColAssociates), id,
		bson.D{{Key: "status", Value: from}},
		bson.D{set(bson.D{
			{Key: "status", Value: to},
			{Key: "responded_at", Value: at},
			{Key: "updated_at", Value: at},
		})},
	)
}

func (s *Store) DeleteAssociate(ctx context.Context, id int64) error {
	res, err := s.col(ColAssociates).DeleteOne(ctx, byID(id))
	if err != nil {
		return wrapError(err)
	}
	if res.DeletedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}
