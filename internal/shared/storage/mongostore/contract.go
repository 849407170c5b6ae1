package mongostore

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"pocketfiler/internal/shared/model"
	"pocketfiler/internal/shared/storage"
)

// 分享合同时乐观锁的重试次数
const shareAttempts = 3

// ============================================================================
// ContractStore
// ============================================================================

func (s *Store) CreateContract(ctx context.Context, contract *model.Contract) error {
	if contract.Associates == nil {
		contract.Associates = []model.ContractShare{}
	}
	return create(ctx, s, ColContracts, contract, func(id int64) { contract.ID = id })
}

func (s *Store) GetContract(ctx context.Context, id int64) (*model.Contract, error) {
	return findOne[model.Contract](ctx, s.col(ColContracts), byID(id))
}

func (s *Store) ListContracts(ctx context.Context, f storage.ContractFilter) ([]*model.Contract, int, error) {
	filter := bson.D{}
	if f.OwnerID != 0 {
		filter = append(filter, bson.E{Key: "owner_id", Value: f.OwnerID})
	}
	sort := bson.D{{Key: "created_at", Value: -1}, {Key: "id", Value: -1}}
	return findPage[model.Contract](ctx, s.col(ColContracts), filter, sort, f.Limit, f.Offset)
}

func (s *Store) SetContractFile(ctx context.Context, id int64, fileKey, fileRef string) (*model.Contract, error) {
	return guardedUpdate[model.Contract](ctx, s.col(ColContracts), id, nil,
		bson.D{set(bson.D{
			{Key: "file_key", Value: fileKey},
			{Key: "file_ref", Value: fileRef},
			{Key: "updated_at", Value: time.Now().UTC()},
		})})
}

func (s *Store) SetContractSignature(ctx context.Context, id int64, signatureRef string) (*model.Contract, error) {
	return guardedUpdate[model.Contract](ctx, s.col(ColContracts), id, nil,
		bson.D{set(bson.D{{Key: "signature_ref", Value: signatureRef}, {Key: "updated_at", Value: time.Now().UTC()}})})
}

// ShareContract 读取-合并-条件写回，以 updated_at 作为乐观锁版本
func (s *Store) ShareContract(ctx context.Context, id int64, shares []model.ContractShare) (*model.Contract, []model.ContractShare, error) {
	for attempt := 0; attempt < shareAttempts; attempt++ {
		c, err := s.GetContract(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		version := c.UpdatedAt
		added := c.MergeShares(shares)
		if len(added) == 0 {
			return c, nil, nil
		}

		updated, err := guardedUpdate[model.Contract](ctx, s.col(ColContracts), id,
			bson.D{{Key: "updated_at", Value: version}},
			bson.D{set(bson.D{
				{Key: "associates", Value: c.Associates},
				{Key: "updated_at", Value: time.Now().UTC()},
			})},
		)
		if errors.Is(err, storage.ErrConflict) {
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		return updated, added, nil
	}
	return nil, nil, storage.ErrConflict
}
