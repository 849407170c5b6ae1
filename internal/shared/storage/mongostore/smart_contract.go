package mongostore

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"

	"pocketfiler/internal/shared/model"
	"pocketfiler/internal/shared/storage"
)

// ============================================================================
// SmartContractStore
// ============================================================================

func (s *Store) CreateSmartContract(ctx context.Context, contract *model.SmartContract) error {
	return create(ctx, s, ColSmartContracts, contract, func(id int64) { contract.ID = id })
}

func (s *Store) GetSmartContract(ctx context.Context, id int64) (*model.SmartContract, error) {
	return findOne[model.SmartContract](ctx, s.col(ColSmartContracts), byID(id))
}

func (s *Store) ListSmartContracts(ctx context.Context, f storage.SmartContractFilter) ([]*model.SmartContract, int, error) {
	filter := bson.D{}
	if f.OwnerID != 0 {
		filter = append(filter, bson.E{Key: "owner_id", Value: f.OwnerID})
	}
	sort := bson.D{{Key: "created_at", Value: -1}, {Key: "id", Value: -1}}
	return findPage[model.SmartContract](ctx, s.col(ColSmartContracts), filter, sort, f.Limit, f.Offset)
}
