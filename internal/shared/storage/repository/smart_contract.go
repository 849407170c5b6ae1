package repository

import (
	"context"

	"pocketfiler/internal/shared/model"
	"pocketfiler/internal/shared/storage"
)

var smartContracts = table[model.SmartContract]{
	name:    storage.CollectionSmartContracts,
	columns: []string{"owner_id", "created_at"},
	values: func(c *model.SmartContract) []interface{} {
		return []interface{}{c.OwnerID, millis(c.CreatedAt)}
	},
	setID: func(c *model.SmartContract, id int64) { c.ID = id },
}

func (s *Store) CreateSmartContract(ctx context.Context, contract *model.SmartContract) error {
	return insert(ctx, s, smartContracts, contract)
}

func (s *Store) GetSmartContract(ctx context.Context, id int64) (*model.SmartContract, error) {
	return getByID(ctx, s, smartContracts, id)
}

func (s *Store) ListSmartContracts(ctx context.Context, f storage.SmartContractFilter) ([]*model.SmartContract, int, error) {
	var w where
	if f.OwnerID != 0 {
		w.add("owner_id = $%d", f.OwnerID)
	}
	return listPage(ctx, s, smartContracts, w, "created_at DESC, id DESC", f.Limit, f.Offset)
}
