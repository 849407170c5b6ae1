package repository

import (
	"context"
	"time"

	"pocketfiler/internal/shared/model"
	"pocketfiler/internal/shared/storage"
)

var contracts = table[model.Contract]{
	name:    storage.CollectionContracts,
	columns: []string{"owner_id", "created_at"},
	values: func(c *model.Contract) []interface{} {
		return []interface{}{c.OwnerID, millis(c.CreatedAt)}
	},
	setID: func(c *model.Contract, id int64) { c.ID = id },
}

func (s *Store) CreateContract(ctx context.Context, contract *model.Contract) error {
	if contract.Associates == nil {
		contract.Associates = []model.ContractShare{}
	}
	return insert(ctx, s, contracts, contract)
}

func (s *Store) GetContract(ctx context.Context, id int64) (*model.Contract, error) {
	return getByID(ctx, s, contracts, id)
}

func (s *Store) ListContracts(ctx context.Context, f storage.ContractFilter) ([]*model.Contract, int, error) {
	var w where
	if f.OwnerID != 0 {
		w.add("owner_id = $%d", f.OwnerID)
	}
	return listPage(ctx, s, contracts, w, "created_at DESC, id DESC", f.Limit, f.Offset)
}

func (s *Store) SetContractFile(ctx context.Context, id int64, fileKey, fileRef string) (*model.Contract, error) {
	return mutate(ctx, s, contracts, id, func(c *model.Contract) error {
		c.FileKey = fileKey
		c.FileRef = fileRef
		c.UpdatedAt = time.Now().UTC()
		return nil
	})
}

func (s *Store) SetContractSignature(ctx context.Context, id int64, signatureRef string) (*model.Contract, error) {
	return mutate(ctx, s, contracts, id, func(c *model.Contract) error {
		c.SignatureRef = signatureRef
		c.UpdatedAt = time.Now().UTC()
		return nil
	})
}

func (s *Store) ShareContract(ctx context.Context, id int64, shares []model.ContractShare) (*model.Contract, []model.ContractShare, error) {
	var added []model.ContractShare
	c, err := mutate(ctx, s, contracts, id, func(c *model.Contract) error {
		added = c.MergeShares(shares)
		if len(added) > 0 {
			c.UpdatedAt = time.Now().UTC()
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return c, added, nil
}
