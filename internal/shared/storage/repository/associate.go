package repository

import (
	"context"
	"time"

	"pocketfiler/internal/shared/model"
	"pocketfiler/internal/shared/storage"
)

var associates = table[model.Associate]{
	name:    storage.CollectionAssociates,
	columns: []string{"owner_id", "email", "invitation_token", "status", "created_at"},
	values: func(a *model.Associate) []interface{} {
		return []interface{}{a.OwnerID, a.Email, nullable(a.InvitationToken), string(a.Status), millis(a.CreatedAt)}
	},
	setID: func(a *model.Associate, id int64) { a.ID = id },
}

func (s *Store) CreateAssociate(ctx context.Context, associate *model.Associate) error {
	return insert(ctx, s, associates, associate)
}

func (s *Store) GetAssociate(ctx context.Context, id int64) (*model.Associate, error) {
	return getByID(ctx, s, associates, id)
}

func (s *Store) GetAssociateByToken(ctx context.Context, token string) (*model.Associate, error) {
	if token == "" {
		return nil, storage.ErrNotFound
	}
	var w where
	w.add("invitation_token = $%d", token)
	return getOne(ctx, s, associates, w)
}

func (s *Store) ListAssociates(ctx context.Context, f storage.AssociateFilter) ([]*model.Associate, int, error) {
	var w where
	if f.OwnerID != 0 {
		w.add("owner_id = $%d", f.OwnerID)
	}
	if f.Status != "" {
		w.add("status = $%d", string(f.Status))
	}
	return listPage(ctx, s, associates, w, "created_at DESC, id DESC", f.Limit, f.Offset)
}

func (s *Store) TransitionAssociate(ctx context.Context, id int64, from, to model.AssociateStatus, at time.Time) (*model.Associate, error) {
	return mutate(ctx, s, associates, id, func(a *model.Associate) error {
		if a.Status != from {
			return storage.ErrConflict
		}
		a.Status = to
		a.RespondedAt = &at
		a.UpdatedAt = at
		return nil
	})
}

func (s *Store) DeleteAssociate(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, s.rebind("DELETE FROM associates WHERE id = $1"), id)
	if err != nil {
		return s.wrapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}
