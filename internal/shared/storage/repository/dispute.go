package repository

import (
	"context"
	"time"

	"pocketfiler/internal/shared/model"
	"pocketfiler/internal/shared/storage"
)

var disputes = table[model.Dispute]{
	name:    storage.CollectionDisputes,
	columns: []string{"owner_id", "user_id", "status", "created_at"},
	values: func(d *model.Dispute) []interface{} {
		return []interface{}{d.OwnerID, d.UserID, string(d.Status), millis(d.CreatedAt)}
	},
	setID: func(d *model.Dispute, id int64) { d.ID = id },
}

func (s *Store) CreateDispute(ctx context.Context, dispute *model.Dispute) error {
	if dispute.Messages == nil {
		dispute.Messages = []model.DisputeMessage{}
	}
	if dispute.Documents == nil {
		dispute.Documents = []model.DisputeDocument{}
	}
	return insert(ctx, s, disputes, dispute)
}

func (s *Store) GetDispute(ctx context.Context, id int64) (*model.Dispute, error) {
	return getByID(ctx, s, disputes, id)
}

func (s *Store) ListDisputes(ctx context.Context, f storage.DisputeFilter) ([]*model.Dispute, int, error) {
	var w where
	if f.OwnerID != 0 {
		w.add("owner_id = $%d", f.OwnerID)
	}
	if f.UserID != 0 {
		w.add("user_id = $%d", f.UserID)
	}
	if f.Status != "" {
		w.add("status = $%d", string(f.Status))
	}
	return listPage(ctx, s, disputes, w, "created_at DESC, id DESC", f.Limit, f.Offset)
}

// mutateOpen 仅修改 Open 状态的争议
func (s *Store) mutateOpen(ctx context.Context, id int64, fn func(*model.Dispute)) (*model.Dispute, error) {
	return mutate(ctx, s, disputes, id, func(d *model.Dispute) error {
		if d.Status != model.DisputeStatusOpen {
			return storage.ErrConflict
		}
		fn(d)
		return nil
	})
}

func (s *Store) AppendDisputeMessage(ctx context.Context, id int64, msg model.DisputeMessage) (*model.Dispute, error) {
	return s.mutateOpen(ctx, id, func(d *model.Dispute) {
		d.Messages = append(d.Messages, msg)
		d.UpdatedAt = msg.Timestamp
	})
}

func (s *Store) AppendDisputeDocuments(ctx context.Context, id int64, docs []model.DisputeDocument) (*model.Dispute, error) {
	return s.mutateOpen(ctx, id, func(d *model.Dispute) {
		d.Documents = append(d.Documents, docs...)
		d.UpdatedAt = time.Now().UTC()
	})
}

func (s *Store) TransitionDispute(ctx context.Context, id int64, from, to model.DisputeStatus, at time.Time) (*model.Dispute, error) {
	return mutate(ctx, s, disputes, id, func(d *model.Dispute) error {
		if d.Status != from {
			return storage.ErrConflict
		}
		d.Status = to
		d.ClosedAt = &at
		d.UpdatedAt = at
		return nil
	})
}
