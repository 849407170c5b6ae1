package repository

import (
	"context"

	"pocketfiler/internal/shared/model"
)

func (s *Store) Summary(ctx context.Context, ownerID int64) (*model.DashboardSummary, error) {
	scope := func() where {
		var w where
		if ownerID != 0 {
			w.add("owner_id = $%d", ownerID)
		}
		return w
	}

	var sum model.DashboardSummary
	var err error
	if sum.Projects, err = count(ctx, s, projects.name, scope()); err != nil {
		return nil, err
	}
	if sum.Contracts, err = count(ctx, s, contracts.name, scope()); err != nil {
		return nil, err
	}
	open := scope()
	open.add("status = $%d", string(model.DisputeStatusOpen))
	if sum.OpenDisputes, err = count(ctx, s, disputes.name, open); err != nil {
		return nil, err
	}

	w := scope()
	rows, err := s.db.QueryContext(ctx,
		s.rebind("SELECT status, COUNT(*) FROM associates"+w.clause()+" GROUP BY status"), w.args...)
	if err != nil {
		return nil, s.wrapError(err)
	}
	defer rows.Close()

	for rows.Next() {
		var status model.AssociateStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		switch status {
		case model.AssociateStatusPending:
			sum.Associates.Pending = n
		case model.AssociateStatusAccepted:
			sum.Associates.Accepted = n
		case model.AssociateStatusRejected:
			sum.Associates.Rejected = n
		}
	}
	return &sum, rows.Err()
}
