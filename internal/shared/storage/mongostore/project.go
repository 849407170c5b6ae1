package mongostore

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"pocketfiler/internal/shared/model"
	"pocketfiler/internal/shared/storage"
)

// ============================================================================
// ProjectStore
// ============================================================================

func (s *Store) CreateProject(ctx context.Context, project *model.Project) error {
	if project.Clients == nil {
		project.Clients = []model.ProjectClient{}
	}
	if project.Documents == nil {
		project.Documents = []model.ProjectDocument{}
	}
	if project.Activities == nil {
		project.Activities = []model.ProjectActivity{}
	}
	if project.Messages == nil {
		project.Messages = []model.ProjectMessage{}
	}
	return create(ctx, s, ColProjects, project, func(id int64) { project.ID = id })
}

func (s *Store) GetProject(ctx context.Context, id int64) (*model.Project, error) {
	return findOne[model.Project](ctx, s.col(ColProjects), byID(id))
}

func (s *Store) ListProjects(ctx context.Context, f storage.ProjectFilter) ([]*model.Project, int, error) {
	filter := bson.D{}
	if f.OwnerID != 0 {
		filter = append(filter, bson.E{Key: "owner_id", Value: f.OwnerID})
	}
	if f.Search != "" {
		filter = append(filter, bson.E{Key: "title", Value: containsFold(f.Search)})
	}
	if !f.Since.IsZero() || !f.Until.IsZero() {
		dateRange := bson.D{}
		if !f.Since.IsZero() {
			dateRange = append(dateRange, bson.E{Key: "$gte", Value: f.Since})
		}
		if !f.Until.IsZero() {
			dateRange = append(dateRange, bson.E{Key: "$lt", Value: f.Until})
		}
		filter = append(filter, bson.E{Key: "date", Value: dateRange})
	}
	sort := bson.D{{Key: "date", Value: -1}, {Key: "id", Value: -1}}
	return findPage[model.Project](ctx, s.col(ColProjects), filter, sort, f.Limit, f.Offset)
}

func (s *Store) AppendProjectDocuments(ctx context.Context, id int64, docs []model.ProjectDocument) (*model.Project, error) {
	return s.pushProject(ctx, id, nil, "documents", bson.D{{Key: "$each", Value: docs}})
}

func (s *Store) AppendProjectActivity(ctx context.Context, id int64, activity model.ProjectActivity) (*model.Project, error) {
	return s.pushProject(ctx, id, nil, "activities", activity)
}

func (s *Store) AppendProjectMessage(ctx context.Context, id int64, msg model.ProjectMessage) (*model.Project, error) {
	return s.pushProject(ctx, id, nil, "messages", msg)
}

func (s *Store) AddProjectClient(ctx context.Context, id int64, client model.ProjectClient) (*model.Project, error) {
	guard := bson.D{{Key: "clients.email", Value: bson.D{{Key: "$ne", Value: client.Email}}}}
	p, err := s.pushProject(ctx, id, guard, "clients", client)
	if errors.Is(err, storage.ErrConflict) {
		return nil, storage.ErrDuplicate
	}
	return p, err
}

func (s *Store) RemoveProjectClient(ctx context.Context, id int64, email string) (*model.Project, error) {
	p, err := guardedUpdate[model.Project](ctx, s.col(ColProjects), id,
		bson.D{{Key: "clients.email", Value: email}},
		bson.D{
			{Key: "$pull", Value: bson.D{{Key: "clients", Value: bson.D{{Key: "email", Value: email}}}}},
			set(bson.D{{Key: "updated_at", Value: time.Now().UTC()}}),
		},
	)
	if errors.Is(err, storage.ErrConflict) {
		return nil, storage.ErrNotFound
	}
	return p, err
}

func (s *Store) pushProject(ctx context.Context, id int64, guard bson.D, field string, value interface{}) (*model.Project, error) {
	return guardedUpdate[model.Project](ctx, s.col(ColProjects), id, guard, bson.D{
		{Key: "$push", Value: bson.D{{Key: field, Value: value}}},
		set(bson.D{{Key: "updated_at", Value: time.Now().UTC()}}),
	})
}
