package repository

import (
	"context"
	"slices"
	"strings"
	"time"

	"pocketfiler/internal/shared/model"
	"pocketfiler/internal/shared/storage"
	"pocketfiler/internal/shared/storage/dbutil"
)

var projects = table[model.Project]{
	name:    storage.CollectionProjects,
	columns: []string{"owner_id", "title", "date", "created_at"},
	values: func(p *model.Project) []interface{} {
		return []interface{}{p.OwnerID, p.Title, millis(p.Date), millis(p.CreatedAt)}
	},
	setID: func(p *model.Project, id int64) { p.ID = id },
}

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
	return insert(ctx, s, projects, project)
}

func (s *Store) GetProject(ctx context.Context, id int64) (*model.Project, error) {
	return getByID(ctx, s, projects, id)
}

func (s *Store) ListProjects(ctx context.Context, f storage.ProjectFilter) ([]*model.Project, int, error) {
	var w where
	if f.OwnerID != 0 {
		w.add("owner_id = $%d", f.OwnerID)
	}
	if f.Search != "" {
		w.add(s.dialect.FoldCase("title")+` LIKE $%d ESCAPE '\'`, "%"+dbutil.EscapeLike(strings.ToLower(f.Search))+"%")
	}
	if !f.Since.IsZero() {
		w.add("date >= $%d", millis(f.Since))
	}
	if !f.Until.IsZero() {
		w.add("date < $%d", millis(f.Until))
	}
	return listPage(ctx, s, projects, w, "date DESC, id DESC", f.Limit, f.Offset)
}

func (s *Store) touchProject(ctx context.Context, id int64, fn func(*model.Project) error) (*model.Project, error) {
	return mutate(ctx, s, projects, id, func(p *model.Project) error {
		if err := fn(p); err != nil {
			return err
		}
		p.UpdatedAt = time.Now().UTC()
		return nil
	})
}

func (s *Store) AppendProjectDocuments(ctx context.Context, id int64, docs []model.ProjectDocument) (*model.Project, error) {
	return s.touchProject(ctx, id, func(p *model.Project) error {
		p.Documents = append(p.Documents, docs...)
		return nil
	})
}

func (s *Store) AppendProjectActivity(ctx context.Context, id int64, activity model.ProjectActivity) (*model.Project, error) {
	return s.touchProject(ctx, id, func(p *model.Project) error {
		p.Activities = append(p.Activities, activity)
		return nil
	})
}

func (s *Store) AppendProjectMessage(ctx context.Context, id int64, msg model.ProjectMessage) (*model.Project, error) {
	return s.touchProject(ctx, id, func(p *model.Project) error {
		p.Messages = append(p.Messages, msg)
		return nil
	})
}

func (s *Store) AddProjectClient(ctx context.Context, id int64, client model.ProjectClient) (*model.Project, error) {
	return s.touchProject(ctx, id, func(p *model.Project) error {
		if p.HasClient(client.Email) {
			return storage.ErrDuplicate
		}
		p.Clients = append(p.Clients, client)
		return nil
	})
}

func (s *Store) RemoveProjectClient(ctx context.Context, id int64, email string) (*model.Project, error) {
	return s.touchProject(ctx, id, func(p *model.Project) error {
		i := slices.IndexFunc(p.Clients, func(c model.ProjectClient) bool { return c.Email == email })
		if i < 0 {
			return storage.ErrNotFound
		}
		p.Clients = slices.Delete(p.Clients, i, i+1)
		return nil
	})
}
