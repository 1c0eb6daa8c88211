package persistence

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	gerrors "github.com/go-faster/errors"
	"github.com/jmoiron/sqlx"

	"github.com/enveng-group/greenova/modules/obligations/domain/entities/project"
	"github.com/enveng-group/greenova/pkg/composables"
)

type ProjectRepository struct{}

func NewProjectRepository() project.Repository {
	return &ProjectRepository{}
}

func (r *ProjectRepository) GetByName(ctx context.Context, name string) (project.Project, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return project.Project{}, err
	}
	var row projectRow
	q := tx.Rebind(`SELECT id, name, created_at FROM projects WHERE name = ?`)
	if err := sqlx.GetContext(ctx, tx, &row, q, strings.TrimSpace(name)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return project.Project{}, project.ErrNotFound
		}
		return project.Project{}, gerrors.Wrap(err, "get project")
	}
	return toDomainProject(row), nil
}

func (r *ProjectRepository) GetOrCreate(ctx context.Context, name string) (project.Project, bool, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return project.Project{}, false, err
	}
	p := project.New(name)
	if p.Name == "" {
		return project.Project{}, false, gerrors.New("project name is empty")
	}
	q := tx.Rebind(`INSERT INTO projects (id, name, created_at) VALUES (?, ?, ?) ON CONFLICT (name) DO NOTHING`)
	res, err := tx.ExecContext(ctx, q, p.ID, p.Name, timestamp{time.Now().UTC()})
	if err != nil {
		return project.Project{}, false, gerrors.Wrap(err, "create project")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return project.Project{}, false, gerrors.Wrap(err, "create project")
	}
	stored, err := r.GetByName(ctx, p.Name)
	if err != nil {
		return project.Project{}, false, err
	}
	return stored, affected > 0, nil
}
