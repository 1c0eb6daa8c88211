package persistence

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	gerrors "github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/enveng-group/greenova/modules/obligations/domain/entities/mechanism"
	"github.com/enveng-group/greenova/pkg/composables"
)

var selectMechanismsQuery = `SELECT ` + mechanismColumns + ` FROM environmental_mechanisms`

type MechanismRepository struct{}

func NewMechanismRepository() mechanism.Repository {
	return &MechanismRepository{}
}

func (r *MechanismRepository) Get(ctx context.Context, projectID uuid.UUID, name string) (mechanism.EnvironmentalMechanism, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return mechanism.EnvironmentalMechanism{}, err
	}
	var row mechanismRow
	q := tx.Rebind(selectMechanismsQuery + ` WHERE project_id = ? AND name = ?`)
	if err := sqlx.GetContext(ctx, tx, &row, q, projectID, strings.TrimSpace(name)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return mechanism.EnvironmentalMechanism{}, mechanism.ErrNotFound
		}
		return mechanism.EnvironmentalMechanism{}, gerrors.Wrap(err, "get mechanism")
	}
	return toDomainMechanism(row), nil
}

// GetOrCreate inserts m unless a mechanism with the same project and name exists.
// The stored row wins; m.ID is discarded in that case.
func (r *MechanismRepository) GetOrCreate(ctx context.Context, m mechanism.EnvironmentalMechanism) (mechanism.EnvironmentalMechanism, bool, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return mechanism.EnvironmentalMechanism{}, false, err
	}
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	now := timestamp{time.Now().UTC()}
	q := tx.Rebind(`INSERT INTO environmental_mechanisms (id, project_id, name, reference_number, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?) ON CONFLICT (project_id, name) DO NOTHING`)
	res, err := tx.ExecContext(ctx, q, m.ID, m.ProjectID, strings.TrimSpace(m.Name), m.ReferenceNumber, now, now)
	if err != nil {
		return mechanism.EnvironmentalMechanism{}, false, gerrors.Wrap(err, "create mechanism")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return mechanism.EnvironmentalMechanism{}, false, gerrors.Wrap(err, "create mechanism")
	}
	stored, err := r.Get(ctx, m.ProjectID, m.Name)
	if err != nil {
		return mechanism.EnvironmentalMechanism{}, false, err
	}
	return stored, affected > 0, nil
}

func (r *MechanismRepository) List(ctx context.Context) ([]mechanism.EnvironmentalMechanism, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	var rows []mechanismRow
	if err := sqlx.SelectContext(ctx, tx, &rows, selectMechanismsQuery+` ORDER BY name`); err != nil {
		return nil, gerrors.Wrap(err, "list mechanisms")
	}
	out := make([]mechanism.EnvironmentalMechanism, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomainMechanism(row))
	}
	return out, nil
}

func (r *MechanismRepository) UpdateCounts(ctx context.Context, id uuid.UUID, counts mechanism.Counts) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	q := tx.Rebind(`UPDATE environmental_mechanisms SET
	not_started_count = ?, in_progress_count = ?, completed_count = ?, overdue_count = ?, total_count = ?, updated_at = ?
WHERE id = ?`)
	res, err := tx.ExecContext(ctx, q,
		counts.NotStarted, counts.InProgress, counts.Completed, counts.Overdue, counts.Total,
		timestamp{time.Now().UTC()}, id,
	)
	if err != nil {
		return gerrors.Wrap(err, "update mechanism counts")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return gerrors.Wrap(err, "update mechanism counts")
	}
	if affected == 0 {
		return mechanism.ErrNotFound
	}
	return nil
}
