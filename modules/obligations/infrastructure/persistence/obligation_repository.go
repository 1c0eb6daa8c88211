package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	gerrors "github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/enveng-group/greenova/modules/obligations/domain/aggregates/obligation"
	"github.com/enveng-group/greenova/pkg/composables"
)

var (
	selectObligationsQuery = `SELECT ` + obligationColumns + ` FROM obligations`

	insertObligationQuery = `INSERT INTO obligations (` + obligationColumns + `) VALUES (
	:obligation_number, :project_id, :primary_environmental_mechanism_id, :procedure,
	:environmental_aspect, :obligation, :accountability, :responsibility, :project_phase,
	:action_due_date, :close_out_date, :status, :supporting_information, :general_comments,
	:compliance_comments, :non_conformance_comments, :evidence_notes, :recurring_obligation,
	:recurring_frequency, :recurring_status, :recurring_forcasted_date, :inspection,
	:inspection_frequency, :site_or_desktop, :gap_analysis, :notes_for_gap_analysis,
	:created_at, :updated_at)`

	updateObligationQuery = `UPDATE obligations SET
	project_id = :project_id,
	primary_environmental_mechanism_id = :primary_environmental_mechanism_id,
	procedure = :procedure,
	environmental_aspect = :environmental_aspect,
	obligation = :obligation,
	accountability = :accountability,
	responsibility = :responsibility,
	project_phase = :project_phase,
	action_due_date = :action_due_date,
	close_out_date = :close_out_date,
	status = :status,
	supporting_information = :supporting_information,
	general_comments = :general_comments,
	compliance_comments = :compliance_comments,
	non_conformance_comments = :non_conformance_comments,
	evidence_notes = :evidence_notes,
	recurring_obligation = :recurring_obligation,
	recurring_frequency = :recurring_frequency,
	recurring_status = :recurring_status,
	recurring_forcasted_date = :recurring_forcasted_date,
	inspection = :inspection,
	inspection_frequency = :inspection_frequency,
	site_or_desktop = :site_or_desktop,
	gap_analysis = :gap_analysis,
	notes_for_gap_analysis = :notes_for_gap_analysis,
	updated_at = :updated_at
WHERE obligation_number = :obligation_number`
)

type ObligationRepository struct{}

func NewObligationRepository() obligation.Repository {
	return &ObligationRepository{}
}

func (r *ObligationRepository) GetByNumber(ctx context.Context, number string) (obligation.Obligation, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return obligation.Obligation{}, err
	}
	var row obligationRow
	q := tx.Rebind(selectObligationsQuery + ` WHERE obligation_number = ?`)
	if err := sqlx.GetContext(ctx, tx, &row, q, strings.TrimSpace(number)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return obligation.Obligation{}, obligation.ErrNotFound
		}
		return obligation.Obligation{}, gerrors.Wrap(err, "get obligation")
	}
	return toDomainObligation(row), nil
}

func (r *ObligationRepository) Exists(ctx context.Context, number string) (bool, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return false, err
	}
	var n int
	q := tx.Rebind(`SELECT COUNT(*) FROM obligations WHERE obligation_number = ?`)
	if err := sqlx.GetContext(ctx, tx, &n, q, strings.TrimSpace(number)); err != nil {
		return false, gerrors.Wrap(err, "check obligation")
	}
	return n > 0, nil
}

func (r *ObligationRepository) Create(ctx context.Context, o obligation.Obligation) (obligation.Obligation, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return obligation.Obligation{}, err
	}
	now := time.Now().UTC()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	if o.UpdatedAt.IsZero() {
		o.UpdatedAt = o.CreatedAt
	}
	if _, err := sqlx.NamedExecContext(ctx, tx, insertObligationQuery, toObligationRow(o)); err != nil {
		if isUniqueViolation(err) {
			return obligation.Obligation{}, fmt.Errorf("%w: %s", obligation.ErrDuplicateNumber, o.ObligationNumber)
		}
		return obligation.Obligation{}, gerrors.Wrap(err, "create obligation")
	}
	return o, nil
}

func (r *ObligationRepository) Update(ctx context.Context, o obligation.Obligation) (obligation.Obligation, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return obligation.Obligation{}, err
	}
	if o.UpdatedAt.IsZero() {
		o.UpdatedAt = time.Now().UTC()
	}
	res, err := sqlx.NamedExecContext(ctx, tx, updateObligationQuery, toObligationRow(o))
	if err != nil {
		return obligation.Obligation{}, gerrors.Wrap(err, "update obligation")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return obligation.Obligation{}, gerrors.Wrap(err, "update obligation")
	}
	if affected == 0 {
		return obligation.Obligation{}, obligation.ErrNotFound
	}
	return o, nil
}

func (r *ObligationRepository) ListByMechanism(ctx context.Context, mechanismID uuid.UUID) ([]obligation.Obligation, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	q := tx.Rebind(selectObligationsQuery + ` WHERE primary_environmental_mechanism_id = ? ORDER BY obligation_number`)
	return r.list(ctx, tx, q, mechanismID)
}

func (r *ObligationRepository) ListWithMechanism(ctx context.Context) ([]obligation.Obligation, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	q := selectObligationsQuery + ` WHERE primary_environmental_mechanism_id IS NOT NULL ORDER BY obligation_number`
	return r.list(ctx, tx, q)
}

func (r *ObligationRepository) Count(ctx context.Context) (int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := sqlx.GetContext(ctx, tx, &n, `SELECT COUNT(*) FROM obligations`); err != nil {
		return 0, gerrors.Wrap(err, "count obligations")
	}
	return n, nil
}

func (r *ObligationRepository) list(ctx context.Context, tx sqlx.QueryerContext, q string, args ...any) ([]obligation.Obligation, error) {
	var rows []obligationRow
	if err := sqlx.SelectContext(ctx, tx, &rows, q, args...); err != nil {
		return nil, gerrors.Wrap(err, "list obligations")
	}
	out := make([]obligation.Obligation, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomainObligation(row))
	}
	return out, nil
}
