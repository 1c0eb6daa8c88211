package persistence

import (
	"github.com/google/uuid"

	"github.com/enveng-group/greenova/modules/obligations/domain/aggregates/obligation"
	"github.com/enveng-group/greenova/modules/obligations/domain/entities/mechanism"
	"github.com/enveng-group/greenova/modules/obligations/domain/entities/project"
)

type projectRow struct {
	ID        uuid.UUID `db:"id"`
	Name      string    `db:"name"`
	CreatedAt timestamp `db:"created_at"`
}

type mechanismRow struct {
	ID              uuid.UUID `db:"id"`
	ProjectID       uuid.UUID `db:"project_id"`
	Name            string    `db:"name"`
	ReferenceNumber string    `db:"reference_number"`
	NotStarted      int       `db:"not_started_count"`
	InProgress      int       `db:"in_progress_count"`
	Completed       int       `db:"completed_count"`
	Overdue         int       `db:"overdue_count"`
	Total           int       `db:"total_count"`
	CreatedAt       timestamp `db:"created_at"`
	UpdatedAt       timestamp `db:"updated_at"`
}

type obligationRow struct {
	ObligationNumber       string        `db:"obligation_number"`
	ProjectID              uuid.UUID     `db:"project_id"`
	MechanismID            uuid.NullUUID `db:"primary_environmental_mechanism_id"`
	Procedure              string        `db:"procedure"`
	EnvironmentalAspect    string        `db:"environmental_aspect"`
	Obligation             string        `db:"obligation"`
	Accountability         string        `db:"accountability"`
	Responsibility         string        `db:"responsibility"`
	ProjectPhase           string        `db:"project_phase"`
	ActionDueDate          nullDate      `db:"action_due_date"`
	CloseOutDate           nullDate      `db:"close_out_date"`
	Status                 string        `db:"status"`
	SupportingInformation  string        `db:"supporting_information"`
	GeneralComments        string        `db:"general_comments"`
	ComplianceComments     string        `db:"compliance_comments"`
	NonConformanceComments string        `db:"non_conformance_comments"`
	EvidenceNotes          string        `db:"evidence_notes"`
	RecurringObligation    bool          `db:"recurring_obligation"`
	RecurringFrequency     string        `db:"recurring_frequency"`
	RecurringStatus        string        `db:"recurring_status"`
	RecurringForcastedDate nullDate      `db:"recurring_forcasted_date"`
	Inspection             bool          `db:"inspection"`
	InspectionFrequency    string        `db:"inspection_frequency"`
	SiteOrDesktop          string        `db:"site_or_desktop"`
	GapAnalysis            bool          `db:"gap_analysis"`
	NotesForGapAnalysis    string        `db:"notes_for_gap_analysis"`
	CreatedAt              timestamp     `db:"created_at"`
	UpdatedAt              timestamp     `db:"updated_at"`
}

const obligationColumns = `obligation_number, project_id, primary_environmental_mechanism_id, procedure,
	environmental_aspect, obligation, accountability, responsibility, project_phase,
	action_due_date, close_out_date, status, supporting_information, general_comments,
	compliance_comments, non_conformance_comments, evidence_notes, recurring_obligation,
	recurring_frequency, recurring_status, recurring_forcasted_date, inspection,
	inspection_frequency, site_or_desktop, gap_analysis, notes_for_gap_analysis,
	created_at, updated_at`

const mechanismColumns = `id, project_id, name, reference_number, not_started_count, in_progress_count,
	completed_count, overdue_count, total_count, created_at, updated_at`

func toDomainProject(row projectRow) project.Project {
	return project.Project{ID: row.ID, Name: row.Name, CreatedAt: row.CreatedAt.Time}
}

func toDomainMechanism(row mechanismRow) mechanism.EnvironmentalMechanism {
	return mechanism.EnvironmentalMechanism{
		ID:              row.ID,
		ProjectID:       row.ProjectID,
		Name:            row.Name,
		ReferenceNumber: row.ReferenceNumber,
		Counts: mechanism.Counts{
			NotStarted: row.NotStarted,
			InProgress: row.InProgress,
			Completed:  row.Completed,
			Overdue:    row.Overdue,
			Total:      row.Total,
		},
		CreatedAt: row.CreatedAt.Time,
		UpdatedAt: row.UpdatedAt.Time,
	}
}

func toDomainObligation(row obligationRow) obligation.Obligation {
	var mechanismID *uuid.UUID
	if row.MechanismID.Valid {
		id := row.MechanismID.UUID
		mechanismID = &id
	}
	return obligation.Obligation{
		ObligationNumber:       row.ObligationNumber,
		ProjectID:              row.ProjectID,
		MechanismID:            mechanismID,
		Procedure:              row.Procedure,
		EnvironmentalAspect:    row.EnvironmentalAspect,
		Obligation:             row.Obligation,
		Accountability:         row.Accountability,
		Responsibility:         row.Responsibility,
		ProjectPhase:           row.ProjectPhase,
		ActionDueDate:          row.ActionDueDate.Ptr(),
		CloseOutDate:           row.CloseOutDate.Ptr(),
		Status:                 obligation.Status(row.Status),
		SupportingInformation:  row.SupportingInformation,
		GeneralComments:        row.GeneralComments,
		ComplianceComments:     row.ComplianceComments,
		NonConformanceComments: row.NonConformanceComments,
		EvidenceNotes:          row.EvidenceNotes,
		RecurringObligation:    row.RecurringObligation,
		RecurringFrequency:     row.RecurringFrequency,
		RecurringStatus:        row.RecurringStatus,
		RecurringForcastedDate: row.RecurringForcastedDate.Ptr(),
		Inspection:             row.Inspection,
		InspectionFrequency:    row.InspectionFrequency,
		SiteOrDesktop:          row.SiteOrDesktop,
		GapAnalysis:            row.GapAnalysis,
		NotesForGapAnalysis:    row.NotesForGapAnalysis,
		CreatedAt:              row.CreatedAt.Time,
		UpdatedAt:              row.UpdatedAt.Time,
	}
}

func toObligationRow(o obligation.Obligation) obligationRow {
	var mechanismID uuid.NullUUID
	if o.MechanismID != nil {
		mechanismID = uuid.NullUUID{UUID: *o.MechanismID, Valid: true}
	}
	return obligationRow{
		ObligationNumber:       o.ObligationNumber,
		ProjectID:              o.ProjectID,
		MechanismID:            mechanismID,
		Procedure:              o.Procedure,
		EnvironmentalAspect:    o.EnvironmentalAspect,
		Obligation:             o.Obligation,
		Accountability:         o.Accountability,
		Responsibility:         o.Responsibility,
		ProjectPhase:           o.ProjectPhase,
		ActionDueDate:          dateFromPtr(o.ActionDueDate),
		CloseOutDate:           dateFromPtr(o.CloseOutDate),
		Status:                 string(o.Status),
		SupportingInformation:  o.SupportingInformation,
		GeneralComments:        o.GeneralComments,
		ComplianceComments:     o.ComplianceComments,
		NonConformanceComments: o.NonConformanceComments,
		EvidenceNotes:          o.EvidenceNotes,
		RecurringObligation:    o.RecurringObligation,
		RecurringFrequency:     o.RecurringFrequency,
		RecurringStatus:        o.RecurringStatus,
		RecurringForcastedDate: dateFromPtr(o.RecurringForcastedDate),
		Inspection:             o.Inspection,
		InspectionFrequency:    o.InspectionFrequency,
		SiteOrDesktop:          o.SiteOrDesktop,
		GapAnalysis:            o.GapAnalysis,
		NotesForGapAnalysis:    o.NotesForGapAnalysis,
		CreatedAt:              timestamp{o.CreatedAt},
		UpdatedAt:              timestamp{o.UpdatedAt},
	}
}
