package obligation

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusNotStarted Status = "not started"
	StatusInProgress Status = "in progress"
	StatusCompleted  Status = "completed"
)

var (
	ErrNotFound        = errors.New("obligation not found")
	ErrDuplicateNumber = errors.New("obligation number already exists")
)

func (s Status) Valid() bool {
	switch s {
	case StatusNotStarted, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// Obligation is keyed by ObligationNumber; it is both the natural and the primary key.
type Obligation struct {
	ObligationNumber    string     `validate:"required,max=255"`
	ProjectID           uuid.UUID  `validate:"required"`
	MechanismID         *uuid.UUID
	Procedure           string
	EnvironmentalAspect string `validate:"required"`
	Obligation          string
	Accountability      string
	Responsibility      string
	ProjectPhase        string
	ActionDueDate       *time.Time
	CloseOutDate        *time.Time
	Status              Status `validate:"oneof='not started' 'in progress' 'completed'"`

	SupportingInformation  string
	GeneralComments        string
	ComplianceComments     string
	NonConformanceComments string
	EvidenceNotes          string

	RecurringObligation    bool
	RecurringFrequency     string
	RecurringStatus        string
	RecurringForcastedDate *time.Time

	Inspection          bool
	InspectionFrequency string
	SiteOrDesktop       string

	GapAnalysis         bool
	NotesForGapAnalysis string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsOverdue reports whether the action due date has passed without the obligation being completed.
func (o Obligation) IsOverdue(today time.Time) bool {
	if o.Status == StatusCompleted || o.ActionDueDate == nil {
		return false
	}
	return o.ActionDueDate.Before(dateOnly(today))
}

// Overwrite copies every attribute of src into o except the key and the creation timestamp.
func (o *Obligation) Overwrite(src Obligation, now time.Time) {
	number, createdAt := o.ObligationNumber, o.CreatedAt
	*o = src
	o.ObligationNumber = number
	o.CreatedAt = createdAt
	o.UpdatedAt = now
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
