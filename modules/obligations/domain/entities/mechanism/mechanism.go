package mechanism

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("environmental mechanism not found")

// EnvironmentalMechanism is unique per (ProjectID, Name).
type EnvironmentalMechanism struct {
	ID              uuid.UUID
	ProjectID       uuid.UUID
	Name            string
	ReferenceNumber string
	Counts          Counts
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func New(projectID uuid.UUID, name, referenceNumber string) EnvironmentalMechanism {
	return EnvironmentalMechanism{
		ID:              uuid.New(),
		ProjectID:       projectID,
		Name:            strings.TrimSpace(name),
		ReferenceNumber: strings.TrimSpace(referenceNumber),
	}
}

type Repository interface {
	Get(ctx context.Context, projectID uuid.UUID, name string) (EnvironmentalMechanism, error)
	GetOrCreate(ctx context.Context, m EnvironmentalMechanism) (EnvironmentalMechanism, bool, error)
	List(ctx context.Context) ([]EnvironmentalMechanism, error)
	UpdateCounts(ctx context.Context, id uuid.UUID, counts Counts) error
}
