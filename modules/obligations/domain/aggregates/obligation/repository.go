package obligation

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	GetByNumber(ctx context.Context, number string) (Obligation, error)
	Exists(ctx context.Context, number string) (bool, error)
	Create(ctx context.Context, o Obligation) (Obligation, error)
	Update(ctx context.Context, o Obligation) (Obligation, error)
	ListByMechanism(ctx context.Context, mechanismID uuid.UUID) ([]Obligation, error)
	// ListWithMechanism returns every obligation linked to some mechanism.
	ListWithMechanism(ctx context.Context) ([]Obligation, error)
	Count(ctx context.Context) (int64, error)
}
