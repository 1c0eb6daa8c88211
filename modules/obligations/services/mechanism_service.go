package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/enveng-group/greenova/modules/obligations/domain/aggregates/obligation"
	"github.com/enveng-group/greenova/modules/obligations/domain/entities/mechanism"
	"github.com/enveng-group/greenova/pkg/composables"
	"github.com/enveng-group/greenova/pkg/eventbus"
)

// MechanismService keeps the per-mechanism status counters in step with obligations.
type MechanismService struct {
	mechanisms  mechanism.Repository
	obligations obligation.Repository
	now         func() time.Time
}

func NewMechanismService(mechanisms mechanism.Repository, obligations obligation.Repository) *MechanismService {
	return &MechanismService{
		mechanisms:  mechanisms,
		obligations: obligations,
		now:         time.Now,
	}
}

// Subscribe registers the per-write recount on bus.
func (s *MechanismService) Subscribe(bus eventbus.EventBus) {
	bus.Subscribe(s.OnObligationSaved)
}

func (s *MechanismService) OnObligationSaved(ctx context.Context, e *obligation.SavedEvent) error {
	if e.PreviousMechanismID != nil {
		if err := s.Recalculate(ctx, *e.PreviousMechanismID); err != nil {
			return err
		}
	}
	if e.Obligation.MechanismID == nil {
		return nil
	}
	return s.Recalculate(ctx, *e.Obligation.MechanismID)
}

// Recalculate recounts the obligations of a single mechanism.
func (s *MechanismService) Recalculate(ctx context.Context, id uuid.UUID) error {
	list, err := s.obligations.ListByMechanism(ctx, id)
	if err != nil {
		return fmt.Errorf("recount mechanism %s: %w", id, err)
	}
	if err := s.mechanisms.UpdateCounts(ctx, id, mechanism.Tally(list, s.now())); err != nil {
		return fmt.Errorf("recount mechanism %s: %w", id, err)
	}
	return nil
}

// RecalculateAll recounts every mechanism from one pass over linked obligations
// and returns how many mechanisms were updated.
func (s *MechanismService) RecalculateAll(ctx context.Context) (int, error) {
	mechs, err := s.mechanisms.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("recount mechanisms: %w", err)
	}
	linked, err := s.obligations.ListWithMechanism(ctx)
	if err != nil {
		return 0, fmt.Errorf("recount mechanisms: %w", err)
	}
	byMechanism := make(map[uuid.UUID][]obligation.Obligation, len(mechs))
	for _, o := range linked {
		if o.MechanismID == nil {
			continue
		}
		byMechanism[*o.MechanismID] = append(byMechanism[*o.MechanismID], o)
	}

	today := s.now()
	for _, m := range mechs {
		if err := s.mechanisms.UpdateCounts(ctx, m.ID, mechanism.Tally(byMechanism[m.ID], today)); err != nil {
			return 0, fmt.Errorf("recount mechanism %s: %w", m.Name, err)
		}
	}
	composables.UseLogger(ctx).WithField("mechanisms", len(mechs)).Info("mechanism counts updated")
	return len(mechs), nil
}

func (s *MechanismService) List(ctx context.Context) ([]mechanism.EnvironmentalMechanism, error) {
	return s.mechanisms.List(ctx)
}
