package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/enveng-group/greenova/modules/obligations/domain/aggregates/obligation"
	"github.com/enveng-group/greenova/pkg/composables"
	"github.com/enveng-group/greenova/pkg/eventbus"
)

type Outcome int

const (
	OutcomeCreated Outcome = iota + 1
	OutcomeUpdated
	OutcomeSkipped
	OutcomeError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeUpdated:
		return "updated"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeError:
		return "error"
	}
	return "unknown"
}

// UpsertResult is the outcome of writing one obligation. Err is set only for OutcomeError.
type UpsertResult struct {
	Outcome Outcome
	Number  string
	Message string
	Err     error
}

func created(number string) UpsertResult {
	return UpsertResult{Outcome: OutcomeCreated, Number: number, Message: fmt.Sprintf("Created obligation %s", number)}
}

func updated(number string) UpsertResult {
	return UpsertResult{Outcome: OutcomeUpdated, Number: number, Message: fmt.Sprintf("Updated obligation %s", number)}
}

func skipped(number string) UpsertResult {
	return UpsertResult{
		Outcome: OutcomeSkipped,
		Number:  number,
		Message: fmt.Sprintf("Obligation %s already exists (use --update to update)", number),
	}
}

func failed(number string, err error) UpsertResult {
	return UpsertResult{
		Outcome: OutcomeError,
		Number:  number,
		Message: fmt.Sprintf("Error saving obligation %s: %v", number, err),
		Err:     err,
	}
}

type ObligationService struct {
	repo      obligation.Repository
	publisher eventbus.EventBus
	now       func() time.Time
}

func NewObligationService(repo obligation.Repository, publisher eventbus.EventBus) *ObligationService {
	return &ObligationService{
		repo:      repo,
		publisher: publisher,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *ObligationService) GetByNumber(ctx context.Context, number string) (obligation.Obligation, error) {
	return s.repo.GetByNumber(ctx, number)
}

func (s *ObligationService) Count(ctx context.Context) (int64, error) {
	return s.repo.Count(ctx)
}

// Upsert creates o when its number is unknown, overwrites the stored row when force is set,
// and skips it otherwise. Persistence failures are reported in the result, never returned.
func (s *ObligationService) Upsert(ctx context.Context, o obligation.Obligation, force bool) UpsertResult {
	logger := composables.UseLogger(ctx).WithField("obligation_number", o.ObligationNumber)

	existing, err := s.repo.GetByNumber(ctx, o.ObligationNumber)
	switch {
	case errors.Is(err, obligation.ErrNotFound):
		now := s.now()
		o.CreatedAt, o.UpdatedAt = now, now
		stored, err := s.repo.Create(ctx, o)
		if err != nil {
			logger.WithError(err).Error("create obligation")
			return failed(o.ObligationNumber, err)
		}
		if err := s.publish(ctx, &obligation.SavedEvent{Obligation: stored, Created: true}); err != nil {
			logger.WithError(err).Error("obligation write hook")
			return failed(o.ObligationNumber, err)
		}
		return created(stored.ObligationNumber)
	case err != nil:
		logger.WithError(err).Error("lookup obligation")
		return failed(o.ObligationNumber, err)
	}

	if !force {
		return skipped(existing.ObligationNumber)
	}

	previous := existing.MechanismID
	existing.Overwrite(o, s.now())
	stored, err := s.repo.Update(ctx, existing)
	if err != nil {
		logger.WithError(err).Error("update obligation")
		return failed(o.ObligationNumber, err)
	}
	evt := &obligation.SavedEvent{Obligation: stored}
	if previous != nil && (stored.MechanismID == nil || *previous != *stored.MechanismID) {
		evt.PreviousMechanismID = previous
	}
	if err := s.publish(ctx, evt); err != nil {
		logger.WithError(err).Error("obligation write hook")
		return failed(o.ObligationNumber, err)
	}
	logger.WithFields(logrus.Fields{"status": stored.Status}).Debug("obligation updated")
	return updated(stored.ObligationNumber)
}

// Plan reports what Upsert would do for number without writing anything.
func (s *ObligationService) Plan(ctx context.Context, number string, force bool) UpsertResult {
	exists, err := s.repo.Exists(ctx, number)
	if err != nil {
		return failed(number, err)
	}
	switch {
	case !exists:
		return created(number)
	case force:
		return updated(number)
	}
	return skipped(number)
}

func (s *ObligationService) publish(ctx context.Context, evt *obligation.SavedEvent) error {
	if s.publisher == nil {
		return nil
	}
	if err := s.publisher.PublishE(ctx, evt); err != nil && !errors.Is(err, eventbus.ErrNoSubscribers) {
		return err
	}
	return nil
}
