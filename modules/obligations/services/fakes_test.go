package services

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/enveng-group/greenova/modules/obligations/domain/aggregates/obligation"
	"github.com/enveng-group/greenova/modules/obligations/domain/entities/mechanism"
)

type fakeObligationRepo struct {
	mu        sync.Mutex
	items     map[string]obligation.Obligation
	createErr error
	updateErr error
	getErr    error
	creates   int
	updates   int
}

func newFakeObligationRepo() *fakeObligationRepo {
	return &fakeObligationRepo{items: map[string]obligation.Obligation{}}
}

func (r *fakeObligationRepo) GetByNumber(_ context.Context, number string) (obligation.Obligation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return obligation.Obligation{}, r.getErr
	}
	o, ok := r.items[number]
	if !ok {
		return obligation.Obligation{}, obligation.ErrNotFound
	}
	return o, nil
}

func (r *fakeObligationRepo) Exists(_ context.Context, number string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.items[number]
	return ok, nil
}

func (r *fakeObligationRepo) Create(_ context.Context, o obligation.Obligation) (obligation.Obligation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return obligation.Obligation{}, r.createErr
	}
	if _, ok := r.items[o.ObligationNumber]; ok {
		return obligation.Obligation{}, obligation.ErrDuplicateNumber
	}
	r.creates++
	r.items[o.ObligationNumber] = o
	return o, nil
}

func (r *fakeObligationRepo) Update(_ context.Context, o obligation.Obligation) (obligation.Obligation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return obligation.Obligation{}, r.updateErr
	}
	if _, ok := r.items[o.ObligationNumber]; !ok {
		return obligation.Obligation{}, obligation.ErrNotFound
	}
	r.updates++
	r.items[o.ObligationNumber] = o
	return o, nil
}

func (r *fakeObligationRepo) ListByMechanism(_ context.Context, id uuid.UUID) ([]obligation.Obligation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []obligation.Obligation
	for _, o := range r.sorted() {
		if o.MechanismID != nil && *o.MechanismID == id {
			out = append(out, o)
		}
	}
	return out, nil
}

func (r *fakeObligationRepo) ListWithMechanism(_ context.Context) ([]obligation.Obligation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []obligation.Obligation
	for _, o := range r.sorted() {
		if o.MechanismID != nil {
			out = append(out, o)
		}
	}
	return out, nil
}

func (r *fakeObligationRepo) Count(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.items)), nil
}

func (r *fakeObligationRepo) sorted() []obligation.Obligation {
	out := make([]obligation.Obligation, 0, len(r.items))
	for _, o := range r.items {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ObligationNumber < out[j].ObligationNumber })
	return out
}

type fakeMechanismRepo struct {
	mu      sync.Mutex
	items   []mechanism.EnvironmentalMechanism
	err     error
	updates map[uuid.UUID]int
}

func newFakeMechanismRepo() *fakeMechanismRepo {
	return &fakeMechanismRepo{updates: map[uuid.UUID]int{}}
}

func (r *fakeMechanismRepo) Get(_ context.Context, projectID uuid.UUID, name string) (mechanism.EnvironmentalMechanism, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.items {
		if m.ProjectID == projectID && m.Name == name {
			return m, nil
		}
	}
	return mechanism.EnvironmentalMechanism{}, mechanism.ErrNotFound
}

func (r *fakeMechanismRepo) GetOrCreate(ctx context.Context, m mechanism.EnvironmentalMechanism) (mechanism.EnvironmentalMechanism, bool, error) {
	if r.err != nil {
		return mechanism.EnvironmentalMechanism{}, false, r.err
	}
	if existing, err := r.Get(ctx, m.ProjectID, m.Name); err == nil {
		return existing, false, nil
	} else if !errors.Is(err, mechanism.ErrNotFound) {
		return mechanism.EnvironmentalMechanism{}, false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, m)
	return m, true, nil
}

func (r *fakeMechanismRepo) List(_ context.Context) ([]mechanism.EnvironmentalMechanism, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]mechanism.EnvironmentalMechanism(nil), r.items...), nil
}

func (r *fakeMechanismRepo) UpdateCounts(_ context.Context, id uuid.UUID, counts mechanism.Counts) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.items {
		if r.items[i].ID == id {
			r.items[i].Counts = counts
			r.updates[id]++
			return nil
		}
	}
	return mechanism.ErrNotFound
}
