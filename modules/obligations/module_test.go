package obligations_test

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/enveng-group/greenova/modules/obligations"
	"github.com/enveng-group/greenova/modules/obligations/domain/aggregates/obligation"
	"github.com/enveng-group/greenova/modules/obligations/domain/entities/mechanism"
	"github.com/enveng-group/greenova/modules/obligations/infrastructure/persistence"
	"github.com/enveng-group/greenova/modules/obligations/services"
	"github.com/enveng-group/greenova/pkg/composables"
)

func TestNewModule_SingleWritesKeepCountsCurrent(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	ctx := context.Background()
	db, err := persistence.Open(ctx, persistence.DriverSQLite, filepath.Join(t.TempDir(), "greenova.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	_, err = persistence.Migrate(ctx, db, logger)
	require.NoError(t, err)
	ctx = composables.WithDB(ctx, db)

	m := obligations.NewModule(obligations.ModuleOptions{Logger: logger})
	require.Equal(t, 1, m.Bus.SubscribersCount())

	p, _, err := m.Projects.GetOrCreate(ctx, "Portside")
	require.NoError(t, err)
	mech, _, err := m.Mechanisms.GetOrCreate(ctx, mechanism.New(p.ID, "MS1180", "MS1180"))
	require.NoError(t, err)

	res := m.ObligationService.Upsert(ctx, obligation.Obligation{
		ObligationNumber:    "MS1180-1",
		ProjectID:           p.ID,
		MechanismID:         &mech.ID,
		EnvironmentalAspect: "Other",
		Status:              obligation.StatusInProgress,
	}, false)
	require.Equal(t, services.OutcomeCreated, res.Outcome)

	list, err := m.MechanismService.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, mechanism.Counts{InProgress: 1, Total: 1}, list[0].Counts)
}
