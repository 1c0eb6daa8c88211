package persistence_test

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/enveng-group/greenova/modules/obligations/infrastructure/persistence"
	"github.com/enveng-group/greenova/pkg/composables"
)

func newSQLiteDB(t *testing.T) (context.Context, *sqlx.DB) {
	t.Helper()

	ctx := context.Background()
	db, err := persistence.Open(ctx, persistence.DriverSQLite, filepath.Join(t.TempDir(), "greenova.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	applied, err := persistence.Migrate(ctx, db, logger)
	require.NoError(t, err)
	require.Positive(t, applied)

	return composables.WithDB(ctx, db), db
}
