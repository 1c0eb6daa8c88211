package persistence

import (
	"context"
	"embed"
	"io/fs"

	gerrors "github.com/go-faster/errors"
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationsFS embed.FS

func newProvider(db *sqlx.DB) (*goose.Provider, error) {
	driver, err := dialectOf(db)
	if err != nil {
		return nil, err
	}
	dialect := goose.DialectPostgres
	if driver == DriverSQLite {
		dialect = goose.DialectSQLite3
	}
	sub, err := fs.Sub(migrationsFS, "migrations/"+driver)
	if err != nil {
		return nil, gerrors.Wrap(err, "migrations fs")
	}
	provider, err := goose.NewProvider(dialect, db.DB, sub)
	if err != nil {
		return nil, gerrors.Wrap(err, "goose provider")
	}
	return provider, nil
}

// Migrate applies every pending schema migration and returns how many ran.
func Migrate(ctx context.Context, db *sqlx.DB, logger logrus.FieldLogger) (int, error) {
	provider, err := newProvider(db)
	if err != nil {
		return 0, err
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return 0, gerrors.Wrap(err, "apply migrations")
	}
	for _, r := range results {
		logger.WithFields(logrus.Fields{
			"version":  r.Source.Version,
			"duration": r.Duration,
		}).Info("applied migration")
	}
	return len(results), nil
}

// SchemaVersion reports the highest applied migration version.
func SchemaVersion(ctx context.Context, db *sqlx.DB) (int64, error) {
	provider, err := newProvider(db)
	if err != nil {
		return 0, err
	}
	v, err := provider.GetDBVersion(ctx)
	if err != nil {
		return 0, gerrors.Wrap(err, "schema version")
	}
	return v, nil
}
