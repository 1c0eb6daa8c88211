package main

import (
	"context"
	"fmt"
	"io"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/enveng-group/greenova/modules/obligations/infrastructure/persistence"
	"github.com/enveng-group/greenova/pkg/composables"
	"github.com/enveng-group/greenova/pkg/configuration"
)

func openDatabase(ctx context.Context, conf *configuration.Configuration) (*sqlx.DB, error) {
	db, err := persistence.Open(ctx, conf.Database.Driver, conf.Database.DSN())
	if err != nil {
		return nil, withCode(exitDB, fmt.Errorf("connect %s database: %w", conf.Database.Driver, err))
	}
	return db, nil
}

// requireSchema refuses to run against a database that has never been migrated.
func requireSchema(ctx context.Context, db *sqlx.DB, out io.Writer) error {
	version, err := persistence.SchemaVersion(ctx, db)
	if err != nil {
		return withCode(exitDB, err)
	}
	if version > 0 {
		return nil
	}
	fmt.Fprintln(out, "Database tables not ready for import.")
	fmt.Fprintln(out, "Please run migrations first:")
	fmt.Fprintln(out, "  greenova-import migrate")
	return withCode(exitDB, fmt.Errorf("database schema not initialised"))
}

func dbContext(ctx context.Context, db *sqlx.DB, logger *logrus.Logger) context.Context {
	ctx = composables.WithDB(ctx, db)
	return composables.WithLogger(ctx, logrus.NewEntry(logger))
}
