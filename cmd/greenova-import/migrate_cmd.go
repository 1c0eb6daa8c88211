package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/enveng-group/greenova/modules/obligations/infrastructure/persistence"
	"github.com/enveng-group/greenova/pkg/configuration"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd.Context(), configuration.Use(), cmd.OutOrStdout())
		},
	}
}

func runMigrate(ctx context.Context, conf *configuration.Configuration, out io.Writer) error {
	db, err := openDatabase(ctx, conf)
	if err != nil {
		return err
	}
	defer db.Close()

	n, err := persistence.Migrate(ctx, db, conf.Logger())
	if err != nil {
		return withCode(exitDBWrite, err)
	}
	version, err := persistence.SchemaVersion(ctx, db)
	if err != nil {
		return withCode(exitDB, err)
	}
	fmt.Fprintf(out, "Applied %d migrations, schema version %d\n", n, version)
	return nil
}
