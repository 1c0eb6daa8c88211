package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/enveng-group/greenova/modules/obligations"
	"github.com/enveng-group/greenova/modules/obligations/domain/entities/mechanism"
	"github.com/enveng-group/greenova/pkg/composables"
	"github.com/enveng-group/greenova/pkg/configuration"
)

func newRecountCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recount",
		Short: "Recompute status counters for every environmental mechanism",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecount(cmd.Context(), configuration.Use(), cmd.OutOrStdout())
		},
	}
}

func runRecount(ctx context.Context, conf *configuration.Configuration, out io.Writer) error {
	logger := conf.Logger()
	db, err := openDatabase(ctx, conf)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := requireSchema(ctx, db, out); err != nil {
		return err
	}

	mod := obligations.NewModule(obligations.ModuleOptions{Logger: logger})
	fmt.Fprintln(out, "Updating mechanism counts...")
	var n int
	err = composables.InTx(dbContext(ctx, db, logger), func(txCtx context.Context) error {
		var err error
		n, err = mod.MechanismService.RecalculateAll(txCtx)
		return err
	})
	if err != nil {
		return withCode(exitDBWrite, fmt.Errorf("failed to update mechanism counts: %w", err))
	}
	fmt.Fprintf(out, "Updated counts for %d mechanisms\n", n)

	mechanisms, err := mod.MechanismService.List(dbContext(ctx, db, logger))
	if err != nil {
		return withCode(exitDB, err)
	}
	for _, m := range mechanisms {
		fmt.Fprintf(out, "  %s: %s\n", m.Name, statusLine(m.Counts))
	}
	return nil
}

func statusLine(c mechanism.Counts) string {
	parts := make([]string, 0, 4)
	for _, s := range c.StatusData() {
		parts = append(parts, fmt.Sprintf("%s %d", s.Label, s.Count))
	}
	return strings.Join(parts, ", ")
}
