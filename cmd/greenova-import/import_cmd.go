package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/enveng-group/greenova/modules/obligations"
	"github.com/enveng-group/greenova/modules/obligations/infrastructure/source"
	"github.com/enveng-group/greenova/modules/obligations/services"
	"github.com/enveng-group/greenova/pkg/configuration"
	"github.com/enveng-group/greenova/pkg/runlock"
)

type importOptions struct {
	source          string
	project         string
	update          bool
	dryRun          bool
	continueOnError bool
	noTransaction   bool
	mappingsPath    string
	jsonOutput      bool
}

func newImportCmd() *cobra.Command {
	var opts importOptions

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import obligations from a CSV or XLSX register",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 || strings.TrimSpace(args[0]) == "" {
				return withCode(exitUsage, fmt.Errorf("exactly one source file is required"))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.source = strings.TrimSpace(args[0])
			return runImport(cmd.Context(), configuration.Use(), cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.project, "project", "", "default project name for rows without one")
	cmd.Flags().BoolVar(&opts.update, "update", false, "update existing obligations instead of skipping")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "report what would change without writing")
	cmd.Flags().BoolVar(&opts.continueOnError, "continue-on-error", false, "keep processing rows after an error")
	cmd.Flags().BoolVar(&opts.noTransaction, "no-transaction", false, "write rows without per-row transactions")
	cmd.Flags().StringVar(&opts.mappingsPath, "mappings", "", "YAML file with mapping overrides (default: IMPORT_MAPPINGS_PATH)")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "print a JSON summary line after the run")
	return cmd
}

func runImport(ctx context.Context, conf *configuration.Configuration, out io.Writer, opts importOptions) error {
	logger := conf.Logger()

	mappingsPath := opts.mappingsPath
	if mappingsPath == "" {
		mappingsPath = conf.Import.MappingsPath
	}
	mappings, err := services.LoadMappings(mappingsPath)
	if err != nil {
		return withCode(exitUsage, err)
	}

	db, err := openDatabase(ctx, conf)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.WithError(err).Warn("close database")
		}
	}()
	if err := requireSchema(ctx, db, out); err != nil {
		return err
	}

	release, err := acquireLock(ctx, conf, opts.source)
	if err != nil {
		return err
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			logger.WithError(err).Warn("release import lock")
		}
	}()

	local, cleanup, err := fetchSource(ctx, conf, opts.source)
	if err != nil {
		return err
	}
	defer cleanup()

	var metrics *services.ImportMetrics
	if conf.Import.MetricsTextfile != "" {
		metrics = services.NewImportMetrics()
	}
	mod := obligations.NewModule(obligations.ModuleOptions{
		Logger:   logger,
		Mappings: &mappings,
		Metrics:  metrics,
	})

	printer := importPrinter{w: out, dryRun: opts.dryRun}
	printer.start(opts.source)
	report, runErr := mod.ImportService.Import(dbContext(ctx, db, logger), local, services.ImportOptions{
		DefaultProject:  opts.project,
		Update:          opts.update,
		DryRun:          opts.dryRun,
		ContinueOnError: opts.continueOnError,
		NoTransaction:   opts.noTransaction,
		OnRow:           printer.row,
	})
	if metrics != nil {
		if err := metrics.WriteTextfile(conf.Import.MetricsTextfile); err != nil {
			logger.WithError(err).Warn("write metrics textfile")
		}
	}

	if runErr != nil {
		printer.recount(report)
		switch {
		case errors.Is(runErr, services.ErrSourceUnavailable), errors.Is(runErr, services.ErrInvalidSource):
			return withCode(exitUsage, runErr)
		case errors.Is(runErr, context.Canceled), errors.Is(runErr, context.DeadlineExceeded):
			return fmt.Errorf("import interrupted after %d rows: %w", report.Processed(), runErr)
		}
		return withCode(exitDB, runErr)
	}

	printer.summary(report)
	printer.recount(report)
	if opts.jsonOutput {
		summary := newImportSummary(report)
		summary.Source = opts.source
		if err := writeJSONLine(out, summary); err != nil {
			return err
		}
	}
	if report.Halted {
		return withCode(exitValidation, fmt.Errorf("import halted after %d rows", report.Processed()))
	}
	return nil
}

// newObjectGetter is swapped out in tests.
var newObjectGetter = func(ctx context.Context, conf *configuration.Configuration) (source.ObjectGetter, error) {
	return source.NewS3Client(ctx, source.S3Options{
		Region:    conf.Import.S3Region,
		Endpoint:  conf.Import.S3Endpoint,
		PathStyle: conf.Import.S3PathStyle,
	})
}

// fetchSource downloads s3:// sources into a temp dir; local paths pass through.
func fetchSource(ctx context.Context, conf *configuration.Configuration, location string) (string, func(), error) {
	if !source.IsRemote(location) {
		return location, func() {}, nil
	}
	client, err := newObjectGetter(ctx, conf)
	if err != nil {
		return "", nil, withCode(exitUsage, err)
	}
	dir, err := os.MkdirTemp("", "greenova-import-")
	if err != nil {
		return "", nil, err
	}
	cleanup := func() { _ = os.RemoveAll(dir) }
	local, err := source.Download(ctx, client, location, dir)
	if err != nil {
		cleanup()
		return "", nil, withCode(exitUsage, fmt.Errorf("%w: %w", services.ErrSourceUnavailable, err))
	}
	return local, cleanup, nil
}

// acquireLock serialises runs over the same source file when a Redis lock is configured.
func acquireLock(ctx context.Context, conf *configuration.Configuration, location string) (func(context.Context) error, error) {
	if conf.Import.LockRedisURL == "" {
		return runlock.NewNoop().Acquire(ctx, location, conf.Import.LockTTL)
	}
	locker, err := runlock.NewRedisLockerFromURL(conf.Import.LockRedisURL)
	if err != nil {
		return nil, withCode(exitUsage, err)
	}
	name := location
	if !source.IsRemote(location) {
		if abs, err := filepath.Abs(location); err == nil {
			name = abs
		}
	}
	release, err := locker.Acquire(ctx, name, conf.Import.LockTTL)
	if err != nil {
		_ = locker.Close()
		if errors.Is(err, runlock.ErrLocked) {
			return nil, withCode(exitLocked, fmt.Errorf("import of %s already running: %w", location, err))
		}
		return nil, withCode(exitDB, fmt.Errorf("acquire import lock: %w", err))
	}
	return func(ctx context.Context) error {
		defer locker.Close()
		return release(ctx)
	}, nil
}
