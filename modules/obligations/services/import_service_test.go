package services_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/enveng-group/greenova/modules/obligations/domain/aggregates/obligation"
	"github.com/enveng-group/greenova/modules/obligations/domain/entities/project"
	"github.com/enveng-group/greenova/modules/obligations/infrastructure/persistence"
	"github.com/enveng-group/greenova/modules/obligations/services"
	"github.com/enveng-group/greenova/pkg/composables"
	"github.com/enveng-group/greenova/pkg/eventbus"
)

const header = "obligation__number,project__name,primary__environmental__mechanism,environmental__aspect,obligation,status,action__due_date,recurring__obligation,recurring__frequency\n"

type countingRecounter struct {
	inner services.Recounter
	mu    sync.Mutex
	calls int
}

func (r *countingRecounter) RecalculateAll(ctx context.Context) (int, error) {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
	return r.inner.RecalculateAll(ctx)
}

type fixture struct {
	ctx         context.Context
	db          *sqlx.DB
	bus         eventbus.EventBus
	importer    *services.ImportService
	recounter   *countingRecounter
	obligations *services.ObligationService
	mechanisms  *services.MechanismService
	hookCalls   *int
	metrics     *services.ImportMetrics
}

type overrides struct {
	projects    project.Repository
	obligations obligation.Repository
}

func newFixture(t *testing.T, o overrides) *fixture {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	ctx := context.Background()
	db, err := persistence.Open(ctx, persistence.DriverSQLite, filepath.Join(t.TempDir(), "greenova.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	_, err = persistence.Migrate(ctx, db, logger)
	require.NoError(t, err)
	ctx = composables.WithDB(ctx, db)
	ctx = composables.WithLogger(ctx, logrus.NewEntry(logger))

	projects := o.projects
	if projects == nil {
		projects = persistence.NewProjectRepository()
	}
	obligationRepo := o.obligations
	if obligationRepo == nil {
		obligationRepo = persistence.NewObligationRepository()
	}
	mechanismRepo := persistence.NewMechanismRepository()

	bus := eventbus.NewEventPublisher(logger)
	mechanismService := services.NewMechanismService(mechanismRepo, obligationRepo)
	mechanismService.Subscribe(bus)
	hookCalls := 0
	bus.Subscribe(func(context.Context, *obligation.SavedEvent) error {
		hookCalls++
		return nil
	})

	obligationService := services.NewObligationService(obligationRepo, bus)
	recounter := &countingRecounter{inner: mechanismService}
	metrics := services.NewImportMetrics()
	importer := services.NewImportService(
		projects,
		services.NewNormalizer(services.DefaultMappings(), mechanismRepo),
		obligationService,
		bus,
		recounter,
	).WithMetrics(metrics)

	return &fixture{
		ctx:         ctx,
		db:          db,
		bus:         bus,
		importer:    importer,
		recounter:   recounter,
		obligations: obligationService,
		mechanisms:  mechanismService,
		hookCalls:   &hookCalls,
		metrics:     metrics,
	}
}

func (f *fixture) count(t *testing.T, table string) int {
	t.Helper()
	var n int
	require.NoError(t, f.db.Get(&n, "SELECT COUNT(*) FROM "+table))
	return n
}

func writeCSV(t *testing.T, rows ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "obligations.csv")
	require.NoError(t, os.WriteFile(path, []byte(header+strings.Join(rows, "\n")+"\n"), 0o600))
	return path
}

var fiveRows = []string{
	"Condition 1,Portside,MS1180,dust management ,Water haul roads,not started,2020-01-01,yes,Monthly",
	"Condition 2,Portside,MS1180,Noise Management,Limit night works,in progress,,no,",
	",,,,,,,,",
	"PCEMP 3,,Portside CEMP,Waste Management,Segregate waste,completed,2020-01-01,0,",
	"abc-4,Portside,MS1180,,Report quarterly,Completed,bad-date,1,quarterly",
	"W6946-5,Eastern,W6946/2024/1,audits and inspections,Inspect bunds,not started,,,",
}

func TestImport_CreatesAndRecountsOnce(t *testing.T) {
	f := newFixture(t, overrides{})
	path := writeCSV(t, fiveRows[0], fiveRows[1], fiveRows[4], fiveRows[5])

	var seen []services.RowResult
	report, err := f.importer.Import(f.ctx, path, services.ImportOptions{
		OnRow: func(r services.RowResult) { seen = append(seen, r) },
	})
	require.NoError(t, err)
	require.Equal(t, 4, report.Created)
	require.Zero(t, report.Errored)
	require.Empty(t, report.Errors)
	require.False(t, report.Halted)
	require.Len(t, seen, 4)
	require.Equal(t, 2, seen[0].Row)
	require.Equal(t, "Created obligation MS1180-1", seen[0].Message)
	require.Len(t, seen[2].Warnings, 1)

	require.Equal(t, 1, f.recounter.calls)
	require.Zero(t, *f.hookCalls)
	require.Equal(t, 2, report.MechanismsRecounted)
	require.NoError(t, report.RecountErr)

	require.Equal(t, 4, f.count(t, "obligations"))
	require.Equal(t, 2, f.count(t, "projects"))

	o, err := f.obligations.GetByNumber(f.ctx, "ABC-4")
	require.NoError(t, err)
	require.Equal(t, "Other", o.EnvironmentalAspect)
	require.Equal(t, obligation.StatusCompleted, o.Status)
	require.Nil(t, o.ActionDueDate)
	require.True(t, o.RecurringObligation)
	require.Equal(t, services.FrequencyQuarterly, o.RecurringFrequency)

	mechs, err := f.mechanisms.List(f.ctx)
	require.NoError(t, err)
	byName := map[string]int{}
	for _, m := range mechs {
		byName[m.Name] = m.Counts.Total
		if m.Name == "MS1180" {
			require.Equal(t, 1, m.Counts.NotStarted)
			require.Equal(t, 1, m.Counts.InProgress)
			require.Equal(t, 1, m.Counts.Completed)
			require.Equal(t, 1, m.Counts.Overdue)
		}
	}
	require.Equal(t, map[string]int{"MS1180": 3, "W6946/2024/1": 1}, byName)

	series, err := testutil.GatherAndCount(f.metrics.Registry(), "greenova_import_rows_total")
	require.NoError(t, err)
	require.Equal(t, 1, series)

	// hooks are live again once the run is over
	o.ObligationNumber = "ABC-99"
	require.Equal(t, services.OutcomeCreated, f.obligations.Upsert(f.ctx, o, false).Outcome)
	require.Equal(t, 1, *f.hookCalls)
}

func TestImport_ContinueOnErrorIsolatesBadRow(t *testing.T) {
	f := newFixture(t, overrides{})
	path := writeCSV(t, fiveRows[0], fiveRows[1], "Condition 9,,MS1180,,Orphan,,,,", fiveRows[4], fiveRows[5])

	report, err := f.importer.Import(f.ctx, path, services.ImportOptions{ContinueOnError: true})
	require.NoError(t, err)
	require.Equal(t, 4, report.Created)
	require.Equal(t, 1, report.Errored)
	require.Equal(t, []string{"Row 4: Missing project name and no default project specified"}, report.Errors)
	require.False(t, report.Halted)
	require.Equal(t, 4, f.count(t, "obligations"))
	require.Equal(t, 1, f.recounter.calls)
}

func TestImport_HaltsOnFirstErrorByDefault(t *testing.T) {
	f := newFixture(t, overrides{})
	path := writeCSV(t, fiveRows[0], fiveRows[1], "Condition 9,,MS1180,,Orphan,,,,", fiveRows[4], fiveRows[5])

	report, err := f.importer.Import(f.ctx, path, services.ImportOptions{})
	require.NoError(t, err)
	require.True(t, report.Halted)
	require.Equal(t, 2, report.Created)
	require.Equal(t, 1, report.Errored)
	require.Len(t, report.Rows, 3)
	require.Equal(t, []string{
		"Row 4: Missing project name and no default project specified",
		services.HaltMessage,
	}, report.Errors)
	require.Equal(t, 2, f.count(t, "obligations"))
	require.Equal(t, 1, f.recounter.calls)
}

func TestImport_DefaultProjectFillsBlankProjectNames(t *testing.T) {
	f := newFixture(t, overrides{})
	path := writeCSV(t, fiveRows[3])

	report, err := f.importer.Import(f.ctx, path, services.ImportOptions{DefaultProject: "Portside"})
	require.NoError(t, err)
	require.Equal(t, 1, report.Created)

	o, err := f.obligations.GetByNumber(f.ctx, "PCEMP-3")
	require.NoError(t, err)
	p, err := persistence.NewProjectRepository().GetByName(f.ctx, "Portside")
	require.NoError(t, err)
	require.Equal(t, p.ID, o.ProjectID)
}

func TestImport_IdempotentWithUpdate(t *testing.T) {
	f := newFixture(t, overrides{})
	path := writeCSV(t, fiveRows[0], fiveRows[1], fiveRows[4])

	first, err := f.importer.Import(f.ctx, path, services.ImportOptions{Update: true})
	require.NoError(t, err)
	require.Equal(t, 3, first.Created)

	second, err := f.importer.Import(f.ctx, path, services.ImportOptions{Update: true})
	require.NoError(t, err)
	require.Zero(t, second.Created)
	require.Equal(t, 3, second.Updated)
	require.Equal(t, 3, f.count(t, "obligations"))
	require.Equal(t, 1, f.count(t, "environmental_mechanisms"))
	require.Equal(t, 2, f.recounter.calls)
}

func TestImport_SkipsExistingWithoutUpdate(t *testing.T) {
	f := newFixture(t, overrides{})
	_, err := f.importer.Import(f.ctx, writeCSV(t, fiveRows[0]), services.ImportOptions{})
	require.NoError(t, err)

	changed := "Condition 1,Portside,MS1180,Waste Management,Something else,completed,,no,"
	report, err := f.importer.Import(f.ctx, writeCSV(t, changed), services.ImportOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, report.Skipped)
	require.Equal(t, "Obligation MS1180-1 already exists (use --update to update)", report.Rows[0].Message)

	o, err := f.obligations.GetByNumber(f.ctx, "MS1180-1")
	require.NoError(t, err)
	require.Equal(t, "Water haul roads", o.Obligation)
	require.Equal(t, "Dust Management", o.EnvironmentalAspect)

	report, err = f.importer.Import(f.ctx, writeCSV(t, changed), services.ImportOptions{Update: true})
	require.NoError(t, err)
	require.Equal(t, 1, report.Updated)
	o, err = f.obligations.GetByNumber(f.ctx, "MS1180-1")
	require.NoError(t, err)
	require.Equal(t, "Something else", o.Obligation)
	require.Equal(t, "Waste Management", o.EnvironmentalAspect)
	require.Equal(t, obligation.StatusCompleted, o.Status)
	require.Nil(t, o.ActionDueDate)
	require.False(t, o.RecurringObligation)
}

func TestImport_DryRunWritesNothing(t *testing.T) {
	f := newFixture(t, overrides{})
	path := writeCSV(t, fiveRows[0], fiveRows[1], fiveRows[5], fiveRows[0])

	report, err := f.importer.Import(f.ctx, path, services.ImportOptions{DryRun: true})
	require.NoError(t, err)
	require.True(t, report.DryRun)
	require.Equal(t, 3, report.Created)
	require.Equal(t, 1, report.Skipped)
	require.Zero(t, f.count(t, "obligations"))
	require.Zero(t, f.count(t, "projects"))
	require.Zero(t, f.count(t, "environmental_mechanisms"))
	require.Zero(t, f.recounter.calls)
	require.Zero(t, report.MechanismsRecounted)
}

func TestImport_NoTransaction(t *testing.T) {
	f := newFixture(t, overrides{})
	path := writeCSV(t, fiveRows[0], fiveRows[1])

	report, err := f.importer.Import(f.ctx, path, services.ImportOptions{NoTransaction: true})
	require.NoError(t, err)
	require.Equal(t, 2, report.Created)
	require.Equal(t, 2, f.count(t, "obligations"))
	require.Equal(t, 1, f.recounter.calls)
}

type failingCreates struct {
	obligation.Repository
}

func (r failingCreates) Create(ctx context.Context, o obligation.Obligation) (obligation.Obligation, error) {
	if o.ObligationNumber == "MS1180-1" {
		return obligation.Obligation{}, errors.New("disk full")
	}
	return r.Repository.Create(ctx, o)
}

func TestImport_FailedRowRollsBackProjectAndMechanism(t *testing.T) {
	f := newFixture(t, overrides{obligations: failingCreates{persistence.NewObligationRepository()}})

	report, err := f.importer.Import(f.ctx, writeCSV(t, fiveRows[0]), services.ImportOptions{})
	require.NoError(t, err)
	require.True(t, report.Halted)
	require.Equal(t, []string{
		"Row 2: Error saving obligation MS1180-1: disk full",
		services.HaltMessage,
	}, report.Errors)
	require.Zero(t, f.count(t, "projects"))
	require.Zero(t, f.count(t, "environmental_mechanisms"))

	// without row transactions the project and mechanism writes survive the failure
	report, err = f.importer.Import(f.ctx, writeCSV(t, fiveRows[0]), services.ImportOptions{NoTransaction: true})
	require.NoError(t, err)
	require.Equal(t, 1, report.Errored)
	require.Equal(t, 1, f.count(t, "projects"))
	require.Equal(t, 1, f.count(t, "environmental_mechanisms"))
	require.Zero(t, f.count(t, "obligations"))
}

type panickyProjects struct {
	project.Repository
}

func (p panickyProjects) GetOrCreate(ctx context.Context, name string) (project.Project, bool, error) {
	if name == "Explode" {
		panic("boom")
	}
	return p.Repository.GetOrCreate(ctx, name)
}

func TestImport_PanicIsContainedToRow(t *testing.T) {
	f := newFixture(t, overrides{projects: panickyProjects{persistence.NewProjectRepository()}})
	path := writeCSV(t, fiveRows[0], "Condition 8,Explode,,,,,,,", fiveRows[1])

	report, err := f.importer.Import(f.ctx, path, services.ImportOptions{ContinueOnError: true})
	require.NoError(t, err)
	require.Equal(t, 2, report.Created)
	require.Equal(t, []string{"Row 3: Panic: boom"}, report.Errors)
	require.Equal(t, 1, f.recounter.calls)

	// the rolled-back connection is usable again
	require.Equal(t, 2, f.count(t, "obligations"))
}

func TestImport_MissingObligationNumberFailsRow(t *testing.T) {
	f := newFixture(t, overrides{})
	path := writeCSV(t, ",Portside,MS1180,,no number,,,,", fiveRows[0])

	report, err := f.importer.Import(f.ctx, path, services.ImportOptions{ContinueOnError: true})
	require.NoError(t, err)
	require.Equal(t, []string{"Row 2: Missing obligation number"}, report.Errors)
	require.Equal(t, 1, report.Created)
	require.Equal(t, 1, f.count(t, "environmental_mechanisms"))
}

func TestImport_SourceErrors(t *testing.T) {
	f := newFixture(t, overrides{})

	report, err := f.importer.Import(f.ctx, filepath.Join(t.TempDir(), "missing.csv"), services.ImportOptions{})
	require.ErrorIs(t, err, services.ErrSourceUnavailable)
	require.NotNil(t, report)
	require.Equal(t, 1, f.recounter.calls)

	bad := filepath.Join(t.TempDir(), "bad.csv")
	require.NoError(t, os.WriteFile(bad, []byte("project__name\nPortside\n"), 0o600))
	_, err = f.importer.Import(f.ctx, bad, services.ImportOptions{})
	require.ErrorIs(t, err, services.ErrInvalidSource)
	require.Equal(t, 2, f.recounter.calls)

	// hooks were resumed on both early exits
	require.Equal(t, services.OutcomeCreated, f.obligations.Upsert(f.ctx, obligation.Obligation{
		ObligationNumber: "Z-1", ProjectID: mustProject(t, f).ID, EnvironmentalAspect: "Other", Status: obligation.StatusNotStarted,
	}, false).Outcome)
	require.Equal(t, 1, *f.hookCalls)
}

func TestImport_CancelledContext(t *testing.T) {
	f := newFixture(t, overrides{})
	ctx, cancel := context.WithCancel(f.ctx)
	cancel()

	report, err := f.importer.Import(ctx, writeCSV(t, fiveRows[0]), services.ImportOptions{DryRun: true})
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, report.Rows)
}

func mustProject(t *testing.T, f *fixture) project.Project {
	t.Helper()
	p, _, err := persistence.NewProjectRepository().GetOrCreate(f.ctx, "Portside")
	require.NoError(t, err)
	return p
}
