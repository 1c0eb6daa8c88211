package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/enveng-group/greenova/modules/obligations/domain/entities/project"
	"github.com/enveng-group/greenova/modules/obligations/infrastructure/source"
	"github.com/enveng-group/greenova/pkg/composables"
)

// HaltMessage closes the error list of a run stopped by a row error.
const HaltMessage = "Import halted due to error. Use --continue-on-error to process all rows."

var (
	ErrSourceUnavailable = errors.New("import source unavailable")
	ErrInvalidSource     = errors.New("invalid import source")
	ErrMissingProject    = errors.New("missing project name and no default project specified")
)

// WriteHooks lets a bulk run detach the per-write observers; eventbus.EventBus satisfies it.
type WriteHooks interface {
	Suspend() (resume func())
}

// Recounter recomputes every mechanism's aggregate counters.
type Recounter interface {
	RecalculateAll(ctx context.Context) (int, error)
}

type ImportOptions struct {
	// DefaultProject is used for rows without a project name.
	DefaultProject  string
	Update          bool
	DryRun          bool
	ContinueOnError bool
	// NoTransaction writes rows straight to the database; a failed row may leave partial writes.
	NoTransaction bool
	// OnRow is called after every row, in file order.
	OnRow func(RowResult)
}

type RowResult struct {
	Row         int
	Number      string
	Description string
	Outcome     Outcome
	Message     string
	Err         error
	Warnings    []string
	Duration    time.Duration
}

type ImportReport struct {
	RunID   uuid.UUID
	Source  string
	DryRun  bool
	Created int
	Updated int
	Skipped int
	Errored int
	// Errors holds one "Row N: ..." entry per failed row, then HaltMessage when Halted.
	Errors              []string
	Halted              bool
	Rows                []RowResult
	MechanismsRecounted int
	RecountErr          error
	StartedAt           time.Time
	FinishedAt          time.Time
}

func (r *ImportReport) Processed() int {
	return len(r.Rows)
}

func (r *ImportReport) add(res RowResult) {
	r.Rows = append(r.Rows, res)
	switch res.Outcome {
	case OutcomeCreated:
		r.Created++
	case OutcomeUpdated:
		r.Updated++
	case OutcomeSkipped:
		r.Skipped++
	case OutcomeError:
		r.Errored++
		r.Errors = append(r.Errors, fmt.Sprintf("Row %d: %s", res.Row, res.Message))
	}
}

type ImportService struct {
	projects    project.Repository
	normalizer  *Normalizer
	obligations *ObligationService
	hooks       WriteHooks
	recounter   Recounter
	metrics     *ImportMetrics
	now         func() time.Time
}

func NewImportService(
	projects project.Repository,
	normalizer *Normalizer,
	obligations *ObligationService,
	hooks WriteHooks,
	recounter Recounter,
) *ImportService {
	return &ImportService{
		projects:    projects,
		normalizer:  normalizer,
		obligations: obligations,
		hooks:       hooks,
		recounter:   recounter,
		now:         time.Now,
	}
}

func (s *ImportService) WithMetrics(m *ImportMetrics) *ImportService {
	s.metrics = m
	return s
}

// Import processes every row of the file at path in order. Row failures are reported in the
// returned report; the error is non-nil only when the run could not read its source or ctx ended.
// Write hooks stay suspended for the whole run and a single recount follows unless DryRun is set.
func (s *ImportService) Import(ctx context.Context, path string, opts ImportOptions) (report *ImportReport, err error) {
	report = &ImportReport{
		RunID:     uuid.New(),
		Source:    path,
		DryRun:    opts.DryRun,
		StartedAt: s.now(),
	}
	logger := composables.UseLogger(ctx).WithFields(logrus.Fields{
		"run_id":  report.RunID.String(),
		"source":  path,
		"dry_run": opts.DryRun,
	})
	ctx = composables.WithLogger(ctx, logger)

	resume := func() {}
	if s.hooks != nil {
		resume = s.hooks.Suspend()
	}
	defer func() {
		resume()
		if !opts.DryRun {
			s.recount(ctx, report, opts)
		}
		report.FinishedAt = s.now()
		s.metrics.ObserveRun(report)
		logger.WithFields(logrus.Fields{
			"created": report.Created,
			"updated": report.Updated,
			"skipped": report.Skipped,
			"errored": report.Errored,
			"halted":  report.Halted,
		}).Info("import finished")
	}()

	src, err := source.Open(path)
	if err != nil {
		if errors.Is(err, source.ErrMissingHeader) {
			return report, fmt.Errorf("%w: %w", ErrInvalidSource, err)
		}
		return report, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}
	defer func() {
		if cErr := src.Close(); cErr != nil {
			logger.WithError(cErr).Warn("close import source")
		}
	}()
	if err := source.RequireColumns(src.Header(), source.ColObligationNumber); err != nil {
		return report, fmt.Errorf("%w: %w", ErrInvalidSource, err)
	}

	seen := make(map[string]struct{})
	for {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		row, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}

		var res RowResult
		var rowErr *source.RowError
		switch {
		case errors.As(err, &rowErr):
			res = RowResult{Row: rowErr.Row, Outcome: OutcomeError, Err: rowErr.Err, Message: sentence(rowErr.Err)}
		case err != nil:
			return report, fmt.Errorf("read import source: %w", err)
		default:
			res = s.processRow(ctx, row, opts, seen)
		}

		report.add(res)
		s.metrics.ObserveRow(res.Outcome, opts.DryRun, res.Duration)
		if opts.OnRow != nil {
			opts.OnRow(res)
		}

		if res.Outcome != OutcomeError {
			continue
		}
		logger.WithFields(logrus.Fields{
			"row":               res.Row,
			"obligation_number": res.Number,
		}).WithError(res.Err).Error("row failed")
		if !opts.ContinueOnError {
			report.Halted = true
			report.Errors = append(report.Errors, HaltMessage)
			break
		}
	}
	return report, nil
}

func (s *ImportService) processRow(ctx context.Context, row source.Row, opts ImportOptions, seen map[string]struct{}) (res RowResult) {
	start := time.Now()
	res.Row = row.Number
	defer func() {
		if r := recover(); r != nil {
			res.Outcome = OutcomeError
			res.Err = fmt.Errorf("panic: %v", r)
			res.Message = sentence(res.Err)
		}
		res.Duration = time.Since(start)
	}()

	err := s.inRowTx(ctx, opts, func(txCtx context.Context) error {
		p, err := s.resolveProject(txCtx, row.Record, opts.DefaultProject)
		if err != nil {
			return err
		}
		c, err := s.normalizer.Normalize(txCtx, row.Record, p)
		if err != nil {
			return err
		}
		res.Number = c.Obligation.ObligationNumber
		res.Description = c.Obligation.Obligation
		res.Warnings = c.Warnings

		var up UpsertResult
		if opts.DryRun {
			up = s.plan(txCtx, c.Obligation.ObligationNumber, opts.Update, seen)
		} else {
			up = s.obligations.Upsert(txCtx, c.Obligation, opts.Update)
		}
		res.Outcome, res.Message = up.Outcome, up.Message
		if up.Outcome == OutcomeError {
			return up.Err
		}
		return nil
	})
	if err != nil {
		res.Outcome = OutcomeError
		res.Err = err
		if res.Message == "" {
			res.Message = sentence(err)
		}
	}
	return res
}

// inRowTx gives every row its own transaction. Dry runs always roll back.
func (s *ImportService) inRowTx(ctx context.Context, opts ImportOptions, fn func(context.Context) error) error {
	switch {
	case opts.DryRun:
		return composables.InRollbackTx(ctx, fn)
	case opts.NoTransaction:
		return fn(ctx)
	}
	return composables.InTx(ctx, fn)
}

func (s *ImportService) resolveProject(ctx context.Context, rec source.Record, fallback string) (project.Project, error) {
	name := strings.TrimSpace(rec.Get(source.ColProjectName))
	if name == "" {
		name = strings.TrimSpace(fallback)
	}
	if name == "" {
		return project.Project{}, ErrMissingProject
	}
	p, created, err := s.projects.GetOrCreate(ctx, name)
	if err != nil {
		return project.Project{}, fmt.Errorf("resolve project %q: %w", name, err)
	}
	if created {
		composables.UseLogger(ctx).WithField("project", p.Name).Info("created project")
	}
	return p, nil
}

// plan answers a dry-run row. Numbers planned for creation earlier in the run count as existing.
func (s *ImportService) plan(ctx context.Context, number string, force bool, seen map[string]struct{}) UpsertResult {
	if _, ok := seen[number]; ok {
		if force {
			return updated(number)
		}
		return skipped(number)
	}
	up := s.obligations.Plan(ctx, number, force)
	if up.Outcome == OutcomeCreated {
		seen[number] = struct{}{}
	}
	return up
}

func (s *ImportService) recount(ctx context.Context, report *ImportReport, opts ImportOptions) {
	if s.recounter == nil {
		return
	}
	logger := composables.UseLogger(ctx)
	run := func(c context.Context) error {
		n, err := s.recounter.RecalculateAll(c)
		report.MechanismsRecounted = n
		return err
	}
	var err error
	if opts.NoTransaction {
		err = run(ctx)
	} else {
		err = composables.InTx(ctx, run)
	}
	if err != nil {
		report.MechanismsRecounted = 0
		report.RecountErr = err
		logger.WithError(err).Error("mechanism recount failed")
	}
}

// sentence upper-cases the first letter of an error message for the row report.
func sentence(err error) string {
	msg := err.Error()
	r, size := utf8.DecodeRuneInString(msg)
	if r == utf8.RuneError {
		return msg
	}
	return string(unicode.ToUpper(r)) + msg[size:]
}
