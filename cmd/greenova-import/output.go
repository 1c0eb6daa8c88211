package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/enveng-group/greenova/modules/obligations/services"
)

// maxListedErrors caps the error list printed after a run.
const maxListedErrors = 10

func writeJSONLine(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return withCode(exitDB, fmt.Errorf("json encode: %w", err))
	}
	return nil
}

type importSummary struct {
	Event               string    `json:"event"`
	RunID               uuid.UUID `json:"run_id"`
	Source              string    `json:"source"`
	DryRun              bool      `json:"dry_run"`
	Created             int       `json:"created"`
	Updated             int       `json:"updated"`
	Skipped             int       `json:"skipped"`
	Errored             int       `json:"errored"`
	Halted              bool      `json:"halted"`
	Errors              []string  `json:"errors"`
	MechanismsRecounted int       `json:"mechanisms_recounted"`
	RecountError        string    `json:"recount_error,omitempty"`
	StartedAt           time.Time `json:"started_at"`
	FinishedAt          time.Time `json:"finished_at"`
}

func newImportSummary(r *services.ImportReport) importSummary {
	s := importSummary{
		Event:               "import.summary",
		RunID:               r.RunID,
		Source:              r.Source,
		DryRun:              r.DryRun,
		Created:             r.Created,
		Updated:             r.Updated,
		Skipped:             r.Skipped,
		Errored:             r.Errored,
		Halted:              r.Halted,
		Errors:              r.Errors,
		MechanismsRecounted: r.MechanismsRecounted,
		StartedAt:           r.StartedAt,
		FinishedAt:          r.FinishedAt,
	}
	if s.Errors == nil {
		s.Errors = []string{}
	}
	if r.RecountErr != nil {
		s.RecountError = r.RecountErr.Error()
	}
	return s
}

// importPrinter writes the human-readable progress of a run.
type importPrinter struct {
	w      io.Writer
	dryRun bool
}

func (p importPrinter) start(path string) {
	fmt.Fprintf(p.w, "Importing obligations from %s\n", path)
	if p.dryRun {
		fmt.Fprintln(p.w, "DRY RUN - no changes will be made to the database")
	}
}

func (p importPrinter) row(res services.RowResult) {
	for _, w := range res.Warnings {
		fmt.Fprintf(p.w, "Warning: row %d: %s\n", res.Row, w)
	}
	if p.dryRun {
		p.dryRunRow(res)
		return
	}
	switch res.Outcome {
	case services.OutcomeCreated, services.OutcomeUpdated:
		fmt.Fprintf(p.w, "Success: %s\n", res.Message)
	case services.OutcomeSkipped:
		fmt.Fprintf(p.w, "Skipped: %s\n", res.Message)
	}
}

func (p importPrinter) dryRunRow(res services.RowResult) {
	switch res.Outcome {
	case services.OutcomeCreated:
		fmt.Fprintf(p.w, "[DRY RUN] Would create: %s - %s...\n", res.Number, truncate(res.Description, 50))
	case services.OutcomeUpdated:
		fmt.Fprintf(p.w, "[DRY RUN] Would update: %s - %s...\n", res.Number, truncate(res.Description, 50))
	case services.OutcomeSkipped:
		fmt.Fprintf(p.w, "[DRY RUN] Would skip: %s\n", res.Message)
	}
}

func (p importPrinter) summary(r *services.ImportReport) {
	if n := len(r.Errors); n > 0 {
		fmt.Fprintf(p.w, "Encountered %d errors:\n", n)
		for _, e := range r.Errors[:min(n, maxListedErrors)] {
			fmt.Fprintf(p.w, "  • %s\n", e)
		}
		if n > maxListedErrors {
			fmt.Fprintf(p.w, "  • ...and %d more errors\n", n-maxListedErrors)
		}
	}
	if r.DryRun {
		fmt.Fprintf(p.w, "Would create %d obligations, update %d, skip %d\n", r.Created, r.Updated, r.Skipped)
		return
	}
	fmt.Fprintf(p.w, "Successfully created %d obligations, updated %d, skipped %d\n", r.Created, r.Updated, r.Skipped)
}

func (p importPrinter) recount(r *services.ImportReport) {
	if r.DryRun {
		return
	}
	fmt.Fprintln(p.w, "Updating mechanism counts...")
	if r.RecountErr != nil {
		fmt.Fprintf(p.w, "Failed to update mechanism counts: %v\n", r.RecountErr)
		return
	}
	fmt.Fprintf(p.w, "Updated counts for %d mechanisms\n", r.MechanismsRecounted)
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
