// Package source reads obligation register exports row by row.
package source

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Header columns of the obligation register export.
const (
	ColObligationNumber       = "obligation__number"
	ColProjectName            = "project__name"
	ColMechanism              = "primary__environmental__mechanism"
	ColProcedure              = "procedure"
	ColEnvironmentalAspect    = "environmental__aspect"
	ColObligation             = "obligation"
	ColAccountability         = "accountability"
	ColResponsibility         = "responsibility"
	ColProjectPhase           = "project_phase"
	ColActionDueDate          = "action__due_date"
	ColCloseOutDate           = "close__out__date"
	ColStatus                 = "status"
	ColSupportingInformation  = "supporting__information"
	ColGeneralComments        = "general__comments"
	ColComplianceComments     = "compliance__comments"
	ColNonConformanceComments = "non_conformance__comments"
	ColEvidence               = "evidence"
	ColRecurringObligation    = "recurring__obligation"
	ColRecurringFrequency     = "recurring__frequency"
	ColRecurringStatus        = "recurring__status"
	ColRecurringForcastedDate = "recurring__forcasted__date"
	ColInspection             = "inspection"
	ColInspectionFrequency    = "inspection__frequency"
	ColSiteOrDesktop          = "site_or__desktop"
	ColGapAnalysis            = "gap__analysis"
	ColNotesForGapAnalysis    = "notes_for__gap__analysis"
)

var ErrMissingHeader = errors.New("missing header")

// Record maps header names to raw cell text. Absent columns read as "".
type Record map[string]string

func (r Record) Get(column string) string {
	return r[column]
}

// Row is one data record; Number counts the header as row 1.
type Row struct {
	Number int
	Record Record
}

// RowError reports a record that could not be decoded. Reading may continue after it.
type RowError struct {
	Row int
	Err error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// Source yields rows until Next returns io.EOF.
type Source interface {
	Header() []string
	Next() (Row, error)
	Close() error
}

// Open picks a reader from the file extension; anything that is not a workbook is read as CSV.
func Open(path string) (Source, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return OpenXLSX(path)
	default:
		return OpenCSV(path)
	}
}

// RequireColumns fails when any of columns is absent from header.
func RequireColumns(header []string, columns ...string) error {
	set := make(map[string]struct{}, len(header))
	for _, h := range header {
		set[h] = struct{}{}
	}
	for _, c := range columns {
		if _, ok := set[c]; !ok {
			return fmt.Errorf("missing required header column: %s", c)
		}
	}
	return nil
}

func normalizeHeader(h []string) ([]string, error) {
	if len(h) == 0 {
		return nil, ErrMissingHeader
	}
	out := make([]string, len(h))
	nonEmpty := false
	for i := range h {
		out[i] = strings.TrimSpace(h[i])
		if out[i] != "" {
			nonEmpty = true
		}
	}
	if !nonEmpty {
		return nil, ErrMissingHeader
	}
	return out, nil
}

func toRecord(header, cells []string) Record {
	rec := make(Record, len(header))
	for i, name := range header {
		if name == "" {
			continue
		}
		if i < len(cells) {
			rec[name] = cells[i]
		} else {
			rec[name] = ""
		}
	}
	return rec
}

func isBlank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

