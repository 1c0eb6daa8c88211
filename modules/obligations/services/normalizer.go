package services

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/enveng-group/greenova/modules/obligations/domain/aggregates/obligation"
	"github.com/enveng-group/greenova/modules/obligations/domain/entities/mechanism"
	"github.com/enveng-group/greenova/modules/obligations/domain/entities/project"
	"github.com/enveng-group/greenova/modules/obligations/infrastructure/source"
	"github.com/enveng-group/greenova/pkg/composables"
	"github.com/enveng-group/greenova/pkg/constants"
)

const defaultAspect = "Other"

var ErrMissingObligationNumber = errors.New("missing obligation number")

var trueTokens = map[string]struct{}{
	"true": {}, "yes": {}, "y": {}, "1": {}, "on": {}, "t": {},
}

// CleanBoolean coerces a cell to bool. Strings match the truthy token set case-insensitively;
// anything else is judged by truthiness.
func CleanBoolean(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		_, ok := trueTokens[strings.ToLower(strings.TrimSpace(x))]
		return ok
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint() != 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() != 0
	case reflect.Slice, reflect.Map, reflect.Array, reflect.String:
		return rv.Len() > 0
	case reflect.Ptr, reflect.Interface:
		return !rv.IsNil()
	}
	return true
}

// NormalizeObligationNumber rewrites legacy prefixes using the built-in rules.
func NormalizeObligationNumber(raw string) string {
	return normalizeObligationNumber(defaultPrefixes, raw)
}

func normalizeObligationNumber(rules []PrefixRule, raw string) string {
	number := strings.TrimSpace(raw)
	if number == "" {
		return ""
	}
	for _, r := range rules {
		if strings.HasPrefix(number, r.Prefix) {
			rest := strings.TrimSpace(strings.TrimPrefix(number, r.Prefix))
			if strings.HasSuffix(r.Replacement, "-") {
				rest = strings.TrimSpace(strings.TrimPrefix(rest, "-"))
			}
			return r.Replacement + rest
		}
	}
	if head, tail, ok := strings.Cut(number, "-"); ok {
		return strings.ToUpper(head) + "-" + strings.TrimSpace(tail)
	}
	return number
}

// NormalizeAspect maps an aspect cell onto its display form using the built-in table.
func NormalizeAspect(raw string) string {
	return normalizeAspect(defaultAspectsByKey, raw)
}

var defaultAspectsByKey = DefaultMappings().Aspects

func normalizeAspect(table map[string]string, raw string) string {
	key := lookupKey(raw)
	if key == "" {
		return defaultAspect
	}
	if v, ok := table[key]; ok {
		return v
	}
	return strings.TrimSpace(raw)
}

// NormalizeStatus lower-cases the cell; anything outside the status vocabulary becomes "not started".
func NormalizeStatus(raw string) obligation.Status {
	s := obligation.Status(lookupKey(raw))
	if !s.Valid() {
		return obligation.StatusNotStarted
	}
	return s
}

// ParseDate accepts YYYY-MM-DD with one- or two-digit month and day.
// Empty input yields nil without error.
func ParseDate(raw string) (*time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-1-2", s)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q", raw)
	}
	return &t, nil
}

// Canonical is a cleaned register row ready for the upsert step.
type Canonical struct {
	Obligation       obligation.Obligation
	Mechanism        *mechanism.EnvironmentalMechanism
	MechanismCreated bool
	// Warnings lists tolerated problems such as unparseable dates.
	Warnings []string
}

type Normalizer struct {
	mappings   Mappings
	mechanisms mechanism.Repository
}

func NewNormalizer(mappings Mappings, mechanisms mechanism.Repository) *Normalizer {
	return &Normalizer{mappings: mappings.clone(), mechanisms: mechanisms}
}

// Normalize cleans rec for project p and resolves its environmental mechanism,
// creating the mechanism when the project has none by that name.
// Free-text cells are copied verbatim.
func (n *Normalizer) Normalize(ctx context.Context, rec source.Record, p project.Project) (Canonical, error) {
	logger := composables.UseLogger(ctx)

	number := normalizeObligationNumber(n.mappings.ObligationPrefixes, rec.Get(source.ColObligationNumber))
	if number == "" {
		return Canonical{}, ErrMissingObligationNumber
	}
	logger = logger.WithField("obligation_number", number)

	var out Canonical
	dates := make(map[string]*time.Time, 3)
	for _, col := range []string{source.ColActionDueDate, source.ColCloseOutDate, source.ColRecurringForcastedDate} {
		d, err := ParseDate(rec.Get(col))
		if err != nil {
			logger.WithField("column", col).Warn(err.Error())
			out.Warnings = append(out.Warnings, fmt.Sprintf("%s: %v", col, err))
		}
		dates[col] = d
	}

	o := obligation.Obligation{
		ObligationNumber:       number,
		ProjectID:              p.ID,
		Procedure:              rec.Get(source.ColProcedure),
		EnvironmentalAspect:    normalizeAspect(n.mappings.Aspects, rec.Get(source.ColEnvironmentalAspect)),
		Obligation:             rec.Get(source.ColObligation),
		Accountability:         rec.Get(source.ColAccountability),
		Responsibility:         rec.Get(source.ColResponsibility),
		ProjectPhase:           rec.Get(source.ColProjectPhase),
		ActionDueDate:          dates[source.ColActionDueDate],
		CloseOutDate:           dates[source.ColCloseOutDate],
		Status:                 NormalizeStatus(rec.Get(source.ColStatus)),
		SupportingInformation:  rec.Get(source.ColSupportingInformation),
		GeneralComments:        rec.Get(source.ColGeneralComments),
		ComplianceComments:     rec.Get(source.ColComplianceComments),
		NonConformanceComments: rec.Get(source.ColNonConformanceComments),
		EvidenceNotes:          rec.Get(source.ColEvidence),
		RecurringObligation:    CleanBoolean(rec.Get(source.ColRecurringObligation)),
		RecurringFrequency:     normalizeFrequency(n.mappings.Frequencies, rec.Get(source.ColRecurringFrequency)),
		RecurringStatus:        rec.Get(source.ColRecurringStatus),
		RecurringForcastedDate: dates[source.ColRecurringForcastedDate],
		Inspection:             CleanBoolean(rec.Get(source.ColInspection)),
		InspectionFrequency:    rec.Get(source.ColInspectionFrequency),
		SiteOrDesktop:          rec.Get(source.ColSiteOrDesktop),
		GapAnalysis:            CleanBoolean(rec.Get(source.ColGapAnalysis)),
		NotesForGapAnalysis:    rec.Get(source.ColNotesForGapAnalysis),
	}

	if name := strings.TrimSpace(rec.Get(source.ColMechanism)); name != "" {
		m, created, err := n.mechanisms.GetOrCreate(ctx, mechanism.New(p.ID, name, n.mappings.ReferenceNumber(name)))
		if err != nil {
			return Canonical{}, fmt.Errorf("resolve mechanism %q: %w", name, err)
		}
		if created {
			logger.WithFields(logrus.Fields{
				"mechanism": m.Name,
				"project":   p.Name,
			}).Info("created environmental mechanism")
		}
		o.MechanismID = &m.ID
		out.Mechanism = &m
		out.MechanismCreated = created
	}

	if err := constants.Validate.Struct(o); err != nil {
		return Canonical{}, fmt.Errorf("invalid obligation %s: %w", number, err)
	}
	out.Obligation = o
	return out, nil
}

