package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ErrShapeMismatch is returned when fields that must share axes do not.
var ErrShapeMismatch = errors.New("shape mismatch")

// ErrInvalidBaseline is returned for a baseline whose start is after its end.
var ErrInvalidBaseline = errors.New("invalid baseline period")

// SchemaError reports required coordinates or variables that are absent or
// ambiguous in a dataset. It is fatal for the run.
type SchemaError struct {
	Source    string
	Missing   []string
	Ambiguous map[string][]string // role -> candidate names
}

func (e *SchemaError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, fmt.Sprintf("missing %s", strings.Join(e.Missing, ", ")))
	}
	roles := make([]string, 0, len(e.Ambiguous))
	for role := range e.Ambiguous {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	for _, role := range roles {
		parts = append(parts, fmt.Sprintf("ambiguous %s (candidates: %s)", role, strings.Join(e.Ambiguous[role], ", ")))
	}
	return fmt.Sprintf("schema error in %s: %s", e.Source, strings.Join(parts, "; "))
}

// GridMismatchError reports a source grid that has no overlap with the
// reference grid. The regridded field is still returned, all missing.
type GridMismatchError struct {
	Source         string
	SrcLat, SrcLon [2]float64
	RefLat, RefLon [2]float64
}

func (e *GridMismatchError) Error() string {
	return fmt.Sprintf("grid of %s (lat %.3f..%.3f, lon %.3f..%.3f) does not overlap reference grid (lat %.3f..%.3f, lon %.3f..%.3f)",
		e.Source, e.SrcLat[0], e.SrcLat[1], e.SrcLon[0], e.SrcLon[1],
		e.RefLat[0], e.RefLat[1], e.RefLon[0], e.RefLon[1])
}

// EmptyBaselineError reports a baseline window that selects no time steps.
type EmptyBaselineError struct {
	Field  string
	Period BaselinePeriod
}

func (e *EmptyBaselineError) Error() string {
	return fmt.Sprintf("baseline %s..%s selects no time steps of %s",
		e.Period.Start.Format(time.DateOnly), e.Period.End.Format(time.DateOnly), e.Field)
}

// TimeIntersectionEmptyError reports a target that shares no time steps with
// the reference pool.
type TimeIntersectionEmptyError struct {
	Source string
}

func (e *TimeIntersectionEmptyError) Error() string {
	return fmt.Sprintf("%s shares no time steps with the reference times", e.Source)
}

// UnitError reports units that cannot be converted to the expected dimension.
type UnitError struct {
	Field string
	Units string
	Want  string
}

func (e *UnitError) Error() string {
	return fmt.Sprintf("%s: cannot convert units %q to %s", e.Field, e.Units, e.Want)
}

// IsFatal reports whether err aborts the whole run.
//
// Fatal: SchemaError, EmptyBaselineError, UnitError, ErrShapeMismatch,
// ErrInvalidBaseline. Everything else (GridMismatchError,
// TimeIntersectionEmptyError, I/O failures) is handled per file: logged,
// counted and skipped.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var schemaErr *SchemaError
	var baselineErr *EmptyBaselineError
	var unitErr *UnitError
	switch {
	case errors.As(err, &schemaErr),
		errors.As(err, &baselineErr),
		errors.As(err, &unitErr),
		errors.Is(err, ErrShapeMismatch),
		errors.Is(err, ErrInvalidBaseline):
		return true
	}
	return false
}
