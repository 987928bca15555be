package rules

import (
	"fmt"
	"regexp"
	"strings"
)

// Condition is the closed set of single-document checks. Evaluation switches
// exhaustively over the concrete types below.
type Condition interface {
	Name() string
	condition()
}

// NotNull passes when the field is present and non-empty.
type NotNull struct{}

// Equals passes when the field equals Value. Strings compare
// case-insensitively with whitespace collapsed.
type Equals struct {
	Value any
}

// InList passes when the field matches one of Values.
type InList struct {
	Values []string
}

// Range passes when a numeric field lies within [Min, Max]. A nil bound is
// open.
type Range struct {
	Min *float64
	Max *float64
}

// Regex passes when the field's text matches Pattern. A pattern that fails
// to compile surfaces as a rule execution failure at evaluation time.
type Regex struct {
	Pattern string
	re      *regexp.Regexp
	err     error
}

// NewRegex compiles pattern, retaining any compile error for evaluation.
func NewRegex(pattern string) Regex {
	re, err := regexp.Compile(pattern)
	return Regex{Pattern: pattern, re: re, err: err}
}

// DateBeforeOrEqual passes when the field's date is on or before Ref.
type DateBeforeOrEqual struct {
	Ref Reference
}

func (NotNull) Name() string           { return "NOT_NULL" }
func (Equals) Name() string            { return "EQUALS" }
func (InList) Name() string            { return "IN_LIST" }
func (Range) Name() string             { return "RANGE" }
func (Regex) Name() string             { return "REGEX" }
func (DateBeforeOrEqual) Name() string { return "DATE_BEFORE_OR_EQUAL" }

func (NotNull) condition()           {}
func (Equals) condition()            {}
func (InList) condition()            {}
func (Range) condition()             {}
func (Regex) condition()             {}
func (DateBeforeOrEqual) condition() {}

// Reference names a value a date condition compares against: either another
// field path on the same document or a shipment attribute.
type Reference struct {
	Shipment bool
	Path     string
}

const shipmentPrefix = "shipment."

// ParseReference reads "shipment.<attr>" or a field path.
func ParseReference(s string) Reference {
	s = strings.TrimSpace(s)
	if attr, ok := strings.CutPrefix(s, shipmentPrefix); ok {
		return Reference{Shipment: true, Path: attr}
	}
	return Reference{Path: s}
}

func (r Reference) String() string {
	if r.Shipment {
		return shipmentPrefix + r.Path
	}
	return r.Path
}

// Comparison is the closed set of cross-document checks.
type Comparison interface {
	Name() string
	comparison()
}

// CompareEquals passes when source and target hold the same value.
type CompareEquals struct{}

// CompareTolerance passes when |a-b| / max(|a|,|b|,1) <= Fraction.
// Multi-value numeric sides are summed first.
type CompareTolerance struct {
	Fraction float64
}

// CompareSetEquals passes when both sides hold the same normalized set.
type CompareSetEquals struct{}

// CompareSetSubset passes when every source value appears in the target.
type CompareSetSubset struct{}

// CompareDateBeforeOrEqual passes when the source date is on or before the
// target date.
type CompareDateBeforeOrEqual struct{}

func (CompareEquals) Name() string            { return "EQUALS" }
func (c CompareTolerance) Name() string       { return fmt.Sprintf("WITHIN_TOLERANCE(%g)", c.Fraction) }
func (CompareSetEquals) Name() string         { return "SET_EQUALS" }
func (CompareSetSubset) Name() string         { return "SET_SUBSET" }
func (CompareDateBeforeOrEqual) Name() string { return "DATE_BEFORE_OR_EQUAL" }

func (CompareEquals) comparison()            {}
func (CompareTolerance) comparison()         {}
func (CompareSetEquals) comparison()         {}
func (CompareSetSubset) comparison()         {}
func (CompareDateBeforeOrEqual) comparison() {}
