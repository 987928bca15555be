package rules

import (
	"fmt"
	"slices"
	"strings"

	"github.com/JaimeStill/clearance/internal/canonical"
)

// RelevanceRuleID identifies the classifier-confidence rule applied to
// every evaluated document. It is reserved.
const RelevanceRuleID = "relevance"

// ShipmentTarget is the cross-rule target type that resolves fields against
// shipment metadata instead of a document.
const ShipmentTarget canonical.DocumentType = "shipment"

// SingleRule checks one field of each evaluated document of DocumentType.
type SingleRule struct {
	ID           string
	Name         string
	DocumentType canonical.DocumentType
	FieldPath    string
	Condition    Condition
	Severity     Severity
	Message      string
}

// CrossRule compares a field of the SourceType primary with a field of the
// TargetType primary or, when TargetType is ShipmentTarget, a shipment
// attribute.
type CrossRule struct {
	ID          string
	Name        string
	SourceType  canonical.DocumentType
	SourceField string
	TargetType  canonical.DocumentType
	TargetField string
	Comparison  Comparison
	Severity    Severity
	Message     string
}

// RuleSet is an immutable, validated collection of rules. Construct it with
// NewRuleSet, Load or Default and pass it to Evaluate.
type RuleSet struct {
	single []SingleRule
	cross  []CrossRule
}

// NewRuleSet validates and copies the given rules. Rule ids must be unique
// and every field path must name a field of its document type.
func NewRuleSet(single []SingleRule, cross []CrossRule) (*RuleSet, error) {
	seen := map[string]bool{RelevanceRuleID: true}
	claim := func(id string) error {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("%w: empty id", ErrInvalidRule)
		}
		if seen[id] {
			return fmt.Errorf("%w: %s", ErrDuplicateID, id)
		}
		seen[id] = true
		return nil
	}

	for _, r := range single {
		if err := claim(r.ID); err != nil {
			return nil, err
		}
		if err := validateSingle(r); err != nil {
			return nil, fmt.Errorf("rule %s: %w", r.ID, err)
		}
	}
	for _, r := range cross {
		if err := claim(r.ID); err != nil {
			return nil, err
		}
		if err := validateCross(r); err != nil {
			return nil, fmt.Errorf("rule %s: %w", r.ID, err)
		}
	}

	return &RuleSet{
		single: slices.Clone(single),
		cross:  slices.Clone(cross),
	}, nil
}

// Single returns a copy of the single-document rules in evaluation order.
func (s *RuleSet) Single() []SingleRule { return slices.Clone(s.single) }

// Cross returns a copy of the cross-document rules in evaluation order.
func (s *RuleSet) Cross() []CrossRule { return slices.Clone(s.cross) }

// Len counts rules including the relevance rule.
func (s *RuleSet) Len() int { return len(s.single) + len(s.cross) + 1 }

func validateSingle(r SingleRule) error {
	if !r.Severity.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidSeverity, r.Severity)
	}
	if r.Condition == nil {
		return fmt.Errorf("%w: missing condition", ErrInvalidRule)
	}
	if err := validateField(r.DocumentType, r.FieldPath); err != nil {
		return err
	}

	switch c := r.Condition.(type) {
	case NotNull, Regex:
	case Equals:
		if c.Value == nil {
			return fmt.Errorf("%w: EQUALS requires a value", ErrInvalidRule)
		}
	case InList:
		if len(c.Values) == 0 {
			return fmt.Errorf("%w: IN_LIST requires values", ErrInvalidRule)
		}
	case Range:
		if c.Min == nil && c.Max == nil {
			return fmt.Errorf("%w: RANGE requires a bound", ErrInvalidRule)
		}
		if c.Min != nil && c.Max != nil && *c.Min > *c.Max {
			return fmt.Errorf("%w: RANGE min exceeds max", ErrInvalidRule)
		}
	case DateBeforeOrEqual:
		if c.Ref.Shipment {
			if !slices.Contains(shipmentAttrs, c.Ref.Path) {
				return fmt.Errorf("%w: unknown shipment attribute %q", ErrInvalidRule, c.Ref.Path)
			}
		} else if err := validateField(r.DocumentType, c.Ref.Path); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: unsupported condition %T", ErrInvalidRule, c)
	}
	return nil
}

func validateCross(r CrossRule) error {
	if !r.Severity.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidSeverity, r.Severity)
	}
	if r.Comparison == nil {
		return fmt.Errorf("%w: missing comparison", ErrInvalidRule)
	}
	if err := validateField(r.SourceType, r.SourceField); err != nil {
		return err
	}
	if r.TargetType == ShipmentTarget {
		if !slices.Contains(shipmentAttrs, r.TargetField) {
			return fmt.Errorf("%w: unknown shipment attribute %q", ErrInvalidRule, r.TargetField)
		}
	} else if err := validateField(r.TargetType, r.TargetField); err != nil {
		return err
	}
	if r.SourceType == r.TargetType {
		return fmt.Errorf("%w: source and target types are equal", ErrInvalidRule)
	}

	switch c := r.Comparison.(type) {
	case CompareEquals, CompareSetEquals, CompareSetSubset, CompareDateBeforeOrEqual:
	case CompareTolerance:
		if c.Fraction < 0 {
			return fmt.Errorf("%w: negative tolerance", ErrInvalidRule)
		}
	default:
		return fmt.Errorf("%w: unsupported comparison %T", ErrInvalidRule, c)
	}
	return nil
}

func validateField(t canonical.DocumentType, path string) error {
	if !t.Valid() {
		return fmt.Errorf("%w: %q", canonical.ErrUnknownType, t)
	}
	segs, err := canonical.ParsePath(path)
	if err != nil {
		return err
	}
	spec, ok := canonical.SchemaFor(t).Field(segs[0].Name)
	if !ok {
		return fmt.Errorf("%w: %s has no field %q", ErrInvalidRule, t, segs[0].Name)
	}
	if len(segs) == 2 {
		if _, ok := spec.Subfield(segs[1].Name); !ok {
			return fmt.Errorf("%w: %s.%s has no subfield %q", ErrInvalidRule, t, spec.Name, segs[1].Name)
		}
	}
	return nil
}
