package rules

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/JaimeStill/clearance/internal/canonical"
)

//go:embed rules.yaml
var defaultRules []byte

type ruleFile struct {
	Single []singleSpec `yaml:"single"`
	Cross  []crossSpec  `yaml:"cross"`
}

type singleSpec struct {
	ID           string   `yaml:"id"`
	Name         string   `yaml:"name"`
	DocumentType string   `yaml:"document_type"`
	Field        string   `yaml:"field"`
	Condition    string   `yaml:"condition"`
	Value        any      `yaml:"value"`
	Values       []string `yaml:"values"`
	Min          *float64 `yaml:"min"`
	Max          *float64 `yaml:"max"`
	Pattern      string   `yaml:"pattern"`
	Reference    string   `yaml:"reference"`
	Severity     string   `yaml:"severity"`
	Message      string   `yaml:"message"`
}

type crossSpec struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	SourceType  string   `yaml:"source_type"`
	SourceField string   `yaml:"source_field"`
	TargetType  string   `yaml:"target_type"`
	TargetField string   `yaml:"target_field"`
	Comparison  string   `yaml:"comparison"`
	Tolerance   *float64 `yaml:"tolerance"`
	Severity    string   `yaml:"severity"`
	Message     string   `yaml:"message"`
}

// Default returns the embedded rule set.
func Default() (*RuleSet, error) {
	return Load(bytes.NewReader(defaultRules))
}

// LoadFile reads a rule file from path, or the embedded rules when path is
// empty.
func LoadFile(path string) (*RuleSet, error) {
	if path == "" {
		return Default()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open rules file: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load decodes a YAML rule file, adds a NOT_NULL rule for every required
// canonical field the file does not already check, and validates the result.
func Load(r io.Reader) (*RuleSet, error) {
	single, cross, err := Parse(r)
	if err != nil {
		return nil, err
	}
	return NewRuleSet(append(RequiredFieldRules(single), single...), cross)
}

// Parse decodes a YAML rule file without validating field references.
func Parse(r io.Reader) ([]SingleRule, []CrossRule, error) {
	var file ruleFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, nil, fmt.Errorf("decode rules: %w", err)
	}

	single := make([]SingleRule, 0, len(file.Single))
	for _, s := range file.Single {
		cond, err := s.condition()
		if err != nil {
			return nil, nil, fmt.Errorf("rule %s: %w", s.ID, err)
		}
		single = append(single, SingleRule{
			ID:           s.ID,
			Name:         s.Name,
			DocumentType: canonical.DocumentType(s.DocumentType),
			FieldPath:    s.Field,
			Condition:    cond,
			Severity:     Severity(strings.ToUpper(s.Severity)),
			Message:      s.Message,
		})
	}

	cross := make([]CrossRule, 0, len(file.Cross))
	for _, c := range file.Cross {
		cmp, err := c.comparison()
		if err != nil {
			return nil, nil, fmt.Errorf("rule %s: %w", c.ID, err)
		}
		cross = append(cross, CrossRule{
			ID:          c.ID,
			Name:        c.Name,
			SourceType:  canonical.DocumentType(c.SourceType),
			SourceField: c.SourceField,
			TargetType:  canonical.DocumentType(c.TargetType),
			TargetField: c.TargetField,
			Comparison:  cmp,
			Severity:    Severity(strings.ToUpper(c.Severity)),
			Message:     c.Message,
		})
	}

	return single, cross, nil
}

func (s singleSpec) condition() (Condition, error) {
	switch strings.ToUpper(s.Condition) {
	case "NOT_NULL":
		return NotNull{}, nil
	case "EQUALS":
		v := s.Value
		if n, ok := v.(int); ok {
			v = float64(n)
		}
		return Equals{Value: v}, nil
	case "IN_LIST":
		return InList{Values: s.Values}, nil
	case "RANGE":
		return Range{Min: s.Min, Max: s.Max}, nil
	case "REGEX":
		return NewRegex(s.Pattern), nil
	case "DATE_BEFORE_OR_EQUAL":
		if s.Reference == "" {
			return nil, fmt.Errorf("%w: DATE_BEFORE_OR_EQUAL requires a reference", ErrInvalidRule)
		}
		return DateBeforeOrEqual{Ref: ParseReference(s.Reference)}, nil
	default:
		return nil, fmt.Errorf("%w: unknown condition %q", ErrInvalidRule, s.Condition)
	}
}

func (c crossSpec) comparison() (Comparison, error) {
	switch strings.ToUpper(c.Comparison) {
	case "EQUALS":
		return CompareEquals{}, nil
	case "WITHIN_TOLERANCE":
		if c.Tolerance == nil {
			return nil, fmt.Errorf("%w: WITHIN_TOLERANCE requires tolerance", ErrInvalidRule)
		}
		return CompareTolerance{Fraction: *c.Tolerance}, nil
	case "SET_EQUALS":
		return CompareSetEquals{}, nil
	case "SET_SUBSET":
		return CompareSetSubset{}, nil
	case "DATE_BEFORE_OR_EQUAL":
		return CompareDateBeforeOrEqual{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown comparison %q", ErrInvalidRule, c.Comparison)
	}
}

// RequiredFieldRules derives an ERROR NOT_NULL rule for each required field
// of each document type, skipping fields existing already checks with
// NOT_NULL.
func RequiredFieldRules(existing []SingleRule) []SingleRule {
	covered := make(map[string]bool)
	for _, r := range existing {
		if _, ok := r.Condition.(NotNull); ok {
			covered[string(r.DocumentType)+"/"+canonical.Root(r.FieldPath)] = true
		}
	}

	var out []SingleRule
	for _, t := range canonical.DocumentTypes() {
		for _, field := range canonical.SchemaFor(t).Required() {
			if covered[string(t)+"/"+field] {
				continue
			}
			out = append(out, SingleRule{
				ID:           fmt.Sprintf("%s.%s.required", t, field),
				Name:         fmt.Sprintf("%s present", field),
				DocumentType: t,
				FieldPath:    field,
				Condition:    NotNull{},
				Severity:     SeverityError,
				Message:      fmt.Sprintf("%s %s is required", strings.ReplaceAll(string(t), "_", " "), field),
			})
		}
	}
	return out
}
