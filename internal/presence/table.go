package presence

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"

	"github.com/JaimeStill/clearance/internal/canonical"
)

// ErrInvalidTable indicates a malformed requirements table.
var ErrInvalidTable = errors.New("invalid requirements table")

//go:embed requirements.yaml
var defaultTable []byte

// Requirement states that a document type must (or may) accompany a
// shipment.
type Requirement struct {
	DocumentType canonical.DocumentType `json:"document_type"`
	Mandatory    bool                   `json:"mandatory"`
}

type requirementSpec struct {
	DocumentType string `yaml:"document_type"`
	Optional     bool   `yaml:"optional"`
}

type familySpec struct {
	Name       string            `yaml:"name"`
	HSPrefixes []string          `yaml:"hs_prefixes"`
	Requires   []requirementSpec `yaml:"requires"`
}

type tableSpec struct {
	Universal []requirementSpec `yaml:"universal"`
	Families  []familySpec      `yaml:"families"`
}

type family struct {
	name     string
	prefixes []string
	requires []Requirement
}

// Table maps HS-code families to required documents. It is immutable once
// loaded.
type Table struct {
	universal []Requirement
	families  []family
}

// DefaultTable returns the embedded requirements table.
func DefaultTable() (*Table, error) {
	return LoadTable(bytes.NewReader(defaultTable))
}

// LoadTableFile reads a table from path, or the embedded table when path is
// empty.
func LoadTableFile(path string) (*Table, error) {
	if path == "" {
		return DefaultTable()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open requirements file: %w", err)
	}
	defer f.Close()
	return LoadTable(f)
}

// LoadTable decodes and validates a YAML requirements table.
func LoadTable(r io.Reader) (*Table, error) {
	var spec tableSpec
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&spec); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode requirements: %w", err)
	}

	universal, err := convert(spec.Universal)
	if err != nil {
		return nil, err
	}

	t := &Table{universal: universal}
	for _, f := range spec.Families {
		if f.Name == "" {
			return nil, fmt.Errorf("%w: family without name", ErrInvalidTable)
		}
		if len(f.HSPrefixes) == 0 {
			return nil, fmt.Errorf("%w: family %s has no hs_prefixes", ErrInvalidTable, f.Name)
		}
		prefixes := make([]string, 0, len(f.HSPrefixes))
		for _, p := range f.HSPrefixes {
			n := NormalizeHSCode(p)
			if n == "" {
				return nil, fmt.Errorf("%w: family %s has empty prefix", ErrInvalidTable, f.Name)
			}
			prefixes = append(prefixes, n)
		}
		reqs, err := convert(f.Requires)
		if err != nil {
			return nil, fmt.Errorf("family %s: %w", f.Name, err)
		}
		t.families = append(t.families, family{name: f.Name, prefixes: prefixes, requires: reqs})
	}
	return t, nil
}

func convert(specs []requirementSpec) ([]Requirement, error) {
	out := make([]Requirement, 0, len(specs))
	for _, s := range specs {
		dt, err := canonical.ParseDocumentType(s.DocumentType)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidTable, s.DocumentType)
		}
		out = append(out, Requirement{DocumentType: dt, Mandatory: !s.Optional})
	}
	return out, nil
}

// NormalizeHSCode keeps only the digits of an HS code ("0506.10" -> "050610").
func NormalizeHSCode(code string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, code)
}

// Families returns the names of families whose prefixes match any of
// hsCodes, in table order.
func (t *Table) Families(hsCodes []string) []string {
	var names []string
	for _, f := range t.families {
		if f.matches(hsCodes) {
			names = append(names, f.name)
		}
	}
	return names
}

// Required returns the merged requirements for a shipment's HS codes:
// the universal set plus every matching family. A type required as
// mandatory anywhere is mandatory.
func (t *Table) Required(hsCodes []string) []Requirement {
	var out []Requirement
	index := make(map[canonical.DocumentType]int)

	add := func(reqs []Requirement) {
		for _, r := range reqs {
			if i, ok := index[r.DocumentType]; ok {
				out[i].Mandatory = out[i].Mandatory || r.Mandatory
				continue
			}
			index[r.DocumentType] = len(out)
			out = append(out, r)
		}
	}

	add(t.universal)
	for _, f := range t.families {
		if f.matches(hsCodes) {
			add(f.requires)
		}
	}
	return out
}

func (f family) matches(hsCodes []string) bool {
	for _, code := range hsCodes {
		n := NormalizeHSCode(code)
		for _, p := range f.prefixes {
			if strings.HasPrefix(n, p) {
				return true
			}
		}
	}
	return false
}
