package canonical

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Field is a typed canonical value with its extraction confidence.
// Value holds a string, float64, Date, []string or []Record depending on the
// field's Kind.
type Field struct {
	Value      any     `json:"value"`
	Confidence float64 `json:"confidence"`
}

// Document is an immutable canonical record for one extraction of one
// document instance. Re-extraction produces a new Document.
type Document struct {
	ID            uuid.UUID        `json:"id"`
	DocumentID    uuid.UUID        `json:"document_id"`
	Type          DocumentType     `json:"document_type"`
	Fields        map[string]Field `json:"fields"`
	RawConfidence float64          `json:"raw_confidence"`
	ExtractedAt   time.Time        `json:"extracted_at"`
}

// Get returns the named top-level field.
func (d *Document) Get(name string) (Field, bool) {
	if d == nil {
		return Field{}, false
	}
	f, ok := d.Fields[name]
	return f, ok
}

// Has reports whether the top-level field is present.
func (d *Document) Has(name string) bool {
	_, ok := d.Get(name)
	return ok
}

// MissingRequired lists required fields of the document's type that are
// absent, in schema order.
func (d *Document) MissingRequired() []string {
	var missing []string
	for _, name := range SchemaFor(d.Type).Required() {
		if !d.Has(name) {
			missing = append(missing, name)
		}
	}
	return missing
}

// Lookup resolves a dot/bracket path against the document.
// Indexed segments return one element; wildcard segments over records return
// the []any of matching subfield values. The bool result is false when any
// step of the path is absent. Malformed paths return ErrInvalidPath.
func (d *Document) Lookup(path string) (any, bool, error) {
	segs, err := ParsePath(path)
	if err != nil {
		return nil, false, err
	}
	if len(segs) > 2 {
		return nil, false, fmt.Errorf("%w: nesting deeper than one level: %q", ErrInvalidPath, path)
	}

	root := segs[0]
	f, ok := d.Get(root.Name)
	if !ok {
		return nil, false, nil
	}

	var sub string
	if len(segs) == 2 {
		if segs[1].Indexed() || segs[1].Wildcard {
			return nil, false, fmt.Errorf("%w: index on subfield: %q", ErrInvalidPath, path)
		}
		sub = segs[1].Name
	}

	switch v := f.Value.(type) {
	case []string:
		if sub != "" {
			return nil, false, fmt.Errorf("%w: list field has no subfields: %q", ErrInvalidPath, path)
		}
		if root.Indexed() {
			if root.Index >= len(v) {
				return nil, false, nil
			}
			return v[root.Index], true, nil
		}
		return v, true, nil

	case []Record:
		switch {
		case root.Indexed():
			if root.Index >= len(v) {
				return nil, false, nil
			}
			if sub == "" {
				return v[root.Index], true, nil
			}
			val, ok := v[root.Index][sub]
			return val, ok, nil
		case sub != "":
			var vals []any
			for _, r := range v {
				if val, ok := r[sub]; ok {
					vals = append(vals, val)
				}
			}
			return vals, len(vals) > 0, nil
		default:
			return v, true, nil
		}

	default:
		if root.Indexed() || root.Wildcard || sub != "" {
			return nil, false, fmt.Errorf("%w: scalar field %q addressed as a collection", ErrInvalidPath, root.Name)
		}
		return v, true, nil
	}
}

// UnmarshalJSON restores typed values from their JSON form using the
// document type's schema. Fields outside the schema are rejected.
func (d *Document) UnmarshalJSON(data []byte) error {
	var aux struct {
		ID            uuid.UUID           `json:"id"`
		DocumentID    uuid.UUID           `json:"document_id"`
		Type          DocumentType        `json:"document_type"`
		Fields        map[string]rawField `json:"fields"`
		RawConfidence float64             `json:"raw_confidence"`
		ExtractedAt   time.Time           `json:"extracted_at"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	fields, err := decodeFields(aux.Type, aux.Fields)
	if err != nil {
		return err
	}

	*d = Document{
		ID:            aux.ID,
		DocumentID:    aux.DocumentID,
		Type:          aux.Type,
		Fields:        fields,
		RawConfidence: aux.RawConfidence,
		ExtractedAt:   aux.ExtractedAt,
	}
	return nil
}

// DecodeFields restores the typed field map of a document of type t from its
// JSON object form, as produced by marshaling Document.Fields.
func DecodeFields(t DocumentType, data []byte) (map[string]Field, error) {
	var raw map[string]rawField
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	return decodeFields(t, raw)
}

func decodeFields(t DocumentType, raw map[string]rawField) (map[string]Field, error) {
	schema := SchemaFor(t)
	fields := make(map[string]Field, len(raw))
	for name, rf := range raw {
		spec, ok := schema.Field(name)
		if !ok {
			return nil, fmt.Errorf("field %q not in %s field set", name, t)
		}
		v, err := decodeValue(spec, rf.Value)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", name, err)
		}
		fields[name] = Field{Value: v, Confidence: rf.Confidence}
	}
	return fields, nil
}

type rawField struct {
	Value      json.RawMessage `json:"value"`
	Confidence float64         `json:"confidence"`
}

func decodeValue(spec FieldSpec, raw json.RawMessage) (any, error) {
	switch spec.Kind {
	case KindText:
		var s string
		err := json.Unmarshal(raw, &s)
		return s, err
	case KindNumber:
		var n float64
		err := json.Unmarshal(raw, &n)
		return n, err
	case KindDate:
		var dt Date
		err := json.Unmarshal(raw, &dt)
		return dt, err
	case KindList:
		var l []string
		err := json.Unmarshal(raw, &l)
		return l, err
	case KindRecords:
		var items []map[string]json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, err
		}
		recs := make([]Record, 0, len(items))
		for _, item := range items {
			rec := make(Record, len(item))
			for k, rv := range item {
				sub, ok := spec.Subfield(k)
				if !ok {
					return nil, fmt.Errorf("subfield %q not in %s", k, spec.Name)
				}
				v, err := decodeValue(sub, rv)
				if err != nil {
					return nil, err
				}
				rec[k] = v
			}
			recs = append(recs, rec)
		}
		return recs, nil
	default:
		return nil, fmt.Errorf("unsupported kind %s", spec.Kind)
	}
}
