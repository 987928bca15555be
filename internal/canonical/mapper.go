package canonical

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Extraction is the raw extractor output for one document instance.
// A raw key without an entry in RawConfidences inherits RawConfidence.
type Extraction struct {
	DocumentID     uuid.UUID          `json:"document_id"`
	Type           DocumentType       `json:"document_type"`
	RawFields      map[string]string  `json:"raw_fields"`
	RawConfidences map[string]float64 `json:"raw_confidences"`
	RawConfidence  float64            `json:"raw_confidence"`
	ExtractedAt    time.Time          `json:"extracted_at"`
}

// Mapper converts Extractions into canonical Documents.
// Missing required fields are not an error: they are left absent.
type Mapper struct {
	logger *slog.Logger
	now    func() time.Time
}

// NewMapper creates a Mapper that logs dropped keys at INFO and
// unparseable values at WARN.
func NewMapper(logger *slog.Logger) *Mapper {
	return &Mapper{
		logger: logger.With("system", "canonical"),
		now:    time.Now,
	}
}

// Map builds a canonical Document from in. The only error is an unknown
// document type.
func (m *Mapper) Map(in Extraction) (*Document, error) {
	if !in.Type.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, in.Type)
	}

	extractedAt := in.ExtractedAt
	if extractedAt.IsZero() {
		extractedAt = m.now()
	}

	b := &builder{
		schema:  SchemaFor(in.Type),
		scalars: make(map[string]Field),
		lists:   make(map[string]*listBuilder),
		records: make(map[string]*recordBuilder),
	}

	for _, key := range slices.Sorted(maps.Keys(in.RawFields)) {
		conf := in.RawConfidence
		if c, ok := in.RawConfidences[key]; ok {
			conf = c
		}
		m.apply(b, in.Type, key, in.RawFields[key], clamp(conf))
	}

	return &Document{
		ID:            uuid.New(),
		DocumentID:    in.DocumentID,
		Type:          in.Type,
		Fields:        b.fields(),
		RawConfidence: clamp(in.RawConfidence),
		ExtractedAt:   extractedAt.UTC(),
	}, nil
}

func (m *Mapper) apply(b *builder, docType DocumentType, key, raw string, conf float64) {
	segs, err := ParsePath(key)
	if err != nil {
		m.drop(docType, key, "malformed key")
		return
	}

	root := segs[0]
	spec, ok := b.schema.Field(root.Name)
	if !ok {
		m.drop(docType, key, "not in field set")
		return
	}
	if root.Wildcard || (len(segs) > 1 && spec.Kind != KindRecords) || len(segs) > 2 {
		m.drop(docType, key, "shape does not match field")
		return
	}

	switch spec.Kind {
	case KindText, KindNumber, KindDate:
		if root.Indexed() {
			m.drop(docType, key, "index on scalar field")
			return
		}
		v, ok, err := parseScalar(spec.Kind, raw)
		if err != nil {
			m.unparseable(docType, key, raw, err)
			return
		}
		if ok {
			b.scalars[spec.Name] = Field{Value: v, Confidence: conf}
		}

	case KindList:
		lb := b.list(spec.Name)
		if root.Indexed() {
			if v := collapseSpace(raw); v != "" {
				lb.indexed[root.Index] = v
				lb.observe(conf)
			}
			return
		}
		if vals := SplitList(raw); len(vals) > 0 {
			lb.flat = append(lb.flat, vals...)
			lb.observe(conf)
		}

	case KindRecords:
		m.applyRecord(b, docType, spec, segs, key, raw, conf)
	}
}

func (m *Mapper) applyRecord(b *builder, docType DocumentType, spec FieldSpec, segs []Segment, key, raw string, conf float64) {
	root := segs[0]
	subName := spec.Key
	if len(segs) == 2 {
		if segs[1].Indexed() || segs[1].Wildcard {
			m.drop(docType, key, "index on subfield")
			return
		}
		subName = segs[1].Name
	}

	sub, ok := spec.Subfield(subName)
	if !ok {
		m.drop(docType, key, "not in field set")
		return
	}

	rb := b.record(spec.Name)

	if !root.Indexed() {
		if len(segs) == 2 {
			m.drop(docType, key, "subfield without index")
			return
		}
		for _, item := range SplitList(raw) {
			v, ok, err := parseScalar(sub.Kind, item)
			if err != nil {
				m.unparseable(docType, key, item, err)
				continue
			}
			if ok {
				rb.flat = append(rb.flat, Record{sub.Name: v})
				rb.observe(conf)
			}
		}
		return
	}

	v, ok, err := parseScalar(sub.Kind, raw)
	if err != nil {
		m.unparseable(docType, key, raw, err)
		return
	}
	if !ok {
		return
	}
	rec, exists := rb.indexed[root.Index]
	if !exists {
		rec = make(Record)
		rb.indexed[root.Index] = rec
	}
	rec[sub.Name] = v
	rb.observe(conf)
}

func (m *Mapper) drop(docType DocumentType, key, reason string) {
	m.logger.Info("raw field dropped",
		"document_type", docType,
		"key", key,
		"reason", reason,
	)
}

func (m *Mapper) unparseable(docType DocumentType, key, raw string, err error) {
	m.logger.Warn("raw field unparseable",
		"document_type", docType,
		"key", key,
		"value", raw,
		"error", err,
	)
}

type builder struct {
	schema  Schema
	scalars map[string]Field
	lists   map[string]*listBuilder
	records map[string]*recordBuilder
}

func (b *builder) list(name string) *listBuilder {
	lb, ok := b.lists[name]
	if !ok {
		lb = &listBuilder{indexed: make(map[int]string)}
		b.lists[name] = lb
	}
	return lb
}

func (b *builder) record(name string) *recordBuilder {
	rb, ok := b.records[name]
	if !ok {
		rb = &recordBuilder{indexed: make(map[int]Record)}
		b.records[name] = rb
	}
	return rb
}

func (b *builder) fields() map[string]Field {
	out := maps.Clone(b.scalars)
	for name, lb := range b.lists {
		vals := make([]string, 0, len(lb.indexed)+len(lb.flat))
		for _, i := range slices.Sorted(maps.Keys(lb.indexed)) {
			vals = append(vals, lb.indexed[i])
		}
		vals = append(vals, lb.flat...)
		if len(vals) > 0 {
			out[name] = Field{Value: vals, Confidence: lb.conf}
		}
	}
	for name, rb := range b.records {
		recs := make([]Record, 0, len(rb.indexed)+len(rb.flat))
		for _, i := range slices.Sorted(maps.Keys(rb.indexed)) {
			recs = append(recs, rb.indexed[i])
		}
		recs = append(recs, rb.flat...)
		if len(recs) > 0 {
			out[name] = Field{Value: recs, Confidence: rb.conf}
		}
	}
	return out
}

// minConf tracks the minimum confidence across the raw keys of a nested field.
type minConf struct {
	conf float64
	seen bool
}

func (c *minConf) observe(v float64) {
	if !c.seen || v < c.conf {
		c.conf = v
		c.seen = true
	}
}

type listBuilder struct {
	minConf
	indexed map[int]string
	flat    []string
}

type recordBuilder struct {
	minConf
	indexed map[int]Record
	flat    []Record
}
