package documents

import (
	"database/sql"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/JaimeStill/clearance/internal/canonical"
	"github.com/JaimeStill/clearance/internal/docstate"
	"github.com/JaimeStill/clearance/internal/rules"
	"github.com/JaimeStill/clearance/pkg/query"
	"github.com/JaimeStill/clearance/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "document_instances", "d").
	Project("id", "ID").
	Project("shipment_id", "ShipmentID").
	Project("document_type", "DocumentType").
	Project("state", "State").
	Project("version", "Version").
	Project("is_primary", "IsPrimary").
	Project("pinned", "Pinned").
	Project("supersedes_id", "SupersedesID").
	Project("detected_type", "DetectedType").
	Project("classification_confidence", "ClassificationConfidence").
	Project("filename", "Filename").
	Project("content_type", "ContentType").
	Project("size_bytes", "SizeBytes").
	Project("page_count", "PageCount").
	Project("storage_key", "StorageKey").
	Project("created_at", "CreatedAt").
	Project("extracted_at", "ExtractedAt").
	Project("updated_at", "UpdatedAt").
	Join("public", "shipments", "s", "JOIN", "d.shipment_id = s.id").
	Project("reference", "ShipmentReference")

var defaultSort = query.SortField{
	Field:      "CreatedAt",
	Descending: true,
}

var canonicalProjection = query.
	NewProjectionMap("public", "canonical_documents", "c").
	Project("id", "ID").
	Project("instance_id", "InstanceID").
	Project("document_type", "DocumentType").
	Project("fields", "Fields").
	Project("raw_confidence", "RawConfidence").
	Project("extracted_at", "ExtractedAt")

var transitionProjection = query.
	NewProjectionMap("public", "state_transitions", "t").
	Project("id", "ID").
	Project("instance_id", "InstanceID").
	Project("seq", "Seq").
	Project("from_state", "From").
	Project("to_state", "To").
	Project("event", "Event").
	Project("actor", "Actor").
	Project("occurred_at", "OccurredAt")

// Filters contains optional filtering criteria for document queries.
// Nil fields are ignored. Filename and ShipmentReference use
// case-insensitive contains matching; the rest use exact matching.
type Filters struct {
	ShipmentID        *uuid.UUID `json:"shipment_id,omitempty"`
	ShipmentReference *string    `json:"shipment_reference,omitempty"`
	DocumentType      *string    `json:"document_type,omitempty"`
	State             *string    `json:"state,omitempty"`
	States            []string   `json:"states,omitempty"`
	IsPrimary         *bool      `json:"is_primary,omitempty"`
	DetectedType      *string    `json:"detected_type,omitempty"`
	Filename          *string    `json:"filename,omitempty"`
	ContentType       *string    `json:"content_type,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("ShipmentID", f.ShipmentID).
		WhereContains("ShipmentReference", f.ShipmentReference).
		WhereEquals("DocumentType", f.DocumentType).
		WhereEquals("State", f.State).
		WhereIn("State", f.stateArgs()).
		WhereEquals("IsPrimary", f.IsPrimary).
		WhereEquals("DetectedType", f.DetectedType).
		WhereContains("Filename", f.Filename).
		WhereEquals("ContentType", f.ContentType)
}

func (f Filters) stateArgs() []any {
	args := make([]any, 0, len(f.States))
	for _, st := range f.States {
		if st = strings.TrimSpace(st); st != "" {
			args = append(args, st)
		}
	}
	return args
}

// FiltersFromQuery extracts filter values from URL query parameters.
// States accepts a comma-separated list.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if s := values.Get("shipment_id"); s != "" {
		if id, err := uuid.Parse(s); err == nil {
			f.ShipmentID = &id
		}
	}

	if ref := values.Get("shipment_reference"); ref != "" {
		f.ShipmentReference = &ref
	}

	if dt := values.Get("document_type"); dt != "" {
		f.DocumentType = &dt
	}

	if st := values.Get("state"); st != "" {
		f.State = &st
	}

	if sts := values.Get("states"); sts != "" {
		f.States = strings.Split(sts, ",")
	}

	if p := values.Get("is_primary"); p != "" {
		if v, err := strconv.ParseBool(p); err == nil {
			f.IsPrimary = &v
		}
	}

	if dt := values.Get("detected_type"); dt != "" {
		f.DetectedType = &dt
	}

	if fn := values.Get("filename"); fn != "" {
		f.Filename = &fn
	}

	if ct := values.Get("content_type"); ct != "" {
		f.ContentType = &ct
	}

	return f
}

func scanInstance(s repository.Scanner) (Instance, error) {
	var (
		d            Instance
		detectedType sql.NullString
		confidence   sql.NullFloat64
	)

	err := s.Scan(
		&d.ID,
		&d.ShipmentID,
		&d.DocumentType,
		&d.State,
		&d.Version,
		&d.IsPrimary,
		&d.Pinned,
		&d.SupersedesID,
		&detectedType,
		&confidence,
		&d.Filename,
		&d.ContentType,
		&d.SizeBytes,
		&d.PageCount,
		&d.StorageKey,
		&d.CreatedAt,
		&d.ExtractedAt,
		&d.UpdatedAt,
		&d.ShipmentRef,
	)
	if err != nil {
		return d, err
	}

	if detectedType.Valid {
		d.Classification = &rules.Classification{
			DetectedType: canonical.DocumentType(detectedType.String),
			Confidence:   confidence.Float64,
		}
	}

	return d, nil
}

func scanCanonical(s repository.Scanner) (canonical.Document, error) {
	var (
		doc    canonical.Document
		fields []byte
	)

	err := s.Scan(
		&doc.ID,
		&doc.DocumentID,
		&doc.Type,
		&fields,
		&doc.RawConfidence,
		&doc.ExtractedAt,
	)
	if err != nil {
		return doc, err
	}

	doc.Fields, err = canonical.DecodeFields(doc.Type, fields)
	return doc, err
}

func scanTransition(s repository.Scanner) (docstate.StateTransition, error) {
	var (
		t    docstate.StateTransition
		from sql.NullString
	)

	err := s.Scan(
		&t.ID,
		&t.InstanceID,
		&t.Seq,
		&from,
		&t.To,
		&t.Event,
		&t.Actor,
		&t.OccurredAt,
	)
	if err != nil {
		return t, err
	}

	if from.Valid {
		t.From = docstate.State(from.String)
	}
	return t, nil
}
