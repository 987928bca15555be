package documents_test

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/clearance/internal/canonical"
	"github.com/JaimeStill/clearance/internal/docstate"
	"github.com/JaimeStill/clearance/internal/documents"
	"github.com/JaimeStill/clearance/internal/rules"
	"github.com/JaimeStill/clearance/pkg/query"
	"github.com/JaimeStill/clearance/pkg/storage"
)

func ptr[T any](v T) *T { return &v }

func TestMapHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", documents.ErrNotFound, http.StatusNotFound},
		{"shipment not found", documents.ErrShipmentNotFound, http.StatusNotFound},
		{"blob not found", storage.ErrNotFound, http.StatusNotFound},
		{"duplicate", documents.ErrDuplicate, http.StatusConflict},
		{"invalid transition", docstate.ErrInvalidTransition, http.StatusConflict},
		{"file too large", documents.ErrFileTooLarge, http.StatusRequestEntityTooLarge},
		{"invalid file", documents.ErrInvalidFile, http.StatusBadRequest},
		{"not in shipment", documents.ErrNotInShipment, http.StatusBadRequest},
		{"unknown type", canonical.ErrUnknownType, http.StatusBadRequest},
		{"unknown event", docstate.ErrUnknownEvent, http.StatusBadRequest},
		{"system event", docstate.ErrSystemEvent, http.StatusBadRequest},
		{"unknown error", errors.New("something else"), http.StatusInternalServerError},
		{"wrapped not found", fmt.Errorf("find failed: %w", documents.ErrNotFound), http.StatusNotFound},
		{"wrapped transition", fmt.Errorf("fire: %w", docstate.ErrInvalidTransition), http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := documents.MapHTTPStatus(tt.err)
			if got != tt.want {
				t.Errorf("MapHTTPStatus(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestFiltersFromQuery(t *testing.T) {
	shipmentID := uuid.New()

	t.Run("all params present", func(t *testing.T) {
		values := url.Values{
			"shipment_id":        {shipmentID.String()},
			"shipment_reference": {"SHP"},
			"document_type":      {"bill_of_lading"},
			"state":              {"validated"},
			"states":             {"validated,rules_failed"},
			"is_primary":         {"true"},
			"detected_type":      {"packing_list"},
			"filename":           {"bol"},
			"content_type":       {"application/pdf"},
		}

		f := documents.FiltersFromQuery(values)

		if f.ShipmentID == nil || *f.ShipmentID != shipmentID {
			t.Errorf("ShipmentID = %v, want %v", f.ShipmentID, shipmentID)
		}
		if f.ShipmentReference == nil || *f.ShipmentReference != "SHP" {
			t.Errorf("ShipmentReference = %v, want SHP", f.ShipmentReference)
		}
		if f.DocumentType == nil || *f.DocumentType != "bill_of_lading" {
			t.Errorf("DocumentType = %v, want bill_of_lading", f.DocumentType)
		}
		if f.State == nil || *f.State != "validated" {
			t.Errorf("State = %v, want validated", f.State)
		}
		if len(f.States) != 2 || f.States[1] != "rules_failed" {
			t.Errorf("States = %v, want [validated rules_failed]", f.States)
		}
		if f.IsPrimary == nil || !*f.IsPrimary {
			t.Errorf("IsPrimary = %v, want true", f.IsPrimary)
		}
		if f.DetectedType == nil || *f.DetectedType != "packing_list" {
			t.Errorf("DetectedType = %v, want packing_list", f.DetectedType)
		}
		if f.Filename == nil || *f.Filename != "bol" {
			t.Errorf("Filename = %v, want bol", f.Filename)
		}
		if f.ContentType == nil || *f.ContentType != "application/pdf" {
			t.Errorf("ContentType = %v, want application/pdf", f.ContentType)
		}
	})

	t.Run("empty params yield nil fields", func(t *testing.T) {
		f := documents.FiltersFromQuery(url.Values{})

		if f.ShipmentID != nil || f.State != nil || f.IsPrimary != nil || f.Filename != nil {
			t.Errorf("filters = %+v, want all nil", f)
		}
	})

	t.Run("malformed values ignored", func(t *testing.T) {
		values := url.Values{
			"shipment_id": {"not-a-uuid"},
			"is_primary":  {"maybe"},
		}
		f := documents.FiltersFromQuery(values)

		if f.ShipmentID != nil {
			t.Errorf("ShipmentID = %v, want nil", f.ShipmentID)
		}
		if f.IsPrimary != nil {
			t.Errorf("IsPrimary = %v, want nil", f.IsPrimary)
		}
	})
}

func TestFiltersApply(t *testing.T) {
	projection := query.
		NewProjectionMap("public", "document_instances", "d").
		Project("state", "State").
		Project("filename", "Filename").
		Project("is_primary", "IsPrimary").
		Join("public", "shipments", "s", "JOIN", "d.shipment_id = s.id").
		Project("reference", "ShipmentReference")

	t.Run("no filters produces no WHERE clause", func(t *testing.T) {
		b := query.NewBuilder(projection)
		f := documents.Filters{}
		f.Apply(b)
		sql, args := b.Build()

		wantSQL := "SELECT d.state, d.filename, d.is_primary, s.reference FROM public.document_instances d JOIN public.shipments s ON d.shipment_id = s.id"
		if sql != wantSQL {
			t.Errorf("sql = %q, want %q", sql, wantSQL)
		}
		if len(args) != 0 {
			t.Errorf("args = %v, want empty", args)
		}
	})

	t.Run("state equals filter", func(t *testing.T) {
		b := query.NewBuilder(projection)
		f := documents.Filters{State: ptr("validated")}
		f.Apply(b)
		_, args := b.Build()

		if len(args) != 1 {
			t.Fatalf("args length = %d, want 1", len(args))
		}
		if v, ok := args[0].(*string); !ok || *v != "validated" {
			t.Errorf("args[0] = %v, want *validated", args[0])
		}
	})

	t.Run("reference contains filter uses joined column", func(t *testing.T) {
		b := query.NewBuilder(projection)
		f := documents.Filters{ShipmentReference: ptr("SHP")}
		f.Apply(b)
		sql, args := b.Build()

		want := "SELECT d.state, d.filename, d.is_primary, s.reference FROM public.document_instances d JOIN public.shipments s ON d.shipment_id = s.id WHERE s.reference ILIKE $1"
		if sql != want {
			t.Errorf("sql = %q, want %q", sql, want)
		}
		if len(args) != 1 || args[0] != "%SHP%" {
			t.Errorf("args = %v, want [%%SHP%%]", args)
		}
	})

	t.Run("states filter expands to IN list", func(t *testing.T) {
		b := query.NewBuilder(projection)
		f := documents.Filters{States: []string{"validated", " rules_failed", ""}}
		f.Apply(b)
		sql, args := b.Build()

		want := "SELECT d.state, d.filename, d.is_primary, s.reference FROM public.document_instances d JOIN public.shipments s ON d.shipment_id = s.id WHERE d.state IN ($1, $2)"
		if sql != want {
			t.Errorf("sql = %q, want %q", sql, want)
		}
		if len(args) != 2 || args[1] != "rules_failed" {
			t.Errorf("args = %v, want [validated rules_failed]", args)
		}
	})

	t.Run("multiple filters combine with AND", func(t *testing.T) {
		b := query.NewBuilder(projection)
		f := documents.Filters{
			State:     ptr("validated"),
			Filename:  ptr("bol"),
			IsPrimary: ptr(true),
		}
		f.Apply(b)
		_, args := b.Build()

		if len(args) != 3 {
			t.Errorf("args length = %d, want 3", len(args))
		}
	})
}

func TestExtractionEvent(t *testing.T) {
	tests := []struct {
		state   docstate.State
		want    docstate.Event
		wantErr bool
	}{
		{docstate.Uploaded, docstate.ExtractionCompleted, false},
		{docstate.Validated, "", false},
		{docstate.ComplianceFailed, docstate.Revalidate, false},
		{docstate.Draft, "", true},
		{docstate.ComplianceOK, "", true},
		{docstate.Linked, "", true},
		{docstate.Archived, "", true},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			got, err := documents.ExtractionEvent(tt.state)
			if tt.wantErr {
				if !errors.Is(err, docstate.ErrInvalidTransition) {
					t.Errorf("err = %v, want ErrInvalidTransition", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("event = %q, want %q", got, tt.want)
			}
			if got != "" {
				if _, err := docstate.Transition(tt.state, got); err != nil {
					t.Errorf("event %q not valid from %s: %v", got, tt.state, err)
				}
			}
		})
	}
}

func TestCreateCommandValidate(t *testing.T) {
	valid := func() documents.CreateCommand {
		return documents.CreateCommand{
			ShipmentID:   uuid.New(),
			DocumentType: canonical.BillOfLading,
			Data:         []byte("%PDF-1.7"),
			Filename:     "bol.pdf",
		}
	}

	t.Run("defaults actor", func(t *testing.T) {
		cmd := valid()
		if err := cmd.Validate(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cmd.Actor != documents.SystemActor {
			t.Errorf("Actor = %q, want %q", cmd.Actor, documents.SystemActor)
		}
	})

	tests := []struct {
		name   string
		mutate func(*documents.CreateCommand)
		want   error
	}{
		{"missing shipment", func(c *documents.CreateCommand) { c.ShipmentID = uuid.Nil }, documents.ErrInvalidFile},
		{"unknown type", func(c *documents.CreateCommand) { c.DocumentType = "invoice" }, canonical.ErrUnknownType},
		{"empty file", func(c *documents.CreateCommand) { c.Data = nil }, documents.ErrInvalidFile},
		{
			"confidence out of range",
			func(c *documents.CreateCommand) {
				c.Classification = &rules.Classification{DetectedType: canonical.BillOfLading, Confidence: 1.2}
			},
			documents.ErrInvalidFile,
		},
		{
			"unknown detected type",
			func(c *documents.CreateCommand) {
				c.Classification = &rules.Classification{DetectedType: "memo", Confidence: 0.9}
			},
			canonical.ErrUnknownType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := valid()
			tt.mutate(&cmd)
			if err := cmd.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSnapshotViews(t *testing.T) {
	extracted := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	snap := documents.Snapshot{
		Instance: documents.Instance{
			ID:             uuid.New(),
			DocumentType:   canonical.PackingList,
			State:          docstate.Validated,
			Pinned:         true,
			Classification: &rules.Classification{DetectedType: canonical.PackingList, Confidence: 0.8},
			CreatedAt:      extracted.Add(-time.Hour),
			ExtractedAt:    &extracted,
		},
		Canonical: &canonical.Document{Type: canonical.PackingList},
	}

	pi := snap.PresenceInstance()
	if pi.ID != snap.ID || pi.Type != canonical.PackingList || !pi.Pinned {
		t.Errorf("PresenceInstance = %+v", pi)
	}
	if pi.ExtractedAt == nil || !pi.ExtractedAt.Equal(extracted) {
		t.Errorf("ExtractedAt = %v, want %v", pi.ExtractedAt, extracted)
	}
	if !pi.Extracted {
		t.Error("Extracted = false with a canonical record")
	}
	if bare := (documents.Snapshot{Instance: snap.Instance}).PresenceInstance(); bare.Extracted {
		t.Error("Extracted = true without a canonical record")
	}

	rd := snap.RuleDocument()
	if rd.InstanceID != snap.ID || rd.State != docstate.Validated {
		t.Errorf("RuleDocument = %+v", rd)
	}
	if rd.Canonical != snap.Canonical || rd.Classification != snap.Classification {
		t.Error("RuleDocument should carry canonical and classification")
	}
}
