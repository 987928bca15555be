package canonical_test

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/clearance/internal/canonical"
)

func newMapper() *canonical.Mapper {
	return canonical.NewMapper(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestMapUnknownType(t *testing.T) {
	_, err := newMapper().Map(canonical.Extraction{Type: "manifest"})
	if !errors.Is(err, canonical.ErrUnknownType) {
		t.Errorf("Map() error = %v, want ErrUnknownType", err)
	}
}

func TestMapBillOfLading(t *testing.T) {
	docID := uuid.New()
	extracted := time.Date(2026, 3, 4, 15, 30, 0, 0, time.UTC)

	doc, err := newMapper().Map(canonical.Extraction{
		DocumentID: docID,
		Type:       canonical.BillOfLading,
		RawFields: map[string]string{
			"bol_number":                    "  MSCU 123456 ",
			"shipper":                       "Acme Exports",
			"consignee":                     "EU Imports BV",
			"shipped_on_board_date":         "04/03/2026",
			"gross_weight_kg":               "20,000 kg",
			"containers[1].number":          "MSCU7654321",
			"containers[0].number":          "MSCU1234567",
			"containers[0].seal":            "SL-1",
			"containers[0].gross_weight_kg": "10,000",
			"cargo":                         "Bone meal",
			"favourite_colour":              "blue",
		},
		RawConfidences: map[string]float64{
			"bol_number":           1.4,
			"containers[0].number": 0.9,
			"containers[1].number": 0.6,
			"containers[0].seal":   0.8,
		},
		RawConfidence: 0.85,
		ExtractedAt:   extracted,
	})
	if err != nil {
		t.Fatalf("Map() error = %v", err)
	}

	if doc.DocumentID != docID {
		t.Errorf("DocumentID = %v, want %v", doc.DocumentID, docID)
	}
	if doc.ID == uuid.Nil {
		t.Error("ID is nil, want generated")
	}
	if doc.Has("favourite_colour") {
		t.Error("unknown key retained, want dropped")
	}

	bol, _ := doc.Get("bol_number")
	if bol.Value != "MSCU 123456" {
		t.Errorf("bol_number = %q, want %q", bol.Value, "MSCU 123456")
	}
	if bol.Confidence != 1 {
		t.Errorf("bol_number confidence = %v, want 1 (clamped)", bol.Confidence)
	}

	weight, _ := doc.Get("gross_weight_kg")
	if weight.Value != 20000.0 {
		t.Errorf("gross_weight_kg = %v, want 20000", weight.Value)
	}
	if weight.Confidence != 0.85 {
		t.Errorf("gross_weight_kg confidence = %v, want document confidence 0.85", weight.Confidence)
	}

	shipped, _ := doc.Get("shipped_on_board_date")
	if d, ok := shipped.Value.(canonical.Date); !ok || !d.Equal(canonical.NewDate(2026, time.March, 4)) {
		t.Errorf("shipped_on_board_date = %v, want 2026-03-04", shipped.Value)
	}

	containers, ok := doc.Get("containers")
	if !ok {
		t.Fatal("containers absent")
	}
	recs := containers.Value.([]canonical.Record)
	if len(recs) != 2 {
		t.Fatalf("len(containers) = %d, want 2", len(recs))
	}
	if recs[0]["number"] != "MSCU1234567" || recs[1]["number"] != "MSCU7654321" {
		t.Errorf("container order = %v, %v", recs[0]["number"], recs[1]["number"])
	}
	if recs[0]["gross_weight_kg"] != 10000.0 {
		t.Errorf("containers[0].gross_weight_kg = %v, want 10000", recs[0]["gross_weight_kg"])
	}
	if containers.Confidence != 0.6 {
		t.Errorf("containers confidence = %v, want min 0.6", containers.Confidence)
	}

	cargo, _ := doc.Get("cargo")
	if got := cargo.Value.([]canonical.Record); len(got) != 1 || got[0]["description"] != "Bone meal" {
		t.Errorf("cargo = %v, want one record keyed by description", got)
	}

	if doc.ExtractedAt != extracted {
		t.Errorf("ExtractedAt = %v, want %v", doc.ExtractedAt, extracted)
	}
}

func TestMapMissingRequiredIsNotError(t *testing.T) {
	doc, err := newMapper().Map(canonical.Extraction{
		Type:      canonical.VeterinaryHealthCertificate,
		RawFields: map[string]string{"authority": "MAPA"},
	})
	if err != nil {
		t.Fatalf("Map() error = %v", err)
	}

	got := doc.MissingRequired()
	want := []string{"issue_date", "signer_name"}
	if len(got) != len(want) {
		t.Fatalf("MissingRequired() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("MissingRequired()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestMapUnparseableValuesAreAbsent(t *testing.T) {
	doc, err := newMapper().Map(canonical.Extraction{
		Type: canonical.PackingList,
		RawFields: map[string]string{
			"gross_weight_kg": "about twenty tonnes",
			"date":            "next tuesday",
			"packages":        "1 200",
		},
	})
	if err != nil {
		t.Fatalf("Map() error = %v", err)
	}

	if doc.Has("gross_weight_kg") {
		t.Error("gross_weight_kg present, want absent")
	}
	if doc.Has("date") {
		t.Error("date present, want absent")
	}
	pkgs, _ := doc.Get("packages")
	if pkgs.Value != 1200.0 {
		t.Errorf("packages = %v, want 1200", pkgs.Value)
	}
}

func TestMapListFields(t *testing.T) {
	doc, err := newMapper().Map(canonical.Extraction{
		Type: canonical.CommercialInvoice,
		RawFields: map[string]string{
			"hs_codes[1]": "0507.90",
			"hs_codes[0]": "0506.10",
		},
		RawConfidences: map[string]float64{
			"hs_codes[0]": 0.7,
			"hs_codes[1]": -2,
		},
	})
	if err != nil {
		t.Fatalf("Map() error = %v", err)
	}

	f, _ := doc.Get("hs_codes")
	codes := f.Value.([]string)
	if len(codes) != 2 || codes[0] != "0506.10" || codes[1] != "0507.90" {
		t.Errorf("hs_codes = %v, want [0506.10 0507.90]", codes)
	}
	if f.Confidence != 0 {
		t.Errorf("hs_codes confidence = %v, want 0", f.Confidence)
	}

	flat, _ := newMapper().Map(canonical.Extraction{
		Type:      canonical.PackingList,
		RawFields: map[string]string{"container_numbers": "MSCU1234567; MSCU7654321"},
	})
	got, _ := flat.Get("container_numbers")
	if l := got.Value.([]string); len(l) != 2 {
		t.Errorf("container_numbers = %v, want 2 entries", l)
	}
}

func TestMapDropsMisshapenKeys(t *testing.T) {
	doc, err := newMapper().Map(canonical.Extraction{
		Type: canonical.BillOfLading,
		RawFields: map[string]string{
			"shipper[0]":           "Acme",
			"containers[0].colour": "red",
			"containers[*].number": "X",
			"consignee.name":       "Bob",
		},
	})
	if err != nil {
		t.Fatalf("Map() error = %v", err)
	}
	if len(doc.Fields) != 0 {
		t.Errorf("Fields = %v, want none", doc.Fields)
	}
}

func TestMapOtherHasNoFields(t *testing.T) {
	doc, err := newMapper().Map(canonical.Extraction{
		Type:      canonical.Other,
		RawFields: map[string]string{"anything": "value"},
	})
	if err != nil {
		t.Fatalf("Map() error = %v", err)
	}
	if len(doc.Fields) != 0 {
		t.Errorf("Fields = %v, want none", doc.Fields)
	}
}
