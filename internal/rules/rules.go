// Package rules evaluates single-document and cross-document compliance rules
// over canonical records and shipment metadata. Evaluation is pure: the same
// RuleSet and Input always produce the same ordered results.
package rules

import (
	"errors"
	"slices"

	"github.com/google/uuid"

	"github.com/JaimeStill/clearance/internal/canonical"
	"github.com/JaimeStill/clearance/internal/docstate"
)

var (
	ErrInvalidRule     = errors.New("invalid rule")
	ErrDuplicateID     = errors.New("duplicate rule id")
	ErrInvalidSeverity = errors.New("invalid severity")
)

// Severity ranks a failed result's effect on the shipment decision.
type Severity string

const (
	SeverityError   Severity = "ERROR"
	SeverityWarning Severity = "WARNING"
	SeverityInfo    Severity = "INFO"
)

// Valid reports whether s is one of the three severities.
func (s Severity) Valid() bool {
	switch s {
	case SeverityError, SeverityWarning, SeverityInfo:
		return true
	default:
		return false
	}
}

// Result is the outcome of one rule against one document, document pair,
// or shipment.
type Result struct {
	RuleID       string                 `json:"rule_id"`
	RuleName     string                 `json:"rule_name"`
	Passed       bool                   `json:"passed"`
	Severity     Severity               `json:"severity"`
	Message      string                 `json:"message"`
	DocumentType canonical.DocumentType `json:"document_type,omitempty"`
	InstanceID   *uuid.UUID             `json:"instance_id,omitempty"`
	Details      map[string]any         `json:"details,omitempty"`
	IsOverridden bool                   `json:"is_overridden"`
}

// Shipment is the metadata rules may reference as "shipment.<attr>".
type Shipment struct {
	ID               uuid.UUID      `json:"id"`
	Reference        string         `json:"reference"`
	HSCodes          []string       `json:"hs_codes"`
	ProductFamily    string         `json:"product_family,omitempty"`
	ETD              canonical.Date `json:"etd"`
	ETA              canonical.Date `json:"eta"`
	ContainerNumbers []string       `json:"container_numbers"`
	Vessel           string         `json:"vessel,omitempty"`
}

var shipmentAttrs = []string{
	"reference",
	"hs_codes",
	"product_family",
	"etd",
	"eta",
	"container_numbers",
	"vessel",
}

// ShipmentAttrs lists the attribute names rules may reference.
func ShipmentAttrs() []string {
	return slices.Clone(shipmentAttrs)
}

// Attr returns a shipment attribute by name. Unset attributes are absent.
func (s Shipment) Attr(name string) (any, bool) {
	switch name {
	case "reference":
		return s.Reference, s.Reference != ""
	case "hs_codes":
		return s.HSCodes, len(s.HSCodes) > 0
	case "product_family":
		return s.ProductFamily, s.ProductFamily != ""
	case "etd":
		return s.ETD, !s.ETD.IsZero()
	case "eta":
		return s.ETA, !s.ETA.IsZero()
	case "container_numbers":
		return s.ContainerNumbers, len(s.ContainerNumbers) > 0
	case "vessel":
		return s.Vessel, s.Vessel != ""
	default:
		return nil, false
	}
}

// Classification is the classifier's verdict for an uploaded file.
type Classification struct {
	DetectedType canonical.DocumentType `json:"detected_type"`
	Confidence   float64                `json:"confidence"`
}

// Document is one primary instance offered to the evaluator.
// Canonical is nil until extraction completes; Classification is nil when no
// classifier ran.
type Document struct {
	InstanceID     uuid.UUID
	Type           canonical.DocumentType
	State          docstate.State
	Canonical      *canonical.Document
	Classification *Classification
}

// Input is everything a run evaluates.
type Input struct {
	Shipment  Shipment
	Documents []Document
}
