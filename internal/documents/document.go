// Package documents implements the document instance domain. An instance is
// one uploaded file for a shipment with its declared type, lifecycle state,
// version metadata, classifier verdict, and canonical extractions.
// Instances are never deleted.
package documents

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/clearance/internal/canonical"
	"github.com/JaimeStill/clearance/internal/docstate"
	"github.com/JaimeStill/clearance/internal/presence"
	"github.com/JaimeStill/clearance/internal/rules"
)

// SystemActor is recorded on transitions fired by the service itself.
const SystemActor = "system"

// Instance represents a stored document instance with its blob reference.
type Instance struct {
	ID             uuid.UUID              `json:"id"`
	ShipmentID     uuid.UUID              `json:"shipment_id"`
	ShipmentRef    string                 `json:"shipment_reference"`
	DocumentType   canonical.DocumentType `json:"document_type"`
	State          docstate.State         `json:"state"`
	Version        int                    `json:"version"`
	IsPrimary      bool                   `json:"is_primary"`
	Pinned         bool                   `json:"pinned"`
	SupersedesID   *uuid.UUID             `json:"supersedes_id,omitempty"`
	Classification *rules.Classification  `json:"classification,omitempty"`
	Filename       string                 `json:"filename"`
	ContentType    string                 `json:"content_type"`
	SizeBytes      int64                  `json:"size_bytes"`
	PageCount      *int                   `json:"page_count"`
	StorageKey     string                 `json:"storage_key"`
	CreatedAt      time.Time              `json:"created_at"`
	ExtractedAt    *time.Time             `json:"extracted_at"`
	UpdatedAt      time.Time              `json:"updated_at"`
}

// Snapshot pairs an instance with its latest canonical extraction.
// Canonical is nil until the first extraction.
type Snapshot struct {
	Instance
	Canonical *canonical.Document `json:"canonical,omitempty"`
}

// PresenceInstance returns the view the presence resolver needs.
func (s Snapshot) PresenceInstance() presence.Instance {
	return presence.Instance{
		ID:          s.ID,
		Type:        s.DocumentType,
		State:       s.State,
		CreatedAt:   s.CreatedAt,
		ExtractedAt: s.ExtractedAt,
		Extracted:   s.Canonical != nil,
		Pinned:      s.Pinned,
	}
}

// RuleDocument returns the view the rule evaluator needs.
func (s Snapshot) RuleDocument() rules.Document {
	return rules.Document{
		InstanceID:     s.ID,
		Type:           s.DocumentType,
		State:          s.State,
		Canonical:      s.Canonical,
		Classification: s.Classification,
	}
}

// CreateCommand carries the data needed to upload and register a new
// instance. Data holds the raw file bytes. A Draft instance stays in the
// draft state; otherwise it is submitted immediately. PageCount is optional
// and nil values are stored as NULL.
type CreateCommand struct {
	ShipmentID     uuid.UUID
	DocumentType   canonical.DocumentType
	Draft          bool
	Data           []byte
	Filename       string
	ContentType    string
	PageCount      *int
	Classification *rules.Classification
	Actor          string
}

// Validate checks the command before any blob is written.
func (c *CreateCommand) Validate() error {
	if c.ShipmentID == uuid.Nil {
		return fmt.Errorf("%w: shipment_id required", ErrInvalidFile)
	}
	if !c.DocumentType.Valid() {
		return fmt.Errorf("%w: %q", canonical.ErrUnknownType, c.DocumentType)
	}
	if len(c.Data) == 0 {
		return fmt.Errorf("%w: empty file", ErrInvalidFile)
	}
	if err := validateClassification(c.Classification); err != nil {
		return err
	}
	c.Actor = actorOrSystem(c.Actor)
	return nil
}

// ExtractCommand carries raw extractor output for an instance. A
// Classification, when present, replaces the stored classifier verdict.
type ExtractCommand struct {
	RawFields      map[string]string     `json:"raw_fields"`
	RawConfidences map[string]float64    `json:"raw_confidences,omitempty"`
	RawConfidence  float64               `json:"raw_confidence"`
	ExtractedAt    time.Time             `json:"extracted_at,omitzero"`
	Classification *rules.Classification `json:"classification,omitempty"`
	Actor          string                `json:"actor,omitempty"`
}

// Validate checks the command and defaults the actor.
func (c *ExtractCommand) Validate() error {
	if err := validateClassification(c.Classification); err != nil {
		return err
	}
	c.Actor = actorOrSystem(c.Actor)
	return nil
}

// TransitionCommand fires a named lifecycle event.
type TransitionCommand struct {
	Event string `json:"event"`
	Actor string `json:"actor"`
}

func validateClassification(c *rules.Classification) error {
	if c == nil {
		return nil
	}
	if !c.DetectedType.Valid() {
		return fmt.Errorf("%w: %q", canonical.ErrUnknownType, c.DetectedType)
	}
	if c.Confidence < 0 || c.Confidence > 1 {
		return fmt.Errorf("%w: classification confidence %v outside [0,1]", ErrInvalidFile, c.Confidence)
	}
	return nil
}

func actorOrSystem(actor string) string {
	if a := strings.TrimSpace(actor); a != "" {
		return a
	}
	return SystemActor
}

// ExtractionEvent returns the lifecycle event an extraction fires for an
// instance in state s. Validated instances take a new canonical record
// without a transition and return an empty event.
func ExtractionEvent(s docstate.State) (docstate.Event, error) {
	switch s {
	case docstate.Uploaded:
		return docstate.ExtractionCompleted, nil
	case docstate.Validated:
		return "", nil
	case docstate.ComplianceFailed:
		return docstate.Revalidate, nil
	}
	return "", fmt.Errorf("%w: cannot ingest extraction in state %s", docstate.ErrInvalidTransition, s)
}
