// Package validation runs shipment compliance checks. A run resolves
// presence and primary versions, evaluates rules against the primaries,
// aggregates the results with the shipment's active overrides into a
// decision, stores the report, and moves each evaluated document to its
// compliance outcome.
//
// Runs for one shipment are serialized in-process and stamped with the
// shipment's run sequence. Runs for different shipments proceed
// concurrently.
package validation

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/clearance/internal/canonical"
	"github.com/JaimeStill/clearance/internal/decision"
	"github.com/JaimeStill/clearance/internal/docstate"
	"github.com/JaimeStill/clearance/internal/documents"
	"github.com/JaimeStill/clearance/internal/overrides"
	"github.com/JaimeStill/clearance/internal/presence"
	"github.com/JaimeStill/clearance/internal/rules"
	"github.com/JaimeStill/clearance/internal/shipments"
)

// DefaultBatchConcurrency bounds concurrent runs in ValidateMany.
const DefaultBatchConcurrency = 4

// System defines the public contract for validation operations.
type System interface {
	Handler() *Handler

	// Validate runs the full pipeline for one shipment.
	Validate(ctx context.Context, shipmentID uuid.UUID) (*decision.Report, error)
	// ValidateMany validates several shipments concurrently. A failing
	// shipment is reported in its item and does not stop the others.
	ValidateMany(ctx context.Context, shipmentIDs []uuid.UUID) ([]BatchItem, error)

	// Presence resolves required documents and versions without persisting
	// or evaluating anything.
	Presence(ctx context.Context, shipmentID uuid.UUID) (*presence.Report, error)
	// SelectPrimary pins instanceID as the primary of docType and returns
	// the re-resolved presence report.
	SelectPrimary(ctx context.Context, shipmentID uuid.UUID, docType canonical.DocumentType, instanceID uuid.UUID) (*presence.Report, error)

	LatestReport(ctx context.Context, shipmentID uuid.UUID) (*decision.Report, error)
	Rules() []RuleInfo
}

// BatchItem is one shipment outcome of ValidateMany.
type BatchItem struct {
	ShipmentID uuid.UUID        `json:"shipment_id"`
	Report     *decision.Report `json:"report,omitempty"`
	Error      string           `json:"error,omitempty"`
}

// Shipments is the shipment metadata a run reads.
type Shipments interface {
	Find(ctx context.Context, id uuid.UUID) (*shipments.Shipment, error)
	NextRun(ctx context.Context, id uuid.UUID) (int64, error)
}

// Documents is the document instance access a run needs.
type Documents interface {
	Snapshots(ctx context.Context, shipmentID uuid.UUID) ([]documents.Snapshot, error)
	Assign(ctx context.Context, shipmentID uuid.UUID, assignments []presence.Assignment) error
	Pin(ctx context.Context, shipmentID uuid.UUID, docType canonical.DocumentType, instanceID uuid.UUID) error
	Fire(ctx context.Context, id uuid.UUID, ev docstate.Event, actor string) (*documents.Instance, error)
}

// Overrides provides the current override read model of a shipment.
type Overrides interface {
	View(ctx context.Context, shipmentID uuid.UUID) (overrides.View, error)
}

// Reports persists the latest report per shipment.
type Reports interface {
	// Save stores report unless a report with an equal or newer run
	// sequence is already stored. It reports whether the write happened.
	Save(ctx context.Context, report decision.Report) (bool, error)
	Latest(ctx context.Context, shipmentID uuid.UUID) (*decision.Report, error)
}

// Runtime bundles the collaborators of a validation run.
type Runtime struct {
	Shipments Shipments
	Documents Documents
	Overrides Overrides
	Reports   Reports
	Rules     *rules.RuleSet
	Table     *presence.Table
	Metrics   *Metrics
	Logger    *slog.Logger

	// Now defaults to time.Now.
	Now func() time.Time
}
