package documents

import (
	"context"
	"io"

	"github.com/google/uuid"

	"github.com/JaimeStill/clearance/internal/canonical"
	"github.com/JaimeStill/clearance/internal/docstate"
	"github.com/JaimeStill/clearance/internal/presence"
	"github.com/JaimeStill/clearance/pkg/pagination"
)

// System defines the public contract for document domain operations.
type System interface {
	Handler(maxUploadSize int64) *Handler

	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Instance], error)

	Find(ctx context.Context, id uuid.UUID) (*Instance, error)
	// Create uploads the file and registers a draft instance, submitting it
	// unless cmd.Draft is set.
	Create(ctx context.Context, cmd CreateCommand) (*Instance, error)
	// Open returns the original file. The caller must close the reader.
	Open(ctx context.Context, id uuid.UUID) (io.ReadCloser, *Instance, error)

	// Extract maps raw extractor output into a new canonical record and
	// advances the lifecycle: uploaded instances complete extraction and
	// failed instances are revalidated.
	Extract(ctx context.Context, id uuid.UUID, cmd ExtractCommand) (*Snapshot, error)
	// Fire applies a lifecycle event and appends it to the history.
	Fire(ctx context.Context, id uuid.UUID, ev docstate.Event, actor string) (*Instance, error)
	History(ctx context.Context, id uuid.UUID) (docstate.History, error)

	// Snapshots returns every instance of a shipment with its latest
	// canonical record, ordered by creation.
	Snapshots(ctx context.Context, shipmentID uuid.UUID) ([]Snapshot, error)
	// Assign persists version and primary decisions for a shipment.
	Assign(ctx context.Context, shipmentID uuid.UUID, assignments []presence.Assignment) error
	// Pin records an explicit primary selection for one document type.
	Pin(ctx context.Context, shipmentID uuid.UUID, docType canonical.DocumentType, instanceID uuid.UUID) error
}
