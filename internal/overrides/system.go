package overrides

import (
	"context"

	"github.com/google/uuid"

	"github.com/JaimeStill/clearance/pkg/pagination"
)

// System defines the public contract for override ledger operations.
type System interface {
	Handler() *Handler

	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Override], error)

	// Submit appends an active record. Reasons shorter than the configured
	// minimum fail with ErrValidation.
	Submit(ctx context.Context, cmd SubmitCommand) (*Override, error)
	// Revoke appends an inactive record for a key whose latest record is
	// active. Returns ErrNotFound otherwise.
	Revoke(ctx context.Context, cmd RevokeCommand) (*Override, error)

	// Log returns every record of a shipment in ledger order.
	Log(ctx context.Context, shipmentID uuid.UUID) ([]Override, error)
	// View projects the shipment ledger into its current read model.
	View(ctx context.Context, shipmentID uuid.UUID) (View, error)
}
