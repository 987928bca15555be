package shipments

import (
	"context"

	"github.com/google/uuid"

	"github.com/JaimeStill/clearance/pkg/pagination"
)

// System defines the public contract for shipment domain operations.
type System interface {
	Handler() *Handler

	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Shipment], error)

	Find(ctx context.Context, id uuid.UUID) (*Shipment, error)
	Create(ctx context.Context, cmd CreateCommand) (*Shipment, error)
	Update(ctx context.Context, id uuid.UUID, cmd UpdateCommand) (*Shipment, error)

	// NextRun atomically increments and returns the shipment's run sequence.
	NextRun(ctx context.Context, id uuid.UUID) (int64, error)
}
