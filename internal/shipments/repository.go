package shipments

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/JaimeStill/clearance/pkg/pagination"
	"github.com/JaimeStill/clearance/pkg/query"
	"github.com/JaimeStill/clearance/pkg/repository"
)

type repo struct {
	db         *sql.DB
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates a shipment repository implementing the System interface.
func New(db *sql.DB, logger *slog.Logger, pagination pagination.Config) System {
	return &repo{
		db:         db,
		logger:     logger.With("system", "shipments"),
		pagination: pagination,
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger, r.pagination)
}

func (r *repo) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Shipment], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "Reference", "Vessel", "ProductFamily")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count shipments: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	items, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanShipment)
	if err != nil {
		return nil, fmt.Errorf("query shipments: %w", err)
	}

	result := pagination.NewPageResult(items, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Shipment, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	s, err := repository.QueryOne(ctx, r.db, q, args, scanShipment)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &s, nil
}

func (r *repo) Create(ctx context.Context, cmd CreateCommand) (*Shipment, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	args, err := writeArgs(cmd)
	if err != nil {
		return nil, err
	}

	q := `
		INSERT INTO shipments(reference, hs_codes, product_family, etd, eta, container_numbers, vessel, id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		` + returning

	s, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Shipment, error) {
		return repository.QueryOne(ctx, tx, q, append(args, uuid.New()), scanShipment)
	})
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("shipment created", "id", s.ID, "reference", s.Reference)
	return &s, nil
}

func (r *repo) Update(ctx context.Context, id uuid.UUID, cmd UpdateCommand) (*Shipment, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	args, err := writeArgs(CreateCommand(cmd))
	if err != nil {
		return nil, err
	}

	q := `
		UPDATE shipments
		SET reference = $1, hs_codes = $2, product_family = $3, etd = $4, eta = $5,
			container_numbers = $6, vessel = $7, updated_at = NOW()
		WHERE id = $8
		` + returning

	s, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Shipment, error) {
		return repository.QueryOne(ctx, tx, q, append(args, id), scanShipment)
	})
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("shipment updated", "id", s.ID, "reference", s.Reference)
	return &s, nil
}

func (r *repo) NextRun(ctx context.Context, id uuid.UUID) (int64, error) {
	var seq int64
	err := r.db.QueryRowContext(
		ctx,
		"UPDATE shipments SET run_seq = run_seq + 1 WHERE id = $1 RETURNING run_seq",
		id,
	).Scan(&seq)
	if err != nil {
		return 0, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return seq, nil
}

func writeArgs(cmd CreateCommand) ([]any, error) {
	hs, err := encodeList(cmd.HSCodes)
	if err != nil {
		return nil, fmt.Errorf("marshal hs_codes: %w", err)
	}
	containers, err := encodeList(cmd.ContainerNumbers)
	if err != nil {
		return nil, fmt.Errorf("marshal container_numbers: %w", err)
	}

	return []any{
		cmd.Reference,
		hs,
		cmd.ProductFamily,
		dateArg(cmd.ETD),
		dateArg(cmd.ETA),
		containers,
		cmd.Vessel,
	}, nil
}
