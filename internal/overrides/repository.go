package overrides

import (
	"context"
	"database/sql"
	"errors"
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
	minReason  int
}

// New creates an override ledger implementing the System interface.
// minReason below 1 falls back to DefaultMinReason.
func New(
	db *sql.DB,
	logger *slog.Logger,
	pagination pagination.Config,
	minReason int,
) System {
	if minReason < 1 {
		minReason = DefaultMinReason
	}
	return &repo{
		db:         db,
		logger:     logger.With("system", "overrides"),
		pagination: pagination,
		minReason:  minReason,
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger, r.pagination)
}

func (r *repo) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Override], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort...).
		WhereSearch(page.Search, "RuleID", "Actor", "Reason")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count overrides: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	items, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanOverride)
	if err != nil {
		return nil, fmt.Errorf("query overrides: %w", err)
	}

	result := pagination.NewPageResult(items, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Submit(ctx context.Context, cmd SubmitCommand) (*Override, error) {
	if err := cmd.Validate(r.minReason); err != nil {
		return nil, err
	}

	o, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Override, error) {
		if err := lockShipment(ctx, tx, cmd.ShipmentID); err != nil {
			return Override{}, err
		}
		return insert(ctx, tx, cmd.ShipmentID, cmd.RuleID, cmd.InstanceID, cmd.Reason, cmd.Actor, true)
	})
	if err != nil {
		return nil, mapWriteError(err)
	}

	r.logger.Info(
		"override submitted",
		"shipment_id", o.ShipmentID,
		"rule_id", o.RuleID,
		"instance_id", o.InstanceID,
		"actor", o.Actor,
	)
	return &o, nil
}

func (r *repo) Revoke(ctx context.Context, cmd RevokeCommand) (*Override, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	o, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Override, error) {
		if err := lockShipment(ctx, tx, cmd.ShipmentID); err != nil {
			return Override{}, err
		}

		q := fmt.Sprintf(`
			SELECT %s FROM %s
			WHERE o.shipment_id = $1 AND o.rule_id = $2 AND o.instance_id IS NOT DISTINCT FROM $3
			ORDER BY o.created_at DESC, o.seq DESC
			LIMIT 1`,
			projection.Columns(), projection.From(),
		)

		latest, err := repository.QueryOne(
			ctx, tx, q,
			[]any{cmd.ShipmentID, cmd.RuleID, cmd.InstanceID},
			scanOverride,
		)
		if err != nil {
			return Override{}, repository.MapError(err, ErrNotFound, ErrDuplicate)
		}
		if !latest.Active {
			return Override{}, fmt.Errorf("%w: already revoked", ErrNotFound)
		}

		return insert(ctx, tx, cmd.ShipmentID, cmd.RuleID, cmd.InstanceID, cmd.Reason, cmd.Actor, false)
	})
	if err != nil {
		return nil, mapWriteError(err)
	}

	r.logger.Info(
		"override revoked",
		"shipment_id", o.ShipmentID,
		"rule_id", o.RuleID,
		"instance_id", o.InstanceID,
		"actor", o.Actor,
	)
	return &o, nil
}

func (r *repo) Log(ctx context.Context, shipmentID uuid.UUID) ([]Override, error) {
	q, args := query.
		NewBuilder(projection).
		WhereEquals("ShipmentID", shipmentID).
		OrderByFields([]query.SortField{{Field: "CreatedAt"}, {Field: "Seq"}}).
		Build()

	log, err := repository.QueryMany(ctx, r.db, q, args, scanOverride)
	if err != nil {
		return nil, fmt.Errorf("query override log: %w", err)
	}
	return log, nil
}

func (r *repo) View(ctx context.Context, shipmentID uuid.UUID) (View, error) {
	log, err := r.Log(ctx, shipmentID)
	if err != nil {
		return View{}, err
	}
	return Project(log), nil
}

func lockShipment(ctx context.Context, tx *sql.Tx, shipmentID uuid.UUID) error {
	var id uuid.UUID
	err := tx.QueryRowContext(ctx, "SELECT id FROM shipments WHERE id = $1 FOR UPDATE", shipmentID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrShipmentNotFound
	}
	return err
}

func insert(
	ctx context.Context,
	tx *sql.Tx,
	shipmentID uuid.UUID,
	ruleID string,
	instanceID *uuid.UUID,
	reason, actor string,
	active bool,
) (Override, error) {
	q := `
		INSERT INTO overrides(id, shipment_id, rule_id, instance_id, reason, actor, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		` + returning

	args := []any{uuid.New(), shipmentID, ruleID, instanceID, reason, actor, active}
	return repository.QueryOne(ctx, tx, q, args, scanOverride)
}

func mapWriteError(err error) error {
	if repository.IsForeignKeyViolation(err) {
		return fmt.Errorf("%w: unknown document instance", ErrValidation)
	}
	return repository.MapError(err, ErrNotFound, ErrDuplicate)
}
