package validation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/JaimeStill/clearance/internal/canonical"
	"github.com/JaimeStill/clearance/internal/decision"
	"github.com/JaimeStill/clearance/internal/docstate"
	"github.com/JaimeStill/clearance/internal/documents"
	"github.com/JaimeStill/clearance/internal/presence"
	"github.com/JaimeStill/clearance/internal/rules"
	"github.com/JaimeStill/clearance/internal/shipments"
)

type engine struct {
	rt          *Runtime
	locks       *locks
	concurrency int
	logger      *slog.Logger
}

// New creates the validation system from rt. Concurrency bounds
// ValidateMany; values below one fall back to DefaultBatchConcurrency.
func New(rt *Runtime, concurrency int) System {
	if concurrency < 1 {
		concurrency = DefaultBatchConcurrency
	}
	if rt.Now == nil {
		rt.Now = time.Now
	}
	return &engine{
		rt:          rt,
		locks:       newLocks(),
		concurrency: concurrency,
		logger:      rt.Logger.With("system", "validation"),
	}
}

func (e *engine) Handler() *Handler {
	return NewHandler(e, e.logger)
}

func (e *engine) Validate(ctx context.Context, shipmentID uuid.UUID) (*decision.Report, error) {
	start := time.Now()

	unlock := e.locks.lock(shipmentID)
	defer unlock()

	sh, err := e.rt.Shipments.Find(ctx, shipmentID)
	if err != nil {
		return nil, err
	}

	runSeq, err := e.rt.Shipments.NextRun(ctx, shipmentID)
	if err != nil {
		return nil, fmt.Errorf("next run: %w", err)
	}

	snaps, pres, err := e.resolve(ctx, sh)
	if err != nil {
		return nil, err
	}

	if err := e.rt.Documents.Assign(ctx, shipmentID, pres.Assignments); err != nil {
		return nil, fmt.Errorf("assign versions: %w", err)
	}

	evaluated := primarySnapshots(snaps, pres)

	results := pres.Results()
	results = append(results, rules.Evaluate(e.rt.Rules, rules.Input{
		Shipment:  sh.RuleContext(),
		Documents: ruleDocuments(evaluated),
	})...)

	view, err := e.rt.Overrides.View(ctx, shipmentID)
	if err != nil {
		return nil, fmt.Errorf("load overrides: %w", err)
	}

	report, err := decision.Aggregate(shipmentID, runSeq, results, view, e.rt.Now())
	if err != nil {
		return nil, fmt.Errorf("aggregate: %w", err)
	}

	stored, err := e.rt.Reports.Save(ctx, report)
	if err != nil {
		return nil, err
	}

	if !stored {
		e.rt.Metrics.IncrementSuperseded()
		e.logger.Warn("report superseded by newer run",
			"shipment_id", shipmentID,
			"run_seq", runSeq,
		)
	} else if err := e.applyOutcomes(ctx, report, evaluated); err != nil {
		return nil, err
	}

	elapsed := time.Since(start)
	e.rt.Metrics.ObserveRun(report, elapsed)

	e.logger.Info("shipment validated",
		"shipment_id", shipmentID,
		"run_seq", runSeq,
		"decision", report.Decision,
		"results", report.Summary.Total,
		"overridden", report.Summary.Overridden,
		"duration", elapsed,
	)
	return &report, nil
}

func (e *engine) ValidateMany(ctx context.Context, shipmentIDs []uuid.UUID) ([]BatchItem, error) {
	if len(shipmentIDs) == 0 {
		return nil, fmt.Errorf("%w: no shipments", ErrInvalidRequest)
	}

	items := make([]BatchItem, len(shipmentIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for i, id := range shipmentIDs {
		items[i].ShipmentID = id
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}

			report, err := e.Validate(gctx, id)
			if err != nil {
				e.logger.Warn("batch validation failed", "shipment_id", id, "error", err)
				items[i].Error = err.Error()
				return nil
			}
			items[i].Report = report
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return items, nil
}

func (e *engine) Presence(ctx context.Context, shipmentID uuid.UUID) (*presence.Report, error) {
	sh, err := e.rt.Shipments.Find(ctx, shipmentID)
	if err != nil {
		return nil, err
	}

	_, pres, err := e.resolve(ctx, sh)
	if err != nil {
		return nil, err
	}
	return &pres, nil
}

func (e *engine) SelectPrimary(
	ctx context.Context,
	shipmentID uuid.UUID,
	docType canonical.DocumentType,
	instanceID uuid.UUID,
) (*presence.Report, error) {
	unlock := e.locks.lock(shipmentID)
	defer unlock()

	sh, err := e.rt.Shipments.Find(ctx, shipmentID)
	if err != nil {
		return nil, err
	}

	if err := e.rt.Documents.Pin(ctx, shipmentID, docType, instanceID); err != nil {
		return nil, err
	}

	_, pres, err := e.resolve(ctx, sh)
	if err != nil {
		return nil, err
	}

	if err := e.rt.Documents.Assign(ctx, shipmentID, pres.Assignments); err != nil {
		return nil, fmt.Errorf("assign versions: %w", err)
	}

	e.logger.Info("primary selected",
		"shipment_id", shipmentID,
		"document_type", docType,
		"instance_id", instanceID,
	)
	return &pres, nil
}

func (e *engine) LatestReport(ctx context.Context, shipmentID uuid.UUID) (*decision.Report, error) {
	return e.rt.Reports.Latest(ctx, shipmentID)
}

func (e *engine) Rules() []RuleInfo {
	return Catalogue(e.rt.Rules)
}

func (e *engine) resolve(ctx context.Context, sh *shipments.Shipment) ([]documents.Snapshot, presence.Report, error) {
	snaps, err := e.rt.Documents.Snapshots(ctx, sh.ID)
	if err != nil {
		return nil, presence.Report{}, fmt.Errorf("load documents: %w", err)
	}

	instances := make([]presence.Instance, len(snaps))
	for i, s := range snaps {
		instances[i] = s.PresenceInstance()
	}

	return snaps, presence.Resolve(e.rt.Table, sh.PresenceContext(), instances), nil
}

// applyOutcomes fires the compliance outcome of each evaluated primary.
// Validated documents pass or fail on their blocking results. Failed
// documents with no remaining blockers are revalidated and passed.
func (e *engine) applyOutcomes(ctx context.Context, report decision.Report, evaluated []documents.Snapshot) error {
	for _, s := range evaluated {
		if s.Canonical == nil {
			continue
		}

		blocked := len(report.Blocking(s.ID)) > 0

		var events []docstate.Event
		switch s.State {
		case docstate.Validated:
			if blocked {
				events = []docstate.Event{docstate.RulesFailed}
			} else {
				events = []docstate.Event{docstate.RulesPassed}
			}
		case docstate.ComplianceFailed:
			if !blocked {
				events = []docstate.Event{docstate.Revalidate, docstate.RulesPassed}
			}
		}

		for _, ev := range events {
			if _, err := e.rt.Documents.Fire(ctx, s.ID, ev, documents.SystemActor); err != nil {
				if errors.Is(err, docstate.ErrInvalidTransition) {
					e.logger.Warn("outcome transition skipped",
						"instance_id", s.ID,
						"event", ev,
						"error", err,
					)
					break
				}
				return fmt.Errorf("apply outcome to %s: %w", s.ID, err)
			}
		}
	}
	return nil
}

func primarySnapshots(snaps []documents.Snapshot, pres presence.Report) []documents.Snapshot {
	primaries := pres.Primaries()
	var out []documents.Snapshot
	for _, s := range snaps {
		if id, ok := primaries[s.DocumentType]; ok && id == s.ID {
			out = append(out, s)
		}
	}
	return out
}

func ruleDocuments(snaps []documents.Snapshot) []rules.Document {
	docs := make([]rules.Document, len(snaps))
	for i, s := range snaps {
		docs[i] = s.RuleDocument()
	}
	return docs
}
