package documents

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/clearance/internal/canonical"
	"github.com/JaimeStill/clearance/internal/docstate"
	"github.com/JaimeStill/clearance/internal/presence"
	"github.com/JaimeStill/clearance/pkg/pagination"
	"github.com/JaimeStill/clearance/pkg/query"
	"github.com/JaimeStill/clearance/pkg/repository"
	"github.com/JaimeStill/clearance/pkg/storage"
)

type repo struct {
	db         *sql.DB
	storage    storage.System
	mapper     *canonical.Mapper
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates a document repository implementing the System interface.
func New(
	db *sql.DB,
	store storage.System,
	logger *slog.Logger,
	pagination pagination.Config,
) System {
	return &repo{
		db:         db,
		storage:    store,
		mapper:     canonical.NewMapper(logger),
		logger:     logger.With("system", "documents"),
		pagination: pagination,
	}
}

func (r *repo) Handler(maxUploadSize int64) *Handler {
	return NewHandler(r, r.logger, r.pagination, maxUploadSize)
}

func (r *repo) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Instance], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "Filename", "ShipmentReference", "DocumentType")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count documents: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	docs, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanInstance)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}

	result := pagination.NewPageResult(docs, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Instance, error) {
	d, err := findInstance(ctx, r.db, id)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &d, nil
}

func (r *repo) Create(ctx context.Context, cmd CreateCommand) (*Instance, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	id := uuid.New()
	key := buildStorageKey(id, sanitizeFilename(cmd.Filename))

	meta := map[string]string{
		"instance_id":   id.String(),
		"shipment_id":   cmd.ShipmentID.String(),
		"document_type": string(cmd.DocumentType),
	}

	if err := r.storage.Upload(ctx, key, bytes.NewReader(cmd.Data), cmd.ContentType, meta); err != nil {
		return nil, fmt.Errorf("upload document blob: %w", err)
	}

	now := time.Now().UTC()
	history := docstate.Start(id, docstate.Initial(true), cmd.Actor, now)
	if !cmd.Draft {
		submit, err := history.Apply(docstate.Submit, cmd.Actor, now)
		if err != nil {
			return nil, err
		}
		history = append(history, submit)
	}

	var detectedType, confidence any
	if cmd.Classification != nil {
		detectedType = string(cmd.Classification.DetectedType)
		confidence = cmd.Classification.Confidence
	}

	q := `
		INSERT INTO document_instances(
			id, shipment_id, document_type, state, version,
			detected_type, classification_confidence,
			filename, content_type, size_bytes, page_count, storage_key, created_at
		)
		VALUES (
			$1, $2, $3, $4,
			(SELECT COALESCE(MAX(version), 0) + 1 FROM document_instances WHERE shipment_id = $2 AND document_type = $3),
			$5, $6, $7, $8, $9, $10, $11, $12
		)`

	insertArgs := []any{
		id,
		cmd.ShipmentID,
		string(cmd.DocumentType),
		string(history.Current()),
		detectedType,
		confidence,
		cmd.Filename,
		cmd.ContentType,
		int64(len(cmd.Data)),
		cmd.PageCount,
		key,
		now,
	}

	d, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Instance, error) {
		if _, err := tx.ExecContext(ctx, q, insertArgs...); err != nil {
			return Instance{}, err
		}
		for _, t := range history {
			if err := insertTransition(ctx, tx, t); err != nil {
				return Instance{}, err
			}
		}
		return findInstance(ctx, tx, id)
	})

	if err != nil {
		if delErr := r.storage.Delete(ctx, key); delErr != nil {
			r.logger.Warn("compensating blob delete failed", "key", key, "error", delErr)
		}
		if repository.IsForeignKeyViolation(err) {
			return nil, ErrShipmentNotFound
		}
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info(
		"document created",
		"id", d.ID,
		"shipment_id", d.ShipmentID,
		"document_type", d.DocumentType,
		"state", d.State,
		"filename", d.Filename,
	)
	return &d, nil
}

func (r *repo) Open(ctx context.Context, id uuid.UUID) (io.ReadCloser, *Instance, error) {
	d, err := r.Find(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	body, err := r.storage.Download(ctx, d.StorageKey)
	if err != nil {
		return nil, nil, err
	}
	return body, d, nil
}

func (r *repo) Extract(ctx context.Context, id uuid.UUID, cmd ExtractCommand) (*Snapshot, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	snap, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Snapshot, error) {
		state, docType, err := lockInstance(ctx, tx, id)
		if err != nil {
			return Snapshot{}, err
		}

		ev, err := ExtractionEvent(state)
		if err != nil {
			return Snapshot{}, err
		}

		doc, err := r.mapper.Map(canonical.Extraction{
			DocumentID:     id,
			Type:           docType,
			RawFields:      cmd.RawFields,
			RawConfidences: cmd.RawConfidences,
			RawConfidence:  cmd.RawConfidence,
			ExtractedAt:    cmd.ExtractedAt,
		})
		if err != nil {
			return Snapshot{}, err
		}

		if err := insertCanonical(ctx, tx, doc); err != nil {
			return Snapshot{}, err
		}

		var detectedType, confidence any
		if cmd.Classification != nil {
			detectedType = string(cmd.Classification.DetectedType)
			confidence = cmd.Classification.Confidence
		}

		if err := repository.ExecExpectOne(
			ctx, tx,
			`UPDATE document_instances
			SET extracted_at = $1,
				detected_type = COALESCE($2, detected_type),
				classification_confidence = COALESCE($3, classification_confidence),
				updated_at = NOW()
			WHERE id = $4`,
			doc.ExtractedAt, detectedType, confidence, id,
		); err != nil {
			return Snapshot{}, err
		}

		if ev != "" {
			if _, err := fire(ctx, tx, id, ev, cmd.Actor); err != nil {
				return Snapshot{}, err
			}
		}

		d, err := findInstance(ctx, tx, id)
		if err != nil {
			return Snapshot{}, err
		}
		return Snapshot{Instance: d, Canonical: doc}, nil
	})

	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info(
		"extraction ingested",
		"id", id,
		"canonical_id", snap.Canonical.ID,
		"document_type", snap.DocumentType,
		"fields", len(snap.Canonical.Fields),
		"missing_required", len(snap.Canonical.MissingRequired()),
		"state", snap.State,
	)
	return &snap, nil
}

func (r *repo) Fire(ctx context.Context, id uuid.UUID, ev docstate.Event, actor string) (*Instance, error) {
	actor = actorOrSystem(actor)

	var t docstate.StateTransition
	d, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Instance, error) {
		var err error
		if t, err = fire(ctx, tx, id, ev, actor); err != nil {
			return Instance{}, err
		}
		return findInstance(ctx, tx, id)
	})

	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info(
		"document transitioned",
		"id", id,
		"event", ev,
		"from", t.From,
		"to", t.To,
		"actor", actor,
	)
	return &d, nil
}

func (r *repo) History(ctx context.Context, id uuid.UUID) (docstate.History, error) {
	if _, err := r.Find(ctx, id); err != nil {
		return nil, err
	}

	q, args := query.
		NewBuilder(transitionProjection).
		WhereEquals("InstanceID", id).
		OrderByFields([]query.SortField{{Field: "Seq"}}).
		Build()

	history, err := repository.QueryMany(ctx, r.db, q, args, scanTransition)
	if err != nil {
		return nil, fmt.Errorf("query transitions: %w", err)
	}
	return history, nil
}

func (r *repo) Snapshots(ctx context.Context, shipmentID uuid.UUID) ([]Snapshot, error) {
	q, args := query.
		NewBuilder(projection).
		WhereEquals("ShipmentID", shipmentID).
		OrderByFields([]query.SortField{{Field: "CreatedAt"}, {Field: "ID"}}).
		Build()

	instances, err := repository.QueryMany(ctx, r.db, q, args, scanInstance)
	if err != nil {
		return nil, fmt.Errorf("query shipment documents: %w", err)
	}

	latestQ := fmt.Sprintf(`
		SELECT DISTINCT ON (c.instance_id) %s
		FROM %s
		JOIN public.document_instances d ON d.id = c.instance_id
		WHERE d.shipment_id = $1
		ORDER BY c.instance_id, c.extracted_at DESC, c.created_at DESC`,
		canonicalProjection.Columns(), canonicalProjection.From(),
	)

	docs, err := repository.QueryMany(ctx, r.db, latestQ, []any{shipmentID}, scanCanonical)
	if err != nil {
		return nil, fmt.Errorf("query canonical documents: %w", err)
	}

	latest := make(map[uuid.UUID]*canonical.Document, len(docs))
	for i := range docs {
		latest[docs[i].DocumentID] = &docs[i]
	}

	snaps := make([]Snapshot, len(instances))
	for i, d := range instances {
		snaps[i] = Snapshot{Instance: d, Canonical: latest[d.ID]}
	}
	return snaps, nil
}

func (r *repo) Assign(ctx context.Context, shipmentID uuid.UUID, assignments []presence.Assignment) error {
	_, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (struct{}, error) {
		if _, err := tx.ExecContext(
			ctx,
			"UPDATE document_instances SET is_primary = false WHERE shipment_id = $1 AND is_primary",
			shipmentID,
		); err != nil {
			return struct{}{}, err
		}

		for _, a := range assignments {
			if err := repository.ExecExpectOne(
				ctx, tx,
				`UPDATE document_instances
				SET version = $1, is_primary = $2, supersedes_id = $3, updated_at = NOW()
				WHERE id = $4 AND shipment_id = $5`,
				a.Version, a.IsPrimary, a.SupersedesID, a.InstanceID, shipmentID,
			); err != nil {
				return struct{}{}, fmt.Errorf("assign %s: %w", a.InstanceID, err)
			}
		}
		return struct{}{}, nil
	})

	if err != nil {
		return repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("versions assigned", "shipment_id", shipmentID, "instances", len(assignments))
	return nil
}

func (r *repo) Pin(ctx context.Context, shipmentID uuid.UUID, docType canonical.DocumentType, instanceID uuid.UUID) error {
	_, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (struct{}, error) {
		var (
			owner uuid.UUID
			t     canonical.DocumentType
			state docstate.State
		)
		err := tx.QueryRowContext(
			ctx,
			"SELECT shipment_id, document_type, state FROM document_instances WHERE id = $1 FOR UPDATE",
			instanceID,
		).Scan(&owner, &t, &state)
		if err != nil {
			return struct{}{}, err
		}

		switch {
		case owner != shipmentID:
			return struct{}{}, ErrNotInShipment
		case t != docType:
			return struct{}{}, fmt.Errorf("%w: instance is %s, not %s", ErrNotInShipment, t, docType)
		case state == docstate.Archived:
			return struct{}{}, fmt.Errorf("%w: archived instance cannot be primary", docstate.ErrInvalidTransition)
		}

		if _, err := tx.ExecContext(
			ctx,
			"UPDATE document_instances SET pinned = false WHERE shipment_id = $1 AND document_type = $2 AND pinned",
			shipmentID, string(docType),
		); err != nil {
			return struct{}{}, err
		}

		if err := repository.ExecExpectOne(
			ctx, tx,
			"UPDATE document_instances SET pinned = true, updated_at = NOW() WHERE id = $1",
			instanceID,
		); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, nil
	})

	if err != nil {
		return repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("primary pinned", "shipment_id", shipmentID, "document_type", docType, "instance_id", instanceID)
	return nil
}

func findInstance(ctx context.Context, q repository.Querier, id uuid.UUID) (Instance, error) {
	stmt, args := query.NewBuilder(projection).BuildSingle("ID", id)
	return repository.QueryOne(ctx, q, stmt, args, scanInstance)
}

func lockInstance(ctx context.Context, tx *sql.Tx, id uuid.UUID) (docstate.State, canonical.DocumentType, error) {
	var (
		state   docstate.State
		docType canonical.DocumentType
	)
	err := tx.QueryRowContext(
		ctx,
		"SELECT state, document_type FROM document_instances WHERE id = $1 FOR UPDATE",
		id,
	).Scan(&state, &docType)
	return state, docType, err
}

// fire applies ev to the locked instance and appends the transition.
func fire(ctx context.Context, tx *sql.Tx, id uuid.UUID, ev docstate.Event, actor string) (docstate.StateTransition, error) {
	state, _, err := lockInstance(ctx, tx, id)
	if err != nil {
		return docstate.StateTransition{}, err
	}

	var seq int
	if err := tx.QueryRowContext(
		ctx,
		"SELECT COALESCE(MAX(seq), 0) FROM state_transitions WHERE instance_id = $1",
		id,
	).Scan(&seq); err != nil {
		return docstate.StateTransition{}, err
	}

	t, err := docstate.Next(id, state, seq, ev, actor, time.Now().UTC())
	if err != nil {
		return docstate.StateTransition{}, err
	}

	if err := insertTransition(ctx, tx, t); err != nil {
		return docstate.StateTransition{}, err
	}

	if err := repository.ExecExpectOne(
		ctx, tx,
		"UPDATE document_instances SET state = $1, updated_at = NOW() WHERE id = $2",
		string(t.To), id,
	); err != nil {
		return docstate.StateTransition{}, err
	}
	return t, nil
}

func insertTransition(ctx context.Context, tx *sql.Tx, t docstate.StateTransition) error {
	var from any
	if t.From != "" {
		from = string(t.From)
	}

	_, err := tx.ExecContext(
		ctx,
		`INSERT INTO state_transitions(id, instance_id, seq, from_state, to_state, event, actor, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		t.ID, t.InstanceID, t.Seq, from, string(t.To), string(t.Event), t.Actor, t.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("insert transition: %w", err)
	}
	return nil
}

func insertCanonical(ctx context.Context, tx *sql.Tx, doc *canonical.Document) error {
	fields, err := json.Marshal(doc.Fields)
	if err != nil {
		return fmt.Errorf("marshal canonical fields: %w", err)
	}

	_, err = tx.ExecContext(
		ctx,
		`INSERT INTO canonical_documents(id, instance_id, document_type, fields, raw_confidence, extracted_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		doc.ID, doc.DocumentID, string(doc.Type), fields, doc.RawConfidence, doc.ExtractedAt,
	)
	if err != nil {
		return fmt.Errorf("insert canonical document: %w", err)
	}
	return nil
}

func buildStorageKey(id uuid.UUID, filename string) string {
	return fmt.Sprintf("documents/%s/%s", id, filename)
}

func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	if name == "." || name == "" || name == "/" {
		name = "document"
	}
	return url.PathEscape(name)
}
