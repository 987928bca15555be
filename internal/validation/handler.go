package validation

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/JaimeStill/clearance/internal/canonical"
	"github.com/JaimeStill/clearance/pkg/handlers"
	"github.com/JaimeStill/clearance/pkg/routes"
)

// MaxBatchSize caps the shipments accepted by one batch request.
const MaxBatchSize = 100

// Handler provides HTTP endpoints for validation runs, presence, and the rule catalogue.
type Handler struct {
	sys    System
	logger *slog.Logger
}

// PrimaryRequest selects the primary instance of a document type.
type PrimaryRequest struct {
	DocumentType string    `json:"document_type"`
	InstanceID   uuid.UUID `json:"instance_id"`
}

// BatchRequest lists the shipments to validate.
type BatchRequest struct {
	ShipmentIDs []uuid.UUID `json:"shipment_ids"`
}

// NewHandler creates a Handler with the given system and logger.
func NewHandler(sys System, logger *slog.Logger) *Handler {
	return &Handler{
		sys:    sys,
		logger: logger.With("handler", "validation"),
	}
}

// Routes returns the route groups for validation endpoints. Shipment-scoped
// operations live under /shipments/{id}.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Children: []routes.Group{
			{
				Prefix: "/shipments/{id}",
				Routes: []routes.Route{
					{Method: "POST", Pattern: "/validate", Handler: h.Validate},
					{Method: "GET", Pattern: "/report", Handler: h.Report},
					{Method: "GET", Pattern: "/presence", Handler: h.Presence},
					{Method: "POST", Pattern: "/primary", Handler: h.SelectPrimary},
				},
			},
			{
				Prefix: "/validation",
				Routes: []routes.Route{
					{Method: "POST", Pattern: "/batch", Handler: h.Batch},
				},
			},
			{
				Prefix: "/rules",
				Routes: []routes.Route{
					{Method: "GET", Pattern: "", Handler: h.Rules},
				},
			},
		},
	}
}

// Validate runs the validation pipeline for a shipment and returns its report.
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	report, err := h.sys.Validate(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, report)
}

// Report returns the latest stored report of a shipment.
func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	report, err := h.sys.LatestReport(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, report)
}

// Presence returns the presence report of a shipment.
func (h *Handler) Presence(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	report, err := h.sys.Presence(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, report)
}

// SelectPrimary pins the primary version of a document type from a JSON
// PrimaryRequest body.
func (h *Handler) SelectPrimary(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var req PrimaryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("%w: %v", ErrInvalidRequest, err))
		return
	}

	docType, err := canonical.ParseDocumentType(req.DocumentType)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	if req.InstanceID == uuid.Nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("%w: instance_id required", ErrInvalidRequest))
		return
	}

	report, err := h.sys.SelectPrimary(r.Context(), id, docType, req.InstanceID)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, report)
}

// Batch validates the shipments listed in a JSON BatchRequest body.
func (h *Handler) Batch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("%w: %v", ErrInvalidRequest, err))
		return
	}

	if len(req.ShipmentIDs) > MaxBatchSize {
		handlers.RespondError(
			w, h.logger,
			http.StatusBadRequest,
			fmt.Errorf("%w: at most %d shipments per batch", ErrInvalidRequest, MaxBatchSize),
		)
		return
	}

	items, err := h.sys.ValidateMany(r.Context(), req.ShipmentIDs)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, items)
}

// Rules returns the active rule catalogue.
func (h *Handler) Rules(w http.ResponseWriter, r *http.Request) {
	handlers.RespondJSON(w, http.StatusOK, h.sys.Rules())
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("%w: shipment id", ErrInvalidRequest))
		return uuid.Nil, false
	}
	return id, true
}
