package shipments_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/clearance/internal/canonical"
	"github.com/JaimeStill/clearance/internal/shipments"
	"github.com/JaimeStill/clearance/pkg/pagination"
)

type mockSystem struct {
	listFn   func(ctx context.Context, page pagination.PageRequest, filters shipments.Filters) (*pagination.PageResult[shipments.Shipment], error)
	findFn   func(ctx context.Context, id uuid.UUID) (*shipments.Shipment, error)
	createFn func(ctx context.Context, cmd shipments.CreateCommand) (*shipments.Shipment, error)
	updateFn func(ctx context.Context, id uuid.UUID, cmd shipments.UpdateCommand) (*shipments.Shipment, error)
}

func (m *mockSystem) Handler() *shipments.Handler {
	return newTestHandler(m)
}

func (m *mockSystem) List(ctx context.Context, page pagination.PageRequest, filters shipments.Filters) (*pagination.PageResult[shipments.Shipment], error) {
	return m.listFn(ctx, page, filters)
}

func (m *mockSystem) Find(ctx context.Context, id uuid.UUID) (*shipments.Shipment, error) {
	return m.findFn(ctx, id)
}

func (m *mockSystem) Create(ctx context.Context, cmd shipments.CreateCommand) (*shipments.Shipment, error) {
	return m.createFn(ctx, cmd)
}

func (m *mockSystem) Update(ctx context.Context, id uuid.UUID, cmd shipments.UpdateCommand) (*shipments.Shipment, error) {
	return m.updateFn(ctx, id, cmd)
}

func (m *mockSystem) NextRun(context.Context, uuid.UUID) (int64, error) {
	return 1, nil
}

func newTestHandler(sys shipments.System) *shipments.Handler {
	return shipments.NewHandler(
		sys,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		pagination.Config{DefaultPageSize: 20, MaxPageSize: 100},
	)
}

func setupMux(h *shipments.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	group := h.Routes()
	for _, route := range group.Routes {
		pattern := route.Method + " " + group.Prefix + route.Pattern
		mux.HandleFunc(pattern, route.Handler)
	}
	return mux
}

func sampleShipment() shipments.Shipment {
	return shipments.Shipment{
		ID:               uuid.MustParse("550e8400-e29b-41d4-a716-446655440000"),
		Reference:        "SHP-001",
		HSCodes:          []string{"0506.90"},
		ETD:              canonical.NewDate(2026, time.March, 1),
		ContainerNumbers: []string{"MSKU1234567"},
		CreatedAt:        time.Date(2026, 2, 15, 10, 0, 0, 0, time.UTC),
		UpdatedAt:        time.Date(2026, 2, 15, 10, 0, 0, 0, time.UTC),
	}
}

func TestHandlerFind(t *testing.T) {
	s := sampleShipment()

	tests := []struct {
		name       string
		path       string
		findErr    error
		wantStatus int
	}{
		{"found", "/shipments/" + s.ID.String(), nil, http.StatusOK},
		{"not found", "/shipments/" + s.ID.String(), shipments.ErrNotFound, http.StatusNotFound},
		{"invalid id", "/shipments/not-a-uuid", nil, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sys := &mockSystem{
				findFn: func(context.Context, uuid.UUID) (*shipments.Shipment, error) {
					if tt.findErr != nil {
						return nil, tt.findErr
					}
					return &s, nil
				},
			}

			mux := setupMux(newTestHandler(sys))
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestHandlerCreate(t *testing.T) {
	var got shipments.CreateCommand
	sys := &mockSystem{
		createFn: func(_ context.Context, cmd shipments.CreateCommand) (*shipments.Shipment, error) {
			got = cmd
			s := sampleShipment()
			return &s, nil
		},
	}

	body := `{"reference":"SHP-001","hs_codes":["0506.90"],"etd":"2026-03-01","container_numbers":["MSKU1234567"]}`
	mux := setupMux(newTestHandler(sys))
	req := httptest.NewRequest(http.MethodPost, "/shipments", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusCreated)
	}
	if !got.ETD.Equal(canonical.NewDate(2026, time.March, 1)) {
		t.Errorf("ETD = %s, want 2026-03-01", got.ETD)
	}

	var resp map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["etd"] != "2026-03-01" {
		t.Errorf("etd = %v, want 2026-03-01", resp["etd"])
	}
	if resp["eta"] != nil {
		t.Errorf("eta = %v, want null", resp["eta"])
	}
}

func TestHandlerCreateValidation(t *testing.T) {
	sys := &mockSystem{
		createFn: func(context.Context, shipments.CreateCommand) (*shipments.Shipment, error) {
			return nil, shipments.ErrValidation
		},
	}

	mux := setupMux(newTestHandler(sys))
	req := httptest.NewRequest(http.MethodPost, "/shipments", bytes.NewBufferString(`{"reference":""}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestHandlerListFilters(t *testing.T) {
	var got shipments.Filters
	sys := &mockSystem{
		listFn: func(_ context.Context, _ pagination.PageRequest, f shipments.Filters) (*pagination.PageResult[shipments.Shipment], error) {
			got = f
			r := pagination.NewPageResult([]shipments.Shipment{sampleShipment()}, 1, 1, 20)
			return &r, nil
		},
	}

	mux := setupMux(newTestHandler(sys))
	req := httptest.NewRequest(http.MethodGet, "/shipments?hs_code=0506.90&vessel=maersk", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if got.HSCode == nil || *got.HSCode != "0506.90" {
		t.Errorf("HSCode = %v, want 0506.90", got.HSCode)
	}
	if got.Vessel == nil || *got.Vessel != "maersk" {
		t.Errorf("Vessel = %v, want maersk", got.Vessel)
	}
}
