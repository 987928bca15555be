package shipments

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/JaimeStill/clearance/internal/canonical"
	"github.com/JaimeStill/clearance/pkg/query"
	"github.com/JaimeStill/clearance/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "shipments", "s").
	Project("id", "ID").
	Project("reference", "Reference").
	Project("hs_codes", "HSCodes").
	Project("product_family", "ProductFamily").
	Project("etd", "ETD").
	Project("eta", "ETA").
	Project("container_numbers", "ContainerNumbers").
	Project("vessel", "Vessel").
	Project("run_seq", "RunSeq").
	Project("created_at", "CreatedAt").
	Project("updated_at", "UpdatedAt")

var defaultSort = query.SortField{
	Field:      "CreatedAt",
	Descending: true,
}

const returning = `RETURNING id, reference, hs_codes, product_family, etd, eta,
		container_numbers, vessel, run_seq, created_at, updated_at`

// Filters contains optional filtering criteria for shipment queries.
// Reference and Vessel use case-insensitive contains matching. HSCode and
// ContainerNumber match one element of the respective list.
type Filters struct {
	Reference       *string `json:"reference,omitempty"`
	Vessel          *string `json:"vessel,omitempty"`
	ProductFamily   *string `json:"product_family,omitempty"`
	HSCode          *string `json:"hs_code,omitempty"`
	ContainerNumber *string `json:"container_number,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereContains("Reference", f.Reference).
		WhereContains("Vessel", f.Vessel).
		WhereEquals("ProductFamily", f.ProductFamily).
		WhereJSONContains("HSCodes", f.HSCode).
		WhereJSONContains("ContainerNumbers", f.ContainerNumber)
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if r := values.Get("reference"); r != "" {
		f.Reference = &r
	}

	if v := values.Get("vessel"); v != "" {
		f.Vessel = &v
	}

	if pf := values.Get("product_family"); pf != "" {
		f.ProductFamily = &pf
	}

	if hs := values.Get("hs_code"); hs != "" {
		f.HSCode = &hs
	}

	if cn := values.Get("container_number"); cn != "" {
		f.ContainerNumber = &cn
	}

	return f
}

func scanShipment(s repository.Scanner) (Shipment, error) {
	var (
		sh            Shipment
		hsRaw         []byte
		containersRaw []byte
		etd, eta      sql.NullTime
	)

	err := s.Scan(
		&sh.ID,
		&sh.Reference,
		&hsRaw,
		&sh.ProductFamily,
		&etd,
		&eta,
		&containersRaw,
		&sh.Vessel,
		&sh.RunSeq,
		&sh.CreatedAt,
		&sh.UpdatedAt,
	)
	if err != nil {
		return sh, err
	}

	if sh.HSCodes, err = decodeList(hsRaw); err != nil {
		return sh, fmt.Errorf("unmarshal hs_codes: %w", err)
	}
	if sh.ContainerNumbers, err = decodeList(containersRaw); err != nil {
		return sh, fmt.Errorf("unmarshal container_numbers: %w", err)
	}
	if etd.Valid {
		sh.ETD = canonical.DateOf(etd.Time)
	}
	if eta.Valid {
		sh.ETA = canonical.DateOf(eta.Time)
	}

	return sh, nil
}

func decodeList(raw []byte) ([]string, error) {
	out := []string{}
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}

func encodeList(values []string) ([]byte, error) {
	if values == nil {
		values = []string{}
	}
	return json.Marshal(values)
}

func dateArg(d canonical.Date) any {
	if d.IsZero() {
		return nil
	}
	return d.Time()
}
