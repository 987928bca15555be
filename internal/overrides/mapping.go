package overrides

import (
	"net/url"
	"strconv"

	"github.com/google/uuid"

	"github.com/JaimeStill/clearance/pkg/query"
	"github.com/JaimeStill/clearance/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "overrides", "o").
	Project("id", "ID").
	Project("seq", "Seq").
	Project("shipment_id", "ShipmentID").
	Project("rule_id", "RuleID").
	Project("instance_id", "InstanceID").
	Project("reason", "Reason").
	Project("actor", "Actor").
	Project("active", "Active").
	Project("created_at", "CreatedAt")

var defaultSort = []query.SortField{
	{Field: "CreatedAt", Descending: true},
	{Field: "Seq", Descending: true},
}

const returning = `RETURNING id, seq, shipment_id, rule_id, instance_id, reason, actor, active, created_at`

// Filters contains optional filtering criteria for ledger queries.
// RuleID and Actor use exact matching.
type Filters struct {
	ShipmentID *uuid.UUID `json:"shipment_id,omitempty"`
	InstanceID *uuid.UUID `json:"instance_id,omitempty"`
	RuleID     *string    `json:"rule_id,omitempty"`
	Actor      *string    `json:"actor,omitempty"`
	Active     *bool      `json:"active,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("ShipmentID", f.ShipmentID).
		WhereEquals("InstanceID", f.InstanceID).
		WhereEquals("RuleID", f.RuleID).
		WhereEquals("Actor", f.Actor).
		WhereEquals("Active", f.Active)
}

// FiltersFromQuery extracts filter values from URL query parameters.
// Malformed ids and booleans are ignored.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if s := values.Get("shipment_id"); s != "" {
		if id, err := uuid.Parse(s); err == nil {
			f.ShipmentID = &id
		}
	}

	if s := values.Get("instance_id"); s != "" {
		if id, err := uuid.Parse(s); err == nil {
			f.InstanceID = &id
		}
	}

	if rid := values.Get("rule_id"); rid != "" {
		f.RuleID = &rid
	}

	if a := values.Get("actor"); a != "" {
		f.Actor = &a
	}

	if s := values.Get("active"); s != "" {
		if v, err := strconv.ParseBool(s); err == nil {
			f.Active = &v
		}
	}

	return f
}

func scanOverride(s repository.Scanner) (Override, error) {
	var o Override
	err := s.Scan(
		&o.ID,
		&o.Seq,
		&o.ShipmentID,
		&o.RuleID,
		&o.InstanceID,
		&o.Reason,
		&o.Actor,
		&o.Active,
		&o.CreatedAt,
	)
	return o, err
}
