// Package shipments implements the shipment metadata provider. A shipment
// carries the HS codes that drive document requirements and the attributes
// cross-document rules compare against.
package shipments

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/clearance/internal/canonical"
	"github.com/JaimeStill/clearance/internal/presence"
	"github.com/JaimeStill/clearance/internal/rules"
)

// Shipment represents a stored shipment. RunSeq counts validation runs.
type Shipment struct {
	ID               uuid.UUID      `json:"id"`
	Reference        string         `json:"reference"`
	HSCodes          []string       `json:"hs_codes"`
	ProductFamily    string         `json:"product_family,omitempty"`
	ETD              canonical.Date `json:"etd"`
	ETA              canonical.Date `json:"eta"`
	ContainerNumbers []string       `json:"container_numbers"`
	Vessel           string         `json:"vessel,omitempty"`
	RunSeq           int64          `json:"run_seq"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// RuleContext returns the attributes rules may reference as shipment.<attr>.
func (s Shipment) RuleContext() rules.Shipment {
	return rules.Shipment{
		ID:               s.ID,
		Reference:        s.Reference,
		HSCodes:          slices.Clone(s.HSCodes),
		ProductFamily:    s.ProductFamily,
		ETD:              s.ETD,
		ETA:              s.ETA,
		ContainerNumbers: slices.Clone(s.ContainerNumbers),
		Vessel:           s.Vessel,
	}
}

// PresenceContext returns the context the presence resolver needs.
func (s Shipment) PresenceContext() presence.Shipment {
	return presence.Shipment{
		ID:      s.ID,
		HSCodes: slices.Clone(s.HSCodes),
	}
}

// CreateCommand carries the data needed to register a shipment.
type CreateCommand struct {
	Reference        string         `json:"reference"`
	HSCodes          []string       `json:"hs_codes"`
	ProductFamily    string         `json:"product_family,omitempty"`
	ETD              canonical.Date `json:"etd"`
	ETA              canonical.Date `json:"eta"`
	ContainerNumbers []string       `json:"container_numbers"`
	Vessel           string         `json:"vessel,omitempty"`
}

// UpdateCommand replaces the mutable shipment attributes.
type UpdateCommand CreateCommand

// Validate normalizes the command and checks required attributes.
func (c *CreateCommand) Validate() error {
	c.Reference = strings.TrimSpace(c.Reference)
	c.ProductFamily = strings.TrimSpace(c.ProductFamily)
	c.Vessel = strings.TrimSpace(c.Vessel)
	c.HSCodes = compact(c.HSCodes, strings.TrimSpace)
	c.ContainerNumbers = compact(c.ContainerNumbers, func(s string) string {
		return strings.ToUpper(strings.Join(strings.Fields(s), ""))
	})

	if c.Reference == "" {
		return fmt.Errorf("%w: reference required", ErrValidation)
	}
	if !c.ETD.IsZero() && !c.ETA.IsZero() && c.ETA.Before(c.ETD) {
		return fmt.Errorf("%w: eta %s precedes etd %s", ErrValidation, c.ETA, c.ETD)
	}
	return nil
}

// Validate normalizes the command and checks required attributes.
func (c *UpdateCommand) Validate() error {
	return (*CreateCommand)(c).Validate()
}

func compact(values []string, normalize func(string) string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = normalize(v); v != "" && !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}
