// Package overrides implements the shipment override ledger. Overrides are
// append-only records that cure failed rule results; the latest record per
// (shipment, rule, instance) key decides whether an override is active.
package overrides

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// DefaultMinReason is the minimum reason length in characters.
const DefaultMinReason = 5

// Override is one ledger record. A nil InstanceID scopes the record to every
// result of RuleID within the shipment.
type Override struct {
	ID         uuid.UUID  `json:"id"`
	Seq        int64      `json:"seq"`
	ShipmentID uuid.UUID  `json:"shipment_id"`
	RuleID     string     `json:"rule_id"`
	InstanceID *uuid.UUID `json:"instance_id,omitempty"`
	Reason     string     `json:"reason"`
	Actor      string     `json:"actor"`
	Active     bool       `json:"active"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Key returns the ledger key of the record within its shipment.
func (o Override) Key() Key {
	return NewKey(o.RuleID, o.InstanceID)
}

// SubmitCommand requests a new active override.
type SubmitCommand struct {
	ShipmentID uuid.UUID  `json:"shipment_id"`
	RuleID     string     `json:"rule_id"`
	InstanceID *uuid.UUID `json:"instance_id,omitempty"`
	Reason     string     `json:"reason"`
	Actor      string     `json:"actor"`
}

// Validate normalizes the command and checks the reason length in runes.
func (c *SubmitCommand) Validate(minReason int) error {
	c.RuleID = strings.TrimSpace(c.RuleID)
	c.Reason = strings.TrimSpace(c.Reason)
	c.Actor = strings.TrimSpace(c.Actor)

	if c.ShipmentID == uuid.Nil {
		return fmt.Errorf("%w: shipment_id required", ErrValidation)
	}
	if c.RuleID == "" {
		return fmt.Errorf("%w: rule_id required", ErrValidation)
	}
	if c.Actor == "" {
		return fmt.Errorf("%w: actor required", ErrValidation)
	}
	if n := utf8.RuneCountInString(c.Reason); n < minReason {
		return fmt.Errorf("%w: reason must be at least %d characters, got %d", ErrValidation, minReason, n)
	}
	return nil
}

// RevokeCommand deactivates the override stored under a key.
// Reason is optional.
type RevokeCommand struct {
	ShipmentID uuid.UUID  `json:"shipment_id"`
	RuleID     string     `json:"rule_id"`
	InstanceID *uuid.UUID `json:"instance_id,omitempty"`
	Reason     string     `json:"reason,omitempty"`
	Actor      string     `json:"actor"`
}

// Validate normalizes the command and checks required fields.
func (c *RevokeCommand) Validate() error {
	c.RuleID = strings.TrimSpace(c.RuleID)
	c.Reason = strings.TrimSpace(c.Reason)
	c.Actor = strings.TrimSpace(c.Actor)

	if c.ShipmentID == uuid.Nil {
		return fmt.Errorf("%w: shipment_id required", ErrValidation)
	}
	if c.RuleID == "" {
		return fmt.Errorf("%w: rule_id required", ErrValidation)
	}
	if c.Actor == "" {
		return fmt.Errorf("%w: actor required", ErrValidation)
	}
	return nil
}
