package overrides_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/JaimeStill/clearance/internal/overrides"
)

func TestSubmitCommandValidate(t *testing.T) {
	tests := []struct {
		name    string
		cmd     overrides.SubmitCommand
		wantErr bool
	}{
		{
			name: "valid",
			cmd:  overrides.SubmitCommand{ShipmentID: shipmentID, RuleID: "r1", Reason: "broker approved", Actor: "ana"},
		},
		{
			name: "reason exactly five",
			cmd:  overrides.SubmitCommand{ShipmentID: shipmentID, RuleID: "r1", Reason: "fixed", Actor: "ana"},
		},
		{
			name:    "reason too short",
			cmd:     overrides.SubmitCommand{ShipmentID: shipmentID, RuleID: "r1", Reason: "ok", Actor: "ana"},
			wantErr: true,
		},
		{
			name:    "reason padded with spaces",
			cmd:     overrides.SubmitCommand{ShipmentID: shipmentID, RuleID: "r1", Reason: "  ok   ", Actor: "ana"},
			wantErr: true,
		},
		{
			name: "reason counted in characters",
			cmd:  overrides.SubmitCommand{ShipmentID: shipmentID, RuleID: "r1", Reason: "façade", Actor: "ana"},
		},
		{
			name:    "missing rule",
			cmd:     overrides.SubmitCommand{ShipmentID: shipmentID, Reason: "broker approved", Actor: "ana"},
			wantErr: true,
		},
		{
			name:    "missing actor",
			cmd:     overrides.SubmitCommand{ShipmentID: shipmentID, RuleID: "r1", Reason: "broker approved"},
			wantErr: true,
		},
		{
			name:    "missing shipment",
			cmd:     overrides.SubmitCommand{RuleID: "r1", Reason: "broker approved", Actor: "ana"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cmd.Validate(overrides.DefaultMinReason)
			if tt.wantErr {
				if !errors.Is(err, overrides.ErrValidation) {
					t.Errorf("err = %v, want ErrValidation", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestSubmitCommandValidateTrims(t *testing.T) {
	cmd := overrides.SubmitCommand{
		ShipmentID: shipmentID,
		RuleID:     "  r1 ",
		Reason:     "  broker approved  ",
		Actor:      " ana ",
	}
	if err := cmd.Validate(overrides.DefaultMinReason); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cmd.RuleID != "r1" || cmd.Actor != "ana" || strings.HasPrefix(cmd.Reason, " ") {
		t.Errorf("command not normalized: %+v", cmd)
	}
}

func TestRevokeCommandValidate(t *testing.T) {
	valid := overrides.RevokeCommand{ShipmentID: shipmentID, RuleID: "r1", Actor: "ana"}
	if err := valid.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	missing := overrides.RevokeCommand{ShipmentID: uuid.Nil, RuleID: "r1", Actor: "ana"}
	if err := missing.Validate(); !errors.Is(err, overrides.ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}
}

func TestMapHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{overrides.ErrNotFound, 404},
		{overrides.ErrShipmentNotFound, 404},
		{overrides.ErrDuplicate, 409},
		{overrides.ErrValidation, 400},
		{errors.New("boom"), 500},
	}

	for _, tt := range tests {
		if got := overrides.MapHTTPStatus(tt.err); got != tt.want {
			t.Errorf("MapHTTPStatus(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
