// Package decision aggregates rule results and active overrides into a
// shipment compliance report. Aggregation is pure given its inputs and the
// supplied clock value.
package decision

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/clearance/internal/rules"
)

// ErrInvalidResult indicates a structurally malformed rule result.
var ErrInvalidResult = errors.New("invalid rule result")

// Decision is the shipment-level outcome.
type Decision string

const (
	Approve Decision = "APPROVE"
	Hold    Decision = "HOLD"
	Reject  Decision = "REJECT"
)

// Matcher reports whether an active override covers a rule result.
type Matcher interface {
	Match(ruleID string, instanceID *uuid.UUID) bool
}

// Summary counts results. Failed counts exclude overridden results, and
// Overridden counts only failures; an overridden pass counts as passed.
type Summary struct {
	Total         int `json:"total"`
	Passed        int `json:"passed"`
	FailedError   int `json:"failed_error"`
	FailedWarning int `json:"failed_warning"`
	FailedInfo    int `json:"failed_info"`
	Overridden    int `json:"overridden"`
}

// Report is the compliance outcome of one validation run.
type Report struct {
	ShipmentID  uuid.UUID      `json:"shipment_id"`
	RunSeq      int64          `json:"run_seq"`
	Decision    Decision       `json:"decision"`
	Results     []rules.Result `json:"results"`
	Summary     Summary        `json:"summary"`
	GeneratedAt time.Time      `json:"generated_at"`
}

// Aggregate marks every result covered by an active override, counts
// uncured failures by severity, and derives the decision with strict precedence: any
// uncured ERROR rejects, else any uncured WARNING holds, else approve.
// overrides may be nil.
func Aggregate(shipmentID uuid.UUID, runSeq int64, results []rules.Result, overrides Matcher, now time.Time) (Report, error) {
	out := slices.Clone(results)
	if out == nil {
		out = []rules.Result{}
	}

	var sum Summary
	for i := range out {
		r := &out[i]
		if r.RuleID == "" {
			return Report{}, fmt.Errorf("%w: result %d has empty rule id", ErrInvalidResult, i)
		}
		if !r.Severity.Valid() {
			return Report{}, fmt.Errorf("%w: result %d (%s) has severity %q", ErrInvalidResult, i, r.RuleID, r.Severity)
		}

		sum.Total++
		r.IsOverridden = overrides != nil && overrides.Match(r.RuleID, r.InstanceID)

		if r.Passed {
			sum.Passed++
			continue
		}
		if r.IsOverridden {
			sum.Overridden++
			continue
		}

		switch r.Severity {
		case rules.SeverityError:
			sum.FailedError++
		case rules.SeverityWarning:
			sum.FailedWarning++
		case rules.SeverityInfo:
			sum.FailedInfo++
		}
	}

	return Report{
		ShipmentID:  shipmentID,
		RunSeq:      runSeq,
		Decision:    decide(sum),
		Results:     out,
		Summary:     sum,
		GeneratedAt: now,
	}, nil
}

func decide(s Summary) Decision {
	switch {
	case s.FailedError > 0:
		return Reject
	case s.FailedWarning > 0:
		return Hold
	default:
		return Approve
	}
}

// Blocking returns the failed, non-overridden ERROR results attributed to
// instanceID.
func (r Report) Blocking(instanceID uuid.UUID) []rules.Result {
	var out []rules.Result
	for _, res := range r.Results {
		if res.Passed || res.IsOverridden || res.Severity != rules.SeverityError {
			continue
		}
		if res.InstanceID != nil && *res.InstanceID == instanceID {
			out = append(out, res)
		}
	}
	return out
}
