// Package presence decides which required documents a shipment has, assigns
// versions to duplicate uploads, and selects one primary instance per type.
// Resolution never fails: every input yields a Report.
package presence

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/clearance/internal/canonical"
	"github.com/JaimeStill/clearance/internal/docstate"
	"github.com/JaimeStill/clearance/internal/rules"
)

// Status summarizes one document type for a shipment.
type Status string

const (
	StatusMissing     Status = "missing"
	StatusDraft       Status = "draft"
	StatusUploaded    Status = "uploaded"
	StatusValidated   Status = "validated"
	StatusNotRequired Status = "not_required"
)

// Shipment is the context presence needs.
type Shipment struct {
	ID      uuid.UUID
	HSCodes []string
}

// Instance is a stored document instance as seen by the resolver.
// Pinned marks an explicit user primary selection. Extracted reports
// whether a canonical record exists.
type Instance struct {
	ID          uuid.UUID
	Type        canonical.DocumentType
	State       docstate.State
	CreatedAt   time.Time
	ExtractedAt *time.Time
	Extracted   bool
	Pinned      bool
}

// Assignment is the resolver's version and primary decision for one
// instance. Archived instances keep their version but are never primary.
type Assignment struct {
	InstanceID   uuid.UUID              `json:"instance_id"`
	DocumentType canonical.DocumentType `json:"document_type"`
	Version      int                    `json:"version"`
	IsPrimary    bool                   `json:"is_primary"`
	SupersedesID *uuid.UUID             `json:"supersedes_id,omitempty"`
	State        docstate.State         `json:"state"`
}

// TypeReport is the presence outcome for one document type.
type TypeReport struct {
	DocumentType canonical.DocumentType `json:"document_type"`
	Required     bool                   `json:"required"`
	Mandatory    bool                   `json:"mandatory"`
	Status       Status                 `json:"status"`
	PrimaryID    *uuid.UUID             `json:"primary_id,omitempty"`
	Versions     []Assignment           `json:"versions"`
}

// Report is the presence outcome for a shipment.
type Report struct {
	ShipmentID  uuid.UUID                `json:"shipment_id"`
	Families    []string                 `json:"families"`
	Types       []TypeReport             `json:"types"`
	Missing     []canonical.DocumentType `json:"missing"`
	Complete    bool                     `json:"complete"`
	Assignments []Assignment             `json:"-"`
}

// Resolve computes presence and version assignments. Required types come
// from table; instances of other types are reported as not_required but
// still receive versions and a primary.
func Resolve(table *Table, sh Shipment, instances []Instance) Report {
	reqs := table.Required(sh.HSCodes)
	reqByType := make(map[canonical.DocumentType]Requirement, len(reqs))
	for _, r := range reqs {
		reqByType[r.DocumentType] = r
	}

	groups := make(map[canonical.DocumentType][]Instance)
	for _, inst := range instances {
		groups[inst.Type] = append(groups[inst.Type], inst)
	}

	report := Report{
		ShipmentID: sh.ID,
		Families:   table.Families(sh.HSCodes),
		Missing:    []canonical.DocumentType{},
		Complete:   true,
	}

	for _, dt := range canonical.DocumentTypes() {
		req, required := reqByType[dt]
		group := groups[dt]
		if !required && len(group) == 0 {
			continue
		}

		versions := assignVersions(group)
		tr := TypeReport{
			DocumentType: dt,
			Required:     required,
			Mandatory:    req.Mandatory,
			Versions:     versions,
		}
		for _, a := range versions {
			if a.IsPrimary {
				id := a.InstanceID
				tr.PrimaryID = &id
			}
		}

		if required {
			tr.Status = typeStatus(group)
		} else {
			tr.Status = StatusNotRequired
		}

		if tr.Mandatory {
			if tr.Status == StatusMissing {
				report.Missing = append(report.Missing, dt)
			}
			if tr.Status != StatusValidated {
				report.Complete = false
			}
		}

		report.Types = append(report.Types, tr)
		report.Assignments = append(report.Assignments, versions...)
	}

	return report
}

// typeStatus applies the presence policy to the non-archived members of a
// group. Drafts are never reported missing. A validated state without a
// canonical record counts as uploaded.
func typeStatus(group []Instance) Status {
	active := slices.DeleteFunc(slices.Clone(group), func(i Instance) bool {
		return i.State == docstate.Archived
	})

	switch {
	case len(active) == 0:
		return StatusMissing
	case slices.ContainsFunc(active, func(i Instance) bool { return i.Extracted && i.State.Reached(docstate.Validated) }):
		return StatusValidated
	case !slices.ContainsFunc(active, func(i Instance) bool { return i.State != docstate.Draft }):
		return StatusDraft
	default:
		return StatusUploaded
	}
}

// effectiveTime orders versions: extraction time when known, else upload
// time.
func effectiveTime(i Instance) time.Time {
	if i.ExtractedAt != nil {
		return *i.ExtractedAt
	}
	return i.CreatedAt
}

// assignVersions numbers instances 1..n by ascending effective time with
// ties broken by creation order, then picks the primary: a pinned
// non-archived instance if one exists, else the highest non-archived
// version.
func assignVersions(group []Instance) []Assignment {
	if len(group) == 0 {
		return nil
	}

	sorted := slices.Clone(group)
	slices.SortStableFunc(sorted, func(a, b Instance) int {
		if c := effectiveTime(a).Compare(effectiveTime(b)); c != 0 {
			return c
		}
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID.String(), b.ID.String())
	})

	primary := -1
	for i := len(sorted) - 1; i >= 0; i-- {
		if sorted[i].State == docstate.Archived {
			continue
		}
		if sorted[i].Pinned {
			primary = i
			break
		}
		if primary < 0 {
			primary = i
		}
	}

	out := make([]Assignment, len(sorted))
	for i, inst := range sorted {
		out[i] = Assignment{
			InstanceID:   inst.ID,
			DocumentType: inst.Type,
			Version:      i + 1,
			IsPrimary:    i == primary,
			State:        inst.State,
		}
		if i > 0 {
			prev := sorted[i-1].ID
			out[i].SupersedesID = &prev
		}
	}
	return out
}

// Primaries maps each document type to its primary instance id.
func (r Report) Primaries() map[canonical.DocumentType]uuid.UUID {
	out := make(map[canonical.DocumentType]uuid.UUID)
	for _, a := range r.Assignments {
		if a.IsPrimary {
			out[a.DocumentType] = a.InstanceID
		}
	}
	return out
}

// Type returns the report for dt.
func (r Report) Type(dt canonical.DocumentType) (TypeReport, bool) {
	for _, tr := range r.Types {
		if tr.DocumentType == dt {
			return tr, true
		}
	}
	return TypeReport{}, false
}

// RuleID returns the presence rule id for a document type.
func RuleID(dt canonical.DocumentType) string {
	return "presence." + string(dt)
}

// Results converts required-type statuses into rule results so presence
// feeds the same decision as field rules. Mandatory missing documents fail
// ERROR; mandatory drafts and unextracted uploads fail WARNING; optional
// gaps pass as INFO.
func (r Report) Results() []rules.Result {
	var out []rules.Result
	for _, tr := range r.Types {
		if !tr.Required {
			continue
		}
		res := rules.Result{
			RuleID:       RuleID(tr.DocumentType),
			RuleName:     fmt.Sprintf("%s presence", tr.DocumentType),
			DocumentType: tr.DocumentType,
			InstanceID:   tr.PrimaryID,
			Details: map[string]any{
				"status":    tr.Status,
				"mandatory": tr.Mandatory,
			},
		}

		switch {
		case tr.Status == StatusValidated:
			res.Passed = true
			res.Severity = rules.SeverityInfo
			res.Message = "document present"
		case !tr.Mandatory:
			res.Passed = true
			res.Severity = rules.SeverityInfo
			res.Message = "optional document " + statusPhrase(tr.Status)
		case tr.Status == StatusMissing:
			res.Severity = rules.SeverityError
			res.Message = "required document missing"
		default:
			res.Severity = rules.SeverityWarning
			res.Message = "required document " + statusPhrase(tr.Status)
		}
		out = append(out, res)
	}
	return out
}

func statusPhrase(s Status) string {
	switch s {
	case StatusMissing:
		return "not provided"
	case StatusDraft:
		return "is still a draft"
	case StatusUploaded:
		return "awaiting extraction"
	default:
		return string(s)
	}
}
