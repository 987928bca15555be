package validation

import (
	"github.com/JaimeStill/clearance/internal/canonical"
	"github.com/JaimeStill/clearance/internal/rules"
)

// RuleInfo describes one rule of the active rule set.
type RuleInfo struct {
	ID           string                 `json:"id"`
	Name         string                 `json:"name"`
	Kind         string                 `json:"kind"`
	DocumentType canonical.DocumentType `json:"document_type,omitempty"`
	Field        string                 `json:"field,omitempty"`
	Check        string                 `json:"check"`
	TargetType   canonical.DocumentType `json:"target_type,omitempty"`
	TargetField  string                 `json:"target_field,omitempty"`
	Severity     rules.Severity         `json:"severity,omitempty"`
	Message      string                 `json:"message,omitempty"`
}

// Catalogue lists the rules of set in evaluation order, starting with the
// built-in relevance rule.
func Catalogue(set *rules.RuleSet) []RuleInfo {
	out := []RuleInfo{{
		ID:    rules.RelevanceRuleID,
		Name:  "document relevance",
		Kind:  "relevance",
		Check: "classifier_confidence",
	}}

	for _, r := range set.Single() {
		out = append(out, RuleInfo{
			ID:           r.ID,
			Name:         r.Name,
			Kind:         "single",
			DocumentType: r.DocumentType,
			Field:        r.FieldPath,
			Check:        r.Condition.Name(),
			Severity:     r.Severity,
			Message:      r.Message,
		})
	}

	for _, r := range set.Cross() {
		out = append(out, RuleInfo{
			ID:           r.ID,
			Name:         r.Name,
			Kind:         "cross",
			DocumentType: r.SourceType,
			Field:        r.SourceField,
			Check:        r.Comparison.Name(),
			TargetType:   r.TargetType,
			TargetField:  r.TargetField,
			Severity:     r.Severity,
			Message:      r.Message,
		})
	}

	return out
}
