package rules

import (
	"cmp"
	"fmt"
	"regexp"
	"slices"

	"github.com/google/uuid"

	"github.com/JaimeStill/clearance/internal/canonical"
	"github.com/JaimeStill/clearance/internal/docstate"
)

// Relevance thresholds on classifier confidence.
const (
	RelevanceUnrelatedBelow = 0.3
	RelevanceReviewBelow    = 0.5
)

const notApplicableMessage = "not applicable: insufficient data"

// Evaluate runs every rule in set against in and returns the results in a
// fixed order: relevance per document, then single-document rules in set
// order, then cross-document rules in set order. A rule that fails to
// execute yields an ERROR result instead of aborting the run.
func Evaluate(set *RuleSet, in Input) []Result {
	docs := sortDocuments(in.Documents)
	var results []Result

	for _, d := range docs {
		if d.State == docstate.Draft || d.State == docstate.Archived {
			continue
		}
		results = append(results, protect(RelevanceRuleID, relevanceName, d.Type, d.InstanceID, func() []Result {
			return []Result{relevance(d)}
		})...)
	}

	for _, r := range set.single {
		for _, d := range docs {
			if d.Type != r.DocumentType || !eligible(d) {
				continue
			}
			results = append(results, protect(r.ID, r.Name, d.Type, d.InstanceID, func() []Result {
				return []Result{evaluateSingle(r, d, in.Shipment)}
			})...)
		}
	}

	primaries := indexByType(docs)
	for _, r := range set.cross {
		var instanceID uuid.UUID
		if src, ok := primaries[r.SourceType]; ok {
			instanceID = src.InstanceID
		}
		results = append(results, protect(r.ID, r.Name, r.SourceType, instanceID, func() []Result {
			return []Result{evaluateCross(r, primaries, in.Shipment)}
		})...)
	}

	return results
}

// eligible reports whether a document's extracted data may feed rules.
func eligible(d Document) bool {
	return d.State.Evaluable() && d.Canonical != nil
}

func sortDocuments(docs []Document) []Document {
	order := make(map[canonical.DocumentType]int)
	for i, t := range canonical.DocumentTypes() {
		order[t] = i
	}
	sorted := slices.Clone(docs)
	slices.SortStableFunc(sorted, func(a, b Document) int {
		if c := cmp.Compare(order[a.Type], order[b.Type]); c != 0 {
			return c
		}
		return cmp.Compare(a.InstanceID.String(), b.InstanceID.String())
	})
	return sorted
}

func indexByType(docs []Document) map[canonical.DocumentType]Document {
	idx := make(map[canonical.DocumentType]Document)
	for _, d := range docs {
		if d.State == docstate.Archived {
			continue
		}
		if _, ok := idx[d.Type]; !ok {
			idx[d.Type] = d
		}
	}
	return idx
}

func protect(ruleID, ruleName string, dt canonical.DocumentType, instanceID uuid.UUID, fn func() []Result) (out []Result) {
	defer func() {
		if p := recover(); p != nil {
			out = []Result{executionFailure(ruleID, ruleName, dt, instanceID, fmt.Errorf("%v", p))}
		}
	}()
	return fn()
}

func executionFailure(ruleID, ruleName string, dt canonical.DocumentType, instanceID uuid.UUID, cause error) Result {
	res := Result{
		RuleID:       ruleID,
		RuleName:     ruleName,
		Passed:       false,
		Severity:     SeverityError,
		Message:      "rule execution failed: " + cause.Error(),
		DocumentType: dt,
	}
	if instanceID != uuid.Nil {
		res.InstanceID = &instanceID
	}
	return res
}

const relevanceName = "document relevance"

func relevance(d Document) Result {
	id := d.InstanceID
	res := Result{
		RuleID:       RelevanceRuleID,
		RuleName:     relevanceName,
		DocumentType: d.Type,
		InstanceID:   &id,
	}

	c := d.Classification
	if c == nil {
		res.Passed = true
		res.Severity = SeverityInfo
		res.Message = "relevance check skipped"
		return res
	}

	res.Details = map[string]any{
		"declared_type": d.Type,
		"detected_type": c.DetectedType,
		"confidence":    c.Confidence,
	}
	match := c.DetectedType == d.Type

	switch {
	case c.Confidence < RelevanceUnrelatedBelow:
		res.Severity = SeverityError
		res.Message = "unrelated document"
	case c.Confidence < RelevanceReviewBelow && match:
		res.Severity = SeverityWarning
		res.Message = "uncertain, needs review"
	case c.Confidence < RelevanceReviewBelow:
		res.Severity = SeverityError
		res.Message = "type mismatch, low confidence"
	case match:
		res.Passed = true
		res.Severity = SeverityInfo
		res.Message = "document type confirmed"
	default:
		res.Severity = SeverityError
		res.Message = "type mismatch"
	}
	return res
}

type outcome struct {
	passed  bool
	skip    string
	reason  string
	details map[string]any
}

func evaluateSingle(r SingleRule, d Document, sh Shipment) Result {
	id := d.InstanceID
	res := Result{
		RuleID:       r.ID,
		RuleName:     r.Name,
		Severity:     r.Severity,
		DocumentType: d.Type,
		InstanceID:   &id,
		Details: map[string]any{
			"field":     r.FieldPath,
			"condition": r.Condition.Name(),
		},
	}

	val, ok, err := d.Canonical.Lookup(r.FieldPath)
	if err != nil {
		return executionFailure(r.ID, r.Name, d.Type, id, err)
	}

	if _, notNull := r.Condition.(NotNull); notNull {
		switch {
		case !ok:
			res.Message = r.Message + " (field absent)"
			res.Details["reason"] = "absent"
		case isEmpty(val):
			res.Message = r.Message + " (field present but empty)"
			res.Details["reason"] = "empty"
		default:
			res.Passed = true
			res.Message = "passed"
		}
		return res
	}

	if !ok {
		res.Message = "field not extracted"
		res.Details["reason"] = "absent"
		return res
	}

	out, err := checkCondition(r.Condition, val, d, sh)
	if err != nil {
		return executionFailure(r.ID, r.Name, d.Type, id, err)
	}
	return finish(res, out, r.Message, val)
}

func finish(res Result, out outcome, failMessage string, val any) Result {
	for k, v := range out.details {
		res.Details[k] = v
	}
	switch {
	case out.skip != "":
		res.Passed = true
		res.Severity = SeverityInfo
		res.Message = notApplicableMessage
		res.Details["reason"] = out.skip
	case out.passed:
		res.Passed = true
		res.Message = "passed"
	default:
		res.Message = failMessage
		res.Details["reason"] = out.reason
		if val != nil {
			res.Details["value"] = val
		}
	}
	return res
}

func checkCondition(c Condition, val any, d Document, sh Shipment) (outcome, error) {
	switch c := c.(type) {
	case Equals:
		for _, e := range elements(val) {
			if !valuesEqual(e, c.Value) {
				return outcome{reason: fmt.Sprintf("%v does not equal %v", e, c.Value)}, nil
			}
		}
		return outcome{passed: true}, nil

	case InList:
		for _, e := range elements(val) {
			if !slices.ContainsFunc(c.Values, func(v string) bool { return valuesEqual(e, v) }) {
				return outcome{reason: fmt.Sprintf("%v not in allowed values", e)}, nil
			}
		}
		return outcome{passed: true}, nil

	case Range:
		for _, e := range elements(val) {
			n, ok := asNumber(e)
			if !ok {
				return outcome{reason: "value is not numeric"}, nil
			}
			if c.Min != nil && n < *c.Min {
				return outcome{reason: fmt.Sprintf("%g below minimum %g", n, *c.Min)}, nil
			}
			if c.Max != nil && n > *c.Max {
				return outcome{reason: fmt.Sprintf("%g above maximum %g", n, *c.Max)}, nil
			}
		}
		return outcome{passed: true}, nil

	case Regex:
		re := c.re
		if re == nil {
			if c.err != nil {
				return outcome{}, c.err
			}
			compiled, err := regexp.Compile(c.Pattern)
			if err != nil {
				return outcome{}, err
			}
			re = compiled
		}
		for _, e := range elements(val) {
			if !re.MatchString(asText(e)) {
				return outcome{reason: fmt.Sprintf("%q does not match %s", asText(e), c.Pattern)}, nil
			}
		}
		return outcome{passed: true}, nil

	case DateBeforeOrEqual:
		date, ok := latestDate(val)
		if !ok {
			return outcome{reason: "value is not a date"}, nil
		}
		refVal, ok, err := resolveReference(c.Ref, d, sh)
		if err != nil {
			return outcome{}, err
		}
		if !ok {
			return outcome{skip: "reference " + c.Ref.String() + " unavailable"}, nil
		}
		ref, ok := earliestDate(refVal)
		if !ok {
			return outcome{skip: "reference " + c.Ref.String() + " is not a date"}, nil
		}
		details := map[string]any{"reference": c.Ref.String(), "reference_date": ref}
		if date.After(ref) {
			return outcome{
				reason:  fmt.Sprintf("%s is after %s (%s)", date, ref, c.Ref),
				details: details,
			}, nil
		}
		return outcome{passed: true, details: details}, nil

	case NotNull:
		return outcome{passed: !isEmpty(val)}, nil

	default:
		return outcome{}, fmt.Errorf("unsupported condition %T", c)
	}
}

func resolveReference(ref Reference, d Document, sh Shipment) (any, bool, error) {
	if ref.Shipment {
		v, ok := sh.Attr(ref.Path)
		return v, ok, nil
	}
	return d.Canonical.Lookup(ref.Path)
}

func evaluateCross(r CrossRule, primaries map[canonical.DocumentType]Document, sh Shipment) Result {
	res := Result{
		RuleID:       r.ID,
		RuleName:     r.Name,
		Severity:     r.Severity,
		DocumentType: r.SourceType,
		Details: map[string]any{
			"source":     string(r.SourceType) + "." + r.SourceField,
			"target":     string(r.TargetType) + "." + r.TargetField,
			"comparison": r.Comparison.Name(),
		},
	}

	src, ok := primaries[r.SourceType]
	if !ok {
		return finish(res, outcome{skip: "source document missing"}, r.Message, nil)
	}
	srcID := src.InstanceID
	res.InstanceID = &srcID
	if !eligible(src) {
		return finish(res, outcome{skip: "source document not validated"}, r.Message, nil)
	}

	sv, ok, err := src.Canonical.Lookup(r.SourceField)
	if err != nil {
		return executionFailure(r.ID, r.Name, r.SourceType, srcID, err)
	}
	if !ok {
		return finish(res, outcome{skip: "source field not extracted"}, r.Message, nil)
	}

	var tv any
	if r.TargetType == ShipmentTarget {
		if tv, ok = sh.Attr(r.TargetField); !ok {
			return finish(res, outcome{skip: "shipment attribute unset"}, r.Message, nil)
		}
	} else {
		tgt, found := primaries[r.TargetType]
		if !found {
			return finish(res, outcome{skip: "target document missing"}, r.Message, nil)
		}
		res.Details["target_instance_id"] = tgt.InstanceID
		if !eligible(tgt) {
			return finish(res, outcome{skip: "target document not validated"}, r.Message, nil)
		}
		if tv, ok, err = tgt.Canonical.Lookup(r.TargetField); err != nil {
			return executionFailure(r.ID, r.Name, r.SourceType, srcID, err)
		}
		if !ok {
			return finish(res, outcome{skip: "target field not extracted"}, r.Message, nil)
		}
	}

	out, err := compare(r.Comparison, sv, tv)
	if err != nil {
		return executionFailure(r.ID, r.Name, r.SourceType, srcID, err)
	}
	res.Details["source_value"] = sv
	res.Details["target_value"] = tv
	return finish(res, out, r.Message, nil)
}

func compare(c Comparison, source, target any) (outcome, error) {
	switch c := c.(type) {
	case CompareEquals:
		se, te := elements(source), elements(target)
		if len(se) == 1 && len(te) == 1 {
			if valuesEqual(se[0], te[0]) {
				return outcome{passed: true}, nil
			}
			return outcome{reason: fmt.Sprintf("%v does not equal %v", se[0], te[0])}, nil
		}
		return compareSets(source, target, true), nil

	case CompareTolerance:
		a, okA := sumNumbers(source)
		b, okB := sumNumbers(target)
		if !okA || !okB {
			return outcome{reason: "value is not numeric"}, nil
		}
		details := map[string]any{"tolerance": c.Fraction}
		if WithinTolerance(a, b, c.Fraction) {
			return outcome{passed: true, details: details}, nil
		}
		return outcome{
			reason:  fmt.Sprintf("%g and %g differ by more than %g%%", a, b, c.Fraction*100),
			details: details,
		}, nil

	case CompareSetEquals:
		return compareSets(source, target, true), nil

	case CompareSetSubset:
		return compareSets(source, target, false), nil

	case CompareDateBeforeOrEqual:
		a, okA := latestDate(source)
		b, okB := earliestDate(target)
		if !okA || !okB {
			return outcome{reason: "value is not a date"}, nil
		}
		if a.After(b) {
			return outcome{reason: fmt.Sprintf("%s is after %s", a, b)}, nil
		}
		return outcome{passed: true}, nil

	default:
		return outcome{}, fmt.Errorf("unsupported comparison %T", c)
	}
}

func compareSets(source, target any, exact bool) outcome {
	a, b := codeSet(source), codeSet(target)
	missing := difference(a, b)
	var extra []string
	if exact {
		extra = difference(b, a)
	}
	if len(missing) == 0 && len(extra) == 0 {
		return outcome{passed: true}
	}

	details := map[string]any{}
	if len(missing) > 0 {
		details["not_in_target"] = missing
	}
	if len(extra) > 0 {
		details["not_in_source"] = extra
	}
	return outcome{reason: "value sets differ", details: details}
}
