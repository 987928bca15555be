package rules

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"unicode"

	"github.com/JaimeStill/clearance/internal/canonical"
)

// WithinTolerance reports whether a and b differ by at most fraction of the
// larger magnitude, with a floor of 1 on the denominator. It is symmetric.
func WithinTolerance(a, b, fraction float64) bool {
	denom := math.Max(math.Max(math.Abs(a), math.Abs(b)), 1)
	return math.Abs(a-b)/denom <= fraction
}

// normalizeText folds case and collapses whitespace.
func normalizeText(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), " "))
}

// normalizeCode strips separators from identifiers such as container
// numbers and HS codes so "MSCU 123456-7" matches "MSCU1234567".
func normalizeCode(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '-' || r == '.' || r == '/' {
			return -1
		}
		return unicode.ToUpper(r)
	}, s)
}

func isEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	case []string:
		return len(x) == 0
	case []any:
		return len(x) == 0
	case []canonical.Record:
		return len(x) == 0
	case canonical.Date:
		return x.IsZero()
	default:
		return false
	}
}

// elements flattens a resolved value into its scalar members. Scalars yield
// a single element.
func elements(v any) []any {
	switch x := v.(type) {
	case []any:
		return x
	case []string:
		out := make([]any, len(x))
		for i, s := range x {
			out[i] = s
		}
		return out
	default:
		return []any{v}
	}
}

func asNumber(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case string:
		n, err := canonical.ParseNumber(x)
		return n, err == nil
	default:
		return 0, false
	}
}

// sumNumbers totals every element of v. Used so a records wildcard such as
// cargo[*].gross_weight_kg compares against a single declared total.
func sumNumbers(v any) (float64, bool) {
	var total float64
	for _, e := range elements(v) {
		n, ok := asNumber(e)
		if !ok {
			return 0, false
		}
		total += n
	}
	return total, true
}

func asDate(v any) (canonical.Date, bool) {
	switch x := v.(type) {
	case canonical.Date:
		return x, !x.IsZero()
	case string:
		d, err := canonical.ParseDate(x)
		return d, err == nil
	default:
		return canonical.Date{}, false
	}
}

// latestDate picks the latest of a multi-valued date side so an
// on-or-before comparison holds for every member.
func latestDate(v any) (canonical.Date, bool) {
	var latest canonical.Date
	for _, e := range elements(v) {
		d, ok := asDate(e)
		if !ok {
			return canonical.Date{}, false
		}
		if latest.IsZero() || d.After(latest) {
			latest = d
		}
	}
	return latest, !latest.IsZero()
}

func earliestDate(v any) (canonical.Date, bool) {
	var earliest canonical.Date
	for _, e := range elements(v) {
		d, ok := asDate(e)
		if !ok {
			return canonical.Date{}, false
		}
		if earliest.IsZero() || d.Before(earliest) {
			earliest = d
		}
	}
	return earliest, !earliest.IsZero()
}

func asText(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case canonical.Date:
		return x.String()
	case float64:
		return fmt.Sprintf("%g", x)
	default:
		return fmt.Sprint(x)
	}
}

// valuesEqual compares two scalars by their most specific shared type.
func valuesEqual(a, b any) bool {
	if da, ok := a.(canonical.Date); ok {
		db, ok := asDate(b)
		return ok && da.Equal(db)
	}
	if db, ok := b.(canonical.Date); ok {
		da, ok := asDate(a)
		return ok && da.Equal(db)
	}
	_, aNum := a.(float64)
	_, bNum := b.(float64)
	if aNum || bNum {
		na, okA := asNumber(a)
		nb, okB := asNumber(b)
		return okA && okB && na == nb
	}
	return normalizeText(asText(a)) == normalizeText(asText(b))
}

// codeSet normalizes v into a sorted, de-duplicated identifier set. Flat
// strings are split on list separators.
func codeSet(v any) []string {
	var out []string
	for _, e := range elements(v) {
		s, ok := e.(string)
		if !ok {
			s = asText(e)
		}
		for _, part := range canonical.SplitList(s) {
			if c := normalizeCode(part); c != "" {
				out = append(out, c)
			}
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func difference(a, b []string) []string {
	var out []string
	for _, x := range a {
		if _, found := slices.BinarySearch(b, x); !found {
			out = append(out, x)
		}
	}
	return out
}
