package canonical

import (
	"errors"
	"strconv"
	"strings"
	"unicode"
)

// ErrInvalidNumber indicates a value that cannot be read as a number.
var ErrInvalidNumber = errors.New("invalid number")

// Record is one entry of a records field, keyed by subfield name.
type Record map[string]any

// ParseNumber reads extractor numerics such as "20,000 kg", "19 800.5",
// "1.234,5 MT" or "-3". Unit suffixes and thousands separators are ignored.
// When both '.' and ',' occur, the last one is the decimal separator.
func ParseNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimRightFunc(s, func(r rune) bool {
		return unicode.IsLetter(r) || unicode.IsSpace(r) || r == '%' || r == '/' || r == '³'
	})
	s = strings.TrimLeftFunc(s, func(r rune) bool {
		return unicode.IsLetter(r) || unicode.IsSpace(r) || unicode.Is(unicode.Sc, r)
	})
	s = strings.Map(func(r rune) rune {
		if r == ' ' || r == '\u00a0' || r == '\u202f' || r == '\'' || r == '_' {
			return -1
		}
		return r
	}, s)
	if s == "" {
		return 0, ErrInvalidNumber
	}

	dot := strings.LastIndex(s, ".")
	comma := strings.LastIndex(s, ",")
	switch {
	case dot >= 0 && comma >= 0:
		if comma > dot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case comma >= 0:
		if strings.Count(s, ",") == 1 && len(s)-comma-1 != 3 {
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, ErrInvalidNumber
	}
	return v, nil
}

// SplitList breaks a flat multi-value string on commas, semicolons, pipes
// and newlines. Empty entries are discarded.
func SplitList(s string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || r == '|' || r == '\n' || r == '\r'
	})
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseScalar converts raw into the Go value for kind. Empty strings are
// reported as not ok with a nil error so the caller can treat them as absent
// without a warning.
func parseScalar(kind Kind, raw string) (any, bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, false, nil
	}
	switch kind {
	case KindText:
		return collapseSpace(raw), true, nil
	case KindNumber:
		v, err := ParseNumber(raw)
		if err != nil {
			return nil, false, err
		}
		return v, true, nil
	case KindDate:
		v, err := ParseDate(raw)
		if err != nil {
			return nil, false, err
		}
		return v, true, nil
	default:
		return nil, false, errors.New("not a scalar kind")
	}
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func clamp(c float64) float64 {
	switch {
	case c != c:
		return 0
	case c < 0:
		return 0
	case c > 1:
		return 1
	default:
		return c
	}
}
