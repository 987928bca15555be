package canonical

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidPath indicates a malformed dot/bracket field path.
var ErrInvalidPath = errors.New("invalid field path")

// Segment is one dotted component of a field path. Index is -1 when the
// segment carries no bracket; Wildcard is set for "[*]" and "[]".
type Segment struct {
	Name     string
	Index    int
	Wildcard bool
}

// Indexed reports whether the segment addressed a single element.
func (s Segment) Indexed() bool { return s.Index >= 0 }

// ParsePath splits paths such as "containers[0].number", "cargo[*].hs_code"
// or "hs_codes" into segments.
func ParsePath(path string) ([]Segment, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidPath)
	}

	parts := strings.Split(path, ".")
	segs := make([]Segment, 0, len(parts))
	for _, part := range parts {
		seg, err := parseSegment(part)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", err, path)
		}
		segs = append(segs, seg)
	}
	return segs, nil
}

func parseSegment(part string) (Segment, error) {
	seg := Segment{Index: -1}
	open := strings.IndexByte(part, '[')
	if open < 0 {
		if part == "" || strings.ContainsAny(part, "]") {
			return seg, ErrInvalidPath
		}
		seg.Name = part
		return seg, nil
	}

	if open == 0 || !strings.HasSuffix(part, "]") {
		return seg, ErrInvalidPath
	}
	seg.Name = part[:open]
	inner := part[open+1 : len(part)-1]
	switch inner {
	case "", "*":
		seg.Wildcard = true
	default:
		i, err := strconv.Atoi(inner)
		if err != nil || i < 0 {
			return seg, ErrInvalidPath
		}
		seg.Index = i
	}
	return seg, nil
}

// Root returns the top-level field name of a path without validating the rest.
func Root(path string) string {
	path = strings.TrimSpace(path)
	if i := strings.IndexAny(path, ".["); i >= 0 {
		return path[:i]
	}
	return path
}
