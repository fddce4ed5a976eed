package arena

import (
	"fmt"
	"strconv"
	"strings"
)

// RootSegment is the conventional wrapper segment used by remote-facing
// paths. The local state tree has no such wrapper (the root IS the
// composition), so exactly one leading RootSegment is stripped before any
// tree walk.
const RootSegment = "composition"

const byIdPrefix = "/parameter/by-id/"

// Path is an ordered sequence of name or index segments addressing one node
// in the composition tree.
type Path []string

func ParsePath(raw string) Path {
	parts := strings.Split(raw, "/")
	segs := make(Path, 0, len(parts))
	for _, part := range parts {
		if part != "" {
			segs = append(segs, part)
		}
	}
	return segs
}

func (self Path) String() string {
	return "/" + strings.Join(self, "/")
}

// StripRoot removes at most one leading wrapper segment.
func (self Path) StripRoot() Path {
	if 0 < len(self) && self[0] == RootSegment {
		return self[1:]
	}
	return self
}

// NormalizePath converts a raw path string to its canonical form with the
// wrapper segment intact: leading slash, no empty or trailing segments.
// Pending-request registration and echo lookup both key on this form.
func NormalizePath(raw string) string {
	return ParsePath(raw).String()
}

// Walk descends from node one segment at a time. Mapping nodes are keyed by
// name, sequence nodes by zero-based position. Returns false if any segment
// is missing, which callers treat as not-yet-known rather than an error.
func (self Path) Walk(node any) (any, bool) {
	for _, seg := range self {
		switch current := node.(type) {
		case map[string]any:
			next, ok := current[seg]
			if !ok {
				return nil, false
			}
			node = next
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || len(current) <= i {
				return nil, false
			}
			node = current[i]
		default:
			return nil, false
		}
	}
	return node, true
}

// ByIdAddress returns the by-id parameter address form required for
// subscribing to id-assigned controls (tempo, crossfader and similar).
func ByIdAddress(id int64) string {
	return fmt.Sprintf("%s%d", byIdPrefix, id)
}

func ParseByIdAddress(addr string) (int64, bool) {
	if !strings.HasPrefix(addr, byIdPrefix) {
		return 0, false
	}
	id, err := strconv.ParseInt(addr[len(byIdPrefix):], 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
