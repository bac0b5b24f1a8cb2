package bifrost

import "strings"

// PathSeparator joins path segments into a route.
const PathSeparator = "/"

// Path identifies a location in an endpoint tree: the field names traversed
// from the root to a leaf, in order.
//
// Paths are the join key between the client and the server. The path a client
// accumulates for a call is compared element-wise with the path the flattener
// assigned to the server leaf.
type Path []string

// Append returns a new path with seg added at the end.
// The receiver is never modified, so siblings built from a shared parent
// never alias each other's backing array.
func (p Path) Append(seg ...string) Path {
	out := make(Path, len(p), len(p)+len(seg))
	copy(out, p)
	return append(out, seg...)
}

// Clone returns a copy of p.
func (p Path) Clone() Path {
	if p == nil {
		return nil
	}
	out := make(Path, len(p))
	copy(out, p)
	return out
}

// Equal reports whether p and other have the same segments in the same order.
func (p Path) Equal(other Path) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}

// HasPrefix reports whether prefix is a leading subsequence of p.
func (p Path) HasPrefix(prefix Path) bool {
	if len(prefix) > len(p) {
		return false
	}
	return p[:len(prefix)].Equal(prefix)
}

// String returns the segments joined with "/".
func (p Path) String() string {
	return strings.Join(p, PathSeparator)
}

// Route returns the URL path a flattened endpoint is mounted at: "/" followed
// by the joined segments.
func (p Path) Route() string {
	return PathSeparator + p.String()
}

// ParsePath splits a route or a dotted/slashed path into segments.
// Leading and trailing separators are ignored.
//
//	ParsePath("/accounts/get")  // Path{"accounts", "get"}
//	ParsePath("accounts.get")   // Path{"accounts", "get"}
func ParsePath(s string) Path {
	s = strings.Trim(s, "/.")
	if s == "" {
		return Path{}
	}
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == '/' || r == '.'
	})
}

// parseRoute splits a URL route on "/" only, so segments may contain dots.
func parseRoute(route string) Path {
	route = strings.Trim(route, PathSeparator)
	if route == "" {
		return Path{}
	}
	return strings.Split(route, PathSeparator)
}
