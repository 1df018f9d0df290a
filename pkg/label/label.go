// Package label shortens component names to fit the sunburst rings.
package label

// Ellipsis is appended to truncated text.
const Ellipsis = "..."

const (
	shallowMax   = 25
	deepMax      = 15
	shallowDepth = 3
)

// Format returns the display label for a node name drawn at the given ring depth.
// Inner rings have more room, so names up to 25 characters fit down to depth 3
// and deeper rings are cut at 15.
func Format(name string, depth int) string {
	limit := deepMax
	if depth <= shallowDepth {
		limit = shallowMax
	}
	return Truncate(name, limit)
}

// Truncate shortens s to at most limit characters, replacing the tail with an
// ellipsis. Strings that already fit are returned unchanged.
func Truncate(s string, limit int) string {
	limit = max(limit, 0)
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	if limit <= len(Ellipsis) {
		return string(runes[:limit])
	}
	return string(runes[:limit-len(Ellipsis)]) + Ellipsis
}
