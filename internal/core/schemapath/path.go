// Package schemapath models the hierarchical schema identifiers used across the
// registry (e.g. "/schema/CC/staging"). Hierarchy is defined purely by path
// prefix, so every ancestor/descendant question goes through Path.
package schemapath

import (
	"fmt"
	"strings"
)

// Separator splits path segments.
const Separator = "/"

// Root is the path of the synthetic root record.
const Root = Path("/")

// Path is a cleaned schema identifier. The zero value is invalid.
type Path string

// Parse cleans raw and returns it as a Path.
// Leading separator is required; trailing separators and empty segments are dropped.
func Parse(raw string) (Path, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("schema id is empty")
	}
	if !strings.HasPrefix(raw, Separator) {
		return "", fmt.Errorf("schema id %q must start with %q", raw, Separator)
	}

	var segs []string
	for _, s := range strings.Split(raw, Separator) {
		if s != "" {
			segs = append(segs, s)
		}
	}
	if len(segs) == 0 {
		return Root, nil
	}
	return Path(Separator + strings.Join(segs, Separator)), nil
}

// MustParse is Parse for known-good literals.
func MustParse(raw string) Path {
	p, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return p
}

func (p Path) String() string { return string(p) }

// IsRoot reports whether p is the root path.
func (p Path) IsRoot() bool { return p == Root }

// Segments returns the path components without separators.
func (p Path) Segments() []string {
	if p.IsRoot() || p == "" {
		return nil
	}
	return strings.Split(strings.TrimPrefix(string(p), Separator), Separator)
}

// Depth is the number of segments; the root has depth 0.
func (p Path) Depth() int {
	return len(p.Segments())
}

// Parent returns the enclosing path. The parent of a top-level path is Root;
// Root has no parent.
func (p Path) Parent() (Path, bool) {
	if p.IsRoot() || p == "" {
		return "", false
	}
	i := strings.LastIndex(string(p), Separator)
	if i <= 0 {
		return Root, true
	}
	return p[:i], true
}

// IsAncestorOf reports whether p strictly prefixes other on a segment boundary.
// "/a" is an ancestor of "/a/b" but not of "/ab" nor of itself.
func (p Path) IsAncestorOf(other Path) bool {
	if p == other || p == "" {
		return false
	}
	if p.IsRoot() {
		return !other.IsRoot() && other != ""
	}
	return strings.HasPrefix(string(other), string(p)+Separator)
}

// DescendantPrefix is the string every descendant id starts with.
func (p Path) DescendantPrefix() string {
	if p.IsRoot() {
		return Separator
	}
	return string(p) + Separator
}

// Ancestors lists every strict ancestor from the nearest to Root.
func (p Path) Ancestors() []Path {
	var out []Path
	cur := p
	for {
		parent, ok := cur.Parent()
		if !ok {
			return out
		}
		out = append(out, parent)
		cur = parent
	}
}
