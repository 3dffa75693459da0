package membership

import "github.com/pipforge/pipcore/pkg/seal"

// Filter decides which child names contribute to a membership fingerprint.
// §4.5 names four kinds: allow-all, regex (a seal.Pattern), union, and
// search-path.
type Filter interface {
	// Admit reports whether name should be included in the fingerprint.
	Admit(name string) bool
	// Identity returns a string that uniquely identifies this filter's
	// selection criteria, used as part of the membership cache key (the
	// cache is keyed by (path, filter-identity, mode) per §5).
	Identity() string
}

// AllowAllFilter admits every name.
type AllowAllFilter struct{}

// Admit implements Filter.
func (AllowAllFilter) Admit(string) bool { return true }

// Identity implements Filter.
func (AllowAllFilter) Identity() string { return "allow-all" }

// PatternFilter admits names matched by a seal enumeration pattern,
// reusing pkg/seal's doublestar-backed Pattern rather than a second glob
// implementation.
type PatternFilter struct {
	pattern *seal.Pattern
	raw     string
}

// NewPatternFilter wraps a compiled pattern for use as a membership filter.
func NewPatternFilter(raw string, pattern *seal.Pattern) PatternFilter {
	return PatternFilter{pattern: pattern, raw: raw}
}

// Admit implements Filter.
func (f PatternFilter) Admit(name string) bool { return f.pattern.Matches(name) }

// Identity implements Filter.
func (f PatternFilter) Identity() string { return "pattern:" + f.raw }

// UnionFilter admits a name if any of its member filters admit it.
type UnionFilter struct {
	members []Filter
}

// NewUnionFilter combines filters into a single Filter.
func NewUnionFilter(filters ...Filter) UnionFilter {
	return UnionFilter{members: filters}
}

// Admit implements Filter.
func (f UnionFilter) Admit(name string) bool {
	for _, m := range f.members {
		if m.Admit(name) {
			return true
		}
	}
	return false
}

// Identity implements Filter.
func (f UnionFilter) Identity() string {
	id := "union("
	for i, m := range f.members {
		if i > 0 {
			id += ","
		}
		id += m.Identity()
	}
	return id + ")"
}

// SearchPathFilter admits only the file-name atoms a pip actually
// referenced, keeping search-path directory-enumeration fingerprints
// (e.g. for a PATH-like directory) stable across additions of irrelevant
// files (§4.4 "Search-path handling").
type SearchPathFilter struct {
	atoms map[string]bool
}

// NewSearchPathFilter builds a filter admitting exactly the given atoms.
func NewSearchPathFilter(atoms []string) SearchPathFilter {
	set := make(map[string]bool, len(atoms))
	for _, a := range atoms {
		set[a] = true
	}
	return SearchPathFilter{atoms: set}
}

// Admit implements Filter.
func (f SearchPathFilter) Admit(name string) bool { return f.atoms[name] }

// Identity implements Filter.
func (f SearchPathFilter) Identity() string {
	// Search-path filters are never cached (see Mode.cacheable and the
	// Fingerprinter's Compute method), so a stable identity isn't load
	// bearing, but one is still provided for diagnostic logging.
	return "search-path"
}
