// Package identity implements bidirectional interning between textual,
// slash-separated absolute paths and compact integer identifiers, along with
// the hierarchy relations (parent, name, within) that the rest of the engine
// needs on the hot path of observed-input processing.
//
// Paths are always root-relative and slash-separated internally; callers
// supply and receive normalized forms. The root path itself is represented by
// the empty string, matching the convention used throughout the tree
// comparison helpers below.
package identity

import "strings"

// pathJoin is a fast alternative to path.Join for root-relative paths. It
// avoids the cleaning overhead of path.Join, which this package's callers
// never need because every leaf name is already a single path component.
func pathJoin(base, leaf string) string {
	if leaf == "" {
		panic("empty leaf name")
	}
	if base == "" {
		return leaf
	}
	return base + "/" + leaf
}

// pathDir is a fast alternative to path.Dir for root-relative paths.
func pathDir(p string) string {
	if p == "" {
		panic("empty path")
	}
	lastSlash := strings.LastIndexByte(p, '/')
	if lastSlash == -1 {
		return ""
	}
	if lastSlash == 0 {
		panic("empty parent path")
	}
	return p[:lastSlash]
}

// PathBase returns the final path component of a root-relative path. The
// root path (empty string) has an empty base name.
func PathBase(p string) string {
	if p == "" {
		return ""
	}
	lastSlash := strings.LastIndexByte(p, '/')
	if lastSlash == -1 {
		return p
	}
	if lastSlash == len(p)-1 {
		panic("empty base name")
	}
	return p[lastSlash+1:]
}

// pathLess reports whether first sorts before second under expanded-path
// (depth-first, component-wise) ordering — the canonical order contracted by
// §3's path-set and §4.4's observation ordering invariant.
func pathLess(first, second string, cmp func(a, b string) int) bool {
	if first == second {
		return false
	} else if first == "" {
		return true
	} else if second == "" {
		return false
	}
	for {
		firstSlash := strings.IndexByte(first, '/')
		var firstComponent string
		if firstSlash == -1 {
			firstComponent = first
		} else {
			firstComponent = first[:firstSlash]
		}

		secondSlash := strings.IndexByte(second, '/')
		var secondComponent string
		if secondSlash == -1 {
			secondComponent = second
		} else {
			secondComponent = second[:secondSlash]
		}

		if c := cmp(firstComponent, secondComponent); c < 0 {
			return true
		} else if c > 0 {
			return false
		}

		if firstSlash == -1 {
			return true
		} else if secondSlash == -1 {
			return false
		}
		first = first[firstSlash+1:]
		second = second[secondSlash+1:]
	}
}

// isWithin reports whether child names a path at or beneath parent in the
// directory hierarchy.
func isWithin(parent, child string, cmp func(a, b string) int) bool {
	if parent == "" {
		return true
	}
	if cmp(parent, child) == 0 {
		return true
	}
	if len(child) <= len(parent) {
		return false
	}
	if cmp(child[:len(parent)], parent) != 0 {
		return false
	}
	return child[len(parent)] == '/'
}
