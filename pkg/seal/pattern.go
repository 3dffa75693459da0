package seal

import (
	"fmt"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Pattern is a compiled enumeration pattern restricting which paths under a
// source seal's root are actually exposed to dependents (§4.2: "optional
// enumeration patterns"). Matching follows the same leaf-matching fallback
// as the teacher's ignore-pattern matcher: a pattern with no slash also
// matches against a path's base name.
type Pattern struct {
	raw       string
	matchLeaf bool
}

// NewPattern compiles and validates a doublestar glob pattern. An empty
// pattern string means "no restriction" and matches every path.
func NewPattern(raw string) (*Pattern, error) {
	if raw == "" {
		return &Pattern{}, nil
	}
	if _, err := doublestar.Match(raw, "a"); err != nil {
		return nil, fmt.Errorf("invalid enumeration pattern: %w", err)
	}
	return &Pattern{
		raw:       raw,
		matchLeaf: !strings.ContainsRune(raw, '/'),
	}, nil
}

// Matches reports whether relativePath (relative to the seal's root, slash
// separated, no leading slash) is admitted by the pattern.
func (p *Pattern) Matches(relativePath string) bool {
	if p == nil || p.raw == "" {
		return true
	}
	if match, _ := doublestar.Match(p.raw, relativePath); match {
		return true
	}
	if p.matchLeaf && relativePath != "" {
		if match, _ := doublestar.Match(p.raw, path.Base(relativePath)); match {
			return true
		}
	}
	return false
}
