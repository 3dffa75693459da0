// Package membership implements the directory-membership fingerprinter
// (component E): deterministic enumeration and hashing strategies that
// keep a pip's fingerprint stable across unrelated filesystem changes
// while staying sound in the presence of dynamically produced outputs
// (§4.5).
package membership

// Mode selects which members contribute to a directory's membership
// fingerprint.
type Mode uint8

const (
	// DefaultFingerprint contributes no members; the fingerprint is the
	// zero digest. Used when a path is outside any hashable mount or the
	// mount is non-readable.
	DefaultFingerprint Mode = iota
	// FullGraph fingerprints all children known to the full-graph view.
	// Used for read-only mounts under RealAndPipGraph configuration with
	// static enumeration.
	FullGraph
	// MinimalGraph fingerprints only children known to the pip view
	// (declared dependencies plus outputs of immediate dependencies).
	// Used under RealAndMinimalPipGraph configuration, or when forced.
	MinimalGraph
	// MinimalGraphWithAlienFiles fingerprints the pip-view children plus
	// real-filesystem entries that are not outputs of other pips and not
	// stale shared-opaque files. Used when a pip allows undeclared reads,
	// or when configured always.
	MinimalGraphWithAlienFiles
	// RealFilesystem fingerprints a live enumeration of the real
	// filesystem. The default for read-only mounts without an overriding
	// rule.
	RealFilesystem
)

// String returns a human-readable name for the mode.
func (m Mode) String() string {
	switch m {
	case DefaultFingerprint:
		return "default"
	case FullGraph:
		return "full-graph"
	case MinimalGraph:
		return "minimal-graph"
	case MinimalGraphWithAlienFiles:
		return "minimal-graph-with-alien-files"
	case RealFilesystem:
		return "real-filesystem"
	default:
		return "unknown"
	}
}

// cacheable reports whether a mode's result may be memoized in the shared
// enumeration cache. Minimal-graph modes are inherently per-pip (their
// result depends on which pip is asking) and so are never cached; the
// caller is also responsible for never caching a search-path enumeration,
// which depends on the pip's referenced file-name atoms.
func (m Mode) cacheable() bool {
	return m == FullGraph || m == RealFilesystem
}
