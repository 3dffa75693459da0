package membership

import (
	"github.com/pipforge/pipcore/pkg/identity"
	"github.com/pipforge/pipcore/pkg/seal"
)

// AlienPolicy decides, for MinimalGraphWithAlienFiles mode, whether a
// real-filesystem entry not already known to the pip view should
// nonetheless be excluded from the membership fingerprint. §4.5 lists the
// exclusions this implements: globally untracked scopes, directories
// created by pips (unless also in the static graph), real-filesystem
// entries reported as outputs (unless flagged as allowed source rewrites),
// shared-opaque-marked files under lazy deletion, and files created after
// build start (unless rewritten sources or directories).
type AlienPolicy interface {
	// Exclude reports whether child (an immediate child of path known to
	// the real filesystem but not to the pip view) must be excluded from
	// an alien-files enumeration.
	Exclude(path, child identity.ID) bool
}

// PermissiveAlienPolicy excludes nothing; every real-filesystem entry not
// already in the pip view is treated as an alien file. Suitable for tests
// and for pips whose mount carries none of the exclusion conditions above.
type PermissiveAlienPolicy struct{}

// Exclude implements AlienPolicy.
func (PermissiveAlienPolicy) Exclude(identity.ID, identity.ID) bool { return false }

// DefaultAlienPolicy implements the §4.5 exclusion list in full. The
// shared-opaque lazy-deletion check is answered directly against Seals,
// since that state is this package's own concern once a seal.Table is in
// hand. The remaining facts -- whether some pip created a path, whether a
// path is in the static graph, whether a path is a declared output, and
// real-filesystem creation times relative to build start -- belong to the
// graph and file-system layers above this package, so they arrive as hook
// functions supplied by whatever constructs the Fingerprinter, mirroring
// observe.Environment's CreatedByAnyPip/MayContainOutputs hooks of the same
// shape.
type DefaultAlienPolicy struct {
	Seals *seal.Table

	// UntrackedScope reports whether child falls under a globally
	// untracked scope (VCS metadata directories and the like), which is
	// excluded unconditionally.
	UntrackedScope func(child identity.ID) bool
	// CreatedByAnyPip reports whether some pip's execution created
	// child, independent of whether it is a node in the static graph.
	CreatedByAnyPip func(child identity.ID) bool
	// InStaticGraph reports whether child is already a node in the
	// static dependency graph; a pip-created child that is also in the
	// static graph is not an alien file.
	InStaticGraph func(child identity.ID) bool
	// IsDeclaredOutput reports whether child is declared as the output
	// of some pip.
	IsDeclaredOutput func(child identity.ID) bool
	// AllowedSourceRewrite reports whether child is a source file some
	// pip is permitted to rewrite in place, exempting it from the
	// declared-output and creation-time exclusions.
	AllowedSourceRewrite func(child identity.ID) bool
	// IsDirectory reports whether child names a directory, exempting it
	// from the creation-time exclusion.
	IsDirectory func(child identity.ID) bool
	// CreatedAfterBuildStart reports whether child's real-filesystem
	// creation time postdates the current build's start.
	CreatedAfterBuildStart func(child identity.ID) bool
}

// Exclude implements AlienPolicy.
func (p DefaultAlienPolicy) Exclude(_, child identity.ID) bool {
	if p.UntrackedScope != nil && p.UntrackedScope(child) {
		return true
	}

	if p.CreatedByAnyPip != nil && p.CreatedByAnyPip(child) {
		if p.InStaticGraph == nil || !p.InStaticGraph(child) {
			return true
		}
	}

	if p.IsDeclaredOutput != nil && p.IsDeclaredOutput(child) {
		if p.AllowedSourceRewrite == nil || !p.AllowedSourceRewrite(child) {
			return true
		}
	}

	if p.Seals != nil && p.Seals.IsStaleSharedOpaqueMember(child) {
		return true
	}

	if p.CreatedAfterBuildStart != nil && p.CreatedAfterBuildStart(child) {
		isDirectory := p.IsDirectory != nil && p.IsDirectory(child)
		rewritten := p.AllowedSourceRewrite != nil && p.AllowedSourceRewrite(child)
		if !isDirectory && !rewritten {
			return true
		}
	}

	return false
}
