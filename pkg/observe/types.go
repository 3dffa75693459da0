// Package observe implements the observed-input processor (component F):
// the three-pass algorithm that maps a pip's raw, sandbox-reported file
// accesses (or a reconstructed sequence from a stored path set) into a
// canonical, ordered typed path set and a strong-fingerprint seed (§4.4).
//
// This is the hardest part of the engine and is deliberately built on the
// standard library only (see DESIGN.md): it is a classification state
// machine over data already produced by pkg/identity, pkg/seal,
// pkg/fsview, and pkg/membership, not a place where a third-party library
// has anything to offer beyond what those packages already provide.
package observe

import (
	"regexp"

	"github.com/pipforge/pipcore/pkg/fingerprint"
	"github.com/pipforge/pipcore/pkg/identity"
	"github.com/pipforge/pipcore/pkg/membership"
)

// Flags classifies a raw observation's requested access mode. They are
// combinable (a path may be both a directory-location probe and an
// enumeration).
type Flags uint8

const (
	// FileProbe indicates the access is a bare existence/type probe.
	FileProbe Flags = 1 << iota
	// DirectoryLocation indicates the access treats the path as a
	// directory location (not necessarily enumerating it).
	DirectoryLocation
	// Enumeration indicates the access enumerated the directory's
	// children.
	Enumeration
	// HashingRequired indicates the access requires the path's content to
	// be hashed (a real read, not merely a probe).
	HashingRequired
)

// Has reports whether all bits in other are set in f.
func (f Flags) Has(other Flags) bool { return f&other == other }

// RawObservation is a single sandbox-reported (or reconstructed) file
// access, per §3's "Observation" entity.
type RawObservation struct {
	Path  identity.ID
	Flags Flags
	// SearchPath marks an Enumeration observation as a search-path
	// enumeration (§4.4 "Search-path handling"); only meaningful when
	// Flags.Has(Enumeration).
	SearchPath bool
}

// Kind identifies which variant of TypedObservation a path resolved to.
type Kind uint8

const (
	// AbsentPathProbe records that path was probed and does not exist.
	AbsentPathProbe Kind = iota
	// FileContentRead records that path's content was read and hashed.
	FileContentRead
	// ExistingFileProbe records that path was probed and exists as a file,
	// without its content being read.
	ExistingFileProbe
	// ExistingDirectoryProbe records that path was probed and exists as a
	// directory, without enumeration.
	ExistingDirectoryProbe
	// DirectoryEnumeration records that path's directory contents were
	// enumerated, carrying a membership fingerprint.
	DirectoryEnumeration
)

// String returns a human-readable name for the kind.
func (k Kind) String() string {
	switch k {
	case AbsentPathProbe:
		return "absent-path-probe"
	case FileContentRead:
		return "file-content-read"
	case ExistingFileProbe:
		return "existing-file-probe"
	case ExistingDirectoryProbe:
		return "existing-directory-probe"
	case DirectoryEnumeration:
		return "directory-enumeration"
	default:
		return "unknown"
	}
}

// TypedObservation is the result of classifying a single path through
// Pass 2 (and any reclassification), per §3's "Typed observation" entity.
type TypedObservation struct {
	Kind Kind
	Path identity.ID
	// Hash is populated for FileContentRead.
	Hash fingerprint.Hash
	// Membership is populated for DirectoryEnumeration.
	Membership fingerprint.Fingerprint
	// Flags is the original (possibly reclassification-adjusted) access
	// flags, retained in the path-set entry.
	Flags Flags
	// EnumeratePattern is the optional enumeration-pattern regex text
	// associated with a directory-enumeration entry, persisted in the path
	// set so that cache-lookup reconstruction can reapply the same
	// pattern (§6 "Persisted state").
	EnumeratePattern string
}

// PathSetEntry is a single persisted record in a path set, per §3.
type PathSetEntry struct {
	Path             identity.ID
	Flags            Flags
	EnumeratePattern string
	Kind             Kind
	Hash             fingerprint.Hash
	Membership       fingerprint.Fingerprint
}

// PathSet is the canonical, ordered record of everything a pip looked at
// (§3, §6). Entries are sorted by expanded path; AccessedFileNames is the
// sorted set of file-name atoms actually referenced, used to drive
// search-path filters on replay.
type PathSet struct {
	Entries           []PathSetEntry
	AccessedFileNames []string
	UnsafeOptionsTag  string
}

// Result is the output of a successful Process call (§4.4 "Outputs").
type Result struct {
	PathSet              PathSet
	DynamicObservations  []identity.ID
	AllowedUndeclaredReads map[identity.ID]bool
}

// ReclassifyTarget is the outcome of a reclassification rule match: either
// dropping the observation entirely or retyping it to one of the five
// typed-observation kinds.
type ReclassifyTarget struct {
	Drop bool
	Kind Kind
}

// Rule is a single reclassification rule (§4.4 "Reclassification"): a
// name, a path regex, the set of observation kinds it applies to, and its
// target.
type Rule struct {
	Name             string
	PathPattern      *regexp.Regexp
	ApplicableKinds  []Kind
	Target           ReclassifyTarget
}

func (r *Rule) appliesToKind(k Kind) bool {
	if len(r.ApplicableKinds) == 0 {
		return true
	}
	for _, applicable := range r.ApplicableKinds {
		if applicable == k {
			return true
		}
	}
	return false
}

// membershipModeProvider describes a source of membership.Mode values for
// directory observations (§4.5). Nothing in this package uses it; the
// Environment's MembershipModeOf field picks the mode instead.
type membershipModeProvider interface {
	MembershipMode(path identity.ID) membership.Mode
}
