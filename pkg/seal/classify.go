package seal

import (
	"sort"

	"github.com/pipforge/pipcore/pkg/identity"
)

// Classification is the result of classifying a candidate path against the
// sealed-directory table, per §4.4 Pass 0.
type Classification struct {
	// InSeal reports that the path is present in a committed static seal's
	// declared contents (partial, full, or opaque).
	InSeal bool
	// UnderSourceSeal reports that the path falls under a source seal's
	// root and enumeration pattern. When InSeal and UnderSourceSeal are
	// both false, the observation must go through the undeclared-access
	// policy check (§4.4 Pass 2 case 5).
	UnderSourceSeal bool
	// RootOfSourceSeal reports that the path is itself the root of a
	// declared source seal. This is deliberately distinct from
	// UnderSourceSeal: an observation of the root is neither ordinary
	// source-seal membership nor an undeclared access, it is always
	// recorded as a dynamic observation (§9 Open Question 2).
	RootOfSourceSeal bool
	// Seal is the matching artifact, valid whenever InSeal,
	// UnderSourceSeal, or RootOfSourceSeal is true.
	Seal Artifact
}

// contains reports whether candidate appears in the sorted contents slice,
// using the table's path ordering for the binary search.
func (t *Table) contains(contents []identity.ID, candidate identity.ID) bool {
	i := sort.Search(len(contents), func(i int) bool {
		return !t.paths.Less(contents[i], candidate)
	})
	return i < len(contents) && contents[i] == candidate
}

// Classify tests candidate for membership in the sealed-directory table,
// implementing §4.4 Pass 0: first against declared (non-source) seal
// contents, then against source-seal root+pattern containment.
func (t *Table) Classify(candidate identity.ID) Classification {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for root, sd := range t.seals {
		if !sd.committed {
			continue
		}
		if sd.kind.isSource() {
			continue
		}
		if t.contains(sd.contents, candidate) {
			return Classification{InSeal: true, Seal: Artifact{root: root, kind: sd.kind}}
		}
	}

	for root, sd := range t.seals {
		if !sd.kind.isSource() {
			continue
		}
		if root == candidate {
			return Classification{RootOfSourceSeal: true, Seal: Artifact{root: root, kind: sd.kind}}
		}
		if t.matchesSourceSeal(root, sd, candidate) {
			return Classification{UnderSourceSeal: true, Seal: Artifact{root: root, kind: sd.kind}}
		}
	}

	return Classification{}
}

// matchesSourceSeal reports whether candidate is admitted by the source
// seal rooted at root, honoring the top-only/all-directories distinction
// and the optional enumeration pattern.
func (t *Table) matchesSourceSeal(root identity.ID, sd *sealedDirectory, candidate identity.ID) bool {
	// candidate == root is handled by Classify before this is called (§9
	// Open Question 2: the root itself is an explicit dynamic-observation
	// rule, not ordinary source-seal membership).
	if !t.paths.IsWithin(root, candidate) {
		return false
	}
	if sd.kind == SourceTop && t.paths.Parent(candidate) != root {
		return false
	}

	rootPath := t.paths.Expand(root)
	candidatePath := t.paths.Expand(candidate)
	relative := candidatePath
	if rootPath != "" {
		relative = candidatePath[len(rootPath)+1:]
	}
	return sd.pattern.Matches(relative)
}
