// Package seal implements the sealed-directory table (component C):
// registration and lookup of the static/source/exclusive-opaque/shared-
// opaque directory contracts that the observed-input processor consults in
// Pass 0 to classify a raw observation as "in-seal" or "under-source-seal".
package seal

import (
	"fmt"
	"sort"
	"sync"

	"github.com/pipforge/pipcore/pkg/identity"
	"github.com/pipforge/pipcore/pkg/pipid"
)

// Artifact is the opaque handle returned by Reserve and CreateSharedOpaque,
// passed back to AddSeal and LookupByArtifact.
type Artifact struct {
	root identity.ID
	kind Kind
}

// Root returns the interned path identifier of the artifact's root.
func (a Artifact) Root() identity.ID { return a.root }

// Kind returns the artifact's seal kind.
func (a Artifact) Kind() Kind { return a.kind }

// sealedDirectory is the committed record for one root.
type sealedDirectory struct {
	kind      Kind
	pattern   *Pattern
	producers []pipid.PipID
	contents  []identity.ID // sorted; empty for source seals
	committed bool
}

// Table is the sealed-directory registry. It is safe for concurrent use;
// writes to any single root are one-shot (AddSeal may only be called once
// per root) per §5's concurrency model.
type Table struct {
	mu    sync.RWMutex
	paths *identity.Table
	seals map[identity.ID]*sealedDirectory
	// staleMembers records shared-opaque members that have fallen under
	// lazy deletion: a later producer observed the root without
	// recreating them, so they survive on the real file system but must
	// no longer be treated as live members (§4.5).
	staleMembers map[identity.ID]bool
}

// NewTable creates an empty Table backed by paths for root expansion
// (needed by pattern matching, which operates on root-relative text).
func NewTable(paths *identity.Table) *Table {
	return &Table{
		paths:        paths,
		seals:        make(map[identity.ID]*sealedDirectory),
		staleMembers: make(map[identity.ID]bool),
	}
}

// Reserve allocates a fresh non-opaque or exclusive-opaque seal at root,
// owned by producer. It fails if root already has a registered seal (the
// "one producer per exclusive opaque root" invariant, generalized: every
// non-shared kind permits exactly one registration per root).
func (t *Table) Reserve(root identity.ID, kind Kind, producer pipid.PipID, pattern *Pattern) (Artifact, error) {
	if kind == SharedOpaque {
		return Artifact{}, fmt.Errorf("shared-opaque seals must be created with CreateSharedOpaque")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.seals[root]; exists {
		return Artifact{}, fmt.Errorf("duplicate producer for sealed directory %q", t.paths.Expand(root))
	}

	t.seals[root] = &sealedDirectory{
		kind:      kind,
		pattern:   pattern,
		producers: []pipid.PipID{producer},
	}
	return Artifact{root: root, kind: kind}, nil
}

// CreateSharedOpaque assigns (or re-joins) a shared-opaque seal at root for
// producer. Unlike Reserve, it is legal to call this multiple times against
// the same root with different producers, per the "multiple producers
// allowed per shared opaque root" invariant.
func (t *Table) CreateSharedOpaque(root identity.ID, producer pipid.PipID) (Artifact, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	existing, exists := t.seals[root]
	if !exists {
		t.seals[root] = &sealedDirectory{
			kind:      SharedOpaque,
			producers: []pipid.PipID{producer},
		}
		return Artifact{root: root, kind: SharedOpaque}, nil
	}

	if existing.kind != SharedOpaque {
		return Artifact{}, fmt.Errorf("root %q is already sealed as %s, cannot join as shared-opaque", t.paths.Expand(root), existing.kind)
	}
	if existing.committed {
		return Artifact{}, fmt.Errorf("shared-opaque root %q already committed", t.paths.Expand(root))
	}
	existing.producers = append(existing.producers, producer)
	return Artifact{root: root, kind: SharedOpaque}, nil
}

// AddSeal commits the contents of a previously reserved (or created) seal.
// Source seals (SourceTop/SourceAll) must be committed with an empty
// contents slice, since they expose no enumerated contents (§4.2). No
// further mutation is permitted after AddSeal returns successfully.
func (t *Table) AddSeal(artifact Artifact, contents []identity.ID) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	sd, ok := t.seals[artifact.root]
	if !ok {
		return fmt.Errorf("artifact does not refer to a reserved seal")
	}
	if sd.committed {
		return fmt.Errorf("seal at %q already committed", t.paths.Expand(artifact.root))
	}
	if sd.kind.isSource() && len(contents) != 0 {
		return fmt.Errorf("source seal at %q may not declare enumerated contents", t.paths.Expand(artifact.root))
	}

	sorted := make([]identity.ID, len(contents))
	copy(sorted, contents)
	sort.Slice(sorted, func(i, j int) bool { return t.paths.Less(sorted[i], sorted[j]) })
	sd.contents = sorted
	sd.committed = true
	return nil
}

// LookupByArtifact returns the producer(s), kind, and committed contents
// for a sealed directory. The second producer slot is only populated for
// shared-opaque roots with more than one contributing pip.
func (t *Table) LookupByArtifact(artifact Artifact) (producers []pipid.PipID, kind Kind, contents []identity.ID, ok bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	sd, exists := t.seals[artifact.root]
	if !exists {
		return nil, 0, nil, false
	}
	return sd.producers, sd.kind, sd.contents, true
}

// MarkStaleSharedOpaqueMember records child as fallen under lazy deletion
// under the shared-opaque root artifact: a producer's run left child on the
// real file system without recreating it, so it must be excluded from
// future membership fingerprints (§4.5) until some producer recreates it.
func (t *Table) MarkStaleSharedOpaqueMember(artifact Artifact, child identity.ID) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	sd, exists := t.seals[artifact.root]
	if !exists || sd.kind != SharedOpaque {
		return fmt.Errorf("%q is not a registered shared-opaque seal", t.paths.Expand(artifact.root))
	}
	t.staleMembers[child] = true
	return nil
}

// UnmarkStaleSharedOpaqueMember clears child's stale status, used when a
// later producer recreates the member on a subsequent run.
func (t *Table) UnmarkStaleSharedOpaqueMember(child identity.ID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.staleMembers, child)
}

// IsStaleSharedOpaqueMember reports whether child is currently marked stale
// under some shared-opaque root.
func (t *Table) IsStaleSharedOpaqueMember(child identity.ID) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.staleMembers[child]
}
