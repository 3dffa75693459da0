package identity

import (
	"strings"
	"sync"

	"golang.org/x/text/unicode/norm"
)

// ID is an opaque integer identifier for an interned path. The zero ID always
// refers to the root path; identifiers are never reused once assigned, so
// equality of IDs is equivalent to textual equality of the paths they denote
// under the table's configured case sensitivity.
type ID int32

// Root is the identifier of the interning root ("").
const Root ID = 0

// CaseSensitivity selects the comparator a Table uses for textual equality.
type CaseSensitivity uint8

const (
	// CaseSensitive compares path components byte-for-byte, matching the
	// default behavior of Linux filesystems.
	CaseSensitive CaseSensitivity = iota
	// CaseInsensitive folds ASCII case before comparing, matching the
	// default behavior of Windows and (most configurations of) macOS
	// filesystems.
	CaseInsensitive
)

func (c CaseSensitivity) compare(a, b string) int {
	if c == CaseInsensitive {
		return strings.Compare(strings.ToLower(a), strings.ToLower(b))
	}
	return strings.Compare(a, b)
}

// entry is the per-identifier record held by a Table.
type entry struct {
	path   string
	parent ID
}

// Table interns root-relative, slash-separated paths into compact integer
// identifiers. It is safe for concurrent use. Interning never fails except
// under allocation exhaustion; expansion never fails for a valid ID obtained
// from the same Table.
type Table struct {
	mu   sync.RWMutex
	cs   CaseSensitivity
	byID []entry
	byKey map[string]ID
}

// NewTable constructs an empty Table pre-seeded with the root identifier,
// using the given case sensitivity for all comparisons and lookups.
func NewTable(cs CaseSensitivity) *Table {
	t := &Table{
		cs:    cs,
		byID:  make([]entry, 1, 64),
		byKey: make(map[string]ID, 64),
	}
	t.byID[0] = entry{path: "", parent: Root}
	t.byKey[t.key("")] = Root
	return t
}

// key normalizes a path for use as a lookup key: NFC-recomposed (filesystems
// that decompose Unicode on disk, notably HFS+, report decomposed names; the
// table always interns the composed form so that two textually-equal paths
// reported in different normalization forms collide, per the content hashing
// helpers' path-aware combining contract) and case-folded if the table is
// case-insensitive.
func (t *Table) key(p string) string {
	p = norm.NFC.String(p)
	if t.cs == CaseInsensitive {
		p = strings.ToLower(p)
	}
	return p
}

// Intern returns the identifier for p, allocating a fresh one (and interning
// every ancestor along the way) if p has not been seen before. p must be a
// slash-separated, root-relative path; the root path is the empty string.
func (t *Table) Intern(p string) ID {
	if p == "" {
		return Root
	}

	k := t.key(p)

	t.mu.RLock()
	if id, ok := t.byKey[k]; ok {
		t.mu.RUnlock()
		return id
	}
	t.mu.RUnlock()

	t.mu.Lock()
	defer t.mu.Unlock()

	return t.internLocked(p, k)
}

// internLocked performs the actual allocation under the write lock,
// recursively interning parent directories first so that Parent is always
// resolvable for any returned identifier.
func (t *Table) internLocked(p, k string) ID {
	if id, ok := t.byKey[k]; ok {
		return id
	}

	var parent ID
	if dir := pathDir(p); dir != "" {
		parent = t.internLocked(dir, t.key(dir))
	}

	id := ID(len(t.byID))
	t.byID = append(t.byID, entry{path: p, parent: parent})
	t.byKey[k] = id
	return id
}

// Lookup returns the identifier for p without interning it, reporting
// ok=false if p has not previously been interned.
func (t *Table) Lookup(p string) (ID, bool) {
	if p == "" {
		return Root, true
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	id, ok := t.byKey[t.key(p)]
	return id, ok
}

// Expand returns the textual path for id. It panics if id was not obtained
// from this Table, since that indicates a programming error rather than a
// recoverable condition.
func (t *Table) Expand(id ID) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.byID[id].path
}

// Parent returns the identifier of id's parent directory. The root's parent
// is the root itself.
func (t *Table) Parent(id ID) ID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.byID[id].parent
}

// Name returns the final path component of id, equivalent to
// PathBase(t.Expand(id)) but without an intermediate lock round-trip.
func (t *Table) Name(id ID) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return PathBase(t.byID[id].path)
}

// IsWithin reports whether child names a path at or beneath parent in the
// directory hierarchy (or is parent itself), under the table's configured
// case sensitivity.
func (t *Table) IsWithin(parent, child ID) bool {
	t.mu.RLock()
	parentPath := t.byID[parent].path
	childPath := t.byID[child].path
	t.mu.RUnlock()
	return isWithin(parentPath, childPath, t.cs.compare)
}

// Less reports whether a sorts before b in expanded-path (depth-first)
// order — the canonical order used for path-set entries and typed
// observations.
func (t *Table) Less(a, b ID) bool {
	t.mu.RLock()
	aPath := t.byID[a].path
	bPath := t.byID[b].path
	t.mu.RUnlock()
	return pathLess(aPath, bPath, t.cs.compare)
}

// Ancestors returns the bottom-up chain of ancestor identifiers of id,
// excluding id itself and including the root.
func (t *Table) Ancestors(id ID) []ID {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var ancestors []ID
	for cur := id; cur != Root; {
		parent := t.byID[cur].parent
		ancestors = append(ancestors, parent)
		cur = parent
	}
	return ancestors
}

// Join interns and returns the identifier for the child named leaf under
// parent.
func (t *Table) Join(parent ID, leaf string) ID {
	base := t.Expand(parent)
	return t.Intern(pathJoin(base, leaf))
}
