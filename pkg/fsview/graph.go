package fsview

import (
	"context"
	"sync"

	"github.com/pipforge/pipcore/pkg/identity"
)

// DeclaredView is a simple in-memory existence view populated by explicit
// Declare calls as pips are added to the graph. It backs both the
// FullGraph view (existence as declared by the entire pip graph: sources,
// outputs, directories) and the Output view (existence of produced outputs
// only) — the two views differ only in which calls populate them, not in
// their implementation.
type DeclaredView struct {
	mu       sync.RWMutex
	existence map[identity.ID]Existence
	children  map[identity.ID]map[identity.ID]bool
}

// NewDeclaredView creates an empty DeclaredView.
func NewDeclaredView() *DeclaredView {
	return &DeclaredView{
		existence: make(map[identity.ID]Existence),
		children:  make(map[identity.ID]map[identity.ID]bool),
	}
}

// Declare records that path exists with the given existence tag. Only a
// path declared ExistsAsDirectory is linked into its parent's child set (so
// that Enumerate can find it); other tags are recorded without linking.
func (v *DeclaredView) Declare(paths *identity.Table, path identity.ID, existence Existence) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.existence[path] = existence
	if existence != ExistsAsDirectory {
		return
	}
	if _, ok := v.children[path]; !ok {
		v.children[path] = make(map[identity.ID]bool)
	}

	if path == identity.Root {
		return
	}
	parent := paths.Parent(path)
	if _, ok := v.children[parent]; !ok {
		v.children[parent] = make(map[identity.ID]bool)
	}
	v.children[parent][path] = true
}

// DeclareFile is a convenience wrapper for Declare(paths, path, ExistsAsFile)
// that also links the file into its parent's child set, since only
// directory children are linked by the ExistsAsDirectory branch above.
func (v *DeclaredView) DeclareFile(paths *identity.Table, path identity.ID) {
	v.mu.Lock()
	v.existence[path] = ExistsAsFile
	v.mu.Unlock()

	if path == identity.Root {
		return
	}
	parent := paths.Parent(path)
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.children[parent]; !ok {
		v.children[parent] = make(map[identity.ID]bool)
	}
	v.children[parent][path] = true
}

// GetExistence implements View.GetExistence.
func (v *DeclaredView) GetExistence(ctx context.Context, path identity.ID) (Existence, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if existence, ok := v.existence[path]; ok {
		return existence, nil
	}
	return Nonexistent, nil
}

// Enumerate implements View.Enumerate.
func (v *DeclaredView) Enumerate(ctx context.Context, path identity.ID, fn ChildFunc) error {
	v.mu.RLock()
	children := make([]identity.ID, 0, len(v.children[path]))
	for child := range v.children[path] {
		children = append(children, child)
	}
	existence := v.existence
	v.mu.RUnlock()

	for _, child := range children {
		if err := fn(child, existence[child]); err != nil {
			return err
		}
	}
	return nil
}
