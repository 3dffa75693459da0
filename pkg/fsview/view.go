// Package fsview implements the file-system view component (D): the three
// coexisting path-existence views (Real, FullGraph, Output) plus the
// per-pip scoped Pip view, all operating over interned path identifiers
// from pkg/identity.
package fsview

import (
	"context"

	"github.com/pipforge/pipcore/pkg/fingerprint"
	"github.com/pipforge/pipcore/pkg/identity"
)

// Existence mirrors fingerprint.ExistenceTag's three states plus the
// possibility of a query failure, which every view surfaces as an error
// rather than folding into the tag.
type Existence = fingerprint.ExistenceTag

const (
	ExistsAsFile      = fingerprint.ExistsAsFile
	ExistsAsDirectory = fingerprint.ExistsAsDirectory
	Nonexistent       = fingerprint.Nonexistent
)

// ChildFunc is invoked by Enumerate for each immediate child a view knows
// about. Returning a non-nil error stops enumeration and propagates the
// error to the Enumerate caller.
type ChildFunc func(child identity.ID, existence Existence) error

// View is implemented by each of Real, FullGraph, Output, and Pip.
type View interface {
	// GetExistence returns the existence state of path according to this
	// view.
	GetExistence(ctx context.Context, path identity.ID) (Existence, error)
	// Enumerate invokes fn for each immediate child of path known to this
	// view. It is a no-op (not an error) if path is not a directory in
	// this view.
	Enumerate(ctx context.Context, path identity.ID, fn ChildFunc) error
}
