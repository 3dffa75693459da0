package fsview

import (
	"context"

	"github.com/pipforge/pipcore/pkg/identity"
	"github.com/pipforge/pipcore/pkg/seal"
)

// PipView is the per-pip projection of existence: declared single-file
// inputs, declared outputs, and the contents of any sealed-directory
// dependencies (but not arbitrary paths under those directories' roots
// unless they are in the committed contents) — §4.3's "declared inputs,
// declared outputs, contents of directory dependencies only".
type PipView struct {
	paths *identity.Table
	seals *seal.Table

	files      map[identity.ID]Existence
	directories []seal.Artifact
}

// NewPipView builds a PipView scoped to the given declared files (inputs
// and outputs, tagged with their existence) and declared sealed-directory
// dependencies, whose committed contents are resolved lazily against
// seals.
func NewPipView(paths *identity.Table, seals *seal.Table, files map[identity.ID]Existence, directories []seal.Artifact) *PipView {
	return &PipView{paths: paths, seals: seals, files: files, directories: directories}
}

// GetExistence implements View.GetExistence.
func (v *PipView) GetExistence(ctx context.Context, path identity.ID) (Existence, error) {
	if existence, ok := v.files[path]; ok {
		return existence, nil
	}
	for _, artifact := range v.directories {
		if path == artifact.Root() {
			return ExistsAsDirectory, nil
		}
		_, _, contents, ok := v.seals.LookupByArtifact(artifact)
		if !ok {
			continue
		}
		for _, content := range contents {
			if content == path {
				return ExistsAsFile, nil
			}
		}
	}
	return Nonexistent, nil
}

// Enumerate implements View.Enumerate, listing the committed contents of
// path when it is one of the pip's declared directory dependency roots.
func (v *PipView) Enumerate(ctx context.Context, path identity.ID, fn ChildFunc) error {
	for _, artifact := range v.directories {
		if artifact.Root() != path {
			continue
		}
		_, _, contents, ok := v.seals.LookupByArtifact(artifact)
		if !ok {
			continue
		}
		for _, content := range contents {
			if v.paths.Parent(content) != path {
				continue
			}
			if err := fn(content, ExistsAsFile); err != nil {
				return err
			}
		}
	}
	return nil
}
