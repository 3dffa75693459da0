package seal

import (
	"testing"

	"github.com/pipforge/pipcore/pkg/identity"
	"github.com/pipforge/pipcore/pkg/pipid"
)

func newFixture() (*identity.Table, *Table) {
	paths := identity.NewTable(identity.CaseSensitive)
	return paths, NewTable(paths)
}

func TestReserveDuplicateProducerRejected(t *testing.T) {
	paths, seals := newFixture()
	root := paths.Intern("out")

	if _, err := seals.Reserve(root, Partial, pipid.PipID(1), nil); err != nil {
		t.Fatalf("unexpected error on first reserve: %v", err)
	}
	if _, err := seals.Reserve(root, Partial, pipid.PipID(2), nil); err == nil {
		t.Fatal("expected duplicate producer reservation to fail")
	}
}

func TestSharedOpaqueMultipleProducers(t *testing.T) {
	paths, seals := newFixture()
	root := paths.Intern("shared-out")

	a1, err := seals.CreateSharedOpaque(root, pipid.PipID(1))
	if err != nil {
		t.Fatal(err)
	}
	a2, err := seals.CreateSharedOpaque(root, pipid.PipID(2))
	if err != nil {
		t.Fatal(err)
	}
	if a1.Root() != a2.Root() || a1.Kind() != a2.Kind() {
		t.Fatal("expected both producers to share the same artifact")
	}

	producers, kind, _, ok := seals.LookupByArtifact(a1)
	if !ok {
		t.Fatal("expected lookup to succeed")
	}
	if kind != SharedOpaque {
		t.Fatalf("expected SharedOpaque, got %s", kind)
	}
	if len(producers) != 2 {
		t.Fatalf("expected 2 producers, got %d", len(producers))
	}
}

func TestAddSealInSealMembership(t *testing.T) {
	paths, seals := newFixture()
	root := paths.Intern("out")
	fileA := paths.Intern("out/a.txt")
	fileB := paths.Intern("out/b.txt")
	notSealed := paths.Intern("out/c.txt")

	artifact, err := seals.Reserve(root, Partial, pipid.PipID(1), nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := seals.AddSeal(artifact, []identity.ID{fileB, fileA}); err != nil {
		t.Fatal(err)
	}

	if c := seals.Classify(fileA); !c.InSeal {
		t.Fatal("expected fileA to be classified in-seal")
	}
	if c := seals.Classify(notSealed); c.InSeal {
		t.Fatal("expected unsealed file to not be classified in-seal")
	}
}

func TestSourceSealPatternAndTopOnly(t *testing.T) {
	paths, seals := newFixture()
	root := paths.Intern("src")
	direct := paths.Intern("src/main.go")
	nested := paths.Intern("src/pkg/util.go")

	pattern, err := NewPattern("*.go")
	if err != nil {
		t.Fatal(err)
	}
	artifact, err := seals.Reserve(root, SourceTop, pipid.PipID(1), pattern)
	if err != nil {
		t.Fatal(err)
	}
	if err := seals.AddSeal(artifact, nil); err != nil {
		t.Fatal(err)
	}

	if c := seals.Classify(direct); !c.UnderSourceSeal {
		t.Fatal("expected direct child to match source-top seal")
	}
	if c := seals.Classify(nested); c.UnderSourceSeal {
		t.Fatal("expected nested descendant to NOT match a source-top seal")
	}
}

func TestSourceAllMatchesNestedPaths(t *testing.T) {
	paths, seals := newFixture()
	root := paths.Intern("src")
	nested := paths.Intern("src/pkg/util.go")

	artifact, err := seals.Reserve(root, SourceAll, pipid.PipID(1), nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := seals.AddSeal(artifact, nil); err != nil {
		t.Fatal(err)
	}

	if c := seals.Classify(nested); !c.UnderSourceSeal {
		t.Fatal("expected nested descendant to match a source-all seal")
	}
}

func TestSourceSealRootItselfNotOrdinaryMembership(t *testing.T) {
	paths, seals := newFixture()
	root := paths.Intern("src")

	artifact, err := seals.Reserve(root, SourceAll, pipid.PipID(1), nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := seals.AddSeal(artifact, nil); err != nil {
		t.Fatal(err)
	}

	c := seals.Classify(root)
	if c.UnderSourceSeal {
		t.Fatal("root of a source seal should not match ordinary source-seal membership")
	}
	if !c.RootOfSourceSeal {
		t.Fatal("root of a source seal should be classified as RootOfSourceSeal")
	}
}

func TestAddSealRejectsContentsOnSourceSeal(t *testing.T) {
	paths, seals := newFixture()
	root := paths.Intern("src")
	child := paths.Intern("src/a.go")

	artifact, err := seals.Reserve(root, SourceAll, pipid.PipID(1), nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := seals.AddSeal(artifact, []identity.ID{child}); err == nil {
		t.Fatal("expected source seal with declared contents to be rejected")
	}
}

func TestAddSealCannotBeCalledTwice(t *testing.T) {
	paths, seals := newFixture()
	root := paths.Intern("out")

	artifact, err := seals.Reserve(root, Partial, pipid.PipID(1), nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := seals.AddSeal(artifact, nil); err != nil {
		t.Fatal(err)
	}
	if err := seals.AddSeal(artifact, nil); err == nil {
		t.Fatal("expected second AddSeal call to fail")
	}
}
