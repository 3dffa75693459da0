package fsview

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/pipforge/pipcore/pkg/identity"
	"github.com/pipforge/pipcore/pkg/logging"
	"github.com/pipforge/pipcore/pkg/seal"
)

func TestRealViewGetExistence(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}

	paths := identity.NewTable(identity.CaseSensitive)
	view := NewRealView(dir, paths, logging.RootLogger)

	file := paths.Intern("a.txt")
	sub := paths.Intern("sub")
	missing := paths.Intern("missing")

	ctx := context.Background()
	if e, err := view.GetExistence(ctx, file); err != nil || e != ExistsAsFile {
		t.Fatalf("expected file to exist, got %v err=%v", e, err)
	}
	if e, err := view.GetExistence(ctx, sub); err != nil || e != ExistsAsDirectory {
		t.Fatalf("expected sub to be a directory, got %v err=%v", e, err)
	}
	if e, err := view.GetExistence(ctx, missing); err != nil || e != Nonexistent {
		t.Fatalf("expected missing to be nonexistent, got %v err=%v", e, err)
	}
}

func TestRealViewDeferredBypassesCache(t *testing.T) {
	dir := t.TempDir()
	paths := identity.NewTable(identity.CaseSensitive)
	view := NewRealView(dir, paths, logging.RootLogger)

	opaque := paths.Intern("od")
	child := paths.Intern("od/out.txt")
	view.MarkDeferred(opaque)

	ctx := context.Background()
	if e, err := view.GetExistence(ctx, child); err != nil || e != Nonexistent {
		t.Fatalf("expected child to be nonexistent before materialization, got %v err=%v", e, err)
	}

	if err := os.MkdirAll(filepath.Join(dir, "od"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "od", "out.txt"), []byte("y"), 0o644); err != nil {
		t.Fatal(err)
	}

	if e, err := view.GetExistence(ctx, child); err != nil || e != ExistsAsFile {
		t.Fatalf("expected deferred path to bypass cache and see fresh state, got %v err=%v", e, err)
	}
}

func TestDeclaredViewEnumerate(t *testing.T) {
	paths := identity.NewTable(identity.CaseSensitive)
	view := NewDeclaredView()

	dir := paths.Intern("out")
	a := paths.Intern("out/a")
	b := paths.Intern("out/b")

	view.Declare(paths, dir, ExistsAsDirectory)
	view.DeclareFile(paths, a)
	view.DeclareFile(paths, b)

	seen := map[string]bool{}
	err := view.Enumerate(context.Background(), dir, func(child identity.ID, existence Existence) error {
		seen[paths.Expand(child)] = true
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if !seen["out/a"] || !seen["out/b"] {
		t.Fatalf("expected both children to be enumerated, got %v", seen)
	}
}

func TestPipViewScopesToDeclaredContent(t *testing.T) {
	paths := identity.NewTable(identity.CaseSensitive)
	seals := seal.NewTable(paths)

	dirRoot := paths.Intern("deps")
	depFile := paths.Intern("deps/lib.go")
	outside := paths.Intern("deps/other.go")

	artifact, err := seals.Reserve(dirRoot, seal.Partial, 1, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := seals.AddSeal(artifact, []identity.ID{depFile}); err != nil {
		t.Fatal(err)
	}

	input := paths.Intern("input.txt")
	files := map[identity.ID]Existence{input: ExistsAsFile}
	view := NewPipView(paths, seals, files, []seal.Artifact{artifact})

	ctx := context.Background()
	if e, _ := view.GetExistence(ctx, input); e != ExistsAsFile {
		t.Fatal("expected declared input to exist")
	}
	if e, _ := view.GetExistence(ctx, depFile); e != ExistsAsFile {
		t.Fatal("expected sealed dependency content to exist")
	}
	if e, _ := view.GetExistence(ctx, outside); e != Nonexistent {
		t.Fatal("expected path outside declared contents to be nonexistent in the pip view")
	}
}
