package membership

import (
	"context"
	"testing"

	"github.com/pipforge/pipcore/pkg/fsview"
	"github.com/pipforge/pipcore/pkg/identity"
	"github.com/pipforge/pipcore/pkg/seal"
)

func TestDefaultFingerprintIsZero(t *testing.T) {
	paths := identity.NewTable(identity.CaseSensitive)
	full := fsview.NewDeclaredView()
	fp := NewFingerprinter(paths, full, full, full, nil)

	digest, err := fp.Compute(context.Background(), identity.Root, DefaultFingerprint, nil, false)
	if err != nil {
		t.Fatal(err)
	}
	if !digest.IsZero() {
		t.Fatal("DefaultFingerprint mode must produce the zero fingerprint")
	}
}

func TestSearchPathStableAcrossUnrelatedAdditions(t *testing.T) {
	paths := identity.NewTable(identity.CaseSensitive)
	real := fsview.NewDeclaredView()
	dir := paths.Intern("tools")
	real.Declare(paths, dir, fsview.ExistsAsDirectory)
	real.DeclareFile(paths, paths.Intern("tools/cl.exe"))

	fp := NewFingerprinter(paths, real, real, real, nil)
	filter := NewSearchPathFilter([]string{"cl.exe"})

	before, err := fp.Compute(context.Background(), dir, RealFilesystem, filter, true)
	if err != nil {
		t.Fatal(err)
	}

	real.DeclareFile(paths, paths.Intern("tools/unused.exe"))
	after, err := fp.Compute(context.Background(), dir, RealFilesystem, filter, true)
	if err != nil {
		t.Fatal(err)
	}

	if before != after {
		t.Fatal("search-path fingerprint changed after an irrelevant file was added")
	}
}

func TestFullGraphEnumerationCached(t *testing.T) {
	paths := identity.NewTable(identity.CaseSensitive)
	full := fsview.NewDeclaredView()
	dir := paths.Intern("src")
	full.Declare(paths, dir, fsview.ExistsAsDirectory)
	full.DeclareFile(paths, paths.Intern("src/a.go"))

	fp := NewFingerprinter(paths, full, full, full, nil)

	first, err := fp.Compute(context.Background(), dir, FullGraph, AllowAllFilter{}, false)
	if err != nil {
		t.Fatal(err)
	}

	// Mutate the underlying view; a cached result should not reflect this.
	full.DeclareFile(paths, paths.Intern("src/b.go"))

	second, err := fp.Compute(context.Background(), dir, FullGraph, AllowAllFilter{}, false)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Fatal("FullGraph enumeration should be cached and not reflect a later mutation")
	}
}

func TestMinimalGraphWithAlienFilesExcludesStaleSharedOpaque(t *testing.T) {
	paths := identity.NewTable(identity.CaseSensitive)
	pipView := fsview.NewDeclaredView()
	real := fsview.NewDeclaredView()
	seals := seal.NewTable(paths)

	out := paths.Intern("out")
	pipView.Declare(paths, out, fsview.ExistsAsDirectory)

	real.Declare(paths, out, fsview.ExistsAsDirectory)
	staleA := paths.Intern("out/a")
	staleB := paths.Intern("out/b")
	real.DeclareFile(paths, staleA)
	real.DeclareFile(paths, staleB)

	artifact, err := seals.CreateSharedOpaque(out, 1)
	if err != nil {
		t.Fatal(err)
	}
	if err := seals.MarkStaleSharedOpaqueMember(artifact, staleA); err != nil {
		t.Fatal(err)
	}
	if err := seals.MarkStaleSharedOpaqueMember(artifact, staleB); err != nil {
		t.Fatal(err)
	}

	policy := DefaultAlienPolicy{Seals: seals}
	fp := NewFingerprinter(paths, pipView, real, pipView, policy)

	digest, err := fp.Compute(context.Background(), out, MinimalGraphWithAlienFiles, AllowAllFilter{}, false)
	if err != nil {
		t.Fatal(err)
	}

	empty := NewFingerprinter(paths, pipView, fsview.NewDeclaredView(), pipView, nil)
	emptyDigest, err := empty.Compute(context.Background(), out, MinimalGraphWithAlienFiles, AllowAllFilter{}, false)
	if err != nil {
		t.Fatal(err)
	}
	if digest != emptyDigest {
		t.Fatal("expected stale shared-opaque members to be excluded from the fingerprint")
	}
}

func TestDefaultAlienPolicyExclusions(t *testing.T) {
	paths := identity.NewTable(identity.CaseSensitive)
	seals := seal.NewTable(paths)

	pipCreatedNotStatic := paths.Intern("out/generated-not-static")
	pipCreatedStatic := paths.Intern("out/generated-static")
	declaredOutput := paths.Intern("out/result.bin")
	rewrittenSource := paths.Intern("src/rewritten.go")
	untracked := paths.Intern(".git/HEAD")
	plainAlien := paths.Intern("out/unrelated.tmp")

	policy := DefaultAlienPolicy{
		Seals: seals,
		UntrackedScope: func(id identity.ID) bool {
			return id == untracked
		},
		CreatedByAnyPip: func(id identity.ID) bool {
			return id == pipCreatedNotStatic || id == pipCreatedStatic
		},
		InStaticGraph: func(id identity.ID) bool {
			return id == pipCreatedStatic
		},
		IsDeclaredOutput: func(id identity.ID) bool {
			return id == declaredOutput
		},
		AllowedSourceRewrite: func(id identity.ID) bool {
			return id == rewrittenSource
		},
	}

	cases := []struct {
		name string
		id   identity.ID
		want bool
	}{
		{"untracked scope excluded", untracked, true},
		{"pip-created, not in static graph, excluded", pipCreatedNotStatic, true},
		{"pip-created, in static graph, not excluded", pipCreatedStatic, false},
		{"declared output excluded", declaredOutput, true},
		{"allowed source rewrite not excluded", rewrittenSource, false},
		{"unrelated real file not excluded", plainAlien, false},
	}
	for _, c := range cases {
		if got := policy.Exclude(identity.ID(0), c.id); got != c.want {
			t.Errorf("%s: Exclude() = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestPatternFilterReusesSealPattern(t *testing.T) {
	pattern, err := seal.NewPattern("*.go")
	if err != nil {
		t.Fatal(err)
	}
	filter := NewPatternFilter("*.go", pattern)
	if !filter.Admit("main.go") {
		t.Fatal("expected *.go pattern to admit main.go")
	}
	if filter.Admit("main.txt") {
		t.Fatal("expected *.go pattern to reject main.txt")
	}
}
