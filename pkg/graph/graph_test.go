package graph

import (
	"testing"

	"github.com/pipforge/pipcore/pkg/identity"
	"github.com/pipforge/pipcore/pkg/pipid"
	"github.com/pipforge/pipcore/pkg/seal"
)

func newFixture() (*identity.Table, *Table) {
	paths := identity.NewTable(identity.CaseSensitive)
	seals := seal.NewTable(paths)
	ids := pipid.NewGenerator()
	return paths, NewTable(paths, seals, ids, Salts{Configuration: "v1"})
}

func TestAddProcessPipAssignsIncreasingIDs(t *testing.T) {
	paths, g := newFixture()
	out1 := paths.Intern("out1")
	out2 := paths.Intern("out2")

	id1, err := g.AddProcessPip(DeclaredInputs{}, DeclaredOutputs{Files: []identity.ID{out1}}, nil, nil, ProcessOptions{})
	if err != nil {
		t.Fatal(err)
	}
	id2, err := g.AddProcessPip(DeclaredInputs{}, DeclaredOutputs{Files: []identity.ID{out2}}, nil, nil, ProcessOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if id2 <= id1 {
		t.Fatalf("expected monotonically increasing pip ids, got %d then %d", id1, id2)
	}
}

func TestAddProcessPipRejectsDuplicateProducer(t *testing.T) {
	paths, g := newFixture()
	out := paths.Intern("shared-out")

	if _, err := g.AddProcessPip(DeclaredInputs{}, DeclaredOutputs{Files: []identity.ID{out}}, nil, nil, ProcessOptions{}); err != nil {
		t.Fatal(err)
	}
	if _, err := g.AddProcessPip(DeclaredInputs{}, DeclaredOutputs{Files: []identity.ID{out}}, nil, nil, ProcessOptions{}); err == nil {
		t.Fatal("expected a duplicate-producer error for a second pip producing the same output")
	}
}

func TestSharedOpaqueAllowsMultipleProducers(t *testing.T) {
	paths, g := newFixture()
	root := paths.Intern("out")
	artifact, err := g.seals.CreateSharedOpaque(root, pipid.Invalid)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := g.AddProcessPip(DeclaredInputs{}, DeclaredOutputs{OpaqueRoots: []seal.Artifact{artifact}}, nil, nil, ProcessOptions{}); err != nil {
		t.Fatal(err)
	}
	if _, err := g.AddProcessPip(DeclaredInputs{}, DeclaredOutputs{OpaqueRoots: []seal.Artifact{artifact}}, nil, nil, ProcessOptions{}); err != nil {
		t.Fatal("expected shared-opaque output to allow a second producer:", err)
	}
}

func TestStaticFingerprintDiffersByOutputs(t *testing.T) {
	paths, g := newFixture()
	in := paths.Intern("src/a.go")
	out1 := paths.Intern("out1")
	out2 := paths.Intern("out2")

	id1, err := g.AddCopyPip(in, out1, []string{"tagged"})
	if err != nil {
		t.Fatal(err)
	}
	id2, err := g.AddCopyPip(in, out2, []string{"tagged"})
	if err != nil {
		t.Fatal(err)
	}

	p1, _ := g.Get(id1)
	p2, _ := g.Get(id2)
	// The two pips declare different outputs, so their fingerprints must
	// differ even though everything else about the declaration matches.
	if p1.StaticFingerprint == p2.StaticFingerprint {
		t.Fatal("expected distinct static fingerprints for pips with different outputs")
	}
}

func TestStaticFingerprintDiffersByEnvironmentVariables(t *testing.T) {
	paths, g := newFixture()
	out1 := paths.Intern("out1")
	out2 := paths.Intern("out2")

	id1, err := g.AddProcessPip(
		DeclaredInputs{}, DeclaredOutputs{Files: []identity.ID{out1}}, nil, nil,
		ProcessOptions{EnvironmentVariables: map[string]string{"PATH": "/usr/bin"}},
	)
	if err != nil {
		t.Fatal(err)
	}
	id2, err := g.AddProcessPip(
		DeclaredInputs{}, DeclaredOutputs{Files: []identity.ID{out2}}, nil, nil,
		ProcessOptions{EnvironmentVariables: map[string]string{"PATH": "/opt/bin"}},
	)
	if err != nil {
		t.Fatal(err)
	}

	p1, _ := g.Get(id1)
	p2, _ := g.Get(id2)
	if p1.StaticFingerprint == p2.StaticFingerprint {
		t.Fatal("expected distinct static fingerprints for pips with different declared environments")
	}
}
