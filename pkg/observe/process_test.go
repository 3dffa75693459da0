package observe

import (
	"context"
	"regexp"
	"testing"

	"github.com/pipforge/pipcore/pkg/fingerprint"
	"github.com/pipforge/pipcore/pkg/fsview"
	"github.com/pipforge/pipcore/pkg/identity"
	"github.com/pipforge/pipcore/pkg/membership"
	"github.com/pipforge/pipcore/pkg/perrors"
	"github.com/pipforge/pipcore/pkg/seal"
)

func mustRegexp(t *testing.T, expr string) *regexp.Regexp {
	t.Helper()
	re, err := regexp.Compile(expr)
	if err != nil {
		t.Fatal(err)
	}
	return re
}

// fakeQuerier returns pre-recorded content infos, exercising Pass 1 without
// touching the real file system.
type fakeQuerier struct {
	infos map[identity.ID]fingerprint.FileContentInfo
}

func (q *fakeQuerier) Query(_ context.Context, path identity.ID) (fingerprint.FileContentInfo, error) {
	return q.infos[path], nil
}

func newFixture(t *testing.T) (*identity.Table, *seal.Table, *fsview.DeclaredView, *Environment) {
	t.Helper()
	paths := identity.NewTable(identity.CaseSensitive)
	seals := seal.NewTable(paths)
	real := fsview.NewDeclaredView()

	views := Views{Output: fsview.NewDeclaredView(), Real: real, FullGraph: real, Pip: real}
	fp := membership.NewFingerprinter(paths, views.FullGraph, views.Real, views.Pip, nil)
	env := NewPostExecutionEnvironment(paths, seals, views, fp, false)
	env.AllowUndeclaredSourceReads = true
	env.CreatedByAnyPip = func(identity.ID) bool { return false }
	env.MayContainOutputs = func(identity.ID) bool { return false }
	env.MembershipModeOf = func(identity.ID) membership.Mode { return membership.RealFilesystem }
	return paths, seals, real, env
}

func TestProcessExistingFileProbe(t *testing.T) {
	paths, _, real, env := newFixture(t)
	file := paths.Intern("a.txt")
	real.DeclareFile(paths, file)

	obs := []RawObservation{{Path: file, Flags: FileProbe}}
	querier := &fakeQuerier{infos: map[identity.ID]fingerprint.FileContentInfo{}}

	result, err := Process(context.Background(), env, obs, querier, RuleSet{})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.PathSet.Entries) != 1 || result.PathSet.Entries[0].Kind != ExistingFileProbe {
		t.Fatalf("expected a single existing-file-probe entry, got %+v", result.PathSet.Entries)
	}
}

func TestProcessFileContentRead(t *testing.T) {
	paths, _, real, env := newFixture(t)
	file := paths.Intern("a.txt")
	real.DeclareFile(paths, file)
	hash := fingerprint.Hash{Algorithm: fingerprint.AlgorithmSHA256, Digest: []byte{1, 2, 3}}

	obs := []RawObservation{{Path: file, Flags: HashingRequired}}
	querier := &fakeQuerier{infos: map[identity.ID]fingerprint.FileContentInfo{
		file: {Hash: hash, Existence: fingerprint.ExistsAsFile, Length: 3, LengthKnown: true},
	}}

	result, err := Process(context.Background(), env, obs, querier, RuleSet{})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.PathSet.Entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(result.PathSet.Entries))
	}
	entry := result.PathSet.Entries[0]
	if entry.Kind != FileContentRead || !entry.Hash.Equal(hash) {
		t.Fatalf("expected file-content-read with matching hash, got %+v", entry)
	}
}

func TestProcessAbsentPathProbe(t *testing.T) {
	paths, _, _, env := newFixture(t)
	missing := paths.Intern("missing.txt")

	obs := []RawObservation{{Path: missing, Flags: FileProbe}}
	querier := &fakeQuerier{infos: map[identity.ID]fingerprint.FileContentInfo{}}

	result, err := Process(context.Background(), env, obs, querier, RuleSet{})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.PathSet.Entries) != 1 || result.PathSet.Entries[0].Kind != AbsentPathProbe {
		t.Fatalf("expected a single absent-path-probe entry, got %+v", result.PathSet.Entries)
	}
}

func TestProcessDirectoryEnumeration(t *testing.T) {
	paths, _, real, env := newFixture(t)
	dir := paths.Intern("src")
	real.Declare(paths, dir, fsview.ExistsAsDirectory)
	real.DeclareFile(paths, paths.Intern("src/a.go"))
	real.DeclareFile(paths, paths.Intern("src/b.go"))

	obs := []RawObservation{{Path: dir, Flags: DirectoryLocation | Enumeration}}
	querier := &fakeQuerier{infos: map[identity.ID]fingerprint.FileContentInfo{}}

	result, err := Process(context.Background(), env, obs, querier, RuleSet{})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.PathSet.Entries) != 1 || result.PathSet.Entries[0].Kind != DirectoryEnumeration {
		t.Fatalf("expected a single directory-enumeration entry, got %+v", result.PathSet.Entries)
	}
	if result.PathSet.Entries[0].Membership.IsZero() {
		t.Fatal("expected a non-zero membership fingerprint for a populated directory")
	}
}

func TestProcessAbsentPathElisionUnderRealFilesystemEnumeration(t *testing.T) {
	paths, _, real, env := newFixture(t)
	dir := paths.Intern("src")
	real.Declare(paths, dir, fsview.ExistsAsDirectory)
	real.DeclareFile(paths, paths.Intern("src/a.go"))
	missing := paths.Intern("src/missing.go")

	obs := []RawObservation{
		{Path: dir, Flags: DirectoryLocation | Enumeration},
		{Path: missing, Flags: FileProbe},
	}
	querier := &fakeQuerier{infos: map[identity.ID]fingerprint.FileContentInfo{}}

	result, err := Process(context.Background(), env, obs, querier, RuleSet{})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.PathSet.Entries) != 1 {
		t.Fatalf("expected the absent probe under an enumerated parent to be elided, got %+v", result.PathSet.Entries)
	}
	if result.PathSet.Entries[0].Kind != DirectoryEnumeration {
		t.Fatalf("expected the surviving entry to be the directory enumeration, got %+v", result.PathSet.Entries[0])
	}
}

func TestProcessCacheLookupDoesNotElide(t *testing.T) {
	paths, seals, real, _ := newFixture(t)
	dir := paths.Intern("src")
	real.Declare(paths, dir, fsview.ExistsAsDirectory)
	real.DeclareFile(paths, paths.Intern("src/a.go"))
	missing := paths.Intern("src/missing.go")

	views := Views{Output: fsview.NewDeclaredView(), Real: real, FullGraph: real, Pip: real}
	fp := membership.NewFingerprinter(paths, views.FullGraph, views.Real, views.Pip, nil)
	env := NewCacheLookupEnvironment(paths, seals, views, fp)
	env.AllowUndeclaredSourceReads = true
	env.CreatedByAnyPip = func(identity.ID) bool { return false }
	env.MayContainOutputs = func(identity.ID) bool { return false }
	env.MembershipModeOf = func(identity.ID) membership.Mode { return membership.RealFilesystem }

	obs := []RawObservation{
		{Path: dir, Flags: DirectoryLocation | Enumeration},
		{Path: missing, Flags: FileProbe},
	}
	querier := &fakeQuerier{infos: map[identity.ID]fingerprint.FileContentInfo{}}

	result, err := Process(context.Background(), env, obs, querier, RuleSet{})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.PathSet.Entries) != 2 {
		t.Fatalf("cache-lookup runs must not elide; expected 2 entries, got %+v", result.PathSet.Entries)
	}
}

func TestProcessUntrackedFileAborts(t *testing.T) {
	paths, _, real, env := newFixture(t)
	file := paths.Intern("a.txt")
	real.DeclareFile(paths, file)

	obs := []RawObservation{{Path: file, Flags: HashingRequired}}
	querier := &fakeQuerier{infos: map[identity.ID]fingerprint.FileContentInfo{
		file: {Hash: fingerprint.UntrackedFile(), Existence: fingerprint.ExistsAsFile},
	}}

	_, err := Process(context.Background(), env, obs, querier, RuleSet{})
	if err == nil {
		t.Fatal("expected an error for an UntrackedFile hash")
	}
	if code, ok := perrors.CodeOf(err); !ok || code != perrors.CodeHashFailure {
		t.Fatalf("expected CodeHashFailure, got %v (ok=%v)", code, ok)
	}
}

func TestProcessAccessPolicyViolationWithoutUndeclaredReads(t *testing.T) {
	paths, _, real, env := newFixture(t)
	env.AllowUndeclaredSourceReads = false
	file := paths.Intern("a.txt")
	real.DeclareFile(paths, file)

	obs := []RawObservation{{Path: file, Flags: FileProbe}}
	querier := &fakeQuerier{infos: map[identity.ID]fingerprint.FileContentInfo{}}

	_, err := Process(context.Background(), env, obs, querier, RuleSet{})
	if err == nil {
		t.Fatal("expected an access policy violation for an undeclared read")
	}
	if code, ok := perrors.CodeOf(err); !ok || code != perrors.CodeAccessPolicyViolation {
		t.Fatalf("expected CodeAccessPolicyViolation, got %v (ok=%v)", code, ok)
	}
}

func TestProcessSourceSealRootIsDynamicNotAccessViolation(t *testing.T) {
	paths, seals, real, env := newFixture(t)
	env.AllowUndeclaredSourceReads = false
	root := paths.Intern("src")
	real.Declare(paths, root, fsview.ExistsAsDirectory)

	artifact, err := seals.Reserve(root, seal.SourceAll, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := seals.AddSeal(artifact, nil); err != nil {
		t.Fatal(err)
	}

	obs := []RawObservation{{Path: root, Flags: DirectoryLocation}}
	querier := &fakeQuerier{infos: map[identity.ID]fingerprint.FileContentInfo{}}

	result, err := Process(context.Background(), env, obs, querier, RuleSet{})
	if err != nil {
		t.Fatalf("expected observing a source seal's own root to succeed as a dynamic observation, got: %v", err)
	}
	found := false
	for _, id := range result.DynamicObservations {
		if id == root {
			found = true
		}
	}
	if !found {
		t.Fatal("expected the source seal's root to be recorded as a dynamic observation")
	}
}

func TestProcessReclassificationDrop(t *testing.T) {
	paths, _, real, env := newFixture(t)
	file := paths.Intern("generated.tmp")
	real.DeclareFile(paths, file)

	obs := []RawObservation{{Path: file, Flags: FileProbe}}
	querier := &fakeQuerier{infos: map[identity.ID]fingerprint.FileContentInfo{}}

	rules := RuleSet{GlobalRules: []*Rule{
		{Name: "drop-tmp", PathPattern: mustRegexp(t, `\.tmp$`), Target: ReclassifyTarget{Drop: true}},
	}}

	result, err := Process(context.Background(), env, obs, querier, rules)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.PathSet.Entries) != 0 {
		t.Fatalf("expected the .tmp entry to be dropped by reclassification, got %+v", result.PathSet.Entries)
	}
}
