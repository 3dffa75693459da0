package graph

import (
	"fmt"
	"sort"
	"sync"

	"github.com/pipforge/pipcore/pkg/environment"
	"github.com/pipforge/pipcore/pkg/fingerprint"
	"github.com/pipforge/pipcore/pkg/identity"
	"github.com/pipforge/pipcore/pkg/observe"
	"github.com/pipforge/pipcore/pkg/pipid"
	"github.com/pipforge/pipcore/pkg/seal"
	"github.com/pipforge/pipcore/pkg/utility"
)

// Salts are the build-wide constants folded into every pip's static
// fingerprint (§4.7): a free-form configuration salt, plus the hashes of
// the active directory-membership rule set and reclassification rule set,
// so that a configuration change invalidates every pip's fingerprint
// without needing to touch each pip's declared inputs.
type Salts struct {
	Configuration       string
	MembershipRuleSet    fingerprint.Fingerprint
	ReclassificationRule fingerprint.Fingerprint
}

// Table is the in-memory pip graph. Sealed directories are owned by the
// graph (§3 "Ownership"), so Table embeds the seal.Table it commits
// seal-directory pips against.
type Table struct {
	paths *identity.Table
	seals *seal.Table
	ids   *pipid.Generator
	salts Salts

	mu        sync.Mutex
	pips      map[pipid.PipID]*Pip
	producers map[identity.ID]pipid.PipID
}

// NewTable constructs an empty graph over paths and seals, using ids to
// assign pip identifiers and salts as the fingerprint-invalidation inputs
// described above.
func NewTable(paths *identity.Table, seals *seal.Table, ids *pipid.Generator, salts Salts) *Table {
	return &Table{
		paths:     paths,
		seals:     seals,
		ids:       ids,
		salts:     salts,
		pips:      make(map[pipid.PipID]*Pip),
		producers: make(map[identity.ID]pipid.PipID),
	}
}

// Get returns the pip registered under id, if any.
func (t *Table) Get(id pipid.PipID) (*Pip, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.pips[id]
	return p, ok
}

// addPip is the shared implementation behind the eight per-kind AddXPip
// operations (§4.7): it rejects conflicting producers, assigns a fresh pip
// id, computes the semi-stable hash and static fingerprint, and registers
// the pip.
func (t *Table) addPip(kind Kind, inputs DeclaredInputs, outputs DeclaredOutputs, tags []string, rules []*observe.Rule, options ProcessOptions) (pipid.PipID, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, file := range outputs.Files {
		if existing, exists := t.producers[file]; exists {
			return pipid.Invalid, fmt.Errorf("duplicate producer for output %q (already produced by pip %d)", t.paths.Expand(file), existing)
		}
	}
	for _, root := range outputs.OpaqueRoots {
		if root.Kind() == seal.SharedOpaque {
			continue
		}
		if existing, exists := t.producers[root.Root()]; exists {
			return pipid.Invalid, fmt.Errorf("duplicate producer for output root %q (already produced by pip %d)", t.paths.Expand(root.Root()), existing)
		}
	}

	id := t.ids.Next()
	semiStable := t.semiStableHash(kind, inputs, outputs, tags)
	staticFp := t.staticFingerprint(kind, semiStable, inputs, outputs, options)

	// Tags and the declared environment block are caller-owned slices/maps
	// that fed directly into the fingerprints just computed above; copy them
	// before storing so a caller mutating its own tags or environment map
	// after this call can never retroactively desynchronize the stored pip
	// from the fingerprint already baked into the graph.
	options.EnvironmentVariables = utility.CopyStringMap(options.EnvironmentVariables)

	pip := &Pip{
		ID:                id,
		Kind:              kind,
		SemiStableHash:    semiStable,
		StaticFingerprint: staticFp,
		Inputs:            inputs,
		Outputs:           outputs,
		Tags:              utility.CopyStringSlice(tags),
		Rules:             rules,
		Options:           options,
	}
	t.pips[id] = pip

	for _, file := range outputs.Files {
		t.producers[file] = id
	}
	for _, root := range outputs.OpaqueRoots {
		t.producers[root.Root()] = id
	}

	return id, nil
}

// sortedPaths renders ids as sorted expanded-path strings for deterministic
// hashing.
func (t *Table) sortedPaths(ids []identity.ID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = t.paths.Expand(id)
	}
	sort.Strings(out)
	return out
}

// sortedRoots renders seal artifacts as sorted "path:kind" strings.
func (t *Table) sortedRoots(artifacts []seal.Artifact) []string {
	out := make([]string, len(artifacts))
	for i, a := range artifacts {
		out[i] = fmt.Sprintf("%s:%s", t.paths.Expand(a.Root()), a.Kind())
	}
	sort.Strings(out)
	return out
}

// semiStableHash computes a hash that is stable across builds as long as
// the pip's declared identity (kind, inputs, outputs, tags) is unchanged,
// independent of the pip id it happens to be assigned this run.
func (t *Table) semiStableHash(kind Kind, inputs DeclaredInputs, outputs DeclaredOutputs, tags []string) uint64 {
	b := fingerprint.NewBuilder()
	b.AppendInt(int64(kind))
	b.AppendStringSet(t.sortedPaths(inputs.Files))
	b.AppendStringSet(t.sortedRoots(inputs.SealedDirectories))
	b.AppendStringSet(t.sortedPaths(outputs.Files))
	b.AppendStringSet(t.sortedRoots(outputs.OpaqueRoots))
	b.AppendStringSet(tags)
	sum := b.Sum()
	var h uint64
	for i := 0; i < 8; i++ {
		h = h<<8 | uint64(sum[i])
	}
	return h
}

// staticFingerprint computes a pip's static fingerprint at add time (§4.7):
// the configured salts, the directory-membership and reclassification
// rule-set hashes, and the pip's own declared identity, including a process
// pip's declared environment block.
func (t *Table) staticFingerprint(kind Kind, semiStable uint64, inputs DeclaredInputs, outputs DeclaredOutputs, options ProcessOptions) fingerprint.Fingerprint {
	b := fingerprint.NewBuilder()
	b.AppendString(t.salts.Configuration)
	b.AppendFingerprint(t.salts.MembershipRuleSet)
	b.AppendFingerprint(t.salts.ReclassificationRule)
	b.AppendInt(int64(kind))
	b.AppendInt(int64(semiStable))
	b.AppendStringSet(t.sortedPaths(inputs.Files))
	b.AppendStringSet(t.sortedRoots(inputs.SealedDirectories))
	b.AppendStringSet(t.sortedPaths(outputs.Files))
	b.AppendStringSet(t.sortedRoots(outputs.OpaqueRoots))
	b.AppendStringSet(environment.Format(options.EnvironmentVariables))
	return b.Sum()
}

// AddProcessPip registers a hermetic external process invocation.
func (t *Table) AddProcessPip(inputs DeclaredInputs, outputs DeclaredOutputs, tags []string, rules []*observe.Rule, options ProcessOptions) (pipid.PipID, error) {
	return t.addPip(Process, inputs, outputs, tags, rules, options)
}

// AddCopyPip registers a single-source-to-single-output copy.
func (t *Table) AddCopyPip(source, destination identity.ID, tags []string) (pipid.PipID, error) {
	return t.addPip(Copy, DeclaredInputs{Files: []identity.ID{source}}, DeclaredOutputs{Files: []identity.ID{destination}}, tags, nil, ProcessOptions{})
}

// AddWritePip registers a literal-content write to a declared output.
func (t *Table) AddWritePip(destination identity.ID, tags []string) (pipid.PipID, error) {
	return t.addPip(Write, DeclaredInputs{}, DeclaredOutputs{Files: []identity.ID{destination}}, tags, nil, ProcessOptions{})
}

// AddIPCPip registers an in-process service call.
func (t *Table) AddIPCPip(inputs DeclaredInputs, outputs DeclaredOutputs, tags []string) (pipid.PipID, error) {
	return t.addPip(IPC, inputs, outputs, tags, nil, ProcessOptions{})
}

// AddSealDirectoryPip commits a sealed directory's final contents (§4.2),
// registering it with the graph's seal table and recording a corresponding
// graph node so downstream fingerprints can depend on it.
func (t *Table) AddSealDirectoryPip(artifact seal.Artifact, contents []identity.ID, tags []string) (pipid.PipID, error) {
	if err := t.seals.AddSeal(artifact, contents); err != nil {
		return pipid.Invalid, fmt.Errorf("unable to commit sealed directory: %w", err)
	}
	outputs := DeclaredOutputs{OpaqueRoots: []seal.Artifact{artifact}}
	return t.addPip(SealDirectory, DeclaredInputs{}, outputs, tags, nil, ProcessOptions{})
}

// AddValuePip registers an in-memory value producer consumed by name rather
// than by file path; it declares no file-system inputs or outputs.
func (t *Table) AddValuePip(tags []string) (pipid.PipID, error) {
	return t.addPip(Value, DeclaredInputs{}, DeclaredOutputs{}, tags, nil, ProcessOptions{})
}

// AddSpecPip registers the evaluation of a front-end specification file
// into further graph fragments.
func (t *Table) AddSpecPip(specFile identity.ID, tags []string) (pipid.PipID, error) {
	return t.addPip(Spec, DeclaredInputs{Files: []identity.ID{specFile}}, DeclaredOutputs{}, tags, nil, ProcessOptions{})
}

// AddModulePip registers the resolution of a module reference into a graph
// fragment.
func (t *Table) AddModulePip(moduleFile identity.ID, tags []string) (pipid.PipID, error) {
	return t.addPip(Module, DeclaredInputs{Files: []identity.ID{moduleFile}}, DeclaredOutputs{}, tags, nil, ProcessOptions{})
}
