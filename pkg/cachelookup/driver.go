package cachelookup

import (
	"context"
	"fmt"

	"github.com/pipforge/pipcore/pkg/cachelookup/fingerprintstore"
	"github.com/pipforge/pipcore/pkg/cachestore"
	"github.com/pipforge/pipcore/pkg/comparison"
	"github.com/pipforge/pipcore/pkg/contextutil"
	"github.com/pipforge/pipcore/pkg/fingerprint"
	"github.com/pipforge/pipcore/pkg/graph"
	"github.com/pipforge/pipcore/pkg/logging"
	"github.com/pipforge/pipcore/pkg/observe"
	"github.com/pipforge/pipcore/pkg/perrors"
)

// defaultMaxCandidates is the default cap on how many prior path sets a
// single lookup will consider before giving up and reporting a miss.
const defaultMaxCandidates = 8

// EnvironmentFactory builds a cache-lookup Environment for replaying one
// candidate's reconstructed observation sequence. The driver is generic
// over environment construction so that callers retain control over the
// seal table, views, and membership fingerprinter a given build session
// has already assembled (§9 "Polymorphism").
type EnvironmentFactory func() *observe.Environment

// Driver drives the two-phase cache lookup (§4.6) for a graph of pips
// against a single cachestore.Store.
type Driver struct {
	Cache         cachestore.Store
	GlobalRules   []*observe.Rule
	MaxCandidates int
	// Recorder, if non-nil, receives a diagnostic dump of every lookup and
	// publish outcome (§6 "Fingerprint store" sidecar).
	Recorder *fingerprintstore.Recorder

	logger *logging.Logger
}

// New constructs a Driver. logger may be nil; recorder may be nil to
// disable fingerprint-store diagnostics entirely.
func New(cache cachestore.Store, globalRules []*observe.Rule, logger *logging.Logger, recorder *fingerprintstore.Recorder) *Driver {
	return &Driver{
		Cache:         cache,
		GlobalRules:   globalRules,
		MaxCandidates: defaultMaxCandidates,
		Recorder:      recorder,
		logger:        logger,
	}
}

// record forwards a lookup or publish outcome to the fingerprint-store
// sidecar, if one is configured.
func (d *Driver) record(pip *graph.Pip, result Result) {
	if d.Recorder == nil {
		return
	}
	d.Recorder.Record(pip.ID, fingerprintstore.Entry{
		WeakFingerprint:   fingerprint.EncodeHex(result.WeakFingerprint),
		PathSetHash:       result.PathSetHash,
		StrongFingerprint: fingerprint.EncodeHex(result.StrongFingerprint),
		Status:            result.Status.String(),
	})
}

// reconstruct turns a persisted path set's entries back into the raw
// observation sequence §4.4 expects, so that Process can be re-run against
// them during cache lookup. Entries are already sorted by path (the
// invariant Process itself produces), so reconstruction order is stable.
//
// The persisted schema (§6 "Persisted state") does not carry the
// search-path bit separately from the enumeration pattern; reconstructed
// enumeration observations are therefore never marked SearchPath here. A
// search-path enumeration's stability is instead verified through its
// accessed-file-name set and membership fingerprint, which are preserved
// exactly, so this does not weaken the round-trip invariant (§8).
func reconstruct(pathSet observe.PathSet) []observe.RawObservation {
	observations := make([]observe.RawObservation, len(pathSet.Entries))
	for i, entry := range pathSet.Entries {
		observations[i] = observe.RawObservation{
			Path:  entry.Path,
			Flags: entry.Flags,
		}
	}
	return observations
}

// matches reports whether a freshly re-typed path set is identical, entry
// for entry, to the candidate it was reconstructed from (§4.6 step 4: "all
// observations remain valid and yield identical content hashes").
func matches(candidate, replayed observe.PathSet) bool {
	if len(candidate.Entries) != len(replayed.Entries) {
		return false
	}
	for i, entry := range candidate.Entries {
		other := replayed.Entries[i]
		if entry.Path != other.Path || entry.Kind != other.Kind || entry.Flags != other.Flags {
			return false
		}
		if !entry.Hash.Equal(other.Hash) || entry.Membership != other.Membership {
			return false
		}
	}
	// The set of file names observed during search-path enumeration must
	// also match: a replay that walked the same directories but stopped at
	// a different name is not the same observed input.
	return comparison.StringSlicesEqual(candidate.AccessedFileNames, replayed.AccessedFileNames)
}

// strongFingerprint computes the strong fingerprint per §8's invariant:
// hash(weak ∥ pathSetHash ∥ serialize(typed-observations)).
func strongFingerprint(weak fingerprint.Fingerprint, pathSetHash string, pathSet observe.PathSet) fingerprint.Fingerprint {
	b := fingerprint.NewBuilder()
	b.AppendFingerprint(weak)
	b.AppendString(pathSetHash)
	for _, entry := range pathSet.Entries {
		b.AppendInt(int64(entry.Path))
		b.AppendInt(int64(entry.Flags))
		b.AppendString(entry.EnumeratePattern)
		b.AppendInt(int64(entry.Kind))
		b.AppendHash(entry.Hash)
		b.AppendFingerprint(entry.Membership)
	}
	return b.Sum()
}

// Lookup runs the two-phase cache lookup for a single pip (§4.6). envFor
// constructs a fresh cache-lookup Environment per candidate (so that each
// replay starts from a clean dynamic-observation/allowed-undeclared-reads
// bookkeeping state); querier re-verifies on-disk content against the
// candidate's recorded hashes.
func (d *Driver) Lookup(ctx context.Context, pip *graph.Pip, envFor EnvironmentFactory, querier observe.ContentQuerier) (Result, error) {
	weak := pip.StaticFingerprint

	maxCandidates := d.MaxCandidates
	if maxCandidates <= 0 {
		maxCandidates = defaultMaxCandidates
	}

	candidates, err := d.Cache.QueryPathSets(ctx, weak, maxCandidates)
	if err != nil {
		return Result{Status: perrors.Mismatched, WeakFingerprint: weak}, perrors.New(perrors.CodeCacheInfrastructure, 201,
			"unable to query cache for candidate path sets", err)
	}
	if d.logger != nil {
		d.logger.Debugf("cache lookup for pip %d: %d candidate path set(s)", pip.ID, len(candidates))
	}

	overall := perrors.Mismatched
	var lastErr error

	for _, candidate := range candidates {
		if contextutil.IsCancelled(ctx) {
			return Result{Status: perrors.Aborted, WeakFingerprint: weak}, ctx.Err()
		}

		rules := observe.RuleSet{PipRules: pip.Rules, GlobalRules: d.GlobalRules}
		env := envFor()
		replayed, err := observe.Process(ctx, env, reconstruct(candidate.PathSet), querier, rules)
		if err != nil {
			if isAborting(err) {
				overall = perrors.Combine(overall, perrors.Aborted)
				lastErr = err
				continue
			}
			lastErr = err
			continue
		}

		if !matches(candidate.PathSet, replayed.PathSet) {
			continue
		}

		strong := strongFingerprint(weak, candidate.PathSetHash, replayed.PathSet)
		metadata, hit, err := d.Cache.QueryStrongFingerprint(ctx, weak, candidate.PathSetHash, strong)
		if err != nil {
			return Result{Status: perrors.Mismatched, WeakFingerprint: weak}, perrors.New(perrors.CodeCacheInfrastructure, 202,
				"unable to query cache for strong-fingerprint metadata", err)
		}
		if !hit {
			continue
		}

		result := Result{
			Status:            perrors.Success,
			WeakFingerprint:   weak,
			PathSetHash:       candidate.PathSetHash,
			StrongFingerprint: strong,
			PathSet:           replayed.PathSet,
			Metadata:          metadata,
		}
		d.record(pip, result)
		return result, nil
	}

	if overall == perrors.Aborted {
		result := Result{Status: perrors.Aborted, WeakFingerprint: weak, Err: lastErr}
		d.record(pip, result)
		return result, lastErr
	}

	result := Result{Status: perrors.Mismatched, WeakFingerprint: weak}
	d.record(pip, result)
	return result, nil
}

// Publish records a freshly executed pip's (path set, strong fingerprint,
// metadata) triple, per §4.6's control flow branch (ii).
func (d *Driver) Publish(ctx context.Context, pip *graph.Pip, pathSet observe.PathSet, outputs []cachestore.OutputEntry) error {
	weak := pip.StaticFingerprint
	pathSetHash := cachestore.HashPathSet(pathSet)
	strong := strongFingerprint(weak, pathSetHash, pathSet)
	metadata := cachestore.Metadata{StrongFingerprint: strong, OutputManifest: outputs}

	if err := d.Cache.Publish(ctx, weak, pathSet, strong, metadata); err != nil {
		return perrors.New(perrors.CodeCacheInfrastructure, 203,
			fmt.Sprintf("unable to publish cache entry for pip %d", pip.ID), err)
	}

	d.record(pip, Result{
		Status:            perrors.Success,
		WeakFingerprint:   weak,
		PathSetHash:       pathSetHash,
		StrongFingerprint: strong,
		PathSet:           pathSet,
		Metadata:          metadata,
	})
	return nil
}

// isAborting reports whether err represents an Aborted condition (§7): an
// UntrackedFile hash or an access-policy violation, as opposed to a
// cache-infrastructure or internal-invariant error, which are handled
// separately by their call sites.
func isAborting(err error) bool {
	code, ok := perrors.CodeOf(err)
	if !ok {
		return false
	}
	return code == perrors.CodeHashFailure || code == perrors.CodeAccessPolicyViolation
}
