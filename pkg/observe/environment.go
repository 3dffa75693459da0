package observe

import (
	"fmt"

	"github.com/pipforge/pipcore/pkg/fingerprint"
	"github.com/pipforge/pipcore/pkg/fsview"
	"github.com/pipforge/pipcore/pkg/identity"
	"github.com/pipforge/pipcore/pkg/membership"
	"github.com/pipforge/pipcore/pkg/seal"
)

// AccessDecision is returned by OnAccessCheckFailure for a possibly-bad
// observation (§4.4 Pass 2 case 5): fail the pip, suppress the
// observation, or (in undeclared-reads mode) record it as an allowed
// undeclared source read.
type AccessDecision uint8

const (
	// FailPip rejects the pip with an AccessPolicyViolation.
	FailPip AccessDecision = iota
	// Suppress drops the observation from the path set without failing
	// the pip.
	Suppress
	// AllowUndeclared records the observation in the allowed-undeclared-
	// reads map and keeps it in the path set.
	AllowUndeclared
)

// Views bundles the three coexisting file-system views plus the pip's
// scoped view that Pass 2 consults in its documented precedence order.
type Views struct {
	Output    fsview.View
	Real      fsview.View
	FullGraph fsview.View
	Pip       fsview.View
}

// Environment is the capability set the observed-input processor runs
// against (§9's polymorphism note: "generic over the observation type and
// the environment... expose this as a capability set"). The same
// Environment type backs both required instantiations — cache-lookup
// (IsCacheLookup true, reconstructing from a stored path set) and
// post-execution (IsCacheLookup false, consuming live sandbox reports) —
// via the two constructors below, which differ only in the callbacks and
// the elision flag they wire up.
type Environment struct {
	Paths         *identity.Table
	Seals         *seal.Table
	Views         Views
	Fingerprinter *membership.Fingerprinter

	// AllowUndeclaredSourceReads mirrors the pip's allow-undeclared-
	// source-reads option (§3 lifecycle invariant, §9 configuration
	// surface).
	AllowUndeclaredSourceReads bool
	// TreatAbsentDirectoryAsExistentUnderOutput enables the "absent
	// directory treated as existent under opaque" policy (§4.4 Pass 2
	// case 3, last bullet).
	TreatAbsentDirectoryAsExistentUnderOutput bool
	// ElideAbsentProbesUnderMinimalGraph enables absent-path elision under
	// minimal-graph enumeration when IsCacheLookup is false (§4.4
	// "Absent-path elision"). Cache-lookup runs never elide, regardless of
	// this flag.
	ElideAbsentProbesUnderMinimalGraph bool
	// PreservePathSetCasing keeps a path set's entries in their originally
	// observed case rather than canonicalizing to the filesystem mode's
	// comparison casing (§9 configuration surface).
	PreservePathSetCasing bool
	// IsCacheLookup distinguishes the two required instantiations.
	IsCacheLookup bool

	// MembershipModeOf selects a membership.Mode for a directory path,
	// reflecting mount policy and configuration (§4.5's mode-selection
	// table).
	MembershipModeOf func(path identity.ID) membership.Mode
	// MayContainOutputs reports whether path is under a mount with
	// potential build outputs (§4.4 Pass 2 case 3).
	MayContainOutputs func(path identity.ID) bool
	// CreatedByAnyPip reports whether path (typically a directory) was
	// created by some pip in the graph.
	CreatedByAnyPip func(path identity.ID) bool
	// UntrackedScope reports whether path falls under a globally
	// untracked scope (e.g. VCS metadata directories), consulted by
	// CheckProposedObservedInput.
	UntrackedScope func(path identity.ID) bool
	// EnumeratePatternOf returns the enumeration-pattern regex text
	// associated with path's directory observation, if any.
	EnumeratePatternOf func(path identity.ID) string
	// SearchPathAtoms returns the file-name atoms a pip has referenced, for
	// a search-path enumeration at path.
	SearchPathAtoms func(path identity.ID) []string

	// onUnexpectedAccess is invoked for every observation routed through
	// OnAccessCheckFailure, letting each instantiation log or accumulate
	// diagnostics differently.
	onUnexpectedAccess func(path identity.ID, decision AccessDecision)
	// onAccessCheck computes the AccessDecision for a possibly-bad
	// observation; cache-lookup and post-execution apply the same policy
	// by default but may be overridden per pip.
	onAccessCheck func(path identity.ID, allowUndeclared bool) AccessDecision
}

// defaultAccessCheck implements the documented default policy: allow an
// undeclared read if the pip opts in and the path was not created by any
// pip, otherwise fail the pip.
func defaultAccessCheck(env *Environment) func(identity.ID, bool) AccessDecision {
	return func(path identity.ID, allowUndeclared bool) AccessDecision {
		if allowUndeclared && !env.CreatedByAnyPip(path) {
			return AllowUndeclared
		}
		return FailPip
	}
}

// NewPostExecutionEnvironment builds an Environment for consuming live
// sandbox-reported accesses after a pip run. Absent-path elision is
// enabled according to elideAbsentProbesUnderMinimalGraph.
func NewPostExecutionEnvironment(paths *identity.Table, seals *seal.Table, views Views, fp *membership.Fingerprinter, elideAbsentProbesUnderMinimalGraph bool) *Environment {
	env := &Environment{
		Paths:                              paths,
		Seals:                              seals,
		Views:                              views,
		Fingerprinter:                      fp,
		ElideAbsentProbesUnderMinimalGraph: elideAbsentProbesUnderMinimalGraph,
		IsCacheLookup:                      false,
	}
	env.onAccessCheck = defaultAccessCheck(env)
	return env
}

// NewCacheLookupEnvironment builds an Environment for reconstructing
// observations from a stored path set during cache lookup (§4.6). Elision
// is always disabled, per the "Cache-lookup runs must not elide" rule,
// regardless of the caller-supplied flag.
func NewCacheLookupEnvironment(paths *identity.Table, seals *seal.Table, views Views, fp *membership.Fingerprinter) *Environment {
	env := &Environment{
		Paths:                              paths,
		Seals:                              seals,
		Views:                              views,
		Fingerprinter:                      fp,
		ElideAbsentProbesUnderMinimalGraph: false,
		IsCacheLookup:                      true,
	}
	env.onAccessCheck = defaultAccessCheck(env)
	return env
}

// OnUnexpectedAccess installs a callback invoked whenever Pass 2 routes an
// observation through the undeclared-access policy, letting the caller
// surface diagnostics distinctly for each instantiation.
func (e *Environment) OnUnexpectedAccess(fn func(path identity.ID, decision AccessDecision)) {
	e.onUnexpectedAccess = fn
}

// UnsafeOptionsTag folds the per-observation configuration toggles
// (allow-undeclared-source-reads, treat-absent-directory-as-existent,
// absent-probe elision, preserve-path-set-casing) into a single digest
// string. File-system mode is not part of this tag; it is carried by
// config.Configuration.Salt instead. Two Environments built from the same configuration always
// produce the same tag, so a path set published under one configuration
// never silently matches a replay under a materially different one.
func (e *Environment) UnsafeOptionsTag() string {
	b := fingerprint.NewBuilder()
	b.AppendBool(e.AllowUndeclaredSourceReads)
	b.AppendBool(e.TreatAbsentDirectoryAsExistentUnderOutput)
	b.AppendBool(e.ElideAbsentProbesUnderMinimalGraph)
	b.AppendBool(e.PreservePathSetCasing)
	return fingerprint.EncodeHex(b.Sum())
}

// GetPathOfObservation returns the path an observation refers to.
func (e *Environment) GetPathOfObservation(o RawObservation) identity.ID { return o.Path }

// GetObservationFlags returns an observation's access flags.
func (e *Environment) GetObservationFlags(o RawObservation) Flags { return o.Flags }

// IsSearchPathEnumeration reports whether an observation is a search-path
// enumeration.
func (e *Environment) IsSearchPathEnumeration(o RawObservation) bool {
	return o.Flags.Has(Enumeration) && o.SearchPath
}

// OnAccessCheckFailure decides what to do with a possibly-bad observation
// (§4.4 Pass 2 case 5).
func (e *Environment) OnAccessCheckFailure(path identity.ID) AccessDecision {
	decision := e.onAccessCheck(path, e.AllowUndeclaredSourceReads)
	e.ReportUnexpectedAccess(path, decision)
	return decision
}

// OnAllowingUndeclaredAccessCheck reports whether path would be allowed
// under the pip's undeclared-reads policy, independent of reporting.
func (e *Environment) OnAllowingUndeclaredAccessCheck(path identity.ID) bool {
	return e.AllowUndeclaredSourceReads && !e.CreatedByAnyPip(path)
}

// ReportUnexpectedAccess invokes the configured diagnostic callback, if
// any.
func (e *Environment) ReportUnexpectedAccess(path identity.ID, decision AccessDecision) {
	if e.onUnexpectedAccess != nil {
		e.onUnexpectedAccess(path, decision)
	}
}

// CheckProposedObservedInput validates that typing path as kind does not
// violate the §3 lifecycle invariant that a typed observation must refer
// to a path within a declared dependency, an output, an untracked scope,
// or an allowed undeclared read. Violations are InternalInvariantViolation
// territory (§7); this method only reports, the caller decides how to
// surface it. It is meant to run after Pass 2's case-5 access check has
// already run, so a failure here means the case-5 policy and this
// invariant have fallen out of sync, not that the observation itself is
// bad.
func (e *Environment) CheckProposedObservedInput(path identity.ID, kind Kind) error {
	classification := e.Seals.Classify(path)
	if classification.InSeal || classification.UnderSourceSeal || classification.RootOfSourceSeal {
		return nil
	}
	if e.MayContainOutputs != nil && e.MayContainOutputs(path) {
		return nil
	}
	if e.UntrackedScope != nil && e.UntrackedScope(path) {
		return nil
	}
	if e.OnAllowingUndeclaredAccessCheck(path) {
		return nil
	}
	return fmt.Errorf("observed input %q typed as %s matches none of declared dependency, output, untracked scope, or allowed undeclared read", e.Paths.Expand(path), kind)
}

// GetEnumeratePatternRegex returns the enumeration-pattern regex text for
// path, if the environment has one configured.
func (e *Environment) GetEnumeratePatternRegex(path identity.ID) string {
	if e.EnumeratePatternOf == nil {
		return ""
	}
	return e.EnumeratePatternOf(path)
}
