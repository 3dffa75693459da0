// Package cachelookup implements the two-phase cache lookup driver
// (component G, §4.6): for each pip, ask the cache store for candidate
// path sets keyed by the pip's weak fingerprint, re-run the observed-input
// processor (pkg/observe) against a synthetic observation sequence
// reconstructed from each candidate, and select the first candidate whose
// re-typed path set matches and whose strong fingerprint hits the cache.
package cachelookup

import (
	"github.com/pipforge/pipcore/pkg/cachestore"
	"github.com/pipforge/pipcore/pkg/fingerprint"
	"github.com/pipforge/pipcore/pkg/observe"
	"github.com/pipforge/pipcore/pkg/perrors"
)

// Result is the outcome of a Driver.Lookup call. Status reuses perrors'
// Outcome variant (§7 "Propagation") rather than a package-local
// equivalent, since a lookup's outcome combines with a pip's own execution
// outcome under the same "max" rule.
type Result struct {
	Status            perrors.Outcome
	WeakFingerprint   fingerprint.Fingerprint
	PathSetHash       string
	StrongFingerprint fingerprint.Fingerprint
	PathSet           observe.PathSet
	Metadata          cachestore.Metadata
	// Err carries the Aborted condition's underlying error, if Status is
	// Aborted.
	Err error
}
