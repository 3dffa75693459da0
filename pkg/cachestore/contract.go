// Package cachestore defines the outbound cache store contract (§6) that
// the two-phase cache lookup driver (pkg/cachelookup) speaks against: query
// candidate path sets for a weak fingerprint, query a strong-fingerprint
// metadata record, and publish a fresh triple. The backend behind the
// contract (a CAS, a remote build-cache service) is explicitly out of
// scope; this package only defines the contract and two implementations of
// it: an in-memory reference store for tests and single-host use, and a
// thin gRPC transport shim for a remote backend.
package cachestore

import (
	"context"

	"github.com/pipforge/pipcore/pkg/fingerprint"
	"github.com/pipforge/pipcore/pkg/observe"
)

// Metadata is the strong-fingerprint record looked up via (weakFp,
// pathSetHash) per §6 "Persisted state".
type Metadata struct {
	// StrongFingerprint is the full strong fingerprint this record was
	// published under, carried for verification on read.
	StrongFingerprint fingerprint.Fingerprint
	// OutputManifest lists the declared output paths the pip produced, in
	// declaration order, paired with their content hashes so a cache hit
	// can be replayed without re-running the pip.
	OutputManifest []OutputEntry
}

// OutputEntry is a single replayable output record.
type OutputEntry struct {
	Path string
	Hash fingerprint.Hash
}

// PathSetCandidate pairs a path set with the hash it was published under,
// as returned by QueryPathSets.
type PathSetCandidate struct {
	PathSetHash string
	PathSet     observe.PathSet
}

// Store is the cache store contract (§6 "Cache store contract (outbound)").
// All three operations are cancellable via ctx; a cancelled or backend-
// unreachable call surfaces as a CacheInfrastructureError (§7), which the
// caller treats as a forced-execution warning rather than a fatal error.
type Store interface {
	// QueryPathSets returns up to maxResults previously published path sets
	// keyed by weakFingerprint, most-recently-published first.
	QueryPathSets(ctx context.Context, weakFingerprint fingerprint.Fingerprint, maxResults int) ([]PathSetCandidate, error)

	// QueryStrongFingerprint looks up the metadata record for an exact
	// (weakFingerprint, pathSetHash, strongFingerprint) match. The second
	// return value is false on a miss.
	QueryStrongFingerprint(ctx context.Context, weakFingerprint fingerprint.Fingerprint, pathSetHash string, strongFingerprint fingerprint.Fingerprint) (Metadata, bool, error)

	// Publish records a fresh (path set, strong fingerprint, metadata)
	// triple under weakFingerprint. It is idempotent by (weakFp,
	// pathSetHash, strongFp): publishing the same triple twice is a no-op
	// the second time.
	Publish(ctx context.Context, weakFingerprint fingerprint.Fingerprint, pathSet observe.PathSet, strongFingerprint fingerprint.Fingerprint, metadata Metadata) error
}

// HashPathSet computes a stable identifying hash for a path set, used as
// the pathSetHash half of the (weakFp, pathSetHash) lookup key. It folds in
// every field a published path set carries, in the same field order the
// round-trip invariant (§8) requires be preserved.
func HashPathSet(pathSet observe.PathSet) string {
	b := fingerprint.NewBuilder()
	b.AppendInt(int64(len(pathSet.Entries)))
	for _, entry := range pathSet.Entries {
		b.AppendInt(int64(entry.Path))
		b.AppendInt(int64(entry.Flags))
		b.AppendString(entry.EnumeratePattern)
		b.AppendInt(int64(entry.Kind))
		b.AppendHash(entry.Hash)
		b.AppendFingerprint(entry.Membership)
	}
	b.AppendStringSet(pathSet.AccessedFileNames)
	b.AppendString(pathSet.UnsafeOptionsTag)
	sum := b.Sum()
	return fingerprint.EncodeHex(sum)
}
