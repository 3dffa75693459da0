package cachestore

import (
	"context"
	"sort"
	"sync"

	"github.com/pipforge/pipcore/pkg/fingerprint"
	"github.com/pipforge/pipcore/pkg/observe"
)

// publishedPathSet records one published path set alongside a monotonic
// sequence number, so QueryPathSets can return candidates
// most-recently-published first without depending on map iteration order.
type publishedPathSet struct {
	sequence    uint64
	pathSetHash string
	pathSet     observe.PathSet
}

// MemoryStore is an in-memory reference implementation of Store, safe for
// concurrent use. It is the store a single-host build uses directly and
// the store the remote gRPC shim's server side would front in a real
// deployment; both share the same idempotency and ordering semantics.
type MemoryStore struct {
	mu       sync.Mutex
	sequence uint64
	byWeak   map[fingerprint.Fingerprint][]*publishedPathSet
	metadata map[metadataKey]Metadata
}

// metadataKey is the composite lookup key for a strong-fingerprint record.
type metadataKey struct {
	weak        fingerprint.Fingerprint
	pathSetHash string
	strong      fingerprint.Fingerprint
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byWeak:   make(map[fingerprint.Fingerprint][]*publishedPathSet),
		metadata: make(map[metadataKey]Metadata),
	}
}

// QueryPathSets implements Store.QueryPathSets.
func (m *MemoryStore) QueryPathSets(ctx context.Context, weakFingerprint fingerprint.Fingerprint, maxResults int) ([]PathSetCandidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	candidates := m.byWeak[weakFingerprint]
	ordered := make([]*publishedPathSet, len(candidates))
	copy(ordered, candidates)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].sequence > ordered[j].sequence })

	if maxResults > 0 && len(ordered) > maxResults {
		ordered = ordered[:maxResults]
	}

	result := make([]PathSetCandidate, len(ordered))
	for i, entry := range ordered {
		result[i] = PathSetCandidate{PathSetHash: entry.pathSetHash, PathSet: entry.pathSet}
	}
	return result, nil
}

// QueryStrongFingerprint implements Store.QueryStrongFingerprint.
func (m *MemoryStore) QueryStrongFingerprint(ctx context.Context, weakFingerprint fingerprint.Fingerprint, pathSetHash string, strongFingerprint fingerprint.Fingerprint) (Metadata, bool, error) {
	if err := ctx.Err(); err != nil {
		return Metadata{}, false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	record, ok := m.metadata[metadataKey{weakFingerprint, pathSetHash, strongFingerprint}]
	return record, ok, nil
}

// Publish implements Store.Publish, idempotent by (weakFp, pathSetHash,
// strongFp): a repeat publish of an already-recorded triple is a no-op.
func (m *MemoryStore) Publish(ctx context.Context, weakFingerprint fingerprint.Fingerprint, pathSet observe.PathSet, strongFingerprint fingerprint.Fingerprint, metadata Metadata) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	pathSetHash := HashPathSet(pathSet)
	key := metadataKey{weakFingerprint, pathSetHash, strongFingerprint}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.metadata[key]; exists {
		return nil
	}

	m.sequence++
	m.byWeak[weakFingerprint] = append(m.byWeak[weakFingerprint], &publishedPathSet{
		sequence:    m.sequence,
		pathSetHash: pathSetHash,
		pathSet:     pathSet,
	})
	m.metadata[key] = metadata
	return nil
}
