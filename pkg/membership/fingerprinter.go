package membership

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/pipforge/pipcore/pkg/fingerprint"
	"github.com/pipforge/pipcore/pkg/fsview"
	"github.com/pipforge/pipcore/pkg/identity"
)

// childKind distinguishes files from directories for fingerprint purposes,
// matching §4.5's "ordered digest of (name, kind) pairs".
type childKind uint8

const (
	childFile childKind = iota
	childDirectory
)

// Fingerprinter computes directory-membership fingerprints across the
// modes in §4.5. It caches cacheable (FullGraph, RealFilesystem) results
// keyed by (path, filter identity, mode), with at-most-once computation
// per key under concurrent callers (§5).
type Fingerprinter struct {
	paths       *identity.Table
	fullGraph   fsview.View
	real        fsview.View
	pip         fsview.View
	alienPolicy AlienPolicy

	mu    sync.Mutex
	cache map[string]fingerprint.Fingerprint
	// inflight deduplicates concurrent computations of the same cache key.
	inflight map[string]*sync.WaitGroup
}

// NewFingerprinter constructs a Fingerprinter over the three coexisting
// file-system views plus the pip's scoped view.
func NewFingerprinter(paths *identity.Table, fullGraph, real, pip fsview.View, alienPolicy AlienPolicy) *Fingerprinter {
	if alienPolicy == nil {
		alienPolicy = PermissiveAlienPolicy{}
	}
	return &Fingerprinter{
		paths:       paths,
		fullGraph:   fullGraph,
		real:        real,
		pip:         pip,
		alienPolicy: alienPolicy,
		cache:       make(map[string]fingerprint.Fingerprint),
		inflight:    make(map[string]*sync.WaitGroup),
	}
}

// cacheKey formats the (path, filter-identity, mode) cache key.
func cacheKey(path identity.ID, filter Filter, mode Mode) string {
	return fmt.Sprintf("%d|%s|%s", path, filter.Identity(), mode)
}

type member struct {
	name string
	kind childKind
}

// Compute returns the membership fingerprint for path under the given mode
// and filter. searchPath must be true when this enumeration is a
// search-path enumeration (§4.4); such results are never cached, matching
// the filter's inherently per-pip atom set.
func (f *Fingerprinter) Compute(ctx context.Context, path identity.ID, mode Mode, filter Filter, searchPath bool) (fingerprint.Fingerprint, error) {
	if mode == DefaultFingerprint {
		return fingerprint.Fingerprint{}, nil
	}
	if filter == nil {
		filter = AllowAllFilter{}
	}

	cacheable := mode.cacheable() && !searchPath
	key := cacheKey(path, filter, mode)

	if cacheable {
		if fp, wg, ok := f.claim(key); ok {
			return fp, nil
		} else {
			defer wg.Done()
		}
	}

	fp, err := f.compute(ctx, path, mode, filter)
	if err != nil {
		return fingerprint.Fingerprint{}, err
	}

	if cacheable {
		f.mu.Lock()
		f.cache[key] = fp
		delete(f.inflight, key)
		f.mu.Unlock()
	}

	return fp, nil
}

// claim checks the cache, and if absent, registers this goroutine as the
// one computing key, returning ok=false so the caller proceeds to compute
// while others wait on the returned WaitGroup. If another goroutine is
// already computing, claim blocks until it finishes and then returns the
// cached value with ok=true.
func (f *Fingerprinter) claim(key string) (fingerprint.Fingerprint, *sync.WaitGroup, bool) {
	f.mu.Lock()
	if fp, ok := f.cache[key]; ok {
		f.mu.Unlock()
		return fp, nil, true
	}
	if wg, inflight := f.inflight[key]; inflight {
		f.mu.Unlock()
		wg.Wait()
		f.mu.Lock()
		fp := f.cache[key]
		f.mu.Unlock()
		return fp, nil, true
	}
	wg := &sync.WaitGroup{}
	wg.Add(1)
	f.inflight[key] = wg
	f.mu.Unlock()
	return fingerprint.Fingerprint{}, wg, false
}

func (f *Fingerprinter) compute(ctx context.Context, path identity.ID, mode Mode, filter Filter) (fingerprint.Fingerprint, error) {
	var members []member
	var err error

	switch mode {
	case FullGraph:
		members, err = f.enumerate(ctx, f.fullGraph, path, filter)
	case RealFilesystem:
		members, err = f.enumerate(ctx, f.real, path, filter)
	case MinimalGraph:
		members, err = f.enumerate(ctx, f.pip, path, filter)
	case MinimalGraphWithAlienFiles:
		members, err = f.computeMinimalWithAlien(ctx, path, filter)
	default:
		return fingerprint.Fingerprint{}, fmt.Errorf("unsupported membership mode %s", mode)
	}
	if err != nil {
		return fingerprint.Fingerprint{}, err
	}

	sort.Slice(members, func(i, j int) bool { return members[i].name < members[j].name })

	builder := fingerprint.NewBuilder()
	builder.AppendInt(int64(len(members)))
	for _, m := range members {
		builder.AppendString(m.name).AppendInt(int64(m.kind))
	}
	return builder.Sum(), nil
}

func (f *Fingerprinter) enumerate(ctx context.Context, view fsview.View, path identity.ID, filter Filter) ([]member, error) {
	var members []member
	err := view.Enumerate(ctx, path, func(child identity.ID, existence fsview.Existence) error {
		name := f.paths.Name(child)
		if !filter.Admit(name) {
			return nil
		}
		kind := childFile
		if existence == fsview.ExistsAsDirectory {
			kind = childDirectory
		}
		members = append(members, member{name: name, kind: kind})
		return nil
	})
	return members, err
}

// computeMinimalWithAlien unions the pip-view children with real-filesystem
// entries the alien policy does not exclude.
func (f *Fingerprinter) computeMinimalWithAlien(ctx context.Context, path identity.ID, filter Filter) ([]member, error) {
	members, err := f.enumerate(ctx, f.pip, path, filter)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(members))
	for _, m := range members {
		seen[m.name] = true
	}

	err = f.real.Enumerate(ctx, path, func(child identity.ID, existence fsview.Existence) error {
		name := f.paths.Name(child)
		if seen[name] || !filter.Admit(name) {
			return nil
		}
		if f.alienPolicy.Exclude(path, child) {
			return nil
		}
		kind := childFile
		if existence == fsview.ExistsAsDirectory {
			kind = childDirectory
		}
		members = append(members, member{name: name, kind: kind})
		seen[name] = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	return members, nil
}
