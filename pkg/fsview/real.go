package fsview

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/golang/groupcache"

	"github.com/pipforge/pipcore/pkg/identity"
	"github.com/pipforge/pipcore/pkg/logging"
)

// realGroupSequence disambiguates groupcache group names across RealView
// instances, since groupcache's process-wide group registry panics on a
// duplicate name (relevant in tests, which construct many short-lived
// RealViews).
var realGroupSequence int64

// RealView probes the on-disk filesystem, memoizing existence for the
// build's duration via a groupcache Group so that concurrent pips probing
// the same path perform at most one stat call (§4.3's caching discipline
// and §5's at-most-once-per-key concurrency requirement).
//
// Paths beneath a root registered with MarkDeferred bypass the cache
// entirely — real existence must not be memoized for children of an
// exclusive opaque whose materialization has been deferred, since a cached
// "nonexistent" would go stale the instant the opaque is written (§4.3,
// §8 scenario 5).
type RealView struct {
	root   string
	paths  *identity.Table
	group  *groupcache.Group
	logger *logging.Logger

	mu       sync.RWMutex
	deferred map[identity.ID]bool
}

// NewRealView creates a RealView rooted at the given filesystem directory;
// path identifiers are resolved relative to root before stat-ing.
func NewRealView(root string, paths *identity.Table, logger *logging.Logger) *RealView {
	sequence := atomic.AddInt64(&realGroupSequence, 1)
	view := &RealView{
		root:     root,
		paths:    paths,
		logger:   logger,
		deferred: make(map[identity.ID]bool),
	}
	view.group = groupcache.NewGroup(
		fmt.Sprintf("pipcore.fsview.real.%d", sequence),
		8<<20,
		groupcache.GetterFunc(view.load),
	)
	return view
}

// MarkDeferred records that root (and everything beneath it) must not have
// its real-filesystem existence cached, because the opaque directory it
// names has not yet been materialized.
func (v *RealView) MarkDeferred(root identity.ID) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.deferred[root] = true
}

// ClearDeferred reverses MarkDeferred once root has been materialized.
func (v *RealView) ClearDeferred(root identity.ID) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.deferred, root)
}

// isDeferred reports whether path falls under any currently deferred root.
func (v *RealView) isDeferred(path identity.ID) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if len(v.deferred) == 0 {
		return false
	}
	for root := range v.deferred {
		if v.paths.IsWithin(root, path) {
			return true
		}
	}
	return false
}

// statExistence performs the actual uncached stat call.
func (v *RealView) statExistence(path identity.ID) (Existence, error) {
	full := v.root
	if rel := v.paths.Expand(path); rel != "" {
		full = full + "/" + rel
	}
	info, err := os.Lstat(full)
	if os.IsNotExist(err) {
		return Nonexistent, nil
	} else if err != nil {
		return Nonexistent, fmt.Errorf("unable to stat %q: %w", full, err)
	}
	if info.IsDir() {
		return ExistsAsDirectory, nil
	}
	return ExistsAsFile, nil
}

// load is the groupcache getter backing the memoized stat cache.
func (v *RealView) load(ctx context.Context, key string, dest groupcache.Sink) error {
	raw, err := strconv.ParseInt(key, 10, 64)
	if err != nil {
		return fmt.Errorf("malformed path identifier key %q: %w", key, err)
	}
	existence, err := v.statExistence(identity.ID(raw))
	if err != nil {
		return err
	}
	return dest.SetString(string(rune('0' + existence)))
}

// GetExistence implements View.GetExistence.
func (v *RealView) GetExistence(ctx context.Context, path identity.ID) (Existence, error) {
	if v.isDeferred(path) {
		v.logger.Tracef("bypassing real-view cache for deferred path %q", v.paths.Expand(path))
		return v.statExistence(path)
	}

	var encoded string
	key := strconv.FormatInt(int64(path), 10)
	if err := v.group.Get(ctx, key, groupcache.StringSink(&encoded)); err != nil {
		return Nonexistent, err
	}
	if len(encoded) != 1 {
		return Nonexistent, fmt.Errorf("malformed cached existence value %q", encoded)
	}
	return Existence(encoded[0] - '0'), nil
}

// Enumerate implements View.Enumerate by listing the real directory
// (bypassing the existence cache, since directory listings are not
// memoized independently of individual child existence).
func (v *RealView) Enumerate(ctx context.Context, path identity.ID, fn ChildFunc) error {
	existence, err := v.statExistence(path)
	if err != nil {
		return err
	}
	if existence != ExistsAsDirectory {
		return nil
	}

	full := v.root
	if rel := v.paths.Expand(path); rel != "" {
		full = full + "/" + rel
	}
	entries, err := os.ReadDir(full)
	if err != nil {
		return fmt.Errorf("unable to list %q: %w", full, err)
	}
	for _, entry := range entries {
		child := v.paths.Join(path, entry.Name())
		childExistence := ExistsAsFile
		if entry.IsDir() {
			childExistence = ExistsAsDirectory
		}
		if err := fn(child, childExistence); err != nil {
			return err
		}
	}
	return nil
}
