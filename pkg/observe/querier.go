package observe

import (
	"context"
	"fmt"
	"os"

	"github.com/pipforge/pipcore/pkg/fingerprint"
	"github.com/pipforge/pipcore/pkg/identity"
)

// RealContentQuerier backs the post-execution Environment, stat-ing and
// (when necessary) hashing the on-disk file at each queried path. It
// mirrors pkg/fsview.RealView's root-join convention but is not cached:
// Pass 1 is already a one-query-per-path, all-concurrent pass, so there is
// nothing to memoize within a single Process call.
type RealContentQuerier struct {
	Root      string
	Paths     *identity.Table
	Algorithm fingerprint.Algorithm
}

// Query implements ContentQuerier.
func (q *RealContentQuerier) Query(ctx context.Context, path identity.ID) (fingerprint.FileContentInfo, error) {
	full := q.Root
	if rel := q.Paths.Expand(path); rel != "" {
		full = full + "/" + rel
	}

	info, err := os.Lstat(full)
	if os.IsNotExist(err) {
		return fingerprint.FileContentInfo{Hash: fingerprint.AbsentFile(), Existence: fingerprint.Nonexistent}, nil
	} else if err != nil {
		return fingerprint.FileContentInfo{}, fmt.Errorf("unable to stat %q: %w", full, err)
	}

	if info.Mode()&os.ModeSymlink != 0 {
		target, err := os.Readlink(full)
		if err != nil {
			return fingerprint.FileContentInfo{}, fmt.Errorf("unable to read link %q: %w", full, err)
		}
		targetInfo, err := os.Stat(full)
		isDir := err == nil && targetInfo.IsDir()
		return fingerprint.FileContentInfo{
			Existence:    fingerprint.ExistsAsFile,
			ReparsePoint: &fingerprint.ReparsePointInfo{IsDirectoryReparsePoint: isDir, Target: target},
		}, nil
	}

	if info.IsDir() {
		return fingerprint.FileContentInfo{Existence: fingerprint.ExistsAsDirectory}, nil
	}

	hash, err := fingerprint.HashFile(full, q.Algorithm)
	if err != nil {
		return fingerprint.FileContentInfo{}, fmt.Errorf("unable to hash %q: %w", full, err)
	}
	return fingerprint.FileContentInfo{
		Hash:        hash,
		Length:      uint64(info.Size()),
		LengthKnown: true,
		Existence:   fingerprint.ExistsAsFile,
	}, nil
}
