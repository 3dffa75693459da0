package fingerprint

import (
	"fmt"

	"github.com/mutagen-io/extstat"
)

// FileIdentity is the on-disk identity of a file (device plus inode, on
// POSIX; the equivalent file-index pair on Windows), used to invalidate a
// persisted file-content-table entry (§6 "Persisted state") when a path's
// underlying file has been replaced out from under a stale digest without
// its modification time changing — the classic hard-link / truncate-rewrite
// race that a pure (path, mtime) key cannot detect.
type FileIdentity struct {
	DeviceID uint64
	FileID   uint64
}

// Equal reports whether two identities refer to the same on-disk file.
func (id FileIdentity) Equal(other FileIdentity) bool {
	return id.DeviceID == other.DeviceID && id.FileID == other.FileID
}

// StatIdentity retrieves the on-disk identity of the file at path.
func StatIdentity(path string) (FileIdentity, error) {
	stat, err := extstat.NewFromFileName(path)
	if err != nil {
		return FileIdentity{}, fmt.Errorf("unable to stat file: %w", err)
	}
	return FileIdentity{DeviceID: stat.DeviceID, FileID: stat.FileID}, nil
}
