package filesystem

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pipforge/pipcore/pkg/logging"
	"github.com/pipforge/pipcore/pkg/must"
)

const (
	// atomicWriteTemporaryNamePrefix is the file name prefix to use for
	// intermediate temporary files used in atomic writes.
	atomicWriteTemporaryNamePrefix = TemporaryNamePrefix + "atomic-write"
)

// WriteFileAtomic writes a file to disk in an atomic fashion by using an
// intermediate temporary file that is swapped in place using a rename
// operation.
func WriteFileAtomic(path string, data []byte, permissions os.FileMode, logger *logging.Logger) error {
	// Create a temporary file. The os package already uses secure permissions
	// for creating temporary files, so we don't need to change them.
	temporary, err := os.CreateTemp(filepath.Dir(path), atomicWriteTemporaryNamePrefix)
	if err != nil {
		return fmt.Errorf("unable to create temporary file: %w", err)
	}

	// Write data.
	if _, err = temporary.Write(data); err != nil {
		must.Close(temporary, logger)
		must.OSRemove(temporary.Name(), logger)
		return fmt.Errorf("unable to write data to temporary file: %w", err)
	}

	// Close out the file.
	if err = temporary.Close(); err != nil {
		must.OSRemove(temporary.Name(), logger)
		return fmt.Errorf("unable to close temporary file: %w", err)
	}

	// Set the file's permissions.
	if err = os.Chmod(temporary.Name(), permissions); err != nil {
		must.OSRemove(temporary.Name(), logger)
		return fmt.Errorf("unable to change file permissions: %w", err)
	}

	// Rename the file into place. If the temporary directory and the target
	// path live on different devices (e.g. the cache directory was
	// configured onto a separate volume), fall back to a copy-then-remove
	// since no atomic rename is possible across devices.
	if err = os.Rename(temporary.Name(), path); err != nil {
		if isCrossDeviceError(err) {
			err = copyThenRemove(temporary.Name(), path, permissions)
		}
		if err != nil {
			must.OSRemove(temporary.Name(), logger)
			return fmt.Errorf("unable to rename file: %w", err)
		}
	}

	// Success.
	return nil
}

// copyThenRemove copies the file at source to destination and then removes
// source. It is used as a fallback for WriteFileAtomic when the temporary
// file and the destination path reside on different devices, in which case
// os.Rename cannot complete the move atomically.
func copyThenRemove(source, destination string, permissions os.FileMode) error {
	data, err := os.ReadFile(source)
	if err != nil {
		return fmt.Errorf("unable to read temporary file: %w", err)
	}
	if err := os.WriteFile(destination, data, permissions); err != nil {
		return fmt.Errorf("unable to write destination file: %w", err)
	}
	if err := os.Remove(source); err != nil {
		return fmt.Errorf("unable to remove temporary file: %w", err)
	}
	return nil
}
