//go:build windows

package must

import (
	"fmt"

	"github.com/pipforge/pipcore/pkg/logging"
	"golang.org/x/sys/windows"
)

// CloseWindowsHandle closes a Windows handle, logging (rather than
// propagating) any failure, on the assumption that the caller has no
// sensible recovery path for a close failure.
func CloseWindowsHandle(wh windows.Handle, logger *logging.Logger) {
	if err := windows.CloseHandle(wh); err != nil {
		logger.Warn(fmt.Errorf("unable to close handle %d: %w", wh, err))
	}
}
