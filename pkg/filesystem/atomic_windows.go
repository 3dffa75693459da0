//go:build windows

package filesystem

import "os"

// isCrossDeviceError checks whether or not an error returned by os.Rename is
// due to an attempted rename across devices.
func isCrossDeviceError(err error) bool {
	linkErr, ok := err.(*os.LinkError)
	if !ok {
		return false
	}
	// ERROR_NOT_SAME_DEVICE
	return linkErr.Err.Error() == "The system cannot move the file to a different disk drive."
}
