//go:build !windows

package filelock

// isShareViolation is always false here: advisory locks never make the open fail.
func isShareViolation(error) bool {
	return false
}
