//go:build !windows

package preflight

// checkVolumeExists is a no-op on Unix: every path lives below "/".
func checkVolumeExists(string) error {
	return nil
}
