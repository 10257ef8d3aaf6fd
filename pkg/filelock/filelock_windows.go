//go:build windows

package filelock

import (
	"errors"

	"golang.org/x/sys/windows"
)

// isShareViolation reports whether err comes from opening a file that another
// process holds open without sharing, or with a conflicting byte-range lock.
func isShareViolation(err error) bool {
	return errors.Is(err, windows.ERROR_SHARING_VIOLATION) || errors.Is(err, windows.ERROR_LOCK_VIOLATION)
}
