// Package pathsync implements one-way mirroring of a source tree into a
// destination tree.
//
// A pass works on two snapshots taken fresh at its start, one per root, and
// then runs strictly ordered phases on a single goroutine:
//
//  1. Directory creation: every source directory missing at the destination is
//     created, parents first.
//  2. File copy/update: every source file that is absent at the destination or
//     not equal to its counterpart is copied into a temp file next to the target
//     and renamed over it, carrying over the source modification time.
//  3. File deletion: destination files without a source counterpart are removed.
//  4. Directory deletion: orphan destination directories are removed deepest
//     first, and only when empty. os.RemoveAll is never used here, so excluded
//     or protected content below an orphan directory survives.
//
// Every file and directory written to the destination gets the owner-write
// bit so later passes can overwrite it, even when the source entry is read-only.
package pathsync

import (
	"errors"

	"github.com/paulschiretz/pgl-mirror/pkg/preflight"
)

// ErrSourceMissing is returned by ReconcileOnce when the source root is gone.
// Nothing is modified at the destination in that case.
var ErrSourceMissing = preflight.ErrSourceMissing

// InsufficientSpaceError is returned (pass policy) or recorded per file (file
// policy) when the destination volume cannot hold the data.
type InsufficientSpaceError = preflight.InsufficientSpaceError

// tempFilePrefix and tempFileSuffix frame the names of in-flight copies. A
// leftover from an interrupted pass is always removed by the next one.
const (
	tempFilePrefix = ".pgl-mirror-"
	tempFileSuffix = ".tmp"
)

// IsSourceMissing reports whether err means the source root does not exist.
func IsSourceMissing(err error) bool {
	return errors.Is(err, ErrSourceMissing)
}
