package preflight

import (
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/dustin/go-humanize"
)

// InsufficientSpaceError reports that a copy needs more bytes than the
// destination volume has available.
type InsufficientSpaceError struct {
	Required  uint64
	Available uint64
}

func (e *InsufficientSpaceError) Error() string {
	return fmt.Sprintf("insufficient space: required %s, available %s",
		humanize.IBytes(e.Required), humanize.IBytes(e.Available))
}

// CheckCapacity returns an *InsufficientSpaceError when required exceeds available.
func CheckCapacity(required, available uint64) error {
	if required > available {
		return &InsufficientSpaceError{Required: required, Available: available}
	}
	return nil
}

// DiskSpace reports free space on real volumes. The zero value is ready to use.
type DiskSpace struct{}

// AvailableBytes returns the bytes available to unprivileged users on the
// volume holding path. A path that does not exist yet is resolved to its
// deepest existing ancestor, which lives on the same volume.
func (DiskSpace) AvailableBytes(path string) (uint64, error) {
	return availableBytes(deepestExistingAncestor(path))
}

// TreeSize sums the sizes of all regular files below root. Unreadable
// subdirectories are skipped; an unreadable root is an error.
func TreeSize(root string) (uint64, error) {
	var total uint64
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil // vanished between readdir and stat
		}
		total += uint64(info.Size())
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to measure %s: %w", root, err)
	}
	return total, nil
}
