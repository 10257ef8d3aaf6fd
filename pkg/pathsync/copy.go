package pathsync

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/paulschiretz/pgl-mirror/pkg/util"
)

// copyFileSafe copies absSrcPath over absTrgPath. The content is streamed into
// a temp file in the target directory which is renamed over the target only
// once it is complete, so readers never see a partial file. It returns the
// number of bytes written.
func (s *Synchronizer) copyFileSafe(absSrcPath, absTrgPath string, src entryInfo) (int64, error) {
	in, err := os.Open(absSrcPath)
	if err != nil {
		return 0, fmt.Errorf("failed to open source file %s: %w", absSrcPath, err)
	}
	defer in.Close()

	absTrgDir := filepath.Dir(absTrgPath)
	out, err := os.CreateTemp(absTrgDir, tempFilePrefix+"*"+tempFileSuffix)
	if err != nil {
		return 0, fmt.Errorf("failed to create temporary file in %s: %w", absTrgDir, err)
	}
	defer out.Close()

	absTempPath := out.Name()
	// Cleared once the rename succeeded.
	defer func() {
		if absTempPath != "" {
			os.Remove(absTempPath)
		}
	}()

	bufPtr := s.buffers.Get()
	defer s.buffers.Put(bufPtr)

	written, err := io.CopyBuffer(out, in, *bufPtr)
	if err != nil {
		return 0, fmt.Errorf("failed to copy content from %s to %s: %w", absSrcPath, absTempPath, err)
	}

	// The owner must always be able to overwrite the copy on a later pass.
	if err := out.Chmod(util.WithUserWritePermission(src.Mode.Perm())); err != nil {
		return 0, fmt.Errorf("failed to set permissions on temporary file %s: %w", absTempPath, err)
	}

	// Close flushes; it must happen before Chtimes or the flush may bump the mtime.
	if err := out.Close(); err != nil {
		return 0, fmt.Errorf("failed to close temporary file %s: %w", absTempPath, err)
	}

	// The mtime is part of the equality check, so the copy must carry the source's.
	if err := os.Chtimes(absTempPath, src.ModTime, src.ModTime); err != nil {
		return 0, fmt.Errorf("failed to set timestamps on %s: %w", absTempPath, err)
	}

	// os.Rename is atomic on POSIX and uses MoveFileEx with MOVEFILE_REPLACE_EXISTING on Windows.
	if err := os.Rename(absTempPath, absTrgPath); err != nil {
		return 0, fmt.Errorf("failed to move %s into place: %w", absTrgPath, err)
	}
	absTempPath = ""
	return written, nil
}
