package pathsync

import (
	"os"
	"time"

	"github.com/paulschiretz/pgl-mirror/pkg/digest"
	"github.com/paulschiretz/pgl-mirror/pkg/filelock"
	"github.com/paulschiretz/pgl-mirror/pkg/plog"
)

// LockProbe reports whether another process holds a file exclusively.
type LockProbe interface {
	IsLocked(path string) (bool, error)
}

// comparer decides whether a destination file already mirrors its source.
type comparer struct {
	modTimeWindow time.Duration
	locks         LockProbe
	digester      *digest.Digester
}

// verdict is the outcome of a comparison.
type verdict int

const (
	differs verdict = iota
	same
	// locked means the files were not compared because one of them is held
	// exclusively by another process. It counts as equal: the copy is retried
	// on a later pass.
	locked
)

// compare runs the cheap checks first: size, then modification time, then the
// lock probe, and hashes full content only when all of them pass. Any error
// yields differs, so a doubt is resolved by copying.
func (c *comparer) compare(pathA string, a entryInfo, pathB string, b entryInfo) verdict {
	if a.Size != b.Size {
		return differs
	}

	ta, tb := a.ModTime, b.ModTime
	if c.modTimeWindow > 0 {
		ta = ta.Truncate(c.modTimeWindow)
		tb = tb.Truncate(c.modTimeWindow)
	}
	if !ta.Equal(tb) {
		return differs
	}

	for _, p := range []string{pathA, pathB} {
		isLocked, err := c.locks.IsLocked(p)
		if err != nil {
			plog.Debug("Lock probe failed, comparing as different", "path", p, "error", err)
			return differs
		}
		if isLocked {
			return locked
		}
	}

	sumA, err := c.digester.Sum(pathA)
	if err != nil {
		plog.Debug("Hashing failed, comparing as different", "path", pathA, "error", err)
		return differs
	}
	sumB, err := c.digester.Sum(pathB)
	if err != nil {
		plog.Debug("Hashing failed, comparing as different", "path", pathB, "error", err)
		return differs
	}
	if sumA != sumB {
		return differs
	}
	return same
}

// FilesEqual reports whether the files at pathA and pathB may be treated as
// identical: same size, same modification time, and same MD5 digest. A file
// that is exclusively locked by another process is reported as equal so the
// caller leaves it alone. Any error (missing file, read failure) yields false.
func FilesEqual(pathA, pathB string) bool {
	a, err := statRegular(pathA)
	if err != nil {
		return false
	}
	b, err := statRegular(pathB)
	if err != nil {
		return false
	}
	d, err := digest.New(0, nil)
	if err != nil {
		return false
	}
	c := &comparer{locks: filelock.Probe{}, digester: d}
	return c.compare(pathA, a, pathB, b) != differs
}

func statRegular(path string) (entryInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return entryInfo{}, err
	}
	if !info.Mode().IsRegular() {
		return entryInfo{}, &os.PathError{Op: "compare", Path: path, Err: os.ErrInvalid}
	}
	return entryInfo{Size: info.Size(), ModTime: info.ModTime(), Mode: info.Mode()}, nil
}
