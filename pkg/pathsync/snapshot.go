package pathsync

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/paulschiretz/pgl-mirror/pkg/plog"
	"github.com/paulschiretz/pgl-mirror/pkg/util"
)

// entryInfo is the lstat metadata of a regular file.
type entryInfo struct {
	Size    int64
	ModTime time.Time
	Mode    fs.FileMode
}

// snapshot is the state of one root at the start of a pass. Keys are
// normalized relative paths.
type snapshot struct {
	root  string
	dirs  mapset.Set[string]
	files map[string]entryInfo
	// others holds symlinks, devices, sockets and the like. They are never
	// synced; in the source they only mark their key as present.
	others mapset.Set[string]
	// protected holds directories whose content could not be listed. Nothing
	// below them is copied or deleted this pass.
	protected mapset.Set[string]
	// temps holds regular files named like our copy temp files. Only the
	// target walk fills it; see adoptTemps.
	temps map[string]entryInfo
	errs  []itemError
}

// itemError is a failure tied to one relative path.
type itemError struct {
	key string
	err error
}

func newSnapshot(root string) *snapshot {
	return &snapshot{
		root:      root,
		dirs:      mapset.NewThreadUnsafeSet[string](),
		files:     make(map[string]entryInfo),
		others:    mapset.NewThreadUnsafeSet[string](),
		protected: mapset.NewThreadUnsafeSet[string](),
		temps:     make(map[string]entryInfo),
	}
}

// entries returns the number of entries seen, excluding the root.
func (s *snapshot) entries() int64 {
	return int64(s.dirs.Cardinality() + len(s.files) + s.others.Cardinality() + len(s.temps))
}

// has reports whether the key exists in any form.
func (s *snapshot) has(key string) bool {
	if _, ok := s.files[key]; ok {
		return true
	}
	return s.dirs.Contains(key) || s.others.Contains(key)
}

// prune drops every recorded key for which drop returns true.
func (s *snapshot) prune(drop func(relPathKey string) bool) {
	for _, m := range []map[string]entryInfo{s.files, s.temps} {
		for key := range m {
			if drop(key) {
				delete(m, key)
			}
		}
	}
	for _, set := range []mapset.Set[string]{s.dirs, s.others, s.protected} {
		for _, key := range set.ToSlice() {
			if drop(key) {
				set.Remove(key)
			}
		}
	}
}

// adoptTemps settles the temp-named files of a target snapshot against the
// source: a name the source holds as a regular file is a mirrored file and is
// compared like any other; every other one is a leftover of an interrupted
// copy and becomes an orphan candidate.
func (s *snapshot) adoptTemps(src *snapshot) {
	for key, info := range s.temps {
		if _, ok := src.files[key]; ok {
			s.files[key] = info
		} else {
			s.others.Add(key)
		}
		delete(s.temps, key)
	}
}

// below returns a predicate matching key and everything under it.
func below(key string) func(string) bool {
	return func(k string) bool {
		return k == key || strings.HasPrefix(k, key+"/")
	}
}

// walkOptions tune a snapshot walk.
type walkOptions struct {
	excl *exclusions
	// staleTemps records temp-named regular files in temps instead of
	// treating them as regular entries subject to exclusion.
	staleTemps bool
	// allowMissing returns an empty snapshot when the root does not exist.
	allowMissing bool
}

// takeSnapshot walks root without following symlinks. An unreadable root is an
// error; unreadable subdirectories are recorded as protected.
func takeSnapshot(ctx context.Context, root string, opts walkOptions) (*snapshot, error) {
	snap := newSnapshot(root)

	if opts.allowMissing {
		if _, err := os.Lstat(root); os.IsNotExist(err) {
			return snap, nil
		}
	}

	err := filepath.WalkDir(root, func(absPath string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		if absPath == root {
			// A failure at the root aborts the walk.
			return walkErr
		}

		relPathKey, err := util.NormalizedRelPath(root, absPath)
		if err != nil {
			return err
		}

		if walkErr != nil {
			snap.errs = append(snap.errs, itemError{key: relPathKey, err: fmt.Errorf("cannot read %s: %w", relPathKey, walkErr)})
			if d != nil && d.IsDir() {
				// WalkDir already reported the directory itself; its content is unknown.
				snap.protected.Add(relPathKey)
				plog.Warn("Directory unreadable, leaving its mirror untouched", "path", relPathKey, "error", walkErr)
				return filepath.SkipDir
			}
			// Could not lstat the entry: keep whatever mirrors it.
			snap.others.Add(relPathKey)
			return nil
		}

		if opts.staleTemps && d.Type().IsRegular() && isTempFileName(d.Name()) {
			info, err := d.Info()
			if err != nil {
				if os.IsNotExist(err) {
					return nil
				}
				snap.errs = append(snap.errs, itemError{key: relPathKey, err: fmt.Errorf("cannot stat %s: %w", relPathKey, err)})
				snap.others.Add(relPathKey)
				return nil
			}
			snap.temps[relPathKey] = entryInfo{Size: info.Size(), ModTime: info.ModTime(), Mode: info.Mode()}
			return nil
		}

		if opts.excl != nil && opts.excl.isExcluded(relPathKey, d.Name(), d.IsDir()) {
			plog.Debug("Excluded", "root", root, "path", relPathKey)
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		switch {
		case d.IsDir():
			snap.dirs.Add(relPathKey)
		case d.Type().IsRegular():
			info, err := d.Info()
			if err != nil {
				if os.IsNotExist(err) {
					return nil // removed since the directory was listed
				}
				snap.errs = append(snap.errs, itemError{key: relPathKey, err: fmt.Errorf("cannot stat %s: %w", relPathKey, err)})
				snap.others.Add(relPathKey)
				return nil
			}
			snap.files[relPathKey] = entryInfo{Size: info.Size(), ModTime: info.ModTime(), Mode: info.Mode()}
		default:
			snap.others.Add(relPathKey)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}
	return snap, nil
}

func isTempFileName(name string) bool {
	return strings.HasPrefix(name, tempFilePrefix) && strings.HasSuffix(name, tempFileSuffix)
}
