package pathsync

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/paulschiretz/pgl-mirror/pkg/digest"
	"github.com/paulschiretz/pgl-mirror/pkg/filelock"
	"github.com/paulschiretz/pgl-mirror/pkg/hints"
	"github.com/paulschiretz/pgl-mirror/pkg/plog"
	"github.com/paulschiretz/pgl-mirror/pkg/pool"
	"github.com/paulschiretz/pgl-mirror/pkg/preflight"
	"github.com/paulschiretz/pgl-mirror/pkg/util"
)

// SpaceProbe reports the bytes available on the volume holding path.
type SpaceProbe interface {
	AvailableBytes(path string) (uint64, error)
}

// Synchronizer runs mirror passes. Its collaborators are fixed at construction;
// everything that describes a pass comes in through the Plan. A Synchronizer
// must not run two passes at the same time.
type Synchronizer struct {
	space    SpaceProbe
	locks    LockProbe
	digester *digest.Digester
	onEvent  EventHandler
	buffers  *pool.FixedBufferPool
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithSpaceProbe replaces the free-space query (default preflight.DiskSpace).
func WithSpaceProbe(p SpaceProbe) Option {
	return func(s *Synchronizer) { s.space = p }
}

// WithLockProbe replaces the lock check used during comparison (default filelock.Probe).
func WithLockProbe(p LockProbe) Option {
	return func(s *Synchronizer) { s.locks = p }
}

// WithDigester sets the content digester, typically one with a cache.
func WithDigester(d *digest.Digester) Option {
	return func(s *Synchronizer) { s.digester = d }
}

// WithEventHandler receives every change instead of the default LogEvent.
func WithEventHandler(h EventHandler) Option {
	return func(s *Synchronizer) { s.onEvent = h }
}

// WithBufferPool sets the pool of copy buffers.
func WithBufferPool(p *pool.FixedBufferPool) Option {
	return func(s *Synchronizer) { s.buffers = p }
}

// NewSynchronizer creates a Synchronizer backed by the real filesystem unless
// options say otherwise.
func NewSynchronizer(opts ...Option) *Synchronizer {
	s := &Synchronizer{
		space:   preflight.DiskSpace{},
		locks:   filelock.Probe{},
		onEvent: LogEvent,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.buffers == nil {
		s.buffers = pool.NewFixedBuffer(pool.DefaultBufferSize)
	}
	if s.digester == nil {
		// Cannot fail without a cache.
		s.digester, _ = digest.New(0, s.buffers)
	}
	return s
}

// pass carries the state of one ReconcileOnce call.
type pass struct {
	*Synchronizer
	plan   *Plan
	cmp    *comparer
	report *Report
	src    *snapshot
	dst    *snapshot
}

// ReconcileOnce runs one full mirror pass from plan.Source into plan.Target.
//
// It returns an error only when the pass as a whole could not run: the source
// is missing (ErrSourceMissing), the pass-level space check failed
// (*InsufficientSpaceError), a root could not be read, or ctx was canceled.
// Failures of single entries are recorded in the report and the pass goes on.
func (s *Synchronizer) ReconcileOnce(ctx context.Context, plan *Plan) (*Report, error) {
	start := time.Now()
	p := &pass{
		Synchronizer: s,
		plan:         plan,
		cmp:          &comparer{modTimeWindow: plan.ModTimeWindow, locks: s.locks, digester: s.digester},
		report:       &Report{},
	}
	err := p.run(ctx)
	p.report.Duration = time.Since(start)
	return p.report, err
}

func (p *pass) run(ctx context.Context) error {
	if err := preflight.CheckSourceAccessible(p.plan.Source); err != nil {
		return err
	}

	if p.plan.SpaceCheck.PerPass() {
		if err := p.checkPassCapacity(); err != nil {
			return err
		}
	}

	if !p.plan.DryRun {
		if err := os.MkdirAll(p.plan.Target, util.UserWritableDirPerms); err != nil {
			return fmt.Errorf("failed to create target directory %s: %w", p.plan.Target, err)
		}
	}

	if err := p.takeSnapshots(ctx); err != nil {
		return err
	}

	phases := []func(context.Context) error{
		p.createDirs,
		p.syncFiles,
		p.deleteFiles,
		p.deleteDirs,
	}
	for _, phase := range phases {
		if err := phase(ctx); err != nil {
			return err
		}
	}
	return nil
}

// checkPassCapacity compares the full source size with the free space at the target.
func (p *pass) checkPassCapacity() error {
	required, err := preflight.TreeSize(p.plan.Source)
	if err != nil {
		return err
	}
	available, err := p.space.AvailableBytes(p.plan.Target)
	if err != nil {
		return fmt.Errorf("failed to query free space at %s: %w", p.plan.Target, err)
	}
	if err := preflight.CheckCapacity(required, available); err != nil {
		p.emit(Event{Kind: InsufficientSpace, RelPath: ".", Size: int64(required), Err: err})
		return fmt.Errorf("pass skipped: %w", err)
	}
	return nil
}

// takeSnapshots walks both roots concurrently.
func (p *pass) takeSnapshots(ctx context.Context) error {
	excl := newExclusions(p.plan.ExcludeFiles, p.plan.ExcludeDirs)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		snap, err := takeSnapshot(gctx, p.plan.Source, walkOptions{excl: excl})
		p.src = snap
		return err
	})
	g.Go(func() error {
		snap, err := takeSnapshot(gctx, p.plan.Target, walkOptions{
			excl:         excl,
			staleTemps:   true,
			allowMissing: p.plan.DryRun,
		})
		p.dst = snap
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	p.dst.adoptTemps(p.src)

	// Nothing below an unreadable source directory may be touched.
	for _, key := range p.src.protected.ToSlice() {
		p.dst.prune(func(k string) bool { return k != key && below(key)(k) })
	}

	for _, ie := range p.src.errs {
		p.fail(ie.key, ie.err)
	}
	for _, ie := range p.dst.errs {
		p.fail(ie.key, ie.err)
	}

	p.report.EntriesScanned = p.src.entries() + p.dst.entries()
	plog.Debug("Snapshots taken",
		"source_dirs", p.src.dirs.Cardinality(), "source_files", len(p.src.files),
		"target_dirs", p.dst.dirs.Cardinality(), "target_files", len(p.dst.files))
	return nil
}

// createDirs creates every source directory missing at the target, parents first.
func (p *pass) createDirs(ctx context.Context) error {
	keys := p.src.dirs.ToSlice()
	// Lexical order puts "a" before "a/b".
	slices.Sort(keys)

	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		if p.dst.dirs.Contains(key) {
			continue
		}
		absTrgPath := util.DenormalizedAbsPath(p.plan.Target, key)

		if _, isFile := p.dst.files[key]; isFile || p.dst.others.Contains(key) {
			plog.Warn("Destination is not a directory, removing before mkdir", "path", key)
			if !p.removeEntry(key) {
				continue
			}
			delete(p.dst.files, key)
			p.dst.others.Remove(key)
		}

		if p.plan.DryRun {
			plog.Notice("[DRY RUN] MKDIR", "path", key)
			p.report.DirsCreated++
			continue
		}

		if err := os.MkdirAll(absTrgPath, util.UserWritableDirPerms); err != nil {
			p.fail(key, fmt.Errorf("failed to create directory %s: %w", absTrgPath, err))
			continue
		}
		p.dst.dirs.Add(key)
		p.report.DirsCreated++
		p.emit(Event{Kind: DirCreated, RelPath: key})
	}
	return nil
}

// syncFiles copies every source file that is missing or differs at the target.
func (p *pass) syncFiles(ctx context.Context) error {
	keys := make([]string, 0, len(p.src.files))
	for key := range p.src.files {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		p.syncFile(key, p.src.files[key])
	}
	return nil
}

func (p *pass) syncFile(key string, srcInfo entryInfo) {
	absSrcPath := util.DenormalizedAbsPath(p.plan.Source, key)
	absTrgPath := util.DenormalizedAbsPath(p.plan.Target, key)
	kind := FileCreated

	switch {
	case p.dst.dirs.Contains(key):
		// Rename cannot replace a directory, so it has to go first.
		plog.Warn("Destination is a directory, removing before copy", "path", key)
		if !p.removeTree(key) {
			return
		}
	case p.dst.others.Contains(key):
		plog.Warn("Destination is not a regular file, removing before copy", "path", key)
		if !p.removeEntry(key) {
			return
		}
		p.dst.others.Remove(key)
	default:
		trgInfo, exists := p.dst.files[key]
		if exists {
			switch p.cmp.compare(absSrcPath, srcInfo, absTrgPath, trgInfo) {
			case same:
				p.report.FilesUpToDate++
				return
			case locked:
				plog.Debug("File is locked, treating as up to date", "path", key)
				p.report.FilesSkippedLocked++
				return
			}
			kind = FileUpdated
		}
	}

	if p.plan.SpaceCheck.PerFile() {
		available, err := p.space.AvailableBytes(filepath.Dir(absTrgPath))
		if err != nil {
			plog.Debug("Free space unknown, copying anyway", "path", key, "error", err)
		} else if err := preflight.CheckCapacity(uint64(srcInfo.Size), available); err != nil {
			p.report.FilesSkippedSpace++
			p.report.Errors = append(p.report.Errors, hints.Wrap(fmt.Errorf("%s: %w", key, err)))
			p.emit(Event{Kind: InsufficientSpace, RelPath: key, Size: srcInfo.Size, Err: err})
			return
		}
	}

	if p.plan.DryRun {
		plog.Notice("[DRY RUN] COPY", "path", key)
		p.count(kind)
		return
	}

	written, err := p.copyFileSafe(absSrcPath, absTrgPath, srcInfo)
	if err != nil {
		p.fail(key, err)
		return
	}
	// The copy may keep the old size and mtime, so a cached digest would be stale.
	p.digester.Forget(absTrgPath)
	p.report.BytesWritten += written
	p.count(kind)
	p.emit(Event{Kind: kind, RelPath: key, Size: written})
}

// deleteFiles removes target files and special entries that have no source counterpart.
func (p *pass) deleteFiles(ctx context.Context) error {
	var orphans []string
	for key := range p.dst.files {
		if !p.src.has(key) {
			orphans = append(orphans, key)
		}
	}
	for _, key := range p.dst.others.ToSlice() {
		if !p.src.has(key) {
			orphans = append(orphans, key)
		}
	}
	slices.Sort(orphans)

	for _, key := range orphans {
		if err := ctx.Err(); err != nil {
			return err
		}
		p.removeEntry(key)
	}
	return nil
}

// removeEntry deletes a single non-directory target entry and reports it.
// It returns false when the entry is still there.
func (p *pass) removeEntry(key string) bool {
	if p.plan.DryRun {
		plog.Notice("[DRY RUN] DELETE", "path", key)
		p.report.FilesDeleted++
		return true
	}
	absTrgPath := util.DenormalizedAbsPath(p.plan.Target, key)
	if err := os.Remove(absTrgPath); err != nil {
		if os.IsNotExist(err) {
			return true
		}
		p.fail(key, fmt.Errorf("failed to delete %s: %w", absTrgPath, err))
		return false
	}
	p.report.FilesDeleted++
	p.emit(Event{Kind: FileDeleted, RelPath: key})
	return true
}

// removeTree deletes the target directory key and everything the snapshot
// knows below it, files first and directories deepest first. Entries the
// snapshot does not know (excluded or unreadable) are never touched; when
// they keep the directory from going away, the item fails and false is
// returned.
func (p *pass) removeTree(key string) bool {
	inTree := below(key)

	var entries []string
	for k := range p.dst.files {
		if inTree(k) {
			entries = append(entries, k)
		}
	}
	for _, k := range p.dst.others.ToSlice() {
		if inTree(k) {
			entries = append(entries, k)
		}
	}
	slices.Sort(entries)

	var dirs []string
	for _, k := range p.dst.dirs.ToSlice() {
		if inTree(k) {
			dirs = append(dirs, k)
		}
	}
	slices.SortFunc(dirs, func(a, b string) int {
		return len(b) - len(a)
	})

	defer p.dst.prune(inTree)

	for _, k := range entries {
		if !p.removeEntry(k) {
			return false
		}
	}
	for _, k := range dirs {
		if p.plan.DryRun {
			plog.Notice("[DRY RUN] DELETE", "path", k)
			p.report.DirsDeleted++
			continue
		}
		absTrgPath := util.DenormalizedAbsPath(p.plan.Target, k)
		if err := os.Remove(absTrgPath); err != nil && !os.IsNotExist(err) {
			p.fail(key, fmt.Errorf("cannot replace directory %s with a file: %w", absTrgPath, err))
			return false
		}
		p.report.DirsDeleted++
		p.emit(Event{Kind: DirDeleted, RelPath: k})
	}
	return true
}

// deleteDirs removes orphan target directories, deepest first, and only when
// they are empty. A directory that still holds excluded or undeletable
// entries stays.
func (p *pass) deleteDirs(ctx context.Context) error {
	var orphans []string
	for _, key := range p.dst.dirs.ToSlice() {
		if !p.src.has(key) {
			orphans = append(orphans, key)
		}
	}
	// A child path is always longer than its parent.
	slices.SortFunc(orphans, func(a, b string) int {
		return len(b) - len(a)
	})

	for _, key := range orphans {
		if err := ctx.Err(); err != nil {
			return err
		}
		if p.plan.DryRun {
			plog.Notice("[DRY RUN] DELETE", "path", key)
			p.report.DirsDeleted++
			continue
		}
		absTrgPath := util.DenormalizedAbsPath(p.plan.Target, key)
		if err := os.Remove(absTrgPath); err != nil {
			if !os.IsNotExist(err) {
				plog.Debug("Directory removal skipped (not empty)", "path", key, "error", err)
			}
			continue
		}
		p.report.DirsDeleted++
		p.emit(Event{Kind: DirDeleted, RelPath: key})
	}
	return nil
}

func (p *pass) count(kind EventKind) {
	if kind == FileUpdated {
		p.report.FilesUpdated++
	} else {
		p.report.FilesCreated++
	}
}

// fail records a per-item error; the pass continues.
func (p *pass) fail(key string, err error) {
	p.report.Errors = append(p.report.Errors, err)
	p.emit(Event{Kind: ItemFailed, RelPath: key, Err: err})
}

func (p *pass) emit(e Event) {
	if p.onEvent != nil {
		p.onEvent(e)
	}
}
