// Package engine drives the mirror loop: one instance per log file, one pass
// at a time, a fixed sleep between passes.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/paulschiretz/pgl-mirror/pkg/buildinfo"
	"github.com/paulschiretz/pgl-mirror/pkg/filelock"
	"github.com/paulschiretz/pgl-mirror/pkg/pathsync"
	"github.com/paulschiretz/pgl-mirror/pkg/planner"
	"github.com/paulschiretz/pgl-mirror/pkg/plog"
	"github.com/paulschiretz/pgl-mirror/pkg/preflight"
)

// Reconciler runs a single mirror pass. *pathsync.Synchronizer implements it.
type Reconciler interface {
	ReconcileOnce(ctx context.Context, p *pathsync.Plan) (*pathsync.Report, error)
}

// Runner owns the poll loop.
type Runner struct {
	plan      *planner.MirrorPlan
	syncer    Reconciler
	clock     clockwork.Clock
	maxPasses int
}

// Option configures a Runner.
type Option func(*Runner)

// WithClock replaces the wall clock used for the sleep between passes.
func WithClock(c clockwork.Clock) Option {
	return func(r *Runner) { r.clock = c }
}

// WithMaxPasses stops the loop after n passes. n <= 0 runs until canceled.
func WithMaxPasses(n int) Option {
	return func(r *Runner) { r.maxPasses = n }
}

// New creates a Runner for plan. The pass limit defaults to plan.MaxPasses.
func New(plan *planner.MirrorPlan, syncer Reconciler, opts ...Option) *Runner {
	r := &Runner{
		plan:      plan,
		syncer:    syncer,
		clock:     clockwork.NewRealClock(),
		maxPasses: plan.MaxPasses,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run holds the instance lock and runs passes until ctx is canceled or the
// pass limit is reached. A canceled loop returns nil. With a pass limit the
// error of the last pass is returned.
func (r *Runner) Run(ctx context.Context) error {
	inst, err := filelock.AcquireInstance(r.plan.LockPath, buildinfo.Name)
	if err != nil {
		return fmt.Errorf("failed to acquire instance lock: %w", err)
	}
	defer func() {
		if err := inst.Release(); err != nil {
			plog.Warn("Failed to release instance lock", "error", err)
		}
	}()

	src, target := r.plan.Sync.Source, r.plan.Sync.Target
	if err := preflight.Run(r.plan.Preflight, src, target); err != nil {
		return fmt.Errorf("preflight failed: %w", err)
	}
	logVolume("source", src)
	logVolume("target", target)

	if r.plan.DryRun {
		plog.Info("Starting mirror loop (DRY RUN)", "source", src, "target", target, "interval", r.plan.Interval)
	} else {
		plog.Info("Starting mirror loop", "source", src, "target", target, "interval", r.plan.Interval)
	}

	var lastErr error
	for n := 1; ; n++ {
		lastErr = r.runPass(ctx, n)

		if r.maxPasses > 0 && n >= r.maxPasses {
			return lastErr
		}

		select {
		case <-ctx.Done():
			plog.Info("Mirror loop stopped", "passes", n)
			return nil
		case <-r.clock.After(r.plan.Interval):
		}
	}
}

// runPass runs and reports one pass. Errors and panics are logged here; the
// returned error only decides the exit status of a bounded run.
func (r *Runner) runPass(ctx context.Context, n int) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
			plog.Error("Error during synchronization", "pass", n, "error", err)
		}
	}()

	plog.Debug("Starting pass", "pass", n)
	report, err := r.syncer.ReconcileOnce(ctx, r.plan.Sync)
	if report != nil {
		report.LogSummary(fmt.Sprintf("Pass %d finished", n))
	}

	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		plog.Info("Pass canceled", "pass", n)
		return err
	case pathsync.IsSourceMissing(err):
		plog.Warn("Source directory missing, skipping pass", "pass", n, "source", r.plan.Sync.Source)
		return err
	default:
		plog.Error("Error during synchronization", "pass", n, "error", err)
		return err
	}

	if report != nil {
		if failures := report.Failures(); len(failures) > 0 {
			for _, f := range failures {
				plog.Debug("Entry failed", "pass", n, "error", f)
			}
			return fmt.Errorf("pass %d: %d entries failed", n, len(failures))
		}
	}
	return nil
}

func logVolume(role, path string) {
	start := time.Now()
	vol, err := preflight.Volume(path)
	if err != nil {
		plog.Debug("Could not resolve volume", "role", role, "path", path, "error", err)
		return
	}
	plog.Info("Volume", "role", role, "mountpoint", vol.Mountpoint, "device", vol.Device, "fstype", vol.Fstype, "took", plog.Since(start))
}
