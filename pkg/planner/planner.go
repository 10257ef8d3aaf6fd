// Package planner turns a validated configuration into the immutable plans
// the engine and the synchronizer run on.
package planner

import (
	"fmt"
	"time"

	"github.com/paulschiretz/pgl-mirror/pkg/config"
	"github.com/paulschiretz/pgl-mirror/pkg/pathsync"
	"github.com/paulschiretz/pgl-mirror/pkg/preflight"
)

// MirrorPlan is everything a poll loop needs to know.
type MirrorPlan struct {
	Interval time.Duration
	LockPath string
	// MaxPasses stops the loop after that many passes; 0 runs until canceled.
	MaxPasses     int
	HashCacheSize int
	DryRun        bool

	Preflight *preflight.Plan
	Sync      *pathsync.Plan
}

// GenerateMirrorPlan builds the plan for cfg. cfg must have passed Validate.
func GenerateMirrorPlan(cfg config.Config) (*MirrorPlan, error) {
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("interval must be positive, got %s", cfg.Interval)
	}

	maxPasses := 0
	if cfg.Once {
		maxPasses = 1
	}

	return &MirrorPlan{
		Interval:      cfg.Interval,
		LockPath:      cfg.LockPath(),
		MaxPasses:     maxPasses,
		HashCacheSize: cfg.HashCacheSize,
		DryRun:        cfg.DryRun,
		Preflight: &preflight.Plan{
			TargetAccessible:   true,
			TargetWriteable:    true,
			PathNesting:        true,
			EnsureTargetExists: true,
			DryRun:             cfg.DryRun,
		},
		Sync: &pathsync.Plan{
			Source:        cfg.Source,
			Target:        cfg.Target,
			SpaceCheck:    cfg.SpaceCheck,
			ModTimeWindow: cfg.ModTimeWindow,
			ExcludeFiles:  append([]string(nil), cfg.ExcludeFiles...),
			ExcludeDirs:   append([]string(nil), cfg.ExcludeDirs...),
			DryRun:        cfg.DryRun,
		},
	}, nil
}
