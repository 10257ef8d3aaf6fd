package planner_test

import (
	"testing"
	"time"

	"github.com/paulschiretz/pgl-mirror/pkg/config"
	"github.com/paulschiretz/pgl-mirror/pkg/pathsync"
	"github.com/paulschiretz/pgl-mirror/pkg/planner"
)

func TestGenerateMirrorPlan(t *testing.T) {
	baseConfig := func() config.Config {
		cfg := config.NewDefault()
		cfg.Source = "/data/src"
		cfg.Target = "/data/dst"
		cfg.LogPath = "/var/log/mirror.log"
		cfg.Interval = 30 * time.Second
		return cfg
	}

	tests := []struct {
		name        string
		configMod   func(*config.Config)
		expectError bool
		validate    func(*testing.T, *planner.MirrorPlan)
	}{
		{
			name: "Defaults",
			validate: func(t *testing.T, p *planner.MirrorPlan) {
				if p.Interval != 30*time.Second {
					t.Errorf("expected interval 30s, got %v", p.Interval)
				}
				if p.MaxPasses != 0 {
					t.Errorf("expected unbounded loop, got MaxPasses %d", p.MaxPasses)
				}
				if p.LockPath != "/var/log/mirror.log.lock" {
					t.Errorf("unexpected lock path %s", p.LockPath)
				}
				if p.Sync.Source != "/data/src" || p.Sync.Target != "/data/dst" {
					t.Errorf("unexpected sync roots %s -> %s", p.Sync.Source, p.Sync.Target)
				}
				if p.Sync.SpaceCheck != pathsync.SpaceCheckFile {
					t.Errorf("expected default space check, got %v", p.Sync.SpaceCheck)
				}
				if p.Sync.ModTimeWindow != time.Second {
					t.Errorf("expected 1s window, got %v", p.Sync.ModTimeWindow)
				}
				if !p.Preflight.TargetAccessible || !p.Preflight.EnsureTargetExists || !p.Preflight.PathNesting {
					t.Errorf("expected target preflight checks, got %+v", p.Preflight)
				}
			},
		},
		{
			name: "Once And Dry Run",
			configMod: func(c *config.Config) {
				c.Once = true
				c.DryRun = true
			},
			validate: func(t *testing.T, p *planner.MirrorPlan) {
				if p.MaxPasses != 1 {
					t.Errorf("expected a single pass, got %d", p.MaxPasses)
				}
				if !p.DryRun || !p.Sync.DryRun || !p.Preflight.DryRun {
					t.Error("dry run must reach every plan")
				}
			},
		},
		{
			name: "Exclusions Are Copied",
			configMod: func(c *config.Config) {
				c.ExcludeFiles = []string{"*.log"}
				c.ExcludeDirs = []string{"cache"}
			},
			validate: func(t *testing.T, p *planner.MirrorPlan) {
				if len(p.Sync.ExcludeFiles) != 1 || p.Sync.ExcludeFiles[0] != "*.log" {
					t.Errorf("unexpected file exclusions %v", p.Sync.ExcludeFiles)
				}
				if len(p.Sync.ExcludeDirs) != 1 || p.Sync.ExcludeDirs[0] != "cache" {
					t.Errorf("unexpected dir exclusions %v", p.Sync.ExcludeDirs)
				}
			},
		},
		{
			name:        "Zero Interval",
			configMod:   func(c *config.Config) { c.Interval = 0 },
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseConfig()
			if tt.configMod != nil {
				tt.configMod(&cfg)
			}
			plan, err := planner.GenerateMirrorPlan(cfg)
			if tt.expectError {
				if err == nil {
					t.Fatal("expected an error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.validate != nil {
				tt.validate(t, plan)
			}
		})
	}
}

func TestGenerateMirrorPlan_Isolated(t *testing.T) {
	cfg := config.NewDefault()
	cfg.Interval = time.Second
	cfg.ExcludeFiles = []string{"a"}

	plan, err := planner.GenerateMirrorPlan(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg.ExcludeFiles[0] = "changed"
	if plan.Sync.ExcludeFiles[0] != "a" {
		t.Error("plan must not share slices with the config")
	}
}
