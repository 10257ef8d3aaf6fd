package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/paulschiretz/pgl-mirror/pkg/buildinfo"
	"github.com/paulschiretz/pgl-mirror/pkg/config"
	"github.com/paulschiretz/pgl-mirror/pkg/digest"
	"github.com/paulschiretz/pgl-mirror/pkg/engine"
	"github.com/paulschiretz/pgl-mirror/pkg/pathsync"
	"github.com/paulschiretz/pgl-mirror/pkg/planner"
	"github.com/paulschiretz/pgl-mirror/pkg/plog"
	"github.com/paulschiretz/pgl-mirror/pkg/pool"
)

const longHelp = `pgl-mirror makes <destination> an exact copy of <source> every <interval-seconds>
seconds: missing directories and files are created, changed files are copied,
and entries the source no longer has are deleted. Every change is appended to
<log-file> and echoed to stdout.

Files are compared by size, modification time and MD5 content digest. A file
that another process holds locked on either side is treated as up to date and
is not copied. The mirror keeps running while files are being written, but a
destination copy stays stale for as long as its source file remains locked,
possibly across many passes. The pass summary reports these as skipped_locked.`

func newRootCmd() *cobra.Command {
	v := viper.New()
	defaults := config.NewDefault()

	cmd := &cobra.Command{
		Use:     "pgl-mirror [flags] <source> <destination> <log-file> <interval-seconds>",
		Short:   "Keep a destination folder an exact one-way mirror of a source folder",
		Long:    longHelp,
		Version: buildinfo.Version,
		Args:    cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMirror(cmd, v, args)
		},
	}
	cmd.SetVersionTemplate(buildinfo.Name + " {{.Version}}\n")

	flags := cmd.Flags()
	flags.SortFlags = false
	flags.String(config.KeySpaceCheck, defaults.SpaceCheck.String(), "Free space check: 'none', 'pass', 'file' or 'both'.")
	flags.Int(config.KeyModTimeWindow, int(defaults.ModTimeWindow/time.Second), "Seconds within which modification times count as equal (0=exact).")
	flags.Int(config.KeyHashCacheSize, defaults.HashCacheSize, "Number of cached file digests (0 disables the cache).")
	flags.StringSlice(config.KeyExcludeFiles, nil, "Comma-separated, case-insensitive glob patterns of files to leave alone.")
	flags.StringSlice(config.KeyExcludeDirs, nil, "Comma-separated, case-insensitive glob patterns of directories to leave alone.")
	flags.Bool(config.KeyDryRun, defaults.DryRun, "Log what would change without touching the destination.")
	flags.String(config.KeyLogLevel, defaults.LogLevel, "Logging level: 'debug', 'notice', 'info', 'warn', 'error'.")
	flags.Bool(config.KeyOnce, defaults.Once, "Run a single pass and exit.")
	flags.String(config.KeyConfig, "", "Optional config file (yaml, json or toml).")

	config.SetDefaults(v)
	if err := v.BindPFlags(flags); err != nil {
		panic(fmt.Sprintf("failed to bind flags: %v", err))
	}
	return cmd
}

// runMirror validates everything before the log file is opened, so a bad
// invocation leaves no trace on disk.
func runMirror(cmd *cobra.Command, v *viper.Viper, args []string) error {
	cfg, err := config.Load(v, args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	cmd.SilenceUsage = true

	closer, err := plog.Setup(cfg.LogPath)
	if err != nil {
		return err
	}
	defer closer.Close()
	cmd.SilenceErrors = true

	level := plog.LevelFromString(cfg.LogLevel)
	// Dry run decisions are logged at NOTICE.
	if cfg.DryRun && level > plog.LevelNotice {
		level = plog.LevelNotice
	}
	plog.SetLevel(level)

	plog.Info("Starting "+buildinfo.Name, "version", buildinfo.Version, "pid", os.Getpid())
	cfg.LogSummary()

	plan, err := planner.GenerateMirrorPlan(cfg)
	if err != nil {
		plog.Error("Failed to create mirror plan", "error", err)
		return err
	}

	buffers := pool.NewFixedBuffer(pool.DefaultBufferSize)
	digester, err := digest.New(plan.HashCacheSize, buffers)
	if err != nil {
		plog.Error("Failed to create digest cache", "error", err)
		return err
	}
	syncer := pathsync.NewSynchronizer(
		pathsync.WithDigester(digester),
		pathsync.WithBufferPool(buffers),
	)

	start := time.Now()
	if err := engine.New(plan, syncer).Run(cmd.Context()); err != nil {
		plog.Error("Mirror stopped with error", "error", err, "uptime", plog.Since(start))
		return err
	}
	plog.Info(buildinfo.Name+" stopped", "uptime", plog.Since(start))
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
