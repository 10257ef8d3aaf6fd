// Package config holds the immutable run configuration of the mirror: the four
// positional arguments plus options from flags, PGL_MIRROR_* environment
// variables and an optional config file.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"

	"github.com/paulschiretz/pgl-mirror/pkg/pathsync"
	"github.com/paulschiretz/pgl-mirror/pkg/plog"
	"github.com/paulschiretz/pgl-mirror/pkg/pool"
	"github.com/paulschiretz/pgl-mirror/pkg/util"
)

// EnvPrefix prefixes environment overrides, e.g. PGL_MIRROR_SPACE_CHECK=both.
const EnvPrefix = "PGL_MIRROR"

// Option keys, shared by flags, environment variables and config files.
const (
	KeySpaceCheck    = "space-check"
	KeyModTimeWindow = "mod-time-window"
	KeyHashCacheSize = "hash-cache-size"
	KeyExcludeFiles  = "exclude-files"
	KeyExcludeDirs   = "exclude-dirs"
	KeyDryRun        = "dry-run"
	KeyLogLevel      = "log-level"
	KeyOnce          = "once"
	KeyConfig        = "config"
)

// ErrUsage marks errors caused by wrong positional arguments.
var ErrUsage = errors.New("usage error")

// Config is built once at startup and passed explicitly; nothing reads it
// from package state.
type Config struct {
	Source   string
	Target   string
	LogPath  string
	Interval time.Duration

	SpaceCheck    pathsync.SpaceCheck
	ModTimeWindow time.Duration
	HashCacheSize int
	ExcludeFiles  []string
	ExcludeDirs   []string
	DryRun        bool
	LogLevel      string
	Once          bool
}

// NewDefault returns a Config with every option at its default and the
// positional values empty.
func NewDefault() Config {
	return Config{
		SpaceCheck:    pathsync.DefaultSpaceCheck,
		ModTimeWindow: time.Second,
		HashCacheSize: 4096,
		LogLevel:      "info",
	}
}

// SetDefaults registers the option defaults with v.
func SetDefaults(v *viper.Viper) {
	d := NewDefault()
	v.SetDefault(KeySpaceCheck, d.SpaceCheck.String())
	v.SetDefault(KeyModTimeWindow, int(d.ModTimeWindow/time.Second))
	v.SetDefault(KeyHashCacheSize, d.HashCacheSize)
	v.SetDefault(KeyExcludeFiles, []string{})
	v.SetDefault(KeyExcludeDirs, []string{})
	v.SetDefault(KeyDryRun, d.DryRun)
	v.SetDefault(KeyLogLevel, d.LogLevel)
	v.SetDefault(KeyOnce, d.Once)
}

// Load builds a Config from the positional arguments
// (source, destination, log file, interval in seconds) and the options in v.
// Flags must already be bound to v. Load does not touch the filesystem except
// to read the optional config file.
func Load(v *viper.Viper, args []string) (Config, error) {
	if len(args) != 4 {
		return Config{}, fmt.Errorf("%w: expected 4 arguments (source, destination, log file, interval), got %d", ErrUsage, len(args))
	}

	interval, err := ParseInterval(args[3])
	if err != nil {
		return Config{}, err
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if file := v.GetString(KeyConfig); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	}

	spaceCheck, err := pathsync.ParseSpaceCheck(v.GetString(KeySpaceCheck))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Source:        args[0],
		Target:        args[1],
		LogPath:       args[2],
		Interval:      interval,
		SpaceCheck:    spaceCheck,
		ModTimeWindow: time.Duration(v.GetInt(KeyModTimeWindow)) * time.Second,
		HashCacheSize: v.GetInt(KeyHashCacheSize),
		ExcludeFiles:  splitList(v.GetStringSlice(KeyExcludeFiles)),
		ExcludeDirs:   splitList(v.GetStringSlice(KeyExcludeDirs)),
		DryRun:        v.GetBool(KeyDryRun),
		LogLevel:      v.GetString(KeyLogLevel),
		Once:          v.GetBool(KeyOnce),
	}
	return cfg, nil
}

// ParseInterval parses a poll interval given in whole seconds.
func ParseInterval(s string) (time.Duration, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: interval must be a positive integer number of seconds, got %q", ErrUsage, s)
	}
	return time.Duration(n) * time.Second, nil
}

// Validate checks the configuration and turns all paths into clean absolute paths.
func (c *Config) Validate() error {
	if c.Source == "" {
		return fmt.Errorf("source path cannot be empty")
	}
	if c.Target == "" {
		return fmt.Errorf("destination path cannot be empty")
	}
	if c.LogPath == "" {
		return fmt.Errorf("log file path cannot be empty")
	}
	if c.Interval <= 0 {
		return fmt.Errorf("interval must be positive")
	}
	if c.ModTimeWindow < 0 {
		return fmt.Errorf("%s cannot be negative", KeyModTimeWindow)
	}
	if c.HashCacheSize < 0 {
		return fmt.Errorf("%s cannot be negative", KeyHashCacheSize)
	}
	if !plog.IsValidLevel(c.LogLevel) {
		return fmt.Errorf("invalid %s: %q. Must be 'debug', 'notice', 'info', 'warn', or 'error'", KeyLogLevel, c.LogLevel)
	}
	if _, err := pathsync.ParseSpaceCheck(c.SpaceCheck.String()); err != nil {
		return fmt.Errorf("invalid %s: %w", KeySpaceCheck, err)
	}
	if err := pathsync.ValidateExclusions(c.ExcludeFiles); err != nil {
		return fmt.Errorf("%s: %w", KeyExcludeFiles, err)
	}
	if err := pathsync.ValidateExclusions(c.ExcludeDirs); err != nil {
		return fmt.Errorf("%s: %w", KeyExcludeDirs, err)
	}

	var err error
	if c.Source, err = absPath(c.Source); err != nil {
		return fmt.Errorf("could not resolve source path: %w", err)
	}
	if c.Target, err = absPath(c.Target); err != nil {
		return fmt.Errorf("could not resolve destination path: %w", err)
	}
	if c.LogPath, err = absPath(c.LogPath); err != nil {
		return fmt.Errorf("could not resolve log file path: %w", err)
	}

	if util.IsNested(c.Source, c.Target) {
		return fmt.Errorf("source %s and destination %s must not be nested within each other", c.Source, c.Target)
	}
	// Anything inside the destination that the source lacks gets deleted.
	if util.IsNested(c.Target, c.LogPath) {
		return fmt.Errorf("log file %s must not be inside the destination %s", c.LogPath, c.Target)
	}
	return nil
}

// LockPath is the single-instance lock file that guards LogPath.
func (c *Config) LockPath() string {
	return c.LogPath + ".lock"
}

// LogSummary logs the effective configuration.
func (c *Config) LogSummary() {
	logArgs := []any{
		"source", c.Source,
		"destination", c.Target,
		"log_file", c.LogPath,
		"interval", c.Interval,
		"space_check", c.SpaceCheck,
		"mod_time_window", c.ModTimeWindow,
		"hash_cache", humanize.Comma(int64(c.HashCacheSize)),
		"buffer_size", humanize.IBytes(uint64(pool.DefaultBufferSize)),
		"log_level", c.LogLevel,
		"dry_run", c.DryRun,
	}
	if c.Once {
		logArgs = append(logArgs, "once", true)
	}
	if len(c.ExcludeFiles) > 0 {
		logArgs = append(logArgs, "exclude_files", strings.Join(c.ExcludeFiles, ", "))
	}
	if len(c.ExcludeDirs) > 0 {
		logArgs = append(logArgs, "exclude_dirs", strings.Join(c.ExcludeDirs, ", "))
	}
	plog.Info("Configuration loaded", logArgs...)
}

func absPath(p string) (string, error) {
	expanded, err := util.ExpandPath(p)
	if err != nil {
		return "", err
	}
	return filepath.Abs(expanded)
}

// splitList flattens comma separated entries. Environment variables arrive as
// one string, flags as a slice; both end up as a clean list.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
