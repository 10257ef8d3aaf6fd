// Package preflight provides functions for validation and checks that run before
// a mirror pass begins. These checks are stateless and idempotent, with the exception
// of the target creation and write test, ensuring the system is in a suitable state
// for a pass to proceed.
package preflight

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/paulschiretz/pgl-mirror/pkg/plog"
	"github.com/paulschiretz/pgl-mirror/pkg/util"
)

// ErrSourceMissing is returned when the source root does not exist.
var ErrSourceMissing = errors.New("source directory does not exist")

// Run executes the startup checks selected by plan.
func Run(plan *Plan, srcPath, targetPath string) error {
	if plan.PathNesting {
		if err := CheckPathNesting(srcPath, targetPath); err != nil {
			return err
		}
	}
	if plan.TargetAccessible {
		if err := CheckTargetAccessible(targetPath); err != nil {
			return err
		}
	}
	if plan.DryRun {
		plog.Debug("[DRY RUN] Skipping target creation and write test", "target", targetPath)
		return nil
	}
	if plan.EnsureTargetExists {
		if err := os.MkdirAll(targetPath, util.UserWritableDirPerms); err != nil {
			return fmt.Errorf("failed to create target directory %s: %w", targetPath, err)
		}
	}
	if plan.TargetWriteable {
		if err := CheckTargetWritable(targetPath); err != nil {
			return err
		}
	}
	return nil
}

// CheckPathNesting rejects a source and target that contain each other: the
// mirror would either copy into itself or delete its own source.
func CheckPathNesting(srcPath, targetPath string) error {
	absSrc, err := filepath.Abs(srcPath)
	if err != nil {
		return fmt.Errorf("cannot resolve source path %s: %w", srcPath, err)
	}
	absTarget, err := filepath.Abs(targetPath)
	if err != nil {
		return fmt.Errorf("cannot resolve target path %s: %w", targetPath, err)
	}
	if util.IsNested(absSrc, absTarget) {
		return fmt.Errorf("source %s and target %s must not be nested within each other", absSrc, absTarget)
	}
	return nil
}

// CheckSourceAccessible validates that the source path exists and is a directory.
// A missing source wraps ErrSourceMissing.
func CheckSourceAccessible(srcPath string) error {
	srcInfo, err := os.Stat(srcPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrSourceMissing, srcPath)
		}
		return fmt.Errorf("cannot stat source directory %s: %w", srcPath, err)
	}

	if !srcInfo.IsDir() {
		return fmt.Errorf("source path %s is not a directory", srcPath)
	}

	return nil
}

// CheckTargetAccessible performs checks to ensure the mirror target is usable.
// It provides more user-friendly errors than letting os.MkdirAll fail.
//
// The checks include:
//  1. On Windows, verifies that the drive or network share (e.g., "Z:", "\\Server\Share") exists.
//  2. If the target path exists, confirms it is a directory.
//  3. If the target path does not exist, confirms the deepest existing ancestor is accessible.
func CheckTargetAccessible(targetPath string) error {
	if err := checkVolumeExists(targetPath); err != nil {
		return err
	}

	info, err := os.Stat(targetPath)
	if os.IsNotExist(err) || os.IsPermission(err) {
		ancestor := deepestExistingAncestor(targetPath)
		if _, err := os.ReadDir(ancestor); err != nil {
			return fmt.Errorf("cannot access ancestor directory %s: %w", ancestor, err)
		}
		return nil
	} else if err != nil {
		return fmt.Errorf("cannot access target path: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("target path exists but is not a directory: %s", targetPath)
	}
	return nil
}

// CheckTargetWritable ensures the existing target directory is writable by
// creating and deleting a temporary file.
func CheckTargetWritable(targetPath string) error {
	info, err := os.Stat(targetPath)
	if os.IsNotExist(err) {
		return fmt.Errorf("target directory does not exist: %s", targetPath)
	} else if err != nil {
		return fmt.Errorf("cannot access target path: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("target path exists but is not a directory: %s", targetPath)
	}

	tempFile := filepath.Join(targetPath, ".pgl-mirror-writetest.tmp")
	f, err := os.Create(tempFile)
	if err != nil {
		return fmt.Errorf("target directory %s is not writable: %w", targetPath, err)
	}
	f.Close()
	_ = os.Remove(tempFile)
	return nil
}

// deepestExistingAncestor walks up from path until it finds a directory entry
// that exists. It returns the filesystem root if nothing else exists.
func deepestExistingAncestor(path string) string {
	ancestor := filepath.Clean(path)
	for {
		if _, err := os.Stat(ancestor); err == nil {
			return ancestor
		}
		parent := filepath.Dir(ancestor)
		if parent == ancestor {
			return ancestor // Hit root
		}
		ancestor = parent
	}
}
