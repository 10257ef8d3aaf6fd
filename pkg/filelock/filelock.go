// Package filelock wraps OS advisory file locks for two jobs: probing whether
// another process holds a file exclusively, and making sure only one mirror
// loop writes to a given log file at a time.
package filelock

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/paulschiretz/pgl-mirror/pkg/plog"
)

// ErrInstanceActive is matched by *ErrLockActive via errors.Is.
var ErrInstanceActive = errors.New("another mirror instance is active")

const lockFileMode = 0644

// LockContent is written into the instance lock file so a second process can
// report who holds it.
type LockContent struct {
	PID     int64     `json:"pid"`
	Started time.Time `json:"started"`
	AppID   string    `json:"app_id"`
}

// ErrLockActive is returned by AcquireInstance when the lock is held.
// PID and AppID are zero when the holder's lock content could not be read.
type ErrLockActive struct {
	Path  string
	PID   int64
	AppID string
}

func (e *ErrLockActive) Error() string {
	if e.PID == 0 {
		return fmt.Sprintf("lock %s is held by another process", e.Path)
	}
	return fmt.Sprintf("lock %s is held by PID %d (App: %s)", e.Path, e.PID, e.AppID)
}

// Is makes errors.Is(err, ErrInstanceActive) work.
func (e *ErrLockActive) Is(target error) bool {
	return target == ErrInstanceActive
}

// Probe tests files for exclusive locks held by other processes.
// The zero value is ready to use.
type Probe struct{}

// IsLocked reports whether path is exclusively locked by someone else, i.e. a
// non-blocking shared lock cannot be taken. On Windows a file opened by
// another process without read sharing counts as locked as well. The file is
// opened read-only and is never created.
func (Probe) IsLocked(path string) (bool, error) {
	fl := flock.New(path, flock.SetFlag(os.O_RDONLY))
	defer fl.Close()

	ok, err := fl.TryRLock()
	if err != nil {
		if isShareViolation(err) {
			return true, nil
		}
		return false, fmt.Errorf("failed to probe lock on %s: %w", path, err)
	}
	if !ok {
		return true, nil
	}
	if err := fl.Unlock(); err != nil {
		return false, fmt.Errorf("failed to release probe lock on %s: %w", path, err)
	}
	return false, nil
}

// Instance is an acquired single-instance lock.
type Instance struct {
	mu   sync.Mutex
	fl   *flock.Flock
	held bool
}

// AcquireInstance takes an exclusive, non-blocking lock on path. It fails with
// an *ErrLockActive when another process already holds it.
func AcquireInstance(path, appID string) (*Instance, error) {
	fl := flock.New(path, flock.SetPermissions(lockFileMode))

	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock %s: %w", path, err)
	}
	if !locked {
		lockErr := &ErrLockActive{Path: path}
		if content, err := readLockContent(path); err == nil {
			lockErr.PID = content.PID
			lockErr.AppID = content.AppID
		}
		return nil, lockErr
	}

	content := LockContent{PID: int64(os.Getpid()), Started: time.Now(), AppID: appID}
	if data, err := json.MarshalIndent(content, "", "  "); err == nil {
		// Mandatory locks (Windows) reject writes through a second handle; the
		// content is informational only.
		if err := os.WriteFile(path, data, lockFileMode); err != nil {
			plog.Debug("Could not write lock content", "path", path, "error", err)
		}
	}

	plog.Debug("Instance lock acquired", "path", path)
	return &Instance{fl: fl, held: true}, nil
}

// Release unlocks and removes the lock file. Calling it twice is a no-op.
func (i *Instance) Release() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if !i.held {
		return nil
	}
	i.held = false

	if err := i.fl.Unlock(); err != nil {
		return fmt.Errorf("failed to unlock %s: %w", i.fl.Path(), err)
	}
	if err := os.Remove(i.fl.Path()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lock file %s: %w", i.fl.Path(), err)
	}
	plog.Debug("Instance lock released", "path", i.fl.Path())
	return nil
}

func readLockContent(path string) (LockContent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return LockContent{}, err
	}
	if len(data) == 0 {
		return LockContent{}, errors.New("lock file is empty")
	}
	var content LockContent
	if err := json.Unmarshal(data, &content); err != nil {
		return LockContent{}, err
	}
	return content, nil
}
