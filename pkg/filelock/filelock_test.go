package filelock

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/gofrs/flock"
)

func TestProbe_IsLocked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.bin")
	if err := os.WriteFile(path, []byte("payload"), 0644); err != nil {
		t.Fatalf("failed to create file: %v", err)
	}

	var p Probe

	t.Run("Unlocked file", func(t *testing.T) {
		locked, err := p.IsLocked(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if locked {
			t.Error("expected file to be reported as unlocked")
		}
	})

	t.Run("Shared lock held elsewhere", func(t *testing.T) {
		other := flock.New(path, flock.SetFlag(os.O_RDONLY))
		defer other.Close()
		if ok, err := other.TryRLock(); err != nil || !ok {
			t.Fatalf("failed to take shared lock: ok=%v err=%v", ok, err)
		}
		defer other.Unlock()

		locked, err := p.IsLocked(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if locked {
			t.Error("a shared lock must not block readers")
		}
	})

	t.Run("Exclusive lock held elsewhere", func(t *testing.T) {
		other := flock.New(path)
		defer other.Close()
		if ok, err := other.TryLock(); err != nil || !ok {
			t.Fatalf("failed to take exclusive lock: ok=%v err=%v", ok, err)
		}
		defer other.Unlock()

		locked, err := p.IsLocked(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !locked {
			t.Error("expected file to be reported as locked")
		}
	})

	t.Run("Missing file", func(t *testing.T) {
		missing := filepath.Join(t.TempDir(), "missing.bin")
		if _, err := p.IsLocked(missing); err == nil {
			t.Error("expected an error for a missing file")
		}
		if _, err := os.Stat(missing); !os.IsNotExist(err) {
			t.Error("probe must not create the file")
		}
	})
}

func TestAcquireInstanceAndRelease(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "mirror.log.lock")

	inst, err := AcquireInstance(lockPath, "test-app")
	if err != nil {
		t.Fatalf("expected to acquire lock, but got error: %v", err)
	}

	if _, err := os.Stat(lockPath); os.IsNotExist(err) {
		t.Fatal("lock file was not created after acquiring lock")
	}

	if err := inst.Release(); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if _, err := os.Stat(lockPath); !os.IsNotExist(err) {
		t.Fatal("lock file was not removed after releasing lock")
	}

	// Second release is a no-op.
	if err := inst.Release(); err != nil {
		t.Errorf("second release returned error: %v", err)
	}
}

func TestAcquireInstance_Contention(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "mirror.log.lock")

	first, err := AcquireInstance(lockPath, "app-1")
	if err != nil {
		t.Fatalf("first instance failed to acquire lock: %v", err)
	}
	defer first.Release()

	_, err = AcquireInstance(lockPath, "app-2")
	if err == nil {
		t.Fatal("second instance unexpectedly acquired an active lock")
	}
	if !errors.Is(err, ErrInstanceActive) {
		t.Errorf("expected ErrInstanceActive, got %v", err)
	}
	var lockErr *ErrLockActive
	if !errors.As(err, &lockErr) {
		t.Fatalf("expected error of type *ErrLockActive, but got %T: %v", err, err)
	}
	if lockErr.Path != lockPath {
		t.Errorf("expected path %s, got %s", lockPath, lockErr.Path)
	}

	// Once released, the lock can be taken again.
	if err := first.Release(); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	again, err := AcquireInstance(lockPath, "app-2")
	if err != nil {
		t.Fatalf("expected to reacquire lock after release: %v", err)
	}
	again.Release()
}

func TestReadLockContent(t *testing.T) {
	dir := t.TempDir()

	t.Run("Empty file", func(t *testing.T) {
		path := filepath.Join(dir, "empty.lock")
		os.WriteFile(path, nil, lockFileMode)
		if _, err := readLockContent(path); err == nil {
			t.Error("expected error for empty lock file")
		}
	})

	t.Run("Valid content", func(t *testing.T) {
		path := filepath.Join(dir, "valid.lock")
		os.WriteFile(path, []byte(`{"pid": 42, "app_id": "mirror"}`), lockFileMode)
		content, err := readLockContent(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if content.PID != 42 || content.AppID != "mirror" {
			t.Errorf("unexpected content: %+v", content)
		}
	})
}
