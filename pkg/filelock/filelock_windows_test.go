//go:build windows

package filelock

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/sys/windows"
)

// openExclusive opens path with no sharing, the way an editor or a database
// holds a file it is writing.
func openExclusive(t *testing.T, path string) windows.Handle {
	t.Helper()
	name, err := windows.UTF16PtrFromString(path)
	if err != nil {
		t.Fatalf("invalid path %s: %v", path, err)
	}
	h, err := windows.CreateFile(name, windows.GENERIC_READ|windows.GENERIC_WRITE, 0, nil, windows.OPEN_EXISTING, windows.FILE_ATTRIBUTE_NORMAL, 0)
	if err != nil {
		t.Fatalf("failed to open %s exclusively: %v", path, err)
	}
	t.Cleanup(func() { windows.CloseHandle(h) })
	return h
}

func TestProbe_IsLocked_ShareDenied(t *testing.T) {
	path := filepath.Join(t.TempDir(), "busy.db")
	if err := os.WriteFile(path, []byte("payload"), 0644); err != nil {
		t.Fatalf("failed to create file: %v", err)
	}
	openExclusive(t, path)

	locked, err := Probe{}.IsLocked(path)
	if err != nil {
		t.Fatalf("expected no error for a share-denied file, got %v", err)
	}
	if !locked {
		t.Error("expected a file opened without sharing to be reported as locked")
	}
}

func TestIsShareViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"Sharing Violation", &os.PathError{Op: "open", Path: "x", Err: windows.ERROR_SHARING_VIOLATION}, true},
		{"Lock Violation", fmt.Errorf("wrapped: %w", windows.ERROR_LOCK_VIOLATION), true},
		{"Access Denied", &os.PathError{Op: "open", Path: "x", Err: windows.ERROR_ACCESS_DENIED}, false},
		{"Not Found", os.ErrNotExist, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isShareViolation(tt.err); got != tt.want {
				t.Errorf("isShareViolation(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
