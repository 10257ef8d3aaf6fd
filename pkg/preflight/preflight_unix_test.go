//go:build !windows

package preflight

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCheckTargetAccessible_Unix(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission checks do not apply to root")
	}

	t.Run("Error - No Permission on Deepest Existing Ancestor", func(t *testing.T) {
		grandparent := t.TempDir()
		unreadableAncestor := filepath.Join(grandparent, "unreadable_ancestor")

		if err := os.Mkdir(unreadableAncestor, 0000); err != nil {
			t.Fatalf("failed to create unreadable ancestor dir: %v", err)
		}
		t.Cleanup(func() { os.Chmod(unreadableAncestor, 0755) })

		targetDir := filepath.Join(unreadableAncestor, "non_existent_child", "target")

		err := CheckTargetAccessible(targetDir)
		if err == nil {
			t.Fatal("expected a permission error, but got nil")
		}
		expectedError := "cannot access ancestor directory"
		if !strings.Contains(err.Error(), expectedError) {
			t.Errorf("expected error to contain %q, but got: %v", expectedError, err)
		}
	})
}

func TestIsWithin(t *testing.T) {
	testCases := []struct {
		path, mount string
		want        bool
	}{
		{"/home/user", "/", true},
		{"/home/user", "/home", true},
		{"/home", "/home", true},
		{"/homework", "/home", false},
		{"/home", "", false},
	}
	for _, tc := range testCases {
		if got := isWithin(tc.path, tc.mount); got != tc.want {
			t.Errorf("isWithin(%q, %q) = %v, want %v", tc.path, tc.mount, got, tc.want)
		}
	}
}
