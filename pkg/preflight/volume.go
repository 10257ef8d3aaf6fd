package preflight

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/shirou/gopsutil/v4/disk"
)

// VolumeInfo describes the mounted volume a path lives on.
type VolumeInfo struct {
	Device     string
	Mountpoint string
	Fstype     string
}

// Volume returns the volume holding path: the partition with the longest
// mountpoint that contains it.
func Volume(path string) (VolumeInfo, error) {
	abs, err := filepath.Abs(deepestExistingAncestor(path))
	if err != nil {
		return VolumeInfo{}, err
	}

	parts, err := disk.Partitions(false)
	if err != nil {
		return VolumeInfo{}, fmt.Errorf("failed to list partitions: %w", err)
	}

	var best disk.PartitionStat
	found := false
	for _, p := range parts {
		if !isWithin(abs, p.Mountpoint) {
			continue
		}
		if !found || len(p.Mountpoint) > len(best.Mountpoint) {
			best = p
			found = true
		}
	}
	if !found {
		return VolumeInfo{}, fmt.Errorf("no mounted volume contains %s", abs)
	}
	return VolumeInfo{Device: best.Device, Mountpoint: best.Mountpoint, Fstype: best.Fstype}, nil
}

// isWithin reports whether path equals mount or lies below it.
func isWithin(path, mount string) bool {
	if mount == "" {
		return false
	}
	if runtime.GOOS == "windows" {
		path = strings.ToLower(path)
		mount = strings.ToLower(mount)
	}
	sep := string(filepath.Separator)
	mount = strings.TrimSuffix(mount, sep)
	return path == mount || strings.HasPrefix(path, mount+sep)
}
