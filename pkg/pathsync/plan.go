package pathsync

import "time"

// Plan is the immutable description of one mirror pass.
type Plan struct {
	Source string
	Target string

	SpaceCheck    SpaceCheck
	ModTimeWindow time.Duration // Modification times within this window are considered equal; 0 is exact.

	ExcludeFiles []string
	ExcludeDirs  []string

	DryRun bool
}
