package pathsync

import (
	"time"

	"github.com/dustin/go-humanize"

	"github.com/paulschiretz/pgl-mirror/pkg/hints"
	"github.com/paulschiretz/pgl-mirror/pkg/plog"
)

// Report holds the counters of one pass. All mutations happen on the pass
// goroutine; the value is handed to the caller once the pass returns.
type Report struct {
	DirsCreated        int64
	FilesCreated       int64
	FilesUpdated       int64
	FilesUpToDate      int64
	FilesDeleted       int64
	DirsDeleted        int64
	FilesSkippedSpace  int64
	FilesSkippedLocked int64
	BytesWritten       int64
	EntriesScanned     int64

	Duration time.Duration

	// Errors holds per-item errors. Skips are wrapped as hints.
	Errors []error
}

// Failures returns the per-item errors that are not skips.
func (r *Report) Failures() []error {
	failures, _ := hints.Split(r.Errors)
	return failures
}

// Changed reports whether the pass modified (or in a dry run, would have
// modified) the destination.
func (r *Report) Changed() bool {
	return r.DirsCreated+r.FilesCreated+r.FilesUpdated+r.FilesDeleted+r.DirsDeleted > 0
}

// LogSummary prints a summary of the pass with a custom message.
func (r *Report) LogSummary(msg string) {
	failures, skipped := hints.Split(r.Errors)
	plog.Info(msg,
		"entries_scanned", r.EntriesScanned,
		"bytes_written", humanize.IBytes(uint64(r.BytesWritten)),
		"dirs_created", r.DirsCreated,
		"files_created", r.FilesCreated,
		"files_updated", r.FilesUpdated,
		"files_uptodate", r.FilesUpToDate,
		"files_deleted", r.FilesDeleted,
		"dirs_deleted", r.DirsDeleted,
		"skipped_space", r.FilesSkippedSpace,
		"skipped_locked", r.FilesSkippedLocked,
		"skipped", len(skipped),
		"errors", len(failures),
		"duration", r.Duration.Round(time.Millisecond),
	)
}
