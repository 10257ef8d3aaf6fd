package pathsync

import (
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/paulschiretz/pgl-mirror/pkg/plog"
)

// EventKind identifies a significant change made by a pass.
type EventKind int

const (
	DirCreated EventKind = iota
	FileCreated
	FileUpdated
	FileDeleted
	DirDeleted
	InsufficientSpace
	ItemFailed
)

var eventKindToString = map[EventKind]string{
	DirCreated:        "Directory created",
	FileCreated:       "File created",
	FileUpdated:       "File updated",
	FileDeleted:       "File deleted",
	DirDeleted:        "Directory deleted",
	InsufficientSpace: "Insufficient space",
	ItemFailed:        "Item failed",
}

func (k EventKind) String() string {
	if str, ok := eventKindToString[k]; ok {
		return str
	}
	return fmt.Sprintf("unknown_event(%d)", int(k))
}

// Event describes one change. Size is set for file events, Err for
// InsufficientSpace and ItemFailed.
type Event struct {
	Kind    EventKind
	RelPath string
	Size    int64
	Err     error
}

// EventHandler receives events in the order the changes were made.
// It is called on the pass goroutine and must not block for long.
type EventHandler func(Event)

// LogEvent is the default EventHandler: one log line per change.
func LogEvent(e Event) {
	switch e.Kind {
	case FileCreated, FileUpdated:
		plog.Info(e.Kind.String(), "path", e.RelPath, "size", humanize.IBytes(uint64(e.Size)))
	case InsufficientSpace:
		plog.Warn(e.Kind.String(), "path", e.RelPath, "error", e.Err)
	case ItemFailed:
		plog.Error(e.Kind.String(), "path", e.RelPath, "error", e.Err)
	default:
		plog.Info(e.Kind.String(), "path", e.RelPath)
	}
}
