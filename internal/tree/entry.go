package tree

import (
	"time"
)

// Entry is one filesystem object observed during a scan. Paths are virtual:
// root-relative and slash-separated on every platform.
type Entry struct {
	Path       string
	Size       int64 // zero for directories
	ModifiedAt time.Time
	CreatedAt  time.Time
	IsDir      bool
}
