package tree

import (
	gitignore "github.com/sabhiram/go-gitignore"
)

// defaultIgnoreLines are always excluded from scans. The reserved metadata
// dir holds our own sidecar and must never feed back into its own scan.
var defaultIgnoreLines = []string{
	MetadataDirName + "/",
	".DS_Store",
	"Thumbs.db",
	"Icon",
	"*.tmp",
	"*.swp",
	".Spotlight-V100/",
	".Trashes/",
	".fseventsd/",
	"$RECYCLE.BIN/",
	"System Volume Information/",
}

// IgnoreList decides which virtual paths are excluded from a scan.
// Patterns use gitignore syntax.
type IgnoreList struct {
	ignore *gitignore.GitIgnore
}

// NewIgnoreList builds an ignore list from the built-in exclusions plus any
// user-supplied patterns.
func NewIgnoreList(extra ...string) *IgnoreList {
	lines := make([]string, 0, len(defaultIgnoreLines)+len(extra))
	lines = append(lines, defaultIgnoreLines...)
	lines = append(lines, extra...)
	return &IgnoreList{ignore: gitignore.CompileIgnoreLines(lines...)}
}

func (l *IgnoreList) ShouldIgnore(relPath string) bool {
	return l.ignore.MatchesPath(relPath)
}
