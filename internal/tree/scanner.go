package tree

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/pairmount/pairmount/internal/utils"
)

// ScanError means the root itself could not be opened or enumerated. It is
// fatal to the rebuild attempt that triggered the scan. Per-entry failures
// inside an otherwise readable root are logged and skipped instead.
type ScanError struct {
	Root string
	Err  error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("scan %s: %v", e.Root, e.Err)
}

func (e *ScanError) Unwrap() error {
	return e.Err
}

// Scan recursively enumerates root into a flat, deterministic entry list.
// Hidden entries, the reserved metadata dir and anything matched by ignore
// are excluded. A pure function of the filesystem at the instant of the
// call: no state is read or written, and no file content is hashed.
func Scan(ctx context.Context, root string, ignore *IgnoreList) ([]Entry, error) {
	if !utils.DirExists(root) {
		return nil, &ScanError{Root: root, Err: fs.ErrNotExist}
	}

	var entries []Entry

	walkFn := func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return &ScanError{Root: root, Err: err}
			}
			// unreadable subtree, e.g. permissions or a deletion race
			slog.Warn("scan skip", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if path == root {
			return nil
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			slog.Warn("scan skip", "path", path, "error", err)
			return nil
		}
		relPath = utils.NormPath(relPath)

		name := d.Name()
		if strings.HasPrefix(name, ".") || name == MetadataDirName {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if ignore != nil && ignore.ShouldIgnore(relPath) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		info, err := d.Info()
		if err != nil {
			slog.Warn("scan skip", "path", path, "error", err)
			return nil
		}

		entry := Entry{
			Path:       relPath,
			ModifiedAt: info.ModTime(),
			// birth time is not portably available, mtime is the best
			// cross-platform stand-in
			CreatedAt: info.ModTime(),
			IsDir:     d.IsDir(),
		}
		if !d.IsDir() {
			entry.Size = info.Size()
		}
		entries = append(entries, entry)

		return nil
	}

	if err := filepath.WalkDir(root, walkFn); err != nil {
		var scanErr *ScanError
		if errors.As(err, &scanErr) {
			return nil, scanErr
		}
		return nil, err
	}

	return entries, nil
}
