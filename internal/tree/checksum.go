package tree

import (
	"context"
	"log/slog"
	"path/filepath"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pairmount/pairmount/internal/utils"
)

const defaultChecksumCacheSize = 16384

type checksumKey struct {
	path     string
	size     int64
	modNanos int64
}

// Checksummer runs the opt-in content checksum pass over a scanned tree.
// It is deliberately separate from Scan: hashing reads every file and can
// take minutes on large external media, so pairs enable it explicitly.
// Results are cached by (path, size, mtime) so unchanged files are not
// re-read on subsequent rebuilds.
type Checksummer struct {
	cache *lru.Cache[checksumKey, string]
}

func NewChecksummer() (*Checksummer, error) {
	cache, err := lru.New[checksumKey, string](defaultChecksumCacheSize)
	if err != nil {
		return nil, err
	}
	return &Checksummer{cache: cache}, nil
}

// Fill populates ContentChecksum for every non-directory entry of v.
// Per-file read failures are logged and skipped, mirroring the scanner's
// per-entry recovery rule.
func (c *Checksummer) Fill(ctx context.Context, root string, v *TreeVersion) error {
	for path, info := range v.Entries {
		if info.IsDirectory != nil && *info.IsDirectory {
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		absPath := filepath.Join(root, filepath.FromSlash(path))
		key := checksumKey{
			path:     absPath,
			modNanos: info.ModifiedAt.UnixNano(),
		}
		if info.Size != nil {
			key.size = *info.Size
		}

		sum, ok := c.cache.Get(key)
		if !ok {
			var err error
			sum, err = utils.FileHash(absPath)
			if err != nil {
				slog.Warn("checksum skip", "path", absPath, "error", err)
				continue
			}
			c.cache.Add(key, sum)
		}

		info.ContentChecksum = &sum
		v.Entries[path] = info
	}

	return nil
}
