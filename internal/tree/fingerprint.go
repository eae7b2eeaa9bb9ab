package tree

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sort"
)

// Fingerprint folds a digest over the entry set, sorted by virtual path, so
// the result is independent of input order but sensitive to any change in a
// path, modification time or size. It is a change detector, not a
// cryptographic checksum: a collision only costs a missed rebuild, which the
// token and sidecar absence checks catch independently.
func Fingerprint(entries []Entry) string {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Path < sorted[j].Path
	})

	h := md5.New()
	for _, e := range sorted {
		size := e.Size
		if e.IsDir {
			// directories carry no size, keep them distinct from empty files
			size = -1
		}
		fmt.Fprintf(h, "%s|%d|%d\n", e.Path, e.ModifiedAt.UTC().UnixNano(), size)
	}

	return hex.EncodeToString(h.Sum(nil))
}
