package tree

import (
	"time"
)

const (
	// SchemaVersion is the compiled-in sidecar schema revision. Sidecars with
	// any other value are rejected as foreign.
	SchemaVersion = 1

	// FormatTag identifies a sidecar file as ours. A mismatch means some
	// other tool wrote a db.json in the metadata dir.
	FormatTag = "pairmount/tree-version"

	// MetadataDirName is the reserved directory inside every scanned root
	// that holds the sidecar. Scans always exclude it.
	MetadataDirName = ".pairmount"

	// SidecarFileName is the version descriptor file inside the metadata dir.
	SidecarFileName = "db.json"
)

// EntryInfo is the per-path metadata recorded in a TreeVersion. Size is nil
// for directories. ContentChecksum is only populated when the pair opts in
// to the slower checksum pass.
type EntryInfo struct {
	Size            *int64    `json:"size"`
	ModifiedAt      time.Time `json:"modifiedAt"`
	ContentChecksum *string   `json:"contentChecksum"`
	IsDirectory     *bool     `json:"isDirectory"`
}

// TreeVersion is one side's version descriptor, minted per rebuild. The
// token is opaque and compared only for equality - a mismatch means
// "different", never "older" or "newer". A TreeVersion is never edited in
// place: each rebuild mints a fresh one that supersedes the previous.
type TreeVersion struct {
	SchemaVersion int                  `json:"schemaVersion"`
	FormatTag     string               `json:"formatTag"`
	SourceKey     string               `json:"sourceKey"`
	Token         string               `json:"token"`
	ScannedAt     time.Time            `json:"scannedAt"`
	FileCount     int                  `json:"fileCount"`
	TotalSize     int64                `json:"totalSize"`
	Fingerprint   string               `json:"fingerprint"`
	Entries       map[string]EntryInfo `json:"entries"`
}

// NewTreeVersion builds a version descriptor from a scan result.
// FileCount and TotalSize aggregate non-directory entries only.
func NewTreeVersion(sourceKey, token string, scannedAt time.Time, entries []Entry) *TreeVersion {
	v := &TreeVersion{
		SchemaVersion: SchemaVersion,
		FormatTag:     FormatTag,
		SourceKey:     sourceKey,
		Token:         token,
		ScannedAt:     scannedAt,
		Fingerprint:   Fingerprint(entries),
		Entries:       make(map[string]EntryInfo, len(entries)),
	}

	for _, e := range entries {
		info := EntryInfo{
			ModifiedAt: e.ModifiedAt,
		}
		if e.IsDir {
			isDir := true
			info.IsDirectory = &isDir
		} else {
			size := e.Size
			info.Size = &size
			v.FileCount++
			v.TotalSize += e.Size
		}
		v.Entries[e.Path] = info
	}

	return v
}
