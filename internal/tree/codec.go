package tree

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
	"github.com/pairmount/pairmount/internal/utils"
)

// SidecarPath returns the version descriptor path for a root:
// <root>/.pairmount/db.json
func SidecarPath(root string) string {
	return filepath.Join(root, MetadataDirName, SidecarFileName)
}

// DecodeSidecar reads a root's version descriptor. Absence, corruption and
// foreign formats all yield nil - "no version" - and never an error, since
// every one of those cases resolves the same way: the side gets rebuilt.
// Corruption is logged at warn to distinguish it from plain absence.
func DecodeSidecar(path string) *TreeVersion {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Debug("sidecar absent", "path", path)
		} else {
			slog.Warn("sidecar unreadable", "path", path, "error", err)
		}
		return nil
	}

	var v TreeVersion
	if err := json.Unmarshal(data, &v); err != nil {
		slog.Warn("sidecar corrupt", "path", path, "error", err)
		return nil
	}

	if v.FormatTag != FormatTag {
		slog.Warn("sidecar foreign format", "path", path, "formatTag", v.FormatTag)
		return nil
	}
	if v.SchemaVersion != SchemaVersion {
		slog.Warn("sidecar schema mismatch", "path", path, "schemaVersion", v.SchemaVersion, "want", SchemaVersion)
		return nil
	}

	return &v
}

// EncodeSidecar persists a version descriptor, creating the metadata dir if
// missing. The write goes to a temp file in the same directory and is
// renamed into place, so a crash mid-write never leaves a half-written
// sidecar. Key order in the output is stable, so two encodes of identical
// data are byte-identical and sidecars diff cleanly.
func EncodeSidecar(v *TreeVersion, path string) error {
	if err := utils.EnsureParent(path); err != nil {
		return fmt.Errorf("sidecar dir: %w", err)
	}

	// map keys marshal sorted, struct fields in declaration order
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal sidecar: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".db-*.tmp")
	if err != nil {
		return fmt.Errorf("write sidecar %s: %w", path, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write sidecar %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("write sidecar %s: %w", path, err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("write sidecar %s: %w", path, err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("write sidecar %s: %w", path, err)
	}

	return nil
}
