package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

const entrySchema = `
CREATE TABLE IF NOT EXISTS file_entries (
    pair_id       TEXT NOT NULL,
    virtual_path  TEXT NOT NULL,
    local_path    TEXT,
    external_path TEXT,
    size          INTEGER NOT NULL DEFAULT 0,
    modified_at   TEXT NOT NULL, -- RFC3339
    created_at    TEXT NOT NULL,
    accessed_at   TEXT NOT NULL,
    location      TEXT NOT NULL,
    PRIMARY KEY (pair_id, virtual_path)
);

CREATE INDEX IF NOT EXISTS idx_file_entries_location ON file_entries(pair_id, location);
`

// fileEntryRow is the sqlite image of a FileEntry. Timestamps are stored as
// RFC3339 strings so the schema is portable across sqlite drivers.
type fileEntryRow struct {
	PairID       string  `db:"pair_id"`
	VirtualPath  string  `db:"virtual_path"`
	LocalPath    *string `db:"local_path"`
	ExternalPath *string `db:"external_path"`
	Size         int64   `db:"size"`
	ModifiedAt   string  `db:"modified_at"`
	CreatedAt    string  `db:"created_at"`
	AccessedAt   string  `db:"accessed_at"`
	Location     string  `db:"location"`
}

func (r *fileEntryRow) toEntry() (*FileEntry, error) {
	entry := &FileEntry{
		SyncPairID:           r.PairID,
		VirtualPath:          r.VirtualPath,
		LocalPhysicalPath:    r.LocalPath,
		ExternalPhysicalPath: r.ExternalPath,
		Size:                 r.Size,
		Location:             Location(r.Location),
	}

	var err error
	if entry.ModifiedAt, err = time.Parse(time.RFC3339Nano, r.ModifiedAt); err != nil {
		return nil, fmt.Errorf("parse modified_at for %s: %w", r.VirtualPath, err)
	}
	if entry.CreatedAt, err = time.Parse(time.RFC3339Nano, r.CreatedAt); err != nil {
		return nil, fmt.Errorf("parse created_at for %s: %w", r.VirtualPath, err)
	}
	if entry.AccessedAt, err = time.Parse(time.RFC3339Nano, r.AccessedAt); err != nil {
		return nil, fmt.Errorf("parse accessed_at for %s: %w", r.VirtualPath, err)
	}

	return entry, nil
}

func toRow(e *FileEntry) *fileEntryRow {
	return &fileEntryRow{
		PairID:       e.SyncPairID,
		VirtualPath:  e.VirtualPath,
		LocalPath:    e.LocalPhysicalPath,
		ExternalPath: e.ExternalPhysicalPath,
		Size:         e.Size,
		ModifiedAt:   e.ModifiedAt.Format(time.RFC3339Nano),
		CreatedAt:    e.CreatedAt.Format(time.RFC3339Nano),
		AccessedAt:   e.AccessedAt.Format(time.RFC3339Nano),
		Location:     string(e.Location),
	}
}

// EntryStore is the persistent repository of merged per-path location
// records. The reconciliation engine is its main writer; other components
// (a live file-watch, the control plane) read it.
type EntryStore struct {
	db *sqlx.DB
}

func NewEntryStore(db *sqlx.DB) (*EntryStore, error) {
	if _, err := db.Exec(entrySchema); err != nil {
		return nil, fmt.Errorf("init file_entries schema: %w", err)
	}
	return &EntryStore{db: db}, nil
}

// Upsert inserts or replaces the record for (pair, virtual path).
// Last write wins for every field.
func (s *EntryStore) Upsert(ctx context.Context, entry *FileEntry) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT OR REPLACE INTO file_entries
		(pair_id, virtual_path, local_path, external_path, size, modified_at, created_at, accessed_at, location)
		VALUES (:pair_id, :virtual_path, :local_path, :external_path, :size, :modified_at, :created_at, :accessed_at, :location)`,
		toRow(entry),
	)
	if err != nil {
		return fmt.Errorf("upsert entry %s: %w", entry.VirtualPath, err)
	}
	return nil
}

// Get returns the record for (pair, virtual path), or nil when absent.
func (s *EntryStore) Get(ctx context.Context, pairID, virtualPath string) (*FileEntry, error) {
	var row fileEntryRow
	err := s.db.GetContext(ctx, &row,
		`SELECT * FROM file_entries WHERE pair_id = ? AND virtual_path = ?`,
		pairID, virtualPath,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get entry %s: %w", virtualPath, err)
	}
	return row.toEntry()
}

// ListByPair returns every record of a pair, ordered by virtual path.
func (s *EntryStore) ListByPair(ctx context.Context, pairID string) ([]*FileEntry, error) {
	var rows []fileEntryRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT * FROM file_entries WHERE pair_id = ? ORDER BY virtual_path`,
		pairID,
	)
	if err != nil {
		return nil, fmt.Errorf("list entries for pair %s: %w", pairID, err)
	}

	entries := make([]*FileEntry, 0, len(rows))
	for i := range rows {
		entry, err := rows[i].toEntry()
		if err != nil {
			// a corrupt row should not hide the rest of the pair
			slog.Error("skip corrupt entry row", "path", rows[i].VirtualPath, "error", err)
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// ListSidePaths returns the virtual paths of a pair currently attributed to
// the given side (side-only or both). The rebuild sweep diffs this against
// the freshly scanned set to find vanished paths.
func (s *EntryStore) ListSidePaths(ctx context.Context, pairID string, side Side) ([]string, error) {
	var paths []string
	err := s.db.SelectContext(ctx, &paths,
		`SELECT virtual_path FROM file_entries WHERE pair_id = ? AND location IN (?, ?)`,
		pairID, string(LocationBoth), string(SideOnly(side)),
	)
	if err != nil {
		return nil, fmt.Errorf("list %s paths for pair %s: %w", side, pairID, err)
	}
	return paths, nil
}

// CountByPair returns the number of records held for a pair.
func (s *EntryStore) CountByPair(ctx context.Context, pairID string) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM file_entries WHERE pair_id = ?`, pairID,
	)
	if err != nil {
		return 0, fmt.Errorf("count entries for pair %s: %w", pairID, err)
	}
	return count, nil
}
