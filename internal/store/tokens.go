package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

const tokenSchema = `
CREATE TABLE IF NOT EXISTS tree_tokens (
    source_key TEXT PRIMARY KEY,
    token      TEXT NOT NULL,
    updated_at TEXT NOT NULL -- RFC3339
);
`

// TokenStore is the durable key-value store of last-trusted version tokens,
// keyed by source key ("LOCAL:<pairId>" / "EXTERNAL:<pairId>"). It survives
// restarts; the engine mirrors it in memory.
type TokenStore struct {
	db *sqlx.DB
}

func NewTokenStore(db *sqlx.DB) (*TokenStore, error) {
	if _, err := db.Exec(tokenSchema); err != nil {
		return nil, fmt.Errorf("init tree_tokens schema: %w", err)
	}
	return &TokenStore{db: db}, nil
}

// GetStoredVersion returns the token recorded for a source key. The second
// return is false when no token has ever been recorded.
func (s *TokenStore) GetStoredVersion(ctx context.Context, sourceKey string) (string, bool, error) {
	var token string
	err := s.db.GetContext(ctx, &token,
		`SELECT token FROM tree_tokens WHERE source_key = ?`, sourceKey,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get token %s: %w", sourceKey, err)
	}
	return token, true, nil
}

// SetStoredVersion records the token for a source key.
func (s *TokenStore) SetStoredVersion(ctx context.Context, sourceKey, token string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO tree_tokens (source_key, token, updated_at) VALUES (?, ?, ?)`,
		sourceKey, token, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("set token %s: %w", sourceKey, err)
	}
	return nil
}

// DeleteStoredVersion drops the token for a source key, forcing a rebuild
// of that side at the next startup check.
func (s *TokenStore) DeleteStoredVersion(ctx context.Context, sourceKey string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM tree_tokens WHERE source_key = ?`, sourceKey,
	)
	if err != nil {
		return fmt.Errorf("delete token %s: %w", sourceKey, err)
	}
	return nil
}
