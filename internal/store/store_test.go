package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pairmount/pairmount/internal/db"
)

func testDb(t *testing.T) *sqlx.DB {
	t.Helper()
	sqliteDb, err := db.NewSqliteDb(
		db.WithPath(filepath.Join(t.TempDir(), "test.db")),
		db.WithMaxOpenConns(1),
	)
	require.NoError(t, err)
	t.Cleanup(func() { sqliteDb.Close() })
	return sqliteDb
}

func strPtr(s string) *string {
	return &s
}

func TestEntryStore_UpsertAndGet(t *testing.T) {
	s, err := NewEntryStore(testDb(t))
	require.NoError(t, err)
	ctx := context.Background()

	mod := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	entry := &FileEntry{
		SyncPairID:        "p1",
		VirtualPath:       "docs/a.txt",
		LocalPhysicalPath: strPtr("/home/user/sync/docs/a.txt"),
		Size:              42,
		ModifiedAt:        mod,
		CreatedAt:         mod,
		AccessedAt:        mod,
		Location:          LocationLocalOnly,
	}
	require.NoError(t, s.Upsert(ctx, entry))

	got, err := s.Get(ctx, "p1", "docs/a.txt")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, LocationLocalOnly, got.Location)
	assert.Equal(t, int64(42), got.Size)
	require.NotNil(t, got.LocalPhysicalPath)
	assert.Equal(t, "/home/user/sync/docs/a.txt", *got.LocalPhysicalPath)
	assert.Nil(t, got.ExternalPhysicalPath)
	assert.True(t, got.ModifiedAt.Equal(mod))

	// last write wins
	entry.Location = LocationBoth
	entry.ExternalPhysicalPath = strPtr("/media/usb/docs/a.txt")
	require.NoError(t, s.Upsert(ctx, entry))

	got, err = s.Get(ctx, "p1", "docs/a.txt")
	require.NoError(t, err)
	assert.Equal(t, LocationBoth, got.Location)
	require.NotNil(t, got.ExternalPhysicalPath)
}

func TestEntryStore_GetMissing(t *testing.T) {
	s, err := NewEntryStore(testDb(t))
	require.NoError(t, err)

	got, err := s.Get(context.Background(), "p1", "nope.txt")
	require.NoError(t, err)
	assert.Nil(t, got, "absent entry is not an error")
}

func TestEntryStore_ListSidePaths(t *testing.T) {
	s, err := NewEntryStore(testDb(t))
	require.NoError(t, err)
	ctx := context.Background()
	now := time.Now().UTC()

	seed := []struct {
		path string
		loc  Location
	}{
		{"only-local.txt", LocationLocalOnly},
		{"only-external.txt", LocationExternalOnly},
		{"everywhere.txt", LocationBoth},
		{"nowhere.txt", LocationNotExists},
	}
	for _, e := range seed {
		require.NoError(t, s.Upsert(ctx, &FileEntry{
			SyncPairID:  "p1",
			VirtualPath: e.path,
			ModifiedAt:  now,
			CreatedAt:   now,
			AccessedAt:  now,
			Location:    e.loc,
		}))
	}

	localPaths, err := s.ListSidePaths(ctx, "p1", SideLocal)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"only-local.txt", "everywhere.txt"}, localPaths)

	externalPaths, err := s.ListSidePaths(ctx, "p1", SideExternal)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"only-external.txt", "everywhere.txt"}, externalPaths)

	count, err := s.CountByPair(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	entries, err := s.ListByPair(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, entries, 4)
}

func TestLocation_Observed(t *testing.T) {
	cases := []struct {
		prior Location
		side  Side
		want  Location
	}{
		{LocationNotExists, SideLocal, LocationLocalOnly},
		{LocationNotExists, SideExternal, LocationExternalOnly},
		{LocationExternalOnly, SideLocal, LocationBoth},
		{LocationLocalOnly, SideExternal, LocationBoth},
		{LocationLocalOnly, SideLocal, LocationLocalOnly},
		{LocationExternalOnly, SideExternal, LocationExternalOnly},
		{LocationBoth, SideLocal, LocationBoth},
		{LocationBoth, SideExternal, LocationBoth},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, c.prior.Observed(c.side), "%s observed by %s", c.prior, c.side)
	}
}

func TestLocation_Vanished(t *testing.T) {
	cases := []struct {
		prior Location
		side  Side
		want  Location
	}{
		{LocationBoth, SideLocal, LocationExternalOnly},
		{LocationBoth, SideExternal, LocationLocalOnly},
		{LocationLocalOnly, SideLocal, LocationNotExists},
		{LocationExternalOnly, SideExternal, LocationNotExists},
		{LocationExternalOnly, SideLocal, LocationExternalOnly},
		{LocationNotExists, SideLocal, LocationNotExists},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, c.prior.Vanished(c.side), "%s vanished from %s", c.prior, c.side)
	}
}

func TestTokenStore_RoundTrip(t *testing.T) {
	s, err := NewTokenStore(testDb(t))
	require.NoError(t, err)
	ctx := context.Background()

	_, ok, err := s.GetStoredVersion(ctx, "LOCAL:p1")
	require.NoError(t, err)
	assert.False(t, ok, "missing token is not an error")

	require.NoError(t, s.SetStoredVersion(ctx, "LOCAL:p1", "tok-1"))

	token, ok, err := s.GetStoredVersion(ctx, "LOCAL:p1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "tok-1", token)

	// overwrite
	require.NoError(t, s.SetStoredVersion(ctx, "LOCAL:p1", "tok-2"))
	token, ok, err = s.GetStoredVersion(ctx, "LOCAL:p1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "tok-2", token)

	require.NoError(t, s.DeleteStoredVersion(ctx, "LOCAL:p1"))
	_, ok, err = s.GetStoredVersion(ctx, "LOCAL:p1")
	require.NoError(t, err)
	assert.False(t, ok)

	// deleting a missing key is a no-op
	require.NoError(t, s.DeleteStoredVersion(ctx, "LOCAL:p1"))
}
