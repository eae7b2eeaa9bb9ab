package tree

import (
	"context"
	"crypto/md5"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChecksummer_Fill(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.txt"), "hello")
	writeFile(t, filepath.Join(root, "docs", "b.txt"), "world")

	entries, err := Scan(context.Background(), root, nil)
	require.NoError(t, err)

	v := NewTreeVersion("LOCAL:p", "tok", time.Now().UTC(), entries)

	cs, err := NewChecksummer()
	require.NoError(t, err)
	require.NoError(t, cs.Fill(context.Background(), root, v))

	wantA := fmt.Sprintf("%x", md5.Sum([]byte("hello")))
	infoA := v.Entries["a.txt"]
	require.NotNil(t, infoA.ContentChecksum)
	assert.Equal(t, wantA, *infoA.ContentChecksum)

	infoDir := v.Entries["docs"]
	assert.Nil(t, infoDir.ContentChecksum, "directories are not hashed")
}

func TestChecksummer_SkipsUnreadable(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.txt"), "hello")

	entries, err := Scan(context.Background(), root, nil)
	require.NoError(t, err)

	v := NewTreeVersion("LOCAL:p", "tok", time.Now().UTC(), entries)

	// file raced away between scan and checksum pass
	size := int64(3)
	v.Entries["gone.txt"] = EntryInfo{Size: &size, ModifiedAt: time.Now()}

	cs, err := NewChecksummer()
	require.NoError(t, err)
	require.NoError(t, cs.Fill(context.Background(), root, v))

	assert.NotNil(t, v.Entries["a.txt"].ContentChecksum)
	assert.Nil(t, v.Entries["gone.txt"].ContentChecksum)
}

func TestChecksummer_CacheStable(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.txt"), "hello")

	entries, err := Scan(context.Background(), root, nil)
	require.NoError(t, err)

	cs, err := NewChecksummer()
	require.NoError(t, err)

	v1 := NewTreeVersion("LOCAL:p", "tok1", time.Now().UTC(), entries)
	require.NoError(t, cs.Fill(context.Background(), root, v1))

	v2 := NewTreeVersion("LOCAL:p", "tok2", time.Now().UTC(), entries)
	require.NoError(t, cs.Fill(context.Background(), root, v2))

	assert.Equal(t, *v1.Entries["a.txt"].ContentChecksum, *v2.Entries["a.txt"].ContentChecksum)
}
