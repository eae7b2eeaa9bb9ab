package mediawatch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pairmount/pairmount/internal/config"
	"github.com/pairmount/pairmount/internal/tree"
)

func TestResolve(t *testing.T) {
	tmp := t.TempDir()
	localRoot := filepath.Join(tmp, "sync")

	w := NewWatcher(nil, []config.SyncPair{{
		ID:           "p1",
		LocalRoot:    localRoot,
		ExternalRoot: filepath.Join(tmp, "usb"),
		Enabled:      true,
	}})

	t.Run("inside root", func(t *testing.T) {
		pair, relPath, ok := w.resolve(filepath.Join(localRoot, "docs", "a.txt"))
		require.True(t, ok)
		assert.Equal(t, "p1", pair.ID)
		assert.Equal(t, "docs/a.txt", relPath)
	})

	t.Run("outside any root", func(t *testing.T) {
		_, _, ok := w.resolve(filepath.Join(tmp, "elsewhere", "a.txt"))
		assert.False(t, ok)
	})

	t.Run("metadata dir events are dropped", func(t *testing.T) {
		_, _, ok := w.resolve(filepath.Join(localRoot, tree.MetadataDirName, tree.SidecarFileName))
		assert.False(t, ok, "our own sidecar writes must not invalidate the tree")

		_, _, ok = w.resolve(filepath.Join(localRoot, tree.MetadataDirName))
		assert.False(t, ok)
	})
}

// Stop must end the watcher goroutines on its own: the daemon calls it while
// the context Start was given is still live.
func TestStop_ReturnsWithLiveStartContext(t *testing.T) {
	tmp := t.TempDir()
	localRoot := filepath.Join(tmp, "sync")
	require.NoError(t, os.MkdirAll(localRoot, 0o755))

	w := NewWatcher(nil, []config.SyncPair{{
		ID:           "p1",
		LocalRoot:    localRoot,
		ExternalRoot: filepath.Join(tmp, "usb"),
		Enabled:      true,
	}})
	require.NoError(t, w.Start(context.Background()))

	done := make(chan struct{})
	go func() {
		w.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return while the start context was still live")
	}
}
