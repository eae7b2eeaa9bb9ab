package mediawatch

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rjeczalik/notify"

	"github.com/pairmount/pairmount/internal/config"
	"github.com/pairmount/pairmount/internal/recon"
	"github.com/pairmount/pairmount/internal/store"
	"github.com/pairmount/pairmount/internal/tree"
	"github.com/pairmount/pairmount/internal/utils"
)

const defaultPollInterval = 5 * time.Second

// Reconciler is the engine surface the watcher drives.
type Reconciler interface {
	CheckOnStartup(ctx context.Context, pair config.SyncPair) (*recon.VersionCheckResult, error)
	RebuildTree(ctx context.Context, pair config.SyncPair, side store.Side) (*tree.TreeVersion, error)
	InvalidatePath(ctx context.Context, pair config.SyncPair, virtualPath string) error
}

// Watcher feeds the reconciliation engine with two signals: local edits
// (recursive filesystem notifications, which invalidate the local token)
// and external media connects (existence polling, which triggers a check
// and rebuilds of whatever went stale while disconnected).
type Watcher struct {
	engine       Reconciler
	pairs        []config.SyncPair
	pollInterval time.Duration
	events       chan notify.EventInfo
	connected    map[string]bool
	cancel       context.CancelFunc
	wg           sync.WaitGroup
}

func NewWatcher(engine Reconciler, pairs []config.SyncPair) *Watcher {
	return &Watcher{
		engine:       engine,
		pairs:        pairs,
		pollInterval: defaultPollInterval,
		events:       make(chan notify.EventInfo, 64),
		connected:    make(map[string]bool, len(pairs)),
	}
}

func (w *Watcher) Start(ctx context.Context) error {
	// Stop must be able to end the goroutines on its own, independent of the
	// caller's context
	ctx, w.cancel = context.WithCancel(ctx)

	for _, pair := range w.pairs {
		recursivePath := pair.LocalRoot + "/..."
		if err := notify.Watch(recursivePath, w.events, notify.Write|notify.Create|notify.Remove|notify.Rename); err != nil {
			// a single unwatchable root should not take the daemon down,
			// periodic checks still cover this pair
			slog.Error("watch failed", "pair", pair.ID, "root", pair.LocalRoot, "error", err)
			continue
		}
		slog.Info("watching", "pair", pair.ID, "root", pair.LocalRoot)
	}

	// prime connection state so startup does not re-trigger pair checks the
	// daemon already ran
	for _, pair := range w.pairs {
		w.connected[pair.ID] = utils.DirExists(pair.ExternalRoot)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.handleEvents(ctx)
	}()

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.pollExternal(ctx)
	}()

	return nil
}

func (w *Watcher) Stop() {
	notify.Stop(w.events)
	// the events channel stays open: notify gives no guarantee that no
	// dispatch is in flight when Stop returns
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
	slog.Info("media watcher stop")
}

func (w *Watcher) handleEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case event := <-w.events:
			pair, relPath, ok := w.resolve(event.Path())
			if !ok {
				continue
			}
			if err := w.engine.InvalidatePath(ctx, *pair, relPath); err != nil {
				slog.Error("invalidate failed", "pair", pair.ID, "path", relPath, "error", err)
			}
		}
	}
}

// resolve maps an absolute event path back to its pair and virtual path.
// Events inside the reserved metadata dir are dropped - the engine's own
// sidecar writes must not invalidate the tree they describe.
func (w *Watcher) resolve(absPath string) (*config.SyncPair, string, bool) {
	for i := range w.pairs {
		pair := &w.pairs[i]
		relPath, err := filepath.Rel(pair.LocalRoot, absPath)
		if err != nil || strings.HasPrefix(relPath, "..") {
			continue
		}

		relPath = utils.NormPath(relPath)
		if relPath == "." || relPath == tree.MetadataDirName || strings.HasPrefix(relPath, tree.MetadataDirName+"/") {
			return nil, "", false
		}
		return pair, relPath, true
	}
	return nil, "", false
}

func (w *Watcher) pollExternal(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			for _, pair := range w.pairs {
				now := utils.DirExists(pair.ExternalRoot)
				was := w.connected[pair.ID]
				w.connected[pair.ID] = now

				if now && !was {
					slog.Info("external media connected", "pair", pair.ID, "root", pair.ExternalRoot)
					w.reconcilePair(ctx, pair)
				} else if !now && was {
					slog.Info("external media disconnected", "pair", pair.ID, "root", pair.ExternalRoot)
				}
			}
		}
	}
}

// reconcilePair runs the startup check for a pair and rebuilds whichever
// sides it reports stale.
func (w *Watcher) reconcilePair(ctx context.Context, pair config.SyncPair) {
	result, err := w.engine.CheckOnStartup(ctx, pair)
	if err != nil {
		slog.Error("check failed", "pair", pair.ID, "error", err)
		return
	}

	for _, side := range []store.Side{store.SideLocal, store.SideExternal} {
		if !result.NeedsRebuildSide(side) {
			continue
		}
		if _, err := w.engine.RebuildTree(ctx, pair, side); err != nil {
			slog.Error("rebuild failed", "pair", pair.ID, "side", side, "error", err)
		}
	}
}
