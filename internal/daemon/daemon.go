package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/errgroup"

	"github.com/pairmount/pairmount/internal/config"
	"github.com/pairmount/pairmount/internal/controlplane"
	"github.com/pairmount/pairmount/internal/db"
	"github.com/pairmount/pairmount/internal/mediawatch"
	"github.com/pairmount/pairmount/internal/recon"
	"github.com/pairmount/pairmount/internal/store"
	"github.com/pairmount/pairmount/internal/tree"
)

const (
	lockFileName  = "pairmountd.lock"
	dbFileName    = "pairmount.db"
	checkInterval = 30 * time.Second
)

var (
	ErrDaemonLocked = errors.New("data dir locked by another pairmountd instance")
)

// Daemon wires the reconciliation engine to its stores, watcher and control
// plane, and owns their lifecycle.
type Daemon struct {
	cfg     *config.Config
	db      *sqlx.DB
	entries *store.EntryStore
	engine  *recon.Engine
	watcher *mediawatch.Watcher
	cps     *controlplane.Server
	flock   *flock.Flock
}

func New(cfg *config.Config) (*Daemon, error) {
	sqliteDb, err := db.NewSqliteDb(
		db.WithPath(filepath.Join(cfg.DataDir, dbFileName)),
		db.WithMaxOpenConns(1),
	)
	if err != nil {
		return nil, fmt.Errorf("open state db: %w", err)
	}

	entries, err := store.NewEntryStore(sqliteDb)
	if err != nil {
		sqliteDb.Close()
		return nil, err
	}

	tokens, err := store.NewTokenStore(sqliteDb)
	if err != nil {
		sqliteDb.Close()
		return nil, err
	}

	checksummer, err := tree.NewChecksummer()
	if err != nil {
		sqliteDb.Close()
		return nil, err
	}

	engine := recon.NewEngine(entries, tokens, recon.WithChecksummer(checksummer))
	watcher := mediawatch.NewWatcher(engine, cfg.EnabledPairs())
	cps := controlplane.NewServer(cfg.ControlPlaneAddr, controlplane.NewHandler(cfg, engine, entries))

	return &Daemon{
		cfg:     cfg,
		db:      sqliteDb,
		entries: entries,
		engine:  engine,
		watcher: watcher,
		cps:     cps,
		flock:   flock.New(filepath.Join(cfg.DataDir, lockFileName)),
	}, nil
}

func (d *Daemon) Start(ctx context.Context) error {
	locked, err := d.flock.TryLock()
	if err != nil {
		return fmt.Errorf("lock data dir: %w", err)
	}
	if !locked {
		return ErrDaemonLocked
	}

	slog.Info("daemon start", "pairs", len(d.cfg.EnabledPairs()), "dataDir", d.cfg.DataDir)

	// bring every pair up to date before watching for changes
	d.reconcileAll(ctx)

	if err := d.watcher.Start(ctx); err != nil {
		return fmt.Errorf("start media watcher: %w", err)
	}

	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		if err := d.cps.Start(egCtx); err != nil {
			return fmt.Errorf("control plane: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		d.checkLoop(egCtx)
		return nil
	})

	eg.Go(func() error {
		<-egCtx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return d.Stop(shutdownCtx)
	})

	if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("daemon failure", "error", err)
		return err
	}

	slog.Info("daemon stopped")
	return nil
}

func (d *Daemon) Stop(ctx context.Context) error {
	d.watcher.Stop()
	if err := d.cps.Stop(ctx); err != nil {
		slog.Error("control plane stop", "error", err)
	}
	if err := d.db.Close(); err != nil {
		slog.Error("db close", "error", err)
	}
	return d.flock.Unlock()
}

// checkLoop periodically re-runs the staleness check so invalidations from
// the file watcher turn into rebuilds without waiting for a restart.
// A timer and not a ticker, to avoid queued ticks when a reconcile pass
// takes longer than the interval.
func (d *Daemon) checkLoop(ctx context.Context) {
	timer := time.NewTimer(checkInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			d.reconcileAll(ctx)
			timer.Reset(checkInterval)
		}
	}
}

// reconcileAll checks every enabled pair and rebuilds stale sides.
// Errors are logged, not fatal: staleness is self-healing by construction,
// the next pass retries.
func (d *Daemon) reconcileAll(ctx context.Context) {
	for _, pair := range d.cfg.EnabledPairs() {
		if ctx.Err() != nil {
			return
		}

		result, err := d.engine.CheckOnStartup(ctx, pair)
		if err != nil {
			slog.Error("check failed", "pair", pair.ID, "error", err)
			continue
		}

		for _, side := range []store.Side{store.SideLocal, store.SideExternal} {
			if !result.NeedsRebuildSide(side) {
				continue
			}
			if _, err := d.engine.RebuildTree(ctx, pair, side); err != nil {
				slog.Error("rebuild failed", "pair", pair.ID, "side", side, "error", err)
			}
		}
	}
}
