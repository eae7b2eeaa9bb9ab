package recon

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/pairmount/pairmount/internal/config"
	"github.com/pairmount/pairmount/internal/store"
	"github.com/pairmount/pairmount/internal/tree"
	"github.com/pairmount/pairmount/internal/utils"
)

// EntryStore is the repository write surface the engine pushes rebuild
// results into. Implemented by store.EntryStore.
type EntryStore interface {
	Upsert(ctx context.Context, entry *store.FileEntry) error
	Get(ctx context.Context, pairID, virtualPath string) (*store.FileEntry, error)
	ListSidePaths(ctx context.Context, pairID string, side store.Side) ([]string, error)
}

// TokenStore is the durable token persistence surface the engine mirrors in
// memory. Implemented by store.TokenStore.
type TokenStore interface {
	GetStoredVersion(ctx context.Context, sourceKey string) (string, bool, error)
	SetStoredVersion(ctx context.Context, sourceKey, token string) error
	DeleteStoredVersion(ctx context.Context, sourceKey string) error
}

// Engine is the tree version and reconciliation engine: the sole writer of
// version state. One mutex serializes every public operation, so at most
// one rebuild per (pair, side) is in flight and concurrent callers queue
// rather than interleave.
type Engine struct {
	mu          sync.Mutex
	entries     EntryStore
	versions    TokenStore
	checksummer *tree.Checksummer
	ignore      *tree.IgnoreList

	// in-memory mirror of the durable token store
	tokens map[string]Token
}

type Option func(*Engine)

// WithChecksummer enables the opt-in content checksum pass for pairs that
// request it.
func WithChecksummer(c *tree.Checksummer) Option {
	return func(e *Engine) {
		e.checksummer = c
	}
}

// WithIgnoreList replaces the default scan exclusions.
func WithIgnoreList(l *tree.IgnoreList) Option {
	return func(e *Engine) {
		e.ignore = l
	}
}

func NewEngine(entries EntryStore, versions TokenStore, opts ...Option) *Engine {
	e := &Engine{
		entries:  entries,
		versions: versions,
		ignore:   tree.NewIgnoreList(),
		tokens:   make(map[string]Token),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CheckOnStartup decides, per side, whether the cached understanding of a
// pair's tree is stale. It reads both sidecars and both stored tokens and
// mutates nothing. An optimistic-concurrency check: a token mismatch means
// the on-disk state diverged from what the engine last trusted.
func (e *Engine) CheckOnStartup(ctx context.Context, pair config.SyncPair) (*VersionCheckResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	result := &VersionCheckResult{
		PairID:            pair.ID,
		ExternalConnected: utils.DirExists(pair.ExternalRoot),
	}

	// the two sidecar reads are independent, decode them concurrently
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		result.LocalVersion = tree.DecodeSidecar(tree.SidecarPath(pair.LocalRoot))
	}()
	if result.ExternalConnected {
		result.ExternalVersion = tree.DecodeSidecar(tree.SidecarPath(pair.ExternalRoot))
	}
	wg.Wait()

	localToken, localOk, err := e.storedToken(ctx, SourceKey(store.SideLocal, pair.ID))
	if err != nil {
		return nil, err
	}
	result.LocalStoredToken = localToken
	result.NeedRebuildLocal = shouldRebuild(result.LocalVersion, localToken, localOk)

	if result.ExternalConnected {
		externalToken, externalOk, err := e.storedToken(ctx, SourceKey(store.SideExternal, pair.ID))
		if err != nil {
			return nil, err
		}
		result.ExternalStoredToken = externalToken
		result.NeedRebuildExternal = shouldRebuild(result.ExternalVersion, externalToken, externalOk)
	}

	slog.Info("version check",
		"pair", pair.ID,
		"externalConnected", result.ExternalConnected,
		"rebuildLocal", result.NeedRebuildLocal,
		"rebuildExternal", result.NeedRebuildExternal,
	)

	return result, nil
}

// shouldRebuild is the per-side staleness rule. Token equality is the sole
// trust signal - no content comparison happens here.
func shouldRebuild(fileVersion *tree.TreeVersion, storedToken Token, hasStored bool) bool {
	if fileVersion == nil {
		// no sidecar, or sidecar corrupt/foreign
		return true
	}
	if !hasStored {
		// engine has never recorded a token for this key
		return true
	}
	return Token(fileVersion.Token) != storedToken
}

// RebuildTree scans one side of a pair, mints a fresh TreeVersion, persists
// it (sidecar + token store + cache) and folds the scan into the entry
// repository. Interruption before the commit leaves the previous version
// fully authoritative; a rebuild is idempotent and re-derivable from disk,
// so the worst case of any failure here is one more rebuild later.
func (e *Engine) RebuildTree(ctx context.Context, pair config.SyncPair, side store.Side) (*tree.TreeVersion, error) {
	if !side.Valid() {
		return nil, fmt.Errorf("rebuild %s: invalid side %q", pair.ID, side)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	tstart := time.Now()
	root := rootFor(pair, side)
	sourceKey := SourceKey(side, pair.ID)

	entries, err := tree.Scan(ctx, root, e.ignore)
	if err != nil {
		return nil, fmt.Errorf("rebuild %s: %w", sourceKey, err)
	}

	version := tree.NewTreeVersion(sourceKey, mintToken(), time.Now().UTC(), entries)

	if pair.Checksum && e.checksummer != nil {
		if err := e.checksummer.Fill(ctx, root, version); err != nil {
			return nil, fmt.Errorf("rebuild %s: checksum pass: %w", sourceKey, err)
		}
	}

	// last cancellation point - from here the commit runs to completion
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	commitCtx := context.WithoutCancel(ctx)

	if err := tree.EncodeSidecar(version, tree.SidecarPath(root)); err != nil {
		// old sidecar and stored token remain authoritative
		return nil, fmt.Errorf("rebuild %s: %w", sourceKey, err)
	}

	if err := e.versions.SetStoredVersion(commitCtx, sourceKey, version.Token); err != nil {
		// sidecar already replaced but the token was not recorded: the next
		// check sees a mismatch and forces another rebuild, which is safe
		return nil, fmt.Errorf("rebuild %s: store token: %w", sourceKey, err)
	}
	e.tokens[sourceKey] = Token(version.Token)

	if err := e.applyLocationState(commitCtx, pair, side, root, version, entries); err != nil {
		// repository and token now disagree: drop the token so a future
		// rebuild repairs the repository
		e.dropToken(commitCtx, sourceKey)
		return nil, fmt.Errorf("rebuild %s: %w", sourceKey, err)
	}

	slog.Info("rebuild done",
		"source", sourceKey,
		"files", version.FileCount,
		"size", humanize.Bytes(uint64(version.TotalSize)),
		"took", time.Since(tstart),
	)

	return version, nil
}

// applyLocationState runs the location transition rule for every observed
// path, then sweeps paths previously attributed to this side that the scan
// no longer observed and demotes them.
func (e *Engine) applyLocationState(ctx context.Context, pair config.SyncPair, side store.Side, root string, version *tree.TreeVersion, entries []tree.Entry) error {
	for _, entry := range entries {
		if err := e.observeEntry(ctx, pair, side, root, version.ScannedAt, entry); err != nil {
			return err
		}
	}

	priorPaths, err := e.entries.ListSidePaths(ctx, pair.ID, side)
	if err != nil {
		return err
	}

	swept := 0
	for _, path := range priorPaths {
		if _, observed := version.Entries[path]; observed {
			continue
		}
		if err := e.sweepEntry(ctx, pair, side, path); err != nil {
			return err
		}
		swept++
	}
	if swept > 0 {
		slog.Debug("sweep", "pair", pair.ID, "side", side, "vanished", swept)
	}

	return nil
}

// observeEntry applies the promotion rule for one scanned path:
// notExists -> side-only, opposite-only -> both, otherwise unchanged.
func (e *Engine) observeEntry(ctx context.Context, pair config.SyncPair, side store.Side, root string, scannedAt time.Time, entry tree.Entry) error {
	prior, err := e.entries.Get(ctx, pair.ID, entry.Path)
	if err != nil {
		return err
	}

	fileEntry := prior
	if fileEntry == nil {
		fileEntry = &store.FileEntry{
			SyncPairID:  pair.ID,
			VirtualPath: entry.Path,
			CreatedAt:   entry.CreatedAt,
			Location:    store.LocationNotExists,
		}
	}

	physicalPath := filepath.Join(root, filepath.FromSlash(entry.Path))
	if side == store.SideLocal {
		fileEntry.LocalPhysicalPath = &physicalPath
	} else {
		fileEntry.ExternalPhysicalPath = &physicalPath
	}

	fileEntry.Size = entry.Size
	fileEntry.ModifiedAt = entry.ModifiedAt
	fileEntry.AccessedAt = scannedAt
	fileEntry.Location = fileEntry.Location.Observed(side)

	return e.entries.Upsert(ctx, fileEntry)
}

// sweepEntry applies the demotion rule for a path this side no longer has:
// both -> opposite-only, side-only -> notExists. Retention of notExists
// records belongs to the repository, not to this engine.
func (e *Engine) sweepEntry(ctx context.Context, pair config.SyncPair, side store.Side, virtualPath string) error {
	entry, err := e.entries.Get(ctx, pair.ID, virtualPath)
	if err != nil {
		return err
	}
	if entry == nil {
		return nil
	}

	demoted := entry.Location.Vanished(side)
	if demoted == entry.Location {
		return nil
	}

	entry.Location = demoted
	if side == store.SideLocal {
		entry.LocalPhysicalPath = nil
	} else {
		entry.ExternalPhysicalPath = nil
	}

	return e.entries.Upsert(ctx, entry)
}

// Invalidate drops the stored token for the local side of a pair, forcing a
// full rebuild at the next check. A deliberate simplicity trade-off:
// single-file updates never patch the fingerprint or location state
// incrementally.
func (e *Engine) Invalidate(ctx context.Context, pair config.SyncPair) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.invalidateKey(ctx, SourceKey(store.SideLocal, pair.ID))
}

// InvalidatePath is Invalidate with the triggering path, for callers like a
// file watcher that know which edit invalidated the tree.
func (e *Engine) InvalidatePath(ctx context.Context, pair config.SyncPair, virtualPath string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	slog.Debug("invalidate", "pair", pair.ID, "path", virtualPath)
	return e.invalidateKey(ctx, SourceKey(store.SideLocal, pair.ID))
}

func (e *Engine) invalidateKey(ctx context.Context, sourceKey string) error {
	if err := e.versions.DeleteStoredVersion(ctx, sourceKey); err != nil {
		// durable store and cache move together or not at all
		return err
	}
	delete(e.tokens, sourceKey)
	return nil
}

// GetCurrentVersion returns the cached token for a (pair, side). A pure
// read of the in-memory cache, no I/O.
func (e *Engine) GetCurrentVersion(pair config.SyncPair, side store.Side) (Token, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	token, ok := e.tokens[SourceKey(side, pair.ID)]
	return token, ok
}

// storedToken reads through the in-memory mirror to the durable store.
func (e *Engine) storedToken(ctx context.Context, sourceKey string) (Token, bool, error) {
	if token, ok := e.tokens[sourceKey]; ok {
		return token, true, nil
	}

	token, ok, err := e.versions.GetStoredVersion(ctx, sourceKey)
	if err != nil {
		return "", false, fmt.Errorf("stored token %s: %w", sourceKey, err)
	}
	if ok {
		e.tokens[sourceKey] = Token(token)
	}
	return Token(token), ok, nil
}

func (e *Engine) dropToken(ctx context.Context, sourceKey string) {
	if err := e.versions.DeleteStoredVersion(ctx, sourceKey); err != nil {
		slog.Error("drop token", "source", sourceKey, "error", err)
		return
	}
	delete(e.tokens, sourceKey)
}

func rootFor(pair config.SyncPair, side store.Side) string {
	if side == store.SideLocal {
		return pair.LocalRoot
	}
	return pair.ExternalRoot
}

// mintToken returns a fresh opaque token. Uniqueness is the only
// requirement, tokens are never ordered.
func mintToken() string {
	return fmt.Sprintf("%d-%s", time.Now().UnixNano(), uuid.NewString()[:8])
}
