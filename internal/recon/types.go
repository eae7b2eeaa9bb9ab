package recon

import (
	"github.com/pairmount/pairmount/internal/store"
	"github.com/pairmount/pairmount/internal/tree"
)

// Token is an opaque version identifier minted per rebuild. Tokens are
// compared only for equality - the source data guarantees uniqueness, not
// monotonicity, so there is deliberately no ordering on this type.
type Token string

// SourceKey identifies one (pair, side) in the token store:
// "LOCAL:<pairId>" or "EXTERNAL:<pairId>".
func SourceKey(side store.Side, pairID string) string {
	if side == store.SideLocal {
		return "LOCAL:" + pairID
	}
	return "EXTERNAL:" + pairID
}

// VersionCheckResult is the transient outcome of a startup check for one
// sync pair. It is never persisted.
type VersionCheckResult struct {
	PairID              string
	LocalVersion        *tree.TreeVersion
	ExternalVersion     *tree.TreeVersion
	LocalStoredToken    Token
	ExternalStoredToken Token
	ExternalConnected   bool
	NeedRebuildLocal    bool
	NeedRebuildExternal bool
}

// NeedsRebuild reports whether any side of the pair is stale.
func (r *VersionCheckResult) NeedsRebuild() bool {
	return r.NeedRebuildLocal || r.NeedRebuildExternal
}

// NeedsRebuildSide reports whether the given side is stale.
func (r *VersionCheckResult) NeedsRebuildSide(side store.Side) bool {
	if side == store.SideLocal {
		return r.NeedRebuildLocal
	}
	return r.NeedRebuildExternal
}
