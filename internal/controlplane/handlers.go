package controlplane

import (
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"

	"github.com/pairmount/pairmount/internal/config"
	"github.com/pairmount/pairmount/internal/recon"
	"github.com/pairmount/pairmount/internal/store"
	"github.com/pairmount/pairmount/internal/utils"
	"github.com/pairmount/pairmount/internal/version"
)

// Handler serves the local control-plane API over the engine and the entry
// repository.
type Handler struct {
	cfg       *config.Config
	engine    *recon.Engine
	entries   *store.EntryStore
	startedAt time.Time
}

func NewHandler(cfg *config.Config, engine *recon.Engine, entries *store.EntryStore) *Handler {
	return &Handler{
		cfg:       cfg,
		engine:    engine,
		entries:   entries,
		startedAt: time.Now(),
	}
}

func (h *Handler) Status(c *gin.Context) {
	c.PureJSON(http.StatusOK, &StatusResponse{
		App:     version.AppName,
		Version: version.Short(),
		Uptime:  time.Since(h.startedAt).Round(time.Second).String(),
		Pairs:   len(h.cfg.Pairs),
	})
}

func (h *Handler) ListPairs(c *gin.Context) {
	pairs := make([]PairStatus, 0, len(h.cfg.Pairs))
	for _, pair := range h.cfg.Pairs {
		count, err := h.entries.CountByPair(c.Request.Context(), pair.ID)
		if err != nil {
			c.PureJSON(http.StatusInternalServerError, &APIError{
				ErrorCode: ErrCodeListFailed,
				Error:     err.Error(),
			})
			return
		}
		pairs = append(pairs, PairStatus{
			ID:                pair.ID,
			Name:              pair.Name,
			LocalRoot:         pair.LocalRoot,
			ExternalRoot:      pair.ExternalRoot,
			Enabled:           pair.Enabled,
			ExternalConnected: utils.DirExists(pair.ExternalRoot),
			Entries:           count,
		})
	}

	c.PureJSON(http.StatusOK, &PairListResponse{Pairs: pairs})
}

func (h *Handler) CheckPair(c *gin.Context) {
	pair, ok := h.pair(c)
	if !ok {
		return
	}

	result, err := h.engine.CheckOnStartup(c.Request.Context(), *pair)
	if err != nil {
		c.PureJSON(http.StatusInternalServerError, &APIError{
			ErrorCode: ErrCodeCheckFailed,
			Error:     err.Error(),
		})
		return
	}

	c.PureJSON(http.StatusOK, &CheckResponse{
		PairID:              result.PairID,
		ExternalConnected:   result.ExternalConnected,
		NeedRebuildLocal:    result.NeedRebuildLocal,
		NeedRebuildExternal: result.NeedRebuildExternal,
		LocalStoredToken:    string(result.LocalStoredToken),
		ExternalStoredToken: string(result.ExternalStoredToken),
	})
}

func (h *Handler) RebuildPair(c *gin.Context) {
	pair, ok := h.pair(c)
	if !ok {
		return
	}

	side, err := store.ParseSide(c.DefaultQuery("side", string(store.SideLocal)))
	if err != nil {
		c.PureJSON(http.StatusBadRequest, &APIError{
			ErrorCode: ErrCodeBadRequest,
			Error:     err.Error(),
		})
		return
	}

	treeVersion, err := h.engine.RebuildTree(c.Request.Context(), *pair, side)
	if err != nil {
		c.PureJSON(http.StatusInternalServerError, &APIError{
			ErrorCode: ErrCodeRebuildFailed,
			Error:     err.Error(),
		})
		return
	}

	c.PureJSON(http.StatusOK, &RebuildResponse{
		Code:      CodeOk,
		SourceKey: treeVersion.SourceKey,
		Token:     treeVersion.Token,
		ScannedAt: treeVersion.ScannedAt,
		FileCount: treeVersion.FileCount,
		TotalSize: humanize.Bytes(uint64(treeVersion.TotalSize)),
	})
}

func (h *Handler) InvalidatePair(c *gin.Context) {
	pair, ok := h.pair(c)
	if !ok {
		return
	}

	if err := h.engine.Invalidate(c.Request.Context(), *pair); err != nil {
		c.PureJSON(http.StatusInternalServerError, &APIError{
			ErrorCode: ErrCodeInvalidateError,
			Error:     err.Error(),
		})
		return
	}

	c.PureJSON(http.StatusOK, gin.H{"code": CodeOk})
}

func (h *Handler) GetVersion(c *gin.Context) {
	pair, ok := h.pair(c)
	if !ok {
		return
	}

	side, err := store.ParseSide(c.DefaultQuery("side", string(store.SideLocal)))
	if err != nil {
		c.PureJSON(http.StatusBadRequest, &APIError{
			ErrorCode: ErrCodeBadRequest,
			Error:     err.Error(),
		})
		return
	}

	token, known := h.engine.GetCurrentVersion(*pair, side)
	c.PureJSON(http.StatusOK, &VersionResponse{
		SourceKey: recon.SourceKey(side, pair.ID),
		Token:     string(token),
		Known:     known,
	})
}

func (h *Handler) ListEntries(c *gin.Context) {
	pair, ok := h.pair(c)
	if !ok {
		return
	}

	entries, err := h.entries.ListByPair(c.Request.Context(), pair.ID)
	if err != nil {
		c.PureJSON(http.StatusInternalServerError, &APIError{
			ErrorCode: ErrCodeListFailed,
			Error:     err.Error(),
		})
		return
	}

	resp := &EntryListResponse{Entries: make([]EntryStatus, 0, len(entries))}
	for _, entry := range entries {
		resp.Entries = append(resp.Entries, EntryStatus{
			VirtualPath:  entry.VirtualPath,
			Location:     entry.Location,
			Size:         entry.Size,
			SizeHuman:    humanize.Bytes(uint64(entry.Size)),
			ModifiedAt:   entry.ModifiedAt,
			LocalPath:    entry.LocalPhysicalPath,
			ExternalPath: entry.ExternalPhysicalPath,
		})
	}

	c.PureJSON(http.StatusOK, resp)
}

// pair resolves the :id route param against the configured pairs, replying
// 404 itself when unknown.
func (h *Handler) pair(c *gin.Context) (*config.SyncPair, bool) {
	pair := h.cfg.Pair(c.Param("id"))
	if pair == nil {
		c.PureJSON(http.StatusNotFound, &APIError{
			ErrorCode: ErrCodeUnknownPair,
			Error:     "unknown sync pair: " + c.Param("id"),
		})
		return nil, false
	}
	return pair, true
}
