package controlplane

import (
	"time"

	"github.com/pairmount/pairmount/internal/store"
)

const (
	CodeOk = "OK"

	ErrCodeBadRequest      = "ERR_BAD_REQUEST"
	ErrCodeUnknownPair     = "ERR_UNKNOWN_PAIR"
	ErrCodeCheckFailed     = "ERR_CHECK_FAILED"
	ErrCodeRebuildFailed   = "ERR_REBUILD_FAILED"
	ErrCodeInvalidateError = "ERR_INVALIDATE_FAILED"
	ErrCodeListFailed      = "ERR_LIST_FAILED"
)

type APIError struct {
	ErrorCode string `json:"errorCode"`
	Error     string `json:"error"`
}

type StatusResponse struct {
	App     string `json:"app"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
	Pairs   int    `json:"pairs"`
}

type PairStatus struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	LocalRoot         string `json:"localRoot"`
	ExternalRoot      string `json:"externalRoot"`
	Enabled           bool   `json:"enabled"`
	ExternalConnected bool   `json:"externalConnected"`
	Entries           int    `json:"entries"`
}

type PairListResponse struct {
	Pairs []PairStatus `json:"pairs"`
}

type CheckResponse struct {
	PairID              string `json:"pairId"`
	ExternalConnected   bool   `json:"externalConnected"`
	NeedRebuildLocal    bool   `json:"needRebuildLocal"`
	NeedRebuildExternal bool   `json:"needRebuildExternal"`
	LocalStoredToken    string `json:"localStoredToken,omitempty"`
	ExternalStoredToken string `json:"externalStoredToken,omitempty"`
}

type RebuildResponse struct {
	Code      string    `json:"code"`
	SourceKey string    `json:"sourceKey"`
	Token     string    `json:"token"`
	ScannedAt time.Time `json:"scannedAt"`
	FileCount int       `json:"fileCount"`
	TotalSize string    `json:"totalSize"`
}

type VersionResponse struct {
	SourceKey string `json:"sourceKey"`
	Token     string `json:"token,omitempty"`
	Known     bool   `json:"known"`
}

type EntryListResponse struct {
	Entries []EntryStatus `json:"entries"`
}

type EntryStatus struct {
	VirtualPath  string         `json:"virtualPath"`
	Location     store.Location `json:"location"`
	Size         int64          `json:"size"`
	SizeHuman    string         `json:"sizeHuman"`
	ModifiedAt   time.Time      `json:"modifiedAt"`
	LocalPath    *string        `json:"localPath,omitempty"`
	ExternalPath *string        `json:"externalPath,omitempty"`
}
