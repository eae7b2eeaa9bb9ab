package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"github.com/pairmount/pairmount/internal/utils"
)

var (
	home, _           = os.UserHomeDir()
	DefaultConfigPath = filepath.Join(home, ".pairmount", "config.json")
	DefaultDataDir    = filepath.Join(home, ".pairmount")
)

// SyncPair associates a local storage root with an external (often removable)
// storage root. The two roots are presented to the user as one merged tree.
type SyncPair struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	LocalRoot    string `json:"local_root"`
	ExternalRoot string `json:"external_root"`
	Enabled      bool   `json:"enabled"`
	// Checksum enables the opt-in content checksum pass during rebuilds.
	// Off by default because it reads every file on the side being rebuilt.
	Checksum bool `json:"checksum,omitempty"`
}

type Config struct {
	DataDir          string     `json:"data_dir"`
	ControlPlaneAddr string     `json:"control_plane_addr"`
	LogLevel         string     `json:"log_level,omitempty"`
	Pairs            []SyncPair `json:"pairs"`
	Path             string     `json:"-"`
}

// Pair returns the sync pair with the given id, or nil.
func (c *Config) Pair(id string) *SyncPair {
	for i := range c.Pairs {
		if c.Pairs[i].ID == id {
			return &c.Pairs[i]
		}
	}
	return nil
}

// EnabledPairs returns the pairs that are enabled for reconciliation.
func (c *Config) EnabledPairs() []SyncPair {
	var pairs []SyncPair
	for _, p := range c.Pairs {
		if p.Enabled {
			pairs = append(pairs, p)
		}
	}
	return pairs
}

// Validate normalizes paths and checks the config for inconsistencies.
// The external roots are NOT required to exist - removable media may be
// disconnected at any time.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		c.DataDir = DefaultDataDir
	}
	dataDir, err := utils.ResolvePath(c.DataDir)
	if err != nil {
		return fmt.Errorf("data dir: %w", err)
	}
	c.DataDir = dataDir

	if c.ControlPlaneAddr == "" {
		c.ControlPlaneAddr = "127.0.0.1:7938"
	}

	seenIDs := make(map[string]struct{}, len(c.Pairs))
	seenRoots := make(map[string]string, len(c.Pairs))

	for i := range c.Pairs {
		pair := &c.Pairs[i]
		if pair.ID == "" {
			return fmt.Errorf("pair %d: id is required", i)
		}
		if strings.ContainsAny(pair.ID, ":/\\") {
			return fmt.Errorf("pair %q: id must not contain ':', '/' or '\\'", pair.ID)
		}
		if _, ok := seenIDs[pair.ID]; ok {
			return fmt.Errorf("pair %q: duplicate id", pair.ID)
		}
		seenIDs[pair.ID] = struct{}{}

		if pair.LocalRoot == "" {
			return fmt.Errorf("pair %q: local root is required", pair.ID)
		}
		if pair.ExternalRoot == "" {
			return fmt.Errorf("pair %q: external root is required", pair.ID)
		}

		localRoot, err := utils.ResolvePath(pair.LocalRoot)
		if err != nil {
			return fmt.Errorf("pair %q: local root: %w", pair.ID, err)
		}
		pair.LocalRoot = localRoot

		externalRoot, err := utils.ResolvePath(pair.ExternalRoot)
		if err != nil {
			return fmt.Errorf("pair %q: external root: %w", pair.ID, err)
		}
		pair.ExternalRoot = externalRoot

		if pair.LocalRoot == pair.ExternalRoot {
			return fmt.Errorf("pair %q: local and external roots are the same path", pair.ID)
		}
		if isSubPath(pair.LocalRoot, pair.ExternalRoot) || isSubPath(pair.ExternalRoot, pair.LocalRoot) {
			return fmt.Errorf("pair %q: local and external roots are nested", pair.ID)
		}

		for _, root := range []string{pair.LocalRoot, pair.ExternalRoot} {
			for other, otherID := range seenRoots {
				if root == other || isSubPath(other, root) || isSubPath(root, other) {
					return fmt.Errorf("pair %q: root %s overlaps with a root of pair %q", pair.ID, root, otherID)
				}
			}
		}
		seenRoots[pair.LocalRoot] = pair.ID
		seenRoots[pair.ExternalRoot] = pair.ID
	}

	return nil
}

func (c *Config) Save(path string) error {
	if err := utils.EnsureParent(path); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o644)
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.Path = path
	return &cfg, nil
}

// isSubPath reports whether child is strictly inside parent.
func isSubPath(parent, child string) bool {
	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
