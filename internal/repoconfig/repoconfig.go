// Package repoconfig loads the ambient settings that are not part of the
// core CAS contract: the default blob placement mode and whether treeidx
// population is enabled. It merges a global, per-user file with an
// optional per-repository override, the repository value winning, using
// a two-layer JSON merge.
package repoconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/javanhut/gar/internal/cas"
)

// Config holds settings read at startup by the CLI shell; the core
// packages (internal/ingest, internal/cas, internal/repo) never read this
// themselves — every value that matters to them is an explicit argument.
type Config struct {
	Ingest IngestConfig `json:"ingest"`
}

// IngestConfig controls how `gar add` behaves when the caller does not
// override it on the command line.
type IngestConfig struct {
	// Mode is one of "copy", "link", "move"; see cas.Mode.
	Mode string `json:"mode"`
	// PopulateTreeIndex toggles whether a successful ingest records a
	// treeidx/ entry.
	PopulateTreeIndex bool `json:"populate_tree_index"`
}

// DefaultConfig returns the settings a brand-new repository starts with.
func DefaultConfig() *Config {
	return &Config{
		Ingest: IngestConfig{
			Mode:              cas.Copy.String(),
			PopulateTreeIndex: true,
		},
	}
}

// ModeValue parses c's configured mode string into a cas.Mode, falling
// back to cas.Copy for anything unrecognized rather than failing — a
// malformed config file should never block an ingest.
func (c *Config) ModeValue() cas.Mode {
	switch c.Ingest.Mode {
	case "link":
		return cas.Link
	case "move":
		return cas.Move
	default:
		return cas.Copy
	}
}

func globalConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("repoconfig: resolve home directory: %w", err)
	}
	return filepath.Join(home, ".garconfig"), nil
}

func repoConfigPath(repoAbsPath string) string {
	return filepath.Join(repoAbsPath, "config.json")
}

// Load builds a Config by starting from DefaultConfig, merging in the
// global ~/.garconfig if present, then the repository's own config.json
// (repoAbsPath is a Repo's AbsPath) if present. Either file being absent
// or unreadable as JSON is not an error — it just leaves the prior layer's
// values in place, so a corrupt config never blocks the CLI from running.
func Load(repoAbsPath string) (*Config, error) {
	cfg := DefaultConfig()

	if globalPath, err := globalConfigPath(); err == nil {
		if data, readErr := os.ReadFile(globalPath); readErr == nil {
			var globalCfg Config
			if json.Unmarshal(data, &globalCfg) == nil {
				merge(cfg, &globalCfg)
			}
		}
	}

	if repoAbsPath != "" {
		if data, readErr := os.ReadFile(repoConfigPath(repoAbsPath)); readErr == nil {
			var repoCfg Config
			if json.Unmarshal(data, &repoCfg) == nil {
				merge(cfg, &repoCfg)
			}
		}
	}

	return cfg, nil
}

// merge overlays non-zero fields of src onto dst. Mode is only overlaid
// when non-empty, and PopulateTreeIndex is unconditional since bool has no
// "unset" representation in JSON the way a string does.
func merge(dst, src *Config) {
	if src.Ingest.Mode != "" {
		dst.Ingest.Mode = src.Ingest.Mode
	}
	dst.Ingest.PopulateTreeIndex = src.Ingest.PopulateTreeIndex
}

// SaveGlobal writes cfg to the per-user global config file.
func SaveGlobal(cfg *Config) error {
	path, err := globalConfigPath()
	if err != nil {
		return err
	}
	return writeJSON(path, cfg)
}

// SaveRepo writes cfg to repoAbsPath's config.json.
func SaveRepo(repoAbsPath string, cfg *Config) error {
	return writeJSON(repoConfigPath(repoAbsPath), cfg)
}

func writeJSON(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", " ")
	if err != nil {
		return fmt.Errorf("repoconfig: marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
