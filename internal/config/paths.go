package config

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

// Paths contains commonly used file paths.
type Paths struct {
	Database string // Ranking run history (SQLite)
	Vectors  string // Embedding cache persistence (chromem-go)
	Logs     string // Log file directory
}

// GetPaths returns all commonly used paths based on config.
func GetPaths(cfg *Config) Paths {
	return Paths{
		Database: filepath.Join(cfg.BaseDir, "matchbox.db"),
		Vectors:  filepath.Join(cfg.BaseDir, "vectors"),
		Logs:     filepath.Join(cfg.BaseDir, "logs"),
	}
}

// DefaultBaseDir returns the default base directory, preferring the XDG
// data home.
func DefaultBaseDir() string {
	if xdg.DataHome != "" {
		return filepath.Join(xdg.DataHome, "matchbox")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".matchbox"
	}
	return filepath.Join(home, ".matchbox")
}
