package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ilyakaznacheev/cleanenv"
)

// ConfigFileName is looked up in the install directory when
// VAULTFINDER_CONFIG is not set.
const ConfigFileName = "vaultfinder.yaml"

// Load reads configuration from a YAML file and environment variables.
// Priority: ENV > YAML > defaults (via env-default tags).
// The YAML file path comes from VAULTFINDER_CONFIG, falling back to
// vaultfinder.yaml next to the executable. A missing fallback file is fine;
// a missing explicit file is an error.
func Load() (*Config, error) {
	dir, err := installDir()
	if err != nil {
		return nil, fmt.Errorf("config: locate install dir: %w", err)
	}
	return LoadFrom(os.Getenv("VAULTFINDER_CONFIG"), dir)
}

// LoadFrom is Load with an explicit config path and install directory.
func LoadFrom(path, dir string) (*Config, error) {
	var cfg Config

	explicitPath := path != ""
	if !explicitPath {
		path = filepath.Join(dir, ConfigFileName)
	}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else if explicitPath {
		return nil, fmt.Errorf("config: file %s: %w", path, err)
	} else {
		// No file, load from ENV + defaults only.
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("config: read env: %w", err)
		}
	}

	if cfg.AssetsDir == "" {
		cfg.AssetsDir = dir
	} else if !filepath.IsAbs(cfg.AssetsDir) {
		cfg.AssetsDir = filepath.Join(dir, cfg.AssetsDir)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	return &cfg, nil
}
