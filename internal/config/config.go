// Package config loads the tool settings: where the reference tables live,
// where the report goes, and which optional exports are enabled.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Output formats for the report file.
const (
	FormatJS   = "js"
	FormatJSON = "json"
)

// Config holds every setting the tool reads at startup.
type Config struct {
	// AssetsDir is the directory relative paths resolve against.
	// Empty means the directory of the running executable.
	AssetsDir string `yaml:"assets_dir" env:"VAULTFINDER_ASSETS_DIR"`

	OffsetsFile     string `yaml:"offsets_file"      env:"VAULTFINDER_OFFSETS_FILE"      env-default:"x4-positions.json"`
	SectorNamesFile string `yaml:"sector_names_file" env:"VAULTFINDER_SECTOR_NAMES_FILE" env-default:"x4-sector-names.json"`
	ShipNamesFile   string `yaml:"ship_names_file"   env:"VAULTFINDER_SHIP_NAMES_FILE"   env-default:"x4-ship-names.json"`
	StringsFile     string `yaml:"strings_file"      env:"VAULTFINDER_STRINGS_FILE"      env-default:"x4-strings.json"`

	OutputFile   string `yaml:"output_file"   env:"VAULTFINDER_OUTPUT_FILE"   env-default:"view/data.js"`
	OutputFormat string `yaml:"output_format" env:"VAULTFINDER_OUTPUT_FORMAT" env-default:"js"`

	// DefaultPage is the string-table page used by {,id} references.
	DefaultPage string `yaml:"default_page" env:"VAULTFINDER_DEFAULT_PAGE" env-default:"44"`

	IncludeHighways bool `yaml:"include_highways" env:"VAULTFINDER_INCLUDE_HIGHWAYS" env-default:"false"`
	Prefetch        bool `yaml:"prefetch"         env:"VAULTFINDER_PREFETCH"         env-default:"true"`

	DatabaseFile  string `yaml:"database_file"   env:"VAULTFINDER_DATABASE_FILE"`
	GateMapFile   string `yaml:"gate_map_file"   env:"VAULTFINDER_GATE_MAP_FILE"`
	GateMapFormat string `yaml:"gate_map_format" env:"VAULTFINDER_GATE_MAP_FORMAT" env-default:"dot"`

	LogFile string `yaml:"log_file" env:"VAULTFINDER_LOG_FILE" env-default:"vaultfinder_debug.log"`
}

// Validate checks the loaded values for consistency.
func (c *Config) Validate() error {
	var errs []error

	switch c.OutputFormat {
	case FormatJS, FormatJSON:
	default:
		errs = append(errs, fmt.Errorf("output_format must be %q or %q, got %q", FormatJS, FormatJSON, c.OutputFormat))
	}

	switch c.GateMapFormat {
	case "dot", "svg":
	default:
		errs = append(errs, fmt.Errorf("gate_map_format must be \"dot\" or \"svg\", got %q", c.GateMapFormat))
	}

	for name, value := range map[string]string{
		"offsets_file":      c.OffsetsFile,
		"sector_names_file": c.SectorNamesFile,
		"ship_names_file":   c.ShipNamesFile,
		"strings_file":      c.StringsFile,
		"output_file":       c.OutputFile,
	} {
		if value == "" {
			errs = append(errs, fmt.Errorf("%s is required", name))
		}
	}

	if c.DefaultPage == "" {
		errs = append(errs, errors.New("default_page is required"))
	}

	return errors.Join(errs...)
}

// Path resolves p against AssetsDir unless it is already absolute.
// Empty paths stay empty so optional exports remain disabled.
func (c *Config) Path(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.AssetsDir, p)
}

// installDir returns the directory holding the running executable.
func installDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe), nil
}
