// Package reftables loads the precomputed lookup tables extracted from the
// game assets: macro offsets, sector and ship name templates, and the
// localized string table. Tables are read once before the save file walk
// and never mutated afterwards.
package reftables

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"vaultfinder/internal/log"
)

// Vector is a local-space translation.
type Vector struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Add returns the component-wise sum of v and o.
func (v Vector) Add(o Vector) Vector {
	return Vector{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z}
}

// OffsetTable maps a lowercased macro or connection key to its offset.
type OffsetTable map[string]Vector

// Lookup returns the offset registered for key, matching case-insensitively.
func (t OffsetTable) Lookup(key string) (Vector, bool) {
	if key == "" {
		return Vector{}, false
	}
	v, ok := t[strings.ToLower(key)]
	return v, ok
}

// NameTable maps a lowercased macro to a raw display-name template.
type NameTable map[string]string

// Lookup returns the raw template for key, matching case-insensitively.
func (t NameTable) Lookup(key string) (string, bool) {
	v, ok := t[strings.ToLower(key)]
	return v, ok
}

// StringTable maps page id -> string id -> template text.
type StringTable map[string]map[string]string

// Lookup returns the text at page/id.
func (t StringTable) Lookup(page, id string) (string, bool) {
	entries, ok := t[page]
	if !ok {
		return "", false
	}
	text, ok := entries[id]
	return text, ok
}

// Tables bundles the four reference tables.
type Tables struct {
	Offsets     OffsetTable
	SectorNames NameTable
	ShipNames   NameTable
	Strings     StringTable
}

// Paths locates the four table files.
type Paths struct {
	Offsets     string
	SectorNames string
	ShipNames   string
	Strings     string
}

// TableError reports a reference table that could not be loaded.
type TableError struct {
	Table string
	Path  string
	Err   error
}

func (e *TableError) Error() string {
	return fmt.Sprintf("reference table %s (%s): %v", e.Table, e.Path, e.Err)
}

func (e *TableError) Unwrap() error {
	return e.Err
}

// Load reads all four tables. Any missing or malformed file is fatal.
func Load(paths Paths) (*Tables, error) {
	t := &Tables{}

	if err := loadJSON("offsets", paths.Offsets, &t.Offsets); err != nil {
		return nil, err
	}
	if err := loadJSON("sector names", paths.SectorNames, &t.SectorNames); err != nil {
		return nil, err
	}
	if err := loadJSON("ship names", paths.ShipNames, &t.ShipNames); err != nil {
		return nil, err
	}
	if err := loadJSON("strings", paths.Strings, &t.Strings); err != nil {
		return nil, err
	}

	t.Offsets = lowerKeys(t.Offsets)
	t.SectorNames = lowerKeys(t.SectorNames)
	t.ShipNames = lowerKeys(t.ShipNames)

	log.Info("Reference tables loaded",
		"offsets", len(t.Offsets),
		"sector_names", len(t.SectorNames),
		"ship_names", len(t.ShipNames),
		"string_pages", len(t.Strings))

	return t, nil
}

func loadJSON(table, path string, dst any) error {
	f, err := os.Open(path)
	if err != nil {
		return &TableError{Table: table, Path: path, Err: err}
	}
	defer f.Close()

	if err := json.NewDecoder(f).Decode(dst); err != nil {
		return &TableError{Table: table, Path: path, Err: fmt.Errorf("decode: %w", err)}
	}
	return nil
}

// lowerKeys normalizes keys so lookups can lowercase their input.
// The extractor already writes lowercased keys; hand-edited tables may not.
func lowerKeys[V any](m map[string]V) map[string]V {
	if m == nil {
		return map[string]V{}
	}
	for k, v := range m {
		lk := strings.ToLower(k)
		if lk != k {
			delete(m, k)
			if _, exists := m[lk]; !exists {
				m[lk] = v
			}
		}
	}
	return m
}
