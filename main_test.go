package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vaultfinder/internal/config"
	"vaultfinder/internal/database"
	"vaultfinder/internal/reftables"
)

const saveXML = `<?xml version="1.0" encoding="UTF-8"?>
<savegame>
  <universe>
    <component class="galaxy" macro="xu_ep2_universe_macro" code="GAL">
      <connections>
        <connection connection="sectors">
          <component class="sector" macro="cluster_01_sector001_macro" code="SEC1">
            <connections>
              <connection connection="stations">
                <component class="station" macro="station_x" code="S1" owner="argon">
                  <offset><position x="10" y="20" z="30"/></offset>
                </component>
              </connection>
            </connections>
          </component>
        </connection>
      </connections>
    </component>
  </universe>
</savegame>`

func installFixture(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	files := map[string]string{
		"x4-positions.json":    `{}`,
		"x4-sector-names.json": `{"Cluster_01_Sector001_Macro": "Test ({44,1})"}`,
		"x4-ship-names.json":   `{}`,
		"x4-strings.json":      `{"44": {"1": "Sector"}}`,
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}

	cfg, err := config.LoadFrom("", dir)
	require.NoError(t, err)
	return cfg
}

func gzipped(t *testing.T, doc string) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, err := w.Write([]byte(doc))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf
}

func TestRun_WritesViewerScript(t *testing.T) {
	cfg := installFixture(t)

	require.NoError(t, run(context.Background(), cfg, gzipped(t, saveXML)))

	data, err := os.ReadFile(filepath.Join(cfg.AssetsDir, "view", "data.js"))
	require.NoError(t, err)
	out := string(data)

	assert.True(t, strings.HasPrefix(out, "let data = {"))
	assert.Contains(t, out, `"cluster_01_sector001_macro": {`)
	assert.Contains(t, out, `"name": "Test Sector"`)
	assert.Contains(t, out, `"S1": {`)
	assert.Contains(t, out, `"x": 10`)
	assert.Contains(t, out, `"z": 30`)
}

func TestRun_OptionalExports(t *testing.T) {
	cfg := installFixture(t)
	cfg.OutputFormat = config.FormatJSON
	cfg.OutputFile = "data.json"
	cfg.DatabaseFile = "vaults.db"
	cfg.GateMapFile = "gates.dot"

	require.NoError(t, run(context.Background(), cfg, gzipped(t, saveXML)))

	assert.FileExists(t, filepath.Join(cfg.AssetsDir, "data.json"))
	assert.FileExists(t, filepath.Join(cfg.AssetsDir, "gates.dot"))

	db := database.NewDatabase()
	require.NoError(t, db.OpenDatabase(filepath.Join(cfg.AssetsDir, "vaults.db")))
	defer db.CloseDatabase()

	latest, err := db.LatestRun()
	require.NoError(t, err)
	assert.Equal(t, 1, latest.SectorCount)
	assert.Equal(t, 1, latest.ObjectCount)
}

func TestRun_FailuresWriteNothing(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, cfg *config.Config)
		input string
		check func(t *testing.T, err error)
	}{
		{
			name:  "missing string table",
			setup: func(t *testing.T, cfg *config.Config) { require.NoError(t, os.Remove(cfg.Path(cfg.StringsFile))) },
			input: saveXML,
			check: func(t *testing.T, err error) {
				var te *reftables.TableError
				require.ErrorAs(t, err, &te)
				assert.Equal(t, "strings", te.Table)
			},
		},
		{
			name:  "malformed save",
			setup: func(*testing.T, *config.Config) {},
			input: `<savegame><component class="sector" macro="m">`,
			check: func(t *testing.T, err error) { assert.Error(t, err) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := installFixture(t)
			tt.setup(t, cfg)

			err := run(context.Background(), cfg, gzipped(t, tt.input))
			tt.check(t, err)
			assert.NoFileExists(t, filepath.Join(cfg.AssetsDir, "view", "data.js"))
		})
	}
}
