package gatemap

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vaultfinder/internal/report"
)

func gateReport(t *testing.T) *report.Report {
	t.Helper()
	rep := report.New()
	rep.AddSector("sector_a", "Alpha", true)
	rep.AddSector("sector_b", "Beta", false)
	rep.AddSector("sector_c", "Gamma", false)

	inactive := false
	objects := []struct {
		sector string
		obj    *report.ObjectRecord
	}{
		{"sector_a", &report.ObjectRecord{Class: "gate", Code: "GA1", TargetSectorMacro: "sector_b"}},
		{"sector_a", &report.ObjectRecord{Class: "gate", Code: "GA2", TargetSectorMacro: "sector_b"}},
		{"sector_b", &report.ObjectRecord{Class: "gate", Code: "GB1", TargetSectorMacro: "sector_a"}},
		{"sector_b", &report.ObjectRecord{Class: "highwayentrygate", Code: "HB1", TargetSectorMacro: "sector_c", IsActive: &inactive}},
		{"sector_c", &report.ObjectRecord{Class: "gate", Code: "GC1", TargetSectorMacro: "sector_missing"}},
		{"sector_c", &report.ObjectRecord{Class: "gate", Code: "GC2"}},
		{"sector_c", &report.ObjectRecord{Class: "datavault", Code: "V1"}},
		{"sector_c", &report.ObjectRecord{Class: "object", Code: "V2", Macro: "landmarks_erlking_vault_01_macro"}},
		{"sector_a", &report.ObjectRecord{Class: "station", Code: "S1"}},
	}
	for _, o := range objects {
		require.NoError(t, rep.AddObject(o.sector, o.obj))
	}
	return rep
}

func TestBuild(t *testing.T) {
	g, err := Build(gateReport(t))
	require.NoError(t, err)

	order, err := g.Order()
	require.NoError(t, err)
	assert.Equal(t, 3, order)

	size, err := g.Size()
	require.NoError(t, err)
	assert.Equal(t, 3, size, "duplicate gates collapse and unknown targets are skipped")

	gamma, err := g.Vertex("sector_c")
	require.NoError(t, err)
	assert.Equal(t, 2, gamma.Vaults)
	assert.False(t, gamma.Known)

	alpha, err := g.Vertex("sector_a")
	require.NoError(t, err)
	assert.True(t, alpha.Known)
	assert.Equal(t, 0, alpha.Vaults)

	highway, err := g.Edge("sector_b", "sector_c")
	require.NoError(t, err)
	assert.Equal(t, "highway", highway.Properties.Attributes[attrKind])
	assert.Equal(t, "false", highway.Properties.Attributes[attrActive])

	gate, err := g.Edge("sector_a", "sector_b")
	require.NoError(t, err)
	assert.Equal(t, "gate", gate.Properties.Attributes[attrKind])
	assert.Equal(t, "true", gate.Properties.Attributes[attrActive])
}

func TestBuild_EmptyReport(t *testing.T) {
	g, err := Build(report.New())
	require.NoError(t, err)
	order, err := g.Order()
	require.NoError(t, err)
	assert.Zero(t, order)
}

func TestNodeLabel(t *testing.T) {
	tests := []struct {
		sector Sector
		want   string
	}{
		{Sector{Name: "Alpha"}, "Alpha"},
		{Sector{Name: "Beta", Vaults: 1}, `Beta\n1 vault`},
		{Sector{Name: "Gamma", Vaults: 4}, `Gamma\n4 vaults`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, nodeLabel(tt.sector))
	}
}

func TestRender(t *testing.T) {
	g, err := Build(gateReport(t))
	require.NoError(t, err)

	t.Run("dot", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Render(context.Background(), g, FormatDOT, &buf))
		out := buf.String()
		assert.Contains(t, out, "digraph")
		assert.Contains(t, out, "sector_a")
		assert.Contains(t, out, "sector_c")
		assert.Contains(t, out, "Gamma")
	})

	t.Run("svg", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Render(context.Background(), g, FormatSVG, &buf))
		assert.Contains(t, buf.String(), "<svg")
	})

	t.Run("unknown format", func(t *testing.T) {
		var buf bytes.Buffer
		err := Render(context.Background(), g, "png", &buf)
		assert.ErrorIs(t, err, ErrUnknownFormat)
		assert.Zero(t, buf.Len())
	})
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "maps", "gates.dot")
	require.NoError(t, WriteFile(context.Background(), gateReport(t), path, FormatDOT))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "sector_b")

	bad := filepath.Join(t.TempDir(), "gates.png")
	assert.ErrorIs(t, WriteFile(context.Background(), gateReport(t), bad, "png"), ErrUnknownFormat)
	assert.NoFileExists(t, bad)
}
