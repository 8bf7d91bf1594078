package names

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"vaultfinder/internal/reftables"
)

func newTestResolver() *Resolver {
	return NewResolver(&reftables.Tables{
		Strings: reftables.StringTable{
			"44": {
				"1": "Sector",
				"2": "{,1}",
				"7": "Seven",
				"8": "{,8}",
				"9": "Chain {,7}",
			},
			"20004": {
				"1011": "Argon Prime",
				"1021": "{20004,1011} (old)",
				"1031": "{,1011} Two",
			},
			"20101": {
				"10101": "Elite (Vanguard)",
			},
		},
		SectorNames: reftables.NameTable{
			"cluster_01_sector001_macro": "{20004,1011}",
			"cluster_014_macro":          "{20004,1031}",
			"cluster_12_macro":           "Twelve",
		},
		ShipNames: reftables.NameTable{
			"ship_arg_s_fighter_01_a_macro": "{20101,10101}",
		},
	}, "44")
}

func TestResolve(t *testing.T) {
	r := newTestResolver()

	tests := []struct {
		name     string
		template string
		expected string
	}{
		{name: "no placeholders", template: "Plain Name", expected: "Plain Name"},
		{name: "empty", template: "", expected: ""},
		{name: "explicit page", template: "{20004,1011}", expected: "Argon Prime"},
		{name: "default page", template: "{,7}", expected: "Seven"},
		{name: "whitespace after comma", template: "{20004, 1011}", expected: "Argon Prime"},
		{name: "missing entry becomes empty", template: "A{20004,9999}B", expected: "AB"},
		{name: "self reference", template: "{,8}", expected: ""},
		{name: "two step cycle", template: "{,2}", expected: "Sector"},
		{name: "chain of references", template: "{,9}", expected: "Chain Seven"},
		{name: "nested page binds to its page", template: "{20004,1031}", expected: "Argon Prime Two"},
		{name: "repeated reference resolves once", template: "{,7} {,7}", expected: "Seven "},
		{name: "aside stripped", template: "Alpha (old) Sector", expected: "Alpha Sector"},
		{name: "two asides stripped", template: "A (x) B (y) C", expected: "A B C"},
		{name: "aside inside referenced text", template: "{20004,1021}", expected: "Argon Prime"},
		{name: "parenthesized reference kept", template: "Test ({44,1})", expected: "Test Sector"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, r.Resolve(tt.template))
		})
	}
}

func TestResolveInPage_CallerPage(t *testing.T) {
	r := newTestResolver()
	assert.Equal(t, "Seven", r.ResolveInPage("{,7}", "44"))
	assert.Equal(t, "Argon Prime", r.ResolveInPage("{,1011}", "20004"))
	assert.Equal(t, "", r.ResolveInPage("{,7}", "20004"))
}

func TestSectorName(t *testing.T) {
	r := newTestResolver()
	assert.Equal(t, "Argon Prime", r.SectorName("cluster_01_sector001_macro"))
	assert.Equal(t, "Argon Prime", r.SectorName("Cluster_01_Sector001_Macro"))
	assert.Equal(t, "cluster_99_sector001_macro", r.SectorName("cluster_99_sector001_macro"))
}

func TestShipName(t *testing.T) {
	r := newTestResolver()
	assert.Equal(t, "Elite", r.ShipName("ship_arg_s_fighter_01_a_macro"))
	assert.Equal(t, "ship_unknown_macro", r.ShipName("ship_unknown_macro"))
}

func TestGateTargetName(t *testing.T) {
	r := newTestResolver()

	tests := []struct {
		connection string
		expected   string
	}{
		{connection: "connection_clustergate001to014", expected: "Argon Prime Two"},
		{connection: "connection_clustergate001to012", expected: "Twelve"},
		{connection: "connection_clustergate001to112", expected: UnknownSector},
		{connection: "connection_clustergate001to099", expected: UnknownSector},
		{connection: "12", expected: UnknownSector},
		{connection: "", expected: UnknownSector},
	}

	for _, tt := range tests {
		t.Run(tt.connection, func(t *testing.T) {
			assert.Equal(t, tt.expected, r.GateTargetName(tt.connection))
		})
	}
}

func TestStripAsides(t *testing.T) {
	assert.Equal(t, "no parens", stripAsides("no parens"))
	assert.Equal(t, "keep  spacing", stripAsides("keep  spacing"))
	assert.Equal(t, "Name", stripAsides("Name (remark)"))
	assert.Equal(t, "", stripAsides("(all)"))
}
