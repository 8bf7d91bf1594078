package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vaultfinder/internal/report"
)

func openTestDB(t *testing.T) (*SQLiteDatabase, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vaults.db")
	db := NewDatabase()
	require.NoError(t, db.OpenDatabase(path))
	t.Cleanup(func() { db.CloseDatabase() })
	return db, path
}

func sampleReport(t *testing.T) *report.Report {
	t.Helper()
	rep := report.New()

	rep.AddSector("cluster_01_sector001_macro", "Grand Exchange I", true)
	rep.AddSector("cluster_02_sector001_macro", "Argon Prime", false)

	active := false
	target := "Argon Prime"
	targetSector := "Argon Prime"
	require.NoError(t, rep.AddObject("cluster_01_sector001_macro", &report.ObjectRecord{
		Class:             "gate",
		Code:              "GATE-1",
		IsActive:          &active,
		Macro:             "connection_clustergate001to002",
		Owner:             "ownerless",
		TargetID:          "[0x1]",
		TargetName:        &target,
		TargetSectorMacro: "cluster_02_sector001_macro",
		TargetSectorName:  &targetSector,
		X:                 -1250.5,
		Y:                 0,
		Z:                 88000.25,
	}))
	require.NoError(t, rep.AddObject("cluster_01_sector001_macro", &report.ObjectRecord{
		Class:         "datavault",
		Code:          "VLT-1",
		HasBlueprints: true,
		HasWares:      true,
		Macro:         "landmarks_erlking_vault_01_macro",
		X:             1, Y: 2, Z: 3,
	}))
	require.NoError(t, rep.AddObject("cluster_02_sector001_macro", &report.ObjectRecord{
		Class:         "station",
		Code:          "HQ-1",
		IsHeadquarter: true,
		Macro:         "station_hq",
		Owner:         "argon",
	}))

	rep.Sectors["cluster_02_sector001_macro"].ResourceAreas = []*report.ResourceArea{
		{
			Resources: map[string]*report.Resource{
				"ore":     {RechargeCurrent: 50, RechargeMax: 100, RechargeTime: 60, Yield: "high"},
				"silicon": {RechargeCurrent: 10, RechargeMax: 10, RechargeTime: 30},
			},
			X: 1, Y: -2, Z: 3,
		},
		{Resources: map[string]*report.Resource{}, X: 7},
	}
	return rep
}

func TestSaveAndLoadReport(t *testing.T) {
	db, _ := openTestDB(t)
	rep := sampleReport(t)

	run, err := db.SaveReport(rep, "save_001.xml.gz")
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, 2, run.SectorCount)
	assert.Equal(t, 3, run.ObjectCount)

	loaded, err := db.LoadReport(run.ID)
	require.NoError(t, err)
	assert.Equal(t, rep, loaded)
}

func TestLoadReport_UnknownRun(t *testing.T) {
	db, _ := openTestDB(t)

	loaded, err := db.LoadReport("no-such-run")
	require.NoError(t, err)
	assert.Empty(t, loaded.Sectors)
}

func TestLatestRun(t *testing.T) {
	db, _ := openTestDB(t)

	_, err := db.LatestRun()
	assert.ErrorIs(t, err, ErrNoRuns)

	first, err := db.SaveReport(sampleReport(t), "first")
	require.NoError(t, err)
	second, err := db.SaveReport(report.New(), "second")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	latest, err := db.LatestRun()
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)
	assert.Equal(t, "second", latest.Source)
	assert.Equal(t, 0, latest.ObjectCount)
}

func TestMigrations_AppliedOnceAcrossReopen(t *testing.T) {
	db, path := openTestDB(t)

	status, err := db.Migrations()
	require.NoError(t, err)
	require.Len(t, status, len(migrations))
	for _, s := range status {
		assert.True(t, s.Applied, "migration %d", s.ID)
	}

	run, err := db.SaveReport(sampleReport(t), "kept")
	require.NoError(t, err)
	require.NoError(t, db.CloseDatabase())
	assert.False(t, db.GetDatabaseOpen())

	require.NoError(t, db.OpenDatabase(path))
	var versions int
	require.NoError(t, db.GetDB().QueryRow(`SELECT COUNT(*) FROM schema_version`).Scan(&versions))
	assert.Equal(t, len(migrations), versions)

	latest, err := db.LatestRun()
	require.NoError(t, err)
	assert.Equal(t, run.ID, latest.ID)
}

func TestClosedDatabase(t *testing.T) {
	db := NewDatabase()

	_, err := db.SaveReport(report.New(), "")
	assert.ErrorIs(t, err, ErrNotOpen)
	_, err = db.LoadReport("x")
	assert.ErrorIs(t, err, ErrNotOpen)
	_, err = db.LatestRun()
	assert.ErrorIs(t, err, ErrNotOpen)
	_, err = db.Migrations()
	assert.ErrorIs(t, err, ErrNotOpen)
	assert.NoError(t, db.CloseDatabase())
}

func TestOpenDatabase_Twice(t *testing.T) {
	db, path := openTestDB(t)
	assert.ErrorIs(t, db.OpenDatabase(path), ErrAlreadyOpen)
}
