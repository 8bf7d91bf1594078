// Package database stores interpreter reports in a SQLite file so several
// runs over the same campaign can be queried and compared.
package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"vaultfinder/internal/log"
	"vaultfinder/internal/report"
)

var (
	ErrNotOpen     = errors.New("database not open")
	ErrAlreadyOpen = errors.New("database already open")
	ErrNoRuns      = errors.New("no runs recorded")
)

// Database is the report store used by the command line.
type Database interface {
	OpenDatabase(filename string) error
	CloseDatabase() error

	SaveReport(rep *report.Report, source string) (Run, error)
	LoadReport(runID string) (*report.Report, error)
	LatestRun() (Run, error)

	GetDatabaseOpen() bool
	GetDB() *sql.DB
}

// Run describes one stored report.
type Run struct {
	ID          string
	CreatedAt   time.Time
	Source      string
	SectorCount int
	ObjectCount int
}

// objectInsertBatch bounds the rows per INSERT so the statement stays below
// SQLite's bound-variable limit.
const objectInsertBatch = 500

// SQLiteDatabase implements Database on top of modernc.org/sqlite.
type SQLiteDatabase struct {
	db       *sql.DB
	dbOpen   bool
	filename string
	psql     squirrel.StatementBuilderType
}

// NewDatabase creates a closed database handle.
func NewDatabase() *SQLiteDatabase {
	return &SQLiteDatabase{
		psql: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}
}

// OpenDatabase opens or creates filename and brings its schema up to date.
func (d *SQLiteDatabase) OpenDatabase(filename string) error {
	if d.dbOpen {
		return ErrAlreadyOpen
	}

	log.Debug("Opening database", "file", filename)

	db, err := sql.Open("sqlite", filename+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	// One writer; keeps the pragmas on the single connection in use.
	db.SetMaxOpenConns(1)

	if err = db.Ping(); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	d.db = db
	if err = d.runMigrations(); err != nil {
		d.db.Close()
		d.db = nil
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	d.filename = filename
	d.dbOpen = true

	log.Info("Database opened", "file", filename)
	return nil
}

// CloseDatabase closes the connection. Closing a closed database is a no-op.
func (d *SQLiteDatabase) CloseDatabase() error {
	if !d.dbOpen {
		return nil
	}

	if err := d.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	d.db = nil
	d.dbOpen = false
	d.filename = ""
	log.Debug("Database closed")
	return nil
}

func (d *SQLiteDatabase) GetDatabaseOpen() bool {
	return d.dbOpen
}

func (d *SQLiteDatabase) GetDB() *sql.DB {
	return d.db
}

// SaveReport stores rep as a new run in a single transaction.
func (d *SQLiteDatabase) SaveReport(rep *report.Report, source string) (Run, error) {
	if !d.dbOpen {
		return Run{}, ErrNotOpen
	}

	sectors, objects := rep.Counts()
	run := Run{
		ID:          uuid.NewString(),
		CreatedAt:   time.Now().UTC(),
		Source:      source,
		SectorCount: sectors,
		ObjectCount: objects,
	}

	tx, err := d.db.Begin()
	if err != nil {
		return Run{}, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	if err := d.exec(tx, d.psql.Insert("runs").
		Columns("id", "created_at", "source", "sector_count", "object_count").
		Values(run.ID, run.CreatedAt, run.Source, run.SectorCount, run.ObjectCount)); err != nil {
		return Run{}, fmt.Errorf("failed to insert run: %w", err)
	}

	for macro, sector := range rep.Sectors {
		if err := d.saveSector(tx, run.ID, macro, sector); err != nil {
			return Run{}, fmt.Errorf("failed to save sector %q: %w", macro, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Run{}, fmt.Errorf("failed to commit run: %w", err)
	}

	log.Info("Report saved to database", "run", run.ID, "sectors", sectors, "objects", objects)
	return run, nil
}

func (d *SQLiteDatabase) saveSector(tx *sql.Tx, runID, macro string, sector *report.Sector) error {
	if err := d.exec(tx, d.psql.Insert("sectors").
		Columns("run_id", "macro", "name", "is_known").
		Values(runID, macro, sector.Name, sector.IsKnown)); err != nil {
		return err
	}

	rows := make([]*report.ObjectRecord, 0, len(sector.Objects))
	for _, obj := range sector.Objects {
		rows = append(rows, obj)
	}
	for len(rows) > 0 {
		n := min(len(rows), objectInsertBatch)
		if err := d.saveObjects(tx, runID, macro, rows[:n]); err != nil {
			return err
		}
		rows = rows[n:]
	}

	for _, area := range sector.ResourceAreas {
		if err := d.saveResourceArea(tx, runID, macro, area); err != nil {
			return err
		}
	}
	return nil
}

func (d *SQLiteDatabase) saveObjects(tx *sql.Tx, runID, sectorMacro string, objects []*report.ObjectRecord) error {
	insert := d.psql.Insert("objects").Columns(
		"run_id", "sector_macro", "code", "class", "macro", "owner",
		"x", "y", "z",
		"has_blueprints", "has_signalleak", "has_wares",
		"is_wreck", "is_headquarter", "is_active",
		"target_id", "target_name", "target_sector_macro", "target_sector_name",
	)
	for _, o := range objects {
		insert = insert.Values(
			runID, sectorMacro, o.Code, o.Class, o.Macro, o.Owner,
			o.X, o.Y, o.Z,
			o.HasBlueprints, o.HasSignalleak, o.HasWares,
			o.IsWreck, o.IsHeadquarter, o.IsActive,
			o.TargetID, o.TargetName, o.TargetSectorMacro, o.TargetSectorName,
		)
	}
	return d.exec(tx, insert)
}

func (d *SQLiteDatabase) saveResourceArea(tx *sql.Tx, runID, sectorMacro string, area *report.ResourceArea) error {
	query, args, err := d.psql.Insert("resource_areas").
		Columns("run_id", "sector_macro", "x", "y", "z").
		Values(runID, sectorMacro, area.X, area.Y, area.Z).
		ToSql()
	if err != nil {
		return err
	}
	res, err := tx.Exec(query, args...)
	if err != nil {
		return err
	}
	areaID, err := res.LastInsertId()
	if err != nil {
		return err
	}

	if len(area.Resources) == 0 {
		return nil
	}
	insert := d.psql.Insert("resources").
		Columns("area_id", "ware", "recharge_current", "recharge_max", "recharge_time", "yield")
	for ware, r := range area.Resources {
		insert = insert.Values(areaID, ware, r.RechargeCurrent, r.RechargeMax, r.RechargeTime, r.Yield)
	}
	return d.exec(tx, insert)
}

func (d *SQLiteDatabase) exec(tx *sql.Tx, b squirrel.Sqlizer) error {
	query, args, err := b.ToSql()
	if err != nil {
		return err
	}
	_, err = tx.Exec(query, args...)
	return err
}

// LatestRun returns the most recently stored run.
func (d *SQLiteDatabase) LatestRun() (Run, error) {
	if !d.dbOpen {
		return Run{}, ErrNotOpen
	}

	query, args, err := d.psql.
		Select("id", "created_at", "source", "sector_count", "object_count").
		From("runs").
		OrderBy("created_at DESC", "rowid DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return Run{}, err
	}

	var run Run
	err = d.db.QueryRow(query, args...).Scan(&run.ID, &run.CreatedAt, &run.Source, &run.SectorCount, &run.ObjectCount)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrNoRuns
	}
	if err != nil {
		return Run{}, fmt.Errorf("failed to load latest run: %w", err)
	}
	return run, nil
}

// LoadReport rebuilds the report stored under runID.
func (d *SQLiteDatabase) LoadReport(runID string) (*report.Report, error) {
	if !d.dbOpen {
		return nil, ErrNotOpen
	}

	rep := report.New()
	if err := d.loadSectors(rep, runID); err != nil {
		return nil, fmt.Errorf("failed to load sectors: %w", err)
	}
	if err := d.loadObjects(rep, runID); err != nil {
		return nil, fmt.Errorf("failed to load objects: %w", err)
	}
	if err := d.loadResourceAreas(rep, runID); err != nil {
		return nil, fmt.Errorf("failed to load resource areas: %w", err)
	}
	return rep, nil
}

func (d *SQLiteDatabase) query(b squirrel.Sqlizer) (*sql.Rows, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	return d.db.Query(query, args...)
}

func (d *SQLiteDatabase) loadSectors(rep *report.Report, runID string) error {
	rows, err := d.query(d.psql.Select("macro", "name", "is_known").
		From("sectors").
		Where(squirrel.Eq{"run_id": runID}))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var macro, name string
		var known bool
		if err := rows.Scan(&macro, &name, &known); err != nil {
			return err
		}
		rep.AddSector(macro, name, known)
	}
	return rows.Err()
}

func (d *SQLiteDatabase) loadObjects(rep *report.Report, runID string) error {
	rows, err := d.query(d.psql.Select(
		"sector_macro", "code", "class", "macro", "owner",
		"x", "y", "z",
		"has_blueprints", "has_signalleak", "has_wares",
		"is_wreck", "is_headquarter", "is_active",
		"target_id", "target_name", "target_sector_macro", "target_sector_name",
	).From("objects").Where(squirrel.Eq{"run_id": runID}))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var sectorMacro string
		var o report.ObjectRecord
		var active sql.NullBool
		var targetName, targetSectorName sql.NullString

		if err := rows.Scan(
			&sectorMacro, &o.Code, &o.Class, &o.Macro, &o.Owner,
			&o.X, &o.Y, &o.Z,
			&o.HasBlueprints, &o.HasSignalleak, &o.HasWares,
			&o.IsWreck, &o.IsHeadquarter, &active,
			&o.TargetID, &targetName, &o.TargetSectorMacro, &targetSectorName,
		); err != nil {
			return err
		}
		if active.Valid {
			o.IsActive = &active.Bool
		}
		if targetName.Valid {
			o.TargetName = &targetName.String
		}
		if targetSectorName.Valid {
			o.TargetSectorName = &targetSectorName.String
		}

		if err := rep.AddObject(sectorMacro, &o); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (d *SQLiteDatabase) loadResourceAreas(rep *report.Report, runID string) error {
	rows, err := d.query(d.psql.Select(
		"a.id", "a.sector_macro", "a.x", "a.y", "a.z",
		"r.ware", "r.recharge_current", "r.recharge_max", "r.recharge_time", "r.yield",
	).
		From("resource_areas a").
		LeftJoin("resources r ON r.area_id = a.id").
		Where(squirrel.Eq{"a.run_id": runID}).
		OrderBy("a.id"))
	if err != nil {
		return err
	}
	defer rows.Close()

	areas := make(map[int64]*report.ResourceArea)
	for rows.Next() {
		var id int64
		var sectorMacro string
		var x, y, z int
		var ware, yield sql.NullString
		var current, maxRecharge, recharge sql.NullInt64

		if err := rows.Scan(&id, &sectorMacro, &x, &y, &z, &ware, &current, &maxRecharge, &recharge, &yield); err != nil {
			return err
		}

		area, ok := areas[id]
		if !ok {
			sector, found := rep.Sectors[sectorMacro]
			if !found {
				return fmt.Errorf("resource area %d references unknown sector %q", id, sectorMacro)
			}
			area = &report.ResourceArea{Resources: make(map[string]*report.Resource), X: x, Y: y, Z: z}
			areas[id] = area
			sector.ResourceAreas = append(sector.ResourceAreas, area)
		}
		if ware.Valid {
			area.Resources[ware.String] = &report.Resource{
				RechargeCurrent: int(current.Int64),
				RechargeMax:     int(maxRecharge.Int64),
				RechargeTime:    int(recharge.Int64),
				Yield:           yield.String,
			}
		}
	}
	return rows.Err()
}
