package database

import (
	"fmt"
	"strings"

	"vaultfinder/internal/log"
)

// Migration represents a database migration
type Migration struct {
	ID          int
	Description string
	SQL         string
}

// migrations contains all database migrations in order
var migrations = []Migration{
	{
		ID:          1,
		Description: "Runs, sectors and objects",
		SQL: `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	created_at DATETIME NOT NULL,
	source TEXT NOT NULL DEFAULT '',
	sector_count INTEGER NOT NULL DEFAULT 0,
	object_count INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS sectors (
	run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	macro TEXT NOT NULL,
	name TEXT NOT NULL,
	is_known BOOLEAN NOT NULL DEFAULT 0,
	PRIMARY KEY (run_id, macro)
);
CREATE TABLE IF NOT EXISTS objects (
	run_id TEXT NOT NULL,
	sector_macro TEXT NOT NULL,
	code TEXT NOT NULL,
	class TEXT NOT NULL,
	macro TEXT NOT NULL,
	owner TEXT NOT NULL DEFAULT '',
	x REAL NOT NULL DEFAULT 0,
	y REAL NOT NULL DEFAULT 0,
	z REAL NOT NULL DEFAULT 0,
	has_blueprints BOOLEAN NOT NULL DEFAULT 0,
	has_signalleak BOOLEAN NOT NULL DEFAULT 0,
	has_wares BOOLEAN NOT NULL DEFAULT 0,
	is_wreck BOOLEAN NOT NULL DEFAULT 0,
	is_headquarter BOOLEAN NOT NULL DEFAULT 0,
	is_active BOOLEAN,
	target_id TEXT NOT NULL DEFAULT '',
	target_name TEXT,
	target_sector_macro TEXT NOT NULL DEFAULT '',
	target_sector_name TEXT,
	PRIMARY KEY (run_id, sector_macro, code),
	FOREIGN KEY (run_id, sector_macro) REFERENCES sectors(run_id, macro) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_objects_class ON objects(run_id, class);`,
	},
	{
		ID:          2,
		Description: "Resource areas",
		SQL: `
CREATE TABLE IF NOT EXISTS resource_areas (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	sector_macro TEXT NOT NULL,
	x INTEGER NOT NULL,
	y INTEGER NOT NULL,
	z INTEGER NOT NULL,
	FOREIGN KEY (run_id, sector_macro) REFERENCES sectors(run_id, macro) ON DELETE CASCADE
);
CREATE TABLE IF NOT EXISTS resources (
	area_id INTEGER NOT NULL REFERENCES resource_areas(id) ON DELETE CASCADE,
	ware TEXT NOT NULL,
	recharge_current INTEGER NOT NULL,
	recharge_max INTEGER NOT NULL,
	recharge_time INTEGER NOT NULL,
	yield TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (area_id, ware)
);`,
	},
}

// runMigrations executes all pending migrations
func (d *SQLiteDatabase) runMigrations() error {
	if err := d.ensureSchemaVersionTable(); err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}

	currentVersion, err := d.getCurrentSchemaVersion()
	if err != nil {
		return fmt.Errorf("failed to get current schema version: %w", err)
	}

	log.Debug("Checking database migrations", "version", currentVersion)

	for _, migration := range migrations {
		if migration.ID <= currentVersion {
			continue
		}
		log.Info("Applying migration", "id", migration.ID, "description", migration.Description)
		if err := d.applyMigration(migration); err != nil {
			return fmt.Errorf("failed to apply migration %d: %w", migration.ID, err)
		}
	}
	return nil
}

func (d *SQLiteDatabase) ensureSchemaVersionTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`

	_, err := d.db.Exec(query)
	return err
}

func (d *SQLiteDatabase) getCurrentSchemaVersion() (int, error) {
	var version int
	err := d.db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version;`).Scan(&version)
	if err != nil {
		return 0, err
	}
	return version, nil
}

// applyMigration runs every statement of migration and records it, all in
// one transaction.
func (d *SQLiteDatabase) applyMigration(migration Migration) error {
	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range strings.Split(migration.SQL, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" || strings.HasPrefix(stmt, "--") {
			continue
		}
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute migration statement: %w", err)
		}
	}

	if _, err := tx.Exec(`INSERT INTO schema_version (version) VALUES (?);`, migration.ID); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration: %w", err)
	}
	return nil
}

// MigrationStatus represents the status of a migration
type MigrationStatus struct {
	ID          int
	Description string
	Applied     bool
}

// Migrations lists every known migration and whether it is applied.
func (d *SQLiteDatabase) Migrations() ([]MigrationStatus, error) {
	if !d.dbOpen {
		return nil, ErrNotOpen
	}

	rows, err := d.db.Query(`SELECT version FROM schema_version ORDER BY version;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	status := make([]MigrationStatus, 0, len(migrations))
	for _, migration := range migrations {
		status = append(status, MigrationStatus{
			ID:          migration.ID,
			Description: migration.Description,
			Applied:     applied[migration.ID],
		})
	}
	return status, nil
}
