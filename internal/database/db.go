package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/jgoulah/energydash/pkg/models"
	_ "modernc.org/sqlite"
)

// dates keep their UTC offset; rows written before that use legacyDateLayout
const (
	dateLayout       = time.RFC3339Nano
	legacyDateLayout = "2006-01-02 15:04:05"
)

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, s)
	if err == nil {
		return t, nil
	}
	if legacy, lerr := time.Parse(legacyDateLayout, s); lerr == nil {
		return legacy, nil
	}
	return time.Time{}, err
}

// DB wraps the database connection
type DB struct {
	conn *sql.DB
}

// New creates a new database connection and initializes the schema
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// initSchema creates the necessary tables
func (db *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS energy_consumption (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		date TEXT NOT NULL,
		kwh REAL NOT NULL,
		created_at TEXT NOT NULL,
		published INTEGER DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_energy_date ON energy_consumption(date);
	CREATE INDEX IF NOT EXISTS idx_energy_published ON energy_consumption(published);

	CREATE TABLE IF NOT EXISTS appliance_power (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		appliance TEXT NOT NULL,
		power REAL NOT NULL,
		date TEXT,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_appliance_name ON appliance_power(appliance);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// ReplaceEnergy swaps the stored energy table for records, keeping their order
func (db *DB) ReplaceEnergy(records []models.EnergyRecord) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM energy_consumption`); err != nil {
		return fmt.Errorf("clearing energy data: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO energy_consumption (date, kwh, created_at) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	createdAt := time.Now().UTC().Format(time.RFC3339)
	for _, r := range records {
		if _, err := stmt.Exec(r.Date.Format(dateLayout), r.KWh, createdAt); err != nil {
			return fmt.Errorf("inserting energy data: %w", err)
		}
	}

	return tx.Commit()
}

// ReplaceAppliances swaps the stored appliance table for records
func (db *DB) ReplaceAppliances(records []models.ApplianceRecord) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM appliance_power`); err != nil {
		return fmt.Errorf("clearing appliance data: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO appliance_power (appliance, power, date, created_at) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	createdAt := time.Now().UTC().Format(time.RFC3339)
	for _, r := range records {
		var date sql.NullString
		if r.Dated() {
			date = sql.NullString{String: r.Date.Format(dateLayout), Valid: true}
		}
		if _, err := stmt.Exec(r.Appliance, r.Power, date, createdAt); err != nil {
			return fmt.Errorf("inserting appliance data: %w", err)
		}
	}

	return tx.Commit()
}

// ListEnergy retrieves the energy table in import order
func (db *DB) ListEnergy() ([]models.EnergyRecord, error) {
	return db.queryEnergy(`SELECT id, date, kwh FROM energy_consumption ORDER BY id`)
}

// ListUnpublishedEnergy retrieves energy rows not yet sent to Home Assistant
func (db *DB) ListUnpublishedEnergy() ([]models.EnergyRecord, error) {
	return db.queryEnergy(`SELECT id, date, kwh FROM energy_consumption WHERE published = 0 ORDER BY id`)
}

func (db *DB) queryEnergy(query string) ([]models.EnergyRecord, error) {
	rows, err := db.conn.Query(query)
	if err != nil {
		return nil, fmt.Errorf("querying energy data: %w", err)
	}
	defer rows.Close()

	var results []models.EnergyRecord
	for rows.Next() {
		var rec models.EnergyRecord
		var dateStr string
		if err := rows.Scan(&rec.ID, &dateStr, &rec.KWh); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		rec.Date, err = parseDate(dateStr)
		if err != nil {
			return nil, fmt.Errorf("parsing date: %w", err)
		}
		results = append(results, rec)
	}

	return results, rows.Err()
}

// ListAppliances retrieves the appliance table in import order
func (db *DB) ListAppliances() ([]models.ApplianceRecord, error) {
	rows, err := db.conn.Query(`SELECT id, appliance, power, date FROM appliance_power ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying appliance data: %w", err)
	}
	defer rows.Close()

	var results []models.ApplianceRecord
	for rows.Next() {
		var rec models.ApplianceRecord
		var dateStr sql.NullString
		if err := rows.Scan(&rec.ID, &rec.Appliance, &rec.Power, &dateStr); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		if dateStr.Valid && dateStr.String != "" {
			rec.Date, err = parseDate(dateStr.String)
			if err != nil {
				return nil, fmt.Errorf("parsing date: %w", err)
			}
		}
		results = append(results, rec)
	}

	return results, rows.Err()
}

// MarkPublished marks an energy record as published
func (db *DB) MarkPublished(id int) error {
	query := `UPDATE energy_consumption SET published = 1 WHERE id = ?`
	_, err := db.conn.Exec(query, id)
	if err != nil {
		return fmt.Errorf("marking record as published: %w", err)
	}
	return nil
}
