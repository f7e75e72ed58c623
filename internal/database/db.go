package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/brianchou452/ntut-electricity-bill-bot/pkg/models"
	_ "modernc.org/sqlite"
)

const timeLayout = "2006-01-02 15:04:05"

// DB wraps the database connection
type DB struct {
	conn *sql.DB
}

// New creates a new database connection and initializes the schema
func New(dbPath string) (*DB, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

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
	CREATE TABLE IF NOT EXISTS electricity_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		balance REAL NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS crawler_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp TEXT NOT NULL,
		status TEXT NOT NULL,
		records_count INTEGER DEFAULT 0,
		error_message TEXT,
		duration_seconds REAL
	);
	CREATE INDEX IF NOT EXISTS idx_electricity_created ON electricity_records(created_at);
	CREATE INDEX IF NOT EXISTS idx_crawler_logs_timestamp ON crawler_logs(timestamp);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// InsertRecord stores one balance reading. A zero CreatedAt is filled
// with the current time.
func (db *DB) InsertRecord(ctx context.Context, record *models.ElectricityRecord) error {
	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query := `INSERT INTO electricity_records (balance, created_at) VALUES (?, ?)`
	res, err := db.conn.ExecContext(ctx, query, record.Balance, createdAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("inserting electricity record: %w", err)
	}

	if id, err := res.LastInsertId(); err == nil {
		record.ID = int(id)
	}
	record.CreatedAt = createdAt

	return nil
}

// InsertCrawlerLog appends one crawl attempt outcome
func (db *DB) InsertCrawlerLog(ctx context.Context, entry *models.CrawlerLog) error {
	ts := entry.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	query := `
	INSERT INTO crawler_logs (timestamp, status, records_count, error_message, duration_seconds)
	VALUES (?, ?, ?, ?, ?)
	`

	var errMsg sql.NullString
	if entry.ErrorMessage != "" {
		errMsg = sql.NullString{String: entry.ErrorMessage, Valid: true}
	}

	_, err := db.conn.ExecContext(ctx, query,
		ts.UTC().Format(timeLayout), entry.Status, entry.RecordsCount, errMsg, entry.DurationSeconds)
	if err != nil {
		return fmt.Errorf("inserting crawler log: %w", err)
	}

	return nil
}

// RecordsForDay returns the readings whose created_at falls on the given
// calendar day in loc, ordered ascending
func (db *DB) RecordsForDay(ctx context.Context, day time.Time, loc *time.Location) ([]models.ElectricityRecord, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
	end := start.AddDate(0, 0, 1)

	query := `
	SELECT id, balance, created_at
	FROM electricity_records
	WHERE created_at >= ? AND created_at < ?
	ORDER BY created_at ASC
	`

	rows, err := db.conn.QueryContext(ctx, query,
		start.UTC().Format(timeLayout), end.UTC().Format(timeLayout))
	if err != nil {
		return nil, fmt.Errorf("querying records for day: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// LatestRecords returns the most recent readings, newest first
func (db *DB) LatestRecords(ctx context.Context, limit int) ([]models.ElectricityRecord, error) {
	query := `
	SELECT id, balance, created_at
	FROM electricity_records
	ORDER BY created_at DESC
	LIMIT ?
	`

	rows, err := db.conn.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("querying latest records: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// LatestBalance returns the most recently recorded balance, or false when
// no readings exist yet
func (db *DB) LatestBalance(ctx context.Context) (float64, bool, error) {
	query := `
	SELECT balance FROM electricity_records
	ORDER BY created_at DESC
	LIMIT 1
	`

	var balance float64
	err := db.conn.QueryRowContext(ctx, query).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("querying latest balance: %w", err)
	}

	return balance, true, nil
}

func scanRecords(rows *sql.Rows) ([]models.ElectricityRecord, error) {
	var results []models.ElectricityRecord
	for rows.Next() {
		var record models.ElectricityRecord
		var createdAtStr string

		if err := rows.Scan(&record.ID, &record.Balance, &createdAtStr); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		createdAt, err := time.Parse(timeLayout, createdAtStr)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		record.CreatedAt = createdAt.UTC()

		results = append(results, record)
	}

	return results, rows.Err()
}
