package storage

import (
	"database/sql"
	"fmt"
	"os"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// Store owns every persisted row. Writes are serialized by a mutex so
// SQLite sees one writer; reads run concurrently on the connection
// pool. Snapshots are append-only: re-ingesting the same day upserts,
// disappearance flips archived, rows are never deleted.
type Store struct {
	db      *sql.DB
	writeMu sync.Mutex
}

func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(8)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// CreateDatabase initializes a fresh database file. With force, an
// existing file is replaced.
func CreateDatabase(dbPath string, force bool) (*Store, error) {
	if _, err := os.Stat(dbPath); err == nil {
		if !force {
			return nil, fmt.Errorf("database %s already exists (use --force to replace)", dbPath)
		}
		if err := os.Remove(dbPath); err != nil {
			return nil, fmt.Errorf("remove existing database: %w", err)
		}
	}
	return Open(dbPath)
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS residential_complexes (
		id INTEGER PRIMARY KEY,
		complex_id TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		city TEXT,
		district TEXT,
		developer TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS real_estate_developers (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		category TEXT NOT NULL DEFAULT 'indifferent'
			CHECK (category IN ('good', 'bad', 'indifferent'))
	);

	CREATE TABLE IF NOT EXISTS rental_flats (
		id INTEGER PRIMARY KEY,
		flat_id TEXT NOT NULL,
		query_date TEXT NOT NULL,
		price INTEGER NOT NULL,
		area REAL NOT NULL,
		flat_type TEXT NOT NULL,
		residential_complex TEXT,
		floor INTEGER,
		total_floors INTEGER,
		construction_year INTEGER,
		parking TEXT,
		description TEXT,
		archived BOOLEAN NOT NULL DEFAULT FALSE,
		published_at DATETIME,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		scraped_at DATETIME,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		city TEXT,
		url TEXT,
		UNIQUE(flat_id, query_date)
	);

	CREATE TABLE IF NOT EXISTS sales_flats (
		id INTEGER PRIMARY KEY,
		flat_id TEXT NOT NULL,
		query_date TEXT NOT NULL,
		price INTEGER NOT NULL,
		area REAL NOT NULL,
		flat_type TEXT NOT NULL,
		residential_complex TEXT,
		floor INTEGER,
		total_floors INTEGER,
		construction_year INTEGER,
		parking TEXT,
		description TEXT,
		archived BOOLEAN NOT NULL DEFAULT FALSE,
		published_at DATETIME,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		scraped_at DATETIME,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		city TEXT,
		url TEXT,
		UNIQUE(flat_id, query_date)
	);

	CREATE TABLE IF NOT EXISTS favorites (
		id INTEGER PRIMARY KEY,
		flat_id TEXT NOT NULL,
		flat_type TEXT NOT NULL CHECK (flat_type IN ('rental', 'sale')),
		notes TEXT,
		added_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(flat_id, flat_type)
	);

	CREATE TABLE IF NOT EXISTS blacklisted_jks (
		id INTEGER PRIMARY KEY,
		complex_id TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		notes TEXT,
		blacklisted_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS blacklisted_districts (
		id INTEGER PRIMARY KEY,
		city TEXT NOT NULL,
		district TEXT NOT NULL,
		UNIQUE(city, district)
	);

	CREATE TABLE IF NOT EXISTS mid_prices (
		id INTEGER PRIMARY KEY,
		currency TEXT NOT NULL,
		rate REAL NOT NULL,
		fetched_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS jk_performance_snapshots (
		id INTEGER PRIMARY KEY,
		residential_complex TEXT NOT NULL,
		city TEXT,
		snapshot_date TEXT NOT NULL,
		sales_count INTEGER NOT NULL DEFAULT 0,
		rental_count INTEGER NOT NULL DEFAULT 0,
		mean_price_per_m2 REAL,
		median_price REAL
	);

	CREATE TABLE IF NOT EXISTS opportunity_analysis (
		id INTEGER PRIMARY KEY,
		run_timestamp TEXT NOT NULL,
		rank INTEGER NOT NULL,
		flat_id TEXT NOT NULL,
		residential_complex TEXT,
		price INTEGER NOT NULL,
		area REAL NOT NULL,
		flat_type TEXT NOT NULL,
		floor INTEGER,
		total_floors INTEGER,
		construction_year INTEGER,
		parking TEXT,
		discount_percentage_vs_median REAL NOT NULL,
		median_price REAL NOT NULL,
		mean_price REAL NOT NULL,
		min_price REAL NOT NULL,
		max_price REAL NOT NULL,
		sample_size INTEGER NOT NULL,
		query_date TEXT,
		url TEXT,
		description TEXT
	);

	CREATE TABLE IF NOT EXISTS ignored_opportunities (
		id INTEGER PRIMARY KEY,
		flat_id TEXT NOT NULL UNIQUE,
		reason TEXT,
		ignored_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS pipeline_runs (
		id INTEGER PRIMARY KEY,
		run_id TEXT,
		city TEXT,
		started_at DATETIME NOT NULL,
		finished_at DATETIME,
		duration_seconds REAL,
		jks_total INTEGER NOT NULL DEFAULT 0,
		jks_successful INTEGER NOT NULL DEFAULT 0,
		jks_failed INTEGER NOT NULL DEFAULT 0,
		listings_scraped INTEGER NOT NULL DEFAULT 0,
		error_histogram TEXT,
		http_errors INTEGER NOT NULL DEFAULT 0,
		request_errors INTEGER NOT NULL DEFAULT 0,
		rate_limited INTEGER NOT NULL DEFAULT 0,
		cancelled BOOLEAN NOT NULL DEFAULT FALSE
	);

	CREATE INDEX IF NOT EXISTS idx_rental_complex_date ON rental_flats(residential_complex, query_date);
	CREATE INDEX IF NOT EXISTS idx_sales_complex_date ON sales_flats(residential_complex, query_date);
	CREATE INDEX IF NOT EXISTS idx_rental_flat_type ON rental_flats(flat_type);
	CREATE INDEX IF NOT EXISTS idx_sales_flat_type ON sales_flats(flat_type);
	CREATE INDEX IF NOT EXISTS idx_rental_flat_id ON rental_flats(flat_id);
	CREATE INDEX IF NOT EXISTS idx_sales_flat_id ON sales_flats(flat_id);
	CREATE INDEX IF NOT EXISTS idx_mid_prices_currency ON mid_prices(currency, fetched_at);
	CREATE INDEX IF NOT EXISTS idx_opportunity_run ON opportunity_analysis(run_timestamp);
	CREATE INDEX IF NOT EXISTS idx_jk_perf_complex ON jk_performance_snapshots(residential_complex, snapshot_date);
	`
	_, err := s.db.Exec(schema)
	return err
}

// nullStr maps "" to NULL for optional text columns.
func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// nullInt maps 0 to NULL for optional integer columns.
func nullInt(v int) any {
	if v == 0 {
		return nil
	}
	return v
}
