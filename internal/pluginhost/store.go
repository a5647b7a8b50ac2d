package pluginhost

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Record is one persisted plugin registration, surviving process restarts
// so discovery doesn't require re-upload on every boot.
type Record struct {
	Kind       string
	Dialect    Dialect
	Path       string
	APIVersion int
}

// Store persists plugin registrations in a SQLite database, following the
// same mandatory-PRAGMA connection setup the teacher's persistence layer
// uses for every SQLite-backed store in this codebase.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS plugin_registrations (
	kind        TEXT PRIMARY KEY,
	dialect     TEXT NOT NULL,
	path        TEXT NOT NULL,
	api_version INTEGER NOT NULL,
	loaded_at   TEXT NOT NULL
);
`

// OpenStore opens (creating if necessary) the SQLite database at dbPath and
// ensures its schema exists.
func OpenStore(dbPath string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("pluginhost: open store: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; the host serializes Load/Unload under its own mutex anyway
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pluginhost: ping store: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pluginhost: migrate store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// SaveRecord upserts rec.
func (s *Store) SaveRecord(rec Record) error {
	_, err := s.db.Exec(
		`INSERT INTO plugin_registrations (kind, dialect, path, api_version, loaded_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(kind) DO UPDATE SET dialect=excluded.dialect, path=excluded.path,
		   api_version=excluded.api_version, loaded_at=excluded.loaded_at`,
		rec.Kind, string(rec.Dialect), rec.Path, rec.APIVersion, time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// DeleteRecord removes kind's persisted registration, if any.
func (s *Store) DeleteRecord(kind string) error {
	_, err := s.db.Exec(`DELETE FROM plugin_registrations WHERE kind = ?`, kind)
	return err
}

// LoadAll returns every persisted registration, for a host to re-load at
// startup.
func (s *Store) LoadAll() ([]Record, error) {
	rows, err := s.db.Query(`SELECT kind, dialect, path, api_version FROM plugin_registrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []Record
	for rows.Next() {
		var rec Record
		var dialect string
		if err := rows.Scan(&rec.Kind, &dialect, &rec.Path, &rec.APIVersion); err != nil {
			return nil, err
		}
		rec.Dialect = Dialect(dialect)
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
