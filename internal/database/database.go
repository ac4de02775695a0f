// Package database opens SQLite files such as GeoPackages for reading
package database

import (
	"database/sql"
	"fmt"
	"net/url"

	_ "modernc.org/sqlite"
)

// sqliteMagic is the 16-byte header every SQLite 3 database starts with
const sqliteMagic = "SQLite format 3\x00"

// IsSQLite reports whether raw starts with the SQLite file header
func IsSQLite(raw []byte) bool {
	return len(raw) >= len(sqliteMagic) && string(raw[:len(sqliteMagic)]) == sqliteMagic
}

// OpenReadOnly opens the database at path without allowing writes
func OpenReadOnly(path string) (*sql.DB, error) {
	dsn := (&url.URL{Scheme: "file", Path: path, RawQuery: "mode=ro"}).String()
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return db, nil
}

// TableExists checks sqlite_master for a table with the given name
func TableExists(db *sql.DB, name string) (bool, error) {
	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", name).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking for %s table: %w", name, err)
	}
	return count > 0, nil
}
