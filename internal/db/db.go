package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const defaultDBName = "euprava.db"

type Config struct {
	// Path to the database file. When empty, ./data/euprava.db is used.
	Path string
}

func (c Config) path() string {
	if c.Path != "" {
		return c.Path
	}
	return filepath.Join("data", defaultDBName)
}

// Open opens the SQLite database with foreign keys on, creating the parent
// directory if missing.
func Open(cfg Config) (*sql.DB, error) {
	path := cfg.path()
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=foreign_keys(1)", path)
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	return conn, nil
}
