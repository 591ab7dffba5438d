package database

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// MemoryPath keeps the whole database in process memory.
const MemoryPath = ":memory:"

type Config struct {
	Path string
}

func DefaultConfig() Config {
	if p := os.Getenv("KEPLERHUB_DB_PATH"); p != "" {
		return Config{Path: p}
	}
	return Config{Path: MemoryPath}
}

func (c Config) inMemory() bool {
	return c.Path == "" || c.Path == MemoryPath
}

func EnsureDataDir(cfg Config) error {
	if cfg.inMemory() {
		return nil
	}
	return os.MkdirAll(filepath.Dir(cfg.Path), 0o755)
}

func Open(cfg Config) (*sql.DB, error) {
	if err := EnsureDataDir(cfg); err != nil {
		return nil, fmt.Errorf("ensure data dir: %w", err)
	}

	path := cfg.Path
	if path == "" {
		path = MemoryPath
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if cfg.inMemory() {
		// every new connection would get its own empty database
		db.SetMaxOpenConns(1)
		db.SetConnMaxLifetime(0)
		db.SetConnMaxIdleTime(0)
	} else if _, err := db.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pragma journal_mode: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return db, nil
}

func MustOpen(cfg Config) *sql.DB {
	db, err := Open(cfg)
	if err != nil {
		log.Fatalf("failed to open db: %v", err)
	}
	return db
}
