// Package dbinit creates SQLite databases from SQL scripts so there is
// something to point the chat service at.
package dbinit

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed sample_dataset.sql
var sampleDataset string

// SampleDataset returns the bundled demo schema and rows.
func SampleDataset() string {
	return sampleDataset
}

// LoadScript reads a SQL script from disk. An empty path selects the
// bundled sample dataset.
func LoadScript(path string) (string, error) {
	if path == "" {
		return sampleDataset, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read sql script: %w", err)
	}
	return string(raw), nil
}

// CreateDatabase replaces the SQLite file at dbPath with a fresh
// database populated from script. An existing file is removed first.
func CreateDatabase(ctx context.Context, dbPath, script string) error {
	if dbPath == "" {
		return fmt.Errorf("database path is required")
	}
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create database directory: %w", err)
		}
	}
	if err := os.Remove(dbPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing database: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() { _ = db.Close() }()

	if _, err := db.ExecContext(ctx, script); err != nil {
		return fmt.Errorf("execute sql script: %w", err)
	}
	return nil
}
