// Package storage keeps the export audit log: one row per upload
// attempt, successful or not.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

type Storage struct {
	db *sql.DB
}

func New(dbPath string) (*Storage, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}

	s := &Storage{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS exports (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			service TEXT NOT NULL,
			format TEXT NOT NULL,
			event_count INTEGER NOT NULL DEFAULT 0,
			success INTEGER NOT NULL DEFAULT 0,
			file_id TEXT DEFAULT '',
			message TEXT DEFAULT '',
			exported_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_exports_exported_at ON exports(exported_at)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("exec migration: %w", err)
		}
	}
	return nil
}

// ExportRecord is one row of the export history.
type ExportRecord struct {
	ID         int64
	Service    string
	Format     string
	EventCount int
	Success    bool
	FileID     string
	Message    string
	ExportedAt time.Time
}

// RecordExport appends an export attempt to the history.
func (s *Storage) RecordExport(rec *ExportRecord) error {
	res, err := s.db.Exec(
		`INSERT INTO exports (service, format, event_count, success, file_id, message, exported_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.Service, rec.Format, rec.EventCount, rec.Success, rec.FileID, rec.Message, rec.ExportedAt,
	)
	if err != nil {
		return fmt.Errorf("insert export: %w", err)
	}

	rec.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	return nil
}

// ListExports returns the most recent export attempts, newest first.
func (s *Storage) ListExports(limit int) ([]*ExportRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(
		`SELECT id, service, format, event_count, success, file_id, message, exported_at
		 FROM exports ORDER BY exported_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query exports: %w", err)
	}
	defer rows.Close()

	var records []*ExportRecord
	for rows.Next() {
		rec := &ExportRecord{}
		if err := rows.Scan(&rec.ID, &rec.Service, &rec.Format, &rec.EventCount,
			&rec.Success, &rec.FileID, &rec.Message, &rec.ExportedAt); err != nil {
			return nil, fmt.Errorf("scan export: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
