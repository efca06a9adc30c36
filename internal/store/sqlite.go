// Package store provides transcript storage backends for LeadSim.
//
// This file implements the SQLite-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	_ "github.com/mattn/go-sqlite3"

	"leadsim/internal/models"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore persists transcripts in a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store. The DSN is a file path to the
// database file; its directory is created if missing.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.DSN == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(cfg.DSN)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", cfg.DSN)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run SQLite migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	slog.Info("SQLite transcript store ready", "path", cfg.DSN)
	return &SQLiteStore{db: db}, nil
}

// SaveTranscript records a finished session's message log.
func (s *SQLiteStore) SaveTranscript(t models.Transcript) error {
	payload, err := marshalMessages(t.Messages)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO transcripts (id, workflow, final_state, message_count, messages_json, started_at, ended_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, string(t.Workflow), string(t.FinalState), t.MessageCount, payload, t.StartedAt, t.EndedAt,
	)
	if err != nil {
		slog.Error("SQLiteStore SaveTranscript failed", "error", err, "transcript", t.ID)
		return fmt.Errorf("save transcript: %w", err)
	}
	slog.Debug("SQLiteStore SaveTranscript succeeded", "transcript", t.ID, "messages", t.MessageCount)
	return nil
}

// ListTranscripts returns up to limit transcripts, newest first.
func (s *SQLiteStore) ListTranscripts(limit int) ([]models.Transcript, error) {
	query := `SELECT id, workflow, final_state, message_count, messages_json, started_at, ended_at
	          FROM transcripts ORDER BY ended_at DESC`
	var rows *sql.Rows
	var err error
	if limit > 0 {
		rows, err = s.db.Query(query+` LIMIT ?`, limit)
	} else {
		rows, err = s.db.Query(query)
	}
	if err != nil {
		slog.Error("SQLiteStore ListTranscripts query failed", "error", err)
		return nil, fmt.Errorf("list transcripts: %w", err)
	}
	defer rows.Close()

	return scanTranscripts(rows)
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
