// Package store provides transcript storage backends for LeadSim.
//
// This file implements the PostgreSQL-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"

	_ "embed"

	_ "github.com/lib/pq"

	"leadsim/internal/models"
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore persists transcripts in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store from a connection URL DSN.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.DSN == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run Postgres migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	slog.Info("Postgres transcript store ready")
	return &PostgresStore{db: db}, nil
}

// SaveTranscript records a finished session's message log.
func (s *PostgresStore) SaveTranscript(t models.Transcript) error {
	payload, err := marshalMessages(t.Messages)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO transcripts (id, workflow, final_state, message_count, messages_json, started_at, ended_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		t.ID, string(t.Workflow), string(t.FinalState), t.MessageCount, payload, t.StartedAt, t.EndedAt,
	)
	if err != nil {
		slog.Error("PostgresStore SaveTranscript failed", "error", err, "transcript", t.ID)
		return fmt.Errorf("save transcript: %w", err)
	}
	slog.Debug("PostgresStore SaveTranscript succeeded", "transcript", t.ID, "messages", t.MessageCount)
	return nil
}

// ListTranscripts returns up to limit transcripts, newest first.
func (s *PostgresStore) ListTranscripts(limit int) ([]models.Transcript, error) {
	query := `SELECT id, workflow, final_state, message_count, messages_json, started_at, ended_at
	          FROM transcripts ORDER BY ended_at DESC`
	var rows *sql.Rows
	var err error
	if limit > 0 {
		rows, err = s.db.Query(query+` LIMIT $1`, limit)
	} else {
		rows, err = s.db.Query(query)
	}
	if err != nil {
		slog.Error("PostgresStore ListTranscripts query failed", "error", err)
		return nil, fmt.Errorf("list transcripts: %w", err)
	}
	defer rows.Close()

	return scanTranscripts(rows)
}

// Close closes the underlying database.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
