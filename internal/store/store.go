// Package store provides transcript storage backends for LeadSim.
//
// Finished demo sessions are recorded as transcripts for later review. This
// is an append-only audit trail: sessions are never restored from it. An
// in-memory store is the default; SQLite and PostgreSQL backends are selected
// by DSN configuration.
package store

import (
	"sort"
	"strings"
	"sync"

	"leadsim/internal/models"
)

// Store defines the transcript persistence interface.
type Store interface {
	// SaveTranscript records a finished session's message log.
	SaveTranscript(t models.Transcript) error

	// ListTranscripts returns up to limit transcripts, newest first.
	// A non-positive limit returns all.
	ListTranscripts(limit int) ([]models.Transcript, error)

	// Close releases backend resources.
	Close() error
}

// Opts holds store configuration.
type Opts struct {
	DSN string
}

// Option configures a store backend.
type Option func(*Opts)

// WithDSN sets the database DSN (file path for SQLite, URL for Postgres).
func WithDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType reports the driver implied by a DSN: "postgres" for
// PostgreSQL URLs and key=value connection strings, "sqlite3" otherwise.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite3"
}

// InMemoryStore keeps transcripts in process memory.
type InMemoryStore struct {
	mu          sync.RWMutex
	transcripts []models.Transcript
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

// SaveTranscript records a transcript.
func (s *InMemoryStore) SaveTranscript(t models.Transcript) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcripts = append(s.transcripts, t)
	return nil
}

// ListTranscripts returns up to limit transcripts, newest first.
func (s *InMemoryStore) ListTranscripts(limit int) ([]models.Transcript, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Transcript, len(s.transcripts))
	copy(out, s.transcripts)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].EndedAt.After(out[j].EndedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}
