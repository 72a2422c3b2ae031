// Package db persists session history: every classifier detection (emitted
// or suppressed, and why) plus malformed records, keyed by session. The
// store backs offline tuning and the session-report tool; recording
// failures are logged and never interrupt the live pipeline.
package db

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps the sqlite session database.
type Store struct {
	*sql.DB
}

// Open opens (creating if needed) the session database at path and brings
// the schema up to date.
func Open(path string) (*Store, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open session database: %w", err)
	}

	store := &Store{sqlDB}
	if err := store.migrateUp(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return store, nil
}

// migrateUp applies all pending embedded migrations.
func (s *Store) migrateUp() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load embedded migrations: %w", err)
	}

	driver, err := sqlite.WithInstance(s.DB, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to prepare migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	// Not closing m here: it would close the underlying DB connection.

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

// Session is one pipeline run.
type Session struct {
	ID         string
	StartedAt  time.Time
	Channels   int
	SampleRate float64
}

// Event is one recorded classifier detection.
type Event struct {
	SessionID string
	Kind      string
	Trigger   float64
	Emitted   bool
	Reason    string
	At        time.Time
}

// ParseError is one malformed input record.
type ParseError struct {
	SessionID string
	Line      string
	Error     string
	At        time.Time
}

// CreateSession records the start of a pipeline run.
func (s *Store) CreateSession(sess Session) error {
	_, err := s.Exec(
		`INSERT INTO sessions (session_id, started_at, channels, sample_rate) VALUES (?, ?, ?, ?)`,
		sess.ID, sess.StartedAt, sess.Channels, sess.SampleRate,
	)
	if err != nil {
		return fmt.Errorf("failed to record session %s: %w", sess.ID, err)
	}
	return nil
}

// RecordEvent persists one detection.
func (s *Store) RecordEvent(e Event) error {
	_, err := s.Exec(
		`INSERT INTO events (session_id, kind, trigger, emitted, reason, at) VALUES (?, ?, ?, ?, ?, ?)`,
		e.SessionID, e.Kind, e.Trigger, e.Emitted, e.Reason, e.At,
	)
	if err != nil {
		return fmt.Errorf("failed to record event: %w", err)
	}
	return nil
}

// RecordParseError persists one malformed record.
func (s *Store) RecordParseError(pe ParseError) error {
	_, err := s.Exec(
		`INSERT INTO parse_errors (session_id, line, error, at) VALUES (?, ?, ?, ?)`,
		pe.SessionID, pe.Line, pe.Error, pe.At,
	)
	if err != nil {
		return fmt.Errorf("failed to record parse error: %w", err)
	}
	return nil
}

// Sessions lists all recorded sessions, most recent first.
func (s *Store) Sessions() ([]Session, error) {
	rows, err := s.Query(`SELECT session_id, started_at, channels, sample_rate FROM sessions ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.ID, &sess.StartedAt, &sess.Channels, &sess.SampleRate); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// EventsForSession returns a session's detections in time order.
func (s *Store) EventsForSession(sessionID string) ([]Event, error) {
	rows, err := s.Query(
		`SELECT session_id, kind, trigger, emitted, reason, at FROM events WHERE session_id = ? ORDER BY at`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list events for session %s: %w", sessionID, err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.SessionID, &e.Kind, &e.Trigger, &e.Emitted, &e.Reason, &e.At); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ParseErrorsForSession returns a session's malformed records in time order.
func (s *Store) ParseErrorsForSession(sessionID string) ([]ParseError, error) {
	rows, err := s.Query(
		`SELECT session_id, line, error, at FROM parse_errors WHERE session_id = ? ORDER BY at`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list parse errors for session %s: %w", sessionID, err)
	}
	defer rows.Close()

	var out []ParseError
	for rows.Next() {
		var pe ParseError
		if err := rows.Scan(&pe.SessionID, &pe.Line, &pe.Error, &pe.At); err != nil {
			return nil, fmt.Errorf("failed to scan parse error: %w", err)
		}
		out = append(out, pe)
	}
	return out, rows.Err()
}
