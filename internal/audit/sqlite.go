package audit

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore creates a new SQLite audit store.
// It creates the database file and schema if they don't exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows one writer; a single connection serializes concurrent Record calls
	db.SetMaxOpenConns(1)

	// WAL lets the export command read while the server writes
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanEvent(s scanner) (*Event, error) {
	ev := &Event{}
	var op string

	err := s.Scan(
		&ev.ID, &ev.RequestID, &op, &ev.ProcedureKind, &ev.Outcome, &ev.Model,
		&ev.InputLength, &ev.OutputLength, &ev.DurationMs, &ev.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	ev.Operation = Operation(op)
	return ev, nil
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS audit_events (
		id TEXT PRIMARY KEY,
		request_id TEXT DEFAULT '',
		operation TEXT NOT NULL,
		procedure_kind TEXT DEFAULT '',
		outcome TEXT NOT NULL,
		model TEXT DEFAULT '',
		input_length INTEGER NOT NULL DEFAULT 0,
		output_length INTEGER NOT NULL DEFAULT 0,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_audit_operation ON audit_events(operation);
	CREATE INDEX IF NOT EXISTS idx_audit_created_at ON audit_events(created_at);
	`

	_, err := db.Exec(schema)
	return err
}

// Record stores one event, assigning its ID and timestamp when missing.
func (s *SQLiteStore) Record(ctx context.Context, event *Event) error {
	prepare(event)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_events (
			id, request_id, operation, procedure_kind, outcome, model,
			input_length, output_length, duration_ms, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		event.ID,
		event.RequestID,
		string(event.Operation),
		event.ProcedureKind,
		event.Outcome,
		event.Model,
		event.InputLength,
		event.OutputLength,
		event.DurationMs,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}
	return nil
}

// List returns events, newest first, with pagination.
func (s *SQLiteStore) List(ctx context.Context, limit, offset int) ([]*Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, request_id, operation, procedure_kind, outcome, model,
			input_length, output_length, duration_ms, created_at
		FROM audit_events
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	var result []*Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, ev)
	}
	return result, rows.Err()
}

// Count returns the total number of events.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_events").Scan(&count)
	return count, err
}

// ExportJSON exports all events to a JSON writer.
func (s *SQLiteStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	return exportJSON(ctx, s, writer)
}

// Close closes the store and releases resources.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
