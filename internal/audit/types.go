// Package audit records gateway and render invocations.
// Events carry outcome and sizes only; notes and patient names are never stored.
package audit

import (
	"context"
	"io"
	"time"
)

// Operation names the audited entry point
type Operation string

const (
	OperationRender  Operation = "render"
	OperationRewrite Operation = "rewrite"
)

// OutcomeSuccess marks a completed invocation. Failures use the domain error code.
const OutcomeSuccess = "success"

// Event is one audited invocation
type Event struct {
	ID            string    `json:"id"`
	RequestID     string    `json:"request_id,omitempty"`
	Operation     Operation `json:"operation"`
	ProcedureKind string    `json:"procedure_kind,omitempty"`
	Outcome       string    `json:"outcome"`
	Model         string    `json:"model,omitempty"`
	InputLength   int       `json:"input_length"`
	OutputLength  int       `json:"output_length"`
	DurationMs    int64     `json:"duration_ms"`
	CreatedAt     time.Time `json:"created_at"`
}

// Recorder accepts audit events
type Recorder interface {
	Record(ctx context.Context, event *Event) error
}

// Store defines the interface for audit storage operations.
type Store interface {
	Recorder

	// List returns events, newest first, with pagination.
	List(ctx context.Context, limit, offset int) ([]*Event, error)

	// Count returns the total number of events.
	Count(ctx context.Context) (int64, error)

	// ExportJSON exports all events to a JSON writer.
	ExportJSON(ctx context.Context, writer io.Writer) error

	// Close closes the store and releases resources.
	Close() error
}

// Export represents the JSON export format.
type Export struct {
	Version    string    `json:"version"`
	ExportedAt time.Time `json:"exported_at"`
	Count      int       `json:"count"`
	Events     []*Event  `json:"events"`
}
