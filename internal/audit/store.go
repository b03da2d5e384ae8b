package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/endo-report-server/internal/domain"
)

// maxExportLimit is the maximum number of entries to export at once.
const maxExportLimit = 1000000

// Open creates the store selected by cfg.Driver
func Open(cfg domain.AuditConfig) (Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "none":
		return NopStore{}, nil
	case "sqlite":
		return NewSQLiteStore(cfg.SQLitePath)
	case "postgres":
		return NewPostgresStoreFromURL(cfg.PostgresURL)
	}
	return nil, fmt.Errorf("unsupported audit driver: %s", cfg.Driver)
}

func prepare(event *Event) {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
}

func exportJSON(ctx context.Context, s Store, writer io.Writer) error {
	all, err := s.List(ctx, maxExportLimit, 0)
	if err != nil {
		return fmt.Errorf("failed to list audit events: %w", err)
	}

	export := &Export{
		Version:    "1.0",
		ExportedAt: time.Now(),
		Count:      len(all),
		Events:     all,
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}

// NopStore discards events
type NopStore struct{}

func (NopStore) Record(context.Context, *Event) error { return nil }

func (NopStore) List(context.Context, int, int) ([]*Event, error) { return nil, nil }

func (NopStore) Count(context.Context) (int64, error) { return 0, nil }

func (s NopStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	return exportJSON(ctx, s, writer)
}

func (NopStore) Close() error { return nil }

// NewEvent starts an event for op. A non-nil err sets the outcome to its error code.
func NewEvent(ctx context.Context, op Operation, start time.Time, err error) *Event {
	outcome := OutcomeSuccess
	if err != nil {
		outcome = domain.ErrorCode(err)
	}
	return &Event{
		RequestID:  domain.RequestIDFromContext(ctx),
		Operation:  op,
		Outcome:    outcome,
		DurationMs: time.Since(start).Milliseconds(),
	}
}
