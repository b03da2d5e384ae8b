package audit

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/endo-report-server/internal/domain"
)

func TestOpen(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		store, err := Open(domain.AuditConfig{Driver: "none"})
		require.NoError(t, err)
		assert.IsType(t, NopStore{}, store)
	})

	t.Run("sqlite", func(t *testing.T) {
		store, err := Open(domain.AuditConfig{Driver: "SQLite", SQLitePath: filepath.Join(t.TempDir(), "a.db")})
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &SQLiteStore{}, store)
	})

	t.Run("unsupported", func(t *testing.T) {
		_, err := Open(domain.AuditConfig{Driver: "mongodb"})
		assert.ErrorContains(t, err, "unsupported audit driver")
	})
}

func TestNopStore(t *testing.T) {
	var s NopStore
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, &Event{}))
	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	var buf bytes.Buffer
	require.NoError(t, s.ExportJSON(ctx, &buf))
	assert.Contains(t, buf.String(), `"count": 0`)
}
