package mcp

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/endo-report-server/internal/audit"
	"github.com/endo-report-server/internal/domain"
)

type stubRewriter struct {
	calls  int
	output string
	err    error
}

func (s *stubRewriter) Rewrite(_ context.Context, _, _ string) (string, error) {
	s.calls++
	return s.output, s.err
}

func connect(t *testing.T, rewriter domain.NotesRewriter) *mcp.ClientSession {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	server := NewServer(&domain.Config{}, rewriter, WithLogger(logger))

	ctx := context.Background()
	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	_, err := server.Connect(ctx, serverTransport)
	require.NoError(t, err)

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { session.Close() })

	return session
}

func textOf(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok, "expected text content")
	return text.Text
}

func TestListTools(t *testing.T) {
	session := connect(t, &stubRewriter{})

	res, err := session.ListTools(context.Background(), nil)
	require.NoError(t, err)

	names := make([]string, 0, len(res.Tools))
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"list_procedures", "render_letter", "rewrite_notes"}, names)
}

func TestListProcedures(t *testing.T) {
	session := connect(t, &stubRewriter{})

	res, err := session.CallTool(context.Background(), &mcp.CallToolParams{Name: "list_procedures"})
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Contains(t, textOf(t, res), `"key":"surgery"`)
	assert.Contains(t, textOf(t, res), "Microchirurgie (Apico)")
}

func TestRenderLetter(t *testing.T) {
	session := connect(t, &stubRewriter{})
	ctx := context.Background()

	t.Run("body", func(t *testing.T) {
		res, err := session.CallTool(ctx, &mcp.CallToolParams{
			Name: "render_letter",
			Arguments: map[string]any{
				"patientName":   "Jean Dupont",
				"tooth":         "36",
				"procedureType": "retreatment",
			},
		})
		require.NoError(t, err)
		require.False(t, res.IsError, textOf(t, res))
		assert.Contains(t, textOf(t, res), "J'ai complété le retraitement endodontique de la dent 36.")
	})

	t.Run("consultation uses form defaults", func(t *testing.T) {
		res, err := session.CallTool(ctx, &mcp.CallToolParams{
			Name: "render_letter",
			Arguments: map[string]any{
				"tooth":         "36",
				"procedureType": "consultation",
				"prognosis":     "Réservé",
			},
		})
		require.NoError(t, err)
		require.False(t, res.IsError, textOf(t, res))
		assert.Contains(t, textOf(t, res), "un diagnostic de pulpite irréversible.")
		assert.Contains(t, textOf(t, res), "Le pronostic est réservé.")
		assert.Contains(t, textOf(t, res), "Je recommande : Traitement endodontique.")
	})

	t.Run("full text letter", func(t *testing.T) {
		res, err := session.CallTool(ctx, &mcp.CallToolParams{
			Name: "render_letter",
			Arguments: map[string]any{
				"patientName": "Jean Dupont",
				"refDr":       "Tremblay",
				"format":      "text",
			},
		})
		require.NoError(t, err)
		require.False(t, res.IsError)
		assert.Contains(t, textOf(t, res), "Dr Tremblay")
		assert.Contains(t, textOf(t, res), "Cordialement,")
	})

	t.Run("unknown procedure", func(t *testing.T) {
		res, err := session.CallTool(ctx, &mcp.CallToolParams{
			Name:      "render_letter",
			Arguments: map[string]any{"procedureType": "implant"},
		})
		require.NoError(t, err)
		assert.True(t, res.IsError)
		assert.Contains(t, textOf(t, res), "unknown procedure kind")
	})

	t.Run("unknown format", func(t *testing.T) {
		res, err := session.CallTool(ctx, &mcp.CallToolParams{
			Name:      "render_letter",
			Arguments: map[string]any{"format": "pdf"},
		})
		require.NoError(t, err)
		assert.True(t, res.IsError)
	})
}

func TestRewriteNotes(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		stub := &stubRewriter{output: "Rapport formel..."}
		session := connect(t, stub)

		res, err := session.CallTool(ctx, &mcp.CallToolParams{
			Name:      "rewrite_notes",
			Arguments: map[string]any{"notes": "canaux calcifiés", "patientName": "Jean Dupont"},
		})
		require.NoError(t, err)
		require.False(t, res.IsError)
		assert.Contains(t, textOf(t, res), "Rapport formel...")
		assert.Equal(t, 1, stub.calls)
	})

	t.Run("provider failure hides details", func(t *testing.T) {
		stub := &stubRewriter{err: domain.NewProviderError("quota exceeded for project 42", "")}
		session := connect(t, stub)

		res, err := session.CallTool(ctx, &mcp.CallToolParams{
			Name:      "rewrite_notes",
			Arguments: map[string]any{"notes": "n"},
		})
		require.NoError(t, err)
		assert.True(t, res.IsError)
		assert.Equal(t, "Failed to generate report", textOf(t, res))
	})

	t.Run("empty notes are rejected without a call", func(t *testing.T) {
		stub := &stubRewriter{err: errors.New("unused")}
		session := connect(t, stub)

		res, err := session.CallTool(ctx, &mcp.CallToolParams{
			Name:      "rewrite_notes",
			Arguments: map[string]any{"notes": ""},
		})
		require.NoError(t, err)
		assert.True(t, res.IsError)
		assert.Equal(t, 0, stub.calls)
	})
}

type ctxRecorder struct {
	errs []error
}

func (r *ctxRecorder) Record(ctx context.Context, _ *audit.Event) error {
	r.errs = append(r.errs, ctx.Err())
	return nil
}

func TestRecordRender_SurvivesCancelledCall(t *testing.T) {
	rec := &ctxRecorder{}
	server := NewServer(&domain.Config{}, &stubRewriter{}, WithRecorder(rec))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	server.recordRender(ctx, domain.ProcedureRootCanal, 10, time.Now(), nil)

	require.Len(t, rec.errs, 1)
	assert.NoError(t, rec.errs[0])
}
