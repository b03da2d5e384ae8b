package mcp

import (
	"context"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadProceduresResource(t *testing.T) {
	session := connect(t, &stubRewriter{})

	res, err := session.ReadResource(context.Background(), &mcp.ReadResourceParams{URI: "endo://procedures"})
	require.NoError(t, err)
	require.Len(t, res.Contents, 1)

	assert.Equal(t, "application/json", res.Contents[0].MIMEType)
	assert.Contains(t, res.Contents[0].Text, `"key":"consultation"`)
	assert.Contains(t, res.Contents[0].Text, "Traitement de Canal (RCT)")
}

func TestReadProcedureBodyResource(t *testing.T) {
	session := connect(t, &stubRewriter{})

	res, err := session.ReadResource(context.Background(), &mcp.ReadResourceParams{URI: "endo://procedures/surgery"})
	require.NoError(t, err)
	require.Len(t, res.Contents, 1)
	assert.Contains(t, res.Contents[0].Text, "Une microchirurgie endodontique a été réalisée sur la dent [dent].")

	_, err = session.ReadResource(context.Background(), &mcp.ReadResourceParams{URI: "endo://procedures/implant"})
	assert.Error(t, err)
}

func TestFormalizeNotesPrompt(t *testing.T) {
	session := connect(t, &stubRewriter{})
	ctx := context.Background()

	list, err := session.ListPrompts(ctx, nil)
	require.NoError(t, err)
	require.Len(t, list.Prompts, 1)
	assert.Equal(t, "formalize_notes", list.Prompts[0].Name)

	res, err := session.GetPrompt(ctx, &mcp.GetPromptParams{
		Name:      "formalize_notes",
		Arguments: map[string]string{"notes": "MB2 calcifié", "patientName": "Jean Dupont"},
	})
	require.NoError(t, err)
	require.Len(t, res.Messages, 1)

	text, ok := res.Messages[0].Content.(*mcp.TextContent)
	require.True(t, ok)
	assert.Contains(t, text.Text, "MB2 calcifié")
	assert.Contains(t, text.Text, "Jean Dupont")

	_, err = session.GetPrompt(ctx, &mcp.GetPromptParams{Name: "formalize_notes"})
	assert.Error(t, err)
}
