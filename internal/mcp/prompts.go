package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/endo-report-server/internal/domain"
	"github.com/endo-report-server/internal/rewrite"
)

// registerPrompts exposes the rewrite instruction so a client can run it
// against its own model instead of the configured provider.
func (s *Server) registerPrompts() {
	s.mcpServer.AddPrompt(&mcp.Prompt{
		Name:        "formalize_notes",
		Description: "Instruction that turns rough clinical notes into a formal French report paragraph",
		Arguments: []*mcp.PromptArgument{
			{Name: "notes", Description: "Rough clinical notes", Required: true},
			{Name: "patientName", Description: "Patient name given as context"},
		},
	}, s.getFormalizeNotes)
}

func (s *Server) getFormalizeNotes(ctx context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	args := req.Params.Arguments
	if args["notes"] == "" {
		return nil, domain.NewValidationError("notes", "notes are required", nil)
	}

	return &mcp.GetPromptResult{
		Description: "Formal rewrite of clinical notes",
		Messages: []*mcp.PromptMessage{{
			Role:    "user",
			Content: &mcp.TextContent{Text: rewrite.BuildPrompt(args["notes"], args["patientName"])},
		}},
	}, nil
}
