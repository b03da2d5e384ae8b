package mcp

import (
	"context"
	"errors"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/endo-report-server/internal/audit"
	"github.com/endo-report-server/internal/domain"
	"github.com/endo-report-server/internal/letter"
)

// Output formats of render_letter
const (
	FormatBody = "body"
	FormatText = "text"
	FormatHTML = "html"
)

// ListProceduresParams takes no arguments
type ListProceduresParams struct{}

// ListProceduresResult lists the registered letter variants
type ListProceduresResult struct {
	Procedures []letter.Procedure `json:"procedures"`
}

// RenderLetterParams defines parameters for the render_letter tool
type RenderLetterParams struct {
	ReferringDoctor string  `json:"refDr,omitempty" jsonschema:"name of the referring dentist"`
	PatientName     string  `json:"patientName,omitempty" jsonschema:"patient full name"`
	PatientDOB      string  `json:"patientDOB,omitempty" jsonschema:"patient date of birth, YYYY-MM-DD"`
	Tooth           string  `json:"tooth,omitempty" jsonschema:"tooth number"`
	Diagnosis       *string `json:"diagnosis,omitempty" jsonschema:"defaults to Pulpite irréversible"`
	Prognosis       *string `json:"prognosis,omitempty" jsonschema:"defaults to Bon"`
	Plan            *string `json:"plan,omitempty" jsonschema:"defaults to Traitement endodontique"`
	ProcedureType   string  `json:"procedureType,omitempty" jsonschema:"one of consultation, rct, retreatment, surgery; defaults to rct"`
	Notes           string  `json:"notes,omitempty" jsonschema:"clinical notes appended to the full letter"`
	Format          string  `json:"format,omitempty" jsonschema:"body (default), text or html"`
}

// RenderLetterResult defines the result of the render_letter tool
type RenderLetterResult struct {
	ProcedureType string `json:"procedureType"`
	Format        string `json:"format"`
	Letter        string `json:"letter"`
}

// RewriteNotesParams defines parameters for the rewrite_notes tool
type RewriteNotesParams struct {
	Notes       string `json:"notes" jsonschema:"rough clinical notes to rewrite"`
	PatientName string `json:"patientName,omitempty" jsonschema:"patient name given to the provider as context"`
}

// RewriteNotesResult defines the result of the rewrite_notes tool
type RewriteNotesResult struct {
	Output string `json:"output"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_procedures",
		Description: "List the procedure kinds a referral letter can be rendered for",
	}, s.handleListProcedures)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "render_letter",
		Description: "Render a French endodontic referral letter from case fields",
	}, s.handleRenderLetter)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "rewrite_notes",
		Description: "Rewrite rough clinical notes into a formal French report paragraph",
	}, s.handleRewriteNotes)

	s.logger.WithField("tools", 3).Debug("Registered MCP tools")
}

func (s *Server) handleListProcedures(ctx context.Context, req *mcp.CallToolRequest, _ ListProceduresParams) (*mcp.CallToolResult, ListProceduresResult, error) {
	s.logger.WithField("tool", "list_procedures").Info("Tool invoked")
	return nil, ListProceduresResult{Procedures: letter.Procedures()}, nil
}

func (s *Server) handleRenderLetter(ctx context.Context, req *mcp.CallToolRequest, params RenderLetterParams) (*mcp.CallToolResult, RenderLetterResult, error) {
	s.logger.WithField("tool", "render_letter").Info("Tool invoked")
	start := time.Now()

	kind, err := domain.ParseProcedureKind(params.ProcedureType)
	if err != nil {
		s.recordRender(ctx, domain.ProcedureKind(params.ProcedureType), 0, start, err)
		return nil, RenderLetterResult{}, err
	}

	rec := domain.NewCaseRecord()
	rec.ReferringDoctor = params.ReferringDoctor
	rec.PatientName = params.PatientName
	rec.PatientDOB = params.PatientDOB
	rec.Tooth = params.Tooth
	rec.ProcedureType = kind
	rec.ClinicalNotes = params.Notes
	if params.Diagnosis != nil {
		rec.Diagnosis = *params.Diagnosis
	}
	if params.Prognosis != nil {
		rec.Prognosis = *params.Prognosis
	}
	if params.Plan != nil {
		rec.Plan = *params.Plan
	}

	format := params.Format
	if format == "" {
		format = FormatBody
	}

	var out string
	switch format {
	case FormatBody:
		out, err = letter.Render(rec)
	case FormatText, FormatHTML:
		var doc *letter.Document
		doc, err = s.composer.Compose(rec, domain.Attachments{})
		if err == nil && format == FormatText {
			out = doc.Text()
		} else if err == nil {
			out, err = doc.HTML()
		}
	default:
		err = domain.NewValidationError("format", "format must be body, text or html", format)
	}

	s.recordRender(ctx, kind, len(out), start, err)
	if err != nil {
		return nil, RenderLetterResult{}, err
	}

	return nil, RenderLetterResult{
		ProcedureType: string(kind),
		Format:        format,
		Letter:        out,
	}, nil
}

func (s *Server) handleRewriteNotes(ctx context.Context, req *mcp.CallToolRequest, params RewriteNotesParams) (*mcp.CallToolResult, RewriteNotesResult, error) {
	s.logger.WithField("tool", "rewrite_notes").Info("Tool invoked")

	if params.Notes == "" {
		return nil, RewriteNotesResult{}, domain.NewValidationError("notes", "notes are required", nil)
	}

	output, err := s.rewriter.Rewrite(ctx, params.Notes, params.PatientName)
	if err != nil {
		// provider details stay in the server log
		return nil, RewriteNotesResult{}, errors.New(domain.PublicMessage(err))
	}

	return nil, RewriteNotesResult{Output: output}, nil
}

func (s *Server) recordRender(ctx context.Context, kind domain.ProcedureKind, outputLen int, start time.Time, err error) {
	event := audit.NewEvent(ctx, audit.OperationRender, start, err)
	event.ProcedureKind = string(kind)
	event.OutputLength = outputLen

	if recErr := s.recorder.Record(context.WithoutCancel(ctx), event); recErr != nil {
		s.logger.WithError(recErr).Warn("Failed to record audit event")
	}
}
